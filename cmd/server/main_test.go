package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func setCompleteConfig() {
	viper.Set("listen_addr", ":0")
	viper.Set("database_url", "sqlite://file::memory:?cache=shared")
	viper.Set("jwt_signing_key", "signing-secret")
	viper.Set("access_ttl", 15*time.Minute)
	viper.Set("refresh_ttl", 30*24*time.Hour)
	viper.Set("account_refresh_key", base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("r"), 32)))
	viper.Set("provider_key", base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("p"), 32)))
	viper.Set("strava_client_id", "12345")
}

func TestRunServerMissingConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)

	viper.Reset()
	defer viper.Reset()

	err := runServer(&cobra.Command{}, nil)
	if err == nil {
		t.Fatalf("expected configuration error")
	}

	expectedMessage := "config.uninitialized_server_config: server configuration not prepared; PreRunE must execute before RunE"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadServerConfigRequiresDatabaseURL(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	setCompleteConfig()
	viper.Set("database_url", "")

	_, err := loadServerConfig()
	if err == nil {
		t.Fatalf("expected error when database_url is missing")
	}

	expectedMessage := "config.missing_database_url: database_url must be provided"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadServerConfigRequiresSigningKey(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	setCompleteConfig()
	viper.Set("jwt_signing_key", "")

	_, err := loadServerConfig()
	if err == nil {
		t.Fatalf("expected error when jwt_signing_key is missing")
	}

	expectedMessage := "config.missing_jwt_signing_key: jwt_signing_key must be provided"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadServerConfigRequiresBothVaultKeys(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	setCompleteConfig()
	viper.Set("provider_key", "")

	_, err := loadServerConfig()
	if err == nil {
		t.Fatalf("expected error when provider_key is missing")
	}

	expectedMessage := "config.missing_vault_keys: account_refresh_key and provider_key must be provided"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadServerConfigRequiresPositiveAccessTTL(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	setCompleteConfig()
	viper.Set("access_ttl", 0)

	_, err := loadServerConfig()
	if err == nil {
		t.Fatalf("expected error when access_ttl is non-positive")
	}

	expectedMessage := "config.invalid_access_ttl: access_ttl must be greater than zero"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadServerConfigRequiresPositiveRefreshTTL(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	setCompleteConfig()
	viper.Set("refresh_ttl", -time.Second)

	_, err := loadServerConfig()
	if err == nil {
		t.Fatalf("expected error when refresh_ttl is non-positive")
	}

	expectedMessage := "config.invalid_refresh_ttl: refresh_ttl must be greater than zero"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadServerConfigRequiresStravaClientID(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	setCompleteConfig()
	viper.Set("strava_client_id", "")

	_, err := loadServerConfig()
	if err == nil {
		t.Fatalf("expected error when strava_client_id is missing")
	}

	expectedMessage := "config.missing_strava_client_id: strava_client_id must be provided"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestRunServerSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)

	viper.Reset()
	defer viper.Reset()

	restoreServe := withServeHTTPStub(func(server *http.Server) error {
		if server.Handler == nil {
			t.Fatalf("expected handler to be configured")
		}
		return http.ErrServerClosed
	})
	defer restoreServe()

	setCompleteConfig()

	configuration, err := loadServerConfig()
	if err != nil {
		t.Fatalf("expected configuration load to succeed, got %v", err)
	}

	command := &cobra.Command{}
	command.SetContext(context.WithValue(context.Background(), serverConfigContextKey, configuration))

	if err := runServer(command, nil); err != nil {
		t.Fatalf("expected runServer to succeed, got %v", err)
	}
}

func TestRunServerRejectsMalformedVaultKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	viper.Reset()
	defer viper.Reset()

	restoreServe := withServeHTTPStub(func(server *http.Server) error {
		return http.ErrServerClosed
	})
	defer restoreServe()

	setCompleteConfig()
	viper.Set("provider_key", "not-a-base64-key")

	configuration, err := loadServerConfig()
	if err != nil {
		t.Fatalf("expected configuration load to succeed, got %v", err)
	}

	command := &cobra.Command{}
	command.SetContext(context.WithValue(context.Background(), serverConfigContextKey, configuration))

	if err := runServer(command, nil); err == nil {
		t.Fatalf("expected runServer to reject a malformed vault key")
	}
}

func TestNewRootCommandHelp(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--help"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected help execution to succeed: %v", err)
	}
}

func withServeHTTPStub(stub func(server *http.Server) error) func() {
	previous := serveHTTP
	serveHTTP = stub
	return func() {
		serveHTTP = previous
	}
}
