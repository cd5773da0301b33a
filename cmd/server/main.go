package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tyemirov/paceline/internal/accounts"
	"github.com/tyemirov/paceline/internal/classifier"
	"github.com/tyemirov/paceline/internal/etagcache"
	"github.com/tyemirov/paceline/internal/httpapi"
	"github.com/tyemirov/paceline/internal/providertoken"
	"github.com/tyemirov/paceline/internal/storage"
	"github.com/tyemirov/paceline/internal/strava"
	"github.com/tyemirov/paceline/internal/syncpipe"
	"github.com/tyemirov/paceline/internal/tokens"
	"github.com/tyemirov/paceline/internal/vault"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "paceline",
		Short:   "Running-coach backend: dual-token auth, Strava ingestion, workout classification",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("database_url", "", "Database URL (postgres:// or sqlite:)")
	rootCmd.Flags().String("redis_addr", "", "Redis address for the ETag cache; empty for in-memory")
	rootCmd.Flags().String("redis_password", "", "Redis password")
	rootCmd.Flags().Int("redis_db", 0, "Redis database number")
	rootCmd.Flags().String("jwt_signing_key", "", "HS256 signing secret for access and refresh JWTs")
	rootCmd.Flags().Duration("access_ttl", 15*time.Minute, "Access token TTL")
	rootCmd.Flags().Duration("refresh_ttl", 30*24*time.Hour, "Refresh token TTL")
	rootCmd.Flags().String("account_refresh_key", "", "Base64 32-byte key encrypting account refresh tokens")
	rootCmd.Flags().String("provider_key", "", "Base64 32-byte key encrypting provider tokens")
	rootCmd.Flags().String("google_web_client_id", "", "Google Web OAuth Client ID")
	rootCmd.Flags().String("strava_client_id", "", "Strava application client id")
	rootCmd.Flags().String("strava_client_secret", "", "Strava application client secret")
	rootCmd.Flags().Float64("max_heart_rate", 190, "Configured maximum heart rate for classification")
	rootCmd.Flags().Duration("cache_ttl", 15*time.Minute, "ETag cache entry TTL")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed CORS origins; empty allows all")

	for _, flagName := range []string{
		"listen_addr", "database_url", "redis_addr", "redis_password", "redis_db",
		"jwt_signing_key", "access_ttl", "refresh_ttl",
		"account_refresh_key", "provider_key", "google_web_client_id",
		"strava_client_id", "strava_client_secret", "max_heart_rate",
		"cache_ttl", "cors_allowed_origins",
	} {
		_ = viper.BindPFlag(flagName, rootCmd.Flags().Lookup(flagName))
	}

	viper.SetEnvPrefix("PACELINE")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	tokenIssuer = "paceline"

	configCodeMissingDatabaseURL    = "config.missing_database_url"
	configCodeMissingJWTSigningKey  = "config.missing_jwt_signing_key"
	configCodeMissingVaultKeys      = "config.missing_vault_keys"
	configCodeInvalidAccessTTL      = "config.invalid_access_ttl"
	configCodeInvalidRefreshTTL     = "config.invalid_refresh_ttl"
	configCodeUninitializedConfig   = "config.uninitialized_server_config"
	configCodeMissingStravaClientID = "config.missing_strava_client_id"
)

type serverConfig struct {
	ListenAddr         string
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	JWTSigningKey      []byte
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	AccountRefreshKey  string
	ProviderKey        string
	GoogleWebClientID  string
	StravaClientID     string
	StravaClientSecret string
	MaxHeartRate       float64
	CacheTTL           time.Duration
	CORSAllowedOrigins []string
}

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	configuration, loadErr := loadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, configuration))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

func loadServerConfig() (serverConfig, error) {
	databaseURL := viper.GetString("database_url")
	if databaseURL == "" {
		return serverConfig{}, configError(configCodeMissingDatabaseURL, "database_url must be provided")
	}

	jwtSigningKey := viper.GetString("jwt_signing_key")
	if jwtSigningKey == "" {
		return serverConfig{}, configError(configCodeMissingJWTSigningKey, "jwt_signing_key must be provided")
	}

	accountRefreshKey := viper.GetString("account_refresh_key")
	providerKey := viper.GetString("provider_key")
	if accountRefreshKey == "" || providerKey == "" {
		return serverConfig{}, configError(configCodeMissingVaultKeys, "account_refresh_key and provider_key must be provided")
	}

	accessTTL := viper.GetDuration("access_ttl")
	if accessTTL <= 0 {
		return serverConfig{}, configError(configCodeInvalidAccessTTL, "access_ttl must be greater than zero")
	}
	refreshTTL := viper.GetDuration("refresh_ttl")
	if refreshTTL <= 0 {
		return serverConfig{}, configError(configCodeInvalidRefreshTTL, "refresh_ttl must be greater than zero")
	}

	stravaClientID := viper.GetString("strava_client_id")
	if stravaClientID == "" {
		return serverConfig{}, configError(configCodeMissingStravaClientID, "strava_client_id must be provided")
	}

	return serverConfig{
		ListenAddr:         viper.GetString("listen_addr"),
		DatabaseURL:        databaseURL,
		RedisAddr:          viper.GetString("redis_addr"),
		RedisPassword:      viper.GetString("redis_password"),
		RedisDB:            viper.GetInt("redis_db"),
		JWTSigningKey:      []byte(jwtSigningKey),
		AccessTTL:          accessTTL,
		RefreshTTL:         refreshTTL,
		AccountRefreshKey:  accountRefreshKey,
		ProviderKey:        providerKey,
		GoogleWebClientID:  viper.GetString("google_web_client_id"),
		StravaClientID:     stravaClientID,
		StravaClientSecret: viper.GetString("strava_client_secret"),
		MaxHeartRate:       viper.GetFloat64("max_heart_rate"),
		CacheTTL:           viper.GetDuration("cache_ttl"),
		CORSAllowedOrigins: viper.GetStringSlice("cors_allowed_origins"),
	}, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	configuration, ok := contextValue.(serverConfig)
	if !ok {
		return configError(configCodeUninitializedConfig, "server configuration not prepared; PreRunE must execute before RunE")
	}

	store, storeErr := storage.Open(commandContext, configuration.DatabaseURL)
	if storeErr != nil {
		return storeErr
	}
	defer func() { _ = store.Close() }()

	secretsVault, vaultErr := vault.New(map[vault.Purpose]string{
		vault.PurposeAccountRefresh: configuration.AccountRefreshKey,
		vault.PurposeProvider:       configuration.ProviderKey,
	})
	if vaultErr != nil {
		return vaultErr
	}

	var cacheStore etagcache.KV
	if configuration.RedisAddr != "" {
		redisStore, redisErr := etagcache.NewRedisKV(commandContext, configuration.RedisAddr, configuration.RedisPassword, configuration.RedisDB, "paceline:")
		if redisErr != nil {
			return redisErr
		}
		cacheStore = redisStore
		logger.Info("using redis etag cache", zap.String("addr", configuration.RedisAddr))
	} else {
		cacheStore = etagcache.NewMemoryKV()
		logger.Info("using in-memory etag cache")
	}
	defer func() { _ = cacheStore.Close() }()

	tokenService := tokens.NewService(configuration.JWTSigningKey, tokenIssuer, configuration.AccessTTL, configuration.RefreshTTL, nil)
	accountManager := accounts.NewManager(store, secretsVault, tokenService, logger)
	stravaClient := strava.NewHTTPClient(strava.Config{
		ClientID:     configuration.StravaClientID,
		ClientSecret: configuration.StravaClientSecret,
	})
	providerManager := providertoken.NewManager(store, secretsVault, stravaClient, nil, logger)
	responseCache := etagcache.NewCache(cacheStore, configuration.CacheTTL, logger)
	workoutClassifier := classifier.New(classifier.Config{MaxHeartrate: configuration.MaxHeartRate})
	pipeline := syncpipe.NewPipeline(providerManager, stravaClient, workoutClassifier, store, responseCache, logger)

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(httpapi.Dependencies{
		Accounts:       accountManager,
		Provider:       providerManager,
		Sync:           pipeline,
		Activities:     store,
		Cache:          responseCache,
		TokenService:   tokenService,
		VerifyGoogleID: httpapi.NewGoogleVerifier(configuration.GoogleWebClientID),
		AllowedOrigins: configuration.CORSAllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              configuration.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", configuration.ListenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}
