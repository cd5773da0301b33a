package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tyemirov/paceline/internal/accounts"
	"github.com/tyemirov/paceline/internal/classifier"
	"github.com/tyemirov/paceline/internal/etagcache"
	"github.com/tyemirov/paceline/internal/fault"
	"github.com/tyemirov/paceline/internal/providertoken"
	"github.com/tyemirov/paceline/internal/storage"
	"github.com/tyemirov/paceline/internal/strava"
	"github.com/tyemirov/paceline/internal/syncpipe"
	"github.com/tyemirov/paceline/internal/tokens"
	"github.com/tyemirov/paceline/internal/vault"
)

type stubStravaClient struct {
	activities []strava.ActivityData
}

func (client *stubStravaClient) ExchangeCode(ctx context.Context, code string) (strava.TokenGrant, error) {
	return strava.TokenGrant{
		AccessToken:    "provider-access",
		RefreshToken:   "provider-refresh",
		ExpiresAt:      time.Now().Add(6 * time.Hour).Unix(),
		ProviderUserID: "555",
	}, nil
}

func (client *stubStravaClient) RefreshGrant(ctx context.Context, refreshToken string) (strava.TokenGrant, error) {
	return strava.TokenGrant{}, fault.Wrap(fault.ErrUpstream, "strava.refresh", nil)
}

func (client *stubStravaClient) ListActivities(ctx context.Context, accessToken string, since time.Time) ([]strava.ActivityData, error) {
	return client.activities, nil
}

func (client *stubStravaClient) FetchLaps(ctx context.Context, accessToken string, activityID int64) ([]strava.LapData, error) {
	return nil, nil
}

func (client *stubStravaClient) FetchStream(ctx context.Context, accessToken string, activityID int64) (strava.StreamData, error) {
	return strava.StreamData{}, nil
}

func (client *stubStravaClient) Deauthorize(ctx context.Context, accessToken string) error {
	return nil
}

func buildTestRouter(t *testing.T, stravaClient strava.Client) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, openErr := storage.Open(context.Background(), "sqlite:"+filepath.Join(t.TempDir(), "httpapi_test.db"))
	if openErr != nil {
		t.Fatalf("open store: %v", openErr)
	}
	t.Cleanup(func() { _ = store.Close() })

	keys := map[vault.Purpose]string{
		vault.PurposeAccountRefresh: base64.StdEncoding.EncodeToString([]byte(strings.Repeat("r", 32))),
		vault.PurposeProvider:       base64.StdEncoding.EncodeToString([]byte(strings.Repeat("p", 32))),
	}
	secretsVault, vaultErr := vault.New(keys)
	if vaultErr != nil {
		t.Fatalf("new vault: %v", vaultErr)
	}

	tokenService := tokens.NewService([]byte("test-signing-key"), "paceline-test", 15*time.Minute, 30*24*time.Hour, nil)
	accountManager := accounts.NewManager(store, secretsVault, tokenService, nil)
	providerManager := providertoken.NewManager(store, secretsVault, stravaClient, nil, nil)
	cache := etagcache.NewCache(etagcache.NewMemoryKV(), time.Minute, nil)
	pipeline := syncpipe.NewPipeline(providerManager, stravaClient, classifier.New(classifier.Config{MaxHeartrate: 190}), store, cache, nil)

	return NewRouter(Dependencies{
		Accounts:     accountManager,
		Provider:     providerManager,
		Sync:         pipeline,
		Activities:   store,
		Cache:        cache,
		TokenService: tokenService,
		VerifyGoogleID: func(ctx context.Context, idToken string) (accounts.SocialIdentity, error) {
			if idToken != "valid-google-token" {
				return accounts.SocialIdentity{}, fault.Wrap(fault.ErrTokenInvalid, "httpapi.google.validate", nil)
			}
			return accounts.SocialIdentity{Provider: "google", ExternalSub: "sub-1", Email: "social@example.com", Name: "Social Runner"}, nil
		},
	})
}

func doJSON(t *testing.T, router *gin.Engine, method string, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, encodeErr := json.Marshal(body)
		if encodeErr != nil {
			t.Fatalf("encode body: %v", encodeErr)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	for name, value := range headers {
		request.Header.Set(name, value)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func openSession(t *testing.T, router *gin.Engine) map[string]interface{} {
	t.Helper()
	signup := doJSON(t, router, http.MethodPost, "/auth/signup", gin.H{
		"email":    "runner@example.com",
		"password": "hunter2-correct",
		"name":     "Runner",
	}, nil)
	if signup.Code != http.StatusCreated {
		t.Fatalf("signup status %d: %s", signup.Code, signup.Body.String())
	}
	login := doJSON(t, router, http.MethodPost, "/auth/login", gin.H{
		"email":    "runner@example.com",
		"password": "hunter2-correct",
	}, nil)
	if login.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", login.Code, login.Body.String())
	}
	var session map[string]interface{}
	if err := json.Unmarshal(login.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return session
}

func bearer(session map[string]interface{}) map[string]string {
	return map[string]string{"Authorization": "Bearer " + session["access_token"].(string)}
}

func TestAuthFlowEndToEnd(t *testing.T) {
	t.Parallel()

	router := buildTestRouter(t, &stubStravaClient{})
	session := openSession(t, router)

	refresh := doJSON(t, router, http.MethodPost, "/auth/refresh", gin.H{
		"refresh_token": session["refresh_token"],
		"device_id":     session["device_id"],
	}, nil)
	if refresh.Code != http.StatusOK {
		t.Fatalf("refresh status %d: %s", refresh.Code, refresh.Body.String())
	}

	logout := doJSON(t, router, http.MethodPost, "/auth/logout", gin.H{
		"device_id": session["device_id"],
	}, bearer(session))
	if logout.Code != http.StatusNoContent {
		t.Fatalf("logout status %d: %s", logout.Code, logout.Body.String())
	}

	refusedRefresh := doJSON(t, router, http.MethodPost, "/auth/refresh", gin.H{
		"refresh_token": session["refresh_token"],
		"device_id":     session["device_id"],
	}, nil)
	if refusedRefresh.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout must be unauthorized, got %d", refusedRefresh.Code)
	}
}

func TestGoogleLogin(t *testing.T) {
	t.Parallel()

	router := buildTestRouter(t, &stubStravaClient{})

	rejected := doJSON(t, router, http.MethodPost, "/auth/google", gin.H{"google_id_token": "bogus"}, nil)
	if rejected.Code != http.StatusUnauthorized {
		t.Fatalf("bad google token must be unauthorized, got %d", rejected.Code)
	}

	accepted := doJSON(t, router, http.MethodPost, "/auth/google", gin.H{"google_id_token": "valid-google-token"}, nil)
	if accepted.Code != http.StatusOK {
		t.Fatalf("google login status %d: %s", accepted.Code, accepted.Body.String())
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	t.Parallel()

	router := buildTestRouter(t, &stubStravaClient{})

	missing := doJSON(t, router, http.MethodGet, "/trainings", nil, nil)
	if missing.Code != http.StatusUnauthorized {
		t.Fatalf("missing token must be unauthorized, got %d", missing.Code)
	}

	garbage := doJSON(t, router, http.MethodGet, "/trainings", nil, map[string]string{"Authorization": "Bearer garbage"})
	if garbage.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token must be unauthorized, got %d", garbage.Code)
	}
}

func TestSyncAndCachedReads(t *testing.T) {
	t.Parallel()

	stravaClient := &stubStravaClient{activities: []strava.ActivityData{
		{ActivityID: 101, StartDate: time.Now().UTC(), Distance: 5000, ElapsedTime: 1500, AvgSpeed: 3.33},
	}}
	router := buildTestRouter(t, stravaClient)
	session := openSession(t, router)

	connect := doJSON(t, router, http.MethodGet, "/strava/connect?code=auth-code", nil, bearer(session))
	if connect.Code != http.StatusOK {
		t.Fatalf("connect status %d: %s", connect.Code, connect.Body.String())
	}

	sync := doJSON(t, router, http.MethodPost, "/trainings/sync", nil, bearer(session))
	if sync.Code != http.StatusOK {
		t.Fatalf("sync status %d: %s", sync.Code, sync.Body.String())
	}
	var report map[string]int
	if err := json.Unmarshal(sync.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report["created"] != 1 {
		t.Fatalf("expected one created activity, got %+v", report)
	}

	first := doJSON(t, router, http.MethodGet, "/trainings", nil, bearer(session))
	if first.Code != http.StatusOK {
		t.Fatalf("list status %d: %s", first.Code, first.Body.String())
	}
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("list must answer with an ETag")
	}

	headers := bearer(session)
	headers["If-None-Match"] = etag
	second := doJSON(t, router, http.MethodGet, "/trainings", nil, headers)
	if second.Code != http.StatusNotModified {
		t.Fatalf("matching tag must answer 304, got %d", second.Code)
	}

	upload := doJSON(t, router, http.MethodPost, "/trainings", gin.H{
		"distance":     4000,
		"elapsed_time": 1200,
		"title":        "Evening shakeout",
	}, bearer(session))
	if upload.Code != http.StatusCreated {
		t.Fatalf("upload status %d: %s", upload.Code, upload.Body.String())
	}

	third := doJSON(t, router, http.MethodGet, "/trainings", nil, headers)
	if third.Code != http.StatusOK {
		t.Fatalf("upload must invalidate the tag, got %d", third.Code)
	}
	if third.Header().Get("ETag") == etag {
		t.Fatalf("changed data must produce a new tag")
	}
}

func TestActivityDetailAndNotFound(t *testing.T) {
	t.Parallel()

	router := buildTestRouter(t, &stubStravaClient{})
	session := openSession(t, router)

	upload := doJSON(t, router, http.MethodPost, "/trainings", gin.H{
		"distance":     5000,
		"elapsed_time": 1500,
	}, bearer(session))
	if upload.Code != http.StatusCreated {
		t.Fatalf("upload status %d: %s", upload.Code, upload.Body.String())
	}
	var created map[string]interface{}
	if err := json.Unmarshal(upload.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode upload: %v", err)
	}

	detail := doJSON(t, router, http.MethodGet, "/trainings/"+created["id"].(string), nil, bearer(session))
	if detail.Code != http.StatusOK {
		t.Fatalf("detail status %d: %s", detail.Code, detail.Body.String())
	}

	missing := doJSON(t, router, http.MethodGet, "/trainings/"+uuid.NewString(), nil, bearer(session))
	if missing.Code != http.StatusNotFound {
		t.Fatalf("unknown activity must be 404, got %d", missing.Code)
	}

	malformed := doJSON(t, router, http.MethodGet, "/trainings/not-a-uuid", nil, bearer(session))
	if malformed.Code != http.StatusBadRequest {
		t.Fatalf("malformed id must be 400, got %d", malformed.Code)
	}
}

func TestDisconnectProviderIsIdempotent(t *testing.T) {
	t.Parallel()

	router := buildTestRouter(t, &stubStravaClient{})
	session := openSession(t, router)

	first := doJSON(t, router, http.MethodDelete, "/strava/connect", nil, bearer(session))
	if first.Code != http.StatusNoContent {
		t.Fatalf("disconnect without link must be a no-op, got %d", first.Code)
	}
}
