// Package httpapi exposes the service boundary over gin: auth flows,
// provider connect, sync triggers, and the cached activity reads.
package httpapi

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tyemirov/paceline/internal/accounts"
	"github.com/tyemirov/paceline/internal/etagcache"
	"github.com/tyemirov/paceline/internal/storage"
	"github.com/tyemirov/paceline/internal/syncpipe"
	"github.com/tyemirov/paceline/internal/tokens"
)

// AccountFlows is the credential state machine behind /auth.
type AccountFlows interface {
	Signup(ctx context.Context, email string, password string, name string) (storage.User, error)
	Login(ctx context.Context, email string, password string) (accounts.Session, error)
	LoginWithSocial(ctx context.Context, identity accounts.SocialIdentity) (accounts.Session, error)
	Refresh(ctx context.Context, encryptedRefresh string, deviceID uuid.UUID) (string, error)
	Logout(ctx context.Context, userID uuid.UUID, deviceID uuid.UUID) error
}

// ProviderFlows links and unlinks the third-party account.
type ProviderFlows interface {
	Connect(ctx context.Context, userID uuid.UUID, code string) error
	Disconnect(ctx context.Context, userID uuid.UUID) error
}

// SyncFlows triggers ingestion and manual uploads.
type SyncFlows interface {
	SyncNewActivities(ctx context.Context, userID uuid.UUID, since time.Time) (syncpipe.Report, error)
	UploadManualActivity(ctx context.Context, userID uuid.UUID, upload syncpipe.ManualActivity) (storage.Activity, error)
}

// ActivityReader serves the read path behind the ETag cache.
type ActivityReader interface {
	ListActivities(ctx context.Context, userID uuid.UUID, since time.Time) ([]storage.Activity, error)
	GetActivityDetail(ctx context.Context, userID uuid.UUID, activityID uuid.UUID) (storage.ActivityDetail, error)
}

// SocialVerifier validates an external id token and returns the identity.
type SocialVerifier func(ctx context.Context, idToken string) (accounts.SocialIdentity, error)

// Dependencies carries everything the routes need; the process entry point
// owns construction and lifecycle.
type Dependencies struct {
	Accounts       AccountFlows
	Provider       ProviderFlows
	Sync           SyncFlows
	Activities     ActivityReader
	Cache          *etagcache.Cache
	TokenService   *tokens.Service
	VerifyGoogleID SocialVerifier
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter builds the gin engine with CORS and all routes mounted.
func NewRouter(dependencies Dependencies) *gin.Engine {
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(dependencies.Logger))

	corsConfiguration := cors.DefaultConfig()
	if len(dependencies.AllowedOrigins) > 0 {
		corsConfiguration.AllowOrigins = dependencies.AllowedOrigins
	} else {
		corsConfiguration.AllowAllOrigins = true
	}
	corsConfiguration.AllowHeaders = append(corsConfiguration.AllowHeaders, "Authorization", "If-None-Match")
	corsConfiguration.ExposeHeaders = append(corsConfiguration.ExposeHeaders, "ETag")
	router.Use(cors.New(corsConfiguration))

	MountRoutes(router, dependencies)
	return router
}

// MountRoutes registers the public and the token-protected route groups.
func MountRoutes(router gin.IRouter, dependencies Dependencies) {
	mountAuthRoutes(router, dependencies)

	protected := router.Group("/", RequireAccessToken(dependencies.TokenService))
	mountProviderRoutes(protected, dependencies)
	mountTrainingRoutes(protected, dependencies)
}
