package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tyemirov/paceline/internal/fault"
	"github.com/tyemirov/paceline/internal/tokens"
)

const contextUserIDKey = "authenticated_user_id"

// RequireAccessToken validates the bearer token and stashes the user id for
// downstream handlers. Expired and invalid tokens answer with their distinct
// public messages so clients can tell when to refresh.
func RequireAccessToken(tokenService *tokens.Service) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		authorization := contextGin.GetHeader("Authorization")
		if !strings.HasPrefix(authorization, "Bearer ") {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, verifyErr := tokenService.Verify(strings.TrimPrefix(authorization, "Bearer "), tokens.TypeAccess)
		if verifyErr != nil {
			contextGin.AbortWithStatusJSON(fault.HTTPStatus(verifyErr), gin.H{"error": fault.PublicMessage(verifyErr)})
			return
		}
		contextGin.Set(contextUserIDKey, claims.UserID)
		contextGin.Next()
	}
}

// authenticatedUserID reads the user id set by RequireAccessToken.
func authenticatedUserID(contextGin *gin.Context) (uuid.UUID, bool) {
	value, exists := contextGin.Get(contextUserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok
}

// abortWithFault maps a component error onto its status and public message.
func abortWithFault(contextGin *gin.Context, err error) {
	contextGin.AbortWithStatusJSON(fault.HTTPStatus(err), gin.H{"error": fault.PublicMessage(err)})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", time.Since(startTime)),
		)
	}
}
