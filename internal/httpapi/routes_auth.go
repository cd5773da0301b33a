package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tyemirov/paceline/internal/accounts"
)

func mountAuthRoutes(router gin.IRouter, dependencies Dependencies) {
	router.POST("/auth/signup", func(contextGin *gin.Context) {
		var inbound struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Name     string `json:"name"`
		}
		if err := contextGin.BindJSON(&inbound); err != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		user, signupErr := dependencies.Accounts.Signup(contextGin, inbound.Email, inbound.Password, inbound.Name)
		if signupErr != nil {
			abortWithFault(contextGin, signupErr)
			return
		}
		contextGin.JSON(http.StatusCreated, gin.H{
			"user_id": user.ID,
			"email":   user.Email,
		})
	})

	router.POST("/auth/login", func(contextGin *gin.Context) {
		var inbound struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := contextGin.BindJSON(&inbound); err != nil || strings.TrimSpace(inbound.Email) == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		session, loginErr := dependencies.Accounts.Login(contextGin, inbound.Email, inbound.Password)
		if loginErr != nil {
			abortWithFault(contextGin, loginErr)
			return
		}
		writeSession(contextGin, session)
	})

	router.POST("/auth/google", func(contextGin *gin.Context) {
		var inbound struct {
			GoogleIDToken string `json:"google_id_token"`
		}
		if err := contextGin.BindJSON(&inbound); err != nil || strings.TrimSpace(inbound.GoogleIDToken) == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		identity, verifyErr := dependencies.VerifyGoogleID(contextGin, inbound.GoogleIDToken)
		if verifyErr != nil {
			abortWithFault(contextGin, verifyErr)
			return
		}
		session, loginErr := dependencies.Accounts.LoginWithSocial(contextGin, identity)
		if loginErr != nil {
			abortWithFault(contextGin, loginErr)
			return
		}
		writeSession(contextGin, session)
	})

	router.POST("/auth/refresh", func(contextGin *gin.Context) {
		var inbound struct {
			RefreshToken string `json:"refresh_token"`
			DeviceID     string `json:"device_id"`
		}
		if err := contextGin.BindJSON(&inbound); err != nil || strings.TrimSpace(inbound.RefreshToken) == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		deviceID, parseErr := uuid.Parse(inbound.DeviceID)
		if parseErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_device_id"})
			return
		}
		accessToken, refreshErr := dependencies.Accounts.Refresh(contextGin, inbound.RefreshToken, deviceID)
		if refreshErr != nil {
			abortWithFault(contextGin, refreshErr)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"access_token": accessToken})
	})

	router.POST("/auth/logout", RequireAccessToken(dependencies.TokenService), func(contextGin *gin.Context) {
		var inbound struct {
			DeviceID string `json:"device_id"`
		}
		if err := contextGin.BindJSON(&inbound); err != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		deviceID, parseErr := uuid.Parse(inbound.DeviceID)
		if parseErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_device_id"})
			return
		}
		userID, ok := authenticatedUserID(contextGin)
		if !ok {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if logoutErr := dependencies.Accounts.Logout(contextGin, userID, deviceID); logoutErr != nil {
			abortWithFault(contextGin, logoutErr)
			return
		}
		contextGin.Status(http.StatusNoContent)
	})
}

func writeSession(contextGin *gin.Context, session accounts.Session) {
	providers := session.ConnectedProviders
	if providers == nil {
		providers = []string{}
	}
	contextGin.JSON(http.StatusOK, gin.H{
		"user_id":             session.UserID,
		"device_id":           session.DeviceID,
		"access_token":        session.AccessToken,
		"refresh_token":       session.RefreshToken,
		"connected_providers": providers,
	})
}
