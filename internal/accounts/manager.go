// Package accounts implements the credential state machine: signup, login,
// refresh, and logout over per-device encrypted refresh tokens.
package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tyemirov/paceline/internal/fault"
	"github.com/tyemirov/paceline/internal/storage"
	"github.com/tyemirov/paceline/internal/tokens"
	"github.com/tyemirov/paceline/internal/vault"
)

// SessionStore is the persistence slice the manager needs.
type SessionStore interface {
	CreateUser(ctx context.Context, email string, hashedPwd string, name string) (storage.User, error)
	GetUserByEmail(ctx context.Context, email string) (storage.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (storage.User, error)
	UpsertSocialUser(ctx context.Context, provider string, externalSub string, email string, name string) (storage.User, error)
	UpsertRefreshToken(ctx context.Context, userID uuid.UUID, deviceID uuid.UUID, encryptedToken string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, userID uuid.UUID, deviceID uuid.UUID) (storage.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, userID uuid.UUID, deviceID uuid.UUID) error
	ListConnectedProviders(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// SocialIdentity is a verified identity from an external login provider.
type SocialIdentity struct {
	Provider    string
	ExternalSub string
	Email       string
	Name        string
}

// Session is the credential set handed to a client after login. RefreshToken
// is the encrypted form; the client presents it back verbatim on refresh.
type Session struct {
	UserID             uuid.UUID
	DeviceID           uuid.UUID
	AccessToken        string
	RefreshToken       string
	ConnectedProviders []string
}

// Manager owns the login/refresh/logout flows.
type Manager struct {
	store        SessionStore
	secretsVault *vault.Vault
	tokenService *tokens.Service
	logger       *zap.Logger
}

// NewManager constructs an account manager.
func NewManager(store SessionStore, secretsVault *vault.Vault, tokenService *tokens.Service, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:        store,
		secretsVault: secretsVault,
		tokenService: tokenService,
		logger:       logger,
	}
}

// Signup creates a local account. The password is bcrypt-hashed; a duplicate
// email surfaces as a validation failure.
func (manager *Manager) Signup(ctx context.Context, email string, password string, name string) (storage.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return storage.User{}, fault.Wrap(fault.ErrValidation, "accounts.signup.missing_fields", nil)
	}
	hashed, hashErr := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if hashErr != nil {
		return storage.User{}, fault.Internal("accounts.signup.hash", hashErr)
	}
	user, createErr := manager.store.CreateUser(ctx, email, string(hashed), name)
	if createErr != nil {
		return storage.User{}, createErr
	}
	manager.logger.Info("account created", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Login verifies the password and opens a device-scoped session: a new device
// id, a stateless access token, and an encrypted refresh token persisted for
// that device. Wrong password and unknown email fail identically.
func (manager *Manager) Login(ctx context.Context, email string, password string) (Session, error) {
	user, lookupErr := manager.store.GetUserByEmail(ctx, email)
	if lookupErr != nil {
		if errors.Is(lookupErr, fault.ErrNotFound) {
			return Session{}, fault.Wrap(fault.ErrTokenInvalid, "accounts.login.bad_credentials", lookupErr)
		}
		return Session{}, lookupErr
	}
	if user.HashedPwd == "" {
		// Social-login accounts have no password to check.
		return Session{}, fault.Wrap(fault.ErrTokenInvalid, "accounts.login.bad_credentials", nil)
	}
	if compareErr := bcrypt.CompareHashAndPassword([]byte(user.HashedPwd), []byte(password)); compareErr != nil {
		return Session{}, fault.Wrap(fault.ErrTokenInvalid, "accounts.login.bad_credentials", compareErr)
	}
	return manager.openSession(ctx, user)
}

// LoginWithSocial upserts the account behind a verified external identity and
// opens a session the same way password login does.
func (manager *Manager) LoginWithSocial(ctx context.Context, identity SocialIdentity) (Session, error) {
	if identity.ExternalSub == "" || identity.Email == "" {
		return Session{}, fault.Wrap(fault.ErrValidation, "accounts.social.missing_identity", nil)
	}
	user, upsertErr := manager.store.UpsertSocialUser(ctx, identity.Provider, identity.ExternalSub, identity.Email, identity.Name)
	if upsertErr != nil {
		return Session{}, upsertErr
	}
	return manager.openSession(ctx, user)
}

// Refresh mints a new access token for a presented refresh credential. The
// client credential is the encrypted blob issued at login: it must decrypt,
// verify as a refresh-typed token, and byte-match the stored credential for
// (user, device). No rotation happens here; the refresh token stays valid
// until logout or its own expiry.
func (manager *Manager) Refresh(ctx context.Context, encryptedRefresh string, deviceID uuid.UUID) (string, error) {
	plainRefresh, decryptErr := manager.secretsVault.Decrypt(encryptedRefresh, vault.PurposeAccountRefresh)
	if decryptErr != nil {
		return "", fault.Wrap(fault.ErrTokenInvalid, "accounts.refresh.decrypt", decryptErr)
	}
	claims, verifyErr := manager.tokenService.Verify(plainRefresh, tokens.TypeRefresh)
	if verifyErr != nil {
		return "", verifyErr
	}

	record, lookupErr := manager.store.GetRefreshToken(ctx, claims.UserID, deviceID)
	if lookupErr != nil {
		if errors.Is(lookupErr, fault.ErrNotFound) {
			return "", fault.Wrap(fault.ErrTokenInvalid, "accounts.refresh.unknown_device", lookupErr)
		}
		return "", lookupErr
	}
	storedPlain, storedErr := manager.secretsVault.Decrypt(record.EncryptedToken, vault.PurposeAccountRefresh)
	if storedErr != nil {
		return "", fault.Internal("accounts.refresh.stored_decrypt", storedErr)
	}
	if storedPlain != plainRefresh {
		// A superseded credential for this device, e.g. after a re-login.
		return "", fault.Wrap(fault.ErrTokenInvalid, "accounts.refresh.superseded", nil)
	}

	accessToken, mintErr := manager.tokenService.IssueAccess(claims.UserID)
	if mintErr != nil {
		return "", mintErr
	}
	return accessToken, nil
}

// Logout deletes the device's refresh record. Other devices stay logged in;
// repeating a logout is a no-op.
func (manager *Manager) Logout(ctx context.Context, userID uuid.UUID, deviceID uuid.UUID) error {
	return manager.store.DeleteRefreshToken(ctx, userID, deviceID)
}

func (manager *Manager) openSession(ctx context.Context, user storage.User) (Session, error) {
	accessToken, accessErr := manager.tokenService.IssueAccess(user.ID)
	if accessErr != nil {
		return Session{}, accessErr
	}
	plainRefresh, refreshExpiresAt, refreshErr := manager.tokenService.IssueRefresh(user.ID)
	if refreshErr != nil {
		return Session{}, refreshErr
	}
	encryptedRefresh, encryptErr := manager.secretsVault.Encrypt(plainRefresh, vault.PurposeAccountRefresh)
	if encryptErr != nil {
		return Session{}, encryptErr
	}

	deviceID := uuid.New()
	if upsertErr := manager.store.UpsertRefreshToken(ctx, user.ID, deviceID, encryptedRefresh, refreshExpiresAt); upsertErr != nil {
		return Session{}, upsertErr
	}

	providers, providersErr := manager.store.ListConnectedProviders(ctx, user.ID)
	if providersErr != nil {
		return Session{}, providersErr
	}

	manager.logger.Info("session opened",
		zap.String("user_id", user.ID.String()),
		zap.String("device_id", deviceID.String()),
	)
	return Session{
		UserID:             user.ID,
		DeviceID:           deviceID,
		AccessToken:        accessToken,
		RefreshToken:       encryptedRefresh,
		ConnectedProviders: providers,
	}, nil
}
