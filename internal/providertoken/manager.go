// Package providertoken owns the third-party token lifecycle: the initial
// code exchange and the expiry-triggered refresh cycle. Both secrets are
// stored encrypted under the provider vault purpose.
package providertoken

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tyemirov/paceline/internal/fault"
	"github.com/tyemirov/paceline/internal/storage"
	"github.com/tyemirov/paceline/internal/strava"
	"github.com/tyemirov/paceline/internal/tokens"
	"github.com/tyemirov/paceline/internal/vault"
)

// TokenStore is the persistence slice the manager needs.
type TokenStore interface {
	UpsertProviderToken(ctx context.Context, record storage.ProviderToken) error
	GetProviderToken(ctx context.Context, userID uuid.UUID, provider string) (storage.ProviderToken, error)
	DeleteProviderToken(ctx context.Context, userID uuid.UUID, provider string) error
}

// Manager persists and refreshes one provider's token triple per user.
type Manager struct {
	store        TokenStore
	secretsVault *vault.Vault
	client       strava.Client
	clock        tokens.Clock
	logger       *zap.Logger
	refreshGroup singleflight.Group
}

// NewManager constructs a provider token manager.
func NewManager(store TokenStore, secretsVault *vault.Vault, client strava.Client, clock tokens.Clock, logger *zap.Logger) *Manager {
	if clock == nil {
		clock = tokens.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:        store,
		secretsVault: secretsVault,
		client:       client,
		clock:        clock,
		logger:       logger,
	}
}

// Connect exchanges an authorization code for a grant and upserts the
// (user, provider) record. A reconnect supersedes the old grant entirely.
func (manager *Manager) Connect(ctx context.Context, userID uuid.UUID, code string) error {
	grant, exchangeErr := manager.client.ExchangeCode(ctx, code)
	if exchangeErr != nil {
		return exchangeErr
	}
	if saveErr := manager.saveGrant(ctx, userID, grant); saveErr != nil {
		return saveErr
	}
	manager.logger.Info("provider connected",
		zap.String("user_id", userID.String()),
		zap.String("provider", strava.ProviderName),
	)
	return nil
}

// AccessToken returns a valid plaintext access token for the user, refreshing
// the stored grant first when it has expired. Concurrent callers for the same
// user share one refresh via the single-flight group, so the provider sees at
// most one refresh call per expiry.
func (manager *Manager) AccessToken(ctx context.Context, userID uuid.UUID) (string, error) {
	record, loadErr := manager.store.GetProviderToken(ctx, userID, strava.ProviderName)
	if loadErr != nil {
		if errors.Is(loadErr, fault.ErrNotFound) {
			return "", fault.Wrap(fault.ErrNotFound, "providertoken.not_connected", loadErr)
		}
		return "", loadErr
	}

	if record.ExpiresAt > manager.clock.Now().Unix() {
		return manager.secretsVault.Decrypt(record.EncryptedAccess, vault.PurposeProvider)
	}

	accessToken, refreshErr, _ := manager.refreshGroup.Do(userID.String(), func() (interface{}, error) {
		return manager.refreshGrant(ctx, userID, record)
	})
	if refreshErr != nil {
		return "", refreshErr
	}
	return accessToken.(string), nil
}

// Disconnect revokes the grant at the provider (best effort) and deletes the
// stored record; idempotent when no link exists.
func (manager *Manager) Disconnect(ctx context.Context, userID uuid.UUID) error {
	record, loadErr := manager.store.GetProviderToken(ctx, userID, strava.ProviderName)
	if loadErr != nil {
		if errors.Is(loadErr, fault.ErrNotFound) {
			return nil
		}
		return loadErr
	}
	accessToken, decryptErr := manager.secretsVault.Decrypt(record.EncryptedAccess, vault.PurposeProvider)
	if decryptErr == nil {
		if deauthErr := manager.client.Deauthorize(ctx, accessToken); deauthErr != nil {
			manager.logger.Warn("provider deauthorize failed",
				zap.String("user_id", userID.String()),
				zap.Error(deauthErr),
			)
		}
	}
	return manager.store.DeleteProviderToken(ctx, userID, strava.ProviderName)
}

func (manager *Manager) refreshGrant(ctx context.Context, userID uuid.UUID, record storage.ProviderToken) (string, error) {
	refreshToken, decryptErr := manager.secretsVault.Decrypt(record.EncryptedRefresh, vault.PurposeProvider)
	if decryptErr != nil {
		return "", decryptErr
	}
	grant, refreshErr := manager.client.RefreshGrant(ctx, refreshToken)
	if refreshErr != nil {
		return "", refreshErr
	}
	grant.ProviderUserID = record.ProviderUserID
	if saveErr := manager.saveGrant(ctx, userID, grant); saveErr != nil {
		return "", saveErr
	}
	manager.logger.Info("provider token refreshed", zap.String("user_id", userID.String()))
	return grant.AccessToken, nil
}

func (manager *Manager) saveGrant(ctx context.Context, userID uuid.UUID, grant strava.TokenGrant) error {
	encryptedAccess, accessErr := manager.secretsVault.Encrypt(grant.AccessToken, vault.PurposeProvider)
	if accessErr != nil {
		return accessErr
	}
	encryptedRefresh, refreshErr := manager.secretsVault.Encrypt(grant.RefreshToken, vault.PurposeProvider)
	if refreshErr != nil {
		return refreshErr
	}
	return manager.store.UpsertProviderToken(ctx, storage.ProviderToken{
		UserID:           userID,
		Provider:         strava.ProviderName,
		ProviderUserID:   grant.ProviderUserID,
		EncryptedAccess:  encryptedAccess,
		EncryptedRefresh: encryptedRefresh,
		ExpiresAt:        grant.ExpiresAt,
	})
}
