package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tyemirov/paceline/internal/fault"
)

// UpsertProviderToken stores the encrypted token triple for (user, provider).
// A reconnect or refresh cycle overwrites all three secret fields.
func (store *Store) UpsertProviderToken(ctx context.Context, record ProviderToken) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	err := store.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider_user_id", "encrypted_access", "encrypted_refresh", "expires_at",
		}),
	}).Create(&record).Error
	if err != nil {
		return store.storageError("upsert_provider_token", err)
	}
	return nil
}

// GetProviderToken loads the token triple for (user, provider).
func (store *Store) GetProviderToken(ctx context.Context, userID uuid.UUID, provider string) (ProviderToken, error) {
	var record ProviderToken
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProviderToken{}, fault.Wrap(fault.ErrNotFound, "storage.get_provider_token", err)
		}
		return ProviderToken{}, store.storageError("get_provider_token", err)
	}
	return record, nil
}

// DeleteProviderToken removes the link row; idempotent when already absent.
func (store *Store) DeleteProviderToken(ctx context.Context, userID uuid.UUID, provider string) error {
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&ProviderToken{}).Error
	if err != nil {
		return store.storageError("delete_provider_token", err)
	}
	return nil
}

// ListConnectedProviders reports which providers the user has linked.
func (store *Store) ListConnectedProviders(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var providers []string
	err := store.db.WithContext(ctx).
		Model(&ProviderToken{}).
		Where("user_id = ?", userID).
		Order("provider").
		Pluck("provider", &providers).Error
	if err != nil {
		return nil, store.storageError("list_connected_providers", err)
	}
	return providers, nil
}
