package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tyemirov/paceline/internal/fault"
)

// CreateUser inserts a local account. A duplicate email fails with the
// validation class so signup can report it without leaking storage detail.
func (store *Store) CreateUser(ctx context.Context, email string, hashedPwd string, name string) (User, error) {
	record := User{
		ID:        uuid.New(),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		HashedPwd: hashedPwd,
		Name:      name,
		Provider:  "local",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return User{}, fault.Wrap(fault.ErrValidation, "storage.create_user.duplicate_email", err)
		}
		return User{}, store.storageError("create_user", err)
	}
	return record, nil
}

// GetUserByEmail loads an account by its lowercased email.
func (store *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var record User
	err := store.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, fault.Wrap(fault.ErrNotFound, "storage.get_user_by_email", err)
		}
		return User{}, store.storageError("get_user_by_email", err)
	}
	return record, nil
}

// GetUserByID loads an account by its identifier.
func (store *Store) GetUserByID(ctx context.Context, userID uuid.UUID) (User, error) {
	var record User
	err := store.db.WithContext(ctx).Where("id = ?", userID).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, fault.Wrap(fault.ErrNotFound, "storage.get_user_by_id", err)
		}
		return User{}, store.storageError("get_user_by_id", err)
	}
	return record, nil
}

// UpsertSocialUser finds or creates an account for a social-login identity.
// An existing row matched by external subject is returned untouched.
func (store *Store) UpsertSocialUser(ctx context.Context, provider string, externalSub string, email string, name string) (User, error) {
	var record User
	err := store.db.WithContext(ctx).
		Where("provider = ? AND external_sub = ?", provider, externalSub).
		Take(&record).Error
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, store.storageError("upsert_social_user", err)
	}
	record = User{
		ID:          uuid.New(),
		Email:       strings.ToLower(strings.TrimSpace(email)),
		Name:        name,
		Provider:    provider,
		ExternalSub: externalSub,
		CreatedAt:   time.Now().UTC(),
	}
	if createErr := store.db.WithContext(ctx).Create(&record).Error; createErr != nil {
		if errors.Is(createErr, gorm.ErrDuplicatedKey) {
			return User{}, fault.Wrap(fault.ErrValidation, "storage.upsert_social_user.duplicate_email", createErr)
		}
		return User{}, store.storageError("upsert_social_user", createErr)
	}
	return record, nil
}

// UpsertRefreshToken stores the encrypted refresh credential for one device.
// A login on an existing device overwrites the previous row.
func (store *Store) UpsertRefreshToken(ctx context.Context, userID uuid.UUID, deviceID uuid.UUID, encryptedToken string, expiresAt time.Time) error {
	record := RefreshToken{
		ID:             uuid.New(),
		UserID:         userID,
		DeviceID:       deviceID,
		EncryptedToken: encryptedToken,
		ExpiresAt:      expiresAt.Unix(),
		IssuedAt:       time.Now().UTC().Unix(),
	}
	err := store.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"encrypted_token", "expires_at", "issued_at"}),
	}).Create(&record).Error
	if err != nil {
		return store.storageError("upsert_refresh_token", err)
	}
	return nil
}

// GetRefreshToken loads the stored refresh credential for (user, device).
func (store *Store) GetRefreshToken(ctx context.Context, userID uuid.UUID, deviceID uuid.UUID) (RefreshToken, error) {
	var record RefreshToken
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RefreshToken{}, fault.Wrap(fault.ErrNotFound, "storage.get_refresh_token", err)
		}
		return RefreshToken{}, store.storageError("get_refresh_token", err)
	}
	return record, nil
}

// DeleteRefreshToken removes the row for (user, device). Deleting an absent
// row is a no-op so logout stays idempotent.
func (store *Store) DeleteRefreshToken(ctx context.Context, userID uuid.UUID, deviceID uuid.UUID) error {
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Delete(&RefreshToken{}).Error
	if err != nil {
		return store.storageError("delete_refresh_token", err)
	}
	return nil
}
