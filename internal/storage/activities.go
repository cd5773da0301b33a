package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tyemirov/paceline/internal/fault"
)

// InsertOutcome makes the ingestion loop's intent explicit: a duplicate
// external id is a recognized no-op, not an error the caller has to fish out
// of the storage layer.
type InsertOutcome int

const (
	// InsertCreated means a new activity row (plus children) was written.
	InsertCreated InsertOutcome = iota
	// InsertDuplicate means the (provider, external id) pair already exists.
	InsertDuplicate
)

// ActivityDetail bundles an activity with its child records for the read path.
type ActivityDetail struct {
	Activity Activity
	Laps     []Lap
	Stream   *Stream
}

// CreateActivity persists the activity together with its laps and stream in
// one transaction. The uniqueness constraint on (provider, external id) is
// the duplicate detector; there is no pre-check, so concurrent ingestions of
// the same activity cannot race into two rows.
func (store *Store) CreateActivity(ctx context.Context, activity Activity, laps []Lap, stream *Stream) (InsertOutcome, error) {
	if activity.ID == uuid.Nil {
		activity.ID = uuid.New()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}
	transactionErr := store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&activity).Error; err != nil {
			return err
		}
		for index := range laps {
			laps[index].ID = uuid.New()
			laps[index].ActivityID = activity.ID
		}
		if len(laps) > 0 {
			if err := tx.Create(&laps).Error; err != nil {
				return err
			}
		}
		if stream != nil {
			stream.ActivityID = activity.ID
			if err := tx.Create(stream).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if transactionErr != nil {
		if isDuplicateKey(transactionErr) {
			return InsertDuplicate, nil
		}
		return 0, store.storageError("create_activity", transactionErr)
	}
	return InsertCreated, nil
}

// ListActivities returns the user's activities starting at since, newest
// first.
func (store *Store) ListActivities(ctx context.Context, userID uuid.UUID, since time.Time) ([]Activity, error) {
	var records []Activity
	query := store.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("start_date DESC")
	if !since.IsZero() {
		query = query.Where("start_date >= ?", since)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, store.storageError("list_activities", err)
	}
	return records, nil
}

// GetActivityDetail loads one activity with its laps and stream.
func (store *Store) GetActivityDetail(ctx context.Context, userID uuid.UUID, activityID uuid.UUID) (ActivityDetail, error) {
	var activity Activity
	err := store.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", activityID, userID).
		Take(&activity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ActivityDetail{}, fault.Wrap(fault.ErrNotFound, "storage.get_activity_detail", err)
		}
		return ActivityDetail{}, store.storageError("get_activity_detail", err)
	}

	var laps []Lap
	if err := store.db.WithContext(ctx).Where("activity_id = ?", activity.ID).Order("lap_index").Find(&laps).Error; err != nil {
		return ActivityDetail{}, store.storageError("get_activity_laps", err)
	}

	var stream Stream
	detail := ActivityDetail{Activity: activity, Laps: laps}
	streamErr := store.db.WithContext(ctx).Where("activity_id = ?", activity.ID).Take(&stream).Error
	if streamErr == nil {
		detail.Stream = &stream
	} else if !errors.Is(streamErr, gorm.ErrRecordNotFound) {
		return ActivityDetail{}, store.storageError("get_activity_stream", streamErr)
	}
	return detail, nil
}

// DeleteActivity removes an activity and cascades to its laps and stream.
func (store *Store) DeleteActivity(ctx context.Context, userID uuid.UUID, activityID uuid.UUID) error {
	transactionErr := store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var activity Activity
		if err := tx.Where("id = ? AND user_id = ?", activityID, userID).Take(&activity).Error; err != nil {
			return err
		}
		if err := tx.Where("activity_id = ?", activity.ID).Delete(&Lap{}).Error; err != nil {
			return err
		}
		if err := tx.Where("activity_id = ?", activity.ID).Delete(&Stream{}).Error; err != nil {
			return err
		}
		return tx.Delete(&activity).Error
	})
	if transactionErr != nil {
		if errors.Is(transactionErr, gorm.ErrRecordNotFound) {
			return fault.Wrap(fault.ErrNotFound, "storage.delete_activity", transactionErr)
		}
		return store.storageError("delete_activity", transactionErr)
	}
	return nil
}

// isDuplicateKey recognizes unique-constraint violations across drivers.
// GORM translates most of them; the string checks cover driver versions that
// return the raw error.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := err.Error()
	return strings.Contains(message, "UNIQUE constraint failed") ||
		strings.Contains(message, "SQLSTATE 23505") ||
		strings.Contains(message, "duplicate key value")
}
