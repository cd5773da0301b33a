package storage

import (
	"time"

	"github.com/google/uuid"
)

// User is an application account. Password-less rows belong to social-login
// users; Provider records which identity source created the account.
type User struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Email       string    `gorm:"column:email;uniqueIndex;not null"`
	HashedPwd   string    `gorm:"column:hashed_pwd;not null;default:''"`
	Name        string    `gorm:"column:name;not null;default:''"`
	Provider    string    `gorm:"column:provider;not null;default:'local'"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	ExternalSub string    `gorm:"column:external_sub;index;not null;default:''"`
}

// TableName pins the table name independent of pluralization settings.
func (User) TableName() string {
	return "users"
}

// RefreshToken is the encrypted per-device refresh credential. One row per
// (user, device); re-login on the same device overwrites the row.
type RefreshToken struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;uniqueIndex:uq_user_device;not null"`
	DeviceID       uuid.UUID `gorm:"column:device_id;type:uuid;uniqueIndex:uq_user_device;not null"`
	EncryptedToken string    `gorm:"column:encrypted_token;not null"`
	ExpiresAt      int64     `gorm:"column:expires_at;not null"`
	IssuedAt       int64     `gorm:"column:issued_at;not null"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// ProviderToken is the encrypted third-party token triple. One row per
// (user, provider); reconnects and refresh cycles overwrite all three fields.
type ProviderToken struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID `gorm:"column:user_id;type:uuid;uniqueIndex:uq_user_provider;not null"`
	Provider         string    `gorm:"column:provider;uniqueIndex:uq_user_provider;not null"`
	ProviderUserID   string    `gorm:"column:provider_user_id;not null;default:''"`
	EncryptedAccess  string    `gorm:"column:encrypted_access;not null"`
	EncryptedRefresh string    `gorm:"column:encrypted_refresh;not null"`
	ExpiresAt        int64     `gorm:"column:expires_at;not null"`
}

func (ProviderToken) TableName() string {
	return "provider_tokens"
}

// Activity is one ingested or manually uploaded training session. The pair
// (provider, external_activity_id) is globally unique; re-ingesting the same
// external id is a no-op.
type Activity struct {
	ID                   uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID               uuid.UUID `gorm:"column:user_id;type:uuid;index;not null"`
	Provider             string    `gorm:"column:provider;uniqueIndex:uq_provider_activity;not null;default:''"`
	ExternalActivityID   int64     `gorm:"column:external_activity_id;uniqueIndex:uq_provider_activity;not null;default:0"`
	StartDate            time.Time `gorm:"column:start_date;index;not null"`
	Distance             float64   `gorm:"column:distance;not null;default:0"`
	ElapsedTime          int       `gorm:"column:elapsed_time;not null;default:0"`
	AvgSpeed             float64   `gorm:"column:avg_speed;not null;default:0"`
	MaxSpeed             float64   `gorm:"column:max_speed;not null;default:0"`
	AvgHeartrate         float64   `gorm:"column:avg_heartrate;not null;default:0"`
	MaxHeartrate         float64   `gorm:"column:max_heartrate;not null;default:0"`
	AvgCadence           float64   `gorm:"column:avg_cadence;not null;default:0"`
	Title                string    `gorm:"column:title;not null;default:''"`
	ClassificationDetail string    `gorm:"column:classification_detail;not null;default:''"`
	CreatedAt            time.Time `gorm:"column:created_at"`

	Laps   []Lap   `gorm:"foreignKey:ActivityID;constraint:OnDelete:CASCADE"`
	Stream *Stream `gorm:"foreignKey:ActivityID;constraint:OnDelete:CASCADE"`
}

func (Activity) TableName() string {
	return "activities"
}

// Lap is a per-lap split, created only together with its parent activity.
type Lap struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ActivityID    uuid.UUID `gorm:"column:activity_id;type:uuid;index;not null"`
	LapIndex      int       `gorm:"column:lap_index;not null"`
	Distance      float64   `gorm:"column:distance;not null;default:0"`
	ElapsedTime   int       `gorm:"column:elapsed_time;not null;default:0"`
	AvgSpeed      float64   `gorm:"column:avg_speed;not null;default:0"`
	MaxSpeed      float64   `gorm:"column:max_speed;not null;default:0"`
	AvgHeartrate  float64   `gorm:"column:avg_heartrate;not null;default:0"`
	MaxHeartrate  float64   `gorm:"column:max_heartrate;not null;default:0"`
	AvgCadence    float64   `gorm:"column:avg_cadence;not null;default:0"`
	ElevationGain float64   `gorm:"column:elevation_gain;not null;default:0"`
}

func (Lap) TableName() string {
	return "laps"
}

// Stream holds the raw per-second sample arrays for one activity, serialized
// as JSON columns.
type Stream struct {
	ActivityID uuid.UUID `gorm:"column:activity_id;type:uuid;primaryKey"`
	Heartrate  []float64 `gorm:"column:heartrate;serializer:json"`
	Cadence    []float64 `gorm:"column:cadence;serializer:json"`
	Distance   []float64 `gorm:"column:distance;serializer:json"`
	Velocity   []float64 `gorm:"column:velocity;serializer:json"`
	Altitude   []float64 `gorm:"column:altitude;serializer:json"`
	Time       []float64 `gorm:"column:time;serializer:json"`
}

func (Stream) TableName() string {
	return "streams"
}
