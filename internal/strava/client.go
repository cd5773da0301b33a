// Package strava talks to the third-party fitness provider: OAuth token
// grants plus the raw activity, lap, and stream fetches the sync pipeline
// consumes.
package strava

import (
	"context"
	"time"
)

// ProviderName identifies this provider in stored records.
const ProviderName = "strava"

// TokenGrant is the provider's token triple plus the external user identity.
type TokenGrant struct {
	AccessToken    string
	RefreshToken   string
	ExpiresAt      int64
	ProviderUserID string
}

// ActivityData is one raw activity from the provider's listing endpoint.
type ActivityData struct {
	ActivityID   int64
	SportType    string
	StartDate    time.Time
	Distance     float64
	ElapsedTime  int
	AvgSpeed     float64
	MaxSpeed     float64
	AvgHeartrate float64
	MaxHeartrate float64
	AvgCadence   float64
}

// LapData is one split of an activity.
type LapData struct {
	LapIndex      int
	Distance      float64
	ElapsedTime   int
	AvgSpeed      float64
	MaxSpeed      float64
	AvgHeartrate  float64
	MaxHeartrate  float64
	AvgCadence    float64
	ElevationGain float64
}

// StreamData carries the per-sample series of an activity.
type StreamData struct {
	Heartrate []float64
	Cadence   []float64
	Distance  []float64
	Velocity  []float64
	Altitude  []float64
	Time      []float64
}

// Client is the provider boundary consumed by the token manager and the sync
// pipeline. Transport failures surface with the upstream error class; no
// automatic retry is performed.
type Client interface {
	// ExchangeCode trades an authorization code for a token grant.
	ExchangeCode(ctx context.Context, code string) (TokenGrant, error)
	// RefreshGrant trades a refresh token for a fresh grant.
	RefreshGrant(ctx context.Context, refreshToken string) (TokenGrant, error)
	// ListActivities returns activities started after since.
	ListActivities(ctx context.Context, accessToken string, since time.Time) ([]ActivityData, error)
	// FetchLaps returns the splits of one activity.
	FetchLaps(ctx context.Context, accessToken string, activityID int64) ([]LapData, error)
	// FetchStream returns the sample series of one activity.
	FetchStream(ctx context.Context, accessToken string, activityID int64) (StreamData, error)
	// Deauthorize revokes the grant at the provider; best effort.
	Deauthorize(ctx context.Context, accessToken string) error
}
