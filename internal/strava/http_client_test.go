package strava

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tyemirov/paceline/internal/fault"
)

func TestListActivitiesParsesAndDoublesCadence(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/athlete/activities" {
			t.Errorf("unexpected path %s", request.URL.Path)
		}
		if request.Header.Get("Authorization") != "Bearer token-123" {
			t.Errorf("missing bearer header")
		}
		if request.URL.Query().Get("per_page") != "100" {
			t.Errorf("expected per_page=100, got %s", request.URL.Query().Get("per_page"))
		}
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`[{
			"id": 101,
			"sport_type": "Run",
			"start_date_local": "2026-08-20T06:30:00Z",
			"distance": 10000.5,
			"elapsed_time": 3000,
			"average_speed": 3.33,
			"max_speed": 4.5,
			"average_heartrate": 150,
			"max_heartrate": 175,
			"average_cadence": 85
		}]`))
	}))
	defer server.Close()

	client := NewHTTPClient(Config{APIBaseURL: server.URL})
	activities, err := client.ListActivities(context.Background(), "token-123", time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("list activities: %v", err)
	}
	if len(activities) != 1 {
		t.Fatalf("expected one activity, got %d", len(activities))
	}
	activity := activities[0]
	if activity.ActivityID != 101 {
		t.Fatalf("expected id 101, got %d", activity.ActivityID)
	}
	if activity.AvgCadence != 170 {
		t.Fatalf("cadence must be doubled, got %v", activity.AvgCadence)
	}
	if activity.StartDate.IsZero() {
		t.Fatalf("start date must parse")
	}
}

func TestFetchLapsParses(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/activities/101/laps" {
			t.Errorf("unexpected path %s", request.URL.Path)
		}
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`[
			{"lap_index": 1, "distance": 400, "elapsed_time": 96, "average_speed": 4.16, "average_cadence": 90, "total_elevation_gain": 2.5},
			{"lap_index": 2, "distance": 400, "elapsed_time": 168, "average_speed": 2.38, "average_cadence": 80, "total_elevation_gain": 1.0}
		]`))
	}))
	defer server.Close()

	client := NewHTTPClient(Config{APIBaseURL: server.URL})
	laps, err := client.FetchLaps(context.Background(), "token-123", 101)
	if err != nil {
		t.Fatalf("fetch laps: %v", err)
	}
	if len(laps) != 2 {
		t.Fatalf("expected two laps, got %d", len(laps))
	}
	if laps[0].AvgCadence != 180 {
		t.Fatalf("lap cadence must be doubled, got %v", laps[0].AvgCadence)
	}
	if laps[1].ElevationGain != 1.0 {
		t.Fatalf("expected elevation gain 1.0, got %v", laps[1].ElevationGain)
	}
}

func TestFetchStreamParses(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Query().Get("key_by_type") != "true" {
			t.Errorf("expected key_by_type=true")
		}
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{
			"heartrate": {"data": [120, 130]},
			"cadence": {"data": [80, 82]},
			"distance": {"data": [0, 10]},
			"velocity_smooth": {"data": [3.2, 3.4]},
			"altitude": {"data": [12, 13]},
			"time": {"data": [0, 1]}
		}`))
	}))
	defer server.Close()

	client := NewHTTPClient(Config{APIBaseURL: server.URL})
	stream, err := client.FetchStream(context.Background(), "token-123", 101)
	if err != nil {
		t.Fatalf("fetch stream: %v", err)
	}
	if len(stream.Heartrate) != 2 || stream.Heartrate[0] != 120 {
		t.Fatalf("unexpected heartrate series %v", stream.Heartrate)
	}
	if stream.Cadence[0] != 160 || stream.Cadence[1] != 164 {
		t.Fatalf("stream cadence must be doubled, got %v", stream.Cadence)
	}
}

func TestUpstreamStatusMapsToUpstreamClass(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewHTTPClient(Config{APIBaseURL: server.URL})
	if _, err := client.ListActivities(context.Background(), "token-123", time.Unix(1000, 0)); !errors.Is(err, fault.ErrUpstream) {
		t.Fatalf("expected upstream class, got %v", err)
	}
}

func TestRefreshGrantKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"access_token": "new-access", "token_type": "Bearer", "expires_in": 3600}`))
	}))
	defer server.Close()

	client := NewHTTPClient(Config{TokenURL: server.URL})
	grant, err := client.RefreshGrant(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("refresh grant: %v", err)
	}
	if grant.AccessToken != "new-access" {
		t.Fatalf("expected new access token, got %q", grant.AccessToken)
	}
	if grant.RefreshToken != "old-refresh" {
		t.Fatalf("expected presented refresh token to be kept, got %q", grant.RefreshToken)
	}
}

func TestExchangeCodeValidatesInput(t *testing.T) {
	t.Parallel()

	client := NewHTTPClient(Config{})
	if _, err := client.ExchangeCode(context.Background(), "  "); !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("expected validation error for empty code, got %v", err)
	}
}
