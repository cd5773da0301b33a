package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/tyemirov/paceline/internal/fault"
)

// Config carries the provider application credentials and endpoints.
// Endpoint fields default to the public Strava API when empty.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIBaseURL   string
	DeauthURL    string
	HTTPTimeout  time.Duration
}

const (
	defaultTokenURL   = "https://www.strava.com/oauth/token"
	defaultAPIBaseURL = "https://www.strava.com/api/v3"
	defaultDeauthURL  = "https://www.strava.com/oauth/deauthorize"

	// Lookback window when the caller supplies no since date.
	DefaultLookback = 14 * 24 * time.Hour

	activitiesPerPage = 100
	streamKeys        = "heartrate,cadence,distance,velocity_smooth,altitude,time"
)

// HTTPClient implements Client against the provider's REST API, using the
// oauth2 package for the code-exchange and refresh grants.
type HTTPClient struct {
	oauthConfig *oauth2.Config
	apiBaseURL  string
	deauthURL   string
	httpClient  *http.Client
}

// NewHTTPClient constructs a provider client.
func NewHTTPClient(configuration Config) *HTTPClient {
	tokenURL := configuration.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	apiBaseURL := configuration.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}
	deauthURL := configuration.DeauthURL
	if deauthURL == "" {
		deauthURL = defaultDeauthURL
	}
	timeout := configuration.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		oauthConfig: &oauth2.Config{
			ClientID:     configuration.ClientID,
			ClientSecret: configuration.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		},
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		deauthURL:  deauthURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ExchangeCode trades an authorization code for a token grant.
func (client *HTTPClient) ExchangeCode(ctx context.Context, code string) (TokenGrant, error) {
	if strings.TrimSpace(code) == "" {
		return TokenGrant{}, fault.Wrap(fault.ErrValidation, "strava.exchange.empty_code", nil)
	}
	token, exchangeErr := client.oauthConfig.Exchange(client.oauthContext(ctx), code)
	if exchangeErr != nil {
		return TokenGrant{}, fault.Wrap(fault.ErrUpstream, "strava.exchange", exchangeErr)
	}
	return grantFromToken(token), nil
}

// RefreshGrant trades a refresh token for a fresh grant.
func (client *HTTPClient) RefreshGrant(ctx context.Context, refreshToken string) (TokenGrant, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return TokenGrant{}, fault.Wrap(fault.ErrValidation, "strava.refresh.empty_token", nil)
	}
	source := client.oauthConfig.TokenSource(client.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, refreshErr := source.Token()
	if refreshErr != nil {
		return TokenGrant{}, fault.Wrap(fault.ErrUpstream, "strava.refresh", refreshErr)
	}
	grant := grantFromToken(token)
	if grant.RefreshToken == "" {
		// Providers that do not rotate the refresh token omit it from the
		// response; keep using the presented one.
		grant.RefreshToken = refreshToken
	}
	return grant, nil
}

func (client *HTTPClient) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, client.httpClient)
}

func grantFromToken(token *oauth2.Token) TokenGrant {
	grant := TokenGrant{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry.UTC().Unix(),
	}
	if athlete, ok := token.Extra("athlete").(map[string]interface{}); ok {
		if athleteID, idOk := athlete["id"].(float64); idOk {
			grant.ProviderUserID = strconv.FormatInt(int64(athleteID), 10)
		}
	}
	return grant
}

type activityPayload struct {
	ID               int64   `json:"id"`
	SportType        string  `json:"sport_type"`
	StartDateLocal   string  `json:"start_date_local"`
	Distance         float64 `json:"distance"`
	ElapsedTime      int     `json:"elapsed_time"`
	AverageSpeed     float64 `json:"average_speed"`
	MaxSpeed         float64 `json:"max_speed"`
	AverageHeartrate float64 `json:"average_heartrate"`
	MaxHeartrate     float64 `json:"max_heartrate"`
	AverageCadence   float64 `json:"average_cadence"`
}

// ListActivities returns activities started after since. A zero since falls
// back to the default lookback window.
func (client *HTTPClient) ListActivities(ctx context.Context, accessToken string, since time.Time) ([]ActivityData, error) {
	if since.IsZero() {
		since = time.Now().UTC().Add(-DefaultLookback)
	}
	query := url.Values{}
	query.Set("after", strconv.FormatInt(since.Unix(), 10))
	query.Set("per_page", strconv.Itoa(activitiesPerPage))

	var payload []activityPayload
	if err := client.getJSON(ctx, accessToken, "/athlete/activities", query, &payload); err != nil {
		return nil, err
	}
	activities := make([]ActivityData, 0, len(payload))
	for _, item := range payload {
		startDate, _ := time.Parse(time.RFC3339, item.StartDateLocal)
		activities = append(activities, ActivityData{
			ActivityID:   item.ID,
			SportType:    item.SportType,
			StartDate:    startDate,
			Distance:     item.Distance,
			ElapsedTime:  item.ElapsedTime,
			AvgSpeed:     item.AverageSpeed,
			MaxSpeed:     item.MaxSpeed,
			AvgHeartrate: item.AverageHeartrate,
			MaxHeartrate: item.MaxHeartrate,
			// The provider reports single-leg cadence for runs.
			AvgCadence: item.AverageCadence * 2,
		})
	}
	return activities, nil
}

type lapPayload struct {
	LapIndex           int     `json:"lap_index"`
	Distance           float64 `json:"distance"`
	ElapsedTime        int     `json:"elapsed_time"`
	AverageSpeed       float64 `json:"average_speed"`
	MaxSpeed           float64 `json:"max_speed"`
	AverageHeartrate   float64 `json:"average_heartrate"`
	MaxHeartrate       float64 `json:"max_heartrate"`
	AverageCadence     float64 `json:"average_cadence"`
	TotalElevationGain float64 `json:"total_elevation_gain"`
}

// FetchLaps returns the splits of one activity.
func (client *HTTPClient) FetchLaps(ctx context.Context, accessToken string, activityID int64) ([]LapData, error) {
	var payload []lapPayload
	path := fmt.Sprintf("/activities/%d/laps", activityID)
	if err := client.getJSON(ctx, accessToken, path, nil, &payload); err != nil {
		return nil, err
	}
	laps := make([]LapData, 0, len(payload))
	for _, item := range payload {
		laps = append(laps, LapData{
			LapIndex:      item.LapIndex,
			Distance:      item.Distance,
			ElapsedTime:   item.ElapsedTime,
			AvgSpeed:      item.AverageSpeed,
			MaxSpeed:      item.MaxSpeed,
			AvgHeartrate:  item.AverageHeartrate,
			MaxHeartrate:  item.MaxHeartrate,
			AvgCadence:    item.AverageCadence * 2,
			ElevationGain: item.TotalElevationGain,
		})
	}
	return laps, nil
}

type streamSeries struct {
	Data []float64 `json:"data"`
}

type streamPayload struct {
	Heartrate      streamSeries `json:"heartrate"`
	Cadence        streamSeries `json:"cadence"`
	Distance       streamSeries `json:"distance"`
	VelocitySmooth streamSeries `json:"velocity_smooth"`
	Altitude       streamSeries `json:"altitude"`
	Time           streamSeries `json:"time"`
}

// FetchStream returns the sample series of one activity.
func (client *HTTPClient) FetchStream(ctx context.Context, accessToken string, activityID int64) (StreamData, error) {
	query := url.Values{}
	query.Set("keys", streamKeys)
	query.Set("key_by_type", "true")

	var payload streamPayload
	path := fmt.Sprintf("/activities/%d/streams", activityID)
	if err := client.getJSON(ctx, accessToken, path, query, &payload); err != nil {
		return StreamData{}, err
	}
	cadence := make([]float64, len(payload.Cadence.Data))
	for index, value := range payload.Cadence.Data {
		cadence[index] = value * 2
	}
	return StreamData{
		Heartrate: payload.Heartrate.Data,
		Cadence:   cadence,
		Distance:  payload.Distance.Data,
		Velocity:  payload.VelocitySmooth.Data,
		Altitude:  payload.Altitude.Data,
		Time:      payload.Time.Data,
	}, nil
}

// Deauthorize revokes the grant at the provider; failures are reported but
// callers treat them as best effort.
func (client *HTTPClient) Deauthorize(ctx context.Context, accessToken string) error {
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, client.deauthURL, nil)
	if requestErr != nil {
		return fault.Wrap(fault.ErrInternal, "strava.deauthorize.request", requestErr)
	}
	request.Header.Set("Authorization", "Bearer "+accessToken)
	response, doErr := client.httpClient.Do(request)
	if doErr != nil {
		return fault.Wrap(fault.ErrUpstream, "strava.deauthorize", doErr)
	}
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode >= http.StatusBadRequest {
		return fault.Wrap(fault.ErrUpstream, fmt.Sprintf("strava.deauthorize.status_%d", response.StatusCode), nil)
	}
	return nil
}

func (client *HTTPClient) getJSON(ctx context.Context, accessToken string, path string, query url.Values, target interface{}) error {
	requestURL := client.apiBaseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if requestErr != nil {
		return fault.Wrap(fault.ErrInternal, "strava.request", requestErr)
	}
	request.Header.Set("Authorization", "Bearer "+accessToken)

	response, doErr := client.httpClient.Do(request)
	if doErr != nil {
		return fault.Wrap(fault.ErrUpstream, "strava.transport", doErr)
	}
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode >= http.StatusBadRequest {
		return fault.Wrap(fault.ErrUpstream, fmt.Sprintf("strava.status_%d", response.StatusCode), nil)
	}
	if decodeErr := json.NewDecoder(response.Body).Decode(target); decodeErr != nil {
		return fault.Wrap(fault.ErrUpstream, "strava.decode", decodeErr)
	}
	return nil
}
