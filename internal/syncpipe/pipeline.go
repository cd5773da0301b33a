// Package syncpipe orchestrates ingestion: provider token, activity list,
// per-activity lap/stream fetch, classification, idempotent persistence,
// and cache invalidation.
package syncpipe

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tyemirov/paceline/internal/classifier"
	"github.com/tyemirov/paceline/internal/fault"
	"github.com/tyemirov/paceline/internal/storage"
	"github.com/tyemirov/paceline/internal/strava"
)

// ManualProviderName marks user-entered activities; they carry a random
// external id so the (provider, external id) uniqueness never collides.
const ManualProviderName = "manual"

// SchedulesResource is the cached read invalidated by every ingestion.
const SchedulesResource = "schedules"

// AccessTokenSource yields a valid provider access token, refreshing behind
// the scenes when needed.
type AccessTokenSource interface {
	AccessToken(ctx context.Context, userID uuid.UUID) (string, error)
}

// ActivityWriter is the persistence slice the pipeline needs.
type ActivityWriter interface {
	CreateActivity(ctx context.Context, activity storage.Activity, laps []storage.Lap, stream *storage.Stream) (storage.InsertOutcome, error)
}

// Invalidator drops the cached tag after the activity set changes.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID, resource string) error
}

// Report summarizes one sync run. Per-activity failures are counted, not
// fatal; the batch keeps going.
type Report struct {
	Fetched    int
	Created    int
	Duplicates int
	Failed     int
}

// ManualActivity is a user-entered upload; it has no laps or stream.
type ManualActivity struct {
	StartDate    time.Time
	Distance     float64
	ElapsedTime  int
	AvgHeartrate float64
	Title        string
}

// Pipeline wires the sync flow together.
type Pipeline struct {
	tokenSource AccessTokenSource
	client      strava.Client
	classifier  *classifier.Classifier
	writer      ActivityWriter
	invalidator Invalidator
	logger      *zap.Logger
}

// NewPipeline constructs a pipeline.
func NewPipeline(tokenSource AccessTokenSource, client strava.Client, workoutClassifier *classifier.Classifier, writer ActivityWriter, invalidator Invalidator, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		tokenSource: tokenSource,
		client:      client,
		classifier:  workoutClassifier,
		writer:      writer,
		invalidator: invalidator,
		logger:      logger,
	}
}

// SyncNewActivities ingests the user's provider activities started after
// since (zero means the provider client's default lookback). Duplicates are
// recognized no-ops and single-activity failures do not abort the batch. The
// schedules tag is invalidated afterwards even on a partial run, so the next
// read reflects whatever landed.
func (pipeline *Pipeline) SyncNewActivities(ctx context.Context, userID uuid.UUID, since time.Time) (Report, error) {
	accessToken, tokenErr := pipeline.tokenSource.AccessToken(ctx, userID)
	if tokenErr != nil {
		return Report{}, tokenErr
	}

	activities, listErr := pipeline.client.ListActivities(ctx, accessToken, since)
	if listErr != nil {
		return Report{}, listErr
	}

	report := Report{Fetched: len(activities)}
	for _, activity := range activities {
		outcome, ingestErr := pipeline.ingestOne(ctx, userID, accessToken, activity)
		if ingestErr != nil {
			report.Failed++
			pipeline.logger.Warn("activity ingestion failed",
				zap.Int64("external_activity_id", activity.ActivityID),
				zap.Error(ingestErr),
			)
			continue
		}
		switch outcome {
		case storage.InsertCreated:
			report.Created++
		case storage.InsertDuplicate:
			report.Duplicates++
		}
	}

	if invalidateErr := pipeline.invalidator.Invalidate(ctx, userID, SchedulesResource); invalidateErr != nil {
		pipeline.logger.Warn("cache invalidation failed", zap.Error(invalidateErr))
	}
	pipeline.logger.Info("sync completed",
		zap.String("user_id", userID.String()),
		zap.Int("fetched", report.Fetched),
		zap.Int("created", report.Created),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (pipeline *Pipeline) ingestOne(ctx context.Context, userID uuid.UUID, accessToken string, activity strava.ActivityData) (storage.InsertOutcome, error) {
	var laps []strava.LapData
	var stream strava.StreamData

	// The two detail fetches are independent.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		fetched, fetchErr := pipeline.client.FetchLaps(groupCtx, accessToken, activity.ActivityID)
		if fetchErr != nil {
			return fetchErr
		}
		laps = fetched
		return nil
	})
	group.Go(func() error {
		fetched, fetchErr := pipeline.client.FetchStream(groupCtx, accessToken, activity.ActivityID)
		if fetchErr != nil {
			return fetchErr
		}
		stream = fetched
		return nil
	})
	if waitErr := group.Wait(); waitErr != nil {
		return 0, waitErr
	}

	classification := pipeline.classifier.Classify(activity, laps, stream)

	record := storage.Activity{
		UserID:               userID,
		Provider:             strava.ProviderName,
		ExternalActivityID:   activity.ActivityID,
		StartDate:            activity.StartDate,
		Distance:             activity.Distance,
		ElapsedTime:          activity.ElapsedTime,
		AvgSpeed:             activity.AvgSpeed,
		MaxSpeed:             activity.MaxSpeed,
		AvgHeartrate:         activity.AvgHeartrate,
		MaxHeartrate:         activity.MaxHeartrate,
		AvgCadence:           activity.AvgCadence,
		Title:                classification.Title,
		ClassificationDetail: classification.Detail.Render(),
	}
	return pipeline.writer.CreateActivity(ctx, record, lapRecords(laps), streamRecord(stream))
}

// UploadManualActivity persists a user-entered activity under the manual
// provider and follows the same invalidate contract as ingestion.
func (pipeline *Pipeline) UploadManualActivity(ctx context.Context, userID uuid.UUID, upload ManualActivity) (storage.Activity, error) {
	if upload.Distance <= 0 && upload.ElapsedTime <= 0 {
		return storage.Activity{}, fault.Wrap(fault.ErrValidation, "syncpipe.upload.empty", nil)
	}
	startDate := upload.StartDate
	if startDate.IsZero() {
		startDate = time.Now().UTC()
	}

	activityData := strava.ActivityData{
		StartDate:    startDate,
		Distance:     upload.Distance,
		ElapsedTime:  upload.ElapsedTime,
		AvgHeartrate: upload.AvgHeartrate,
	}
	classification := pipeline.classifier.Classify(activityData, nil, strava.StreamData{})

	title := strings.TrimSpace(upload.Title)
	if title == "" {
		title = classification.Title
	}
	record := storage.Activity{
		ID:                   uuid.New(),
		UserID:               userID,
		Provider:             ManualProviderName,
		ExternalActivityID:   rand.Int64(),
		StartDate:            startDate,
		Distance:             upload.Distance,
		ElapsedTime:          upload.ElapsedTime,
		AvgHeartrate:         upload.AvgHeartrate,
		Title:                title,
		ClassificationDetail: classification.Detail.Render(),
	}
	if _, createErr := pipeline.writer.CreateActivity(ctx, record, nil, nil); createErr != nil {
		return storage.Activity{}, createErr
	}

	if invalidateErr := pipeline.invalidator.Invalidate(ctx, userID, SchedulesResource); invalidateErr != nil {
		pipeline.logger.Warn("cache invalidation failed", zap.Error(invalidateErr))
	}
	return record, nil
}

func lapRecords(laps []strava.LapData) []storage.Lap {
	records := make([]storage.Lap, 0, len(laps))
	for _, lap := range laps {
		records = append(records, storage.Lap{
			LapIndex:      lap.LapIndex,
			Distance:      lap.Distance,
			ElapsedTime:   lap.ElapsedTime,
			AvgSpeed:      lap.AvgSpeed,
			MaxSpeed:      lap.MaxSpeed,
			AvgHeartrate:  lap.AvgHeartrate,
			MaxHeartrate:  lap.MaxHeartrate,
			AvgCadence:    lap.AvgCadence,
			ElevationGain: lap.ElevationGain,
		})
	}
	return records
}

func streamRecord(stream strava.StreamData) *storage.Stream {
	if len(stream.Time) == 0 && len(stream.Heartrate) == 0 && len(stream.Distance) == 0 {
		return nil
	}
	return &storage.Stream{
		Heartrate: stream.Heartrate,
		Cadence:   stream.Cadence,
		Distance:  stream.Distance,
		Velocity:  stream.Velocity,
		Altitude:  stream.Altitude,
		Time:      stream.Time,
	}
}
