package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tyemirov/paceline/internal/fault"
	"github.com/tyemirov/paceline/internal/storage"
	"github.com/tyemirov/paceline/internal/syncpipe"
)

func mountProviderRoutes(router gin.IRouter, dependencies Dependencies) {
	router.GET("/strava/connect", func(contextGin *gin.Context) {
		code := contextGin.Query("code")
		if strings.TrimSpace(code) == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing_code"})
			return
		}
		userID, ok := authenticatedUserID(contextGin)
		if !ok {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if connectErr := dependencies.Provider.Connect(contextGin, userID, code); connectErr != nil {
			abortWithFault(contextGin, connectErr)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"connected": true})
	})

	router.DELETE("/strava/connect", func(contextGin *gin.Context) {
		userID, ok := authenticatedUserID(contextGin)
		if !ok {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if disconnectErr := dependencies.Provider.Disconnect(contextGin, userID); disconnectErr != nil {
			abortWithFault(contextGin, disconnectErr)
			return
		}
		contextGin.Status(http.StatusNoContent)
	})
}

type activityResponse struct {
	ID                   uuid.UUID `json:"id"`
	Provider             string    `json:"provider"`
	StartDate            time.Time `json:"start_date"`
	Distance             float64   `json:"distance"`
	ElapsedTime          int       `json:"elapsed_time"`
	AvgSpeed             float64   `json:"avg_speed"`
	AvgHeartrate         float64   `json:"avg_heartrate"`
	AvgCadence           float64   `json:"avg_cadence"`
	Title                string    `json:"title"`
	ClassificationDetail string    `json:"classification_detail"`
}

func activityResponseFrom(activity storage.Activity) activityResponse {
	return activityResponse{
		ID:                   activity.ID,
		Provider:             activity.Provider,
		StartDate:            activity.StartDate,
		Distance:             activity.Distance,
		ElapsedTime:          activity.ElapsedTime,
		AvgSpeed:             activity.AvgSpeed,
		AvgHeartrate:         activity.AvgHeartrate,
		AvgCadence:           activity.AvgCadence,
		Title:                activity.Title,
		ClassificationDetail: activity.ClassificationDetail,
	}
}

func mountTrainingRoutes(router gin.IRouter, dependencies Dependencies) {
	router.POST("/trainings/sync", func(contextGin *gin.Context) {
		userID, ok := authenticatedUserID(contextGin)
		if !ok {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		since, sinceErr := parseSince(contextGin.Query("since"))
		if sinceErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_since"})
			return
		}
		report, syncErr := dependencies.Sync.SyncNewActivities(contextGin, userID, since)
		if syncErr != nil {
			abortWithFault(contextGin, syncErr)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{
			"fetched":    report.Fetched,
			"created":    report.Created,
			"duplicates": report.Duplicates,
			"failed":     report.Failed,
		})
	})

	router.GET("/trainings", func(contextGin *gin.Context) {
		userID, ok := authenticatedUserID(contextGin)
		if !ok {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		since, sinceErr := parseSince(contextGin.Query("since"))
		if sinceErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_since"})
			return
		}

		clientETag := strings.Trim(contextGin.GetHeader("If-None-Match"), `"`)
		result, fetchErr := dependencies.Cache.Fetch(contextGin, userID, syncpipe.SchedulesResource, clientETag,
			func(recomputeCtx context.Context) (interface{}, error) {
				activities, listErr := dependencies.Activities.ListActivities(recomputeCtx, userID, since)
				if listErr != nil {
					return nil, listErr
				}
				responses := make([]activityResponse, 0, len(activities))
				for _, activity := range activities {
					responses = append(responses, activityResponseFrom(activity))
				}
				return responses, nil
			})
		if fetchErr != nil {
			if errors.Is(fetchErr, fault.ErrNotModified) {
				contextGin.Header("ETag", `"`+result.ETag+`"`)
				contextGin.Status(http.StatusNotModified)
				return
			}
			abortWithFault(contextGin, fetchErr)
			return
		}
		contextGin.Header("ETag", `"`+result.ETag+`"`)
		contextGin.JSON(http.StatusOK, gin.H{"trainings": result.Data})
	})

	router.GET("/trainings/:id", func(contextGin *gin.Context) {
		userID, ok := authenticatedUserID(contextGin)
		if !ok {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		activityID, parseErr := uuid.Parse(contextGin.Param("id"))
		if parseErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_activity_id"})
			return
		}
		detail, detailErr := dependencies.Activities.GetActivityDetail(contextGin, userID, activityID)
		if detailErr != nil {
			abortWithFault(contextGin, detailErr)
			return
		}
		payload := gin.H{
			"activity": activityResponseFrom(detail.Activity),
			"laps":     detail.Laps,
		}
		if detail.Stream != nil {
			payload["stream"] = detail.Stream
		}
		contextGin.JSON(http.StatusOK, payload)
	})

	router.POST("/trainings", func(contextGin *gin.Context) {
		userID, ok := authenticatedUserID(contextGin)
		if !ok {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		var inbound struct {
			StartDate    time.Time `json:"start_date"`
			Distance     float64   `json:"distance"`
			ElapsedTime  int       `json:"elapsed_time"`
			AvgHeartrate float64   `json:"avg_heartrate"`
			Title        string    `json:"title"`
		}
		if err := contextGin.BindJSON(&inbound); err != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		activity, uploadErr := dependencies.Sync.UploadManualActivity(contextGin, userID, syncpipe.ManualActivity{
			StartDate:    inbound.StartDate,
			Distance:     inbound.Distance,
			ElapsedTime:  inbound.ElapsedTime,
			AvgHeartrate: inbound.AvgHeartrate,
			Title:        inbound.Title,
		})
		if uploadErr != nil {
			abortWithFault(contextGin, uploadErr)
			return
		}
		contextGin.JSON(http.StatusCreated, activityResponseFrom(activity))
	})
}

func parseSince(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return parsed, nil
}
