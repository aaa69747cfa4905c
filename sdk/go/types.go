package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"just3sec/core"
)

// Profile mirrors the JSON served on /users/{id}.
type Profile struct {
	UserID     core.UserID          `json:"user_id"`
	History    []int64              `json:"history"`
	TotalGames int64                `json:"total_games"`
	BestRecord *int64               `json:"best_record,omitempty"`
	Rating     float64              `json:"rating"`
	Unlocked   []core.AchievementID `json:"unlocked"`
}

// AttemptResult is returned by Stop and Record. Recorded is false when Stop
// was called without a running attempt.
type AttemptResult struct {
	Recorded      bool                 `json:"recorded"`
	UserID        core.UserID          `json:"user_id"`
	ErrorMs       int64                `json:"error_ms"`
	ScoreDelta    float64              `json:"score_delta"`
	Rating        float64              `json:"rating"`
	TotalGames    int64                `json:"total_games"`
	BestRecord    *int64               `json:"best_record,omitempty"`
	NewlyUnlocked []core.AchievementID `json:"newly_unlocked"`
}

// Achievement is one catalogue entry as seen by a player.
type Achievement struct {
	ID          core.AchievementID `json:"id"`
	Category    core.Category      `json:"category"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Secret      bool               `json:"secret"`
	Unlocked    bool               `json:"unlocked"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string         `json:"status"`
	Checks map[string]any `json:"checks"`
}

// APIError is the error body returned for non-2xx responses.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed: status %d", e.Status)
	}
	return fmt.Sprintf("request failed: status %d: %s: %s", e.Status, e.Code, e.Message)
}

// IsConfirmationRequired reports whether err came from clearing history
// without confirm=true.
func IsConfirmationRequired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == "confirmation_required"
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")
