package dto

import (
	"encoding/json"
	"time"

	"crowdcounter/internal/model"
)

// CycleMessage is the JSON form of a CycleResult pushed to viewers and
// returned by the recent predictions API.
type CycleMessage struct {
	Type         string         `json:"type"`
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	PerCamera    map[string]int `json:"per_camera"`
	Total        int            `json:"total"`
	PredictionID int64          `json:"prediction_id,omitempty"`
}

// NewCycleMessage converts a CycleResult.
func NewCycleMessage(result model.CycleResult) CycleMessage {
	perCamera := result.PerCamera
	if perCamera == nil {
		perCamera = map[string]int{}
	}
	return CycleMessage{
		Type:         "cycle",
		ID:           result.ID,
		Timestamp:    result.Timestamp,
		PerCamera:    perCamera,
		Total:        result.Total,
		PredictionID: result.PredictionID,
	}
}

// MarshalJSON formats the timestamp as RFC 3339 in UTC, to the second.
func (m CycleMessage) MarshalJSON() ([]byte, error) {
	type Alias CycleMessage
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		Alias
	}{
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
		Alias:     (Alias)(m),
	})
}
