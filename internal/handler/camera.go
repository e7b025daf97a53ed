package handler

import (
	"encoding/json"
	"net/http"

	"crowdcounter/internal/logger"
	"crowdcounter/internal/service/stream"
)

// CameraLister reports the state of the configured cameras.
type CameraLister interface {
	Statuses() []stream.CameraStatus
}

// CamerasHandler returns the name, reader state and reconnect count of every camera.
func CamerasHandler(cameras CameraLister, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(cameras.Statuses()); err != nil {
			logger.Error("Error encoding camera statuses: %v", err)
		}
	}
}
