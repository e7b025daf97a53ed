package repository

import (
	"time"

	"crowdcounter/internal/model"
)

// AreaRepository defines the interface for area data operations.
type AreaRepository interface {
	GetOrCreate(name, description string) (*model.Area, error)
	GetByName(name string) (*model.Area, error)
}

// CameraRepository defines the interface for camera data operations.
type CameraRepository interface {
	// Upsert inserts the camera or updates its URI and area when the name exists.
	Upsert(name, sourceURI string, areaID int64) (*model.Camera, error)
	GetByName(name string) (*model.Camera, error)
	GetAll() ([]model.Camera, error)
}

// PredictionRepository defines the interface for prediction data operations.
type PredictionRepository interface {
	// RecordPrediction stores one cycle and its per-camera details atomically.
	RecordPrediction(areaID int64, perCamera map[string]int, total int, ts time.Time) (int64, error)

	GetByID(id int64) (*model.Prediction, error)
	GetRecent(limit int) ([]model.Prediction, error)
}
