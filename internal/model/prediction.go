package model

import "time"

// Area groups the cameras whose counts are summed into one total.
type Area struct {
	ID          int64  `json:"area_id"`
	Name        string `json:"area_name"`
	Description string `json:"description"`
}

// Camera represents a camera record.
type Camera struct {
	ID        int64  `json:"camera_id"`
	Name      string `json:"camera_name"`
	SourceURI string `json:"rtsp_url"`
	AreaID    int64  `json:"area_id"`
}

// Prediction is one recorded cycle for an area.
type Prediction struct {
	ID            int64              `json:"prediction_id"`
	AreaID        int64              `json:"area_id"`
	Timestamp     time.Time          `json:"timestamp"`
	TotalEstimate int                `json:"total_estimate"`
	Details       []PredictionDetail `json:"details,omitempty"`
}

// PredictionDetail is the per-camera part of a Prediction.
type PredictionDetail struct {
	ID             int64     `json:"detail_id"`
	PredictionID   int64     `json:"prediction_id"`
	CameraID       int64     `json:"camera_id"`
	CameraName     string    `json:"camera_name"`
	ImagePath      string    `json:"image_path"`
	EstimatedCount int       `json:"estimated_count"`
	Timestamp      time.Time `json:"timestamp"`
}
