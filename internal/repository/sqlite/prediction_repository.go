package sqlite

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"crowdcounter/internal/model"
)

// DetailImagePath is the image name recorded with a prediction detail.
func DetailImagePath(camera string, ts time.Time, count int) string {
	return fmt.Sprintf("camera_%s_%s_count_%d.jpg", camera, ts.Format("2006-01-02T150405"), count)
}

// PredictionRepository implements repository.PredictionRepository for SQLite.
type PredictionRepository struct {
	db *DB
}

// NewPredictionRepository creates a new SQLite prediction repository.
func NewPredictionRepository(db *DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// RecordPrediction inserts the prediction and one detail per camera in a
// single transaction. Every camera must already exist.
func (r *PredictionRepository) RecordPrediction(areaID int64, perCamera map[string]int, total int, ts time.Time) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	ts = ts.UTC()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO predictions (area_id, timestamp, total_estimate) VALUES (?, ?, ?)
	`, areaID, ts, total)
	if err != nil {
		return 0, fmt.Errorf("failed to insert prediction: %w", err)
	}
	predictionID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get prediction id: %w", err)
	}

	lookup, err := tx.Prepare(`SELECT camera_id FROM cameras WHERE camera_name = ?`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer lookup.Close()

	insert, err := tx.Prepare(`
		INSERT INTO prediction_details (prediction_id, camera_id, image_path, estimated_count, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer insert.Close()

	names := make([]string, 0, len(perCamera))
	for name := range perCamera {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		count := perCamera[name]

		var cameraID int64
		if err := lookup.QueryRow(name).Scan(&cameraID); err != nil {
			if err == sql.ErrNoRows {
				return 0, fmt.Errorf("camera not found: %s", name)
			}
			return 0, fmt.Errorf("failed to look up camera %s: %w", name, err)
		}

		if _, err := insert.Exec(predictionID, cameraID, DetailImagePath(name, ts, count), count, ts); err != nil {
			return 0, fmt.Errorf("failed to insert prediction detail: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prediction: %w", err)
	}
	return predictionID, nil
}

// GetByID retrieves a prediction with its details.
func (r *PredictionRepository) GetByID(id int64) (*model.Prediction, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var p model.Prediction
	var areaID sql.NullInt64
	err := r.db.Conn().QueryRow(`
		SELECT prediction_id, area_id, timestamp, total_estimate FROM predictions WHERE prediction_id = ?
	`, id).Scan(&p.ID, &areaID, &p.Timestamp, &p.TotalEstimate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("prediction not found: %d", id)
		}
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	p.AreaID = areaID.Int64

	details, err := r.detailsFor([]int64{p.ID})
	if err != nil {
		return nil, err
	}
	p.Details = details[p.ID]
	return &p, nil
}

// GetRecent returns up to limit predictions, newest first, with details.
func (r *PredictionRepository) GetRecent(limit int) ([]model.Prediction, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Conn().Query(`
		SELECT prediction_id, area_id, timestamp, total_estimate
		FROM predictions ORDER BY timestamp DESC, prediction_id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}

	var predictions []model.Prediction
	for rows.Next() {
		var p model.Prediction
		var areaID sql.NullInt64
		if err := rows.Scan(&p.ID, &areaID, &p.Timestamp, &p.TotalEstimate); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		p.AreaID = areaID.Int64
		predictions = append(predictions, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]int64, len(predictions))
	for i, p := range predictions {
		ids[i] = p.ID
	}
	details, err := r.detailsFor(ids)
	if err != nil {
		return nil, err
	}
	for i := range predictions {
		predictions[i].Details = details[predictions[i].ID]
	}
	return predictions, nil
}

func (r *PredictionRepository) detailsFor(ids []int64) (map[int64][]model.PredictionDetail, error) {
	result := make(map[int64][]model.PredictionDetail, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.Conn().Query(`
		SELECT d.detail_id, d.prediction_id, d.camera_id, c.camera_name, d.image_path, d.estimated_count, d.timestamp
		FROM prediction_details d
		JOIN cameras c ON c.camera_id = d.camera_id
		WHERE d.prediction_id IN (`+placeholders+`)
		ORDER BY c.camera_name
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction details: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d model.PredictionDetail
		if err := rows.Scan(&d.ID, &d.PredictionID, &d.CameraID, &d.CameraName, &d.ImagePath, &d.EstimatedCount, &d.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan prediction detail: %w", err)
		}
		result[d.PredictionID] = append(result[d.PredictionID], d)
	}
	return result, rows.Err()
}
