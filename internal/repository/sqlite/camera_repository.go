package sqlite

import (
	"database/sql"
	"fmt"

	"crowdcounter/internal/model"
)

// CameraRepository implements repository.CameraRepository for SQLite.
type CameraRepository struct {
	db *DB
}

// NewCameraRepository creates a new SQLite camera repository.
func NewCameraRepository(db *DB) *CameraRepository {
	return &CameraRepository{db: db}
}

// Upsert inserts a camera or updates the URI and area of an existing one.
func (r *CameraRepository) Upsert(name, sourceURI string, areaID int64) (*model.Camera, error) {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO cameras (camera_name, rtsp_url, area_id)
		VALUES (?, ?, ?)
		ON CONFLICT(camera_name) DO UPDATE SET rtsp_url = excluded.rtsp_url, area_id = excluded.area_id
	`, name, sourceURI, areaID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert camera: %w", err)
	}

	return r.getByName(name)
}

// GetByName retrieves a camera by name.
func (r *CameraRepository) GetByName(name string) (*model.Camera, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.getByName(name)
}

func (r *CameraRepository) getByName(name string) (*model.Camera, error) {
	var cam model.Camera
	var areaID sql.NullInt64
	err := r.db.Conn().QueryRow(`
		SELECT camera_id, camera_name, rtsp_url, area_id FROM cameras WHERE camera_name = ?
	`, name).Scan(&cam.ID, &cam.Name, &cam.SourceURI, &areaID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("camera not found: %s", name)
		}
		return nil, fmt.Errorf("failed to get camera: %w", err)
	}
	cam.AreaID = areaID.Int64
	return &cam, nil
}

// GetAll returns every camera ordered by name.
func (r *CameraRepository) GetAll() ([]model.Camera, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT camera_id, camera_name, rtsp_url, area_id FROM cameras ORDER BY camera_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %w", err)
	}
	defer rows.Close()

	var cameras []model.Camera
	for rows.Next() {
		var cam model.Camera
		var areaID sql.NullInt64
		if err := rows.Scan(&cam.ID, &cam.Name, &cam.SourceURI, &areaID); err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}
		cam.AreaID = areaID.Int64
		cameras = append(cameras, cam)
	}

	return cameras, rows.Err()
}
