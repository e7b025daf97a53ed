package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"crowdcounter/internal/model"
)

// AreaRepository implements repository.AreaRepository for SQLite.
type AreaRepository struct {
	db *DB
}

// NewAreaRepository creates a new SQLite area repository.
func NewAreaRepository(db *DB) *AreaRepository {
	return &AreaRepository{db: db}
}

// GetOrCreate returns the area with name, inserting it first if needed. An
// existing area keeps its description.
func (r *AreaRepository) GetOrCreate(name, description string) (*model.Area, error) {
	r.db.Lock()
	defer r.db.Unlock()

	area, err := r.getByName(name)
	if err == nil {
		return area, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	result, err := r.db.Conn().Exec(`
		INSERT INTO areas (area_name, description) VALUES (?, ?)
	`, name, description)
	if err != nil {
		return nil, fmt.Errorf("failed to insert area: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get area id: %w", err)
	}
	return &model.Area{ID: id, Name: name, Description: description}, nil
}

// GetByName retrieves an area by name.
func (r *AreaRepository) GetByName(name string) (*model.Area, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.getByName(name)
}

func (r *AreaRepository) getByName(name string) (*model.Area, error) {
	var area model.Area
	var description sql.NullString
	err := r.db.Conn().QueryRow(`
		SELECT area_id, area_name, description FROM areas WHERE area_name = ?
	`, name).Scan(&area.ID, &area.Name, &description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("area not found: %s: %w", name, err)
		}
		return nil, fmt.Errorf("failed to get area: %w", err)
	}
	area.Description = description.String
	return &area, nil
}
