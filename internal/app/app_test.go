package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crowdcounter/internal/config"
	"crowdcounter/internal/model"
	"crowdcounter/internal/repository/sqlite"
)

type failingCameras struct {
	failOn  string
	upserts []string
}

func (f *failingCameras) Upsert(name, sourceURI string, areaID int64) (*model.Camera, error) {
	if name == f.failOn {
		return nil, errors.New("database is locked")
	}
	f.upserts = append(f.upserts, name)
	return &model.Camera{Name: name, SourceURI: sourceURI, AreaID: areaID}, nil
}

func (f *failingCameras) GetByName(name string) (*model.Camera, error) {
	return nil, errors.New("not found")
}

func (f *failingCameras) GetAll() ([]model.Camera, error) { return nil, nil }

func setupTestDB(t *testing.T) (*sqlite.DB, func()) {
	dir, err := os.MkdirTemp("", "app_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	db, err := sqlite.New(filepath.Join(dir, "predictions.db"))
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("Failed to open database: %v", err)
	}
	return db, func() {
		db.Close()
		os.RemoveAll(dir)
	}
}

var testCameras = []model.CameraConfig{
	{Name: "north", SourceURI: "rtsp://10.0.0.1/stream"},
	{Name: "south", SourceURI: "rtsp://10.0.0.2/stream"},
}

// ========================================
// Startup registration tests
// ========================================

func TestRegisterArea(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	cfg := &config.Config{AreaName: "GLT", AreaDesc: "Gröna Lund"}
	area, err := registerArea(sqlite.NewAreaRepository(db), sqlite.NewCameraRepository(db), cfg, testCameras)
	if err != nil {
		t.Fatalf("registerArea failed: %v", err)
	}
	if area.Name != "GLT" {
		t.Errorf("Expected area GLT, got %s", area.Name)
	}

	cameras, err := sqlite.NewCameraRepository(db).GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(cameras) != 2 {
		t.Fatalf("Expected 2 cameras, got %d", len(cameras))
	}

	// Every registered camera can be referenced by a prediction.
	if _, err := sqlite.NewPredictionRepository(db).RecordPrediction(area.ID, map[string]int{"north": 1, "south": 2}, 3, time.Now()); err != nil {
		t.Errorf("Expected prediction for registered cameras, got %v", err)
	}
}

func TestRegisterArea_CameraFailureIsFatal(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	cameras := &failingCameras{failOn: "south"}
	cfg := &config.Config{AreaName: "GLT"}

	if _, err := registerArea(sqlite.NewAreaRepository(db), cameras, cfg, testCameras); err == nil {
		t.Fatal("Expected error when a camera cannot be registered")
	}
	if len(cameras.upserts) != 1 || cameras.upserts[0] != "north" {
		t.Errorf("Expected only north registered, got %v", cameras.upserts)
	}
}
