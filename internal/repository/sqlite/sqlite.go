package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New creates and initializes a new SQLite database connection. The parent
// directory of dbPath is created when missing.
func New(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS areas (
		area_id INTEGER PRIMARY KEY AUTOINCREMENT,
		area_name TEXT NOT NULL UNIQUE,
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS cameras (
		camera_id INTEGER PRIMARY KEY AUTOINCREMENT,
		camera_name TEXT NOT NULL UNIQUE,
		rtsp_url TEXT NOT NULL,
		area_id INTEGER,
		FOREIGN KEY (area_id) REFERENCES areas(area_id)
	);

	CREATE TABLE IF NOT EXISTS predictions (
		prediction_id INTEGER PRIMARY KEY AUTOINCREMENT,
		area_id INTEGER,
		timestamp DATETIME NOT NULL,
		total_estimate INTEGER NOT NULL,
		FOREIGN KEY (area_id) REFERENCES areas(area_id)
	);

	CREATE TABLE IF NOT EXISTS prediction_details (
		detail_id INTEGER PRIMARY KEY AUTOINCREMENT,
		prediction_id INTEGER NOT NULL,
		camera_id INTEGER NOT NULL,
		image_path TEXT NOT NULL,
		estimated_count INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY (prediction_id) REFERENCES predictions(prediction_id) ON DELETE CASCADE,
		FOREIGN KEY (camera_id) REFERENCES cameras(camera_id)
	);

	CREATE INDEX IF NOT EXISTS idx_predictions_timestamp ON predictions(timestamp);
	CREATE INDEX IF NOT EXISTS idx_predictions_area_id ON predictions(area_id);
	CREATE INDEX IF NOT EXISTS idx_details_prediction_id ON prediction_details(prediction_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}
