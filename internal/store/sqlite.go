package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// migrations is an ordered list of SQL statements applied on startup.
// Each entry is idempotent (IF NOT EXISTS) so re-running is safe.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS deployments (
		id            TEXT PRIMARY KEY,
		app_id        TEXT NOT NULL,
		build_id      TEXT NOT NULL,
		device_serial TEXT NOT NULL DEFAULT '',
		deployed_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_deployments_app ON deployments (app_id, deployed_at)`,
}

// SQLiteStore implements Store using a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at path and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite handles one writer at a time.

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	for _, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) RecordDeployment(ctx context.Context, d *Deployment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deployments (id, app_id, build_id, device_serial, deployed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.AppID, d.BuildID, d.DeviceSerial,
		d.DeployedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteStore) LatestDeployment(ctx context.Context, appID, deviceSerial string) (*Deployment, error) {
	return s.scanDeployment(s.db.QueryRowContext(ctx,
		`SELECT id, app_id, build_id, device_serial, deployed_at FROM deployments
		 WHERE app_id = ? AND device_serial = ?
		 ORDER BY deployed_at DESC LIMIT 1`, appID, deviceSerial))
}

func (s *SQLiteStore) ListDeployments(ctx context.Context, appID string) ([]*Deployment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, app_id, build_id, device_serial, deployed_at FROM deployments
		 WHERE app_id = ? ORDER BY deployed_at DESC`, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var deployments []*Deployment
	for rows.Next() {
		var d Deployment
		var deployed string
		if err := rows.Scan(&d.ID, &d.AppID, &d.BuildID, &d.DeviceSerial, &deployed); err != nil {
			return nil, err
		}
		d.DeployedAt, _ = time.Parse(time.RFC3339Nano, deployed)
		deployments = append(deployments, &d)
	}
	return deployments, rows.Err()
}

func (s *SQLiteStore) DeleteDeployments(ctx context.Context, appID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM deployments WHERE app_id = ?`, appID)
	return err
}

func (s *SQLiteStore) scanDeployment(row *sql.Row) (*Deployment, error) {
	var d Deployment
	var deployed string
	if err := row.Scan(&d.ID, &d.AppID, &d.BuildID, &d.DeviceSerial, &deployed); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	d.DeployedAt, _ = time.Parse(time.RFC3339Nano, deployed)
	return &d, nil
}
