package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InitSchema creates the job and geocode cache tables. The statements are
// valid for both SQLite and Postgres.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createJobsQuery := `
	CREATE TABLE IF NOT EXISTS jobs (
		job_id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL DEFAULT '',
		client_name TEXT NOT NULL DEFAULT '',
		property_id TEXT NOT NULL DEFAULT '',
		property_address TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		estimated_duration TEXT NOT NULL DEFAULT '',
		scheduled_date TEXT NOT NULL DEFAULT '',
		scheduled_time TEXT NOT NULL DEFAULT ''
	);
	`

	createScheduledVisitsQuery := `
	CREATE TABLE IF NOT EXISTS job_scheduled_visits (
		job_id TEXT NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
		visit_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		visit_date TEXT NOT NULL DEFAULT '',
		visit_time TEXT NOT NULL DEFAULT '',
		duration TEXT NOT NULL DEFAULT '',
		purpose TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (job_id, visit_id)
	);
	`

	createTechniciansQuery := `
	CREATE TABLE IF NOT EXISTS job_technicians (
		job_id TEXT NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
		technician_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		is_primary BOOLEAN NOT NULL DEFAULT FALSE,
		position INTEGER NOT NULL,
		PRIMARY KEY (job_id, technician_id)
	);
	`

	createGeocodeCacheQuery := `
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lon DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_jobs_scheduled_date
	ON jobs(scheduled_date);
	`

	statements := []string{
		createJobsQuery,
		createScheduledVisitsQuery,
		createTechniciansQuery,
		createGeocodeCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
