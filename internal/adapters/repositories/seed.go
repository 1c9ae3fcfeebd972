package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"field-visit-service/internal/domain"
	"field-visit-service/internal/platform/db"
	"fmt"
	"os"
	"strings"
)

// SeedFromJSON loads jobs from a JSON array file and upserts them. A job's
// scheduled visits and technicians are replaced wholesale. It returns the
// number of jobs written.
func SeedFromJSON(ctx context.Context, conn *sql.DB, driver, jsonPath string) (int, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return 0, fmt.Errorf("seed jobs: read %q: %w", jsonPath, err)
	}

	var jobs []domain.Job
	if err := json.Unmarshal(bytes, &jobs); err != nil {
		return 0, fmt.Errorf("seed jobs: parse json: %w", err)
	}

	for i := range jobs {
		jobs[i].ID = strings.TrimSpace(jobs[i].ID)
		if jobs[i].ID == "" {
			return 0, fmt.Errorf("seed jobs: job at index %d: id cannot be empty", i+1)
		}
	}

	if err := SaveJobs(ctx, conn, driver, jobs); err != nil {
		return 0, fmt.Errorf("seed jobs: %w", err)
	}
	return len(jobs), nil
}

// SaveJobs upserts jobs in one transaction.
func SaveJobs(ctx context.Context, conn *sql.DB, driver string, jobs []domain.Job) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save jobs: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsertJob, err := tx.PrepareContext(ctx, db.Rebind(driver, `
	INSERT INTO jobs (
		job_id, client_id, client_name, property_id, property_address,
		category, priority, status, estimated_duration, scheduled_date, scheduled_time
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (job_id) DO UPDATE
	SET client_id = excluded.client_id,
		client_name = excluded.client_name,
		property_id = excluded.property_id,
		property_address = excluded.property_address,
		category = excluded.category,
		priority = excluded.priority,
		status = excluded.status,
		estimated_duration = excluded.estimated_duration,
		scheduled_date = excluded.scheduled_date,
		scheduled_time = excluded.scheduled_time;
	`))
	if err != nil {
		return fmt.Errorf("save jobs: prepare job upsert: %w", err)
	}
	defer upsertJob.Close()

	insertVisit, err := tx.PrepareContext(ctx, db.Rebind(driver, `
	INSERT INTO job_scheduled_visits (
		job_id, visit_id, position, visit_date, visit_time, duration, purpose, status, notes
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
	`))
	if err != nil {
		return fmt.Errorf("save jobs: prepare visit insert: %w", err)
	}
	defer insertVisit.Close()

	insertTech, err := tx.PrepareContext(ctx, db.Rebind(driver, `
	INSERT INTO job_technicians (job_id, technician_id, name, is_primary, position)
	VALUES (?, ?, ?, ?, ?);
	`))
	if err != nil {
		return fmt.Errorf("save jobs: prepare technician insert: %w", err)
	}
	defer insertTech.Close()

	for _, j := range jobs {
		if _, err := upsertJob.ExecContext(ctx,
			j.ID, j.ClientID, j.ClientName, j.PropertyID, j.PropertyAddress,
			j.Category, j.Priority, j.Status, j.EstimatedDuration, j.ScheduledDate, j.ScheduledTime,
		); err != nil {
			return fmt.Errorf("save jobs: upsert job_id=%q: %w", j.ID, err)
		}

		for _, table := range []string{"job_scheduled_visits", "job_technicians"} {
			q := db.Rebind(driver, "DELETE FROM "+table+" WHERE job_id = ?;")
			if _, err := tx.ExecContext(ctx, q, j.ID); err != nil {
				return fmt.Errorf("save jobs: clear %s job_id=%q: %w", table, j.ID, err)
			}
		}

		for pos, sv := range j.ScheduledVisits {
			if _, err := insertVisit.ExecContext(ctx,
				j.ID, sv.Key(pos), pos, sv.Date, sv.Time, sv.Duration, sv.Purpose, sv.Status, sv.Notes,
			); err != nil {
				return fmt.Errorf("save jobs: insert visit job_id=%q visit_id=%q: %w", j.ID, sv.Key(pos), err)
			}
		}

		for pos, t := range j.Technicians {
			if _, err := insertTech.ExecContext(ctx, j.ID, t.ID, t.Name, t.IsPrimary, pos); err != nil {
				return fmt.Errorf("save jobs: insert technician job_id=%q technician_id=%q: %w", j.ID, t.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save jobs: commit tx: %w", err)
	}
	return nil
}
