package repositories

import (
	"context"
	"database/sql"
	"errors"
	"field-visit-service/internal/domain"
	"field-visit-service/internal/platform/db"
	"field-visit-service/internal/platform/obs"
	"fmt"

	"go.uber.org/zap"
)

// SQLJobRepository implements the JobRepository and JobStatusWriter ports
// over Postgres or SQLite.
type SQLJobRepository struct {
	DB     *sql.DB
	Driver string
	log    *zap.Logger
}

func NewSQLJobRepository(conn *sql.DB, driver string, log *zap.Logger) *SQLJobRepository {
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLJobRepository{DB: conn, Driver: driver, log: log}
}

// Return all jobs with their scheduled visits and technicians, in job id
// order. Sub-records keep their stored position.
func (r *SQLJobRepository) ListJobs(ctx context.Context) (_ []domain.Job, err error) {
	defer obs.Time(ctx, r.log, "jobs.ListJobs")(&err)

	if r.DB == nil {
		return nil, errors.New("sql job repository: DB is nil")
	}

	query := `
	SELECT
		job_id, client_id, client_name, property_id, property_address,
		category, priority, status, estimated_duration, scheduled_date, scheduled_time
	FROM jobs
	ORDER BY job_id;
	`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list jobs: query jobs table: %w", err)
	}
	defer rows.Close()

	jobs := make([]domain.Job, 0, 64)
	index := make(map[string]int)
	for rows.Next() {
		var j domain.Job
		if err := rows.Scan(
			&j.ID, &j.ClientID, &j.ClientName, &j.PropertyID, &j.PropertyAddress,
			&j.Category, &j.Priority, &j.Status, &j.EstimatedDuration, &j.ScheduledDate, &j.ScheduledTime,
		); err != nil {
			return nil, fmt.Errorf("list jobs: scan job row: %w", err)
		}
		index[j.ID] = len(jobs)
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: job row iteration: %w", err)
	}

	if len(jobs) == 0 {
		return jobs, nil
	}

	if err := r.loadScheduledVisits(ctx, jobs, index); err != nil {
		return nil, err
	}
	if err := r.loadTechnicians(ctx, jobs, index); err != nil {
		return nil, err
	}

	return jobs, nil
}

func (r *SQLJobRepository) loadScheduledVisits(ctx context.Context, jobs []domain.Job, index map[string]int) error {
	query := `
	SELECT job_id, visit_id, visit_date, visit_time, duration, purpose, status, notes
	FROM job_scheduled_visits
	ORDER BY job_id, position;
	`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("list jobs: query job_scheduled_visits table: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var jobID string
		var sv domain.ScheduledVisit
		if err := rows.Scan(&jobID, &sv.ID, &sv.Date, &sv.Time, &sv.Duration, &sv.Purpose, &sv.Status, &sv.Notes); err != nil {
			return fmt.Errorf("list jobs: scan scheduled visit row: %w", err)
		}
		i, ok := index[jobID]
		if !ok {
			continue
		}
		jobs[i].ScheduledVisits = append(jobs[i].ScheduledVisits, sv)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list jobs: scheduled visit row iteration: %w", err)
	}
	return nil
}

func (r *SQLJobRepository) loadTechnicians(ctx context.Context, jobs []domain.Job, index map[string]int) error {
	query := `
	SELECT job_id, technician_id, name, is_primary
	FROM job_technicians
	ORDER BY job_id, position;
	`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("list jobs: query job_technicians table: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var jobID string
		var t domain.AssignedTechnician
		if err := rows.Scan(&jobID, &t.ID, &t.Name, &t.IsPrimary); err != nil {
			return fmt.Errorf("list jobs: scan technician row: %w", err)
		}
		i, ok := index[jobID]
		if !ok {
			continue
		}
		jobs[i].Technicians = append(jobs[i].Technicians, t)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list jobs: technician row iteration: %w", err)
	}
	return nil
}

// UpdateVisitStatus writes a terminal visit status back to the job store.
// An empty scheduledVisitID targets the job-level status of a synthesized
// visit.
func (r *SQLJobRepository) UpdateVisitStatus(
	ctx context.Context,
	jobID string,
	scheduledVisitID string,
	status domain.VisitStatus,
) (err error) {
	defer obs.Time(ctx, r.log, "jobs.UpdateVisitStatus")(&err)

	if r.DB == nil {
		return errors.New("sql job repository: DB is nil")
	}

	var res sql.Result
	if scheduledVisitID == "" {
		res, err = r.DB.ExecContext(ctx,
			db.Rebind(r.Driver, `UPDATE jobs SET status = ? WHERE job_id = ?;`),
			string(status), jobID)
	} else {
		res, err = r.DB.ExecContext(ctx,
			db.Rebind(r.Driver, `UPDATE job_scheduled_visits SET status = ? WHERE job_id = ? AND visit_id = ?;`),
			string(status), jobID, scheduledVisitID)
	}
	if err != nil {
		return fmt.Errorf("update visit status job_id=%q visit_id=%q: %w", jobID, scheduledVisitID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update visit status: rows affected: %w", err)
	}
	if n == 0 {
		id := jobID
		if scheduledVisitID != "" {
			id = jobID + "/" + scheduledVisitID
		}
		return &domain.NotFoundError{Kind: "job visit", ID: id}
	}
	return nil
}
