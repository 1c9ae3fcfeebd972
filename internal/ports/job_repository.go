package ports

import (
	"context"
	"field-visit-service/internal/domain"
)

// Port: a boundary for retrieving Job records from the job store.
type JobRepository interface {
	// Retrieve all jobs with their scheduled visits and technicians.
	ListJobs(ctx context.Context) ([]domain.Job, error)
}

// Write-back target for terminal visit status changes.
// An empty scheduledVisitID addresses the job-level schedule.
type JobStatusWriter interface {
	UpdateVisitStatus(ctx context.Context, jobID, scheduledVisitID string, status domain.VisitStatus) error
}
