package repositories

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"field-visit-service/internal/domain"
	"field-visit-service/internal/platform/db"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(db.DriverSQLite, filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, InitSchema(context.Background(), conn))
	return conn
}

func testJobs() []domain.Job {
	return []domain.Job{
		{
			ID:                "J2",
			ClientName:        "Beta",
			ScheduledDate:     "2024-01-16",
			ScheduledTime:     "13:30",
			EstimatedDuration: "90m",
			Status:            "scheduled",
		},
		{
			ID:              "J1",
			ClientName:      "Acme",
			PropertyAddress: "1 Main St",
			ScheduledVisits: []domain.ScheduledVisit{
				{ID: "sv1", Date: "2024-01-15", Time: "09:00", Duration: "1 hour"},
				{Date: "2024-01-15", Time: "14:00", Duration: "2 hours", Notes: "bring ladder"},
			},
			Technicians: []domain.AssignedTechnician{
				{ID: "T2", Name: "Sam"},
				{ID: "T1", Name: "Tess", IsPrimary: true},
			},
		},
	}
}

func TestSQLJobRepositoryRoundTrip(t *testing.T) {
	conn := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, SaveJobs(ctx, conn, db.DriverSQLite, testJobs()))

	repo := NewSQLJobRepository(conn, db.DriverSQLite, zap.NewNop())
	jobs, err := repo.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	j1 := jobs[0]
	assert.Equal(t, "J1", j1.ID)
	assert.Equal(t, "1 Main St", j1.PropertyAddress)
	require.Len(t, j1.ScheduledVisits, 2)
	assert.Equal(t, "sv1", j1.ScheduledVisits[0].ID)
	assert.Equal(t, "visit-2", j1.ScheduledVisits[1].ID, "records without an id are keyed by position")
	assert.Equal(t, "bring ladder", j1.ScheduledVisits[1].Notes)
	require.Len(t, j1.Technicians, 2)
	assert.Equal(t, "T2", j1.Technicians[0].ID)
	assert.True(t, j1.Technicians[1].IsPrimary)

	assert.Equal(t, "J2", jobs[1].ID)
	assert.Empty(t, jobs[1].ScheduledVisits)
	assert.Equal(t, "13:30", jobs[1].ScheduledTime)
}

func TestSaveJobsReplacesChildren(t *testing.T) {
	conn := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, SaveJobs(ctx, conn, db.DriverSQLite, testJobs()))

	updated := testJobs()[1]
	updated.ClientName = "Acme Corp"
	updated.ScheduledVisits = updated.ScheduledVisits[:1]
	updated.Technicians = nil
	require.NoError(t, SaveJobs(ctx, conn, db.DriverSQLite, []domain.Job{updated}))

	jobs, err := NewSQLJobRepository(conn, db.DriverSQLite, nil).ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Acme Corp", jobs[0].ClientName)
	assert.Len(t, jobs[0].ScheduledVisits, 1)
	assert.Empty(t, jobs[0].Technicians)
}

func TestUpdateVisitStatusSQLite(t *testing.T) {
	conn := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, SaveJobs(ctx, conn, db.DriverSQLite, testJobs()))
	repo := NewSQLJobRepository(conn, db.DriverSQLite, nil)

	require.NoError(t, repo.UpdateVisitStatus(ctx, "J1", "sv1", domain.VisitStatusCompleted))
	require.NoError(t, repo.UpdateVisitStatus(ctx, "J2", "", domain.VisitStatusCancelled))

	jobs, err := repo.ListJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "completed", jobs[0].ScheduledVisits[0].Status)
	assert.Equal(t, "cancelled", jobs[1].Status)

	var nf *domain.NotFoundError
	assert.ErrorAs(t, repo.UpdateVisitStatus(ctx, "J1", "nope", domain.VisitStatusCompleted), &nf)
}

func TestUpdateVisitStatusPostgresBinds(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	repo := NewSQLJobRepository(conn, db.DriverPostgres, nil)

	mock.ExpectExec(`UPDATE job_scheduled_visits SET status = \$1 WHERE job_id = \$2 AND visit_id = \$3`).
		WithArgs("completed", "J1", "sv1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE jobs SET status = \$1 WHERE job_id = \$2`).
		WithArgs("cancelled", "J9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateVisitStatus(context.Background(), "J1", "sv1", domain.VisitStatusCompleted))

	var nf *domain.NotFoundError
	require.ErrorAs(t, repo.UpdateVisitStatus(context.Background(), "J9", "", domain.VisitStatusCancelled), &nf)
	assert.Equal(t, "J9", nf.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListJobsQueryFailure(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery(`FROM jobs`).WillReturnError(sql.ErrConnDone)

	_, err = NewSQLJobRepository(conn, db.DriverPostgres, nil).ListJobs(context.Background())
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListJobsEmptyStoreSkipsChildQueries(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery(`FROM jobs`).WillReturnRows(sqlmock.NewRows([]string{
		"job_id", "client_id", "client_name", "property_id", "property_address",
		"category", "priority", "status", "estimated_duration", "scheduled_date", "scheduled_time",
	}))

	jobs, err := NewSQLJobRepository(conn, db.DriverSQLite, nil).ListJobs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
