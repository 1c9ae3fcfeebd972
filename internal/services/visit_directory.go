package services

import (
	"context"
	"field-visit-service/internal/domain"
	"field-visit-service/internal/platform/obs"
	"field-visit-service/internal/ports"
	"fmt"

	"go.uber.org/zap"
)

// VisitDirectory answers visit queries by recomputing visits from the job
// store on every read and overlaying the persisted sub-state. Nothing about
// the derived visit itself is cached, so job edits are visible immediately.
type VisitDirectory struct {
	jobs   ports.JobRepository
	states ports.VisitStateStore
	log    *zap.Logger
}

func NewVisitDirectory(jobs ports.JobRepository, states ports.VisitStateStore, log *zap.Logger) *VisitDirectory {
	if log == nil {
		log = zap.NewNop()
	}
	return &VisitDirectory{jobs: jobs, states: states, log: log}
}

// Derived returns the visits computed from the job store, without sub-state.
func (d *VisitDirectory) Derived(ctx context.Context) (_ []domain.Visit, err error) {
	defer obs.Time(ctx, d.log, "visits.Derived")(&err)

	jobs, err := d.jobs.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("derive visits: list jobs: %w", err)
	}
	return DeriveVisits(jobs), nil
}

// All returns every visit with its sub-state applied.
func (d *VisitDirectory) All(ctx context.Context) ([]domain.Visit, error) {
	visits, err := d.Derived(ctx)
	if err != nil {
		return nil, err
	}
	if len(visits) == 0 {
		return visits, nil
	}

	ids := make([]string, 0, len(visits))
	for _, v := range visits {
		ids = append(ids, v.ID)
	}
	states, err := d.states.LoadMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list visits: load states: %w", err)
	}

	for i := range visits {
		if st, ok := states[visits[i].ID]; ok {
			visits[i] = st.Apply(visits[i])
		}
	}
	return visits, nil
}

func (d *VisitDirectory) List(ctx context.Context, f VisitFilter) ([]domain.Visit, error) {
	visits, err := d.All(ctx)
	if err != nil {
		return nil, err
	}
	return FilterVisits(visits, f), nil
}

// DerivedVisit returns one derived visit or a *domain.NotFoundError.
func (d *VisitDirectory) DerivedVisit(ctx context.Context, visitID string) (domain.Visit, error) {
	visits, err := d.Derived(ctx)
	if err != nil {
		return domain.Visit{}, err
	}
	for _, v := range visits {
		if v.ID == visitID {
			return v, nil
		}
	}
	return domain.Visit{}, &domain.NotFoundError{Kind: "visit", ID: visitID}
}

func (d *VisitDirectory) Get(ctx context.Context, visitID string) (domain.Visit, error) {
	v, err := d.DerivedVisit(ctx, visitID)
	if err != nil {
		return domain.Visit{}, err
	}
	st, err := d.states.Load(ctx, visitID)
	if err != nil {
		return domain.Visit{}, fmt.Errorf("get visit %q: load state: %w", visitID, err)
	}
	return st.Apply(v), nil
}

func (d *VisitDirectory) ForDate(ctx context.Context, date string) ([]domain.Visit, error) {
	return d.List(ctx, VisitFilter{Date: date})
}

func (d *VisitDirectory) ForTechnicianDate(ctx context.Context, technicianID, date string) ([]domain.Visit, error) {
	return d.List(ctx, VisitFilter{Date: date, TechnicianID: technicianID})
}
