package services

import (
	"context"
	"errors"
	"field-visit-service/internal/domain"
	"field-visit-service/internal/platform/obs"
	"field-visit-service/internal/ports"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

// maxSaveAttempts bounds reload-and-reapply after optimistic version conflicts.
const maxSaveAttempts = 3

// ServiceDeps wires a VisitService.
type ServiceDeps struct {
	Jobs      ports.JobRepository
	JobWriter ports.JobStatusWriter
	States    ports.VisitStateStore
	Resolver  ports.LocationResolver
	Sink      ports.TimelineSink
	Stages    []domain.StageDefinition
	Estimator DistanceEstimator
	Threshold float64
	Grid      SlotGrid
	TimeZone  *time.Location
	Log       *zap.Logger
}

// VisitService is the mutation and query surface keyed by visit id.
//
// Each visit has at most one mutation in flight in this process (keyed
// mutex); across processes the state store's optimistic version guards
// against lost updates.
type VisitService struct {
	Directory *VisitDirectory
	Engine    *ProgressEngine
	Tracker   *LocationTracker
	Recorder  *TimelineRecorder
	Optimizer *RouteOptimizer

	states    ports.VisitStateStore
	jobWriter ports.JobStatusWriter
	resolver  ports.LocationResolver
	sink      ports.TimelineSink
	grid      SlotGrid
	tz        *time.Location
	log       *zap.Logger
	locks     keyedMutex
}

func NewVisitService(deps ServiceDeps) *VisitService {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	grid := deps.Grid
	if grid.StepMinutes == 0 {
		grid = DefaultSlotGrid
	}
	tz := deps.TimeZone
	if tz == nil {
		tz = time.UTC
	}

	recorder := NewTimelineRecorder()
	return &VisitService{
		Directory: NewVisitDirectory(deps.Jobs, deps.States, log),
		Engine:    NewProgressEngine(deps.Stages, recorder),
		Tracker:   NewLocationTracker(deps.Estimator, recorder, deps.Threshold),
		Recorder:  recorder,
		Optimizer: NewRouteOptimizer(deps.Resolver, deps.Estimator),
		states:    deps.States,
		jobWriter: deps.JobWriter,
		resolver:  deps.Resolver,
		sink:      deps.Sink,
		grid:      grid,
		tz:        tz,
		log:       log,
	}
}

// mutateFunc changes a working copy of the visit state.
// It may run more than once when a save loses a version race.
type mutateFunc func(ctx context.Context, v domain.Visit, st *domain.VisitState) error

func (s *VisitService) mutate(ctx context.Context, visitID, op string, fn mutateFunc) (_ domain.Visit, err error) {
	defer obs.Time(ctx, s.log, "visits."+op)(&err)

	unlock := s.locks.Lock(visitID)
	defer unlock()

	v, err := s.Directory.DerivedVisit(ctx, visitID)
	if err != nil {
		return domain.Visit{}, err
	}

	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		st, err := s.states.Load(ctx, visitID)
		if err != nil {
			return domain.Visit{}, fmt.Errorf("%s: load state %q: %w", op, visitID, err)
		}
		if st == nil {
			st = s.newState(v)
		}

		before := len(st.Timeline.Events)
		prevStatus := st.Status

		if err := fn(ctx, v, st); err != nil {
			return domain.Visit{}, err
		}

		if err := s.states.Save(ctx, st); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) && attempt < maxSaveAttempts {
				s.log.Debug("visit state version conflict, retrying",
					zap.String("visit_id", visitID), zap.Int("attempt", attempt))
				continue
			}
			return domain.Visit{}, fmt.Errorf("%s: save state %q: %w", op, visitID, err)
		}

		s.publish(ctx, visitID, st.Timeline.Events[before:])
		s.writeBack(ctx, v, prevStatus, st.Status)

		return st.Apply(v), nil
	}

	return domain.Visit{}, fmt.Errorf("%s: save state %q: %w", op, visitID, domain.ErrVersionConflict)
}

// newState seeds the state record of a visit mutated for the first time.
func (s *VisitService) newState(v domain.Visit) *domain.VisitState {
	st := domain.NewVisitState(v)
	st.Timeline.StartedAt = s.Recorder.Now()
	return st
}

// writeBack notifies the job store of a terminal status. It only ever
// flows from the visit engine to the job store.
func (s *VisitService) writeBack(ctx context.Context, v domain.Visit, from, to domain.VisitStatus) {
	if s.jobWriter == nil || from == to {
		return
	}
	if to != domain.VisitStatusCompleted && to != domain.VisitStatusCancelled {
		return
	}
	if err := s.jobWriter.UpdateVisitStatus(ctx, v.JobID, v.ScheduledVisitID, to); err != nil {
		s.log.Error("job status write-back failed",
			zap.String("visit_id", v.ID),
			zap.String("job_id", v.JobID),
			zap.String("status", string(to)),
			zap.Error(err))
	}
}

func (s *VisitService) publish(ctx context.Context, visitID string, events []domain.TimelineEvent) {
	if s.sink == nil || len(events) == 0 {
		return
	}
	if err := s.sink.Publish(ctx, visitID, events); err != nil {
		s.log.Warn("timeline publish failed", zap.String("visit_id", visitID), zap.Error(err))
	}
}

func (s *VisitService) UpdateStatus(ctx context.Context, visitID string, status domain.VisitStatus, actor Actor) (domain.Visit, error) {
	return s.mutate(ctx, visitID, "UpdateStatus", func(_ context.Context, _ domain.Visit, st *domain.VisitState) error {
		return s.Engine.SetStatus(st, status, actor)
	})
}

func (s *VisitService) CheckIn(ctx context.Context, visitID string, actor Actor) (domain.Visit, error) {
	return s.mutate(ctx, visitID, "CheckIn", func(_ context.Context, _ domain.Visit, st *domain.VisitState) error {
		return s.Engine.CheckIn(st, actor)
	})
}

func (s *VisitService) CheckOut(ctx context.Context, visitID string, actor Actor) (domain.Visit, error) {
	return s.mutate(ctx, visitID, "CheckOut", func(_ context.Context, _ domain.Visit, st *domain.VisitState) error {
		return s.Engine.CheckOut(st, actor)
	})
}

func (s *VisitService) StartStage(ctx context.Context, visitID, stageID string, actor Actor) (domain.Visit, error) {
	return s.mutate(ctx, visitID, "StartStage", func(_ context.Context, _ domain.Visit, st *domain.VisitState) error {
		return s.Engine.StartStage(st, stageID, actor)
	})
}

func (s *VisitService) CompleteStage(ctx context.Context, visitID, stageID string, actor Actor) (domain.Visit, error) {
	return s.mutate(ctx, visitID, "CompleteStage", func(_ context.Context, _ domain.Visit, st *domain.VisitState) error {
		return s.Engine.CompleteStage(st, stageID, actor)
	})
}

func (s *VisitService) SkipStage(ctx context.Context, visitID, stageID, reason string, actor Actor) (domain.Visit, error) {
	return s.mutate(ctx, visitID, "SkipStage", func(_ context.Context, _ domain.Visit, st *domain.VisitState) error {
		return s.Engine.SkipStage(st, stageID, reason, actor)
	})
}

func (s *VisitService) AdvanceStage(ctx context.Context, visitID string, actor Actor) (domain.Visit, error) {
	return s.mutate(ctx, visitID, "AdvanceStage", func(_ context.Context, _ domain.Visit, st *domain.VisitState) error {
		return s.Engine.AdvanceStage(st, actor)
	})
}

func (s *VisitService) AddNote(ctx context.Context, visitID, text, category string, actor Actor) (domain.Visit, error) {
	return s.mutate(ctx, visitID, "AddNote", func(_ context.Context, _ domain.Visit, st *domain.VisitState) error {
		_, err := s.Engine.AddNote(st, text, category, actor)
		return err
	})
}

func (s *VisitService) StartTimer(ctx context.Context, visitID, activity, description string, actor Actor) (domain.Visit, error) {
	return s.mutate(ctx, visitID, "StartTimer", func(_ context.Context, _ domain.Visit, st *domain.VisitState) error {
		_, err := s.Engine.StartTimer(st, activity, description, actor)
		return err
	})
}

func (s *VisitService) StopTimer(ctx context.Context, visitID, timerID string, actor Actor) (domain.Visit, error) {
	return s.mutate(ctx, visitID, "StopTimer", func(_ context.Context, _ domain.Visit, st *domain.VisitState) error {
		_, err := s.Engine.StopTimer(st, timerID, actor)
		return err
	})
}

// IngestLocation applies one position sample. When the visit's location
// cannot be resolved the sample is still applied, without distance or ETA.
func (s *VisitService) IngestLocation(ctx context.Context, visitID string, sample domain.LocationCoordinates, actor Actor) (domain.Visit, error) {
	return s.mutate(ctx, visitID, "IngestLocation", func(ctx context.Context, v domain.Visit, st *domain.VisitState) error {
		if actor.TechnicianID == "" {
			actor.TechnicianID = v.TechnicianID
		}
		_, err := s.Tracker.Ingest(st, sample, s.destination(ctx, v), actor)
		return err
	})
}

// manualEventTypes are the event types callers may append directly.
var manualEventTypes = map[domain.TimelineEventType]bool{
	domain.EventIssueReported: true,
	domain.EventPhotoAttached: true,
	domain.EventNoteAdded:     true,
	domain.EventCustom:        true,
}

// AppendEvent records an issue report, photo attachment, note or custom
// event. A note is also added to the progress record.
func (s *VisitService) AppendEvent(
	ctx context.Context,
	visitID string,
	eventType domain.TimelineEventType,
	description string,
	actor Actor,
) (domain.Visit, error) {
	if !manualEventTypes[eventType] {
		return domain.Visit{}, domain.NewValidationError("type", "event type %q cannot be appended directly", eventType)
	}
	if description == "" {
		return domain.Visit{}, domain.NewValidationError("description", "description must be non-empty")
	}
	return s.mutate(ctx, visitID, "AppendEvent", func(_ context.Context, _ domain.Visit, st *domain.VisitState) error {
		// Notes always go through the progress record so both logs agree.
		if eventType == domain.EventNoteAdded {
			_, err := s.Engine.AddNote(st, description, "", actor)
			return err
		}
		s.Recorder.Record(&st.Timeline, eventType, description, actor.TechnicianID, actor.Location)
		return nil
	})
}

// Timeline returns the visit's events matching f, in log order.
func (s *VisitService) Timeline(ctx context.Context, visitID string, f TimelineFilter) ([]domain.TimelineEvent, error) {
	v, err := s.Directory.Get(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if v.Timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	return FilterTimeline(v.Timeline.Events, f), nil
}

// StatusDwell returns how long the visit spent in each recorded status.
func (s *VisitService) StatusDwell(ctx context.Context, visitID string) ([]domain.StatusDwell, error) {
	v, err := s.Directory.Get(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if v.Timeline == nil {
		return []domain.StatusDwell{}, nil
	}
	return DwellTimes(*v.Timeline, v.Status, s.Recorder.Now()), nil
}

// ETA returns the live ETA view next to the scheduled time.
func (s *VisitService) ETA(ctx context.Context, visitID string) (ETAView, error) {
	v, err := s.Directory.Get(ctx, visitID)
	if err != nil {
		return ETAView{}, err
	}
	if v.Location != nil && v.Location.Destination == nil {
		if dest := s.destination(ctx, v); dest != nil {
			loc := *v.Location
			loc.Destination = dest
			v.Location = &loc
		}
	}
	return s.Tracker.LiveETA(v, s.tz), nil
}

// CheckSlot tests a candidate slot against the current visit set.
func (s *VisitService) CheckSlot(ctx context.Context, req SlotRequest) error {
	visits, err := s.Directory.All(ctx)
	if err != nil {
		return err
	}
	return CheckSlot(req, visits)
}

// AvailableSlots lists the free grid slots for a technician on a date.
func (s *VisitService) AvailableSlots(ctx context.Context, date string, durationMinutes int, technicianID string) ([]string, error) {
	visits, err := s.Directory.All(ctx)
	if err != nil {
		return nil, err
	}
	return AvailableSlots(date, durationMinutes, technicianID, s.grid, visits)
}

// OptimizeRoute plans one technician's day and applies the route
// sub-record to each visit. A failed optimization changes nothing.
func (s *VisitService) OptimizeRoute(
	ctx context.Context,
	technicianID, date string,
	start *domain.Coordinates,
) (_ *domain.DailyRoute, err error) {
	defer obs.Time(ctx, s.log, "visits.OptimizeRoute")(&err)

	if technicianID == "" {
		return nil, domain.NewValidationError("technician_id", "technician id is required")
	}
	day, err := NormalizeDate(date)
	if err != nil {
		return nil, err
	}

	visits, err := s.Directory.ForTechnicianDate(ctx, technicianID, day)
	if err != nil {
		return nil, err
	}
	routable := make([]domain.Visit, 0, len(visits))
	for _, v := range visits {
		if v.Status != domain.VisitStatusCancelled && v.Status != domain.VisitStatusNoShow {
			routable = append(routable, v)
		}
	}

	result, err := s.Optimizer.Optimize(ctx, routable, start)
	if err != nil {
		return nil, fmt.Errorf("optimize route for %s on %s: %w", technicianID, day, err)
	}

	ordered, err := s.applyRoutes(ctx, technicianID, ApplyRoute(routable, result))
	if err != nil {
		return nil, err
	}

	return &domain.DailyRoute{
		TechnicianID: technicianID,
		Date:         day,
		Visits:       ordered,
		Result:       *result,
	}, nil
}

// routeChange is one visit's pending route update and what it replaces.
type routeChange struct {
	visit  domain.Visit
	state  *domain.VisitState
	prev   *domain.RouteInfo
	before int
}

// applyRoutes persists the route sub-record of every visit or of none.
// All visits stay locked for the duration; when a save fails the visits
// already saved are restored and nothing is published.
func (s *VisitService) applyRoutes(ctx context.Context, technicianID string, ordered []domain.Visit) (_ []domain.Visit, err error) {
	defer obs.Time(ctx, s.log, "visits.ApplyRoute")(&err)

	ids := make([]string, 0, len(ordered))
	for _, v := range ordered {
		ids = append(ids, v.ID)
	}
	slices.Sort(ids)
	for _, id := range ids {
		unlock := s.locks.Lock(id)
		defer unlock()
	}

	changes := make([]routeChange, 0, len(ordered))
	for _, v := range ordered {
		st, err := s.states.Load(ctx, v.ID)
		if err != nil {
			return nil, fmt.Errorf("apply route: load state %q: %w", v.ID, err)
		}
		if st == nil {
			st = s.newState(v)
		}
		c := routeChange{visit: v, state: st, prev: st.Route, before: len(st.Timeline.Events)}
		st.Route = v.Route
		s.Recorder.Record(&st.Timeline, domain.EventRouteOptimized,
			fmt.Sprintf("Route optimized: stop %d of %d", v.Route.Order, len(ordered)),
			technicianID, nil)
		changes = append(changes, c)
	}

	for i := range changes {
		if err := s.states.Save(ctx, changes[i].state); err != nil {
			s.revertRoutes(ctx, changes[:i])
			return nil, fmt.Errorf("apply route to visit %q: %w", changes[i].visit.ID, err)
		}
	}

	out := make([]domain.Visit, 0, len(changes))
	for _, c := range changes {
		s.publish(ctx, c.visit.ID, c.state.Timeline.Events[c.before:])
		out = append(out, c.state.Apply(c.visit))
	}
	return out, nil
}

// revertRoutes restores the route and timeline saved before applyRoutes.
func (s *VisitService) revertRoutes(ctx context.Context, saved []routeChange) {
	for _, c := range saved {
		c.state.Route = c.prev
		c.state.Timeline.Events = c.state.Timeline.Events[:c.before]
		if err := s.states.Save(ctx, c.state); err != nil {
			s.log.Error("revert route failed", zap.String("visit_id", c.visit.ID), zap.Error(err))
		}
	}
}

func (s *VisitService) destination(ctx context.Context, v domain.Visit) *domain.Coordinates {
	if s.resolver == nil {
		return nil
	}
	c, err := s.resolver.ResolveVisit(ctx, v)
	if err != nil {
		s.log.Warn("resolve visit destination failed", zap.String("visit_id", v.ID), zap.Error(err))
		return nil
	}
	return &c
}
