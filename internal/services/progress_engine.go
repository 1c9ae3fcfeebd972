package services

import (
	"field-visit-service/internal/domain"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultStages is the standard on-site work pipeline.
var DefaultStages = []domain.StageDefinition{
	{ID: "travel", Name: "Travel", EstimatedMinutes: 30},
	{ID: "arrival", Name: "Arrival", EstimatedMinutes: 5},
	{ID: "assessment", Name: "Assessment", EstimatedMinutes: 15},
	{ID: "work", Name: "Work", EstimatedMinutes: 60},
	{ID: "testing", Name: "Testing", EstimatedMinutes: 15},
	{ID: "cleanup", Name: "Cleanup", EstimatedMinutes: 10},
	{ID: "completion", Name: "Completion", EstimatedMinutes: 5},
}

// Actor identifies who performs a mutation and, optionally, where.
type Actor struct {
	TechnicianID string
	Location     *domain.LocationCoordinates
}

// ProgressEngine drives the stage pipeline and the visit status machine.
//
// Stage status is the authoritative machine; visit status is projected from
// it by ProjectStatus after every stage mutation. Check-in and check-out are
// the only explicit status overrides.
type ProgressEngine struct {
	Stages   []domain.StageDefinition
	Timeline *TimelineRecorder
	Now      func() time.Time
	NewID    func() string
}

func NewProgressEngine(stages []domain.StageDefinition, recorder *TimelineRecorder) *ProgressEngine {
	if len(stages) == 0 {
		stages = DefaultStages
	}
	if recorder == nil {
		recorder = NewTimelineRecorder()
	}
	return &ProgressEngine{
		Stages:   stages,
		Timeline: recorder,
		Now:      recorder.Now,
		NewID:    uuid.NewString,
	}
}

// NewProgress builds a fresh progress record with every stage pending.
func (e *ProgressEngine) NewProgress(visitID string) *domain.VisitProgress {
	stages := make([]domain.VisitStageProgress, 0, len(e.Stages))
	for _, def := range e.Stages {
		stages = append(stages, domain.VisitStageProgress{Stage: def, Status: domain.StageStatusPending})
	}
	return &domain.VisitProgress{
		VisitID:     visitID,
		Stages:      stages,
		Notes:       []domain.ProgressNote{},
		TimeEntries: []domain.TimeEntry{},
	}
}

// CompletionPercentage is round(100 * completed / total). Skipped stages do
// not count toward the numerator.
func CompletionPercentage(stages []domain.VisitStageProgress) int {
	if len(stages) == 0 {
		return 0
	}
	completed := 0
	for _, s := range stages {
		if s.Status == domain.StageStatusCompleted {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(len(stages))))
}

// ProjectStatus derives the visit status from stage completion.
// Terminal statuses are kept; 100% means completed; any partial progress
// means in-progress; no progress keeps the current status.
func ProjectStatus(current domain.VisitStatus, completionPercentage int) domain.VisitStatus {
	switch {
	case current.Terminal():
		return current
	case completionPercentage >= 100:
		return domain.VisitStatusCompleted
	case completionPercentage > 0:
		return domain.VisitStatusInProgress
	default:
		return current
	}
}

// SetStatus applies a technician-initiated status transition.
func (e *ProgressEngine) SetStatus(state *domain.VisitState, to domain.VisitStatus, actor Actor) error {
	if !to.Valid() {
		return domain.NewValidationError("status", "unknown status %q", to)
	}
	if !state.Status.CanTransition(to) {
		return &domain.PreconditionError{
			Op:     "update status",
			Reason: fmt.Sprintf("cannot move from %s to %s", state.Status, to),
		}
	}
	e.changeStatus(state, to, false, actor)
	return nil
}

// CheckIn records arrival: it completes the first stage, starts the second
// and moves the visit to arrived.
func (e *ProgressEngine) CheckIn(state *domain.VisitState, actor Actor) error {
	if err := requireActive(state, "check in"); err != nil {
		return err
	}
	p := e.progress(state)
	if p.CheckInTime != nil {
		return &domain.PreconditionError{Op: "check in", Reason: "visit already checked in"}
	}

	now := e.Now()
	p.CheckInTime = &now
	if p.ActualStartTime == nil {
		p.ActualStartTime = &now
	}
	e.Timeline.Record(&state.Timeline, domain.EventCheckIn, "Technician checked in", actor.TechnicianID, actor.Location)

	if len(p.Stages) > 0 {
		first := &p.Stages[0]
		if first.Status == domain.StageStatusPending {
			e.startStage(state, 0, actor)
		}
		if first.Status == domain.StageStatusInProgress {
			e.completeStage(state, 0, actor)
		}
	}
	if len(p.Stages) > 1 && p.Stages[1].Status == domain.StageStatusPending {
		e.startStage(state, 1, actor)
	}
	p.CompletionPercentage = CompletionPercentage(p.Stages)

	if state.Status.CanTransition(domain.VisitStatusArrived) {
		e.changeStatus(state, domain.VisitStatusArrived, false, actor)
	}
	// A short pipeline may be finished by check-in alone.
	if p.CompletionPercentage >= 100 {
		e.project(state, actor)
	}
	return nil
}

// CheckOut always forces the visit to completed, whatever the stage
// completion, and stops a running timer.
func (e *ProgressEngine) CheckOut(state *domain.VisitState, actor Actor) error {
	if state.Status == domain.VisitStatusCancelled || state.Status == domain.VisitStatusNoShow {
		return &domain.PreconditionError{Op: "check out", Reason: "visit is " + string(state.Status)}
	}
	p := e.progress(state)
	if p.CheckOutTime != nil {
		return &domain.PreconditionError{Op: "check out", Reason: "visit already checked out"}
	}

	now := e.Now()
	if i := p.RunningTimer(); i >= 0 {
		e.stopTimer(state, i, actor)
	}
	p.CheckOutTime = &now
	p.ActualEndTime = &now
	e.Timeline.Record(&state.Timeline, domain.EventCheckOut, "Technician checked out", actor.TechnicianID, actor.Location)

	if state.Status != domain.VisitStatusCompleted {
		e.changeStatus(state, domain.VisitStatusCompleted, false, actor)
	}
	return nil
}

// StartStage moves a pending stage to in-progress.
func (e *ProgressEngine) StartStage(state *domain.VisitState, stageID string, actor Actor) error {
	if err := requireActive(state, "start stage"); err != nil {
		return err
	}
	p := e.progress(state)
	idx, err := stageIndex(p, stageID)
	if err != nil {
		return err
	}
	if s := p.Stages[idx].Status; s != domain.StageStatusPending {
		return &domain.PreconditionError{Op: "start stage", Reason: fmt.Sprintf("stage %q is %s", stageID, s)}
	}
	if running := inProgressStage(p); running >= 0 {
		return &domain.PreconditionError{
			Op:     "start stage",
			Reason: fmt.Sprintf("stage %q is still in progress", p.Stages[running].Stage.ID),
		}
	}

	e.startStage(state, idx, actor)
	e.project(state, actor)
	return nil
}

// CompleteStage completes an in-progress stage. A stage that was never
// started cannot be completed.
func (e *ProgressEngine) CompleteStage(state *domain.VisitState, stageID string, actor Actor) error {
	if err := requireActive(state, "complete stage"); err != nil {
		return err
	}
	p := e.progress(state)
	idx, err := stageIndex(p, stageID)
	if err != nil {
		return err
	}
	if s := p.Stages[idx].Status; s != domain.StageStatusInProgress {
		reason := fmt.Sprintf("stage %q is %s", stageID, s)
		if s == domain.StageStatusPending {
			reason = fmt.Sprintf("stage %q was never started", stageID)
		}
		return &domain.PreconditionError{Op: "complete stage", Reason: reason}
	}

	e.completeStage(state, idx, actor)
	e.project(state, actor)
	return nil
}

// SkipStage marks a pending or in-progress stage as skipped.
func (e *ProgressEngine) SkipStage(state *domain.VisitState, stageID, reason string, actor Actor) error {
	if err := requireActive(state, "skip stage"); err != nil {
		return err
	}
	p := e.progress(state)
	idx, err := stageIndex(p, stageID)
	if err != nil {
		return err
	}
	st := &p.Stages[idx]
	if st.Status != domain.StageStatusPending && st.Status != domain.StageStatusInProgress {
		return &domain.PreconditionError{Op: "skip stage", Reason: fmt.Sprintf("stage %q is %s", stageID, st.Status)}
	}

	now := e.Now()
	st.Status = domain.StageStatusSkipped
	st.EndTime = &now
	if st.StartTime != nil {
		st.DurationMinutes = elapsedMinutes(*st.StartTime, now)
	}
	p.CurrentStageIndex = nextPendingStage(p, idx)

	desc := "Stage " + st.Stage.Name + " skipped"
	if r := strings.TrimSpace(reason); r != "" {
		desc += ": " + r
	}
	e.Timeline.Record(&state.Timeline, domain.EventStageSkipped, desc, actor.TechnicianID, actor.Location)
	e.project(state, actor)
	return nil
}

// AdvanceStage completes the in-progress stage, if any, and starts the next
// pending one.
func (e *ProgressEngine) AdvanceStage(state *domain.VisitState, actor Actor) error {
	if err := requireActive(state, "advance stage"); err != nil {
		return err
	}
	p := e.progress(state)

	from := -1
	if running := inProgressStage(p); running >= 0 {
		e.completeStage(state, running, actor)
		from = running
	}
	next := nextPendingStage(p, from)
	if next < len(p.Stages) {
		e.startStage(state, next, actor)
	} else if from < 0 {
		return &domain.PreconditionError{Op: "advance stage", Reason: "no remaining stages"}
	}

	e.project(state, actor)
	return nil
}

// AddNote appends a free-form note to the progress record.
func (e *ProgressEngine) AddNote(state *domain.VisitState, text, category string, actor Actor) (domain.ProgressNote, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ProgressNote{}, domain.NewValidationError("text", "note text must be non-empty")
	}
	if category == "" {
		category = "general"
	}

	p := e.progress(state)
	note := domain.ProgressNote{
		ID:           e.NewID(),
		Text:         text,
		Category:     category,
		TechnicianID: actor.TechnicianID,
		CreatedAt:    e.Now(),
	}
	p.Notes = append(p.Notes, note)
	e.Timeline.Record(&state.Timeline, domain.EventNoteAdded, text, actor.TechnicianID, actor.Location)
	return note, nil
}

// StartTimer starts a named activity timer. Only one timer may run at a time.
func (e *ProgressEngine) StartTimer(state *domain.VisitState, activity, description string, actor Actor) (domain.TimeEntry, error) {
	activity = strings.TrimSpace(activity)
	if activity == "" {
		return domain.TimeEntry{}, domain.NewValidationError("activity", "activity must be non-empty")
	}
	p := e.progress(state)
	if i := p.RunningTimer(); i >= 0 {
		return domain.TimeEntry{}, &domain.PreconditionError{
			Op:     "start timer",
			Reason: fmt.Sprintf("timer %q (%s) is already running", p.TimeEntries[i].ID, p.TimeEntries[i].Activity),
		}
	}

	entry := domain.TimeEntry{
		ID:           e.NewID(),
		Activity:     activity,
		Description:  description,
		TechnicianID: actor.TechnicianID,
		StartTime:    e.Now(),
	}
	p.TimeEntries = append(p.TimeEntries, entry)
	e.Timeline.Record(&state.Timeline, domain.EventTimerStarted, "Timer started: "+activity, actor.TechnicianID, actor.Location)
	return entry, nil
}

// StopTimer stops the running timer with the given id.
func (e *ProgressEngine) StopTimer(state *domain.VisitState, timerID string, actor Actor) (domain.TimeEntry, error) {
	p := e.progress(state)
	for i := range p.TimeEntries {
		if p.TimeEntries[i].ID != timerID {
			continue
		}
		if !p.TimeEntries[i].Running() {
			return domain.TimeEntry{}, &domain.PreconditionError{Op: "stop timer", Reason: fmt.Sprintf("timer %q is not running", timerID)}
		}
		e.stopTimer(state, i, actor)
		return p.TimeEntries[i], nil
	}
	return domain.TimeEntry{}, &domain.NotFoundError{Kind: "timer", ID: timerID}
}

func (e *ProgressEngine) stopTimer(state *domain.VisitState, i int, actor Actor) {
	p := state.Progress
	now := e.Now()
	entry := &p.TimeEntries[i]
	entry.EndTime = &now
	entry.DurationMinutes = elapsedMinutes(entry.StartTime, now)
	e.Timeline.Record(&state.Timeline, domain.EventTimerStopped,
		fmt.Sprintf("Timer stopped: %s (%d min)", entry.Activity, entry.DurationMinutes),
		actor.TechnicianID, actor.Location)
}

func (e *ProgressEngine) startStage(state *domain.VisitState, idx int, actor Actor) {
	p := state.Progress
	now := e.Now()
	st := &p.Stages[idx]
	st.Status = domain.StageStatusInProgress
	st.StartTime = &now
	st.EndTime = nil
	p.CurrentStageIndex = idx
	if p.ActualStartTime == nil {
		p.ActualStartTime = &now
	}
	e.Timeline.Record(&state.Timeline, domain.EventStageStarted, "Stage "+st.Stage.Name+" started", actor.TechnicianID, actor.Location)
}

func (e *ProgressEngine) completeStage(state *domain.VisitState, idx int, actor Actor) {
	p := state.Progress
	now := e.Now()
	st := &p.Stages[idx]
	st.Status = domain.StageStatusCompleted
	st.EndTime = &now
	if st.StartTime == nil {
		st.StartTime = &now
	}
	st.DurationMinutes = elapsedMinutes(*st.StartTime, now)
	p.CurrentStageIndex = nextPendingStage(p, idx)
	e.Timeline.Record(&state.Timeline, domain.EventStageCompleted,
		fmt.Sprintf("Stage %s completed (%d min)", st.Stage.Name, st.DurationMinutes),
		actor.TechnicianID, actor.Location)
}

// project recomputes completion and applies the derived visit status.
func (e *ProgressEngine) project(state *domain.VisitState, actor Actor) {
	p := state.Progress
	p.CompletionPercentage = CompletionPercentage(p.Stages)
	next := ProjectStatus(state.Status, p.CompletionPercentage)
	if next == state.Status {
		return
	}
	if next == domain.VisitStatusCompleted && p.ActualEndTime == nil {
		now := e.Now()
		p.ActualEndTime = &now
	}
	e.changeStatus(state, next, true, actor)
}

func (e *ProgressEngine) changeStatus(state *domain.VisitState, to domain.VisitStatus, automatic bool, actor Actor) {
	from := state.Status
	state.Status = to
	e.Timeline.RecordStatusChange(&state.Timeline, from, to, automatic, actor.TechnicianID, actor.Location)
}

// progress lazily creates the progress record.
func (e *ProgressEngine) progress(state *domain.VisitState) *domain.VisitProgress {
	if state.Progress == nil {
		state.Progress = e.NewProgress(state.VisitID)
	}
	return state.Progress
}

func requireActive(state *domain.VisitState, op string) error {
	if state.Status.Terminal() {
		return &domain.PreconditionError{Op: op, Reason: "visit is " + string(state.Status)}
	}
	return nil
}

func stageIndex(p *domain.VisitProgress, stageID string) (int, error) {
	idx := p.StageIndex(stageID)
	if idx < 0 {
		return -1, &domain.NotFoundError{Kind: "stage", ID: stageID}
	}
	return idx, nil
}

func inProgressStage(p *domain.VisitProgress) int {
	for i := range p.Stages {
		if p.Stages[i].Status == domain.StageStatusInProgress {
			return i
		}
	}
	return -1
}

// nextPendingStage returns the first pending stage after idx, else the first
// pending stage overall, else len(stages).
func nextPendingStage(p *domain.VisitProgress, idx int) int {
	for i := idx + 1; i < len(p.Stages); i++ {
		if p.Stages[i].Status == domain.StageStatusPending {
			return i
		}
	}
	for i := 0; i <= idx && i < len(p.Stages); i++ {
		if p.Stages[i].Status == domain.StageStatusPending {
			return i
		}
	}
	return len(p.Stages)
}

// elapsedMinutes clamps to zero when the clock went backwards.
func elapsedMinutes(start, end time.Time) int {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return int(math.Round(d.Minutes()))
}
