package services

import (
	"field-visit-service/internal/domain"
	"slices"
	"time"

	"github.com/google/uuid"
)

// TimelineRecorder appends immutable events to a visit's timeline.
//
// The recorder itself holds no state; callers serialize mutations of a given
// visit (see VisitService), so appends keep per-visit logical order.
type TimelineRecorder struct {
	Now   func() time.Time
	NewID func() string
}

func NewTimelineRecorder() *TimelineRecorder {
	return &TimelineRecorder{
		Now:   func() time.Time { return time.Now().UTC() },
		NewID: uuid.NewString,
	}
}

// Record appends one event and returns it.
func (r *TimelineRecorder) Record(
	tl *domain.VisitTimeline,
	eventType domain.TimelineEventType,
	description string,
	technicianID string,
	location *domain.LocationCoordinates,
) domain.TimelineEvent {
	ev := domain.TimelineEvent{
		ID:           r.NewID(),
		Timestamp:    r.Now(),
		Type:         eventType,
		Description:  description,
		Location:     copyLocation(location),
		TechnicianID: technicianID,
	}
	tl.Events = append(tl.Events, ev)
	return ev
}

// RecordStatusChange appends a status_change event and the matching
// statusHistory entry. Automatic marks system-derived changes.
func (r *TimelineRecorder) RecordStatusChange(
	tl *domain.VisitTimeline,
	from, to domain.VisitStatus,
	automatic bool,
	technicianID string,
	location *domain.LocationCoordinates,
) domain.TimelineEvent {
	ev := domain.TimelineEvent{
		ID:           r.NewID(),
		Timestamp:    r.Now(),
		Type:         domain.EventStatusChange,
		Description:  statusDescription(from, to, automatic),
		Location:     copyLocation(location),
		TechnicianID: technicianID,
		FromStatus:   from,
		ToStatus:     to,
		Automatic:    automatic,
	}
	tl.Events = append(tl.Events, ev)
	tl.StatusHistory = append(tl.StatusHistory, domain.StatusChange{
		FromStatus:   from,
		ToStatus:     to,
		Timestamp:    ev.Timestamp,
		Automatic:    automatic,
		TechnicianID: technicianID,
	})
	return ev
}

// TimelineFilter selects events. Empty fields match everything; From is
// inclusive and To is exclusive.
type TimelineFilter struct {
	Types        []domain.TimelineEventType
	TechnicianID string
	From         *time.Time
	To           *time.Time
}

// FilterTimeline returns a new slice with the matching events in log order.
// The underlying log is never modified.
func FilterTimeline(events []domain.TimelineEvent, f TimelineFilter) []domain.TimelineEvent {
	out := make([]domain.TimelineEvent, 0, len(events))
	for _, ev := range events {
		if len(f.Types) > 0 && !slices.Contains(f.Types, ev.Type) {
			continue
		}
		if f.TechnicianID != "" && ev.TechnicianID != f.TechnicianID {
			continue
		}
		if f.From != nil && ev.Timestamp.Before(*f.From) {
			continue
		}
		if f.To != nil && !ev.Timestamp.Before(*f.To) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// StatusHistoryFromEvents rebuilds the status projection from the event log.
func StatusHistoryFromEvents(events []domain.TimelineEvent) []domain.StatusChange {
	out := []domain.StatusChange{}
	for _, ev := range events {
		if ev.Type != domain.EventStatusChange {
			continue
		}
		out = append(out, domain.StatusChange{
			FromStatus:   ev.FromStatus,
			ToStatus:     ev.ToStatus,
			Timestamp:    ev.Timestamp,
			Automatic:    ev.Automatic,
			TechnicianID: ev.TechnicianID,
		})
	}
	return out
}

// DwellTimes computes how long each status lasted: the gap to the next
// status change, or to now for the latest one. When tl.StartedAt is known
// the status held before the first change (or current, when nothing has
// changed yet) is reported from that moment.
func DwellTimes(tl domain.VisitTimeline, current domain.VisitStatus, now time.Time) []domain.StatusDwell {
	history := tl.StatusHistory
	out := make([]domain.StatusDwell, 0, len(history)+1)

	if !tl.StartedAt.IsZero() {
		initial, end := current, now
		if len(history) > 0 {
			initial, end = history[0].FromStatus, history[0].Timestamp
		}
		out = append(out, dwell(initial, tl.StartedAt, end, len(history) == 0))
	}

	for i, ch := range history {
		end := now
		last := i == len(history)-1
		if !last {
			end = history[i+1].Timestamp
		}
		out = append(out, dwell(ch.ToStatus, ch.Timestamp, end, last))
	}
	return out
}

func dwell(status domain.VisitStatus, from, to time.Time, current bool) domain.StatusDwell {
	d := to.Sub(from)
	if d < 0 {
		d = 0
	}
	return domain.StatusDwell{Status: status, EnteredAt: from, Duration: d, Current: current}
}

func statusDescription(from, to domain.VisitStatus, automatic bool) string {
	if automatic {
		return "Status changed automatically from " + string(from) + " to " + string(to)
	}
	return "Status changed from " + string(from) + " to " + string(to)
}

func copyLocation(l *domain.LocationCoordinates) *domain.LocationCoordinates {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
