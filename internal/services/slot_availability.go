package services

import (
	"errors"
	"field-visit-service/internal/domain"
	"slices"
	"strings"
)

// SlotRequest is a candidate appointment to check against existing visits.
// TechnicianID, when set, restricts the check to that technician's visits;
// ExcludeVisitID skips one visit for edit-in-place checks.
type SlotRequest struct {
	Date            string
	StartTime       string
	DurationMinutes int
	TechnicianID    string
	ExcludeVisitID  string
}

// SlotGrid is the fixed working-day grid offered for picking slots.
type SlotGrid struct {
	Start       string
	End         string
	StepMinutes int
}

// DefaultSlotGrid is 08:00-18:00 in 30-minute steps.
var DefaultSlotGrid = SlotGrid{Start: "08:00", End: "18:00", StepMinutes: 30}

type interval struct {
	start int
	end   int
}

// overlaps uses half-open semantics: touching endpoints do not conflict.
func (a interval) overlaps(b interval) bool {
	return a.start < b.end && b.start < a.end
}

// visitInterval uses start + estimatedDuration rather than EndTime so that a
// visit crossing midnight still occupies the rest of its own date.
func visitInterval(v domain.Visit) (interval, bool) {
	start, err := ParseClock(v.ScheduledTime)
	if err != nil {
		return interval{}, false
	}
	return interval{start: start, end: start + v.EstimatedDuration}, true
}

// CheckSlot returns a *domain.ConflictError listing every existing visit on
// the same date that overlaps the candidate, or a *domain.ValidationError
// when the request is malformed.
func CheckSlot(req SlotRequest, existing []domain.Visit) error {
	date, candidate, err := validateSlot(req)
	if err != nil {
		return err
	}

	overlaps := findOverlaps(date, candidate, req, existing)
	if len(overlaps) == 0 {
		return nil
	}

	return &domain.ConflictError{
		Date:      date,
		StartTime: FormatClock(candidate.start),
		EndTime:   FormatClock(candidate.end),
		Overlaps:  overlaps,
	}
}

// AvailableSlots generates the grid for a working day and keeps only the
// start times whose slot of the given duration does not conflict.
func AvailableSlots(date string, durationMinutes int, technicianID string, grid SlotGrid, existing []domain.Visit) ([]string, error) {
	if grid.StepMinutes <= 0 {
		return nil, domain.NewValidationError("step", "step must be positive, got %d", grid.StepMinutes)
	}
	first, err := ParseClock(grid.Start)
	if err != nil {
		return nil, err
	}
	last, err := ParseClock(grid.End)
	if err != nil {
		return nil, err
	}
	if last <= first {
		return nil, domain.NewValidationError("grid", "end %s must be after start %s", grid.End, grid.Start)
	}

	slots := []string{}
	for t := first; t < last; t += grid.StepMinutes {
		req := SlotRequest{
			Date:            date,
			StartTime:       FormatClock(t),
			DurationMinutes: durationMinutes,
			TechnicianID:    technicianID,
		}
		err := CheckSlot(req, existing)
		if err == nil {
			slots = append(slots, req.StartTime)
			continue
		}
		var conflict *domain.ConflictError
		if !errors.As(err, &conflict) {
			return nil, err
		}
	}

	return slots, nil
}

func validateSlot(req SlotRequest) (string, interval, error) {
	date, err := NormalizeDate(req.Date)
	if err != nil {
		return "", interval{}, err
	}
	start, err := ParseClock(req.StartTime)
	if err != nil {
		return "", interval{}, err
	}
	if req.DurationMinutes <= 0 {
		return "", interval{}, domain.NewValidationError("duration", "duration must be positive, got %d", req.DurationMinutes)
	}
	return date, interval{start: start, end: start + req.DurationMinutes}, nil
}

func findOverlaps(date string, candidate interval, req SlotRequest, existing []domain.Visit) []domain.Overlap {
	var out []domain.Overlap
	for _, v := range existing {
		if v.ID == req.ExcludeVisitID && req.ExcludeVisitID != "" {
			continue
		}
		if req.TechnicianID != "" && v.TechnicianID != req.TechnicianID {
			continue
		}
		if v.Status == domain.VisitStatusCancelled {
			continue
		}
		if strings.TrimSpace(v.ScheduledDate) != date {
			continue
		}
		iv, ok := visitInterval(v)
		if !ok || !iv.overlaps(candidate) {
			continue
		}
		out = append(out, domain.Overlap{
			VisitID:        v.ID,
			TechnicianName: v.TechnicianName,
			Date:           v.ScheduledDate,
			StartTime:      v.ScheduledTime,
			EndTime:        v.EndTime,
		})
	}
	slices.SortFunc(out, func(a, b domain.Overlap) int {
		return strings.Compare(a.StartTime+a.VisitID, b.StartTime+b.VisitID)
	})
	return out
}
