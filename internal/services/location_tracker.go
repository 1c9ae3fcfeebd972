package services

import (
	"context"
	"errors"
	"field-visit-service/internal/domain"
	"fmt"
	"math"
	"net"
	"os"
	"time"
)

// DefaultMovementThresholdKm is the minimum displacement that produces a
// timeline event; smaller moves are treated as sampling jitter.
const DefaultMovementThresholdKm = 0.1

// LocationTracker applies position samples to a visit's location record.
type LocationTracker struct {
	Estimator   DistanceEstimator
	Timeline    *TimelineRecorder
	ThresholdKm float64
	Now         func() time.Time
}

func NewLocationTracker(estimator DistanceEstimator, recorder *TimelineRecorder, thresholdKm float64) *LocationTracker {
	if recorder == nil {
		recorder = NewTimelineRecorder()
	}
	if thresholdKm <= 0 {
		thresholdKm = DefaultMovementThresholdKm
	}
	return &LocationTracker{
		Estimator:   estimator,
		Timeline:    recorder,
		ThresholdKm: thresholdKm,
		Now:         recorder.Now,
	}
}

// Ingest updates the current location with sample, appends a
// location_update event when the technician moved more than the threshold
// since the last recorded sample, and refreshes distance and ETA. With no
// destination the distance and ETA are left absent. It reports whether a
// timeline event was appended.
func (t *LocationTracker) Ingest(
	state *domain.VisitState,
	sample domain.LocationCoordinates,
	destination *domain.Coordinates,
	actor Actor,
) (bool, error) {
	if !sample.Coordinates().Valid() {
		return false, domain.NewValidationError("location", "coordinates out of range: lat=%f lon=%f", sample.Latitude, sample.Longitude)
	}
	if sample.Accuracy != nil && *sample.Accuracy < 0 {
		return false, domain.NewValidationError("accuracy", "accuracy must not be negative")
	}

	now := t.Now()
	if sample.Timestamp.IsZero() {
		sample.Timestamp = now
	}

	loc := state.Location
	if loc == nil {
		loc = &domain.VisitLocation{}
		state.Location = loc
	}

	current := sample
	loc.Current = &current
	loc.UpdatedAt = now
	if destination != nil {
		d := *destination
		loc.Destination = &d
	}

	recorded := false
	if loc.LastRecorded == nil || t.moved(*loc.LastRecorded, sample) {
		last := sample
		loc.LastRecorded = &last
		t.Timeline.Record(&state.Timeline, domain.EventLocationUpdate,
			fmt.Sprintf("Location updated (%.5f, %.5f)", sample.Latitude, sample.Longitude),
			actor.TechnicianID, &sample)
		recorded = true
	}

	loc.DistanceKm, loc.ETA = nil, nil
	if loc.Destination != nil {
		dist := t.Estimator.DistanceKm(sample.Coordinates(), *loc.Destination)
		eta := now.Add(t.Estimator.TravelDuration(dist))
		loc.DistanceKm = &dist
		loc.ETA = &eta
	}

	return recorded, nil
}

func (t *LocationTracker) moved(prev, next domain.LocationCoordinates) bool {
	return t.Estimator.DistanceKm(prev.Coordinates(), next.Coordinates()) > t.ThresholdKm
}

// ETAView compares the planned schedule with the live projection.
type ETAView struct {
	VisitID       string     `json:"visitId"`
	ScheduledDate string     `json:"scheduledDate"`
	ScheduledTime string     `json:"scheduledTime"`
	ScheduledAt   *time.Time `json:"scheduledAt,omitempty"`
	DistanceKm    *float64   `json:"distanceKm,omitempty"`
	ETAMinutes    *int       `json:"etaMinutes,omitempty"`
	ETA           *time.Time `json:"eta,omitempty"`
	DelayMinutes  *int       `json:"delayMinutes,omitempty"`
}

// LiveETA builds the ETA view of a visit. Distance and ETA are absent when
// no location or destination is known.
func (t *LocationTracker) LiveETA(v domain.Visit, tz *time.Location) ETAView {
	if tz == nil {
		tz = time.UTC
	}
	view := ETAView{
		VisitID:       v.ID,
		ScheduledDate: v.ScheduledDate,
		ScheduledTime: v.ScheduledTime,
	}
	if at, err := time.ParseInLocation(dateLayout+" 15:04", v.ScheduledDate+" "+v.ScheduledTime, tz); err == nil {
		view.ScheduledAt = &at
	}

	l := v.Location
	if l == nil || l.Current == nil || l.Destination == nil {
		return view
	}

	now := t.Now()
	dist := t.Estimator.DistanceKm(l.Current.Coordinates(), *l.Destination)
	travel := t.Estimator.TravelDuration(dist)
	eta := now.Add(travel)
	minutes := int(math.Round(travel.Minutes()))

	view.DistanceKm = &dist
	view.ETA = &eta
	view.ETAMinutes = &minutes
	if view.ScheduledAt != nil {
		delay := int(math.Round(eta.Sub(*view.ScheduledAt).Minutes()))
		view.DelayMinutes = &delay
	}
	return view
}

// ClassifyPositionError maps a raw source error onto the positioning
// taxonomy. Already classified errors are returned unchanged.
func ClassifyPositionError(err error) *domain.PositioningError {
	if err == nil {
		return nil
	}

	var pe *domain.PositioningError
	if errors.As(err, &pe) {
		return pe
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return &domain.PositioningError{Kind: domain.PositionTimeout, Message: "position request timed out", Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &domain.PositioningError{Kind: domain.PositionTimeout, Message: "position request timed out", Err: err}
	case errors.Is(err, os.ErrPermission):
		return &domain.PositioningError{Kind: domain.PositionPermissionDenied, Message: "location permission denied", Err: err}
	default:
		return &domain.PositioningError{Kind: domain.PositionUnavailable, Message: "position unavailable", Err: err}
	}
}
