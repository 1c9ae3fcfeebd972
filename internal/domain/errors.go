package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrVersionConflict is returned by state stores when a save loses an
// optimistic concurrency race.
var ErrVersionConflict = errors.New("visit state version conflict")

// ValidationError reports malformed input (duration text, slot request, ...).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Overlap describes an existing visit that collides with a candidate slot.
type Overlap struct {
	VisitID        string `json:"visitId"`
	TechnicianName string `json:"technicianName"`
	Date           string `json:"date"`
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime"`
}

// ConflictError reports that a requested slot overlaps existing visits.
type ConflictError struct {
	Date      string
	StartTime string
	EndTime   string
	Overlaps  []Overlap
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Overlaps))
	for _, o := range e.Overlaps {
		parts = append(parts, fmt.Sprintf("%s (%s-%s)", o.VisitID, o.StartTime, o.EndTime))
	}
	return fmt.Sprintf("slot %s %s-%s conflicts with %s", e.Date, e.StartTime, e.EndTime, strings.Join(parts, ", "))
}

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

type PositioningErrorKind string

const (
	PositionPermissionDenied PositioningErrorKind = "permission-denied"
	PositionUnavailable      PositioningErrorKind = "position-unavailable"
	PositionTimeout          PositioningErrorKind = "timeout"
)

// PositioningError is the classified form of a location source failure.
type PositioningError struct {
	Kind    PositioningErrorKind
	Message string
	Err     error
}

func (e *PositioningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("positioning %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("positioning %s: %s", e.Kind, e.Message)
}

func (e *PositioningError) Unwrap() error { return e.Err }
