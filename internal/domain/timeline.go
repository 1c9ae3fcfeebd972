package domain

import "time"

type TimelineEventType string

const (
	EventStatusChange   TimelineEventType = "status_change"
	EventLocationUpdate TimelineEventType = "location_update"
	EventNoteAdded      TimelineEventType = "note_added"
	EventStageStarted   TimelineEventType = "stage_started"
	EventStageCompleted TimelineEventType = "stage_completed"
	EventStageSkipped   TimelineEventType = "stage_skipped"
	EventTimerStarted   TimelineEventType = "timer_started"
	EventTimerStopped   TimelineEventType = "timer_stopped"
	EventIssueReported  TimelineEventType = "issue_reported"
	EventPhotoAttached  TimelineEventType = "photo_attached"
	EventCheckIn        TimelineEventType = "check_in"
	EventCheckOut       TimelineEventType = "check_out"
	EventRouteOptimized TimelineEventType = "route_optimized"
	EventCustom         TimelineEventType = "custom"
)

// TimelineEvent is an immutable entry in a visit's timeline.
// FromStatus, ToStatus and Automatic are only set on status_change events.
type TimelineEvent struct {
	ID           string               `json:"id"`
	Timestamp    time.Time            `json:"timestamp"`
	Type         TimelineEventType    `json:"type"`
	Description  string               `json:"description"`
	Location     *LocationCoordinates `json:"location,omitempty"`
	TechnicianID string               `json:"technicianId"`
	FromStatus   VisitStatus          `json:"fromStatus,omitempty"`
	ToStatus     VisitStatus          `json:"toStatus,omitempty"`
	Automatic    bool                 `json:"automatic,omitempty"`
}

// StatusChange is the status-only projection of the timeline.
type StatusChange struct {
	FromStatus   VisitStatus `json:"fromStatus"`
	ToStatus     VisitStatus `json:"toStatus"`
	Timestamp    time.Time   `json:"timestamp"`
	Automatic    bool        `json:"automatic"`
	TechnicianID string      `json:"technicianId"`
}

// VisitTimeline is the append-only event log of a visit.
//
// StartedAt is when the visit's state was first recorded; the status held
// at that moment is the FromStatus of the first status change.
type VisitTimeline struct {
	VisitID       string          `json:"visitId"`
	StartedAt     time.Time       `json:"startedAt"`
	Events        []TimelineEvent `json:"events"`
	StatusHistory []StatusChange  `json:"statusHistory"`
}

// StatusDwell is the time spent in one status.
type StatusDwell struct {
	Status    VisitStatus   `json:"status"`
	EnteredAt time.Time     `json:"enteredAt"`
	Duration  time.Duration `json:"duration"`
	Current   bool          `json:"current"`
}
