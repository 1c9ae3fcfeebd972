package domain

import "strings"

type VisitStatus string

const (
	VisitStatusScheduled  VisitStatus = "scheduled"
	VisitStatusEnRoute    VisitStatus = "en-route"
	VisitStatusArrived    VisitStatus = "arrived"
	VisitStatusInProgress VisitStatus = "in-progress"
	VisitStatusCompleted  VisitStatus = "completed"
	VisitStatusCancelled  VisitStatus = "cancelled"
	VisitStatusNoShow     VisitStatus = "no-show"
)

// rank orders the primary lifecycle; alternate terminals have no rank.
var statusRank = map[VisitStatus]int{
	VisitStatusScheduled:  0,
	VisitStatusEnRoute:    1,
	VisitStatusArrived:    2,
	VisitStatusInProgress: 3,
	VisitStatusCompleted:  4,
}

func (s VisitStatus) Valid() bool {
	switch s {
	case VisitStatusScheduled, VisitStatusEnRoute, VisitStatusArrived, VisitStatusInProgress,
		VisitStatusCompleted, VisitStatusCancelled, VisitStatusNoShow:
		return true
	}
	return false
}

func (s VisitStatus) Terminal() bool {
	return s == VisitStatusCompleted || s == VisitStatusCancelled || s == VisitStatusNoShow
}

// CanTransition reports whether a status change from s to next is allowed.
// The primary lifecycle only moves forward; cancelled and no-show are
// reachable from any non-terminal status.
func (s VisitStatus) CanTransition(next VisitStatus) bool {
	if s.Terminal() || !next.Valid() || s == next {
		return false
	}
	if next == VisitStatusCancelled || next == VisitStatusNoShow {
		return true
	}
	return statusRank[next] > statusRank[s]
}

// ParseVisitStatus maps free-form status text from the job store onto the
// visit lifecycle. Unknown text maps to scheduled.
func ParseVisitStatus(s string) VisitStatus {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "-", " ", "-").Replace(norm)
	switch norm {
	case "en-route", "enroute":
		return VisitStatusEnRoute
	case "arrived", "on-site":
		return VisitStatusArrived
	case "in-progress", "started":
		return VisitStatusInProgress
	case "completed", "complete", "done":
		return VisitStatusCompleted
	case "cancelled", "canceled":
		return VisitStatusCancelled
	case "no-show", "noshow":
		return VisitStatusNoShow
	}
	return VisitStatusScheduled
}

// Visit is an atomic, time-boxed appointment derived from a Job.
//
// Visits are never created directly: they are recomputed from job records on
// each read. EndTime always equals ScheduledTime + EstimatedDuration modulo 24h.
type Visit struct {
	ID                string      `json:"id"`
	JobID             string      `json:"jobId"`
	ScheduledVisitID  string      `json:"scheduledVisitId,omitempty"`
	ClientID          string      `json:"clientId"`
	ClientName        string      `json:"clientName"`
	PropertyID        string      `json:"propertyId"`
	PropertyAddress   string      `json:"propertyAddress"`
	ScheduledDate     string      `json:"scheduledDate"`
	ScheduledTime     string      `json:"scheduledTime"`
	EndTime           string      `json:"endTime"`
	Status            VisitStatus `json:"status"`
	VisitType         string      `json:"visitType"`
	Priority          string      `json:"priority"`
	TechnicianID      string      `json:"technicianId"`
	TechnicianName    string      `json:"technicianName"`
	EstimatedDuration int         `json:"estimatedDuration"`
	Notes             string      `json:"notes"`

	Progress *VisitProgress `json:"progress,omitempty"`
	Route    *RouteInfo     `json:"route,omitempty"`
	Timeline *VisitTimeline `json:"timeline,omitempty"`
	Location *VisitLocation `json:"location,omitempty"`
}

// VisitState is the mutable sub-state of a visit kept in the state store.
// Version increases by one on every successful save.
type VisitState struct {
	VisitID  string         `json:"visitId"`
	Version  int64          `json:"version"`
	Status   VisitStatus    `json:"status"`
	Progress *VisitProgress `json:"progress,omitempty"`
	Timeline VisitTimeline  `json:"timeline"`
	Location *VisitLocation `json:"location,omitempty"`
	Route    *RouteInfo     `json:"route,omitempty"`
}

// NewVisitState seeds a state record from a freshly derived visit.
func NewVisitState(v Visit) *VisitState {
	return &VisitState{
		VisitID:  v.ID,
		Status:   v.Status,
		Timeline: VisitTimeline{VisitID: v.ID},
	}
}

// Apply overlays the persisted sub-state onto a derived visit.
func (s *VisitState) Apply(v Visit) Visit {
	if s == nil {
		return v
	}
	if s.Status != "" {
		v.Status = s.Status
	}
	v.Progress = s.Progress
	v.Location = s.Location
	v.Route = s.Route
	tl := s.Timeline
	v.Timeline = &tl
	return v
}
