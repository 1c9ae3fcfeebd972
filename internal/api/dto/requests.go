package dto

import "time"

// LocationRequest is a position reported alongside an action.
type LocationRequest struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Accuracy  *float64   `json:"accuracy"`
	Timestamp *time.Time `json:"timestamp"`
}

// ActorRequest is the optional body of parameterless visit actions.
type ActorRequest struct {
	TechnicianID string           `json:"technician_id"`
	Location     *LocationRequest `json:"location"`
}

type StatusRequest struct {
	Status       string           `json:"status"`
	TechnicianID string           `json:"technician_id"`
	Location     *LocationRequest `json:"location"`
}

type SkipStageRequest struct {
	Reason       string           `json:"reason"`
	TechnicianID string           `json:"technician_id"`
	Location     *LocationRequest `json:"location"`
}

type NoteRequest struct {
	Text         string `json:"text"`
	Category     string `json:"category"`
	TechnicianID string `json:"technician_id"`
}

type TimerRequest struct {
	Activity     string `json:"activity"`
	Description  string `json:"description"`
	TechnicianID string `json:"technician_id"`
}

type LocationUpdateRequest struct {
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	Accuracy     *float64   `json:"accuracy"`
	Timestamp    *time.Time `json:"timestamp"`
	TechnicianID string     `json:"technician_id"`
}

type TimelineEventRequest struct {
	Type         string           `json:"type"`
	Description  string           `json:"description"`
	TechnicianID string           `json:"technician_id"`
	Location     *LocationRequest `json:"location"`
}

type SlotCheckRequest struct {
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	TechnicianID    string `json:"technician_id"`
	ExcludeVisitID  string `json:"exclude_visit_id"`
}

type CoordinatesRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type OptimizeRouteRequest struct {
	TechnicianID string              `json:"technician_id"`
	Date         string              `json:"date"`
	Start        *CoordinatesRequest `json:"start"`
}
