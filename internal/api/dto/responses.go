package dto

import "field-visit-service/internal/domain"

type ListVisitsResponse struct {
	Visits []domain.Visit `json:"visits"`
	Count  int            `json:"count"`
}

type SlotCheckResponse struct {
	Available bool             `json:"available"`
	Conflicts []domain.Overlap `json:"conflicts,omitempty"`
}

type SlotsResponse struct {
	Date            string   `json:"date"`
	DurationMinutes int      `json:"duration_minutes"`
	TechnicianID    string   `json:"technician_id,omitempty"`
	Slots           []string `json:"slots"`
}

type TimelineResponse struct {
	VisitID string                 `json:"visit_id"`
	Events  []domain.TimelineEvent `json:"events"`
}

type StatusDwellResponse struct {
	VisitID string               `json:"visit_id"`
	Dwell   []domain.StatusDwell `json:"dwell"`
}

type TrackingResponse struct {
	VisitID  string `json:"visit_id"`
	Tracking bool   `json:"tracking"`
}

type RelayResponse struct {
	VisitID   string `json:"visit_id"`
	Delivered int    `json:"delivered"`
}
