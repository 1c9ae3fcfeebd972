package handlers

import (
	"field-visit-service/internal/api/dto"
	"field-visit-service/internal/domain"
	"field-visit-service/internal/services"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type TimelineHandler struct {
	Service *services.VisitService
	Log     *zap.Logger
}

// List returns timeline events filtered by type (comma separated),
// technician_id and an RFC 3339 from/to window.
func (h *TimelineHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f services.TimelineFilter
	if types := strings.TrimSpace(q.Get("type")); types != "" {
		for _, t := range strings.Split(types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.Types = append(f.Types, domain.TimelineEventType(t))
			}
		}
	}
	f.TechnicianID = strings.TrimSpace(q.Get("technician_id"))

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, p.name+" must be RFC 3339")
			return
		}
		*p.dst = &t
	}

	id := r.PathValue("id")
	events, err := h.Service.Timeline(r.Context(), id, f)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.TimelineResponse{VisitID: id, Events: events})
}

// Append records an issue report, photo attachment or custom event.
func (h *TimelineHandler) Append(w http.ResponseWriter, r *http.Request) {
	var req dto.TimelineEventRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	v, err := h.Service.AppendEvent(r.Context(), r.PathValue("id"),
		domain.TimelineEventType(strings.TrimSpace(req.Type)),
		strings.TrimSpace(req.Description),
		actorOf(req.TechnicianID, req.Location))
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, v)
}

func (h *TimelineHandler) StatusDwell(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	dwell, err := h.Service.StatusDwell(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.StatusDwellResponse{VisitID: id, Dwell: dwell})
}
