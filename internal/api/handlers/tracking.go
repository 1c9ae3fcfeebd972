package handlers

import (
	"field-visit-service/internal/api/dto"
	"field-visit-service/internal/services"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// PositionRelay accepts raw device reports for in-process delivery.
type PositionRelay interface {
	PushPayload(visitID string, payload []byte) int
}

const maxReportBytes = 16 << 10

// TrackingHandler serves location updates, ETAs and live tracking sessions.
type TrackingHandler struct {
	Service  *services.VisitService
	Sessions *services.TrackingManager
	// Relay is nil when devices publish to an external broker.
	Relay PositionRelay
	Log   *zap.Logger
}

func (h *TrackingHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req dto.LocationUpdateRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	v, err := h.Service.IngestLocation(r.Context(), r.PathValue("id"), req.Sample(), services.Actor{TechnicianID: req.TechnicianID})
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, v)
}

func (h *TrackingHandler) ETA(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.ETA(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

// StartTracking opens a live position session for an existing visit.
func (h *TrackingHandler) StartTracking(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.Service.Directory.DerivedVisit(r.Context(), id); err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	if err := h.Sessions.Start(r.Context(), id); err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, dto.TrackingResponse{VisitID: id, Tracking: true})
}

func (h *TrackingHandler) StopTracking(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Stop(r.PathValue("id")); err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Report relays one raw device report to the visit's tracking session.
func (h *TrackingHandler) Report(w http.ResponseWriter, r *http.Request) {
	if h.Relay == nil {
		writeError(w, r, http.StatusNotFound, "position relay is not enabled")
		return
	}
	id := r.PathValue("id")
	if !h.Sessions.Active(id) {
		writeError(w, r, http.StatusConflict, "visit is not being tracked")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxReportBytes))
	defer r.Body.Close()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unreadable body")
		return
	}

	n := h.Relay.PushPayload(id, body)
	writeJSON(w, r, http.StatusAccepted, dto.RelayResponse{VisitID: id, Delivered: n})
}
