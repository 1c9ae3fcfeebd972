package handlers

import (
	"errors"
	"field-visit-service/internal/api/dto"
	"field-visit-service/internal/domain"
	"field-visit-service/internal/services"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// SchedulingHandler serves slot availability and daily route optimization.
type SchedulingHandler struct {
	Service *services.VisitService
	Log     *zap.Logger
}

func (h *SchedulingHandler) CheckSlot(w http.ResponseWriter, r *http.Request) {
	var req dto.SlotCheckRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	err := h.Service.CheckSlot(r.Context(), services.SlotRequest{
		Date:            strings.TrimSpace(req.Date),
		StartTime:       strings.TrimSpace(req.StartTime),
		DurationMinutes: req.DurationMinutes,
		TechnicianID:    strings.TrimSpace(req.TechnicianID),
		ExcludeVisitID:  strings.TrimSpace(req.ExcludeVisitID),
	})
	var conflict *domain.ConflictError
	switch {
	case err == nil:
		writeJSON(w, r, http.StatusOK, dto.SlotCheckResponse{Available: true})
	case errors.As(err, &conflict):
		writeJSON(w, r, http.StatusConflict, dto.SlotCheckResponse{Available: false, Conflicts: conflict.Overlaps})
	default:
		writeServiceError(w, r, h.Log, err)
	}
}

// Slots lists free start times for date, duration (minutes, default 120)
// and an optional technician_id.
func (h *SchedulingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	date := strings.TrimSpace(q.Get("date"))
	if date == "" {
		writeError(w, r, http.StatusBadRequest, "date is required")
		return
	}

	duration := services.DefaultDurationMinutes
	if raw := strings.TrimSpace(q.Get("duration")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "duration must be a positive number of minutes")
			return
		}
		duration = n
	}
	techID := strings.TrimSpace(q.Get("technician_id"))

	slots, err := h.Service.AvailableSlots(r.Context(), date, duration, techID)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}

	normalized, _ := services.NormalizeDate(date)
	writeJSON(w, r, http.StatusOK, dto.SlotsResponse{
		Date:            normalized,
		DurationMinutes: duration,
		TechnicianID:    techID,
		Slots:           slots,
	})
}

func (h *SchedulingHandler) OptimizeRoute(w http.ResponseWriter, r *http.Request) {
	var req dto.OptimizeRouteRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	route, err := h.Service.OptimizeRoute(r.Context(), strings.TrimSpace(req.TechnicianID), strings.TrimSpace(req.Date), req.Start.Domain())
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, route)
}
