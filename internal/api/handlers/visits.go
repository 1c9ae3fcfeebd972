package handlers

import (
	"field-visit-service/internal/api/dto"
	"field-visit-service/internal/domain"
	"field-visit-service/internal/services"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// VisitHandler serves visit queries and every per-visit mutation.
type VisitHandler struct {
	Service *services.VisitService
	Log     *zap.Logger
}

// List returns visits filtered by the search, status, type, date and
// technician_id query parameters.
func (h *VisitHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := services.VisitFilter{
		Search:       strings.TrimSpace(q.Get("search")),
		VisitType:    strings.TrimSpace(q.Get("type")),
		TechnicianID: strings.TrimSpace(q.Get("technician_id")),
	}
	if s := strings.TrimSpace(q.Get("status")); s != "" {
		status := domain.VisitStatus(s)
		if !status.Valid() {
			writeError(w, r, http.StatusBadRequest, "unknown status "+s)
			return
		}
		f.Status = status
	}
	if d := strings.TrimSpace(q.Get("date")); d != "" {
		date, err := services.NormalizeDate(d)
		if err != nil {
			writeServiceError(w, r, h.Log, err)
			return
		}
		f.Date = date
	}

	visits, err := h.Service.Directory.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.ListVisitsResponse{Visits: visits, Count: len(visits)})
}

func (h *VisitHandler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.Directory.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, v)
}

// respond writes the visit returned by a mutation.
func (h *VisitHandler) respond(w http.ResponseWriter, r *http.Request, v domain.Visit, err error) {
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, v)
}

func actorOf(technicianID string, loc *dto.LocationRequest) services.Actor {
	return services.Actor{TechnicianID: strings.TrimSpace(technicianID), Location: loc.Domain()}
}

func (h *VisitHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.StatusRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	status := domain.VisitStatus(strings.TrimSpace(req.Status))
	if !status.Valid() {
		writeError(w, r, http.StatusBadRequest, "unknown status "+req.Status)
		return
	}
	v, err := h.Service.UpdateStatus(r.Context(), r.PathValue("id"), status, actorOf(req.TechnicianID, req.Location))
	h.respond(w, r, v, err)
}

func (h *VisitHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req dto.ActorRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	v, err := h.Service.CheckIn(r.Context(), r.PathValue("id"), actorOf(req.TechnicianID, req.Location))
	h.respond(w, r, v, err)
}

func (h *VisitHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	var req dto.ActorRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	v, err := h.Service.CheckOut(r.Context(), r.PathValue("id"), actorOf(req.TechnicianID, req.Location))
	h.respond(w, r, v, err)
}

func (h *VisitHandler) AdvanceStage(w http.ResponseWriter, r *http.Request) {
	var req dto.ActorRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	v, err := h.Service.AdvanceStage(r.Context(), r.PathValue("id"), actorOf(req.TechnicianID, req.Location))
	h.respond(w, r, v, err)
}

func (h *VisitHandler) StartStage(w http.ResponseWriter, r *http.Request) {
	var req dto.ActorRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	v, err := h.Service.StartStage(r.Context(), r.PathValue("id"), r.PathValue("stageId"), actorOf(req.TechnicianID, req.Location))
	h.respond(w, r, v, err)
}

func (h *VisitHandler) CompleteStage(w http.ResponseWriter, r *http.Request) {
	var req dto.ActorRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	v, err := h.Service.CompleteStage(r.Context(), r.PathValue("id"), r.PathValue("stageId"), actorOf(req.TechnicianID, req.Location))
	h.respond(w, r, v, err)
}

func (h *VisitHandler) SkipStage(w http.ResponseWriter, r *http.Request) {
	var req dto.SkipStageRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	v, err := h.Service.SkipStage(r.Context(), r.PathValue("id"), r.PathValue("stageId"), strings.TrimSpace(req.Reason), actorOf(req.TechnicianID, req.Location))
	h.respond(w, r, v, err)
}

func (h *VisitHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	var req dto.NoteRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	v, err := h.Service.AddNote(r.Context(), r.PathValue("id"), req.Text, strings.TrimSpace(req.Category), actorOf(req.TechnicianID, nil))
	h.respond(w, r, v, err)
}

func (h *VisitHandler) StartTimer(w http.ResponseWriter, r *http.Request) {
	var req dto.TimerRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	v, err := h.Service.StartTimer(r.Context(), r.PathValue("id"), strings.TrimSpace(req.Activity), req.Description, actorOf(req.TechnicianID, nil))
	h.respond(w, r, v, err)
}

func (h *VisitHandler) StopTimer(w http.ResponseWriter, r *http.Request) {
	var req dto.ActorRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	v, err := h.Service.StopTimer(r.Context(), r.PathValue("id"), r.PathValue("timerId"), actorOf(req.TechnicianID, req.Location))
	h.respond(w, r, v, err)
}
