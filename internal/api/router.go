package api

import (
	"field-visit-service/internal/api/handlers"
	"field-visit-service/internal/services"
	"net/http"

	"go.uber.org/zap"
)

// RouterDeps carries the application services the HTTP surface needs.
type RouterDeps struct {
	Visits   *services.VisitService
	Tracking *services.TrackingManager
	// Relay is optional; nil disables POST /visits/{id}/positions.
	Relay handlers.PositionRelay
	Log   *zap.Logger
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(deps RouterDeps) http.Handler {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	mux := http.NewServeMux()

	visits := &handlers.VisitHandler{Service: deps.Visits, Log: log}
	timeline := &handlers.TimelineHandler{Service: deps.Visits, Log: log}
	scheduling := &handlers.SchedulingHandler{Service: deps.Visits, Log: log}
	tracking := &handlers.TrackingHandler{
		Service:  deps.Visits,
		Sessions: deps.Tracking,
		Relay:    deps.Relay,
		Log:      log,
	}

	mux.HandleFunc("GET /health", handlers.Health)

	mux.HandleFunc("GET /visits", visits.List)
	mux.HandleFunc("GET /visits/{id}", visits.Get)
	mux.HandleFunc("POST /visits/{id}/status", visits.UpdateStatus)
	mux.HandleFunc("POST /visits/{id}/check-in", visits.CheckIn)
	mux.HandleFunc("POST /visits/{id}/check-out", visits.CheckOut)
	mux.HandleFunc("POST /visits/{id}/stages/advance", visits.AdvanceStage)
	mux.HandleFunc("POST /visits/{id}/stages/{stageId}/start", visits.StartStage)
	mux.HandleFunc("POST /visits/{id}/stages/{stageId}/complete", visits.CompleteStage)
	mux.HandleFunc("POST /visits/{id}/stages/{stageId}/skip", visits.SkipStage)
	mux.HandleFunc("POST /visits/{id}/notes", visits.AddNote)
	mux.HandleFunc("POST /visits/{id}/timers", visits.StartTimer)
	mux.HandleFunc("POST /visits/{id}/timers/{timerId}/stop", visits.StopTimer)

	mux.HandleFunc("GET /visits/{id}/timeline", timeline.List)
	mux.HandleFunc("POST /visits/{id}/timeline", timeline.Append)
	mux.HandleFunc("GET /visits/{id}/status-dwell", timeline.StatusDwell)

	mux.HandleFunc("POST /visits/{id}/location", tracking.UpdateLocation)
	mux.HandleFunc("GET /visits/{id}/eta", tracking.ETA)
	mux.HandleFunc("POST /visits/{id}/tracking", tracking.StartTracking)
	mux.HandleFunc("DELETE /visits/{id}/tracking", tracking.StopTracking)
	mux.HandleFunc("POST /visits/{id}/positions", tracking.Report)

	mux.HandleFunc("POST /availability/check", scheduling.CheckSlot)
	mux.HandleFunc("GET /availability/slots", scheduling.Slots)
	mux.HandleFunc("POST /routes/optimize", scheduling.OptimizeRoute)

	return requestIDMiddleware(loggingMiddleware(log, mux))
}
