package handlers

import (
	"encoding/json"
	"errors"
	"field-visit-service/internal/api/dto"
	"field-visit-service/internal/domain"
	"field-visit-service/internal/platform/obs"
	"io"
	"net/http"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// decodeJSON reads exactly one JSON object into dst. When optional is set an
// empty body is accepted and leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}
	return true
}

// writeServiceError maps domain errors onto HTTP statuses. Anything
// unrecognised is logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var (
		validation   *domain.ValidationError
		notFound     *domain.NotFoundError
		conflict     *domain.ConflictError
		precondition *domain.PreconditionError
		positioning  *domain.PositioningError
	)

	switch {
	case errors.As(err, &validation):
		writeError(w, r, http.StatusBadRequest, validation.Error())
	case errors.As(err, &notFound):
		writeError(w, r, http.StatusNotFound, notFound.Error())
	case errors.As(err, &conflict):
		writeJSON(w, r, http.StatusConflict, dto.SlotCheckResponse{Available: false, Conflicts: conflict.Overlaps})
	case errors.Is(err, domain.ErrVersionConflict):
		writeError(w, r, http.StatusConflict, "visit was modified concurrently, retry")
	case errors.As(err, &precondition):
		writeError(w, r, http.StatusUnprocessableEntity, precondition.Error())
	case errors.As(err, &positioning):
		writeError(w, r, positioningStatus(positioning.Kind), positioning.Error())
	default:
		log.Error("request failed",
			zap.String("req_id", obs.RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func positioningStatus(kind domain.PositioningErrorKind) int {
	switch kind {
	case domain.PositionPermissionDenied:
		return http.StatusForbidden
	case domain.PositionTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusServiceUnavailable
	}
}
