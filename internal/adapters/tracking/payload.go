package tracking

import (
	"encoding/json"
	"field-visit-service/internal/domain"
	"fmt"
	"time"
)

// positionMessage is the wire form of one device report. A report carries
// either a position or an error.
type positionMessage struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Error     *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// decodePosition parses a device report. Device-side failures come back as
// a *domain.PositioningError.
func decodePosition(payload []byte) (domain.LocationCoordinates, error) {
	var msg positionMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return domain.LocationCoordinates{}, fmt.Errorf("decode position: %w", err)
	}

	if msg.Error != nil {
		return domain.LocationCoordinates{}, &domain.PositioningError{
			Kind:    positioningKind(msg.Error.Kind),
			Message: msg.Error.Message,
		}
	}

	if msg.Latitude == nil || msg.Longitude == nil {
		return domain.LocationCoordinates{}, fmt.Errorf("decode position: latitude and longitude are required")
	}

	out := domain.LocationCoordinates{
		Latitude:  *msg.Latitude,
		Longitude: *msg.Longitude,
		Accuracy:  msg.Accuracy,
	}
	if msg.Timestamp != nil {
		out.Timestamp = msg.Timestamp.UTC()
	}
	return out, nil
}

func positioningKind(s string) domain.PositioningErrorKind {
	switch k := domain.PositioningErrorKind(s); k {
	case domain.PositionPermissionDenied, domain.PositionTimeout:
		return k
	default:
		return domain.PositionUnavailable
	}
}
