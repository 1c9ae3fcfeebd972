package ports

import (
	"context"
	"field-visit-service/internal/domain"
)

// Push-based feed of position samples for one visit.
type PositionSubscription interface {
	Samples() <-chan domain.LocationCoordinates
	Errors() <-chan error
	// Close releases the underlying subscription. It is safe to call twice.
	Close() error
}

type PositionSource interface {
	Subscribe(ctx context.Context, visitID string) (PositionSubscription, error)
}
