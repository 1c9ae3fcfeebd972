package ports

import (
	"context"
	"field-visit-service/internal/domain"
)

// Contract for resolving where a visit takes place.
type LocationResolver interface {
	ResolveVisit(ctx context.Context, visit domain.Visit) (domain.Coordinates, error)
}

// Persistent address -> coordinates cache used in front of a real geocoder.
type GeocodeCache interface {
	GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error)
	PutMany(ctx context.Context, results map[string]domain.Coordinates) error
}
