package ports

import (
	"context"
	"field-visit-service/internal/domain"
)

// Opaque key-value store for per-visit sub-state.
//
// Load returns (nil, nil) when nothing has been stored for the visit yet.
// Save must reject a state whose Version does not match the stored version
// with domain.ErrVersionConflict, and bumps Version on success.
type VisitStateStore interface {
	Load(ctx context.Context, visitID string) (*domain.VisitState, error)
	LoadMany(ctx context.Context, visitIDs []string) (map[string]*domain.VisitState, error)
	Save(ctx context.Context, state *domain.VisitState) error
}

// Receives timeline events after they have been persisted.
type TimelineSink interface {
	Publish(ctx context.Context, visitID string, events []domain.TimelineEvent) error
}
