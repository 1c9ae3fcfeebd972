package geocode

import (
	"context"
	"field-visit-service/internal/domain"
	"fmt"
)

// StaticResolver returns fixed coordinates keyed by visit id.
// Unknown visits fail to resolve.
type StaticResolver struct {
	m map[string]domain.Coordinates
}

func NewStaticResolver(byVisitID map[string]domain.Coordinates) *StaticResolver {
	m := make(map[string]domain.Coordinates, len(byVisitID))
	for id, c := range byVisitID {
		m[id] = c
	}
	return &StaticResolver{m: m}
}

func (r *StaticResolver) ResolveVisit(ctx context.Context, v domain.Visit) (domain.Coordinates, error) {
	c, ok := r.m[v.ID]
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("no location for visit %q", v.ID)
	}
	return c, nil
}
