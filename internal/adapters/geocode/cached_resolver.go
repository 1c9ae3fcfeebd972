package geocode

import (
	"context"
	"field-visit-service/internal/domain"
	"field-visit-service/internal/ports"
	"fmt"

	"go.uber.org/zap"
)

// CachedResolver puts a persistent address cache in front of another
// resolver. Cache failures degrade to a direct lookup.
type CachedResolver struct {
	Next  ports.LocationResolver
	Cache ports.GeocodeCache
	log   *zap.Logger
}

func NewCachedResolver(next ports.LocationResolver, cache ports.GeocodeCache, log *zap.Logger) *CachedResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedResolver{Next: next, Cache: cache, log: log}
}

func (c *CachedResolver) ResolveVisit(ctx context.Context, v domain.Visit) (domain.Coordinates, error) {
	key := visitKey(v)

	hits, err := c.Cache.GetMany(ctx, []string{key})
	if err != nil {
		c.log.Warn("geocode cache read failed", zap.String("address", key), zap.Error(err))
	} else if coords, ok := hits[key]; ok {
		return coords, nil
	}

	coords, err := c.Next.ResolveVisit(ctx, v)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("resolve visit %q: %w", v.ID, err)
	}

	if err := c.Cache.PutMany(ctx, map[string]domain.Coordinates{key: coords}); err != nil {
		c.log.Warn("geocode cache write failed", zap.String("address", key), zap.Error(err))
	}
	return coords, nil
}
