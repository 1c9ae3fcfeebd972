package geocode

import (
	"context"
	"field-visit-service/internal/domain"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

const kmPerDegreeLat = 111.32

// HashResolver places every visit at a deterministic pseudo-location within
// RadiusKm of Center, derived from a hash of its address. It stands in for a
// geocoder when none is configured: the same address always lands on the
// same point, so routes and ETAs are stable across runs.
type HashResolver struct {
	Center   domain.Coordinates
	RadiusKm float64
}

func NewHashResolver(center domain.Coordinates, radiusKm float64) (*HashResolver, error) {
	if !center.Valid() {
		return nil, fmt.Errorf("hash resolver: invalid centre %v", center.CoordsToList())
	}
	if radiusKm <= 0 {
		return nil, fmt.Errorf("hash resolver: radius must be positive, got %v", radiusKm)
	}
	return &HashResolver{Center: center, RadiusKm: radiusKm}, nil
}

func (r *HashResolver) ResolveVisit(ctx context.Context, v domain.Visit) (domain.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return domain.Coordinates{}, err
	}
	return r.Resolve(visitKey(v)), nil
}

// Resolve maps key onto a point in the disc around Center.
func (r *HashResolver) Resolve(key string) domain.Coordinates {
	h := xxhash.Sum64String(key)
	u := float64(h>>32) / float64(1<<32)
	w := float64(h&0xffffffff) / float64(1<<32)

	// sqrt keeps points uniform over the disc area.
	dist := r.RadiusKm * math.Sqrt(u)
	bearing := 2 * math.Pi * w

	dLat := dist * math.Cos(bearing) / kmPerDegreeLat
	dLon := dist * math.Sin(bearing) / (kmPerDegreeLat * math.Cos(r.Center.Lat*math.Pi/180))

	return domain.Coordinates{
		Lon: r.Center.Lon + dLon,
		Lat: r.Center.Lat + dLat,
	}
}
