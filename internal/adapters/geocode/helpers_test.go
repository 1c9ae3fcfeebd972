package geocode

import (
	"context"
	"errors"
	"math"
	"sync"

	"field-visit-service/internal/domain"
)

func haversine(a, b domain.Coordinates) float64 {
	const r = 6371.0
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * r * math.Asin(math.Sqrt(h))
}

type mapCache struct {
	mu      sync.Mutex
	data    map[string]domain.Coordinates
	readErr error
}

func (m *mapCache) GetMany(_ context.Context, keys []string) (map[string]domain.Coordinates, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]domain.Coordinates{}
	for _, k := range keys {
		if c, ok := m.data[k]; ok {
			out[k] = c
		}
	}
	return out, nil
}

func (m *mapCache) PutMany(_ context.Context, results map[string]domain.Coordinates) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]domain.Coordinates{}
	}
	for k, c := range results {
		m.data[k] = c
	}
	return nil
}

type countingResolver struct {
	calls int
	err   error
}

func (c *countingResolver) ResolveVisit(context.Context, domain.Visit) (domain.Coordinates, error) {
	c.calls++
	if c.err != nil {
		return domain.Coordinates{}, c.err
	}
	return phoenix, nil
}

var errUpstream = errors.New("upstream down")
