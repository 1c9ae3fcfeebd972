package services

import (
	"context"
	"field-visit-service/internal/domain"
	"field-visit-service/internal/ports"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// RouteOptimizer orders one technician's visits for one day.
type RouteOptimizer struct {
	Resolver  ports.LocationResolver
	Estimator DistanceEstimator
	Now       func() time.Time
}

func NewRouteOptimizer(resolver ports.LocationResolver, estimator DistanceEstimator) *RouteOptimizer {
	return &RouteOptimizer{Resolver: resolver, Estimator: estimator, Now: time.Now}
}

// Optimize plans a route using a greedy nearest-neighbor algorithm.
//
// Each step picks the unvisited visit closest to the current position.
// It does not attempt global route optimization; per-technician daily visit
// counts are small enough for the O(n^2) heuristic. Distances are summed
// between consecutive visits only: the optional start location decides the
// first stop but does not add a leg. Without a start location the route
// begins at the earliest scheduled visit.
//
// The input is never mutated and the result is always fresh.
func (o *RouteOptimizer) Optimize(
	ctx context.Context,
	visits []domain.Visit,
	start *domain.Coordinates,
) (*domain.RouteOptimizationResult, error) {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}

	result := &domain.RouteOptimizationResult{
		OrderedVisitIDs: []string{},
		Stops:           []domain.RouteStop{},
		OptimizedAt:     now(),
	}
	if len(visits) == 0 {
		return result, nil
	}
	if o.Resolver == nil {
		return nil, fmt.Errorf("optimize route: location resolver is nil")
	}
	if start != nil && !start.Valid() {
		return nil, domain.NewValidationError("start", "coordinates out of range: %+v", *start)
	}

	snapshot := slices.Clone(visits)
	coords, err := resolveVisitLocations(ctx, snapshot, o.Resolver)
	if err != nil {
		return nil, fmt.Errorf("optimize route: %w", err)
	}

	remaining := make(map[int]struct{}, len(snapshot))
	for i := range snapshot {
		remaining[i] = struct{}{}
	}

	var current domain.Coordinates
	next := -1
	if start != nil {
		current = *start
	} else {
		next = earliestVisit(snapshot)
	}

	first := true
	for len(remaining) > 0 {
		best := next
		bestDist := 0.0
		next = -1

		// Select next stop by minimum distance (greedy step).
		if best < 0 {
			bestDist = math.MaxFloat64
			for i := range remaining {
				d := o.Estimator.DistanceKm(current, coords[i])
				// Tie-breaker ensures deterministic ordering when distances are equal.
				if best < 0 || d < bestDist || (d == bestDist && lessVisit(snapshot[i], i, snapshot[best], best)) {
					bestDist = d
					best = i
				}
			}
		}

		if best < 0 {
			return nil, fmt.Errorf("optimize route: failed to select next visit")
		}

		legKm := bestDist
		if first {
			legKm = 0
			first = false
		}
		legMinutes := o.Estimator.TravelMinutes(legKm)

		result.TotalDistanceKm += legKm
		result.TotalTravelMinutes += legMinutes
		result.OrderedVisitIDs = append(result.OrderedVisitIDs, snapshot[best].ID)
		result.Stops = append(result.Stops, domain.RouteStop{
			VisitID:       snapshot[best].ID,
			Coordinates:   coords[best],
			DistanceKm:    legKm,
			TravelMinutes: legMinutes,
		})

		delete(remaining, best)
		current = coords[best]
	}

	return result, nil
}

// ApplyRoute returns copies of visits with their route sub-record set from
// the result, in route order. Visits not present in the result are dropped.
func ApplyRoute(visits []domain.Visit, result *domain.RouteOptimizationResult) []domain.Visit {
	byID := make(map[string]domain.Visit, len(visits))
	for _, v := range visits {
		byID[v.ID] = v
	}

	out := make([]domain.Visit, 0, len(result.Stops))
	for i, stop := range result.Stops {
		v, ok := byID[stop.VisitID]
		if !ok {
			continue
		}
		c := stop.Coordinates
		v.Route = &domain.RouteInfo{
			Order:                  i + 1,
			Coordinates:            &c,
			DistanceFromPreviousKm: stop.DistanceKm,
			TravelMinutes:          stop.TravelMinutes,
			OptimizedAt:            result.OptimizedAt,
		}
		out = append(out, v)
	}
	return out
}

func earliestVisit(visits []domain.Visit) int {
	best := 0
	for i := 1; i < len(visits); i++ {
		if compareSchedule(visits[i], visits[best]) < 0 {
			best = i
		}
	}
	return best
}

func lessVisit(a domain.Visit, ai int, b domain.Visit, bi int) bool {
	if c := strings.Compare(a.ID, b.ID); c != 0 {
		return c < 0
	}
	return ai < bi
}
