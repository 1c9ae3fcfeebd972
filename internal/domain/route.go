package domain

import "time"

// RouteInfo is the per-visit ordering metadata of an applied route.
type RouteInfo struct {
	Order                  int          `json:"order"`
	Coordinates            *Coordinates `json:"coordinates,omitempty"`
	DistanceFromPreviousKm float64      `json:"distanceFromPreviousKm"`
	TravelMinutes          int          `json:"travelMinutes"`
	OptimizedAt            time.Time    `json:"optimizedAt"`
}

// RouteStop is one leg of an optimized route.
type RouteStop struct {
	VisitID       string      `json:"visitId"`
	Coordinates   Coordinates `json:"coordinates"`
	DistanceKm    float64     `json:"distanceKm"`
	TravelMinutes int         `json:"travelMinutes"`
}

// RouteOptimizationResult is the output of the route optimizer.
// It is immutable planning data; callers decide whether to apply it.
type RouteOptimizationResult struct {
	OrderedVisitIDs    []string    `json:"orderedVisitIds"`
	Stops              []RouteStop `json:"stops"`
	TotalDistanceKm    float64     `json:"totalDistanceKm"`
	TotalTravelMinutes int         `json:"totalTravelMinutes"`
	OptimizedAt        time.Time   `json:"optimizedAt"`
}

// DailyRoute is the ordered set of one technician's visits for one day.
type DailyRoute struct {
	TechnicianID string                  `json:"technicianId"`
	Date         string                  `json:"date"`
	Visits       []Visit                 `json:"visits"`
	Result       RouteOptimizationResult `json:"result"`
}
