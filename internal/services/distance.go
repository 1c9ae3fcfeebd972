package services

import (
	"field-visit-service/internal/domain"
	"math"
	"time"
)

const (
	EarthRadiusKm = 6371.0
	// DefaultAverageSpeedKmh is the assumed average urban driving speed.
	DefaultAverageSpeedKmh = 40.0
)

// DistanceEstimator is the great-circle distance and travel-time model.
// The zero value uses DefaultAverageSpeedKmh and no traffic scaling.
type DistanceEstimator struct {
	AverageSpeedKmh float64
	TrafficFactor   float64
}

func NewDistanceEstimator(averageSpeedKmh, trafficFactor float64) DistanceEstimator {
	return DistanceEstimator{AverageSpeedKmh: averageSpeedKmh, TrafficFactor: trafficFactor}
}

// HaversineKm returns the great-circle distance between two coordinates.
// It is symmetric and zero for identical points.
func HaversineKm(a, b domain.Coordinates) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := lat2 - lat1
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Guard against rounding pushing h slightly above 1.
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

func (e DistanceEstimator) DistanceKm(a, b domain.Coordinates) float64 {
	return HaversineKm(a, b)
}

// TravelMinutes converts a distance into driving minutes, scaled by the
// traffic factor and rounded to the nearest minute.
func (e DistanceEstimator) TravelMinutes(distanceKm float64) int {
	return int(math.Round(e.travelHours(distanceKm) * 60))
}

// TravelDuration is the unrounded form of TravelMinutes, used for ETAs.
func (e DistanceEstimator) TravelDuration(distanceKm float64) time.Duration {
	return time.Duration(e.travelHours(distanceKm) * float64(time.Hour))
}

func (e DistanceEstimator) travelHours(distanceKm float64) float64 {
	if distanceKm <= 0 {
		return 0
	}
	speed := e.AverageSpeedKmh
	if speed <= 0 {
		speed = DefaultAverageSpeedKmh
	}
	factor := e.TrafficFactor
	if factor <= 0 {
		factor = 1
	}
	return distanceKm / speed * factor
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
