package domain

import "time"

// Immutable geographic coordinates (longitude, latitude).
type Coordinates struct {
	Lon float64 `json:"longitude"`
	Lat float64 `json:"latitude"`
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// Valid reports whether the coordinates are within WGS84 bounds.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// A single position sample reported by a technician's device.
// Accuracy is the reported horizontal accuracy in meters, when known.
type LocationCoordinates struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (l LocationCoordinates) Coordinates() Coordinates {
	return Coordinates{Lat: l.Latitude, Lon: l.Longitude}
}

// VisitLocation is the live-tracking sub-record of a visit.
//
// Current always holds the newest accepted sample; LastRecorded holds the
// sample that last produced a timeline event and is the reference point for
// the significant-movement threshold.
type VisitLocation struct {
	Current      *LocationCoordinates `json:"current,omitempty"`
	LastRecorded *LocationCoordinates `json:"lastRecorded,omitempty"`
	Destination  *Coordinates         `json:"destination,omitempty"`
	DistanceKm   *float64             `json:"distanceKm,omitempty"`
	ETA          *time.Time           `json:"eta,omitempty"`
	UpdatedAt    time.Time            `json:"updatedAt"`
}
