package dto

import "field-visit-service/internal/domain"

func (l *LocationRequest) Domain() *domain.LocationCoordinates {
	if l == nil {
		return nil
	}
	out := &domain.LocationCoordinates{
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
		Accuracy:  l.Accuracy,
	}
	if l.Timestamp != nil {
		out.Timestamp = l.Timestamp.UTC()
	}
	return out
}

func (r LocationUpdateRequest) Sample() domain.LocationCoordinates {
	out := domain.LocationCoordinates{
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Accuracy:  r.Accuracy,
	}
	if r.Timestamp != nil {
		out.Timestamp = r.Timestamp.UTC()
	}
	return out
}

func (c *CoordinatesRequest) Domain() *domain.Coordinates {
	if c == nil {
		return nil
	}
	return &domain.Coordinates{Lon: c.Lon, Lat: c.Lat}
}
