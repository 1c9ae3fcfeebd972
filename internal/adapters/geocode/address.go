package geocode

import (
	"field-visit-service/internal/domain"
	"strings"
)

// normalize collapses whitespace so equivalent addresses share a cache key.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// visitKey is the text a visit is geocoded by: its property address, else
// the property id, else the visit id.
func visitKey(v domain.Visit) string {
	if a := normalize(v.PropertyAddress); a != "" {
		return a
	}
	if v.PropertyID != "" {
		return "property:" + v.PropertyID
	}
	return "visit:" + v.ID
}
