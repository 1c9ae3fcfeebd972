package services

import (
	"field-visit-service/internal/domain"
	"slices"
	"strings"
)

// VisitFilter narrows a visit list. Empty fields match everything.
// Search matches client name, property address, technician name, visit
// type, notes and id, case-insensitively.
type VisitFilter struct {
	Search       string
	Status       domain.VisitStatus
	VisitType    string
	Date         string
	TechnicianID string
}

// FilterVisits returns the matching visits sorted by date, time and id.
// The input slice is not modified.
func FilterVisits(visits []domain.Visit, f VisitFilter) []domain.Visit {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]domain.Visit, 0, len(visits))
	for _, v := range visits {
		if f.Status != "" && v.Status != f.Status {
			continue
		}
		if f.VisitType != "" && !strings.EqualFold(v.VisitType, f.VisitType) {
			continue
		}
		if f.Date != "" && v.ScheduledDate != f.Date {
			continue
		}
		if f.TechnicianID != "" && v.TechnicianID != f.TechnicianID {
			continue
		}
		if search != "" && !matchesSearch(v, search) {
			continue
		}
		out = append(out, v)
	}
	SortVisits(out)
	return out
}

func VisitsForDate(visits []domain.Visit, date string) []domain.Visit {
	return FilterVisits(visits, VisitFilter{Date: date})
}

func VisitsForTechnicianDate(visits []domain.Visit, technicianID, date string) []domain.Visit {
	return FilterVisits(visits, VisitFilter{Date: date, TechnicianID: technicianID})
}

// SortVisits orders visits in place by date, start time and id.
func SortVisits(visits []domain.Visit) {
	slices.SortStableFunc(visits, compareSchedule)
}

func compareSchedule(a, b domain.Visit) int {
	if c := strings.Compare(a.ScheduledDate, b.ScheduledDate); c != 0 {
		return c
	}
	if c := strings.Compare(a.ScheduledTime, b.ScheduledTime); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func matchesSearch(v domain.Visit, search string) bool {
	fields := []string{v.ID, v.ClientName, v.PropertyAddress, v.TechnicianName, v.VisitType, v.Notes}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}
