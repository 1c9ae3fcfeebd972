package services

import (
	"testing"

	"field-visit-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotVisit(id, tech, date, start string, minutes int) domain.Visit {
	begin, _ := ParseClock(start)
	return domain.Visit{
		ID:                id,
		TechnicianID:      tech,
		TechnicianName:    tech + "-name",
		ScheduledDate:     date,
		ScheduledTime:     start,
		EndTime:           FormatClock(begin + minutes),
		EstimatedDuration: minutes,
		Status:            domain.VisitStatusScheduled,
	}
}

func TestCheckSlotHalfOpenIntervals(t *testing.T) {
	existing := []domain.Visit{slotVisit("V1", "T1", "2024-01-15", "09:00", 90)}

	err := CheckSlot(SlotRequest{Date: "2024-01-15", StartTime: "10:00", DurationMinutes: 60}, existing)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Overlaps, 1)
	assert.Equal(t, "V1", conflict.Overlaps[0].VisitID)
	assert.Equal(t, "10:00", conflict.StartTime)
	assert.Equal(t, "11:00", conflict.EndTime)

	err = CheckSlot(SlotRequest{Date: "2024-01-15", StartTime: "10:30", DurationMinutes: 60}, existing)
	assert.NoError(t, err)

	err = CheckSlot(SlotRequest{Date: "2024-01-15", StartTime: "08:00", DurationMinutes: 60}, existing)
	assert.NoError(t, err, "a slot ending exactly at the visit start does not conflict")
}

func TestCheckSlotFilters(t *testing.T) {
	cancelled := slotVisit("V2", "T1", "2024-01-15", "09:00", 60)
	cancelled.Status = domain.VisitStatusCancelled
	existing := []domain.Visit{
		slotVisit("V1", "T1", "2024-01-15", "09:00", 60),
		cancelled,
		slotVisit("V3", "T2", "2024-01-15", "09:30", 60),
		slotVisit("V4", "T1", "2024-01-16", "09:00", 60),
	}

	req := SlotRequest{Date: "2024-01-15", StartTime: "09:00", DurationMinutes: 30}

	var conflict *domain.ConflictError
	require.ErrorAs(t, CheckSlot(req, existing), &conflict)
	ids := []string{}
	for _, o := range conflict.Overlaps {
		ids = append(ids, o.VisitID)
	}
	assert.Equal(t, []string{"V1"}, ids)

	req.StartTime = "09:15"
	require.ErrorAs(t, CheckSlot(req, existing), &conflict)
	assert.Len(t, conflict.Overlaps, 2)

	req.TechnicianID = "T2"
	require.ErrorAs(t, CheckSlot(req, existing), &conflict)
	require.Len(t, conflict.Overlaps, 1)
	assert.Equal(t, "V3", conflict.Overlaps[0].VisitID)

	req = SlotRequest{Date: "2024-01-15", StartTime: "09:00", DurationMinutes: 30, TechnicianID: "T1", ExcludeVisitID: "V1"}
	assert.NoError(t, CheckSlot(req, existing))
}

func TestCheckSlotValidation(t *testing.T) {
	tests := []SlotRequest{
		{Date: "", StartTime: "09:00", DurationMinutes: 30},
		{Date: "2024-01-15", StartTime: "late", DurationMinutes: 30},
		{Date: "2024-01-15", StartTime: "09:00", DurationMinutes: 0},
	}
	for _, req := range tests {
		var verr *domain.ValidationError
		assert.ErrorAs(t, CheckSlot(req, nil), &verr)
	}
}

func TestAvailableSlots(t *testing.T) {
	existing := []domain.Visit{slotVisit("V1", "T1", "2024-01-15", "09:00", 90)}
	grid := SlotGrid{Start: "08:00", End: "11:00", StepMinutes: 30}

	slots, err := AvailableSlots("2024-01-15", 60, "T1", grid, existing)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "10:30"}, slots)

	slots, err = AvailableSlots("2024-01-15", 60, "T2", grid, existing)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "08:30", "09:00", "09:30", "10:00", "10:30"}, slots)

	_, err = AvailableSlots("2024-01-15", 60, "", SlotGrid{Start: "10:00", End: "09:00", StepMinutes: 30}, nil)
	assert.Error(t, err)

	_, err = AvailableSlots("2024-01-15", 60, "", SlotGrid{Start: "08:00", End: "09:00"}, nil)
	assert.Error(t, err)
}
