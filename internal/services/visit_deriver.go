package services

import (
	"field-visit-service/internal/domain"
	"strings"
)

const (
	// UnassignedTechnician is the display name used when a job has no technicians.
	UnassignedTechnician = "Unassigned"
	// DefaultStartTime applies when a visit's time text cannot be parsed.
	DefaultStartTime = "09:00"

	synthesizedVisitSuffix = "job"
)

// DeriveVisits expands job records into canonical visit instances.
//
// The function is pure: identical input always yields identical visits, in
// job order then sub-record order. Malformed fields degrade to documented
// defaults instead of failing the batch; jobs without an id are skipped.
func DeriveVisits(jobs []domain.Job) []domain.Visit {
	visits := make([]domain.Visit, 0, len(jobs))
	for _, job := range jobs {
		visits = append(visits, DeriveJobVisits(job)...)
	}
	return visits
}

// DeriveJobVisits emits one visit per scheduled-visit sub-record, or a single
// synthesized visit from the job-level schedule when there are none.
func DeriveJobVisits(job domain.Job) []domain.Visit {
	jobID := strings.TrimSpace(job.ID)
	if jobID == "" {
		return nil
	}

	techID, techName := primaryTechnician(job.Technicians)
	jobDuration := DurationMinutesOr(job.EstimatedDuration, DefaultDurationMinutes)

	if len(job.ScheduledVisits) == 0 {
		if strings.TrimSpace(job.ScheduledDate) == "" {
			return nil
		}

		v := baseVisit(job, techID, techName)
		v.ID = VisitID(jobID, "")
		v.ScheduledDate = normalizeDateOrRaw(job.ScheduledDate)
		v.VisitType = job.Category
		v.Status = domain.ParseVisitStatus(job.Status)
		setSchedule(&v, job.ScheduledTime, jobDuration)
		return []domain.Visit{v}
	}

	visits := make([]domain.Visit, 0, len(job.ScheduledVisits))
	for i, sv := range job.ScheduledVisits {
		subID := sv.Key(i)

		v := baseVisit(job, techID, techName)
		v.ID = VisitID(jobID, subID)
		v.ScheduledVisitID = subID
		v.ScheduledDate = normalizeDateOrRaw(firstNonEmpty(sv.Date, job.ScheduledDate))
		v.VisitType = firstNonEmpty(sv.Purpose, job.Category)
		v.Status = domain.ParseVisitStatus(sv.Status)
		v.Notes = sv.Notes

		duration := jobDuration
		if strings.TrimSpace(sv.Duration) != "" {
			duration = DurationMinutesOr(sv.Duration, jobDuration)
		}
		setSchedule(&v, firstNonEmpty(sv.Time, job.ScheduledTime), duration)

		visits = append(visits, v)
	}

	return visits
}

// VisitID builds the deterministic visit id for a job and sub-record id.
func VisitID(jobID, scheduledVisitID string) string {
	if scheduledVisitID == "" {
		return jobID + "-" + synthesizedVisitSuffix
	}
	return jobID + "-" + scheduledVisitID
}

func baseVisit(job domain.Job, techID, techName string) domain.Visit {
	return domain.Visit{
		JobID:           strings.TrimSpace(job.ID),
		ClientID:        job.ClientID,
		ClientName:      job.ClientName,
		PropertyID:      job.PropertyID,
		PropertyAddress: job.PropertyAddress,
		Priority:        job.Priority,
		TechnicianID:    techID,
		TechnicianName:  techName,
	}
}

func setSchedule(v *domain.Visit, timeText string, duration int) {
	start, err := ParseClock(timeText)
	if err != nil {
		start, _ = ParseClock(DefaultStartTime)
	}
	v.ScheduledTime = FormatClock(start)
	v.EstimatedDuration = duration
	v.EndTime = FormatClock(start + duration)
}

// primaryTechnician picks the technician flagged primary, else the first
// assigned one, else the unassigned placeholder with an empty id.
func primaryTechnician(techs []domain.AssignedTechnician) (string, string) {
	for _, t := range techs {
		if t.IsPrimary {
			return t.ID, t.Name
		}
	}
	if len(techs) > 0 {
		return techs[0].ID, techs[0].Name
	}
	return "", UnassignedTechnician
}

func normalizeDateOrRaw(text string) string {
	d, err := NormalizeDate(text)
	if err != nil {
		return strings.TrimSpace(text)
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
