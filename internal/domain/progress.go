package domain

import "time"

type StageStatus string

const (
	StageStatusPending    StageStatus = "pending"
	StageStatusInProgress StageStatus = "in-progress"
	StageStatusCompleted  StageStatus = "completed"
	StageStatusSkipped    StageStatus = "skipped"
)

// StageDefinition is a named phase of on-site work.
type StageDefinition struct {
	ID               string `json:"id" yaml:"id"`
	Name             string `json:"name" yaml:"name"`
	EstimatedMinutes int    `json:"estimatedMinutes" yaml:"estimated_minutes"`
}

type VisitStageProgress struct {
	Stage           StageDefinition `json:"stage"`
	Status          StageStatus     `json:"status"`
	StartTime       *time.Time      `json:"startTime,omitempty"`
	EndTime         *time.Time      `json:"endTime,omitempty"`
	DurationMinutes int             `json:"durationMinutes"`
}

type ProgressNote struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	Category     string    `json:"category"`
	TechnicianID string    `json:"technicianId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TimeEntry is a named timed activity. A nil EndTime means it is running.
type TimeEntry struct {
	ID              string     `json:"id"`
	Activity        string     `json:"activity"`
	Description     string     `json:"description"`
	TechnicianID    string     `json:"technicianId"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	DurationMinutes int        `json:"durationMinutes"`
}

func (t TimeEntry) Running() bool { return t.EndTime == nil }

// VisitProgress is the technician-driven progress record of a visit.
type VisitProgress struct {
	VisitID              string               `json:"visitId"`
	Stages               []VisitStageProgress `json:"stages"`
	CurrentStageIndex    int                  `json:"currentStageIndex"`
	CompletionPercentage int                  `json:"completionPercentage"`
	CheckInTime          *time.Time           `json:"checkInTime,omitempty"`
	CheckOutTime         *time.Time           `json:"checkOutTime,omitempty"`
	ActualStartTime      *time.Time           `json:"actualStartTime,omitempty"`
	ActualEndTime        *time.Time           `json:"actualEndTime,omitempty"`
	Notes                []ProgressNote       `json:"notes"`
	TimeEntries          []TimeEntry          `json:"timeEntries"`
}

// StageIndex returns the position of the stage with the given id, or -1.
func (p *VisitProgress) StageIndex(stageID string) int {
	for i := range p.Stages {
		if p.Stages[i].Stage.ID == stageID {
			return i
		}
	}
	return -1
}

// RunningTimer returns the index of the running time entry, or -1.
func (p *VisitProgress) RunningTimer() int {
	for i := range p.TimeEntries {
		if p.TimeEntries[i].Running() {
			return i
		}
	}
	return -1
}
