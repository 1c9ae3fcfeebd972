package domain

import (
	"fmt"
	"strings"
)

// Job is the coarse scheduling record owned by the job store.
// The visit core only reads it, except for the terminal status write-back.
type Job struct {
	ID                string               `json:"id"`
	ClientID          string               `json:"clientId"`
	ClientName        string               `json:"clientName"`
	PropertyID        string               `json:"propertyId"`
	PropertyAddress   string               `json:"propertyAddress"`
	Category          string               `json:"category"`
	Priority          string               `json:"priority"`
	Status            string               `json:"status"`
	EstimatedDuration string               `json:"estimatedDuration"`
	ScheduledDate     string               `json:"scheduledDate"`
	ScheduledTime     string               `json:"scheduledTime"`
	ScheduledVisits   []ScheduledVisit     `json:"scheduledVisits"`
	Technicians       []AssignedTechnician `json:"technicians"`
}

// ScheduledVisit is one explicitly planned visit of a job.
type ScheduledVisit struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Duration string `json:"duration"`
	Purpose  string `json:"purpose"`
	Status   string `json:"status"`
	Notes    string `json:"notes"`
}

// Key is the sub-record id at position index (0-based) within its job.
// Records without an id are keyed by their 1-based position.
func (sv ScheduledVisit) Key(index int) string {
	if id := strings.TrimSpace(sv.ID); id != "" {
		return id
	}
	return fmt.Sprintf("visit-%d", index+1)
}

type AssignedTechnician struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPrimary bool   `json:"isPrimary"`
}
