package domain

import "time"

// SLATarget is the time budget a category promises for one priority level.
type SLATarget struct {
	ResponseMinutes int `json:"responseMinutes"`
	ResolutionHours int `json:"resolutionHours"`
}

// SLAConfig maps priority to its SLA targets. Stored as JSONB on the category.
type SLAConfig map[IssuePriority]SLATarget

// Category groups issues and owns the SLA configuration used to stamp
// deadlines at issue creation. Config changes affect only future issues.
type Category struct {
	ID          string
	CampusID    string
	Name        string
	Description string
	SLAConfig   SLAConfig
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
