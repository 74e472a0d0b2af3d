// Package sla holds the pure deadline arithmetic used when stamping issues.
package sla

import (
	"time"

	"github.com/spec-kit/facilities-service/internal/domain"
	apperrors "github.com/spec-kit/facilities-service/pkg/util"
)

// Deadlines carries the absolute deadlines stamped on an issue at creation.
type Deadlines struct {
	Response   time.Time
	Resolution time.Time
}

// ComputeDeadlines derives the response and resolution deadlines from the
// category SLA table for the given priority. A category with no entry for the
// priority is a configuration error and must block issue creation: a silently
// missing budget would make breach detection meaningless.
func ComputeDeadlines(table domain.SLAConfig, priority domain.IssuePriority, createdAt time.Time) (Deadlines, error) {
	target, ok := table[priority]
	if !ok {
		return Deadlines{}, apperrors.NewConfigurationError(
			"no SLA configuration for priority "+string(priority),
			map[string]any{"priority": priority},
		)
	}
	return Deadlines{
		Response:   createdAt.Add(time.Duration(target.ResponseMinutes) * time.Minute),
		Resolution: createdAt.Add(time.Duration(target.ResolutionHours) * time.Hour),
	}, nil
}
