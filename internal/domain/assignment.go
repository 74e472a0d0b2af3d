package domain

import "time"

// Assignment is an append-only log entry recording who was handed an issue,
// by whom, and when. The issue's AssignedTo pointer is denormalized from the
// newest entry; the log itself is never mutated or deleted.
type Assignment struct {
	ID         string
	IssueID    string
	AssignedTo string
	AssignedBy string
	Note       *string
	AssignedAt time.Time
}
