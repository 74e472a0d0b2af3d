package domain

import "time"

// Campus is the multi-tenancy boundary. Issue numbers are sequential per
// campus and all queries are campus-scoped.
type Campus struct {
	ID        string
	Name      string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
