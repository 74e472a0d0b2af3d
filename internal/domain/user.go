package domain

import "time"

// Role enumerates campus user roles.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleStaff   Role = "STAFF"
	RoleAdmin   Role = "ADMIN"
)

// CanReceiveAssignments reports whether a user with this role is eligible to
// be handed an issue.
func (r Role) CanReceiveAssignments() bool {
	return r == RoleStaff || r == RoleAdmin
}

// IsElevated reports whether the role bypasses the assignee-only guard on
// work transitions.
func (r Role) IsElevated() bool {
	return r == RoleAdmin
}

// User is the domain model for everyone on a campus: students reporting
// issues, staff resolving them, and administrators.
type User struct {
	ID           string
	CampusID     string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
