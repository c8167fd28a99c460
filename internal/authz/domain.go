package authz

import "time"

// SystemPermission is an atomic named grant checked by capability gates.
type SystemPermission struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Profile is the single primary role assignment of a user. Every user
// references exactly one profile.
type Profile struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PermissionSet is a stackable bundle of system permissions a user may
// hold zero or more of.
type PermissionSet struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// User is the authoritative identity record.
type User struct {
	ID             string
	Name           string
	Email          string
	ProfileID      string
	EmployeeNumber string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserGrants bundles a user with every permission source attached to it.
// Produced by a single batched repository read so composition never runs
// one query per permission set.
type UserGrants struct {
	User               User
	ProfilePermissions []string
	PermissionSetIDs   []string
	SetPermissions     []string
}
