// Package directory manages the entities permissions are composed from:
// system permissions, profiles, permission sets, and their links to users.
package directory

import (
	"errors"

	"github.com/nimbus-hr/nimbus/internal/authz"
)

var (
	// ErrProfileInUse rejects deleting a profile that still has users
	// assigned; every user must keep exactly one valid profile.
	ErrProfileInUse = errors.New("directory: profile has assigned users")
	// ErrDuplicate indicates a uniqueness violation such as a reused email
	// or permission name.
	ErrDuplicate = errors.New("directory: duplicate entry")
)

// ProfileDetail is a profile with its granted permissions and assignment
// count.
type ProfileDetail struct {
	Profile     authz.Profile
	Permissions []authz.SystemPermission
	UserCount   int64
}

// PermissionSetDetail is a permission set with its granted permissions and
// assignment count.
type PermissionSetDetail struct {
	PermissionSet authz.PermissionSet
	Permissions   []authz.SystemPermission
	UserCount     int64
}

// CreatePermissionRequest creates a system permission.
type CreatePermissionRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// UpdatePermissionRequest updates a system permission.
type UpdatePermissionRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// CreateProfileRequest creates a profile.
type CreateProfileRequest struct {
	Name          string   `json:"name" validate:"required,min=3,max=100"`
	Description   string   `json:"description" validate:"max=500"`
	PermissionIDs []string `json:"permission_ids" validate:"dive,required"`
}

// CreatePermissionSetRequest creates a permission set.
type CreatePermissionSetRequest struct {
	Name          string   `json:"name" validate:"required,min=3,max=100"`
	Description   string   `json:"description" validate:"max=500"`
	PermissionIDs []string `json:"permission_ids" validate:"dive,required"`
}
