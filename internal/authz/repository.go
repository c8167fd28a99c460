package authz

import "context"

// Repository defines the persistence reads the authorization core consumes.
type Repository interface {
	// FindUserByID fetches the bare user record.
	FindUserByID(ctx context.Context, id string) (*User, error)
	// FindUserWithGrants fetches the user together with its profile
	// permissions and permission set grants in one batched read.
	FindUserWithGrants(ctx context.Context, id string) (*UserGrants, error)
	// ListPermissionsForProfile returns the permission names granted by a
	// profile.
	ListPermissionsForProfile(ctx context.Context, profileID string) ([]string, error)
	// ListPermissionsForPermissionSets returns the union of permission
	// names granted by the given permission sets.
	ListPermissionsForPermissionSets(ctx context.Context, ids []string) ([]string, error)
}
