package directory

import (
	"context"

	"github.com/nimbus-hr/nimbus/internal/authz"
)

// Repository defines persistence for directory entities. Deletion contracts
// are explicit rather than delegated to database cascade configuration:
//
//   - DeletePermission detaches the permission from every profile and
//     permission set before removing it, in one transaction.
//   - DeleteProfile fails with ErrProfileInUse while users reference it.
//   - DeletePermissionSet detaches all user assignments and permission
//     links, then deletes, in one transaction. Existing user references
//     never block it.
type Repository interface {
	CreatePermission(ctx context.Context, perm authz.SystemPermission) (authz.SystemPermission, error)
	UpdatePermission(ctx context.Context, perm authz.SystemPermission) (authz.SystemPermission, error)
	DeletePermission(ctx context.Context, id string) error
	GetPermission(ctx context.Context, id string) (authz.SystemPermission, error)
	ListPermissions(ctx context.Context) ([]authz.SystemPermission, error)

	CreateProfile(ctx context.Context, profile authz.Profile, permissionIDs []string) (authz.Profile, error)
	UpdateProfile(ctx context.Context, profile authz.Profile) (authz.Profile, error)
	DeleteProfile(ctx context.Context, id string) error
	GetProfile(ctx context.Context, id string) (ProfileDetail, error)
	ListProfiles(ctx context.Context) ([]authz.Profile, error)
	SetProfilePermissions(ctx context.Context, profileID string, permissionIDs []string) error

	CreatePermissionSet(ctx context.Context, set authz.PermissionSet, permissionIDs []string) (authz.PermissionSet, error)
	UpdatePermissionSet(ctx context.Context, set authz.PermissionSet) (authz.PermissionSet, error)
	DeletePermissionSet(ctx context.Context, id string) error
	GetPermissionSet(ctx context.Context, id string) (PermissionSetDetail, error)
	ListPermissionSets(ctx context.Context) ([]authz.PermissionSet, error)
	SetPermissionSetPermissions(ctx context.Context, setID string, permissionIDs []string) error

	AssignPermissionSet(ctx context.Context, userID, setID string) error
	RemovePermissionSet(ctx context.Context, userID, setID string) error
	SetUserProfile(ctx context.Context, userID, profileID string) error
	SetUserActive(ctx context.Context, userID string, active bool) error
	ListUsers(ctx context.Context) ([]authz.User, error)
}
