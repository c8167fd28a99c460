package directory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nimbus-hr/nimbus/internal/audit"
	"github.com/nimbus-hr/nimbus/internal/authz"
)

// Service wraps directory business rules around the repository and records
// every mutation in the audit trail.
type Service struct {
	repo     Repository
	recorder audit.Recorder
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, recorder audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		recorder: recorder,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreatePermission creates a system permission.
func (s *Service) CreatePermission(ctx context.Context, actorID string, req CreatePermissionRequest) (authz.SystemPermission, error) {
	if err := s.validate.Struct(req); err != nil {
		return authz.SystemPermission{}, err
	}
	perm, err := s.repo.CreatePermission(ctx, authz.SystemPermission{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		return authz.SystemPermission{}, err
	}
	s.record(ctx, actorID, audit.ActionEntityCreate, "system_permission", perm.ID, map[string]any{"name": perm.Name})
	return perm, nil
}

// UpdatePermission updates a system permission.
func (s *Service) UpdatePermission(ctx context.Context, actorID, id string, req UpdatePermissionRequest) (authz.SystemPermission, error) {
	if err := s.validate.Struct(req); err != nil {
		return authz.SystemPermission{}, err
	}
	perm, err := s.repo.UpdatePermission(ctx, authz.SystemPermission{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		return authz.SystemPermission{}, err
	}
	s.record(ctx, actorID, audit.ActionEntityUpdate, "system_permission", perm.ID, map[string]any{"name": perm.Name})
	return perm, nil
}

// DeletePermission deletes a permission, detaching it from every profile
// and permission set first.
func (s *Service) DeletePermission(ctx context.Context, actorID, id string) error {
	if err := s.repo.DeletePermission(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, audit.ActionEntityDelete, "system_permission", id, nil)
	return nil
}

// ListPermissions returns all system permissions.
func (s *Service) ListPermissions(ctx context.Context) ([]authz.SystemPermission, error) {
	return s.repo.ListPermissions(ctx)
}

// CreateProfile creates a profile with its initial permission grants.
func (s *Service) CreateProfile(ctx context.Context, actorID string, req CreateProfileRequest) (authz.Profile, error) {
	if err := s.validate.Struct(req); err != nil {
		return authz.Profile{}, err
	}
	profile, err := s.repo.CreateProfile(ctx, authz.Profile{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	}, req.PermissionIDs)
	if err != nil {
		return authz.Profile{}, err
	}
	s.record(ctx, actorID, audit.ActionEntityCreate, "profile", profile.ID, map[string]any{"name": profile.Name})
	return profile, nil
}

// DeleteProfile deletes a profile. Fails with ErrProfileInUse while users
// still reference it.
func (s *Service) DeleteProfile(ctx context.Context, actorID, id string) error {
	if err := s.repo.DeleteProfile(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, audit.ActionEntityDelete, "profile", id, nil)
	return nil
}

// GetProfile fetches a profile with its grants.
func (s *Service) GetProfile(ctx context.Context, id string) (ProfileDetail, error) {
	return s.repo.GetProfile(ctx, id)
}

// ListProfiles returns all profiles.
func (s *Service) ListProfiles(ctx context.Context) ([]authz.Profile, error) {
	return s.repo.ListProfiles(ctx)
}

// SetProfilePermissions replaces a profile's grants.
func (s *Service) SetProfilePermissions(ctx context.Context, actorID, profileID string, permissionIDs []string) error {
	if err := s.repo.SetProfilePermissions(ctx, profileID, permissionIDs); err != nil {
		return err
	}
	s.record(ctx, actorID, audit.ActionEntityUpdate, "profile", profileID, map[string]any{"permission_ids": permissionIDs})
	return nil
}

// CreatePermissionSet creates a permission set with its initial grants.
func (s *Service) CreatePermissionSet(ctx context.Context, actorID string, req CreatePermissionSetRequest) (authz.PermissionSet, error) {
	if err := s.validate.Struct(req); err != nil {
		return authz.PermissionSet{}, err
	}
	set, err := s.repo.CreatePermissionSet(ctx, authz.PermissionSet{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	}, req.PermissionIDs)
	if err != nil {
		return authz.PermissionSet{}, err
	}
	s.record(ctx, actorID, audit.ActionEntityCreate, "permission_set", set.ID, map[string]any{"name": set.Name})
	return set, nil
}

// DeletePermissionSet deletes a set, detaching all user assignments first.
// Existing assignments never block the deletion.
func (s *Service) DeletePermissionSet(ctx context.Context, actorID, id string) error {
	if err := s.repo.DeletePermissionSet(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, audit.ActionEntityDelete, "permission_set", id, nil)
	return nil
}

// GetPermissionSet fetches a set with its grants.
func (s *Service) GetPermissionSet(ctx context.Context, id string) (PermissionSetDetail, error) {
	return s.repo.GetPermissionSet(ctx, id)
}

// ListPermissionSets returns all permission sets.
func (s *Service) ListPermissionSets(ctx context.Context) ([]authz.PermissionSet, error) {
	return s.repo.ListPermissionSets(ctx)
}

// SetPermissionSetPermissions replaces a set's grants.
func (s *Service) SetPermissionSetPermissions(ctx context.Context, actorID, setID string, permissionIDs []string) error {
	if err := s.repo.SetPermissionSetPermissions(ctx, setID, permissionIDs); err != nil {
		return err
	}
	s.record(ctx, actorID, audit.ActionEntityUpdate, "permission_set", setID, map[string]any{"permission_ids": permissionIDs})
	return nil
}

// AssignPermissionSet links a set to a user.
func (s *Service) AssignPermissionSet(ctx context.Context, actorID, userID, setID string) error {
	if err := s.repo.AssignPermissionSet(ctx, userID, setID); err != nil {
		return err
	}
	s.record(ctx, actorID, audit.ActionEntityUpdate, "user", userID, map[string]any{"assigned_set": setID})
	return nil
}

// RemovePermissionSet unlinks a set from a user.
func (s *Service) RemovePermissionSet(ctx context.Context, actorID, userID, setID string) error {
	if err := s.repo.RemovePermissionSet(ctx, userID, setID); err != nil {
		return err
	}
	s.record(ctx, actorID, audit.ActionEntityUpdate, "user", userID, map[string]any{"removed_set": setID})
	return nil
}

// SetUserProfile reassigns a user's profile.
func (s *Service) SetUserProfile(ctx context.Context, actorID, userID, profileID string) error {
	if err := s.repo.SetUserProfile(ctx, userID, profileID); err != nil {
		return err
	}
	s.record(ctx, actorID, audit.ActionEntityUpdate, "user", userID, map[string]any{"profile_id": profileID})
	return nil
}

// SetUserActive toggles a user's active flag.
func (s *Service) SetUserActive(ctx context.Context, actorID, userID string, active bool) error {
	if err := s.repo.SetUserActive(ctx, userID, active); err != nil {
		return err
	}
	s.record(ctx, actorID, audit.ActionEntityUpdate, "user", userID, map[string]any{"is_active": active})
	return nil
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]authz.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *Service) record(ctx context.Context, actorID, action, entity, entityID string, meta map[string]any) {
	if s.recorder == nil {
		return
	}
	event := audit.Event{ActorID: actorID, Action: action, Entity: entity, EntityID: entityID, Meta: meta}
	if err := s.recorder.Record(ctx, event); err != nil && s.logger != nil {
		s.logger.Warn("audit directory mutation", slog.Any("error", err))
	}
}
