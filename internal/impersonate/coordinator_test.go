package impersonate

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nimbus-hr/nimbus/internal/audit"
	"github.com/nimbus-hr/nimbus/internal/authz"
	"github.com/nimbus-hr/nimbus/internal/session"
)

const adminProfileID = "profile-admin"

type memoryAuthzRepo struct {
	users    map[string]authz.User
	profiles map[string][]string
}

func newMemoryAuthzRepo() *memoryAuthzRepo {
	return &memoryAuthzRepo{
		users:    make(map[string]authz.User),
		profiles: make(map[string][]string),
	}
}

func (r *memoryAuthzRepo) FindUserByID(ctx context.Context, id string) (*authz.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, authz.ErrNotFound
	}
	return &u, nil
}

func (r *memoryAuthzRepo) FindUserWithGrants(ctx context.Context, id string) (*authz.UserGrants, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, authz.ErrNotFound
	}
	return &authz.UserGrants{
		User:               u,
		ProfilePermissions: append([]string(nil), r.profiles[u.ProfileID]...),
	}, nil
}

func (r *memoryAuthzRepo) ListPermissionsForProfile(ctx context.Context, profileID string) ([]string, error) {
	return append([]string(nil), r.profiles[profileID]...), nil
}

func (r *memoryAuthzRepo) ListPermissionsForPermissionSets(ctx context.Context, ids []string) ([]string, error) {
	return nil, nil
}

type memoryRecorder struct {
	events []audit.Event
}

func (m *memoryRecorder) Record(ctx context.Context, event audit.Event) error {
	m.events = append(m.events, event)
	return nil
}

func newTestCoordinator(t *testing.T) (*Coordinator, *memoryAuthzRepo, *memoryRecorder) {
	t.Helper()
	repo := newMemoryAuthzRepo()
	repo.profiles[adminProfileID] = []string{"p1", "p2"}
	repo.profiles["profile-employee"] = []string{"p3", "p4"}
	repo.users["admin"] = authz.User{ID: "admin", Name: "Ada", Email: "ada@nimbus.local", ProfileID: adminProfileID, IsActive: true}
	repo.users["bob"] = authz.User{ID: "bob", Name: "Bob", Email: "bob@nimbus.local", ProfileID: "profile-employee", IsActive: true}

	recorder := &memoryRecorder{}
	coord := NewCoordinator(repo, authz.NewComposer(repo), adminProfileID, recorder, slog.Default())
	return coord, repo, recorder
}

func adminClaims() session.Claims {
	return session.Claims{
		SubjectID:   "admin",
		Name:        "Ada",
		Email:       "ada@nimbus.local",
		ProfileID:   adminProfileID,
		Permissions: authz.NewPermissions("p1", "p2"),
		IsActive:    true,
		IssuedAt:    time.Now().UTC(),
	}
}

func TestStartSubstitutesTargetIdentity(t *testing.T) {
	coord, _, recorder := newTestCoordinator(t)

	next, err := coord.Start(context.Background(), adminClaims(), "bob")
	require.NoError(t, err)
	require.Equal(t, "bob", next.SubjectID)
	require.Equal(t, []string{"p3", "p4"}, next.Permissions.Names())
	require.True(t, next.HasPermission("p3"))
	require.False(t, next.HasPermission("p1"))
	require.True(t, next.Impersonating())
	require.Equal(t, "admin", next.Impersonation.Original.SubjectID)
	require.NoError(t, next.Validate())

	require.Len(t, recorder.events, 1)
	require.Equal(t, audit.ActionImpersonationStart, recorder.events[0].Action)
	require.Equal(t, "admin", recorder.events[0].ActorID)
}

func TestStartEndRoundTripRestoresOriginal(t *testing.T) {
	coord, _, recorder := newTestCoordinator(t)
	before := adminClaims()

	active, err := coord.Start(context.Background(), before, "bob")
	require.NoError(t, err)

	restored, err := coord.End(context.Background(), active)
	require.NoError(t, err)
	require.False(t, restored.Impersonating())
	require.Equal(t, before.SubjectID, restored.SubjectID)
	require.Equal(t, before.ProfileID, restored.ProfileID)
	require.True(t, restored.Permissions.Equal(before.Permissions))
	require.NoError(t, restored.Validate())

	require.Len(t, recorder.events, 2)
	require.Equal(t, audit.ActionImpersonationEnd, recorder.events[1].Action)
}

func TestStartWhileImpersonating(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)

	active, err := coord.Start(context.Background(), adminClaims(), "bob")
	require.NoError(t, err)

	_, err = coord.Start(context.Background(), active, "bob")
	require.ErrorIs(t, err, authz.ErrAlreadyImpersonating)
	// The rejected transition changed nothing about the active claims.
	require.Equal(t, "bob", active.SubjectID)
	require.Equal(t, "admin", active.Impersonation.Original.SubjectID)
}

func TestStartWithoutAuthority(t *testing.T) {
	coord, _, recorder := newTestCoordinator(t)

	claims := adminClaims()
	claims.SubjectID = "bob"
	claims.ProfileID = "profile-employee"
	claims.Permissions = authz.NewPermissions("p3", "p4")

	_, err := coord.Start(context.Background(), claims, "admin")
	require.ErrorIs(t, err, authz.ErrUnauthorized)
	require.Empty(t, recorder.events)
}

func TestStartUnknownTarget(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	_, err := coord.Start(context.Background(), adminClaims(), "ghost")
	require.ErrorIs(t, err, authz.ErrTargetUnavailable)
}

func TestStartInactiveTarget(t *testing.T) {
	coord, repo, _ := newTestCoordinator(t)
	u := repo.users["bob"]
	u.IsActive = false
	repo.users["bob"] = u

	_, err := coord.Start(context.Background(), adminClaims(), "bob")
	require.ErrorIs(t, err, authz.ErrTargetUnavailable)
}

func TestEndWithoutImpersonation(t *testing.T) {
	coord, _, recorder := newTestCoordinator(t)
	_, err := coord.End(context.Background(), adminClaims())
	require.ErrorIs(t, err, authz.ErrNotImpersonating)
	require.Empty(t, recorder.events)
}

func TestEndRestoresSnapshotNotCurrentGrants(t *testing.T) {
	coord, repo, _ := newTestCoordinator(t)

	active, err := coord.Start(context.Background(), adminClaims(), "bob")
	require.NoError(t, err)

	// Grants changed mid-impersonation; End restores the snapshot verbatim.
	repo.profiles[adminProfileID] = []string{"p1"}

	restored, err := coord.End(context.Background(), active)
	require.NoError(t, err)
	require.Equal(t, []string{"p1", "p2"}, restored.Permissions.Names())
}
