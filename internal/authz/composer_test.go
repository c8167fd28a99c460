package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryGrantsRepo struct {
	users       map[string]User
	profiles    map[string][]string
	userSets    map[string][]string
	setGrants   map[string][]string
	findErr     error
	grantsCalls int
}

func newMemoryGrantsRepo() *memoryGrantsRepo {
	return &memoryGrantsRepo{
		users:     make(map[string]User),
		profiles:  make(map[string][]string),
		userSets:  make(map[string][]string),
		setGrants: make(map[string][]string),
	}
}

func (r *memoryGrantsRepo) FindUserByID(ctx context.Context, id string) (*User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *memoryGrantsRepo) FindUserWithGrants(ctx context.Context, id string) (*UserGrants, error) {
	r.grantsCalls++
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	grants := &UserGrants{
		User:               u,
		ProfilePermissions: append([]string(nil), r.profiles[u.ProfileID]...),
		PermissionSetIDs:   append([]string(nil), r.userSets[id]...),
	}
	for _, setID := range grants.PermissionSetIDs {
		grants.SetPermissions = append(grants.SetPermissions, r.setGrants[setID]...)
	}
	return grants, nil
}

func (r *memoryGrantsRepo) ListPermissionsForProfile(ctx context.Context, profileID string) ([]string, error) {
	return append([]string(nil), r.profiles[profileID]...), nil
}

func (r *memoryGrantsRepo) ListPermissionsForPermissionSets(ctx context.Context, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		out = append(out, r.setGrants[id]...)
	}
	return out, nil
}

func TestComposeUnionsProfileAndSets(t *testing.T) {
	repo := newMemoryGrantsRepo()
	repo.users["u1"] = User{ID: "u1", ProfileID: "p1", IsActive: true}
	repo.profiles["p1"] = []string{"dashboard.view", "employees.view"}
	repo.userSets["u1"] = []string{"s1", "s2"}
	repo.setGrants["s1"] = []string{"documents.view", "employees.view"}
	repo.setGrants["s2"] = []string{"reports.view"}

	perms, err := NewComposer(repo).Compose(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"dashboard.view", "documents.view", "employees.view", "reports.view"}, perms.Names())
}

func TestComposeIdempotent(t *testing.T) {
	repo := newMemoryGrantsRepo()
	repo.users["u1"] = User{ID: "u1", ProfileID: "p1", IsActive: true}
	repo.profiles["p1"] = []string{"dashboard.view"}

	composer := NewComposer(repo)
	first, err := composer.Compose(context.Background(), "u1")
	require.NoError(t, err)
	second, err := composer.Compose(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, first.Equal(second))
}

func TestComposeSetRemovalKeepsProfileGrants(t *testing.T) {
	repo := newMemoryGrantsRepo()
	repo.users["u1"] = User{ID: "u1", ProfileID: "p1", IsActive: true}
	repo.profiles["p1"] = []string{"dashboard.view", "documents.view"}
	repo.userSets["u1"] = []string{"s1"}
	repo.setGrants["s1"] = []string{"documents.view"}

	composer := NewComposer(repo)
	before, err := composer.Compose(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, before.Has("documents.view"))

	// Removing the set must not remove the grant the profile also carries.
	delete(repo.userSets, "u1")
	after, err := composer.Compose(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, after.Has("documents.view"))
	require.True(t, after.Has("dashboard.view"))
}

func TestComposeUnknownUser(t *testing.T) {
	repo := newMemoryGrantsRepo()
	_, err := NewComposer(repo).Compose(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestComposeUserWithoutProfile(t *testing.T) {
	repo := newMemoryGrantsRepo()
	repo.users["u1"] = User{ID: "u1", IsActive: true}

	_, err := NewComposer(repo).Compose(context.Background(), "u1")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestComposeGrantsReturnsUser(t *testing.T) {
	repo := newMemoryGrantsRepo()
	repo.users["u1"] = User{ID: "u1", Name: "Ada", ProfileID: "p1", IsActive: true}
	repo.profiles["p1"] = []string{"dashboard.view"}

	user, perms, err := NewComposer(repo).ComposeGrants(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "Ada", user.Name)
	require.True(t, perms.Has("dashboard.view"))
	require.Equal(t, 1, repo.grantsCalls)
}
