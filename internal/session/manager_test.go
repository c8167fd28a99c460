package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nimbus-hr/nimbus/internal/authz"
)

type stubComposer struct {
	users map[string]authz.User
	perms map[string]authz.Permissions
	err   error
}

func (s *stubComposer) Compose(ctx context.Context, userID string) (authz.Permissions, error) {
	if s.err != nil {
		return nil, s.err
	}
	perms, ok := s.perms[userID]
	if !ok {
		return nil, authz.ErrNotFound
	}
	return perms.Clone(), nil
}

func (s *stubComposer) ComposeGrants(ctx context.Context, userID string) (*authz.User, authz.Permissions, error) {
	perms, err := s.Compose(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	user, ok := s.users[userID]
	if !ok {
		return nil, nil, authz.ErrNotFound
	}
	return &user, perms, nil
}

func newTestManager(t *testing.T, composer Composer) *Manager {
	t.Helper()
	codec, err := NewTokenCodec("test-secret", "nimbus-test", time.Hour)
	require.NoError(t, err)
	return NewManager(composer, codec)
}

func activeClaims(perms ...string) Claims {
	return Claims{
		SubjectID:   "u1",
		Name:        "Ada",
		Email:       "ada@nimbus.local",
		ProfileID:   "p1",
		Permissions: authz.NewPermissions(perms...),
		IsActive:    true,
		IssuedAt:    time.Now().UTC(),
	}
}

func TestBuildClaims(t *testing.T) {
	composer := &stubComposer{perms: map[string]authz.Permissions{
		"u1": authz.NewPermissions("dashboard.view"),
	}}
	mgr := newTestManager(t, composer)

	user := &authz.User{ID: "u1", Name: "Ada", Email: "ada@nimbus.local", ProfileID: "p1", IsActive: true}
	claims, err := mgr.BuildClaims(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.SubjectID)
	require.True(t, claims.HasPermission("dashboard.view"))
	require.False(t, claims.Impersonating())
	require.NoError(t, claims.Validate())
}

func TestBuildClaimsInactiveUser(t *testing.T) {
	mgr := newTestManager(t, &stubComposer{})
	_, err := mgr.BuildClaims(context.Background(), &authz.User{ID: "u1", ProfileID: "p1"})
	require.ErrorIs(t, err, authz.ErrUnauthorized)
}

func TestBuildClaimsNilUser(t *testing.T) {
	mgr := newTestManager(t, &stubComposer{})
	_, err := mgr.BuildClaims(context.Background(), nil)
	require.ErrorIs(t, err, authz.ErrInvalidState)
}

func TestRefreshClaimsReflectsGrantChanges(t *testing.T) {
	composer := &stubComposer{
		users: map[string]authz.User{
			"u1": {ID: "u1", Name: "Ada", Email: "ada@nimbus.local", ProfileID: "p1", IsActive: true},
		},
		perms: map[string]authz.Permissions{
			"u1": authz.NewPermissions("dashboard.view", "reports.view"),
		},
	}
	mgr := newTestManager(t, composer)

	refreshed, err := mgr.RefreshClaims(context.Background(), activeClaims("dashboard.view"))
	require.NoError(t, err)
	require.True(t, refreshed.HasPermission("reports.view"))
	require.Equal(t, "u1", refreshed.SubjectID)
}

func TestRefreshClaimsReflectsDeactivation(t *testing.T) {
	composer := &stubComposer{
		users: map[string]authz.User{
			"u1": {ID: "u1", Name: "Ada", Email: "ada@nimbus.local", ProfileID: "p1", IsActive: false},
		},
		perms: map[string]authz.Permissions{
			"u1": authz.NewPermissions("dashboard.view"),
		},
	}
	mgr := newTestManager(t, composer)

	refreshed, err := mgr.RefreshClaims(context.Background(), activeClaims("dashboard.view"))
	require.NoError(t, err)
	require.False(t, refreshed.IsActive)
	require.False(t, refreshed.HasPermission("dashboard.view"))
	require.NoError(t, refreshed.Validate())
}

func TestRefreshClaimsReflectsProfileReassignment(t *testing.T) {
	composer := &stubComposer{
		users: map[string]authz.User{
			"u1": {ID: "u1", Name: "Ada", Email: "ada@nimbus.local", ProfileID: "p2", IsActive: true},
		},
		perms: map[string]authz.Permissions{
			"u1": authz.NewPermissions("absences.view"),
		},
	}
	mgr := newTestManager(t, composer)

	refreshed, err := mgr.RefreshClaims(context.Background(), activeClaims("dashboard.view"))
	require.NoError(t, err)
	require.Equal(t, "p2", refreshed.ProfileID)
	require.True(t, refreshed.HasPermission("absences.view"))
	require.False(t, refreshed.HasPermission("dashboard.view"))
}

func TestRefreshClaimsPreservesImpersonation(t *testing.T) {
	composer := &stubComposer{
		users: map[string]authz.User{
			"u2": {ID: "u2", Name: "Bea", Email: "bea@nimbus.local", ProfileID: "p2", IsActive: true},
		},
		perms: map[string]authz.Permissions{
			"u2": authz.NewPermissions("absences.view", "documents.view"),
		},
	}
	mgr := newTestManager(t, composer)

	original := Identity{
		SubjectID: "u1", ProfileID: "p1",
		Permissions: authz.NewPermissions("dashboard.view"), IsActive: true,
	}
	impersonated := Identity{
		SubjectID: "u2", ProfileID: "p2",
		Permissions: authz.NewPermissions("absences.view"), IsActive: true,
	}
	claims := claimsFromIdentity(impersonated, &ImpersonationRecord{
		Original:     original,
		Impersonated: impersonated,
		StartedAt:    time.Now().UTC(),
	}, time.Now().UTC())

	refreshed, err := mgr.RefreshClaims(context.Background(), claims)
	require.NoError(t, err)
	require.True(t, refreshed.Impersonating())
	// The impersonated identity picks up the new grant.
	require.True(t, refreshed.HasPermission("documents.view"))
	// The original snapshot is untouched.
	require.True(t, refreshed.Impersonation.Original.Permissions.Equal(original.Permissions))
	require.Equal(t, "u1", refreshed.OriginalIdentity().SubjectID)
	require.NoError(t, refreshed.Validate())
}

func TestRefreshClaimsRejectsMalformed(t *testing.T) {
	mgr := newTestManager(t, &stubComposer{})
	bad := activeClaims("dashboard.view")
	bad.SubjectID = ""
	_, err := mgr.RefreshClaims(context.Background(), bad)
	require.ErrorIs(t, err, authz.ErrMalformedClaims)
}

func TestRefreshClaimsComposerFailure(t *testing.T) {
	composer := &stubComposer{err: errors.New("db down")}
	mgr := newTestManager(t, composer)
	_, err := mgr.RefreshClaims(context.Background(), activeClaims("dashboard.view"))
	require.Error(t, err)
}

func TestIssueAndReadToken(t *testing.T) {
	composer := &stubComposer{perms: map[string]authz.Permissions{
		"u1": authz.NewPermissions("dashboard.view"),
	}}
	mgr := newTestManager(t, composer)

	claims := activeClaims("dashboard.view")
	token, err := mgr.IssueToken("sess-1", claims)
	require.NoError(t, err)

	sessionID, decoded, err := mgr.ReadClaims(token)
	require.NoError(t, err)
	require.Equal(t, "sess-1", sessionID)
	require.Equal(t, claims.SubjectID, decoded.SubjectID)
	require.True(t, decoded.Permissions.Equal(claims.Permissions))
}

func TestClaimsValidateImpersonationConsistency(t *testing.T) {
	original := Identity{SubjectID: "u1", ProfileID: "p1", Permissions: authz.NewPermissions("a"), IsActive: true}
	impersonated := Identity{SubjectID: "u2", ProfileID: "p2", Permissions: authz.NewPermissions("b"), IsActive: true}
	rec := &ImpersonationRecord{Original: original, Impersonated: impersonated, StartedAt: time.Now().UTC()}

	consistent := claimsFromIdentity(impersonated, rec, time.Now().UTC())
	require.NoError(t, consistent.Validate())

	// Marker set but top-level fields still describe the original.
	inconsistent := claimsFromIdentity(original, rec, time.Now().UTC())
	require.ErrorIs(t, inconsistent.Validate(), authz.ErrMalformedClaims)

	drifted := claimsFromIdentity(impersonated, rec, time.Now().UTC())
	drifted.Permissions = authz.NewPermissions("c")
	require.ErrorIs(t, drifted.Validate(), authz.ErrMalformedClaims)
}

func TestHasPermissionInactiveSubject(t *testing.T) {
	claims := activeClaims("dashboard.view")
	claims.IsActive = false
	require.False(t, claims.HasPermission("dashboard.view"))
}
