package session

import (
	"context"
	"fmt"
	"time"

	"github.com/nimbus-hr/nimbus/internal/authz"
)

// Composer derives the effective permission set for an identity. Refresh
// needs the user record alongside the set, so both forms are required.
type Composer interface {
	Compose(ctx context.Context, userID string) (authz.Permissions, error)
	ComposeGrants(ctx context.Context, userID string) (*authz.User, authz.Permissions, error)
}

// Manager builds and refreshes session claims from composed permissions.
// It owns every mutation of a Claims value; callers treat what it returns
// as read-only.
type Manager struct {
	composer Composer
	codec    *TokenCodec
}

// NewManager constructs a Manager.
func NewManager(composer Composer, codec *TokenCodec) *Manager {
	return &Manager{composer: composer, codec: codec}
}

// BuildClaims derives fresh claims for a user at authentication time. An
// inactive user can never become the subject of a session.
func (m *Manager) BuildClaims(ctx context.Context, user *authz.User) (Claims, error) {
	if user == nil {
		return Claims{}, fmt.Errorf("build claims: nil user: %w", authz.ErrInvalidState)
	}
	if !user.IsActive {
		return Claims{}, fmt.Errorf("build claims for inactive user %s: %w", user.ID, authz.ErrUnauthorized)
	}
	perms, err := m.composer.Compose(ctx, user.ID)
	if err != nil {
		return Claims{}, err
	}
	return Claims{
		SubjectID:   user.ID,
		Name:        user.Name,
		Email:       user.Email,
		ProfileID:   user.ProfileID,
		Permissions: perms,
		IsActive:    user.IsActive,
		IssuedAt:    time.Now().UTC(),
	}, nil
}

// RefreshClaims rebuilds the currently active identity from its fresh user
// record and composed permissions, without discarding an in-progress
// impersonation marker. Grant edits, profile reassignment, and deactivation
// all take effect here; a deactivated user yields inactive claims whose
// authorization checks refuse everything.
func (m *Manager) RefreshClaims(ctx context.Context, claims Claims) (Claims, error) {
	if err := claims.Validate(); err != nil {
		return Claims{}, err
	}
	user, perms, err := m.composer.ComposeGrants(ctx, claims.ActiveIdentity().SubjectID)
	if err != nil {
		return Claims{}, err
	}
	active := Identity{
		SubjectID:   user.ID,
		Name:        user.Name,
		Email:       user.Email,
		ProfileID:   user.ProfileID,
		Permissions: perms,
		IsActive:    user.IsActive,
	}

	rec := claims.Impersonation
	if rec != nil {
		// Keep the original snapshot verbatim; only the impersonated
		// identity's permissions are re-derived.
		updated := *rec
		updated.Impersonated = active
		rec = &updated
	}
	return claimsFromIdentity(active, rec, time.Now().UTC()), nil
}

// ReadClaims verifies and projects the claims carried by a signed token.
// The token signature is checked first (transport concern); structural
// corruption of the claims themselves yields authz.ErrMalformedClaims.
func (m *Manager) ReadClaims(token string) (string, Claims, error) {
	sessionID, claims, err := m.codec.Decode(token)
	if err != nil {
		return "", Claims{}, err
	}
	if err := claims.Validate(); err != nil {
		return "", Claims{}, err
	}
	return sessionID, claims, nil
}

// IssueToken signs claims into a transportable token bound to a session.
func (m *Manager) IssueToken(sessionID string, claims Claims) (string, error) {
	return m.codec.Encode(sessionID, claims)
}
