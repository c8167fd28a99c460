package authz

import (
	"context"
	"fmt"
)

// Composer derives the effective permission set for an identity from its
// profile and every permission set assigned to it. Composition is a pure
// read plus union; it never writes and never degrades a failure into an
// empty set.
type Composer struct {
	repo Repository
}

// NewComposer constructs a Composer backed by the given repository.
func NewComposer(repo Repository) *Composer {
	return &Composer{repo: repo}
}

// Compose returns the deduplicated union of the user's profile permissions
// and the permissions of every assigned permission set.
//
// A missing user yields ErrNotFound. A user without a profile is an
// integrity violation and yields ErrInvalidState rather than an empty set.
func (c *Composer) Compose(ctx context.Context, userID string) (Permissions, error) {
	grants, err := c.repo.FindUserWithGrants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("compose permissions for %s: %w", userID, err)
	}
	if grants.User.ProfileID == "" {
		return nil, fmt.Errorf("user %s has no profile: %w", userID, ErrInvalidState)
	}
	perms := NewPermissions(grants.ProfilePermissions...)
	perms.Add(grants.SetPermissions...)
	return perms, nil
}

// ComposeGrants is Compose plus the user record it was derived from, for
// callers that need both without a second read.
func (c *Composer) ComposeGrants(ctx context.Context, userID string) (*User, Permissions, error) {
	grants, err := c.repo.FindUserWithGrants(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("compose permissions for %s: %w", userID, err)
	}
	if grants.User.ProfileID == "" {
		return nil, nil, fmt.Errorf("user %s has no profile: %w", userID, ErrInvalidState)
	}
	perms := NewPermissions(grants.ProfilePermissions...)
	perms.Add(grants.SetPermissions...)
	user := grants.User
	return &user, perms, nil
}
