// Package impersonate implements temporary identity substitution for
// administrative troubleshooting. A session is either Normal or
// Impersonating; transitions are explicit and never nest.
package impersonate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nimbus-hr/nimbus/internal/audit"
	"github.com/nimbus-hr/nimbus/internal/authz"
	"github.com/nimbus-hr/nimbus/internal/session"
)

// Coordinator validates and performs impersonation transitions. It does not
// persist sessions itself; it returns the complete new claim set the caller
// commits, so a failed transition leaves the prior claims untouched.
type Coordinator struct {
	repo           authz.Repository
	composer       *authz.Composer
	adminProfileID string
	recorder       audit.Recorder
	logger         *slog.Logger
}

// NewCoordinator constructs a Coordinator. adminProfileID is the reserved
// profile whose holders may impersonate; impersonation authority is a
// profile-level capability, not a permission string.
func NewCoordinator(repo authz.Repository, composer *authz.Composer, adminProfileID string, recorder audit.Recorder, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		repo:           repo,
		composer:       composer,
		adminProfileID: adminProfileID,
		recorder:       recorder,
		logger:         logger,
	}
}

// Start substitutes the target identity into the acting session's claims.
// The returned claims carry a verbatim snapshot of the original identity so
// End can restore it without a repository round-trip.
func (c *Coordinator) Start(ctx context.Context, acting session.Claims, targetUserID string) (session.Claims, error) {
	if acting.Impersonating() {
		// Re-snapshotting here would lose the true original identity.
		return session.Claims{}, authz.ErrAlreadyImpersonating
	}
	if acting.ProfileID != c.adminProfileID {
		return session.Claims{}, fmt.Errorf("profile %s may not impersonate: %w", acting.ProfileID, authz.ErrUnauthorized)
	}

	target, err := c.repo.FindUserByID(ctx, targetUserID)
	if err != nil {
		if errors.Is(err, authz.ErrNotFound) {
			return session.Claims{}, fmt.Errorf("target %s: %w", targetUserID, authz.ErrTargetUnavailable)
		}
		return session.Claims{}, err
	}
	if !target.IsActive {
		return session.Claims{}, fmt.Errorf("target %s is inactive: %w", targetUserID, authz.ErrTargetUnavailable)
	}

	targetPerms, err := c.composer.Compose(ctx, target.ID)
	if err != nil {
		return session.Claims{}, err
	}

	now := time.Now().UTC()
	impersonated := session.Identity{
		SubjectID:   target.ID,
		Name:        target.Name,
		Email:       target.Email,
		ProfileID:   target.ProfileID,
		Permissions: targetPerms,
		IsActive:    target.IsActive,
	}
	next := session.Claims{
		SubjectID:   impersonated.SubjectID,
		Name:        impersonated.Name,
		Email:       impersonated.Email,
		ProfileID:   impersonated.ProfileID,
		Permissions: impersonated.Permissions,
		IsActive:    impersonated.IsActive,
		Impersonation: &session.ImpersonationRecord{
			Original:     acting.ActiveIdentity(),
			Impersonated: impersonated,
			StartedAt:    now,
		},
		IssuedAt: now,
	}

	c.record(ctx, audit.Event{
		ActorID:  acting.SubjectID,
		Action:   audit.ActionImpersonationStart,
		Entity:   "user",
		EntityID: target.ID,
		Meta:     map[string]any{"target_email": target.Email},
		At:       now,
	})
	return next, nil
}

// End restores the original identity from the stored snapshot and clears
// the impersonation marker. Calling it on a session that is not
// impersonating is an error, not a no-op.
func (c *Coordinator) End(ctx context.Context, acting session.Claims) (session.Claims, error) {
	rec := acting.Impersonation
	if rec == nil {
		return session.Claims{}, authz.ErrNotImpersonating
	}

	now := time.Now().UTC()
	restored := session.Claims{
		SubjectID:   rec.Original.SubjectID,
		Name:        rec.Original.Name,
		Email:       rec.Original.Email,
		ProfileID:   rec.Original.ProfileID,
		Permissions: rec.Original.Permissions,
		IsActive:    rec.Original.IsActive,
		IssuedAt:    now,
	}

	c.record(ctx, audit.Event{
		ActorID:  rec.Original.SubjectID,
		Action:   audit.ActionImpersonationEnd,
		Entity:   "user",
		EntityID: rec.Impersonated.SubjectID,
		At:       now,
	})
	return restored, nil
}

func (c *Coordinator) record(ctx context.Context, event audit.Event) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, event); err != nil && c.logger != nil {
		c.logger.Warn("audit impersonation", slog.Any("error", err))
	}
}
