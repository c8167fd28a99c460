// Package session owns the signed session's claims: building them at
// authentication, refreshing them mid-session, and projecting a read-only
// view to callers. Claims are mutated only through this package's APIs.
package session

import (
	"fmt"
	"time"

	"github.com/nimbus-hr/nimbus/internal/authz"
)

// Identity is a self-contained snapshot of one identity's authorization
// state. Impersonation embeds two of these so ending an impersonation
// restores the original without another repository round-trip.
type Identity struct {
	SubjectID   string            `json:"subject_id"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	ProfileID   string            `json:"profile_id"`
	Permissions authz.Permissions `json:"permissions"`
	IsActive    bool              `json:"is_active"`
}

// ImpersonationRecord marks an in-progress impersonation. Original is the
// verbatim snapshot taken at start; it is never re-snapshotted while the
// impersonation is active.
type ImpersonationRecord struct {
	Original     Identity  `json:"original"`
	Impersonated Identity  `json:"impersonated"`
	StartedAt    time.Time `json:"started_at"`
}

// Claims is the session's authorization state. The top-level fields always
// describe the currently ACTIVE identity: the impersonated one while an
// impersonation is in progress, the original otherwise. Authorization
// checks consult Permissions directly and never branch on Impersonation.
type Claims struct {
	SubjectID     string               `json:"subject_id"`
	Name          string               `json:"name"`
	Email         string               `json:"email"`
	ProfileID     string               `json:"profile_id"`
	Permissions   authz.Permissions    `json:"permissions"`
	IsActive      bool                 `json:"is_active"`
	Impersonation *ImpersonationRecord `json:"impersonation,omitempty"`
	IssuedAt      time.Time            `json:"issued_at"`
}

// Impersonating reports whether an impersonation is in progress.
func (c Claims) Impersonating() bool {
	return c.Impersonation != nil
}

// ActiveIdentity returns the identity authorization decisions apply to.
func (c Claims) ActiveIdentity() Identity {
	return Identity{
		SubjectID:   c.SubjectID,
		Name:        c.Name,
		Email:       c.Email,
		ProfileID:   c.ProfileID,
		Permissions: c.Permissions,
		IsActive:    c.IsActive,
	}
}

// OriginalIdentity returns the identity that signed in: the stored snapshot
// while impersonating, the active identity otherwise.
func (c Claims) OriginalIdentity() Identity {
	if c.Impersonation != nil {
		return c.Impersonation.Original
	}
	return c.ActiveIdentity()
}

// HasPermission reports whether the active identity holds the permission.
// An inactive subject never holds anything.
func (c Claims) HasPermission(name string) bool {
	if !c.IsActive {
		return false
	}
	return c.Permissions.Has(name)
}

// Validate checks structural integrity. It does not verify signatures or
// expiry; those belong to the transport layer. A violation yields
// authz.ErrMalformedClaims.
func (c Claims) Validate() error {
	if c.SubjectID == "" {
		return fmt.Errorf("missing subject id: %w", authz.ErrMalformedClaims)
	}
	if c.ProfileID == "" {
		return fmt.Errorf("missing profile id: %w", authz.ErrMalformedClaims)
	}
	if c.Permissions == nil {
		return fmt.Errorf("missing permissions: %w", authz.ErrMalformedClaims)
	}
	if rec := c.Impersonation; rec != nil {
		if rec.Original.SubjectID == "" || rec.Original.ProfileID == "" {
			return fmt.Errorf("impersonation record missing original identity: %w", authz.ErrMalformedClaims)
		}
		if rec.Impersonated.SubjectID == "" {
			return fmt.Errorf("impersonation record missing impersonated identity: %w", authz.ErrMalformedClaims)
		}
		// The active fields must mirror the impersonated identity; claims
		// with the marker set but the original identity's permissions are
		// internally inconsistent.
		if c.SubjectID != rec.Impersonated.SubjectID {
			return fmt.Errorf("impersonation subject mismatch: %w", authz.ErrMalformedClaims)
		}
		if !c.Permissions.Equal(rec.Impersonated.Permissions) {
			return fmt.Errorf("impersonation permissions mismatch: %w", authz.ErrMalformedClaims)
		}
	}
	return nil
}

// claimsFromIdentity rebuilds top-level claim fields from a snapshot.
func claimsFromIdentity(id Identity, rec *ImpersonationRecord, issuedAt time.Time) Claims {
	return Claims{
		SubjectID:     id.SubjectID,
		Name:          id.Name,
		Email:         id.Email,
		ProfileID:     id.ProfileID,
		Permissions:   id.Permissions,
		IsActive:      id.IsActive,
		Impersonation: rec,
		IssuedAt:      issuedAt,
	}
}
