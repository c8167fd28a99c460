package authz

import "errors"

var (
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("authz: not found")
	// ErrInvalidState indicates a data integrity violation, such as a user
	// without a profile. Never patched silently: composition fails closed.
	ErrInvalidState = errors.New("authz: invalid state")
	// ErrTargetUnavailable indicates an impersonation target that is
	// missing or inactive.
	ErrTargetUnavailable = errors.New("authz: target unavailable")
	// ErrUnauthorized indicates the acting identity lacks the authority
	// required for an operation.
	ErrUnauthorized = errors.New("authz: unauthorized")
	// ErrAlreadyImpersonating rejects nested impersonation.
	ErrAlreadyImpersonating = errors.New("authz: already impersonating")
	// ErrNotImpersonating rejects ending an impersonation that was never
	// started.
	ErrNotImpersonating = errors.New("authz: not impersonating")
	// ErrMalformedClaims indicates structurally corrupt session claims.
	ErrMalformedClaims = errors.New("authz: malformed claims")
)
