// Package gate is the surface the transport layer calls into: it
// authenticates credentials into session claims, answers authorization
// checks, resolves navigation, and drives impersonation transitions.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nimbus-hr/nimbus/internal/impersonate"
	"github.com/nimbus-hr/nimbus/internal/nav"
	"github.com/nimbus-hr/nimbus/internal/session"
)

// ErrInvalidCredentials indicates a failed login. Deliberately opaque:
// unknown email, wrong password, and deactivated account all look the same
// to the caller.
var ErrInvalidCredentials = errors.New("gate: invalid credentials")

// Session is an authenticated session: its server-side ID, the signed token
// handed to the client, and the claims both refer to.
type Session struct {
	ID     string
	Token  string
	Claims session.Claims
}

// LoginMeta carries request metadata recorded with the login session.
type LoginMeta struct {
	IP        string
	UserAgent string
}

// Service composes the authorization core behind one API.
type Service struct {
	accounts    AccountRepository
	manager     *session.Manager
	store       *session.Store
	resolver    *nav.Resolver
	coordinator *impersonate.Coordinator
	logger      *slog.Logger
}

// NewService constructs a Service.
func NewService(accounts AccountRepository, manager *session.Manager, store *session.Store, resolver *nav.Resolver, coordinator *impersonate.Coordinator, logger *slog.Logger) *Service {
	return &Service{
		accounts:    accounts,
		manager:     manager,
		store:       store,
		resolver:    resolver,
		coordinator: coordinator,
		logger:      logger,
	}
}

// Authenticate checks credentials, builds fresh claims, and opens a
// session. Inactive users fail exactly like bad credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string, meta LoginMeta) (Session, error) {
	acct, err := s.accounts.FindAccountByEmail(ctx, email)
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}
	if !acct.User.IsActive {
		return Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	claims, err := s.manager.BuildClaims(ctx, &acct.User)
	if err != nil {
		return Session{}, err
	}

	sessionID := uuid.NewString()
	if err := s.store.Save(ctx, sessionID, claims); err != nil {
		return Session{}, err
	}
	token, err := s.manager.IssueToken(sessionID, claims)
	if err != nil {
		return Session{}, err
	}

	expiresAt := time.Now().Add(s.store.TTL())
	if err := s.accounts.RegisterSession(ctx, sessionID, acct.User.ID, expiresAt, meta.IP, meta.UserAgent); err != nil && s.logger != nil {
		s.logger.Warn("register session", slog.Any("error", err))
	}
	return Session{ID: sessionID, Token: token, Claims: claims}, nil
}

// Authorize reports whether the claims grant the required permission. Pure
// membership check against the composed set of the active identity.
func (s *Service) Authorize(claims session.Claims, requiredPermission string) bool {
	return claims.HasPermission(requiredPermission)
}

// Navigation resolves the capability entries the claims may see on a
// surface, in catalog order. An inactive subject sees nothing, matching
// HasPermission.
func (s *Service) Navigation(claims session.Claims, surface string) []nav.Capability {
	if !claims.IsActive {
		return nil
	}
	return s.resolver.Resolve(claims.Permissions, surface)
}

// ResolveToken verifies a signed token and loads the authoritative claims
// for its session from the store. The stored copy wins over the token
// payload so revocation and mid-session refreshes take effect immediately.
func (s *Service) ResolveToken(ctx context.Context, token string) (string, session.Claims, error) {
	sessionID, _, err := s.manager.ReadClaims(token)
	if err != nil {
		return "", session.Claims{}, err
	}
	claims, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return "", session.Claims{}, err
	}
	return sessionID, claims, nil
}

// Refresh re-derives composed permissions for the session's active identity
// and commits the result.
func (s *Service) Refresh(ctx context.Context, sessionID string) (Session, error) {
	claims, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	refreshed, err := s.manager.RefreshClaims(ctx, claims)
	if err != nil {
		return Session{}, err
	}
	return s.commit(ctx, sessionID, refreshed)
}

// StartImpersonation substitutes the target identity into the session. The
// new claim set is committed as one write; on any error the stored claims
// are untouched.
func (s *Service) StartImpersonation(ctx context.Context, sessionID string, targetUserID string) (Session, error) {
	claims, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	next, err := s.coordinator.Start(ctx, claims, targetUserID)
	if err != nil {
		return Session{}, err
	}
	return s.commit(ctx, sessionID, next)
}

// EndImpersonation restores the original identity and commits it.
func (s *Service) EndImpersonation(ctx context.Context, sessionID string) (Session, error) {
	claims, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	restored, err := s.coordinator.End(ctx, claims)
	if err != nil {
		return Session{}, err
	}
	return s.commit(ctx, sessionID, restored)
}

// Logout closes the session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	if err := s.accounts.RemoveSession(ctx, sessionID); err != nil && s.logger != nil {
		s.logger.Warn("remove session record", slog.Any("error", err))
	}
	return nil
}

func (s *Service) commit(ctx context.Context, sessionID string, claims session.Claims) (Session, error) {
	if err := s.store.Save(ctx, sessionID, claims); err != nil {
		return Session{}, err
	}
	token, err := s.manager.IssueToken(sessionID, claims)
	if err != nil {
		return Session{}, err
	}
	return Session{ID: sessionID, Token: token, Claims: claims}, nil
}
