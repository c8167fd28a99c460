package gate

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nimbus-hr/nimbus/internal/observability"
	"github.com/nimbus-hr/nimbus/internal/platform/httpx"
	"github.com/nimbus-hr/nimbus/internal/session"
)

type claimsContextKey struct{}

type sessionIDContextKey struct{}

// ContextWithClaims stores claims in the context.
func ContextWithClaims(ctx context.Context, claims session.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext extracts claims from the context.
func ClaimsFromContext(ctx context.Context) (session.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(session.Claims)
	return claims, ok
}

// ContextWithSessionID stores the session ID in the context.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey{}, id)
}

// SessionIDFromContext extracts the session ID from the context.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDContextKey{}).(string)
	return id
}

// Middleware wires authentication and authorization for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Authenticator resolves the bearer token into claims and rejects requests
// without a valid session.
func (m Middleware) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		sessionID, claims, err := m.Service.ResolveToken(r.Context(), token)
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid session")
			return
		}
		ctx := ContextWithClaims(r.Context(), claims)
		ctx = ContextWithSessionID(ctx, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission ensures the current claims grant the permission.
// Failures deny; there is no fallback to an empty grant set.
func (m Middleware) RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no session")
				return
			}
			allowed := m.Service.Authorize(claims, perm)
			m.Metrics.AuthzDecision(perm, allowed)
			if !allowed {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny ensures the claims grant at least one of the permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no session")
				return
			}
			for _, perm := range perms {
				if m.Service.Authorize(claims, perm) {
					m.Metrics.AuthzDecision(perm, true)
					next.ServeHTTP(w, r)
					return
				}
			}
			m.Metrics.AuthzDecision(strings.Join(perms, "|"), false)
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
