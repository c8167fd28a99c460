package gate

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-hr/nimbus/internal/observability"
)

func newHandlerFixture(t *testing.T) (*chi.Mux, *gateFixture) {
	t.Helper()
	f := newGateFixture(t)
	metrics := observability.NewMetrics()
	mw := Middleware{Service: f.service, Logger: slog.Default(), Metrics: metrics}
	handler := NewHandler(slog.Default(), f.service, mw, metrics)

	router := chi.NewRouter()
	handler.MountRoutes(router)
	return router, f
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func login(t *testing.T, router http.Handler, email string) sessionResponse {
	t.Helper()
	res := doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": "correcthorse",
	})
	require.Equal(t, http.StatusOK, res.Code)
	var out sessionResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	return out
}

func TestLoginEndpoint(t *testing.T) {
	router, _ := newHandlerFixture(t)

	out := login(t, router, "ada@nimbus.local")
	require.Equal(t, "admin", out.SubjectID)
	require.Contains(t, out.Permissions, "dashboard.view")
	require.False(t, out.Impersonating)
}

func TestLoginRejectsBadPayload(t *testing.T) {
	router, _ := newHandlerFixture(t)

	res := doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "not-an-email", "password": "short",
	})
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router, _ := newHandlerFixture(t)

	res := doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "ada@nimbus.local", "password": "wrongpassword",
	})
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestSessionEndpoint(t *testing.T) {
	router, _ := newHandlerFixture(t)
	sess := login(t, router, "ada@nimbus.local")

	res := doJSON(t, router, http.MethodGet, "/auth/session", sess.Token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var out sessionResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	require.Equal(t, "admin", out.SubjectID)
}

func TestNavigationEndpoint(t *testing.T) {
	router, _ := newHandlerFixture(t)
	sess := login(t, router, "ada@nimbus.local")

	res := doJSON(t, router, http.MethodGet, "/navigation?surface=admin", sess.Token, nil)
	require.Equal(t, http.StatusOK, res.Code)

	var out struct {
		Surface string `json:"surface"`
		Entries []struct {
			Key string `json:"key"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	require.Equal(t, "admin", out.Surface)
	require.Len(t, out.Entries, 1)
	require.Equal(t, "admin.users", out.Entries[0].Key)
}

func TestImpersonationEndpoints(t *testing.T) {
	router, _ := newHandlerFixture(t)
	sess := login(t, router, "ada@nimbus.local")

	started := doJSON(t, router, http.MethodPost, "/impersonation", sess.Token, map[string]string{
		"target_user_id": "bob",
	})
	require.Equal(t, http.StatusOK, started.Code)
	var impersonated sessionResponse
	require.NoError(t, json.Unmarshal(started.Body.Bytes(), &impersonated))
	require.Equal(t, "bob", impersonated.SubjectID)
	require.True(t, impersonated.Impersonating)

	// Starting again conflicts.
	again := doJSON(t, router, http.MethodPost, "/impersonation", impersonated.Token, map[string]string{
		"target_user_id": "bob",
	})
	require.Equal(t, http.StatusConflict, again.Code)

	ended := doJSON(t, router, http.MethodDelete, "/impersonation", impersonated.Token, nil)
	require.Equal(t, http.StatusOK, ended.Code)
	var restored sessionResponse
	require.NoError(t, json.Unmarshal(ended.Body.Bytes(), &restored))
	require.Equal(t, "admin", restored.SubjectID)
	require.False(t, restored.Impersonating)
}

func TestImpersonationForbiddenWithoutAuthority(t *testing.T) {
	router, _ := newHandlerFixture(t)
	sess := login(t, router, "bob@nimbus.local")

	res := doJSON(t, router, http.MethodPost, "/impersonation", sess.Token, map[string]string{
		"target_user_id": "admin",
	})
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestEndImpersonationConflictWhenNotImpersonating(t *testing.T) {
	router, _ := newHandlerFixture(t)
	sess := login(t, router, "ada@nimbus.local")

	res := doJSON(t, router, http.MethodDelete, "/impersonation", sess.Token, nil)
	require.Equal(t, http.StatusConflict, res.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	router, _ := newHandlerFixture(t)
	sess := login(t, router, "ada@nimbus.local")

	res := doJSON(t, router, http.MethodPost, "/auth/logout", sess.Token, nil)
	require.Equal(t, http.StatusNoContent, res.Code)

	after := doJSON(t, router, http.MethodGet, "/auth/session", sess.Token, nil)
	require.Equal(t, http.StatusUnauthorized, after.Code)
}

func TestRefreshEndpointPicksUpGrantChanges(t *testing.T) {
	router, f := newHandlerFixture(t)
	sess := login(t, router, "ada@nimbus.local")

	f.repo.profiles[adminProfileID] = append(f.repo.profiles[adminProfileID], "reports.view")

	res := doJSON(t, router, http.MethodPost, "/auth/refresh", sess.Token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var out sessionResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	require.Contains(t, out.Permissions, "reports.view")
}
