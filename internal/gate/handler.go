package gate

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/nimbus-hr/nimbus/internal/nav"
	"github.com/nimbus-hr/nimbus/internal/observability"
	"github.com/nimbus-hr/nimbus/internal/platform/httpx"
)

// Handler wires the authentication, navigation, and impersonation
// endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	mw        Middleware
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, mw Middleware, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		mw:        mw,
		metrics:   metrics,
		validator: validator.New(),
	}
}

// MountRoutes registers the gate routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/auth/login", h.handleLogin)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Authenticator)
		r.Post("/auth/logout", h.handleLogout)
		r.Post("/auth/refresh", h.handleRefresh)
		r.Get("/auth/session", h.handleSession)
		r.Get("/navigation", h.handleNavigation)
		r.Post("/impersonation", h.handleStartImpersonation)
		r.Delete("/impersonation", h.handleEndImpersonation)
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type sessionResponse struct {
	Token         string   `json:"token"`
	SubjectID     string   `json:"subject_id"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	ProfileID     string   `json:"profile_id"`
	Permissions   []string `json:"permissions"`
	Impersonating bool     `json:"impersonating"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess, err := h.service.Authenticate(r.Context(), req.Email, req.Password, LoginMeta{
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
			return
		}
		h.logger.Error("authenticate", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSessionResponse(sess))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sessionID := SessionIDFromContext(r.Context())
	if err := h.service.Logout(r.Context(), sessionID); err != nil {
		h.logger.Error("logout", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sessionID := SessionIDFromContext(r.Context())
	sess, err := h.service.Refresh(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("refresh claims", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSessionResponse(sess))
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no session")
		return
	}
	httpx.JSON(w, http.StatusOK, toSessionResponse(Session{Claims: claims}))
}

func (h *Handler) handleNavigation(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no session")
		return
	}
	surface := r.URL.Query().Get("surface")
	if surface == "" {
		surface = nav.SurfaceMain
	}
	entries := h.service.Navigation(claims, surface)
	httpx.JSON(w, http.StatusOK, map[string]any{"surface": surface, "entries": entries})
}

type impersonationRequest struct {
	TargetUserID string `json:"target_user_id" validate:"required"`
}

func (h *Handler) handleStartImpersonation(w http.ResponseWriter, r *http.Request) {
	var req impersonationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sessionID := SessionIDFromContext(r.Context())
	sess, err := h.service.StartImpersonation(r.Context(), sessionID, req.TargetUserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.metrics.ImpersonationStarted()
	httpx.JSON(w, http.StatusOK, toSessionResponse(sess))
}

func (h *Handler) handleEndImpersonation(w http.ResponseWriter, r *http.Request) {
	sessionID := SessionIDFromContext(r.Context())
	sess, err := h.service.EndImpersonation(r.Context(), sessionID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.metrics.ImpersonationEnded()
	httpx.JSON(w, http.StatusOK, toSessionResponse(sess))
}

func toSessionResponse(sess Session) sessionResponse {
	return sessionResponse{
		Token:         sess.Token,
		SubjectID:     sess.Claims.SubjectID,
		Name:          sess.Claims.Name,
		Email:         sess.Claims.Email,
		ProfileID:     sess.Claims.ProfileID,
		Permissions:   sess.Claims.Permissions.Names(),
		Impersonating: sess.Claims.Impersonating(),
	}
}
