package directory

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nimbus-hr/nimbus/internal/gate"
	"github.com/nimbus-hr/nimbus/internal/platform/httpx"
)

// Handler wires the admin endpoints for directory entities.
type Handler struct {
	logger  *slog.Logger
	service *Service
	mw      gate.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, mw gate.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw}
}

// MountRoutes registers directory routes. Every route requires an
// authenticated session plus the matching admin permission.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.mw.Authenticator)

	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequirePermission("admin.permissions.view"))
		r.Get("/permissions", h.listPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequirePermission("admin.permissions.edit"))
		r.Post("/permissions", h.createPermission)
		r.Put("/permissions/{id}", h.updatePermission)
		r.Delete("/permissions/{id}", h.deletePermission)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequirePermission("admin.profiles.view"))
		r.Get("/profiles", h.listProfiles)
		r.Get("/profiles/{id}", h.getProfile)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequirePermission("admin.profiles.edit"))
		r.Post("/profiles", h.createProfile)
		r.Delete("/profiles/{id}", h.deleteProfile)
		r.Put("/profiles/{id}/permissions", h.setProfilePermissions)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequirePermission("admin.permission-sets.view"))
		r.Get("/permission-sets", h.listPermissionSets)
		r.Get("/permission-sets/{id}", h.getPermissionSet)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequirePermission("admin.permission-sets.edit"))
		r.Post("/permission-sets", h.createPermissionSet)
		r.Delete("/permission-sets/{id}", h.deletePermissionSet)
		r.Put("/permission-sets/{id}/permissions", h.setPermissionSetPermissions)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequirePermission("admin.users.view"))
		r.Get("/users", h.listUsers)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequirePermission("admin.users.edit"))
		r.Put("/users/{id}/profile", h.setUserProfile)
		r.Put("/users/{id}/active", h.setUserActive)
		r.Post("/users/{id}/permission-sets/{setID}", h.assignPermissionSet)
		r.Delete("/users/{id}/permission-sets/{setID}", h.removePermissionSet)
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProfileInUse):
		httpx.Problem(w, http.StatusConflict, "Profile In Use", err.Error())
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func actorID(r *http.Request) string {
	claims, _ := gate.ClaimsFromContext(r.Context())
	return claims.SubjectID
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req CreatePermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), actorID(r), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, perm)
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	var req UpdatePermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	perm, err := h.service.UpdatePermission(r.Context(), actorID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePermission(r.Context(), actorID(r), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.ListProfiles(r.Context())
	if err != nil {
		h.logger.Error("list profiles", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profiles)
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) createProfile(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	profile, err := h.service.CreateProfile(r.Context(), actorID(r), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, profile)
}

func (h *Handler) deleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteProfile(r.Context(), actorID(r), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type permissionIDsRequest struct {
	PermissionIDs []string `json:"permission_ids"`
}

func (h *Handler) setProfilePermissions(w http.ResponseWriter, r *http.Request) {
	var req permissionIDsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.SetProfilePermissions(r.Context(), actorID(r), chi.URLParam(r, "id"), req.PermissionIDs); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPermissionSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.service.ListPermissionSets(r.Context())
	if err != nil {
		h.logger.Error("list permission sets", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sets)
}

func (h *Handler) getPermissionSet(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.GetPermissionSet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) createPermissionSet(w http.ResponseWriter, r *http.Request) {
	var req CreatePermissionSetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	set, err := h.service.CreatePermissionSet(r.Context(), actorID(r), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, set)
}

func (h *Handler) deletePermissionSet(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePermissionSet(r.Context(), actorID(r), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setPermissionSetPermissions(w http.ResponseWriter, r *http.Request) {
	var req permissionIDsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.SetPermissionSetPermissions(r.Context(), actorID(r), chi.URLParam(r, "id"), req.PermissionIDs); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

type setUserProfileRequest struct {
	ProfileID string `json:"profile_id"`
}

func (h *Handler) setUserProfile(w http.ResponseWriter, r *http.Request) {
	var req setUserProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.ProfileID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "profile_id required")
		return
	}
	if err := h.service.SetUserProfile(r.Context(), actorID(r), chi.URLParam(r, "id"), req.ProfileID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setUserActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

func (h *Handler) setUserActive(w http.ResponseWriter, r *http.Request) {
	var req setUserActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.IsActive == nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "is_active required")
		return
	}
	if err := h.service.SetUserActive(r.Context(), actorID(r), chi.URLParam(r, "id"), *req.IsActive); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assignPermissionSet(w http.ResponseWriter, r *http.Request) {
	if err := h.service.AssignPermissionSet(r.Context(), actorID(r), chi.URLParam(r, "id"), chi.URLParam(r, "setID")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removePermissionSet(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemovePermissionSet(r.Context(), actorID(r), chi.URLParam(r, "id"), chi.URLParam(r, "setID")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
