package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/librarium/librarium/internal/platform/httpx"
	"github.com/librarium/librarium/internal/respcache"
	"github.com/librarium/librarium/internal/shared"
)

// Cache prefixes invalidated by administrative writes.
const (
	permissionsPrefix = "/permissions"
	rolesPrefix       = "/roles"
)

// Handler exposes permission, role and role assignment administration.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      Middleware
	cache     *respcache.Cache
	cacheTTL  time.Duration
	validator *validator.Validate
}

// NewHandler builds a Handler. Listings are cached for cacheTTL.
func NewHandler(logger *slog.Logger, service *Service, rbac Middleware, cache *respcache.Cache, cacheTTL time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, cache: cache, cacheTTL: cacheTTL, validator: validator.New()}
}

// MountPermissionRoutes registers /permissions routes.
func (h *Handler) MountPermissionRoutes(r chi.Router) {
	r.Use(h.rbac.Require(RequireAdmin()))
	r.With(h.cache.Create(h.cacheTTL)).Get("/", h.listPermissions)
	r.With(h.cache.Invalidate(permissionsPrefix)).Post("/", h.createPermission)
	// Role listings show resolved names, so they go stale too.
	r.With(h.cache.Invalidate(permissionsPrefix), h.cache.Invalidate(rolesPrefix)).Delete("/{id}", h.deletePermission)
}

// MountRoleRoutes registers /roles routes.
func (h *Handler) MountRoleRoutes(r chi.Router) {
	r.Use(h.rbac.Require(RequireAdmin()))
	r.Group(func(r chi.Router) {
		r.Use(h.cache.Create(h.cacheTTL))
		r.Get("/", h.listRoles)
		r.Get("/{id}", h.getRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.cache.Invalidate(rolesPrefix))
		r.Post("/", h.createRole)
		r.Post("/default", h.bootstrapRoles)
		r.Put("/{id}", h.updateRole)
		r.Delete("/{id}", h.deleteRole)
	})
}

// MountPrincipalRoutes registers /principals routes.
func (h *Handler) MountPrincipalRoutes(r chi.Router) {
	r.Use(h.rbac.Require(RequireAdmin()))
	r.Put("/{id}/role", h.assignRole)
}

type permissionRequest struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=255"`
}

type roleRequest struct {
	Name        string   `json:"name" validate:"required,max=64"`
	Description string   `json:"description" validate:"max=255"`
	Permissions []string `json:"permissions" validate:"dive,required,max=64"`
}

type assignRoleRequest struct {
	RoleID *int64 `json:"roleId" validate:"omitempty,gt=0"`
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.fail(w, r, "list permissions", err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "permissions", perms)
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), actorID(r), req.Name, req.Description)
	if err != nil {
		h.fail(w, r, "create permission", err)
		return
	}
	httpx.Respond(w, r, http.StatusCreated, "permission created", perm)
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeletePermission(r.Context(), actorID(r), id); err != nil {
		h.fail(w, r, "delete permission", err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "permission deleted", nil)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, r, "list roles", err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "roles", roles)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get role", err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "role", role)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.CreateRole(r.Context(), actorID(r), req.Name, req.Description, req.Permissions)
	if err != nil {
		h.fail(w, r, "create role", err)
		return
	}
	httpx.Respond(w, r, http.StatusCreated, "role created", role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.UpdateRole(r.Context(), actorID(r), id, req.Name, req.Description, req.Permissions)
	if err != nil {
		h.fail(w, r, "update role", err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "role updated", role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), actorID(r), id); err != nil {
		h.fail(w, r, "delete role", err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "role deleted", nil)
}

func (h *Handler) bootstrapRoles(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.BootstrapDefaultRoles(r.Context(), actorID(r))
	if err != nil {
		h.fail(w, r, "bootstrap roles", err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "default roles created", role)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req assignRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.AssignRole(r.Context(), actorID(r), id, req.RoleID); err != nil {
		h.fail(w, r, "assign role", err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "role assigned", nil)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Fail(w, r, http.StatusBadRequest, "malformed request body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		message := "validation failed"
		if errors.As(err, &verrs) && len(verrs) > 0 {
			message = verrs[0].Field() + " failed " + verrs[0].Tag() + " validation"
		}
		httpx.Fail(w, r, http.StatusBadRequest, message)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, r, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(w, r, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func actorID(r *http.Request) int64 {
	if user := shared.SessionUserFromContext(r.Context()); user != nil {
		return user.PrincipalID
	}
	return 0
}
