package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/librarium/librarium/internal/platform/httpx"
	"github.com/librarium/librarium/internal/shared"
)

// PermissionLister resolves the effective permission names of a principal.
type PermissionLister interface {
	EffectivePermissionNames(ctx context.Context, principalID int64) ([]string, error)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	requireSession func(http.Handler) http.Handler
	permissions    PermissionLister
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance. requireSession guards /me.
func NewHandler(logger *slog.Logger, service *Service, requireSession func(http.Handler) http.Handler, permissions PermissionLister) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		requireSession: requireSession,
		permissions:    permissions,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.With(h.requireSession).Get("/me", h.handleMe)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, r, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}
	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Error("login", slog.Any("error", err))
		}
		httpx.RespondError(w, r, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "login successful", result)
}

type meResponse struct {
	*shared.SessionUser
	Permissions []string `json:"permissions"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user := shared.SessionUserFromContext(r.Context())
	if user == nil {
		httpx.RespondError(w, r, shared.ErrNoCredential)
		return
	}
	perms := []string{}
	if h.permissions != nil {
		names, err := h.permissions.EffectivePermissionNames(r.Context(), user.PrincipalID)
		if err != nil {
			h.logger.Error("load effective permissions", slog.Int64("principal", user.PrincipalID), slog.Any("error", err))
			httpx.RespondError(w, r, shared.ErrStoreUnavailable)
			return
		}
		perms = names
	}
	httpx.Respond(w, r, http.StatusOK, "session", meResponse{SessionUser: user, Permissions: perms})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field() + " failed " + verrs[0].Tag() + " validation"
	}
	return "validation failed"
}
