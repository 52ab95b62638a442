package books

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/librarium/librarium/internal/platform/httpx"
	"github.com/librarium/librarium/internal/rbac"
	"github.com/librarium/librarium/internal/respcache"
	"github.com/librarium/librarium/internal/shared"
)

const cachePrefix = "/books"

// Guard produces authorization stages for a requirement.
type Guard interface {
	Require(req rbac.Requirement) func(http.Handler) http.Handler
}

// Handler exposes the catalogue over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    Guard
	cache    *respcache.Cache
	cacheTTL time.Duration
}

// NewHandler builds a Handler. Reads are cached for cacheTTL.
func NewHandler(logger *slog.Logger, service *Service, guard Guard, cache *respcache.Cache, cacheTTL time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, cache: cache, cacheTTL: cacheTTL}
}

// MountRoutes registers book routes. Mutations invalidate cached reads once they succeed.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.RequireOptional()), h.cache.Create(h.cacheTTL))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.With(h.guard.Require(rbac.RequirePermission(shared.PermCreateBooks)), h.cache.Invalidate(cachePrefix)).
		Post("/", h.create)
	r.With(h.guard.Require(rbac.RequirePermission(shared.PermUpdateBooks)), h.cache.Invalidate(cachePrefix)).
		Put("/{id}", h.update)
	r.With(h.guard.Require(rbac.RequireAdmin().WithPermission(shared.PermDeleteBooks)), h.cache.Invalidate(cachePrefix)).
		Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, perPage := shared.PageParams(q)
	result, err := h.service.List(r.Context(), ListFilters{Search: q.Get("q"), Page: page, PerPage: perPage})
	if err != nil {
		h.fail(w, r, "list books", err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "books", result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	book, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get book", err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "book", book)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, r, http.StatusBadRequest, "malformed request body")
		return
	}
	var createdBy *int64
	if user := shared.SessionUserFromContext(r.Context()); user != nil {
		createdBy = &user.PrincipalID
	}
	book, err := h.service.Create(r.Context(), in, createdBy)
	if err != nil {
		h.fail(w, r, "create book", err)
		return
	}
	httpx.Respond(w, r, http.StatusCreated, "book created", book)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, r, http.StatusBadRequest, "malformed request body")
		return
	}
	book, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, "update book", err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "book updated", book)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, "delete book", err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "book deleted", nil)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, r, err)
}

func bookID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(w, r, http.StatusBadRequest, "invalid book id")
		return 0, false
	}
	return id, true
}
