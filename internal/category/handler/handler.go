package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"accounting/internal/category/models"
	"accounting/internal/transport/http/links"
	"accounting/pkg/collection"
	"accounting/pkg/domain"
	"accounting/pkg/platform/httputil"
	"accounting/pkg/requestcontext"
)

// Service defines the category operations the handler exposes.
type Service interface {
	ListCategories(ctx context.Context, w collection.Window) (*collection.Page[*models.Category], error)
	ListDescendants(ctx context.Context, prefix domain.CategoryKey, w collection.Window) (*collection.Page[*models.Category], error)
	GetCategory(ctx context.Context, key domain.CategoryKey) (*models.Category, error)
	CreateCategory(ctx context.Context, key domain.CategoryKey, name string) (*models.Category, error)
	UpdateCategory(ctx context.Context, key domain.CategoryKey, name string) (*models.Category, error)
	DeleteCategory(ctx context.Context, key domain.CategoryKey) error
	RenameCategory(ctx context.Context, from, to domain.CategoryKey) (*models.RenameResult, error)
}

// Handler serves the category resources.
type Handler struct {
	service Service
	logger  *slog.Logger
	links   links.Config
}

func New(service Service, logger *slog.Logger, cfg links.Config) *Handler {
	return &Handler{service: service, logger: logger, links: cfg}
}

// Register mounts the category routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/categories", h.HandleList)
	r.Post("/categories", h.HandleCreate)
	r.Put("/categories", h.HandleUpdate)
	r.Get("/categories/id/{id}", h.HandleGet)
	r.Post("/categories/id/{id}", h.HandleRename)
	r.Delete("/categories/id/{id}", h.HandleDelete)
	r.Get("/categories/children/id/{id}", h.HandleListChildren)
}

// HandleList handles GET /categories.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	window, err := collection.ParseWindow(r.URL.Query(), h.links.Limits)
	if err != nil {
		h.fail(ctx, w, "invalid page request", err)
		return
	}

	page, err := h.service.ListCategories(ctx, window)
	if err != nil {
		h.fail(ctx, w, "failed to list categories", err)
		return
	}
	h.writeCollection(w, r, window, links.CategoriesPath, page)
}

// HandleListChildren handles GET /categories/children/id/{id}: the category
// and every category below it.
func (h *Handler) HandleListChildren(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, err := links.CategoryFromPath(r)
	if err != nil {
		h.fail(ctx, w, "invalid category key", err)
		return
	}
	window, err := collection.ParseWindow(r.URL.Query(), h.links.Limits)
	if err != nil {
		h.fail(ctx, w, "invalid page request", err)
		return
	}

	page, err := h.service.ListDescendants(ctx, key, window)
	if err != nil {
		h.fail(ctx, w, "failed to list category subtree", err)
		return
	}
	h.writeCollection(w, r, window, links.CategoryChildren(key), page)
}

// HandleGet handles GET /categories/id/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, err := links.CategoryFromPath(r)
	if err != nil {
		h.fail(ctx, w, "invalid category key", err)
		return
	}

	c, err := h.service.GetCategory(ctx, key)
	if err != nil {
		h.fail(ctx, w, "failed to get category", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(h.links.For(r), c))
}

// HandleCreate handles POST /categories. The key comes from the body href.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CategoryRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	c, err := h.service.CreateCategory(ctx, req.Key(), req.Name)
	if err != nil {
		h.fail(ctx, w, "failed to create category", err)
		return
	}
	resp := toResponse(h.links.For(r), c)
	w.Header().Set("Location", resp.Href)
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// HandleUpdate handles PUT /categories, renaming the display name of the
// category the body href addresses.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CategoryRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	c, err := h.service.UpdateCategory(ctx, req.Key(), req.Name)
	if err != nil {
		h.fail(ctx, w, "failed to update category", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(h.links.For(r), c))
}

// HandleRename handles POST /categories/id/{id}, moving the category and its
// accounts to the key in the body.
func (h *Handler) HandleRename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	from, err := links.CategoryFromPath(r)
	if err != nil {
		h.fail(ctx, w, "invalid category key", err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[RenameRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.RenameCategory(ctx, from, req.Key())
	if err != nil {
		h.fail(ctx, w, "failed to rename category", err)
		return
	}
	resp := toResponse(h.links.For(r), result.Category)
	w.Header().Set("Location", resp.Href)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleDelete handles DELETE /categories/id/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, err := links.CategoryFromPath(r)
	if err != nil {
		h.fail(ctx, w, "invalid category key", err)
		return
	}
	if err := h.service.DeleteCategory(ctx, key); err != nil {
		h.fail(ctx, w, "failed to delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeCollection(w http.ResponseWriter, r *http.Request, window collection.Window, domainPath string, page *collection.Page[*models.Category]) {
	b := h.links.For(r)
	items := make([]CategoryResponse, 0, len(page.Items))
	for _, c := range page.Items {
		items = append(items, toResponse(b, c))
	}
	env := collection.Assemble(window.Start, window.Size, domainPath, page.Total, items, collection.WithBase(b.Base()))
	httputil.WriteJSON(w, http.StatusOK, env)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	log := h.logger.ErrorContext
	if httputil.IsClientError(err) {
		log = h.logger.WarnContext
	}
	log(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
