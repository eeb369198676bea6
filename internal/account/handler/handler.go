package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"accounting/internal/account/models"
	"accounting/internal/transport/http/links"
	"accounting/pkg/collection"
	"accounting/pkg/domain"
	dErrors "accounting/pkg/domain-errors"
	"accounting/pkg/platform/httputil"
	"accounting/pkg/requestcontext"
)

// Service defines the chart-of-accounts operations the handler exposes.
type Service interface {
	ListAccounts(ctx context.Context, prefix *domain.CategoryKey, w collection.Window) (*collection.Page[*models.Account], error)
	GetAccount(ctx context.Context, id domain.AccountID) (*models.Account, error)
	CreateAccount(ctx context.Context, category domain.CategoryKey, name string) (*models.Account, error)
	UpdateAccount(ctx context.Context, id domain.AccountID, category domain.CategoryKey, name string) (*models.Account, error)
	DeleteAccount(ctx context.Context, id domain.AccountID) error
}

// Handler serves the chart of accounts.
type Handler struct {
	service Service
	logger  *slog.Logger
	links   links.Config
}

func New(service Service, logger *slog.Logger, cfg links.Config) *Handler {
	return &Handler{service: service, logger: logger, links: cfg}
}

// Register mounts the account routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/chart_of_accounts", h.HandleList)
	r.Post("/chart_of_accounts", h.HandleCreate)
	r.Put("/chart_of_accounts", h.HandleUpdate)
	r.Get("/chart_of_accounts/id/{id}", h.HandleGet)
	r.Delete("/chart_of_accounts/id/{id}", h.HandleDelete)
}

// HandleList handles GET /chart_of_accounts. The optional category
// parameter restricts the listing to a category subtree.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	window, err := collection.ParseWindow(q, h.links.Limits)
	if err != nil {
		h.fail(ctx, w, "invalid page request", err)
		return
	}

	var prefix *domain.CategoryKey
	if q.Has("category") {
		key, err := domain.ParseCategoryKey(q.Get("category"))
		if err != nil {
			h.fail(ctx, w, "invalid category filter", dErrors.New(dErrors.CodeValidation, "category: "+dErrors.MessageOf(err)))
			return
		}
		prefix = &key
	}

	page, err := h.service.ListAccounts(ctx, prefix, window)
	if err != nil {
		h.fail(ctx, w, "failed to list accounts", err)
		return
	}

	b := h.links.For(r)
	items := make([]AccountResponse, 0, len(page.Items))
	for _, a := range page.Items {
		items = append(items, toResponse(b, a))
	}
	opts := []collection.Option{collection.WithBase(b.Base())}
	if prefix != nil {
		opts = append(opts, collection.WithQuery(url.Values{"category": {prefix.String()}}))
	}
	env := collection.Assemble(window.Start, window.Size, links.AccountsPath, page.Total, items, opts...)
	httputil.WriteJSON(w, http.StatusOK, env)
}

// HandleGet handles GET /chart_of_accounts/id/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := links.AccountFromPath(r)
	if err != nil {
		h.fail(ctx, w, "invalid account id", err)
		return
	}

	a, err := h.service.GetAccount(ctx, id)
	if err != nil {
		h.fail(ctx, w, "failed to get account", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(h.links.For(r), a))
}

// HandleCreate handles POST /chart_of_accounts. Any href in the body is
// ignored; the store assigns the ID.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateAccountRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	a, err := h.service.CreateAccount(ctx, req.CategoryKey(), req.Name)
	if err != nil {
		h.fail(ctx, w, "failed to create account", err)
		return
	}
	resp := toResponse(h.links.For(r), a)
	w.Header().Set("Location", resp.Href)
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// HandleUpdate handles PUT /chart_of_accounts. The body href names the
// account to replace.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[UpdateAccountRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	a, err := h.service.UpdateAccount(ctx, req.ID(), req.CategoryKey(), req.Name)
	if err != nil {
		h.fail(ctx, w, "failed to update account", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(h.links.For(r), a))
}

// HandleDelete handles DELETE /chart_of_accounts/id/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := links.AccountFromPath(r)
	if err != nil {
		h.fail(ctx, w, "invalid account id", err)
		return
	}
	if err := h.service.DeleteAccount(ctx, id); err != nil {
		h.fail(ctx, w, "failed to delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
