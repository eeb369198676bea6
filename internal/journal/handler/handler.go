package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"accounting/internal/journal/models"
	"accounting/internal/transport/http/links"
	"accounting/pkg/collection"
	"accounting/pkg/domain"
	"accounting/pkg/platform/httputil"
	"accounting/pkg/requestcontext"
)

// Service defines the journal operations the handler exposes.
type Service interface {
	ListJournals(ctx context.Context, w collection.Window) (*collection.Page[*models.Journal], error)
	GetJournal(ctx context.Context, id domain.JournalID) (*models.Journal, error)
	CreateJournal(ctx context.Context, name string) (*models.Journal, error)
	UpdateJournal(ctx context.Context, id domain.JournalID, name string) (*models.Journal, error)
	DeleteJournal(ctx context.Context, id domain.JournalID) error
}

// Handler serves the journal resources.
type Handler struct {
	service Service
	logger  *slog.Logger
	links   links.Config
}

func New(service Service, logger *slog.Logger, cfg links.Config) *Handler {
	return &Handler{service: service, logger: logger, links: cfg}
}

// Register mounts the journal routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/journals", h.HandleList)
	r.Post("/journals", h.HandleCreate)
	r.Put("/journals", h.HandleUpdate)
	r.Get("/journals/id/{id}", h.HandleGet)
	r.Delete("/journals/id/{id}", h.HandleDelete)
}

// HandleList handles GET /journals.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	window, err := collection.ParseWindow(r.URL.Query(), h.links.Limits)
	if err != nil {
		h.fail(ctx, w, "invalid page request", err)
		return
	}

	page, err := h.service.ListJournals(ctx, window)
	if err != nil {
		h.fail(ctx, w, "failed to list journals", err)
		return
	}

	b := h.links.For(r)
	items := make([]JournalResponse, 0, len(page.Items))
	for _, j := range page.Items {
		items = append(items, toResponse(b, j))
	}
	env := collection.Assemble(window.Start, window.Size, links.JournalsPath, page.Total, items, collection.WithBase(b.Base()))
	httputil.WriteJSON(w, http.StatusOK, env)
}

// HandleGet handles GET /journals/id/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := links.JournalFromPath(r)
	if err != nil {
		h.fail(ctx, w, "invalid journal id", err)
		return
	}

	j, err := h.service.GetJournal(ctx, id)
	if err != nil {
		h.fail(ctx, w, "failed to get journal", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(h.links.For(r), j))
}

// HandleCreate handles POST /journals.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateJournalRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	j, err := h.service.CreateJournal(ctx, req.Name)
	if err != nil {
		h.fail(ctx, w, "failed to create journal", err)
		return
	}
	resp := toResponse(h.links.For(r), j)
	w.Header().Set("Location", resp.Href)
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// HandleUpdate handles PUT /journals.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[UpdateJournalRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	j, err := h.service.UpdateJournal(ctx, req.ID(), req.Name)
	if err != nil {
		h.fail(ctx, w, "failed to update journal", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(h.links.For(r), j))
}

// HandleDelete handles DELETE /journals/id/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := links.JournalFromPath(r)
	if err != nil {
		h.fail(ctx, w, "invalid journal id", err)
		return
	}
	if err := h.service.DeleteJournal(ctx, id); err != nil {
		h.fail(ctx, w, "failed to delete journal", err)
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
