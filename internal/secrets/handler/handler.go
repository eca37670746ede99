// Package handler exposes the secret store's administrative surface. Secret
// values are write-only over HTTP: they can be created and rotated, never read
// back.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custodia/internal/platform/middleware"
	"custodia/internal/platform/respond"
	"custodia/internal/secrets"
	dErrors "custodia/pkg/domain-errors"
)

// SecretStore is the store surface the handler manages.
type SecretStore interface {
	Put(ctx context.Context, name, value string, category secrets.Category, description, environment string) (*secrets.Metadata, error)
	Rotate(ctx context.Context, name, newValue string) (*secrets.Metadata, error)
	Metadata(name string) (*secrets.Metadata, error)
	NeedsRotation(name string) (bool, error)
	List() map[string]secrets.Metadata
}

// Handler handles secret administration endpoints.
type Handler struct {
	logger *slog.Logger
	store  SecretStore
}

// New creates a secrets Handler.
func New(store SecretStore, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, store: store}
}

// Register registers the secret administration routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/secrets", h.handleCreate)
	r.Get("/admin/secrets", h.handleList)
	r.Get("/admin/secrets/{name}", h.handleMetadata)
	r.Post("/admin/secrets/{name}/rotate", h.handleRotate)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	meta, err := h.store.Put(ctx, req.Name, req.Value, secrets.Category(req.Category), req.Description, req.Environment)
	if err != nil {
		respond.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "secret created",
		"request_id", middleware.GetRequestID(ctx),
		"secret", req.Name,
		"category", req.Category,
	)
	respond.WriteJSON(w, http.StatusCreated, toSecret(req.Name, *meta, false))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	all := h.store.List()
	out := make([]*Secret, 0, len(all))
	for name, meta := range all {
		due, err := h.store.NeedsRotation(name)
		if err != nil {
			respond.WriteError(w, err)
			return
		}
		out = append(out, toSecret(name, meta, due))
	}
	respond.WriteJSON(w, http.StatusOK, &ListResponse{Secrets: out, Count: len(out)})
}

func (h *Handler) handleMetadata(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	meta, err := h.store.Metadata(name)
	if err != nil {
		respond.WriteError(w, err)
		return
	}
	due, err := h.store.NeedsRotation(name)
	if err != nil {
		respond.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, toSecret(name, *meta, due))
}

func (h *Handler) handleRotate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	var req rotateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	meta, err := h.store.Rotate(ctx, name, req.Value)
	if err != nil {
		h.logger.WarnContext(ctx, "secret rotation failed",
			"request_id", middleware.GetRequestID(ctx),
			"secret", name,
			"error", err,
		)
		respond.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, toSecret(name, *meta, false))
}
