package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/consent/models"
	"custodia/internal/consent/service"
	"custodia/internal/platform/middleware"
	"custodia/internal/platform/respond"
	dErrors "custodia/pkg/domain-errors"
)

// Service defines the consent operations the handler exposes.
type Service interface {
	Record(ctx context.Context, decision service.Decision) (*models.Record, error)
	Verify(ctx context.Context, userID string, required []models.Type) (*models.Verification, error)
	History(ctx context.Context, userID string) ([]*models.Record, error)
}

// Handler handles consent endpoints.
type Handler struct {
	logger  *slog.Logger
	consent Service
}

// New creates a consent Handler.
func New(consent Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, consent: consent}
}

// Register registers the consent routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/consent", h.handleRecord)
	r.Get("/consent/verify", h.handleVerify)
	r.Get("/consent/history", h.handleHistory)
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		respond.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing user identity"))
		return
	}

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode consent request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		respond.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		respond.WriteError(w, err)
		return
	}

	source := models.Source(req.Source)
	if req.Source == "" {
		source = models.SourceAPI
	}
	record, err := h.consent.Record(ctx, service.Decision{
		UserID:    userID,
		Type:      models.Type(req.ConsentType),
		Granted:   req.Granted,
		Source:    source,
		IPAddress: clientIP(r),
		Purpose:   req.Purpose,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to record consent",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		respond.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusOK, &RecordResponse{Record: toConsent(record, time.Now())})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		respond.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing user identity"))
		return
	}

	raw := r.URL.Query().Get("types")
	if raw == "" {
		respond.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "types query parameter required"))
		return
	}
	var required []models.Type
	for _, name := range strings.Split(raw, ",") {
		required = append(required, models.Type(strings.TrimSpace(name)))
	}

	verification, err := h.consent.Verify(ctx, userID, required)
	if err != nil {
		respond.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusOK, &VerifyResponse{
		Valid:   verification.Valid,
		Missing: verification.Missing,
		Expired: verification.Expired,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		respond.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing user identity"))
		return
	}

	records, err := h.consent.History(ctx, userID)
	if err != nil {
		respond.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, toHistoryResponse(records, time.Now()))
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	return r.RemoteAddr
}
