package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/audit/logger"
	"custodia/internal/audit/models"
	"custodia/internal/platform/middleware"
	"custodia/internal/platform/respond"
	dErrors "custodia/pkg/domain-errors"
)

// AuditLog is the audit trail surface the handler reads from. All endpoints
// are read-only; entries are written by the services that own the events.
type AuditLog interface {
	Query(ctx context.Context, filter models.Filter) ([]*models.Entry, error)
	UserTrail(ctx context.Context, userID string) ([]*models.Entry, error)
	VerifyIntegrity(ctx context.Context) (logger.IntegrityReport, error)
	ExportForAudit(ctx context.Context, from, to time.Time, format logger.ExportFormat) ([]byte, error)
	Summarize(ctx context.Context, from, to time.Time) (logger.Summary, error)
}

// Handler exposes the audit trail over HTTP.
type Handler struct {
	logger *slog.Logger
	audit  AuditLog
}

// New creates an audit Handler.
func New(audit AuditLog, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, audit: audit}
}

// Register registers the audit routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit/entries", h.handleEntries)
	r.Get("/audit/trail", h.handleTrail)
	r.Get("/audit/integrity", h.handleIntegrity)
	r.Get("/audit/export", h.handleExport)
	r.Get("/audit/summary", h.handleSummary)
}

func (h *Handler) handleEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := filterFromQuery(r)
	if err != nil {
		respond.WriteError(w, err)
		return
	}

	entries, err := h.audit.Query(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		respond.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, toEntriesResponse(entries))
}

func (h *Handler) handleTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		respond.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing user identity"))
		return
	}

	entries, err := h.audit.UserTrail(ctx, userID)
	if err != nil {
		respond.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, toEntriesResponse(entries))
}

func (h *Handler) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.audit.VerifyIntegrity(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "integrity verification failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		respond.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, &IntegrityResponse{
		Valid:  report.Valid,
		Issues: report.Issues,
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	from, to, err := rangeFromQuery(r)
	if err != nil {
		respond.WriteError(w, err)
		return
	}
	format := logger.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = logger.FormatJSON
	}

	payload, err := h.audit.ExportForAudit(ctx, from, to, format)
	if err != nil {
		respond.WriteError(w, err)
		return
	}

	contentType := "application/json"
	if format == logger.FormatStructuredTable {
		contentType = "text/csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	from, to, err := rangeFromQuery(r)
	if err != nil {
		respond.WriteError(w, err)
		return
	}

	summary, err := h.audit.Summarize(ctx, from, to)
	if err != nil {
		respond.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, toSummaryResponse(summary))
}

// filterFromQuery builds the entry filter from query parameters. Unknown
// enum values are rejected rather than silently matching nothing.
func filterFromQuery(r *http.Request) (models.Filter, error) {
	q := r.URL.Query()
	var filter models.Filter

	filter.UserID = q.Get("userId")
	if raw := q.Get("eventType"); raw != "" {
		eventType := models.EventType(raw)
		if !eventType.IsValid() {
			return models.Filter{}, dErrors.New(dErrors.CodeBadRequest, "invalid eventType")
		}
		filter.EventType = &eventType
	}
	if raw := q.Get("severity"); raw != "" {
		severity := models.Severity(raw)
		if !severity.IsValid() {
			return models.Filter{}, dErrors.New(dErrors.CodeBadRequest, "invalid severity")
		}
		filter.Severity = &severity
	}
	if raw := q.Get("gdprRelevant"); raw != "" {
		relevant, err := strconv.ParseBool(raw)
		if err != nil {
			return models.Filter{}, dErrors.New(dErrors.CodeBadRequest, "invalid gdprRelevant")
		}
		filter.GDPRRelevant = &relevant
	}
	if raw := q.Get("hipaaRelevant"); raw != "" {
		relevant, err := strconv.ParseBool(raw)
		if err != nil {
			return models.Filter{}, dErrors.New(dErrors.CodeBadRequest, "invalid hipaaRelevant")
		}
		filter.HIPAARelevant = &relevant
	}
	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return models.Filter{}, dErrors.New(dErrors.CodeBadRequest, "invalid from timestamp")
		}
		filter.From = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return models.Filter{}, dErrors.New(dErrors.CodeBadRequest, "invalid to timestamp")
		}
		filter.To = &to
	}
	return filter, nil
}

// rangeFromQuery parses the mandatory from/to range for export and summary.
func rangeFromQuery(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeBadRequest, "invalid from timestamp")
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeBadRequest, "invalid to timestamp")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeBadRequest, "to precedes from")
	}
	return from, to, nil
}
