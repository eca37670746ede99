package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custodia/internal/classification"
	"custodia/internal/compliance"
	consent "custodia/internal/consent/models"
	"custodia/internal/platform/middleware"
	"custodia/internal/platform/respond"
	dErrors "custodia/pkg/domain-errors"
)

// Classifier assigns classification metadata to payload shapes.
type Classifier interface {
	Classify(fields classification.Fields) (classification.Metadata, error)
}

// Gate decides whether an access may proceed under the active GDPR posture.
type Gate interface {
	CheckAccess(ctx context.Context, userID string, level classification.Classification, action, purpose string) (compliance.Decision, error)
	Policy() compliance.Policy
}

// Ledger aggregates consent state for the status report.
type Ledger interface {
	Counts(ctx context.Context) (consent.LedgerCounts, error)
}

// Handler exposes the classification and compliance endpoints.
type Handler struct {
	logger        *slog.Logger
	classifier    Classifier
	gate          Gate
	ledger        Ledger
	retentionDays int
}

// New creates a compliance Handler. retentionDays is the deployment's general
// medical-data retention setting.
func New(classifier Classifier, gate Gate, ledger Ledger, retentionDays int, logger *slog.Logger) *Handler {
	return &Handler{
		logger:        logger,
		classifier:    classifier,
		gate:          gate,
		ledger:        ledger,
		retentionDays: retentionDays,
	}
}

// Register registers the compliance routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/classify", h.handleClassify)
	r.Post("/compliance/check", h.handleCheck)
	r.Get("/compliance/dpia", h.handleDPIA)
	r.Get("/compliance/status", h.handleStatus)
}

func (h *Handler) handleClassify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	metadata, err := h.classifier.Classify(classification.Fields(req.Fields))
	if err != nil {
		h.logger.WarnContext(ctx, "classification rejected",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		respond.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusOK, toClassifyResponse(metadata))
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		respond.WriteError(w, err)
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = middleware.GetUserID(ctx)
	}

	decision, err := h.gate.CheckAccess(ctx, userID, classification.Classification(req.Classification), req.Action, req.Purpose)
	if err != nil {
		h.logger.ErrorContext(ctx, "compliance check failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		respond.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusOK, &CheckResponse{
		Compliant: decision.Compliant,
		Reason:    decision.Reason,
	})
}

func (h *Handler) handleDPIA(w http.ResponseWriter, r *http.Request) {
	category := classification.Category(r.URL.Query().Get("category"))
	if !category.IsValid() {
		respond.WriteError(w, dErrors.New(dErrors.CodeValidation, "valid category parameter required"))
		return
	}

	respond.WriteJSON(w, http.StatusOK, toDPIAResponse(classification.AssessImpact(category, h.retentionDays)))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts, err := h.ledger.Counts(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "consent counts failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		respond.WriteError(w, err)
		return
	}

	policy := h.gate.Policy()
	respond.WriteJSON(w, http.StatusOK, &StatusResponse{
		ComplianceLevel: string(policy.GDPRMode),
		ConsentRequired: policy.ProtectionEnabled,
		RightToErasure:  true,
		DataPortability: true,
		RetentionDays:   h.retentionDays,
		TotalConsents:   counts.Total,
		ActiveConsents:  counts.Active,
		ExpiredConsents: counts.Expired,
	})
}
