package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"custodia/internal/audit/logger"
	auditmodels "custodia/internal/audit/models"
	"custodia/internal/consent/metrics"
	"custodia/internal/consent/models"
	"custodia/internal/consent/store"
	dErrors "custodia/pkg/domain-errors"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

// Store defines the persistence interface for consent records.
// Error Contract:
// - Withdraw and FindCurrent return store.ErrNotFound when no current record exists
// - Other methods return nil on success or wrapped errors on failure
type Store interface {
	Grant(ctx context.Context, record *models.Record) (*models.Record, error)
	Withdraw(ctx context.Context, userID string, consentType models.Type, at time.Time) (*models.Record, error)
	FindCurrent(ctx context.Context, userID string, consentType models.Type) (*models.Record, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Record, error)
	Counts(ctx context.Context, now time.Time) (models.LedgerCounts, error)
}

// Auditor records consent lifecycle events in the audit trail.
type Auditor interface {
	Log(ctx context.Context, req logger.Request) (string, error)
}

type Option func(*Service)

const defaultConsentTTL = 365 * 24 * time.Hour // 1 year

// Decision is a caller-supplied consent change.
type Decision struct {
	UserID    string
	Type      models.Type
	Granted   bool
	Source    models.Source
	IPAddress string
	Purpose   string
}

// Service persists consent decisions, enforces lifecycle rules, and records
// every change in the audit trail.
type Service struct {
	store      Store
	auditor    Auditor
	metrics    *metrics.Metrics
	logger     *slog.Logger
	consentTTL time.Duration
	clock      func() time.Time
}

func NewService(store Store, auditor Auditor, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:      store,
		auditor:    auditor,
		logger:     logger,
		consentTTL: defaultConsentTTL,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.consentTTL <= 0 {
		svc.consentTTL = defaultConsentTTL
	}
	return svc
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithConsentTTL configures the time-to-live for granted consents.
// If not set or set to zero/negative, defaults to 1 year.
func WithConsentTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.consentTTL = ttl
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// Record applies a consent decision. A grant supersedes any prior record for
// the same (user, type) pair; a withdrawal transitions the active grant.
// Either way the resulting state is returned and a consent-change entry is
// written to the audit trail.
func (s *Service) Record(ctx context.Context, decision Decision) (*models.Record, error) {
	if decision.UserID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "user ID required")
	}
	if !decision.Type.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid consent type: %s", decision.Type))
	}
	if !decision.Source.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid consent source: %s", decision.Source))
	}

	now := s.clock().UTC()
	var (
		result *models.Record
		err    error
	)
	if decision.Granted {
		result, err = s.grant(ctx, decision, now)
	} else {
		result, err = s.withdraw(ctx, decision, now)
	}
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, decision, now)
	if decision.Granted {
		s.metrics.RecordGrant(string(decision.Type))
	} else {
		s.metrics.RecordWithdrawal(string(decision.Type))
	}
	s.logger.InfoContext(ctx, "consent recorded",
		slog.String("user_id", decision.UserID),
		slog.String("consent_type", string(decision.Type)),
		slog.Bool("granted", decision.Granted),
	)
	return result, nil
}

func (s *Service) grant(ctx context.Context, decision Decision, now time.Time) (*models.Record, error) {
	var expiresAt *time.Time
	if decision.Type.Expires() {
		expiry := now.Add(s.consentTTL)
		expiresAt = &expiry
	}
	record, err := models.NewRecord(
		fmt.Sprintf("consent_%s", uuid.New().String()),
		decision.UserID, decision.Type, true, now, expiresAt,
		decision.Purpose, decision.IPAddress, decision.Source,
	)
	if err != nil {
		return nil, err
	}
	winner, err := s.store.Grant(ctx, record)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to save consent")
	}
	return winner, nil
}

func (s *Service) withdraw(ctx context.Context, decision Decision, now time.Time) (*models.Record, error) {
	record, err := s.store.Withdraw(ctx, decision.UserID, decision.Type, now)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to withdraw consent")
	}

	// No active grant to withdraw: the refusal is still recorded so the
	// history shows the user explicitly declined.
	refusal, err := models.NewRecord(
		fmt.Sprintf("consent_%s", uuid.New().String()),
		decision.UserID, decision.Type, false, now, nil,
		decision.Purpose, decision.IPAddress, decision.Source,
	)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.Grant(ctx, refusal)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to save consent refusal")
	}
	return stored, nil
}

// Verify checks whether the user currently holds every required consent.
// It is read-only: verification never writes audit entries or mutates
// consent state.
func (s *Service) Verify(ctx context.Context, userID string, required []models.Type) (*models.Verification, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "user ID required")
	}

	now := s.clock().UTC()
	verification := &models.Verification{Valid: true}
	for _, consentType := range required {
		if !consentType.IsValid() {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid consent type: %s", consentType))
		}
		current, err := s.store.FindCurrent(ctx, userID, consentType)
		if errors.Is(err, store.ErrNotFound) {
			verification.Valid = false
			verification.Missing = append(verification.Missing, consentType)
			continue
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to read consent")
		}
		switch {
		case current.IsExpired(now):
			verification.Valid = false
			verification.Expired = append(verification.Expired, consentType)
		case !current.IsActive(now):
			verification.Valid = false
			verification.Missing = append(verification.Missing, consentType)
		}
	}
	s.metrics.RecordVerification(verification.Valid)
	return verification, nil
}

// History returns the user's full consent history, oldest first, including
// superseded and withdrawn records.
func (s *Service) History(ctx context.Context, userID string) ([]*models.Record, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "user ID required")
	}
	records, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list consents")
	}
	return records, nil
}

// Counts aggregates consent state across every user for status reporting.
func (s *Service) Counts(ctx context.Context) (models.LedgerCounts, error) {
	counts, err := s.store.Counts(ctx, s.clock().UTC())
	if err != nil {
		return models.LedgerCounts{}, dErrors.Wrap(err, dErrors.CodePersistence, "failed to count consents")
	}
	return counts, nil
}

func (s *Service) emitAudit(ctx context.Context, decision Decision, now time.Time) {
	if s.auditor == nil {
		return
	}
	action := "CONSENT_GRANTED"
	if !decision.Granted {
		action = "CONSENT_WITHDRAWN"
	}
	_, err := s.auditor.Log(ctx, logger.Request{
		EventType: auditmodels.EventConsentChange,
		UserID:    decision.UserID,
		Action:    action,
		Resource:  fmt.Sprintf("consent/%s", decision.Type),
		Details: map[string]any{
			"consentType": string(decision.Type),
			"granted":     decision.Granted,
			"source":      string(decision.Source),
			"purpose":     decision.Purpose,
			"timestamp":   now.Format(time.RFC3339),
		},
		Result:    auditmodels.ResultSuccess,
		IPAddress: decision.IPAddress,
	})
	if err != nil {
		// Consent state is already durable; a failed audit write must not
		// roll it back, but it cannot go unnoticed either.
		s.logger.ErrorContext(ctx, "failed to audit consent change",
			slog.String("user_id", decision.UserID),
			slog.String("consent_type", string(decision.Type)),
			slog.String("error", err.Error()),
		)
	}
}
