package logger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"custodia/internal/audit/metrics"
	"custodia/internal/audit/models"
	"custodia/internal/audit/store"
	"custodia/internal/classification"
	dErrors "custodia/pkg/domain-errors"
)

// DeletionReasonRetention marks purge meta-entries emitted by Cleanup.
const DeletionReasonRetention = "retention-expired"

const (
	defaultWriteTimeout     = 5 * time.Second
	defaultArchiveThreshold = 90 * 24 * time.Hour
)

// Notifier receives entries worth alerting on. Forward must never block.
type Notifier interface {
	Forward(entry *models.Entry)
}

// Request carries the caller-supplied portion of an audit entry. Severity and
// compliance flags are always derived here, never accepted from callers.
type Request struct {
	EventType          models.EventType
	UserID             string
	SessionID          string
	Action             string
	Resource           string
	Details            map[string]any
	Result             models.Result
	ErrorMessage       string
	IPAddress          string
	UserAgent          string
	ConsentVerified    bool
	DataClassification string
	RequestID          string
}

// Logger is the audit system of record. Writes are synchronous and durable:
// Log returns an id only after the store has committed the entry, and a
// persistence failure always surfaces to the caller.
//
// Integrity verification here is a detective control: it checks chronological
// ordering and flags unresolved critical events, but provides no cryptographic
// tamper-evidence over the log itself.
type Logger struct {
	store                store.Store
	notifier             Notifier
	metrics              *metrics.Metrics
	log                  *slog.Logger
	clock                func() time.Time
	writeTimeout         time.Duration
	archiveThreshold     time.Duration
	defaultRetentionDays int
}

// Option configures the Logger.
type Option func(*Logger)

// WithNotifier forwards High and Critical entries to an alerting channel.
func WithNotifier(n Notifier) Option {
	return func(l *Logger) { l.notifier = n }
}

// WithMetrics sets the metrics instance.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Logger) { l.metrics = m }
}

// WithClock overrides the time source, used by tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Logger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithWriteTimeout bounds each durable append. A timed-out write propagates
// as a failure; it is never reported as success.
func WithWriteTimeout(d time.Duration) Option {
	return func(l *Logger) {
		if d > 0 {
			l.writeTimeout = d
		}
	}
}

// WithArchiveThreshold overrides how old an entry must be before Archive
// moves it to cold storage.
func WithArchiveThreshold(d time.Duration) Option {
	return func(l *Logger) {
		if d > 0 {
			l.archiveThreshold = d
		}
	}
}

// WithDefaultRetentionDays sets the deployment retention for entries whose
// classification has no fixed statutory horizon.
func WithDefaultRetentionDays(days int) Option {
	return func(l *Logger) {
		if days > 0 {
			l.defaultRetentionDays = days
		}
	}
}

// New constructs the audit Logger.
func New(s store.Store, log *slog.Logger, opts ...Option) *Logger {
	l := &Logger{
		store:                s,
		log:                  log,
		clock:                time.Now,
		writeTimeout:         defaultWriteTimeout,
		archiveThreshold:     defaultArchiveThreshold,
		defaultRetentionDays: classification.DefaultRetentionDays,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log validates the request, builds the immutable entry, and durably persists
// it before returning its id. The entry is fully assembled before the single
// store append, so a cancelled caller never leaves a partial write behind.
func (l *Logger) Log(ctx context.Context, req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}

	start := l.clock()
	entry := l.build(ctx, req)

	writeCtx, cancel := context.WithTimeout(ctx, l.writeTimeout)
	defer cancel()
	if err := l.store.Append(writeCtx, entry); err != nil {
		if l.metrics != nil {
			l.metrics.IncrementPersistenceFailures()
		}
		l.log.ErrorContext(ctx, "audit entry not persisted",
			"event_type", entry.EventType,
			"action", entry.Action,
			"error", err,
		)
		return "", dErrors.Wrap(err, dErrors.CodePersistence, "audit entry not persisted")
	}

	if l.metrics != nil {
		l.metrics.IncrementEntriesLogged(string(entry.EventType), string(entry.Severity))
		l.metrics.ObserveLogLatency(l.clock().Sub(start).Seconds())
	}
	if l.notifier != nil && entry.Severity.AtLeast(models.SeverityHigh) {
		l.notifier.Forward(entry.Clone())
	}
	return entry.ID, nil
}

func validate(req Request) error {
	if !req.EventType.IsValid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid event type: %s", req.EventType))
	}
	if !req.Result.IsValid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid result: %s", req.Result))
	}
	if req.Action == "" {
		return dErrors.New(dErrors.CodeValidation, "action required")
	}
	if req.Resource == "" {
		return dErrors.New(dErrors.CodeValidation, "resource required")
	}
	return nil
}

func (l *Logger) build(ctx context.Context, req Request) *models.Entry {
	entry := &models.Entry{
		ID:           fmt.Sprintf("audit_%s", uuid.New().String()),
		Timestamp:    l.clock().UTC(),
		EventType:    req.EventType,
		Severity:     models.DeriveSeverity(req.EventType, req.Result),
		UserID:       req.UserID,
		SessionID:    req.SessionID,
		Action:       req.Action,
		Resource:     req.Resource,
		Details:      req.Details,
		Result:       req.Result,
		ErrorMessage: req.ErrorMessage,
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
		Compliance: models.ComplianceFlags{
			GDPRRelevant:       models.GDPRRelevant(req.EventType),
			HIPAARelevant:      models.HIPAARelevant(req.EventType),
			DataClassification: req.DataClassification,
			ConsentVerified:    req.ConsentVerified,
		},
		RequestID: req.RequestID,
	}
	if entry.Compliance.DataClassification == "" {
		entry.Compliance.DataClassification = "unknown"
	}
	if entry.SessionID == "" {
		entry.SessionID = fmt.Sprintf("session_%s", uuid.New().String())
	}
	if entry.RequestID == "" {
		entry.RequestID = fmt.Sprintf("req_%s", uuid.New().String())
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		entry.TraceID = sc.TraceID().String()
	}
	return entry
}

// Query returns entries matching the filter; all set fields AND together.
// Read-only: no mutation, safe under unlimited concurrency.
func (l *Logger) Query(ctx context.Context, filter models.Filter) ([]*models.Entry, error) {
	return l.store.Query(ctx, filter)
}

// UserTrail returns a user's entries, most recent first, for GDPR
// self-service export.
func (l *Logger) UserTrail(ctx context.Context, userID string) ([]*models.Entry, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "user ID required")
	}
	entries, err := l.store.Query(ctx, models.Filter{UserID: userID})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

// IntegrityReport is the result of a detective integrity pass.
type IntegrityReport struct {
	Valid  bool
	Issues []string
}

// VerifyIntegrity checks that entries are chronologically ordered in append
// order and surfaces unresolved critical entries. It flags anomalies only; it
// cannot prove the absence of tampering.
func (l *Logger) VerifyIntegrity(ctx context.Context) (IntegrityReport, error) {
	entries, err := l.store.Query(ctx, models.Filter{})
	if err != nil {
		return IntegrityReport{}, err
	}

	var issues []string
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.Before(entries[i-1].Timestamp) {
			issues = append(issues, fmt.Sprintf("entries out of order: %s -> %s", entries[i-1].ID, entries[i].ID))
		}
	}

	critical := 0
	for _, entry := range entries {
		if entry.Severity == models.SeverityCritical {
			critical++
		}
	}
	if critical > 0 {
		issues = append(issues, fmt.Sprintf("%d critical security events require attention", critical))
	}

	if l.metrics != nil {
		l.metrics.SetIntegrityIssues(float64(len(issues)))
	}
	return IntegrityReport{Valid: len(issues) == 0, Issues: issues}, nil
}

// Archive moves entries older than the archive threshold to the cold tier.
// Content is unchanged; only the storage tier differs.
func (l *Logger) Archive(ctx context.Context) (int, error) {
	moved, err := l.store.Archive(ctx, l.clock().UTC().Add(-l.archiveThreshold))
	if err != nil {
		return 0, err
	}
	if moved > 0 {
		if l.metrics != nil {
			l.metrics.AddEntriesArchived(float64(moved))
		}
		l.log.InfoContext(ctx, "audit entries archived", "count", moved)
	}
	return moved, nil
}

// Cleanup purges entries whose classification-specific retention window has
// elapsed and emits one DATA_DELETION meta-entry per purge batch so the
// deletion itself stays auditable. Idempotent: with no new expirations the
// second run removes nothing and emits nothing.
func (l *Logger) Cleanup(ctx context.Context) (int, error) {
	now := l.clock().UTC()
	cutoffs := make(map[string]time.Time, len(classification.ValidCategories))
	for category := range classification.ValidCategories {
		days := classification.RetentionDays(category, l.defaultRetentionDays)
		cutoffs[string(category)] = now.Add(-time.Duration(days) * 24 * time.Hour)
	}
	defaultCutoff := now.Add(-time.Duration(defaultDays(l.defaultRetentionDays)) * 24 * time.Hour)

	purged, err := l.store.DeleteExpired(ctx, cutoffs, defaultCutoff)
	if err != nil {
		return 0, err
	}
	if len(purged) == 0 {
		return 0, nil
	}

	if l.metrics != nil {
		l.metrics.AddEntriesPurged(float64(len(purged)))
	}
	l.log.InfoContext(ctx, "audit entries purged", "count", len(purged))

	_, err = l.Log(ctx, Request{
		EventType: models.EventDataDeletion,
		Action:    "RETENTION_PURGE",
		Resource:  "audit_log",
		Details: map[string]any{
			"reason":    DeletionReasonRetention,
			"purgedIds": purged,
			"count":     len(purged),
		},
		Result:          models.ResultSuccess,
		IPAddress:       "internal",
		UserAgent:       "retention-worker",
		ConsentVerified: true,
	})
	if err != nil {
		return len(purged), dErrors.Wrap(err, dErrors.CodePersistence, "purge succeeded but meta-entry was not recorded")
	}
	return len(purged), nil
}

func defaultDays(configured int) int {
	if configured > 0 {
		return configured
	}
	return classification.RetentionDaysBaseline
}
