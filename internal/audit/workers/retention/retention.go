// Package retention runs the audit log's archival and purge cycle on a
// schedule. Archival moves old entries to the cold tier; purge removes
// entries whose retention horizon has elapsed.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// AuditLog exposes the retention operations of the audit logger.
type AuditLog interface {
	Archive(ctx context.Context) (int, error)
	Cleanup(ctx context.Context) (int, error)
}

// Result summarizes one retention run.
type Result struct {
	ArchivedEntries int
	PurgedEntries   int
}

// Service periodically archives and purges audit entries.
type Service struct {
	audit    AuditLog
	interval time.Duration
	logger   *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithInterval overrides the retention interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithLogger overrides the logger used for retention errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a retention Service.
func New(audit AuditLog, opts ...Option) (*Service, error) {
	if audit == nil {
		return nil, fmt.Errorf("audit log is required")
	}
	svc := &Service{
		audit:    audit,
		interval: 24 * time.Hour,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs retention periodically until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "audit retention run failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single archive-then-purge pass. Archival runs first so
// entries cross the cold tier before they can ever be purged from it. Errors
// from the two phases are aggregated; a failed archive does not stop purge.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	var errs []error

	archived, err := s.audit.Archive(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("archive audit entries: %w", err))
	} else {
		res.ArchivedEntries = archived
	}

	purged, err := s.audit.Cleanup(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("purge expired audit entries: %w", err))
	} else {
		res.PurgedEntries = purged
	}

	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}
	return res, nil
}
