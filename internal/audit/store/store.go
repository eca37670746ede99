package store

import (
	"context"
	"time"

	"custodia/internal/audit/models"
	dErrors "custodia/pkg/domain-errors"
)

// ErrNotFound keeps storage-specific 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "audit entry not found")

// Store is the append-only repository behind the audit logger.
//
// Error Contract:
// - Append returns nil only after the entry is durably written
// - Query and List return entries in append order
// - All methods honor ctx cancellation and deadlines
type Store interface {
	// Append durably persists one entry. Entries are independent: no append
	// may block on another's persistence.
	Append(ctx context.Context, entry *models.Entry) error

	// Query returns entries matching the filter, across both the live and
	// archived tiers, in append order.
	Query(ctx context.Context, filter models.Filter) ([]*models.Entry, error)

	// Archive moves entries with Timestamp before the cutoff to the archived
	// tier. Content is unchanged; only the storage tier differs. Returns the
	// number of entries moved.
	Archive(ctx context.Context, before time.Time) (int, error)

	// DeleteExpired permanently purges entries whose retention window has
	// elapsed. Cutoffs map a data-classification label to the newest
	// timestamp that is still expired for that label; entries whose label is
	// absent from the map use defaultCutoff. Returns the ids of purged
	// entries so the purge itself can be audited.
	DeleteExpired(ctx context.Context, cutoffs map[string]time.Time, defaultCutoff time.Time) ([]string, error)
}
