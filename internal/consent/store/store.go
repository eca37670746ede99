package store

import (
	"context"
	"time"

	"custodia/internal/consent/models"
	dErrors "custodia/pkg/domain-errors"
)

// ErrNotFound keeps storage-specific 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "consent record not found")

// Store persists consent history.
//
// Error Contract:
// - FindCurrent and Withdraw return ErrNotFound when no matching record exists
// - Other methods return nil on success or wrapped errors on failure
//
// Concurrency Contract:
// - Writes for the same (userID, type) pair are serialized inside the store;
//   a concurrent grant/withdraw race resolves to one winner, chosen by later
//   timestamp, with history for the loser retained
// - Reads reflect the latest committed write (read-after-write consistency)
type Store interface {
	// Grant inserts a new consent decision, superseding the current record
	// for the same (user, type) pair when the new decision is newer. When the
	// current record carries a later timestamp, the incoming record is stored
	// pre-superseded and the in-place winner is returned. History is never
	// deleted.
	Grant(ctx context.Context, record *models.Record) (*models.Record, error)

	// Withdraw sets WithdrawnAt on the current active grant. Withdrawal is a
	// state transition on the existing record, not a new record. Returns
	// ErrNotFound when no active grant exists. A withdrawal older than the
	// active grant loses the race and leaves the grant untouched.
	Withdraw(ctx context.Context, userID string, consentType models.Type, at time.Time) (*models.Record, error)

	// FindCurrent returns the most recent non-withdrawn, non-superseded
	// record for the pair, regardless of expiry or granted state.
	FindCurrent(ctx context.Context, userID string, consentType models.Type) (*models.Record, error)

	// ListByUser returns the user's full consent history, oldest first.
	ListByUser(ctx context.Context, userID string) ([]*models.Record, error)

	// Counts aggregates consent state over the whole ledger at the given
	// time, for regulator status reporting.
	Counts(ctx context.Context, now time.Time) (models.LedgerCounts, error)
}
