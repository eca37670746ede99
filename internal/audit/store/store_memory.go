package store

import (
	"context"
	"sync"
	"time"

	"custodia/internal/audit/models"
	dErrors "custodia/pkg/domain-errors"
)

// tier marks where an entry currently lives.
type tier int

const (
	tierLive tier = iota
	tierArchived
)

type storedEntry struct {
	entry *models.Entry
	tier  tier
}

// InMemoryStore keeps audit entries in memory. It is the durable store for
// tests and for deployments without a database; appends commit under the lock
// so a returned nil means the entry is retained.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []*storedEntry
	byID    map[string]*storedEntry
}

// NewInMemory constructs an empty in-memory audit store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{byID: make(map[string]*storedEntry)}
}

func (s *InMemoryStore) Append(ctx context.Context, entry *models.Entry) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "audit append cancelled")
	}
	if entry == nil || entry.ID == "" {
		return dErrors.New(dErrors.CodeValidation, "audit entry with id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[entry.ID]; exists {
		return dErrors.New(dErrors.CodeConflict, "audit entry id already written")
	}
	stored := &storedEntry{entry: entry.Clone()}
	s.entries = append(s.entries, stored)
	s.byID[entry.ID] = stored
	return nil
}

func (s *InMemoryStore) Query(_ context.Context, filter models.Filter) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Entry
	for _, stored := range s.entries {
		if filter.Matches(stored.entry) {
			result = append(result, stored.entry.Clone())
		}
	}
	return result, nil
}

func (s *InMemoryStore) Archive(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	moved := 0
	for _, stored := range s.entries {
		if stored.tier == tierLive && stored.entry.Timestamp.Before(before) {
			stored.tier = tierArchived
			moved++
		}
	}
	return moved, nil
}

func (s *InMemoryStore) DeleteExpired(_ context.Context, cutoffs map[string]time.Time, defaultCutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged []string
	kept := s.entries[:0]
	for _, stored := range s.entries {
		cutoff, ok := cutoffs[stored.entry.Compliance.DataClassification]
		if !ok {
			cutoff = defaultCutoff
		}
		if stored.entry.Timestamp.Before(cutoff) {
			purged = append(purged, stored.entry.ID)
			delete(s.byID, stored.entry.ID)
			continue
		}
		kept = append(kept, stored)
	}
	s.entries = kept
	return purged, nil
}

// Archived reports whether the entry with the given id has been moved to the
// archived tier. Test helper.
func (s *InMemoryStore) Archived(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	return stored.tier == tierArchived, nil
}

// Len returns the number of retained entries across both tiers. Test helper.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
