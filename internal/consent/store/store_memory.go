package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"custodia/internal/consent/models"
	dErrors "custodia/pkg/domain-errors"
)

// InMemoryStore keeps consent history in memory. A single mutex serializes
// writes, which satisfies the per-(user, type) serialization contract; reads
// take the read lock and therefore see every committed write.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[models.Type][]*models.Record
}

// NewInMemory constructs an empty in-memory consent store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]map[models.Type][]*models.Record)}
}

func (s *InMemoryStore) Grant(_ context.Context, record *models.Record) (*models.Record, error) {
	if record == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "consent record required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byType, ok := s.records[record.UserID]
	if !ok {
		byType = make(map[models.Type][]*models.Record)
		s.records[record.UserID] = byType
	}

	current := currentOf(byType[record.Type])
	stored := *record

	if current != nil && current.GrantedAt.After(record.GrantedAt) {
		// The in-place record is newer: the incoming write loses the race
		// but its history is still retained.
		supersededAt := current.GrantedAt
		stored.SupersededAt = &supersededAt
		byType[record.Type] = append(byType[record.Type], &stored)
		winner := *current
		return &winner, nil
	}

	if current != nil {
		supersededAt := record.GrantedAt
		current.SupersededAt = &supersededAt
	}
	byType[record.Type] = append(byType[record.Type], &stored)
	result := stored
	return &result, nil
}

func (s *InMemoryStore) Withdraw(_ context.Context, userID string, consentType models.Type, at time.Time) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byType := s.records[userID]
	current := currentOf(byType[consentType])
	if current == nil || !current.Granted {
		return nil, ErrNotFound
	}
	if current.WithdrawnAt != nil {
		copyRecord := *current
		return &copyRecord, nil
	}
	if current.GrantedAt.After(at) {
		// The grant is newer than this withdrawal: the grant wins.
		copyRecord := *current
		return &copyRecord, nil
	}
	withdrawnAt := at
	current.WithdrawnAt = &withdrawnAt
	copyRecord := *current
	return &copyRecord, nil
}

func (s *InMemoryStore) FindCurrent(_ context.Context, userID string, consentType models.Type) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	current := currentOf(s.records[userID][consentType])
	if current == nil {
		return nil, ErrNotFound
	}
	copyRecord := *current
	return &copyRecord, nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID string) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var history []*models.Record
	for _, records := range s.records[userID] {
		for _, record := range records {
			copyRecord := *record
			history = append(history, &copyRecord)
		}
	}
	sortByGrantedAt(history)
	return history, nil
}

func (s *InMemoryStore) Counts(_ context.Context, now time.Time) (models.LedgerCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var counts models.LedgerCounts
	for _, byType := range s.records {
		for _, records := range byType {
			for _, record := range records {
				counts.Total++
				switch {
				case record.IsActive(now):
					counts.Active++
				case record.IsExpired(now):
					counts.Expired++
				}
			}
		}
	}
	return counts, nil
}

// currentOf returns the latest record that is neither withdrawn nor
// superseded, or nil.
func currentOf(records []*models.Record) *models.Record {
	var current *models.Record
	for _, record := range records {
		if record.WithdrawnAt != nil || record.SupersededAt != nil {
			continue
		}
		if current == nil || record.GrantedAt.After(current.GrantedAt) {
			current = record
		}
	}
	return current
}

func sortByGrantedAt(records []*models.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].GrantedAt.Before(records[j].GrantedAt)
	})
}
