package models

import (
	"time"

	dErrors "custodia/pkg/domain-errors"
)

// ConsentVersion stamps every new record so historical reconstructions can
// tell which policy text the user saw.
const ConsentVersion = "1.0"

// Record captures one consent decision for a (user, type) pair.
//
// # History Invariant
//
// For a given (UserID, Type) pair there is at most one currently active
// record. Granting again supersedes the prior record instead of mutating or
// deleting it, and withdrawal sets WithdrawnAt on the active record. History
// is never destroyed: the audit trail must be able to answer "what did the
// user consent to at time T" for any past T.
type Record struct {
	ID           string
	UserID       string
	Type         Type
	Granted      bool
	GrantedAt    time.Time
	ExpiresAt    *time.Time
	WithdrawnAt  *time.Time
	SupersededAt *time.Time
	Source       Source
	IPAddress    string
	Purpose      string
	Version      string
}

// NewRecord creates a Record with domain invariant checks.
func NewRecord(id, userID string, consentType Type, granted bool, grantedAt time.Time, expiresAt *time.Time, purpose, ipAddress string, source Source) (*Record, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "consent ID required")
	}
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "user ID required")
	}
	if !consentType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid consent type")
	}
	if !source.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid consent source")
	}
	if grantedAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "grant time required")
	}
	if expiresAt != nil && expiresAt.Before(grantedAt) {
		return nil, dErrors.New(dErrors.CodeValidation, "expiry must be after grant time")
	}
	return &Record{
		ID:        id,
		UserID:    userID,
		Type:      consentType,
		Granted:   granted,
		GrantedAt: grantedAt,
		ExpiresAt: expiresAt,
		Source:    source,
		IPAddress: ipAddress,
		Purpose:   purpose,
		Version:   ConsentVersion,
	}, nil
}

// IsActive returns true when this record is the current, valid grant.
func (r Record) IsActive(now time.Time) bool {
	if !r.Granted {
		return false
	}
	if r.WithdrawnAt != nil || r.SupersededAt != nil {
		return false
	}
	if r.ExpiresAt != nil && r.ExpiresAt.Before(now) {
		return false
	}
	return true
}

// IsExpired reports whether a granted, non-withdrawn record has passed its expiry.
func (r Record) IsExpired(now time.Time) bool {
	return r.Granted && r.WithdrawnAt == nil && r.SupersededAt == nil &&
		r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// ComputeStatus reports the consent lifecycle state at the provided time.
func (r Record) ComputeStatus(now time.Time) Status {
	if r.SupersededAt != nil {
		return StatusSuperseded
	}
	if r.WithdrawnAt != nil {
		return StatusWithdrawn
	}
	if r.ExpiresAt != nil && r.ExpiresAt.Before(now) {
		return StatusExpired
	}
	return StatusActive
}

// Verification is the result of checking a set of required consent types.
// Valid is true only when every required type has a current, unexpired grant.
type Verification struct {
	Valid   bool
	Missing []Type
	Expired []Type
}

// LedgerCounts aggregates consent state across the whole ledger. Expired
// counts grants that lapsed without being withdrawn or superseded; every
// record ever written contributes to Total.
type LedgerCounts struct {
	Total   int
	Active  int
	Expired int
}
