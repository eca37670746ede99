package handler

import (
	"time"

	"custodia/internal/consent/models"
)

// RecordResponse is returned after recording a consent decision.
type RecordResponse struct {
	Record *Consent `json:"record"`
}

// Consent represents a consent record in HTTP responses.
type Consent struct {
	ID           string        `json:"id"`
	ConsentType  models.Type   `json:"consent_type"`
	Granted      bool          `json:"granted"`
	GrantedAt    time.Time     `json:"granted_at"`
	ExpiresAt    *time.Time    `json:"expires_at,omitempty"`
	WithdrawnAt  *time.Time    `json:"withdrawn_at,omitempty"`
	SupersededAt *time.Time    `json:"superseded_at,omitempty"`
	Source       models.Source `json:"source"`
	Purpose      string        `json:"purpose,omitempty"`
	Version      string        `json:"version"`
	Status       models.Status `json:"status"`
}

// VerifyResponse is returned by the consent verification endpoint.
type VerifyResponse struct {
	Valid   bool          `json:"valid"`
	Missing []models.Type `json:"missing,omitempty"`
	Expired []models.Type `json:"expired,omitempty"`
}

// HistoryResponse lists a user's full consent history.
type HistoryResponse struct {
	Consents []*Consent `json:"consents"`
}

func toConsent(record *models.Record, now time.Time) *Consent {
	return &Consent{
		ID:           record.ID,
		ConsentType:  record.Type,
		Granted:      record.Granted,
		GrantedAt:    record.GrantedAt,
		ExpiresAt:    record.ExpiresAt,
		WithdrawnAt:  record.WithdrawnAt,
		SupersededAt: record.SupersededAt,
		Source:       record.Source,
		Purpose:      record.Purpose,
		Version:      record.Version,
		Status:       record.ComputeStatus(now),
	}
}

func toHistoryResponse(records []*models.Record, now time.Time) *HistoryResponse {
	consents := make([]*Consent, 0, len(records))
	for _, record := range records {
		consents = append(consents, toConsent(record, now))
	}
	return &HistoryResponse{Consents: consents}
}
