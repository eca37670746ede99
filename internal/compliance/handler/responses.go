package handler

import (
	"time"

	"custodia/internal/classification"
	consent "custodia/internal/consent/models"
)

// ClassifyResponse is the serialized classification verdict.
type ClassifyResponse struct {
	Classification     classification.Classification `json:"classification"`
	Category           classification.Category       `json:"category,omitempty"`
	EncryptionTier     classification.EncryptionTier `json:"encryption_tier"`
	RequiredConsents   []consent.Type                `json:"required_consents,omitempty"`
	ProcessingPurposes []string                      `json:"processing_purposes,omitempty"`
	CollectedAt        time.Time                     `json:"collected_at"`
	RetentionUntil     time.Time                     `json:"retention_until"`
	GeoRestrictions    []string                      `json:"geo_restrictions,omitempty"`
}

// CheckResponse is the gate's access decision.
type CheckResponse struct {
	Compliant bool   `json:"compliant"`
	Reason    string `json:"reason,omitempty"`
}

// DPIAResponse is the serialized impact assessment for a data category.
type DPIAResponse struct {
	Category      classification.Category  `json:"category"`
	RiskLevel     classification.RiskLevel `json:"risk_level"`
	Mitigations   []string                 `json:"mitigations"`
	LegalBases    []string                 `json:"legal_bases"`
	RetentionDays int                      `json:"retention_days"`
}

// StatusResponse is the deployment's GDPR posture plus ledger-wide consent
// counts.
type StatusResponse struct {
	ComplianceLevel string `json:"compliance_level"`
	ConsentRequired bool   `json:"consent_required"`
	RightToErasure  bool   `json:"right_to_erasure"`
	DataPortability bool   `json:"data_portability"`
	RetentionDays   int    `json:"retention_days"`
	TotalConsents   int    `json:"total_consents"`
	ActiveConsents  int    `json:"active_consents"`
	ExpiredConsents int    `json:"expired_consents"`
}

func toDPIAResponse(a classification.Assessment) *DPIAResponse {
	return &DPIAResponse{
		Category:      a.Category,
		RiskLevel:     a.RiskLevel,
		Mitigations:   a.Mitigations,
		LegalBases:    a.LegalBases,
		RetentionDays: a.RetentionDays,
	}
}

func toClassifyResponse(m classification.Metadata) *ClassifyResponse {
	return &ClassifyResponse{
		Classification:     m.Classification,
		Category:           m.Category,
		EncryptionTier:     m.EncryptionTier,
		RequiredConsents:   m.RequiredConsents,
		ProcessingPurposes: m.ProcessingPurposes,
		CollectedAt:        m.CollectedAt,
		RetentionUntil:     m.RetentionUntil,
		GeoRestrictions:    m.GeoRestrictions,
	}
}
