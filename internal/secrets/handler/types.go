package handler

import (
	"time"

	"custodia/internal/secrets"
)

// createRequest is the body of POST /admin/secrets.
type createRequest struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Environment string `json:"environment"`
}

// rotateRequest is the body of POST /admin/secrets/{name}/rotate.
type rotateRequest struct {
	Value string `json:"value"`
}

// Secret is a secret's metadata in HTTP responses. The value itself never
// appears here.
type Secret struct {
	Name                 string           `json:"name"`
	Category             secrets.Category `json:"category"`
	Description          string           `json:"description,omitempty"`
	Environment          string           `json:"environment,omitempty"`
	RotationIntervalDays int              `json:"rotation_interval_days"`
	LastRotatedAt        *time.Time       `json:"last_rotated_at,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	GDPRRelevant         bool             `json:"gdpr_relevant"`
	NeedsRotation        bool             `json:"needs_rotation"`
}

// ListResponse lists all stored secrets' metadata.
type ListResponse struct {
	Secrets []*Secret `json:"secrets"`
	Count   int       `json:"count"`
}

func toSecret(name string, meta secrets.Metadata, needsRotation bool) *Secret {
	return &Secret{
		Name:                 name,
		Category:             meta.Category,
		Description:          meta.Description,
		Environment:          meta.Environment,
		RotationIntervalDays: meta.RotationIntervalDays,
		LastRotatedAt:        meta.LastRotatedAt,
		CreatedAt:            meta.CreatedAt,
		GDPRRelevant:         meta.GDPRRelevant,
		NeedsRotation:        needsRotation,
	}
}
