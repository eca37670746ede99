// Package compliance answers one question before any sensitive operation
// proceeds: is this access compliant right now. The gate composes the
// classifier's verdict with the consent ledger and is deliberately read-only;
// callers record the audit entry themselves using the gate's decision.
package compliance

import (
	"context"
	"fmt"
	"strings"

	"custodia/internal/classification"
	"custodia/internal/consent/models"
	"custodia/internal/platform/config"
	dErrors "custodia/pkg/domain-errors"
)

// Verifier checks whether a user currently holds a set of consents.
type Verifier interface {
	Verify(ctx context.Context, userID string, required []models.Type) (*models.Verification, error)
}

// Decision is the gate's verdict. Reason is set only when non-compliant.
type Decision struct {
	Compliant bool
	Reason    string
}

// Gate evaluates access requests against deployment policy and consent state.
type Gate struct {
	ledger            Verifier
	protectionEnabled bool
	gdprMode          config.GDPRMode
}

// Policy is the deployment posture the gate enforces, surfaced for status
// reporting.
type Policy struct {
	GDPRMode          config.GDPRMode
	ProtectionEnabled bool
}

func NewGate(ledger Verifier, protectionEnabled bool, gdprMode config.GDPRMode) *Gate {
	return &Gate{
		ledger:            ledger,
		protectionEnabled: protectionEnabled,
		gdprMode:          gdprMode,
	}
}

// Policy returns the posture the gate was constructed with.
func (g *Gate) Policy() Policy {
	return Policy{GDPRMode: g.gdprMode, ProtectionEnabled: g.protectionEnabled}
}

// CheckAccess decides whether userID may perform action on data of the given
// classification. Fail-closed: any policy gap or verification failure denies.
func (g *Gate) CheckAccess(ctx context.Context, userID string, level classification.Classification, action, purpose string) (Decision, error) {
	decision, _, err := g.evaluate(ctx, userID, level)
	return decision, err
}

// Enforce is CheckAccess for callers that need a hard deny instead of a
// verdict to interpret: a non-compliant decision comes back as a coded error
// (missing_consent, expired_consent, or forbidden) that the HTTP layer maps
// to 403.
func (g *Gate) Enforce(ctx context.Context, userID string, level classification.Classification, action, purpose string) error {
	decision, verification, err := g.evaluate(ctx, userID, level)
	if err != nil {
		return err
	}
	if decision.Compliant {
		return nil
	}
	if verification != nil {
		if len(verification.Missing) > 0 {
			return dErrors.New(dErrors.CodeMissingConsent, decision.Reason)
		}
		return dErrors.New(dErrors.CodeExpiredConsent, decision.Reason)
	}
	return dErrors.New(dErrors.CodeForbidden, decision.Reason)
}

// evaluate carries the shared policy walk. The returned verification is
// non-nil only when the denial came from consent state.
func (g *Gate) evaluate(ctx context.Context, userID string, level classification.Classification) (Decision, *models.Verification, error) {
	if !level.IsValid() {
		return Decision{}, nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid classification: %s", level))
	}

	if !g.protectionEnabled {
		return Decision{Compliant: false, Reason: "protection disabled"}, nil, nil
	}

	// Medical data categorically requires the strictest deployment mode.
	// This is deployment policy, not something a caller can override.
	if level == classification.Medical && g.gdprMode != config.GDPRModeStrict {
		return Decision{Compliant: false, Reason: "medical data requires strict GDPR compliance mode"}, nil, nil
	}

	var required []models.Type
	switch level {
	case classification.Medical:
		required = []models.Type{models.TypeMedicalTracking}
	case classification.Restricted:
		required = []models.Type{models.TypeAnalytics}
	default:
		return Decision{Compliant: true}, nil, nil
	}

	if userID == "" {
		return Decision{Compliant: false, Reason: "no user identity for consent check"}, nil, nil
	}

	verification, err := g.ledger.Verify(ctx, userID, required)
	if err != nil {
		return Decision{}, nil, dErrors.Wrap(err, dErrors.CodeInternal, "consent verification failed")
	}
	if !verification.Valid {
		return Decision{Compliant: false, Reason: describeVerification(verification)}, verification, nil
	}
	return Decision{Compliant: true}, nil, nil
}

func describeVerification(v *models.Verification) string {
	var parts []string
	if len(v.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing consent: %s", joinTypes(v.Missing)))
	}
	if len(v.Expired) > 0 {
		parts = append(parts, fmt.Sprintf("expired consent: %s", joinTypes(v.Expired)))
	}
	return strings.Join(parts, "; ")
}

func joinTypes(types []models.Type) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
