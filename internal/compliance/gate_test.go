package compliance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/internal/classification"
	"custodia/internal/consent/models"
	"custodia/internal/platform/config"
	dErrors "custodia/pkg/domain-errors"
)

type stubVerifier struct {
	result   *models.Verification
	err      error
	verified [][]models.Type
}

func (s *stubVerifier) Verify(_ context.Context, _ string, required []models.Type) (*models.Verification, error) {
	s.verified = append(s.verified, required)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestGateDeniesWhenProtectionDisabled(t *testing.T) {
	verifier := &stubVerifier{result: &models.Verification{Valid: true}}
	gate := NewGate(verifier, false, config.GDPRModeStrict)

	decision, err := gate.CheckAccess(context.Background(), "user-1", classification.Public, "read", "reporting")
	require.NoError(t, err)

	assert.False(t, decision.Compliant)
	assert.Equal(t, "protection disabled", decision.Reason)
	assert.Empty(t, verifier.verified, "disabled protection must short-circuit before consent checks")
}

func TestGateDeniesMedicalOutsideStrictMode(t *testing.T) {
	verifier := &stubVerifier{result: &models.Verification{Valid: true}}
	gate := NewGate(verifier, true, config.GDPRModeStandard)

	decision, err := gate.CheckAccess(context.Background(), "user-1", classification.Medical, "read", "treatment")
	require.NoError(t, err)

	assert.False(t, decision.Compliant)
	assert.Contains(t, decision.Reason, "strict")
	assert.Empty(t, verifier.verified)
}

func TestGateMedicalRequiresMedicalTracking(t *testing.T) {
	verifier := &stubVerifier{result: &models.Verification{Valid: true}}
	gate := NewGate(verifier, true, config.GDPRModeStrict)

	decision, err := gate.CheckAccess(context.Background(), "user-1", classification.Medical, "read", "treatment")
	require.NoError(t, err)

	assert.True(t, decision.Compliant)
	require.Len(t, verifier.verified, 1)
	assert.Equal(t, []models.Type{models.TypeMedicalTracking}, verifier.verified[0])
}

func TestGateRestrictedRequiresAnalytics(t *testing.T) {
	verifier := &stubVerifier{result: &models.Verification{
		Valid:   false,
		Missing: []models.Type{models.TypeAnalytics},
	}}
	gate := NewGate(verifier, true, config.GDPRModeStrict)

	decision, err := gate.CheckAccess(context.Background(), "user-1", classification.Restricted, "read", "usage trends")
	require.NoError(t, err)

	assert.False(t, decision.Compliant)
	assert.Contains(t, decision.Reason, "missing consent: analytics")
	require.Len(t, verifier.verified, 1)
	assert.Equal(t, []models.Type{models.TypeAnalytics}, verifier.verified[0])
}

func TestGateExpiredConsentIsReported(t *testing.T) {
	verifier := &stubVerifier{result: &models.Verification{
		Valid:   false,
		Expired: []models.Type{models.TypeMedicalTracking},
	}}
	gate := NewGate(verifier, true, config.GDPRModeStrict)

	decision, err := gate.CheckAccess(context.Background(), "user-1", classification.Medical, "read", "treatment")
	require.NoError(t, err)

	assert.False(t, decision.Compliant)
	assert.Contains(t, decision.Reason, "expired consent: medical_tracking")
}

func TestGateLowerClassificationsAreCompliant(t *testing.T) {
	verifier := &stubVerifier{result: &models.Verification{Valid: false}}
	gate := NewGate(verifier, true, config.GDPRModeStrict)

	for _, level := range []classification.Classification{
		classification.Public, classification.Internal, classification.Confidential,
	} {
		decision, err := gate.CheckAccess(context.Background(), "user-1", level, "read", "catalog")
		require.NoError(t, err)
		assert.True(t, decision.Compliant, "classification %s", level)
	}
	assert.Empty(t, verifier.verified, "lower classifications never consult the ledger")
}

func TestGateDeniesAnonymousSensitiveAccess(t *testing.T) {
	verifier := &stubVerifier{result: &models.Verification{Valid: true}}
	gate := NewGate(verifier, true, config.GDPRModeStrict)

	decision, err := gate.CheckAccess(context.Background(), "", classification.Medical, "read", "treatment")
	require.NoError(t, err)

	assert.False(t, decision.Compliant)
	assert.Empty(t, verifier.verified)
}

func TestGateVerifierErrorPropagates(t *testing.T) {
	verifier := &stubVerifier{err: dErrors.New(dErrors.CodePersistence, "store down")}
	gate := NewGate(verifier, true, config.GDPRModeStrict)

	_, err := gate.CheckAccess(context.Background(), "user-1", classification.Medical, "read", "treatment")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodePersistence))
}

func TestGateEnforce(t *testing.T) {
	t.Run("missing consent yields a missing_consent error", func(t *testing.T) {
		verifier := &stubVerifier{result: &models.Verification{
			Valid:   false,
			Missing: []models.Type{models.TypeMedicalTracking},
		}}
		gate := NewGate(verifier, true, config.GDPRModeStrict)

		err := gate.Enforce(context.Background(), "user-1", classification.Medical, "read", "treatment")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeMissingConsent))
		assert.Contains(t, err.Error(), "missing consent: medical_tracking")
	})

	t.Run("expired consent yields an expired_consent error", func(t *testing.T) {
		verifier := &stubVerifier{result: &models.Verification{
			Valid:   false,
			Expired: []models.Type{models.TypeAnalytics},
		}}
		gate := NewGate(verifier, true, config.GDPRModeStrict)

		err := gate.Enforce(context.Background(), "user-1", classification.Restricted, "read", "usage trends")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeExpiredConsent))
	})

	t.Run("policy denials yield forbidden", func(t *testing.T) {
		gate := NewGate(&stubVerifier{}, true, config.GDPRModeStandard)

		err := gate.Enforce(context.Background(), "user-1", classification.Medical, "read", "treatment")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("valid consent passes", func(t *testing.T) {
		verifier := &stubVerifier{result: &models.Verification{Valid: true}}
		gate := NewGate(verifier, true, config.GDPRModeStrict)

		assert.NoError(t, gate.Enforce(context.Background(), "user-1", classification.Medical, "read", "treatment"))
	})
}

func TestGateRejectsUnknownClassification(t *testing.T) {
	gate := NewGate(&stubVerifier{}, true, config.GDPRModeStrict)

	_, err := gate.CheckAccess(context.Background(), "user-1", "ultra", "read", "x")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
