package classification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssessImpact(t *testing.T) {
	t.Run("medical history is high risk with explicit consent basis", func(t *testing.T) {
		assessment := AssessImpact(CategoryMedicalHistory, 0)

		assert.Equal(t, RiskHigh, assessment.RiskLevel)
		assert.Equal(t, RetentionDaysMedicalHistory, assessment.RetentionDays)
		assert.Contains(t, assessment.LegalBases, "explicit_consent")
		assert.Contains(t, assessment.LegalBases, "vital_interests")
		assert.Contains(t, assessment.Mitigations, "Medical professional oversight")
	})

	t.Run("biometric data is high risk on the research basis", func(t *testing.T) {
		assessment := AssessImpact(CategoryBiometricData, 0)

		assert.Equal(t, RiskHigh, assessment.RiskLevel)
		assert.Equal(t, RetentionDaysBiometric, assessment.RetentionDays)
		assert.Contains(t, assessment.LegalBases, "scientific_research")
		assert.Contains(t, assessment.Mitigations, "Enhanced de-identification")
	})

	t.Run("other categories are medium risk with baseline mitigations", func(t *testing.T) {
		assessment := AssessImpact(CategorySupplementUsage, 0)

		assert.Equal(t, RiskMedium, assessment.RiskLevel)
		assert.Equal(t, RetentionDaysBaseline, assessment.RetentionDays)
		assert.Equal(t, baseMitigations, assessment.Mitigations)
		assert.Equal(t, []string{"legitimate_interest", "consent"}, assessment.LegalBases)
	})

	t.Run("deployment retention applies to general categories", func(t *testing.T) {
		assert.Equal(t, 400, AssessImpact(CategoryHealthMetrics, 400).RetentionDays)
		assert.Equal(t, RetentionDaysMedicalHistory, AssessImpact(CategoryMedicalHistory, 400).RetentionDays)
	})

	t.Run("base mitigations never alias across assessments", func(t *testing.T) {
		first := AssessImpact(CategorySupplementUsage, 0)
		first.Mitigations[0] = "mutated"
		assert.Equal(t, "Data encryption at rest and in transit", AssessImpact(CategoryResearchData, 0).Mitigations[0])
	})
}
