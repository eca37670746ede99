package classification

// RiskLevel grades the processing risk a data category carries in a data
// protection impact assessment.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Assessment is a data protection impact assessment for one category:
// the processing risk, the mitigations the deployment applies, the GDPR
// legal bases relied on, and the retention horizon in days.
type Assessment struct {
	Category      Category
	RiskLevel     RiskLevel
	Mitigations   []string
	LegalBases    []string
	RetentionDays int
}

// baseMitigations apply to every category regardless of risk.
var baseMitigations = []string{
	"Data encryption at rest and in transit",
	"Access logging and audit trails",
	"Regular security assessments",
	"GDPR compliance monitoring",
}

// AssessImpact produces the impact assessment for a category. Medical history
// and biometric data are high risk with category-specific mitigations and
// explicit-consent legal bases; everything else is medium risk on the general
// bases. The defaultDays argument follows the RetentionDays convention.
func AssessImpact(category Category, defaultDays int) Assessment {
	assessment := Assessment{
		Category:      category,
		RetentionDays: RetentionDays(category, defaultDays),
	}
	switch category {
	case CategoryMedicalHistory:
		assessment.RiskLevel = RiskHigh
		assessment.Mitigations = append(append([]string{}, baseMitigations...),
			"Medical professional oversight",
			"Enhanced consent management",
			"Specialized data classification",
		)
		assessment.LegalBases = []string{"explicit_consent", "vital_interests"}
	case CategoryBiometricData:
		assessment.RiskLevel = RiskHigh
		assessment.Mitigations = append(append([]string{}, baseMitigations...),
			"Biometric data anonymization",
			"Research ethics board approval",
			"Enhanced de-identification",
		)
		assessment.LegalBases = []string{"explicit_consent", "scientific_research"}
	default:
		assessment.RiskLevel = RiskMedium
		assessment.Mitigations = append([]string{}, baseMitigations...)
		assessment.LegalBases = []string{"legitimate_interest", "consent"}
	}
	return assessment
}
