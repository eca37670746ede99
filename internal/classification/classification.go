package classification

// Classification is the ordered sensitivity tier assigned to a payload.
// Once assigned it is never silently downgraded.
type Classification string

const (
	Public       Classification = "public"
	Internal     Classification = "internal"
	Confidential Classification = "confidential"
	Restricted   Classification = "restricted"
	Medical      Classification = "medical"
)

var ranks = map[Classification]int{
	Public:       0,
	Internal:     1,
	Confidential: 2,
	Restricted:   3,
	Medical:      4,
}

// IsValid checks if the classification is one of the supported enum values.
func (c Classification) IsValid() bool {
	_, ok := ranks[c]
	return ok
}

// Rank returns the position of the classification in the sensitivity order,
// Public lowest. Unknown classifications rank below Public.
func (c Classification) Rank() int {
	if r, ok := ranks[c]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether c is as sensitive as other or more so.
func (c Classification) AtLeast(other Classification) bool {
	return c.Rank() >= other.Rank()
}

// Category is the regulatory reason a payload is sensitive, orthogonal to how
// sensitive it is.
type Category string

const (
	CategorySupplementUsage Category = "supplement_usage"
	CategoryHealthMetrics   Category = "health_metrics"
	CategoryMedicalHistory  Category = "medical_history"
	CategoryTreatmentPlans  Category = "treatment_plans"
	CategoryBiometricData   Category = "biometric_data"
	CategoryResearchData    Category = "research_data"
)

// ValidCategories is the single source of truth for supported categories.
var ValidCategories = map[Category]bool{
	CategorySupplementUsage: true,
	CategoryHealthMetrics:   true,
	CategoryMedicalHistory:  true,
	CategoryTreatmentPlans:  true,
	CategoryBiometricData:   true,
	CategoryResearchData:    true,
}

// IsValid checks if the category is one of the supported enum values.
func (c Category) IsValid() bool {
	return ValidCategories[c]
}

// EncryptionTier selects the protection level applied to a payload at rest.
type EncryptionTier string

const (
	TierStandard EncryptionTier = "standard"
	TierHigh     EncryptionTier = "high"
	TierMaximum  EncryptionTier = "maximum"
)

// TierFor maps a classification to its encryption tier.
func TierFor(c Classification) EncryptionTier {
	switch c {
	case Medical:
		return TierMaximum
	case Restricted:
		return TierHigh
	case Confidential, Internal, Public:
		return TierStandard
	default:
		return TierStandard
	}
}
