package classification

import "time"

// Retention horizons are regulatory constants (GDPR storage limitation plus
// medical record-keeping law). They are fixed here and must not be derived
// dynamically anywhere else.
const (
	// RetentionDaysMedicalHistory is 7 years.
	RetentionDaysMedicalHistory = 2555
	// RetentionDaysBiometric is 5 years.
	RetentionDaysBiometric = 1825
	// RetentionDaysBaseline is the 3 year floor applied when a deployment
	// configures no general medical-data retention of its own.
	RetentionDaysBaseline = 1095
	// DefaultRetentionDays is the deployment default for all other categories.
	DefaultRetentionDays = 2555
)

// RetentionDays returns the retention horizon in days for a category.
// The defaultDays argument is the deployment's general medical-data retention
// setting; values <= 0 fall back to the baseline.
func RetentionDays(category Category, defaultDays int) int {
	switch category {
	case CategoryMedicalHistory:
		return RetentionDaysMedicalHistory
	case CategoryBiometricData:
		return RetentionDaysBiometric
	case CategorySupplementUsage, CategoryHealthMetrics, CategoryTreatmentPlans, CategoryResearchData:
		if defaultDays > 0 {
			return defaultDays
		}
		return RetentionDaysBaseline
	default:
		if defaultDays > 0 {
			return defaultDays
		}
		return RetentionDaysBaseline
	}
}

// RetentionDaysForLabel resolves a retention horizon from the classification
// label stamped on an audit entry. Labels are category names when the entry
// was produced for classified data; anything else gets the deployment default.
func RetentionDaysForLabel(label string, defaultDays int) int {
	return RetentionDays(Category(label), defaultDays)
}

// HorizonFor returns the retention horizon as a duration.
func HorizonFor(category Category, defaultDays int) time.Duration {
	return time.Duration(RetentionDays(category, defaultDays)) * 24 * time.Hour
}
