package classification

import (
	"time"

	consent "custodia/internal/consent/models"
	dErrors "custodia/pkg/domain-errors"
)

// Fields is the normalized field set of a payload: the declared shape, not
// the content. Classification decisions key on field presence only.
type Fields map[string]any

func (f Fields) has(keys ...string) bool {
	for _, key := range keys {
		if v, ok := f[key]; ok && v != nil {
			return true
		}
	}
	return false
}

// Metadata is the classifier's verdict, attached to each protected payload.
type Metadata struct {
	Classification     Classification
	Category           Category
	EncryptionTier     EncryptionTier
	RequiredConsents   []consent.Type
	ProcessingPurposes []string
	CollectedAt        time.Time
	RetentionUntil     time.Time
	GeoRestrictions    []string
}

// levelRule maps a field-presence predicate to a classification level.
// Rules are evaluated top to bottom, most sensitive first, first match wins.
type levelRule struct {
	name  string
	match func(Fields) bool
	level Classification
}

var levelRules = []levelRule{
	{
		name:  "personal health markers",
		match: func(f Fields) bool { return f.has("personalInfo", "medicalHistory", "biometricData") },
		level: Medical,
	},
	{
		name:  "usage patterns tied to a user",
		match: func(f Fields) bool { return f.has("supplementUsage") && f.has("userId") },
		level: Restricted,
	},
	{
		name:  "product metadata",
		match: func(f Fields) bool { return f.has("supplementInfo") },
		level: Confidential,
	},
	{
		name:  "editorial content",
		match: func(f Fields) bool { return f.has("educationalContent") },
		level: Internal,
	},
}

// categoryRule assigns the medical category; independent of the level rules
// but keyed on the same markers.
type categoryRule struct {
	match    func(Fields) bool
	category Category
}

var categoryRules = []categoryRule{
	{func(f Fields) bool { return f.has("medicalHistory", "diagnoses", "treatments") }, CategoryMedicalHistory},
	{func(f Fields) bool { return f.has("biometricData", "vitalSigns", "labResults") }, CategoryBiometricData},
	{func(f Fields) bool { return f.has("treatmentPlans", "medicationSchedules") }, CategoryTreatmentPlans},
	{func(f Fields) bool { return f.has("researchParticipation", "studyData") }, CategoryResearchData},
	{func(f Fields) bool { return f.has("healthMetrics", "wellnessScores") }, CategoryHealthMetrics},
}

// geoRestrictions is the GDPR geographic scope applied to every classified payload.
var geoRestrictions = []string{"EU", "EEA"}

// Classifier assigns classification metadata to payload shapes. It is a pure
// rule table: no I/O, no randomness, same payload always classifies the same.
type Classifier struct {
	clock                func() time.Time
	defaultRetentionDays int
}

// Option configures the Classifier.
type Option func(*Classifier)

// WithClock overrides the time source, used by tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Classifier) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithDefaultRetentionDays sets the deployment's general medical-data
// retention horizon applied to categories without a fixed statutory horizon.
func WithDefaultRetentionDays(days int) Option {
	return func(c *Classifier) {
		if days > 0 {
			c.defaultRetentionDays = days
		}
	}
}

// New constructs a Classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		clock:                time.Now,
		defaultRetentionDays: DefaultRetentionDays,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify inspects a payload's declared shape and returns its classification
// metadata. RetentionUntil is CollectedAt plus the category horizon; that
// field is the only source of truth for later cleanup.
func (c *Classifier) Classify(fields Fields) (Metadata, error) {
	if fields == nil {
		return Metadata{}, dErrors.New(dErrors.CodeValidation, "payload fields required")
	}

	level := Public
	for _, rule := range levelRules {
		if rule.match(fields) {
			level = rule.level
			break
		}
	}

	category := CategorySupplementUsage
	for _, rule := range categoryRules {
		if rule.match(fields) {
			category = rule.category
			break
		}
	}

	now := c.clock().UTC()
	return Metadata{
		Classification:     level,
		Category:           category,
		EncryptionTier:     TierFor(level),
		RequiredConsents:   RequiredConsents(level, category),
		ProcessingPurposes: ProcessingPurposes(category),
		CollectedAt:        now,
		RetentionUntil:     now.Add(HorizonFor(category, c.defaultRetentionDays)),
		GeoRestrictions:    append([]string(nil), geoRestrictions...),
	}, nil
}

// RequiredConsents is the fixed lookup keyed by (classification, category).
// Necessary consent is always present; the additional types depend on how and
// why the data is sensitive.
func RequiredConsents(level Classification, category Category) []consent.Type {
	base := []consent.Type{consent.TypeNecessary}
	switch level {
	case Medical:
		switch category {
		case CategoryBiometricData:
			return append(base, consent.TypeMedicalTracking, consent.TypeResearch)
		case CategoryHealthMetrics:
			return append(base, consent.TypeAnalytics, consent.TypeMedicalTracking)
		case CategoryResearchData:
			return append(base, consent.TypeResearch)
		case CategoryMedicalHistory, CategoryTreatmentPlans, CategorySupplementUsage:
			return append(base, consent.TypeMedicalTracking)
		default:
			return append(base, consent.TypeMedicalTracking)
		}
	case Restricted:
		return append(base, consent.TypeAnalytics)
	case Confidential, Internal, Public:
		return base
	default:
		return base
	}
}

// ProcessingPurposes returns the declared purposes for a category.
func ProcessingPurposes(category Category) []string {
	purposes := []string{"educational_content_delivery"}
	switch category {
	case CategorySupplementUsage:
		return append(purposes, "supplement_recommendations", "usage_analytics")
	case CategoryHealthMetrics:
		return append(purposes, "health_trend_analysis", "personalized_insights")
	case CategoryMedicalHistory:
		return append(purposes, "safety_monitoring", "interaction_checking")
	case CategoryBiometricData:
		return append(purposes, "research_insights", "population_health")
	case CategoryTreatmentPlans, CategoryResearchData:
		return purposes
	default:
		return purposes
	}
}
