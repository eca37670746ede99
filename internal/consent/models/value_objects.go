package models

// Type labels the purpose for which a user authorizes processing. Consent is
// bound per type so withdrawal of one purpose never affects the others.
type Type string

const (
	TypeNecessary       Type = "necessary"
	TypeAnalytics       Type = "analytics"
	TypeMarketing       Type = "marketing"
	TypeResearch        Type = "research"
	TypeMedicalTracking Type = "medical_tracking"
)

// ValidTypes is the single source of truth for supported consent types.
var ValidTypes = map[Type]bool{
	TypeNecessary:       true,
	TypeAnalytics:       true,
	TypeMarketing:       true,
	TypeResearch:        true,
	TypeMedicalTracking: true,
}

// IsValid checks if the consent type is one of the supported enum values.
func (t Type) IsValid() bool {
	return ValidTypes[t]
}

// Expires reports whether grants of this type expire. Necessary consent is
// the legal basis for operating the service at all and never expires.
func (t Type) Expires() bool {
	return t != TypeNecessary
}

// Source identifies the channel a consent decision arrived through.
type Source string

const (
	SourceWeb    Source = "web"
	SourceMobile Source = "mobile"
	SourceAPI    Source = "api"
)

// IsValid checks if the source is one of the supported enum values.
func (s Source) IsValid() bool {
	return s == SourceWeb || s == SourceMobile || s == SourceAPI
}

// Status represents the lifecycle state of a consent record.
type Status string

const (
	StatusActive     Status = "active"
	StatusExpired    Status = "expired"
	StatusWithdrawn  Status = "withdrawn"
	StatusSuperseded Status = "superseded"
)
