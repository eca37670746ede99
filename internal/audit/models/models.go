package models

import "time"

// EventType classifies what kind of action an audit entry records.
type EventType string

const (
	EventDataAccess         EventType = "data_access"
	EventDataModification   EventType = "data_modification"
	EventDataDeletion       EventType = "data_deletion"
	EventDataExport         EventType = "data_export"
	EventConsentChange      EventType = "consent_change"
	EventUserAuthentication EventType = "user_authentication"
	EventAdminAction        EventType = "admin_action"
	EventSecurityEvent      EventType = "security_event"
	EventComplianceCheck    EventType = "compliance_check"
)

// ValidEventTypes is the single source of truth for supported event types.
var ValidEventTypes = map[EventType]bool{
	EventDataAccess:         true,
	EventDataModification:   true,
	EventDataDeletion:       true,
	EventDataExport:         true,
	EventConsentChange:      true,
	EventUserAuthentication: true,
	EventAdminAction:        true,
	EventSecurityEvent:      true,
	EventComplianceCheck:    true,
}

// IsValid checks if the event type is one of the supported enum values.
func (t EventType) IsValid() bool {
	return ValidEventTypes[t]
}

// Severity grades how much attention an entry deserves. It is always derived
// by the logger, never supplied by callers, so risk cannot be under- or
// over-reported at call sites.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRanks = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// IsValid checks if the severity is one of the supported enum values.
func (s Severity) IsValid() bool {
	_, ok := severityRanks[s]
	return ok
}

// AtLeast reports whether s is as severe as other or more so.
func (s Severity) AtLeast(other Severity) bool {
	return severityRanks[s] >= severityRanks[other]
}

// Result is the outcome of the recorded action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultPartial Result = "partial"
)

// IsValid checks if the result is one of the supported enum values.
func (r Result) IsValid() bool {
	return r == ResultSuccess || r == ResultFailure || r == ResultPartial
}

// DeriveSeverity implements the fixed severity rule table.
func DeriveSeverity(eventType EventType, result Result) Severity {
	if result == ResultFailure {
		switch eventType {
		case EventDataAccess, EventDataModification:
			return SeverityHigh
		case EventSecurityEvent:
			return SeverityCritical
		case EventDataDeletion, EventDataExport, EventConsentChange,
			EventUserAuthentication, EventAdminAction, EventComplianceCheck:
			return SeverityMedium
		default:
			return SeverityMedium
		}
	}

	switch eventType {
	case EventDataDeletion, EventDataExport:
		return SeverityHigh
	case EventAdminAction, EventSecurityEvent:
		return SeverityMedium
	case EventDataAccess, EventDataModification, EventConsentChange,
		EventUserAuthentication, EventComplianceCheck:
		return SeverityLow
	default:
		return SeverityLow
	}
}

// GDPRRelevant reports whether the event type falls under GDPR record-keeping.
// The set is fixed taxonomy, not configuration.
func GDPRRelevant(eventType EventType) bool {
	switch eventType {
	case EventDataAccess, EventDataModification, EventDataDeletion,
		EventDataExport, EventConsentChange:
		return true
	default:
		return false
	}
}

// HIPAARelevant reports whether the event type falls under HIPAA audit
// controls. The set is fixed taxonomy, not configuration.
func HIPAARelevant(eventType EventType) bool {
	switch eventType {
	case EventDataAccess, EventDataModification, EventDataDeletion,
		EventAdminAction, EventSecurityEvent:
		return true
	default:
		return false
	}
}

// ComplianceFlags stamp each entry with its regulatory context so exports can
// be filtered without re-deriving anything.
type ComplianceFlags struct {
	GDPRRelevant       bool
	HIPAARelevant      bool
	DataClassification string
	ConsentVerified    bool
}

// Entry is one immutable audit record. It is created exactly once at the
// moment of the triggering action and never mutated afterwards; only its
// storage tier may change when it is archived.
type Entry struct {
	ID           string
	Timestamp    time.Time
	EventType    EventType
	Severity     Severity
	UserID       string
	SessionID    string
	Action       string
	Resource     string
	Details      map[string]any
	Result       Result
	ErrorMessage string
	IPAddress    string
	UserAgent    string
	Compliance   ComplianceFlags
	RequestID    string
	TraceID      string
}

// Clone returns a deep enough copy that callers cannot mutate stored state.
func (e *Entry) Clone() *Entry {
	clone := *e
	if e.Details != nil {
		clone.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			clone.Details[k] = v
		}
	}
	return &clone
}

// Filter selects audit entries; all set fields combine with logical AND.
type Filter struct {
	UserID        string
	EventType     *EventType
	Severity      *Severity
	From          *time.Time
	To            *time.Time
	GDPRRelevant  *bool
	HIPAARelevant *bool
}

// Matches reports whether the entry satisfies every set filter field.
func (f Filter) Matches(e *Entry) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.EventType != nil && e.EventType != *f.EventType {
		return false
	}
	if f.Severity != nil && e.Severity != *f.Severity {
		return false
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	if f.GDPRRelevant != nil && e.Compliance.GDPRRelevant != *f.GDPRRelevant {
		return false
	}
	if f.HIPAARelevant != nil && e.Compliance.HIPAARelevant != *f.HIPAARelevant {
		return false
	}
	return true
}
