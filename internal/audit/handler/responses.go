package handler

import (
	"time"

	"custodia/internal/audit/logger"
	"custodia/internal/audit/models"
)

// AuditEntry is the HTTP representation of one audit record.
type AuditEntry struct {
	ID            string           `json:"id"`
	Timestamp     time.Time        `json:"timestamp"`
	EventType     models.EventType `json:"event_type"`
	Severity      models.Severity  `json:"severity"`
	UserID        string           `json:"user_id,omitempty"`
	SessionID     string           `json:"session_id,omitempty"`
	Action        string           `json:"action"`
	Resource      string           `json:"resource"`
	Details       map[string]any   `json:"details,omitempty"`
	Result        models.Result    `json:"result"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	IPAddress     string           `json:"ip_address,omitempty"`
	UserAgent     string           `json:"user_agent,omitempty"`
	GDPRRelevant  bool             `json:"gdpr_relevant"`
	HIPAARelevant bool             `json:"hipaa_relevant"`
	RequestID     string           `json:"request_id,omitempty"`
	TraceID       string           `json:"trace_id,omitempty"`
}

// EntriesResponse lists audit entries in append order.
type EntriesResponse struct {
	Entries []*AuditEntry `json:"entries"`
	Count   int           `json:"count"`
}

// IntegrityResponse reports the outcome of the integrity pass.
type IntegrityResponse struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
}

// SummaryResponse aggregates the trail for a reporting period.
type SummaryResponse struct {
	TotalEvents       int                      `json:"total_events"`
	EventsByType      map[models.EventType]int `json:"events_by_type"`
	EventsBySeverity  map[models.Severity]int  `json:"events_by_severity"`
	GDPREvents        int                      `json:"gdpr_events"`
	HIPAAEvents       int                      `json:"hipaa_events"`
	SecurityIncidents int                      `json:"security_incidents"`
	ConsentChanges    int                      `json:"consent_changes"`
	DataDeletions     int                      `json:"data_deletions"`
}

func toEntry(e *models.Entry) *AuditEntry {
	return &AuditEntry{
		ID:            e.ID,
		Timestamp:     e.Timestamp,
		EventType:     e.EventType,
		Severity:      e.Severity,
		UserID:        e.UserID,
		SessionID:     e.SessionID,
		Action:        e.Action,
		Resource:      e.Resource,
		Details:       e.Details,
		Result:        e.Result,
		ErrorMessage:  e.ErrorMessage,
		IPAddress:     e.IPAddress,
		UserAgent:     e.UserAgent,
		GDPRRelevant:  e.Compliance.GDPRRelevant,
		HIPAARelevant: e.Compliance.HIPAARelevant,
		RequestID:     e.RequestID,
		TraceID:       e.TraceID,
	}
}

func toEntriesResponse(entries []*models.Entry) *EntriesResponse {
	out := make([]*AuditEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toEntry(entry))
	}
	return &EntriesResponse{Entries: out, Count: len(out)}
}

func toSummaryResponse(s logger.Summary) *SummaryResponse {
	return &SummaryResponse{
		TotalEvents:       s.TotalEvents,
		EventsByType:      s.EventsByType,
		EventsBySeverity:  s.EventsBySeverity,
		GDPREvents:        s.GDPREvents,
		HIPAAEvents:       s.HIPAAEvents,
		SecurityIncidents: s.SecurityIncidents,
		ConsentChanges:    s.ConsentChanges,
		DataDeletions:     s.DataDeletions,
	}
}
