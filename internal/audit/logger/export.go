package logger

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"time"

	"custodia/internal/audit/models"
	"custodia/internal/platform/privacy"
	dErrors "custodia/pkg/domain-errors"
)

// ExportFormat selects the regulator-facing serialization.
type ExportFormat string

const (
	FormatJSON            ExportFormat = "json"
	FormatStructuredTable ExportFormat = "structuredTable"
)

// IsValid checks if the format is one of the supported enum values.
func (f ExportFormat) IsValid() bool {
	return f == FormatJSON || f == FormatStructuredTable
}

// exportColumns is the fixed regulatory column order for structured-table
// output. Do not reorder.
var exportColumns = []string{
	"id", "timestamp", "eventType", "severity", "userId", "action",
	"resource", "result", "ipAddress", "gdprRelevant", "hipaaRelevant",
}

type exportRow struct {
	ID            string         `json:"id"`
	Timestamp     string         `json:"timestamp"`
	EventType     string         `json:"eventType"`
	Severity      string         `json:"severity"`
	UserID        string         `json:"userId,omitempty"`
	Action        string         `json:"action"`
	Resource      string         `json:"resource"`
	Result        string         `json:"result"`
	IPAddress     string         `json:"ipAddress"`
	ComplianceRaw map[string]any `json:"complianceFlags"`
}

// ExportForAudit serializes entries in the date range for a regulator.
// Read-only; every row carries its compliance flags so the regulator can
// filter without re-deriving them, and IP addresses are anonymized before
// they leave the system.
func (l *Logger) ExportForAudit(ctx context.Context, from, to time.Time, format ExportFormat) ([]byte, error) {
	if !format.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unsupported export format")
	}
	entries, err := l.store.Query(ctx, models.Filter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}

	if format == FormatStructuredTable {
		return exportTable(entries)
	}
	return exportJSON(entries)
}

func exportJSON(entries []*models.Entry) ([]byte, error) {
	rows := make([]exportRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, exportRow{
			ID:        entry.ID,
			Timestamp: entry.Timestamp.Format(time.RFC3339),
			EventType: string(entry.EventType),
			Severity:  string(entry.Severity),
			UserID:    entry.UserID,
			Action:    entry.Action,
			Resource:  entry.Resource,
			Result:    string(entry.Result),
			IPAddress: privacy.AnonymizeIP(entry.IPAddress),
			ComplianceRaw: map[string]any{
				"gdprRelevant":       entry.Compliance.GDPRRelevant,
				"hipaaRelevant":      entry.Compliance.HIPAARelevant,
				"dataClassification": entry.Compliance.DataClassification,
				"consentVerified":    entry.Compliance.ConsentVerified,
			},
		})
	}
	return json.MarshalIndent(rows, "", "  ")
}

func exportTable(entries []*models.Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportColumns); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export header")
	}
	for _, entry := range entries {
		record := []string{
			entry.ID,
			entry.Timestamp.Format(time.RFC3339),
			string(entry.EventType),
			string(entry.Severity),
			entry.UserID,
			entry.Action,
			entry.Resource,
			string(entry.Result),
			privacy.AnonymizeIP(entry.IPAddress),
			strconv.FormatBool(entry.Compliance.GDPRRelevant),
			strconv.FormatBool(entry.Compliance.HIPAARelevant),
		}
		if err := w.Write(record); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to flush export")
	}
	return buf.Bytes(), nil
}

// Summary aggregates entries in a date range for compliance reporting.
type Summary struct {
	TotalEvents       int
	EventsByType      map[models.EventType]int
	EventsBySeverity  map[models.Severity]int
	GDPREvents        int
	HIPAAEvents       int
	SecurityIncidents int
	ConsentChanges    int
	DataDeletions     int
}

// Summarize counts entries between from and to for compliance reporting.
func (l *Logger) Summarize(ctx context.Context, from, to time.Time) (Summary, error) {
	entries, err := l.store.Query(ctx, models.Filter{From: &from, To: &to})
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		EventsByType:     make(map[models.EventType]int),
		EventsBySeverity: make(map[models.Severity]int),
	}
	for _, entry := range entries {
		summary.TotalEvents++
		summary.EventsByType[entry.EventType]++
		summary.EventsBySeverity[entry.Severity]++
		if entry.Compliance.GDPRRelevant {
			summary.GDPREvents++
		}
		if entry.Compliance.HIPAARelevant {
			summary.HIPAAEvents++
		}
		switch entry.EventType {
		case models.EventSecurityEvent:
			summary.SecurityIncidents++
		case models.EventConsentChange:
			summary.ConsentChanges++
		case models.EventDataDeletion:
			summary.DataDeletions++
		}
	}
	return summary, nil
}
