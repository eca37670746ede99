package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"custodia/internal/audit/models"
	dErrors "custodia/pkg/domain-errors"
)

// PostgresStore persists audit entries in PostgreSQL. The archived tier is a
// column rather than a second table so queries span both tiers without a
// union; a real cold-storage deployment would swap the Archive implementation.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry *models.Entry) error {
	if entry == nil || entry.ID == "" {
		return dErrors.New(dErrors.CodeValidation, "audit entry with id required")
	}

	details, err := json.Marshal(entry.Details)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "audit details not serializable")
	}

	query := `
		INSERT INTO audit_entries (
			id, ts, event_type, severity, user_id, session_id, action, resource,
			details, result, error_message, ip_address, user_agent,
			gdpr_relevant, hipaa_relevant, data_classification, consent_verified,
			request_id, trace_id, archived
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, FALSE)
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Timestamp,
		string(entry.EventType),
		string(entry.Severity),
		nullable(entry.UserID),
		entry.SessionID,
		entry.Action,
		entry.Resource,
		details,
		string(entry.Result),
		nullable(entry.ErrorMessage),
		entry.IPAddress,
		entry.UserAgent,
		entry.Compliance.GDPRRelevant,
		entry.Compliance.HIPAARelevant,
		entry.Compliance.DataClassification,
		entry.Compliance.ConsentVerified,
		entry.RequestID,
		nullable(entry.TraceID),
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to append audit entry")
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, filter models.Filter) ([]*models.Entry, error) {
	query := `
		SELECT id, ts, event_type, severity, user_id, session_id, action, resource,
			details, result, error_message, ip_address, user_agent,
			gdpr_relevant, hipaa_relevant, data_classification, consent_verified,
			request_id, trace_id
		FROM audit_entries
		WHERE 1=1
	`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.UserID != "" {
		query += " AND user_id = " + arg(filter.UserID)
	}
	if filter.EventType != nil {
		query += " AND event_type = " + arg(string(*filter.EventType))
	}
	if filter.Severity != nil {
		query += " AND severity = " + arg(string(*filter.Severity))
	}
	if filter.From != nil {
		query += " AND ts >= " + arg(*filter.From)
	}
	if filter.To != nil {
		query += " AND ts <= " + arg(*filter.To)
	}
	if filter.GDPRRelevant != nil {
		query += " AND gdpr_relevant = " + arg(*filter.GDPRRelevant)
	}
	if filter.HIPAARelevant != nil {
		query += " AND hipaa_relevant = " + arg(*filter.HIPAARelevant)
	}
	query += " ORDER BY ts, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to query audit entries")
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to read audit entries")
	}
	return entries, nil
}

func (s *PostgresStore) Archive(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE audit_entries SET archived = TRUE WHERE archived = FALSE AND ts < $1`, before)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodePersistence, "failed to archive audit entries")
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodePersistence, "failed to count archived entries")
	}
	return int(moved), nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, cutoffs map[string]time.Time, defaultCutoff time.Time) ([]string, error) {
	var purged []string
	labels := make([]string, 0, len(cutoffs))

	for label, cutoff := range cutoffs {
		labels = append(labels, label)
		ids, err := s.deleteReturning(ctx,
			`DELETE FROM audit_entries WHERE data_classification = $1 AND ts < $2 RETURNING id`,
			label, cutoff)
		if err != nil {
			return nil, err
		}
		purged = append(purged, ids...)
	}

	query := `DELETE FROM audit_entries WHERE ts < $1`
	args := []any{defaultCutoff}
	for i, label := range labels {
		query += fmt.Sprintf(" AND data_classification <> $%d", i+2)
		args = append(args, label)
	}
	query += " RETURNING id"
	ids, err := s.deleteReturning(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return append(purged, ids...), nil
}

func (s *PostgresStore) deleteReturning(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to purge audit entries")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to scan purged id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to read purged ids")
	}
	return ids, nil
}

func scanEntry(rows *sql.Rows) (*models.Entry, error) {
	var (
		entry        models.Entry
		userID       sql.NullString
		errorMessage sql.NullString
		traceID      sql.NullString
		details      []byte
		eventType    string
		severity     string
		result       string
	)
	err := rows.Scan(
		&entry.ID, &entry.Timestamp, &eventType, &severity, &userID,
		&entry.SessionID, &entry.Action, &entry.Resource, &details, &result,
		&errorMessage, &entry.IPAddress, &entry.UserAgent,
		&entry.Compliance.GDPRRelevant, &entry.Compliance.HIPAARelevant,
		&entry.Compliance.DataClassification, &entry.Compliance.ConsentVerified,
		&entry.RequestID, &traceID,
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to scan audit entry")
	}
	entry.EventType = models.EventType(eventType)
	entry.Severity = models.Severity(severity)
	entry.Result = models.Result(result)
	entry.UserID = userID.String
	entry.ErrorMessage = errorMessage.String
	entry.TraceID = traceID.String
	if len(details) > 0 {
		if err := json.Unmarshal(details, &entry.Details); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to decode audit details")
		}
	}
	return &entry, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
