package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"custodia/internal/consent/models"
	dErrors "custodia/pkg/domain-errors"
)

// PostgresStore persists consent history in PostgreSQL. Writes for a
// (user, type) pair serialize on a row lock over the current record, which
// also makes the last-writer-by-timestamp resolution atomic.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed consent store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const currentRecordQuery = `
	SELECT id, user_id, consent_type, granted, granted_at, expires_at,
		withdrawn_at, superseded_at, source, ip_address, purpose, version
	FROM consent_records
	WHERE user_id = $1 AND consent_type = $2
		AND withdrawn_at IS NULL AND superseded_at IS NULL
	ORDER BY granted_at DESC
	LIMIT 1
`

func (s *PostgresStore) Grant(ctx context.Context, record *models.Record) (*models.Record, error) {
	if record == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "consent record required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to begin consent transaction")
	}
	defer tx.Rollback()

	current, err := scanRecord(tx.QueryRowContext(ctx, currentRecordQuery+" FOR UPDATE", record.UserID, string(record.Type)))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	stored := *record
	var winner *models.Record

	if current != nil && current.GrantedAt.After(record.GrantedAt) {
		supersededAt := current.GrantedAt
		stored.SupersededAt = &supersededAt
		winner = current
	} else {
		if current != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE consent_records SET superseded_at = $1 WHERE id = $2`,
				record.GrantedAt, current.ID); err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to supersede consent record")
			}
		}
		winner = &stored
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO consent_records (
			id, user_id, consent_type, granted, granted_at, expires_at,
			withdrawn_at, superseded_at, source, ip_address, purpose, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		stored.ID, stored.UserID, string(stored.Type), stored.Granted,
		stored.GrantedAt, stored.ExpiresAt, stored.WithdrawnAt,
		stored.SupersededAt, string(stored.Source), stored.IPAddress,
		stored.Purpose, stored.Version,
	); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to insert consent record")
	}

	if err := tx.Commit(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to commit consent record")
	}
	result := *winner
	return &result, nil
}

func (s *PostgresStore) Withdraw(ctx context.Context, userID string, consentType models.Type, at time.Time) (*models.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to begin consent transaction")
	}
	defer tx.Rollback()

	current, err := scanRecord(tx.QueryRowContext(ctx, currentRecordQuery+" FOR UPDATE", userID, string(consentType)))
	if err != nil {
		return nil, err
	}
	if !current.Granted {
		return nil, ErrNotFound
	}
	if current.GrantedAt.After(at) {
		// Grant is newer than the withdrawal: the grant wins; nothing changes.
		if err := tx.Commit(); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to commit consent withdrawal")
		}
		return current, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE consent_records SET withdrawn_at = $1 WHERE id = $2`, at, current.ID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to withdraw consent")
	}
	if err := tx.Commit(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to commit consent withdrawal")
	}
	withdrawnAt := at
	current.WithdrawnAt = &withdrawnAt
	return current, nil
}

func (s *PostgresStore) FindCurrent(ctx context.Context, userID string, consentType models.Type) (*models.Record, error) {
	return scanRecord(s.db.QueryRowContext(ctx, currentRecordQuery, userID, string(consentType)))
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*models.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, consent_type, granted, granted_at, expires_at,
			withdrawn_at, superseded_at, source, ip_address, purpose, version
		FROM consent_records
		WHERE user_id = $1
		ORDER BY granted_at
	`, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list consent records")
	}
	defer rows.Close()

	var history []*models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, record)
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to read consent records")
	}
	return history, nil
}

func (s *PostgresStore) Counts(ctx context.Context, now time.Time) (models.LedgerCounts, error) {
	var counts models.LedgerCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE granted AND withdrawn_at IS NULL AND superseded_at IS NULL
				AND (expires_at IS NULL OR expires_at >= $1)),
			COUNT(*) FILTER (WHERE granted AND withdrawn_at IS NULL AND superseded_at IS NULL
				AND expires_at IS NOT NULL AND expires_at < $1)
		FROM consent_records
	`, now).Scan(&counts.Total, &counts.Active, &counts.Expired)
	if err != nil {
		return models.LedgerCounts{}, dErrors.Wrap(err, dErrors.CodePersistence, "failed to count consent records")
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		record       models.Record
		consentType  string
		source       string
		expiresAt    sql.NullTime
		withdrawnAt  sql.NullTime
		supersededAt sql.NullTime
	)
	err := row.Scan(
		&record.ID, &record.UserID, &consentType, &record.Granted,
		&record.GrantedAt, &expiresAt, &withdrawnAt, &supersededAt,
		&source, &record.IPAddress, &record.Purpose, &record.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to scan consent record")
	}
	record.Type = models.Type(consentType)
	record.Source = models.Source(source)
	if expiresAt.Valid {
		record.ExpiresAt = &expiresAt.Time
	}
	if withdrawnAt.Valid {
		record.WithdrawnAt = &withdrawnAt.Time
	}
	if supersededAt.Valid {
		record.SupersededAt = &supersededAt.Time
	}
	return &record, nil
}
