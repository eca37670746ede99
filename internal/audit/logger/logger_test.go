package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/internal/audit/models"
	"custodia/internal/audit/store"
	dErrors "custodia/pkg/domain-errors"
)

type failingStore struct {
	store.Store
	appendErr error
}

func (f *failingStore) Append(_ context.Context, _ *models.Entry) error {
	return f.appendErr
}

type captureNotifier struct {
	entries []*models.Entry
}

func (c *captureNotifier) Forward(entry *models.Entry) {
	c.entries = append(c.entries, entry)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLogger(t *testing.T, opts ...Option) (*Logger, *store.InMemoryStore) {
	t.Helper()
	s := store.NewInMemory()
	return New(s, discard(), opts...), s
}

func accessRequest() Request {
	return Request{
		EventType:          models.EventDataAccess,
		UserID:             "user-1",
		Action:             "READ",
		Resource:           "record/med-1",
		Result:             models.ResultSuccess,
		IPAddress:          "10.0.0.1",
		UserAgent:          "custodia-test",
		ConsentVerified:    true,
		DataClassification: "medical",
	}
}

func TestLogPersistsBeforeReturning(t *testing.T) {
	audit, s := newTestLogger(t)

	id, err := audit.Log(context.Background(), accessRequest())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "audit_"))

	entries, err := s.Query(context.Background(), models.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, models.SeverityLow, entries[0].Severity)
	assert.True(t, entries[0].Compliance.GDPRRelevant)
	assert.True(t, entries[0].Compliance.HIPAARelevant)
	assert.NotEmpty(t, entries[0].SessionID)
	assert.NotEmpty(t, entries[0].RequestID)
}

func TestLogDerivesSeverityFromRuleTable(t *testing.T) {
	audit, s := newTestLogger(t)

	scenarios := []struct {
		eventType models.EventType
		result    models.Result
		want      models.Severity
	}{
		{models.EventDataAccess, models.ResultFailure, models.SeverityHigh},
		{models.EventDataModification, models.ResultFailure, models.SeverityHigh},
		{models.EventSecurityEvent, models.ResultFailure, models.SeverityCritical},
		{models.EventConsentChange, models.ResultFailure, models.SeverityMedium},
		{models.EventDataDeletion, models.ResultSuccess, models.SeverityHigh},
		{models.EventDataExport, models.ResultSuccess, models.SeverityHigh},
		{models.EventAdminAction, models.ResultSuccess, models.SeverityMedium},
		{models.EventSecurityEvent, models.ResultSuccess, models.SeverityMedium},
		{models.EventDataAccess, models.ResultSuccess, models.SeverityLow},
	}
	for _, sc := range scenarios {
		req := accessRequest()
		req.EventType = sc.eventType
		req.Result = sc.result
		id, err := audit.Log(context.Background(), req)
		require.NoError(t, err)

		entries, err := s.Query(context.Background(), models.Filter{})
		require.NoError(t, err)
		for _, entry := range entries {
			if entry.ID == id {
				assert.Equal(t, sc.want, entry.Severity, "%s/%s", sc.eventType, sc.result)
			}
		}
	}
}

func TestLogValidation(t *testing.T) {
	audit, _ := newTestLogger(t)

	req := accessRequest()
	req.EventType = "birthday_party"
	_, err := audit.Log(context.Background(), req)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	req = accessRequest()
	req.Action = ""
	_, err = audit.Log(context.Background(), req)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	req = accessRequest()
	req.Result = "maybe"
	_, err = audit.Log(context.Background(), req)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestLogPersistenceFailureSurfaces(t *testing.T) {
	failing := &failingStore{appendErr: dErrors.New(dErrors.CodeInternal, "disk full")}
	audit := New(failing, discard())

	_, err := audit.Log(context.Background(), accessRequest())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodePersistence))
}

func TestLogForwardsHighSeverityToNotifier(t *testing.T) {
	notifier := &captureNotifier{}
	audit, _ := newTestLogger(t, WithNotifier(notifier))

	// Low severity: not forwarded.
	_, err := audit.Log(context.Background(), accessRequest())
	require.NoError(t, err)
	assert.Empty(t, notifier.entries)

	req := accessRequest()
	req.EventType = models.EventSecurityEvent
	req.Result = models.ResultFailure
	_, err = audit.Log(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, notifier.entries, 1)
	assert.Equal(t, models.SeverityCritical, notifier.entries[0].Severity)
}

func TestUserTrailMostRecentFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := base
	audit, _ := newTestLogger(t, WithClock(func() time.Time { return now }))

	for i := 0; i < 3; i++ {
		_, err := audit.Log(context.Background(), accessRequest())
		require.NoError(t, err)
		now = now.Add(time.Hour)
	}

	trail, err := audit.UserTrail(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, trail, 3)
	for i := 1; i < len(trail); i++ {
		assert.False(t, trail[i].Timestamp.After(trail[i-1].Timestamp))
	}
}

func TestVerifyIntegrity(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := base
	audit, s := newTestLogger(t, WithClock(func() time.Time { return now }))

	_, err := audit.Log(context.Background(), accessRequest())
	require.NoError(t, err)
	now = now.Add(time.Hour)
	_, err = audit.Log(context.Background(), accessRequest())
	require.NoError(t, err)

	report, err := audit.VerifyIntegrity(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Issues)

	// An entry appended with an earlier timestamp breaks monotonic order.
	require.NoError(t, s.Append(context.Background(), &models.Entry{
		ID:        "backdated",
		Timestamp: base.Add(-time.Hour),
		EventType: models.EventDataAccess,
		Severity:  models.SeverityLow,
		Action:    "READ",
		Resource:  "record/1",
		Result:    models.ResultSuccess,
	}))

	report, err = audit.VerifyIntegrity(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Valid)
	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0], "out of order")
}

func TestVerifyIntegrityFlagsCriticalEntries(t *testing.T) {
	audit, _ := newTestLogger(t)

	req := accessRequest()
	req.EventType = models.EventSecurityEvent
	req.Result = models.ResultFailure
	_, err := audit.Log(context.Background(), req)
	require.NoError(t, err)

	report, err := audit.VerifyIntegrity(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Valid)
	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0], "critical")
}

func TestArchiveMovesOldEntriesOnly(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := base
	audit, s := newTestLogger(t,
		WithClock(func() time.Time { return now }),
		WithArchiveThreshold(90*24*time.Hour),
	)

	oldID, err := audit.Log(context.Background(), accessRequest())
	require.NoError(t, err)

	now = base.Add(100 * 24 * time.Hour)
	newID, err := audit.Log(context.Background(), accessRequest())
	require.NoError(t, err)

	moved, err := audit.Archive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	archived, err := s.Archived(oldID)
	require.NoError(t, err)
	assert.True(t, archived)
	archived, err = s.Archived(newID)
	require.NoError(t, err)
	assert.False(t, archived)
}

func TestCleanupPurgesByCategoryHorizon(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	audit, s := newTestLogger(t, WithClock(func() time.Time { return now }))

	req := accessRequest()
	req.DataClassification = "biometric_data"
	biometricID, err := audit.Log(context.Background(), req)
	require.NoError(t, err)

	req = accessRequest()
	req.DataClassification = "medical_history"
	medicalID, err := audit.Log(context.Background(), req)
	require.NoError(t, err)

	// Past the 5y biometric horizon but inside the 7y medical-history one.
	now = base.Add(2000 * 24 * time.Hour)
	removed, err := audit.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	entries, err := s.Query(context.Background(), models.Filter{})
	require.NoError(t, err)

	ids := make([]string, 0, len(entries))
	var meta *models.Entry
	for _, entry := range entries {
		ids = append(ids, entry.ID)
		if entry.EventType == models.EventDataDeletion {
			meta = entry
		}
	}
	assert.NotContains(t, ids, biometricID)
	assert.Contains(t, ids, medicalID)

	// Exactly one meta-entry documents the purge batch.
	require.NotNil(t, meta)
	assert.Equal(t, "RETENTION_PURGE", meta.Action)
	assert.Equal(t, DeletionReasonRetention, meta.Details["reason"])
	assert.Equal(t, 1, meta.Details["count"])
	assert.Contains(t, meta.Details["purgedIds"], biometricID)

	// Idempotent: nothing newly expired, no purge, no extra meta-entry.
	removed, err = audit.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	after, err := s.Query(context.Background(), models.Filter{})
	require.NoError(t, err)
	assert.Len(t, after, len(entries))
}
