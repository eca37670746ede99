package retention

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditlogger "custodia/internal/audit/logger"
	"custodia/internal/audit/models"
	"custodia/internal/audit/store"
)

type fakeAudit struct {
	archived   int
	purged     int
	archiveErr error
	cleanupErr error
	calls      []string
}

func (f *fakeAudit) Archive(_ context.Context) (int, error) {
	f.calls = append(f.calls, "archive")
	return f.archived, f.archiveErr
}

func (f *fakeAudit) Cleanup(_ context.Context) (int, error) {
	f.calls = append(f.calls, "cleanup")
	return f.purged, f.cleanupErr
}

func TestRunOnceArchivesBeforePurging(t *testing.T) {
	audit := &fakeAudit{archived: 3, purged: 2}
	svc, err := New(audit)
	require.NoError(t, err)

	res, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.ArchivedEntries)
	assert.Equal(t, 2, res.PurgedEntries)
	assert.Equal(t, []string{"archive", "cleanup"}, audit.calls)
}

func TestRunOnceArchiveFailureDoesNotStopPurge(t *testing.T) {
	audit := &fakeAudit{archiveErr: errors.New("cold tier unavailable"), purged: 1}
	svc, err := New(audit)
	require.NoError(t, err)

	res, err := svc.RunOnce(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1, res.PurgedEntries)
	assert.Equal(t, []string{"archive", "cleanup"}, audit.calls)
}

func TestNewRequiresAuditLog(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestStartStopsOnCancel(t *testing.T) {
	svc, err := New(&fakeAudit{}, WithInterval(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancellation")
	}
}

func TestRunOnce_Integration(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	s := store.NewInMemory()
	audit := auditlogger.New(s,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		auditlogger.WithClock(func() time.Time { return now }),
		auditlogger.WithArchiveThreshold(90*24*time.Hour),
	)

	_, err := audit.Log(context.Background(), auditlogger.Request{
		EventType:          models.EventDataAccess,
		UserID:             "user-1",
		Action:             "READ",
		Resource:           "record/1",
		Result:             models.ResultSuccess,
		IPAddress:          "10.0.0.1",
		DataClassification: "biometric_data",
	})
	require.NoError(t, err)

	svc, err := New(audit, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	// Past the archive threshold but inside the 5y biometric horizon.
	now = base.Add(100 * 24 * time.Hour)
	res, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.ArchivedEntries)
	assert.Equal(t, 0, res.PurgedEntries)

	// Past the biometric horizon: the archived entry is purged and the purge
	// itself is recorded.
	now = base.Add(1900 * 24 * time.Hour)
	res, err = svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.PurgedEntries)

	entries, err := s.Query(context.Background(), models.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.EventDataDeletion, entries[0].EventType)
}
