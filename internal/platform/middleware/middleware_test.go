package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/internal/audit/logger"
	auditmodels "custodia/internal/audit/models"
)

func TestRequestID(t *testing.T) {
	t.Run("generates an id when absent", func(t *testing.T) {
		var captured string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetRequestID(r.Context())
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, captured)
		assert.Equal(t, captured, w.Header().Get("X-Request-ID"))
	})

	t.Run("passes through a provided id", func(t *testing.T) {
		var captured string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetRequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-123")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "req-123", captured)
	})
}

func TestUserContext(t *testing.T) {
	var captured string
	handler := UserContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetUserID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "user-7")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "user-7", captured)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, captured)
}

func TestRecovery(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Recovery(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

type captureAuditor struct {
	requests []logger.Request
	err      error
}

func (c *captureAuditor) Log(_ context.Context, req logger.Request) (string, error) {
	c.requests = append(c.requests, req)
	return "audit_test", c.err
}

func TestAccessLog(t *testing.T) {
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("records a success entry after the handler", func(t *testing.T) {
		auditor := &captureAuditor{}
		handler := UserContext(AccessLog(auditor, discard)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(5 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		})))

		req := httptest.NewRequest(http.MethodGet, "/consent/history", nil)
		req.Header.Set("X-User-ID", "user-1")
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		require.Len(t, auditor.requests, 1)
		entry := auditor.requests[0]
		assert.Equal(t, auditmodels.EventDataAccess, entry.EventType)
		assert.Equal(t, "user-1", entry.UserID)
		assert.Equal(t, "GET /consent/history", entry.Action)
		assert.Equal(t, auditmodels.ResultSuccess, entry.Result)
		assert.Empty(t, entry.ErrorMessage)
		assert.Equal(t, "203.0.113.9", entry.IPAddress)
		assert.GreaterOrEqual(t, entry.Details["duration_ms"].(int64), int64(5))
	})

	t.Run("4xx and 5xx record failures", func(t *testing.T) {
		auditor := &captureAuditor{}
		handler := AccessLog(auditor, discard)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/records", nil))

		require.Len(t, auditor.requests, 1)
		assert.Equal(t, auditmodels.ResultFailure, auditor.requests[0].Result)
		assert.Equal(t, 403, auditor.requests[0].Details["status"])
		assert.Equal(t, "request failed with status 403", auditor.requests[0].ErrorMessage)
	})

	t.Run("a failed audit write is logged, not swallowed", func(t *testing.T) {
		var logged bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&logged, nil))
		auditor := &captureAuditor{err: errors.New("store unavailable")}
		handler := AccessLog(auditor, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/records", nil))

		// The response still goes out; the loss is surfaced in the log.
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, logged.String(), "failed to audit request")
		assert.Contains(t, logged.String(), "store unavailable")
	})
}

func TestDescribeUserAgent(t *testing.T) {
	assert.Equal(t, "Unknown Device", DescribeUserAgent(""))

	desc := DescribeUserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	assert.Contains(t, desc, "Chrome")
	assert.Contains(t, desc, "on")
}
