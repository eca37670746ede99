package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mssola/useragent"

	"custodia/internal/audit/logger"
	auditmodels "custodia/internal/audit/models"
)

// Auditor records access events in the audit trail.
type Auditor interface {
	Log(ctx context.Context, req logger.Request) (string, error)
}

// AccessLog records a data-access audit entry for every request to the routes
// it wraps. The entry is written after the handler completes so the outcome
// is known; a non-2xx status is recorded as a failure.
func AccessLog(auditor Auditor, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(wrapped, r)
			duration := time.Since(start)

			ctx := r.Context()
			result := auditmodels.ResultSuccess
			errorMessage := ""
			if wrapped.statusCode >= http.StatusBadRequest {
				result = auditmodels.ResultFailure
				errorMessage = "request failed with status " + strconv.Itoa(wrapped.statusCode)
			}
			_, err := auditor.Log(ctx, logger.Request{
				EventType: auditmodels.EventDataAccess,
				UserID:    GetUserID(ctx),
				Action:    r.Method + " " + r.URL.Path,
				Resource:  r.URL.Path,
				Details: map[string]any{
					"status":      wrapped.statusCode,
					"duration_ms": duration.Milliseconds(),
					"device":      DescribeUserAgent(r.UserAgent()),
				},
				Result:       result,
				ErrorMessage: errorMessage,
				IPAddress:    clientIP(r),
				UserAgent:    r.UserAgent(),
				RequestID:    GetRequestID(ctx),
			})
			if err != nil {
				// The response has already been served; the dropped entry
				// cannot go unnoticed.
				log.ErrorContext(ctx, "failed to audit request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
			}
		})
	}
}

// DescribeUserAgent extracts a human-readable device name from a User-Agent
// string, in the format "Browser on OS".
func DescribeUserAgent(userAgentString string) string {
	if userAgentString == "" {
		return "Unknown Device"
	}

	ua := useragent.New(userAgentString)
	browser, _ := ua.Browser()
	os := ua.OS()

	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" {
			return strings.TrimSpace(browser + " on " + platform)
		}
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
