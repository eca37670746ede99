package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"custodia/internal/consent/handler/mocks"
	"custodia/internal/consent/models"
	"custodia/internal/consent/service"
	"custodia/internal/platform/middleware"
	dErrors "custodia/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/consent-mocks.go -package=mocks Service
type ConsentHandlerSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *ConsentHandlerSuite) SetupSuite() {
	s.ctx = context.Background()
}

func TestConsentHandlerSuite(t *testing.T) {
	suite.Run(t, new(ConsentHandlerSuite))
}

func newTestHandler(t *testing.T) (http.Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := New(mockService, logger)
	r := chi.NewRouter()
	handler.Register(r)
	return r, mockService
}

// newRequestWithBody creates an HTTP request with the given method, endpoint,
// and JSON body. If userID is not empty it is placed in the request context
// the same way the UserContext middleware would.
func newRequestWithBody(method, endpoint string, body any, userID string) (*http.Request, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req := httptest.NewRequest(method, endpoint, bytes.NewReader(bodyBytes))
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	return req, nil
}

// assertErrorResponse unmarshals the response body and asserts the error code.
func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedCode string) {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, expectedCode, resp["error"])
}

func (s *ConsentHandlerSuite) TestHandleRecord() {
	s.T().Run("200 - records a medical tracking grant", func(t *testing.T) {
		router, mockService := newTestHandler(t)
		grantedAt := time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)
		expiry := grantedAt.Add(365 * 24 * time.Hour)

		var captured service.Decision
		mockService.EXPECT().
			Record(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, decision service.Decision) (*models.Record, error) {
				captured = decision
				return &models.Record{
					ID:        "consent_abc",
					UserID:    "user-1",
					Type:      models.TypeMedicalTracking,
					Granted:   true,
					GrantedAt: grantedAt,
					ExpiresAt: &expiry,
					Source:    models.SourceAPI,
					Purpose:   "symptom tracking",
					Version:   models.ConsentVersion,
				}, nil
			})

		req, err := newRequestWithBody(http.MethodPost, "/consent", recordRequest{
			ConsentType: string(models.TypeMedicalTracking),
			Granted:     true,
			Purpose:     "symptom tracking",
		}, "user-1")
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-1", captured.UserID)
		assert.Equal(t, models.TypeMedicalTracking, captured.Type)
		assert.Equal(t, models.SourceAPI, captured.Source)
		assert.Equal(t, "203.0.113.9", captured.IPAddress)

		var resp RecordResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Record)
		assert.Equal(t, "consent_abc", resp.Record.ID)
		assert.Equal(t, models.StatusActive, resp.Record.Status)
		require.NotNil(t, resp.Record.ExpiresAt)
	})

	s.T().Run("401 - missing user identity", func(t *testing.T) {
		router, _ := newTestHandler(t)
		req, err := newRequestWithBody(http.MethodPost, "/consent", recordRequest{
			ConsentType: string(models.TypeAnalytics),
			Granted:     true,
		}, "")
		require.NoError(t, err)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assertErrorResponse(t, w, string(dErrors.CodeUnauthorized))
	})

	s.T().Run("400 - malformed body", func(t *testing.T) {
		router, _ := newTestHandler(t)
		req := httptest.NewRequest(http.MethodPost, "/consent", bytes.NewReader([]byte("{not json")))
		req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assertErrorResponse(t, w, string(dErrors.CodeBadRequest))
	})

	s.T().Run("400 - unknown consent type", func(t *testing.T) {
		router, _ := newTestHandler(t)
		req, err := newRequestWithBody(http.MethodPost, "/consent", recordRequest{
			ConsentType: "mind_reading",
			Granted:     true,
		}, "user-1")
		require.NoError(t, err)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assertErrorResponse(t, w, string(dErrors.CodeBadRequest))
	})

	s.T().Run("500 - service failure maps to internal", func(t *testing.T) {
		router, mockService := newTestHandler(t)
		mockService.EXPECT().
			Record(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodePersistence, "store unavailable"))

		req, err := newRequestWithBody(http.MethodPost, "/consent", recordRequest{
			ConsentType: string(models.TypeAnalytics),
			Granted:     true,
		}, "user-1")
		require.NoError(t, err)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assertErrorResponse(t, w, string(dErrors.CodePersistence))
	})
}

func (s *ConsentHandlerSuite) TestHandleVerify() {
	s.T().Run("200 - reports missing and expired consents", func(t *testing.T) {
		router, mockService := newTestHandler(t)
		mockService.EXPECT().
			Verify(gomock.Any(), "user-1", []models.Type{models.TypeMedicalTracking, models.TypeAnalytics}).
			Return(&models.Verification{
				Valid:   false,
				Missing: []models.Type{models.TypeAnalytics},
				Expired: []models.Type{models.TypeMedicalTracking},
			}, nil)

		req := httptest.NewRequest(http.MethodGet, "/consent/verify?types=medical_tracking,analytics", nil)
		req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp VerifyResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Valid)
		assert.Equal(t, []models.Type{models.TypeAnalytics}, resp.Missing)
		assert.Equal(t, []models.Type{models.TypeMedicalTracking}, resp.Expired)
	})

	s.T().Run("400 - missing types parameter", func(t *testing.T) {
		router, _ := newTestHandler(t)
		req := httptest.NewRequest(http.MethodGet, "/consent/verify", nil)
		req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assertErrorResponse(t, w, string(dErrors.CodeBadRequest))
	})

	s.T().Run("401 - anonymous request", func(t *testing.T) {
		router, _ := newTestHandler(t)
		req := httptest.NewRequest(http.MethodGet, "/consent/verify?types=analytics", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	s.T().Run("400 - service rejects unknown type", func(t *testing.T) {
		router, mockService := newTestHandler(t)
		mockService.EXPECT().
			Verify(gomock.Any(), "user-1", gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, "invalid consent type"))

		req := httptest.NewRequest(http.MethodGet, "/consent/verify?types=bogus", nil)
		req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assertErrorResponse(t, w, string(dErrors.CodeValidation))
	})
}

func (s *ConsentHandlerSuite) TestHandleHistory() {
	s.T().Run("200 - returns full history newest state included", func(t *testing.T) {
		router, mockService := newTestHandler(t)
		grantedAt := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
		withdrawnAt := grantedAt.Add(30 * 24 * time.Hour)
		mockService.EXPECT().
			History(gomock.Any(), "user-1").
			Return([]*models.Record{
				{
					ID:          "consent_old",
					UserID:      "user-1",
					Type:        models.TypeAnalytics,
					Granted:     true,
					GrantedAt:   grantedAt,
					WithdrawnAt: &withdrawnAt,
					Source:      models.SourceWeb,
					Version:     models.ConsentVersion,
				},
			}, nil)

		req := httptest.NewRequest(http.MethodGet, "/consent/history", nil)
		req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp HistoryResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Consents, 1)
		assert.Equal(t, models.StatusWithdrawn, resp.Consents[0].Status)
	})

	s.T().Run("401 - anonymous request", func(t *testing.T) {
		router, _ := newTestHandler(t)
		req := httptest.NewRequest(http.MethodGet, "/consent/history", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
