package fraud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/fraud-investigator/pkg/common"
	"github.com/richxcame/fraud-investigator/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ========================================
// SERVICE MOCK FOR HANDLER TESTS
// ========================================

type mockCaseService struct {
	mock.Mock
}

func (m *mockCaseService) ProcessTransaction(ctx context.Context, txn *Transaction) (*ProcessResult, error) {
	args := m.Called(ctx, txn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ProcessResult), args.Error(1)
}

func (m *mockCaseService) GetCase(ctx context.Context, caseID string) (*Case, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Case), args.Error(1)
}

func (m *mockCaseService) ListCases(ctx context.Context, limit, offset int) ([]CaseSummary, int64, error) {
	args := m.Called(ctx, limit, offset)
	cases, _ := args.Get(0).([]CaseSummary)
	return cases, args.Get(1).(int64), args.Error(2)
}

func (m *mockCaseService) GetReport(ctx context.Context, caseID string) ([]byte, error) {
	args := m.Called(ctx, caseID)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

func (m *mockCaseService) RegenerateReport(ctx context.Context, caseID string) (*Case, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Case), args.Error(1)
}

func (m *mockCaseService) DailyVolume(ctx context.Context, days int, tz string) ([]DailyCount, error) {
	args := m.Called(ctx, days, tz)
	out, _ := args.Get(0).([]DailyCount)
	return out, args.Error(1)
}

func (m *mockCaseService) HourlyToday(ctx context.Context, tz string) ([]HourlyCount, error) {
	args := m.Called(ctx, tz)
	out, _ := args.Get(0).([]HourlyCount)
	return out, args.Error(1)
}

func (m *mockCaseService) SystemMetrics(ctx context.Context, tz string) (*SystemMetrics, error) {
	args := m.Called(ctx, tz)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SystemMetrics), args.Error(1)
}

const testSecret = "handler-test-secret"

func setupTestRouter(svc CaseService, auth gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r, auth)
	return r
}

func serve(r *gin.Engine, method, target string, body []byte, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) common.Response {
	t.Helper()
	var resp common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func ingestBody(t *testing.T, mutate func(map[string]interface{})) []byte {
	t.Helper()
	body := map[string]interface{}{
		"txn_id":       "T0001",
		"ts":           time.Now().UTC().Add(-time.Minute).Format(time.RFC3339),
		"account_id":   "ACC001",
		"device_id":    "dev-1",
		"ip_address":   "10.0.0.1",
		"merchant":     "Corner Shop",
		"mcc":          "5411",
		"amount":       50,
		"currency":     "USD",
		"country":      "US",
		"home_country": "US",
		"channel":      "card_present",
	}
	if mutate != nil {
		mutate(body)
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return raw
}

// ========================================
// INGEST
// ========================================

func TestHandler_IngestTransaction_Success(t *testing.T) {
	svc := new(mockCaseService)
	r := setupTestRouter(svc, nil)

	svc.On("ProcessTransaction", mock.Anything, mock.MatchedBy(func(txn *Transaction) bool {
		return txn.TxnID == "T0001" && txn.Channel == ChannelCardPresent && txn.Amount == 50
	})).Return(&ProcessResult{Risk: RiskAssessment{Score: 7, Level: RiskLevelLow}}, nil).Once()

	w := serve(r, http.MethodPost, "/api/v1/fraud/transactions", ingestBody(t, nil), "")

	assert.Equal(t, http.StatusCreated, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	svc.AssertExpectations(t)
}

func TestHandler_IngestTransaction_ValidationError(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
		field  string
	}{
		{"bad channel", func(b map[string]interface{}) { b["channel"] = "atm" }, "channel"},
		{"bad grade", func(b map[string]interface{}) { b["customer_grade"] = "Z" }, "customer_grade"},
		{"bad ip", func(b map[string]interface{}) { b["ip_address"] = "not-an-ip" }, "ip_address"},
		{"future timestamp", func(b map[string]interface{}) {
			b["ts"] = time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
		}, "ts"},
		{"missing account", func(b map[string]interface{}) { delete(b, "account_id") }, "account_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockCaseService)
			r := setupTestRouter(svc, nil)

			w := serve(r, http.MethodPost, "/api/v1/fraud/transactions", ingestBody(t, tt.mutate), "")

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeResponse(t, w)
			require.NotNil(t, resp.Error)
			assert.Contains(t, resp.Error.Message, tt.field)
			svc.AssertNotCalled(t, "ProcessTransaction", mock.Anything, mock.Anything)
		})
	}
}

func TestHandler_IngestTransaction_MalformedJSON(t *testing.T) {
	svc := new(mockCaseService)
	r := setupTestRouter(svc, nil)

	w := serve(r, http.MethodPost, "/api/v1/fraud/transactions", []byte(`{"txn_id":`), "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_IngestTransaction_Duplicate(t *testing.T) {
	svc := new(mockCaseService)
	r := setupTestRouter(svc, nil)

	svc.On("ProcessTransaction", mock.Anything, mock.Anything).
		Return(nil, common.NewConflictError("transaction T0001 already ingested")).Once()

	w := serve(r, http.MethodPost, "/api/v1/fraud/transactions", ingestBody(t, nil), "")

	assert.Equal(t, http.StatusConflict, w.Code)
}

// ========================================
// CASES
// ========================================

func TestHandler_ListCases_Pagination(t *testing.T) {
	svc := new(mockCaseService)
	r := setupTestRouter(svc, nil)

	cases := []CaseSummary{{CaseID: "C000000000001"}}
	svc.On("ListCases", mock.Anything, 10, 20).Return(cases, int64(21), nil).Once()

	w := serve(r, http.MethodGet, "/api/v1/fraud/cases?limit=10&offset=20", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(21), resp.Meta.Total)
	assert.Equal(t, 10, resp.Meta.Limit)
	svc.AssertExpectations(t)
}

func TestHandler_ListCases_ClampsLimit(t *testing.T) {
	svc := new(mockCaseService)
	r := setupTestRouter(svc, nil)

	svc.On("ListCases", mock.Anything, 500, 0).Return([]CaseSummary{}, int64(0), nil).Once()

	w := serve(r, http.MethodGet, "/api/v1/fraud/cases?limit=100000", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestHandler_GetCase_NotFound(t *testing.T) {
	svc := new(mockCaseService)
	r := setupTestRouter(svc, nil)

	svc.On("GetCase", mock.Anything, "Cmissing").
		Return(nil, common.NewNotFoundError("case Cmissing not found", ErrCaseNotFound)).Once()

	w := serve(r, http.MethodGet, "/api/v1/fraud/cases/Cmissing", nil, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_GetCase_InternalError(t *testing.T) {
	svc := new(mockCaseService)
	r := setupTestRouter(svc, nil)

	svc.On("GetCase", mock.Anything, "C1").Return(nil, errors.New("db down")).Once()

	w := serve(r, http.MethodGet, "/api/v1/fraud/cases/C1", nil, "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestHandler_GetReport_Download(t *testing.T) {
	svc := new(mockCaseService)
	r := setupTestRouter(svc, nil)

	svc.On("GetReport", mock.Anything, "C1").Return([]byte("# Fraud Case Report: C1"), nil).Twice()

	w := serve(r, http.MethodGet, "/api/v1/fraud/cases/C1/report?download=1", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="C1.md"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "# Fraud Case Report: C1", w.Body.String())

	w = serve(r, http.MethodGet, "/api/v1/fraud/cases/C1/report", nil, "")
	assert.Empty(t, w.Header().Get("Content-Disposition"))
	svc.AssertExpectations(t)
}

func TestHandler_RegenerateReport(t *testing.T) {
	svc := new(mockCaseService)
	r := setupTestRouter(svc, nil)

	svc.On("RegenerateReport", mock.Anything, "C1").Return(&Case{CaseID: "C1", ReportKey: "cases/C1.md"}, nil).Once()

	w := serve(r, http.MethodPost, "/api/v1/fraud/cases/C1/report/regenerate", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"report_key":"cases/C1.md"`)
	assert.Contains(t, w.Body.String(), ReportURL("C1"))
}

// ========================================
// STATS
// ========================================

func TestHandler_DailyVolume(t *testing.T) {
	svc := new(mockCaseService)
	r := setupTestRouter(svc, nil)

	svc.On("DailyVolume", mock.Anything, 14, "Africa/Lagos").
		Return([]DailyCount{{Day: "2026-03-01", Count: 12}}, nil).Once()

	w := serve(r, http.MethodGet, "/api/v1/fraud/stats/daily-volume?days=14&tz=Africa/Lagos", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestHandler_DailyVolume_RejectsRange(t *testing.T) {
	svc := new(mockCaseService)
	r := setupTestRouter(svc, nil)

	w := serve(r, http.MethodGet, "/api/v1/fraud/stats/daily-volume?days=365", nil, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "DailyVolume", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_HourlyToday(t *testing.T) {
	svc := new(mockCaseService)
	r := setupTestRouter(svc, nil)

	svc.On("HourlyToday", mock.Anything, "").Return([]HourlyCount{{Hour: "09:00", Count: 3}}, nil).Once()

	w := serve(r, http.MethodGet, "/api/v1/fraud/stats/hourly-today", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestHandler_SystemMetrics(t *testing.T) {
	svc := new(mockCaseService)
	r := setupTestRouter(svc, nil)

	svc.On("SystemMetrics", mock.Anything, "UTC").Return(&SystemMetrics{TZ: "UTC", TotalTxns: 9, LiveClients: 2}, nil).Once()

	w := serve(r, http.MethodGet, "/api/v1/fraud/stats/system?tz=UTC", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"live_clients":2`)
	assert.Contains(t, w.Body.String(), `"avg_latency_ms":null`)
}

// ========================================
// AUTH
// ========================================

func TestHandler_RequiresToken(t *testing.T) {
	svc := new(mockCaseService)
	r := setupTestRouter(svc, middleware.AuthMiddleware(testSecret))

	w := serve(r, http.MethodGet, "/api/v1/fraud/cases", nil, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	svc.AssertNotCalled(t, "ListCases", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_AnalystCannotRegenerate(t *testing.T) {
	svc := new(mockCaseService)
	r := setupTestRouter(svc, middleware.AuthMiddleware(testSecret))
	token, err := middleware.IssueToken(testSecret, "analyst-1", middleware.RoleAnalyst, time.Hour)
	require.NoError(t, err)

	svc.On("GetCase", mock.Anything, "C1").Return(&Case{CaseID: "C1"}, nil).Once()

	w := serve(r, http.MethodGet, "/api/v1/fraud/cases/C1", nil, token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodPost, "/api/v1/fraud/cases/C1/report/regenerate", nil, token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	svc.AssertNotCalled(t, "RegenerateReport", mock.Anything, mock.Anything)
}

func TestHandler_AdminCanRegenerate(t *testing.T) {
	svc := new(mockCaseService)
	r := setupTestRouter(svc, middleware.AuthMiddleware(testSecret))
	token, err := middleware.IssueToken(testSecret, "admin-1", middleware.RoleAdmin, time.Hour)
	require.NoError(t, err)

	svc.On("RegenerateReport", mock.Anything, "C1").Return(&Case{CaseID: "C1"}, nil).Once()

	w := serve(r, http.MethodPost, "/api/v1/fraud/cases/C1/report/regenerate", nil, token)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestHandler_IngestMiddlewareGuardsIngestOnly(t *testing.T) {
	svc := new(mockCaseService)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	reject := func(c *gin.Context) {
		c.AbortWithStatus(http.StatusTooManyRequests)
	}
	NewHandler(svc).RegisterRoutes(r, nil, reject)

	svc.On("ListCases", mock.Anything, 50, 0).Return([]CaseSummary{}, int64(0), nil).Once()

	w := serve(r, http.MethodPost, "/api/v1/fraud/transactions", ingestBody(t, nil), "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	svc.AssertNotCalled(t, "ProcessTransaction", mock.Anything, mock.Anything)

	w = serve(r, http.MethodGet, "/api/v1/fraud/cases", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestHandler_IngestRetryWithIdempotencyKeyReplays(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	replays := &memRedis{data: map[string]string{}}
	NewHandler(svc).RegisterRoutes(r, nil, middleware.Idempotency(replays, time.Hour))

	body := ingestBody(t, nil)
	post := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/fraud/transactions", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set(middleware.IdempotencyKeyHeader, key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := post("client-retry-1")
	require.Equal(t, http.StatusCreated, first.Code)

	retry := post("client-retry-1")
	assert.Equal(t, http.StatusCreated, retry.Code)
	assert.Equal(t, first.Body.String(), retry.Body.String())
	assert.Equal(t, "true", retry.Header().Get(middleware.IdempotentReplayedHeader))
	assert.Len(t, store.txns, 1)

	assert.Equal(t, http.StatusConflict, post("").Code)
}
