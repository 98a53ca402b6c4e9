package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"adinsights/internal/domain"
	"adinsights/internal/infrastructure"
	"adinsights/internal/usecase"
	"adinsights/pkg/logger"
	"adinsights/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncRunner struct {
	report *domain.SyncReport
	err    error
	got    domain.SyncRequest
	calls  int
}

func (f *fakeSyncRunner) RunSync(_ context.Context, req domain.SyncRequest) (*domain.SyncReport, error) {
	f.calls++
	f.got = req
	return f.report, f.err
}

type testServer struct {
	router   *gin.Engine
	runner   *fakeSyncRunner
	facts    *infrastructure.MemoryFactRepository
	accounts *infrastructure.MemoryAccountRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	facts := infrastructure.NewMemoryFactRepository(log)
	accounts := infrastructure.NewMemoryAccountRepository()
	runner := &fakeSyncRunner{report: &domain.SyncReport{RunID: "run-1"}}

	handlers := NewHTTPHandlers(runner, usecase.NewMetricsService(facts, log, m), accounts, log)
	handlers.now = func() time.Time { return time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC) }

	return &testServer{
		router:   NewHTTPRouter(handlers, log, m, reg, gin.TestMode).SetupRoutes(),
		runner:   runner,
		facts:    facts,
		accounts: accounts,
	}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) seed(t *testing.T, records ...domain.FactRecord) {
	t.Helper()
	require.NoError(t, s.facts.Upsert(context.Background(), records))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func record(adID, campaignID, date string, impressions, clicks int64, spend float64) domain.FactRecord {
	return domain.FactRecord{
		AdID:        adID,
		Date:        date,
		AccountID:   "123",
		CampaignID:  campaignID,
		AdSetID:     "s1",
		Level:       domain.LevelAd,
		Impressions: impressions,
		Clicks:      clicks,
		LinkClicks:  clicks,
		Spend:       spend,
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "2024-03-05T09:00:00Z", body["timestamp"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-42", decodeBody(t, w)["request_id"])
}

func TestRunSync(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/sync/run?account_id=act_2",
		`{"account_ids":["1"],"days":7,"end_date":"2024-03-03"}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1, s.runner.calls)
	assert.Equal(t, []string{"1", "2"}, s.runner.got.AccountIDs)
	assert.Equal(t, 7, s.runner.got.Days)
	assert.Equal(t, "2024-03-03", s.runner.got.EndDate.Format(domain.DateLayout))

	report, ok := decodeBody(t, w)["report"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "run-1", report["run_id"])
}

func TestRunSync_EmptyBody(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/sync/run", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, s.runner.got.AccountIDs)
	assert.Zero(t, s.runner.got.Days)
	assert.True(t, s.runner.got.EndDate.IsZero())
}

func TestRunSync_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		query  string
		err    error
		status int
		called bool
	}{
		{name: "no accounts", err: domain.ErrNoAccounts, status: http.StatusUnprocessableEntity, called: true},
		{name: "run failure", err: errors.New("account store down"), status: http.StatusInternalServerError, called: true},
		{name: "days above limit", body: `{"days":120}`, status: http.StatusBadRequest},
		{name: "bad end date", body: `{"end_date":"03/03/2024"}`, status: http.StatusBadRequest},
		{name: "malformed json", body: `{"days":`, status: http.StatusBadRequest},
		{name: "bad days query", query: "?days=zero", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.runner.err = tt.err
			if tt.err != nil {
				s.runner.report = nil
			}

			w := s.do(t, http.MethodPost, "/api/v1/sync/run"+tt.query, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.called, s.runner.calls > 0)
			assert.NotEmpty(t, decodeBody(t, w)["error"])
		})
	}
}

func TestGetSummary(t *testing.T) {
	s := newTestServer(t)
	s.seed(t,
		record("a1", "c1", "2024-03-01", 1000, 20, 10),
		record("a2", "c2", "2024-03-02", 1000, 30, 15),
		record("a3", "c2", "2024-02-20", 1000, 30, 99),
	)

	w := s.do(t, http.MethodGet, "/api/v1/metrics/summary?from=2024-03-01&to=2024-03-03", "")
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeBody(t, w)["data"].(map[string]any)
	assert.EqualValues(t, 2, data["record_count"])
	assert.EqualValues(t, 2, data["unique_campaigns"])
	totals := data["metrics"].(map[string]any)["totals"].(map[string]any)
	assert.InDelta(t, 25.0, totals["spend"], 1e-9)
}

func TestGetSummary_DefaultsToLast30Days(t *testing.T) {
	s := newTestServer(t)
	s.seed(t,
		record("a1", "c1", "2024-03-05", 100, 1, 1),
		record("a2", "c1", "2024-02-05", 100, 1, 2),
		record("a3", "c1", "2024-02-04", 100, 1, 4),
	)

	w := s.do(t, http.MethodGet, "/api/v1/metrics/summary", "")
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeBody(t, w)["data"].(map[string]any)
	period := data["period"].(map[string]any)
	assert.Equal(t, "2024-02-05", period["from"])
	assert.Equal(t, "2024-03-05", period["to"])
	assert.EqualValues(t, 2, data["record_count"])
}

func TestMetricsEndpoints_BadInput(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"invalid date", "/api/v1/metrics/summary?from=2024-13-01&to=2024-03-03"},
		{"reversed range", "/api/v1/metrics/summary?from=2024-03-05&to=2024-03-01"},
		{"unknown metric", "/api/v1/metrics/trend?from=2024-03-01&to=2024-03-03&metric=likes"},
		{"unknown dimension", "/api/v1/metrics/breakdown?from=2024-03-01&to=2024-03-03&dimension=country"},
		{"negative limit", "/api/v1/metrics/breakdown?from=2024-03-01&to=2024-03-03&limit=-1"},
		{"half comparison range", "/api/v1/metrics/trend?from=2024-03-01&to=2024-03-03&compare_from=2024-02-01"},
		{"comparison length mismatch", "/api/v1/metrics/trend?from=2024-03-01&to=2024-03-03&compare_from=2024-02-01&compare_to=2024-02-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			w := s.do(t, http.MethodGet, tt.target, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, decodeBody(t, w)["message"])
		})
	}
}

func TestGetTrend(t *testing.T) {
	s := newTestServer(t)
	s.seed(t,
		record("a1", "c1", "2024-02-27", 1000, 10, 100),
		record("a1", "c1", "2024-03-02", 1000, 10, 150),
	)

	w := s.do(t, http.MethodGet, "/api/v1/metrics/trend?from=2024-03-01&to=2024-03-03", "")
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "up", data["direction"])
	assert.Equal(t, "2024-02-27", data["comparison_period"].(map[string]any)["from"])
}

func TestGetBreakdown(t *testing.T) {
	s := newTestServer(t)
	s.seed(t,
		record("a1", "c1", "2024-03-01", 100, 1, 30),
		record("a2", "c2", "2024-03-01", 100, 1, 50),
		record("a3", "c3", "2024-03-01", 100, 1, 20),
	)

	w := s.do(t, http.MethodGet, "/api/v1/metrics/breakdown?from=2024-03-01&to=2024-03-01&limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.EqualValues(t, 2, body["total"])
	rows := body["data"].([]any)
	assert.Equal(t, "c2", rows[0].(map[string]any)["id"])
	assert.Equal(t, "c1", rows[1].(map[string]any)["id"])
}

func TestGetDailyAndDashboard(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, record("a1", "c1", "2024-03-02", 100, 1, 5))

	w := s.do(t, http.MethodGet, "/api/v1/metrics/daily?from=2024-03-01&to=2024-03-03", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["data"], 3)

	w = s.do(t, http.MethodGet, "/api/v1/metrics/dashboard?from=2024-03-01&to=2024-03-03", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, decodeBody(t, w)["data"])
}

func TestListAccounts(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.accounts.EnsureAccounts(context.Background(), []string{"1", "2"}))

	w := s.do(t, http.MethodGet, "/api/v1/accounts", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decodeBody(t, w)["total"])
}

func TestPrometheusEndpoint(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "").Code)

	w := s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"1", "2"}, splitList(" act_1 , ,2"))
	assert.Nil(t, splitList(""))
}
