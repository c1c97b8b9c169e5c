package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argusquant/argusd/internal/domain/opinion"
	"github.com/argusquant/argusd/internal/domain/regime"
	"github.com/argusquant/argusd/internal/domain/trade"
	"github.com/argusquant/argusd/internal/engine"
	"github.com/argusquant/argusd/internal/metrics"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	reg := prometheus.NewRegistry()
	cfg := engine.DefaultConfig(trade.VariantGlobal)
	cfg.ExpectedModules = []opinion.Module{
		opinion.ModuleTechnical, opinion.ModuleFundamental, opinion.ModuleMacro,
	}
	eng := engine.New(cfg, engine.WithMetrics(metrics.New(reg)))

	return NewServer(ServerConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		RateLimit:    100,
		RateBurst:    100,
	}, eng, reg, zerolog.Nop())
}

func evaluateBody() []byte {
	stop := 192.0
	in := engine.Input{
		Symbol:    "AAPL",
		Timeframe: "15m",
		Mode:      regime.ModeCore,
		BarClose:  time.Date(2026, 3, 2, 14, 15, 0, 0, time.UTC),
		Scores: []opinion.ModuleScore{
			{Module: opinion.ModuleTechnical, Score: 92, Authority: 1.0},
			{Module: opinion.ModuleFundamental, Score: 80, Authority: 1.0},
			{Module: opinion.ModuleMacro, Score: 75, Authority: 1.0},
		},
		Regime:   regime.Inputs{Macro: 75, Volatility: 14, Technical: 92, Chop: 25},
		Proposed: engine.Proposed{EntryPrice: 200, Quantity: 100, StopLoss: &stop},
		Equity:   100_000,
	}
	raw, _ := json.Marshal(in)
	return raw
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestEvaluateEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/evaluate", bytes.NewReader(evaluateBody()))
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Decision engine.Decision `json:"decision"`
		Trace    engine.Trace    `json:"trace"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, trade.Buy, resp.Decision.Action)
	assert.Equal(t, engine.OutcomeApproved, resp.Decision.Outcome)
	assert.NotEmpty(t, resp.Trace.ID)
	assert.Equal(t, regime.Trend, resp.Trace.Regime)
}

func TestEvaluateRejectsBadBody(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/evaluate", bytes.NewReader([]byte(`{"symbol":`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/evaluate", bytes.NewReader([]byte(`{"timeframe":"15m"}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/evaluate", bytes.NewReader([]byte(`{"symbol":"A","bogus":1}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegimeEndpoint(t *testing.T) {
	srv := newTestServer(t)

	// Before any evaluation there is nothing to report.
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/regime", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/evaluate", bytes.NewReader(evaluateBody())))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/regime", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "trend", resp["regime"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/evaluate", bytes.NewReader(evaluateBody())))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "argusd_decisions_total")
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t)
	srv.limiter.SetBurst(1)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	srv.limiter.SetLimit(0)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
