package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holdr-fi/quest-n-script/internal/chain"
	"github.com/holdr-fi/quest-n-script/internal/eligibility"
	"github.com/holdr-fi/quest-n-script/internal/metrics"
	"github.com/holdr-fi/quest-n-script/pkg/config"
	"github.com/holdr-fi/quest-n-script/pkg/logger"
	"github.com/holdr-fi/quest-n-script/pkg/models"
)

type evaluatorFunc func(ctx context.Context, address string) (*models.Evaluation, error)

func (f evaluatorFunc) Evaluate(ctx context.Context, address string) (*models.Evaluation, error) {
	return f(ctx, address)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Security.CORSEnabled = true
	cfg.Security.CORSOrigins = []string{"*"}
	cfg.Security.CORSMethods = []string{"GET", "OPTIONS"}
	cfg.Security.CORSHeaders = []string{"Content-Type", logger.RequestIDHeader}
	cfg.Monitoring.MetricsEnabled = true
	cfg.Monitoring.MetricsNamespace = "test"
	cfg.Monitoring.HealthCheckEnabled = true
	return cfg
}

func newTestServer(t *testing.T, eval evaluatorFunc) (*httptest.Server, *metrics.Metrics) {
	t.Helper()

	log, _ := test.NewNullLogger()
	m := metrics.New("test")
	srv := httptest.NewServer(NewServer(testConfig(), log, eval, nil, m).Handler())
	t.Cleanup(srv.Close)
	return srv, m
}

func getEnvelope(t *testing.T, url string) (*http.Response, models.Envelope) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env models.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func TestEligibilityEndpoint(t *testing.T) {
	srv, m := newTestServer(t, func(ctx context.Context, address string) (*models.Evaluation, error) {
		return &models.Evaluation{Address: address, ThresholdMet: true, HasStaked: true, EthInvested: decimal.NewFromFloat(0.25)}, nil
	})

	resp, env := getEnvelope(t, srv.URL+"/api/v1/eligibility?address=0x1111111111111111111111111111111111111111")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Data.Result)
	assert.NotEmpty(t, resp.Header.Get(logger.RequestIDHeader))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues(metrics.OutcomeEligible)))
}

func TestEligibilityEndpointChainFailure(t *testing.T) {
	srv, m := newTestServer(t, func(ctx context.Context, address string) (*models.Evaluation, error) {
		return nil, fmt.Errorf("%w: staked balance: dial tcp: connection refused", eligibility.ErrChain)
	})

	resp, env := getEnvelope(t, srv.URL+"/api/v1/eligibility?address=0x1111111111111111111111111111111111111111")

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, models.CodeInternal, env.Error.Code)
	assert.True(t, strings.HasPrefix(env.Error.Message, "chain call failed"))
	assert.False(t, env.Data.Result)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues(metrics.OutcomeError)))
}

func TestEligibilityEndpointMalformedAddress(t *testing.T) {
	srv, _ := newTestServer(t, func(ctx context.Context, address string) (*models.Evaluation, error) {
		_, err := chain.NormalizeAddress(address)
		return nil, err
	})

	resp, env := getEnvelope(t, srv.URL+"/api/v1/eligibility?address=0x123")

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, env.Error.Message, "malformed address")
}

func TestRequestIDIsPropagated(t *testing.T) {
	srv, _ := newTestServer(t, func(ctx context.Context, address string) (*models.Evaluation, error) {
		return &models.Evaluation{}, nil
	})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/eligibility?address=0x1111111111111111111111111111111111111111", nil)
	require.NoError(t, err)
	req.Header.Set(logger.RequestIDHeader, "req-42")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "req-42", resp.Header.Get(logger.RequestIDHeader))
}

func TestPanicReturnsEnvelope(t *testing.T) {
	srv, _ := newTestServer(t, func(ctx context.Context, address string) (*models.Evaluation, error) {
		panic("boom")
	})

	resp, env := getEnvelope(t, srv.URL+"/api/v1/eligibility?address=0x1111111111111111111111111111111111111111")

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, models.CodeInternal, env.Error.Code)
	assert.Contains(t, env.Error.Message, "boom")
	assert.False(t, env.Data.Result)
}

func TestPanicAfterResponseStarted(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := NewServer(testConfig(), log, nil, nil, nil)

	h := s.recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("partial"))
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/eligibility", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Panic recovered", hook.LastEntry().Message)
	assert.Equal(t, true, hook.LastEntry().Data["response_started"])
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, func(ctx context.Context, address string) (*models.Evaluation, error) {
		return &models.Evaluation{}, nil
	})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/eligibility", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://quest.example")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()

	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, map[string]interface{}{"nats": "disabled"}, health["services"])

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsDisabled(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := testConfig()
	cfg.Monitoring.MetricsEnabled = false

	srv := httptest.NewServer(NewServer(cfg, log, nil, nil, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStopBeforeStart(t *testing.T) {
	log, _ := test.NewNullLogger()
	s := NewServer(testConfig(), log, nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
