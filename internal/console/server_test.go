package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divviup/divviup-console/internal/client"
	"github.com/divviup/divviup-console/internal/config"
	"github.com/divviup/divviup-console/internal/logging"
	"github.com/divviup/divviup-console/internal/metrics"
)

func newTestServer(t *testing.T, cfg config.ConsoleConfig) (*Server, *metrics.Metrics, *bytes.Buffer) {
	t.Helper()
	require.NoError(t, cfg.Validate())
	m := metrics.NewMetrics("console_test")
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.WithOutput(&buf), logging.WithLevel(logging.LevelDebug))
	return NewServer(cfg, WithMetrics(m), WithLogger(logger)), m, &buf
}

func counterValue(t *testing.T, m *metrics.Metrics, name, label, value string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.Metric {
			if hasLabel(metric, label, value) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(metric *dto.Metric, key, value string) bool {
	for _, label := range metric.Label {
		if label.GetName() == key && label.GetValue() == value {
			return true
		}
	}
	return false
}

func TestAPIURL(t *testing.T) {
	srv, _, _ := newTestServer(t, config.ConsoleConfig{APIURL: "https://api.example/"})

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api_url", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var apiURL string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiURL))
	assert.Equal(t, "https://api.example/", apiURL)
}

func TestAPIURLUnconfigured(t *testing.T) {
	srv, _, _ := newTestServer(t, config.ConsoleConfig{})

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api_url", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api_url", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _, _ := newTestServer(t, config.ConsoleConfig{})

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["configured"])

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "console_test_http_requests_total")
}

func TestCorrelationID(t *testing.T) {
	srv, _, buf := newTestServer(t, config.ConsoleConfig{APIURL: "https://api.example/"})

	req := httptest.NewRequest(http.MethodGet, "/api_url", nil)
	req.Header.Set(logging.CorrelationIDHeader, "corr-123")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, "corr-123", w.Header().Get(logging.CorrelationIDHeader))
	assert.Contains(t, buf.String(), "corr-123")

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, w.Header().Get(logging.CorrelationIDHeader))
}

func TestCORS(t *testing.T) {
	srv, _, _ := newTestServer(t, config.ConsoleConfig{
		APIURL:      "https://api.example/",
		CORSOrigins: []string{"https://app.example"},
	})

	req := httptest.NewRequest(http.MethodGet, "/api_url", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api_url", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestApplyConfig(t *testing.T) {
	srv, m, buf := newTestServer(t, config.ConsoleConfig{APIURL: "https://one.example/"})

	srv.ApplyConfig(&config.Config{Console: config.ConsoleConfig{APIURL: "https://two.example/"}})
	assert.Equal(t, "https://two.example/", srv.APIURL())
	assert.Contains(t, buf.String(), "api url changed")
	assert.Equal(t, 1.0, counterValue(t, m, "console_test_config_reloads_total", "result", "success"))

	srv.ReloadFailed(errors.New("bad yaml"))
	assert.Equal(t, "https://two.example/", srv.APIURL())
	assert.Equal(t, 1.0, counterValue(t, m, "console_test_config_reloads_total", "result", "error"))
}

// The console's discovery document is what the API client bootstraps from.
func TestClientDiscoversThroughConsole(t *testing.T) {
	srv, _, _ := newTestServer(t, config.ConsoleConfig{APIURL: "https://api.example/"})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	c, err := client.New(ts.URL)
	require.NoError(t, err)
	base, err := c.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://api.example/", base)
}

func TestServeAndShutdown(t *testing.T) {
	srv, _, _ := newTestServer(t, config.ConsoleConfig{APIURL: "https://api.example/"})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	comp := &mockComponent{}
	require.NoError(t, ShutdownWithComponents(srv, time.Second, comp))
	assert.True(t, comp.called)
	assert.NoError(t, <-done)
}

func TestShutdownBeforeServe(t *testing.T) {
	srv, _, _ := newTestServer(t, config.ConsoleConfig{})
	assert.NoError(t, srv.Shutdown(context.Background()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.NoError(t, srv.Serve(ln), "a shut down server does not start serving")
}

func TestRunReportsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	srv, _, _ := newTestServer(t, config.ConsoleConfig{Host: "127.0.0.1", Port: port})
	err = srv.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1")
}

type mockComponent struct {
	called bool
	err    error
}

func (m *mockComponent) Shutdown(ctx context.Context) error {
	m.called = true
	return m.err
}

func TestShutdownWithComponentsContinuesAfterError(t *testing.T) {
	failing := &mockComponent{err: os.ErrInvalid}
	after := &mockComponent{}

	err := ShutdownWithComponents(failing, time.Second, after, nil)
	assert.ErrorIs(t, err, os.ErrInvalid)
	assert.True(t, failing.called)
	assert.True(t, after.called)
}

func TestWaitForSignal(t *testing.T) {
	ch := make(chan os.Signal, 1)
	ch <- os.Interrupt
	assert.Equal(t, os.Interrupt, WaitForSignal(context.Background(), ch))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, WaitForSignal(ctx, make(chan os.Signal)))
}
