// file: internal/metrics/metrics_test.go

package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-manager/config"
	"token-manager/internal/logger"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)

	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestInstrumentTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	m := newTestMetrics(t)
	client := &http.Client{Transport: m.InstrumentTransport(srv.Client().Transport)}

	resp, err := client.Post(srv.URL+"/token", "application/x-www-form-urlencoded", strings.NewReader("grant_type=client_credentials"))
	require.NoError(t, err)
	resp.Body.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpOutboundRequestsTotal.WithLabelValues(host, "201")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.httpOutboundDuration))
	assert.Equal(t, 0, testutil.CollectAndCount(m.httpOutboundErrorsTotal))
}

func TestInstrumentTransport_Error(t *testing.T) {
	m := newTestMetrics(t)
	failing := promhttp.RoundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})
	client := &http.Client{Transport: m.InstrumentTransport(failing)}

	_, err := client.Get("http://idp.invalid/token")
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpOutboundErrorsTotal.WithLabelValues("idp.invalid")))
	assert.Equal(t, 0, testutil.CollectAndCount(m.httpOutboundRequestsTotal), "no response, no status code")
}

func TestMetricsCollector(t *testing.T) {
	m := newTestMetrics(t)
	clock := clockwork.NewFakeClock()
	c := NewMetricsCollector(m, 10*time.Second, clock)

	c.Start()
	assert.Greater(t, testutil.ToFloat64(m.goroutines), 0.0, "sampled on start")
	assert.Greater(t, testutil.ToFloat64(m.memoryBytes), 0.0)

	m.goroutines.Set(0)
	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.goroutines) > 0
	}, 5*time.Second, 5*time.Millisecond)

	c.Stop()
	c.Stop()
}

func TestServer(t *testing.T) {
	m := newTestMetrics(t)
	m.UpdateSystemMetrics()

	s := NewServer(&config.MetricsConfig{Address: "127.0.0.1:0", Path: "/metrics"}, m, logger.NewNopLogger())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "process_goroutines")

	require.NoError(t, s.Start())
	assert.NoError(t, s.Shutdown(t.Context()))
}
