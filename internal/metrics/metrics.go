// file: internal/metrics/metrics.go

package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the process-level collectors: runtime gauges and the outbound
// calls made to token endpoints. Refresh metrics live with the providers.
type Metrics struct {
	registry *prometheus.Registry

	// System metrics
	goroutines  prometheus.Gauge
	memoryBytes prometheus.Gauge

	// Token endpoint calls
	httpOutboundRequestsTotal *prometheus.CounterVec
	httpOutboundDuration      *prometheus.HistogramVec
	httpOutboundErrorsTotal   *prometheus.CounterVec
}

// NewMetrics creates the process metrics and registers them with registry
func NewMetrics(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,

		goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "process_goroutines",
				Help: "Number of goroutines",
			},
		),
		memoryBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "process_memory_bytes",
				Help: "Process memory usage in bytes",
			},
		),

		httpOutboundRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_outbound_requests_total",
				Help: "Total number of requests sent to token endpoints",
			},
			[]string{"host", "code"},
		),
		httpOutboundDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_outbound_duration_seconds",
				Help:    "Duration of requests sent to token endpoints",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"host"},
		),
		httpOutboundErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_outbound_errors_total",
				Help: "Total number of token endpoint requests that got no response",
			},
			[]string{"host"},
		),
	}

	collectors := []prometheus.Collector{
		m.goroutines,
		m.memoryBytes,
		m.httpOutboundRequestsTotal,
		m.httpOutboundDuration,
		m.httpOutboundErrorsTotal,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Registry returns the Prometheus registry (needed for HTTP handler)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// UpdateSystemMetrics samples goroutine count and heap usage
func (m *Metrics) UpdateSystemMetrics() {
	m.goroutines.Set(float64(runtime.NumGoroutine()))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.memoryBytes.Set(float64(memStats.Alloc))
}
