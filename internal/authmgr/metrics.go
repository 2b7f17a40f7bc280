// file: internal/authmgr/metrics.go

package authmgr

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides centralized metrics collection for the token-manager.
type Metrics struct {
	RefreshSuccessTotal  *prometheus.CounterVec
	RefreshFailuresTotal *prometheus.CounterVec
	RefreshDuration      *prometheus.HistogramVec
	TokenExpiryTimestamp *prometheus.GaugeVec
	PublishFailuresTotal *prometheus.CounterVec
	ProvidersRegistered  prometheus.Gauge
}

// NewMetrics creates a new metrics instance and registers the collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RefreshSuccessTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenmgr_refresh_success_total",
				Help: "Total number of successful token refreshes by provider.",
			},
			[]string{"provider"},
		),
		RefreshFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenmgr_refresh_failures_total",
				Help: "Total number of failed token refreshes by provider and reason.",
			},
			[]string{"provider", "reason"},
		),
		RefreshDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tokenmgr_refresh_duration_seconds",
				Help:    "Duration of token endpoint calls by provider.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		TokenExpiryTimestamp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tokenmgr_token_expiry_timestamp_seconds",
				Help: "Unix time at which the current token of each provider expires.",
			},
			[]string{"provider"},
		),
		PublishFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenmgr_publish_failures_total",
				Help: "Total number of failures to hand a refreshed token to its listener.",
			},
			[]string{"provider"},
		),
		ProvidersRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tokenmgr_providers_registered",
				Help: "Number of providers currently held by the provider registry.",
			},
		),
	}

	for _, c := range []prometheus.Collector{
		m.RefreshSuccessTotal,
		m.RefreshFailuresTotal,
		m.RefreshDuration,
		m.TokenExpiryTimestamp,
		m.PublishFailuresTotal,
		m.ProvidersRegistered,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// IncRefreshSuccess increments the counter for successful refreshes.
func (m *Metrics) IncRefreshSuccess(provider string) {
	m.RefreshSuccessTotal.WithLabelValues(provider).Inc()
}

// IncRefreshFailure increments the counter for failed refreshes.
func (m *Metrics) IncRefreshFailure(provider, reason string) {
	m.RefreshFailuresTotal.WithLabelValues(provider, reason).Inc()
}

// ObserveRefreshDuration records the duration of a token endpoint call.
func (m *Metrics) ObserveRefreshDuration(provider string, seconds float64) {
	m.RefreshDuration.WithLabelValues(provider).Observe(seconds)
}

// SetTokenExpiry records when the provider's current token expires.
func (m *Metrics) SetTokenExpiry(provider string, expiry time.Time) {
	m.TokenExpiryTimestamp.WithLabelValues(provider).Set(float64(expiry.Unix()))
}

// IncPublishFailure increments the counter for listener failures.
func (m *Metrics) IncPublishFailure(provider string) {
	m.PublishFailuresTotal.WithLabelValues(provider).Inc()
}

// SetProvidersRegistered records the registry size.
func (m *Metrics) SetProvidersRegistered(n int) {
	m.ProvidersRegistered.Set(float64(n))
}
