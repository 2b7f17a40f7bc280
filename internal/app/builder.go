// file: internal/app/builder.go

package app

import (
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"token-manager/config"
	"token-manager/internal/authmgr"
	"token-manager/internal/authmgr/providers"
	"token-manager/internal/logger"
	"token-manager/internal/metrics"
)

// AppBuilder constructs a TokenManagerApp fluently. The first failing step
// stops the chain; Build then releases whatever was already created.
type AppBuilder struct {
	cfg   *config.Config
	clock clockwork.Clock
	app   *TokenManagerApp
	err   error
}

// NewAppBuilder creates a new builder.
func NewAppBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{
		cfg:   cfg,
		clock: clockwork.NewRealClock(),
		app:   &TokenManagerApp{config: cfg},
	}
}

// WithClock replaces the wall clock used by schedulers and providers
func (b *AppBuilder) WithClock(clock clockwork.Clock) *AppBuilder {
	b.clock = clock
	return b
}

// WithLogger creates the logger.
func (b *AppBuilder) WithLogger() *AppBuilder {
	if b.err != nil {
		return b
	}
	b.app.logger, b.err = logger.NewLogger(&b.cfg.Logging)
	if b.err != nil {
		b.err = fmt.Errorf("failed to initialize logger: %w", b.err)
	}
	return b
}

// WithMetrics creates the refresh and process metrics and starts the scrape server.
func (b *AppBuilder) WithMetrics() *AppBuilder {
	if b.err != nil {
		return b
	}
	if !b.cfg.Metrics.Enabled {
		b.app.logger.Info("metrics disabled")
		return b
	}

	reg := prometheus.NewRegistry()
	var err error
	b.app.metrics, err = metrics.NewMetrics(reg)
	if err != nil {
		b.err = fmt.Errorf("failed to create metrics service: %w", err)
		return b
	}
	b.app.tokenMetrics, err = authmgr.NewMetrics(reg)
	if err != nil {
		b.err = fmt.Errorf("failed to create token metrics: %w", err)
		return b
	}

	b.app.collector = metrics.NewMetricsCollector(b.app.metrics, b.cfg.Metrics.UpdateInterval, b.clock)
	b.app.collector.Start()

	b.app.metricsServer = metrics.NewServer(&b.cfg.Metrics, b.app.metrics, b.app.logger)
	if err := b.app.metricsServer.Start(); err != nil {
		b.err = fmt.Errorf("failed to start metrics server: %w", err)
		return b
	}

	b.app.logger.Info("metrics initialized successfully",
		"address", b.cfg.Metrics.Address,
		"path", b.cfg.Metrics.Path,
		"updateInterval", b.cfg.Metrics.UpdateInterval)
	return b
}

// WithPublisher connects to NATS and opens the KV bucket refreshed tokens are
// written to. Skipped when storage is disabled.
func (b *AppBuilder) WithPublisher() *AppBuilder {
	if b.err != nil {
		return b
	}
	if !b.cfg.Storage.Enabled {
		b.app.logger.Info("token publishing disabled")
		return b
	}

	b.app.publisher, b.err = authmgr.NewNATSClient(&b.cfg.NATS, &b.cfg.Storage, b.app.logger)
	if b.err != nil {
		b.err = fmt.Errorf("failed to create NATS client: %w", b.err)
	}
	return b
}

// WithRegistry resolves the configured oauth2 registrations.
func (b *AppBuilder) WithRegistry() *AppBuilder {
	if b.err != nil {
		return b
	}
	b.app.registry = authmgr.NewRegistry(&b.cfg.OAuth2, b.app.logger)
	if b.app.registry.Len() == 0 {
		b.app.logger.Warn("no usable oauth2 registrations, no tokens will be served")
	}
	return b
}

// WithProviders builds one token provider per registration and registers them.
// A nil supplier selects the bundled oauth2 and custom-http clients.
func (b *AppBuilder) WithProviders(supplier authmgr.ClientSupplier) *AppBuilder {
	if b.err != nil {
		return b
	}
	if supplier == nil {
		supplier = b.defaultSupplier()
	}

	opts := []authmgr.SpecOption{
		authmgr.WithClock(b.clock),
		authmgr.WithTuning(b.cfg.Refresh),
		authmgr.WithLogger(b.app.logger),
	}
	if b.app.tokenMetrics != nil {
		opts = append(opts, authmgr.WithMetrics(b.app.tokenMetrics))
	}
	if b.app.publisher != nil {
		opts = append(opts, authmgr.WithListener(b.app.publisher))
	}

	if b.cfg.Refresh.SharedScheduler {
		s, err := authmgr.NewRefreshScheduler(b.clock, b.app.logger, b.cfg.Refresh.CloseTaskRetryInterval)
		if err != nil {
			b.err = err
			return b
		}
		s.Start()
		b.app.scheduler = s
		opts = append(opts, authmgr.WithScheduler(authmgr.BorrowedResource(s)))
	}

	b.app.providers = authmgr.NewProviderRegistry(b.app.logger, b.app.tokenMetrics)

	built, err := b.app.registry.TokenProviders(supplier, opts...)
	if err != nil {
		b.err = err
		return b
	}
	for _, p := range built {
		if p.State() == authmgr.StateDisabled {
			b.app.logger.Warn("token provider disabled", "provider", p.Name())
		}
		if err := b.app.providers.Add(p.Name(), authmgr.OwnedResource[authmgr.Provider](p)); err != nil {
			b.err = multierr.Append(b.err, fmt.Errorf("failed to register provider %q: %w", p.Name(), err))
		}
	}
	if b.err != nil {
		return b
	}

	b.app.logger.Info("token providers started",
		"providers", len(built),
		"sharedScheduler", b.cfg.Refresh.SharedScheduler)
	return b
}

func (b *AppBuilder) defaultSupplier() authmgr.ClientSupplier {
	hc := &http.Client{Timeout: b.cfg.Refresh.FetchTimeout}
	if b.app.metrics != nil {
		hc.Transport = b.app.metrics.InstrumentTransport(http.DefaultTransport)
	}
	return providers.NewSupplier(
		providers.WithHTTPClient(hc),
		providers.WithLogger(b.app.logger),
	)
}

// Build finalizes the construction and returns the application.
func (b *AppBuilder) Build() (*TokenManagerApp, error) {
	if b.err != nil {
		if b.app.logger != nil {
			_ = b.app.Close()
		}
		return nil, b.err
	}
	return b.app, nil
}
