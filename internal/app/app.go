//file: internal/app/app.go

package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"token-manager/config"
	"token-manager/internal/authmgr"
	"token-manager/internal/lifecycle"
	"token-manager/internal/logger"
	"token-manager/internal/metrics"
)

// shutdownTimeout bounds the metrics server shutdown
const shutdownTimeout = 5 * time.Second

// TokenManagerApp keeps one self-refreshing token provider per configured
// registration and optionally publishes every refreshed token to NATS KV.
type TokenManagerApp struct {
	config        *config.Config
	logger        *logger.Logger
	metrics       *metrics.Metrics
	tokenMetrics  *authmgr.Metrics
	collector     *metrics.MetricsCollector
	metricsServer *metrics.Server
	publisher     *authmgr.NATSClient
	scheduler     *authmgr.RefreshScheduler // shared, nil unless refresh.sharedScheduler
	registry      *authmgr.Registry
	providers     *authmgr.ProviderRegistry

	closeOnce sync.Once
	closeErr  error
}

var (
	_ lifecycle.Application    = (*TokenManagerApp)(nil)
	_ lifecycle.ProviderLister = (*TokenManagerApp)(nil)
)

// NewTokenManagerApp builds the application with the bundled token clients
func NewTokenManagerApp(cfg *config.Config) (*TokenManagerApp, error) {
	return NewAppBuilder(cfg).
		WithLogger().
		WithMetrics().
		WithPublisher().
		WithRegistry().
		WithProviders(nil).
		Build()
}

// Run blocks until ctx is cancelled. Refreshing happens on the schedulers.
func (a *TokenManagerApp) Run(ctx context.Context) error {
	a.logger.Info("token manager running",
		"providers", a.providers.ProviderNames(),
		"publishing", a.publisher != nil,
		"metricsEnabled", a.config.Metrics.Enabled)

	<-ctx.Done()
	a.logger.Info("shutting down gracefully...")
	return nil
}

// Providers returns the provider registry
func (a *TokenManagerApp) Providers() *authmgr.ProviderRegistry {
	return a.providers
}

// ProviderNames returns the names of the registered token providers
func (a *TokenManagerApp) ProviderNames() []string {
	if a.providers == nil {
		return nil
	}
	return a.providers.ProviderNames()
}

// Token returns the current token of the named provider, or InvalidToken
func (a *TokenManagerApp) Token(name string) authmgr.Token {
	if a.providers == nil {
		return authmgr.InvalidToken
	}
	p, ok := a.providers.Get(name)
	if !ok {
		return authmgr.InvalidToken
	}
	return p.GetToken()
}

// Close shuts components down in reverse construction order. Every component
// is closed even if an earlier one fails. Safe to call more than once.
func (a *TokenManagerApp) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.close()
	})
	return a.closeErr
}

func (a *TokenManagerApp) close() error {
	a.logger.Info("closing application components")

	var errs error

	if a.providers != nil {
		if err := a.providers.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to close token providers: %w", err))
		}
	}

	if a.scheduler != nil {
		if err := a.scheduler.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to stop refresh scheduler: %w", err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to close NATS client: %w", err))
		}
	}

	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to shutdown metrics server: %w", err))
		}
	}

	if a.collector != nil {
		a.collector.Stop()
	}

	if err := a.logger.Sync(); err != nil {
		// Sync errors on stdout/stderr are benign
		a.logger.Debug("logger sync completed", "error", err)
	}

	return errs
}
