// file: internal/authmgr/provider_registry.go

package authmgr

import (
	"maps"
	"slices"
	"sync"

	"go.uber.org/multierr"

	"token-manager/internal/logger"
)

// ProviderRegistry holds named providers, rejects duplicate names and closes every
// registered provider on Close even when some of them fail.
type ProviderRegistry struct {
	logger  *logger.Logger
	metrics *Metrics

	mu        sync.Mutex
	closing   bool
	providers map[string]*Resource[Provider]
}

// NewProviderRegistry creates an empty registry
func NewProviderRegistry(log *logger.Logger, metrics *Metrics) *ProviderRegistry {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ProviderRegistry{
		logger:    log,
		metrics:   metrics,
		providers: make(map[string]*Resource[Provider]),
	}
}

// Add registers r under name. When the registry is closing or the name is taken
// the resource is released before the error is returned, so a rejected provider
// never leaks. A nil provider is rejected with ErrNilProvider.
func (r *ProviderRegistry) Add(name string, res *Resource[Provider]) error {
	if res == nil || res.Get() == nil {
		return ErrNilProvider
	}

	r.mu.Lock()
	var err error
	switch {
	case r.closing:
		err = ErrRegistryClosing
	case r.providers[name] != nil:
		err = &DuplicateNameError{Name: name}
	default:
		r.providers[name] = res
		count := len(r.providers)
		r.mu.Unlock()

		r.logger.Info("provider registered",
			"provider", name,
			"ownership", res.Ownership().String())
		if r.metrics != nil {
			r.metrics.SetProvidersRegistered(count)
		}
		return nil
	}
	r.mu.Unlock()

	r.logger.Warn("provider rejected", "provider", name, "error", err)
	if releaseErr := res.Release(); releaseErr != nil {
		r.logger.Error("failed to release rejected provider",
			"provider", name,
			"error", releaseErr)
	}
	return err
}

// Providers returns a snapshot of the registered providers by name
func (r *ProviderRegistry) Providers() map[string]Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Provider, len(r.providers))
	for name, res := range r.providers {
		out[name] = res.Get()
	}
	return out
}

// ProviderNames returns the registered names, sorted
func (r *ProviderRegistry) ProviderNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.providers))
}

// Get returns the provider registered under name
func (r *ProviderRegistry) Get(name string) (Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.providers[name]
	if !ok {
		return nil, false
	}
	return res.Get(), true
}

// Close flips the closing flag, then releases every registered provider.
// A failing provider is logged and does not stop the others; all failures are
// returned together. Only the first call does any work.
func (r *ProviderRegistry) Close() error {
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		r.logger.Debug("provider registry already closed")
		return nil
	}
	r.closing = true
	drained := r.providers
	r.providers = make(map[string]*Resource[Provider])
	r.mu.Unlock()

	r.logger.Info("closing provider registry", "providers", len(drained))

	var errs error
	for _, name := range slices.Sorted(maps.Keys(drained)) {
		if err := drained[name].Release(); err != nil {
			r.logger.Error("failed to close provider", "provider", name, "error", err)
			errs = multierr.Append(errs, err)
		}
	}

	if r.metrics != nil {
		r.metrics.SetProvidersRegistered(0)
	}
	r.logger.Info("provider registry closed")
	return errs
}
