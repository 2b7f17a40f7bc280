// file: internal/authmgr/registry.go

package authmgr

import (
	"fmt"
	"maps"
	"slices"

	"go.uber.org/multierr"

	"token-manager/config"
	"token-manager/internal/logger"
)

// Registry maps registration names to resolved registrations. It is built once
// and read-only afterwards.
type Registry struct {
	registrations map[string]*Registration
	defaultName   string
	logger        *logger.Logger
}

// NewRegistry resolves every configured registration independently and keeps
// the ones that validate. A bad entry is logged and skipped.
func NewRegistry(props *config.OAuth2Properties, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNopLogger()
	}
	r := &Registry{
		registrations: make(map[string]*Registration),
		logger:        log,
	}
	if props == nil {
		log.Warn("no oauth2 properties configured")
		return r
	}
	r.defaultName = props.Default

	for _, name := range slices.Sorted(maps.Keys(props.Registration)) {
		if reg, ok := Resolve(props, name, log); ok {
			r.registrations[name] = reg
		}
	}

	log.Info("oauth2 registrations resolved",
		"configured", len(props.Registration),
		"resolved", len(r.registrations))
	return r
}

// Get returns the registration for name. An empty name selects the configured
// default, or the single registration when only one exists.
func (r *Registry) Get(name string) (*Registration, bool) {
	if name == "" {
		name = r.defaultName
	}
	if name == "" && len(r.registrations) == 1 {
		for _, reg := range r.registrations {
			return reg, true
		}
	}

	reg, ok := r.registrations[name]
	if !ok {
		r.logger.Warn("oauth2 registration not found", "registration", name)
		return nil, false
	}
	return reg, true
}

// Names returns the resolved registration names, sorted
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.registrations))
}

// Len returns the number of resolved registrations
func (r *Registry) Len() int {
	return len(r.registrations)
}

// Registrations returns the resolved registrations ordered by name
func (r *Registry) Registrations() []*Registration {
	out := make([]*Registration, 0, len(r.registrations))
	for _, name := range r.Names() {
		out = append(out, r.registrations[name])
	}
	return out
}

// TokenProviders builds one TokenProvider per resolved registration. If any
// provider cannot be built the ones already built are closed.
func (r *Registry) TokenProviders(supplier ClientSupplier, opts ...SpecOption) ([]*TokenProvider, error) {
	providers := make([]*TokenProvider, 0, len(r.registrations))
	for _, reg := range r.Registrations() {
		p, err := NewTokenProvider(NewProviderSpec(reg, supplier, opts...))
		if err != nil {
			var errs error = err
			for _, built := range providers {
				errs = multierr.Append(errs, built.Close())
			}
			return nil, fmt.Errorf("failed to build token provider %q: %w", reg.Name(), errs)
		}
		providers = append(providers, p)
	}
	return providers, nil
}
