// file: internal/authmgr/spec.go

package authmgr

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"token-manager/config"
	"token-manager/internal/logger"
)

// ProviderSpec collects everything needed to build one TokenProvider
type ProviderSpec struct {
	Registration   *Registration
	ClientSupplier ClientSupplier

	// Scheduler runs the refresh jobs. When nil the provider creates, starts and
	// owns a scheduler of its own.
	Scheduler *Resource[*RefreshScheduler]

	Clock    clockwork.Clock
	Tuning   config.RefreshConfig
	Logger   *logger.Logger
	Metrics  *Metrics
	Listener TokenListener
}

// SpecOption is a functional option for configuring a ProviderSpec
type SpecOption func(*ProviderSpec)

// WithScheduler runs refreshes on the given scheduler. Wrap it with
// BorrowedResource to keep it running after the provider closes.
func WithScheduler(s *Resource[*RefreshScheduler]) SpecOption {
	return func(spec *ProviderSpec) {
		spec.Scheduler = s
	}
}

// WithClock sets the time source used for expiry and scheduling
func WithClock(c clockwork.Clock) SpecOption {
	return func(spec *ProviderSpec) {
		spec.Clock = c
	}
}

// WithTuning replaces the refresh tuning. Unset values take their defaults.
func WithTuning(t config.RefreshConfig) SpecOption {
	return func(spec *ProviderSpec) {
		t.ApplyDefaults()
		spec.Tuning = t
	}
}

// WithDefaultExpiration sets the lifetime assumed when the issuer declares none
func WithDefaultExpiration(d time.Duration) SpecOption {
	return func(spec *ProviderSpec) {
		spec.Tuning.DefaultExpiration = d
	}
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) SpecOption {
	return func(spec *ProviderSpec) {
		spec.Logger = l
	}
}

// WithMetrics enables refresh metrics
func WithMetrics(m *Metrics) SpecOption {
	return func(spec *ProviderSpec) {
		spec.Metrics = m
	}
}

// WithListener registers a listener notified after each successful refresh
func WithListener(l TokenListener) SpecOption {
	return func(spec *ProviderSpec) {
		spec.Listener = l
	}
}

// NewProviderSpec builds a spec with defaults: real clock, default tuning, no-op logger.
func NewProviderSpec(reg *Registration, supplier ClientSupplier, opts ...SpecOption) ProviderSpec {
	spec := ProviderSpec{
		Registration:   reg,
		ClientSupplier: supplier,
		Clock:          clockwork.NewRealClock(),
		Logger:         logger.NewNopLogger(),
	}
	spec.Tuning.ApplyDefaults()

	for _, opt := range opts {
		opt(&spec)
	}
	return spec
}

// Validate checks the spec can build a provider
func (s *ProviderSpec) Validate() error {
	if s.Registration == nil {
		return fmt.Errorf("provider spec: registration is required")
	}
	if s.ClientSupplier == nil {
		return fmt.Errorf("provider spec %q: client supplier is required", s.Registration.Name())
	}
	if err := s.Tuning.Validate(); err != nil {
		return fmt.Errorf("provider spec %q: %w", s.Registration.Name(), err)
	}
	return nil
}
