// file: internal/authmgr/token_provider.go

package authmgr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"token-manager/config"
	"token-manager/internal/logger"
)

// ProviderState is the lifecycle state of a TokenProvider
type ProviderState int32

const (
	// StateDisabled means no usable token client was obtained. Permanent.
	StateDisabled ProviderState = iota
	// StateActive means the refresh loop is running
	StateActive
	// StateClosed is terminal
	StateClosed
)

func (s ProviderState) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("ProviderState(%d)", int32(s))
	}
}

// Provider is a named source of bearer tokens that can be closed
type Provider interface {
	Name() string
	GetToken() Token
	Close() error
}

// TokenProvider owns one cached token and refreshes it in the background before
// it expires. GetToken is safe for concurrent use and never blocks.
type TokenProvider struct {
	name         string
	registration *Registration
	client       TokenClient
	scheduler    *Resource[*RefreshScheduler]
	clock        clockwork.Clock
	tuning       config.RefreshConfig
	logger       *logger.Logger
	metrics      *Metrics
	listener     TokenListener

	// token is replaced wholesale on every successful refresh
	token atomic.Pointer[Token]
	state atomic.Int32

	// ctx is cancelled when Close begins, interrupting an in-flight fetch
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	closing    bool
	refreshing bool
	jobID      uuid.UUID
	hasJob     bool

	closeOnce sync.Once
	closeErr  error
}

var _ Provider = (*TokenProvider)(nil)

// NewTokenProvider builds a provider from spec. When the supplier yields a client
// the provider fetches once synchronously and then keeps refreshing on the
// scheduler; otherwise it is permanently disabled.
func NewTokenProvider(spec ProviderSpec) (*TokenProvider, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if spec.Clock == nil {
		spec.Clock = clockwork.NewRealClock()
	}
	if spec.Logger == nil {
		spec.Logger = logger.NewNopLogger()
	}

	name := spec.Registration.Name()
	p := &TokenProvider{
		name:         name,
		registration: spec.Registration,
		scheduler:    spec.Scheduler,
		clock:        spec.Clock,
		tuning:       spec.Tuning,
		logger:       spec.Logger.With("provider", name),
		metrics:      spec.Metrics,
		listener:     spec.Listener,
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.state.Store(int32(StateDisabled))

	client, err := spec.ClientSupplier(spec.Registration.Client(), spec.Registration.Provider())
	if err != nil || client == nil {
		p.logger.Error("no usable token client, provider disabled",
			"tokenUri", spec.Registration.Provider().TokenURI,
			"error", err)
		return p, nil
	}
	p.client = client

	if p.scheduler == nil {
		s, err := NewRefreshScheduler(p.clock, spec.Logger, p.tuning.CloseTaskRetryInterval)
		if err != nil {
			p.cancel()
			p.closeClient()
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		s.Start()
		p.scheduler = OwnedResource(s)
	}

	p.state.Store(int32(StateActive))
	p.logger.Info("token provider started",
		"scheduler", p.scheduler.Ownership().String(),
		"expirationErrorMargin", p.tuning.ExpirationErrorMargin,
		"minRefreshInterval", p.tuning.MinRefreshInterval)

	p.refresh()
	return p, nil
}

// Name returns the registration name
func (p *TokenProvider) Name() string {
	return p.name
}

// Registration returns the resolved registration this provider serves
func (p *TokenProvider) Registration() *Registration {
	return p.registration
}

// State returns the current lifecycle state
func (p *TokenProvider) State() ProviderState {
	return ProviderState(p.state.Load())
}

// GetToken returns the cached token if it has not expired, InvalidToken otherwise
func (p *TokenProvider) GetToken() Token {
	if p.State() != StateActive {
		return InvalidToken
	}
	tok := p.token.Load()
	if tok == nil || !p.clock.Now().Before(tok.Expiry) {
		return InvalidToken
	}
	return *tok
}

// refresh runs one fetch cycle and always schedules the next one, unless the
// provider is closing. A result that arrives after Close began is discarded.
func (p *TokenProvider) refresh() {
	p.mu.Lock()
	if p.closing || p.State() != StateActive {
		p.mu.Unlock()
		return
	}
	p.refreshing = true
	p.mu.Unlock()

	tok, err := p.fetch()

	p.mu.Lock()
	if p.closing {
		p.refreshing = false
		job, hadJob := p.jobID, p.hasJob
		p.hasJob = false
		p.mu.Unlock()
		p.logger.Debug("discarding refresh result, provider is closing")
		// Close could not remove the job while it was running
		if hadJob {
			if err := p.scheduler.Get().RemoveJob(job); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
				p.logger.Debug("failed to remove finished refresh job", "job", job, "error", err)
			}
		}
		return
	}
	if tok != nil {
		p.token.Store(tok)
	}
	p.mu.Unlock()

	if err != nil {
		var fetchErr *FetchError
		reason := reasonError
		if errors.As(err, &fetchErr) {
			reason = fetchErr.Reason
		}
		p.logger.Warn("token refresh failed, keeping previous token",
			"error", err,
			"currentExpiry", p.currentExpiry())
		if p.metrics != nil {
			p.metrics.IncRefreshFailure(p.name, reason)
		}
	} else {
		p.logger.Debug("token refreshed",
			"expiresIn", tok.ExpiresIn,
			"expiry", tok.Expiry)
		if p.metrics != nil {
			p.metrics.IncRefreshSuccess(p.name)
			p.metrics.SetTokenExpiry(p.name, tok.Expiry)
		}
		p.notify(*tok)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshing = false
	if p.closing {
		return
	}
	p.scheduleNextLocked()
}

// fetch calls the token client once and turns the response into a Token whose
// expiry is measured from the moment the fetch started.
func (p *TokenProvider) fetch() (*Token, error) {
	start := p.clock.Now()

	ctx, cancel := context.WithTimeout(p.ctx, p.tuning.FetchTimeout)
	defer cancel()

	resp, err := p.client.FetchToken(ctx)
	if p.metrics != nil {
		p.metrics.ObserveRefreshDuration(p.name, p.clock.Since(start).Seconds())
	}
	if err != nil {
		return nil, &FetchError{Provider: p.name, Reason: reasonError, Err: err}
	}
	if resp == nil {
		return nil, &FetchError{Provider: p.name, Reason: reasonEmptyResponse}
	}
	if resp.AccessToken == "" {
		return nil, &FetchError{Provider: p.name, Reason: reasonEmptyAccessToken}
	}

	lifetime := resp.ExpiresIn
	if lifetime == 0 && p.tuning.DefaultExpiration > 0 {
		lifetime = int64(p.tuning.DefaultExpiration / time.Second)
	}
	if lifetime <= 0 {
		return nil, &FetchError{
			Provider: p.name,
			Reason:   reasonInvalidLifetime,
			Err:      fmt.Errorf("declared lifetime %ds", resp.ExpiresIn),
		}
	}

	return &Token{
		AccessToken: resp.AccessToken,
		ExpiresIn:   lifetime,
		FetchedAt:   start,
		Expiry:      start.Add(time.Duration(lifetime) * time.Second),
	}, nil
}

func (p *TokenProvider) notify(tok Token) {
	if p.listener == nil {
		return
	}
	if err := p.listener.TokenRefreshed(p.ctx, p.name, tok); err != nil {
		p.logger.Error("token listener failed", "error", err)
		if p.metrics != nil {
			p.metrics.IncPublishFailure(p.name)
		}
	}
}

func (p *TokenProvider) currentExpiry() time.Time {
	if tok := p.token.Load(); tok != nil {
		return tok.Expiry
	}
	return time.Time{}
}

// nextRefreshDelay aims at expiry minus the error margin, never earlier than now,
// and never sooner than the minimum refresh interval.
func (p *TokenProvider) nextRefreshDelay(now time.Time) time.Duration {
	target := p.currentExpiry().Add(-p.tuning.ExpirationErrorMargin)
	if target.Before(now) {
		target = now
	}
	return max(target.Sub(now), p.tuning.MinRefreshInterval)
}

// scheduleNextLocked submits the next one-shot refresh. Caller holds p.mu.
func (p *TokenProvider) scheduleNextLocked() {
	sched := p.scheduler.Get()
	now := p.clock.Now()
	delay := p.nextRefreshDelay(now)

	job, err := sched.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(now.Add(delay))),
		gocron.NewTask(p.refresh),
		gocron.WithName(p.name+"-refresh"),
		gocron.WithTags(p.name),
	)
	if err != nil {
		p.logger.Error("failed to schedule token refresh", "error", err)
		return
	}

	prev, hadPrev := p.jobID, p.hasJob
	p.jobID, p.hasJob = job.ID(), true
	if hadPrev {
		if err := sched.RemoveJob(prev); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
			p.logger.Debug("failed to remove completed refresh job", "job", prev, "error", err)
		}
	}

	p.logger.Debug("next token refresh scheduled",
		"in", delay,
		"at", now.Add(delay))
}

// cancelPending removes the pending refresh job. It fails while a refresh is
// running, since that refresh may be about to publish or reschedule.
func (p *TokenProvider) cancelPending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.refreshing {
		return false
	}
	if p.hasJob {
		err := p.scheduler.Get().RemoveJob(p.jobID)
		if err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
			p.logger.Warn("failed to cancel pending refresh", "job", p.jobID, "error", err)
			return false
		}
		p.hasJob = false
	}
	return true
}

// Close stops the refresh loop and releases the scheduler if it is owned, then
// closes the token client if it is closeable. Only the client close error is
// returned; scheduler trouble is logged. Close runs once.
func (p *TokenProvider) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.close()
	})
	return p.closeErr
}

func (p *TokenProvider) close() error {
	p.logger.Info("closing token provider", "state", p.State().String())

	p.mu.Lock()
	p.closing = true
	p.mu.Unlock()
	p.cancel()

	if p.scheduler != nil {
		if p.scheduler.Owned() {
			p.stopOwnedScheduler()
		} else if !p.cancelPending() {
			p.logger.Warn("refresh still running on borrowed scheduler, it will not be rescheduled")
		}
	}
	p.state.Store(int32(StateClosed))

	err := p.closeClient()
	p.logger.Info("token provider closed")
	return err
}

// stopOwnedScheduler retries cancellation, racing an in-flight refresh, and
// falls back to a forced shutdown once the attempts are used up.
func (p *TokenProvider) stopOwnedScheduler() {
	attempts := p.tuning.MaxTaskCloseAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		if p.cancelPending() {
			if err := p.scheduler.Release(); err != nil {
				p.logger.Warn("refresh scheduler shutdown reported an error", "error", err)
			}
			return
		}
		p.logger.Debug("refresh in flight, retrying cancellation",
			"attempt", attempt,
			"maxAttempts", attempts)
		if attempt < attempts {
			p.clock.Sleep(p.tuning.CloseTaskRetryInterval)
		}
	}

	abandoned := len(p.scheduler.Get().Jobs())
	p.logger.Warn("could not cancel refresh task, forcing scheduler shutdown",
		"attempts", attempts,
		"abandonedTasks", abandoned)
	if err := p.scheduler.Release(); err != nil {
		p.logger.Warn("forced scheduler shutdown did not complete cleanly",
			"abandonedTasks", abandoned,
			"error", err)
	}
}

func (p *TokenProvider) closeClient() error {
	closer, ok := p.client.(io.Closer)
	if !ok {
		return nil
	}
	if err := closer.Close(); err != nil {
		p.logger.Error("failed to close token client", "error", err)
		return fmt.Errorf("close token client for %q: %w", p.name, err)
	}
	return nil
}
