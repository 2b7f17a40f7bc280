// file: internal/authmgr/scheduler.go

package authmgr

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"token-manager/internal/logger"
)

// RefreshScheduler runs one-shot refresh jobs. Many providers may share one
// scheduler; each provider keeps at most one pending job on it.
type RefreshScheduler struct {
	gocron.Scheduler
}

// NewRefreshScheduler creates a scheduler driven by clock. stopTimeout bounds how
// long Close waits for running jobs. The scheduler is not started.
func NewRefreshScheduler(clock clockwork.Clock, log *logger.Logger, stopTimeout time.Duration) (*RefreshScheduler, error) {
	opts := []gocron.SchedulerOption{
		gocron.WithClock(clock),
	}
	if stopTimeout > 0 {
		opts = append(opts, gocron.WithStopTimeout(stopTimeout))
	}
	if log != nil {
		opts = append(opts, gocron.WithLogger(log))
	}

	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh scheduler: %w", err)
	}
	return &RefreshScheduler{Scheduler: s}, nil
}

// Close shuts the scheduler down, waiting up to the stop timeout for running jobs
func (s *RefreshScheduler) Close() error {
	return s.Shutdown()
}
