// file: internal/lifecycle/lifecycle.go

package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"token-manager/internal/logger"
)

// ProviderLister is implemented by applications that serve named token
// providers. The run loop uses it to report what changed across a reload.
type ProviderLister interface {
	ProviderNames() []string
}

// RunWithReload runs an application until SIGINT/SIGTERM, rebuilding it from
// scratch on every SIGHUP. createApp is called on startup and on each reload,
// so a reload re-reads configuration and re-fetches every token. If createApp
// fails the error is returned and the process should exit.
//
//	createApp := func() (lifecycle.Application, error) {
//	    cfg, err := config.Load(path)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return app.NewTokenManagerApp(cfg)
//	}
//	err := lifecycle.RunWithReload(createApp, logger)
func RunWithReload(
	createApp func() (Application, error),
	log *logger.Logger,
) error {
	return runWithReload(createApp, log, make(chan os.Signal, 1), make(chan os.Signal, 1))
}

func runWithReload(
	createApp func() (Application, error),
	log *logger.Logger,
	shutdownSig, reloadSig chan os.Signal,
) error {
	r := &runner{
		createApp:   createApp,
		log:         log,
		shutdownSig: shutdownSig,
		reloadSig:   reloadSig,
	}
	return r.loop()
}

type stopReason int

const (
	stopShutdown stopReason = iota
	stopReload
	stopFailed
)

// runner owns the signal channels and the current application generation
type runner struct {
	createApp   func() (Application, error)
	log         *logger.Logger
	shutdownSig chan os.Signal
	reloadSig   chan os.Signal

	generation int
	providers  []string
}

func (r *runner) loop() error {
	for {
		application, err := r.start()
		if err != nil {
			return err
		}

		reason, runErr := r.wait(application)
		r.stop(application)

		if reason != stopReload {
			r.log.Info("shutdown complete", "generations", r.generation+1)
			return runErr
		}
		r.generation++
	}
}

// start builds the next generation with signal handling already in place, so a
// SIGTERM that arrives during the initial token fetch is not lost.
func (r *runner) start() (Application, error) {
	if r.generation > 0 {
		r.log.Info("reloading configuration and re-fetching tokens", "generation", r.generation)
	}

	signal.Notify(r.shutdownSig, os.Interrupt, syscall.SIGTERM)
	signal.Notify(r.reloadSig, syscall.SIGHUP)

	began := time.Now()
	application, err := r.createApp()
	if err != nil {
		signal.Stop(r.shutdownSig)
		signal.Stop(r.reloadSig)
		if r.generation > 0 {
			r.log.Error("reload failed, no token providers are running",
				"generation", r.generation,
				"previousProviders", r.providers,
				"error", err)
		}
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	r.reportProviders(application, time.Since(began))
	return application, nil
}

func (r *runner) reportProviders(application Application, took time.Duration) {
	lister, ok := application.(ProviderLister)
	if !ok {
		r.log.Info("application started", "generation", r.generation, "duration", took)
		return
	}

	names := lister.ProviderNames()
	if r.generation == 0 {
		r.log.Info("token providers started",
			"providers", len(names),
			"names", names,
			"duration", took)
	} else {
		added, removed := diffNames(r.providers, names)
		r.log.Info("reload completed",
			"generation", r.generation,
			"providers", len(names),
			"added", added,
			"removed", removed,
			"duration", took)
	}
	r.providers = names
}

// wait blocks until a signal arrives or Run returns on its own
func (r *runner) wait(application Application) (stopReason, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run(ctx)
	}()

	select {
	case sig := <-r.shutdownSig:
		r.log.Info("shutdown signal received", "signal", sig)
		return stopShutdown, nil
	case <-r.reloadSig:
		r.log.Info("SIGHUP received, stopping token providers for reload",
			"providers", len(r.providers))
		return stopReload, nil
	case err := <-errCh:
		r.log.Error("application stopped with error",
			"error", err,
			"generation", r.generation)
		return stopFailed, err
	}
}

// stop releases signal handling and closes the application. A close error is
// logged only; the loop still exits or reloads.
func (r *runner) stop(application Application) {
	signal.Stop(r.shutdownSig)
	signal.Stop(r.reloadSig)

	began := time.Now()
	if err := application.Close(); err != nil {
		r.log.Error("error during application close",
			"error", err,
			"duration", time.Since(began))
		return
	}
	r.log.Info("application closed", "duration", time.Since(began))
}

// diffNames returns the names only in next and the names only in prev
func diffNames(prev, next []string) (added, removed []string) {
	for _, n := range next {
		if !slices.Contains(prev, n) {
			added = append(added, n)
		}
	}
	for _, n := range prev {
		if !slices.Contains(next, n) {
			removed = append(removed, n)
		}
	}
	return added, removed
}
