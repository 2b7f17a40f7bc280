// file: internal/lifecycle/application.go

// Package lifecycle provides application lifecycle management including
// graceful shutdown and runtime reloading via SIGHUP signal.
package lifecycle

import "context"

// Application represents a runnable application that supports graceful
// shutdown and runtime reloading. The token manager implements it.
type Application interface {
	// Run blocks until the context is cancelled. Background work such as
	// token refreshing is already running when Run is called.
	//
	// Returns an error if the application encounters a fatal error during
	// operation. Normal shutdown should return nil.
	Run(ctx context.Context) error

	// Close stops refresh loops, closes token clients and NATS connections,
	// and shuts down the metrics server. It must be safe to call more than once.
	Close() error
}
