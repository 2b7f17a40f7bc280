// file: internal/metrics/server.go

package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"token-manager/config"
	"token-manager/internal/logger"
)

// Server exposes the registry over HTTP
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
}

// NewServer builds the metrics HTTP server for cfg. It is not listening yet.
func NewServer(cfg *config.MetricsConfig, m *Metrics, log *logger.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{
		Registry:          m.Registry(),
		EnableOpenMetrics: true,
	}))

	return &Server{
		httpServer: &http.Server{
			Addr:    cfg.Address,
			Handler: mux,
		},
		logger: log,
	}
}

// Start binds the listen address and serves in the background. Binding errors
// are returned; serve errors after that are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}

	go func() {
		s.logger.Info("starting metrics server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the server, waiting for in-flight scrapes until ctx is done
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the scrape handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
