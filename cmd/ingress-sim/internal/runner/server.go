package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arloliu/edgeshard/types"
)

// MetricsServer serves Prometheus metrics via HTTP.
type MetricsServer struct {
	addr     string
	gatherer prometheus.Gatherer
	logger   types.Logger
	server   *http.Server
}

// NewMetricsServer creates a new Prometheus metrics server.
//
// Parameters:
//   - addr: Address to listen on (e.g., ":9090")
//   - gatherer: Registry to expose
//   - logger: Logger for server events
//
// Returns:
//   - *MetricsServer: Initialized server
func NewMetricsServer(addr string, gatherer prometheus.Gatherer, logger types.Logger) *MetricsServer {
	return &MetricsServer{
		addr:     addr,
		gatherer: gatherer,
		logger:   logger,
	}
}

// Handler returns the HTTP handler serving /metrics and /health.
func (s *MetricsServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", s.healthHandler)

	return mux
}

// Start serves until ctx is canceled, then shuts the server down.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: Listen error or shutdown error
func (s *MetricsServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting Prometheus server", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}

		return nil
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully shuts down the server.
func (s *MetricsServer) Shutdown() error {
	s.logger.Info("shutting down Prometheus server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func (s *MetricsServer) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK\n")
}
