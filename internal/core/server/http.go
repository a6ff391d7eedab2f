package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HTTPServer serves the auxiliary endpoints:
//
//	/metrics  Prometheus exposition
//	/health   liveness probe
//	/events   WebSocket stream of derived events (when a stream handler is set)
type HTTPServer struct {
	server *http.Server
	log    zerolog.Logger
}

// NewHTTPServer creates the auxiliary HTTP server. stream may be nil.
func NewHTTPServer(addr string, gatherer prometheus.Gatherer, stream http.Handler, log zerolog.Logger) (*HTTPServer, error) {
	if gatherer == nil {
		return nil, fmt.Errorf("gatherer cannot be nil")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if stream != nil {
		mux.Handle("/events", stream)
	}

	return &HTTPServer{
		server: &http.Server{Addr: addr, Handler: mux},
		log:    log,
	}, nil
}

// Handler exposes the routing table.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start binds the configured address and serves until Shutdown.
func (s *HTTPServer) Start() error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.server.Addr, err)
	}
	s.log.Info().Str("addr", listener.Addr().String()).Msg("http server listening")

	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Hijacked WebSocket connections are not tracked; close the stream hub first.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
