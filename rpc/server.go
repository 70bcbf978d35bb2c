package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pulseward/pulseward/core"
)

// Server hosts a service's HTTP surface with the standard middleware stack
// (recovery, request logging, otel instrumentation) and a /health endpoint.
type Server struct {
	name   string
	srv    *http.Server
	logger core.Logger
}

// NewServer builds a server around mux. Handlers are registered on mux
// before calling Start.
func NewServer(name string, port int, mux *http.ServeMux, logger core.Logger) *Server {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"service": name,
		})
	})

	handler := core.Chain(mux,
		core.RecoveryMiddleware(logger),
		core.LoggingMiddleware(logger),
	)
	handler = otelhttp.NewHandler(handler, name)

	return &Server{
		name: name,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until the listener closes. It blocks; run it in a goroutine
// and call Shutdown to stop.
func (s *Server) Start() error {
	s.logger.Info("http server listening", map[string]interface{}{
		"service": s.name,
		"addr":    s.srv.Addr,
	})
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("%w: %s listen: %v", core.ErrConnectionFailed, s.name, err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// WriteJSON writes v with the given HTTP status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodes the request body into dst, bounding the body size.
func ReadJSON(r *http.Request, dst interface{}, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	body := http.MaxBytesReader(nil, r.Body, maxBytes)
	defer body.Close()
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: decoding request body: %v", core.ErrValidation, err)
	}
	return nil
}
