package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/maksimkurb/keen-iprules/src/internal/log"
)

// Server represents the API server
type Server struct {
	httpServer *http.Server
	log        *log.Logger
}

// NewServer creates an API server listening on bindAddr.
func NewServer(bindAddr string, handler http.Handler, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		log: logger,
		httpServer: &http.Server{
			Addr:         bindAddr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe serves until Shutdown is called. It returns nil after a
// clean shutdown.
func (s *Server) ListenAndServe() error {
	s.log.Infof("API server listening on http://%s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Infof("Stopping API server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.httpServer.Close()
		return err
	}
	return nil
}
