package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/latoulicious/lofi-bot/pkg/logging"
)

// Server runs the dashboard API in the background.
type Server struct {
	http   *http.Server
	logger logging.Logger
	errs   chan error
}

func NewServer(port int, router *gin.Engine, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NullLogger()
	}
	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.With(logging.String("component", "api")),
		errs:   make(chan error, 1),
	}
}

// Start binds the port and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server stopped", logging.Error(err))
			s.errs <- err
		}
		close(s.errs)
	}()

	s.logger.Info("API server started", logging.String("addr", ln.Addr().String()))
	return nil
}

// Errors yields the error that stopped the server, if any.
func (s *Server) Errors() <-chan error {
	return s.errs
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	s.logger.Info("API server stopped")
	return nil
}
