package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/courselab/server/internal/config"
	"github.com/courselab/server/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP listener. It is started only after the migration
// runner reports success.
type Server struct {
	cfg        config.Config
	logger     zerolog.Logger
	httpServer *http.Server
	errCh      chan error
}

func NewServer(cfg config.Config, logger zerolog.Logger, svc *Service) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	svc.Routes(router)

	addr := net.JoinHostPort(cfg.HTTP.BindAddr, fmt.Sprintf("%d", cfg.HTTP.Port))
	errorLog := slog.NewLogLogger(
		logging.Slog(logger, logger.GetLevel()).Handler(),
		slog.LevelError,
	)

	return &Server{
		cfg:    cfg,
		logger: logger.With().Str("component", "api_server").Logger(),
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          errorLog,
		},
		errCh: make(chan error, 1),
	}
}

// Start begins serving in the background. Listen errors are delivered on
// Error.
func (s *Server) Start() {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting http server")

	go func() {
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- err
		}
	}()
}

func (s *Server) Error() <-chan error {
	return s.errCh
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
