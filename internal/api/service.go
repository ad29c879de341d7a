package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/courselab/server/internal/common"
	"github.com/courselab/server/internal/migrate"
	"github.com/courselab/server/internal/postgres"
	"github.com/courselab/server/internal/version"
)

// Pinger reports database connectivity. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LedgerReader lists the applied migrations. *migrate.Ledger satisfies it.
type LedgerReader interface {
	ListApplied(ctx context.Context) ([]migrate.AppliedMigration, error)
}

var _ common.HealthCheckable = (*Service)(nil)

// Service implements the read-only operational endpoints exposed once
// migrations have completed.
type Service struct {
	pool   Pinger
	ledger LedgerReader
	logger zerolog.Logger
}

func NewService(pool Pinger, ledger LedgerReader, logger zerolog.Logger) *Service {
	return &Service{
		pool:   pool,
		ledger: ledger,
		logger: logger.With().
			Str("component", "api").
			Logger(),
	}
}

func (s *Service) Routes(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Get("/api/v1/migrations", s.handleListMigrations)
	r.Get("/api/v1/version", s.handleVersion)
}

func (s *Service) HealthCheck(ctx context.Context) common.ComponentStatus {
	status := common.ComponentStatus{Name: "database", Healthy: true}
	if err := s.pool.Ping(ctx); err != nil {
		status.Healthy = false
		status.Error = err.Error()
	}
	return status
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.HealthCheck(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, status)
}

func (s *Service) handleListMigrations(w http.ResponseWriter, r *http.Request) {
	applied, err := s.ledger.ListApplied(r.Context())
	if postgres.IsUndefinedTable(err) {
		// ledger table not created yet, nothing has been applied
		err = nil
	}
	if err != nil {
		s.logger.Err(err).Msg("failed to list applied migrations")
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list applied migrations",
		})
		return
	}
	if applied == nil {
		applied = []migrate.AppliedMigration{}
	}
	s.writeJSON(w, http.StatusOK, applied)
}

func (s *Service) handleVersion(w http.ResponseWriter, _ *http.Request) {
	info, err := version.GetInfo()
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to read build info",
		})
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Service) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Err(err).Msg("failed to encode response")
	}
}
