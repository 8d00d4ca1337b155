// Package report exposes the read contracts consumed by downstream
// reporting: production queries, error-sink queries and audit
// reconciliation. Everything here is read-only.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/organregistry/etl/internal/domain"
	"github.com/organregistry/etl/internal/repository"
)

// Service composes the stores behind the read contracts.
type Service struct {
	production repository.ProductionRepository
	errors     repository.ErrorRepository
	audit      repository.AuditRepository
}

// NewService builds the reporting facade.
func NewService(production repository.ProductionRepository, errors repository.ErrorRepository, audit repository.AuditRepository) *Service {
	return &Service{production: production, errors: errors, audit: audit}
}

// Donors queries the production store with optional filters.
func (s *Service) Donors(ctx context.Context, filter domain.DonorFilter) ([]domain.Donor, error) {
	return s.production.ListDonors(ctx, filter)
}

// Recipients queries the production store with optional filters.
func (s *Service) Recipients(ctx context.Context, filter domain.RecipientFilter) ([]domain.Recipient, error) {
	return s.production.ListRecipients(ctx, filter)
}

// Centers lists the facility dimension.
func (s *Service) Centers(ctx context.Context) ([]domain.Center, error) {
	return s.production.ListCenters(ctx)
}

// Errors returns a run's rejected records, optionally narrowed to one error
// code.
func (s *Service) Errors(ctx context.Context, runID int64, errorCode string) ([]domain.ErrorRecord, error) {
	return s.errors.List(ctx, runID, errorCode)
}

// Runs queries the audit ledger by time range, status or package.
func (s *Service) Runs(ctx context.Context, filter domain.RunFilter) ([]domain.LoadRun, error) {
	return s.audit.ListRuns(ctx, filter)
}

// Reconciliation is the per-run accounting view: every staged row must be
// either rejected or loaded.
type Reconciliation struct {
	RunID        int64
	PackageName  string
	Status       domain.RunStatus
	SourceRows   int
	StagedRows   int
	InsertedRows int
	UpdatedRows  int
	ErrorRows    int
	ErrorRate    float64
	Balanced     bool
}

// Reconcile builds the reconciliation view for one run.
func (s *Service) Reconcile(ctx context.Context, runID int64) (Reconciliation, error) {
	run, err := s.audit.GetRun(ctx, runID)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("reconcile run %d: %w", runID, err)
	}

	return Reconciliation{
		RunID:        run.ID,
		PackageName:  run.PackageName,
		Status:       run.Status,
		SourceRows:   run.Counts.SourceRows,
		StagedRows:   run.Counts.StagedRows,
		InsertedRows: run.Counts.InsertedRows,
		UpdatedRows:  run.Counts.UpdatedRows,
		ErrorRows:    run.Counts.ErrorRows,
		ErrorRate:    run.Counts.ErrorRate(),
		Balanced:     run.Counts.Balanced(),
	}, nil
}

// StaleRuns surfaces ledger entries still Running after the given age; a
// run that never sealed is an anomaly, not a state.
func (s *Service) StaleRuns(ctx context.Context, olderThan time.Duration) ([]domain.LoadRun, error) {
	return s.audit.StaleRuns(ctx, time.Now().UTC().Add(-olderThan))
}
