package repository

import (
	"context"
	"errors"
	"time"

	"github.com/organregistry/etl/internal/domain"
)

// StagingRepository is the transient landing buffer for raw records. One
// entity type holds at most one run's snapshot at a time.
type StagingRepository interface {
	// Replace truncates the buffer for the entity type and loads the given
	// records, returning the staged row count.
	Replace(ctx context.Context, entity domain.EntityType, records []domain.RawRecord) (int, error)
	// ListByRun returns the staged snapshot for a run in source row order.
	ListByRun(ctx context.Context, entity domain.EntityType, runID int64) ([]domain.RawRecord, error)
}

// ErrorRepository is the append-only sink of rejected records.
type ErrorRepository interface {
	Record(ctx context.Context, rec domain.ErrorRecord) error
	// List returns error records for a run, optionally narrowed to one
	// error code. Pass "" to list all.
	List(ctx context.Context, runID int64, errorCode string) ([]domain.ErrorRecord, error)
	CountByRun(ctx context.Context, runID int64, entity domain.EntityType) (int, error)
	// FailedRows returns the source row numbers rejected for a run. The
	// loader subtracts these from the staged snapshot to obtain the valid
	// subset.
	FailedRows(ctx context.Context, runID int64, entity domain.EntityType) (map[int]struct{}, error)
}

// ReferenceRepository exposes the reference store as a consistent snapshot.
type ReferenceRepository interface {
	Snapshot(ctx context.Context) (domain.ReferenceData, error)
}

// ProductionRepository holds the typed entity tables. Upserts are keyed by
// natural business identifier and must be idempotent.
type ProductionRepository interface {
	// UpsertDonor inserts or updates by DonorID; created reports whether a
	// new row was inserted.
	UpsertDonor(ctx context.Context, d domain.Donor) (created bool, err error)
	UpsertRecipient(ctx context.Context, r domain.Recipient) (created bool, err error)
	UpsertCenter(ctx context.Context, c domain.Center) (created bool, err error)

	ListDonors(ctx context.Context, filter domain.DonorFilter) ([]domain.Donor, error)
	ListRecipients(ctx context.Context, filter domain.RecipientFilter) ([]domain.Recipient, error)
	ListCenters(ctx context.Context) ([]domain.Center, error)
	GetDonor(ctx context.Context, donorID string) (domain.Donor, error)
	GetRecipient(ctx context.Context, recipientID string) (domain.Recipient, error)
	GetCenter(ctx context.Context, facilityCode string) (domain.Center, error)
	CountRecipients(ctx context.Context) (int64, error)
}

// AuditRepository is the run ledger. Runs are created Running and sealed
// exactly once with a terminal status; never deleted.
type AuditRepository interface {
	// StartRun allocates a fresh monotonic run identifier. Safe to call
	// concurrently; every call yields a distinct id.
	StartRun(ctx context.Context, packageName, sourceFileName, executedBy string) (int64, error)
	// CompleteRun seals the run with a terminal status, end time and counts.
	CompleteRun(ctx context.Context, runID int64, status domain.RunStatus, counts domain.RunCounts, errorMessage *string) error
	GetRun(ctx context.Context, runID int64) (domain.LoadRun, error)
	ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.LoadRun, error)
	// StaleRuns returns runs still Running that started before the cutoff;
	// these are anomalies left behind by aborted callers.
	StaleRuns(ctx context.Context, cutoff time.Time) ([]domain.LoadRun, error)
}

// ErrNotFound is returned by point lookups that match no row.
var ErrNotFound = errors.New("not found")

// Stores bundles the repositories a pipeline needs.
type Stores struct {
	Staging    StagingRepository
	Errors     ErrorRepository
	Reference  ReferenceRepository
	Production ProductionRepository
	Audit      AuditRepository
}
