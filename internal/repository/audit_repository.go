package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/organregistry/etl/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository wires the run ledger backed by pgxpool.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

// ErrRunSealed is returned when CompleteRun targets a run that already has a
// terminal status.
var ErrRunSealed = errors.New("run already sealed")

// StartRun allocates the next run identifier from the ledger's sequence.
// Concurrent callers each get a distinct monotonic id.
func (r *auditRepository) StartRun(ctx context.Context, packageName, sourceFileName, executedBy string) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("audit repository not initialized")
	}

	var runID int64
	err := r.pool.QueryRow(
		ctx,
		`INSERT INTO load_runs (package_name, source_file_name, status, executed_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		packageName,
		sourceFileName,
		string(domain.RunRunning),
		executedBy,
	).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("failed to start run: %w", err)
	}

	return runID, nil
}

// CompleteRun seals a run. The status guard in the WHERE clause refuses a
// second terminal write; sealed runs are immutable.
func (r *auditRepository) CompleteRun(ctx context.Context, runID int64, status domain.RunStatus, counts domain.RunCounts, errorMessage *string) error {
	if r.pool == nil {
		return fmt.Errorf("audit repository not initialized")
	}
	if !status.Terminal() {
		return fmt.Errorf("complete run %d with status %q: %w", runID, status, domain.ErrNonTerminalStatus)
	}

	tag, err := r.pool.Exec(
		ctx,
		`UPDATE load_runs
		 SET status = $2,
		     completed_at = now(),
		     source_rows = $3,
		     staged_rows = $4,
		     inserted_rows = $5,
		     updated_rows = $6,
		     error_rows = $7,
		     error_message = $8
		 WHERE id = $1 AND status = $9`,
		runID,
		string(status),
		counts.SourceRows,
		counts.StagedRows,
		counts.InsertedRows,
		counts.UpdatedRows,
		counts.ErrorRows,
		errorMessage,
		string(domain.RunRunning),
	)
	if err != nil {
		return fmt.Errorf("failed to complete run %d: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetRun(ctx, runID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("complete run %d: %w", runID, ErrRunSealed)
	}

	return nil
}

const runColumns = `id, package_name, source_file_name, started_at, completed_at, status,
	source_rows, staged_rows, inserted_rows, updated_rows, error_rows, executed_by, error_message`

func (r *auditRepository) GetRun(ctx context.Context, runID int64) (domain.LoadRun, error) {
	if r.pool == nil {
		return domain.LoadRun{}, fmt.Errorf("audit repository not initialized")
	}

	row := r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM load_runs WHERE id = $1`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LoadRun{}, ErrNotFound
		}
		return domain.LoadRun{}, err
	}
	return run, nil
}

func (r *auditRepository) ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.LoadRun, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("audit repository not initialized")
	}

	var from, to any
	if !filter.From.IsZero() {
		from = filter.From
	}
	if !filter.To.IsZero() {
		to = filter.To
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+runColumns+`
		 FROM load_runs
		 WHERE ($1 = '' OR status = $1)
		   AND ($2 = '' OR package_name = $2)
		   AND ($3::timestamptz IS NULL OR started_at >= $3)
		   AND ($4::timestamptz IS NULL OR started_at < $4)
		 ORDER BY id DESC`,
		string(filter.Status),
		filter.PackageName,
		from,
		to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.LoadRun{}
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, run)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", rowsErr)
	}

	return runs, nil
}

func (r *auditRepository) StaleRuns(ctx context.Context, cutoff time.Time) ([]domain.LoadRun, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("audit repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+runColumns+`
		 FROM load_runs
		 WHERE status = $1 AND started_at < $2
		 ORDER BY started_at`,
		string(domain.RunRunning),
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.LoadRun{}
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, run)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate stale runs: %w", rowsErr)
	}

	return runs, nil
}

func scanRun(row pgx.Row) (domain.LoadRun, error) {
	var (
		run          domain.LoadRun
		status       string
		completedAt  pgtype.Timestamptz
		errorMessage pgtype.Text
	)
	err := row.Scan(
		&run.ID,
		&run.PackageName,
		&run.SourceFileName,
		&run.StartedAt,
		&completedAt,
		&status,
		&run.Counts.SourceRows,
		&run.Counts.StagedRows,
		&run.Counts.InsertedRows,
		&run.Counts.UpdatedRows,
		&run.Counts.ErrorRows,
		&run.ExecutedBy,
		&errorMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LoadRun{}, err
		}
		return domain.LoadRun{}, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Status = domain.RunStatus(status)
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errorMessage.Valid {
		run.ErrorMessage = &errorMessage.String
	}
	return run, nil
}
