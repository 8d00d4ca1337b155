package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/organregistry/etl/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type stagingRepository struct {
	pool *pgxpool.Pool
}

// NewStagingRepository wires the staging buffer backed by pgxpool.
func NewStagingRepository(pool *pgxpool.Pool) StagingRepository {
	return &stagingRepository{pool: pool}
}

// Replace truncates the buffer for one entity type and loads the new
// snapshot inside a single transaction, so readers never observe a
// half-replaced buffer.
func (r *stagingRepository) Replace(ctx context.Context, entity domain.EntityType, records []domain.RawRecord) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("staging repository not initialized")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin staging transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM staging_records WHERE entity_type = $1`, string(entity)); err != nil {
		return 0, fmt.Errorf("failed to truncate staging for %s: %w", entity, err)
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		fieldsJSON, err := json.Marshal(rec.Fields)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal staged fields: %w", err)
		}
		rows = append(rows, []any{string(entity), rec.RunID, rec.SourceFileName, rec.SourceRowNumber, fieldsJSON})
	}

	staged, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"staging_records"},
		[]string{"entity_type", "run_id", "source_file_name", "source_row_number", "fields"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to stage %s records: %w", entity, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit staging transaction: %w", err)
	}

	return int(staged), nil
}

func (r *stagingRepository) ListByRun(ctx context.Context, entity domain.EntityType, runID int64) ([]domain.RawRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("staging repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT run_id, source_file_name, source_row_number, fields
		 FROM staging_records
		 WHERE entity_type = $1 AND run_id = $2
		 ORDER BY source_row_number`,
		string(entity),
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged records: %w", err)
	}
	defer rows.Close()

	records := []domain.RawRecord{}
	for rows.Next() {
		var (
			rec        domain.RawRecord
			fieldsJSON []byte
		)
		if scanErr := rows.Scan(&rec.RunID, &rec.SourceFileName, &rec.SourceRowNumber, &fieldsJSON); scanErr != nil {
			return nil, fmt.Errorf("failed to scan staged record: %w", scanErr)
		}
		if err := json.Unmarshal(fieldsJSON, &rec.Fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal staged fields: %w", err)
		}
		records = append(records, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate staged records: %w", rowsErr)
	}

	return records, nil
}
