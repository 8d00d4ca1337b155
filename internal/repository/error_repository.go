package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/organregistry/etl/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type errorRepository struct {
	pool *pgxpool.Pool
}

// NewErrorRepository wires the error sink backed by pgxpool.
func NewErrorRepository(pool *pgxpool.Pool) ErrorRepository {
	return &errorRepository{pool: pool}
}

func (r *errorRepository) Record(ctx context.Context, rec domain.ErrorRecord) error {
	if r.pool == nil {
		return fmt.Errorf("error repository not initialized")
	}

	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal error record fields: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO load_errors (id, run_id, entity_type, natural_key, source_row_number, error_code, error_column, error_description, fields)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID,
		rec.RunID,
		string(rec.EntityType),
		rec.NaturalKey,
		rec.SourceRowNumber,
		rec.ErrorCode,
		rec.ErrorColumn,
		rec.ErrorDescription,
		fieldsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to record load error: %w", err)
	}

	return nil
}

func (r *errorRepository) List(ctx context.Context, runID int64, errorCode string) ([]domain.ErrorRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("error repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, run_id, entity_type, natural_key, source_row_number, error_code, error_column, error_description, fields, created_at
		 FROM load_errors
		 WHERE run_id = $1
		   AND ($2 = '' OR error_code = $2)
		 ORDER BY source_row_number`,
		runID,
		errorCode,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list load errors: %w", err)
	}
	defer rows.Close()

	records := []domain.ErrorRecord{}
	for rows.Next() {
		var (
			rec        domain.ErrorRecord
			entity     string
			fieldsJSON []byte
			createdAt  pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&entity,
			&rec.NaturalKey,
			&rec.SourceRowNumber,
			&rec.ErrorCode,
			&rec.ErrorColumn,
			&rec.ErrorDescription,
			&fieldsJSON,
			&createdAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan load error: %w", scanErr)
		}
		rec.EntityType = domain.EntityType(entity)
		if err := json.Unmarshal(fieldsJSON, &rec.Fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal load error fields: %w", err)
		}
		if createdAt.Valid {
			rec.CreatedAt = createdAt.Time
		}
		records = append(records, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate load errors: %w", rowsErr)
	}

	return records, nil
}

func (r *errorRepository) CountByRun(ctx context.Context, runID int64, entity domain.EntityType) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("error repository not initialized")
	}

	var count int
	err := r.pool.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM load_errors WHERE run_id = $1 AND entity_type = $2`,
		runID,
		string(entity),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count load errors: %w", err)
	}

	return count, nil
}

func (r *errorRepository) FailedRows(ctx context.Context, runID int64, entity domain.EntityType) (map[int]struct{}, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("error repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT source_row_number FROM load_errors WHERE run_id = $1 AND entity_type = $2`,
		runID,
		string(entity),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query failed rows: %w", err)
	}
	defer rows.Close()

	failed := map[int]struct{}{}
	for rows.Next() {
		var rowNumber int
		if scanErr := rows.Scan(&rowNumber); scanErr != nil {
			return nil, fmt.Errorf("failed to scan failed row: %w", scanErr)
		}
		failed[rowNumber] = struct{}{}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate failed rows: %w", rowsErr)
	}

	return failed, nil
}
