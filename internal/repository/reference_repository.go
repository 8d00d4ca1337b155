package repository

import (
	"context"
	"fmt"

	"github.com/organregistry/etl/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type referenceRepository struct {
	pool *pgxpool.Pool
}

// NewReferenceRepository wires the reference store backed by pgxpool.
func NewReferenceRepository(pool *pgxpool.Pool) ReferenceRepository {
	return &referenceRepository{pool: pool}
}

// Snapshot loads the full reference store into memory. The code tables are
// tiny (tens of rows) and read-mostly, so a run-scoped snapshot is cheaper
// than per-record lookups and gives the run a consistent view.
func (r *referenceRepository) Snapshot(ctx context.Context) (domain.ReferenceData, error) {
	if r.pool == nil {
		return domain.ReferenceData{}, fmt.Errorf("reference repository not initialized")
	}

	data := domain.ReferenceData{
		BloodTypes:    map[string]struct{}{},
		OrganTypes:    map[string]struct{}{},
		DonorTypes:    map[string]struct{}{},
		UrgencyCodes:  map[string]struct{}{},
		FacilityTypes: map[string]struct{}{},
		StatusCodes: map[domain.EntityType]map[string]struct{}{
			domain.EntityDonor:     {},
			domain.EntityRecipient: {},
		},
		Facilities: map[string]int64{},
	}

	codeTables := []struct {
		query string
		dest  map[string]struct{}
	}{
		{`SELECT code FROM blood_types`, data.BloodTypes},
		{`SELECT code FROM organ_types`, data.OrganTypes},
		{`SELECT code FROM donor_types`, data.DonorTypes},
		{`SELECT code FROM urgency_codes`, data.UrgencyCodes},
		{`SELECT code FROM facility_types`, data.FacilityTypes},
	}
	for _, table := range codeTables {
		if err := r.loadCodes(ctx, table.query, table.dest); err != nil {
			return domain.ReferenceData{}, err
		}
	}

	rows, err := r.pool.Query(ctx, `SELECT entity_scope, code FROM status_codes`)
	if err != nil {
		return domain.ReferenceData{}, fmt.Errorf("failed to load status codes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var scope, code string
		if scanErr := rows.Scan(&scope, &code); scanErr != nil {
			return domain.ReferenceData{}, fmt.Errorf("failed to scan status code: %w", scanErr)
		}
		entity := domain.EntityType(scope)
		if _, ok := data.StatusCodes[entity]; !ok {
			data.StatusCodes[entity] = map[string]struct{}{}
		}
		data.StatusCodes[entity][code] = struct{}{}
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return domain.ReferenceData{}, fmt.Errorf("failed to iterate status codes: %w", rowsErr)
	}

	facilityRows, err := r.pool.Query(ctx, `SELECT id, facility_code FROM transplant_centers WHERE active`)
	if err != nil {
		return domain.ReferenceData{}, fmt.Errorf("failed to load facility dimension: %w", err)
	}
	defer facilityRows.Close()
	for facilityRows.Next() {
		var (
			id   int64
			code string
		)
		if scanErr := facilityRows.Scan(&id, &code); scanErr != nil {
			return domain.ReferenceData{}, fmt.Errorf("failed to scan facility: %w", scanErr)
		}
		data.Facilities[code] = id
	}
	if rowsErr := facilityRows.Err(); rowsErr != nil {
		return domain.ReferenceData{}, fmt.Errorf("failed to iterate facilities: %w", rowsErr)
	}

	return data, nil
}

func (r *referenceRepository) loadCodes(ctx context.Context, query string, dest map[string]struct{}) error {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to load reference codes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		if scanErr := rows.Scan(&code); scanErr != nil {
			return fmt.Errorf("failed to scan reference code: %w", scanErr)
		}
		dest[code] = struct{}{}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return fmt.Errorf("failed to iterate reference codes: %w", rowsErr)
	}

	return nil
}
