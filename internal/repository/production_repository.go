package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/organregistry/etl/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type productionRepository struct {
	pool *pgxpool.Pool
}

// NewProductionRepository wires the typed entity tables backed by pgxpool.
func NewProductionRepository(pool *pgxpool.Pool) ProductionRepository {
	return &productionRepository{pool: pool}
}

// UpsertDonor merges a donor by natural key in a single conditional write.
// (xmax = 0) distinguishes a fresh insert from a conflict update.
func (r *productionRepository) UpsertDonor(ctx context.Context, d domain.Donor) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("production repository not initialized")
	}

	var created bool
	err := r.pool.QueryRow(
		ctx,
		`INSERT INTO donors (
			donor_id, first_name, last_name, birth_date, blood_type, organ_type,
			referral_date, facility_id, donor_type, status, cause_of_death,
			height_cm, weight_kg, phone, age_years, bmi, load_run_id
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (donor_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			birth_date = EXCLUDED.birth_date,
			blood_type = EXCLUDED.blood_type,
			organ_type = EXCLUDED.organ_type,
			referral_date = EXCLUDED.referral_date,
			facility_id = EXCLUDED.facility_id,
			donor_type = EXCLUDED.donor_type,
			status = EXCLUDED.status,
			cause_of_death = EXCLUDED.cause_of_death,
			height_cm = EXCLUDED.height_cm,
			weight_kg = EXCLUDED.weight_kg,
			phone = EXCLUDED.phone,
			age_years = EXCLUDED.age_years,
			bmi = EXCLUDED.bmi,
			load_run_id = EXCLUDED.load_run_id,
			updated_at = now()
		 RETURNING (xmax = 0)`,
		d.DonorID, d.FirstName, d.LastName, d.BirthDate, d.BloodType, d.OrganType,
		d.ReferralDate, d.FacilityID, d.DonorType, d.Status, d.CauseOfDeath,
		d.HeightCM, d.WeightKG, d.Phone, d.AgeYears, d.BMI, d.LoadRunID,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert donor %s: %w", d.DonorID, err)
	}

	return created, nil
}

func (r *productionRepository) UpsertRecipient(ctx context.Context, rec domain.Recipient) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("production repository not initialized")
	}

	var created bool
	err := r.pool.QueryRow(
		ctx,
		`INSERT INTO recipients (
			recipient_id, first_name, last_name, birth_date, blood_type, organ_needed,
			listing_date, facility_id, status, urgency_code, diagnosis,
			height_cm, weight_kg, pra_pct, age_years, bmi, days_on_waitlist, load_run_id
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		 ON CONFLICT (recipient_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			birth_date = EXCLUDED.birth_date,
			blood_type = EXCLUDED.blood_type,
			organ_needed = EXCLUDED.organ_needed,
			listing_date = EXCLUDED.listing_date,
			facility_id = EXCLUDED.facility_id,
			status = EXCLUDED.status,
			urgency_code = EXCLUDED.urgency_code,
			diagnosis = EXCLUDED.diagnosis,
			height_cm = EXCLUDED.height_cm,
			weight_kg = EXCLUDED.weight_kg,
			pra_pct = EXCLUDED.pra_pct,
			age_years = EXCLUDED.age_years,
			bmi = EXCLUDED.bmi,
			days_on_waitlist = EXCLUDED.days_on_waitlist,
			load_run_id = EXCLUDED.load_run_id,
			updated_at = now()
		 RETURNING (xmax = 0)`,
		rec.RecipientID, rec.FirstName, rec.LastName, rec.BirthDate, rec.BloodType, rec.OrganNeeded,
		rec.ListingDate, rec.FacilityID, rec.Status, rec.UrgencyCode, rec.Diagnosis,
		rec.HeightCM, rec.WeightKG, rec.PRAPct, rec.AgeYears, rec.BMI, rec.DaysOnWaitlist, rec.LoadRunID,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert recipient %s: %w", rec.RecipientID, err)
	}

	return created, nil
}

func (r *productionRepository) UpsertCenter(ctx context.Context, c domain.Center) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("production repository not initialized")
	}

	var created bool
	err := r.pool.QueryRow(
		ctx,
		`INSERT INTO transplant_centers (
			facility_code, facility_name, city, state, region, facility_type,
			certification_id, accreditation_date, phone, email, active, load_run_id
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (facility_code) DO UPDATE SET
			facility_name = EXCLUDED.facility_name,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			region = EXCLUDED.region,
			facility_type = EXCLUDED.facility_type,
			certification_id = EXCLUDED.certification_id,
			accreditation_date = EXCLUDED.accreditation_date,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			active = EXCLUDED.active,
			load_run_id = EXCLUDED.load_run_id,
			updated_at = now()
		 RETURNING (xmax = 0)`,
		c.FacilityCode, c.Name, c.City, c.State, c.Region, c.FacilityType,
		c.CertificationID, c.AccreditationDate, c.Phone, c.Email, c.Active, c.LoadRunID,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert center %s: %w", c.FacilityCode, err)
	}

	return created, nil
}

const donorColumns = `d.id, d.donor_id, d.first_name, d.last_name, d.birth_date, d.blood_type,
	d.organ_type, d.referral_date, d.facility_id, c.facility_code, d.donor_type, d.status,
	d.cause_of_death, d.height_cm, d.weight_kg, d.phone, d.age_years, d.bmi,
	d.created_at, d.updated_at, d.load_run_id`

func (r *productionRepository) ListDonors(ctx context.Context, filter domain.DonorFilter) ([]domain.Donor, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("production repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+donorColumns+`
		 FROM donors d
		 JOIN transplant_centers c ON c.id = d.facility_id
		 WHERE ($1 = '' OR d.status = $1)
		   AND ($2 = '' OR d.blood_type = $2)
		   AND ($3 = '' OR d.organ_type = $3)
		   AND ($4 = '' OR c.facility_code = $4)
		 ORDER BY d.donor_id`,
		filter.Status, filter.BloodType, filter.OrganType, filter.FacilityCode,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list donors: %w", err)
	}
	defer rows.Close()

	donors := []domain.Donor{}
	for rows.Next() {
		donor, scanErr := scanDonor(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		donors = append(donors, donor)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate donors: %w", rowsErr)
	}

	return donors, nil
}

func (r *productionRepository) GetDonor(ctx context.Context, donorID string) (domain.Donor, error) {
	if r.pool == nil {
		return domain.Donor{}, fmt.Errorf("production repository not initialized")
	}

	row := r.pool.QueryRow(
		ctx,
		`SELECT `+donorColumns+`
		 FROM donors d
		 JOIN transplant_centers c ON c.id = d.facility_id
		 WHERE d.donor_id = $1`,
		donorID,
	)
	donor, err := scanDonor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Donor{}, ErrNotFound
		}
		return domain.Donor{}, err
	}
	return donor, nil
}

const recipientColumns = `r.id, r.recipient_id, r.first_name, r.last_name, r.birth_date, r.blood_type,
	r.organ_needed, r.listing_date, r.facility_id, c.facility_code, r.status, r.urgency_code,
	r.diagnosis, r.height_cm, r.weight_kg, r.pra_pct, r.age_years, r.bmi, r.days_on_waitlist,
	r.created_at, r.updated_at, r.load_run_id`

func (r *productionRepository) ListRecipients(ctx context.Context, filter domain.RecipientFilter) ([]domain.Recipient, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("production repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+recipientColumns+`
		 FROM recipients r
		 JOIN transplant_centers c ON c.id = r.facility_id
		 WHERE ($1 = '' OR r.status = $1)
		   AND ($2 = '' OR r.blood_type = $2)
		   AND ($3 = '' OR r.urgency_code = $3)
		   AND ($4 = '' OR c.facility_code = $4)
		 ORDER BY r.recipient_id`,
		filter.Status, filter.BloodType, filter.UrgencyCode, filter.FacilityCode,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	recipients := []domain.Recipient{}
	for rows.Next() {
		recipient, scanErr := scanRecipient(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		recipients = append(recipients, recipient)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate recipients: %w", rowsErr)
	}

	return recipients, nil
}

func (r *productionRepository) GetRecipient(ctx context.Context, recipientID string) (domain.Recipient, error) {
	if r.pool == nil {
		return domain.Recipient{}, fmt.Errorf("production repository not initialized")
	}

	row := r.pool.QueryRow(
		ctx,
		`SELECT `+recipientColumns+`
		 FROM recipients r
		 JOIN transplant_centers c ON c.id = r.facility_id
		 WHERE r.recipient_id = $1`,
		recipientID,
	)
	recipient, err := scanRecipient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Recipient{}, ErrNotFound
		}
		return domain.Recipient{}, err
	}
	return recipient, nil
}

func (r *productionRepository) CountRecipients(ctx context.Context) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("production repository not initialized")
	}

	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM recipients`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recipients: %w", err)
	}
	return count, nil
}

const centerColumns = `id, facility_code, facility_name, city, state, region, facility_type,
	certification_id, accreditation_date, phone, email, active, created_at, updated_at, load_run_id`

func (r *productionRepository) ListCenters(ctx context.Context) ([]domain.Center, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("production repository not initialized")
	}

	rows, err := r.pool.Query(ctx, `SELECT `+centerColumns+` FROM transplant_centers ORDER BY facility_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list centers: %w", err)
	}
	defer rows.Close()

	centers := []domain.Center{}
	for rows.Next() {
		center, scanErr := scanCenter(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		centers = append(centers, center)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate centers: %w", rowsErr)
	}

	return centers, nil
}

func (r *productionRepository) GetCenter(ctx context.Context, facilityCode string) (domain.Center, error) {
	if r.pool == nil {
		return domain.Center{}, fmt.Errorf("production repository not initialized")
	}

	row := r.pool.QueryRow(ctx, `SELECT `+centerColumns+` FROM transplant_centers WHERE facility_code = $1`, facilityCode)
	center, err := scanCenter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Center{}, ErrNotFound
		}
		return domain.Center{}, err
	}
	return center, nil
}

func scanDonor(row pgx.Row) (domain.Donor, error) {
	var (
		d            domain.Donor
		birthDate    pgtype.Date
		referralDate pgtype.Date
		causeOfDeath pgtype.Text
		heightCM     pgtype.Float8
		weightKG     pgtype.Float8
		phone        pgtype.Text
		bmi          pgtype.Float8
	)
	err := row.Scan(
		&d.ID, &d.DonorID, &d.FirstName, &d.LastName, &birthDate, &d.BloodType,
		&d.OrganType, &referralDate, &d.FacilityID, &d.FacilityCode, &d.DonorType, &d.Status,
		&causeOfDeath, &heightCM, &weightKG, &phone, &d.AgeYears, &bmi,
		&d.CreatedAt, &d.UpdatedAt, &d.LoadRunID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Donor{}, err
		}
		return domain.Donor{}, fmt.Errorf("failed to scan donor: %w", err)
	}
	d.BirthDate = birthDate.Time
	d.ReferralDate = referralDate.Time
	if causeOfDeath.Valid {
		d.CauseOfDeath = &causeOfDeath.String
	}
	if heightCM.Valid {
		d.HeightCM = &heightCM.Float64
	}
	if weightKG.Valid {
		d.WeightKG = &weightKG.Float64
	}
	if phone.Valid {
		d.Phone = &phone.String
	}
	if bmi.Valid {
		d.BMI = &bmi.Float64
	}
	return d, nil
}

func scanRecipient(row pgx.Row) (domain.Recipient, error) {
	var (
		rec         domain.Recipient
		birthDate   pgtype.Date
		listingDate pgtype.Date
		diagnosis   pgtype.Text
		heightCM    pgtype.Float8
		weightKG    pgtype.Float8
		praPct      pgtype.Int4
		bmi         pgtype.Float8
	)
	err := row.Scan(
		&rec.ID, &rec.RecipientID, &rec.FirstName, &rec.LastName, &birthDate, &rec.BloodType,
		&rec.OrganNeeded, &listingDate, &rec.FacilityID, &rec.FacilityCode, &rec.Status, &rec.UrgencyCode,
		&diagnosis, &heightCM, &weightKG, &praPct, &rec.AgeYears, &bmi, &rec.DaysOnWaitlist,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.LoadRunID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Recipient{}, err
		}
		return domain.Recipient{}, fmt.Errorf("failed to scan recipient: %w", err)
	}
	rec.BirthDate = birthDate.Time
	rec.ListingDate = listingDate.Time
	if diagnosis.Valid {
		rec.Diagnosis = &diagnosis.String
	}
	if heightCM.Valid {
		rec.HeightCM = &heightCM.Float64
	}
	if weightKG.Valid {
		rec.WeightKG = &weightKG.Float64
	}
	if praPct.Valid {
		value := int(praPct.Int32)
		rec.PRAPct = &value
	}
	if bmi.Valid {
		rec.BMI = &bmi.Float64
	}
	return rec, nil
}

func scanCenter(row pgx.Row) (domain.Center, error) {
	var (
		c                 domain.Center
		city              pgtype.Text
		state             pgtype.Text
		certificationID   pgtype.Text
		accreditationDate pgtype.Date
		phone             pgtype.Text
		email             pgtype.Text
	)
	err := row.Scan(
		&c.ID, &c.FacilityCode, &c.Name, &city, &state, &c.Region, &c.FacilityType,
		&certificationID, &accreditationDate, &phone, &email, &c.Active,
		&c.CreatedAt, &c.UpdatedAt, &c.LoadRunID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Center{}, err
		}
		return domain.Center{}, fmt.Errorf("failed to scan center: %w", err)
	}
	if city.Valid {
		c.City = &city.String
	}
	if state.Valid {
		c.State = &state.String
	}
	if certificationID.Valid {
		c.CertificationID = &certificationID.String
	}
	if accreditationDate.Valid {
		date := accreditationDate.Time
		c.AccreditationDate = &date
	}
	if phone.Valid {
		c.Phone = &phone.String
	}
	if email.Valid {
		c.Email = &email.String
	}
	return c, nil
}
