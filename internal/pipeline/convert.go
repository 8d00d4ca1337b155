package pipeline

import (
	"fmt"
	"time"

	"github.com/organregistry/etl/internal/domain"
)

// ResolutionError reports a record that passed referential validation but
// failed foreign-key resolution at load time. It signals a reference-store
// inconsistency between the validate and load phases and is fatal to the run.
type ResolutionError struct {
	Entity       domain.EntityType
	NaturalKey   string
	FacilityCode string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s %s: facility code %q no longer resolves to an active center", e.Entity, e.NaturalKey, e.FacilityCode)
}

// The converters below run only on records that cleared the full rule
// cascade, so parse failures on validated columns indicate a bug in the
// catalog rather than bad data and are returned as errors, never skipped.

func buildDonor(rec domain.RawRecord, ref domain.ReferenceData, now time.Time) (domain.Donor, error) {
	birth, ok := domain.ParseDate(rec.Get(domain.ColBirthDate))
	if !ok {
		return domain.Donor{}, fmt.Errorf("donor %s: unparseable birth date slipped through validation", rec.Get(domain.ColDonorID))
	}
	referral, ok := domain.ParseDate(rec.Get(domain.ColReferralDate))
	if !ok {
		return domain.Donor{}, fmt.Errorf("donor %s: unparseable referral date slipped through validation", rec.Get(domain.ColDonorID))
	}
	facilityID, ok := ref.ResolveFacility(rec.Get(domain.ColFacilityCode))
	if !ok {
		return domain.Donor{}, &ResolutionError{
			Entity:       domain.EntityDonor,
			NaturalKey:   rec.Get(domain.ColDonorID),
			FacilityCode: rec.Get(domain.ColFacilityCode),
		}
	}

	height := optionalFloat(rec, domain.ColHeightCM)
	weight := optionalFloat(rec, domain.ColWeightKG)

	return domain.Donor{
		DonorID:      rec.Get(domain.ColDonorID),
		FirstName:    rec.Get(domain.ColFirstName),
		LastName:     rec.Get(domain.ColLastName),
		BirthDate:    birth,
		BloodType:    rec.Get(domain.ColBloodType),
		OrganType:    rec.Get(domain.ColOrganType),
		ReferralDate: referral,
		FacilityID:   facilityID,
		FacilityCode: rec.Get(domain.ColFacilityCode),
		DonorType:    rec.Get(domain.ColDonorType),
		Status:       rec.Get(domain.ColStatus),
		CauseOfDeath: optionalString(rec, domain.ColCauseOfDeath),
		HeightCM:     height,
		WeightKG:     weight,
		Phone:        optionalString(rec, domain.ColPhone),
		AgeYears:     AgeYears(birth, now),
		BMI:          BodyMassIndex(height, weight),
		LoadRunID:    rec.RunID,
	}, nil
}

func buildRecipient(rec domain.RawRecord, ref domain.ReferenceData, now time.Time) (domain.Recipient, error) {
	birth, ok := domain.ParseDate(rec.Get(domain.ColBirthDate))
	if !ok {
		return domain.Recipient{}, fmt.Errorf("recipient %s: unparseable birth date slipped through validation", rec.Get(domain.ColRecipientID))
	}
	listing, ok := domain.ParseDate(rec.Get(domain.ColListingDate))
	if !ok {
		return domain.Recipient{}, fmt.Errorf("recipient %s: unparseable listing date slipped through validation", rec.Get(domain.ColRecipientID))
	}
	facilityID, ok := ref.ResolveFacility(rec.Get(domain.ColFacilityCode))
	if !ok {
		return domain.Recipient{}, &ResolutionError{
			Entity:       domain.EntityRecipient,
			NaturalKey:   rec.Get(domain.ColRecipientID),
			FacilityCode: rec.Get(domain.ColFacilityCode),
		}
	}

	height := optionalFloat(rec, domain.ColHeightCM)
	weight := optionalFloat(rec, domain.ColWeightKG)

	return domain.Recipient{
		RecipientID:    rec.Get(domain.ColRecipientID),
		FirstName:      rec.Get(domain.ColFirstName),
		LastName:       rec.Get(domain.ColLastName),
		BirthDate:      birth,
		BloodType:      rec.Get(domain.ColBloodType),
		OrganNeeded:    rec.Get(domain.ColOrganNeeded),
		ListingDate:    listing,
		FacilityID:     facilityID,
		FacilityCode:   rec.Get(domain.ColFacilityCode),
		Status:         rec.Get(domain.ColStatus),
		UrgencyCode:    rec.Get(domain.ColUrgencyCode),
		Diagnosis:      optionalString(rec, domain.ColDiagnosis),
		HeightCM:       height,
		WeightKG:       weight,
		PRAPct:         optionalInt(rec, domain.ColPRAPct),
		AgeYears:       AgeYears(birth, now),
		BMI:            BodyMassIndex(height, weight),
		DaysOnWaitlist: DaysOnWaitlist(listing, now),
		LoadRunID:      rec.RunID,
	}, nil
}

func buildCenter(rec domain.RawRecord) (domain.Center, error) {
	region, ok := domain.ParseInt(rec.Get(domain.ColRegion))
	if !ok {
		return domain.Center{}, fmt.Errorf("center %s: unparseable region slipped through validation", rec.Get(domain.ColFacilityCode))
	}

	var accredited *time.Time
	if rec.Has(domain.ColAccreditationDate) {
		date, ok := domain.ParseDate(rec.Get(domain.ColAccreditationDate))
		if !ok {
			return domain.Center{}, fmt.Errorf("center %s: unparseable accreditation date slipped through validation", rec.Get(domain.ColFacilityCode))
		}
		accredited = &date
	}

	return domain.Center{
		FacilityCode:      rec.Get(domain.ColFacilityCode),
		Name:              rec.Get(domain.ColFacilityName),
		City:              optionalString(rec, domain.ColCity),
		State:             optionalString(rec, domain.ColState),
		Region:            region,
		FacilityType:      rec.Get(domain.ColFacilityType),
		CertificationID:   optionalString(rec, domain.ColCertificationID),
		AccreditationDate: accredited,
		Phone:             optionalString(rec, domain.ColPhone),
		Email:             optionalString(rec, domain.ColEmail),
		Active:            true,
		LoadRunID:         rec.RunID,
	}, nil
}

func optionalString(rec domain.RawRecord, column string) *string {
	if !rec.Has(column) {
		return nil
	}
	value := rec.Get(column)
	return &value
}

func optionalFloat(rec domain.RawRecord, column string) *float64 {
	value, ok := domain.ParseFloat(rec.Get(column))
	if !ok {
		return nil
	}
	return &value
}

func optionalInt(rec domain.RawRecord, column string) *int {
	value, ok := domain.ParseInt(rec.Get(column))
	if !ok {
		return nil
	}
	return &value
}
