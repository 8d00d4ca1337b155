package domain

// Boundary column names per entity type. The file connector maps header
// synonyms onto these; the rule catalog and loader address columns by them.
const (
	ColDonorID           = "donor_id"
	ColRecipientID       = "recipient_id"
	ColFirstName         = "first_name"
	ColLastName          = "last_name"
	ColBirthDate         = "birth_date"
	ColBloodType         = "blood_type"
	ColOrganType         = "organ_type"
	ColOrganNeeded       = "organ_needed"
	ColReferralDate      = "referral_date"
	ColListingDate       = "listing_date"
	ColFacilityCode      = "facility_code"
	ColDonorType         = "donor_type"
	ColStatus            = "status"
	ColUrgencyCode       = "urgency_code"
	ColCauseOfDeath      = "cause_of_death"
	ColDiagnosis         = "diagnosis"
	ColHeightCM          = "height_cm"
	ColWeightKG          = "weight_kg"
	ColPRAPct            = "pra_pct"
	ColPhone             = "phone"
	ColEmail             = "email"
	ColFacilityName      = "facility_name"
	ColCity              = "city"
	ColState             = "state"
	ColRegion            = "region"
	ColFacilityType      = "facility_type"
	ColCertificationID   = "certification_id"
	ColAccreditationDate = "accreditation_date"
)

// Columns returns the boundary columns for an entity type, in file order.
func Columns(entity EntityType) []string {
	switch entity {
	case EntityDonor:
		return []string{
			ColDonorID, ColFirstName, ColLastName, ColBirthDate, ColBloodType,
			ColOrganType, ColReferralDate, ColFacilityCode, ColDonorType,
			ColStatus, ColCauseOfDeath, ColHeightCM, ColWeightKG, ColPhone,
		}
	case EntityRecipient:
		return []string{
			ColRecipientID, ColFirstName, ColLastName, ColBirthDate, ColBloodType,
			ColOrganNeeded, ColListingDate, ColFacilityCode, ColStatus,
			ColUrgencyCode, ColDiagnosis, ColHeightCM, ColWeightKG, ColPRAPct,
		}
	case EntityCenter:
		return []string{
			ColFacilityCode, ColFacilityName, ColCity, ColState, ColRegion,
			ColFacilityType, ColCertificationID, ColAccreditationDate,
			ColPhone, ColEmail,
		}
	}
	return nil
}

// NaturalKeyColumn returns the business-key column for an entity type.
func NaturalKeyColumn(entity EntityType) string {
	switch entity {
	case EntityDonor:
		return ColDonorID
	case EntityRecipient:
		return ColRecipientID
	case EntityCenter:
		return ColFacilityCode
	}
	return ""
}
