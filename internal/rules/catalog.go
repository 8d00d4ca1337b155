package rules

import (
	"slices"
	"time"

	"github.com/organregistry/etl/internal/domain"
)

// The catalogs below encode the cascade order the registry contracts:
// completeness, enumerated domains, dates, referential integrity, then the
// remaining domain codes. Changing the order changes which error a
// multi-fault record reports.

var donorCatalog = slices.Concat(
	[]Rule{
		requiredRule(domain.ColDonorID, domain.ColFirstName, domain.ColLastName),
		codeRule(CodeBloodType, domain.ColBloodType,
			"blood type %q is not a recognized blood type code",
			func(ref domain.ReferenceData, v string) bool { return ref.ValidBloodType(v) }),
		codeRule(CodeOrganType, domain.ColOrganType,
			"organ type %q is not a recognized organ code",
			func(ref domain.ReferenceData, v string) bool { return ref.ValidOrganType(v) }),
	},
	birthDateRules(),
	[]Rule{
		secondaryDateRule(domain.ColReferralDate, true),
		facilityRule(),
		codeRule(CodeDonorType, domain.ColDonorType,
			"donor type %q is not a recognized donor type code",
			func(ref domain.ReferenceData, v string) bool { return ref.ValidDonorType(v) }),
		codeRule(CodeStatus, domain.ColStatus,
			"status %q is not a recognized donor status code",
			func(ref domain.ReferenceData, v string) bool { return ref.ValidStatus(domain.EntityDonor, v) }),
		optionalNumberRule(CodeHeight, domain.ColHeightCM,
			"height %q is not a plausible value in centimeters", 30, 250),
		optionalNumberRule(CodeWeight, domain.ColWeightKG,
			"weight %q is not a plausible value in kilograms", 1, 400),
	},
)

var recipientCatalog = slices.Concat(
	[]Rule{
		requiredRule(domain.ColRecipientID, domain.ColFirstName, domain.ColLastName),
		codeRule(CodeBloodType, domain.ColBloodType,
			"blood type %q is not a recognized blood type code",
			func(ref domain.ReferenceData, v string) bool { return ref.ValidBloodType(v) }),
		codeRule(CodeOrganType, domain.ColOrganNeeded,
			"needed organ %q is not a recognized organ code",
			func(ref domain.ReferenceData, v string) bool { return ref.ValidOrganType(v) }),
	},
	birthDateRules(),
	[]Rule{
		secondaryDateRule(domain.ColListingDate, true),
		facilityRule(),
		codeRule(CodeStatus, domain.ColStatus,
			"status %q is not a recognized recipient status code",
			func(ref domain.ReferenceData, v string) bool { return ref.ValidStatus(domain.EntityRecipient, v) }),
		codeRule(CodeUrgency, domain.ColUrgencyCode,
			"urgency code %q is not a recognized urgency code",
			func(ref domain.ReferenceData, v string) bool { return ref.ValidUrgencyCode(v) }),
		optionalNumberRule(CodeHeight, domain.ColHeightCM,
			"height %q is not a plausible value in centimeters", 30, 250),
		optionalNumberRule(CodeWeight, domain.ColWeightKG,
			"weight %q is not a plausible value in kilograms", 1, 400),
		optionalNumberRule(CodePRA, domain.ColPRAPct,
			"PRA %q is not a percentage between 0 and 100", 0, 100),
	},
)

var centerCatalog = []Rule{
	requiredRule(domain.ColFacilityCode, domain.ColFacilityName),
	regionRule(),
	codeRule(CodeFacilityType, domain.ColFacilityType,
		"facility type %q is not a recognized facility type code",
		func(ref domain.ReferenceData, v string) bool { return ref.ValidFacilityType(v) }),
	secondaryDateRule(domain.ColAccreditationDate, false),
}

// regionRule checks the UNOS region number; centers outside 1-11 are data
// errors, not new regions.
func regionRule() Rule {
	return Rule{
		Code:    CodeRegion,
		Column:  domain.ColRegion,
		Message: "region %q is not a number between 1 and 11",
		Failed: func(rec domain.RawRecord, _ domain.ReferenceData, _ time.Time) (string, bool) {
			raw := rec.Get(domain.ColRegion)
			region, ok := domain.ParseInt(raw)
			if !ok || region < 1 || region > 11 {
				return raw, true
			}
			return "", false
		},
	}
}
