package rules

import (
	"strings"
	"testing"
	"time"

	"github.com/organregistry/etl/internal/domain"
)

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func testReference() domain.ReferenceData {
	set := func(codes ...string) map[string]struct{} {
		m := map[string]struct{}{}
		for _, c := range codes {
			m[c] = struct{}{}
		}
		return m
	}
	return domain.ReferenceData{
		BloodTypes:   set("O+", "O-", "A+", "A-", "B+", "B-", "AB+", "AB-"),
		OrganTypes:   set("KIDNEY", "LIVER", "HEART"),
		DonorTypes:   set("DBD", "DCD", "LD"),
		UrgencyCodes: set("1A", "1B", "2"),
		StatusCodes: map[domain.EntityType]map[string]struct{}{
			domain.EntityDonor:     set("REFERRED", "RECOVERED"),
			domain.EntityRecipient: set("ACTIVE", "TRANSPLANTED"),
		},
		FacilityTypes: set("OPO", "TXC"),
		Facilities:    map[string]int64{"TXC-001": 1},
	}
}

func validDonorFields() map[string]string {
	return map[string]string{
		"donor_id":      "D-1001",
		"first_name":    "Maya",
		"last_name":     "Okafor",
		"birth_date":    "1984-03-12",
		"blood_type":    "O+",
		"organ_type":    "KIDNEY",
		"referral_date": "2026-08-01",
		"facility_code": "TXC-001",
		"donor_type":    "DBD",
		"status":        "REFERRED",
		"height_cm":     "172",
		"weight_kg":     "68.5",
	}
}

func record(fields map[string]string) domain.RawRecord {
	return domain.RawRecord{RunID: 1, SourceRowNumber: 1, Fields: fields}
}

func TestDonorCatalogAcceptsValidRecord(t *testing.T) {
	v := FirstViolation(Catalog(domain.EntityDonor), record(validDonorFields()), testReference(), testNow)
	if v != nil {
		t.Fatalf("expected no violation, got %s: %s", v.Rule.Code, v.Rule.Describe(v.Value))
	}
}

func TestDonorCatalogViolations(t *testing.T) {
	cases := []struct {
		name       string
		mutate     func(map[string]string)
		wantCode   string
		wantColumn string
	}{
		{"missing donor id", func(f map[string]string) { f["donor_id"] = "  " }, CodeRequired, "donor_id"},
		{"missing last name", func(f map[string]string) { delete(f, "last_name") }, CodeRequired, "donor_id"},
		{"unknown blood type", func(f map[string]string) { f["blood_type"] = "C+" }, CodeBloodType, "blood_type"},
		{"unknown organ", func(f map[string]string) { f["organ_type"] = "SPLEEN" }, CodeOrganType, "organ_type"},
		{"null birth date", func(f map[string]string) { f["birth_date"] = "" }, CodeBirthDate, "birth_date"},
		{"garbled birth date", func(f map[string]string) { f["birth_date"] = "12-03" }, CodeBirthDate, "birth_date"},
		{"future birth date", func(f map[string]string) { f["birth_date"] = "2030-07-22" }, CodeBirthDateFuture, "birth_date"},
		{"implausible age", func(f map[string]string) { f["birth_date"] = "1850-01-01" }, CodeAgeRange, "birth_date"},
		{"future referral", func(f map[string]string) { f["referral_date"] = "2027-01-01" }, CodeSecondaryDate, "referral_date"},
		{"missing referral", func(f map[string]string) { f["referral_date"] = "" }, CodeSecondaryDate, "referral_date"},
		{"unknown facility", func(f map[string]string) { f["facility_code"] = "TXC-999" }, CodeFacilityRef, "facility_code"},
		{"unknown donor type", func(f map[string]string) { f["donor_type"] = "XX" }, CodeDonorType, "donor_type"},
		{"unknown status", func(f map[string]string) { f["status"] = "PENDING" }, CodeStatus, "status"},
		{"implausible height", func(f map[string]string) { f["height_cm"] = "17" }, CodeHeight, "height_cm"},
		{"non-numeric weight", func(f map[string]string) { f["weight_kg"] = "heavy" }, CodeWeight, "weight_kg"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := validDonorFields()
			tc.mutate(fields)
			v := FirstViolation(Catalog(domain.EntityDonor), record(fields), testReference(), testNow)
			if v == nil {
				t.Fatal("expected a violation, got none")
			}
			if v.Rule.Code != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, v.Rule.Code)
			}
			if v.Rule.Column != tc.wantColumn {
				t.Fatalf("expected column %s, got %s", tc.wantColumn, v.Rule.Column)
			}
		})
	}
}

func TestFutureBirthDateMessageCarriesValue(t *testing.T) {
	fields := validDonorFields()
	fields["birth_date"] = "2030-07-22"
	v := FirstViolation(Catalog(domain.EntityDonor), record(fields), testReference(), testNow)
	if v == nil {
		t.Fatal("expected a violation")
	}
	if !strings.Contains(v.Rule.Describe(v.Value), "2030-07-22") {
		t.Fatalf("expected message to carry the offending value, got %q", v.Rule.Describe(v.Value))
	}
}

func TestFirstMatchWinsOnMultiFaultRecord(t *testing.T) {
	fields := validDonorFields()
	fields["blood_type"] = "C+"
	fields["birth_date"] = "2030-07-22"
	fields["facility_code"] = "TXC-999"

	v := FirstViolation(Catalog(domain.EntityDonor), record(fields), testReference(), testNow)
	if v == nil {
		t.Fatal("expected a violation")
	}
	if v.Rule.Code != CodeBloodType {
		t.Fatalf("expected earliest rule %s to win, got %s", CodeBloodType, v.Rule.Code)
	}
}

func TestRecipientCatalog(t *testing.T) {
	valid := map[string]string{
		"recipient_id":  "R-2001",
		"first_name":    "Jonas",
		"last_name":     "Feld",
		"birth_date":    "1990-11-02",
		"blood_type":    "A-",
		"organ_needed":  "HEART",
		"listing_date":  "2025-05-20",
		"facility_code": "TXC-001",
		"status":        "ACTIVE",
		"urgency_code":  "1A",
		"pra_pct":       "40",
	}

	if v := FirstViolation(Catalog(domain.EntityRecipient), record(valid), testReference(), testNow); v != nil {
		t.Fatalf("expected no violation, got %s", v.Rule.Code)
	}

	cases := []struct {
		name     string
		mutate   func(map[string]string)
		wantCode string
	}{
		{"unknown urgency", func(f map[string]string) { f["urgency_code"] = "9Z" }, CodeUrgency},
		{"donor status not valid for recipient", func(f map[string]string) { f["status"] = "REFERRED" }, CodeStatus},
		{"pra out of range", func(f map[string]string) { f["pra_pct"] = "140" }, CodePRA},
		{"future listing", func(f map[string]string) { f["listing_date"] = "2026-12-31" }, CodeSecondaryDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := map[string]string{}
			for k, val := range valid {
				fields[k] = val
			}
			tc.mutate(fields)
			v := FirstViolation(Catalog(domain.EntityRecipient), record(fields), testReference(), testNow)
			if v == nil {
				t.Fatal("expected a violation, got none")
			}
			if v.Rule.Code != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, v.Rule.Code)
			}
		})
	}
}

func TestCenterCatalog(t *testing.T) {
	valid := map[string]string{
		"facility_code":      "TXC-010",
		"facility_name":      "Riverside Transplant Center",
		"region":             "7",
		"facility_type":      "TXC",
		"accreditation_date": "2019-04-01",
	}

	if v := FirstViolation(Catalog(domain.EntityCenter), record(valid), testReference(), testNow); v != nil {
		t.Fatalf("expected no violation, got %s", v.Rule.Code)
	}

	cases := []struct {
		name     string
		mutate   func(map[string]string)
		wantCode string
	}{
		{"missing name", func(f map[string]string) { f["facility_name"] = "" }, CodeRequired},
		{"region zero", func(f map[string]string) { f["region"] = "0" }, CodeRegion},
		{"region twelve", func(f map[string]string) { f["region"] = "12" }, CodeRegion},
		{"region not a number", func(f map[string]string) { f["region"] = "north" }, CodeRegion},
		{"unknown facility type", func(f map[string]string) { f["facility_type"] = "HOSP" }, CodeFacilityType},
		{"future accreditation", func(f map[string]string) { f["accreditation_date"] = "2030-01-01" }, CodeSecondaryDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := map[string]string{}
			for k, val := range valid {
				fields[k] = val
			}
			tc.mutate(fields)
			v := FirstViolation(Catalog(domain.EntityCenter), record(fields), testReference(), testNow)
			if v == nil {
				t.Fatal("expected a violation, got none")
			}
			if v.Rule.Code != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, v.Rule.Code)
			}
		})
	}
}

func TestAccreditationDateOptional(t *testing.T) {
	fields := map[string]string{
		"facility_code": "OPO-003",
		"facility_name": "Great Lakes OPO",
		"region":        "10",
		"facility_type": "OPO",
	}
	if v := FirstViolation(Catalog(domain.EntityCenter), record(fields), testReference(), testNow); v != nil {
		t.Fatalf("expected blank accreditation date to pass, got %s", v.Rule.Code)
	}
}
