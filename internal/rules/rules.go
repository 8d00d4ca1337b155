// Package rules holds the ordered data-quality rule catalog for each entity
// type. Rule order is part of the load contract: a record is checked against
// the catalog top to bottom and rejected by the first rule it violates, so
// later rules never see an already-failed record.
package rules

import (
	"fmt"
	"time"

	"github.com/organregistry/etl/internal/domain"
)

// Rule is one named failing-predicate over a raw record. Failed returns the
// offending value (used in the error message) and whether the rule fired.
type Rule struct {
	Code    string
	Column  string
	Message string // fmt template receiving the offending value
	Failed  func(rec domain.RawRecord, ref domain.ReferenceData, now time.Time) (string, bool)
}

// Describe renders the rule's message for an offending value.
func (r Rule) Describe(value string) string {
	return fmt.Sprintf(r.Message, value)
}

// Violation is the outcome of running a record through a catalog.
type Violation struct {
	Rule  Rule
	Value string
}

// Error codes, stable across entity types so the error sink can be queried
// uniformly.
const (
	CodeRequired        = "REQ001"
	CodeBloodType       = "DOM001"
	CodeOrganType       = "DOM002"
	CodeDonorType       = "DOM003"
	CodeStatus          = "DOM004"
	CodeUrgency         = "DOM005"
	CodeRegion          = "DOM006"
	CodeFacilityType    = "DOM007"
	CodeBirthDate       = "DT001"
	CodeBirthDateFuture = "DT002"
	CodeAgeRange        = "DT003"
	CodeSecondaryDate   = "DT004"
	CodeFacilityRef     = "REF001"
	CodeHeight          = "NUM001"
	CodeWeight          = "NUM002"
	CodePRA             = "NUM003"
)

const maxAgeYears = 120

// Catalog returns the ordered rule cascade for an entity type.
func Catalog(entity domain.EntityType) []Rule {
	switch entity {
	case domain.EntityDonor:
		return donorCatalog
	case domain.EntityRecipient:
		return recipientCatalog
	case domain.EntityCenter:
		return centerCatalog
	}
	return nil
}

// FirstViolation evaluates the catalog in order and returns the first rule a
// record violates, or nil when the record is clean. This per-record chain is
// what guarantees at most one error per record per run.
func FirstViolation(catalog []Rule, rec domain.RawRecord, ref domain.ReferenceData, now time.Time) *Violation {
	for _, rule := range catalog {
		if value, failed := rule.Failed(rec, ref, now); failed {
			return &Violation{Rule: rule, Value: value}
		}
	}
	return nil
}

// requiredRule fires when any of the named columns is blank. The offending
// value is the first missing column's name, so the message can call it out.
func requiredRule(columns ...string) Rule {
	return Rule{
		Code:    CodeRequired,
		Column:  columns[0],
		Message: "required field %s is missing or blank",
		Failed: func(rec domain.RawRecord, _ domain.ReferenceData, _ time.Time) (string, bool) {
			for _, col := range columns {
				if !rec.Has(col) {
					return col, true
				}
			}
			return "", false
		},
	}
}

func birthDateRules() []Rule {
	return []Rule{
		{
			Code:    CodeBirthDate,
			Column:  domain.ColBirthDate,
			Message: "birth date %q is missing or not a valid date",
			Failed: func(rec domain.RawRecord, _ domain.ReferenceData, _ time.Time) (string, bool) {
				if _, ok := domain.ParseDate(rec.Get(domain.ColBirthDate)); !ok {
					return rec.Get(domain.ColBirthDate), true
				}
				return "", false
			},
		},
		{
			Code:    CodeBirthDateFuture,
			Column:  domain.ColBirthDate,
			Message: "birth date %q is in the future",
			Failed: func(rec domain.RawRecord, _ domain.ReferenceData, now time.Time) (string, bool) {
				birth, ok := domain.ParseDate(rec.Get(domain.ColBirthDate))
				if ok && birth.After(now) {
					return rec.Get(domain.ColBirthDate), true
				}
				return "", false
			},
		},
		{
			Code:    CodeAgeRange,
			Column:  domain.ColBirthDate,
			Message: "birth date %q implies an age outside 0-120 years",
			Failed: func(rec domain.RawRecord, _ domain.ReferenceData, now time.Time) (string, bool) {
				birth, ok := domain.ParseDate(rec.Get(domain.ColBirthDate))
				if !ok || birth.After(now) {
					return "", false
				}
				if ageYears(birth, now) > maxAgeYears {
					return rec.Get(domain.ColBirthDate), true
				}
				return "", false
			},
		},
	}
}

// secondaryDateRule covers the entity's second date column (referral,
// listing or accreditation): it must parse and must not be in the future.
func secondaryDateRule(column string, required bool) Rule {
	return Rule{
		Code:    CodeSecondaryDate,
		Column:  column,
		Message: "date %q is invalid or in the future",
		Failed: func(rec domain.RawRecord, _ domain.ReferenceData, now time.Time) (string, bool) {
			raw := rec.Get(column)
			if raw == "" {
				if required {
					return raw, true
				}
				return "", false
			}
			date, ok := domain.ParseDate(raw)
			if !ok || date.After(now) {
				return raw, true
			}
			return "", false
		},
	}
}

func facilityRule() Rule {
	return Rule{
		Code:    CodeFacilityRef,
		Column:  domain.ColFacilityCode,
		Message: "facility code %q does not resolve to an active transplant center",
		Failed: func(rec domain.RawRecord, ref domain.ReferenceData, _ time.Time) (string, bool) {
			code := rec.Get(domain.ColFacilityCode)
			if _, ok := ref.ResolveFacility(code); !ok {
				return code, true
			}
			return "", false
		},
	}
}

func codeRule(errCode, column, message string, valid func(ref domain.ReferenceData, value string) bool) Rule {
	return Rule{
		Code:    errCode,
		Column:  column,
		Message: message,
		Failed: func(rec domain.RawRecord, ref domain.ReferenceData, _ time.Time) (string, bool) {
			value := rec.Get(column)
			if !valid(ref, value) {
				return value, true
			}
			return "", false
		},
	}
}

// optionalNumberRule fires when a present value fails to parse or falls
// outside [min, max]. Absent values pass; completeness is rule one's job.
func optionalNumberRule(errCode, column, message string, min, max float64) Rule {
	return Rule{
		Code:    errCode,
		Column:  column,
		Message: message,
		Failed: func(rec domain.RawRecord, _ domain.ReferenceData, _ time.Time) (string, bool) {
			raw := rec.Get(column)
			if raw == "" {
				return "", false
			}
			value, ok := domain.ParseFloat(raw)
			if !ok || value < min || value > max {
				return raw, true
			}
			return "", false
		},
	}
}

// ageYears is the whole-year difference between two dates, calendar-aware.
func ageYears(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	if years < 0 {
		years = 0
	}
	return years
}
