package domain

import "time"

// Donor is the typed production row for a referred organ donor. Keyed by the
// external DonorID; FacilityID is the resolved surrogate key of the donor's
// referring transplant center.
type Donor struct {
	ID           int64
	DonorID      string
	FirstName    string
	LastName     string
	BirthDate    time.Time
	BloodType    string
	OrganType    string
	ReferralDate time.Time
	FacilityID   int64
	FacilityCode string
	DonorType    string
	Status       string
	CauseOfDeath *string
	HeightCM     *float64
	WeightKG     *float64
	Phone        *string
	AgeYears     int
	BMI          *float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LoadRunID    int64
}

// Recipient is the typed production row for a waitlisted recipient.
type Recipient struct {
	ID             int64
	RecipientID    string
	FirstName      string
	LastName       string
	BirthDate      time.Time
	BloodType      string
	OrganNeeded    string
	ListingDate    time.Time
	FacilityID     int64
	FacilityCode   string
	Status         string
	UrgencyCode    string
	Diagnosis      *string
	HeightCM       *float64
	WeightKG       *float64
	PRAPct         *int
	AgeYears       int
	BMI            *float64
	DaysOnWaitlist int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LoadRunID      int64
}

// Center is the typed production row for a transplant center. It doubles as
// the facility dimension that donor and recipient loads resolve against.
type Center struct {
	ID                int64
	FacilityCode      string
	Name              string
	City              *string
	State             *string
	Region            int
	FacilityType      string
	CertificationID   *string
	AccreditationDate *time.Time
	Phone             *string
	Email             *string
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LoadRunID         int64
}

// DonorFilter narrows production donor queries for the reporting consumer.
// Zero-valued fields are ignored.
type DonorFilter struct {
	Status       string
	BloodType    string
	OrganType    string
	FacilityCode string
}

// RecipientFilter narrows production recipient queries.
type RecipientFilter struct {
	Status       string
	BloodType    string
	UrgencyCode  string
	FacilityCode string
}
