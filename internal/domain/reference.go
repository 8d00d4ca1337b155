package domain

// ReferenceData is a point-in-time snapshot of the reference store: the
// static code tables plus the active facility dimension. Validation and
// foreign-key resolution both work off a snapshot so a single run sees a
// consistent view.
type ReferenceData struct {
	BloodTypes   map[string]struct{}
	OrganTypes   map[string]struct{}
	DonorTypes   map[string]struct{}
	UrgencyCodes map[string]struct{}
	// StatusCodes is scoped per entity type; donor and recipient lifecycles
	// use disjoint code sets.
	StatusCodes map[EntityType]map[string]struct{}
	// FacilityTypes constrains the center dimension itself.
	FacilityTypes map[string]struct{}
	// Facilities maps active facility codes to their surrogate keys.
	Facilities map[string]int64
}

func (d ReferenceData) ValidBloodType(code string) bool {
	_, ok := d.BloodTypes[code]
	return ok
}

func (d ReferenceData) ValidOrganType(code string) bool {
	_, ok := d.OrganTypes[code]
	return ok
}

func (d ReferenceData) ValidDonorType(code string) bool {
	_, ok := d.DonorTypes[code]
	return ok
}

func (d ReferenceData) ValidUrgencyCode(code string) bool {
	_, ok := d.UrgencyCodes[code]
	return ok
}

func (d ReferenceData) ValidStatus(entity EntityType, code string) bool {
	codes, ok := d.StatusCodes[entity]
	if !ok {
		return false
	}
	_, ok = codes[code]
	return ok
}

func (d ReferenceData) ValidFacilityType(code string) bool {
	_, ok := d.FacilityTypes[code]
	return ok
}

// ResolveFacility returns the surrogate key for an active facility code.
func (d ReferenceData) ResolveFacility(code string) (int64, bool) {
	id, ok := d.Facilities[code]
	return id, ok
}
