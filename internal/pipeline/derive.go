package pipeline

import "time"

// AgeYears is the whole-year difference between a birth date and the run's
// reference time, calendar-aware rather than days/365.
func AgeYears(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	if years < 0 {
		years = 0
	}
	return years
}

// BodyMassIndex computes kg / m² from height in centimeters. Present iff
// both measurements are present and height is positive.
func BodyMassIndex(heightCM, weightKG *float64) *float64 {
	if heightCM == nil || weightKG == nil || *heightCM <= 0 {
		return nil
	}
	meters := *heightCM / 100
	bmi := *weightKG / (meters * meters)
	return &bmi
}

// DaysOnWaitlist is the whole-day difference between the listing date and
// the run's reference time, floored at zero.
func DaysOnWaitlist(listing, now time.Time) int {
	days := int(now.Sub(listing).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days
}
