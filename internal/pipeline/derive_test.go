package pipeline

import (
	"math"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAgeYears(t *testing.T) {
	now := date(2026, time.August, 31)
	cases := []struct {
		name  string
		birth time.Time
		want  int
	}{
		{"birthday already passed", date(1984, time.March, 12), 42},
		{"birthday later this year", date(1984, time.December, 1), 41},
		{"birthday today", date(1984, time.August, 31), 42},
		{"birthday tomorrow", date(1984, time.September, 1), 41},
		{"born this year", date(2026, time.January, 5), 0},
		{"future birth floors at zero", date(2027, time.January, 1), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AgeYears(tc.birth, now); got != tc.want {
				t.Fatalf("AgeYears(%s) = %d, want %d", tc.birth.Format("2006-01-02"), got, tc.want)
			}
		})
	}
}

func TestBodyMassIndex(t *testing.T) {
	height := 172.0
	weight := 68.5

	bmi := BodyMassIndex(&height, &weight)
	if bmi == nil {
		t.Fatal("expected a BMI value")
	}
	want := 68.5 / (1.72 * 1.72)
	if math.Abs(*bmi-want) > 1e-9 {
		t.Fatalf("BMI = %f, want %f", *bmi, want)
	}

	if BodyMassIndex(nil, &weight) != nil {
		t.Fatal("expected nil BMI without height")
	}
	if BodyMassIndex(&height, nil) != nil {
		t.Fatal("expected nil BMI without weight")
	}
	zero := 0.0
	if BodyMassIndex(&zero, &weight) != nil {
		t.Fatal("expected nil BMI for zero height")
	}
}

func TestDaysOnWaitlist(t *testing.T) {
	now := date(2026, time.August, 31)
	if got := DaysOnWaitlist(date(2026, time.August, 1), now); got != 30 {
		t.Fatalf("expected 30 days, got %d", got)
	}
	if got := DaysOnWaitlist(now, now); got != 0 {
		t.Fatalf("expected 0 days for same-day listing, got %d", got)
	}
	if got := DaysOnWaitlist(date(2026, time.September, 15), now); got != 0 {
		t.Fatalf("expected future listing to floor at 0, got %d", got)
	}
}
