package domain

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{"1984-03-12", time.Date(1984, 3, 12, 0, 0, 0, 0, time.UTC), true},
		{"1984/03/12", time.Date(1984, 3, 12, 0, 0, 0, 0, time.UTC), true},
		{"03/12/1984", time.Date(1984, 3, 12, 0, 0, 0, 0, time.UTC), true},
		{"1984-03-12 14:30:00", time.Date(1984, 3, 12, 0, 0, 0, 0, time.UTC), true},
		{"1984-03-12T14:30:00Z", time.Date(1984, 3, 12, 0, 0, 0, 0, time.UTC), true},
		{"  1984-03-12  ", time.Date(1984, 3, 12, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"12-03", time.Time{}, false},
		{"not a date", time.Time{}, false},
		{"1984-13-40", time.Time{}, false},
	}
	for _, tc := range cases {
		got, ok := ParseDate(tc.raw)
		if ok != tc.ok {
			t.Fatalf("ParseDate(%q) ok = %v, want %v", tc.raw, ok, tc.ok)
		}
		if ok && !got.Equal(tc.want) {
			t.Fatalf("ParseDate(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestParseFloat(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"68.5", 68.5, true},
		{"1,234.5", 1234.5, true},
		{" 172 ", 172, true},
		{"", 0, false},
		{"heavy", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseFloat(tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseFloat(%q) = %f, %v; want %f, %v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseInt(t *testing.T) {
	cases := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"7", 7, true},
		{"7.0", 7, true},
		{" 11 ", 11, true},
		{"7.5", 0, false},
		{"", 0, false},
		{"seven", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseInt(tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseInt(%q) = %d, %v; want %d, %v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRawRecordGetTrims(t *testing.T) {
	rec := RawRecord{Fields: map[string]string{"donor_id": "  D-1  ", "blank": "   "}}
	if got := rec.Get("donor_id"); got != "D-1" {
		t.Fatalf("Get returned %q", got)
	}
	if rec.Has("blank") {
		t.Fatal("whitespace-only value should not count as present")
	}
	if rec.Has("missing") {
		t.Fatal("absent column should not count as present")
	}
}

func TestRunCounts(t *testing.T) {
	balanced := RunCounts{SourceRows: 10, StagedRows: 10, InsertedRows: 6, UpdatedRows: 2, ErrorRows: 2}
	if !balanced.Balanced() {
		t.Fatal("expected counts to balance")
	}
	if rate := balanced.ErrorRate(); rate != 0.2 {
		t.Fatalf("error rate = %f, want 0.2", rate)
	}

	unbalanced := RunCounts{StagedRows: 10, InsertedRows: 6, ErrorRows: 2}
	if unbalanced.Balanced() {
		t.Fatal("expected counts not to balance")
	}

	if (RunCounts{}).ErrorRate() != 0 {
		t.Fatal("empty run should have a zero error rate")
	}
}

func TestRunStatusTerminal(t *testing.T) {
	if RunRunning.Terminal() {
		t.Fatal("running must not be terminal")
	}
	for _, s := range []RunStatus{RunSuccess, RunWarning, RunFailed} {
		if !s.Terminal() {
			t.Fatalf("%s must be terminal", s)
		}
	}
}
