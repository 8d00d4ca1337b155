package domain

import (
	"strconv"
	"strings"
	"time"
)

// EntityType identifies one of the loadable registry entities.
type EntityType string

const (
	EntityDonor     EntityType = "donor"
	EntityRecipient EntityType = "recipient"
	EntityCenter    EntityType = "center"
)

// EntityTypes lists every loadable entity type in load-dependency order:
// centers carry the facility dimension that donors and recipients resolve
// against, so they come first.
func EntityTypes() []EntityType {
	return []EntityType{EntityCenter, EntityDonor, EntityRecipient}
}

// Valid reports whether the entity type is one the pipeline knows about.
func (e EntityType) Valid() bool {
	switch e {
	case EntityDonor, EntityRecipient, EntityCenter:
		return true
	}
	return false
}

// RawRecord is one untyped row handed over by the file connector. Every value
// is a string; blank and missing columns are indistinguishable on purpose.
// Validation is the only path that turns a RawRecord into a typed entity.
type RawRecord struct {
	RunID           int64             `json:"run_id"`
	SourceFileName  string            `json:"source_file_name"`
	SourceRowNumber int               `json:"source_row_number"`
	Fields          map[string]string `json:"fields"`
}

// Get returns the trimmed value for a column, or "" when absent.
func (r RawRecord) Get(column string) string {
	return strings.TrimSpace(r.Fields[column])
}

// Has reports whether a column carries a non-blank value.
func (r RawRecord) Has(column string) bool {
	return r.Get(column) != ""
}

// dateLayouts are the formats the registry's upstream extracts have been seen
// to use. ISO first; US and slash variants for older center exports.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDate parses a raw date value against the accepted layouts. The time
// portion, if any, is dropped.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ParseFloat parses a raw numeric value, tolerating thousands separators.
func ParseFloat(raw string) (float64, bool) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseInt parses a raw integer value, accepting lossless float spellings
// like "7.0" that spreadsheets tend to emit.
func ParseInt(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return int(i), true
	}
	if f, ok := ParseFloat(raw); ok && f == float64(int64(f)) {
		return int(f), true
	}
	return 0, false
}
