package domain

import (
	"time"

	"github.com/google/uuid"
)

// ErrorRecord is one rejected staged row: the original untyped values plus
// the first rule it violated. A staged row produces at most one ErrorRecord
// per run.
type ErrorRecord struct {
	ID               uuid.UUID
	RunID            int64
	EntityType       EntityType
	NaturalKey       string
	SourceRowNumber  int
	ErrorCode        string
	ErrorColumn      string
	ErrorDescription string
	Fields           map[string]string
	CreatedAt        time.Time
}

// NewErrorRecord builds an ErrorRecord for a staged row, carrying the row's
// original values so the rejection can be inspected without the staging
// buffer (which the next run truncates).
func NewErrorRecord(rec RawRecord, entity EntityType, code, column, description string) ErrorRecord {
	fields := make(map[string]string, len(rec.Fields))
	for k, v := range rec.Fields {
		fields[k] = v
	}
	return ErrorRecord{
		ID:               uuid.New(),
		RunID:            rec.RunID,
		EntityType:       entity,
		NaturalKey:       rec.Get(NaturalKeyColumn(entity)),
		SourceRowNumber:  rec.SourceRowNumber,
		ErrorCode:        code,
		ErrorColumn:      column,
		ErrorDescription: description,
		Fields:           fields,
		CreatedAt:        time.Now().UTC(),
	}
}
