package domain

import (
	"errors"
	"time"
)

// ErrNonTerminalStatus is returned when a run is sealed with a status that
// does not terminate it.
var ErrNonTerminalStatus = errors.New("status is not terminal")

// RunStatus is the lifecycle state of a load run. Running is the only
// non-terminal state; a run that stays Running forever is an anomaly.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunWarning RunStatus = "warning"
	RunFailed  RunStatus = "failed"
)

// Terminal reports whether the status seals a run.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunSuccess, RunWarning, RunFailed:
		return true
	}
	return false
}

// RunCounts carries the row-count reconciliation figures for one run.
type RunCounts struct {
	SourceRows   int
	StagedRows   int
	InsertedRows int
	UpdatedRows  int
	ErrorRows    int
}

// Balanced reports whether staged rows are fully accounted for by errors
// plus loaded rows.
func (c RunCounts) Balanced() bool {
	return c.StagedRows == c.ErrorRows+c.InsertedRows+c.UpdatedRows
}

// ErrorRate is the fraction of staged rows that were rejected.
func (c RunCounts) ErrorRate() float64 {
	if c.StagedRows == 0 {
		return 0
	}
	return float64(c.ErrorRows) / float64(c.StagedRows)
}

// LoadRun is one audit-ledger entry: a single execution of the
// stage→validate→load pipeline for one entity type.
type LoadRun struct {
	ID             int64
	PackageName    string
	SourceFileName string
	StartedAt      time.Time
	CompletedAt    *time.Time
	Status         RunStatus
	Counts         RunCounts
	ExecutedBy     string
	ErrorMessage   *string
}

// Duration returns end minus start, or zero while the run is still open.
func (r LoadRun) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// RunFilter narrows audit-ledger queries. Zero-valued fields are ignored.
type RunFilter struct {
	Status      RunStatus
	PackageName string
	From        time.Time
	To          time.Time
}
