// Package pipeline implements the staging→validate→load→audit core. Each
// entity type moves through the four stages strictly in order under a single
// run identifier; the audit ledger reconciles every staged row as either
// rejected or loaded.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/organregistry/etl/internal/domain"
	"github.com/organregistry/etl/internal/metrics"
	"github.com/organregistry/etl/internal/repository"
	"github.com/organregistry/etl/internal/rules"

	"github.com/sirupsen/logrus"
)

// ErrUnknownEntityType is returned for entity types outside the catalog.
var ErrUnknownEntityType = fmt.Errorf("unknown entity type")

// DefaultWarnRate is the error-rate fraction above which a successful run is
// downgraded to Warning.
const DefaultWarnRate = 0.10

// Pipeline sequences the core stages against a set of stores.
type Pipeline struct {
	stores   repository.Stores
	log      *logrus.Logger
	warnRate float64
	now      func() time.Time

	// stageMu serializes stagers per entity type; the staging buffer is
	// truncate-and-replace and cannot tolerate concurrent writers.
	stageMu map[domain.EntityType]*sync.Mutex
}

// Option adjusts pipeline behavior.
type Option func(*Pipeline)

// WithWarnRate sets the operator's error-rate threshold for Warning runs.
func WithWarnRate(rate float64) Option {
	return func(p *Pipeline) { p.warnRate = rate }
}

// WithClock fixes the pipeline's notion of "now"; derived fields and date
// rules are computed against it.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New builds a pipeline over the given stores.
func New(stores repository.Stores, log *logrus.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		stores:   stores,
		log:      log,
		warnRate: DefaultWarnRate,
		now:      func() time.Time { return time.Now().UTC() },
		stageMu:  map[domain.EntityType]*sync.Mutex{},
	}
	for _, entity := range domain.EntityTypes() {
		p.stageMu[entity] = &sync.Mutex{}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StartRun opens a ledger entry and returns its fresh run identifier.
func (p *Pipeline) StartRun(ctx context.Context, packageName, sourceFileName string) (int64, error) {
	runID, err := p.stores.Audit.StartRun(ctx, packageName, sourceFileName, executedBy())
	if err != nil {
		return 0, fmt.Errorf("start run for %s: %w", packageName, err)
	}
	p.log.WithFields(logrus.Fields{
		"run_id":  runID,
		"package": packageName,
		"file":    sourceFileName,
	}).Info("run started")
	return runID, nil
}

// Stage replaces the landing buffer for the entity type with the given
// records, tagging each with the run id and its 1-based position in original
// file order. No validation happens here; any string value lands.
func (p *Pipeline) Stage(ctx context.Context, entity domain.EntityType, records []domain.RawRecord, runID int64) (int, error) {
	mu, ok := p.stageMu[entity]
	if !ok {
		return 0, fmt.Errorf("stage %q: %w", entity, ErrUnknownEntityType)
	}
	mu.Lock()
	defer mu.Unlock()

	tagged := make([]domain.RawRecord, len(records))
	for i, rec := range records {
		rec.RunID = runID
		rec.SourceRowNumber = i + 1
		tagged[i] = rec
	}

	staged, err := p.stores.Staging.Replace(ctx, entity, tagged)
	if err != nil {
		return 0, fmt.Errorf("stage %s records for run %d: %w", entity, runID, err)
	}

	metrics.RowsStaged.WithLabelValues(string(entity)).Add(float64(staged))
	p.log.WithFields(logrus.Fields{"run_id": runID, "entity": entity, "staged": staged}).Info("records staged")
	return staged, nil
}

// Validate runs the ordered rule cascade over the staged snapshot and sinks
// one error record per failing row — the first rule it violates. Returns the
// number of rejected rows. A reference-store failure is fatal to the run,
// not a validation failure.
func (p *Pipeline) Validate(ctx context.Context, entity domain.EntityType, runID int64) (int, error) {
	catalog := rules.Catalog(entity)
	if catalog == nil {
		return 0, fmt.Errorf("validate %q: %w", entity, ErrUnknownEntityType)
	}

	ref, err := p.stores.Reference.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("validate %s run %d: reference store: %w", entity, runID, err)
	}

	staged, err := p.stores.Staging.ListByRun(ctx, entity, runID)
	if err != nil {
		return 0, fmt.Errorf("validate %s run %d: staging: %w", entity, runID, err)
	}

	now := p.now()
	errorCount := 0
	for _, rec := range staged {
		violation := rules.FirstViolation(catalog, rec, ref, now)
		if violation == nil {
			continue
		}
		errRec := domain.NewErrorRecord(rec, entity, violation.Rule.Code, violation.Rule.Column, violation.Rule.Describe(violation.Value))
		if err := p.stores.Errors.Record(ctx, errRec); err != nil {
			return errorCount, fmt.Errorf("validate %s run %d: error sink: %w", entity, runID, err)
		}
		metrics.RowsRejected.WithLabelValues(string(entity), violation.Rule.Code).Inc()
		errorCount++
	}

	p.log.WithFields(logrus.Fields{
		"run_id":   runID,
		"entity":   entity,
		"staged":   len(staged),
		"rejected": errorCount,
	}).Info("validation complete")
	return errorCount, nil
}

// LoadResult reports the loader's split of the valid subset.
type LoadResult struct {
	Inserted int
	Updated  int
}

// LoadValid upserts the valid subset — staged rows minus error-sink rows —
// into the production store. A facility code that fails to resolve here,
// after passing referential validation, aborts the load rather than dropping
// the record.
func (p *Pipeline) LoadValid(ctx context.Context, entity domain.EntityType, runID int64) (LoadResult, error) {
	if !entity.Valid() {
		return LoadResult{}, fmt.Errorf("load %q: %w", entity, ErrUnknownEntityType)
	}

	ref, err := p.stores.Reference.Snapshot(ctx)
	if err != nil {
		return LoadResult{}, fmt.Errorf("load %s run %d: reference store: %w", entity, runID, err)
	}

	staged, err := p.stores.Staging.ListByRun(ctx, entity, runID)
	if err != nil {
		return LoadResult{}, fmt.Errorf("load %s run %d: staging: %w", entity, runID, err)
	}

	failed, err := p.stores.Errors.FailedRows(ctx, runID, entity)
	if err != nil {
		return LoadResult{}, fmt.Errorf("load %s run %d: error sink: %w", entity, runID, err)
	}

	now := p.now()
	var result LoadResult
	for _, rec := range staged {
		if _, rejected := failed[rec.SourceRowNumber]; rejected {
			continue
		}

		created, err := p.upsert(ctx, entity, rec, ref, now)
		if err != nil {
			return result, fmt.Errorf("load %s run %d: %w", entity, runID, err)
		}
		if created {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	metrics.RowsInserted.WithLabelValues(string(entity)).Add(float64(result.Inserted))
	metrics.RowsUpdated.WithLabelValues(string(entity)).Add(float64(result.Updated))
	p.log.WithFields(logrus.Fields{
		"run_id":   runID,
		"entity":   entity,
		"inserted": result.Inserted,
		"updated":  result.Updated,
	}).Info("load complete")
	return result, nil
}

func (p *Pipeline) upsert(ctx context.Context, entity domain.EntityType, rec domain.RawRecord, ref domain.ReferenceData, now time.Time) (bool, error) {
	switch entity {
	case domain.EntityDonor:
		donor, err := buildDonor(rec, ref, now)
		if err != nil {
			return false, err
		}
		return p.stores.Production.UpsertDonor(ctx, donor)
	case domain.EntityRecipient:
		recipient, err := buildRecipient(rec, ref, now)
		if err != nil {
			return false, err
		}
		return p.stores.Production.UpsertRecipient(ctx, recipient)
	case domain.EntityCenter:
		center, err := buildCenter(rec)
		if err != nil {
			return false, err
		}
		return p.stores.Production.UpsertCenter(ctx, center)
	}
	return false, ErrUnknownEntityType
}

// CompleteRun seals the ledger entry with a terminal status and the final
// counts.
func (p *Pipeline) CompleteRun(ctx context.Context, runID int64, status domain.RunStatus, counts domain.RunCounts, errorMessage *string) error {
	if err := p.stores.Audit.CompleteRun(ctx, runID, status, counts, errorMessage); err != nil {
		return fmt.Errorf("complete run %d: %w", runID, err)
	}
	p.log.WithFields(logrus.Fields{
		"run_id":   runID,
		"status":   status,
		"staged":   counts.StagedRows,
		"inserted": counts.InsertedRows,
		"updated":  counts.UpdatedRows,
		"errors":   counts.ErrorRows,
	}).Info("run sealed")
	return nil
}

// RunSummary is the outcome of a full pipeline invocation for one batch.
type RunSummary struct {
	RunID  int64
	Entity domain.EntityType
	Status domain.RunStatus
	Counts domain.RunCounts
}

// Batch is one entity type's raw input for a pipeline invocation.
type Batch struct {
	Entity         domain.EntityType
	PackageName    string
	SourceFileName string
	Records        []domain.RawRecord
}

// Run drives one batch through the full lifecycle. Every path out of this
// function — success, validation warnings, or a fatal stage error — seals
// the ledger entry; only validation failures are absorbed.
func (p *Pipeline) Run(ctx context.Context, batch Batch) (RunSummary, error) {
	return p.run(ctx, batch, nil)
}

func (p *Pipeline) run(ctx context.Context, batch Batch, awaitDeps func(context.Context) error) (RunSummary, error) {
	started := time.Now()

	runID, err := p.StartRun(ctx, batch.PackageName, batch.SourceFileName)
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{RunID: runID, Entity: batch.Entity}
	counts := domain.RunCounts{SourceRows: len(batch.Records)}

	fail := func(stageErr error) (RunSummary, error) {
		message := stageErr.Error()
		// Seal with a context that survives cancellation; an aborted run
		// must not be left Running.
		sealCtx := context.WithoutCancel(ctx)
		if sealErr := p.CompleteRun(sealCtx, runID, domain.RunFailed, counts, &message); sealErr != nil {
			p.log.WithFields(logrus.Fields{"run_id": runID}).WithError(sealErr).Error("failed to seal failed run")
		}
		summary.Status = domain.RunFailed
		summary.Counts = counts
		metrics.RunDuration.WithLabelValues(string(batch.Entity), string(domain.RunFailed)).Observe(time.Since(started).Seconds())
		return summary, stageErr
	}

	staged, err := p.Stage(ctx, batch.Entity, batch.Records, runID)
	if err != nil {
		return fail(err)
	}
	counts.StagedRows = staged

	// Validation resolves facility codes against the reference snapshot, so
	// dependent runs hold here until the center dimension is in place.
	if awaitDeps != nil {
		if err := awaitDeps(ctx); err != nil {
			return fail(fmt.Errorf("waiting for load dependencies: %w", err))
		}
	}

	errorCount, err := p.Validate(ctx, batch.Entity, runID)
	if err != nil {
		return fail(err)
	}
	counts.ErrorRows = errorCount

	loaded, err := p.LoadValid(ctx, batch.Entity, runID)
	if err != nil {
		return fail(err)
	}
	counts.InsertedRows = loaded.Inserted
	counts.UpdatedRows = loaded.Updated

	status := domain.RunSuccess
	if counts.ErrorRate() > p.warnRate {
		status = domain.RunWarning
	}
	if err := p.CompleteRun(ctx, runID, status, counts, nil); err != nil {
		return fail(err)
	}

	summary.Status = status
	summary.Counts = counts
	metrics.RunDuration.WithLabelValues(string(batch.Entity), string(status)).Observe(time.Since(started).Seconds())
	return summary, nil
}

func executedBy() string {
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return user + "@" + host
}
