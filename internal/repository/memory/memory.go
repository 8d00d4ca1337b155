// Package memory provides in-memory implementations of the repository
// interfaces. They back the test suite and the loader's dry-run mode, and
// honor the same contracts as the pgx implementations: truncate-and-load
// staging, append-only error sink, monotonic run ids and idempotent upserts.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/organregistry/etl/internal/domain"
	"github.com/organregistry/etl/internal/repository"
)

// NewStores builds a full set of in-memory stores sharing one reference
// data set.
func NewStores(ref domain.ReferenceData) repository.Stores {
	production := NewProduction(&ref)
	return repository.Stores{
		Staging:    NewStaging(),
		Errors:     NewErrors(),
		Reference:  NewReference(production),
		Production: production,
		Audit:      NewAudit(),
	}
}

// DefaultReferenceData returns the static code tables the migrations seed,
// for tests and dry runs that never touch a database.
func DefaultReferenceData() domain.ReferenceData {
	set := func(codes ...string) map[string]struct{} {
		m := make(map[string]struct{}, len(codes))
		for _, c := range codes {
			m[c] = struct{}{}
		}
		return m
	}
	return domain.ReferenceData{
		BloodTypes:   set("O+", "O-", "A+", "A-", "B+", "B-", "AB+", "AB-"),
		OrganTypes:   set("KIDNEY", "LIVER", "HEART", "LUNG", "PANCREAS", "INTESTINE"),
		DonorTypes:   set("DBD", "DCD", "LD"),
		UrgencyCodes: set("1A", "1B", "2", "3", "7"),
		StatusCodes: map[domain.EntityType]map[string]struct{}{
			domain.EntityDonor:     set("REFERRED", "EVALUATED", "RECOVERED", "CLOSED"),
			domain.EntityRecipient: set("ACTIVE", "INACTIVE", "TRANSPLANTED", "REMOVED", "DECEASED"),
		},
		FacilityTypes: set("OPO", "TXC", "LAB"),
		Facilities:    map[string]int64{},
	}
}

// Staging is the in-memory landing buffer.
type Staging struct {
	mu      sync.Mutex
	buffers map[domain.EntityType][]domain.RawRecord
}

func NewStaging() *Staging {
	return &Staging{buffers: map[domain.EntityType][]domain.RawRecord{}}
}

func (s *Staging) Replace(ctx context.Context, entity domain.EntityType, records []domain.RawRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]domain.RawRecord, len(records))
	copy(snapshot, records)
	s.buffers[entity] = snapshot
	return len(snapshot), nil
}

func (s *Staging) ListByRun(ctx context.Context, entity domain.EntityType, runID int64) ([]domain.RawRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RawRecord
	for _, rec := range s.buffers[entity] {
		if rec.RunID == runID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceRowNumber < out[j].SourceRowNumber })
	return out, nil
}

// Errors is the in-memory error sink.
type Errors struct {
	mu      sync.Mutex
	records []domain.ErrorRecord
}

func NewErrors() *Errors {
	return &Errors{}
}

func (e *Errors) Record(ctx context.Context, rec domain.ErrorRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, rec)
	return nil
}

func (e *Errors) List(ctx context.Context, runID int64, errorCode string) ([]domain.ErrorRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []domain.ErrorRecord
	for _, rec := range e.records {
		if rec.RunID != runID {
			continue
		}
		if errorCode != "" && rec.ErrorCode != errorCode {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceRowNumber < out[j].SourceRowNumber })
	return out, nil
}

func (e *Errors) CountByRun(ctx context.Context, runID int64, entity domain.EntityType) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	count := 0
	for _, rec := range e.records {
		if rec.RunID == runID && rec.EntityType == entity {
			count++
		}
	}
	return count, nil
}

func (e *Errors) FailedRows(ctx context.Context, runID int64, entity domain.EntityType) (map[int]struct{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	failed := map[int]struct{}{}
	for _, rec := range e.records {
		if rec.RunID == runID && rec.EntityType == entity {
			failed[rec.SourceRowNumber] = struct{}{}
		}
	}
	return failed, nil
}

// Reference serves snapshots from a static code set plus the live center
// dimension held by the production store.
type Reference struct {
	production *Production
}

func NewReference(production *Production) *Reference {
	return &Reference{production: production}
}

func (r *Reference) Snapshot(ctx context.Context) (domain.ReferenceData, error) {
	base := r.production.ref
	data := domain.ReferenceData{
		BloodTypes:    base.BloodTypes,
		OrganTypes:    base.OrganTypes,
		DonorTypes:    base.DonorTypes,
		UrgencyCodes:  base.UrgencyCodes,
		StatusCodes:   base.StatusCodes,
		FacilityTypes: base.FacilityTypes,
		Facilities:    map[string]int64{},
	}
	r.production.mu.Lock()
	defer r.production.mu.Unlock()
	for code, c := range r.production.centers {
		if c.Active {
			data.Facilities[code] = c.ID
		}
	}
	return data, nil
}

// Production holds the typed entity maps keyed by natural key.
type Production struct {
	mu         sync.Mutex
	ref        *domain.ReferenceData
	nextID     int64
	donors     map[string]domain.Donor
	recipients map[string]domain.Recipient
	centers    map[string]domain.Center
}

func NewProduction(ref *domain.ReferenceData) *Production {
	return &Production{
		ref:        ref,
		donors:     map[string]domain.Donor{},
		recipients: map[string]domain.Recipient{},
		centers:    map[string]domain.Center{},
	}
}

func (p *Production) UpsertDonor(ctx context.Context, d domain.Donor) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now().UTC()
	existing, ok := p.donors[d.DonorID]
	if ok {
		d.ID = existing.ID
		d.CreatedAt = existing.CreatedAt
		d.UpdatedAt = now
		p.donors[d.DonorID] = d
		return false, nil
	}
	p.nextID++
	d.ID = p.nextID
	d.CreatedAt = now
	d.UpdatedAt = now
	p.donors[d.DonorID] = d
	return true, nil
}

func (p *Production) UpsertRecipient(ctx context.Context, r domain.Recipient) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now().UTC()
	existing, ok := p.recipients[r.RecipientID]
	if ok {
		r.ID = existing.ID
		r.CreatedAt = existing.CreatedAt
		r.UpdatedAt = now
		p.recipients[r.RecipientID] = r
		return false, nil
	}
	p.nextID++
	r.ID = p.nextID
	r.CreatedAt = now
	r.UpdatedAt = now
	p.recipients[r.RecipientID] = r
	return true, nil
}

func (p *Production) UpsertCenter(ctx context.Context, c domain.Center) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now().UTC()
	existing, ok := p.centers[c.FacilityCode]
	if ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
		c.UpdatedAt = now
		p.centers[c.FacilityCode] = c
		return false, nil
	}
	p.nextID++
	c.ID = p.nextID
	c.CreatedAt = now
	c.UpdatedAt = now
	p.centers[c.FacilityCode] = c
	return true, nil
}

func (p *Production) ListDonors(ctx context.Context, filter domain.DonorFilter) ([]domain.Donor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []domain.Donor{}
	for _, d := range p.donors {
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		if filter.BloodType != "" && d.BloodType != filter.BloodType {
			continue
		}
		if filter.OrganType != "" && d.OrganType != filter.OrganType {
			continue
		}
		if filter.FacilityCode != "" && d.FacilityCode != filter.FacilityCode {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return strings.Compare(out[i].DonorID, out[j].DonorID) < 0 })
	return out, nil
}

func (p *Production) ListRecipients(ctx context.Context, filter domain.RecipientFilter) ([]domain.Recipient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []domain.Recipient{}
	for _, r := range p.recipients {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.BloodType != "" && r.BloodType != filter.BloodType {
			continue
		}
		if filter.UrgencyCode != "" && r.UrgencyCode != filter.UrgencyCode {
			continue
		}
		if filter.FacilityCode != "" && r.FacilityCode != filter.FacilityCode {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return strings.Compare(out[i].RecipientID, out[j].RecipientID) < 0 })
	return out, nil
}

func (p *Production) ListCenters(ctx context.Context) ([]domain.Center, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []domain.Center{}
	for _, c := range p.centers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return strings.Compare(out[i].FacilityCode, out[j].FacilityCode) < 0 })
	return out, nil
}

func (p *Production) GetDonor(ctx context.Context, donorID string) (domain.Donor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.donors[donorID]
	if !ok {
		return domain.Donor{}, repository.ErrNotFound
	}
	return d, nil
}

func (p *Production) GetRecipient(ctx context.Context, recipientID string) (domain.Recipient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.recipients[recipientID]
	if !ok {
		return domain.Recipient{}, repository.ErrNotFound
	}
	return r, nil
}

func (p *Production) GetCenter(ctx context.Context, facilityCode string) (domain.Center, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.centers[facilityCode]
	if !ok {
		return domain.Center{}, repository.ErrNotFound
	}
	return c, nil
}

func (p *Production) CountRecipients(ctx context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(len(p.recipients)), nil
}

// Audit is the in-memory run ledger. Run ids come from an atomic counter so
// concurrent StartRun calls never collide.
type Audit struct {
	mu     sync.Mutex
	nextID atomic.Int64
	runs   map[int64]domain.LoadRun
}

func NewAudit() *Audit {
	return &Audit{runs: map[int64]domain.LoadRun{}}
}

func (a *Audit) StartRun(ctx context.Context, packageName, sourceFileName, executedBy string) (int64, error) {
	id := a.nextID.Add(1)
	run := domain.LoadRun{
		ID:             id,
		PackageName:    packageName,
		SourceFileName: sourceFileName,
		StartedAt:      time.Now().UTC(),
		Status:         domain.RunRunning,
		ExecutedBy:     executedBy,
	}
	a.mu.Lock()
	a.runs[id] = run
	a.mu.Unlock()
	return id, nil
}

func (a *Audit) CompleteRun(ctx context.Context, runID int64, status domain.RunStatus, counts domain.RunCounts, errorMessage *string) error {
	if !status.Terminal() {
		return domain.ErrNonTerminalStatus
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	run, ok := a.runs[runID]
	if !ok {
		return repository.ErrNotFound
	}
	if run.Status != domain.RunRunning {
		return repository.ErrRunSealed
	}
	now := time.Now().UTC()
	run.CompletedAt = &now
	run.Status = status
	run.Counts = counts
	run.ErrorMessage = errorMessage
	a.runs[runID] = run
	return nil
}

func (a *Audit) GetRun(ctx context.Context, runID int64) (domain.LoadRun, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	run, ok := a.runs[runID]
	if !ok {
		return domain.LoadRun{}, repository.ErrNotFound
	}
	return run, nil
}

func (a *Audit) ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.LoadRun, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []domain.LoadRun{}
	for _, run := range a.runs {
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		if filter.PackageName != "" && run.PackageName != filter.PackageName {
			continue
		}
		if !filter.From.IsZero() && run.StartedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !run.StartedAt.Before(filter.To) {
			continue
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (a *Audit) StaleRuns(ctx context.Context, cutoff time.Time) ([]domain.LoadRun, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []domain.LoadRun{}
	for _, run := range a.runs {
		if run.Status == domain.RunRunning && run.StartedAt.Before(cutoff) {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}
