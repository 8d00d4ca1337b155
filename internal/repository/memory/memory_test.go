package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/organregistry/etl/internal/domain"
	"github.com/organregistry/etl/internal/repository"
)

func TestStagingReplaceTruncates(t *testing.T) {
	s := NewStaging()
	ctx := context.Background()

	first := []domain.RawRecord{
		{RunID: 1, SourceRowNumber: 1, Fields: map[string]string{"donor_id": "D-1"}},
		{RunID: 1, SourceRowNumber: 2, Fields: map[string]string{"donor_id": "D-2"}},
	}
	if _, err := s.Replace(ctx, domain.EntityDonor, first); err != nil {
		t.Fatalf("replace: %v", err)
	}

	second := []domain.RawRecord{
		{RunID: 2, SourceRowNumber: 1, Fields: map[string]string{"donor_id": "D-3"}},
	}
	if _, err := s.Replace(ctx, domain.EntityDonor, second); err != nil {
		t.Fatalf("replace: %v", err)
	}

	stale, err := s.ListByRun(ctx, domain.EntityDonor, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("expected run 1 rows gone after replace, got %d", len(stale))
	}

	live, err := s.ListByRun(ctx, domain.EntityDonor, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(live) != 1 || live[0].Get("donor_id") != "D-3" {
		t.Fatalf("unexpected run 2 rows: %+v", live)
	}
}

func TestStagingBuffersAreIndependentPerEntity(t *testing.T) {
	s := NewStaging()
	ctx := context.Background()

	if _, err := s.Replace(ctx, domain.EntityDonor, []domain.RawRecord{{RunID: 1, SourceRowNumber: 1}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if _, err := s.Replace(ctx, domain.EntityRecipient, []domain.RawRecord{{RunID: 2, SourceRowNumber: 1}}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	donors, err := s.ListByRun(ctx, domain.EntityDonor, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(donors) != 1 {
		t.Fatalf("donor buffer clobbered by recipient replace, got %d rows", len(donors))
	}
}

func TestAuditStartRunConcurrentIDsAreUnique(t *testing.T) {
	a := NewAudit()
	ctx := context.Background()

	const n = 50
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := a.StartRun(ctx, "donor_load", "donors.csv", "tester@host")
			if err != nil {
				t.Errorf("start run: %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("run id %d issued twice", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct ids, got %d", n, len(seen))
	}
}

func TestAuditCompleteRunSealsOnce(t *testing.T) {
	a := NewAudit()
	ctx := context.Background()

	id, err := a.StartRun(ctx, "donor_load", "donors.csv", "tester@host")
	if err != nil {
		t.Fatalf("start run: %v", err)
	}

	counts := domain.RunCounts{SourceRows: 1, StagedRows: 1, InsertedRows: 1}
	if err := a.CompleteRun(ctx, id, domain.RunSuccess, counts, nil); err != nil {
		t.Fatalf("complete run: %v", err)
	}

	err = a.CompleteRun(ctx, id, domain.RunFailed, counts, nil)
	if !errors.Is(err, repository.ErrRunSealed) {
		t.Fatalf("expected ErrRunSealed on second seal, got %v", err)
	}

	run, err := a.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != domain.RunSuccess {
		t.Fatalf("second seal overwrote status: %s", run.Status)
	}
}

func TestAuditCompleteRunRejectsNonTerminalStatus(t *testing.T) {
	a := NewAudit()
	ctx := context.Background()

	id, err := a.StartRun(ctx, "donor_load", "donors.csv", "tester@host")
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	err = a.CompleteRun(ctx, id, domain.RunRunning, domain.RunCounts{}, nil)
	if !errors.Is(err, domain.ErrNonTerminalStatus) {
		t.Fatalf("expected ErrNonTerminalStatus, got %v", err)
	}
}

func TestAuditStaleRuns(t *testing.T) {
	a := NewAudit()
	ctx := context.Background()

	stuck, err := a.StartRun(ctx, "donor_load", "donors.csv", "tester@host")
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	sealed, err := a.StartRun(ctx, "center_load", "centers.csv", "tester@host")
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	if err := a.CompleteRun(ctx, sealed, domain.RunSuccess, domain.RunCounts{}, nil); err != nil {
		t.Fatalf("complete run: %v", err)
	}

	stale, err := a.StaleRuns(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("stale runs: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != stuck {
		t.Fatalf("expected only the unsealed run, got %+v", stale)
	}
}

func TestUpsertCenterPreservesIdentity(t *testing.T) {
	p := NewProduction(&domain.ReferenceData{})
	ctx := context.Background()

	created, err := p.UpsertCenter(ctx, domain.Center{FacilityCode: "TXC-001", Name: "Riverside", Region: 4, FacilityType: "TXC", Active: true})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !created {
		t.Fatal("expected first upsert to insert")
	}
	original, err := p.GetCenter(ctx, "TXC-001")
	if err != nil {
		t.Fatalf("get center: %v", err)
	}

	created, err = p.UpsertCenter(ctx, domain.Center{FacilityCode: "TXC-001", Name: "Riverside Medical", Region: 4, FacilityType: "TXC", Active: true})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if created {
		t.Fatal("expected second upsert to update")
	}

	updated, err := p.GetCenter(ctx, "TXC-001")
	if err != nil {
		t.Fatalf("get center: %v", err)
	}
	if updated.ID != original.ID {
		t.Fatalf("surrogate id changed on update: %d != %d", updated.ID, original.ID)
	}
	if !updated.CreatedAt.Equal(original.CreatedAt) {
		t.Fatal("created_at changed on update")
	}
	if updated.Name != "Riverside Medical" {
		t.Fatalf("name not updated: %s", updated.Name)
	}
}

func TestReferenceSnapshotTracksActiveCenters(t *testing.T) {
	ref := DefaultReferenceData()
	production := NewProduction(&ref)
	reference := NewReference(production)
	ctx := context.Background()

	if _, err := production.UpsertCenter(ctx, domain.Center{FacilityCode: "TXC-001", Name: "Riverside", Region: 4, FacilityType: "TXC", Active: true}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := production.UpsertCenter(ctx, domain.Center{FacilityCode: "TXC-002", Name: "Lakeshore", Region: 5, FacilityType: "TXC", Active: false}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	snapshot, err := reference.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if _, ok := snapshot.ResolveFacility("TXC-001"); !ok {
		t.Fatal("active center missing from snapshot")
	}
	if _, ok := snapshot.ResolveFacility("TXC-002"); ok {
		t.Fatal("inactive center should not resolve")
	}
	if !snapshot.ValidBloodType("AB-") {
		t.Fatal("code tables missing from snapshot")
	}
}

func TestGetDonorNotFound(t *testing.T) {
	p := NewProduction(&domain.ReferenceData{})
	_, err := p.GetDonor(context.Background(), "D-404")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
