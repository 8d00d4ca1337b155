package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/organregistry/etl/internal/domain"
	"github.com/organregistry/etl/internal/repository/memory"
)

func TestRunAllLoadsCentersBeforeDependents(t *testing.T) {
	// The donor and recipient rows only validate once the centers batch has
	// landed the facility dimension, so a green run proves the ordering.
	p, _ := newTestPipeline(t)

	batches := []Batch{
		{
			Entity:      domain.EntityDonor,
			PackageName: "donor_load",
			Records:     []domain.RawRecord{donorRecord("D-1", nil), donorRecord("D-2", nil)},
		},
		{
			Entity:      domain.EntityCenter,
			PackageName: "center_load",
			Records:     []domain.RawRecord{centerRecord("TXC-001")},
		},
		{
			Entity:      domain.EntityRecipient,
			PackageName: "recipient_load",
			Records:     []domain.RawRecord{recipientRecord("R-1", nil)},
		},
	}

	summaries, err := NewOrchestrator(p).RunAll(context.Background(), batches)
	if err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(summaries))
	}

	// Summaries stay in input order regardless of completion order.
	if summaries[0].Entity != domain.EntityDonor || summaries[1].Entity != domain.EntityCenter || summaries[2].Entity != domain.EntityRecipient {
		t.Fatalf("summaries out of input order: %v, %v, %v", summaries[0].Entity, summaries[1].Entity, summaries[2].Entity)
	}

	for _, s := range summaries {
		if s.Status != domain.RunSuccess {
			t.Fatalf("%s run ended %s with counts %+v", s.Entity, s.Status, s.Counts)
		}
		if !s.Counts.Balanced() {
			t.Fatalf("%s run does not reconcile: %+v", s.Entity, s.Counts)
		}
	}
	if summaries[0].Counts.InsertedRows != 2 {
		t.Fatalf("expected 2 donors inserted, got %d", summaries[0].Counts.InsertedRows)
	}
}

func TestRunAllWithoutCenterBatchUsesExistingDimension(t *testing.T) {
	p, _ := newTestPipeline(t)
	loadCenters(t, p, "TXC-001")

	summaries, err := NewOrchestrator(p).RunAll(context.Background(), []Batch{
		{
			Entity:      domain.EntityDonor,
			PackageName: "donor_load",
			Records:     []domain.RawRecord{donorRecord("D-1", nil)},
		},
	})
	if err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}
	if summaries[0].Status != domain.RunSuccess {
		t.Fatalf("expected success, got %s", summaries[0].Status)
	}
}

func TestRunAllSealsEveryRunOnFailure(t *testing.T) {
	stores := memory.NewStores(memory.DefaultReferenceData())
	stores.Reference = brokenReference{}
	p := New(stores, testLogger(), WithClock(func() time.Time { return fixedNow }))

	summaries, err := NewOrchestrator(p).RunAll(context.Background(), []Batch{
		{
			Entity:      domain.EntityCenter,
			PackageName: "center_load",
			Records:     []domain.RawRecord{centerRecord("TXC-001")},
		},
		{
			Entity:      domain.EntityDonor,
			PackageName: "donor_load",
			Records:     []domain.RawRecord{donorRecord("D-1", nil)},
		},
	})
	if err == nil {
		t.Fatal("expected RunAll to fail")
	}

	for _, s := range summaries {
		if s.RunID == 0 {
			continue
		}
		run, err := stores.Audit.GetRun(context.Background(), s.RunID)
		if err != nil {
			t.Fatalf("get run %d: %v", s.RunID, err)
		}
		if run.Status == domain.RunRunning {
			t.Fatalf("run %d left in running state", s.RunID)
		}
	}
}
