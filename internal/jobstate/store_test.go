package jobstate

import (
	"testing"

	"github.com/moumitha43-ops/MAILER/internal/domain"
)

func TestTryStartClaimsSlotOnce(t *testing.T) {
	s := New()

	if !s.TryStart(3) {
		t.Fatal("first TryStart should succeed")
	}
	if s.TryStart(5) {
		t.Fatal("second TryStart must fail while running")
	}

	snap := s.Snapshot()
	if !snap.Running || snap.Total != 3 {
		t.Errorf("snapshot = %+v, want running with total 3 (in-flight state untouched)", snap)
	}

	s.MarkFinished("")
	if !s.TryStart(5) {
		t.Error("TryStart should succeed after MarkFinished")
	}
}

func TestTryStartResetsState(t *testing.T) {
	s := New()
	s.TryStart(1)
	s.RecordProgress(domain.DeliveryOutcome{Email: "old@example.com", Status: domain.DeliveryStatusSent})
	s.MarkFinished("old error")

	s.TryStart(2)
	snap := s.Snapshot()
	if snap.Progress != 0 || len(snap.Results) != 0 || snap.Error != "" {
		t.Errorf("new run should start from clean state, got %+v", snap)
	}
}

func TestRecordProgress(t *testing.T) {
	s := New()
	s.TryStart(2)

	s.RecordProgress(domain.DeliveryOutcome{Email: "a@example.com", Status: domain.DeliveryStatusSent})
	s.RecordProgress(domain.DeliveryOutcome{Email: "b@example.com", Status: domain.DeliveryStatusFailed, Error: "boom"})

	snap := s.Snapshot()
	if snap.Progress != 2 {
		t.Errorf("Progress = %d, want 2", snap.Progress)
	}
	if len(snap.Results) != 2 || snap.Results[1].Error != "boom" {
		t.Errorf("Results = %+v", snap.Results)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	s.TryStart(2)
	s.RecordProgress(domain.DeliveryOutcome{Email: "a@example.com", Status: domain.DeliveryStatusSent})

	snap := s.Snapshot()
	snap.Results[0].Email = "mutated@example.com"

	if got := s.Snapshot().Results[0].Email; got != "a@example.com" {
		t.Errorf("store state mutated through snapshot: %q", got)
	}
}

func TestMarkFinishedRecordsError(t *testing.T) {
	s := New()
	s.TryStart(1)
	s.MarkFinished("roster unreadable")

	snap := s.Snapshot()
	if snap.Running {
		t.Error("Running should be cleared")
	}
	if snap.Error != "roster unreadable" {
		t.Errorf("Error = %q", snap.Error)
	}
}
