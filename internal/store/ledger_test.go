package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/personacards/backend/internal/platform/logger"
)

func TestLedgerRecordAndRecent(t *testing.T) {
	log, err := logger.New("dev")
	if err != nil {
		t.Fatal(err)
	}
	ledger, err := OpenLedger(filepath.Join(t.TempDir(), "runs.db"), log)
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}

	ledger.Record(PipelineRun{
		Stage:     "profile",
		Persona:   "kirana_shop",
		Model:     "openai/gpt-5.1",
		Status:    "persisted",
		Attempts:  1,
		StartedAt: time.Now().Add(-time.Minute),
	})
	ledger.Record(PipelineRun{
		Stage:     "cards",
		Persona:   "kirana_shop",
		Model:     "openai/gpt-5.1",
		Status:    "failed",
		FaultKind: "fatal_schema",
		Attempts:  1,
		StartedAt: time.Now(),
	})

	runs, err := ledger.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].Stage != "cards" {
		t.Fatalf("newest run = %q, want cards", runs[0].Stage)
	}
	if runs[1].FaultKind != "" {
		t.Fatalf("profile run fault_kind = %q, want empty", runs[1].FaultKind)
	}
}

func TestNilLedgerIsSafe(t *testing.T) {
	var ledger *Ledger
	ledger.Record(PipelineRun{Stage: "profile"})
	if runs, err := ledger.Recent(5); err != nil || runs != nil {
		t.Fatalf("nil ledger: runs=%v err=%v", runs, err)
	}
}
