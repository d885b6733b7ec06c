package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/personacards/backend/internal/fault"
	"github.com/personacards/backend/internal/platform/logger"
	"github.com/personacards/backend/internal/prompt"
	"github.com/personacards/backend/internal/schema"
	"github.com/personacards/backend/internal/store"
)

func TestStageRecordsLedgerRows(t *testing.T) {
	dir := t.TempDir()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatal(err)
	}
	ledger, err := store.OpenLedger(filepath.Join(dir, "runs.db"), log)
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}

	tpl, err := prompt.CardTemplate("")
	if err != nil {
		t.Fatal(err)
	}
	stage := Stage{
		Name:       "cards",
		LoadInput:  func() (any, error) { return map[string]any{"tone": "warm"}, nil },
		Template:   tpl,
		Spec:       schema.DeckSpec(),
		OutputPath: filepath.Join(dir, "cards_output.json"),
	}
	deps := Deps{
		Gen:     &stubClient{replies: []stubReply{{contains: "Profile:", text: goodDeckJSON(t)}}},
		Log:     log,
		Ledger:  ledger,
		Persona: "kirana_shop",
		Model:   "openai/gpt-5.1",
	}

	if _, err := stage.Run(context.Background(), deps); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Second run fails validation and must land as a failed row.
	deps.Gen = &stubClient{replies: []stubReply{{contains: "Profile:", text: `{"cards": []}`}}}
	if _, err := stage.Run(context.Background(), deps); !fault.Is(err, fault.FatalSchema) {
		t.Fatalf("got %v, want fatal_schema", err)
	}

	runs, err := ledger.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d ledger rows, want 2", len(runs))
	}
	byStatus := map[string]store.PipelineRun{}
	for _, r := range runs {
		byStatus[r.Status] = r
	}
	ok, found := byStatus["persisted"]
	if !found || ok.Persona != "kirana_shop" || ok.Attempts != 1 {
		t.Fatalf("persisted row = %+v", ok)
	}
	failed, found := byStatus["failed"]
	if !found || failed.FaultKind != "fatal_schema" {
		t.Fatalf("failed row = %+v", failed)
	}
}
