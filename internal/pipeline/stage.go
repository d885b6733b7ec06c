// Package pipeline drives the two generation stages: synthesize a user
// profile from persona context, then synthesize a card deck from that
// profile. Each stage moves through the same fixed sequence of states
// and either persists a validated artifact or fails with a classified
// fault. There is no repair loop: invalid model output fails the stage.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/personacards/backend/internal/fault"
	"github.com/personacards/backend/internal/generation"
	"github.com/personacards/backend/internal/platform/logger"
	"github.com/personacards/backend/internal/prompt"
	"github.com/personacards/backend/internal/schema"
	"github.com/personacards/backend/internal/store"
)

type State string

const (
	StateIdle            State = "idle"
	StateLoadingContext  State = "loading_context"
	StateRenderingPrompt State = "rendering_prompt"
	StateGenerating      State = "generating"
	StateValidating      State = "validating"
	StatePersisted       State = "persisted"
	StateFailed          State = "failed"
)

// Stage is one generation step wired to its input, prompt, contract,
// and output location.
type Stage struct {
	Name       string
	LoadInput  func() (any, error)
	Template   *prompt.Template
	Spec       schema.Spec
	OutputPath string
}

// Deps is everything a stage needs besides its own wiring.
type Deps struct {
	Gen     generation.Client
	Log     *logger.Logger
	Ledger  *store.Ledger
	Persona string
	Model   string
}

// Run executes the stage to completion and returns the validated
// document. The returned error keeps the underlying fault kind.
func (s Stage) Run(ctx context.Context, deps Deps) (schema.Document, error) {
	started := time.Now()
	state := StateIdle
	attempts := 0

	step := func(next State) {
		state = next
		deps.Log.Debug("stage transition", "stage", s.Name, "state", state)
	}

	fail := func(err error) (schema.Document, error) {
		wrapped := fmt.Errorf("%s stage: %w", s.Name, err)
		deps.Log.Error("stage failed",
			"stage", s.Name, "state", state, "fault", fault.KindOf(wrapped), "error", err)
		s.record(deps, started, StateFailed, wrapped, attempts)
		return nil, wrapped
	}

	step(StateLoadingContext)
	input, err := s.LoadInput()
	if err != nil {
		return fail(err)
	}

	step(StateRenderingPrompt)
	rendered, err := s.Template.Render(input)
	if err != nil {
		return fail(err)
	}

	step(StateGenerating)
	res, err := deps.Gen.Complete(ctx, rendered)
	attempts = res.Attempts
	if err != nil {
		return fail(err)
	}

	step(StateValidating)
	doc, err := s.Spec.Validate([]byte(res.Text))
	if err != nil {
		return fail(err)
	}

	if err := store.WriteDocument(s.OutputPath, doc); err != nil {
		return fail(err)
	}
	step(StatePersisted)
	deps.Log.Info("stage persisted",
		"stage", s.Name, "artifact", s.OutputPath, "attempts", attempts,
		"elapsed", time.Since(started))
	s.record(deps, started, StatePersisted, nil, attempts)
	return doc, nil
}

func (s Stage) record(deps Deps, started time.Time, state State, runErr error, attempts int) {
	run := store.PipelineRun{
		Stage:      s.Name,
		Persona:    deps.Persona,
		Model:      deps.Model,
		Status:     string(state),
		Attempts:   attempts,
		ArtifactAt: s.OutputPath,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if runErr != nil {
		run.FaultKind = string(fault.KindOf(runErr))
		run.Detail = datatypes.JSON(fmt.Appendf(nil, `{"error":%q}`, runErr.Error()))
	}
	deps.Ledger.Record(run)
}
