package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/personacards/backend/internal/config"
	"github.com/personacards/backend/internal/fault"
	"github.com/personacards/backend/internal/generation"
	"github.com/personacards/backend/internal/platform/logger"
	"github.com/personacards/backend/internal/prompt"
	"github.com/personacards/backend/internal/schema"
	"github.com/personacards/backend/internal/store"
)

// Runner wires the configured stages together and runs them in order.
type Runner struct {
	cfg  config.Config
	deps Deps
}

func NewRunner(cfg config.Config, gen generation.Client, log *logger.Logger, ledger *store.Ledger) *Runner {
	persona := strings.TrimSuffix(filepath.Base(cfg.Pipeline.PersonaPath), filepath.Ext(cfg.Pipeline.PersonaPath))
	return &Runner{
		cfg: cfg,
		deps: Deps{
			Gen:     gen,
			Log:     log,
			Ledger:  ledger,
			Persona: persona,
			Model:   cfg.Generation.Model,
		},
	}
}

func (r *Runner) profileStage() (Stage, error) {
	tpl, err := prompt.ProfileTemplate(r.cfg.Pipeline.ProfileTemplatePath)
	if err != nil {
		return Stage{}, err
	}
	personaPath := r.cfg.Pipeline.PersonaPath
	return Stage{
		Name: "profile",
		LoadInput: func() (any, error) {
			ctx, err := store.LoadContext(personaPath)
			if err != nil {
				return nil, err
			}
			return ctx, nil
		},
		Template:   tpl,
		Spec:       schema.ProfileSpec(),
		OutputPath: store.ProfileOutputPath(r.cfg.Pipeline.OutputDir, personaPath),
	}, nil
}

func (r *Runner) cardStage() (Stage, error) {
	tpl, err := prompt.CardTemplate(r.cfg.Pipeline.CardTemplatePath)
	if err != nil {
		return Stage{}, err
	}
	profilePath := store.ProfileOutputPath(r.cfg.Pipeline.OutputDir, r.cfg.Pipeline.PersonaPath)
	return Stage{
		Name: "cards",
		LoadInput: func() (any, error) {
			doc, err := store.LoadDocument(profilePath)
			if err != nil {
				return nil, err
			}
			return doc, nil
		},
		Template:   tpl,
		Spec:       schema.DeckSpec(),
		OutputPath: r.cfg.Pipeline.CardsOutputPath,
	}, nil
}

// Run executes the named stage: "profile", "cards", or "all". "all"
// runs the card stage only after the profile artifact is persisted.
func (r *Runner) Run(ctx context.Context, stage string) error {
	switch stage {
	case "profile":
		s, err := r.profileStage()
		if err != nil {
			return err
		}
		_, err = s.Run(ctx, r.deps)
		return err
	case "cards":
		s, err := r.cardStage()
		if err != nil {
			return err
		}
		_, err = s.Run(ctx, r.deps)
		return err
	case "all", "":
		s, err := r.profileStage()
		if err != nil {
			return err
		}
		if _, err := s.Run(ctx, r.deps); err != nil {
			return err
		}
		c, err := r.cardStage()
		if err != nil {
			return err
		}
		_, err = c.Run(ctx, r.deps)
		return err
	default:
		return fault.New(fault.FatalConfig, "unknown stage %q, want profile, cards, or all", stage)
	}
}
