package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/personacards/backend/internal/config"
	"github.com/personacards/backend/internal/fault"
	"github.com/personacards/backend/internal/generation"
	"github.com/personacards/backend/internal/pipeline"
	"github.com/personacards/backend/internal/platform/logger"
	"github.com/personacards/backend/internal/platform/shutdown"
	"github.com/personacards/backend/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		persona    = flag.String("persona", "", "persona context file (overrides config)")
		out        = flag.String("out", "", "output directory (overrides config)")
		stage      = flag.String("stage", "all", "stage to run: profile, cards, or all")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *persona != "" {
		cfg.Pipeline.PersonaPath = *persona
	}
	if *out != "" {
		cfg.Pipeline.OutputDir = *out
		cfg.Pipeline.CardsOutputPath = filepath.Join(*out, "cards_output.json")
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	gen, err := generation.New(cfg.Generation, log)
	if err != nil {
		log.Error("init generation client", "error", err)
		os.Exit(1)
	}

	ledger, err := store.OpenLedger(cfg.Pipeline.LedgerPath, log)
	if err != nil {
		log.Warn("run ledger unavailable, continuing without it", "error", err)
		ledger = nil
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	runner := pipeline.NewRunner(*cfg, gen, log, ledger)
	if err := runner.Run(ctx, *stage); err != nil {
		log.Error("pipeline failed", "stage", *stage, "fault", fault.KindOf(err), "error", err)
		log.Sync()
		os.Exit(1)
	}
	log.Info("pipeline complete", "stage", *stage, "persona", cfg.Pipeline.PersonaPath)
}
