package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/personacards/backend/internal/app"
	"github.com/personacards/backend/internal/platform/shutdown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	_ = godotenv.Load()

	a, err := app.New(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Log.Sync()

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	if err := a.Run(ctx); err != nil {
		a.Log.Error("server exited", "error", err)
		a.Log.Sync()
		os.Exit(1)
	}
}
