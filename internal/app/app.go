// Package app assembles and runs the chat proxy server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/personacards/backend/internal/config"
	"github.com/personacards/backend/internal/platform/logger"
	"github.com/personacards/backend/internal/proxy"
)

type App struct {
	Log    *logger.Logger
	Config config.Config

	server *http.Server
}

func New(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	h := proxy.NewHandler(*cfg, log, nil)
	router := proxy.NewRouter(*cfg, log, h)

	srv := &http.Server{
		Addr:    cfg.Proxy.Addr,
		Handler: router,
	}

	return &App{
		Log:    log,
		Config: *cfg,
		server: srv,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.Log.Info("proxy listening",
		"addr", a.Config.Proxy.Addr,
		"upstream_key_present", a.Config.Generation.APIKey != "")

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Proxy.ShutdownTimeout.Duration)
		defer cancel()
		_ = a.server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
