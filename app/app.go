// Package app wires configuration, storage, content and the world into a
// ready engine for the command binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nathoo/asterfall/config"
	"github.com/nathoo/asterfall/content"
	"github.com/nathoo/asterfall/engine"
	"github.com/nathoo/asterfall/loader"
	"github.com/nathoo/asterfall/store"
	"github.com/nathoo/asterfall/telemetry"
)

// App holds an initialized engine and the resources behind it.
type App struct {
	Engine *engine.Engine
	Store  *store.Store
	World  *loader.World
	Config config.Config
	Logger *slog.Logger

	closers []func(context.Context) error
}

// Open loads the world, opens the store, builds the content client and seeds
// the world. The caller must Close the App.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = cfg.Logger()
	}
	a := &App{Config: cfg, Logger: logger}

	shutdown, err := telemetry.Setup(ctx, "asterfall", cfg.OTelEndpoint)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdown)

	world, err := loader.Load(cfg.WorldDir)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("load world: %w", err)
	}
	a.World = world

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.Store = s
	a.closers = append(a.closers, func(context.Context) error { return s.Close() })

	client, closeContent, err := content.FromConfig(ctx, cfg, s, logger)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("content: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return closeContent() })

	eng, err := engine.New(engine.Options{
		Store:           s,
		Content:         client,
		RNG:             engine.NewRNG(cfg.RNGSeed),
		Logger:          logger,
		World:           world,
		NPCMovesPerHour: cfg.NPCMovesPerHour,
	})
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	if err := eng.InitializeWorld(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.Engine = eng

	logger.Info("app_ready",
		"world", world.Title,
		"db", cfg.DBPath,
		"json_backend", cfg.LLMJSONBackend,
		"text_backend", cfg.LLMTextBackend,
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
