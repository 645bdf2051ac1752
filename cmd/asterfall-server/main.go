// Asterfall-server serves the shared world over HTTP and runs the NPC tick
// loop on a fixed interval.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/nathoo/asterfall/app"
	"github.com/nathoo/asterfall/config"
	"github.com/nathoo/asterfall/engine"
	"github.com/nathoo/asterfall/transport/httpapi"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "asterfall-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Error("close_failed", "error", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Options{
			Engine:      a.Engine,
			Logger:      logger,
			TickMaxNPCs: cfg.TickMaxNPCs,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http_listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.TickInterval > 0 {
		g.Go(func() error {
			tickLoop(gctx, a.Engine, cfg.TickInterval, cfg.TickMaxNPCs, logger)
			return nil
		})
	}
	return g.Wait()
}

// tickLoop advances NPCs until ctx is done. A failed tick is logged and
// retried on the next interval.
func tickLoop(ctx context.Context, eng *engine.Engine, every time.Duration, maxNPCs int, log *slog.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := eng.RunNPCTick(ctx, eng.Now(), maxNPCs); err != nil && ctx.Err() == nil {
				log.Error("tick_failed", "error", err)
			}
		}
	}
}
