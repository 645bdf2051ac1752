// Package httpapi exposes the turn engine over HTTP for chat bridges.
package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nathoo/asterfall/engine"
	"github.com/nathoo/asterfall/types"
)

// Engine is what the API needs from the turn engine.
type Engine interface {
	HandleMessage(ctx context.Context, actorID, name, text string) types.Result
	RunNPCTick(ctx context.Context, now time.Time, maxNPCs int) (int, error)
	Recap(ctx context.Context, actorID string, limit int) (string, error)
	Export(ctx context.Context, playerID string) ([]byte, error)
	Status(ctx context.Context, actorID string) (engine.Status, error)
	Now() time.Time
}

// Options configures the router.
type Options struct {
	Engine Engine
	Logger *slog.Logger
	// TickMaxNPCs caps a tick request that names no size.
	TickMaxNPCs int
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TickMaxNPCs < 1 {
		opts.TickMaxNPCs = 4
	}
	h := &handler{engine: opts.Engine, log: opts.Logger, tickMax: opts.TickMaxNPCs}

	r := gin.New()
	r.Use(requestID(), accessLog(opts.Logger), recovery(opts.Logger))

	r.GET("/healthz", h.health)

	v1 := r.Group("/v1")
	{
		v1.POST("/turns", h.turn)
		v1.POST("/ticks", h.tick)

		players := v1.Group("/players/:id")
		{
			players.GET("/status", h.status)
			players.GET("/recap", h.recap)
			players.GET("/export", h.export)
		}
	}
	return r
}
