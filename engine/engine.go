// Package engine resolves one chat message into one turn of the shared
// world. A turn reads a snapshot, calls the content service outside the
// store lock, then applies every write in a single store transaction.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nathoo/asterfall/content"
	"github.com/nathoo/asterfall/engine/effects"
	"github.com/nathoo/asterfall/engine/events"
	"github.com/nathoo/asterfall/loader"
	"github.com/nathoo/asterfall/store"
	"github.com/nathoo/asterfall/types"
)

// StutterMessage is returned when a turn could not be applied.
const StutterMessage = "The world stutters; try again."

const (
	startFirstMessage = "Use !start first."
	helpCommands      = "Commands: !help !start !look !investigate !move <place> !talk <name> !rest short !rest long !stats !recap"
	unknownMessage    = "The stars do not answer that action yet."
	// recentContext is how many recent events are summarized for the
	// classifier and narrator.
	recentContext = 6
	recapLimit    = 8
)

// Options configures an Engine.
type Options struct {
	Store   *store.Store
	Content content.Service
	RNG     Dice
	Logger  *slog.Logger
	World   *loader.World
	// NPCMovesPerHour is the world-wide NPC move budget per clock hour.
	NPCMovesPerHour int
}

// Engine resolves turns and autonomous ticks against a store.
type Engine struct {
	store        *store.Store
	content      content.Service
	rng          Dice
	log          *slog.Logger
	world        *loader.World
	movesPerHour int
	tracer       trace.Tracer
}

// New creates an engine. Store and World are required; the rest default
// to the stub content service, a seeded RNG and the default logger.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	if opts.World == nil {
		return nil, errors.New("engine: world is required")
	}
	if opts.Content == nil {
		opts.Content = content.New(content.Options{Logger: opts.Logger})
	}
	if opts.RNG == nil {
		opts.RNG = NewRNG(1337)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NPCMovesPerHour <= 0 {
		opts.NPCMovesPerHour = effects.DefaultMovesPerHour
	}
	return &Engine{
		store:        opts.Store,
		content:      opts.Content,
		rng:          opts.RNG,
		log:          opts.Logger,
		world:        opts.World,
		movesPerHour: opts.NPCMovesPerHour,
		tracer:       otel.Tracer("github.com/nathoo/asterfall/engine"),
	}, nil
}

// World returns the world definition the engine was built with.
func (e *Engine) World() *loader.World {
	return e.world
}

// HandleMessage resolves one message from actorID. It never returns an
// error: a turn that cannot be applied yields ok=false and StutterMessage,
// and none of its writes are kept.
func (e *Engine) HandleMessage(ctx context.Context, actorID, name, text string) types.Result {
	ctx, span := e.tracer.Start(ctx, "engine.turn", trace.WithAttributes(attribute.String("actor", actorID)))
	defer span.End()

	// 1. Snapshot.
	snap, err := e.snapshot(ctx, actorID)
	if err != nil {
		return e.stutter(span, actorID, err)
	}

	// 2. Classify and generate outside the store lock.
	plan := e.plan(ctx, actorID, text, snap)
	span.SetAttributes(attribute.String("action", string(plan.intent.Action)))

	// 3. Resolve.
	t := &turn{e: e, actorID: actorID, name: name, text: text, plan: plan}
	err = e.store.Update(ctx, func(tx *store.Tx) error {
		t.tx = tx
		t.events = nil
		return t.run()
	})
	if err != nil {
		return e.stutter(span, actorID, err)
	}

	// 4. Fold long NPC memories after commit.
	if t.compact != nil {
		e.compactMemory(ctx, actorID, *t.compact)
	}

	e.log.Info("turn_resolved",
		"actor", actorID,
		"action", string(t.action),
		"mode_before", string(t.modeBefore),
		"mode_after", string(t.result.Mode),
		"thread", t.threadID,
	)
	return t.result
}

func (e *Engine) stutter(span trace.Span, actorID string, err error) types.Result {
	span.RecordError(err)
	span.SetStatus(codes.Error, "turn failed")
	var se *store.StorageError
	if errors.As(err, &se) {
		e.log.Error("turn_failed", "actor", actorID, "op", se.Op, "error", err)
	} else {
		e.log.Error("turn_failed", "actor", actorID, "error", err)
	}
	return types.Result{OK: false, Message: StutterMessage}
}

// Now is the engine's clock, shared with the store.
func (e *Engine) Now() time.Time {
	return e.store.Now()
}

// Status is a player's condition for display.
type Status struct {
	Started      bool
	Player       types.Player
	LocationName string
	Mode         types.Mode
}

// Status reads actorID's player row and session mode.
func (e *Engine) Status(ctx context.Context, actorID string) (Status, error) {
	var st Status
	err := e.store.View(ctx, func(tx *store.Tx) error {
		p, ok, err := tx.Player(actorID)
		if err != nil {
			return err
		}
		sess, err := tx.SessionState(actorID)
		if err != nil {
			return err
		}
		st = Status{Started: ok, Player: p, Mode: sess.Mode}
		if loc, found := e.world.Location(p.LocationID); ok && found {
			st.LocationName = loc.Name
		}
		return nil
	})
	if err != nil {
		return Status{}, fmt.Errorf("status %s: %w", actorID, err)
	}
	return st, nil
}

// Recap renders the last events of actorID.
func (e *Engine) Recap(ctx context.Context, actorID string, limit int) (string, error) {
	if limit <= 0 {
		limit = recapLimit
	}
	var out string
	err := e.store.View(ctx, func(tx *store.Tx) error {
		recs, err := tx.RecentEvents(actorID, limit)
		if err != nil {
			return err
		}
		out = events.Recap(recs)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("recap %s: %w", actorID, err)
	}
	return out, nil
}
