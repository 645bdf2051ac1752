package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nathoo/asterfall/types"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "world.db")
	s, err := Open(path, WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenTwiceAppliesMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.db")
	for i := 0; i < 2; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		var n int
		if err := s.db.Get(&n, "SELECT COUNT(*) FROM schema_migrations"); err != nil {
			t.Fatalf("count migrations: %v", err)
		}
		if n != 3 {
			t.Fatalf("migrations = %d, want 3", n)
		}
		_ = s.Close()
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx *Tx) error {
		if _, err := tx.CreatePlayer("p1", "Hero", "town_square"); err != nil {
			return err
		}
		if _, err := tx.AppendEvent("p1", "PLAYER_STARTED", nil); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update error = %v, want boom", err)
	}

	err = s.View(ctx, func(tx *Tx) error {
		_, ok, err := tx.Player("p1")
		if err != nil {
			return err
		}
		if ok {
			t.Error("player row survived rollback")
		}
		events, err := tx.RecentEvents("p1", 10)
		if err != nil {
			return err
		}
		if len(events) != 0 {
			t.Errorf("events survived rollback: %d", len(events))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestUpdateJoinsTransactionFromContext(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx *Tx) error {
		if _, err := tx.CreatePlayer("p1", "Hero", "town_square"); err != nil {
			return err
		}
		// A nested Update must join rather than deadlock on the store lock.
		if _, _, err := s.TryConsumeLLMCall(tx.Context(), "2026-01-01", "p1", 10, 10); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update error = %v, want boom", err)
	}

	_ = s.View(ctx, func(tx *Tx) error {
		calls, err := tx.LLMCalls("2026-01-01", "p1")
		if err != nil {
			t.Fatalf("llm calls: %v", err)
		}
		if calls != 0 {
			t.Errorf("joined write survived outer rollback: calls = %d", calls)
		}
		return nil
	})
}

func TestViewRejectsWrites(t *testing.T) {
	s := openTempStore(t)
	err := s.View(context.Background(), func(tx *Tx) error {
		_, err := tx.CreatePlayer("p1", "Hero", "town_square")
		return err
	})
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

func TestCreatePlayerIsIdempotent(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()

	for i, wantCreated := range []bool{true, false} {
		err := s.Update(ctx, func(tx *Tx) error {
			created, err := tx.CreatePlayer("p1", "Hero", "town_square")
			if err != nil {
				return err
			}
			if created != wantCreated {
				t.Errorf("call %d: created = %v, want %v", i, created, wantCreated)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("create player: %v", err)
		}
	}

	_ = s.View(ctx, func(tx *Tx) error {
		p, ok, err := tx.Player("p1")
		if err != nil || !ok {
			t.Fatalf("player: ok=%v err=%v", ok, err)
		}
		if p.HP != StartingHP || p.XP != 0 || p.Injury != 0 || p.LocationID != "town_square" {
			t.Errorf("unexpected player %+v", p)
		}
		return nil
	})
}

func TestEncounterUniquePerActorAndLocation(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	state := types.EncounterState{EnemyRole: "skirmisher", Turn: 1}

	err := s.Update(ctx, func(tx *Tx) error {
		if err := tx.CreateEncounter(types.Encounter{ID: "e1", ActorID: "p1", LocationID: "town_square", State: state}); err != nil {
			return err
		}
		return tx.CreateEncounter(types.Encounter{ID: "e2", ActorID: "p2", LocationID: "town_square", State: state})
	})
	if err != nil {
		t.Fatalf("create encounters: %v", err)
	}

	err = s.Update(ctx, func(tx *Tx) error {
		return tx.CreateEncounter(types.Encounter{ID: "e3", ActorID: "p1", LocationID: "town_square", State: state})
	})
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("duplicate encounter error = %v, want StorageError", err)
	}

	_ = s.View(ctx, func(tx *Tx) error {
		enc, ok, err := tx.EncounterFor("p1", "town_square")
		if err != nil || !ok {
			t.Fatalf("encounter for p1: ok=%v err=%v", ok, err)
		}
		if enc.ID != "e1" || enc.State.EnemyRole != "skirmisher" || enc.State.Turn != 1 {
			t.Errorf("unexpected encounter %+v", enc)
		}
		if _, ok, _ := tx.EncounterFor("p1", "ruin_upper"); ok {
			t.Error("encounter leaked to another location")
		}
		return nil
	})
}

func TestTryConsumeLLMCallLimits(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	day := "2026-03-01"

	tests := []struct {
		user       string
		wantOK     bool
		wantReason string
	}{
		{"u1", true, ""},
		{"u1", true, ""},
		{"u1", false, ReasonUserLimit},
		{"u2", true, ""},
		{"u3", false, ReasonGlobalLimit},
	}
	for i, tt := range tests {
		ok, reason, err := s.TryConsumeLLMCall(ctx, day, tt.user, 3, 2)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if ok != tt.wantOK || reason != tt.wantReason {
			t.Errorf("call %d (%s): got (%v, %q), want (%v, %q)", i, tt.user, ok, reason, tt.wantOK, tt.wantReason)
		}
	}
}

func TestTryConsumeLLMCallConcurrent(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := s.TryConsumeLLMCall(ctx, "2026-03-02", "u1", 100, 5)
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			if ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if granted != 5 {
		t.Fatalf("granted = %d, want 5", granted)
	}
}

func TestMergeSceneMemoryPreservesUnrelatedKeys(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx *Tx) error {
		if _, err := tx.MergeSceneMemory("p1", map[string]any{"visited_locations": []string{"town_square"}, "mode": "explore"}); err != nil {
			return err
		}
		_, err := tx.MergeSceneMemory("p1", map[string]any{"mode": "dialogue"})
		return err
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	_ = s.View(ctx, func(tx *Tx) error {
		scene, err := tx.SceneMemory("p1")
		if err != nil {
			t.Fatalf("scene: %v", err)
		}
		if scene["mode"] != "dialogue" {
			t.Errorf("mode = %v, want dialogue", scene["mode"])
		}
		visited, ok := scene["visited_locations"].([]any)
		if !ok || len(visited) != 1 || visited[0] != "town_square" {
			t.Errorf("visited_locations = %v", scene["visited_locations"])
		}
		return nil
	})
}

func TestTryConsumeNPCMove(t *testing.T) {
	s := openTempStore(t)
	err := s.Update(context.Background(), func(tx *Tx) error {
		for i, want := range []bool{true, true, false} {
			ok, err := tx.TryConsumeNPCMove(42, 2)
			if err != nil {
				return err
			}
			if ok != want {
				t.Errorf("move %d: ok = %v, want %v", i, ok, want)
			}
		}
		ok, err := tx.TryConsumeNPCMove(43, 2)
		if err != nil {
			return err
		}
		if !ok {
			t.Error("fresh hour bucket should have budget")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestDialogueHistoryReturnsNewestOldestFirst(t *testing.T) {
	s := openTempStore(t)
	err := s.Update(context.Background(), func(tx *Tx) error {
		for _, line := range []string{"a", "b", "c", "d"} {
			if err := tx.AppendDialogue("npc", "p1", "player", line); err != nil {
				return err
			}
		}
		hist, err := tx.DialogueHistory("npc", "p1", 2)
		if err != nil {
			return err
		}
		if len(hist) != 2 || hist[0].Content != "c" || hist[1].Content != "d" {
			t.Errorf("history = %+v", hist)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestUpsertNPCKeepsMovedLocationAndBlobs(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	seed := types.NPC{ID: "warden_lyra", Name: "Warden Lyra", LocationID: "ruin_upper", IsKey: true}

	err := s.Update(ctx, func(tx *Tx) error {
		if err := tx.UpsertNPC(seed); err != nil {
			return err
		}
		if err := tx.SetNPCLocation(seed.ID, "town_square"); err != nil {
			return err
		}
		if err := tx.SetNPCState(seed.ID, `{"version":1}`); err != nil {
			return err
		}
		return tx.UpsertNPC(seed)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	_ = s.View(ctx, func(tx *Tx) error {
		npc, ok, err := tx.NPC(seed.ID)
		if err != nil || !ok {
			t.Fatalf("npc: ok=%v err=%v", ok, err)
		}
		if npc.LocationID != "town_square" || npc.State != `{"version":1}` || !npc.IsKey || !npc.Alive {
			t.Errorf("reseeding clobbered npc: %+v", npc)
		}
		return nil
	})
}
