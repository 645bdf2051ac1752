package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nathoo/asterfall/engine"
	"github.com/nathoo/asterfall/engine/save"
	"github.com/nathoo/asterfall/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeEngine struct {
	lastActor string
	lastText  string
	tickN     int
	tickErr   error
	started   map[string]bool
}

func (f *fakeEngine) HandleMessage(_ context.Context, actorID, _, text string) types.Result {
	f.lastActor, f.lastText = actorID, text
	return types.Result{
		OK:      true,
		Message: "You move to Upper Chamber.",
		Mode:    types.ModeExplore,
		Events:  []types.Event{{Type: "PLAYER_MOVED", Data: map[string]any{"to": "ruin_upper"}}},
	}
}

func (f *fakeEngine) RunNPCTick(_ context.Context, _ time.Time, maxNPCs int) (int, error) {
	f.tickN = maxNPCs
	return maxNPCs, f.tickErr
}

func (f *fakeEngine) Recap(_ context.Context, actorID string, limit int) (string, error) {
	return fmt.Sprintf("recap of %s (%d)", actorID, limit), nil
}

func (f *fakeEngine) Export(_ context.Context, playerID string) ([]byte, error) {
	if !f.started[playerID] {
		return nil, fmt.Errorf("export %s: %w", playerID, save.ErrNoPlayer)
	}
	return []byte(`{"version":1,"game":"Asterfall"}`), nil
}

func (f *fakeEngine) Status(_ context.Context, actorID string) (engine.Status, error) {
	if !f.started[actorID] {
		return engine.Status{}, nil
	}
	return engine.Status{
		Started:      true,
		Player:       types.Player{ID: actorID, LocationID: "town_square", HP: 20},
		LocationName: "Asterfall Commons",
		Mode:         types.ModeExplore,
	}, nil
}

func (f *fakeEngine) Now() time.Time { return time.Unix(1_700_000_000, 0) }

func newTestRouter(f *fakeEngine) http.Handler {
	return NewRouter(Options{
		Engine:      f,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		TickMaxNPCs: 4,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	w := do(t, newTestRouter(&fakeEngine{}), http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get(HeaderRequestID) == "" {
		t.Error("missing request id header")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	newTestRouter(&fakeEngine{}).ServeHTTP(w, req)
	if got := w.Header().Get(HeaderRequestID); got != "abc-123" {
		t.Errorf("request id = %q", got)
	}
}

func TestTurn(t *testing.T) {
	f := &fakeEngine{}
	w := do(t, newTestRouter(f), http.MethodPost, "/v1/turns", `{"actor_id":"p1","name":"Hero","text":"!move ruin"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if f.lastActor != "p1" || f.lastText != "!move ruin" {
		t.Errorf("engine got %q %q", f.lastActor, f.lastText)
	}

	var resp struct {
		Success   bool         `json:"success"`
		Data      TurnResponse `json:"data"`
		RequestID string       `json:"request_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || !resp.Data.OK || resp.Data.Mode != types.ModeExplore {
		t.Errorf("response = %+v", resp)
	}
	if len(resp.Data.Events) != 1 || resp.Data.Events[0].Type != "PLAYER_MOVED" {
		t.Errorf("events = %+v", resp.Data.Events)
	}
	if resp.RequestID == "" {
		t.Error("missing request id")
	}
}

func TestTurnValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"missing text", `{"actor_id":"p1"}`},
		{"blank actor", `{"actor_id":"  ","text":"!look"}`},
		{"blank text", `{"actor_id":"p1","text":"   "}`},
		{"not json", `actor=p1`},
		{"too long", `{"actor_id":"p1","text":"` + strings.Repeat("a", MaxTextLen+1) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, newTestRouter(&fakeEngine{}), http.MethodPost, "/v1/turns", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", w.Code)
			}
			if resp := decode(t, w); resp.Success || resp.Error == nil || resp.Error.Code != errBadRequest {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestTick(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"no body", "", 4},
		{"within cap", `{"max_npcs":2}`, 2},
		{"over cap", `{"max_npcs":50}`, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeEngine{}
			w := do(t, newTestRouter(f), http.MethodPost, "/v1/ticks", tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
			}
			if f.tickN != tt.want {
				t.Errorf("tick size = %d, want %d", f.tickN, tt.want)
			}
		})
	}
}

func TestTickFailure(t *testing.T) {
	f := &fakeEngine{tickErr: errors.New("disk full")}
	w := do(t, newTestRouter(f), http.MethodPost, "/v1/ticks", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "disk full") {
		t.Error("internal error detail leaked")
	}
}

func TestRecap(t *testing.T) {
	h := newTestRouter(&fakeEngine{})

	w := do(t, h, http.MethodGet, "/v1/players/p1/recap?limit=3", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "recap of p1 (3)") {
		t.Errorf("recap = %d %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/v1/players/p1/recap?limit=0", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", w.Code)
	}
}

func TestStatusAndExport(t *testing.T) {
	h := newTestRouter(&fakeEngine{started: map[string]bool{"p1": true}})

	w := do(t, h, http.MethodGet, "/v1/players/p1/status", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Asterfall Commons") {
		t.Errorf("status = %d %s", w.Code, w.Body.String())
	}
	if w := do(t, h, http.MethodGet, "/v1/players/p2/status", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown status = %d", w.Code)
	}

	w = do(t, h, http.MethodGet, "/v1/players/p1/export", "")
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"game":"Asterfall"`)) {
		t.Errorf("export body = %s", w.Body.String())
	}
	if w := do(t, h, http.MethodGet, "/v1/players/p2/export", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown export = %d", w.Code)
	}
}
