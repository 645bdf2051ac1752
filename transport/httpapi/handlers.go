package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nathoo/asterfall/engine/save"
	"github.com/nathoo/asterfall/types"
)

// MaxTextLen bounds a turn's message text.
const MaxTextLen = 2000

type handler struct {
	engine  Engine
	log     *slog.Logger
	tickMax int
}

type turnRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
	Name    string `json:"name"`
	Text    string `json:"text"     binding:"required"`
}

// TurnResponse is the data of a resolved turn.
type TurnResponse struct {
	OK      bool         `json:"ok"`
	Message string       `json:"message"`
	Mode    types.Mode   `json:"mode"`
	Events  []EventEntry `json:"events"`
}

// EventEntry is one event a turn emitted.
type EventEntry struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

type tickRequest struct {
	MaxNPCs int `json:"max_npcs"`
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) turn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, errBadRequest, "actor_id and text are required")
		return
	}
	req.ActorID = strings.TrimSpace(req.ActorID)
	if req.ActorID == "" || strings.TrimSpace(req.Text) == "" {
		fail(c, http.StatusBadRequest, errBadRequest, "actor_id and text are required")
		return
	}
	if len(req.Text) > MaxTextLen {
		fail(c, http.StatusBadRequest, errBadRequest, "text is too long")
		return
	}

	res := h.engine.HandleMessage(c.Request.Context(), req.ActorID, req.Name, req.Text)
	out := TurnResponse{OK: res.OK, Message: res.Message, Mode: res.Mode, Events: []EventEntry{}}
	for _, e := range res.Events {
		out.Events = append(out.Events, EventEntry{Type: e.Type, Data: e.Data})
	}
	ok(c, out)
}

func (h *handler) tick(c *gin.Context) {
	var req tickRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, errBadRequest, "invalid tick request")
			return
		}
	}
	n := req.MaxNPCs
	if n <= 0 || n > h.tickMax {
		n = h.tickMax
	}
	acted, err := h.engine.RunNPCTick(c.Request.Context(), h.engine.Now(), n)
	if err != nil {
		h.log.Error("tick_failed", "error", err, "request_id", c.GetString(ctxRequestID))
		fail(c, http.StatusInternalServerError, errInternal, "tick failed")
		return
	}
	ok(c, gin.H{"acted": acted})
}

func (h *handler) status(c *gin.Context) {
	st, err := h.engine.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.log.Error("status_failed", "error", err, "request_id", c.GetString(ctxRequestID))
		fail(c, http.StatusInternalServerError, errInternal, "status failed")
		return
	}
	if !st.Started {
		fail(c, http.StatusNotFound, errNotFound, "player has not started")
		return
	}
	ok(c, gin.H{
		"location_id":   st.Player.LocationID,
		"location_name": st.LocationName,
		"hp":            st.Player.HP,
		"xp":            st.Player.XP,
		"injury":        st.Player.Injury,
		"mode":          st.Mode,
	})
}

func (h *handler) recap(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 50 {
			fail(c, http.StatusBadRequest, errBadRequest, "limit must be between 1 and 50")
			return
		}
		limit = n
	}
	out, err := h.engine.Recap(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.log.Error("recap_failed", "error", err, "request_id", c.GetString(ctxRequestID))
		fail(c, http.StatusInternalServerError, errInternal, "recap failed")
		return
	}
	ok(c, gin.H{"recap": out})
}

func (h *handler) export(c *gin.Context) {
	data, err := h.engine.Export(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, save.ErrNoPlayer):
		fail(c, http.StatusNotFound, errNotFound, "player has not started")
		return
	case err != nil:
		h.log.Error("export_failed", "error", err, "request_id", c.GetString(ctxRequestID))
		fail(c, http.StatusInternalServerError, errInternal, "export failed")
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}
