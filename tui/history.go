// Package tui provides a Bubble Tea terminal UI for playing an Asterfall world.
package tui

// History holds the submitted lines of one actor, newest last. Navigating
// away from the input line keeps what was typed so far as a draft.
type History struct {
	entries []string
	max     int
	cursor  int // -1 when not navigating
	draft   string
}

// NewHistory creates a history holding at most max lines.
func NewHistory(max int) *History {
	if max < 1 {
		max = 1
	}
	return &History{max: max, cursor: -1}
}

// Push records a submitted line. Blank lines and repeats of the newest
// entry are ignored. Navigation state is reset.
func (h *History) Push(line string) {
	h.ResetCursor()
	if line == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == line {
		return
	}
	h.entries = append(h.entries, line)
	if over := len(h.entries) - h.max; over > 0 {
		h.entries = append(h.entries[:0:0], h.entries[over:]...)
	}
}

// Len reports the number of stored lines.
func (h *History) Len() int { return len(h.entries) }

// Prev steps to an older line. current is the input being edited; it is
// kept as the draft when navigation begins.
func (h *History) Prev(current string) (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	switch {
	case h.cursor == -1:
		h.draft = current
		h.cursor = len(h.entries) - 1
	case h.cursor > 0:
		h.cursor--
	}
	return h.entries[h.cursor], true
}

// Next steps to a newer line. Past the newest line it returns the draft
// and false.
func (h *History) Next() (string, bool) {
	if h.cursor == -1 {
		return h.draft, false
	}
	h.cursor++
	if h.cursor >= len(h.entries) {
		draft := h.draft
		h.ResetCursor()
		return draft, false
	}
	return h.entries[h.cursor], true
}

// ResetCursor leaves navigation and forgets the draft.
func (h *History) ResetCursor() {
	h.cursor = -1
	h.draft = ""
}

// Histories keeps a separate History per actor.
type Histories struct {
	max    int
	actors map[string]*History
}

// NewHistories returns an empty set whose histories hold max lines each.
func NewHistories(max int) *Histories {
	return &Histories{max: max, actors: make(map[string]*History)}
}

// For returns the history of actor, creating it on first use.
func (hs *Histories) For(actor string) *History {
	h, ok := hs.actors[actor]
	if !ok {
		h = NewHistory(hs.max)
		hs.actors[actor] = h
	}
	return h
}
