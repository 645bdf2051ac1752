package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/asterfall/engine"
	"github.com/nathoo/asterfall/types"
)

// locationDisplayName derives a human-readable name from a location ID.
// "town_square" -> "Town Square", "ruin_upper" -> "Ruin Upper".
func locationDisplayName(id string) string {
	words := strings.Split(id, "_")
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// statusText returns the left and right halves of the status bar.
func statusText(actor string, st engine.Status) (string, string) {
	if !st.Started {
		return " Not started", fmt.Sprintf("%s ", actor)
	}
	name := st.LocationName
	if name == "" {
		name = locationDisplayName(st.Player.LocationID)
	}
	left := fmt.Sprintf(" %s | HP %d/%d | XP %d", name, st.Player.HP, engine.MaxHP, st.Player.XP)
	if st.Player.Injury > 0 {
		left += fmt.Sprintf(" | Injury %d", st.Player.Injury)
	}
	return left, fmt.Sprintf("%s | %s ", st.Mode, actor)
}

// renderStatusBar produces a full-width inverted status line showing the
// player's location, health, and session mode.
func (m Model) renderStatusBar() string {
	left, right := statusText(m.actor, m.status)

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	style := styleStatusBar
	if m.status.Mode == types.ModeCombat {
		style = styleStatusBarCombat
	}
	return style.Width(m.width).Render(bar)
}
