package tui

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleStatusBarCombat = lipgloss.NewStyle().
				Background(lipgloss.Color("52")).
				Foreground(lipgloss.Color("252")).
				Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleNarration = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleSpeaker = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228")).
			Bold(true)

	styleDialogue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	stylePrompt = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleDanger = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208"))

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleTrace = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindNarration lineKind = iota
	kindPrompt
	kindDialogue
	kindDanger
	kindSystem
	kindError
	kindTrace
)

// classifyLine determines what kind of output line this is.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[trace]"):
		return kindTrace
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return kindSystem
	case strings.HasPrefix(line, "Try:"), strings.HasPrefix(line, "Commands:"):
		return kindPrompt
	case strings.HasPrefix(line, "Combat"),
		strings.HasPrefix(line, "You uncover danger"),
		strings.Contains(line, "presses in."),
		strings.Contains(line, "overwhelms you."):
		return kindDanger
	case strings.HasPrefix(line, "Use !start"),
		strings.HasPrefix(line, "The world stutters"),
		strings.HasPrefix(line, "I couldn't tell"):
		return kindError
	case speaker(line) != "":
		return kindDialogue
	default:
		return kindNarration
	}
}

// speaker returns the name in a "Name: line" NPC reply, or "" when the
// line is not one. Names are one to four capitalized words.
func speaker(line string) string {
	name, rest, ok := strings.Cut(line, ": ")
	if !ok || strings.TrimSpace(rest) == "" {
		return ""
	}
	words := strings.Fields(name)
	if len(words) == 0 || len(words) > 4 {
		return ""
	}
	for _, w := range words {
		r := []rune(w)
		if !unicode.IsUpper(r[0]) {
			return ""
		}
		for _, c := range r {
			if !unicode.IsLetter(c) && c != '\'' && c != '-' {
				return ""
			}
		}
	}
	return name
}

// styledDialogue renders "Name: line" with the name bold.
func styledDialogue(line string) string {
	name := speaker(line)
	if name == "" {
		return styleDialogue.Render(line)
	}
	return styleSpeaker.Render(name+":") + styleDialogue.Render(line[len(name)+1:])
}

// styledSystemMsg renders a system message in gray with brackets.
func styledSystemMsg(text string) string {
	return styleSystem.Render("[" + text + "]")
}
