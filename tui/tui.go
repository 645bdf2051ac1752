package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/asterfall/engine"
	"github.com/nathoo/asterfall/types"
)

// DefaultActor is the player id used until /as switches it.
const DefaultActor = "local"

const defaultTickSize = 5

// rawLine is an unstyled output line, kept so the transcript can be
// re-wrapped when the terminal is resized.
type rawLine struct {
	text     string
	kind     lineKind
	isInput  bool
	isSystem bool
}

type keyMap struct {
	Quit     key.Binding
	Submit   key.Binding
	Prev     key.Binding
	Next     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Quit:     key.NewBinding(key.WithKeys("ctrl+c")),
		Submit:   key.NewBinding(key.WithKeys("enter")),
		Prev:     key.NewBinding(key.WithKeys("up")),
		Next:     key.NewBinding(key.WithKeys("down")),
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
	}
}

// Model is the Bubble Tea model for the Asterfall TUI.
type Model struct {
	ctx    context.Context
	engine *engine.Engine
	keys   keyMap

	viewport  viewport.Model
	input     textinput.Model
	histories *Histories
	rawLines  []rawLine

	actor    string
	status   engine.Status
	pending  bool
	width    int
	height   int
	ready    bool
	trace    bool
	quitting bool
	lastCmd  string
	saveDir  string
}

// introMsg carries the world banner shown on launch.
type introMsg struct {
	lines []string
}

// turnMsg carries a resolved turn back into the Update loop.
type turnMsg struct {
	actor     string
	lines     []string
	status    engine.Status
	statusErr error
}

// New creates a TUI model wired to the given engine.
func New(ctx context.Context, eng *engine.Engine) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 512
	ti.PromptStyle = styleInputPrompt

	home, _ := os.UserHomeDir()
	m := Model{
		ctx:       ctx,
		engine:    eng,
		keys:      defaultKeys(),
		input:     ti,
		histories: NewHistories(100),
		actor:     DefaultActor,
		saveDir:   filepath.Join(home, ".asterfall", "exports"),
	}
	m.refreshStatus()
	return m
}

// Run starts the Bubble Tea program and blocks until it exits or ctx is
// cancelled.
func Run(ctx context.Context, eng *engine.Engine) error {
	p := tea.NewProgram(New(ctx, eng), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	world := m.engine.World()
	intro := func() tea.Msg {
		lines := []string{world.Title, ""}
		if world.Intro != "" {
			lines = append(lines, world.Intro, "")
		}
		return introMsg{lines: append(lines, "[Type !start to begin, or /help for commands.]")}
	}
	return tea.Batch(textinput.Blink, intro)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Submit):
			return m.handleEnter()
		case key.Matches(msg, m.keys.Prev):
			if prev, ok := m.history().Prev(m.input.Value()); ok {
				m.input.SetValue(prev)
				m.input.CursorEnd()
			}
			return m, nil
		case key.Matches(msg, m.keys.Next):
			next, _ := m.history().Next()
			m.input.SetValue(next)
			m.input.CursorEnd()
			return m, nil
		case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case introMsg:
		m.appendLines(msg.lines, false)

	case turnMsg:
		m.pending = false
		if msg.actor == m.actor && msg.statusErr == nil {
			m.status = msg.status
		}
		m.appendLines(msg.lines, false)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	vpHeight := max(height-2, 1) // status bar and input line
	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.viewport.KeyMap = viewportKeyMap()
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.refreshViewport()
}

func (m Model) history() *History {
	return m.histories.For(m.actor)
}

// handleEnter submits the input line. Game commands resolve off the
// Update loop; input is ignored while a turn is pending.
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	if input == "" || m.pending {
		return m, nil
	}
	m.input.SetValue("")
	m.history().Push(input)

	if lower := strings.ToLower(input); lower == "again" || lower == "g" {
		if m.lastCmd == "" {
			m.echo(input)
			m.appendLines([]string{"Nothing to repeat."}, true)
			return m, nil
		}
		input = m.lastCmd
	} else {
		m.lastCmd = input
	}
	m.echo(input)

	if strings.HasPrefix(input, "/") {
		output, quit := m.handleMeta(input)
		m.refreshStatus()
		m.appendLines(output, true)
		if quit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	m.pending = true
	return m, m.playTurn(m.actor, input)
}

// playTurn resolves one message for actor and reads back its status.
func (m Model) playTurn(actor, input string) tea.Cmd {
	ctx, eng, trace := m.ctx, m.engine, m.trace
	return func() tea.Msg {
		res := eng.HandleMessage(ctx, actor, actor, input)
		lines := strings.Split(res.Message, "\n")
		if trace {
			lines = append(lines, formatTrace(res)...)
		}
		st, err := eng.Status(ctx, actor)
		return turnMsg{actor: actor, lines: lines, status: st, statusErr: err}
	}
}

func (m *Model) refreshStatus() {
	st, err := m.engine.Status(m.ctx, m.actor)
	if err != nil {
		return
	}
	m.status = st
}

func (m *Model) echo(input string) {
	m.rawLines = append(m.rawLines, rawLine{text: "> " + input, isInput: true})
	m.refreshViewport()
}

// appendLines adds one block of output followed by a blank separator.
func (m *Model) appendLines(lines []string, system bool) {
	for _, line := range lines {
		rl := rawLine{text: line, isSystem: system}
		if !system {
			rl.kind = classifyLine(line)
		}
		m.rawLines = append(m.rawLines, rl)
	}
	m.rawLines = append(m.rawLines, rawLine{})
	m.refreshViewport()
}

// refreshViewport re-wraps and re-styles the transcript at the current
// width.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	width := max(m.width, 10)

	styled := make([]string, 0, len(m.rawLines))
	for _, rl := range m.rawLines {
		if rl.text == "" {
			styled = append(styled, "")
			continue
		}
		wrapped := wordWrap(rl.text, width)
		switch {
		case rl.isInput:
			styled = append(styled, stylePlayerInput.Render(wrapped))
		case rl.isSystem:
			styled = append(styled, styledSystemMsg(wrapped))
		default:
			styled = append(styled, renderLineKind(wrapped, rl.kind))
		}
	}
	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindPrompt:
		return stylePrompt.Render(line)
	case kindDialogue:
		return styledDialogue(line)
	case kindDanger:
		return styleDanger.Render(line)
	case kindSystem:
		return styleSystem.Render(line)
	case kindError:
		return styleError.Render(line)
	case kindTrace:
		return styleTrace.Render(line)
	default:
		return styleNarration.Render(line)
	}
}

// wordWrap breaks text at spaces so no line is wider than width cells.
// A single word wider than width is left on its own line.
func wordWrap(text string, width int) string {
	if width <= 0 || lipgloss.Width(text) <= width {
		return text
	}
	var b strings.Builder
	lineLen := 0
	for i, word := range strings.Fields(text) {
		w := lipgloss.Width(word)
		switch {
		case i == 0:
		case lineLen+1+w > width:
			b.WriteByte('\n')
			lineLen = 0
		default:
			b.WriteByte(' ')
			lineLen++
		}
		b.WriteString(word)
		lineLen += w
	}
	return b.String()
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}
	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}

type metaCommand struct {
	names []string
	usage string
	help  string
	run   func(m *Model, arg string) ([]string, bool)
}

func metaCommands() []metaCommand {
	return []metaCommand{
		{[]string{"/as"}, "/as <id>", "Play as another player id", (*Model).cmdAs},
		{[]string{"/tick"}, "/tick [n]", "Let up to n NPCs act", (*Model).cmdTick},
		{[]string{"/export"}, "/export [name]", "Write the current player's record as JSON", (*Model).cmdExport},
		{[]string{"/trace"}, "/trace", "Toggle event trace output", (*Model).cmdTrace},
		{[]string{"/help"}, "/help", "Show this help", (*Model).cmdHelp},
		{[]string{"/quit", "/exit"}, "/quit", "Exit", func(*Model, string) ([]string, bool) {
			return []string{"Goodbye."}, true
		}},
	}
}

// handleMeta dispatches a slash command. It returns the output lines and
// whether the program should exit.
func (m *Model) handleMeta(input string) ([]string, bool) {
	parts := strings.Fields(input)
	name := strings.ToLower(parts[0])
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}
	for _, c := range metaCommands() {
		for _, n := range c.names {
			if n == name {
				return c.run(m, arg)
			}
		}
	}
	return []string{fmt.Sprintf("Unknown command: %s. Type /help for available commands.", parts[0])}, false
}

func (m *Model) cmdAs(id string) ([]string, bool) {
	if id == "" {
		return []string{fmt.Sprintf("Playing as %s.", m.actor)}, false
	}
	m.actor = id
	m.lastCmd = ""
	return []string{fmt.Sprintf("Now playing as %s.", id)}, false
}

func (m *Model) cmdTick(arg string) ([]string, bool) {
	n := defaultTickSize
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			return []string{fmt.Sprintf("Invalid tick size: %s", arg)}, false
		}
		n = v
	}
	acted, err := m.engine.RunNPCTick(m.ctx, m.engine.Now(), n)
	if err != nil {
		return []string{fmt.Sprintf("Tick failed: %v", err)}, false
	}
	return []string{fmt.Sprintf("%d NPCs acted.", acted)}, false
}

func (m *Model) cmdExport(name string) ([]string, bool) {
	if name == "" {
		name = m.actor
	}
	data, err := m.engine.Export(m.ctx, m.actor)
	if err == nil {
		err = os.MkdirAll(m.saveDir, 0o755)
	}
	if err == nil {
		err = os.WriteFile(filepath.Join(m.saveDir, name+".json"), data, 0o644)
	}
	if err != nil {
		return []string{fmt.Sprintf("Export failed: %v", err)}, false
	}
	return []string{fmt.Sprintf("Exported %s to %s.", m.actor, name)}, false
}

func (m *Model) cmdTrace(string) ([]string, bool) {
	m.trace = !m.trace
	if m.trace {
		return []string{"Trace output enabled."}, false
	}
	return []string{"Trace output disabled."}, false
}

func (m *Model) cmdHelp(string) ([]string, bool) {
	lines := []string{"System:"}
	for _, c := range metaCommands() {
		lines = append(lines, fmt.Sprintf("  %-16s%s", c.usage, c.help))
	}
	return append(lines,
		"",
		"Game commands:",
		"  !start, !look, !investigate, !stats, !recap, !help",
		"  !move <place>     Travel (town, ruin)",
		"  !talk <name>      Speak with someone nearby",
		"  !rest short|long  Recover HP",
		"  again (g)         Repeat your last command",
		"",
		"Navigation: PgUp/PgDn to scroll, Up/Down for command history",
	), false
}

func formatTrace(result types.Result) []string {
	lines := []string{fmt.Sprintf("[trace] ok=%t mode=%s", result.OK, result.Mode)}
	if len(result.Events) == 0 {
		return lines
	}
	lines = append(lines, fmt.Sprintf("[trace] Events: %d", len(result.Events)))
	for _, e := range result.Events {
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines = append(lines, fmt.Sprintf("[trace]   %s %s", e.Type, strings.Join(keys, ",")))
	}
	return lines
}

// viewportKeyMap leaves Up and Down to input history.
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
