// Package cli provides terminal I/O, output formatting, and meta-command
// dispatch for playing an Asterfall world from a shell.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nathoo/asterfall/engine"
	"github.com/nathoo/asterfall/types"
)

// DefaultActor is the player id used until /as switches it.
const DefaultActor = "local"

// CLI handles terminal interaction with one or more local players.
type CLI struct {
	Engine    *engine.Engine
	In        io.Reader
	Out       io.Writer
	SaveDir   string
	Trace     bool
	EchoInput bool // echo each input line after the prompt (for script playback)
	// TickSize is how many NPCs /tick advances when no count is given.
	TickSize int

	actor   string
	lastCmd string // for "again"/"g" repeat
}

// New creates a CLI wired to the given engine.
func New(eng *engine.Engine) *CLI {
	home, _ := os.UserHomeDir()
	return &CLI{
		Engine:   eng,
		In:       os.Stdin,
		Out:      os.Stdout,
		SaveDir:  filepath.Join(home, ".asterfall", "exports"),
		TickSize: 5,
		actor:    DefaultActor,
	}
}

// Actor is the player id messages are sent as.
func (c *CLI) Actor() string {
	if c.actor == "" {
		return DefaultActor
	}
	return c.actor
}

// Run starts the game loop. It shows the intro, then loops:
// prompt → input → dispatch → output, until /quit or end of input.
func (c *CLI) Run(ctx context.Context) {
	if intro := c.Engine.World().Intro; intro != "" {
		c.printLine(intro)
		c.printLine("")
	}
	c.printSystem("Type !start to begin, or /help for commands.")

	scanner := bufio.NewScanner(c.In)
	for {
		c.print(c.Actor() + "> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		// Meta-commands start with '/'.
		if strings.HasPrefix(input, "/") {
			if c.handleMeta(ctx, input) {
				return // /quit
			}
			continue
		}

		// "again" / "g" repeats the last game command.
		lower := strings.ToLower(input)
		if lower == "again" || lower == "g" {
			if c.lastCmd == "" {
				c.printLine("Nothing to repeat.")
				continue
			}
			input = c.lastCmd
		} else {
			c.lastCmd = input
		}

		result := c.Engine.HandleMessage(ctx, c.Actor(), c.Actor(), input)
		c.printResult(result)

		if c.Trace {
			c.printTrace(result)
		}
	}
}

// handleMeta dispatches meta-commands. Returns true if the game should exit.
func (c *CLI) handleMeta(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		c.printSystem("Goodbye.")
		return true

	case "/as":
		c.cmdAs(arg)

	case "/tick":
		c.cmdTick(ctx, arg)

	case "/export":
		c.cmdExport(ctx, arg)

	case "/recap":
		c.cmdRecap(ctx)

	case "/help":
		c.cmdHelp()

	case "/trace":
		c.Trace = !c.Trace
		if c.Trace {
			c.printSystem("Trace output enabled.")
		} else {
			c.printSystem("Trace output disabled.")
		}

	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}

	return false
}

// SetActor switches the player id messages are sent as.
func (c *CLI) SetActor(id string) {
	c.actor = id
	c.lastCmd = ""
}

func (c *CLI) cmdAs(id string) {
	if id == "" {
		c.printSystem(fmt.Sprintf("Playing as %s.", c.Actor()))
		return
	}
	c.SetActor(id)
	c.printSystem(fmt.Sprintf("Now playing as %s.", id))
}

func (c *CLI) cmdTick(ctx context.Context, arg string) {
	n := c.TickSize
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			c.printSystem(fmt.Sprintf("Invalid tick size: %s", arg))
			return
		}
		n = v
	}
	acted, err := c.Engine.RunNPCTick(ctx, c.Engine.Now(), n)
	if err != nil {
		c.printSystem(fmt.Sprintf("Tick failed: %v", err))
		return
	}
	c.printSystem(fmt.Sprintf("%d NPCs acted.", acted))
}

func (c *CLI) cmdExport(ctx context.Context, name string) {
	if name == "" {
		name = c.Actor()
	}

	data, err := c.Engine.Export(ctx, c.Actor())
	if err != nil {
		c.printSystem(fmt.Sprintf("Export failed: %v", err))
		return
	}

	if err := os.MkdirAll(c.SaveDir, 0o755); err != nil {
		c.printSystem(fmt.Sprintf("Export failed: %v", err))
		return
	}

	path := filepath.Join(c.SaveDir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.printSystem(fmt.Sprintf("Export failed: %v", err))
		return
	}

	c.printSystem(fmt.Sprintf("Exported %s to %s.", c.Actor(), path))
}

func (c *CLI) cmdRecap(ctx context.Context) {
	out, err := c.Engine.Recap(ctx, c.Actor(), 0)
	if err != nil {
		c.printSystem(fmt.Sprintf("Recap failed: %v", err))
		return
	}
	c.printLine(out)
}

func (c *CLI) cmdHelp() {
	help := []string{
		"System:",
		"  /as <id>        Play as another player id",
		"  /tick [n]       Let up to n NPCs act",
		"  /export [name]  Write the current player's record as JSON",
		"  /recap          Show recent events",
		"  /trace          Toggle event trace output",
		"  /quit           Exit",
		"  /help           Show this help",
		"",
		"Game commands:",
		"  !start                Begin your journey",
		"  !look (look)          Describe where you are",
		"  !move <place>         Travel (town, ruin)",
		"  !talk <name>          Speak with someone nearby",
		"  !investigate          Search the area",
		"  !rest short|long      Recover HP",
		"  !stats, !recap, !help",
		"  again (g)             Repeat your last command",
		"",
		"Anything else is read as free text.",
	}
	for _, line := range help {
		c.printLine(line)
	}
}

func (c *CLI) printTrace(result types.Result) {
	c.printSystem(fmt.Sprintf("[trace] ok=%t mode=%s", result.OK, result.Mode))
	if len(result.Events) > 0 {
		c.printSystem(fmt.Sprintf("[trace] Events: %d", len(result.Events)))
		for _, e := range result.Events {
			c.printSystem(fmt.Sprintf("[trace]   %s %s", e.Type, formatData(e.Data)))
		}
	}
}

func formatData(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return strings.Join(parts, " ")
}

func (c *CLI) printResult(result types.Result) {
	c.printLine(result.Message)
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
