// Asterfall plays a persistent shared world from the terminal.
// Usage: asterfall [--version] [--plain] [--script <file>] [--trace] [--as <player>] [world_directory]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nathoo/asterfall/app"
	"github.com/nathoo/asterfall/cli"
	"github.com/nathoo/asterfall/config"
	"github.com/nathoo/asterfall/tui"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	plain := false
	trace := false
	var worldDir, scriptFile, actor string

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("asterfall %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--plain":
			plain = true
		case "--trace":
			trace = true
		case "--script", "--as":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "%s requires a value\n", args[i])
				os.Exit(1)
			}
			if args[i] == "--script" {
				scriptFile = args[i+1]
			} else {
				actor = args[i+1]
			}
			i++
		default:
			if worldDir == "" {
				worldDir = args[i]
			}
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if worldDir != "" {
		cfg.WorldDir = worldDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting world: %v\n", err)
		os.Exit(1)
	}
	defer a.Close(context.Background())

	// Script mode: open file, force plain, echo commands.
	if scriptFile != "" {
		f, err := os.Open(scriptFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening script: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		runPlain(ctx, a, actor, trace, f)
		return
	}

	// Use plain CLI if --plain flag or stdout is not a terminal.
	if plain || !isTerminal() {
		runPlain(ctx, a, actor, trace, nil)
		return
	}

	if err := tui.Run(ctx, a.Engine); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runPlain(ctx context.Context, a *app.App, actor string, trace bool, script *os.File) {
	fmt.Printf("%s\n\n", a.World.Title)
	c := cli.New(a.Engine)
	c.Trace = trace
	c.TickSize = a.Config.TickMaxNPCs
	if script != nil {
		c.In = script
		c.EchoInput = true
	}
	if actor != "" {
		c.SetActor(actor)
	}
	c.Run(ctx)
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
