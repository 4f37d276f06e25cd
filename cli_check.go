package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/odvcencio/mjson5/log"
)

var (
	okStyle   = color.New(color.FgGreen, color.Bold)
	failStyle = color.New(color.FgRed, color.Bold)
	fileStyle = color.New(color.FgCyan, color.Bold)
	noteStyle = color.New(color.FgYellow)
)

// isTerminal reports whether v is a file attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// setColor enables or disables the output styles. auto colors terminals
// unless NO_COLOR is set.
func setColor(mode string, w io.Writer) {
	enable := false
	switch mode {
	case "always":
		enable = true
	case "auto":
		enable = isTerminal(w) && os.Getenv("NO_COLOR") == ""
	}
	for _, c := range []*color.Color{okStyle, failStyle, fileStyle, noteStyle} {
		if enable {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

type checkCmd struct {
	Files []string `arg:"" help:"Documents or directories; - reads stdin." type:"path"`
	Quiet bool     `help:"Only report documents with errors." short:"q"`
	Color string   `default:"auto" enum:"auto,always,never" help:"Colorize output (${enum})."`
}

func (c *checkCmd) Run(ctx context.Context, s *streams) error {
	setColor(c.Color, s.out)
	files, err := expandInputs(c.Files)
	if err != nil {
		return err
	}
	p := newParser()
	failed := 0
	for _, name := range files {
		src, err := readInput(s, name)
		if err != nil {
			return err
		}
		tree := p.Parse(src)
		if !tree.HasError() {
			if !c.Quiet {
				fmt.Fprintf(s.out, "%s %s\n", okStyle.Sprint("✓"), fileStyle.Sprint(displayName(name)))
			}
			continue
		}
		failed++
		diags := tree.Diagnostics()
		fmt.Fprintf(s.out, "%s %s %s\n", failStyle.Sprint("✗"), fileStyle.Sprint(displayName(name)),
			noteStyle.Sprintf("(%d %s)", len(diags), plural(len(diags), "error", "errors")))
		for _, d := range diags {
			for _, line := range strings.Split(strings.TrimRight(d.Format(src), "\n"), "\n") {
				fmt.Fprintf(s.out, "    %s\n", line)
			}
		}
	}
	log.DebugContext(ctx, "check finished", slog.Int("files", len(files)), slog.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d %s have errors", errIssues, failed, len(files), plural(len(files), "document", "documents"))
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
