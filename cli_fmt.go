package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/mjson5/format"
	"github.com/odvcencio/mjson5/log"
)

type fmtCmd struct {
	Files      []string `arg:"" help:"Documents or directories to format." optional:"" type:"path"`
	Write      bool     `help:"Write the result back to the source files." short:"w"`
	Check      bool     `help:"Report documents that are not formatted and exit with status 1."`
	Diff       bool     `help:"Print a unified diff instead of the formatted text." short:"d"`
	Stdin      bool     `help:"Read a document from stdin and write the result to stdout."`
	Config     string   `help:"Formatter configuration file." short:"c" type:"path"`
	IndentSize int      `help:"Override the configured indent size."`
	TabWidth   int      `help:"Override the configured tab width."`
	UseTabs    bool     `help:"Indent with tabs."`
	Color      string   `default:"auto" enum:"auto,always,never" help:"Colorize diagnostics (${enum})."`
}

// config loads the explicit configuration file, or the one discovered from
// dir, and applies the flag overrides.
func (c *fmtCmd) config(dir string) (format.Config, error) {
	var (
		cfg  format.Config
		path string
		err  error
	)
	if c.Config != "" {
		cfg, err = format.LoadConfig(c.Config)
		path = c.Config
	} else {
		cfg, path, err = format.DiscoverConfig(dir)
	}
	if err != nil {
		return cfg, err
	}
	if path != "" {
		log.Debug("format config", slog.String("path", path))
	}
	if c.IndentSize != 0 {
		cfg.IndentSize = c.IndentSize
	}
	if c.TabWidth != 0 {
		cfg.TabWidth = c.TabWidth
	}
	if c.UseTabs {
		cfg.UseTabs = true
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *fmtCmd) Run(ctx context.Context, s *streams) error {
	setColor(c.Color, s.err)
	if c.Write && (c.Check || c.Diff) {
		return fmt.Errorf("--write cannot be combined with --check or --diff")
	}
	stdin := c.Stdin || (len(c.Files) == 0 && !isTerminal(s.in))
	if stdin {
		if len(c.Files) > 0 {
			return fmt.Errorf("--stdin cannot be combined with file arguments")
		}
		if c.Write {
			return fmt.Errorf("--write cannot be used with stdin")
		}
		return c.formatStdin(s)
	}
	if len(c.Files) == 0 {
		return fmt.Errorf("no files given; pass files or pipe a document to stdin")
	}

	files, err := expandInputs(c.Files)
	if err != nil {
		return err
	}
	failed := 0
	for _, name := range files {
		if name == stdinName {
			return fmt.Errorf("use --stdin to format standard input")
		}
		if !hasDocumentExt(name) {
			return fmt.Errorf("%s: unsupported extension, want one of %s", name, strings.Join(extensions, ", "))
		}
		ok, err := c.formatFile(s, name)
		if err != nil {
			fmt.Fprintf(s.err, "%s %s: %v\n", failStyle.Sprint("✗"), name, err)
			failed++
			continue
		}
		if !ok {
			failed++
		}
	}
	log.DebugContext(ctx, "fmt finished", slog.Int("files", len(files)), slog.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d %s", errIssues, failed, len(files), plural(len(files), "document", "documents"))
	}
	return nil
}

func (c *fmtCmd) formatStdin(s *streams) error {
	src, err := readInput(s, stdinName)
	if err != nil {
		return err
	}
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := c.config(dir)
	if err != nil {
		return err
	}
	out, err := format.Format(src, cfg)
	if err != nil {
		return err
	}
	changed := !bytes.Equal(src, out)
	switch {
	case c.Diff:
		if changed {
			fmt.Fprint(s.out, unifiedDiff(displayName(stdinName), src, out))
		}
	case c.Check:
	default:
		_, err = s.out.Write(out)
		return err
	}
	if c.Check && changed {
		fmt.Fprintf(s.err, "%s is not formatted\n", displayName(stdinName))
		return errIssues
	}
	return nil
}

// formatFile formats one file according to the mode flags. It reports
// false when --check finds the file unformatted.
func (c *fmtCmd) formatFile(s *streams, name string) (bool, error) {
	cfg, err := c.config(filepath.Dir(name))
	if err != nil {
		return false, err
	}
	src, err := os.ReadFile(name)
	if err != nil {
		return false, err
	}
	out, err := format.Format(src, cfg)
	if err != nil {
		return false, err
	}
	changed := !bytes.Equal(src, out)

	switch {
	case c.Check || c.Diff:
		if changed && c.Diff {
			fmt.Fprint(s.out, unifiedDiff(name, src, out))
		}
		if changed && c.Check {
			fmt.Fprintf(s.err, "would reformat %s\n", name)
			return false, nil
		}
	case c.Write:
		if !changed {
			return true, nil
		}
		info, err := os.Stat(name)
		if err != nil {
			return false, err
		}
		if err := os.WriteFile(name, out, info.Mode().Perm()); err != nil {
			return false, err
		}
		log.Info("formatted", slog.String("file", name))
	default:
		if _, err := s.out.Write(out); err != nil {
			return false, err
		}
	}
	return true, nil
}
