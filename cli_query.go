package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/segmentio/encoding/json"

	"github.com/odvcencio/mjson5/format"
	"github.com/odvcencio/mjson5/log"
	"github.com/odvcencio/mjson5/lsp"
	"github.com/odvcencio/mjson5/syntax"
	"github.com/odvcencio/mjson5/web"
)

type queryCmd struct {
	Query  string   `arg:"" help:"Query source, or @FILE to read it from a file."`
	Files  []string `arg:"" help:"Documents or directories; - reads stdin." type:"path"`
	Format string   `default:"text" enum:"text,json" help:"Output format (${enum})." short:"f"`
}

type queryResult struct {
	File    string `json:"file"`
	Capture string `json:"capture"`
	Type    string `json:"type"`
	Start   uint32 `json:"start"`
	End     uint32 `json:"end"`
	Row     uint32 `json:"row"`
	Column  uint32 `json:"column"`
	Text    string `json:"text"`
}

func (c *queryCmd) source() (string, error) {
	if path, ok := strings.CutPrefix(c.Query, "@"); ok {
		data, err := os.ReadFile(path)
		return string(data), err
	}
	return c.Query, nil
}

func (c *queryCmd) Run(ctx context.Context, s *streams) error {
	src, err := c.source()
	if err != nil {
		return err
	}
	p := newParser()
	q, err := syntax.NewQuery(src, p.Language())
	if err != nil {
		return err
	}
	files, err := expandInputs(c.Files)
	if err != nil {
		return err
	}

	results := []queryResult{}
	for _, name := range files {
		text, err := readInput(s, name)
		if err != nil {
			return err
		}
		for _, capt := range q.Captures(p.Parse(text)) {
			n := capt.Node
			results = append(results, queryResult{
				File:    displayName(name),
				Capture: capt.Name,
				Type:    n.Type(),
				Start:   n.StartByte(),
				End:     n.EndByte(),
				Row:     n.StartPoint().Row,
				Column:  n.StartPoint().Column,
				Text:    n.Text(),
			})
		}
	}

	if c.Format == "json" {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(s.out, string(data))
		return err
	}
	for _, r := range results {
		fmt.Fprintf(s.out, "%s:%d:%d: @%s (%s) %q\n", r.File, r.Row+1, r.Column+1, r.Capture, r.Type, r.Text)
	}
	return nil
}

type grammarCmd struct{}

func (grammarCmd) Run(s *streams) error {
	return syntax.MustacheJSON5().Dump(s.out)
}

type lspCmd struct {
	Config string `help:"Formatter configuration file; by default it is discovered next to each document." short:"c" type:"path"`
}

func (c *lspCmd) Run(ctx context.Context, s *streams) error {
	logger := log.Default().Slog()
	opts := []lsp.Option{lsp.WithLogger(logger)}
	if c.Config != "" {
		cfg, err := format.LoadConfig(c.Config)
		if err != nil {
			return err
		}
		opts = append(opts, lsp.WithFormatConfig(cfg))
	}
	logger.InfoContext(ctx, "language server starting")
	return lsp.NewServer(opts...).Serve(ctx, lsp.Stream(s.in, s.out))
}

type serveCmd struct {
	Addr   string `default:"localhost:8080" help:"Address to listen on."`
	Config string `help:"Formatter configuration file." short:"c" type:"path"`
}

func (c *serveCmd) Run(ctx context.Context) error {
	opts := []web.Option{web.WithLogger(log.Default().Slog())}
	if c.Config != "" {
		cfg, err := format.LoadConfig(c.Config)
		if err != nil {
			return err
		}
		opts = append(opts, web.WithFormatConfig(cfg))
	}
	return web.NewServer(opts...).ListenAndServe(ctx, c.Addr)
}
