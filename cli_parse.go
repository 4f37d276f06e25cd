package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goccy/go-yaml"
	"github.com/segmentio/encoding/json"

	"github.com/odvcencio/mjson5/log"
	"github.com/odvcencio/mjson5/syntax"
)

type parseCmd struct {
	Files  []string `arg:"" help:"Documents or directories; - reads stdin." type:"path"`
	Format string   `default:"sexpr" enum:"sexpr,fields,json,yaml,tokens" help:"Output format (${enum})." short:"f"`
	Text   bool     `help:"Include leaf text in json and yaml output."`
	Named  bool     `help:"Only include named nodes in json and yaml output."`
}

func (c *parseCmd) Run(ctx context.Context, s *streams) error {
	files, err := expandInputs(c.Files)
	if err != nil {
		return err
	}
	p := newParser()
	for i, name := range files {
		src, err := readInput(s, name)
		if err != nil {
			return err
		}
		if len(files) > 1 {
			if i > 0 {
				fmt.Fprintln(s.out)
			}
			fmt.Fprintf(s.out, "==> %s <==\n", displayName(name))
		}
		if c.Format == "tokens" {
			writeTokens(s, p.Language(), src)
			continue
		}
		tree := p.Parse(src)
		log.DebugContext(ctx, "parsed",
			slog.String("file", displayName(name)),
			slog.Int("bytes", len(src)),
			slog.Bool("errors", tree.HasError()),
		)
		if err := c.write(s, tree); err != nil {
			return err
		}
	}
	return nil
}

func (c *parseCmd) write(s *streams, tree *syntax.Tree) error {
	switch c.Format {
	case "fields":
		_, err := fmt.Fprintln(s.out, tree.RootNode().FieldString())
		return err
	case "json":
		data, err := json.MarshalIndent(c.export(tree), "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(s.out, string(data))
		return err
	case "yaml":
		data, err := yaml.Marshal(c.export(tree))
		if err != nil {
			return err
		}
		_, err = s.out.Write(data)
		return err
	default:
		_, err := fmt.Fprintln(s.out, tree.String())
		return err
	}
}

func (c *parseCmd) export(tree *syntax.Tree) syntax.ExportNode {
	return syntax.Export(tree.RootNode(), syntax.ExportOptions{NamedOnly: c.Named, Text: c.Text})
}

// writeTokens prints one token per line with 1-based positions.
func writeTokens(s *streams, lang *syntax.Language, src []byte) {
	for _, tok := range syntax.Tokenize(src) {
		fmt.Fprintf(s.out, "%d:%d-%d:%d\t%s\t%q\n",
			tok.StartPoint.Row+1, tok.StartPoint.Column+1,
			tok.EndPoint.Row+1, tok.EndPoint.Column+1,
			lang.SymbolName(tok.Symbol),
			src[tok.StartByte:tok.EndByte],
		)
	}
}
