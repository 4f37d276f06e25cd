package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"github.com/odvcencio/mjson5/log"
	"github.com/odvcencio/mjson5/syntax"
)

const (
	appName        = "mjson5"
	appDescription = "Parse, check and format JSON5 documents with embedded Mustache templates."
)

// errIssues reports that a command found problems in its inputs and has
// already printed them.
var errIssues = errors.New("issues found")

// streams are the standard streams commands read from and write to.
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

// CLI is the top-level command-line interface.
type CLI struct {
	Log     logConfig     `embed:"" group:"log" prefix:"log-"`
	Profile profileConfig `embed:"" group:"profile"`

	Parse   parseCmd   `cmd:"" help:"Print the syntax tree of documents."`
	Check   checkCmd   `cmd:"" help:"Report syntax errors."`
	Fmt     fmtCmd     `cmd:"" help:"Format documents."`
	Query   queryCmd   `cmd:"" help:"Run a tree query against documents."`
	Grammar grammarCmd `cmd:"" help:"Print the compiled grammar table."`
	LSP     lspCmd     `cmd:"" name:"lsp" help:"Run the language server on stdio."`
	Serve   serveCmd   `cmd:"" help:"Run the web playground."`
}

// configPath returns the base path of the user configuration file, without
// extension, or "" when there is no configuration directory.
func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appName, "config")
}

// Run parses args and executes the selected command. exit is called by
// kong for --help and usage errors.
func Run(ctx context.Context, exit func(int), stdio *streams, args ...string) error {
	var cli CLI

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Logger flags are applied before parsing so that parse errors are
	// already logged the way the user asked for.
	cli.Log.scan(args)

	opts := []kong.Option{
		kong.Name(appName),
		kong.Description(appDescription),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.Writers(stdio.out, stdio.err),
		kong.ExplicitGroups([]kong.Group{cli.Log.group(), cli.Profile.group()}),
		kong.BindSingletonProvider(func() context.Context { return ctx }),
		kong.Bind(stdio),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			Summary:             true,
			NoExpandSubcommands: true,
		}),
		cli.Log.vars(),
		cli.Profile.vars(),
	}
	if base := configPath(); base != "" {
		opts = append(opts,
			kong.Configuration(kong.JSON, base+".json"),
			kong.Configuration(loadYAMLConfig, base+".yaml", base+".yml"),
		)
	}

	parser, err := kong.New(&cli, opts...)
	if err != nil {
		return err
	}
	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cli.Log.start(ctx, stdio.err)
	defer cli.Profile.start(ctx)()

	return ktx.Run()
}

// newParser returns a parser that logs through the default logger.
func newParser() *syntax.Parser {
	return syntax.NewParser(syntax.WithLogger(log.Default().Slog()))
}
