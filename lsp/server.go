// Package lsp implements a language server for mustache JSON5 documents.
// Every change notification is applied to an editor.Document, so the
// server's trees are maintained by incremental re-parsing.
package lsp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/odvcencio/mjson5/editor"
	"github.com/odvcencio/mjson5/format"
	"github.com/odvcencio/mjson5/syntax"
)

const (
	serverName    = "mjson5-lsp"
	serverVersion = "0.1.0"
	// LanguageID is the language identifier clients use for documents.
	LanguageID = "mustache-json5"
)

// Server answers LSP requests. Requests are handled one at a time on the
// connection's goroutine.
type Server struct {
	docs     *editor.Workspace
	logger   *slog.Logger
	parser   *syntax.Parser
	format   *format.Config
	conn     jsonrpc2.Conn
	versions map[string]int32

	initialized bool
	shutdown    bool
	exitOnce    sync.Once
	exited      chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for requests and document edits.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFormatConfig fixes the formatter configuration. Without it the
// configuration is discovered next to each file, falling back to the
// client's formatting options.
func WithFormatConfig(cfg format.Config) Option {
	return func(s *Server) { s.format = &cfg }
}

// NewServer returns a server with no open documents.
func NewServer(opts ...Option) *Server {
	s := &Server{
		logger:   slog.New(slog.DiscardHandler),
		versions: make(map[string]int32),
		exited:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = syntax.NewParser(syntax.WithLogger(s.logger))
	s.docs = editor.NewWorkspace(editor.WithParser(s.parser), editor.WithLogger(s.logger))
	return s
}

// Documents returns the open documents.
func (s *Server) Documents() *editor.Workspace { return s.docs }

// Serve runs the server on rwc until the client sends exit, the stream
// closes or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(rwc))
	s.conn = conn
	conn.Go(ctx, s.handle)

	select {
	case <-ctx.Done():
		_ = conn.Close()
		<-conn.Done()
		return ctx.Err()
	case <-s.exited:
		_ = conn.Close()
		<-conn.Done()
		return nil
	case <-conn.Done():
		if err := conn.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
			return err
		}
		return nil
	}
}

type stream struct {
	io.Reader
	io.Writer
}

func (stream) Close() error { return nil }

// Stream joins r and w into the connection Serve expects. Closing it is a
// no-op, so it suits the process's standard input and output.
func Stream(r io.Reader, w io.Writer) io.ReadWriteCloser {
	return stream{Reader: r, Writer: w}
}

func decode(req jsonrpc2.Request, v any) error {
	if err := json.Unmarshal(req.Params(), v); err != nil {
		return jsonrpc2.Errorf(jsonrpc2.InvalidParams, "%s: %v", req.Method(), err)
	}
	return nil
}

func (s *Server) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	method := req.Method()
	s.logger.Debug("lsp request", slog.String("method", method))

	switch {
	case method == protocol.MethodExit:
		s.exitOnce.Do(func() { close(s.exited) })
		return reply(ctx, nil, nil)
	case method == protocol.MethodInitialize:
		var params protocol.InitializeParams
		if err := decode(req, &params); err != nil {
			return reply(ctx, nil, err)
		}
		s.initialized = true
		return reply(ctx, s.initialize(), nil)
	case !s.initialized:
		return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.ServerNotInitialized, "server not initialized"))
	case s.shutdown:
		return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.InvalidRequest, "server is shutting down"))
	}

	switch method {
	case protocol.MethodInitialized:
		return reply(ctx, nil, nil)
	case protocol.MethodShutdown:
		s.shutdown = true
		return reply(ctx, nil, nil)

	case protocol.MethodTextDocumentDidOpen:
		var params protocol.DidOpenTextDocumentParams
		if err := decode(req, &params); err != nil {
			return reply(ctx, nil, err)
		}
		s.didOpen(ctx, params)
		return reply(ctx, nil, nil)
	case protocol.MethodTextDocumentDidChange:
		var params didChangeParams
		if err := decode(req, &params); err != nil {
			return reply(ctx, nil, err)
		}
		return reply(ctx, nil, s.didChange(ctx, params))
	case protocol.MethodTextDocumentDidClose:
		var params protocol.DidCloseTextDocumentParams
		if err := decode(req, &params); err != nil {
			return reply(ctx, nil, err)
		}
		s.didClose(ctx, params)
		return reply(ctx, nil, nil)

	case protocol.MethodTextDocumentFormatting:
		var params protocol.DocumentFormattingParams
		if err := decode(req, &params); err != nil {
			return reply(ctx, nil, err)
		}
		doc, err := s.document(params.TextDocument.URI)
		if err != nil {
			return reply(ctx, nil, err)
		}
		return reply(ctx, s.formatting(doc, params.Options), nil)
	case protocol.MethodTextDocumentFoldingRange:
		var params protocol.FoldingRangeParams
		if err := decode(req, &params); err != nil {
			return reply(ctx, nil, err)
		}
		doc, err := s.document(params.TextDocument.URI)
		if err != nil {
			return reply(ctx, nil, err)
		}
		return reply(ctx, foldingRanges(doc.Tree()), nil)
	case protocol.MethodTextDocumentDocumentSymbol:
		var params protocol.DocumentSymbolParams
		if err := decode(req, &params); err != nil {
			return reply(ctx, nil, err)
		}
		doc, err := s.document(params.TextDocument.URI)
		if err != nil {
			return reply(ctx, nil, err)
		}
		return reply(ctx, documentSymbols(doc.Tree()), nil)
	case protocol.MethodTextDocumentHover:
		var params protocol.HoverParams
		if err := decode(req, &params); err != nil {
			return reply(ctx, nil, err)
		}
		doc, err := s.document(params.TextDocument.URI)
		if err != nil {
			return reply(ctx, nil, err)
		}
		return reply(ctx, hover(doc.Tree(), params.Position), nil)
	}

	if strings.HasPrefix(method, "$/") {
		// Optional notifications such as $/cancelRequest and $/setTrace.
		return reply(ctx, nil, nil)
	}
	return reply(ctx, nil, jsonrpc2.ErrMethodNotFound)
}

func (s *Server) initialize() *protocol.InitializeResult {
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindIncremental,
			},
			HoverProvider:              true,
			DocumentFormattingProvider: true,
			FoldingRangeProvider:       true,
			DocumentSymbolProvider:     true,
		},
		ServerInfo: &protocol.ServerInfo{Name: serverName, Version: serverVersion},
	}
}

func (s *Server) document(u protocol.DocumentURI) (*editor.Document, error) {
	doc, ok := s.docs.Get(string(u))
	if !ok {
		return nil, jsonrpc2.Errorf(jsonrpc2.InvalidParams, "document not open: %s", u)
	}
	return doc, nil
}

func (s *Server) didOpen(ctx context.Context, params protocol.DidOpenTextDocumentParams) {
	key := string(params.TextDocument.URI)
	doc := s.docs.Open(key, params.TextDocument.Text)
	s.versions[key] = params.TextDocument.Version
	s.publish(ctx, params.TextDocument.URI, doc)
}

// contentChange is a change event whose range is absent when the client
// sends the whole text.
type contentChange struct {
	Range *protocol.Range `json:"range,omitempty"`
	Text  string          `json:"text"`
}

type didChangeParams struct {
	TextDocument   protocol.VersionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []contentChange                          `json:"contentChanges"`
}

func (s *Server) didChange(ctx context.Context, params didChangeParams) error {
	doc, err := s.document(params.TextDocument.URI)
	if err != nil {
		return err
	}
	if len(params.ContentChanges) == 1 && params.ContentChanges[0].Range == nil {
		doc.SetText(params.ContentChanges[0].Text)
	} else {
		// Each change is expressed against the text left by the previous
		// one; positions are resolved on a running copy.
		text := doc.Text()
		edits := make([]editor.TextEdit, 0, len(params.ContentChanges))
		for _, c := range params.ContentChanges {
			e := editor.TextEdit{Start: 0, End: len(text), Text: c.Text}
			if c.Range != nil {
				src := []byte(text)
				e.Start = editor.OffsetUTF16(src, int(c.Range.Start.Line), int(c.Range.Start.Character))
				e.End = editor.OffsetUTF16(src, int(c.Range.End.Line), int(c.Range.End.Character))
				if e.End < e.Start {
					e.End = e.Start
				}
			}
			text = text[:e.Start] + e.Text + text[e.End:]
			edits = append(edits, e)
		}
		if _, err := doc.Edit(edits...); err != nil {
			return jsonrpc2.Errorf(jsonrpc2.InvalidParams, "apply change: %v", err)
		}
	}
	s.versions[doc.URI()] = params.TextDocument.Version
	report := doc.Tree().LastReparse()
	s.logger.Debug("document changed",
		slog.String("uri", doc.URI()),
		slog.Int("changes", len(params.ContentChanges)),
		slog.String("strategy", report.Strategy.String()),
	)
	s.publish(ctx, params.TextDocument.URI, doc)
	return nil
}

func (s *Server) didClose(ctx context.Context, params protocol.DidCloseTextDocumentParams) {
	key := string(params.TextDocument.URI)
	s.docs.Close(key)
	delete(s.versions, key)
	s.notify(ctx, protocol.MethodTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
}

func (s *Server) publish(ctx context.Context, u protocol.DocumentURI, doc *editor.Document) {
	s.notify(ctx, protocol.MethodTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         u,
		Version:     uint32(max(s.versions[string(u)], 0)),
		Diagnostics: diagnostics(doc.Tree()),
	})
}

func (s *Server) notify(ctx context.Context, method string, params any) {
	if s.conn == nil {
		return
	}
	if err := s.conn.Notify(ctx, method, params); err != nil {
		s.logger.Warn("lsp notify failed", slog.String("method", method), slog.Any("error", err))
	}
}

// formatConfig picks the fixed configuration, else a configuration file
// found next to the document, else the client's options.
func (s *Server) formatConfig(docURI string, opts protocol.FormattingOptions) format.Config {
	if s.format != nil {
		return *s.format
	}
	if strings.HasPrefix(docURI, uri.FileScheme+"://") {
		dir := filepath.Dir(uri.URI(docURI).Filename())
		cfg, path, err := format.DiscoverConfig(dir)
		if err != nil {
			s.logger.Warn("format config", slog.String("dir", dir), slog.Any("error", err))
		} else if path != "" {
			return cfg
		}
	}
	cfg := format.DefaultConfig()
	if opts.TabSize > 0 {
		cfg.IndentSize = int(opts.TabSize)
		cfg.TabWidth = int(opts.TabSize)
	}
	cfg.UseTabs = !opts.InsertSpaces
	return cfg
}

func (s *Server) formatting(doc *editor.Document, opts protocol.FormattingOptions) []protocol.TextEdit {
	tree := doc.Tree()
	out, err := format.FormatTree(tree, s.formatConfig(doc.URI(), opts))
	if err != nil {
		s.logger.Debug("format skipped", slog.String("uri", doc.URI()), slog.Any("error", err))
		return nil
	}
	src := tree.Source()
	if string(out) == string(src) {
		return []protocol.TextEdit{}
	}
	return []protocol.TextEdit{{
		Range:   protocol.Range{End: position(src, len(src))},
		NewText: string(out),
	}}
}
