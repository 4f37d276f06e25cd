package lsp

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/odvcencio/mjson5/format"
	"github.com/odvcencio/mjson5/syntax"
)

const testURI = protocol.DocumentURI("file:///tmp/mjson5-lsp-test/doc.mjson5")

type harness struct {
	t      *testing.T
	server *Server
	conn   jsonrpc2.Conn
	diags  chan protocol.PublishDiagnosticsParams
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	h := &harness{
		t:      t,
		server: NewServer(opts...),
		diags:  make(chan protocol.PublishDiagnosticsParams, 32),
	}
	done := make(chan error, 1)
	go func() { done <- h.server.Serve(ctx, serverSide) }()

	h.conn = jsonrpc2.NewConn(jsonrpc2.NewStream(clientSide))
	h.conn.Go(ctx, func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		if req.Method() == protocol.MethodTextDocumentPublishDiagnostics {
			var p protocol.PublishDiagnosticsParams
			if err := json.Unmarshal(req.Params(), &p); err == nil {
				h.diags <- p
			}
		}
		return reply(ctx, nil, nil)
	})

	t.Cleanup(func() {
		cancel()
		<-done
		_ = h.conn.Close()
	})
	return h
}

func (h *harness) call(method string, params, result any) error {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := h.conn.Call(ctx, method, params, result)
	return err
}

func (h *harness) initialize() *protocol.InitializeResult {
	h.t.Helper()
	var res protocol.InitializeResult
	require.NoError(h.t, h.call(protocol.MethodInitialize, &protocol.InitializeParams{}, &res))
	require.NoError(h.t, h.conn.Notify(context.Background(), protocol.MethodInitialized, &protocol.InitializedParams{}))
	return &res
}

func (h *harness) notify(method string, params any) {
	h.t.Helper()
	require.NoError(h.t, h.conn.Notify(context.Background(), method, params))
}

func (h *harness) nextDiagnostics() protocol.PublishDiagnosticsParams {
	h.t.Helper()
	select {
	case p := <-h.diags:
		return p
	case <-time.After(5 * time.Second):
		h.t.Fatal("timed out waiting for diagnostics")
		return protocol.PublishDiagnosticsParams{}
	}
}

func (h *harness) open(text string) protocol.PublishDiagnosticsParams {
	h.t.Helper()
	h.notify(protocol.MethodTextDocumentDidOpen, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: testURI, LanguageID: LanguageID, Version: 1, Text: text},
	})
	return h.nextDiagnostics()
}

func (h *harness) change(version int32, changes ...protocol.TextDocumentContentChangeEvent) protocol.PublishDiagnosticsParams {
	h.t.Helper()
	h.notify(protocol.MethodTextDocumentDidChange, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: testURI},
			Version:                version,
		},
		ContentChanges: changes,
	})
	return h.nextDiagnostics()
}

func (h *harness) text() string {
	h.t.Helper()
	doc, ok := h.server.Documents().Get(string(testURI))
	require.True(h.t, ok)
	return doc.Text()
}

func span(l1, c1, l2, c2 uint32) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: l1, Character: c1},
		End:   protocol.Position{Line: l2, Character: c2},
	}
}

func TestInitialize(t *testing.T) {
	h := newHarness(t)

	var hov *protocol.Hover
	err := h.call(protocol.MethodTextDocumentHover, &protocol.HoverParams{}, &hov)
	var rpcErr *jsonrpc2.Error
	require.True(t, errors.As(err, &rpcErr), "got %v", err)
	assert.Equal(t, jsonrpc2.ServerNotInitialized, rpcErr.Code)

	res := h.initialize()
	require.NotNil(t, res.ServerInfo)
	assert.Equal(t, serverName, res.ServerInfo.Name)
	assert.Equal(t, true, res.Capabilities.HoverProvider)
	assert.Equal(t, true, res.Capabilities.DocumentFormattingProvider)
	assert.NotNil(t, res.Capabilities.TextDocumentSync)
}

func TestUnknownMethod(t *testing.T) {
	h := newHarness(t)
	h.initialize()

	err := h.call("textDocument/definition", &protocol.DefinitionParams{}, nil)
	var rpcErr *jsonrpc2.Error
	require.True(t, errors.As(err, &rpcErr), "got %v", err)
	assert.Equal(t, jsonrpc2.MethodNotFound, rpcErr.Code)
}

func TestShutdown(t *testing.T) {
	h := newHarness(t)
	h.initialize()
	require.NoError(t, h.call(protocol.MethodShutdown, nil, nil))

	err := h.call(protocol.MethodTextDocumentHover, &protocol.HoverParams{}, nil)
	var rpcErr *jsonrpc2.Error
	require.True(t, errors.As(err, &rpcErr), "got %v", err)
	assert.Equal(t, jsonrpc2.InvalidRequest, rpcErr.Code)
}

func TestDiagnosticsFollowEdits(t *testing.T) {
	h := newHarness(t)
	h.initialize()

	p := h.open(`{"a": {{name}}, "b": [1, 2}`)
	assert.Equal(t, testURI, p.URI)
	assert.EqualValues(t, 1, p.Version)
	require.NotEmpty(t, p.Diagnostics)
	assert.Equal(t, diagnosticSource, p.Diagnostics[0].Source)
	assert.Equal(t, protocol.DiagnosticSeverityError, p.Diagnostics[0].Severity)

	// Close the array.
	p = h.change(2, protocol.TextDocumentContentChangeEvent{Range: span(0, 26, 0, 26), Text: "]"})
	assert.EqualValues(t, 2, p.Version)
	assert.Empty(t, p.Diagnostics)
	assert.NotNil(t, p.Diagnostics)
	assert.Equal(t, `{"a": {{name}}, "b": [1, 2]}`, h.text())

	doc, _ := h.server.Documents().Get(string(testURI))
	assert.True(t, doc.Tree().RootNode().Equal(syntax.Parse([]byte(h.text())).RootNode()))
}

func TestChangeUTF16Columns(t *testing.T) {
	h := newHarness(t)
	h.initialize()
	h.open(`{"é𝄞": 1}`)

	// The surrogate pair spans columns 3 and 4, so the value is at 8.
	h.change(2, protocol.TextDocumentContentChangeEvent{Range: span(0, 8, 0, 9), Text: "2"})
	assert.Equal(t, `{"é𝄞": 2}`, h.text())
}

func TestChangeSequence(t *testing.T) {
	h := newHarness(t)
	h.initialize()
	h.open(`[1, 2]`)

	h.change(2,
		protocol.TextDocumentContentChangeEvent{Range: span(0, 1, 0, 2), Text: "10"},
		protocol.TextDocumentContentChangeEvent{Range: span(0, 5, 0, 6), Text: "20"},
	)
	assert.Equal(t, `[10, 20]`, h.text())
}

func TestChangeFullText(t *testing.T) {
	h := newHarness(t)
	h.initialize()
	h.open(`[1, 2]`)

	// A change without a range replaces the whole document.
	h.notify(protocol.MethodTextDocumentDidChange, map[string]any{
		"textDocument":   map[string]any{"uri": testURI, "version": 2},
		"contentChanges": []map[string]any{{"text": `{"x": {{y}} }`}},
	})
	p := h.nextDiagnostics()
	assert.Empty(t, p.Diagnostics)
	assert.Equal(t, `{"x": {{y}} }`, h.text())
}

func TestDidClose(t *testing.T) {
	h := newHarness(t)
	h.initialize()
	h.open(`[1,`)

	h.notify(protocol.MethodTextDocumentDidClose, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
	})
	p := h.nextDiagnostics()
	assert.Empty(t, p.Diagnostics)
	assert.Equal(t, 0, h.server.Documents().Len())

	err := h.call(protocol.MethodTextDocumentDocumentSymbol, &protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
	}, nil)
	var rpcErr *jsonrpc2.Error
	require.True(t, errors.As(err, &rpcErr), "got %v", err)
	assert.Equal(t, jsonrpc2.InvalidParams, rpcErr.Code)
}

func formattingParams() *protocol.DocumentFormattingParams {
	return &protocol.DocumentFormattingParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
		Options:      protocol.FormattingOptions{InsertSpaces: true, TabSize: 4},
	}
}

func TestFormatting(t *testing.T) {
	h := newHarness(t, WithFormatConfig(format.DefaultConfig()))
	h.initialize()
	h.open(`{"a":1,"b":[1,2]}`)

	var edits []protocol.TextEdit
	require.NoError(t, h.call(protocol.MethodTextDocumentFormatting, formattingParams(), &edits))
	require.Len(t, edits, 1)
	assert.Equal(t, span(0, 0, 0, 17), edits[0].Range)
	assert.Equal(t, "{\n  \"a\": 1,\n  \"b\": [1, 2]\n}\n", edits[0].NewText)

	h.change(2, protocol.TextDocumentContentChangeEvent{Range: span(0, 0, 0, 17), Text: edits[0].NewText})
	edits = nil
	require.NoError(t, h.call(protocol.MethodTextDocumentFormatting, formattingParams(), &edits))
	assert.Empty(t, edits)
}

func TestFormattingClientOptions(t *testing.T) {
	h := newHarness(t)
	h.initialize()
	h.open(`{"a":1,"b":2}`)

	var edits []protocol.TextEdit
	require.NoError(t, h.call(protocol.MethodTextDocumentFormatting, formattingParams(), &edits))
	require.Len(t, edits, 1)
	assert.Equal(t, "{\n    \"a\": 1,\n    \"b\": 2\n}\n", edits[0].NewText)
}

func TestFormattingSkipsBrokenDocuments(t *testing.T) {
	h := newHarness(t)
	h.initialize()
	h.open(`{"a": [1,}`)

	var edits []protocol.TextEdit
	require.NoError(t, h.call(protocol.MethodTextDocumentFormatting, formattingParams(), &edits))
	assert.Empty(t, edits)
}

func TestFoldingRange(t *testing.T) {
	h := newHarness(t)
	h.initialize()
	h.open("{\n  \"a\": [\n    1\n  ],\n  // one\n  // two\n  \"b\": 2\n}")

	var ranges []protocol.FoldingRange
	require.NoError(t, h.call(protocol.MethodTextDocumentFoldingRange, &protocol.FoldingRangeParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
		},
	}, &ranges))
	require.Len(t, ranges, 2)
	assert.Equal(t, protocol.FoldingRange{StartLine: 0, EndLine: 6}, ranges[0])
	assert.Equal(t, protocol.FoldingRange{StartLine: 1, EndLine: 2}, ranges[1])
}

func TestDocumentSymbols(t *testing.T) {
	h := newHarness(t)
	h.initialize()
	h.open(`{"a": 1, "list": [{"x": true}], {{#show}}"b": null{{/show}} }`)

	var syms []protocol.DocumentSymbol
	require.NoError(t, h.call(protocol.MethodTextDocumentDocumentSymbol, &protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
	}, &syms))
	require.Len(t, syms, 3)

	assert.Equal(t, "a", syms[0].Name)
	assert.Equal(t, protocol.SymbolKindNumber, syms[0].Kind)
	assert.Equal(t, span(0, 1, 0, 4), syms[0].SelectionRange)

	assert.Equal(t, "list", syms[1].Name)
	assert.Equal(t, protocol.SymbolKindArray, syms[1].Kind)
	require.Len(t, syms[1].Children, 1)
	item := syms[1].Children[0]
	assert.Equal(t, "[0]", item.Name)
	assert.Equal(t, protocol.SymbolKindObject, item.Kind)
	require.Len(t, item.Children, 1)
	assert.Equal(t, "x", item.Children[0].Name)
	assert.Equal(t, protocol.SymbolKindBoolean, item.Children[0].Kind)

	assert.Equal(t, "#show", syms[2].Name)
	assert.Equal(t, protocol.SymbolKindNamespace, syms[2].Kind)
	require.Len(t, syms[2].Children, 1)
	assert.Equal(t, "b", syms[2].Children[0].Name)
	assert.Equal(t, protocol.SymbolKindNull, syms[2].Children[0].Kind)
}

func TestHover(t *testing.T) {
	h := newHarness(t)
	h.initialize()
	h.open(`{"a": {{name}} }`)

	var hov *protocol.Hover
	require.NoError(t, h.call(protocol.MethodTextDocumentHover, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
			Position:     protocol.Position{Line: 0, Character: 9},
		},
	}, &hov))
	require.NotNil(t, hov)
	assert.Equal(t, protocol.Markdown, hov.Contents.Kind)
	assert.Contains(t, hov.Contents.Value, "**mustache_variable** `name`")
	assert.Contains(t, hov.Contents.Value, "document > object > pair a > mustache_variable")
	require.NotNil(t, hov.Range)
	assert.Equal(t, span(0, 6, 0, 14), *hov.Range)
}

func TestExitStopsServe(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	s := NewServer()
	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), serverSide) }()

	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(clientSide))
	conn.Go(context.Background(), jsonrpc2.MethodNotFoundHandler)
	defer conn.Close()
	require.NoError(t, conn.Notify(context.Background(), protocol.MethodExit, nil))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after exit")
	}
}
