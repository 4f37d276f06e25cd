// Package web serves a browser playground for mustache JSON5 documents. The
// page talks JSON-RPC over a WebSocket; every edit goes through an
// editor.Document so the returned trees come from incremental re-parses.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"

	"github.com/odvcencio/mjson5/editor"
	"github.com/odvcencio/mjson5/format"
	"github.com/odvcencio/mjson5/syntax"
)

//go:embed static/*
var staticFS embed.FS

// JSON-RPC error codes.
const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeFailed         = -32000
	codeNotOpen        = -32001
)

// Server provides the playground's HTTP and WebSocket endpoints.
type Server struct {
	docs     *editor.Workspace
	parser   *syntax.Parser
	format   format.Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  []*wsClient
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

type rpcRequest struct {
	ID     any             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     any       `json:"id"`
	Result any       `json:"result,omitempty"`
	Error  *rpcError `json:"error,omitempty"`
}

type rpcNotification struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return e.Message }

func errorf(code int, format string, args ...any) *rpcError {
	return &rpcError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for connections and requests.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFormatConfig sets the configuration used by the format method.
func WithFormatConfig(cfg format.Config) Option {
	return func(s *Server) { s.format = cfg }
}

// NewServer creates a playground server with an empty workspace.
func NewServer(opts ...Option) *Server {
	s := &Server{
		format: format.DefaultConfig(),
		logger: slog.New(slog.DiscardHandler),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = syntax.NewParser(syntax.WithLogger(s.logger))
	s.docs = editor.NewWorkspace(editor.WithParser(s.parser), editor.WithLogger(s.logger))
	return s
}

// Documents returns the documents opened by clients.
func (s *Server) Documents() *editor.Workspace { return s.docs }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/ws" {
		s.handleWebSocket(w, r)
		return
	}
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		http.Error(w, "static files unavailable", http.StatusInternalServerError)
		return
	}
	http.FileServer(http.FS(sub)).ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("playground listening", slog.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.closeClients()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := append([]*wsClient(nil), s.clients...)
	s.mu.Unlock()
	for _, c := range clients {
		_ = c.conn.Close()
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", slog.Any("error", err))
		return
	}
	client := &wsClient{conn: conn}
	s.mu.Lock()
	s.clients = append(s.clients, client)
	s.mu.Unlock()
	s.logger.Debug("client connected", slog.String("remote", r.RemoteAddr))

	defer func() {
		conn.Close()
		s.mu.Lock()
		for i, c := range s.clients {
			if c == client {
				s.clients = append(s.clients[:i], s.clients[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		s.logger.Debug("client disconnected", slog.String("remote", r.RemoteAddr))
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req rpcRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			_ = client.send(rpcResponse{Error: errorf(codeInvalidParams, "malformed request: %v", err)})
			continue
		}
		if err := client.send(s.handleRPC(req)); err != nil {
			return
		}
	}
}

func (s *Server) handleRPC(req rpcRequest) rpcResponse {
	s.logger.Debug("rpc", slog.String("method", req.Method))
	var (
		result any
		err    *rpcError
	)
	switch req.Method {
	case "open":
		result, err = s.rpcOpen(req.Params)
	case "openFile":
		result, err = s.rpcOpenFile(req.Params)
	case "edit":
		result, err = s.rpcEdit(req.Params)
	case "undo":
		result, err = s.rpcHistory(req.Params, false)
	case "redo":
		result, err = s.rpcHistory(req.Params, true)
	case "save":
		result, err = s.rpcSave(req.Params)
	case "find":
		result, err = s.rpcFind(req.Params)
	case "replaceAll":
		result, err = s.rpcReplaceAll(req.Params)
	case "tree":
		result, err = s.rpcTree(req.Params)
	case "nodeAt":
		result, err = s.rpcNodeAt(req.Params)
	case "diagnostics":
		result, err = s.rpcDiagnostics(req.Params)
	case "format":
		result, err = s.rpcFormat(req.Params)
	case "query":
		result, err = s.rpcQuery(req.Params)
	case "match":
		result, err = s.rpcMatch(req.Params)
	case "folds":
		result, err = s.rpcFolds(req.Params)
	case "close":
		result, err = s.rpcClose(req.Params)
	default:
		err = errorf(codeMethodNotFound, "unknown method: %s", req.Method)
	}
	if err != nil {
		return rpcResponse{ID: req.ID, Error: err}
	}
	return rpcResponse{ID: req.ID, Result: result}
}

// Broadcast sends a notification to all connected WebSocket clients.
func (s *Server) Broadcast(method string, params any) {
	s.mu.Lock()
	clients := append([]*wsClient(nil), s.clients...)
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.send(rpcNotification{Method: method, Params: params}); err != nil {
			s.logger.Debug("broadcast failed", slog.String("method", method), slog.Any("error", err))
		}
	}
}
