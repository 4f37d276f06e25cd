package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/mjson5/editor"
)

type message struct {
	ID     *int            `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type client struct {
	t     *testing.T
	conn  *websocket.Conn
	seq   int
	notes []message
}

func startServer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(opts...)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) read() message {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	var m message
	require.NoError(c.t, json.Unmarshal(data, &m))
	return m
}

// call sends a request and reads until its response, keeping any
// notifications that arrive first.
func (c *client) call(method string, params any) message {
	c.t.Helper()
	c.seq++
	require.NoError(c.t, c.conn.WriteJSON(map[string]any{"id": c.seq, "method": method, "params": params}))
	for {
		m := c.read()
		if m.ID != nil && *m.ID == c.seq {
			return m
		}
		c.notes = append(c.notes, m)
	}
}

func (c *client) result(method string, params, out any) {
	c.t.Helper()
	m := c.call(method, params)
	require.Nil(c.t, m.Error, "%s: %+v", method, m.Error)
	if out != nil {
		require.NoError(c.t, json.Unmarshal(m.Result, out))
	}
}

func (c *client) fail(method string, params any) *rpcError {
	c.t.Helper()
	m := c.call(method, params)
	require.NotNil(c.t, m.Error, "%s succeeded", method)
	return m.Error
}

func TestStaticPage(t *testing.T) {
	_, ts := startServer(t)
	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "mjson5 playground")
}

func TestOpenEditTree(t *testing.T) {
	s, ts := startServer(t)
	c := dial(t, ts)

	var st docState
	c.result("open", map[string]any{"uri": "mem://a", "text": `{"a": {{name}} }`}, &st)
	assert.Equal(t, "mem://a", st.URI)
	assert.False(t, st.HasError)
	assert.Equal(t, "(document (object (pair (string) (mustache_variable))))", st.Tree)
	assert.Empty(t, st.Diagnostics)

	c.result("edit", map[string]any{"uri": "mem://a", "start": 8, "end": 12, "text": "fullName"}, &st)
	assert.EqualValues(t, 1, st.Version)
	assert.Equal(t, "(document (object (pair (string) (mustache_variable))))", st.Tree)
	assert.NotEmpty(t, st.Reparse.Strategy)

	doc, ok := s.Documents().Get("mem://a")
	require.True(t, ok)
	assert.Equal(t, `{"a": {{fullName}} }`, doc.Text())

	var tree map[string]string
	c.result("tree", map[string]any{"uri": "mem://a"}, &tree)
	assert.Equal(t, st.Tree, tree["sexpr"])

	var exported struct {
		Type     string `json:"type"`
		Children []struct {
			Type string `json:"type"`
		} `json:"children"`
	}
	c.result("tree", map[string]any{"uri": "mem://a", "format": "json", "named": true}, &exported)
	assert.Equal(t, "document", exported.Type)
	require.Len(t, exported.Children, 1)
	assert.Equal(t, "object", exported.Children[0].Type)
}

func TestEditBatch(t *testing.T) {
	s, ts := startServer(t)
	c := dial(t, ts)
	c.result("open", map[string]any{"uri": "mem://a", "text": `[1, 2]`}, nil)

	c.result("edit", map[string]any{"uri": "mem://a", "edits": []editor.TextEdit{
		{Start: 1, End: 2, Text: "10"},
		{Start: 5, End: 6, Text: "20"},
	}}, nil)
	doc, _ := s.Documents().Get("mem://a")
	assert.Equal(t, `[10, 20]`, doc.Text())
}

func TestUndoRedo(t *testing.T) {
	_, ts := startServer(t)
	c := dial(t, ts)
	c.result("open", map[string]any{"uri": "mem://a", "text": `[1]`}, nil)
	c.result("edit", map[string]any{"uri": "mem://a", "start": 1, "end": 2, "text": "{{n}}"}, nil)

	var st docState
	c.result("undo", map[string]any{"uri": "mem://a"}, &st)
	assert.EqualValues(t, 2, st.Version)
	assert.Equal(t, "(document (array (number)))", st.Tree)
	assert.False(t, st.CanUndo)
	assert.True(t, st.CanRedo)

	c.result("undo", map[string]any{"uri": "mem://a"}, &st)
	assert.EqualValues(t, 2, st.Version, "nothing left to undo")

	c.result("redo", map[string]any{"uri": "mem://a"}, &st)
	assert.EqualValues(t, 3, st.Version)
	assert.Equal(t, "(document (array (mustache_variable)))", st.Tree)
	assert.True(t, st.Dirty)
	assert.True(t, st.CanUndo)
	assert.False(t, st.CanRedo)
	assert.Equal(t, "untitled", st.Title)
}

func TestOpenFileAndSave(t *testing.T) {
	s, ts := startServer(t)
	c := dial(t, ts)
	path := filepath.Join(t.TempDir(), "a.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{a: 1}`), 0o644))

	var st docState
	c.result("openFile", map[string]any{"path": path}, &st)
	assert.Equal(t, path, st.URI)
	assert.Equal(t, "a.json5", st.Title)
	assert.False(t, st.Dirty)
	assert.Equal(t, 1, s.Documents().Len())

	c.result("edit", map[string]any{"uri": path, "start": 4, "end": 5, "text": "2"}, &st)
	assert.True(t, st.Dirty)
	c.result("save", map[string]any{"uri": path}, &st)
	assert.False(t, st.Dirty)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{a: 2}`, string(data))

	// An untitled document saves under the path it is given.
	other := filepath.Join(t.TempDir(), "b.json5")
	c.result("open", map[string]any{"uri": "mem://b", "text": `[]`}, nil)
	c.result("save", map[string]any{"uri": "mem://b", "path": other}, &st)
	assert.Equal(t, "b.json5", st.Title)
	data, err = os.ReadFile(other)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}

func TestFindReplaceAll(t *testing.T) {
	s, ts := startServer(t)
	c := dial(t, ts)
	c.result("open", map[string]any{"uri": "mem://a", "text": `[{{x}}, {{x}}]`}, nil)

	var found []editor.Range
	c.result("find", map[string]any{"uri": "mem://a", "query": "{{x}}"}, &found)
	assert.Equal(t, []editor.Range{{Start: 1, End: 6}, {Start: 8, End: 13}}, found)

	c.result("find", map[string]any{"uri": "mem://a", "query": "nope"}, &found)
	assert.Empty(t, found)

	var res struct {
		Replaced int      `json:"replaced"`
		State    docState `json:"state"`
	}
	c.result("replaceAll", map[string]any{"uri": "mem://a", "query": "{{x}}", "replacement": "1"}, &res)
	assert.Equal(t, 2, res.Replaced)
	assert.Equal(t, "(document (array (number) (number)))", res.State.Tree)
	doc, _ := s.Documents().Get("mem://a")
	assert.Equal(t, `[1, 1]`, doc.Text())
}

func TestRequestErrors(t *testing.T) {
	_, ts := startServer(t)
	c := dial(t, ts)
	c.result("open", map[string]any{"uri": "mem://a", "text": `[1]`}, nil)

	tests := []struct {
		name   string
		method string
		params any
		code   int
	}{
		{"unknown method", "rename", map[string]any{}, codeMethodNotFound},
		{"missing params", "tree", nil, codeInvalidParams},
		{"missing uri", "open", map[string]any{"text": "1"}, codeInvalidParams},
		{"not open", "tree", map[string]any{"uri": "mem://b"}, codeNotOpen},
		{"edit out of range", "edit", map[string]any{"uri": "mem://a", "start": 2, "end": 9, "text": ""}, codeInvalidParams},
		{"offset out of range", "nodeAt", map[string]any{"uri": "mem://a", "offset": 99}, codeInvalidParams},
		{"bad tree format", "tree", map[string]any{"uri": "mem://a", "format": "xml"}, codeInvalidParams},
		{"bad query", "query", map[string]any{"uri": "mem://a", "query": "(nope"}, codeInvalidParams},
		{"save untitled", "save", map[string]any{"uri": "mem://a"}, codeInvalidParams},
		{"open missing file", "openFile", map[string]any{"path": "/nonexistent/a.json5"}, codeFailed},
		{"missing path", "openFile", map[string]any{}, codeInvalidParams},
		{"empty replace query", "replaceAll", map[string]any{"uri": "mem://a", "query": ""}, codeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.t = t
			err := c.fail(tt.method, tt.params)
			assert.Equal(t, tt.code, err.Code, err.Message)
		})
	}
}

func TestNodeAt(t *testing.T) {
	_, ts := startServer(t)
	c := dial(t, ts)
	c.result("open", map[string]any{"uri": "mem://a", "text": `{"a": {{name}} }`}, nil)

	var n nodeInfo
	c.result("nodeAt", map[string]any{"uri": "mem://a", "offset": 9, "named": true}, &n)
	assert.Equal(t, "mustache_variable", n.Type)
	assert.Equal(t, "name", n.TagName)
	assert.EqualValues(t, 6, n.Start)
	assert.EqualValues(t, 14, n.End)
	assert.Equal(t, []string{"document", "object", "pair", "mustache_variable"}, n.Path)

	c.result("nodeAt", map[string]any{"uri": "mem://a", "offset": 6}, &n)
	assert.Equal(t, "{{", n.Type)
	assert.False(t, n.Named)
}

func TestDiagnosticsAndFormat(t *testing.T) {
	s, ts := startServer(t)
	c := dial(t, ts)

	c.result("open", map[string]any{"uri": "mem://bad", "text": `{"a": [1,}`}, nil)
	var diags []diagnostic
	c.result("diagnostics", map[string]any{"uri": "mem://bad"}, &diags)
	require.NotEmpty(t, diags)
	assert.NotEmpty(t, diags[0].Kind)
	assert.Contains(t, diags[0].Rendered, `{"a": [1,}`)
	err := c.fail("format", map[string]any{"uri": "mem://bad"})
	assert.Equal(t, codeFailed, err.Code)

	c.result("open", map[string]any{"uri": "mem://ok", "text": `{"a":1,"b":2}`}, nil)
	var res struct {
		Text    string `json:"text"`
		Changed bool   `json:"changed"`
	}
	c.result("format", map[string]any{"uri": "mem://ok"}, &res)
	assert.True(t, res.Changed)
	assert.Equal(t, "{\n  \"a\": 1,\n  \"b\": 2\n}\n", res.Text)
	doc, _ := s.Documents().Get("mem://ok")
	assert.Equal(t, `{"a":1,"b":2}`, doc.Text())

	c.result("format", map[string]any{"uri": "mem://ok", "apply": true}, &res)
	assert.Equal(t, res.Text, doc.Text())
}

func TestFormatDetectsIndent(t *testing.T) {
	_, ts := startServer(t)
	c := dial(t, ts)
	c.result("open", map[string]any{"uri": "mem://a", "text": "{\n    \"a\": [1,2]\n}"}, nil)

	var res struct {
		Text string `json:"text"`
	}
	c.result("format", map[string]any{"uri": "mem://a", "detect": true}, &res)
	assert.Equal(t, "{\n    \"a\": [1, 2]\n}\n", res.Text)

	c.result("format", map[string]any{"uri": "mem://a"}, &res)
	assert.Equal(t, "{\n  \"a\": [1, 2]\n}\n", res.Text)
}

func TestQuery(t *testing.T) {
	_, ts := startServer(t)
	c := dial(t, ts)
	c.result("open", map[string]any{"uri": "mem://a", "text": `[1, "x", {{n}}, 2]`}, nil)

	var caps []capture
	c.result("query", map[string]any{"uri": "mem://a", "query": "(number) @n"}, &caps)
	require.Len(t, caps, 2)
	assert.Equal(t, "n", caps[0].Name)
	assert.Equal(t, "1", caps[0].Text)
	assert.Equal(t, "2", caps[1].Text)
}

func TestMatchAndFolds(t *testing.T) {
	_, ts := startServer(t)
	c := dial(t, ts)
	c.result("open", map[string]any{"uri": "mem://a", "text": "{\n  \"a\": [1, 2]\n}"}, nil)

	var m struct {
		Found bool `json:"found"`
		Start int  `json:"start"`
		End   int  `json:"end"`
	}
	c.result("match", map[string]any{"uri": "mem://a", "offset": 0}, &m)
	assert.True(t, m.Found)
	assert.Equal(t, 16, m.Start)
	assert.Equal(t, 17, m.End)

	c.result("match", map[string]any{"uri": "mem://a", "offset": 3}, &m)
	assert.False(t, m.Found)

	var folds []editor.FoldRegion
	c.result("folds", map[string]any{"uri": "mem://a"}, &folds)
	require.Len(t, folds, 1)
	assert.Equal(t, editor.FoldRegion{StartLine: 0, EndLine: 2, Kind: editor.FoldObject}, folds[0])
}

func TestBroadcastAndClose(t *testing.T) {
	s, ts := startServer(t)
	a := dial(t, ts)
	b := dial(t, ts)

	// Make sure both connections are registered before broadcasting.
	a.call("diagnostics", map[string]any{"uri": "mem://none"})
	b.call("folds", map[string]any{"uri": "mem://none"})

	a.result("open", map[string]any{"uri": "mem://shared", "text": `[1]`}, nil)

	note := b.read()
	assert.Equal(t, "treeChanged", note.Method)
	var st docState
	require.NoError(t, json.Unmarshal(note.Params, &st))
	assert.Equal(t, "mem://shared", st.URI)
	assert.Equal(t, "(document (array (number)))", st.Tree)

	var closed map[string]bool
	b.result("close", map[string]any{"uri": "mem://shared"}, &closed)
	assert.True(t, closed["closed"])
	assert.Equal(t, 0, s.Documents().Len())

	b.result("close", map[string]any{"uri": "mem://shared"}, &closed)
	assert.False(t, closed["closed"])
}
