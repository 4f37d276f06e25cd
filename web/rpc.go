package web

import (
	"errors"
	"slices"

	"github.com/segmentio/encoding/json"

	"github.com/odvcencio/mjson5/editor"
	"github.com/odvcencio/mjson5/format"
	"github.com/odvcencio/mjson5/syntax"
)

type diagnostic struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Start    uint32 `json:"start"`
	End      uint32 `json:"end"`
	Row      uint32 `json:"row"`
	Column   uint32 `json:"column"`
	Rendered string `json:"rendered"`
}

type reparseInfo struct {
	Strategy string `json:"strategy"`
	Start    uint32 `json:"start"`
	End      uint32 `json:"end"`
	Attempts int    `json:"attempts"`
}

// docState is returned by the methods that open or change a document and
// broadcast as treeChanged.
type docState struct {
	URI         string       `json:"uri"`
	Title       string       `json:"title"`
	Version     int64        `json:"version"`
	Dirty       bool         `json:"dirty"`
	CanUndo     bool         `json:"canUndo"`
	CanRedo     bool         `json:"canRedo"`
	HasError    bool         `json:"hasError"`
	Tree        string       `json:"tree"`
	Diagnostics []diagnostic `json:"diagnostics"`
	Reparse     reparseInfo  `json:"reparse"`
}

type nodeInfo struct {
	Type    string   `json:"type"`
	Named   bool     `json:"named"`
	Start   uint32   `json:"start"`
	End     uint32   `json:"end"`
	Row     uint32   `json:"row"`
	Column  uint32   `json:"column"`
	Text    string   `json:"text"`
	TagName string   `json:"tagName,omitempty"`
	Error   bool     `json:"error,omitempty"`
	Path    []string `json:"path"`
}

type capture struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
	Text  string `json:"text"`
}

func decode(raw json.RawMessage, v any) *rpcError {
	if len(raw) == 0 {
		return errorf(codeInvalidParams, "missing params")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errorf(codeInvalidParams, "invalid params: %v", err)
	}
	return nil
}

func (s *Server) document(uri string) (*editor.Document, *rpcError) {
	if uri == "" {
		return nil, errorf(codeInvalidParams, "missing uri")
	}
	doc, ok := s.docs.Get(uri)
	if !ok {
		return nil, errorf(codeNotOpen, "document not open: %s", uri)
	}
	return doc, nil
}

func diagnosticsOf(tree *syntax.Tree) []diagnostic {
	out := []diagnostic{}
	for _, d := range tree.Diagnostics() {
		out = append(out, diagnostic{
			Kind:     d.Kind.String(),
			Message:  d.Message,
			Start:    d.Range.StartByte,
			End:      d.Range.EndByte,
			Row:      d.Range.StartPoint.Row,
			Column:   d.Range.StartPoint.Column,
			Rendered: d.Format(tree.Source()),
		})
	}
	return out
}

func stateOf(doc *editor.Document) docState {
	tree := doc.Tree()
	report := tree.LastReparse()
	return docState{
		URI:         doc.URI(),
		Title:       doc.Title(),
		Version:     doc.Version(),
		Dirty:       doc.Dirty(),
		CanUndo:     doc.CanUndo(),
		CanRedo:     doc.CanRedo(),
		HasError:    tree.HasError(),
		Tree:        tree.String(),
		Diagnostics: diagnosticsOf(tree),
		Reparse: reparseInfo{
			Strategy: report.Strategy.String(),
			Start:    report.Range.StartByte,
			End:      report.Range.EndByte,
			Attempts: report.Attempts,
		},
	}
}

func (s *Server) changed(doc *editor.Document) docState {
	state := stateOf(doc)
	s.Broadcast("treeChanged", state)
	return state
}

func (s *Server) rpcOpen(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		URI  string `json:"uri"`
		Text string `json:"text"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if p.URI == "" {
		return nil, errorf(codeInvalidParams, "missing uri")
	}
	return s.changed(s.docs.Open(p.URI, p.Text)), nil
}

func (s *Server) rpcEdit(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		URI   string            `json:"uri"`
		Start int               `json:"start"`
		End   int               `json:"end"`
		Text  string            `json:"text"`
		Edits []editor.TextEdit `json:"edits,omitempty"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	doc, rerr := s.document(p.URI)
	if rerr != nil {
		return nil, rerr
	}
	edits := p.Edits
	if len(edits) == 0 {
		edits = []editor.TextEdit{{Start: p.Start, End: p.End, Text: p.Text}}
	}
	if _, err := doc.Edit(edits...); err != nil {
		if errors.Is(err, editor.ErrRange) {
			return nil, errorf(codeInvalidParams, "%v", err)
		}
		return nil, errorf(codeFailed, "%v", err)
	}
	return s.changed(doc), nil
}

func (s *Server) rpcOpenFile(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		Path string `json:"path"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if p.Path == "" {
		return nil, errorf(codeInvalidParams, "missing path")
	}
	doc, err := s.docs.OpenFile(p.Path)
	if err != nil {
		return nil, errorf(codeFailed, "%v", err)
	}
	return s.changed(doc), nil
}

// rpcHistory serves undo and redo. Nothing is broadcast when there is no
// change to revert or reapply.
func (s *Server) rpcHistory(raw json.RawMessage, redo bool) (any, *rpcError) {
	var p struct {
		URI string `json:"uri"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	doc, rerr := s.document(p.URI)
	if rerr != nil {
		return nil, rerr
	}
	step := doc.Undo
	if redo {
		step = doc.Redo
	}
	if _, ok := step(); !ok {
		return stateOf(doc), nil
	}
	return s.changed(doc), nil
}

func (s *Server) rpcSave(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		URI  string `json:"uri"`
		Path string `json:"path"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	doc, rerr := s.document(p.URI)
	if rerr != nil {
		return nil, rerr
	}
	var err error
	switch {
	case p.Path != "":
		err = doc.SaveAs(p.Path)
	case doc.Untitled():
		return nil, errorf(codeInvalidParams, "%s has no file; pass a path", p.URI)
	default:
		err = doc.Save()
	}
	if err != nil {
		return nil, errorf(codeFailed, "%v", err)
	}
	return stateOf(doc), nil
}

func (s *Server) rpcFind(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		URI   string `json:"uri"`
		Query string `json:"query"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	doc, rerr := s.document(p.URI)
	if rerr != nil {
		return nil, rerr
	}
	found := doc.Find(p.Query)
	if found == nil {
		found = []editor.Range{}
	}
	return found, nil
}

func (s *Server) rpcReplaceAll(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		URI         string `json:"uri"`
		Query       string `json:"query"`
		Replacement string `json:"replacement"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	doc, rerr := s.document(p.URI)
	if rerr != nil {
		return nil, rerr
	}
	if p.Query == "" {
		return nil, errorf(codeInvalidParams, "missing query")
	}
	_, n := doc.ReplaceAll(p.Query, p.Replacement)
	state := stateOf(doc)
	if n > 0 {
		state = s.changed(doc)
	}
	return map[string]any{"replaced": n, "state": state}, nil
}

func (s *Server) rpcTree(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		URI    string `json:"uri"`
		Format string `json:"format"`
		Named  bool   `json:"named"`
		Text   bool   `json:"text"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	doc, rerr := s.document(p.URI)
	if rerr != nil {
		return nil, rerr
	}
	tree := doc.Tree()
	switch p.Format {
	case "", "sexpr":
		return map[string]string{"sexpr": tree.String()}, nil
	case "json":
		return syntax.Export(tree.RootNode(), syntax.ExportOptions{NamedOnly: p.Named, Text: p.Text}), nil
	}
	return nil, errorf(codeInvalidParams, "unknown tree format %q", p.Format)
}

func nodePath(n syntax.Node) []string {
	var path []string
	for cur := n; !cur.IsNull(); cur = cur.Parent() {
		path = append(path, cur.Type())
	}
	slices.Reverse(path)
	return path
}

func (s *Server) rpcNodeAt(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		URI    string `json:"uri"`
		Offset int    `json:"offset"`
		Named  bool   `json:"named"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	doc, rerr := s.document(p.URI)
	if rerr != nil {
		return nil, rerr
	}
	tree := doc.Tree()
	if p.Offset < 0 || p.Offset > len(tree.Source()) {
		return nil, errorf(codeInvalidParams, "offset %d out of range", p.Offset)
	}
	n := tree.NodeAt(uint32(p.Offset))
	if p.Named {
		n = tree.NamedNodeAt(uint32(p.Offset))
	}
	return nodeInfo{
		Type:    n.Type(),
		Named:   n.IsNamed(),
		Start:   n.StartByte(),
		End:     n.EndByte(),
		Row:     n.StartPoint().Row,
		Column:  n.StartPoint().Column,
		Text:    n.Text(),
		TagName: n.TagName(),
		Error:   n.HasError(),
		Path:    nodePath(n),
	}, nil
}

func (s *Server) rpcDiagnostics(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		URI string `json:"uri"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	doc, rerr := s.document(p.URI)
	if rerr != nil {
		return nil, rerr
	}
	return diagnosticsOf(doc.Tree()), nil
}

func (s *Server) rpcFormat(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		URI    string `json:"uri"`
		Apply  bool   `json:"apply"`
		Detect bool   `json:"detect"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	doc, rerr := s.document(p.URI)
	if rerr != nil {
		return nil, rerr
	}
	tree := doc.Tree()
	cfg := s.format
	if p.Detect {
		if indent, ok := editor.DetectIndent(doc.Text()); ok {
			cfg.UseTabs = indent.UseTabs
			if indent.Size > 0 {
				cfg.IndentSize = indent.Size
			}
		}
	}
	out, err := format.FormatTree(tree, cfg)
	if err != nil {
		return nil, errorf(codeFailed, "%v", err)
	}
	changed := string(out) != string(tree.Source())
	if p.Apply && changed {
		doc.SetText(string(out))
		s.changed(doc)
	}
	return map[string]any{"text": string(out), "changed": changed}, nil
}

func (s *Server) rpcQuery(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		URI   string `json:"uri"`
		Query string `json:"query"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	doc, rerr := s.document(p.URI)
	if rerr != nil {
		return nil, rerr
	}
	q, err := syntax.NewQuery(p.Query, s.parser.Language())
	if err != nil {
		return nil, errorf(codeInvalidParams, "%v", err)
	}
	out := []capture{}
	for _, c := range q.Captures(doc.Tree()) {
		out = append(out, capture{
			Name:  c.Name,
			Type:  c.Node.Type(),
			Start: c.Node.StartByte(),
			End:   c.Node.EndByte(),
			Text:  c.Node.Text(),
		})
	}
	return out, nil
}

func (s *Server) rpcMatch(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		URI    string `json:"uri"`
		Offset int    `json:"offset"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	doc, rerr := s.document(p.URI)
	if rerr != nil {
		return nil, rerr
	}
	r, ok := editor.MatchingBracket(doc.Tree(), p.Offset)
	if !ok {
		return map[string]any{"found": false}, nil
	}
	return map[string]any{"found": true, "start": r.StartByte, "end": r.EndByte}, nil
}

func (s *Server) rpcFolds(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		URI string `json:"uri"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	doc, rerr := s.document(p.URI)
	if rerr != nil {
		return nil, rerr
	}
	regions := editor.FoldRegions(doc.Tree())
	if regions == nil {
		regions = []editor.FoldRegion{}
	}
	return regions, nil
}

func (s *Server) rpcClose(raw json.RawMessage) (any, *rpcError) {
	var p struct {
		URI string `json:"uri"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if p.URI == "" {
		return nil, errorf(codeInvalidParams, "missing uri")
	}
	closed := s.docs.Close(p.URI)
	if closed {
		s.Broadcast("documentClosed", map[string]string{"uri": p.URI})
	}
	return map[string]bool{"closed": closed}, nil
}
