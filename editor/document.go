package editor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/odvcencio/mjson5/syntax"
)

// TextEdit replaces [Start, End) with Text. Offsets are bytes.
type TextEdit struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// Document is a buffer paired with the syntax tree of its current text.
// Writers are serialized; each write re-parses incrementally and publishes
// a new immutable tree that readers obtain with Tree without locking.
type Document struct {
	mu      sync.Mutex
	uri     string
	buf     *Buffer
	parser  *syntax.Parser
	logger  *slog.Logger
	tree    atomic.Pointer[syntax.Tree]
	version atomic.Int64
}

// DocumentOption configures a Document.
type DocumentOption func(*Document)

// WithParser sets the parser used for the initial parse and every reparse.
func WithParser(p *syntax.Parser) DocumentOption {
	return func(d *Document) {
		if p != nil {
			d.parser = p
		}
	}
}

// WithLogger sets the logger for edit events.
func WithLogger(l *slog.Logger) DocumentOption {
	return func(d *Document) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDocument parses text and returns a document identified by uri.
func NewDocument(uri, text string, opts ...DocumentOption) *Document {
	d := &Document{
		uri:    uri,
		buf:    NewBuffer(text),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.parser == nil {
		d.parser = syntax.NewParser(syntax.WithLogger(d.logger))
	}
	d.tree.Store(d.parser.Parse([]byte(text)))
	return d
}

// OpenDocument reads path into a new document whose URI is the absolute
// path.
func OpenDocument(path string, opts ...DocumentOption) (*Document, error) {
	buf := NewBuffer("")
	if err := buf.Open(path); err != nil {
		return nil, err
	}
	d := NewDocument(buf.Path(), buf.Text(), opts...)
	d.buf = buf
	return d, nil
}

func (d *Document) URI() string { return d.uri }

// Version increases by one with every change to the text.
func (d *Document) Version() int64 { return d.version.Load() }

// Tree returns the tree of the current text.
func (d *Document) Tree() *syntax.Tree { return d.tree.Load() }

// Text returns the current text.
func (d *Document) Text() string { return string(d.Tree().Source()) }

// Dirty reports whether the text differs from the last saved text.
func (d *Document) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.Dirty()
}

// Save writes the text to the document's file.
func (d *Document) Save() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.Save()
}

// CanUndo reports whether Undo would change the text.
func (d *Document) CanUndo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.CanUndo()
}

// CanRedo reports whether Redo would change the text.
func (d *Document) CanRedo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.CanRedo()
}

// SaveAs writes the text to path, which becomes the document's file. The
// URI is unchanged.
func (d *Document) SaveAs(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.SaveAs(path)
}

// Untitled reports whether the document has no file to save to.
func (d *Document) Untitled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.Untitled()
}

// Title returns the base name of the document's file, or "untitled".
func (d *Document) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.Title()
}

// Find returns the byte ranges of the non-overlapping occurrences of query.
func (d *Document) Find(query string) []Range {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.Find(query)
}

// ReplaceAll replaces every occurrence of query with replacement, re-parses
// once and reports how many were replaced. Each replacement is undone
// separately.
func (d *Document) ReplaceAll(query, replacement string) (*syntax.Tree, int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	before := d.buf.Text()
	changes := d.buf.ReplaceAll(query, replacement)
	if len(changes) == 0 {
		return d.Tree(), 0
	}
	return d.reparse(before, changes...), len(changes)
}

// Replace replaces [start, end) with text and returns the new tree.
func (d *Document) Replace(start, end int, text string) (*syntax.Tree, error) {
	return d.Edit(TextEdit{Start: start, End: end, Text: text})
}

// Edit applies edits in order, each expressed in the coordinates left by
// the ones before it, and re-parses once. Either every edit applies or
// none does.
func (d *Document) Edit(edits ...TextEdit) (*syntax.Tree, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(edits) == 0 {
		return d.Tree(), nil
	}
	before := d.buf.Text()
	redo := d.buf.redoStack
	changes := make([]Change, 0, len(edits))
	for _, e := range edits {
		c, err := d.buf.Replace(e.Start, e.End, e.Text)
		if err != nil {
			for range changes {
				d.buf.Undo()
			}
			d.buf.redoStack = redo
			return nil, err
		}
		changes = append(changes, c)
	}
	return d.reparse(before, changes...), nil
}

// SetText replaces the whole text. Only the span between the common prefix
// and suffix of the old and new text counts as edited.
func (d *Document) SetText(text string) *syntax.Tree {
	d.mu.Lock()
	defer d.mu.Unlock()

	before := d.buf.Text()
	if before == text {
		return d.Tree()
	}
	m := minimalChange(before, text)
	c, _ := d.buf.Replace(m.Offset, m.OldEnd(), m.NewText)
	return d.reparse(before, c)
}

// Undo reverts the last change. It reports false when there is nothing to
// undo.
func (d *Document) Undo() (*syntax.Tree, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	before := d.buf.Text()
	c, ok := d.buf.Undo()
	if !ok {
		return d.Tree(), false
	}
	return d.reparse(before, c), true
}

// Redo reapplies the last undone change.
func (d *Document) Redo() (*syntax.Tree, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	before := d.buf.Text()
	c, ok := d.buf.Redo()
	if !ok {
		return d.Tree(), false
	}
	return d.reparse(before, c), true
}

// reparse must be called with d.mu held, after changes were applied to
// the buffer whose text was before.
func (d *Document) reparse(before string, changes ...Change) *syntax.Tree {
	old := d.Tree()
	src := []byte(d.buf.Text())

	edits := make([]syntax.InputEdit, len(changes))
	text := before
	for i, c := range changes {
		next := text[:c.Offset] + c.NewText + text[c.OldEnd():]
		edits[i] = inputEdit(text, next, c)
		text = next
	}

	tree, err := d.parser.Reparse(old, src, edits...)
	if err != nil {
		// Edits that are not in document order cannot be merged; one edit
		// covering all of them always can.
		m := minimalChange(before, string(src))
		tree, err = d.parser.Reparse(old, src, inputEdit(before, string(src), m))
		if err != nil {
			d.logger.Warn("reparse rejected edit", slog.String("uri", d.uri), slog.Any("error", err))
			tree = d.parser.Parse(src)
		}
	}
	d.tree.Store(tree)
	v := d.version.Add(1)

	report := tree.LastReparse()
	d.logger.Log(context.Background(), slog.LevelDebug-4, "document edit",
		slog.String("uri", d.uri),
		slog.Int64("version", v),
		slog.Int("edits", len(changes)),
		slog.String("strategy", report.Strategy.String()),
		slog.Int("attempts", report.Attempts),
	)
	return tree
}

func inputEdit(before, after string, c Change) syntax.InputEdit {
	return syntax.InputEdit{
		StartByte:   uint32(c.Offset),
		OldEndByte:  uint32(c.OldEnd()),
		NewEndByte:  uint32(c.NewEnd()),
		StartPoint:  syntax.PointAt([]byte(before), c.Offset),
		OldEndPoint: syntax.PointAt([]byte(before), c.OldEnd()),
		NewEndPoint: syntax.PointAt([]byte(after), c.NewEnd()),
	}
}

// minimalChange returns the single change that turns a into b, trimming
// their common prefix and suffix.
func minimalChange(a, b string) Change {
	dmp := diffmatchpatch.New()

	// The diff library counts runes.
	prefix := runePrefixBytes(a, dmp.DiffCommonPrefix(a, b))
	if a[:prefix] != b[:prefix] {
		prefix = 0
	}
	ra, rb := a[prefix:], b[prefix:]
	suffix := runeSuffixBytes(ra, dmp.DiffCommonSuffix(ra, rb))
	if suffix > len(rb) || ra[len(ra)-suffix:] != rb[len(rb)-suffix:] {
		suffix = 0
	}
	return Change{
		Offset:  prefix,
		OldText: a[prefix : len(a)-suffix],
		NewText: b[prefix : len(b)-suffix],
	}
}

func runePrefixBytes(s string, runes int) int {
	n := 0
	for i := 0; i < runes && n < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[n:])
		n += size
	}
	return n
}

func runeSuffixBytes(s string, runes int) int {
	n := 0
	for i := 0; i < runes && n < len(s); i++ {
		_, size := utf8.DecodeLastRuneInString(s[:len(s)-n])
		n += size
	}
	return n
}

// Offset converts a row and byte column of the current text to a byte
// offset.
func (d *Document) Offset(p syntax.Point) int { return Offset(d.Tree().Source(), p) }

// Position converts a byte offset of the current text to a row and column.
func (d *Document) Position(offset int) syntax.Point { return Position(d.Tree().Source(), offset) }

// OffsetUTF16 converts an LSP position in the current text to a byte offset.
func (d *Document) OffsetUTF16(row, col int) int { return OffsetUTF16(d.Tree().Source(), row, col) }

// PositionUTF16 converts a byte offset of the current text to an LSP
// position.
func (d *Document) PositionUTF16(offset int) (row, col int) {
	return PositionUTF16(d.Tree().Source(), offset)
}
