package editor

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Range represents a byte range [Start, End) within buffer text.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Change is one replacement: the text at [Offset, Offset+len(OldText))
// became NewText.
type Change struct {
	Offset  int
	OldText string
	NewText string
}

// OldEnd is the end of the replaced span in the text before the change.
func (c Change) OldEnd() int { return c.Offset + len(c.OldText) }

// NewEnd is the end of the inserted span in the text after the change.
func (c Change) NewEnd() int { return c.Offset + len(c.NewText) }

func (c Change) invert() Change {
	return Change{Offset: c.Offset, OldText: c.NewText, NewText: c.OldText}
}

// ErrRange reports an edit outside the buffer text.
var ErrRange = errors.New("editor: range out of bounds")

// Buffer manages the text content of a single document.
type Buffer struct {
	path      string // absolute path, or "" if untitled
	text      string
	savedText string // text at last save/open
	undoStack []Change
	redoStack []Change
}

// NewBuffer creates an untitled buffer holding text. The text counts as
// saved.
func NewBuffer(text string) *Buffer {
	return &Buffer{text: text, savedText: text}
}

// Open reads the file at path into the buffer, replacing any existing
// content and history. The stored path is absolute.
func (b *Buffer) Open(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return err
	}
	b.path = absPath
	b.text = string(data)
	b.savedText = b.text
	b.undoStack, b.redoStack = nil, nil
	return nil
}

// Save writes the current text to the stored path.
func (b *Buffer) Save() error {
	if b.path == "" {
		return errors.New("buffer has no path; use SaveAs")
	}
	if err := os.WriteFile(b.path, []byte(b.text), 0o644); err != nil {
		return err
	}
	b.savedText = b.text
	return nil
}

// SaveAs writes the current text to path and makes it the stored path.
func (b *Buffer) SaveAs(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(absPath, []byte(b.text), 0o644); err != nil {
		return err
	}
	b.path = absPath
	b.savedText = b.text
	return nil
}

func (b *Buffer) Path() string { return b.path }

func (b *Buffer) Text() string { return b.text }

// Dirty reports whether the text differs from the last saved or opened text.
func (b *Buffer) Dirty() bool { return b.text != b.savedText }

func (b *Buffer) Untitled() bool { return b.path == "" }

// Title returns the base filename, or "untitled".
func (b *Buffer) Title() string {
	if b.path == "" {
		return "untitled"
	}
	return filepath.Base(b.path)
}

// Replace replaces [start, end) with text, records it for undo and clears
// the redo stack.
func (b *Buffer) Replace(start, end int, text string) (Change, error) {
	if start < 0 || end < start || end > len(b.text) {
		return Change{}, ErrRange
	}
	c := Change{Offset: start, OldText: b.text[start:end], NewText: text}
	b.apply(c)
	b.undoStack = append(b.undoStack, c)
	b.redoStack = nil
	return c, nil
}

func (b *Buffer) apply(c Change) {
	b.text = b.text[:c.Offset] + c.NewText + b.text[c.OldEnd():]
}

// Undo reverts the last change and returns the change that reverted it.
func (b *Buffer) Undo() (Change, bool) {
	if len(b.undoStack) == 0 {
		return Change{}, false
	}
	c := b.undoStack[len(b.undoStack)-1]
	b.undoStack = b.undoStack[:len(b.undoStack)-1]
	inv := c.invert()
	b.apply(inv)
	b.redoStack = append(b.redoStack, c)
	return inv, true
}

// Redo reapplies the last undone change.
func (b *Buffer) Redo() (Change, bool) {
	if len(b.redoStack) == 0 {
		return Change{}, false
	}
	c := b.redoStack[len(b.redoStack)-1]
	b.redoStack = b.redoStack[:len(b.redoStack)-1]
	b.apply(c)
	b.undoStack = append(b.undoStack, c)
	return c, true
}

// CanUndo reports whether Undo would change the text.
func (b *Buffer) CanUndo() bool { return len(b.undoStack) > 0 }

// CanRedo reports whether Redo would change the text.
func (b *Buffer) CanRedo() bool { return len(b.redoStack) > 0 }

// Find returns the non-overlapping byte ranges where query occurs.
func (b *Buffer) Find(query string) []Range {
	if query == "" {
		return nil
	}
	var results []Range
	start := 0
	for {
		idx := strings.Index(b.text[start:], query)
		if idx < 0 {
			break
		}
		abs := start + idx
		results = append(results, Range{Start: abs, End: abs + len(query)})
		start = abs + len(query)
	}
	return results
}

// ReplaceAll replaces every occurrence of query, back to front so earlier
// offsets stay valid, and returns the changes in the order applied. Each
// replacement is a separate undo step.
func (b *Buffer) ReplaceAll(query, replacement string) []Change {
	ranges := b.Find(query)
	changes := make([]Change, 0, len(ranges))
	for i := len(ranges) - 1; i >= 0; i-- {
		c, _ := b.Replace(ranges[i].Start, ranges[i].End, replacement)
		changes = append(changes, c)
	}
	return changes
}
