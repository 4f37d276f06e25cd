package editor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewBuffer(t *testing.T) {
	b := NewBuffer(`{"a": 1}`)
	if b.Text() != `{"a": 1}` {
		t.Errorf("text = %q", b.Text())
	}
	if b.Dirty() {
		t.Error("new buffer should not be dirty")
	}
	if !b.Untitled() || b.Title() != "untitled" {
		t.Errorf("title = %q, untitled = %v", b.Title(), b.Untitled())
	}
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.mjson5")
	content := "{\n  \"name\": {{name}}\n}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	b := NewBuffer("")
	if err := b.Open(path); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if b.Text() != content {
		t.Errorf("text = %q, want %q", b.Text(), content)
	}
	if !filepath.IsAbs(b.Path()) {
		t.Errorf("path %q is not absolute", b.Path())
	}
	if b.Dirty() || b.Untitled() {
		t.Error("opened buffer should be clean and titled")
	}
	if b.Title() != "doc.mjson5" {
		t.Errorf("title = %q, want doc.mjson5", b.Title())
	}
}

func TestOpenNonexistentFile(t *testing.T) {
	b := NewBuffer("")
	if err := b.Open("/nonexistent/path/to/file.mjson5"); err == nil {
		t.Fatal("Open nonexistent file should return error")
	}
}

func TestOpenResetsHistory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "b.json5")
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	b := NewBuffer("x")
	if _, err := b.Replace(0, 1, "y"); err != nil {
		t.Fatal(err)
	}
	if err := b.Open(path); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if b.CanUndo() {
		t.Error("Open should clear the undo stack")
	}
}

func TestSaveAndSaveAs(t *testing.T) {
	dir := t.TempDir()
	b := NewBuffer("")
	if err := b.Save(); err == nil {
		t.Fatal("Save on untitled buffer should return error")
	}

	if _, err := b.Replace(0, 0, "[1]"); err != nil {
		t.Fatal(err)
	}
	if !b.Dirty() {
		t.Fatal("buffer should be dirty after an edit")
	}

	path := filepath.Join(dir, "out.json5")
	if err := b.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if b.Dirty() || b.Title() != "out.json5" {
		t.Errorf("after SaveAs dirty = %v, title = %q", b.Dirty(), b.Title())
	}

	if _, err := b.Replace(1, 2, "2"); err != nil {
		t.Fatal(err)
	}
	if err := b.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "[2]" {
		t.Errorf("file content = %q, want %q", data, "[2]")
	}
}

func TestDirtyComputedByComparison(t *testing.T) {
	b := NewBuffer("abc")
	if _, err := b.Replace(0, 3, "xyz"); err != nil {
		t.Fatal(err)
	}
	if !b.Dirty() {
		t.Error("should be dirty after replace")
	}
	if _, err := b.Replace(0, 3, "abc"); err != nil {
		t.Fatal(err)
	}
	if b.Dirty() {
		t.Error("should not be dirty after restoring the saved text")
	}
}

func TestBufferReplaceOutOfRange(t *testing.T) {
	b := NewBuffer("abc")
	for _, r := range []Range{{-1, 1}, {2, 1}, {0, 4}} {
		if _, err := b.Replace(r.Start, r.End, "x"); !errors.Is(err, ErrRange) {
			t.Errorf("Replace(%d, %d) error = %v, want ErrRange", r.Start, r.End, err)
		}
	}
	if b.Text() != "abc" {
		t.Errorf("failed edits changed the text: %q", b.Text())
	}
}

func TestBufferUndoRedo(t *testing.T) {
	b := NewBuffer("hello world")

	c, err := b.Replace(6, 11, "Go")
	if err != nil {
		t.Fatal(err)
	}
	if b.Text() != "hello Go" {
		t.Fatalf("after edit text = %q, want %q", b.Text(), "hello Go")
	}
	if c.Offset != 6 || c.OldEnd() != 11 || c.NewEnd() != 8 {
		t.Fatalf("change = %+v", c)
	}

	inv, ok := b.Undo()
	if !ok {
		t.Fatal("Undo returned false, expected true")
	}
	if b.Text() != "hello world" {
		t.Fatalf("after undo text = %q, want %q", b.Text(), "hello world")
	}
	if inv.OldText != "Go" || inv.NewText != "world" {
		t.Fatalf("undo change = %+v", inv)
	}
	if _, ok := b.Undo(); ok {
		t.Fatal("Undo returned true on empty stack")
	}

	if _, ok := b.Redo(); !ok {
		t.Fatal("Redo returned false, expected true")
	}
	if b.Text() != "hello Go" {
		t.Fatalf("after redo text = %q, want %q", b.Text(), "hello Go")
	}
	if _, ok := b.Redo(); ok {
		t.Fatal("Redo returned true on empty stack")
	}

	// A new edit after undo clears the redo stack.
	b.Undo()
	if _, err := b.Replace(6, 11, "json5"); err != nil {
		t.Fatal(err)
	}
	if b.CanRedo() {
		t.Fatal("Redo should be unavailable after a new edit")
	}

	if _, err := b.Replace(5, 6, " templated "); err != nil {
		t.Fatal(err)
	}
	b.Undo()
	b.Undo()
	if b.Text() != "hello world" {
		t.Fatalf("after double undo text = %q, want %q", b.Text(), "hello world")
	}
}

func TestBufferFind(t *testing.T) {
	b := NewBuffer("the cat sat on the mat")

	results := b.Find("the")
	if len(results) != 2 {
		t.Fatalf("Find(\"the\") returned %d results, want 2", len(results))
	}
	if results[0] != (Range{0, 3}) || results[1] != (Range{15, 18}) {
		t.Errorf("matches = %v", results)
	}
	if got := b.Find("dog"); len(got) != 0 {
		t.Errorf("Find(\"dog\") returned %v", got)
	}
	if got := b.Find(""); got != nil {
		t.Errorf("Find(\"\") returned %v, want nil", got)
	}
	if got := b.Find("aa"); len(got) != 0 {
		t.Errorf("Find(\"aa\") returned %v", got)
	}
}

func TestBufferReplaceAll(t *testing.T) {
	b := NewBuffer("foo bar foo baz foo")
	changes := b.ReplaceAll("foo", "qux")
	if len(changes) != 3 {
		t.Fatalf("ReplaceAll returned %d changes, want 3", len(changes))
	}
	if b.Text() != "qux bar qux baz qux" {
		t.Fatalf("text = %q", b.Text())
	}
	// Applied back to front.
	if changes[0].Offset != 16 || changes[2].Offset != 0 {
		t.Fatalf("change order = %+v", changes)
	}

	b2 := NewBuffer("aaa")
	b2.ReplaceAll("a", "bb")
	if b2.Text() != "bbbbbb" {
		t.Fatalf("text = %q, want %q", b2.Text(), "bbbbbb")
	}

	b3 := NewBuffer("abc")
	if changes := b3.ReplaceAll("xyz", "123"); len(changes) != 0 || b3.Text() != "abc" {
		t.Fatalf("no-match ReplaceAll = %v, %q", changes, b3.Text())
	}

	b4 := NewBuffer("aa bb aa")
	b4.ReplaceAll("aa", "cc")
	b4.Undo()
	b4.Undo()
	if b4.Text() != "aa bb aa" {
		t.Fatalf("after undo text = %q, want %q", b4.Text(), "aa bb aa")
	}
}
