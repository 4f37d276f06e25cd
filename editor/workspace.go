package editor

import (
	"path/filepath"
	"slices"
	"sync"
)

// Workspace tracks open documents by URI in the order they were opened.
// It is safe for concurrent use.
type Workspace struct {
	mu   sync.RWMutex
	docs map[string]*Document
	uris []string
	opts []DocumentOption
}

// NewWorkspace returns an empty workspace. opts apply to every document it
// opens.
func NewWorkspace(opts ...DocumentOption) *Workspace {
	return &Workspace{
		docs: make(map[string]*Document),
		opts: opts,
	}
}

// Len returns the number of open documents.
func (w *Workspace) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.uris)
}

// URIs returns the URIs of the open documents in opening order.
func (w *Workspace) URIs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.uris)
}

// Get returns the document for uri.
func (w *Workspace) Get(uri string) (*Document, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	d, ok := w.docs[uri]
	return d, ok
}

// Open parses text as the document uri. Opening a URI that is already open
// replaces its text, re-parsing incrementally.
func (w *Workspace) Open(uri, text string) *Document {
	w.mu.Lock()
	d, ok := w.docs[uri]
	if !ok {
		d = NewDocument(uri, text, w.opts...)
		w.docs[uri] = d
		w.uris = append(w.uris, uri)
	}
	w.mu.Unlock()

	if ok {
		d.SetText(text)
	}
	return d
}

// OpenFile opens the file at path under its absolute path. A file that is
// already open is returned as is.
func (w *Workspace) OpenFile(path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if d, ok := w.Get(abs); ok {
		return d, nil
	}
	d, err := OpenDocument(abs, w.opts...)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if existing, ok := w.docs[abs]; ok {
		return existing, nil
	}
	w.docs[abs] = d
	w.uris = append(w.uris, abs)
	return d, nil
}

// Close forgets the document uri. It reports whether it was open.
func (w *Workspace) Close(uri string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.docs[uri]; !ok {
		return false
	}
	delete(w.docs, uri)
	w.uris = slices.DeleteFunc(w.uris, func(u string) bool { return u == uri })
	return true
}
