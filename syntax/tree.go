package syntax

import "sort"

// Tree holds a complete syntax tree along with its source text and language.
// A Tree is immutable and safe for concurrent readers.
type Tree struct {
	root   *node
	source []byte
	lang   *Language
	report ReparseReport
}

func newTree(root *node, source []byte, lang *Language) *Tree {
	return &Tree{root: root, source: source, lang: lang, report: ReparseReport{Strategy: StrategyFull, Range: Range{
		EndByte:  uint32(len(source)),
		EndPoint: root.size.Extent,
	}}}
}

// RootNode returns the tree's root node.
func (t *Tree) RootNode() Node { return Node{tree: t, n: t.root} }

// Source returns the source text the tree was parsed from.
func (t *Tree) Source() []byte { return t.source }

// Language returns the language used to parse this tree.
func (t *Tree) Language() *Language { return t.lang }

// LastReparse describes how the tree was produced.
func (t *Tree) LastReparse() ReparseReport { return t.report }

// String returns the s-expression of the whole tree.
func (t *Tree) String() string { return t.RootNode().String() }

// HasError reports whether the tree contains any error.
func (t *Tree) HasError() bool { return t.root.has(flagHasError) }

// NodeAt returns the deepest node whose span contains offset. Offsets at or
// past the end resolve to the last byte of the document.
func (t *Tree) NodeAt(offset uint32) Node {
	n := t.RootNode()
	if n.n.size.Bytes == 0 {
		return n
	}
	if offset >= n.n.size.Bytes {
		offset = n.n.size.Bytes - 1
	}
	for {
		c := n.childContaining(offset)
		if c.IsNull() {
			return n
		}
		n = c
	}
}

// NamedNodeAt returns the deepest named node whose span contains offset.
func (t *Tree) NamedNodeAt(offset uint32) Node {
	n := t.NodeAt(offset)
	for !n.IsNull() && !n.IsNamed() {
		n = n.Parent()
	}
	return n
}

// Walk visits nodes in document order. Returning false from fn skips the
// node's children.
func (t *Tree) Walk(fn func(Node) bool) {
	t.RootNode().Walk(fn)
}

// Diagnostics returns every error annotation in the tree, in document
// order, with absolute positions.
func (t *Tree) Diagnostics() []Diagnostic {
	var out []Diagnostic
	var visit func(n Node)
	visit = func(n Node) {
		if !n.n.has(flagHasError) {
			return
		}
		base := n.start.Bytes
		for _, a := range n.n.notes {
			out = append(out, Diagnostic{
				Kind:    a.Kind,
				Message: a.Message,
				Range: Range{
					StartByte:  base + a.Start,
					EndByte:    base + a.End,
					StartPoint: PointAt(t.source, int(base+a.Start)),
					EndPoint:   PointAt(t.source, int(base+a.End)),
				},
			})
		}
		for i := range n.n.children {
			visit(n.Child(i))
		}
	}
	visit(t.RootNode())
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Range.StartByte < out[j].Range.StartByte
	})
	return out
}

// Node is a handle to a node in a Tree. It carries the node's absolute
// position and a link to its parent handle, so parent and sibling queries
// are O(1) even though nodes themselves are shared between trees. The zero
// Node is null.
type Node struct {
	tree   *Tree
	n      *node
	start  Length
	parent *Node
	index  int
}

// IsNull reports whether the handle refers to no node.
func (n Node) IsNull() bool { return n.n == nil }

// Symbol returns the node's grammar symbol. Context variants of a kind, such
// as a section parsed in object position, have distinct symbols.
func (n Node) Symbol() Symbol { return n.n.symbol }

// Kind returns the node's reported kind with aliases resolved.
func (n Node) Kind() Symbol { return n.tree.lang.Canonical(n.n.symbol) }

// Type returns the node's type name from the language.
func (n Node) Type() string { return n.tree.lang.SymbolNames[n.Kind()] }

// IsNamed reports whether this is a named node (as opposed to anonymous syntax like punctuation).
func (n Node) IsNamed() bool { return n.n.has(flagNamed) }

// IsExtra reports whether the node is trivia: whitespace or a comment.
func (n Node) IsExtra() bool { return n.n.has(flagExtra) }

// IsError reports whether this is an ERROR node.
func (n Node) IsError() bool { return n.n.symbol == SymError }

// IsMissing reports whether this node was inserted by error recovery.
func (n Node) IsMissing() bool { return n.n.has(flagMissing) }

// HasError reports whether this node or any descendant contains a parse error.
func (n Node) HasError() bool { return n.n.has(flagHasError) }

// StartByte returns the byte offset where this node begins.
func (n Node) StartByte() uint32 { return n.start.Bytes }

// EndByte returns the byte offset where this node ends (exclusive).
func (n Node) EndByte() uint32 { return n.start.Bytes + n.n.size.Bytes }

// StartPoint returns the row/column position where this node begins.
func (n Node) StartPoint() Point { return n.start.Extent }

// EndPoint returns the row/column position where this node ends.
func (n Node) EndPoint() Point { return n.start.add(n.n.size).Extent }

// Range returns the full span of this node as a Range.
func (n Node) Range() Range {
	return Range{
		StartByte:  n.StartByte(),
		EndByte:    n.EndByte(),
		StartPoint: n.StartPoint(),
		EndPoint:   n.EndPoint(),
	}
}

// Lookahead is the number of bytes past the node's end that were examined
// to parse it.
func (n Node) Lookahead() uint32 { return n.n.lookahead }

// ChildCount returns the number of children (both named and anonymous).
func (n Node) ChildCount() int { return len(n.n.children) }

// Child returns the i-th child, or a null Node if i is out of range.
func (n Node) Child(i int) Node {
	if i < 0 || i >= len(n.n.children) {
		return Node{}
	}
	parent := n
	return Node{
		tree:   n.tree,
		n:      n.n.children[i],
		start:  n.start.add(n.n.offsets[i]),
		parent: &parent,
		index:  i,
	}
}

// Children returns handles for all children.
func (n Node) Children() []Node {
	out := make([]Node, len(n.n.children))
	parent := n
	for i, c := range n.n.children {
		out[i] = Node{tree: n.tree, n: c, start: n.start.add(n.n.offsets[i]), parent: &parent, index: i}
	}
	return out
}

// NamedChildCount returns the number of named children.
func (n Node) NamedChildCount() int {
	count := 0
	for _, c := range n.n.children {
		if c.has(flagNamed) {
			count++
		}
	}
	return count
}

// NamedChild returns the i-th named child (skipping anonymous children),
// or a null Node if i is out of range.
func (n Node) NamedChild(i int) Node {
	count := 0
	for j, c := range n.n.children {
		if c.has(flagNamed) {
			if count == i {
				return n.Child(j)
			}
			count++
		}
	}
	return Node{}
}

// NamedChildren returns handles for the named children.
func (n Node) NamedChildren() []Node {
	var out []Node
	for _, c := range n.Children() {
		if c.IsNamed() {
			out = append(out, c)
		}
	}
	return out
}

// ChildByFieldName returns the first child assigned to the given field name,
// or a null Node if no child has that field.
func (n Node) ChildByFieldName(name string) Node {
	fid, ok := n.tree.lang.FieldByName(name)
	if !ok {
		return Node{}
	}
	for i, id := range n.n.fields {
		if id == fid {
			return n.Child(i)
		}
	}
	return Node{}
}

// ChildrenByFieldName returns every child assigned to the given field.
func (n Node) ChildrenByFieldName(name string) []Node {
	fid, ok := n.tree.lang.FieldByName(name)
	if !ok {
		return nil
	}
	var out []Node
	for i, id := range n.n.fields {
		if id == fid {
			out = append(out, n.Child(i))
		}
	}
	return out
}

// FieldNameForChild returns the field name of the i-th child, or "".
func (n Node) FieldNameForChild(i int) string {
	return n.tree.lang.FieldName(n.n.field(i))
}

// Parent returns this node's parent, or a null Node for the root.
func (n Node) Parent() Node {
	if n.parent == nil {
		return Node{}
	}
	return *n.parent
}

// NextSibling returns the following sibling, or a null Node.
func (n Node) NextSibling() Node {
	if n.parent == nil {
		return Node{}
	}
	return n.parent.Child(n.index + 1)
}

// PrevSibling returns the preceding sibling, or a null Node.
func (n Node) PrevSibling() Node {
	if n.parent == nil {
		return Node{}
	}
	return n.parent.Child(n.index - 1)
}

// NextNamedSibling returns the following named sibling, or a null Node.
func (n Node) NextNamedSibling() Node {
	for s := n.NextSibling(); !s.IsNull(); s = s.NextSibling() {
		if s.IsNamed() {
			return s
		}
	}
	return Node{}
}

// PrevNamedSibling returns the preceding named sibling, or a null Node.
func (n Node) PrevNamedSibling() Node {
	for s := n.PrevSibling(); !s.IsNull(); s = s.PrevSibling() {
		if s.IsNamed() {
			return s
		}
	}
	return Node{}
}

// Text returns the source text covered by this node.
func (n Node) Text() string {
	return string(n.tree.source[n.StartByte():n.EndByte()])
}

// Tree returns the tree the node belongs to.
func (n Node) Tree() *Tree { return n.tree }

// TagName returns the name of a mustache tag node: the name field of
// variables, partials and section tags, or of a section's open tag. It
// returns "" for other nodes.
func (n Node) TagName() string {
	switch n.Kind() {
	case SymMustacheSection, SymMustacheInvertedSection:
		open := n.ChildByFieldName("open")
		if open.IsNull() {
			return ""
		}
		return open.TagName()
	case SymMustacheVariable, SymMustacheUnescaped, SymMustachePartial,
		SymMustacheSectionOpen, SymMustacheInvertedSectionOpen, SymMustacheSectionClose:
		name := n.ChildByFieldName("name")
		if name.IsNull() || name.IsMissing() {
			return ""
		}
		return name.Text()
	}
	return ""
}

// Annotations returns the errors attached to this node. Their offsets are
// relative to the node's start.
func (n Node) Annotations() []Annotation {
	return append([]Annotation(nil), n.n.notes...)
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the node's children.
func (n Node) Walk(fn func(Node) bool) {
	if n.IsNull() {
		return
	}
	stack := []Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(cur) {
			continue
		}
		kids := cur.Children()
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
}

// childContaining returns the child whose span contains offset, or a null
// Node. Zero-width children never contain an offset.
func (n Node) childContaining(offset uint32) Node {
	if len(n.n.children) == 0 {
		return Node{}
	}
	rel := offset - n.start.Bytes
	i := sort.Search(len(n.n.offsets), func(i int) bool {
		return n.n.offsets[i].Bytes > rel
	}) - 1
	if i < 0 {
		return Node{}
	}
	c := n.Child(i)
	if offset >= c.EndByte() {
		return Node{}
	}
	return c
}

// Equal reports whether two subtrees have the same structure: kinds, spans,
// flags and annotations, recursively.
func (n Node) Equal(o Node) bool {
	if n.IsNull() || o.IsNull() {
		return n.IsNull() == o.IsNull()
	}
	return n.start == o.start && equalNodes(n.n, o.n)
}

func equalNodes(a, b *node) bool {
	if a == b {
		return true
	}
	const structural = flagNamed | flagExtra | flagError | flagMissing | flagHasError | flagSetDelimiter
	if a.symbol != b.symbol || a.size != b.size || a.flags&structural != b.flags&structural ||
		len(a.children) != len(b.children) || len(a.notes) != len(b.notes) {
		return false
	}
	for i := range a.notes {
		if a.notes[i] != b.notes[i] {
			return false
		}
	}
	for i := range a.children {
		if a.field(i) != b.field(i) || !equalNodes(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}
