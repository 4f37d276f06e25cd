package syntax

type nodeFlags uint8

const (
	flagNamed nodeFlags = 1 << iota
	flagExtra
	// flagError marks a node that is itself erroneous: an ERROR node, a
	// node closed early by recovery or a node carrying annotations.
	flagError
	flagMissing
	// flagHasError is set when the node or any descendant is erroneous.
	flagHasError
	// flagSetDelimiter is set when the subtree contains a set-delimiter tag.
	flagSetDelimiter
)

// node is the immutable tree representation. It stores no absolute
// position: its start is the sum of the sizes of everything before it.
type node struct {
	symbol Symbol
	flags  nodeFlags
	size   Length
	// lookahead is how many bytes past the node's end the lexer examined
	// while producing the node's tokens.
	lookahead uint32
	children  []*node
	// offsets[i] is the start of children[i] relative to the node start.
	offsets []Length
	fields  []FieldID // parallel to children, nil when no child has a field
	notes   []Annotation
}

func (n *node) has(f nodeFlags) bool { return n.flags&f != 0 }

func (n *node) isLeaf() bool { return len(n.children) == 0 }

func (n *node) field(i int) FieldID {
	if i < len(n.fields) {
		return n.fields[i]
	}
	return fieldNone
}

// internable lists tokens whose node is fully determined by symbol, size and
// lookahead. Their leaves are shared by every tree.
var internable = tokenSetOf(
	SymLBrace, SymRBrace, SymLBracket, SymRBracket, SymColon, SymComma,
	SymTrue, SymFalse, SymNull, SymQuote, SymPipe,
	SymTagOpen, SymTagClose, SymTripleOpen, SymTripleClose, SymAmpersandOpen,
	SymSectionOpen, SymInvertedOpen, SymCloseOpen, SymPartialOpen,
	SymCommentOpen, SymDelimiterOpen, SymDelimiterClose,
)

const maxInternedBytes = 8

var internedLeaves = func() (table [tokenCount][maxInternedBytes + 1][2]*node) {
	md := symbolMetadata()
	for _, sym := range internable.Symbols() {
		var flags nodeFlags
		if md[sym].Named {
			flags |= flagNamed
		}
		for size := uint32(1); size <= maxInternedBytes; size++ {
			for look := uint32(0); look < 2; look++ {
				table[sym][size][look] = &node{
					symbol:    sym,
					flags:     flags,
					size:      Length{Bytes: size, Extent: Point{Column: size}},
					lookahead: look,
				}
			}
		}
	}
	return table
}()

// leafFor returns the node for a token, shared when possible.
func (p *parseRun) leafFor(tok Token) *node {
	size := Length{
		Bytes:  tok.EndByte - tok.StartByte,
		Extent: subPoint(tok.EndPoint, tok.StartPoint),
	}
	look := tok.LookEnd - tok.EndByte
	if internable.Has(tok.Symbol) && size.Extent.Row == 0 && size.Bytes <= maxInternedBytes && look < 2 && size.Bytes > 0 {
		return internedLeaves[tok.Symbol][size.Bytes][look]
	}
	n := p.arena.allocNode()
	*n = node{symbol: tok.Symbol, size: size, lookahead: look}
	if p.lang.named(tok.Symbol) {
		n.flags |= flagNamed
	}
	if p.lang.extra(tok.Symbol) {
		n.flags |= flagExtra
	}
	return n
}

// subPoint returns the extent from a to b, where a <= b.
func subPoint(b, a Point) Point {
	if b.Row > a.Row {
		return Point{Row: b.Row - a.Row, Column: b.Column}
	}
	return Point{Column: b.Column - a.Column}
}

// missingLeaf returns a zero-width node standing in for an absent token.
func (p *parseRun) missingLeaf(sym Symbol) *node {
	n := p.arena.allocNode()
	*n = node{symbol: sym, flags: flagMissing | flagHasError}
	if p.lang.named(sym) {
		n.flags |= flagNamed
	}
	return n
}

// newParent builds an interior node. lookEnd is the absolute end of
// examined input for the whole subtree and start its absolute start.
func (p *parseRun) newParent(sym Symbol, start Length, kids []*node, fields []FieldID, notes []Annotation, own bool, lookEnd uint32) *node {
	n := p.arena.allocNode()
	*n = node{symbol: sym, children: p.arena.allocChildren(kids), notes: notes}
	if hasField(fields) {
		n.fields = append([]FieldID(nil), fields...)
	}
	if p.lang.named(sym) {
		n.flags |= flagNamed
	}
	if own || sym == SymError || len(notes) > 0 {
		n.flags |= flagError
	}
	n.finish(p.arena)
	if end := start.Bytes + n.size.Bytes; lookEnd > end {
		n.lookahead = lookEnd - end
	}
	return n
}

// finish recomputes size, child offsets and derived flags from the
// children. The node's own lookahead is left alone; callers set it.
func (n *node) finish(a *nodeArena) {
	n.size = Length{}
	n.flags &^= flagHasError | flagSetDelimiter
	if n.symbol == SymMustacheSetDelimiter {
		n.flags |= flagSetDelimiter
	}
	if n.has(flagError) || n.has(flagMissing) {
		n.flags |= flagHasError
	}
	n.offsets = a.allocOffsets(len(n.children))
	for i, c := range n.children {
		n.offsets[i] = n.size
		n.size = n.size.add(c.size)
		n.flags |= c.flags & (flagHasError | flagSetDelimiter)
	}
}

// childLookEnd returns the furthest byte examined by the children, given the
// node's absolute start.
func (n *node) childLookEnd(start uint32) uint32 {
	var look uint32
	pos := start
	for _, c := range n.children {
		pos += c.size.Bytes
		if e := pos + c.lookahead; e > look {
			look = e
		}
	}
	return look
}

func hasField(fields []FieldID) bool {
	for _, f := range fields {
		if f != fieldNone {
			return true
		}
	}
	return false
}
