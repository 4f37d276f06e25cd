package syntax

import (
	"bytes"
	"log/slog"
)

const levelTrace = slog.Level(-8)

// Parser turns source text into a Tree. A Parser holds no per-parse state
// and is safe for concurrent use.
type Parser struct {
	lang   *Language
	logger *slog.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithLogger sets the logger used for reparse diagnostics.
func WithLogger(l *slog.Logger) ParserOption {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewParser creates a parser for the MustacheJSON5 language.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		lang:   MustacheJSON5(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns the parser's language.
func (p *Parser) Language() *Language { return p.lang }

var defaultParser = NewParser()

// Parse parses src with a default parser.
func Parse(src []byte) *Tree { return defaultParser.Parse(src) }

// Parse parses src from scratch. It never fails: malformed input produces
// ERROR and MISSING nodes.
func (p *Parser) Parse(src []byte) *Tree {
	run := newParseRun(p.lang, src, arenaClassFull)
	run.lex.Reset(0, Point{}, DefaultLexState())
	root := run.parse(SymDocument, Length{})
	return newTree(root, src, p.lang)
}

// frame is one entry of the parse stack. alt is -1 for ERROR frames.
type frame struct {
	sym     Symbol
	alt     int
	pos     int
	start   Length
	kids    []*node
	fields  []FieldID
	notes   []Annotation // absolute byte ranges until the node is built
	lookEnd uint32
	field   FieldID
	forced  bool
	// expected and found describe why a forced frame was closed.
	expected TokenSet
	found    Symbol
	consumed int
}

type pendingNode struct {
	n   *node
	end uint32
}

// parseRun is the transient state of one parse.
type parseRun struct {
	lang  *Language
	src   []byte
	lex   *Lexer
	arena *nodeArena

	stack   []frame
	pending []pendingNode
	pos     Length // end of everything lexed except the lookahead token
	tok     Token
	have    bool

	// isolated runs parse one node for a reparse and give up on the first
	// error instead of recovering.
	isolated bool
	failed   bool
	root     *node
	// first is the kind of the first token the parse predicted on, and
	// shiftState the lexer state after the last shifted token.
	first      Symbol
	shiftState LexState
}

func newParseRun(lang *Language, src []byte, class arenaClass) *parseRun {
	return &parseRun{
		lang:  lang,
		src:   src,
		lex:   NewLexer(src, DefaultLexState()),
		arena: newNodeArena(class),
		stack: make([]frame, 0, 32),
	}
}

// syncTokens are the closers recovery resynchronizes on.
var syncTokens = tokenSetOf(
	SymEnd, SymRBrace, SymRBracket, SymComma, SymQuote,
	SymTagClose, SymTripleClose, SymDelimiterClose, SymCloseOpen,
)

// parse runs the engine with sym as the bottom frame starting at start. In
// isolated mode it returns nil if the node cannot be parsed cleanly.
func (p *parseRun) parse(sym Symbol, start Length) *node {
	p.pos = start
	p.stack = p.stack[:0]
	p.stack = append(p.stack, frame{sym: sym, start: start, lookEnd: start.Bytes})
	if p.isolated {
		tok := p.peek()
		alt := p.lang.predictAlt(sym, tok.Symbol)
		if alt < 0 || len(p.pending) > 0 || p.failed {
			return nil
		}
		p.first = tok.Symbol
		p.stack[0].alt = alt
	} else {
		p.stack[0].alt = 0
	}

	for p.root == nil && !p.failed {
		top := &p.stack[len(p.stack)-1]
		if top.alt < 0 {
			p.stepError()
			continue
		}
		prod := p.lang.production(top.sym, top.alt)
		if top.pos == len(prod.items) {
			if len(p.stack) == 1 && !p.isolated {
				if tok := p.peek(); tok.Symbol != SymEnd {
					top.lookEnd = max(top.lookEnd, tok.LookEnd)
					p.recover()
					continue
				}
			}
			p.reduce()
			continue
		}

		tok := p.peek()
		if p.failed {
			break
		}
		top.lookEnd = max(top.lookEnd, tok.LookEnd)
		it := prod.items[top.pos]
		if p.lang.IsTerminal(it.sym) {
			if tok.Symbol == it.sym {
				p.shift(it.field)
				top.pos++
				continue
			}
			p.recover()
			continue
		}
		if alt := p.lang.predictAlt(it.sym, tok.Symbol); alt >= 0 {
			if top.pos == len(prod.items)-1 && !p.lang.visible(top.sym) && !p.lang.visible(it.sym) && it.field == fieldNone {
				// Tail call: a hidden rule ending in a hidden rule reuses its
				// frame, so right recursion never deepens the stack.
				top.sym, top.alt, top.pos = it.sym, alt, 0
				continue
			}
			p.push(it.sym, alt, it.field)
			continue
		}
		if p.lang.nullable[it.sym] {
			top.pos++
			continue
		}
		p.recover()
	}
	if p.failed {
		return nil
	}
	return p.root
}

// peek returns the next significant token. Trivia and lexical errors met on
// the way are queued and attached to whichever frame consumes input next.
func (p *parseRun) peek() Token {
	if p.have {
		return p.tok
	}
	for {
		tok := p.lex.Next()
		switch tok.Symbol {
		case SymWhitespace, SymComment:
			p.queue(p.leafFor(tok), tok)
		case SymLexError:
			if p.isolated {
				p.failed = true
			}
			leaf := p.leafFor(tok)
			start := Length{Bytes: tok.StartByte, Extent: tok.StartPoint}
			note := Annotation{Kind: LexError, Message: tok.Reason.String(), Start: 0, End: tok.EndByte - tok.StartByte}
			n := p.newParent(SymError, start, []*node{leaf}, nil, []Annotation{note}, true, tok.LookEnd)
			p.queue(n, tok)
		default:
			p.tok = tok
			p.have = true
			return tok
		}
	}
}

func (p *parseRun) queue(n *node, tok Token) {
	p.pending = append(p.pending, pendingNode{n: n, end: tok.EndByte + n.lookahead})
	p.pos = Length{Bytes: tok.EndByte, Extent: tok.EndPoint}
}

// flush attaches queued trivia to the top frame.
func (p *parseRun) flush() {
	if len(p.pending) == 0 {
		return
	}
	top := &p.stack[len(p.stack)-1]
	for _, pn := range p.pending {
		top.kids = append(top.kids, pn.n)
		top.fields = append(top.fields, fieldNone)
		top.lookEnd = max(top.lookEnd, pn.end)
	}
	p.pending = p.pending[:0]
}

func (p *parseRun) shift(fid FieldID) {
	p.flush()
	top := &p.stack[len(p.stack)-1]
	top.kids = append(top.kids, p.leafFor(p.tok))
	top.fields = append(top.fields, fid)
	top.lookEnd = max(top.lookEnd, p.tok.LookEnd)
	top.consumed++
	p.pos = Length{Bytes: p.tok.EndByte, Extent: p.tok.EndPoint}
	p.have = false
	p.shiftState = p.lex.State()
}

func (p *parseRun) push(sym Symbol, alt int, fid FieldID) {
	p.flush()
	f := frame{sym: sym, alt: alt, start: p.pos, field: fid, lookEnd: p.pos.Bytes}
	n := len(p.stack)
	if n < cap(p.stack) {
		p.stack = p.stack[:n+1]
		old := &p.stack[n]
		f.kids, f.fields, f.notes = old.kids[:0], old.fields[:0], old.notes[:0]
		*old = f
		return
	}
	p.stack = append(p.stack, f)
}

// reduce pops the top frame. Hidden frames splice their children into the
// parent; visible frames become nodes.
func (p *parseRun) reduce() {
	n := len(p.stack)
	f := &p.stack[n-1]
	if n == 1 && !p.isolated {
		p.flush()
	}

	if f.alt >= 0 && !p.lang.visible(f.sym) && n > 1 {
		parent := &p.stack[n-2]
		for i, kid := range f.kids {
			fid := f.fields[i]
			if fid == fieldNone && f.field != fieldNone && !kid.has(flagExtra) && kid.symbol != SymError {
				fid = f.field
			}
			parent.kids = append(parent.kids, kid)
			parent.fields = append(parent.fields, fid)
		}
		parent.notes = append(parent.notes, f.notes...)
		parent.lookEnd = max(parent.lookEnd, f.lookEnd)
		parent.consumed += f.consumed
		if f.forced {
			parent.forced = true
			parent.expected, parent.found = f.expected, f.found
		}
		p.stack = p.stack[:n-1]
		parent.pos++
		return
	}

	built := p.build(f)
	fid, end := f.field, f.start.add(built.size).Bytes
	consumed := f.consumed
	p.stack = p.stack[:n-1]
	if n == 1 {
		p.root = built
		return
	}
	parent := &p.stack[n-2]
	parent.kids = append(parent.kids, built)
	parent.fields = append(parent.fields, fid)
	parent.lookEnd = max(parent.lookEnd, end+built.lookahead)
	parent.consumed += consumed
	// An ERROR node is inserted without advancing the parent.
	if parent.alt >= 0 && f.alt >= 0 {
		parent.pos++
	}
}

// build creates the node for a finished visible frame.
func (p *parseRun) build(f *frame) *node {
	var notes []Annotation
	if len(f.notes) > 0 {
		notes = make([]Annotation, 0, len(f.notes)+1)
		for _, a := range f.notes {
			a.Start -= f.start.Bytes
			a.End -= f.start.Bytes
			notes = append(notes, a)
		}
	}
	var size uint32
	for _, k := range f.kids {
		size += k.size.Bytes
	}
	switch {
	case f.alt < 0:
		found := "input"
		if len(f.kids) > 0 {
			found = p.displayName(firstToken(f.kids))
		}
		notes = append(notes, Annotation{Kind: SyntaxError, Message: "unexpected " + found, Start: 0, End: size})
	case f.forced:
		notes = append(notes, Annotation{
			Kind:    SyntaxError,
			Message: p.expectedMessage(f.sym, f.expected, f.found),
			Start:   size,
			End:     size,
		})
	}
	if f.alt >= 0 && isSectionSymbol(f.sym) {
		if note, ok := p.checkSectionNames(f); ok {
			notes = append(notes, note)
		}
	}
	return p.newParent(f.sym, f.start, f.kids, f.fields, notes, f.forced, f.lookEnd)
}

func firstToken(kids []*node) Symbol {
	for _, k := range kids {
		if k.has(flagExtra) {
			continue
		}
		for len(k.children) > 0 {
			k = k.children[0]
		}
		return k.symbol
	}
	return SymEnd
}

func isSectionSymbol(sym Symbol) bool {
	switch sym {
	case SymMustacheSection, SymMustacheInvertedSection,
		symObjectSection, symObjectInvertedSection,
		symArraySection, symArrayInvertedSection,
		symStringSection, symStringInvertedSection:
		return true
	}
	return false
}

// checkSectionNames compares the names of a section's open and close tags.
func (p *parseRun) checkSectionNames(f *frame) (Annotation, bool) {
	var openName, closeName []byte
	var closeStart, closeEnd uint32
	pos := f.start.Bytes
	for i, k := range f.kids {
		switch f.fields[i] {
		case FieldOpen:
			openName = tagNameIn(k, p.src, pos)
		case FieldClose:
			if !k.has(flagMissing) {
				closeName = tagNameIn(k, p.src, pos)
				closeStart, closeEnd = pos, pos+k.size.Bytes
			}
		}
		pos += k.size.Bytes
	}
	if openName == nil || closeName == nil || bytes.Equal(openName, closeName) {
		return Annotation{}, false
	}
	return Annotation{
		Kind:    DelimiterMismatchError,
		Message: "section " + quote(openName) + " closed by " + quote(closeName),
		Start:   closeStart - f.start.Bytes,
		End:     closeEnd - f.start.Bytes,
	}, true
}

// tagNameIn returns the text of the name field of a tag node starting at
// start, or nil.
func tagNameIn(n *node, src []byte, start uint32) []byte {
	pos := start
	for i, c := range n.children {
		if n.field(i) == FieldName && c.symbol == SymTagName && !c.has(flagMissing) {
			return src[pos : pos+c.size.Bytes]
		}
		pos += c.size.Bytes
	}
	return nil
}

func quote(b []byte) string { return `"` + string(b) + `"` }
