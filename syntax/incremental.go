package syntax

import (
	"bytes"
	"context"
	"log/slog"
)

// InputEdit describes one text change. Byte offsets are authoritative; the
// points are informational and recomputed from the texts.
type InputEdit struct {
	StartByte   uint32
	OldEndByte  uint32
	NewEndByte  uint32
	StartPoint  Point
	OldEndPoint Point
	NewEndPoint Point
}

// Strategy is how a tree was produced from its predecessor.
type Strategy uint8

const (
	// StrategyFull means the document was parsed from scratch.
	StrategyFull Strategy = iota
	// StrategySplice means one fragment was re-parsed and spliced in.
	StrategySplice
	// StrategyWidened means a fragment was spliced in after the region was
	// widened past the smallest candidate.
	StrategyWidened
)

func (s Strategy) String() string {
	switch s {
	case StrategyFull:
		return "full"
	case StrategySplice:
		return "splice"
	case StrategyWidened:
		return "widened"
	}
	return "unknown"
}

// ReparseReport records the outcome of a parse or reparse.
type ReparseReport struct {
	Strategy Strategy
	// Range is the re-parsed region in the new text.
	Range Range
	// Attempts counts the splice attempts made before the result.
	Attempts int
}

// Reparse updates old for newSrc with a default parser.
func Reparse(old *Tree, newSrc []byte, edits ...InputEdit) (*Tree, error) {
	return defaultParser.Reparse(old, newSrc, edits...)
}

// Reparse produces the tree of newSrc, given the tree of the text before
// edits were applied. Each edit is expressed in the coordinates produced by
// the edits before it. The result is structurally equal to Parse(newSrc);
// only the region around the edits is re-parsed when that can be validated.
// An error is returned, and old is left untouched, when the edits do not
// describe the change from old's source to newSrc.
func (p *Parser) Reparse(old *Tree, newSrc []byte, edits ...InputEdit) (*Tree, error) {
	if old == nil {
		return p.Parse(newSrc), nil
	}
	e, err := mergeEdits(old.source, newSrc, edits)
	if err != nil {
		return nil, err
	}
	if e.start == e.oldEnd && e.oldEnd == e.newEnd {
		at := Length{Bytes: e.start, Extent: PointAt(newSrc, int(e.start))}
		return &Tree{root: old.root, source: newSrc, lang: old.lang, report: ReparseReport{
			Strategy: StrategySplice,
			Range:    Range{StartByte: at.Bytes, EndByte: at.Bytes, StartPoint: at.Extent, EndPoint: at.Extent},
		}}, nil
	}
	return p.reparse(old, newSrc, e), nil
}

// editSpan is a set of edits merged into one: [start, oldEnd) in the old
// text became [start, newEnd) in the new one.
type editSpan struct {
	start, oldEnd, newEnd uint32
}

func (e editSpan) delta() int64 { return int64(e.newEnd) - int64(e.oldEnd) }

func invalidEdit(i int, reason string) error {
	return ErrInvalidEdit.With(slog.Int("edit", i), slog.String("reason", reason))
}

func mergeEdits(oldSrc, newSrc []byte, edits []InputEdit) (editSpan, error) {
	if len(edits) == 0 {
		if !bytes.Equal(oldSrc, newSrc) {
			return editSpan{}, invalidEdit(-1, "text changed without edits")
		}
		n := uint32(len(oldSrc))
		return editSpan{start: n, oldEnd: n, newEnd: n}, nil
	}

	var (
		m          editSpan
		length     = int64(len(oldSrc))
		delta      int64
		prevNewEnd int64
	)
	for i, e := range edits {
		start, oldEnd, newEnd := int64(e.StartByte), int64(e.OldEndByte), int64(e.NewEndByte)
		switch {
		case oldEnd < start:
			return editSpan{}, invalidEdit(i, "old end before start")
		case newEnd < start:
			return editSpan{}, invalidEdit(i, "new end before start")
		case oldEnd > length:
			return editSpan{}, invalidEdit(i, "old end past end of text")
		case i > 0 && start < prevNewEnd:
			return editSpan{}, invalidEdit(i, "edits overlap or are out of order")
		}
		if i == 0 {
			m.start = e.StartByte
		}
		m.oldEnd = uint32(oldEnd - delta)
		m.newEnd = e.NewEndByte
		delta += newEnd - oldEnd
		length += newEnd - oldEnd
		prevNewEnd = newEnd
	}
	if length != int64(len(newSrc)) {
		return editSpan{}, invalidEdit(len(edits)-1, "new text length does not match the edits")
	}
	if !bytes.Equal(oldSrc[:m.start], newSrc[:m.start]) || !bytes.Equal(oldSrc[m.oldEnd:], newSrc[m.newEnd:]) {
		return editSpan{}, invalidEdit(len(edits)-1, "text outside the edited range changed")
	}
	return m, nil
}

// pathEntry is one node on the path from the root to the edit.
type pathEntry struct {
	n     *node
	start Length
	index int // position in the parent's children
}

// editPath descends from root to the deepest interior node that contains the
// edited range. Templated strings are not entered: their contents are lexed
// in string mode and are never boundaries.
func editPath(root *node, start, oldEnd uint32) []pathEntry {
	path := []pathEntry{{n: root, index: -1}}
	for {
		cur := path[len(path)-1]
		if cur.n.symbol == SymString || cur.n.symbol == SymError {
			return path
		}
		next := -1
		for i, c := range cur.n.children {
			cs := cur.start.Bytes + cur.n.offsets[i].Bytes
			if cs > start {
				break
			}
			ce := cs + c.size.Bytes
			if oldEnd <= ce && start < ce {
				next = i
				break
			}
		}
		if next < 0 || cur.n.children[next].isLeaf() {
			return path
		}
		path = append(path, pathEntry{
			n:     cur.n.children[next],
			start: cur.start.add(cur.n.offsets[next]),
			index: next,
		})
	}
}

// isBoundary reports whether a node of this symbol can be re-parsed on its
// own. Section tags are excluded because their section checks its names.
func isBoundary(sym Symbol) bool {
	switch sym {
	case SymObject, SymPair, SymArray, SymString,
		SymMustacheVariable, SymMustacheUnescaped, SymMustachePartial,
		SymMustacheComment, SymMustacheSetDelimiter:
		return true
	}
	return isSectionSymbol(sym)
}

// leftLook returns the furthest byte examined while lexing everything before
// path[k].
func leftLook(path []pathEntry, k int) uint32 {
	var look uint32
	for j := 0; j < k; j++ {
		pe := path[j]
		for i := 0; i < path[j+1].index; i++ {
			c := pe.n.children[i]
			if e := pe.start.Bytes + pe.n.offsets[i].Bytes + c.size.Bytes + c.lookahead; e > look {
				look = e
			}
		}
	}
	return look
}

// contextClean reports whether the tree outside path[k] is free of errors.
func contextClean(path []pathEntry, k int) bool {
	for j := 0; j < k; j++ {
		pe := path[j]
		if pe.n.has(flagError) {
			return false
		}
		for i, c := range pe.n.children {
			if i != path[j+1].index && c.has(flagHasError) {
				return false
			}
		}
	}
	return true
}

// delimScope returns the nearest ancestor of path[k] that contains, before
// the path, a set-delimiter tag.
func delimScope(path []pathEntry, k int) int {
	for j := k - 1; j >= 0; j-- {
		pe := path[j]
		for i := 0; i < path[j+1].index; i++ {
			if pe.n.children[i].has(flagSetDelimiter) {
				return j
			}
		}
	}
	return 0
}

// delimsBefore returns the delimiters in effect at limit, given those in
// effect at the start of n. Only complete set-delimiter tags that end at or
// before limit count.
func delimsBefore(n *node, src []byte, start, limit uint32, d Delims) Delims {
	if !n.has(flagSetDelimiter) || start >= limit {
		return d
	}
	if n.symbol == SymMustacheSetDelimiter {
		if start+n.size.Bytes > limit {
			return d
		}
		pos := start
		for i, c := range n.children {
			if n.field(i) == FieldDelimiters && c.symbol == SymDelimiterSpec && !c.has(flagMissing) {
				if nd, ok := parseDelims(src[pos : pos+c.size.Bytes]); ok {
					d = nd
				}
			}
			pos += c.size.Bytes
		}
		return d
	}
	for i, c := range n.children {
		d = delimsBefore(c, src, start+n.offsets[i].Bytes, limit, d)
	}
	return d
}

// lexStateAt re-lexes src from start in state st and returns the state at
// end, which must be a token boundary.
func lexStateAt(src []byte, start Length, end uint32, st LexState) (LexState, bool) {
	l := NewLexer(src, st)
	l.Reset(int(start.Bytes), start.Extent, st)
	for uint32(l.Offset()) < end {
		tok := l.Next()
		if tok.Symbol == SymEnd || tok.EndByte > end {
			return LexState{}, false
		}
	}
	return l.State(), uint32(l.Offset()) == end
}

type candidate struct {
	k       int
	widened bool
}

// candidates lists the boundaries on path that may be re-parsed, innermost
// first.
func (p *Parser) candidates(old *Tree, path []pathEntry, e editSpan) []candidate {
	var out []candidate
	seen := make(map[int]bool)
	for k := len(path) - 1; k > 0; k-- {
		if !isBoundary(path[k].n.symbol) {
			continue
		}
		if leftLook(path, k) > e.start || !contextClean(path, k) {
			continue
		}
		c := candidate{k: k}
		for c.k > 0 && !delimsBefore(old.root, old.source, 0, path[c.k].start.Bytes, DefaultDelims).IsDefault() {
			scope := delimScope(path, c.k)
			if scope == 0 {
				// Set at document level: the fragment lexer starts with the
				// delimiters in effect instead.
				break
			}
			c.k = scope
			c.widened = true
		}
		if c.k == 0 || seen[c.k] {
			continue
		}
		seen[c.k] = true
		out = append(out, c)
	}
	return out
}

func (p *Parser) reparse(old *Tree, src []byte, e editSpan) *Tree {
	path := editPath(old.root, e.start, e.oldEnd)
	cands := p.candidates(old, path, e)
	p.logger.Log(context.Background(), levelTrace, "reparse candidates",
		slog.Int("depth", len(path)),
		slog.Int("candidates", len(cands)),
		slog.Uint64("start", uint64(e.start)),
		slog.Uint64("old_end", uint64(e.oldEnd)),
		slog.Uint64("new_end", uint64(e.newEnd)),
	)

	attempts := 0
	for i, c := range cands {
		// One attempt at the innermost boundary, then one widening.
		if i == 2 {
			break
		}
		attempts++
		t, reason := p.splice(old, src, path, c.k, e)
		if t != nil {
			if i > 0 || c.widened {
				t.report.Strategy = StrategyWidened
			}
			t.report.Attempts = attempts
			p.logger.Debug("reparse",
				slog.String("strategy", t.report.Strategy.String()),
				slog.String("node", p.lang.SymbolName(path[c.k].n.symbol)),
				slog.Uint64("start", uint64(t.report.Range.StartByte)),
				slog.Uint64("end", uint64(t.report.Range.EndByte)),
				slog.Int("attempts", attempts),
			)
			return t
		}
		p.logger.Debug("reparse boundary failure",
			slog.String("kind", ReparseBoundaryFailure.String()),
			slog.String("node", p.lang.SymbolName(path[c.k].n.symbol)),
			slog.Uint64("start", uint64(path[c.k].start.Bytes)),
			slog.String("reason", reason),
		)
	}

	t := p.Parse(src)
	t.report.Attempts = attempts
	p.logger.Debug("reparse",
		slog.String("strategy", t.report.Strategy.String()),
		slog.Int("attempts", attempts),
	)
	return t
}

// splice re-parses path[k] in isolation and, if the fragment fits exactly
// where the old node was, builds the new tree around it. It returns the
// reason for rejecting the fragment otherwise.
func (p *Parser) splice(old *Tree, src []byte, path []pathEntry, k int, e editSpan) (*Tree, string) {
	target := path[k]
	oldEnd := target.start.Bytes + target.n.size.Bytes
	newEnd := uint32(int64(oldEnd) + e.delta())

	// Boundaries begin in the default mode, so the delimiters are all the
	// left context the lexer needs.
	begin := LexState{Delims: delimsBefore(old.root, old.source, 0, target.start.Bytes, DefaultDelims)}

	var want LexState
	if target.n.has(flagHasError) {
		st, ok := lexStateAt(old.source, target.start, oldEnd, begin)
		if !ok {
			return nil, "old node does not end on a token boundary"
		}
		want = st
	} else {
		want = LexState{Delims: delimsBefore(target.n, old.source, target.start.Bytes, oldEnd, begin.Delims)}
	}

	run := newParseRun(p.lang, src, arenaClassIncremental)
	run.isolated = true
	run.lex.Reset(int(target.start.Bytes), target.start.Extent, begin)
	frag := run.parse(target.n.symbol, target.start)
	switch {
	case frag == nil:
		return nil, "fragment needs error recovery"
	case frag.has(flagHasError):
		return nil, "fragment has errors"
	case run.first != firstToken(target.n.children):
		return nil, "fragment starts with another token"
	case target.start.Bytes+frag.size.Bytes != newEnd:
		return nil, "fragment ends elsewhere"
	case run.shiftState != want:
		return nil, "lexer state differs after fragment"
	}

	root := spliceNode(run.arena, path, k, frag)
	t := newTree(root, src, p.lang)
	end := target.start.add(frag.size)
	t.report = ReparseReport{
		Strategy: StrategySplice,
		Range: Range{
			StartByte:  target.start.Bytes,
			EndByte:    end.Bytes,
			StartPoint: target.start.Extent,
			EndPoint:   end.Extent,
		},
	}
	return t, ""
}

// spliceNode replaces path[k] by frag, copying the nodes above it. All other
// subtrees are shared with the old tree.
func spliceNode(a *nodeArena, path []pathEntry, k int, frag *node) *node {
	n := frag
	for j := k - 1; j >= 0; j-- {
		pe := path[j]
		cp := a.allocNode()
		*cp = *pe.n
		cp.children = a.allocChildren(pe.n.children)
		cp.children[path[j+1].index] = n
		cp.finish(a)
		end := pe.start.Bytes + cp.size.Bytes
		if look := cp.childLookEnd(pe.start.Bytes); look > end && look-end > cp.lookahead {
			cp.lookahead = look - end
		}
		n = cp
	}
	return n
}
