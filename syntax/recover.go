package syntax

import "strings"

// recover handles a lookahead token the top frame cannot use. It tries, in
// order: inserting the missing item, skipping a stray comma inside brackets,
// closing frames up to one that can continue with the token, and wrapping
// tokens in an ERROR node. Each branch
// either consumes input or pops frames, so the engine always terminates.
func (p *parseRun) recover() {
	if p.isolated {
		p.failed = true
		return
	}
	tok := p.tok
	top := &p.stack[len(p.stack)-1]
	prod := p.lang.production(top.sym, top.alt)

	if top.pos < len(prod.items) && prod.suffixFirst[top.pos+1].Has(tok.Symbol) {
		p.insertMissing()
		return
	}

	// A stray comma before a closing bracket is skipped and the body
	// resumes, so the brackets keep their contents.
	if tok.Symbol == SymComma && (top.sym == SymObject || top.sym == SymArray) && top.pos == len(prod.items)-1 {
		top.pos--
		p.push(SymError, -1, fieldNone)
		p.skipInto()
		return
	}

	if syncTokens.Has(tok.Symbol) {
		for i := len(p.stack) - 2; i >= 0; i-- {
			f := &p.stack[i]
			if f.alt < 0 {
				p.popTo(i)
				return
			}
			fp := p.lang.production(f.sym, f.alt)
			if f.pos < len(fp.items) && fp.suffixFirst[f.pos+1].Has(tok.Symbol) ||
				i == 0 && tok.Symbol == SymEnd {
				p.popTo(i)
				return
			}
		}
	}

	p.push(SymError, -1, fieldNone)
	p.skipInto()
}

// insertMissing records the expected item of the top frame as absent.
func (p *parseRun) insertMissing() {
	p.flush()
	top := &p.stack[len(p.stack)-1]
	it := p.lang.production(top.sym, top.alt).items[top.pos]
	at := p.pos.Bytes
	if p.lang.IsTerminal(it.sym) || p.lang.visible(it.sym) {
		top.kids = append(top.kids, p.missingLeaf(it.sym))
		top.fields = append(top.fields, it.field)
	}
	top.notes = append(top.notes, Annotation{
		Kind:    SyntaxError,
		Message: "missing " + p.displayName(it.sym),
		Start:   at,
		End:     at,
	})
	top.pos++
}

// popTo closes every frame above index i. The top frame and any frame that
// still needed input are flagged as errors.
func (p *parseRun) popTo(i int) {
	found := p.tok.Symbol
	for j := len(p.stack) - 1; j > i; j-- {
		f := &p.stack[j]
		prod := p.lang.production(f.sym, f.alt)
		if j == len(p.stack)-1 || !prod.suffixNullable[f.pos] {
			f.forced = true
			f.expected, f.found = prod.suffixFirst[f.pos], found
		}
		f.pos = len(prod.items)
		p.reduce()
	}
}

// skipInto feeds the lookahead token to the ERROR frame on top. A token that
// starts content is parsed as a whole value so brackets stay balanced.
func (p *parseRun) skipInto() {
	tok := p.tok
	switch {
	case p.lang.first[symContent].Has(tok.Symbol):
		p.push(symContent, p.lang.predictAlt(symContent, tok.Symbol), fieldNone)
	case tok.Symbol == SymCloseOpen:
		p.push(SymMustacheSectionClose, 0, fieldNone)
	default:
		p.shift(fieldNone)
	}
}

// stepError advances an ERROR frame: it yields once it has consumed input
// and the frame below can use the lookahead, and otherwise swallows it.
func (p *parseRun) stepError() {
	tok := p.peek()
	n := len(p.stack)
	f := &p.stack[n-1]
	f.lookEnd = max(f.lookEnd, tok.LookEnd)
	if f.consumed > 0 {
		below := &p.stack[n-2]
		bp := p.lang.production(below.sym, below.alt)
		canTake := below.pos < len(bp.items) &&
			(bp.suffixFirst[below.pos].Has(tok.Symbol) || bp.suffixFirst[below.pos+1].Has(tok.Symbol))
		if canTake || syncTokens.Has(tok.Symbol) {
			p.reduce()
			return
		}
	}
	p.skipInto()
}

// displayName is how a symbol is named in messages.
func (p *parseRun) displayName(sym Symbol) string {
	switch sym {
	case SymEnd:
		return "end of input"
	case SymStringLiteral:
		return "string"
	}
	md := p.lang.SymbolMetadata[sym]
	if md.Alias != sym {
		md = p.lang.SymbolMetadata[md.Alias]
	}
	switch {
	case !md.Visible:
		return strings.ReplaceAll(strings.TrimPrefix(md.Name, "_"), "_", " ")
	case md.Named:
		return md.Name
	}
	return `"` + md.Name + `"`
}

func (p *parseRun) expectedMessage(sym Symbol, expected TokenSet, found Symbol) string {
	if expected == 0 {
		return "incomplete " + p.displayName(sym)
	}
	syms := expected.Symbols()
	names := make([]string, 0, 4)
	for _, s := range syms {
		if len(names) == 4 {
			names = append(names, "...")
			break
		}
		names = append(names, p.displayName(s))
	}
	return "expected " + strings.Join(names, " or ") + ", found " + p.displayName(found)
}
