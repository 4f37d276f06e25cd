package syntax

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

var (
	languageOnce sync.Once
	language     *Language
)

// MustacheJSON5 returns the compiled grammar for JSON5 with embedded Mustache
// tags. The result is shared; callers must not modify it.
func MustacheJSON5() *Language {
	languageOnce.Do(func() {
		language = compileLanguage("mustache_json5", symbolMetadata(), grammarRules())
	})
	return language
}

// compileLanguage computes nullable flags, FIRST sets, suffix sets and the
// predict table. It panics on a malformed rule set, which is a programming
// error caught by the package tests.
func compileLanguage(name string, md []SymbolMetadata, defs []ruleDef) *Language {
	lang := &Language{
		Name:           name,
		SymbolCount:    uint32(len(md)),
		TokenCount:     uint32(tokenCount),
		SymbolMetadata: md,
		FieldNames:     fieldNames,
		rules:          make([][]production, len(md)-int(tokenCount)),
		nullable:       make([]bool, len(md)),
		first:          make([]TokenSet, len(md)),
		symbolsByName:  make(map[string][]Symbol),
		fieldsByName:   make(map[string]FieldID),
	}
	lang.SymbolNames = make([]string, len(md))
	for i, m := range md {
		lang.SymbolNames[i] = m.Name
	}
	for i, name := range fieldNames {
		if i > 0 {
			lang.fieldsByName[name] = FieldID(i)
		}
	}
	for s := Symbol(0); int(s) < len(md); s++ {
		if !md[s].Visible {
			continue
		}
		key := md[md[s].Alias].Name
		if md[s].Alias == s {
			lang.symbolsByName[key] = append([]Symbol{s}, lang.symbolsByName[key]...)
		} else {
			lang.symbolsByName[key] = append(lang.symbolsByName[key], s)
		}
	}

	for _, def := range defs {
		if def.sym < tokenCount {
			panic(fmt.Sprintf("syntax: rule for terminal %s", md[def.sym].Name))
		}
		idx := def.sym - tokenCount
		if lang.rules[idx] != nil {
			panic(fmt.Sprintf("syntax: duplicate rule %s", md[def.sym].Name))
		}
		prods := make([]production, len(def.alts))
		for i, items := range def.alts {
			if len(items) == 0 && i != len(def.alts)-1 {
				panic(fmt.Sprintf("syntax: empty alternative of %s is not last", md[def.sym].Name))
			}
			prods[i] = production{items: items}
		}
		lang.rules[idx] = prods
	}
	for i, prods := range lang.rules {
		// ERROR frames are built by recovery and never predicted.
		if prods == nil && Symbol(i)+tokenCount != SymError {
			panic(fmt.Sprintf("syntax: no rule for %s", md[Symbol(i)+tokenCount].Name))
		}
	}
	for s := Symbol(0); s < tokenCount; s++ {
		lang.first[s] = TokenSet(0).with(s)
	}

	// Fixpoint over nullable and FIRST.
	for changed := true; changed; {
		changed = false
		for i, prods := range lang.rules {
			nt := Symbol(i) + tokenCount
			for _, p := range prods {
				set, null := lang.sequenceFirst(p.items)
				if merged := lang.first[nt] | set; merged != lang.first[nt] {
					lang.first[nt] = merged
					changed = true
				}
				if null && !lang.nullable[nt] {
					lang.nullable[nt] = true
					changed = true
				}
			}
		}
	}

	lang.predict = make([][]int16, len(lang.rules))
	for i, prods := range lang.rules {
		row := make([]int16, tokenCount)
		for t := range row {
			row[t] = -1
		}
		for a := range prods {
			p := &prods[a]
			p.suffixFirst = make([]TokenSet, len(p.items)+1)
			p.suffixNullable = make([]bool, len(p.items)+1)
			p.suffixNullable[len(p.items)] = true
			for k := len(p.items) - 1; k >= 0; k-- {
				s := p.items[k].sym
				p.suffixFirst[k] = lang.first[s]
				if lang.nullable[s] {
					p.suffixFirst[k] |= p.suffixFirst[k+1]
				}
				p.suffixNullable[k] = lang.nullable[s] && p.suffixNullable[k+1]
			}
			for _, t := range p.suffixFirst[0].Symbols() {
				if row[t] < 0 {
					row[t] = int16(a)
				}
			}
		}
		lang.predict[i] = row
	}
	return lang
}

func (l *Language) sequenceFirst(items []item) (TokenSet, bool) {
	var set TokenSet
	for _, it := range items {
		set |= l.first[it.sym]
		if !l.nullable[it.sym] {
			return set, false
		}
	}
	return set, true
}

func (l *Language) productions(nt Symbol) []production { return l.rules[nt-tokenCount] }

func (l *Language) production(nt Symbol, alt int) *production { return &l.rules[nt-tokenCount][alt] }

// predictAlt returns the alternative of nt selected by the lookahead token,
// or -1.
func (l *Language) predictAlt(nt Symbol, tok Symbol) int {
	return int(l.predict[nt-tokenCount][tok])
}

// Dump writes the productions, FIRST sets and the predict table in a stable
// textual form.
func (l *Language) Dump(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "language %s: %d symbols, %d tokens\n\n", l.Name, l.SymbolCount, l.TokenCount)
	b.WriteString("tokens:\n")
	for s := Symbol(0); s < tokenCount; s++ {
		md := l.SymbolMetadata[s]
		var flags []string
		if md.Named {
			flags = append(flags, "named")
		}
		if md.Extra {
			flags = append(flags, "extra")
		}
		if md.Alias != s {
			flags = append(flags, "alias="+l.SymbolNames[md.Alias])
		}
		fmt.Fprintf(&b, "  %3d %-16s %s\n", s, quoteSymbol(md.Name), strings.Join(flags, ","))
	}
	b.WriteString("\nrules:\n")
	for i, prods := range l.rules {
		nt := Symbol(i) + tokenCount
		if nt == SymError {
			continue
		}
		header := l.SymbolNames[nt]
		if a := l.SymbolMetadata[nt].Alias; a != nt {
			header += " -> " + l.SymbolNames[a]
		}
		if l.nullable[nt] {
			header += " (nullable)"
		}
		fmt.Fprintf(&b, "  %s\n", header)
		for a, p := range prods {
			parts := make([]string, 0, len(p.items))
			for _, it := range p.items {
				s := quoteSymbol(l.SymbolNames[it.sym])
				if it.field != fieldNone {
					s = l.FieldNames[it.field] + ":" + s
				}
				parts = append(parts, s)
			}
			if len(parts) == 0 {
				parts = append(parts, "ε")
			}
			fmt.Fprintf(&b, "    %d: %s\n", a, strings.Join(parts, " "))
		}
		fmt.Fprintf(&b, "    first: %s\n", l.formatSet(l.first[nt]))
		b.WriteString("    predict:")
		row := l.predict[i]
		keys := make([]int, 0, len(row))
		for t, a := range row {
			if a >= 0 {
				keys = append(keys, t)
			}
		}
		sort.Ints(keys)
		for _, t := range keys {
			fmt.Fprintf(&b, " %s=%d", quoteSymbol(l.SymbolNames[t]), row[t])
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (l *Language) formatSet(set TokenSet) string {
	names := make([]string, 0, set.Len())
	for _, s := range set.Symbols() {
		names = append(names, quoteSymbol(l.SymbolNames[s]))
	}
	return "{" + strings.Join(names, " ") + "}"
}

func quoteSymbol(name string) string {
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return fmt.Sprintf("%q", name)
		}
	}
	return name
}
