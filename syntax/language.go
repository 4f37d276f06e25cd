// Package syntax implements a lossless concrete syntax tree parser for JSON5
// documents with embedded Mustache template tags.
//
// The package is organized the way a tree-sitter runtime is: a Language holds
// the compiled grammar tables, a Lexer produces tokens under an explicit
// lexical mode, a Parser drives the tables and builds immutable nodes, and
// Reparse updates a previous Tree after an edit while sharing every subtree
// the edit did not touch.
package syntax

import "math/bits"

// Symbol is a grammar symbol ID (terminal or nonterminal).
type Symbol uint16

// FieldID is a named field index. Zero means no field.
type FieldID uint16

// Terminal symbols. Their order is the token set bit order.
const (
	SymEnd Symbol = iota
	SymLBrace
	SymRBrace
	SymLBracket
	SymRBracket
	SymColon
	SymComma
	SymStringLiteral
	SymQuote
	SymStringContent
	SymNumber
	SymTrue
	SymFalse
	SymNull
	SymIdentifier
	SymText
	SymComment
	SymWhitespace
	SymTagOpen
	SymTagClose
	SymTripleOpen
	SymTripleClose
	SymAmpersandOpen
	SymSectionOpen
	SymInvertedOpen
	SymCloseOpen
	SymPartialOpen
	SymCommentOpen
	SymDelimiterOpen
	SymDelimiterClose
	SymTagName
	SymPipe
	SymCommentText
	SymDelimiterSpec
	SymLexError

	tokenCount
)

// Visible nonterminal symbols.
const (
	SymDocument Symbol = tokenCount + iota
	SymObject
	SymPair
	SymArray
	SymString
	SymMustacheVariable
	SymMustacheUnescaped
	SymMustachePartial
	SymMustacheComment
	SymMustacheSetDelimiter
	SymMustacheSection
	SymMustacheInvertedSection
	SymMustacheSectionOpen
	SymMustacheInvertedSectionOpen
	SymMustacheSectionClose
	SymSectionParameters
	SymError

	// Sections whose bodies are parsed in object, array or string context.
	// They alias to SymMustacheSection / SymMustacheInvertedSection.
	symObjectSection
	symObjectInvertedSection
	symArraySection
	symArrayInvertedSection
	symStringSection
	symStringInvertedSection

	// Hidden helper rules; their children are spliced into the parent.
	symContentList
	symContent
	symValue
	symStringValue
	symValueSections
	symMoreSections
	symKey
	symObjectBody
	symAfterPair
	symAfterObjectTemplate
	symObjectTemplate
	symArrayBody
	symAfterValue
	symAfterArrayTemplate
	symArrayTemplate
	symStringBody
	symStringPart
	symTagExpr
	symTagArgs
	symSectionExpr
	symSectionArgs
	symParamNames
	symCommentBody

	symbolCount
)

// Field IDs.
const (
	fieldNone FieldID = iota
	FieldKey
	FieldValue
	FieldName
	FieldOpen
	FieldClose
	FieldParameters
	FieldDelimiters

	fieldCount
)

// SymbolMetadata holds display information about a symbol.
type SymbolMetadata struct {
	Name    string
	Visible bool
	Named   bool
	Extra   bool
	// Alias is the canonical symbol this one is reported as. It equals the
	// symbol itself when there is no alias.
	Alias Symbol
}

// TokenSet is a set of terminal symbols.
type TokenSet uint64

// Has reports whether the set contains sym.
func (s TokenSet) Has(sym Symbol) bool {
	return sym < tokenCount && s&(1<<sym) != 0
}

func (s TokenSet) with(sym Symbol) TokenSet { return s | 1<<sym }

// Len returns the number of symbols in the set.
func (s TokenSet) Len() int { return bits.OnesCount64(uint64(s)) }

// Symbols returns the members of the set in ascending order.
func (s TokenSet) Symbols() []Symbol {
	out := make([]Symbol, 0, s.Len())
	for sym := Symbol(0); sym < tokenCount; sym++ {
		if s.Has(sym) {
			out = append(out, sym)
		}
	}
	return out
}

func tokenSetOf(syms ...Symbol) TokenSet {
	var s TokenSet
	for _, sym := range syms {
		s = s.with(sym)
	}
	return s
}

// Language holds the compiled grammar: symbol metadata, field names and the
// predictive parse tables. A Language is immutable and safe to share.
type Language struct {
	Name string

	SymbolCount uint32
	TokenCount  uint32

	SymbolNames    []string
	SymbolMetadata []SymbolMetadata
	FieldNames     []string // index 0 is ""

	rules    [][]production // [nonterminal-tokenCount][alternative]
	nullable []bool         // [symbol]
	first    []TokenSet     // [symbol]
	predict  [][]int16      // [nonterminal-tokenCount][terminal] -> alternative, -1 if none

	symbolsByName map[string][]Symbol
	fieldsByName  map[string]FieldID
}

// SymbolName returns the display name of sym.
func (l *Language) SymbolName(sym Symbol) string {
	if int(sym) < len(l.SymbolNames) {
		return l.SymbolNames[sym]
	}
	return ""
}

// SymbolByName returns the canonical symbol with the given display name.
// Anonymous tokens are looked up by their literal text, e.g. "{{#".
func (l *Language) SymbolByName(name string) (Symbol, bool) {
	syms := l.symbolsByName[name]
	if len(syms) == 0 {
		return 0, false
	}
	return syms[0], true
}

// SymbolsByName returns every symbol that displays as name, canonical first.
func (l *Language) SymbolsByName(name string) []Symbol {
	return l.symbolsByName[name]
}

// FieldByName returns the field ID for name.
func (l *Language) FieldByName(name string) (FieldID, bool) {
	id, ok := l.fieldsByName[name]
	return id, ok
}

// FieldName returns the name of a field ID, or "" for none.
func (l *Language) FieldName(id FieldID) string {
	if int(id) < len(l.FieldNames) {
		return l.FieldNames[id]
	}
	return ""
}

// IsTerminal reports whether sym is a token symbol.
func (l *Language) IsTerminal(sym Symbol) bool { return uint32(sym) < l.TokenCount }

// Canonical resolves aliases.
func (l *Language) Canonical(sym Symbol) Symbol {
	if int(sym) < len(l.SymbolMetadata) {
		return l.SymbolMetadata[sym].Alias
	}
	return sym
}

func (l *Language) visible(sym Symbol) bool { return l.SymbolMetadata[sym].Visible }

func (l *Language) named(sym Symbol) bool { return l.SymbolMetadata[sym].Named }

func (l *Language) extra(sym Symbol) bool { return l.SymbolMetadata[sym].Extra }

// First returns the FIRST set of sym.
func (l *Language) First(sym Symbol) TokenSet { return l.first[sym] }

// Nullable reports whether sym can derive the empty string.
func (l *Language) Nullable(sym Symbol) bool { return l.nullable[sym] }
