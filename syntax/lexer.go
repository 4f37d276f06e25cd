package syntax

import (
	"bytes"
	"strings"
	"unicode"
	"unicode/utf8"
)

// LexMode is the lexer's current scanning context.
type LexMode uint8

const (
	// ModeDefault scans JSON5 structure and values.
	ModeDefault LexMode = iota
	// ModeString scans the inside of a string that contains tags.
	ModeString
	// ModeTag scans the inside of a mustache tag.
	ModeTag
	// ModeComment scans the inside of a {{! }} comment tag.
	ModeComment
)

func (m LexMode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeString:
		return "string"
	case ModeTag:
		return "tag"
	case ModeComment:
		return "comment"
	}
	return "unknown"
}

// Delims is a mustache delimiter pair.
type Delims struct {
	Open  string
	Close string
}

// DefaultDelims are the standard {{ }} delimiters.
var DefaultDelims = Delims{Open: "{{", Close: "}}"}

// IsDefault reports whether d are the standard delimiters.
func (d Delims) IsDefault() bool { return d == DefaultDelims }

// LexState is everything the lexer needs to resume scanning at a token
// boundary. It is a comparable value: two equal states scan identical input
// identically.
type LexState struct {
	Mode LexMode
	// Quote is the quote byte of the string being scanned in ModeString.
	Quote byte
	// Tag is the opener kind of the tag being scanned in ModeTag or
	// ModeComment.
	Tag Symbol
	// Return is the mode resumed when the current tag closes.
	Return LexMode
	Delims Delims
	// Pending holds a validated delimiter spec that takes effect when the
	// set-delimiter tag closes.
	Pending Delims
}

// DefaultLexState is the state at the start of a document.
func DefaultLexState() LexState {
	return LexState{Delims: DefaultDelims}
}

// LexErrorReason describes why a lexical error token was produced.
type LexErrorReason uint8

const (
	LexOK LexErrorReason = iota
	LexUnterminatedString
	LexUnterminatedTag
	LexUnterminatedComment
	LexInvalidTagContent
	LexInvalidDelimiters
)

func (r LexErrorReason) String() string {
	switch r {
	case LexOK:
		return "ok"
	case LexUnterminatedString:
		return "unterminated string"
	case LexUnterminatedTag:
		return "unterminated tag"
	case LexUnterminatedComment:
		return "unterminated comment"
	case LexInvalidTagContent:
		return "invalid character in tag"
	case LexInvalidDelimiters:
		return "invalid set-delimiter spec"
	}
	return "lexical error"
}

// Token is a lexed token with position info.
type Token struct {
	Symbol     Symbol
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	// LookEnd is one past the last byte examined to produce the token.
	// Examining the end of input counts as examining byte len(src).
	LookEnd uint32
	// Reason is set for SymLexError tokens.
	Reason LexErrorReason
}

// Text returns the token's source text.
func (t Token) Text(src []byte) string { return string(src[t.StartByte:t.EndByte]) }

// Lexer is a mode-sensitive scanner. All context lives in its LexState, so a
// lexer can be positioned anywhere a token boundary and a state are known.
type Lexer struct {
	src   []byte
	pos   int
	row   uint32
	col   uint32
	state LexState
	look  int

	tripleClose string
	delimClose  string
}

// NewLexer returns a lexer positioned at the start of src.
func NewLexer(src []byte, state LexState) *Lexer {
	l := &Lexer{src: src}
	l.Reset(0, Point{}, state)
	return l
}

// Reset repositions the lexer. offset must be a token boundary and point
// its position.
func (l *Lexer) Reset(offset int, point Point, state LexState) {
	if state.Delims.Open == "" || state.Delims.Close == "" {
		state.Delims = DefaultDelims
	}
	l.pos = offset
	l.row = point.Row
	l.col = point.Column
	l.state = state
	l.look = 0
	l.setDelims(state.Delims)
}

// State returns the lexer state at the current position.
func (l *Lexer) State() LexState { return l.state }

// Offset returns the current byte offset.
func (l *Lexer) Offset() int { return l.pos }

func (l *Lexer) setDelims(d Delims) {
	l.state.Delims = d
	l.tripleClose = "}" + d.Close
	l.delimClose = "=" + d.Close
}

// Next scans one token. At end of input it returns a SymEnd token; it never
// fails.
func (l *Lexer) Next() Token {
	l.look = 0
	switch l.state.Mode {
	case ModeString:
		return l.scanString()
	case ModeTag, ModeComment:
		return l.scanTag()
	}
	return l.scanDefault()
}

// Tokenize scans src from the start and returns every token except the
// final end-of-input token.
func Tokenize(src []byte) []Token {
	l := NewLexer(src, DefaultLexState())
	var toks []Token
	for {
		tok := l.Next()
		if tok.Symbol == SymEnd {
			return toks
		}
		toks = append(toks, tok)
	}
}

func (l *Lexer) mark(end int) {
	if end > l.look {
		l.look = end
	}
}

// byteAt returns src[i] and records it as examined.
func (l *Lexer) byteAt(i int) (byte, bool) {
	if i >= len(l.src) {
		l.mark(len(l.src) + 1)
		return 0, false
	}
	l.mark(i + 1)
	return l.src[i], true
}

func (l *Lexer) hasPrefix(i int, s string) bool {
	for k := 0; k < len(s); k++ {
		b, ok := l.byteAt(i + k)
		if !ok || b != s[k] {
			return false
		}
	}
	return true
}

// find returns the offset of the first s at or after i, or -1. Unless
// multiline is set the search stops at the end of the line.
func (l *Lexer) find(i int, s string, multiline bool) int {
	for j := i; ; j++ {
		if l.hasPrefix(j, s) {
			return j
		}
		b, ok := l.byteAt(j)
		if !ok || (!multiline && b == '\n') {
			return -1
		}
	}
}

func (l *Lexer) lineEnd(i int) int {
	for {
		b, ok := l.byteAt(i)
		if !ok || b == '\n' {
			return i
		}
		i++
	}
}

func (l *Lexer) emit(sym Symbol, end int) Token {
	if end > len(l.src) {
		end = len(l.src)
	}
	tok := Token{
		Symbol:     sym,
		StartByte:  uint32(l.pos),
		EndByte:    uint32(end),
		StartPoint: Point{Row: l.row, Column: l.col},
	}
	text := l.src[l.pos:end]
	if n := bytes.Count(text, []byte{'\n'}); n > 0 {
		l.row += uint32(n)
		l.col = uint32(len(text) - bytes.LastIndexByte(text, '\n') - 1)
	} else {
		l.col += uint32(len(text))
	}
	l.pos = end
	tok.EndPoint = Point{Row: l.row, Column: l.col}
	l.mark(end)
	tok.LookEnd = uint32(l.look)
	l.look = 0
	return tok
}

func (l *Lexer) emitError(reason LexErrorReason, end int) Token {
	tok := l.emit(SymLexError, end)
	tok.Reason = reason
	return tok
}

func (l *Lexer) emitEnd() Token {
	l.mark(len(l.src) + 1)
	return l.emit(SymEnd, l.pos)
}

// tagAt checks for a tag opener at i whose closer is present. It returns the
// opener kind, the end of the opener and the end of the closer.
func (l *Lexer) tagAt(i int, inString bool) (kind Symbol, openEnd, closeEnd int, ok bool) {
	d := l.state.Delims
	if !l.hasPrefix(i, d.Open) {
		return 0, 0, 0, false
	}
	kind, openEnd = SymTagOpen, i+len(d.Open)
	closer := d.Close
	if b, ok := l.byteAt(openEnd); ok {
		switch b {
		case '{':
			kind, closer = SymTripleOpen, l.tripleClose
		case '&':
			kind = SymAmpersandOpen
		case '#':
			kind = SymSectionOpen
		case '^':
			kind = SymInvertedOpen
		case '/':
			kind = SymCloseOpen
		case '>':
			kind = SymPartialOpen
		case '!':
			kind = SymCommentOpen
		case '=':
			if !inString {
				kind, closer = SymDelimiterOpen, l.delimClose
			}
		}
		if kind != SymTagOpen {
			openEnd++
		}
	}
	at := l.find(openEnd, closer, kind == SymCommentOpen && !inString)
	if at < 0 {
		return kind, openEnd, 0, false
	}
	return kind, openEnd, at + len(closer), true
}

func (l *Lexer) enterTag(kind Symbol, ret LexMode) {
	l.state.Tag = kind
	l.state.Return = ret
	if kind == SymCommentOpen {
		l.state.Mode = ModeComment
	} else {
		l.state.Mode = ModeTag
	}
}

func (l *Lexer) scanDefault() Token {
	start := l.pos
	b, ok := l.byteAt(start)
	if !ok {
		return l.emitEnd()
	}
	if b == l.state.Delims.Open[0] && l.hasPrefix(start, l.state.Delims.Open) {
		kind, openEnd, _, ok := l.tagAt(start, false)
		if ok {
			l.enterTag(kind, ModeDefault)
			return l.emit(kind, openEnd)
		}
		// {{{name}} reads as '{' followed by a variable tag.
		if b == '{' {
			if _, _, _, ok := l.tagAt(start+1, false); ok {
				return l.emit(SymLBrace, start+1)
			}
		}
		if kind == SymCommentOpen {
			return l.emitError(LexUnterminatedComment, len(l.src))
		}
		return l.emitError(LexUnterminatedTag, l.lineEnd(start))
	}

	switch b {
	case '{':
		return l.emit(SymLBrace, start+1)
	case '}':
		return l.emit(SymRBrace, start+1)
	case '[':
		return l.emit(SymLBracket, start+1)
	case ']':
		return l.emit(SymRBracket, start+1)
	case ':':
		return l.emit(SymColon, start+1)
	case ',':
		return l.emit(SymComma, start+1)
	case '"', '\'':
		return l.scanQuote(start, b)
	case '/':
		next, _ := l.byteAt(start + 1)
		switch next {
		case '/':
			return l.emit(SymComment, l.lineEnd(start))
		case '*':
			end := l.find(start+2, "*/", true)
			if end < 0 {
				return l.emitError(LexUnterminatedComment, len(l.src))
			}
			return l.emit(SymComment, end+2)
		}
	}

	if end := l.spaceRun(start); end > start {
		return l.emit(SymWhitespace, end)
	}
	end := l.wordRun(start)
	return l.emit(classifyWord(l.src[start:end]), end)
}

func (l *Lexer) spaceRun(i int) int {
	for i < len(l.src) {
		b, _ := l.byteAt(i)
		if b < utf8.RuneSelf {
			if !isASCIISpace(b) {
				return i
			}
			i++
			continue
		}
		r, size := utf8.DecodeRune(l.src[i:])
		l.mark(i + size)
		if !isUnicodeSpace(r) {
			return i
		}
		i += size
	}
	l.mark(len(l.src) + 1)
	return i
}

func (l *Lexer) wordRun(start int) int {
	open := l.state.Delims.Open
	i := start
	for {
		b, ok := l.byteAt(i)
		if !ok {
			return i
		}
		if b < utf8.RuneSelf {
			if isASCIISpace(b) || strings.IndexByte(`{}[]:,"'`, b) >= 0 {
				return i
			}
			if b == '/' && i > start {
				if next, ok := l.byteAt(i + 1); ok && (next == '/' || next == '*') {
					return i
				}
			}
			if i > start && b == open[0] && l.hasPrefix(i, open) {
				return i
			}
			i++
			continue
		}
		r, size := utf8.DecodeRune(l.src[i:])
		l.mark(i + size)
		if isUnicodeSpace(r) {
			return i
		}
		i += size
	}
}

// scanQuote pre-scans a quoted string. A string without tags is a single
// literal token; a string with tags opens ModeString.
func (l *Lexer) scanQuote(start int, quote byte) Token {
	open := l.state.Delims.Open
	tags := false
	i := start + 1
	for {
		b, ok := l.byteAt(i)
		if !ok || b == '\n' {
			return l.emitError(LexUnterminatedString, i)
		}
		switch {
		case b == quote:
			if !tags {
				return l.emit(SymStringLiteral, i+1)
			}
			l.state.Mode = ModeString
			l.state.Quote = quote
			return l.emit(SymQuote, start+1)
		case b == '\\':
			i += l.escapeLen(i)
		case b == open[0]:
			if _, _, closeEnd, ok := l.tagAt(i, true); ok {
				tags = true
				i = closeEnd
			} else {
				i++
			}
		default:
			i++
		}
	}
}

// escapeLen returns the length of the escape sequence at i, treating a
// backslash before a line break as a line continuation.
func (l *Lexer) escapeLen(i int) int {
	next, ok := l.byteAt(i + 1)
	if !ok {
		return 1
	}
	if next == '\r' {
		if after, ok := l.byteAt(i + 2); ok && after == '\n' {
			return 3
		}
	}
	return 2
}

func (l *Lexer) scanString() Token {
	start := l.pos
	quote := l.state.Quote
	open := l.state.Delims.Open
	b, ok := l.byteAt(start)
	if !ok {
		l.state.Mode, l.state.Quote = ModeDefault, 0
		return l.emitEnd()
	}
	if b == quote {
		l.state.Mode, l.state.Quote = ModeDefault, 0
		return l.emit(SymQuote, start+1)
	}
	if b == open[0] {
		if kind, openEnd, _, ok := l.tagAt(start, true); ok {
			l.enterTag(kind, ModeString)
			return l.emit(kind, openEnd)
		}
	}
	i := start
	for {
		b, ok := l.byteAt(i)
		if !ok || b == quote || b == '\n' {
			break
		}
		if b == '\\' {
			i += l.escapeLen(i)
			continue
		}
		if i > start && b == open[0] {
			if _, _, _, ok := l.tagAt(i, true); ok {
				break
			}
		}
		i++
	}
	if i > len(l.src) {
		i = len(l.src)
	}
	if i == start {
		// A raw line break: the string cannot continue.
		l.state.Mode, l.state.Quote = ModeDefault, 0
		return l.scanDefault()
	}
	return l.emit(SymStringContent, i)
}

func (l *Lexer) closer() (string, Symbol) {
	switch l.state.Tag {
	case SymTripleOpen:
		return l.tripleClose, SymTripleClose
	case SymDelimiterOpen:
		return l.delimClose, SymDelimiterClose
	}
	return l.state.Delims.Close, SymTagClose
}

func (l *Lexer) scanTag() Token {
	start := l.pos
	closer, closeSym := l.closer()
	if l.hasPrefix(start, closer) {
		tag := l.state.Tag
		l.state.Mode = l.state.Return
		l.state.Tag = 0
		l.state.Return = ModeDefault
		if tag == SymDelimiterOpen && l.state.Pending.Open != "" {
			l.setDelims(l.state.Pending)
			l.state.Pending = Delims{}
		}
		return l.emit(closeSym, start+len(closer))
	}

	b, ok := l.byteAt(start)
	if !ok {
		l.state = LexState{Delims: l.state.Delims}
		return l.emitEnd()
	}
	if l.state.Mode == ModeComment {
		end := l.find(start, closer, l.state.Return == ModeDefault)
		if end < 0 {
			end = len(l.src)
		}
		return l.emit(SymCommentText, end)
	}
	if l.state.Tag == SymDelimiterOpen {
		end := l.find(start, closer, false)
		if end < 0 {
			end = l.lineEnd(start)
		}
		if d, ok := parseDelims(l.src[start:end]); ok {
			l.state.Pending = d
			return l.emit(SymDelimiterSpec, end)
		}
		return l.emitError(LexInvalidDelimiters, end)
	}
	if b == '\n' {
		// Only reachable from a state that does not match the text.
		l.state = LexState{Delims: l.state.Delims}
		return l.scanDefault()
	}

	switch {
	case b == '|':
		return l.emit(SymPipe, start+1)
	case b != '\n' && isASCIISpace(b):
		i := start
		for {
			c, ok := l.byteAt(i)
			if !ok || c == '\n' || !isASCIISpace(c) {
				break
			}
			i++
		}
		return l.emit(SymWhitespace, i)
	}

	if r, _ := l.runeAt(start); isTagNameStart(r) {
		i := start
		for {
			if i > start && l.hasPrefix(i, closer) {
				break
			}
			r, size := l.runeAt(i)
			if size == 0 || !isTagNameChar(r) {
				break
			}
			i += size
		}
		return l.emit(SymTagName, i)
	}

	i := start
	for {
		if i > start {
			if l.hasPrefix(i, closer) {
				break
			}
			if r, _ := l.runeAt(i); r == '|' || isTagNameStart(r) {
				break
			}
		}
		r, size := l.runeAt(i)
		if size == 0 || r == '\n' || (i > start && r < utf8.RuneSelf && isASCIISpace(byte(r))) {
			break
		}
		i += size
	}
	return l.emitError(LexInvalidTagContent, i)
}

// runeAt decodes the rune at i; size is 0 at end of input.
func (l *Lexer) runeAt(i int) (rune, int) {
	b, ok := l.byteAt(i)
	if !ok {
		return 0, 0
	}
	if b < utf8.RuneSelf {
		return rune(b), 1
	}
	r, size := utf8.DecodeRune(l.src[i:])
	l.mark(i + size)
	return r, size
}

func parseDelims(spec []byte) (Delims, bool) {
	fields := strings.Fields(string(spec))
	if len(fields) != 2 {
		return Delims{}, false
	}
	for _, f := range fields {
		if strings.ContainsRune(f, '=') {
			return Delims{}, false
		}
	}
	return Delims{Open: fields[0], Close: fields[1]}, true
}

func isASCIISpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

func isUnicodeSpace(r rune) bool {
	return r == '\uFEFF' || unicode.IsSpace(r)
}

func isASCIIDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isASCIIHex(b byte) bool {
	return isASCIIDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func isTagNameStart(r rune) bool {
	return r != '=' && isTagNameChar(r)
}

func isTagNameChar(r rune) bool {
	if r < utf8.RuneSelf {
		b := byte(r)
		return isASCIIDigit(b) || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') ||
			strings.IndexByte("_$@.-/=:", b) >= 0
	}
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r)
}

func classifyWord(word []byte) Symbol {
	switch string(word) {
	case "true":
		return SymTrue
	case "false":
		return SymFalse
	case "null":
		return SymNull
	}
	if isNumber(word) {
		return SymNumber
	}
	if isIdentifier(word) {
		return SymIdentifier
	}
	return SymText
}

func isIdentifier(word []byte) bool {
	if len(word) == 0 {
		return false
	}
	for i := 0; i < len(word); {
		r, size := utf8.DecodeRune(word[i:])
		if r == utf8.RuneError && size <= 1 {
			return false
		}
		if i == 0 && !isIdentStart(r) || i > 0 && !isIdentPart(r) {
			return false
		}
		i += size
	}
	return true
}

// isNumber accepts JSON5 numeric literals: optional sign, then Infinity,
// NaN, hex, or a decimal with optional leading/trailing point and exponent.
func isNumber(word []byte) bool {
	s := word
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	switch string(s) {
	case "":
		return false
	case "Infinity", "NaN":
		return true
	}
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		for _, b := range s[2:] {
			if !isASCIIHex(b) {
				return false
			}
		}
		return true
	}

	i := 0
	intDigits := 0
	for i < len(s) && isASCIIDigit(s[i]) {
		i++
		intDigits++
	}
	if intDigits > 1 && s[0] == '0' {
		return false
	}
	fracDigits := 0
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isASCIIDigit(s[i]) {
			i++
			fracDigits++
		}
	}
	if intDigits == 0 && fracDigits == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		expDigits := 0
		for i < len(s) && isASCIIDigit(s[i]) {
			i++
			expDigits++
		}
		if expDigits == 0 {
			return false
		}
	}
	return i == len(s)
}
