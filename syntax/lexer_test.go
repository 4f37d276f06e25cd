package syntax

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func tokenKinds(toks []Token) []string {
	lang := MustacheJSON5()
	out := make([]string, len(toks))
	for i, tok := range toks {
		out[i] = lang.SymbolName(tok.Symbol)
	}
	return out
}

func TestTokenizeKinds(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "object with variable",
			src:  `{"a": {{name}}}`,
			want: []string{"{", "string_literal", ":", "whitespace", "{{", "tag_name", "}}", "}"},
		},
		{
			name: "keywords and numbers",
			src:  `[true,false,null,-1.5e3,0x1F,Infinity]`,
			want: []string{"[", "true", ",", "false", ",", "null", ",", "number", ",", "number", ",", "number", "]"},
		},
		{
			name: "identifier key",
			src:  `{a: 1}`,
			want: []string{"{", "identifier", ":", "whitespace", "number", "}"},
		},
		{
			name: "bare text",
			src:  `a-b`,
			want: []string{"text"},
		},
		{
			name: "comments",
			src:  "// line\n/* block */1",
			want: []string{"comment", "whitespace", "comment", "number"},
		},
		{
			name: "templated string",
			src:  `"a{{b}}c"`,
			want: []string{`"`, "string_content", "{{", "tag_name", "}}", "string_content", `"`},
		},
		{
			name: "triple and ampersand",
			src:  `{{{x}}}{{&y}}`,
			want: []string{"{{{", "tag_name", "}}}", "{{&", "tag_name", "}}"},
		},
		{
			name: "section with parameters",
			src:  `{{#each items |item|}}{{/each}}`,
			want: []string{"{{#", "tag_name", "whitespace", "tag_name", "whitespace", "|", "tag_name", "|", "}}", "{{/", "tag_name", "}}"},
		},
		{
			name: "partial and comment",
			src:  `{{> header}}{{! note }}`,
			want: []string{"{{>", "whitespace", "tag_name", "}}", "{{!", "comment_text", "}}"},
		},
		{
			name: "unterminated triple falls back to brace",
			src:  `{{{x}}`,
			want: []string{"{", "{{", "tag_name", "}}"},
		},
		{
			name: "dotted tag name",
			src:  `{{user.name}}`,
			want: []string{"{{", "tag_name", "}}"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenKinds(Tokenize([]byte(tt.src)))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

func TestTokensCoverSource(t *testing.T) {
	srcs := []string{
		`{"a": {{name}}}`,
		"{{=<% %>=}}\n{\"k\": <%v%>}",
		`"unterminated`,
		`{{#a}}[1, 2]{{/a}}`,
		"{{! multi\nline }}",
		`{{x`,
	}
	for _, src := range srcs {
		toks := Tokenize([]byte(src))
		var pos uint32
		for i, tok := range toks {
			if tok.StartByte != pos {
				t.Fatalf("%q: token %d starts at %d, want %d", src, i, tok.StartByte, pos)
			}
			if tok.EndByte <= tok.StartByte {
				t.Fatalf("%q: token %d is empty", src, i)
			}
			if tok.LookEnd < tok.EndByte {
				t.Fatalf("%q: token %d LookEnd %d before end %d", src, i, tok.LookEnd, tok.EndByte)
			}
			pos = tok.EndByte
		}
		if int(pos) != len(src) {
			t.Fatalf("%q: tokens end at %d, want %d", src, pos, len(src))
		}
	}
}

func TestSetDelimiterChangesDelimiters(t *testing.T) {
	src := []byte(`{{=<% %>=}}<%x%>{{y}}`)
	got := tokenKinds(Tokenize(src))
	// The old delimiters are plain braces afterwards.
	want := []string{"{{=", "delimiters", "=}}", "{{", "tag_name", "}}", "{", "{", "identifier", "}", "}"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	l := NewLexer(src, DefaultLexState())
	for i := 0; i < 3; i++ {
		l.Next()
	}
	if d := l.State().Delims; d.Open != "<%" || d.Close != "%>" {
		t.Fatalf("delims after set-delimiter = %+v, want <%% %%>", d)
	}
}

func TestSetDelimiterInsideStringIsNotRecognized(t *testing.T) {
	toks := Tokenize([]byte(`"a{{=<% %>=}}b"`))
	l := NewLexer([]byte(`"a{{=<% %>=}}b"`), DefaultLexState())
	for range toks {
		l.Next()
	}
	if !l.State().Delims.IsDefault() {
		t.Fatalf("delims changed inside a string: %+v", l.State().Delims)
	}
}

func TestInvalidDelimiterSpec(t *testing.T) {
	toks := Tokenize([]byte(`{{=<%=}}`))
	if len(toks) != 3 {
		t.Fatalf("got %d tokens, want 3: %v", len(toks), tokenKinds(toks))
	}
	if toks[1].Symbol != SymLexError || toks[1].Reason != LexInvalidDelimiters {
		t.Fatalf("token 1 = %s/%s, want lex_error/%s", MustacheJSON5().SymbolName(toks[1].Symbol), toks[1].Reason, LexInvalidDelimiters)
	}
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		src    string
		reason LexErrorReason
		end    uint32
	}{
		{src: `"abc`, reason: LexUnterminatedString, end: 4},
		{src: "\"abc\nx", reason: LexUnterminatedString, end: 4},
		{src: `{{x`, reason: LexUnterminatedTag, end: 3},
		{src: "{{x\n1", reason: LexUnterminatedTag, end: 3},
		{src: `{{! never closed`, reason: LexUnterminatedComment, end: 16},
		{src: `/* open`, reason: LexUnterminatedComment, end: 7},
	}
	for _, tt := range tests {
		toks := Tokenize([]byte(tt.src))
		if len(toks) == 0 {
			t.Fatalf("%q: no tokens", tt.src)
		}
		tok := toks[0]
		if tok.Symbol != SymLexError {
			t.Errorf("%q: first token = %s, want lex_error", tt.src, MustacheJSON5().SymbolName(tok.Symbol))
			continue
		}
		if tok.Reason != tt.reason {
			t.Errorf("%q: reason = %s, want %s", tt.src, tok.Reason, tt.reason)
		}
		if tok.EndByte != tt.end {
			t.Errorf("%q: end = %d, want %d", tt.src, tok.EndByte, tt.end)
		}
	}
}

func TestInvalidTagContent(t *testing.T) {
	toks := Tokenize([]byte(`{{a %}}`))
	got := tokenKinds(toks)
	want := []string{"{{", "tag_name", "whitespace", "lex_error", "}}"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if toks[3].Reason != LexInvalidTagContent {
		t.Fatalf("reason = %s, want %s", toks[3].Reason, LexInvalidTagContent)
	}
}

func TestTokenPositions(t *testing.T) {
	toks := Tokenize([]byte("{\n  \"a\": 1\n}"))
	var num Token
	for _, tok := range toks {
		if tok.Symbol == SymNumber {
			num = tok
		}
	}
	if num.StartPoint != (Point{Row: 1, Column: 7}) {
		t.Fatalf("number start = %+v, want {1 7}", num.StartPoint)
	}
	if num.EndPoint != (Point{Row: 1, Column: 8}) {
		t.Fatalf("number end = %+v, want {1 8}", num.EndPoint)
	}
}

func TestTokenLookEnd(t *testing.T) {
	tests := []struct {
		src  string
		want uint32
	}{
		// The scanner reads one byte past a number to see it ended.
		{src: "12 ", want: 3},
		// Reaching the end of input counts as examining one more byte.
		{src: "12", want: 3},
		{src: "{{x}}", want: 5},
	}
	for _, tt := range tests {
		tok := Tokenize([]byte(tt.src))[0]
		if tok.LookEnd != tt.want {
			t.Errorf("%q: LookEnd = %d, want %d", tt.src, tok.LookEnd, tt.want)
		}
	}
}

func TestLexerResetResumes(t *testing.T) {
	src := []byte(`[1, {{x}}]`)
	full := Tokenize(src)

	l := NewLexer(src, DefaultLexState())
	l.Reset(4, Point{Column: 4}, DefaultLexState())
	var resumed []Token
	for {
		tok := l.Next()
		if tok.Symbol == SymEnd {
			break
		}
		resumed = append(resumed, tok)
	}
	if diff := cmp.Diff(full[4:], resumed); diff != "" {
		t.Fatalf("resumed tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestIsNumber(t *testing.T) {
	for _, s := range []string{"0", "1", "-1", "+1", "1.5", ".5", "5.", "1e10", "1E-3", "0x1f", "Infinity", "-NaN"} {
		if !isNumber([]byte(s)) {
			t.Errorf("isNumber(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "-", "01", "1e", "0x", "1.2.3", "abc", "."} {
		if isNumber([]byte(s)) {
			t.Errorf("isNumber(%q) = true, want false", s)
		}
	}
}
