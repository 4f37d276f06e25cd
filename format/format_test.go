package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formatWith(t *testing.T, src string, edit func(*Config)) string {
	t.Helper()
	cfg := DefaultConfig()
	if edit != nil {
		edit(&cfg)
	}
	out, err := Format([]byte(src), cfg)
	require.NoError(t, err)
	return string(out)
}

func TestFormatBreakRules(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "object with several members breaks",
			src:  `{"name":"test", "value" : 123,"list":[1,2,3],"pair":[1,2], "t": {{ title }} }`,
			want: "{\n  \"name\": \"test\",\n  \"value\": 123,\n  \"list\": [\n    1,\n    2,\n    3\n  ],\n  \"pair\": [1, 2],\n  \"t\": {{title}}\n}\n",
		},
		{
			name: "single member stays inline",
			src:  `{ "a" : [ 1 ] }`,
			want: "{\"a\": [1]}\n",
		},
		{
			name: "empty containers",
			src:  `[ { }, [ ] ]`,
			want: "[{}, []]\n",
		},
		{
			name: "spanning lines breaks",
			src:  "[1,\n2]",
			want: "[\n  1,\n  2\n]\n",
		},
		{
			name: "sections are verbatim",
			src:  `{"a": 1, {{#x}}"b":   2,{{/x}} }`,
			want: "{\n  \"a\": 1,\n  {{#x}}\"b\":   2,{{/x}}\n}\n",
		},
		{
			name: "top-level template text",
			src:  "  Hello {{ name }}\n\n\n{{! c }}\n\n",
			want: "Hello {{name}}\n\n{{! c }}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatWith(t, tt.src, nil))
		})
	}
}

func TestFormatComments(t *testing.T) {
	src := "{\n  // lead\n  \"a\": 1, // trailing\n  /* block */\n  \"b\": 2\n}\n"
	assert.Equal(t, src, formatWith(t, src, nil))

	// A comment forces a break even in a short container.
	assert.Equal(t, "[ /* c */\n  1\n]\n", formatWith(t, "[/* c */ 1]", nil))

	got := formatWith(t, "[\n  //x   \n  1\n]", func(c *Config) { c.CommentHandling.PreserveFormatting = false })
	assert.Equal(t, "[\n  // x\n  1\n]\n", got)
}

func TestFormatEmptyLines(t *testing.T) {
	src := "{\n  \"a\": 1,\n\n\n  \"b\": 2\n}"
	assert.Equal(t, "{\n  \"a\": 1,\n\n  \"b\": 2\n}\n", formatWith(t, src, nil))
	assert.Equal(t, "{\n  \"a\": 1,\n  \"b\": 2\n}\n",
		formatWith(t, src, func(c *Config) { c.PreserveEmptyLines = false }))
}

func TestFormatTrailingCommas(t *testing.T) {
	tests := []struct {
		style TrailingCommas
		src   string
		want  string
	}{
		{TrailingCommasPreserve, "[1, 2,]", "[1, 2,]\n"},
		{TrailingCommasNever, "[1, 2,]", "[1, 2]\n"},
		{TrailingCommasAlways, "[1, 2]", "[1, 2]\n"},
		{TrailingCommasAlways, "[\n1,\n2\n]", "[\n  1,\n  2,\n]\n"},
		{TrailingCommasNever, "[\n1,\n2,\n]", "[\n  1,\n  2\n]\n"},
		{TrailingCommasAlways, "[\n1,\n{{#s}}2{{/s}}\n]", "[\n  1,\n  {{#s}}2{{/s}}\n]\n"},
	}
	for _, tt := range tests {
		got := formatWith(t, tt.src, func(c *Config) { c.TrailingCommas = tt.style })
		assert.Equal(t, tt.want, got, "%s: %q", tt.style, tt.src)
	}
}

func TestFormatQuotes(t *testing.T) {
	got := formatWith(t, `{"a": "it's", "b": "x"}`, func(c *Config) { c.QuoteStyle = QuoteSingle })
	assert.Equal(t, "{\n  'a': \"it's\",\n  'b': 'x'\n}\n", got)

	got = formatWith(t, `['a', 'say "hi"']`, func(c *Config) { c.QuoteStyle = QuoteDouble })
	assert.Equal(t, "[\"a\", 'say \"hi\"']\n", got)

	got = formatWith(t, `['a {{b}}']`, func(c *Config) { c.QuoteStyle = QuoteDouble })
	assert.Equal(t, "[\"a {{b}}\"]\n", got)
}

func TestFormatTagSpacing(t *testing.T) {
	got := formatWith(t, `[{{ b }}, {{{c}}}]`, func(c *Config) {
		c.MustacheSpacing = MustacheSpacing{AfterOpen: true, BeforeClose: true}
	})
	assert.Equal(t, "[{{ b }}, {{{ c }}}]\n", got)
}

func TestFormatIndentation(t *testing.T) {
	assert.Equal(t, "[\n\t1,\n\t2,\n\t3\n]\n", formatWith(t, "[1,2,3]", func(c *Config) { c.UseTabs = true }))
	assert.Equal(t, "[\n    1,\n    2,\n    3\n]\n", formatWith(t, "[1,2,3]", func(c *Config) { c.IndentSize = 4 }))
}

func TestFormatMaxLineLength(t *testing.T) {
	got := formatWith(t, "[1, 22222222]", func(c *Config) { c.MaxLineLength = 10 })
	assert.Equal(t, "[\n  1,\n  22222222\n]\n", got)
	got = formatWith(t, "[1, 2]", func(c *Config) { c.MaxLineLength = 10 })
	assert.Equal(t, "[1, 2]\n", got)
}

func TestFormatRejectsSyntaxErrors(t *testing.T) {
	_, err := Format([]byte(`{"a": }`), DefaultConfig())
	require.ErrorIs(t, err, ErrSyntax)
	assert.Contains(t, err.Error(), "1:")
}

func TestFormatRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IndentSize = 0
	_, err := Format([]byte(`[]`), cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFormatIdempotent(t *testing.T) {
	inputs := []string{
		`{"name":"test", "value" : 123,"list":[1,2,3],"pair":[1,2], "t": {{ title }} }`,
		"{\n  // lead\n  \"a\": [1, {\"b\": 2, \"c\": 3}], // trailing\n\n\n  \"d\": {{#s}}1{{/s}}{{^s}}2{{/s}}\n}",
		"Hello {{name}}\n{{> footer}}",
		`[{{#items}}{"id": {{id}} },{{/items}}]`,
	}
	for _, src := range inputs {
		once := formatWith(t, src, nil)
		assert.Equal(t, once, formatWith(t, once, nil), "input %q", src)
	}
}
