package format

import (
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/odvcencio/mjson5/syntax"
)

// Format parses src and rewrites it according to cfg.
//
// Objects break across lines when they have more than one member or already
// span lines; arrays when they have more than two elements or already span
// lines. Comments and broken members force a break too, and so does an
// inline form longer than MaxLineLength. Sections are kept verbatim.
// Documents with syntax errors are rejected with ErrSyntax.
func Format(src []byte, cfg Config) ([]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return FormatTree(syntax.Parse(src), cfg)
}

// FormatTree formats an already parsed document.
func FormatTree(tree *syntax.Tree, cfg Config) ([]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tree.HasError() {
		diags := tree.Diagnostics()
		lines := make([]string, len(diags))
		for i, d := range diags {
			lines[i] = d.String()
		}
		return nil, ErrSyntax.Wrap(errors.New(strings.Join(lines, "\n"))).
			With(slog.Int("count", len(diags)))
	}
	p := &printer{cfg: cfg, indent: cfg.Indent()}
	p.document(tree.RootNode())
	return []byte(p.b.String()), nil
}

type printer struct {
	cfg    Config
	indent string
	b      strings.Builder
	col    int
}

func (p *printer) write(s string) {
	p.b.WriteString(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		p.col = p.width(s[i+1:])
	} else {
		p.col += p.width(s)
	}
}

func (p *printer) width(s string) int {
	w := 0
	for _, r := range s {
		if r == '\t' {
			w += p.cfg.TabWidth
		} else {
			w++
		}
	}
	return w
}

func (p *printer) newline(level int) {
	p.write("\n" + strings.Repeat(p.indent, level))
}

// document keeps top-level line breaks, collapsing runs of empty lines to
// one, and drops indentation and trailing blanks.
func (p *printer) document(n syntax.Node) {
	started := false
	ws := ""
	for _, c := range n.Children() {
		if c.Type() == "whitespace" {
			ws += c.Text()
			continue
		}
		if started {
			switch breaks := strings.Count(ws, "\n"); {
			case breaks == 0:
				p.write(ws)
			case breaks > 1 && p.cfg.PreserveEmptyLines:
				p.write("\n\n")
			default:
				p.write("\n")
			}
		}
		ws = ""
		started = true
		p.node(c, 0)
	}
	if started {
		p.write("\n")
	}
}

func (p *printer) node(n syntax.Node, level int) {
	switch n.Type() {
	case "object":
		p.container(n, level, 1)
	case "array":
		p.container(n, level, 2)
	case "pair":
		p.pair(n, level)
	case "string":
		p.write(p.quote(n.Text()))
	case "mustache_variable", "mustache_unescaped", "mustache_partial":
		p.tag(n)
	case "comment":
		p.write(p.comment(n.Text()))
	default:
		p.write(n.Text())
	}
}

type member struct {
	node    syntax.Node
	comma   bool
	blank   bool // an empty line precedes it
	comment bool
	endRow  uint32
}

// members collects the entries of an object or array. A comma belongs to
// the closest entry before it that is not a comment.
func members(n syntax.Node) (ms []member, open, close string, openRow uint32) {
	blank := false
	for _, c := range n.Children() {
		switch t := c.Type(); t {
		case "{", "[":
			open, openRow = t, c.EndPoint().Row
		case "}", "]":
			close = t
		case "whitespace":
			if strings.Count(c.Text(), "\n") > 1 {
				blank = true
			}
		case ",":
			for i := len(ms) - 1; i >= 0; i-- {
				if !ms[i].comment {
					ms[i].comma = true
					ms[i].endRow = c.EndPoint().Row
					break
				}
			}
		default:
			ms = append(ms, member{
				node:    c,
				blank:   blank,
				comment: t == "comment",
				endRow:  c.EndPoint().Row,
			})
			blank = false
		}
	}
	return ms, open, close, openRow
}

// acceptsTrailingComma reports whether a comma may be added after n.
// Template constructs keep their punctuation as written.
func acceptsTrailingComma(n syntax.Node) bool {
	switch n.Type() {
	case "mustache_section", "mustache_inverted_section", "mustache_comment", "mustache_set_delimiter":
		return false
	}
	return true
}

func (p *printer) trailingComma(ms []member, multiline bool) []member {
	ms = slices.Clone(ms)
	last := -1
	for i := range ms {
		if !ms[i].comment {
			last = i
		}
	}
	if last < 0 {
		return ms
	}
	switch {
	case p.cfg.TrailingCommas == TrailingCommasPreserve:
	case p.cfg.TrailingCommas == TrailingCommasAlways && multiline:
		if acceptsTrailingComma(ms[last].node) {
			ms[last].comma = true
		}
	default:
		ms[last].comma = false
	}
	return ms
}

func (p *printer) container(n syntax.Node, level, inlineMax int) {
	ms, open, close, openRow := members(n)
	if len(ms) == 0 {
		p.write(open + close)
		return
	}

	values, comments := 0, false
	for _, m := range ms {
		if m.comment {
			comments = true
		} else {
			values++
		}
	}
	if !comments && values <= inlineMax && n.StartPoint().Row == n.EndPoint().Row {
		inline := p.inline(p.trailingComma(ms, false), level, open, close)
		fits := p.cfg.MaxLineLength == 0 || p.col+p.width(inline) <= p.cfg.MaxLineLength
		if fits && !strings.Contains(inline, "\n") {
			p.write(inline)
			return
		}
	}

	p.write(open)
	prevRow := openRow
	for i, m := range p.trailingComma(ms, true) {
		if m.comment && m.node.StartPoint().Row == prevRow {
			p.write(" " + p.comment(m.node.Text()))
			continue
		}
		if m.blank && i > 0 && p.cfg.PreserveEmptyLines {
			p.write("\n")
		}
		p.newline(level + 1)
		p.node(m.node, level+1)
		if m.comma {
			p.write(",")
		}
		prevRow = m.endRow
	}
	p.newline(level)
	p.write(close)
}

func (p *printer) inline(ms []member, level int, open, close string) string {
	sub := &printer{cfg: p.cfg, indent: p.indent, col: p.col}
	sub.write(open)
	for i, m := range ms {
		if i > 0 {
			sub.write(" ")
		}
		sub.node(m.node, level)
		if m.comma {
			sub.write(",")
		}
	}
	sub.write(close)
	return sub.b.String()
}

// pair writes `key: value`. Whitespace between the parts of a value made
// of several sections is kept.
func (p *printer) pair(n syntax.Node, level int) {
	var (
		colon  bool
		space  bool
		valued bool
		ws     string
	)
	for _, c := range n.Children() {
		switch t := c.Type(); {
		case t == "whitespace":
			if valued {
				ws += c.Text()
			}
		case t == ":" && !colon:
			p.write(":")
			colon, space = true, true
		case t == "comment":
			text := p.comment(c.Text())
			p.write(" " + text)
			ws = ""
			if strings.HasPrefix(text, "//") {
				p.newline(level + 1)
				space = false
			} else {
				space = true
			}
		case !colon:
			p.node(c, level)
		default:
			if valued && ws != "" {
				p.write(ws)
			} else if space {
				p.write(" ")
			}
			p.node(c, level)
			valued, space, ws = true, false, ""
		}
	}
}

// tag rewrites a variable, unescaped or partial tag with the configured
// padding inside its delimiters.
func (p *printer) tag(n syntax.Node) {
	kids := n.Children()
	if len(kids) < 2 {
		p.write(n.Text())
		return
	}
	var names []string
	for _, c := range kids[1 : len(kids)-1] {
		if c.Type() == "tag_name" {
			names = append(names, c.Text())
		}
	}
	var b strings.Builder
	b.WriteString(kids[0].Text())
	if p.cfg.MustacheSpacing.AfterOpen {
		b.WriteByte(' ')
	}
	b.WriteString(strings.Join(names, " "))
	if p.cfg.MustacheSpacing.BeforeClose {
		b.WriteByte(' ')
	}
	b.WriteString(kids[len(kids)-1].Text())
	p.write(b.String())
}

func (p *printer) comment(text string) string {
	if p.cfg.CommentHandling.PreserveFormatting || !strings.HasPrefix(text, "//") {
		return text
	}
	body := strings.TrimSpace(text[2:])
	if body == "" {
		return "//"
	}
	return "// " + body
}

// quote converts the quotes of a string when no character inside needs a
// new escape.
func (p *printer) quote(text string) string {
	var want byte
	switch p.cfg.QuoteStyle {
	case QuoteDouble:
		want = '"'
	case QuoteSingle:
		want = '\''
	default:
		return text
	}
	if len(text) < 2 || text[0] == want {
		return text
	}
	body := text[1 : len(text)-1]
	if strings.IndexByte(body, want) >= 0 || strings.Contains(body, `\`+text[:1]) {
		return text
	}
	return string(want) + body + string(want)
}
