package lsp

import (
	"strconv"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/odvcencio/mjson5/editor"
	"github.com/odvcencio/mjson5/syntax"
)

const diagnosticSource = "mjson5"

func position(src []byte, offset int) protocol.Position {
	row, col := editor.PositionUTF16(src, offset)
	return protocol.Position{Line: uint32(row), Character: uint32(col)}
}

func rangeOf(src []byte, r syntax.Range) protocol.Range {
	return protocol.Range{
		Start: position(src, int(r.StartByte)),
		End:   position(src, int(r.EndByte)),
	}
}

// diagnostics converts the tree's error annotations. The result is never
// nil so that an empty list clears the client's markers.
func diagnostics(tree *syntax.Tree) []protocol.Diagnostic {
	src := tree.Source()
	out := []protocol.Diagnostic{}
	for _, d := range tree.Diagnostics() {
		out = append(out, protocol.Diagnostic{
			Range:    rangeOf(src, d.Range),
			Severity: protocol.DiagnosticSeverityError,
			Code:     d.Kind.String(),
			Source:   diagnosticSource,
			Message:  d.Message,
		})
	}
	return out
}

// foldingRanges keeps the closing line of brackets and sections visible.
func foldingRanges(tree *syntax.Tree) []protocol.FoldingRange {
	out := []protocol.FoldingRange{}
	for _, r := range editor.FoldRegions(tree) {
		fr := protocol.FoldingRange{StartLine: uint32(r.StartLine), EndLine: uint32(r.EndLine)}
		switch r.Kind {
		case editor.FoldComment:
			fr.Kind = protocol.CommentFoldingRange
		case editor.FoldSection:
			fr.Kind = protocol.RegionFoldingRange
			fr.EndLine--
		default:
			fr.EndLine--
		}
		if fr.EndLine <= fr.StartLine {
			continue
		}
		out = append(out, fr)
	}
	return out
}

func symbolKind(value syntax.Node) protocol.SymbolKind {
	if value.IsNull() {
		return protocol.SymbolKindNull
	}
	switch value.Type() {
	case "object":
		return protocol.SymbolKindObject
	case "array":
		return protocol.SymbolKindArray
	case "string":
		return protocol.SymbolKindString
	case "number":
		return protocol.SymbolKindNumber
	case "true", "false":
		return protocol.SymbolKindBoolean
	case "null":
		return protocol.SymbolKindNull
	case "mustache_section", "mustache_inverted_section":
		return protocol.SymbolKindNamespace
	}
	return protocol.SymbolKindVariable
}

func keyName(key syntax.Node) string {
	text := key.Text()
	if key.Type() == "string" && len(text) >= 2 {
		text = text[1 : len(text)-1]
	}
	if text == "" {
		return `""`
	}
	return text
}

func sectionName(n syntax.Node) string {
	prefix := "#"
	if n.Type() == "mustache_inverted_section" {
		prefix = "^"
	}
	return prefix + n.TagName()
}

func isValue(n syntax.Node) bool {
	switch n.Type() {
	case "comment", "mustache_comment", "mustache_set_delimiter", "ERROR":
		return false
	}
	return !n.IsMissing()
}

// documentSymbols lists pairs by key and sections by tag name. Containers
// inside arrays are named by their index.
func documentSymbols(tree *syntax.Tree) []protocol.DocumentSymbol {
	out := symbols(tree.Source(), tree.RootNode())
	if out == nil {
		out = []protocol.DocumentSymbol{}
	}
	return out
}

func symbols(src []byte, n syntax.Node) []protocol.DocumentSymbol {
	var out []protocol.DocumentSymbol
	index := 0
	for _, c := range n.NamedChildren() {
		switch c.Type() {
		case "pair":
			key := c.ChildByFieldName("key")
			if key.IsNull() || key.IsMissing() {
				continue
			}
			value := c.ChildByFieldName("value")
			sym := protocol.DocumentSymbol{
				Name:           keyName(key),
				Kind:           symbolKind(value),
				Range:          rangeOf(src, c.Range()),
				SelectionRange: rangeOf(src, key.Range()),
			}
			if !value.IsNull() {
				sym.Detail = value.Type()
				sym.Children = symbols(src, value)
			}
			out = append(out, sym)
		case "mustache_section", "mustache_inverted_section":
			sel := c.ChildByFieldName("open")
			if sel.IsNull() {
				sel = c
			}
			out = append(out, protocol.DocumentSymbol{
				Name:           sectionName(c),
				Detail:         c.Type(),
				Kind:           protocol.SymbolKindNamespace,
				Range:          rangeOf(src, c.Range()),
				SelectionRange: rangeOf(src, sel.Range()),
				Children:       symbols(src, c),
			})
			continue
		case "object", "array":
			if n.Type() != "array" {
				out = append(out, symbols(src, c)...)
				break
			}
			out = append(out, protocol.DocumentSymbol{
				Name:           "[" + strconv.Itoa(index) + "]",
				Detail:         c.Type(),
				Kind:           symbolKind(c),
				Range:          rangeOf(src, c.Range()),
				SelectionRange: rangeOf(src, c.Range()),
				Children:       symbols(src, c),
			})
		}
		if isValue(c) {
			index++
		}
	}
	return out
}

// nodePath names the ancestors of n from the root down, with pair keys and
// section tags.
func nodePath(n syntax.Node) string {
	var parts []string
	for cur := n; !cur.IsNull(); cur = cur.Parent() {
		part := cur.Type()
		switch part {
		case "pair":
			if key := cur.ChildByFieldName("key"); !key.IsNull() && !key.IsMissing() {
				part += " " + keyName(key)
			}
		case "mustache_section", "mustache_inverted_section":
			part += " " + sectionName(cur)
		}
		parts = append(parts, part)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

func hover(tree *syntax.Tree, pos protocol.Position) *protocol.Hover {
	src := tree.Source()
	if len(src) == 0 {
		return nil
	}
	offset := editor.OffsetUTF16(src, int(pos.Line), int(pos.Character))
	n := tree.NamedNodeAt(uint32(offset))
	if n.IsNull() || n.Parent().IsNull() {
		return nil
	}

	var b strings.Builder
	b.WriteString("**" + n.Type() + "**")
	if name := n.TagName(); name != "" {
		b.WriteString(" `" + name + "`")
	}
	if n.HasError() {
		b.WriteString(" (contains errors)")
	}
	b.WriteString("\n\n")
	b.WriteString(nodePath(n))

	r := rangeOf(src, n.Range())
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: b.String()},
		Range:    &r,
	}
}
