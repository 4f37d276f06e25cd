package syntax

import (
	"strconv"
	"strings"
)

// String returns the s-expression of the subtree: named nodes only, for
// example (document (object (pair (string) (mustache_variable)))).
func (n Node) String() string {
	if n.IsNull() {
		return "()"
	}
	var b strings.Builder
	writeSExpr(&b, n, false)
	return b.String()
}

// FieldString is like String but prefixes children with their field names,
// for example (pair key: (string) value: (number)).
func (n Node) FieldString() string {
	if n.IsNull() {
		return "()"
	}
	var b strings.Builder
	writeSExpr(&b, n, true)
	return b.String()
}

func writeSExpr(b *strings.Builder, n Node, fields bool) {
	if n.IsMissing() {
		b.WriteString("(MISSING ")
		if n.IsNamed() {
			b.WriteString(n.Type())
		} else {
			b.WriteString(strconv.Quote(n.Type()))
		}
		b.WriteByte(')')
		return
	}
	b.WriteByte('(')
	b.WriteString(n.Type())
	for i, c := range n.Children() {
		if !c.IsNamed() && !c.IsMissing() {
			continue
		}
		b.WriteByte(' ')
		if fields {
			if name := n.FieldNameForChild(i); name != "" {
				b.WriteString(name)
				b.WriteString(": ")
			}
		}
		writeSExpr(b, c, fields)
	}
	b.WriteByte(')')
}
