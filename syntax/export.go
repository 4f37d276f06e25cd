package syntax

// ExportNode is a plain-data copy of a subtree, shaped for JSON and YAML
// encoders.
type ExportNode struct {
	Type     string       `json:"type" yaml:"type"`
	Named    bool         `json:"named,omitempty" yaml:"named,omitempty"`
	Field    string       `json:"field,omitempty" yaml:"field,omitempty"`
	Start    uint32       `json:"start" yaml:"start"`
	End      uint32       `json:"end" yaml:"end"`
	StartRow uint32       `json:"startRow" yaml:"startRow"`
	StartCol uint32       `json:"startCol" yaml:"startCol"`
	EndRow   uint32       `json:"endRow" yaml:"endRow"`
	EndCol   uint32       `json:"endCol" yaml:"endCol"`
	Text     string       `json:"text,omitempty" yaml:"text,omitempty"`
	Error    bool         `json:"error,omitempty" yaml:"error,omitempty"`
	Missing  bool         `json:"missing,omitempty" yaml:"missing,omitempty"`
	Errors   []string     `json:"errors,omitempty" yaml:"errors,omitempty"`
	Children []ExportNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// ExportOptions selects what Export includes.
type ExportOptions struct {
	// NamedOnly drops anonymous nodes and trivia.
	NamedOnly bool
	// Text includes the source text of leaves.
	Text bool
}

// Export copies the subtree rooted at n.
func Export(n Node, opts ExportOptions) ExportNode {
	return export(n, "", opts)
}

func export(n Node, field string, opts ExportOptions) ExportNode {
	r := n.Range()
	out := ExportNode{
		Type:     n.Type(),
		Named:    n.IsNamed(),
		Field:    field,
		Start:    r.StartByte,
		End:      r.EndByte,
		StartRow: r.StartPoint.Row,
		StartCol: r.StartPoint.Column,
		EndRow:   r.EndPoint.Row,
		EndCol:   r.EndPoint.Column,
		Error:    n.IsError(),
		Missing:  n.IsMissing(),
	}
	for _, a := range n.n.notes {
		out.Errors = append(out.Errors, a.Kind.String()+": "+a.Message)
	}
	if n.ChildCount() == 0 {
		if opts.Text {
			out.Text = n.Text()
		}
		return out
	}
	for i, c := range n.Children() {
		if opts.NamedOnly && !c.IsNamed() && !c.IsMissing() {
			continue
		}
		out.Children = append(out.Children, export(c, n.FieldNameForChild(i), opts))
	}
	return out
}
