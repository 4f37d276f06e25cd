package editor

import "github.com/odvcencio/mjson5/syntax"

var bracketPairs = map[string]string{
	"{": "}",
	"}": "{",
	"[": "]",
	"]": "[",
}

func isSectionTag(typ string) bool {
	switch typ {
	case "mustache_section_open", "mustache_inverted_section_open", "mustache_section_close":
		return true
	}
	return false
}

// MatchingBracket finds the bracket or section tag at offset and returns the
// range of its partner: the closing brace of an object, the opening bracket
// of an array, the closing tag of a section and so on. It reports false
// when offset is not on a bracket or tag, or the partner is missing.
func MatchingBracket(tree *syntax.Tree, offset int) (syntax.Range, bool) {
	if offset < 0 || offset >= len(tree.Source()) {
		return syntax.Range{}, false
	}
	leaf := tree.NodeAt(uint32(offset))
	if leaf.IsNull() {
		return syntax.Range{}, false
	}

	if want, ok := bracketPairs[leaf.Type()]; ok {
		parent := leaf.Parent()
		if parent.IsNull() {
			return syntax.Range{}, false
		}
		kids := parent.Children()
		if leaf.Type() == "{" || leaf.Type() == "[" {
			for i := len(kids) - 1; i >= 0; i-- {
				if kids[i].Type() == want && !kids[i].IsMissing() {
					return kids[i].Range(), true
				}
			}
		} else {
			for _, k := range kids {
				if k.Type() == want && !k.IsMissing() {
					return k.Range(), true
				}
			}
		}
		return syntax.Range{}, false
	}

	tag := leaf
	for !tag.IsNull() && !isSectionTag(tag.Type()) {
		switch tag.Type() {
		case "object", "array", "pair", "document", "string":
			return syntax.Range{}, false
		}
		tag = tag.Parent()
	}
	if tag.IsNull() {
		return syntax.Range{}, false
	}
	section := tag.Parent()
	var partner syntax.Node
	if tag.Type() == "mustache_section_close" {
		partner = section.ChildByFieldName("open")
	} else if closers := section.ChildrenByFieldName("close"); len(closers) > 0 {
		partner = closers[len(closers)-1]
	}
	if partner.IsNull() || partner.IsMissing() {
		return syntax.Range{}, false
	}
	return partner.Range(), true
}
