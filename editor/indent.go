package editor

import "strings"

// Indent describes the indentation a document already uses.
type Indent struct {
	UseTabs bool
	Size    int
}

// DetectIndent reports the indentation unit of text: tabs when indented
// lines mostly start with a tab, otherwise the narrowest run of leading
// spaces. ok is false when no line is indented.
func DetectIndent(text string) (indent Indent, ok bool) {
	tabs, spaces, width := 0, 0, 0
	for _, line := range strings.Split(text, "\n") {
		switch {
		case line == "":
		case line[0] == '\t':
			tabs++
		case line[0] == ' ':
			w := len(line) - len(strings.TrimLeft(line, " "))
			if w == len(line) {
				// Blank line.
				continue
			}
			spaces++
			if width == 0 || w < width {
				width = w
			}
		}
	}
	switch {
	case tabs == 0 && spaces == 0:
		return Indent{}, false
	case spaces > tabs:
		return Indent{Size: width}, true
	default:
		return Indent{UseTabs: true}, true
	}
}
