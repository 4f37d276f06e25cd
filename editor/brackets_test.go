package editor

import (
	"testing"

	"github.com/odvcencio/mjson5/syntax"
)

func TestMatchingBracket(t *testing.T) {
	// offsets:    0         1         2         3
	//             012345678901234567890123456789012
	const src = `{"a": [1, 2], "b": {{#x}}1{{/x}}}`
	tree := syntax.Parse([]byte(src))

	tests := []struct {
		name      string
		offset    int
		wantStart uint32
		wantEnd   uint32
		wantOK    bool
	}{
		{"open brace", 0, 32, 33, true},
		{"close brace", 32, 0, 1, true},
		{"open bracket", 6, 11, 12, true},
		{"close bracket", 11, 6, 7, true},
		{"section open tag", 20, 26, 32, true},
		{"section close tag name", 29, 19, 25, true},
		{"number", 7, 0, 0, false},
		{"string", 2, 0, 0, false},
		{"out of range", 40, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := MatchingBracket(tree, tt.offset)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && (r.StartByte != tt.wantStart || r.EndByte != tt.wantEnd) {
				t.Errorf("range = [%d, %d), want [%d, %d)", r.StartByte, r.EndByte, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestMatchingBracketMissingPartner(t *testing.T) {
	tree := syntax.Parse([]byte(`{"a": [1, 2}`))
	if _, ok := MatchingBracket(tree, 6); ok {
		t.Error("unclosed array should have no partner")
	}
}
