package syntax

import (
	"strconv"
	"strings"
	"testing"
)

func benchDocument(items int) []byte {
	var b strings.Builder
	b.WriteString("{\n  \"items\": [\n")
	for i := 0; i < items; i++ {
		b.WriteString(`    {"id": ` + strconv.Itoa(i) + `, "name": "{{user.name}}", "tags": [{{#tags}}"{{.}}",{{/tags}}]},` + "\n")
	}
	b.WriteString("  ],\n  // trailer\n  total: {{count}},\n}\n")
	return []byte(b.String())
}

func BenchmarkTokenize(b *testing.B) {
	src := benchDocument(500)
	b.SetBytes(int64(len(src)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Tokenize(src)
	}
}

func BenchmarkParse(b *testing.B) {
	src := benchDocument(500)
	b.SetBytes(int64(len(src)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Parse(src)
	}
}

func BenchmarkReparseSingleEdit(b *testing.B) {
	src := benchDocument(500)
	old := Parse(src)
	at := strings.Index(string(src), "{{count}}") + 2
	next, edit := replaceEdit(string(src), at, at+5, "total")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		t, err := Reparse(old, next, edit)
		if err != nil {
			b.Fatal(err)
		}
		if t.LastReparse().Strategy == StrategyFull {
			b.Fatal("fell back to a full parse")
		}
	}
}
