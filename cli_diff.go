package main

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const diffContext = 3

type diffLine struct {
	op   byte // ' ', '-' or '+'
	text string
}

// diffLines compares a and b line by line.
func diffLines(a, b string) []diffLine {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var out []diffLine
	for _, d := range diffs {
		op := byte(' ')
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = '-'
		case diffmatchpatch.DiffInsert:
			op = '+'
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line != "" {
				out = append(out, diffLine{op: op, text: line})
			}
		}
	}
	return out
}

// unifiedDiff renders the change from a to b as a unified diff with three
// lines of context. It returns "" when the texts are equal.
func unifiedDiff(name string, a, b []byte) string {
	lines := diffLines(string(a), string(b))
	n := len(lines)

	// oldAt and newAt hold the 1-based line numbers at each position.
	oldAt := make([]int, n+1)
	newAt := make([]int, n+1)
	o, w := 1, 1
	for i, l := range lines {
		oldAt[i], newAt[i] = o, w
		if l.op != '+' {
			o++
		}
		if l.op != '-' {
			w++
		}
	}
	oldAt[n], newAt[n] = o, w

	var sb strings.Builder
	for k := 0; k < n; {
		for k < n && lines[k].op == ' ' {
			k++
		}
		if k == n {
			break
		}
		if sb.Len() == 0 {
			fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", name, name)
		}
		start := max(k-diffContext, 0)
		end := k
		for end < n {
			if lines[end].op != ' ' {
				end++
				continue
			}
			run := end
			for run < n && lines[run].op == ' ' {
				run++
			}
			if run == n || run-end > 2*diffContext {
				end = min(end+diffContext, n)
				break
			}
			end = run
		}
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n",
			oldAt[start], oldAt[end]-oldAt[start], newAt[start], newAt[end]-newAt[start])
		for _, l := range lines[start:end] {
			sb.WriteByte(l.op)
			sb.WriteString(l.text)
			if !strings.HasSuffix(l.text, "\n") {
				sb.WriteString("\n\\ No newline at end of file\n")
			}
		}
		k = end
	}
	return sb.String()
}
