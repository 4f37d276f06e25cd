package editor

import (
	"slices"

	"github.com/odvcencio/mjson5/syntax"
)

// FoldKind classifies a fold region.
type FoldKind string

const (
	FoldObject  FoldKind = "object"
	FoldArray   FoldKind = "array"
	FoldSection FoldKind = "section"
	FoldComment FoldKind = "comment"
)

// FoldRegion is a foldable span of lines. The start line stays visible
// when the region is folded.
type FoldRegion struct {
	StartLine int      `json:"startLine"`
	EndLine   int      `json:"endLine"`
	Kind      FoldKind `json:"kind"`
	Folded    bool     `json:"folded,omitempty"`
}

func foldKind(n syntax.Node) (FoldKind, bool) {
	switch n.Type() {
	case "object":
		return FoldObject, true
	case "array":
		return FoldArray, true
	case "mustache_section", "mustache_inverted_section":
		return FoldSection, true
	case "comment", "mustache_comment":
		return FoldComment, true
	}
	return "", false
}

// FoldRegions returns a region for every object, array, section and
// comment of tree that spans more than one line, ordered by start line.
// When several nodes start on the same line only the outermost is kept.
func FoldRegions(tree *syntax.Tree) []FoldRegion {
	var regions []FoldRegion
	seen := make(map[int]bool)
	tree.Walk(func(n syntax.Node) bool {
		if n.IsMissing() || !n.IsNamed() {
			return true
		}
		kind, ok := foldKind(n)
		if !ok {
			return true
		}
		start, end := int(n.StartPoint().Row), int(n.EndPoint().Row)
		if end > start && !seen[start] {
			seen[start] = true
			regions = append(regions, FoldRegion{StartLine: start, EndLine: end, Kind: kind})
		}
		return true
	})
	slices.SortStableFunc(regions, func(a, b FoldRegion) int { return a.StartLine - b.StartLine })
	return regions
}

// FoldState tracks which regions are folded.
type FoldState struct {
	regions []FoldRegion
}

func NewFoldState() *FoldState {
	return &FoldState{}
}

// SetRegions replaces the fold regions, typically after a reparse. Regions
// that start on a line that was folded stay folded.
func (fs *FoldState) SetRegions(regions []FoldRegion) {
	oldFolded := make(map[int]bool)
	for _, r := range fs.regions {
		if r.Folded {
			oldFolded[r.StartLine] = true
		}
	}
	for i := range regions {
		if oldFolded[regions[i].StartLine] {
			regions[i].Folded = true
		}
	}
	fs.regions = regions
}

// Update replaces the regions with those of tree.
func (fs *FoldState) Update(tree *syntax.Tree) {
	fs.SetRegions(FoldRegions(tree))
}

// Toggle folds or unfolds the region starting at line.
func (fs *FoldState) Toggle(line int) bool {
	for i, r := range fs.regions {
		if r.StartLine == line {
			fs.regions[i].Folded = !fs.regions[i].Folded
			return true
		}
	}
	return false
}

func (fs *FoldState) FoldAll() {
	for i := range fs.regions {
		fs.regions[i].Folded = true
	}
}

func (fs *FoldState) UnfoldAll() {
	for i := range fs.regions {
		fs.regions[i].Folded = false
	}
}

// IsLineHidden reports whether line lies inside a folded region, below its
// start line.
func (fs *FoldState) IsLineHidden(line int) bool {
	for _, r := range fs.regions {
		if r.Folded && line > r.StartLine && line <= r.EndLine {
			return true
		}
	}
	return false
}

func (fs *FoldState) Regions() []FoldRegion {
	return fs.regions
}

// FoldAtLine folds the region starting at line, or else the innermost
// unfolded region containing it.
func (fs *FoldState) FoldAtLine(line int) bool {
	best := -1
	for i, r := range fs.regions {
		if r.Folded {
			continue
		}
		if r.StartLine == line {
			fs.regions[i].Folded = true
			return true
		}
		if line >= r.StartLine && line <= r.EndLine {
			if best < 0 || (r.EndLine-r.StartLine) < (fs.regions[best].EndLine-fs.regions[best].StartLine) {
				best = i
			}
		}
	}
	if best >= 0 {
		fs.regions[best].Folded = true
		return true
	}
	return false
}

// UnfoldAtLine unfolds the first folded region containing line.
func (fs *FoldState) UnfoldAtLine(line int) bool {
	for i, r := range fs.regions {
		if !r.Folded {
			continue
		}
		if line >= r.StartLine && line <= r.EndLine {
			fs.regions[i].Folded = false
			return true
		}
	}
	return false
}

// VisibleLines returns the indices of the lines left visible by folding.
func (fs *FoldState) VisibleLines(totalLines int) []int {
	visible := make([]int, 0, totalLines)
	for i := 0; i < totalLines; i++ {
		if !fs.IsLineHidden(i) {
			visible = append(visible, i)
		}
	}
	return visible
}
