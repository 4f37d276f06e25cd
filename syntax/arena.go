package syntax

import "unsafe"

const (
	// incrementalArenaSlab is sized for reparses where only the path to the
	// edit and one fragment are rebuilt.
	incrementalArenaSlab = 16 * 1024
	// fullParseArenaSlab covers typical configuration documents in one slab.
	fullParseArenaSlab = 256 * 1024
	minArenaNodeCap    = 64
	childSlabCap       = 4096
)

type arenaClass uint8

const (
	arenaClassIncremental arenaClass = iota
	arenaClassFull
)

// nodeArena is a slab allocator for the nodes and child slices of one parse.
// Slabs are never recycled: a tree shares subtrees with the trees derived
// from it, so a slab lives as long as any tree that reaches into it.
type nodeArena struct {
	class    arenaClass
	nodes    []node
	used     int
	children []*node
	offsets  []Length
}

func nodeCapacityForBytes(slabBytes int) int {
	capacity := slabBytes / int(unsafe.Sizeof(node{}))
	if capacity < minArenaNodeCap {
		return minArenaNodeCap
	}
	return capacity
}

func newNodeArena(class arenaClass) *nodeArena {
	slab := fullParseArenaSlab
	if class == arenaClassIncremental {
		slab = incrementalArenaSlab
	}
	return &nodeArena{
		class: class,
		nodes: make([]node, nodeCapacityForBytes(slab)),
	}
}

func (a *nodeArena) allocNode() *node {
	if a.used == len(a.nodes) {
		a.nodes = make([]node, len(a.nodes))
		a.used = 0
	}
	n := &a.nodes[a.used]
	a.used++
	return n
}

// allocChildren copies kids into arena-owned storage.
func (a *nodeArena) allocChildren(kids []*node) []*node {
	if len(kids) == 0 {
		return nil
	}
	if len(kids) > childSlabCap/4 {
		return append([]*node(nil), kids...)
	}
	if cap(a.children)-len(a.children) < len(kids) {
		a.children = make([]*node, 0, childSlabCap)
	}
	start := len(a.children)
	a.children = append(a.children, kids...)
	return a.children[start:len(a.children):len(a.children)]
}

// allocOffsets returns arena-owned storage for n child offsets.
func (a *nodeArena) allocOffsets(n int) []Length {
	if n == 0 {
		return nil
	}
	if n > childSlabCap/4 {
		return make([]Length, n)
	}
	if cap(a.offsets)-len(a.offsets) < n {
		a.offsets = make([]Length, 0, childSlabCap)
	}
	start := len(a.offsets)
	a.offsets = a.offsets[:start+n]
	return a.offsets[start : start+n : start+n]
}
