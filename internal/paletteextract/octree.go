package paletteextract

import (
	"image/color"
	"sort"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// octNode is one node of the color octree, indexed by the top bits of each
// RGB channel at depth d (bit 7-d of R, G, B interleaved).
type octNode struct {
	children [8]*octNode
	isLeaf   bool
	red, green, blue, pixelCount int64
	paletteIndex                 int
	level                        int
}

func newOctNode(level int) *octNode {
	return &octNode{level: level, paletteIndex: -1}
}

func octreeIndex(c wallcore.Color, level int) int {
	shift := 7 - level
	idx := 0
	if (c.R>>uint(shift))&1 != 0 {
		idx |= 4
	}
	if (c.G>>uint(shift))&1 != 0 {
		idx |= 2
	}
	if (c.B>>uint(shift))&1 != 0 {
		idx |= 1
	}
	return idx
}

func (n *octNode) addColor(c wallcore.Color, maxDepth int) {
	if n.level == maxDepth {
		n.isLeaf = true
		n.red += int64(c.R)
		n.green += int64(c.G)
		n.blue += int64(c.B)
		n.pixelCount++
		return
	}
	idx := octreeIndex(c, n.level)
	if n.children[idx] == nil {
		n.children[idx] = newOctNode(n.level + 1)
	}
	n.children[idx].addColor(c, maxDepth)
}

func (n *octNode) leaves(out *[]*octNode) {
	if n.isLeaf {
		*out = append(*out, n)
		return
	}
	for _, c := range n.children {
		if c != nil {
			c.leaves(out)
		}
	}
}

func (n *octNode) average() wallcore.Color {
	if n.pixelCount == 0 {
		return wallcore.Color{}
	}
	return wallcore.Color{
		R: uint8(n.red / n.pixelCount),
		G: uint8(n.green / n.pixelCount),
		B: uint8(n.blue / n.pixelCount),
	}
}

// extractOctree builds a color octree to a fixed depth, then iteratively
// merges the least-populous leaves until count leaves remain — the standard
// octree color-quantization reduction step. Like median-cut, tinct's
// registry names this algorithm but never implements it; this is a
// from-scratch implementation following the same Extract(img, count)
// signature as the teacher's other extractors.
func extractOctree(pixels []color.Color, count int) ([]wallcore.Color, error) {
	const maxDepth = 6 // 64 buckets per channel axis, enough spread for 16-256 color targets
	root := newOctNode(0)
	for _, p := range pixels {
		root.addColor(toWallcoreColor(p), maxDepth)
	}

	var leaves []*octNode
	root.leaves(&leaves)

	for len(leaves) > count && len(leaves) > 1 {
		sort.Slice(leaves, func(i, j int) bool { return leaves[i].pixelCount < leaves[j].pixelCount })
		// Fold the least-populous leaf's weighted sums into the next one and
		// drop it, shrinking the leaf set by one per iteration.
		smallest := leaves[0]
		target := leaves[1]
		target.red += smallest.red
		target.green += smallest.green
		target.blue += smallest.blue
		target.pixelCount += smallest.pixelCount
		leaves = leaves[1:]
	}

	out := make([]wallcore.Color, len(leaves))
	for i, l := range leaves {
		out[i] = l.average()
	}
	return out, nil
}
