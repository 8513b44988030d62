// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package intentminer

import (
	"container/heap"
	"math"
)

// RTreeEntry is a (generalization, payload) pair stored at a leaf.
type RTreeEntry struct {
	Key   Spec
	Value any
}

// rtreeNode is either an internal node, whose entries are its children's
// bounding boxes, or a leaf, whose entries are stored RTreeEntry values.
// coveredApprox is the running sum of the key costs stored below the node;
// it assumes the stored keys do not overlap, so overlapping keys make it
// an over-estimate.
type rtreeNode struct {
	boundingBox   Spec
	isLeaf        bool
	children      []*rtreeNode
	entries       []RTreeEntry
	coveredApprox float64
}

func (n *rtreeNode) objectCount() int {
	if n.isLeaf {
		return len(n.entries)
	}
	return len(n.children)
}

// RTree is a bounding-box spatial index over one Feature's generalization
// lattice, supporting nearest-neighbor lookup and bulk subsumption
// removal. Bounding boxes are generalizations (Spec values) rather than
// geometric boxes; "area" is Cost.
type RTree struct {
	feature     Feature
	nodeMinSize int
	nodeMaxSize int
	root        *rtreeNode
}

// NewRTree builds an empty index. nodeMinSize/nodeMaxSize bound the
// fan-out of every node except transiently-overfull nodes pending split.
func NewRTree(feature Feature, nodeMinSize, nodeMaxSize int) *RTree {
	top := feature.Labeling.Top()
	return &RTree{
		feature:     feature,
		nodeMinSize: nodeMinSize,
		nodeMaxSize: nodeMaxSize,
		root: &rtreeNode{
			boundingBox: Spec{Cost: feature.Labeling.Cost(top), Value: top},
			isLeaf:      true,
		},
	}
}

// Insert adds (key, value) to the index, descending toward the child
// whose bounding box grows least to accommodate key, splitting any node
// that overflows nodeMaxSize.
func (t *RTree) Insert(key Spec, value any) {
	sibling := t.insert(key, value, t.root)
	if sibling != nil {
		joined := t.feature.Labeling.Join(t.root.boundingBox.Value, sibling.boundingBox.Value)
		t.root = &rtreeNode{
			boundingBox:   joined,
			isLeaf:        false,
			children:      []*rtreeNode{t.root, sibling},
			coveredApprox: t.root.coveredApprox + sibling.coveredApprox,
		}
	}
}

func (t *RTree) insert(key Spec, value any, n *rtreeNode) *rtreeNode {
	n.boundingBox = t.feature.Labeling.Join(n.boundingBox.Value, key.Value)
	n.coveredApprox += key.Cost

	if n.isLeaf {
		n.entries = append(n.entries, RTreeEntry{Key: key, Value: value})
		return t.split(n)
	}

	best := -1
	var bestDiff float64
	var bestSpec Spec
	for i, c := range n.children {
		spec := t.feature.Labeling.Join(c.boundingBox.Value, key.Value)
		diff := spec.Cost - c.boundingBox.Cost
		if best == -1 || diff < bestDiff || (diff-bestDiff < tieEps && spec.Cost < bestSpec.Cost) {
			best, bestDiff, bestSpec = i, diff, spec
		}
	}

	sibling := t.insert(key, value, n.children[best])
	if sibling != nil {
		idx := best + 1
		n.children = append(n.children, nil)
		copy(n.children[idx+1:], n.children[idx:len(n.children)-1])
		n.children[idx] = sibling
	}
	return t.split(n)
}

// split rebalances an overfull node via quadratic-cost pick-seeds,
// returning a new sibling node when n exceeded nodeMaxSize, or nil
// otherwise. n is mutated in place to become the first of the two groups.
func (t *RTree) split(n *rtreeNode) *rtreeNode {
	count := n.objectCount()
	if count <= t.nodeMaxSize {
		return nil
	}

	bb := func(i int) Spec {
		if n.isLeaf {
			return n.entries[i].Key
		}
		return n.children[i].boundingBox
	}
	covered := func(i int) float64 {
		if n.isLeaf {
			return n.entries[i].Key.Cost
		}
		return n.children[i].coveredApprox
	}

	a, b := 0, 1
	maxCost := -1.0
	for i := 0; i < count; i++ {
		for j := i + 1; j < count; j++ {
			spec := t.feature.Labeling.Join(bb(i).Value, bb(j).Value)
			if spec.Cost > maxCost {
				maxCost, a, b = spec.Cost, i, j
			}
		}
	}

	var groupIdx [2][]int
	groupIdx[0] = []int{a}
	groupIdx[1] = []int{b}
	groupBB := [2]Spec{bb(a), bb(b)}
	groupCovered := [2]float64{covered(a), covered(b)}

	remainingUndecided := count - 2
	for i := 0; i < count; i++ {
		if i == a || i == b {
			continue
		}
		remainingUndecided--
		remAfter := remainingUndecided

		var g int
		switch {
		case len(groupIdx[0]) <= t.nodeMinSize-remAfter:
			g = 0
		case len(groupIdx[1]) <= t.nodeMinSize-remAfter:
			g = 1
		default:
			spec1 := t.feature.Labeling.Join(groupBB[0].Value, bb(i).Value)
			spec2 := t.feature.Labeling.Join(groupBB[1].Value, bb(i).Value)
			diff1 := spec1.Cost - groupBB[0].Cost
			diff2 := spec2.Cost - groupBB[1].Cost
			switch {
			case math.Abs(diff1-diff2) > tieEps:
				if diff1 < diff2 {
					g = 0
				} else {
					g = 1
				}
			case math.Abs(spec1.Cost-spec2.Cost) > tieEps:
				if spec1.Cost < spec2.Cost {
					g = 0
				} else {
					g = 1
				}
			default:
				if len(groupIdx[0]) < len(groupIdx[1]) {
					g = 0
				} else {
					g = 1
				}
			}
		}

		groupIdx[g] = append(groupIdx[g], i)
		groupBB[g] = t.feature.Labeling.Join(groupBB[g].Value, bb(i).Value)
		groupCovered[g] += covered(i)
	}

	if len(groupIdx[0]) < t.nodeMinSize || len(groupIdx[0]) > t.nodeMaxSize ||
		len(groupIdx[1]) < t.nodeMinSize || len(groupIdx[1]) > t.nodeMaxSize {
		panic("intentminer: rtree split violated the node fan-out invariant")
	}

	n0 := &rtreeNode{boundingBox: groupBB[0], isLeaf: n.isLeaf, coveredApprox: groupCovered[0]}
	n1 := &rtreeNode{boundingBox: groupBB[1], isLeaf: n.isLeaf, coveredApprox: groupCovered[1]}
	if n.isLeaf {
		for _, idx := range groupIdx[0] {
			n0.entries = append(n0.entries, n.entries[idx])
		}
		for _, idx := range groupIdx[1] {
			n1.entries = append(n1.entries, n.entries[idx])
		}
	} else {
		for _, idx := range groupIdx[0] {
			n0.children = append(n0.children, n.children[idx])
		}
		for _, idx := range groupIdx[1] {
			n1.children = append(n1.children, n.children[idx])
		}
	}
	*n = *n0
	return n1
}

// GetSubsets returns every stored entry whose key is a subset of key.
func (t *RTree) GetSubsets(key Spec) []RTreeEntry {
	var acc []RTreeEntry
	t.getSubsets(key, t.root, &acc)
	return acc
}

func (t *RTree) getSubsets(key Spec, n *rtreeNode, acc *[]RTreeEntry) {
	if n.isLeaf {
		for _, e := range n.entries {
			if t.feature.Labeling.Subset(e.Key.Value, key.Value) {
				*acc = append(*acc, e)
			}
		}
		return
	}
	for _, c := range n.children {
		if _, ok := t.feature.Labeling.Meet(c.boundingBox.Value, key.Value); ok {
			t.getSubsets(key, c, acc)
		}
	}
}

// RemoveSubset deletes every stored entry whose key is a subset of key
// and returns the total cost reclaimed (the sum of those entries' costs,
// approximately — bounding boxes above the removed entries are not
// re-tightened beyond what this removal pass touches).
func (t *RTree) RemoveSubset(key Spec) float64 {
	before := t.root.coveredApprox
	t.removeSubset(key, t.root)
	if t.root.objectCount() == 0 {
		top := t.feature.Labeling.Top()
		t.root = &rtreeNode{boundingBox: Spec{Cost: t.feature.Labeling.Cost(top), Value: top}, isLeaf: true}
	}
	return before - t.root.coveredApprox
}

func (t *RTree) removeSubset(key Spec, n *rtreeNode) {
	if t.feature.Labeling.Subset(n.boundingBox.Value, key.Value) {
		n.coveredApprox = 0
		n.entries = nil
		n.children = nil
		return
	}

	if n.isLeaf {
		var kept []RTreeEntry
		for _, e := range n.entries {
			if t.feature.Labeling.Subset(e.Key.Value, key.Value) {
				n.coveredApprox -= e.Key.Cost
			} else {
				kept = append(kept, e)
			}
		}
		n.entries = kept
	} else {
		for _, c := range n.children {
			if _, ok := t.feature.Labeling.Meet(c.boundingBox.Value, key.Value); ok {
				n.coveredApprox -= c.coveredApprox
				t.removeSubset(key, c)
				n.coveredApprox += c.coveredApprox
			}
		}
		var kept []*rtreeNode
		for _, c := range n.children {
			if c.objectCount() > 0 {
				kept = append(kept, c)
			}
		}
		n.children = kept
	}

	if n != t.root && n.objectCount() == 0 {
		panic("intentminer: rtree left a non-root node with zero entries after removal")
	}

	if n.objectCount() > 0 {
		if n.isLeaf {
			bb := n.entries[0].Key
			for _, e := range n.entries[1:] {
				bb = t.feature.Labeling.Join(bb.Value, e.Key.Value)
			}
			n.boundingBox = bb
		} else {
			bb := n.children[0].boundingBox
			for _, c := range n.children[1:] {
				bb = t.feature.Labeling.Join(bb.Value, c.boundingBox.Value)
			}
			n.boundingBox = bb
		}
	}
}

type rtreeHeapItem struct {
	dist  float64
	node  *rtreeNode
	entry *RTreeEntry
}

type rtreeHeap []rtreeHeapItem

func (h rtreeHeap) Len() int           { return len(h) }
func (h rtreeHeap) Less(i, j int) bool { return h[i].dist < h[j].dist }
func (h rtreeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *rtreeHeap) Push(x any)        { *h = append(*h, x.(rtreeHeapItem)) }
func (h *rtreeHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// GetKNNApprox returns up to k stored entries approximately nearest to
// key, via a best-first search ordered by "extra cost" — the amount
// joining a candidate with key would grow beyond the candidate's own and
// key's own cost. It is approximate because a node is expanded (and its
// children given their own priorities) before any of its descendants are
// compared directly against key.
func (t *RTree) GetKNNApprox(key Spec, k int) []RTreeEntry {
	h := &rtreeHeap{}
	heap.Init(h)

	extraCost := func(candidate Spec) float64 {
		joined := t.feature.Labeling.Join(candidate.Value, key.Value)
		return joined.Cost - candidate.Cost - key.Cost
	}

	heap.Push(h, rtreeHeapItem{dist: extraCost(t.root.boundingBox), node: t.root})

	var ret []RTreeEntry
	for h.Len() > 0 && len(ret) < k {
		item := heap.Pop(h).(rtreeHeapItem)
		if item.entry != nil {
			ret = append(ret, *item.entry)
			continue
		}
		if item.node.isLeaf {
			for i := range item.node.entries {
				e := item.node.entries[i]
				heap.Push(h, rtreeHeapItem{dist: extraCost(e.Key), entry: &e})
			}
		} else {
			for _, c := range item.node.children {
				heap.Push(h, rtreeHeapItem{dist: extraCost(c.boundingBox), node: c})
			}
		}
	}
	return ret
}
