// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package intentminer

import (
	"container/heap"
	"math"
)

// hregexState is one node of the join search graph: i/j are 1-based
// cursors into l1/l2, iM/jM mark whether the element currently under the
// cursor may still be consumed again (it was matched via a "+" without
// advancing), lM marks whether l is a fully-decided output label still
// absorbing more input, and l is the output label under construction.
// n counts emitted output positions, stored negated so that a plain
// min-cost priority order also prefers longer partial outputs at equal
// cost, matching the tie-break the search relies on.
type hregexState struct {
	n          int
	i, j       int
	iM, jM, lM bool
	l          string
}

func lessHregexState(a, b hregexState) bool {
	if a.n != b.n {
		return a.n < b.n
	}
	if a.i != b.i {
		return a.i < b.i
	}
	if a.j != b.j {
		return a.j < b.j
	}
	if a.iM != b.iM {
		return !a.iM
	}
	if a.jM != b.jM {
		return !a.jM
	}
	if a.lM != b.lM {
		return !a.lM
	}
	return a.l < b.l
}

type hregexQueueItem struct {
	cost      float64
	state     hregexState
	parent    hregexState
	hasParent bool
}

type hregexHeap []hregexQueueItem

func (h hregexHeap) Len() int { return len(h) }
func (h hregexHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	return lessHregexState(h[i].state, h[j].state)
}
func (h hregexHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *hregexHeap) Push(x any)   { *h = append(*h, x.(hregexQueueItem)) }
func (h *hregexHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

type hregexClosedEntry struct {
	cost      float64
	parent    hregexState
	hasParent bool
}

// impossible reports whether a state cannot lead to any valid match: a
// "+" carry-over (iM/jM) requires the carried element to still be
// markable as repeatable, and a state not mid-label (lM false) still
// needing more input from an exhausted side cannot proceed.
func impossible(l1, l2 HRegex, n1, n2 int, st hregexState) bool {
	if st.iM && (st.i > n1 || !l1.Elements[st.i-1].Multiple) {
		return true
	}
	if st.jM && (st.j > n2 || !l2.Elements[st.j-1].Multiple) {
		return true
	}
	if !st.lM && (st.i > n1 || st.j > n2) {
		return true
	}
	return false
}

func cloneLabelSet(s map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// join searches for the cheapest output HRegex that both l1 and l2 are
// subsets of, preferring (among goal states reached at minimal actual
// cost order) the longest output with the smallest geometric-mean
// per-element cost. The search space has no admissible heuristic beyond
// the trivial multiplicative identity, so ordering by raw accumulated
// cost makes this a uniform-cost (Dijkstra) search.
func (hl *HRegexLabeling) join(l1, l2 HRegex) Spec {
	h := hl.Labels
	n1, n2 := l1.Len(), l2.Len()
	if n1 == 0 || n2 == 0 {
		panic("intentminer: hregex join requires non-empty sequences")
	}
	N := n1
	if n2 < N {
		N = n2
	}

	closed := map[hregexState]hregexClosedEntry{}
	pq := &hregexHeap{}
	heap.Init(pq)

	start1 := h.predecessorsOf(l1.Elements[0].Label)
	start2 := h.predecessorsOf(l2.Elements[0].Label)
	for label := range start1 {
		if _, ok := start2[label]; !ok {
			continue
		}
		st := hregexState{n: -1, i: 1, j: 1, l: label}
		heap.Push(pq, hregexQueueItem{cost: h.info[label].Cost, state: st})
	}

	var bestState hregexState
	var bestCost float64
	haveBest := false

	for pq.Len() > 0 {
		item := heap.Pop(pq).(hregexQueueItem)
		st := item.state
		if _, seen := closed[st]; seen {
			continue
		}
		closed[st] = hregexClosedEntry{cost: item.cost, parent: item.parent, hasParent: item.hasParent}

		if st.i > n1 && st.j > n2 {
			if !haveBest {
				bestState, bestCost, haveBest = st, item.cost, true
			} else if (-st.n) > (-bestState.n) {
				newNorm := math.Pow(item.cost, -1.0/float64(st.n))
				bestNorm := math.Pow(bestCost, -1.0/float64(bestState.n))
				if newNorm < bestNorm {
					bestState, bestCost = st, item.cost
				}
			}
			if -st.n < N {
				continue
			}
			elements := reconstructHRegex(closed, bestState)
			finalCost := math.Pow(math.Pow(bestCost, -1.0/float64(bestState.n)), hl.D)
			return Spec{Cost: finalCost, Value: HRegex{Elements: elements}}
		}

		if impossible(l1, l2, n1, n2, st) {
			continue
		}

		var aI, bJ *HRegexElement
		if st.i <= n1 {
			aI = &l1.Elements[st.i-1]
		}
		if st.j <= n2 {
			bJ = &l2.Elements[st.j-1]
		}

		push := func(next hregexState, addCost float64) {
			if _, done := closed[next]; done {
				return
			}
			heap.Push(pq, hregexQueueItem{cost: item.cost * addCost, state: next, parent: st, hasParent: true})
		}

		// 1: consume another repetition of l1's current element.
		if st.iM && aI != nil && h.hierCost(aI.Label, st.l) < math.Inf(1) {
			push(hregexState{n: st.n, i: st.i + 1, j: st.j, iM: false, jM: st.jM, lM: st.lM, l: st.l}, 1)
		}
		// 2: consume another repetition of l2's current element.
		if st.jM && bJ != nil && h.hierCost(bJ.Label, st.l) < math.Inf(1) {
			push(hregexState{n: st.n, i: st.i, j: st.j + 1, iM: st.iM, jM: false, lM: st.lM, l: st.l}, 1)
		}
		// 3: start a new output label once the current one is settled.
		if st.lM && -st.n < N {
			var l1s, l2s map[string]struct{}
			if st.i > n1 {
				l1s = h.allNames
			} else {
				l1s = cloneLabelSet(h.predecessorsOf(aI.Label))
				if st.iM && st.i < n1 {
					for k := range h.predecessorsOf(l1.Elements[st.i].Label) {
						l1s[k] = struct{}{}
					}
				}
			}
			if st.j > n2 {
				l2s = h.allNames
			} else {
				l2s = cloneLabelSet(h.predecessorsOf(bJ.Label))
				if st.jM && st.j < n2 {
					for k := range h.predecessorsOf(l2.Elements[st.j].Label) {
						l2s[k] = struct{}{}
					}
				}
			}
			for ll := range l1s {
				if _, ok := l2s[ll]; !ok {
					continue
				}
				push(hregexState{n: -(-st.n + 1), i: st.i, j: st.j, iM: st.iM, jM: st.jM, lM: false, l: ll}, h.info[ll].Cost)
			}
		}

		// 4/5: match the current output label against one or both inputs.
		if !st.lM {
			aFinite := aI != nil && h.hierCost(aI.Label, st.l) < math.Inf(1)
			bFinite := bJ != nil && h.hierCost(bJ.Label, st.l) < math.Inf(1)
			switch {
			case aFinite && bFinite:
				ii, iiM := st.i, true
				if !aI.Multiple {
					ii, iiM = st.i+1, false
				}
				jj, jjM := st.j, true
				if !bJ.Multiple {
					jj, jjM = st.j+1, false
				}
				push(hregexState{n: st.n, i: ii, j: jj, iM: iiM, jM: jjM, lM: true, l: st.l}, 1)
			default:
				if aFinite {
					ii, iiM := st.i, true
					if !aI.Multiple {
						ii, iiM = st.i+1, false
					}
					push(hregexState{n: st.n, i: ii, j: st.j, iM: iiM, jM: st.jM, lM: true, l: st.l}, 1)
				}
				if bFinite {
					jj, jjM := st.j, true
					if !bJ.Multiple {
						jj, jjM = st.j+1, false
					}
					push(hregexState{n: st.n, i: st.i, j: jj, iM: st.iM, jM: jjM, lM: true, l: st.l}, 1)
				}
			}
		}
	}

	panic("intentminer: hregex join exhausted its search space without reaching a goal")
}

// reconstructHRegex walks the closed-state parent chain from goal back to
// the start, emitting one HRegexElement each time the output label
// finalized (lM transitions to false) or a new output position began
// (the parent's n differs from the current node's n).
func reconstructHRegex(closed map[hregexState]hregexClosedEntry, goal hregexState) []HRegexElement {
	node := goal
	entry := closed[node]
	parent, hasParent := entry.parent, entry.hasParent

	var ret []HRegexElement
	c := 0
	for {
		c++
		emit := !hasParent || parent.n != node.n
		if emit {
			m := c > 2 || node.iM || node.jM
			ret = append(ret, HRegexElement{Label: node.l, Multiple: m})
			c = 0
		}
		if !hasParent {
			break
		}
		node = parent
		e := closed[node]
		parent, hasParent = e.parent, e.hasParent
	}

	for i, j := 0, len(ret)-1; i < j; i, j = i+1, j-1 {
		ret[i], ret[j] = ret[j], ret[i]
	}
	return ret
}
