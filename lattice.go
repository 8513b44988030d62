// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package intentminer

import "fmt"

// LatticeNode is one node of a MeetSemiLattice: a generalization together
// with every previously-inserted generalization that sits immediately
// below it in specificity.
type LatticeNode struct {
	Label    any
	Children map[*LatticeNode]struct{}

	cardinality *float64
}

// MeetSemiLattice accumulates inserted generalizations into a DAG rooted
// at the domain's top element, accounting for exact cardinality via
// inclusion-exclusion over overlapping descendants.
type MeetSemiLattice struct {
	feature     Feature
	labelToNode map[string]*LatticeNode
	root        *LatticeNode
}

// NewMeetSemiLattice builds a lattice containing only the domain's top
// element.
func NewMeetSemiLattice(feature Feature) *MeetSemiLattice {
	l := &MeetSemiLattice{feature: feature, labelToNode: map[string]*LatticeNode{}}
	root, isNew := l.getNode(feature.Labeling.Top())
	if !isNew {
		panic("intentminer: meet lattice top node already present at construction")
	}
	l.root = root
	return l
}

// keyOf derives a stable map key from a label value. Domain values are
// always rendered through fmt (strings and netip.Prefix render directly;
// HRegex and tuple []any values render via their component Stringers),
// which is sufficient for dedup since distinct labels never share a
// textual rendering within one domain.
func (l *MeetSemiLattice) keyOf(label any) string {
	return fmt.Sprint(label)
}

func (l *MeetSemiLattice) getNode(label any) (*LatticeNode, bool) {
	k := l.keyOf(label)
	if n, ok := l.labelToNode[k]; ok {
		return n, false
	}
	n := &LatticeNode{Label: label, Children: map[*LatticeNode]struct{}{}}
	l.labelToNode[k] = n
	return n, true
}

// Insert places label into the lattice under every already-inserted
// generalization that subsumes it, returning its node. Re-inserting an
// already-present label is a no-op that returns the existing node.
func (l *MeetSemiLattice) Insert(label any) *LatticeNode {
	n, isNew := l.getNode(label)
	if isNew {
		l.insertUnder(n, l.root)
	}
	return n
}

func (l *MeetSemiLattice) subset(a, b any) bool       { return l.feature.Labeling.Subset(a, b) }
func (l *MeetSemiLattice) meet(a, b any) (Spec, bool) { return l.feature.Labeling.Meet(a, b) }

// insertUnder places n somewhere in the subtree rooted at r, which is
// known to subsume n. Each direct child c of r is classified: n fits
// strictly inside c (recurse), c fits strictly inside n (c becomes a
// child of n), or the two merely overlap (n gains a new child for their
// meet, itself inserted under c). Overlap children subsumed by a moved
// child, or by another overlap child, are pruned before n is attached.
func (l *MeetSemiLattice) insertUnder(n, r *LatticeNode) {
	if l.keyOf(n.Label) == l.keyOf(r.Label) {
		return
	}

	var movedChildren []*LatticeNode
	var interChildren []*LatticeNode

	for c := range r.Children {
		switch {
		case l.subset(n.Label, c.Label):
			l.insertUnder(n, c)
			return
		case l.subset(c.Label, n.Label):
			movedChildren = append(movedChildren, c)
		default:
			if spec, ok := l.meet(n.Label, c.Label); ok {
				m, isNew := l.getNode(spec.Value)
				interChildren = append(interChildren, m)
				if isNew {
					l.insertUnder(m, c)
				}
			}
		}
	}

	r.Children[n] = struct{}{}

	for i, ic := range interChildren {
		if ic == nil {
			continue
		}
		for _, c := range movedChildren {
			if l.subset(ic.Label, c.Label) {
				interChildren[i] = nil
				break
			}
		}
	}
	for i := range interChildren {
		if interChildren[i] == nil {
			continue
		}
		for j := range interChildren {
			if i == j || interChildren[j] == nil {
				continue
			}
			if l.subset(interChildren[j].Label, interChildren[i].Label) {
				interChildren[j] = nil
			}
		}
	}

	for _, c := range movedChildren {
		delete(r.Children, c)
		n.Children[c] = struct{}{}
	}
	for _, ic := range interChildren {
		if ic == nil {
			continue
		}
		delete(r.Children, ic)
		n.Children[ic] = struct{}{}
	}
}

func (l *MeetSemiLattice) nodeSubtree(n *LatticeNode) map[*LatticeNode]struct{} {
	res := map[*LatticeNode]struct{}{}
	var add func(*LatticeNode)
	add = func(x *LatticeNode) {
		if _, seen := res[x]; seen {
			return
		}
		res[x] = struct{}{}
		for c := range x.Children {
			add(c)
		}
	}
	add(n)
	return res
}

// Cardinality returns the exact atomic count covered by n, memoized via
// inclusion-exclusion: n's own cardinality minus every strict descendant's
// (already-discounted) cardinality, so overlapping descendants are never
// double-subtracted.
func (l *MeetSemiLattice) Cardinality(n *LatticeNode) float64 {
	if n.cardinality != nil {
		return *n.cardinality
	}
	subtree := l.nodeSubtree(n)
	delete(subtree, n)
	card := l.feature.Labeling.Cardinality(n.Label)
	for d := range subtree {
		card -= l.Cardinality(d)
	}
	n.cardinality = &card
	return card
}

// ComputeAllCardinality memoizes cardinality for every node reachable
// from the root.
func (l *MeetSemiLattice) ComputeAllCardinality() {
	l.Cardinality(l.root)
}

// GetLabelSubtree returns the node for an already-inserted label and
// every node reachable below it. It panics if label was never inserted.
func (l *MeetSemiLattice) GetLabelSubtree(label any) map[*LatticeNode]struct{} {
	k := l.keyOf(label)
	n, ok := l.labelToNode[k]
	if !ok {
		panic("intentminer: GetLabelSubtree called on a label never inserted into the lattice")
	}
	return l.nodeSubtree(n)
}
