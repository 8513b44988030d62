// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package intentminer

import "strings"

// HRegexElement is one position of a hierarchical-regex path: a
// hierarchical label, optionally marked as repeatable ("+").
type HRegexElement struct {
	Label    string
	Multiple bool
}

func (e HRegexElement) String() string {
	if e.Multiple {
		return e.Label + "+"
	}
	return e.Label
}

// HRegex is a sequence of HRegexElements, e.g. a device path such as
// "edge core+ edge".
type HRegex struct {
	Elements []HRegexElement
}

// NewHRegex parses whitespace-tokenized labels, where a trailing "+"
// marks the preceding label as repeatable.
func NewHRegex(tokens []string) HRegex {
	elems := make([]HRegexElement, len(tokens))
	for i, t := range tokens {
		if strings.HasSuffix(t, "+") {
			elems[i] = HRegexElement{Label: strings.TrimSuffix(t, "+"), Multiple: true}
		} else {
			elems[i] = HRegexElement{Label: t}
		}
	}
	return HRegex{Elements: elems}
}

func (r HRegex) Len() int { return len(r.Elements) }

func (r HRegex) String() string {
	parts := make([]string, len(r.Elements))
	for i, e := range r.Elements {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Equal reports structural equality: same length, same labels, same
// repeat flags at every position.
func (r HRegex) Equal(o HRegex) bool {
	if len(r.Elements) != len(o.Elements) {
		return false
	}
	for i, e := range r.Elements {
		if e != o.Elements[i] {
			return false
		}
	}
	return true
}

// HRegexLabeling is the domain of HRegex paths over a shared
// HierarchicalLabeling, joined via the A*-style search in hregex_join.go.
// D is the dimension exponent applied to the final per-length geometric
// mean cost (spec.md's "cost_out ** d"); 1 leaves costs unscaled.
type HRegexLabeling struct {
	Labels *HierarchicalLabeling
	D      float64
}

func (l *HRegexLabeling) Join(a, b any) Spec {
	return l.join(a.(HRegex), b.(HRegex))
}

// Meet only succeeds when a and b are structurally identical; no common
// specialization of two distinct sequences is computed. TupleLabeling.Meet
// calls it for HRegex components, so a MeetSemiLattice or an RTree over
// such tuples treats two unequal HRegex paths as disjoint, even where
// their languages overlap.
func (l *HRegexLabeling) Meet(a, b any) (Spec, bool) {
	ra, rb := a.(HRegex), b.(HRegex)
	if ra.Equal(rb) {
		return Spec{Cost: l.Cost(a), Value: ra}, true
	}
	return Spec{}, false
}

func (l *HRegexLabeling) Subset(a, b any) bool {
	ra, rb := a.(HRegex), b.(HRegex)
	joined := l.Join(ra, rb)
	return joined.Value.(HRegex).Equal(rb)
}

func (l *HRegexLabeling) Cost(v any) float64 {
	r := v.(HRegex)
	cost := 1.0
	for _, e := range r.Elements {
		cost *= l.Labels.info[e.Label].Cost
	}
	return cost
}

func (l *HRegexLabeling) Cardinality(v any) float64 {
	return l.Cost(v)
}

func (l *HRegexLabeling) Top() any {
	return HRegex{Elements: []HRegexElement{{Label: l.Labels.root, Multiple: true}}}
}
