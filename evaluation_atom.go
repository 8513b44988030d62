// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package intentminer

// AtomCoverMapGenerator replays an IntentInfo stream against a
// MeetSemiLattice built from the final cluster set, reporting which
// lattice nodes (atoms of the clustering's own generalization structure,
// not raw flows) are newly covered at each step. Unlike CoverMapGenerator
// this measures coverage of the cluster lattice itself, useful for
// evaluating coverage when no separate held-out flow set is available.
type AtomCoverMapGenerator struct {
	Clusters []Spec
	Feature  Feature
	lattice  *MeetSemiLattice
}

// NewAtomCoverMapGenerator builds a MeetSemiLattice from clusters and
// memoizes every node's cardinality.
func NewAtomCoverMapGenerator(clusters []Spec, feature Feature) *AtomCoverMapGenerator {
	g := &AtomCoverMapGenerator{Clusters: clusters, Feature: feature, lattice: NewMeetSemiLattice(feature)}
	for _, c := range clusters {
		g.lattice.Insert(c.Value)
	}
	g.lattice.ComputeAllCardinality()
	return g
}

func (g *AtomCoverMapGenerator) acceptedBy(added []int) map[*LatticeNode]struct{} {
	ret := map[*LatticeNode]struct{}{}
	for _, i := range added {
		for n := range g.lattice.GetLabelSubtree(g.Clusters[i].Value) {
			ret[n] = struct{}{}
		}
	}
	return ret
}

// GetCoverMap returns, for every step's K, the lattice nodes first
// covered at that step.
func (g *AtomCoverMapGenerator) GetCoverMap(intents []IntentInfo) map[int]map[*LatticeNode]struct{} {
	covered := map[*LatticeNode]struct{}{}
	coverMap := make(map[int]map[*LatticeNode]struct{}, len(intents))
	for _, info := range intents {
		newAccepted := map[*LatticeNode]struct{}{}
		for n := range g.acceptedBy(info.Added) {
			if _, ok := covered[n]; !ok {
				newAccepted[n] = struct{}{}
				covered[n] = struct{}{}
			}
		}
		coverMap[info.K] = newAccepted
	}
	return coverMap
}

// Evaluate returns the running total cardinality covered at each step.
func (g *AtomCoverMapGenerator) Evaluate(intents []IntentInfo) map[int]float64 {
	coverMap := g.GetCoverMap(intents)
	res := make(map[int]float64, len(intents))
	covered := 0.0
	for _, info := range intents {
		for n := range coverMap[info.K] {
			covered += g.lattice.Cardinality(n)
		}
		res[info.K] = covered
	}
	return res
}
