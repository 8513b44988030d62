// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package intentminer

import "sort"

// CoverMapGenerator replays an IntentInfo stream against a flow set,
// reporting which flow indices are newly covered at each step — the
// first cluster in the stream that generalizes them. Two implementations
// are available: index-based (an internal RTree, O(log n) per query) and
// linear-scan (checks every remaining flow against every added cluster
// each step, O(remaining * added)); the latter exists to sanity-check the
// former, since both must produce identical cover maps.
type CoverMapGenerator struct {
	Flows    []any
	Clusters []Spec
	Feature  Feature

	UseIndex                 bool
	NodeMinSize, NodeMaxSize int
}

// NewCoverMapGenerator builds an index-backed generator with reasonable
// default R-tree fan-out bounds.
func NewCoverMapGenerator(flows []any, clusters []Spec, feature Feature) *CoverMapGenerator {
	return &CoverMapGenerator{Flows: flows, Clusters: clusters, Feature: feature, UseIndex: true, NodeMinSize: 2, NodeMaxSize: 10}
}

// GetCoverMap returns, for every step's K, the sorted flow indices first
// covered at that step.
func (g *CoverMapGenerator) GetCoverMap(intents []IntentInfo) map[int][]int {
	if g.UseIndex {
		return g.getCoverMapIndexed(intents)
	}
	return g.getCoverMapLinear(intents)
}

func (g *CoverMapGenerator) getCoverMapIndexed(intents []IntentInfo) map[int][]int {
	coverMap := make(map[int][]int, len(intents))
	index := NewRTree(g.Feature, g.NodeMinSize, g.NodeMaxSize)
	for i, f := range g.Flows {
		key := g.Feature.Labeling.Join(f, f)
		index.Insert(key, i)
	}
	for _, info := range intents {
		var newAccepted []int
		for _, c := range info.Added {
			for _, e := range index.GetSubsets(g.Clusters[c]) {
				newAccepted = append(newAccepted, e.Value.(int))
			}
			index.RemoveSubset(g.Clusters[c])
		}
		sort.Ints(newAccepted)
		coverMap[info.K] = newAccepted
	}
	return coverMap
}

func (g *CoverMapGenerator) getCoverMapLinear(intents []IntentInfo) map[int][]int {
	coverMap := make(map[int][]int, len(intents))
	remaining := make(map[int]struct{}, len(g.Flows))
	for i := range g.Flows {
		remaining[i] = struct{}{}
	}
	for _, info := range intents {
		var newAccepted []int
		for f := range remaining {
			for _, c := range info.Added {
				if g.Feature.Labeling.Subset(g.Flows[f], g.Clusters[c].Value) {
					newAccepted = append(newAccepted, f)
					break
				}
			}
		}
		for _, f := range newAccepted {
			delete(remaining, f)
		}
		sort.Ints(newAccepted)
		coverMap[info.K] = newAccepted
	}
	return coverMap
}

// CostBasedResult is the running score at one clustering step.
type CostBasedResult struct {
	TP             float64
	Cost           float64
	CardinalitySum float64
}

// IncrementalCostBasedEvaluator scores an intent stream against a flow
// set (the clustered flows or a held-out set): true positives accumulate by
// cardinality as flows get covered, cost and cardinality sum track the
// live cluster set's running totals.
type IncrementalCostBasedEvaluator struct {
	gen      *CoverMapGenerator
	Flows    []any
	Clusters []Spec
	Feature  Feature
}

func NewIncrementalCostBasedEvaluator(flows []any, clusters []Spec, feature Feature) *IncrementalCostBasedEvaluator {
	return &IncrementalCostBasedEvaluator{
		gen:      NewCoverMapGenerator(flows, clusters, feature),
		Flows:    flows,
		Clusters: clusters,
		Feature:  feature,
	}
}

// Evaluate returns the running CostBasedResult keyed by step K.
func (e *IncrementalCostBasedEvaluator) Evaluate(intents []IntentInfo) map[int]CostBasedResult {
	coverMap := e.gen.GetCoverMap(intents)
	res := make(map[int]CostBasedResult, len(intents))
	var tp, cost, cardSum float64
	for _, info := range intents {
		for _, f := range coverMap[info.K] {
			tp += e.Feature.Labeling.Cardinality(e.Flows[f])
		}
		for _, c := range info.Added {
			cost += e.Clusters[c].Cost
			cardSum += e.Feature.Labeling.Cardinality(e.Clusters[c].Value)
		}
		for _, c := range info.Removed {
			cost -= e.Clusters[c].Cost
			cardSum -= e.Feature.Labeling.Cardinality(e.Clusters[c].Value)
		}
		res[info.K] = CostBasedResult{TP: tp, Cost: cost, CardinalitySum: cardSum}
	}
	return res
}

// SampleBasedResult is a running confusion-matrix snapshot at one
// clustering step, measured by cardinality rather than flow count.
type SampleBasedResult struct {
	TP, FP, TN, FN float64
}

// IncrementalSampleBasedEvaluator scores an intent stream against held-out
// positive and negative flow sets.
type IncrementalSampleBasedEvaluator struct {
	pGen, nGen     *CoverMapGenerator
	PFlows, NFlows []any
	Clusters       []Spec
	Feature        Feature
}

func NewIncrementalSampleBasedEvaluator(pFlows, nFlows []any, clusters []Spec, feature Feature) *IncrementalSampleBasedEvaluator {
	return &IncrementalSampleBasedEvaluator{
		pGen:     NewCoverMapGenerator(pFlows, clusters, feature),
		nGen:     NewCoverMapGenerator(nFlows, clusters, feature),
		PFlows:   pFlows,
		NFlows:   nFlows,
		Clusters: clusters,
		Feature:  feature,
	}
}
