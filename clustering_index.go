// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package intentminer

import (
	"container/heap"
	"sort"
	"time"
)

// ClusterWithIndex runs the R-tree-backed variant of the clustering
// driver: instead of per-cluster bucket caches, nearest-partner lookup
// goes through an RTree's approximate kNN search. This bypasses the
// bucket cache and its periodic recomputation entirely, trading exact
// distance bookkeeping for index upkeep cost; it scales better when the
// flow count makes batch_size-bounded linear scans too expensive.
func (hc *HierarchicalClustering) ClusterWithIndex(flows []any, feature Feature, nodeMinSize, nodeMaxSize int, callback ClusterCallback) []Spec {
	labeling := feature.Labeling

	hc.Clusters = make([]Spec, len(flows))
	for i, f := range flows {
		hc.Clusters[i] = labeling.Join(f, f)
	}
	hc.Parents = make([]int, len(flows))
	for i := range hc.Parents {
		hc.Parents[i] = i
	}

	start := time.Now()
	overallCost := 0.0
	for _, c := range hc.Clusters {
		overallCost += c.Cost
	}

	remaining := make(map[int]struct{}, len(flows))
	for i := range flows {
		remaining[i] = struct{}{}
	}

	index := NewRTree(feature, nodeMinSize, nodeMaxSize)
	for i := range hc.Clusters {
		index.Insert(hc.Clusters[i], i)
	}

	getClosest := func(c int) (int, bool) {
		res := index.GetKNNApprox(hc.Clusters[c], 2)
		if len(res) < 2 {
			return 0, false
		}
		if res[0].Value.(int) == c {
			return res[1].Value.(int), true
		}
		return res[0].Value.(int), true
	}

	push := func(pq *closestHeap, a int) {
		j, ok := getClosest(a)
		if !ok {
			return
		}
		joined := labeling.Join(hc.Clusters[a].Value, hc.Clusters[j].Value)
		dist := CostGainDistance(hc.Clusters[a], hc.Clusters[j], joined)
		heap.Push(pq, closestEntry{Dist: dist, Joined: joined, A: a, B: j})
	}

	pq := &closestHeap{}
	heap.Init(pq)
	for i := range hc.Clusters {
		push(pq, i)
	}

	hc.Stats = append(hc.Stats, ClusterStat{K: len(remaining), OverallCost: overallCost, Elapsed: time.Since(start)})
	hc.Intents = append(hc.Intents, IntentInfo{K: len(remaining), Added: sortedKeys(remaining)})
	if callback != nil {
		callback(hc.Intents[len(hc.Intents)-1])
	}

	for len(remaining) > hc.Config.ClusterCount {
		var best closestEntry
		haveBest := false
		for !haveBest {
			if pq.Len() == 0 {
				panic("intentminer: clustering priority queue exhausted before reaching the target cluster count")
			}
			candidate := heap.Pop(pq).(closestEntry)
			_, aLive := remaining[candidate.A]
			_, bLive := remaining[candidate.B]
			switch {
			case aLive && bLive:
				best, haveBest = candidate, true
			case aLive:
				push(pq, candidate.A)
			case bLive:
				push(pq, candidate.B)
			}
		}

		newID := len(hc.Clusters)
		overallCost += best.Joined.Cost
		hc.Clusters = append(hc.Clusters, best.Joined)
		hc.Parents = append(hc.Parents, newID)
		delete(remaining, best.A)
		delete(remaining, best.B)

		// a and b are themselves subsets of best.Joined, so they (and
		// anything else subsumed) are reclaimed by this one call.
		subsetEntries := index.GetSubsets(best.Joined)
		subsumed := make([]int, 0, len(subsetEntries))
		for _, e := range subsetEntries {
			subsumed = append(subsumed, e.Value.(int))
		}
		index.RemoveSubset(best.Joined)

		for _, c := range subsumed {
			overallCost -= hc.Clusters[c].Cost
			delete(remaining, c)
			hc.Parents[c] = newID
		}

		remaining[newID] = struct{}{}
		index.Insert(best.Joined, newID)
		if len(remaining) > 1 {
			push(pq, newID)
		}

		hc.Stats = append(hc.Stats, ClusterStat{K: len(remaining), OverallCost: overallCost, Elapsed: time.Since(start)})
		sort.Ints(subsumed)
		info := IntentInfo{K: len(remaining), Added: []int{newID}, Removed: subsumed}
		hc.Intents = append(hc.Intents, info)
		if callback != nil {
			callback(info)
		}
	}

	ids := sortedKeys(remaining)
	result := make([]Spec, 0, len(ids))
	for _, id := range ids {
		result = append(result, hc.Clusters[id])
	}
	return result
}
