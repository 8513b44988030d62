// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package intentminer

import (
	"container/heap"
	"math/rand/v2"
	"sort"
	"time"
)

// IntentInfo describes one step of a clustering run: the cluster count
// reached, the cluster indices newly added at this step, and the indices
// (original flows or earlier merged clusters) it subsumes.
type IntentInfo struct {
	K       int
	Added   []int
	Removed []int
}

// DistanceMeasure scores a candidate merge of a and b into joined. Lower
// is preferred.
type DistanceMeasure func(a, b, joined Spec) float64

// JoinCostDistance scores a merge by the absolute cost of the
// generalization it would produce.
func JoinCostDistance(a, b, joined Spec) float64 { return joined.Cost }

// CostGainDistance scores a merge by how much cost the generalization
// adds beyond what a and b already cost individually. This is the
// default: it drives the clustering toward cheap incremental
// generalizations rather than toward absolutely cheap clusters.
func CostGainDistance(a, b, joined Spec) float64 { return joined.Cost - a.Cost - b.Cost }

// ClusterStat records the clustering state after one step, for the CSV
// artifact.
type ClusterStat struct {
	K           int
	OverallCost float64
	Elapsed     time.Duration
}

type closestEntry struct {
	Dist   float64
	Joined Spec
	A, B   int
}

type closestHeap []closestEntry

func (h closestHeap) Len() int { return len(h) }
func (h closestHeap) Less(i, j int) bool {
	if h[i].Dist != h[j].Dist {
		return h[i].Dist < h[j].Dist
	}
	if h[i].A != h[j].A {
		return h[i].A < h[j].A
	}
	return h[i].B < h[j].B
}
func (h closestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *closestHeap) Push(x any)   { *h = append(*h, x.(closestEntry)) }
func (h *closestHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

func insertClosest(bucket []closestEntry, e closestEntry, maxSize int) []closestEntry {
	bucket = append(bucket, e)
	sort.Slice(bucket, func(i, j int) bool {
		if bucket[i].Dist != bucket[j].Dist {
			return bucket[i].Dist < bucket[j].Dist
		}
		if bucket[i].A != bucket[j].A {
			return bucket[i].A < bucket[j].A
		}
		return bucket[i].B < bucket[j].B
	})
	if len(bucket) > maxSize {
		bucket = bucket[:maxSize]
	}
	return bucket
}

func sortedKeys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func removeValue(s []int, v int) []int {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// ClusteringConfig configures a HierarchicalClustering run.
// NewHierarchicalClustering replaces zero-valued fields with usable
// defaults.
type ClusteringConfig struct {
	// ClusterCount is the target number of clusters to stop at.
	ClusterCount int
	// BatchSize bounds how many candidate partners are evaluated per
	// cluster per round; 0 means "all remaining clusters".
	BatchSize int
	// DistanceMeasure scores candidate merges; nil defaults to
	// CostGainDistance.
	DistanceMeasure DistanceMeasure
	// ClosestClustersBucketSize is the number of cached nearest
	// candidates retained per cluster between recomputations.
	ClosestClustersBucketSize int
	// Rand drives batch sampling; nil defaults to a fixed-seed PCG
	// source so a run is reproducible unless the caller seeds their own.
	Rand *rand.Rand
}

// HierarchicalClustering is the greedy agglomerative driver: it merges
// the two clusters with the smallest DistanceMeasure repeatedly,
// absorbing any cluster subsumed by a freshly formed generalization,
// until ClusterCount remain.
type HierarchicalClustering struct {
	Config ClusteringConfig

	Clusters       []Spec
	Parents        []int
	Stats          []ClusterStat
	Intents        []IntentInfo
	Recomputations []int

	closestClusters [][]closestEntry
}

// NewHierarchicalClustering builds a driver with cfg, applying defaults
// for any zero-valued field that needs one.
func NewHierarchicalClustering(cfg ClusteringConfig) *HierarchicalClustering {
	if cfg.DistanceMeasure == nil {
		cfg.DistanceMeasure = CostGainDistance
	}
	if cfg.ClusterCount < 1 {
		cfg.ClusterCount = 1
	}
	if cfg.ClosestClustersBucketSize < 1 {
		cfg.ClosestClustersBucketSize = 1
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(10, 10))
	}
	return &HierarchicalClustering{Config: cfg}
}

// ClusterCallback is invoked once per clustering step, in order,
// including the initial step (K == len(flows)).
type ClusterCallback func(IntentInfo)

// Cluster runs the bucket-cache variant of the clustering driver over
// flows under feature, invoking callback after every step, and returns
// the final cluster set. See ClusterWithIndex for the R-tree-backed
// variant used when the flow count makes the O(remaining) batch scan too
// expensive.
func (hc *HierarchicalClustering) Cluster(flows []any, feature Feature, callback ClusterCallback) []Spec {
	labeling := feature.Labeling
	batchSize := hc.Config.BatchSize
	if batchSize <= 0 {
		batchSize = len(flows)
	}

	hc.Clusters = make([]Spec, len(flows))
	for i, f := range flows {
		hc.Clusters[i] = labeling.Join(f, f)
	}
	hc.Parents = make([]int, len(flows))
	for i := range hc.Parents {
		hc.Parents[i] = i
	}
	hc.closestClusters = make([][]closestEntry, len(flows))

	start := time.Now()
	overallCost := 0.0
	for _, c := range hc.Clusters {
		overallCost += c.Cost
	}

	remaining := make(map[int]struct{}, len(flows))
	for i := range flows {
		remaining[i] = struct{}{}
	}

	updateClosest := func(i int, batch []int, checkSubsumption, updateOther bool) []int {
		var subsumed []int
		for _, j := range batch {
			if checkSubsumption && labeling.Subset(hc.Clusters[j].Value, hc.Clusters[i].Value) {
				subsumed = append(subsumed, j)
				continue
			}
			spec := labeling.Join(hc.Clusters[i].Value, hc.Clusters[j].Value)
			dist := hc.Config.DistanceMeasure(hc.Clusters[i], hc.Clusters[j], spec)
			hc.closestClusters[i] = insertClosest(hc.closestClusters[i], closestEntry{dist, spec, i, j}, hc.Config.ClosestClustersBucketSize)
			if updateOther {
				hc.closestClusters[j] = insertClosest(hc.closestClusters[j], closestEntry{dist, spec, j, i}, hc.Config.ClosestClustersBucketSize)
			}
		}
		return subsumed
	}

	getBatch := func() []int {
		total := len(hc.Clusters)
		if len(remaining) <= batchSize {
			return sortedKeys(remaining)
		}
		set := make(map[int]struct{}, batchSize)
		if (float64(total)/float64(len(remaining)))*float64(batchSize) < float64(len(remaining)) {
			for len(set) < batchSize {
				r := hc.Config.Rand.IntN(total)
				if _, ok := remaining[r]; ok {
					set[r] = struct{}{}
				}
			}
		} else {
			pool := sortedKeys(remaining)
			hc.Config.Rand.Shuffle(len(pool), func(a, b int) { pool[a], pool[b] = pool[b], pool[a] })
			for _, v := range pool[:batchSize] {
				set[v] = struct{}{}
			}
		}
		return sortedKeys(set)
	}

	var getClosestCluster func(c int, recomputeIfEmpty bool) (closestEntry, bool)
	getClosestCluster = func(c int, recomputeIfEmpty bool) (closestEntry, bool) {
		for len(hc.closestClusters[c]) > 0 {
			head := hc.closestClusters[c][0]
			if _, ok := remaining[head.B]; ok {
				return head, true
			}
			hc.closestClusters[c] = hc.closestClusters[c][1:]
		}
		if recomputeIfEmpty {
			batch := removeValue(getBatch(), c)
			updateClosest(c, batch, false, false)
			hc.Recomputations = append(hc.Recomputations, len(remaining))
			return getClosestCluster(c, false)
		}
		return closestEntry{}, false
	}

	pq := &closestHeap{}
	heap.Init(pq)

	for i := range hc.Clusters {
		var batch []int
		if len(hc.Clusters)-i <= batchSize {
			for j := i + 1; j < len(hc.Clusters); j++ {
				batch = append(batch, j)
			}
		} else {
			width := len(hc.Clusters) - 1 - i
			for x := 0; x < batchSize; x++ {
				batch = append(batch, i+1+hc.Config.Rand.IntN(width))
			}
		}
		updateClosest(i, batch, false, true)
		if e, ok := getClosestCluster(i, false); ok {
			heap.Push(pq, e)
		}
	}

	emit := func() {
		hc.Stats = append(hc.Stats, ClusterStat{K: len(remaining), OverallCost: overallCost, Elapsed: time.Since(start)})
	}
	emit()
	initialAdded := sortedKeys(remaining)
	hc.Intents = append(hc.Intents, IntentInfo{K: len(remaining), Added: initialAdded})
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
				if e, ok := getClosestCluster(candidate.A, true); ok {
					heap.Push(pq, e)
				}
			case bLive:
				if e, ok := getClosestCluster(candidate.B, true); ok {
					heap.Push(pq, e)
				}
			}
		}

		newID := len(hc.Clusters)
		a, b := best.A, best.B
		overallCost += best.Joined.Cost - hc.Clusters[a].Cost - hc.Clusters[b].Cost

		hc.Clusters = append(hc.Clusters, best.Joined)
		hc.closestClusters = append(hc.closestClusters, nil)
		hc.Parents = append(hc.Parents, newID)
		delete(remaining, a)
		delete(remaining, b)
		hc.Parents[a] = newID
		hc.Parents[b] = newID
		removed := []int{a, b}

		for {
			batch := getBatch()
			subsumed := updateClosest(newID, batch, true, true)
			for _, c := range subsumed {
				overallCost -= hc.Clusters[c].Cost
				delete(remaining, c)
				hc.Parents[c] = newID
			}
			removed = append(removed, subsumed...)
			if batchSize >= len(remaining)+len(subsumed) || len(subsumed) < len(batch) {
				break
			}
		}

		remaining[newID] = struct{}{}
		if e, ok := getClosestCluster(newID, false); ok {
			heap.Push(pq, e)
		}

		emit()
		sort.Ints(removed)
		info := IntentInfo{K: len(remaining), Added: []int{newID}, Removed: removed}
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
