package intentminer

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestHierarchicalClusteringInvariants(t *testing.T) {
	feature := Feature{Name: "role", Labeling: NewDValueLabeling(8)}
	flows := []any{"a", "b", "c", "d", "e", "f"}

	hc := NewHierarchicalClustering(ClusteringConfig{
		ClusterCount: 1,
		Rand:         rand.New(rand.NewPCG(1, 1)),
	})
	result := hc.Cluster(flows, feature, nil)

	if len(result) != 1 {
		t.Fatalf("|remaining_clusters| = %d, want 1", len(result))
	}

	// Replay the IntentInfo stream's added/removed bookkeeping and check
	// it tracks the same live set the Parents forest implies, and that
	// overall_cost matches the sum of live cluster costs at every step.
	live := map[int]struct{}{}
	for k, info := range hc.Intents {
		for _, a := range info.Added {
			live[a] = struct{}{}
		}
		for _, r := range info.Removed {
			delete(live, r)
		}
		if len(live) != info.K {
			t.Fatalf("step %d: live set size %d does not match IntentInfo.K %d", k, len(live), info.K)
		}

		sum := 0.0
		for id := range live {
			sum += hc.Clusters[id].Cost
		}
		if math.Abs(sum-hc.Stats[k].OverallCost) > 1e-9 {
			t.Fatalf("step %d: overall_cost %v != sum of live cluster costs %v", k, hc.Stats[k].OverallCost, sum)
		}
	}

	for id := range live {
		if hc.Parents[id] != id {
			t.Fatalf("final live cluster %d is not its own root in Parents", id)
		}
	}
	for i, p := range hc.Parents {
		if p == i {
			continue
		}
		labeling := feature.Labeling
		cur := i
		for hc.Parents[cur] != cur {
			next := hc.Parents[cur]
			if !labeling.Subset(hc.Clusters[cur].Value, hc.Clusters[next].Value) {
				t.Fatalf("subset(clusters[%d], clusters[%d]) does not hold along the parent chain", cur, next)
			}
			cur = next
		}
	}
}

func TestHierarchicalClusteringDeterministic(t *testing.T) {
	feature := Feature{Name: "role", Labeling: NewDValueLabeling(8)}
	flows := []any{"a", "b", "c", "d", "e", "f", "g", "h"}

	run := func() ([]Spec, []IntentInfo) {
		hc := NewHierarchicalClustering(ClusteringConfig{
			ClusterCount: 2,
			Rand:         rand.New(rand.NewPCG(42, 42)),
		})
		result := hc.Cluster(flows, feature, nil)
		return result, hc.Intents
	}

	result1, intents1 := run()
	result2, intents2 := run()

	if len(result1) != len(result2) {
		t.Fatalf("result length differs across runs: %d vs %d", len(result1), len(result2))
	}
	for i := range result1 {
		if result1[i].Value != result2[i].Value || result1[i].Cost != result2[i].Cost {
			t.Fatalf("result[%d] differs across identically-seeded runs: %v vs %v", i, result1[i], result2[i])
		}
	}
	if len(intents1) != len(intents2) {
		t.Fatalf("intent stream length differs across runs: %d vs %d", len(intents1), len(intents2))
	}
}
