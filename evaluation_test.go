package intentminer

import (
	"reflect"
	"testing"
)

func clusterSmallRun(t *testing.T) (Feature, []any, *HierarchicalClustering) {
	t.Helper()
	feature := Feature{Name: "role", Labeling: NewDValueLabeling(8)}
	flows := []any{"a", "b", "c", "d"}
	hc := NewHierarchicalClustering(ClusteringConfig{ClusterCount: 1})
	hc.Cluster(flows, feature, nil)
	return feature, flows, hc
}

// TestCoverMapGeneratorIndexVsLinear checks the index-backed and
// linear-scan cover map generators agree, since both are expected to
// compute the same thing by construction.
func TestCoverMapGeneratorIndexVsLinear(t *testing.T) {
	feature, flows, hc := clusterSmallRun(t)

	indexed := &CoverMapGenerator{Flows: flows, Clusters: hc.Clusters, Feature: feature, UseIndex: true, NodeMinSize: 2, NodeMaxSize: 8}
	linear := &CoverMapGenerator{Flows: flows, Clusters: hc.Clusters, Feature: feature, UseIndex: false}

	got := indexed.GetCoverMap(hc.Intents)
	want := linear.GetCoverMap(hc.Intents)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("indexed cover map %v != linear cover map %v", got, want)
	}
}

func TestIncrementalCostBasedEvaluatorCoversAllFlows(t *testing.T) {
	feature, flows, hc := clusterSmallRun(t)

	eval := NewIncrementalCostBasedEvaluator(flows, hc.Clusters, feature)
	res := eval.Evaluate(hc.Intents)

	final := res[1]
	wantTP := 0.0
	for _, f := range flows {
		wantTP += feature.Labeling.Cardinality(f)
	}
	if final.TP != wantTP {
		t.Fatalf("final TP = %v, want %v (every flow eventually covered)", final.TP, wantTP)
	}
	if final.Cost != hc.Clusters[len(hc.Clusters)-1].Cost {
		t.Fatalf("final running Cost = %v, want the single live cluster's cost %v", final.Cost, hc.Clusters[len(hc.Clusters)-1].Cost)
	}
}
