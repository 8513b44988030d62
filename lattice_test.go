package intentminer

import "testing"

// TestMeetSemiLatticeCardinality exercises the tuple-of-D-value scenario
// from the insertion-order-independence note: a 3-atom domain on each
// side, inserted as (*,X) and (A,*), with the meet (A,X) deduced
// automatically.
func TestMeetSemiLatticeCardinality(t *testing.T) {
	left := &DValueLabeling{TopCost: 3, AtomCost: 1, TopCardinality: 3}
	right := &DValueLabeling{TopCost: 3, AtomCost: 1, TopCardinality: 3}
	tup := &TupleLabeling{Features: []Feature{
		{Name: "left", Labeling: left},
		{Name: "right", Labeling: right},
	}}
	feature := Feature{Name: "pair", Labeling: tup}

	lattice := NewMeetSemiLattice(feature)
	lattice.Insert([]any{DValueTop, "X"})
	lattice.Insert([]any{"A", DValueTop})
	lattice.ComputeAllCardinality()

	if got := len(lattice.labelToNode); got != 4 {
		t.Fatalf("lattice has %d nodes, want 4 (top, (*,X), (A,*), (A,X))", got)
	}
	if got := lattice.Cardinality(lattice.root); got != 4 {
		t.Fatalf("root cardinality = %v, want 9 - 3 - 3 + 1 = 4", got)
	}
}

func TestMeetSemiLatticeInsertionOrderIndependence(t *testing.T) {
	build := func(order [][]any) float64 {
		left := &DValueLabeling{TopCost: 3, AtomCost: 1, TopCardinality: 3}
		right := &DValueLabeling{TopCost: 3, AtomCost: 1, TopCardinality: 3}
		tup := &TupleLabeling{Features: []Feature{
			{Name: "left", Labeling: left},
			{Name: "right", Labeling: right},
		}}
		feature := Feature{Name: "pair", Labeling: tup}
		lattice := NewMeetSemiLattice(feature)
		for _, v := range order {
			lattice.Insert(v)
		}
		lattice.ComputeAllCardinality()
		return lattice.Cardinality(lattice.root)
	}

	forward := [][]any{{DValueTop, "X"}, {"A", DValueTop}}
	reversed := [][]any{{"A", DValueTop}, {DValueTop, "X"}}

	if a, b := build(forward), build(reversed); a != b {
		t.Fatalf("root cardinality depends on insertion order: %v vs %v", a, b)
	}
}
