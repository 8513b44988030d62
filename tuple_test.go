package intentminer

import (
	"net/netip"
	"testing"
)

func TestTupleLabelingJoinCostIsProduct(t *testing.T) {
	tup := &TupleLabeling{Features: []Feature{
		{Name: "ip", Labeling: IPv4PrefixLabeling{}},
		{Name: "role", Labeling: NewDValueLabeling(4)},
	}}

	ipA, ipB := mustPrefix(t, "192.168.1.0/32"), mustPrefix(t, "192.168.1.1/32")
	a := []any{ipA, "web"}
	b := []any{ipB, "db"}

	spec := tup.Join(a, b)
	ipSpec := (IPv4PrefixLabeling{}).Join(ipA, ipB)
	roleSpec := NewDValueLabeling(4).Join("web", "db")
	wantCost := ipSpec.Cost * roleSpec.Cost
	if spec.Cost != wantCost {
		t.Fatalf("tuple Join cost = %v, want product of component costs %v", spec.Cost, wantCost)
	}

	got := spec.Value.([]any)
	if got[0].(netip.Prefix) != ipSpec.Value.(netip.Prefix) || got[1].(string) != roleSpec.Value.(string) {
		t.Fatalf("tuple Join value = %v, want (%v,%v)", got, ipSpec.Value, roleSpec.Value)
	}
}

func TestTupleLabelingSubsetAndMeet(t *testing.T) {
	tup := &TupleLabeling{Features: []Feature{
		{Name: "ip", Labeling: IPv4PrefixLabeling{}},
		{Name: "role", Labeling: NewDValueLabeling(4)},
	}}

	narrow := []any{mustPrefix(t, "192.168.1.0/32"), "web"}
	wide := []any{mustPrefix(t, "192.168.0.0/16"), DValueTop}
	if !tup.Subset(narrow, wide) {
		t.Fatalf("Subset(narrow, wide) should hold component-wise")
	}

	other := []any{mustPrefix(t, "10.0.0.0/8"), "web"}
	if _, ok := tup.Meet(narrow, other); ok {
		t.Fatalf("Meet should fail when any component has no overlap")
	}
}
