package intentminer

import (
	"net/netip"
	"testing"
)

func TestRTreeGetAndRemoveSubsets(t *testing.T) {
	feature := Feature{Name: "dest", Labeling: IPv4PrefixLabeling{}}
	tree := NewRTree(feature, 2, 8)

	base := mustPrefix(t, "192.186.1.0/24")
	baseAddr := base.Addr().As4()
	for i := 0; i < 256; i++ {
		b := baseAddr
		b[3] = byte(i)
		p := netip.PrefixFrom(netip.AddrFrom4(b), 32)
		tree.Insert(Spec{Cost: ipv4Cost(p), Value: p}, i)
	}

	quarter := Spec{Value: mustPrefix(t, "192.186.1.0/30")}
	got := tree.GetSubsets(quarter)
	if len(got) != 4 {
		t.Fatalf("GetSubsets(/30) returned %d entries, want 4", len(got))
	}

	reclaimed := tree.RemoveSubset(quarter)
	if reclaimed != 4 {
		t.Fatalf("RemoveSubset(/30) reclaimed %v, want 4", reclaimed)
	}

	full := Spec{Value: base}
	reclaimed = tree.RemoveSubset(full)
	if reclaimed != 252 {
		t.Fatalf("RemoveSubset(/24) reclaimed %v, want 252", reclaimed)
	}
}

func TestRTreeGetKNNApprox(t *testing.T) {
	feature := Feature{Name: "dest", Labeling: IPv4PrefixLabeling{}}
	tree := NewRTree(feature, 2, 8)

	addrs := []string{"10.0.0.1/32", "10.0.0.2/32", "10.0.0.3/32", "200.1.1.1/32"}
	for i, a := range addrs {
		p := mustPrefix(t, a)
		tree.Insert(Spec{Cost: ipv4Cost(p), Value: p}, i)
	}

	near := Spec{Value: mustPrefix(t, "10.0.0.4/32")}
	got := tree.GetKNNApprox(near, 2)
	if len(got) != 2 {
		t.Fatalf("GetKNNApprox returned %d entries, want 2", len(got))
	}
	for _, e := range got {
		if e.Value.(int) == 3 {
			t.Fatalf("GetKNNApprox returned the far entry 200.1.1.1/32 ahead of closer ones: %v", got)
		}
	}
}
