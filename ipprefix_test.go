package intentminer

import (
	"net/netip"
	"testing"
)

func mustPrefix(t *testing.T, s string) netip.Prefix {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	if err != nil {
		t.Fatalf("parsing prefix %q: %v", s, err)
	}
	return p
}

func TestIPv4PrefixLabelingJoin(t *testing.T) {
	var l IPv4PrefixLabeling

	cases := []struct {
		name       string
		a, b       string
		wantCost   float64
		wantPrefix string
	}{
		{"adjacent /32s", "192.168.1.0/32", "192.168.1.1/32", 2, "192.168.1.0/31"},
		{"divergent high bit", "192.168.1.0/32", "0.168.1.1/32", 4294967296, "0.0.0.0/0"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			a, b := mustPrefix(t, tt.a), mustPrefix(t, tt.b)
			spec := l.Join(a, b)
			want := mustPrefix(t, tt.wantPrefix)
			if spec.Cost != tt.wantCost || spec.Value.(netip.Prefix) != want {
				t.Fatalf("Join(%s,%s) = (%v,%v), want (%v,%v)", tt.a, tt.b, spec.Cost, spec.Value, tt.wantCost, want)
			}
		})
	}
}

func TestIPv4PrefixLabelingSubsetAndMeet(t *testing.T) {
	var l IPv4PrefixLabeling
	narrow := mustPrefix(t, "192.168.1.0/31")
	wide := mustPrefix(t, "192.168.0.0/16")
	top := l.Top().(netip.Prefix)

	if !l.Subset(narrow, wide) {
		t.Fatalf("Subset(%v,%v) should hold", narrow, wide)
	}
	if !l.Subset(narrow, top) {
		t.Fatalf("Subset(x, Top()) should always hold")
	}
	if spec, ok := l.Meet(narrow, wide); !ok || spec.Value.(netip.Prefix) != narrow {
		t.Fatalf("Meet(%v,%v) = (%v,%v), want (%v,true)", narrow, wide, spec.Value, ok, narrow)
	}
	disjoint := mustPrefix(t, "10.0.0.0/8")
	if _, ok := l.Meet(narrow, disjoint); ok {
		t.Fatalf("Meet of disjoint prefixes should report no overlap")
	}
}

func TestIPv4PrefixLabelingInvariants(t *testing.T) {
	var l IPv4PrefixLabeling
	a := mustPrefix(t, "10.1.2.3/32")
	b := mustPrefix(t, "10.1.2.4/32")

	selfJoin := l.Join(a, a)
	if selfJoin.Value.(netip.Prefix) != a || selfJoin.Cost != l.Cost(a) {
		t.Fatalf("Join(a,a) not idempotent: got %v", selfJoin)
	}

	joined := l.Join(a, b)
	if !l.Subset(a, joined.Value) || !l.Subset(b, joined.Value) {
		t.Fatalf("Subset(a, Join(a,b).Value) should hold for both operands")
	}
	if l.Cost(joined.Value) < max(l.Cost(a), l.Cost(b)) {
		t.Fatalf("Cost(Join(a,b)) = %v below max(cost(a),cost(b))", l.Cost(joined.Value))
	}
}
