package intentminer

import "testing"

func TestDValueLabelingJoin(t *testing.T) {
	d := NewDValueLabeling(4)

	cases := []struct {
		name     string
		a, b     string
		wantCost float64
		wantVal  string
	}{
		{"same atom", "web", "web", 1, "web"},
		{"distinct atoms", "web", "db", 4, DValueTop},
		{"atom with top", "web", DValueTop, 4, DValueTop},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			spec := d.Join(tt.a, tt.b)
			if spec.Cost != tt.wantCost || spec.Value != tt.wantVal {
				t.Fatalf("Join(%q,%q) = (%v,%v), want (%v,%v)", tt.a, tt.b, spec.Cost, spec.Value, tt.wantCost, tt.wantVal)
			}
		})
	}
}

func TestDValueLabelingMeet(t *testing.T) {
	d := NewDValueLabeling(4)

	if spec, ok := d.Meet("web", "web"); !ok || spec.Value != "web" {
		t.Fatalf("Meet(web,web) = (%v,%v), want (web,true)", spec, ok)
	}
	if spec, ok := d.Meet(DValueTop, "web"); !ok || spec.Value != "web" {
		t.Fatalf("Meet(*,web) = (%v,%v), want (web,true)", spec, ok)
	}
	if _, ok := d.Meet("web", "db"); ok {
		t.Fatalf("Meet(web,db) should have no common specialization")
	}
}

func TestDValueLabelingInvariants(t *testing.T) {
	d := NewDValueLabeling(4)
	atoms := []string{"web", "db", "cache", DValueTop}

	for _, a := range atoms {
		spec := d.Join(a, a)
		if spec.Value != a || spec.Cost != d.Cost(a) {
			t.Fatalf("Join(%q,%q) not idempotent: got (%v,%v)", a, a, spec.Cost, spec.Value)
		}
		if !d.Subset(a, d.Join(a, a).Value) {
			t.Fatalf("Subset(%q, Join(%q,%q).Value) should hold", a, a, a)
		}
		if !d.Subset(a, DValueTop) {
			t.Fatalf("Subset(%q, Top()) should always hold", a)
		}
	}

	for _, a := range atoms {
		for _, b := range atoms {
			joined := d.Join(a, b)
			if d.Cost(joined.Value) < max(d.Cost(a), d.Cost(b)) {
				t.Fatalf("Cost(Join(%q,%q)) = %v below max(cost(a),cost(b))", a, b, d.Cost(joined.Value))
			}
			if d.Subset(a, b) && joined.Value != b {
				t.Fatalf("Subset(%q,%q) holds but Join(%q,%q).Value = %v, want %q", a, b, a, b, joined.Value, b)
			}
		}
	}
}
