package intentminer

import "testing"

func serverUserHierarchy(t *testing.T) *HierarchicalLabeling {
	t.Helper()
	info := map[string]LabelInfo{
		"s1":     {Cost: 1, Parents: []string{"Server"}},
		"s2":     {Cost: 1, Parents: []string{"Server"}},
		"u1":     {Cost: 1, Parents: []string{"User"}},
		"u2":     {Cost: 1, Parents: []string{"User"}},
		"Server": {Cost: 2, Parents: []string{"Any"}},
		"User":   {Cost: 2, Parents: []string{"Any"}},
		"Any":    {Cost: 4},
	}
	h, err := NewHierarchicalLabeling(info)
	if err != nil {
		t.Fatalf("building hierarchy: %v", err)
	}
	return h
}

func TestHierarchicalLabelingJoin(t *testing.T) {
	h := serverUserHierarchy(t)

	cases := []struct {
		name     string
		a, b     string
		wantCost float64
		wantVal  string
	}{
		{"siblings under Server", "s1", "s2", 2, "Server"},
		{"cross-family", "s1", "u2", 4, "Any"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			spec := h.Join(tt.a, tt.b)
			if spec.Cost != tt.wantCost || spec.Value != tt.wantVal {
				t.Fatalf("Join(%q,%q) = (%v,%v), want (%v,%v)", tt.a, tt.b, spec.Cost, spec.Value, tt.wantCost, tt.wantVal)
			}
		})
	}
}

func TestHierarchicalLabelingInvariants(t *testing.T) {
	h := serverUserHierarchy(t)

	if spec := h.Join("s1", h.Top().(string)); spec.Value != h.Top() || spec.Cost != h.Cost(h.Top()) {
		t.Fatalf("Join(x, root) = %v, want (%v, root)", spec, h.Cost(h.Top()))
	}
	for _, name := range []string{"s1", "s2", "u1", "u2", "Server", "User", "Any"} {
		spec, ok := h.Meet(name, name)
		if !ok || spec.Value != name || spec.Cost != h.Cost(name) {
			t.Fatalf("Meet(%q,%q) = (%v,%v), want (%v,true)", name, name, spec, ok, name)
		}
	}
}

func TestHierarchicalLabelingSubset(t *testing.T) {
	h := serverUserHierarchy(t)

	if !h.Subset("s1", "Server") {
		t.Fatalf("Subset(s1, Server) should hold")
	}
	if h.Subset("s1", "User") {
		t.Fatalf("Subset(s1, User) should not hold")
	}
	if !h.Subset("s1", "Any") {
		t.Fatalf("Subset(s1, Any) should hold transitively")
	}
}
