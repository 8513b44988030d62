package intentminer

import "testing"

func TestHRegexLabelingJoin(t *testing.T) {
	h := serverUserHierarchy(t)
	l := &HRegexLabeling{Labels: h, D: 1}

	seq := func(tokens ...string) HRegex { return NewHRegex(tokens) }

	cases := []struct {
		name     string
		a, b     HRegex
		wantCost float64
		want     HRegex
	}{
		{"same user, siblings under Server", seq("u1", "s1"), seq("u1", "s2"), 6, seq("u1", "Server")},
		{"distinct users, siblings under Server", seq("u1", "s1"), seq("u2", "s2"), 8, seq("User", "Server")},
		{"repeatable server absorbs", seq("u1", "s1"), seq("u1", "s2+"), 6, seq("u1", "Server+")},
		{"swapped order forces Any+", seq("u1", "s1"), seq("s1", "u1"), 16, seq("Any+")},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			spec := l.Join(tt.a, tt.b)
			got := spec.Value.(HRegex)
			if spec.Cost != tt.wantCost || !got.Equal(tt.want) {
				t.Fatalf("Join(%s,%s) = (%v,%s), want (%v,%s)", tt.a, tt.b, spec.Cost, got, tt.wantCost, tt.want)
			}
		})
	}
}

func TestHRegexLabelingInvariants(t *testing.T) {
	h := serverUserHierarchy(t)
	l := &HRegexLabeling{Labels: h, D: 1}

	a := NewHRegex([]string{"u1", "s1"})
	selfJoin := l.Join(a, a)
	got := selfJoin.Value.(HRegex)
	if !got.Equal(a) {
		t.Fatalf("Join(a,a) not idempotent: got %s, want %s", got, a)
	}

	b := NewHRegex([]string{"u1", "s2"})
	joined := l.Join(a, b)
	if !l.Subset(a, joined.Value) || !l.Subset(b, joined.Value) {
		t.Fatalf("Subset(a, Join(a,b).Value) should hold for both operands")
	}
}

func TestHRegexMeetIdentityOnly(t *testing.T) {
	h := serverUserHierarchy(t)
	l := &HRegexLabeling{Labels: h, D: 1}

	a := NewHRegex([]string{"u1", "s1"})
	if spec, ok := l.Meet(a, a); !ok || !spec.Value.(HRegex).Equal(a) {
		t.Fatalf("Meet(a,a) should succeed with value a, got (%v,%v)", spec, ok)
	}
	b := NewHRegex([]string{"u1", "s2"})
	if _, ok := l.Meet(a, b); ok {
		t.Fatalf("Meet of distinct sequences should report no common specialization")
	}
}
