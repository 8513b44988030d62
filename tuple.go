// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package intentminer

// TupleLabeling composes a fixed sequence of heterogeneous Features,
// one per flow position, via type erasure: a tuple value is a []any
// with exactly len(Features) elements, and every algebraic operation is
// applied component-wise.
type TupleLabeling struct {
	Features []Feature
}

func (t *TupleLabeling) Join(a, b any) Spec {
	av, bv := a.([]any), b.([]any)
	out := make([]any, len(t.Features))
	cost := 1.0
	for i, f := range t.Features {
		s := f.Labeling.Join(av[i], bv[i])
		out[i] = s.Value
		cost *= s.Cost
	}
	return Spec{Cost: cost, Value: out}
}

func (t *TupleLabeling) Meet(a, b any) (Spec, bool) {
	av, bv := a.([]any), b.([]any)
	out := make([]any, len(t.Features))
	cost := 1.0
	for i, f := range t.Features {
		s, ok := f.Labeling.Meet(av[i], bv[i])
		if !ok {
			return Spec{}, false
		}
		out[i] = s.Value
		cost *= s.Cost
	}
	return Spec{Cost: cost, Value: out}, true
}

func (t *TupleLabeling) Subset(a, b any) bool {
	av, bv := a.([]any), b.([]any)
	for i, f := range t.Features {
		if !f.Labeling.Subset(av[i], bv[i]) {
			return false
		}
	}
	return true
}

func (t *TupleLabeling) Cost(v any) float64 {
	vv := v.([]any)
	cost := 1.0
	for i, f := range t.Features {
		cost *= f.Labeling.Cost(vv[i])
	}
	return cost
}

func (t *TupleLabeling) Cardinality(v any) float64 {
	vv := v.([]any)
	c := 1.0
	for i, f := range t.Features {
		c *= f.Labeling.Cardinality(vv[i])
	}
	return c
}

func (t *TupleLabeling) Top() any {
	out := make([]any, len(t.Features))
	for i, f := range t.Features {
		out[i] = f.Labeling.Top()
	}
	return out
}
