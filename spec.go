// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package intentminer

// Spec is the canonical (cost, value) result of Join and Meet: a
// generalization together with the cost proxy that scores it.
type Spec struct {
	Cost  float64
	Value any
}

// Feature binds a name to the Labeling that governs one flow component.
// A flow is a tuple of values positioned by feature, e.g. (destination
// prefix, device path).
type Feature struct {
	Name     string
	Labeling Labeling
}
