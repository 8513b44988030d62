// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package intentminer infers concise, human-readable specifications
// ("intents") from large collections of observed network flows.
//
// Flows are feature tuples — for example a destination IP prefix paired
// with a path of device labels. intentminer agglomeratively clusters flows
// under a cost-based generalization lattice: starting from one cluster per
// flow, it repeatedly merges the two clusters whose union minimizes an
// additive cost increase, absorbing any cluster subsumed by a freshly
// formed generalization, until a target cluster count is reached. The
// result is a monotonic sequence of cluster sets of decreasing size, each
// step recorded as an IntentInfo for later replay or evaluation.
//
// The package is organized around a small algebra:
//
//   - Labeling is the join/meet/subset/cost/cardinality interface that
//     every concrete value domain (discrete values, IPv4 prefixes,
//     hierarchical DAG labels, hierarchical-regex paths, tuples) satisfies.
//   - RTree is a bounding-box spatial index over a Labeling's
//     generalizations, used for nearest-neighbor lookup and bulk
//     subsumption removal.
//   - MeetSemiLattice accounts for exact cardinality via
//     inclusion-exclusion over a DAG of inserted generalizations.
//   - HierarchicalClustering is the greedy agglomerative driver that ties
//     the above together.
//
// intentminer's core is single-threaded and synchronous: no operation may
// be called concurrently on the same clustering, index, or lattice
// instance. Its only I/O is LoadHierarchicalLabeling, which reads a
// labeling file, and StoreStatsCSV/StoreClusterHierarchyXML, which write
// to a caller-supplied io.Writer; callers supply parsed flows and persist
// the IntentInfo stream themselves.
package intentminer
