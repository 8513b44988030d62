// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package runconfig loads the optional YAML run configuration layered
// under CLI flags: cluster count, batch size, seed, distance measure, and
// index sizing, the knobs a deployment tunes per label hierarchy rather
// than per invocation.
package runconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the YAML/flag-resolved tuple threaded into
// intentminer.ClusteringConfig and the R-tree index constructors.
type Config struct {
	ClusterCount              int    `yaml:"cluster_count"`
	BatchSize                 int    `yaml:"batch_size"`
	Seed                      uint64 `yaml:"seed"`
	DistanceMeasure           string `yaml:"distance_measure"` // "cost_gain" or "join_cost"
	ClosestClustersBucketSize int    `yaml:"closest_clusters_bucket_size"`
	UseIndex                  bool   `yaml:"use_index"`
	NodeMinSize               int    `yaml:"node_min_size"`
	NodeMaxSize               int    `yaml:"node_max_size"`
}

// Default returns the conventional baseline, overridden by any loaded
// file and then by CLI flags.
func Default() Config {
	return Config{
		ClusterCount:              1,
		BatchSize:                 64,
		Seed:                      10,
		DistanceMeasure:           "cost_gain",
		ClosestClustersBucketSize: 4,
		UseIndex:                  false,
		NodeMinSize:               2,
		NodeMaxSize:               10,
	}
}

// Load reads and merges a YAML file on top of Default. A missing path
// returns the default configuration unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("runconfig: reading %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("runconfig: parsing %q: %w", path, err)
	}
	return cfg, nil
}
