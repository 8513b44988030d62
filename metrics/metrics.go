// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package metrics exposes a clustering run's progress as Prometheus
// gauges and counters, so a dashboard can be built on scraping instead
// of (or alongside) the websocket feed in package live.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the metrics for one running or completed clustering run.
// It is registered on its own Registry rather than the global default so
// multiple runs (e.g. in tests) never collide on metric registration.
type Collector struct {
	registry *prometheus.Registry

	overallCost    prometheus.Gauge
	liveClusters   prometheus.Gauge
	recomputations prometheus.Counter
	intentsEmitted prometheus.Counter
}

// NewCollector builds a Collector and registers its metrics on a fresh
// Registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		overallCost: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intentminer_overall_cost",
			Help: "Total generalization cost of the current cluster set.",
		}),
		liveClusters: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intentminer_live_clusters",
			Help: "Number of clusters currently alive in the clustering run.",
		}),
		recomputations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intentminer_closest_cluster_recomputations_total",
			Help: "Number of times a cluster's closest-neighbor bucket was recomputed.",
		}),
		intentsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intentminer_intents_emitted_total",
			Help: "Number of IntentInfo events emitted by the clustering driver.",
		}),
	}
	c.registry.MustRegister(c.overallCost, c.liveClusters, c.recomputations, c.intentsEmitted)
	return c
}

// Registry returns the Registry backing this Collector's metrics, for
// mounting a /metrics scrape endpoint (e.g. via promhttp.HandlerFor).
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveStat records one ClusterStat row emitted by the clustering driver.
func (c *Collector) ObserveStat(k int, overallCost float64) {
	c.liveClusters.Set(float64(k))
	c.overallCost.Set(overallCost)
}

// ObserveIntent records one IntentInfo event emitted by the driver.
func (c *Collector) ObserveIntent() {
	c.intentsEmitted.Inc()
}

// ObserveRecomputation records one closest-neighbor bucket recomputation.
func (c *Collector) ObserveRecomputation() {
	c.recomputations.Inc()
}
