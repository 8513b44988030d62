// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package api exposes a small HTTP surface for starting a clustering run
// from an uploaded flow batch, fetching its stored results, evaluating
// against a held-out sample, and streaming live progress.
package api

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowgen/intentminer"
	"github.com/flowgen/intentminer/live"
	"github.com/flowgen/intentminer/metrics"
	"github.com/flowgen/intentminer/runconfig"
	"github.com/flowgen/intentminer/storage"
)

// Handler wires the storage, metrics, and live-feed collaborators a run
// needs; one Handler serves every /runs endpoint.
type Handler struct {
	store   storage.Store
	metrics *metrics.Collector
	live    *live.Broadcaster
	log     *slog.Logger

	hierarchicalPath string
}

// NewHandler builds a Handler. hierarchicalPath is the hierarchical
// labeling JSON file every run is built against; a production deployment
// that serves multiple hierarchies would key this per request instead.
func NewHandler(store storage.Store, coll *metrics.Collector, bcast *live.Broadcaster, hierarchicalPath string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{store: store, metrics: coll, live: bcast, hierarchicalPath: hierarchicalPath, log: log}
}

// Router builds the gin.Engine and mounts every endpoint described in
// the external interfaces section: POST /runs, GET /runs/:id,
// GET /runs/:id/evaluate, GET /runs/:id/live, plus a Prometheus scrape
// endpoint for the Collector passed to NewHandler.
func (h *Handler) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", h.handleHealth)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.metrics.Registry(), promhttp.HandlerOpts{})))
	}

	runs := r.Group("/runs")
	{
		runs.POST("", h.handleCreateRun)
		runs.GET("/:id", h.handleGetRun)
		runs.GET("/:id/evaluate", h.handleEvaluateRun)
		runs.GET("/:id/live", h.handleLive)
	}

	return r
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createRunRequest struct {
	Flows  []flowRequest    `json:"flows" binding:"required"`
	Config runconfig.Config `json:"config"`
}

// flowRequest mirrors the CLI's stdin flow line: an optional IP and a
// whitespace-separated hierarchical path, rendered as an []any tuple
// before clustering.
type flowRequest struct {
	IP   string `json:"ip"`
	Path string `json:"path" binding:"required"`
}

// handleCreateRun builds a TupleLabeling/Feature from the uploaded flows,
// runs HierarchicalClustering to completion, and persists the resulting
// snapshot. Intermediate IntentInfo events are published to the live
// broadcaster and reflected in the metrics Collector as they are emitted.
func (h *Handler) handleCreateRun(c *gin.Context) {
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if len(req.Flows) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one flow is required"})
		return
	}

	hier, err := intentminer.LoadHierarchicalLabeling(h.hierarchicalPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading hierarchical labeling: " + err.Error()})
		return
	}

	useIP := req.Flows[0].IP != ""
	feature := featureFor(useIP, hier)
	flows, err := flowsToTuples(useIP, req.Flows)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := req.Config
	if cfg.ClusterCount == 0 {
		cfg = runconfig.Default()
	}
	distance := intentminer.CostGainDistance
	if cfg.DistanceMeasure == "join_cost" {
		distance = intentminer.JoinCostDistance
	}

	hc := intentminer.NewHierarchicalClustering(intentminer.ClusteringConfig{
		ClusterCount:              cfg.ClusterCount,
		BatchSize:                 cfg.BatchSize,
		DistanceMeasure:           distance,
		ClosestClustersBucketSize: cfg.ClosestClustersBucketSize,
		Rand:                      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)),
	})

	run := storage.RunRecord{
		ID:           uuid.New(),
		StartedAt:    time.Now(),
		LabelingPath: h.hierarchicalPath,
		Config:       cfg,
	}

	clusters := hc.Cluster(flows, feature, func(info intentminer.IntentInfo) {
		if h.live != nil {
			h.live.Publish(info)
		}
		if h.metrics != nil {
			h.metrics.ObserveIntent()
		}
	})
	if h.metrics != nil && len(hc.Stats) > 0 {
		last := hc.Stats[len(hc.Stats)-1]
		h.metrics.ObserveStat(last.K, last.OverallCost)
	}

	run.FinishedAt = time.Now()
	snap := storage.Snapshot{
		Run:      run,
		Clusters: clusters,
		Parents:  hc.Parents,
		Intents:  hc.Intents,
		Stats:    hc.Stats,
	}
	if err := h.store.SaveRun(c.Request.Context(), snap); err != nil {
		h.log.Error("api: saving run", "run", run.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "saving run: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"runId":    run.ID,
		"clusters": len(clusters),
		"intents":  len(hc.Intents),
	})
}

func (h *Handler) handleGetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}
	snap, err := h.store.LoadRun(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

type evaluateRunRequest struct {
	Flows []flowRequest `json:"flows" binding:"required"`
}

// handleEvaluateRun scores the stored run's clusters against a held-out
// flow set using IncrementalCostBasedEvaluator.
func (h *Handler) handleEvaluateRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}
	snap, err := h.store.LoadRun(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req evaluateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	hier, err := intentminer.LoadHierarchicalLabeling(snap.Run.LabelingPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading hierarchical labeling: " + err.Error()})
		return
	}
	useIP := len(req.Flows) > 0 && req.Flows[0].IP != ""
	feature := featureFor(useIP, hier)
	flows, err := flowsToTuples(useIP, req.Flows)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	evaluator := intentminer.NewIncrementalCostBasedEvaluator(flows, snap.Clusters, feature)
	result := evaluator.Evaluate(snap.Intents)
	c.JSON(http.StatusOK, result)
}

func (h *Handler) handleLive(c *gin.Context) {
	if h.live == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live feed not configured"})
		return
	}
	h.live.Subscribe(c.Writer, c.Request)
}

func featureFor(useIP bool, hier *intentminer.HierarchicalLabeling) intentminer.Feature {
	features := []intentminer.Feature{{Name: "path", Labeling: &intentminer.HRegexLabeling{Labels: hier, D: 1.0}}}
	if useIP {
		features = append([]intentminer.Feature{{Name: "ip", Labeling: intentminer.IPv4PrefixLabeling{}}}, features...)
	}
	return intentminer.Feature{Name: "flow", Labeling: &intentminer.TupleLabeling{Features: features}}
}

// flowsToTuples renders each uploaded flow as the []any tuple the
// TupleLabeling expects: the path is whitespace-tokenized into an HRegex
// sequence, and a host IP parses as a /32 prefix, exactly as the CLI
// renders a stdin flow line.
func flowsToTuples(useIP bool, reqs []flowRequest) ([]any, error) {
	flows := make([]any, len(reqs))
	for i, f := range reqs {
		path := intentminer.NewHRegex(strings.Fields(f.Path))
		if !useIP {
			flows[i] = []any{path}
			continue
		}
		addr, err := netip.ParseAddr(f.IP)
		if err != nil {
			return nil, fmt.Errorf("parsing ip %q: %w", f.IP, err)
		}
		flows[i] = []any{netip.PrefixFrom(addr, 32), path}
	}
	return flows, nil
}
