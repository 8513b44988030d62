// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Command intentcli reads a flow stream and a hierarchical labeling
// file, runs the greedy clustering driver to completion, and writes the
// stats/hierarchy artifacts — and, optionally, a Postgres snapshot.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peterbourgon/ff/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowgen/intentminer"
	"github.com/flowgen/intentminer/api"
	"github.com/flowgen/intentminer/live"
	"github.com/flowgen/intentminer/metrics"
	"github.com/flowgen/intentminer/runconfig"
	"github.com/flowgen/intentminer/storage"
)

type cliConfig struct {
	Labeling    string
	Clusters    int
	IP          bool
	Batch       int
	Seed        uint64
	ConfigPath  string
	OutDir      string
	PostgresDSN string
	MetricsAddr string
	HTTPAddr    string
}

func parseFlags(args []string) (cliConfig, error) {
	fs := flag.NewFlagSet("intentcli", flag.ContinueOnError)

	var cfg cliConfig
	fs.StringVar(&cfg.Labeling, "labeling", "labeling.json", "hierarchical labeling JSON path")
	fs.IntVar(&cfg.Clusters, "clusters", 1, "target cluster count")
	fs.BoolVar(&cfg.IP, "ip", false, "parse a leading IPv4 token on every flow line")
	fs.IntVar(&cfg.Batch, "batch", 0, "candidate sample size per round (0 = all remaining)")
	var seed int64
	fs.Int64Var(&seed, "seed", 10, "PRNG seed")
	fs.StringVar(&cfg.ConfigPath, "config", "", "optional YAML run config, layered under these flags")
	fs.StringVar(&cfg.OutDir, "out", ".", "directory for stats.csv and cluster_hierarchy.xml")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", "", "optional Postgres DSN for snapshot persistence")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "optional address to serve Prometheus metrics on")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", "", "optional address to serve the HTTP API on")

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("INTENTCLI")); err != nil {
		return cfg, fmt.Errorf("parsing flags: %w", err)
	}
	cfg.Seed = uint64(seed)
	return cfg, nil
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Error("intentcli: flag parsing failed", "error", err)
		os.Exit(1)
	}

	runCfg, err := runconfig.Load(cfg.ConfigPath)
	if err != nil {
		log.Error("intentcli: loading run config", "error", err)
		os.Exit(1)
	}
	// The --clusters, --batch and --seed values (given or defaulted)
	// always replace the YAML file's cluster_count, batch_size and seed;
	// the YAML file supplies the remaining fields.
	runCfg.ClusterCount = cfg.Clusters
	runCfg.BatchSize = cfg.Batch
	runCfg.Seed = cfg.Seed

	if err := run(context.Background(), cfg, runCfg, log); err != nil {
		log.Error("intentcli: run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg cliConfig, runCfg runconfig.Config, log *slog.Logger) error {
	hier, err := intentminer.LoadHierarchicalLabeling(cfg.Labeling)
	if err != nil {
		return fmt.Errorf("loading hierarchical labeling: %w", err)
	}

	flows, err := readFlows(os.Stdin, cfg.IP)
	if err != nil {
		return fmt.Errorf("reading flow stream: %w", err)
	}
	if len(flows) == 0 {
		return fmt.Errorf("no flows read from stdin")
	}

	features := []intentminer.Feature{{Name: "path", Labeling: &intentminer.HRegexLabeling{Labels: hier, D: 1.0}}}
	if cfg.IP {
		features = append([]intentminer.Feature{{Name: "ip", Labeling: intentminer.IPv4PrefixLabeling{}}}, features...)
	}
	feature := intentminer.Feature{Name: "flow", Labeling: &intentminer.TupleLabeling{Features: features}}

	distance := intentminer.CostGainDistance
	if runCfg.DistanceMeasure == "join_cost" {
		distance = intentminer.JoinCostDistance
	}

	hc := intentminer.NewHierarchicalClustering(intentminer.ClusteringConfig{
		ClusterCount:              runCfg.ClusterCount,
		BatchSize:                 runCfg.BatchSize,
		DistanceMeasure:           distance,
		ClosestClustersBucketSize: runCfg.ClosestClustersBucketSize,
		Rand:                      rand.New(rand.NewPCG(runCfg.Seed, runCfg.Seed)),
	})

	var coll *metrics.Collector
	if cfg.MetricsAddr != "" {
		coll = metrics.NewCollector()
		go serveMetrics(cfg.MetricsAddr, coll, log)
	}

	startedAt := time.Now()
	var clusters []intentminer.Spec
	if runCfg.UseIndex {
		clusters = hc.ClusterWithIndex(flows, feature, runCfg.NodeMinSize, runCfg.NodeMaxSize, func(info intentminer.IntentInfo) {
			if coll != nil {
				coll.ObserveIntent()
			}
		})
	} else {
		clusters = hc.Cluster(flows, feature, func(info intentminer.IntentInfo) {
			if coll != nil {
				coll.ObserveIntent()
			}
		})
	}

	if coll != nil && len(hc.Stats) > 0 {
		last := hc.Stats[len(hc.Stats)-1]
		coll.ObserveStat(last.K, last.OverallCost)
	}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := writeArtifact(filepath.Join(cfg.OutDir, "stats.csv"), hc.StoreStatsCSV); err != nil {
		return err
	}
	if err := writeArtifact(filepath.Join(cfg.OutDir, "cluster_hierarchy.xml"), hc.StoreClusterHierarchyXML); err != nil {
		return err
	}

	snap := storage.Snapshot{
		Run: storage.RunRecord{
			ID:           uuid.New(),
			StartedAt:    startedAt,
			FinishedAt:   time.Now(),
			LabelingPath: cfg.Labeling,
			Config:       runCfg,
		},
		Clusters: clusters,
		Parents:  hc.Parents,
		Intents:  hc.Intents,
		Stats:    hc.Stats,
	}

	var store storage.Store
	if cfg.PostgresDSN != "" {
		pg, err := storage.NewPGStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		store = pg
	} else if cfg.HTTPAddr != "" {
		// No persistent store requested, but the API still needs one to
		// serve this run's results from — keep it in memory.
		store = storage.NewMemStore()
	}

	if store != nil {
		if err := store.SaveRun(ctx, snap); err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}
		log.Info("intentcli: snapshot saved", "run", snap.Run.ID)
	}

	log.Info("intentcli: run complete", "clusters", len(clusters), "intents", len(hc.Intents))

	if cfg.HTTPAddr != "" {
		h := api.NewHandler(store, coll, live.NewBroadcaster(log), cfg.Labeling, log)
		log.Info("intentcli: serving http api", "addr", cfg.HTTPAddr)
		return h.Router().Run(cfg.HTTPAddr)
	}
	return nil
}

func writeArtifact(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := write(f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// readFlows parses one flow per stdin line: whitespace-separated
// hierarchical-path tokens, with an optional leading dotted-quad IPv4
// address when ip is set and a trailing "+" marking an HRegex
// repetition element.
func readFlows(r *os.File, ip bool) ([]any, error) {
	var flows []any
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tokens := strings.Fields(line)

		var tuple []any
		if ip {
			if len(tokens) == 0 {
				return nil, fmt.Errorf("flow line missing ip token: %q", line)
			}
			addr, err := netip.ParseAddr(tokens[0])
			if err != nil {
				return nil, fmt.Errorf("parsing ip %q: %w", tokens[0], err)
			}
			tuple = append(tuple, netip.PrefixFrom(addr, 32))
			tokens = tokens[1:]
		}
		tuple = append(tuple, intentminer.NewHRegex(tokens))
		flows = append(flows, tuple)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning stdin: %w", err)
	}
	return flows, nil
}

func serveMetrics(addr string, coll *metrics.Collector, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(coll.Registry(), promhttp.HandlerOpts{}))
	log.Info("intentcli: serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("intentcli: metrics server stopped", "error", err)
	}
}
