// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package storage persists clustering run snapshots — the final cluster
// set, the intent stream, and per-step stats — to Postgres, so a run's
// results survive past the process that produced them and can be
// replayed for evaluation later.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowgen/intentminer"
	"github.com/flowgen/intentminer/runconfig"
)

// RunRecord identifies one clustering invocation.
type RunRecord struct {
	ID           uuid.UUID
	StartedAt    time.Time
	FinishedAt   time.Time
	LabelingPath string
	Config       runconfig.Config
}

// Snapshot is the full persisted unit for one run.
type Snapshot struct {
	Run      RunRecord
	Clusters []intentminer.Spec
	Parents  []int
	Intents  []intentminer.IntentInfo
	Stats    []intentminer.ClusterStat
}

// Store persists and retrieves run snapshots. PGStore is the production
// implementation; MemStore is an in-memory fake used to round-trip test
// the (de)serialization logic without a live database.
type Store interface {
	Migrate(ctx context.Context) error
	SaveRun(ctx context.Context, snap Snapshot) error
	LoadRun(ctx context.Context, id uuid.UUID) (Snapshot, error)
}

const insertRunSQL = `
	INSERT INTO runs (id, started_at, finished_at, labeling_path, config, clusters, parents, intents, stats)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
		finished_at = EXCLUDED.finished_at,
		clusters = EXCLUDED.clusters,
		parents = EXCLUDED.parents,
		intents = EXCLUDED.intents,
		stats = EXCLUDED.stats
`

// PGStore stores snapshots in Postgres, JSON-encoding the cluster,
// intent, and stats slices into jsonb columns.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects to dsn. Callers must call Migrate before the first
// SaveRun against a fresh database.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: connecting to postgres: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Close() {
	s.pool.Close()
}

func (s *PGStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.pool)
}

func (s *PGStore) SaveRun(ctx context.Context, snap Snapshot) error {
	clustersJSON, err := json.Marshal(clusterRows(snap.Clusters))
	if err != nil {
		return fmt.Errorf("storage: encoding clusters: %w", err)
	}
	intentsJSON, err := json.Marshal(snap.Intents)
	if err != nil {
		return fmt.Errorf("storage: encoding intents: %w", err)
	}
	statsJSON, err := json.Marshal(snap.Stats)
	if err != nil {
		return fmt.Errorf("storage: encoding stats: %w", err)
	}
	configJSON, err := json.Marshal(snap.Run.Config)
	if err != nil {
		return fmt.Errorf("storage: encoding config: %w", err)
	}

	_, err = s.pool.Exec(ctx, insertRunSQL,
		snap.Run.ID, snap.Run.StartedAt, snap.Run.FinishedAt, snap.Run.LabelingPath, configJSON, clustersJSON, snap.Parents, intentsJSON, statsJSON)
	if err != nil {
		return fmt.Errorf("storage: saving run %s: %w", snap.Run.ID, err)
	}
	return nil
}

// snapshotEnvelope is the JSON-safe encoding of a whole Snapshot used by
// MemStore. PGStore does not use it: it encodes the same parts (clusters
// via clusterRows, intents, stats, config) into separate jsonb columns.
type snapshotEnvelope struct {
	StartedAt    time.Time                 `json:"started_at"`
	FinishedAt   time.Time                 `json:"finished_at"`
	LabelingPath string                    `json:"labeling_path"`
	Config       runconfig.Config          `json:"config"`
	Clusters     []clusterRow              `json:"clusters"`
	Parents      []int                     `json:"parents"`
	Intents      []intentminer.IntentInfo  `json:"intents"`
	Stats        []intentminer.ClusterStat `json:"stats"`
}

func encodeSnapshot(snap Snapshot) ([]byte, error) {
	env := snapshotEnvelope{
		StartedAt:    snap.Run.StartedAt,
		FinishedAt:   snap.Run.FinishedAt,
		LabelingPath: snap.Run.LabelingPath,
		Config:       snap.Run.Config,
		Clusters:     clusterRows(snap.Clusters),
		Parents:      snap.Parents,
		Intents:      snap.Intents,
		Stats:        snap.Stats,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("storage: encoding snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(id uuid.UUID, data []byte) (Snapshot, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Snapshot{}, fmt.Errorf("storage: decoding snapshot: %w", err)
	}
	clusters := make([]intentminer.Spec, len(env.Clusters))
	for i, r := range env.Clusters {
		clusters[i] = intentminer.Spec{Cost: r.Cost, Value: r.Value}
	}
	return Snapshot{
		Run: RunRecord{
			ID:           id,
			StartedAt:    env.StartedAt,
			FinishedAt:   env.FinishedAt,
			LabelingPath: env.LabelingPath,
			Config:       env.Config,
		},
		Clusters: clusters,
		Parents:  env.Parents,
		Intents:  env.Intents,
		Stats:    env.Stats,
	}, nil
}

func (s *PGStore) LoadRun(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	var snap Snapshot
	snap.Run.ID = id

	var clustersJSON, intentsJSON, statsJSON, configJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT started_at, finished_at, labeling_path, config, clusters, parents, intents, stats
		FROM runs WHERE id = $1
	`, id).Scan(&snap.Run.StartedAt, &snap.Run.FinishedAt, &snap.Run.LabelingPath, &configJSON, &clustersJSON, &snap.Parents, &intentsJSON, &statsJSON)
	if err != nil {
		return Snapshot{}, fmt.Errorf("storage: loading run %s: %w", id, err)
	}

	var rows []clusterRow
	if err := json.Unmarshal(clustersJSON, &rows); err != nil {
		return Snapshot{}, fmt.Errorf("storage: decoding clusters: %w", err)
	}
	snap.Clusters = make([]intentminer.Spec, len(rows))
	for i, r := range rows {
		snap.Clusters[i] = intentminer.Spec{Cost: r.Cost, Value: r.Value}
	}
	if err := json.Unmarshal(intentsJSON, &snap.Intents); err != nil {
		return Snapshot{}, fmt.Errorf("storage: decoding intents: %w", err)
	}
	if err := json.Unmarshal(statsJSON, &snap.Stats); err != nil {
		return Snapshot{}, fmt.Errorf("storage: decoding stats: %w", err)
	}
	if err := json.Unmarshal(configJSON, &snap.Run.Config); err != nil {
		return Snapshot{}, fmt.Errorf("storage: decoding config: %w", err)
	}
	return snap, nil
}

// clusterRow is the JSON-safe mirror of intentminer.Spec: Spec.Value is
// `any` and may hold a domain type (netip.Prefix, HRegex) whose original
// Go type cannot be recovered from JSON alone, so persisted clusters
// round-trip through their string rendering for display and evaluation
// purposes rather than through the original typed value.
type clusterRow struct {
	Cost  float64 `json:"cost"`
	Value string  `json:"value"`
}

func clusterRows(specs []intentminer.Spec) []clusterRow {
	rows := make([]clusterRow, len(specs))
	for i, s := range specs {
		rows[i] = clusterRow{Cost: s.Cost, Value: fmt.Sprint(s.Value)}
	}
	return rows
}
