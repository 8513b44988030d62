// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store used to test the snapshot round-trip
// without a live Postgres instance. It serializes each snapshot to JSON,
// rendering clusters through the same clusterRows as PGStore, so a test
// exercises real (de)serialization, not just map storage; the single
// JSON envelope it stores differs from PGStore's per-column encoding.
type MemStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{rows: map[uuid.UUID][]byte{}}
}

func (m *MemStore) Migrate(ctx context.Context) error { return nil }

func (m *MemStore) SaveRun(ctx context.Context, snap Snapshot) error {
	encoded, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[snap.Run.ID] = encoded
	return nil
}

func (m *MemStore) LoadRun(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	m.mu.Lock()
	encoded, ok := m.rows[id]
	m.mu.Unlock()
	if !ok {
		return Snapshot{}, fmt.Errorf("storage: run %s not found", id)
	}
	return decodeSnapshot(id, encoded)
}
