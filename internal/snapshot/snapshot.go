// Package snapshot persists metric aggregate state so an evaluation
// pass can be checkpointed and resumed.
package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/ricesearch/rank-eval/internal/pkg/errors"
	"github.com/ricesearch/rank-eval/internal/ranking"
)

// Snapshot is the persisted state of one metric: its configuration
// record plus the raw aggregator totals.
type Snapshot struct {
	Config             ranking.Config `json:"config"`
	TotalWeightedValue float64        `json:"total_weighted_value"`
	TotalWeight        float64        `json:"total_weight"`
	SavedAt            time.Time      `json:"saved_at"`
}

// Store persists metric snapshots keyed by metric name.
type Store interface {
	// Save writes a snapshot, overwriting any previous one for the
	// same metric name.
	Save(ctx context.Context, snap Snapshot) error

	// Load retrieves the snapshot for a metric name.
	Load(ctx context.Context, name string) (Snapshot, error)

	// Names returns the metric names with stored snapshots.
	Names(ctx context.Context) ([]string, error)

	// Delete removes the snapshot for a metric name.
	Delete(ctx context.Context, name string) error

	// Close releases store resources.
	Close() error
}

// Take captures a metric's current state as a snapshot.
func Take(m *ranking.Metric) Snapshot {
	twv, tw := m.Totals()
	return Snapshot{
		Config:             m.Config(),
		TotalWeightedValue: twv,
		TotalWeight:        tw,
		SavedAt:            time.Now(),
	}
}

// Apply restores a metric's aggregate state from a snapshot. The
// snapshot must describe the same metric configuration.
func Apply(m *ranking.Metric, snap Snapshot) error {
	cfg := m.Config()
	if snap.Config.Kind != cfg.Kind || snap.Config.Topn != cfg.Topn {
		return errors.ValidationError("snapshot does not match metric configuration").
			WithDetail("metric", cfg.Name).
			WithDetail("snapshot_kind", string(snap.Config.Kind))
	}
	m.Restore(snap.TotalWeightedValue, snap.TotalWeight)
	return nil
}

// SaveAll snapshots every metric into the store.
func SaveAll(ctx context.Context, store Store, metrics []*ranking.Metric) error {
	for _, m := range metrics {
		if err := store.Save(ctx, Take(m)); err != nil {
			return err
		}
	}
	return nil
}

// RestoreAll restores every metric found in the store; metrics without
// a stored snapshot are left untouched.
func RestoreAll(ctx context.Context, store Store, metrics []*ranking.Metric) error {
	for _, m := range metrics {
		snap, err := store.Load(ctx, m.Name())
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return err
		}
		if err := Apply(m, snap); err != nil {
			return err
		}
	}
	return nil
}

// MemoryStore is an in-memory snapshot store, mainly for tests and
// single-process runs.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]Snapshot)}
}

// Save stores a snapshot in memory.
func (s *MemoryStore) Save(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.Config.Name] = snap
	return nil
}

// Load retrieves a snapshot by metric name.
func (s *MemoryStore) Load(ctx context.Context, name string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[name]
	if !ok {
		return Snapshot{}, errors.NotFoundError("snapshot")
	}
	return snap, nil
}

// Names returns the stored metric names.
func (s *MemoryStore) Names(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.snaps))
	for name := range s.snaps {
		names = append(names, name)
	}
	return names, nil
}

// Delete removes a snapshot by metric name.
func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, name)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
