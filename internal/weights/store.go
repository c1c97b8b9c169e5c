// Package weights manages learned module-weight snapshots. The optimizer
// publishes new weight sets out of band; the decision path only ever reads
// an immutable snapshot through an atomic pointer, so a refresh never
// blocks an evaluation.
package weights

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/argusquant/argusd/internal/domain/regime"
)

// Snapshot is one published learned weight set. Snapshots are immutable
// once constructed; a refresh swaps the whole pointer.
type Snapshot struct {
	Version   int64               `json:"version"`
	UpdatedAt time.Time           `json:"updated_at"`
	Core      regime.WeightVector `json:"core"`
	Pulse     regime.WeightVector `json:"pulse"`
}

// ForMode returns the vector for an evaluation mode.
func (s *Snapshot) ForMode(m regime.Mode) regime.WeightVector {
	if s == nil {
		return nil
	}
	if m == regime.ModeCore {
		return s.Core
	}
	return s.Pulse
}

// Source fetches the latest published snapshot from wherever the optimizer
// wrote it.
type Source interface {
	Fetch(ctx context.Context) (*Snapshot, error)
}

// Store holds the active snapshot. Reads are lock-free; Refresh swaps
// atomically. The zero Store is usable and serves nil until refreshed.
type Store struct {
	current atomic.Pointer[Snapshot]
	source  Source
	log     zerolog.Logger
}

// NewStore builds a store backed by the given source.
func NewStore(source Source, log zerolog.Logger) *Store {
	return &Store{source: source, log: log}
}

// Active returns the current snapshot, or nil when none has loaded. The
// caller must not mutate the returned vectors.
func (s *Store) Active() *Snapshot {
	return s.current.Load()
}

// Refresh fetches the latest snapshot and activates it if it is newer than
// the current one. On fetch failure the last good snapshot stays active.
func (s *Store) Refresh(ctx context.Context) error {
	snap, err := s.source.Fetch(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("learned weight refresh failed, keeping active snapshot")
		return fmt.Errorf("fetch learned weights: %w", err)
	}
	if snap == nil {
		return nil
	}

	if cur := s.current.Load(); cur != nil && snap.Version <= cur.Version {
		return nil
	}

	s.current.Store(snap)
	s.log.Info().
		Int64("version", snap.Version).
		Time("updated_at", snap.UpdatedAt).
		Msg("learned weight snapshot activated")
	return nil
}

// RunRefresher refreshes on the given interval until ctx is done. Errors
// are logged and swallowed; the loop must outlive a flaky backend.
func (s *Store) RunRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Refresh(ctx)
		}
	}
}
