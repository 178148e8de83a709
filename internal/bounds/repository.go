// Package bounds holds the dataset footprint collection the heatmap view and
// readiness are derived from.
package bounds

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/shiroinekotfs/DanesfieldApp/internal/core/model"
	"github.com/shiroinekotfs/DanesfieldApp/internal/core/observability"
)

// Fetcher is the slice of the platform client the repository needs.
type Fetcher interface {
	DatasetBounds(ctx context.Context) ([]model.DatasetBound, error)
}

// SnapshotStore persists the last applied collection across restarts.
type SnapshotStore interface {
	Load(ctx context.Context) ([]model.DatasetBound, bool, error)
	Save(ctx context.Context, data []model.DatasetBound) error
}

// Repository replaces its collection wholesale on every load. Loads may race
// freely: each takes a token before fetching and a response is applied only
// while no newer one has landed, so a slow response can never overwrite a
// fresher collection. Failed fetches leave the previous collection in place.
type Repository struct {
	log     *slog.Logger
	fetcher Fetcher
	store   SnapshotStore // optional

	issued atomic.Uint64

	mu      sync.RWMutex
	applied uint64
	data    []model.DatasetBound
	loaded  bool
}

func NewRepository(log *slog.Logger, f Fetcher, store SnapshotStore) *Repository {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Repository{log: log, fetcher: f, store: store}
}

// WarmStart restores the saved snapshot, if any, so a restarted instance can
// serve views before its first live load. The restored collection keeps
// token zero and loses to any live response.
func (r *Repository) WarmStart(ctx context.Context) bool {
	if r.store == nil {
		return false
	}
	data, ok, err := r.store.Load(ctx)
	if err != nil {
		r.log.Warn("bounds snapshot restore failed", "err", err)
		return false
	}
	if !ok {
		return false
	}

	r.mu.Lock()
	if r.loaded {
		r.mu.Unlock()
		return false
	}
	r.data = data
	r.loaded = true
	n := len(data)
	r.mu.Unlock()

	observability.SetBoundsDatasets(n)
	r.log.Info("dataset bounds restored from snapshot", "datasets", n)
	return true
}

// Load fetches the per-dataset footprints and applies them unless a fresher
// response has already been applied. It reports whether this response was the
// one applied.
func (r *Repository) Load(ctx context.Context) (bool, error) {
	token := r.issued.Add(1)

	data, err := r.fetcher.DatasetBounds(ctx)
	if err != nil {
		observability.ObserveBoundsLoad("error")
		r.log.Error("bounds load failed", "token", token, "err", err)
		return false, fmt.Errorf("load dataset bounds: %w", err)
	}

	r.mu.Lock()
	if token <= r.applied {
		r.mu.Unlock()
		observability.ObserveBoundsLoad("stale")
		r.log.Debug("stale bounds response discarded", "token", token)
		return false, nil
	}
	r.applied = token
	r.data = data
	r.loaded = true
	n := len(data)
	r.mu.Unlock()

	observability.ObserveBoundsLoad("applied")
	observability.SetBoundsDatasets(n)
	r.log.Info("dataset bounds applied", "datasets", n, "token", token)

	if r.store != nil {
		// best effort; a failed save only costs the next warm start
		if err := r.store.Save(ctx, data); err != nil {
			r.log.Warn("bounds snapshot save failed", "err", err)
		}
	}
	return true, nil
}

// Bounds returns a copy of the current collection. Nil means nothing has
// been applied yet.
func (r *Repository) Bounds() []model.DatasetBound {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.data)
}

// Readiness reports whether any collection has been applied, live or
// restored, and its dataset count.
func (r *Repository) Readiness() (bool, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded, len(r.data)
}
