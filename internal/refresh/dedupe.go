package refresh

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// datasetDedupe drops replayed events. Kafka redelivers on rebalance and
// the ingest pipeline republishes on retry, so the same change can arrive
// more than once; only the newest timestamp per dataset gets through.
type datasetDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, uint64]
}

func newDatasetDedupe(size int) *datasetDedupe {
	if size <= 0 {
		size = 1024
	}
	c, _ := lru.New[string, uint64](size)
	return &datasetDedupe{lru: c}
}

// fresher reports whether ts is newer than the last accepted event for the
// dataset, recording it when it is.
func (d *datasetDedupe) fresher(dataset string, ts uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(dataset); ok && ts <= last {
		return false
	}
	d.lru.Add(dataset, ts)
	return true
}
