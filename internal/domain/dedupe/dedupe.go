// Package dedupe tracks content digests so each import payload is applied at
// most once per process.
package dedupe

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
)

const defaultMaxSize = 4096

// Deduper records seen keys to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord removes a key so the payload can be retried after a failure.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// Digest returns the hex SHA-256 of b, used as a content key.
func Digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// inMemoryDeduper is bounded by maxSize with oldest-first eviction; a
// non-positive maxSize disables eviction.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front is oldest
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}

	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		if oldest := d.order.Front(); oldest != nil {
			d.order.Remove(oldest)
			delete(d.seen, oldest.Value.(string))
			d.size.Add(-1)
		}
	}

	d.seen[key] = d.order.PushBack(key)
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
