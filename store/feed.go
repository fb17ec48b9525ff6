package store

import (
	"path"
	"sync"
	"sync/atomic"

	"github.com/lixenwraith/chronon/core"
)

// ChangeRecord describes one committed key transition
type ChangeRecord struct {
	Version uint64           `json:"version"`
	CID     core.ComponentID `json:"cid"`
	Key     string           `json:"key"`
	Old     core.Value       `json:"old"`
	New     core.Value       `json:"new"`
}

// Feed is a best-effort subscription to committed changes.
// Delivery never blocks the committer; records that find the buffer
// full are counted on Dropped and discarded
type Feed struct {
	pattern string
	ch      chan ChangeRecord
	dropped atomic.Uint64
	closed  bool
	mu      sync.Mutex // serializes offer vs Close so no send on closed channel
}

// C returns the delivery channel. Closed when the feed is closed
func (f *Feed) C() <-chan ChangeRecord {
	return f.ch
}

// Dropped returns the number of records discarded due to backpressure
func (f *Feed) Dropped() uint64 {
	return f.dropped.Load()
}

// Close detaches the feed; safe to call more than once
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.ch)
}

// offer delivers rec if the key glob matches, without blocking
func (f *Feed) offer(rec ChangeRecord) {
	if f.pattern != "" {
		if ok, err := path.Match(f.pattern, rec.Key); err != nil || !ok {
			return
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.ch <- rec:
	default:
		f.dropped.Add(1)
	}
}
