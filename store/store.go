package store

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lixenwraith/chronon/core"
)

// Sentinel errors surfaced through transaction application
var (
	// ErrTypeViolation marks a write whose kind disagrees with the kind
	// fixed by the key's first write
	ErrTypeViolation = errors.New("store: value kind violates established key type")

	// ErrAccessViolation marks a write addressed to a key under another
	// component's id
	ErrAccessViolation = errors.New("store: write crosses component boundary")
)

// historyCap bounds retained snapshots for versioned introspection reads
const historyCap = 64

// defaultFeedBuffer is the per-subscription channel depth
const defaultFeedBuffer = 256

// Mutation is one staged write, produced by an effector.
// CID is core.NoComponent for writes under the producing component's
// own id; any other value is validated against the owner at apply time
type Mutation struct {
	CID   core.ComponentID
	Key   string
	Value core.Value
}

// Store is the shared state repository: (ComponentID, key) → typed value.
//
// Readers load the current snapshot pointer and never contend with the
// committer; commits build a fresh entry map and swap the pointer at the
// end of the batch. A key's kind is fixed by its first committed write.
//
// Thread-Safety:
//   - Current/Get: lock-free snapshot pointer load
//   - At: takes mu to scan the retained history
//   - Begin/Commit: conductor only, serialized by mu
//   - Subscribe/Close: any goroutine
type Store struct {
	snap    atomic.Pointer[Snapshot]
	mu      sync.Mutex
	kinds   map[Key]core.Kind
	history []*Snapshot
	subs    []*Feed
}

// New creates an empty store at version 0
func New() *Store {
	s := &Store{kinds: make(map[Key]core.Kind)}
	first := emptySnapshot()
	s.snap.Store(first)
	s.history = append(s.history, first)
	return s
}

// Current returns the latest published snapshot
func (s *Store) Current() *Snapshot {
	return s.snap.Load()
}

// Get reads (cid, key) from the latest snapshot
func (s *Store) Get(cid core.ComponentID, key string) (core.Value, bool) {
	return s.Current().Get(cid, key)
}

// At returns the retained snapshot with the given version.
// Only the last 64 versions are kept; older requests report false
func (s *Store) At(version uint64) (*Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range s.history {
		if snap.version == version {
			return snap, true
		}
	}
	return nil, false
}

// Subscribe attaches a best-effort change feed. An empty pattern matches
// every key; otherwise pattern is a path glob over the key name
func (s *Store) Subscribe(pattern string) *Feed {
	f := &Feed{pattern: pattern, ch: make(chan ChangeRecord, defaultFeedBuffer)}
	s.mu.Lock()
	s.subs = append(s.subs, f)
	s.mu.Unlock()
	return f
}

// Tx stages the writes of one commit phase. All effectors of a batch
// apply into a single Tx; the snapshot swap happens once at Commit
type Tx struct {
	s       *Store
	base    *Snapshot
	dirty   map[Key]core.Value
	kinds   map[Key]core.Kind
	records []ChangeRecord
}

// Begin opens the commit transaction for the current batch.
// Conductor only; at most one Tx may be open at a time
func (s *Store) Begin() *Tx {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Tx{
		s:     s,
		base:  s.snap.Load(),
		dirty: make(map[Key]core.Value),
		kinds: make(map[Key]core.Kind),
	}
}

// Apply stages every mutation of one effector, all-or-nothing.
// On any violation nothing is staged and the error identifies the first
// offending mutation. owner is the component the effector belongs to
func (tx *Tx) Apply(owner core.ComponentID, muts []Mutation) error {
	// Validate the whole effector before staging anything
	staged := make(map[Key]core.Kind, len(muts))
	for _, m := range muts {
		cid := m.CID
		if cid == core.NoComponent {
			cid = owner
		}
		if cid != owner {
			return fmt.Errorf("%w: %s writing %s/%s", ErrAccessViolation, owner, cid, m.Key)
		}
		k := Key{CID: cid, Name: m.Key}
		fixed, ok := staged[k]
		if !ok {
			fixed, ok = tx.kinds[k]
		}
		if !ok {
			tx.s.mu.Lock()
			fixed, ok = tx.s.kinds[k]
			tx.s.mu.Unlock()
		}
		if ok && fixed != m.Value.Kind() {
			return fmt.Errorf("%w: key %s/%s is %s, got %s",
				ErrTypeViolation, cid, m.Key, fixed, m.Value.Kind())
		}
		staged[k] = m.Value.Kind()
	}

	for _, m := range muts {
		cid := m.CID
		if cid == core.NoComponent {
			cid = owner
		}
		k := Key{CID: cid, Name: m.Key}
		old, ok := tx.dirty[k]
		if !ok {
			old, _ = tx.base.entries[k]
		}
		tx.dirty[k] = m.Value
		tx.kinds[k] = m.Value.Kind()
		tx.records = append(tx.records, ChangeRecord{
			CID: cid,
			Key: m.Key,
			Old: old,
			New: m.Value,
		})
	}
	return nil
}

// Commit publishes the staged writes as one new snapshot version and
// fans change records out to subscribers. Returns the published version;
// a clean transaction leaves the store untouched
func (tx *Tx) Commit() uint64 {
	if len(tx.dirty) == 0 {
		return tx.base.version
	}

	entries := make(map[Key]core.Value, len(tx.base.entries)+len(tx.dirty))
	for k, v := range tx.base.entries {
		entries[k] = v
	}
	for k, v := range tx.dirty {
		entries[k] = v
	}
	next := &Snapshot{version: tx.base.version + 1, entries: entries}

	s := tx.s
	s.mu.Lock()
	for k, kind := range tx.kinds {
		s.kinds[k] = kind
	}
	s.snap.Store(next)
	s.history = append(s.history, next)
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
	subs := make([]*Feed, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for i := range tx.records {
		tx.records[i].Version = next.version
		for _, f := range subs {
			f.offer(tx.records[i])
		}
	}
	return next.version
}
