package store

import (
	"sort"

	"github.com/lixenwraith/chronon/core"
)

// Key addresses one typed slot in the store
type Key struct {
	CID  core.ComponentID
	Name string
}

// Snapshot is an immutable view of the whole store at one version.
// Handlers read the snapshot frozen at batch start; the introspection
// surface reads whichever version it asked for. Never mutated after
// publication
type Snapshot struct {
	version uint64
	entries map[Key]core.Value
}

func emptySnapshot() *Snapshot {
	return &Snapshot{entries: make(map[Key]core.Value)}
}

// Version returns the commit epoch this snapshot was published at
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Get returns the value at (cid, name); ok is false when the key is unset
func (s *Snapshot) Get(cid core.ComponentID, name string) (core.Value, bool) {
	v, ok := s.entries[Key{CID: cid, Name: name}]
	return v, ok
}

// Len returns the number of set keys
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Range visits every key in (CID, Name) order for deterministic iteration
func (s *Snapshot) Range(fn func(k Key, v core.Value)) {
	if len(s.entries) == 0 {
		return
	}
	keys := make([]Key, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CID != keys[j].CID {
			return keys[i].CID < keys[j].CID
		}
		return keys[i].Name < keys[j].Name
	})
	for _, k := range keys {
		fn(k, s.entries[k])
	}
}
