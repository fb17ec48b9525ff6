package engine

import (
	"github.com/lixenwraith/chronon/core"
	"github.com/lixenwraith/chronon/store"
)

// ComponentInfo is the read-only registration record exposed to debug
// front-ends
type ComponentInfo struct {
	CID  core.ComponentID `json:"cid"`
	Path string           `json:"path"`
	Kind string           `json:"kind"`
}

// Inspector is the read-only introspection surface: component tree,
// store snapshots by version, change feeds, and metric gauges. It can
// never schedule events or mutate state; the HTTP front-end that
// consumes it is a separate collaborator
type Inspector struct {
	s *Simulation
}

// Inspector returns the simulation's read-only debug surface
func (s *Simulation) Inspector() *Inspector {
	return &Inspector{s: s}
}

// Components lists registrations in id order
func (i *Inspector) Components() []ComponentInfo {
	comps := i.s.reg.all()
	out := make([]ComponentInfo, 0, len(comps))
	for _, c := range comps {
		out = append(out, ComponentInfo{CID: c.id, Path: c.path, Kind: c.kind.String()})
	}
	return out
}

// Tree returns the root of the naming tree
func (i *Inspector) Tree() *Node {
	return i.s.reg.tree()
}

// Snapshot returns the latest committed store view
func (i *Inspector) Snapshot() *store.Snapshot {
	return i.s.st.Current()
}

// SnapshotAt returns the retained view at version, if still held
func (i *Inspector) SnapshotAt(version uint64) (*store.Snapshot, bool) {
	return i.s.st.At(version)
}

// Subscribe attaches a best-effort change feed filtered by a key glob
func (i *Inspector) Subscribe(keyGlob string) *store.Feed {
	return i.s.st.Subscribe(keyGlob)
}

// MatchComponents resolves a path glob to component ids
func (i *Inspector) MatchComponents(pathGlob string) []core.ComponentID {
	return i.s.reg.matchPaths(pathGlob)
}

// Metrics exports the gauge surface as a flat map keyed by gauge name
func (i *Inspector) Metrics() map[string]int64 {
	return i.s.metrics.Snapshot()
}

// Now returns the current simulated time
func (i *Inspector) Now() core.SimTime {
	return i.s.Now()
}
