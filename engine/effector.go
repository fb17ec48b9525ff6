package engine

import (
	"github.com/lixenwraith/chronon/core"
	"github.com/lixenwraith/chronon/store"
)

// pendingEvent is an outbound schedule request buffered until commit.
// The final sequence is assigned at commit time from the committing
// effector's position, never from the handler-side call order race
type pendingEvent struct {
	delay   core.Duration
	target  core.ComponentID
	name    string
	payload core.Value
}

// pendingLog is one buffered log line
type pendingLog struct {
	level core.Level
	msg   string
}

// Effector buffers the intended effects of exactly one dispatch: state
// mutations, outbound events, and log lines. Handlers write into it;
// the scheduler owns it after the handler returns and commits or
// discards it atomically. No read operations; reads go to the snapshot
type Effector struct {
	owner core.ComponentID
	seq   uint64
	muts  []store.Mutation
	out   []pendingEvent
	logs  []pendingLog
}

func newEffector(owner core.ComponentID, seq uint64) *Effector {
	return &Effector{owner: owner, seq: seq}
}

// Set stages a write to key under the producing component's own id
func (e *Effector) Set(key string, v core.Value) {
	e.muts = append(e.muts, store.Mutation{CID: core.NoComponent, Key: key, Value: v})
}

// SetComponent stages a write to key under an explicit component id.
// The store rejects the whole effector at commit unless cid is the
// producing component's own id
func (e *Effector) SetComponent(cid core.ComponentID, key string, v core.Value) {
	e.muts = append(e.muts, store.Mutation{CID: cid, Key: key, Value: v})
}

// Schedule stages an outbound event delay ticks from the current batch
// time. delay must be >= 0; a zero delay dispatches in a strictly later
// batch at the same sim time, never the current one
func (e *Effector) Schedule(delay core.Duration, target core.ComponentID, name string, payload core.Value) {
	e.out = append(e.out, pendingEvent{delay: delay, target: target, name: name, payload: payload})
}

// Log stages a log line attributed to the producing component at the
// current batch's sim time
func (e *Effector) Log(level core.Level, msg string) {
	e.logs = append(e.logs, pendingLog{level: level, msg: msg})
}

// empty reports whether committing the effector would be a no-op
func (e *Effector) empty() bool {
	return len(e.muts) == 0 && len(e.out) == 0 && len(e.logs) == 0
}
