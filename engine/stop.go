package engine

import (
	"time"

	"github.com/lixenwraith/chronon/core"
	"github.com/lixenwraith/chronon/store"
)

// StopCondition bounds a run. Zero fields are unbounded; any set bound
// may fire. All conditions are evaluated between batches only, so a
// batch always completes and no commit is ever observed half-applied
type StopCondition struct {
	// MaxSimTime stops before dispatching any batch scheduled after
	// this simulated time
	MaxSimTime core.SimTime

	// MaxWall stops once this much wall time has elapsed since Run began
	MaxWall time.Duration

	// MaxEvents stops once this many events have been dispatched
	MaxEvents uint64

	// Predicate stops when it reports true over the latest snapshot.
	// It must be a pure function of the snapshot for runs to stay
	// reproducible
	Predicate func(*store.Snapshot) bool
}

// StopAt is shorthand for a simulated-time bound
func StopAt(t core.SimTime) StopCondition {
	return StopCondition{MaxSimTime: t}
}

// StopAfterWall is shorthand for a wall-clock bound
func StopAfterWall(d time.Duration) StopCondition {
	return StopCondition{MaxWall: d}
}

// StopAfterEvents is shorthand for an event budget
func StopAfterEvents(n uint64) StopCondition {
	return StopCondition{MaxEvents: n}
}

// StopWhen is shorthand for a store predicate
func StopWhen(pred func(*store.Snapshot) bool) StopCondition {
	return StopCondition{Predicate: pred}
}
