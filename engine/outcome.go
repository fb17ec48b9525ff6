package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/lixenwraith/chronon/core"
)

// Reason records why a run terminated
type Reason uint8

const (
	// QueueEmpty means the event queue drained; the normal ending
	QueueEmpty Reason = iota
	// TimeBound means the next event lay beyond the simulated-time bound
	TimeBound
	// WallBound means the wall-clock budget or context expired between batches
	WallBound
	// EventBound means the dispatched-event budget was reached
	EventBound
	// Predicate means the stop predicate over the store held
	Predicate
	// InternalError means a fatal fault or misuse aborted the run
	InternalError
)

func (r Reason) String() string {
	switch r {
	case QueueEmpty:
		return "QueueEmpty"
	case TimeBound:
		return "TimeBound"
	case WallBound:
		return "WallBound"
	case EventBound:
		return "EventBound"
	case Predicate:
		return "Predicate"
	case InternalError:
		return "InternalError"
	}
	return "Unknown"
}

// Fault records one handler failure. Whether a fault occurs is a
// function of run inputs alone. No field carries wall time; Stack holds
// the raw recovered trace, goroutine header included, and is left out
// of the JSON form
type Fault struct {
	CID   core.ComponentID `json:"cid"`
	Path  string           `json:"path"`
	Event string           `json:"event"`
	Seq   uint64           `json:"seq"`
	Panic string           `json:"panic"`
	Stack string           `json:"-"`
}

// Outcome summarizes a completed run
type Outcome struct {
	RunID            uuid.UUID     `json:"run_id"`
	Stopped          Reason        `json:"-"`
	StoppedReason    string        `json:"stopped_reason"`
	EventsDispatched uint64        `json:"events_dispatched"`
	FinalSimTime     core.SimTime  `json:"final_sim_time"`
	WallClock        time.Duration `json:"-"`
	WallClockMS      int64         `json:"wall_clock_ms"`
	FinalVersion     uint64        `json:"final_store_version"`

	// Faults are handler failures in dispatch order, including one that
	// aborted the run
	Faults []Fault `json:"faults,omitempty"`

	// Stragglers are active component paths still running when the
	// shutdown grace period lapsed. They are noted, not killed
	Stragglers []string `json:"stragglers,omitempty"`

	TypeViolations   uint64 `json:"type_violations"`
	AccessViolations uint64 `json:"access_violations"`

	// Err is set when Stopped is InternalError
	Err error `json:"-"`
}
