package engine

import (
	"math/rand/v2"

	"github.com/lixenwraith/chronon/core"
	"github.com/lixenwraith/chronon/event"
	"github.com/lixenwraith/chronon/store"
)

// Kind selects the component runtime
type Kind uint8

const (
	// Passive components run on the shared worker pool; no worker-local
	// state persists across events
	Passive Kind = iota

	// Active components own a dedicated goroutine and process their
	// events serially through a bounded inbound channel
	Active
)

func (k Kind) String() string {
	if k == Active {
		return "active"
	}
	return "passive"
}

// Ctx carries one dispatch into a handler. The snapshot is frozen at
// batch start: no handler observes a write committed in its own batch
type Ctx struct {
	Event event.Event
	View  *store.Snapshot
	Now   core.SimTime
	Rand  *rand.Rand
	Self  core.ComponentID

	// Done is closed when the run shuts down. Handlers that block on
	// their own affairs must select on it
	Done <-chan struct{}
}

// Handler processes one delivered event. Passive handlers must be safe
// to invoke from any worker goroutine; active handlers run on their
// component's own goroutine. A handler may block internally but the
// batch does not complete until it returns
type Handler interface {
	HandleEvent(ctx *Ctx, eff *Effector)
}

// HandlerFunc adapts a plain function to Handler
type HandlerFunc func(ctx *Ctx, eff *Effector)

func (f HandlerFunc) HandleEvent(ctx *Ctx, eff *Effector) { f(ctx, eff) }

// Component is one registered participant
type Component struct {
	id      core.ComponentID
	path    string
	kind    Kind
	handler Handler

	// rngSeed pair derived from the master seed and id; active
	// components consume a persistent stream, passive dispatches derive
	// a per-event stream so pool workers never share generator state
	seed1, seed2 uint64
	rng          *rand.Rand // active only, goroutine-confined

	// Active runtime plumbing
	inbound chan dispatch
	exited  chan struct{}

	// abortOnPanic escalates a handler panic to run abort
	abortOnPanic bool
}

// ID returns the dense component id
func (c *Component) ID() core.ComponentID { return c.id }

// Path returns the registration path
func (c *Component) Path() string { return c.path }

// Kind returns the runtime variant
func (c *Component) Kind() Kind { return c.kind }
