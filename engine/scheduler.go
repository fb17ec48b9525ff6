package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lixenwraith/chronon/core"
	"github.com/lixenwraith/chronon/event"
	"github.com/lixenwraith/chronon/store"
)

// Run phases. Registration and seeding are setup-only; Run is one-shot
const (
	phaseSetup int32 = iota
	phaseRunning
	phaseDone
)

// DispatchRecord is the trace of one delivered event, emitted on the
// conductor in canonical (time, sequence) order. Two runs with the same
// inputs produce identical record streams
type DispatchRecord struct {
	Time core.SimTime
	Seq  uint64
	CID  core.ComponentID
	Name string
}

// Config tunes one Simulation
type Config struct {
	// Seed is the master RNG seed; component streams derive from it
	Seed uint64

	// Workers bounds the passive worker pool. 0 means GOMAXPROCS
	Workers int

	// StrictStore escalates cross-component writes from rejection to
	// run abort
	StrictStore bool

	// AbortOnPassivePanic overrides the passive default (continue)
	AbortOnPassivePanic bool

	// ContinueOnActivePanic overrides the active default (abort run)
	ContinueOnActivePanic bool

	// ActiveQueueDepth bounds each active inbound channel. Default 1
	ActiveQueueDepth int

	// ShutdownGrace bounds the wait for active goroutines on shutdown.
	// Threads that outlast it are noted on the outcome, not killed
	ShutdownGrace time.Duration

	// LogWriter receives the zerolog stream. nil discards
	LogWriter io.Writer
	// LogLevel filters records below the given severity
	LogLevel core.Level
	// LogGlob restricts logging to components whose path matches
	LogGlob string

	// OnDispatch observes every delivered event in canonical order.
	// Called on the conductor; keep it cheap
	OnDispatch func(DispatchRecord)
}

// Simulation owns the clock, queue, store, registry, RNG seed, and log
// sink. All engine state lives here; there are no package-level
// singletons.
//
// Thread-Safety:
//   - Register/Schedule: setup only, any goroutine
//   - Run: one-shot, owns the conductor loop
//   - Store/Inspector/Metrics: safe concurrently with a running Run
type Simulation struct {
	cfg Config

	mu      sync.Mutex // guards nextSeq and queue
	nextSeq uint64
	queue   *event.Queue

	st      *store.Store
	reg     *registry
	names   *event.Names
	metrics *Metrics
	sink    *logSink

	now        atomic.Int64 // SimTime, read by inspector
	phase      atomic.Int32
	dispatched atomic.Uint64
	shutdown   chan struct{}

	// counters is the conductor-local cache of per-event metric pointers
	counters map[string]*atomic.Int64
}

// New creates a Simulation in the setup phase
func New(cfg Config) *Simulation {
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = time.Second
	}
	if cfg.ActiveQueueDepth <= 0 {
		cfg.ActiveQueueDepth = 1
	}
	m := newMetrics()
	return &Simulation{
		cfg:      cfg,
		queue:    event.NewQueue(64),
		st:       store.New(),
		reg:      newRegistry(),
		names:    event.NewNames(),
		metrics:  m,
		sink:     newLogSink(cfg.LogWriter, cfg.LogLevel, cfg.LogGlob, &m.LogDropped),
		shutdown: make(chan struct{}),
		counters: make(map[string]*atomic.Int64),
	}
}

// Store returns the shared state repository
func (s *Simulation) Store() *store.Store {
	return s.st
}

// Now returns the current simulated time
func (s *Simulation) Now() core.SimTime {
	return core.SimTime(s.now.Load())
}

// Metrics returns the engine gauge surface
func (s *Simulation) Metrics() *Metrics {
	return s.metrics
}

// Register adds a component during setup. The path is a /-separated
// name; intermediate segments materialize as group nodes in the naming
// tree. Registering after the run has started is scheduler misuse
func (s *Simulation) Register(path string, kind Kind, h Handler) (core.ComponentID, error) {
	if s.phase.Load() != phaseSetup {
		return core.NoComponent, fmt.Errorf("%w: register %q after run started", ErrSchedulerMisuse, path)
	}
	if h == nil {
		return core.NoComponent, fmt.Errorf("%w: nil handler for %q", ErrSchedulerMisuse, path)
	}
	c, err := s.reg.add(path, kind, h)
	if err != nil {
		return core.NoComponent, err
	}
	c.seed1, c.seed2 = deriveComponentSeed(s.cfg.Seed, c.id)
	switch kind {
	case Active:
		c.rng = newComponentRand(c.seed1, c.seed2)
		c.inbound = make(chan dispatch, s.cfg.ActiveQueueDepth)
		c.exited = make(chan struct{})
		c.abortOnPanic = !s.cfg.ContinueOnActivePanic
	default:
		c.abortOnPanic = s.cfg.AbortOnPassivePanic
	}
	return c.id, nil
}

// Schedule seeds an event during setup, delay ticks from time zero.
// Negative delays, unknown targets, and post-setup calls are misuse
func (s *Simulation) Schedule(delay core.Duration, target core.ComponentID, name string, payload core.Value) error {
	if s.phase.Load() != phaseSetup {
		return fmt.Errorf("%w: schedule after run started", ErrSchedulerMisuse)
	}
	if !delay.Valid() {
		return fmt.Errorf("%w: negative delay %d", ErrSchedulerMisuse, delay)
	}
	if _, ok := s.reg.get(target); !ok {
		return fmt.Errorf("%w: target %s", ErrUnknownComponent, target)
	}
	s.names.Intern(name)
	s.scheduleAt(core.SimTime(0).Add(delay), target, name, payload)
	return nil
}

// scheduleAt assigns the next sequence under the mutex and enqueues.
// The single counter provides the total order every ordering decision
// derives from
func (s *Simulation) scheduleAt(t core.SimTime, target core.ComponentID, name string, payload core.Value) {
	s.mu.Lock()
	seq := s.nextSeq
	s.nextSeq++
	s.queue.Push(event.Event{Name: name, Payload: payload, Time: t, Target: target, Seq: seq})
	s.mu.Unlock()
}

// dispatchResult pairs one batch slot with its effector or fault
type dispatchResult struct {
	eff   *Effector
	fault *Fault
}

// Run executes the main loop until a stop condition fires or the queue
// drains. Stop conditions are evaluated between batches only; a batch
// always completes. ctx cancellation counts as a wall bound
func (s *Simulation) Run(ctx context.Context, stop StopCondition) Outcome {
	out := Outcome{RunID: uuid.New()}
	if !s.phase.CompareAndSwap(phaseSetup, phaseRunning) {
		out.Stopped = InternalError
		out.StoppedReason = out.Stopped.String()
		out.Err = fmt.Errorf("%w: run already started", ErrSchedulerMisuse)
		return out
	}

	start := time.Now()
	s.sink.start()
	defer s.sink.stop()

	comps := s.reg.all()
	for _, c := range comps {
		if c.kind == Active {
			go c.runActive()
		}
	}

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var reason Reason
	var fatal error

	for {
		if done, why := s.checkStop(ctx, stop, start); done {
			reason = why
			break
		}

		s.mu.Lock()
		nextT, ok := s.queue.NextTime()
		s.mu.Unlock()
		if !ok {
			reason = QueueEmpty
			break
		}
		if stop.MaxSimTime > 0 && nextT > stop.MaxSimTime {
			reason = TimeBound
			break
		}

		s.mu.Lock()
		batch := s.queue.DrainNext()
		s.mu.Unlock()
		t := batch[0].Time
		snap := s.st.Current()

		results := s.dispatchBatch(batch, snap, t, workers)
		fatal = s.commitBatch(&out, batch, results, t)

		s.now.Store(int64(t))
		s.metrics.Batches.Add(1)
		s.mu.Lock()
		s.metrics.QueueLen.Store(int64(s.queue.Len()))
		s.mu.Unlock()

		if fatal != nil {
			reason = InternalError
			break
		}
	}

	s.phase.Store(phaseDone)
	close(s.shutdown)
	out.Stragglers = s.stopActive(comps)

	out.Stopped = reason
	out.StoppedReason = reason.String()
	out.EventsDispatched = s.dispatched.Load()
	out.FinalSimTime = s.Now()
	out.WallClock = time.Since(start)
	out.WallClockMS = out.WallClock.Milliseconds()
	out.FinalVersion = s.st.Current().Version()
	out.Err = fatal
	return out
}

// checkStop evaluates the between-batch stop conditions in fixed order
func (s *Simulation) checkStop(ctx context.Context, stop StopCondition, start time.Time) (bool, Reason) {
	if ctx != nil && ctx.Err() != nil {
		return true, WallBound
	}
	if stop.MaxWall > 0 && time.Since(start) >= stop.MaxWall {
		return true, WallBound
	}
	if stop.MaxEvents > 0 && s.dispatched.Load() >= stop.MaxEvents {
		return true, EventBound
	}
	if stop.Predicate != nil && stop.Predicate(s.st.Current()) {
		return true, Predicate
	}
	return false, QueueEmpty
}

// dispatchBatch fans the batch out: passive handlers on the worker
// pool, active handlers through their component goroutines, multiple
// events to one active component delivered serially in sequence order.
// Blocks until every slot holds an effector or a fault
func (s *Simulation) dispatchBatch(batch []event.Event, snap *store.Snapshot, t core.SimTime, workers int) []dispatchResult {
	results := make([]dispatchResult, len(batch))

	var pool errgroup.Group
	pool.SetLimit(workers)

	activeIdx := make(map[core.ComponentID][]int)
	var activeOrder []core.ComponentID

	for i, ev := range batch {
		comp, ok := s.reg.get(ev.Target)
		if !ok {
			// Schedule validates targets; a miss here is an engine bug
			results[i] = dispatchResult{fault: &Fault{
				CID: ev.Target, Event: ev.Name, Seq: ev.Seq,
				Panic: "dispatch to unknown component",
			}}
			continue
		}
		if comp.kind == Active {
			if _, seen := activeIdx[comp.id]; !seen {
				activeOrder = append(activeOrder, comp.id)
			}
			activeIdx[comp.id] = append(activeIdx[comp.id], i)
			continue
		}

		idx, e, c := i, ev, comp
		pool.Go(func() error {
			eff := newEffector(c.id, e.Seq)
			hctx := &Ctx{
				Event: e,
				View:  snap,
				Now:   t,
				Rand:  newDispatchRand(c.seed1, c.seed2, e.Seq),
				Self:  c.id,
				Done:  s.shutdown,
			}
			pv, stack, panicked := runGuarded(func() {
				c.handler.HandleEvent(hctx, eff)
			})
			if panicked {
				results[idx] = dispatchResult{fault: &Fault{
					CID: c.id, Path: c.path, Event: e.Name, Seq: e.Seq,
					Panic: pv, Stack: string(stack),
				}}
			} else {
				results[idx] = dispatchResult{eff: eff}
			}
			return nil
		})
	}

	var activeWG sync.WaitGroup
	for _, cid := range activeOrder {
		comp, _ := s.reg.get(cid)
		idxs := activeIdx[cid]
		activeWG.Add(1)
		go func(c *Component, idxs []int) {
			defer activeWG.Done()
			for _, i := range idxs {
				ev := batch[i]
				eff := newEffector(c.id, ev.Seq)
				hctx := &Ctx{
					Event: ev,
					View:  snap,
					Now:   t,
					Rand:  c.rng,
					Self:  c.id,
					Done:  s.shutdown,
				}
				reply := make(chan *Fault, 1)
				c.inbound <- dispatch{ctx: hctx, eff: eff, reply: reply}
				if fault := <-reply; fault != nil {
					results[i] = dispatchResult{fault: fault}
				} else {
					results[i] = dispatchResult{eff: eff}
				}
			}
		}(comp, idxs)
	}

	_ = pool.Wait()
	activeWG.Wait()
	return results
}

// commitBatch applies effectors in sequence order: mutations to the
// store, log records to the sink, outbound events to the queue with
// fresh sequences. Rejection is all-or-nothing per effector. Returns
// the first fatal error; the batch still commits whole either way
func (s *Simulation) commitBatch(out *Outcome, batch []event.Event, results []dispatchResult, t core.SimTime) error {
	tx := s.st.Begin()
	var fatal error

	for i, ev := range batch {
		s.dispatched.Add(1)
		s.metrics.Dispatches.Add(1)
		s.counterFor(ev.Name).Add(1)
		if s.cfg.OnDispatch != nil {
			s.cfg.OnDispatch(DispatchRecord{Time: t, Seq: ev.Seq, CID: ev.Target, Name: ev.Name})
		}

		res := results[i]
		path := s.reg.pathOf(ev.Target)

		if res.fault != nil {
			s.metrics.Faults.Add(1)
			out.Faults = append(out.Faults, *res.fault)
			s.engineLog(t, ev.Target, path, "handler panic: "+res.fault.Panic)
			if comp, ok := s.reg.get(ev.Target); ok && comp.abortOnPanic && fatal == nil {
				fatal = fmt.Errorf("handler panic in %s: %s", path, res.fault.Panic)
			}
			continue
		}

		eff := res.eff

		// Validate outbound requests before touching the store so
		// rejection stays all-or-nothing across the whole effector
		if err := s.validateOutbound(eff); err != nil {
			s.metrics.Rejected.Add(1)
			s.engineLog(t, ev.Target, path, "effector rejected: "+err.Error())
			if fatal == nil {
				fatal = err
			}
			continue
		}

		if err := tx.Apply(ev.Target, eff.muts); err != nil {
			s.metrics.Rejected.Add(1)
			switch {
			case errors.Is(err, store.ErrTypeViolation):
				out.TypeViolations++
			case errors.Is(err, store.ErrAccessViolation):
				out.AccessViolations++
				if s.cfg.StrictStore && fatal == nil {
					fatal = err
				}
			}
			s.engineLog(t, ev.Target, path, "effector rejected: "+err.Error())
			continue
		}

		wall := wallNow()
		for _, pl := range eff.logs {
			s.sink.emit(LogRecord{
				SimTime:   t,
				WallNS:    wall,
				CID:       ev.Target,
				Component: path,
				Level:     pl.level,
				Message:   pl.msg,
			})
		}
		for _, pe := range eff.out {
			s.names.Intern(pe.name)
			s.scheduleAt(t.Add(pe.delay), pe.target, pe.name, pe.payload)
		}
	}

	tx.Commit()
	s.metrics.Commits.Add(1)
	return fatal
}

// validateOutbound rejects negative delays and unknown targets.
// Both are scheduler misuse and fatal
func (s *Simulation) validateOutbound(eff *Effector) error {
	for _, pe := range eff.out {
		if !pe.delay.Valid() {
			return fmt.Errorf("%w: negative delay %d for %q", ErrSchedulerMisuse, pe.delay, pe.name)
		}
		if _, ok := s.reg.get(pe.target); !ok {
			return fmt.Errorf("%w: %s targeted by %q", ErrUnknownComponent, pe.target, pe.name)
		}
	}
	return nil
}

// stopActive closes inbound channels and waits out the grace period.
// Returns the paths of goroutines that did not exit in time
func (s *Simulation) stopActive(comps []*Component) []string {
	var active []*Component
	for _, c := range comps {
		if c.kind == Active {
			close(c.inbound)
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		return nil
	}

	deadline := time.After(s.cfg.ShutdownGrace)
	var stragglers []string
	for _, c := range active {
		select {
		case <-c.exited:
		case <-deadline:
			stragglers = append(stragglers, c.path)
		}
	}
	return stragglers
}

// engineLog emits an engine-attributed error record
func (s *Simulation) engineLog(t core.SimTime, cid core.ComponentID, path, msg string) {
	s.sink.emit(LogRecord{
		SimTime:   t,
		WallNS:    wallNow(),
		CID:       cid,
		Component: path,
		Level:     core.LevelError,
		Message:   msg,
	})
}

// counterFor caches per-event metric pointers, conductor only
func (s *Simulation) counterFor(name string) *atomic.Int64 {
	if ptr, ok := s.counters[name]; ok {
		return ptr
	}
	ptr := s.metrics.EventCounter(name)
	s.counters[name] = ptr
	return ptr
}
