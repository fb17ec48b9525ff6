package engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lixenwraith/chronon/core"
	"github.com/lixenwraith/chronon/store"
)

func TestTelephoneLine(t *testing.T) {
	rec := &recorder{}
	sim := New(Config{OnDispatch: rec.observe})
	ids := buildChain(t, sim, 5, "hi")

	out := sim.Run(context.Background(), StopCondition{})
	if out.Err != nil {
		t.Fatal(out.Err)
	}

	if out.Stopped != QueueEmpty {
		t.Errorf("stopped = %s", out.StoppedReason)
	}
	if out.EventsDispatched != 5 {
		t.Errorf("dispatched = %d, want 5", out.EventsDispatched)
	}
	if out.FinalSimTime != 4 {
		t.Errorf("final sim time = %d, want 4", out.FinalSimTime)
	}

	v, ok := sim.Store().Get(ids[4], "msg")
	if !ok {
		t.Fatal("/n4 msg missing")
	}
	if s, _ := v.AsString(); s != "hi" {
		t.Errorf("/n4 msg = %v", v)
	}

	// One hop per tick, in chain order
	for i, r := range rec.recs {
		if r.CID != ids[i] || r.Time != core.SimTime(i) {
			t.Errorf("record %d = %+v", i, r)
		}
	}
}

func TestSimultaneousFanoutDeterminism(t *testing.T) {
	runOnce := func() string {
		rec := &recorder{}
		sim := New(Config{Seed: 42, OnDispatch: rec.observe})
		for i := 0; i < 10; i++ {
			id, err := sim.Register(fmt.Sprintf("/fan/n%02d", i), Passive,
				HandlerFunc(func(ctx *Ctx, eff *Effector) {
					eff.Set("draw", core.Int(int64(ctx.Rand.Uint64())))
				}))
			if err != nil {
				t.Fatal(err)
			}
			if err := sim.Schedule(100, id, "pulse", core.Unset); err != nil {
				t.Fatal(err)
			}
		}
		out := sim.Run(context.Background(), StopCondition{})
		if out.Err != nil {
			t.Fatal(out.Err)
		}
		if out.EventsDispatched != 10 || out.FinalSimTime != 100 {
			t.Fatalf("outcome = %+v", out)
		}
		return digest(rec.recs, sim.Store().Current())
	}

	first := runOnce()
	for i := 1; i < 20; i++ {
		if got := runOnce(); got != first {
			t.Fatalf("run %d diverged", i)
		}
	}
}

func TestStoreTypeViolationContinues(t *testing.T) {
	sim := New(Config{})
	id, err := sim.Register("/c", Passive, HandlerFunc(func(ctx *Ctx, eff *Effector) {
		switch ctx.Event.Name {
		case "int":
			eff.Set("counter", core.Int(1))
		case "string":
			eff.Set("counter", core.String("one"))
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.Schedule(1, id, "int", core.Unset); err != nil {
		t.Fatal(err)
	}
	if err := sim.Schedule(2, id, "string", core.Unset); err != nil {
		t.Fatal(err)
	}

	out := sim.Run(context.Background(), StopCondition{})
	if out.Err != nil {
		t.Fatal(out.Err)
	}
	if out.Stopped != QueueEmpty {
		t.Errorf("stopped = %s", out.StoppedReason)
	}
	if out.TypeViolations != 1 {
		t.Errorf("type violations = %d", out.TypeViolations)
	}

	v, _ := sim.Store().Get(id, "counter")
	if i, _ := v.AsInt(); i != 1 {
		t.Errorf("counter = %v, want 1", v)
	}
}

func TestCrossComponentWriteRejection(t *testing.T) {
	var logs bytes.Buffer
	sim := New(Config{LogWriter: &logs, LogLevel: core.LevelError})

	var aID, bID core.ComponentID
	var err error
	aID, err = sim.Register("/a", Passive, HandlerFunc(func(ctx *Ctx, eff *Effector) {
		eff.Set("mine", core.Int(1))
		eff.SetComponent(bID, "theirs", core.Int(1))
	}))
	if err != nil {
		t.Fatal(err)
	}
	bID, err = sim.Register("/b", Passive, HandlerFunc(func(*Ctx, *Effector) {}))
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.Schedule(0, aID, "go", core.Unset); err != nil {
		t.Fatal(err)
	}

	out := sim.Run(context.Background(), StopCondition{})
	if out.Err != nil {
		t.Fatal(out.Err)
	}
	if out.AccessViolations != 1 {
		t.Errorf("access violations = %d", out.AccessViolations)
	}
	if _, ok := sim.Store().Get(bID, "theirs"); ok {
		t.Error("cross-component write landed")
	}
	if _, ok := sim.Store().Get(aID, "mine"); ok {
		t.Error("rejected effector applied partially")
	}
	if !strings.Contains(logs.String(), "effector rejected") {
		t.Error("rejection was not logged")
	}
}

func TestCrossComponentWriteFatalInStrictMode(t *testing.T) {
	sim := New(Config{StrictStore: true})

	var aID, bID core.ComponentID
	var err error
	aID, err = sim.Register("/a", Passive, HandlerFunc(func(ctx *Ctx, eff *Effector) {
		eff.SetComponent(bID, "theirs", core.Int(1))
	}))
	if err != nil {
		t.Fatal(err)
	}
	bID, err = sim.Register("/b", Passive, HandlerFunc(func(*Ctx, *Effector) {}))
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.Schedule(0, aID, "go", core.Unset); err != nil {
		t.Fatal(err)
	}

	out := sim.Run(context.Background(), StopCondition{})
	if out.Stopped != InternalError || out.Err == nil {
		t.Errorf("stopped = %s, err = %v", out.StoppedReason, out.Err)
	}
}

func TestWallClockBound(t *testing.T) {
	sim := New(Config{})
	id, err := sim.Register("/spinner", Passive, HandlerFunc(func(ctx *Ctx, eff *Effector) {
		eff.Schedule(1, ctx.Self, "spin", core.Unset)
	}))
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.Schedule(0, id, "spin", core.Unset); err != nil {
		t.Fatal(err)
	}

	out := sim.Run(context.Background(), StopAfterWall(100*time.Millisecond))
	if out.Stopped != WallBound {
		t.Fatalf("stopped = %s", out.StoppedReason)
	}
	if out.Err != nil {
		t.Fatal(out.Err)
	}
	if out.EventsDispatched == 0 {
		t.Error("nothing dispatched before the bound")
	}
	// Every batch committed whole: batch count and commit count agree
	if sim.Metrics().Commits.Load() != sim.Metrics().Batches.Load() {
		t.Error("observed a batch without a matching commit")
	}
}

func TestActiveComponentHandshake(t *testing.T) {
	rec := &recorder{}
	sim := New(Config{OnDispatch: rec.observe})

	id, err := sim.Register("/worker", Active, HandlerFunc(func(ctx *Ctx, eff *Effector) {
		time.Sleep(50 * time.Millisecond)
		eff.Set(fmt.Sprintf("done_%d", ctx.Event.Seq), core.Bool(true))
	}))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if err := sim.Schedule(core.Duration(i), id, "job", core.Unset); err != nil {
			t.Fatal(err)
		}
	}

	out := sim.Run(context.Background(), StopCondition{})
	if out.Err != nil {
		t.Fatal(out.Err)
	}
	if out.EventsDispatched != 4 {
		t.Fatalf("dispatched = %d", out.EventsDispatched)
	}
	if out.WallClock < 200*time.Millisecond {
		t.Errorf("wall clock = %v, want >= 200ms for serial processing", out.WallClock)
	}
	for i := 1; i < len(rec.recs); i++ {
		if rec.recs[i].Seq <= rec.recs[i-1].Seq {
			t.Error("active events processed out of sequence order")
		}
	}
	if len(out.Stragglers) != 0 {
		t.Errorf("stragglers = %v", out.Stragglers)
	}
}

func TestPassivePanicContinuesRun(t *testing.T) {
	sim := New(Config{})
	boomID, err := sim.Register("/boom", Passive, HandlerFunc(func(*Ctx, *Effector) {
		panic("kaboom")
	}))
	if err != nil {
		t.Fatal(err)
	}
	okID, err := sim.Register("/ok", Passive, HandlerFunc(func(ctx *Ctx, eff *Effector) {
		eff.Set("ran", core.Bool(true))
	}))
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.Schedule(1, boomID, "go", core.Unset); err != nil {
		t.Fatal(err)
	}
	if err := sim.Schedule(2, okID, "go", core.Unset); err != nil {
		t.Fatal(err)
	}

	out := sim.Run(context.Background(), StopCondition{})
	if out.Stopped != QueueEmpty || out.Err != nil {
		t.Fatalf("stopped = %s, err = %v", out.StoppedReason, out.Err)
	}
	if len(out.Faults) != 1 || out.Faults[0].Panic != "kaboom" {
		t.Fatalf("faults = %+v", out.Faults)
	}
	if out.Faults[0].CID != boomID {
		t.Error("fault attributed to wrong component")
	}
	if v, ok := sim.Store().Get(okID, "ran"); !ok {
		t.Error("run did not continue past the panic")
	} else if ran, _ := v.AsBool(); !ran {
		t.Error("later handler's effect missing")
	}
}

func TestActivePanicAbortsRun(t *testing.T) {
	sim := New(Config{})
	id, err := sim.Register("/actor", Active, HandlerFunc(func(*Ctx, *Effector) {
		panic("actor down")
	}))
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.Schedule(0, id, "go", core.Unset); err != nil {
		t.Fatal(err)
	}

	out := sim.Run(context.Background(), StopCondition{})
	if out.Stopped != InternalError || out.Err == nil {
		t.Fatalf("stopped = %s, err = %v", out.StoppedReason, out.Err)
	}
	if len(out.Faults) != 1 {
		t.Fatalf("faults = %+v", out.Faults)
	}
}

func TestStopPredicate(t *testing.T) {
	sim := New(Config{})
	id, err := sim.Register("/counter", Passive, HandlerFunc(func(ctx *Ctx, eff *Effector) {
		n := int64(0)
		if v, ok := ctx.View.Get(ctx.Self, "n"); ok {
			n, _ = v.AsInt()
		}
		eff.Set("n", core.Int(n+1))
		eff.Schedule(1, ctx.Self, "inc", core.Unset)
	}))
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.Schedule(0, id, "inc", core.Unset); err != nil {
		t.Fatal(err)
	}

	out := sim.Run(context.Background(), StopWhen(func(snap *store.Snapshot) bool {
		v, ok := snap.Get(id, "n")
		if !ok {
			return false
		}
		n, _ := v.AsInt()
		return n >= 5
	}))
	if out.Stopped != Predicate {
		t.Fatalf("stopped = %s", out.StoppedReason)
	}
	v, _ := sim.Store().Get(id, "n")
	if n, _ := v.AsInt(); n != 5 {
		t.Errorf("n = %d, want 5", n)
	}
}

func TestEventBudget(t *testing.T) {
	sim := New(Config{})
	id, err := sim.Register("/spinner", Passive, HandlerFunc(func(ctx *Ctx, eff *Effector) {
		eff.Schedule(1, ctx.Self, "spin", core.Unset)
	}))
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.Schedule(0, id, "spin", core.Unset); err != nil {
		t.Fatal(err)
	}

	out := sim.Run(context.Background(), StopAfterEvents(7))
	if out.Stopped != EventBound {
		t.Fatalf("stopped = %s", out.StoppedReason)
	}
	if out.EventsDispatched != 7 {
		t.Errorf("dispatched = %d", out.EventsDispatched)
	}
}

func TestShutdownClosesDone(t *testing.T) {
	sim := New(Config{ShutdownGrace: 100 * time.Millisecond})
	var done <-chan struct{}
	id, err := sim.Register("/actor", Active, HandlerFunc(func(ctx *Ctx, eff *Effector) {
		done = ctx.Done
	}))
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.Schedule(0, id, "go", core.Unset); err != nil {
		t.Fatal(err)
	}

	out := sim.Run(context.Background(), StopCondition{})
	if out.Err != nil {
		t.Fatal(out.Err)
	}
	if len(out.Stragglers) != 0 {
		t.Errorf("stragglers = %v", out.Stragglers)
	}
	select {
	case <-done:
	default:
		t.Error("Done not closed after shutdown")
	}
}

func TestLogGlobFiltering(t *testing.T) {
	var buf bytes.Buffer
	sim := New(Config{LogWriter: &buf, LogLevel: core.LevelDebug, LogGlob: "/alpha"})

	aID, err := sim.Register("/alpha", Passive, HandlerFunc(func(ctx *Ctx, eff *Effector) {
		eff.Log(core.LevelInfo, "from alpha")
	}))
	if err != nil {
		t.Fatal(err)
	}
	bID, err := sim.Register("/beta", Passive, HandlerFunc(func(ctx *Ctx, eff *Effector) {
		eff.Log(core.LevelInfo, "from beta")
	}))
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.Schedule(0, aID, "go", core.Unset); err != nil {
		t.Fatal(err)
	}
	if err := sim.Schedule(0, bID, "go", core.Unset); err != nil {
		t.Fatal(err)
	}

	out := sim.Run(context.Background(), StopCondition{})
	if out.Err != nil {
		t.Fatal(out.Err)
	}

	logs := buf.String()
	if !strings.Contains(logs, "from alpha") {
		t.Error("matching component's log missing")
	}
	if strings.Contains(logs, "from beta") {
		t.Error("glob failed to filter non-matching component")
	}
	if !strings.Contains(logs, `"sim_time"`) || !strings.Contains(logs, `"cid"`) {
		t.Error("log records missing engine fields")
	}
}
