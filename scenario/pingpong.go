package scenario

import (
	"github.com/lixenwraith/chronon/core"
	"github.com/lixenwraith/chronon/engine"
)

// BuildPingPong pairs an active component with a passive one that
// volley an event back and forth forever, incrementing their own
// counters. Exercises the active runtime; bound the run with an event
// budget or wall clock
func BuildPingPong(sim *engine.Simulation) error {
	var ping, pong core.ComponentID

	bump := func(ctx *engine.Ctx, eff *engine.Effector, peer core.ComponentID) {
		count := int64(0)
		if v, ok := ctx.View.Get(ctx.Self, "count"); ok {
			count, _ = v.AsInt()
		}
		eff.Set("count", core.Int(count+1))
		eff.Schedule(core.Millisecond, peer, "ball", ctx.Event.Payload)
	}

	var err error
	ping, err = sim.Register("/players/ping", engine.Active,
		engine.HandlerFunc(func(ctx *engine.Ctx, eff *engine.Effector) {
			bump(ctx, eff, pong)
		}))
	if err != nil {
		return err
	}
	pong, err = sim.Register("/players/pong", engine.Passive,
		engine.HandlerFunc(func(ctx *engine.Ctx, eff *engine.Effector) {
			bump(ctx, eff, ping)
		}))
	if err != nil {
		return err
	}

	return sim.Schedule(0, ping, "ball", core.String("serve"))
}
