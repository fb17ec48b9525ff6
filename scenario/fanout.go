package scenario

import (
	"fmt"

	"github.com/lixenwraith/chronon/core"
	"github.com/lixenwraith/chronon/engine"
)

// BuildFanout registers n passive components that all receive a "pulse"
// at the same sim time. Each draws from its derived RNG and records the
// draw, so repeated runs with one seed must produce byte-identical
// dispatch logs and store contents
func BuildFanout(sim *engine.Simulation, n int) error {
	for i := 0; i < n; i++ {
		id, err := sim.Register(fmt.Sprintf("/fan/n%02d", i), engine.Passive,
			engine.HandlerFunc(func(ctx *engine.Ctx, eff *engine.Effector) {
				eff.Set("draw", core.Int(int64(ctx.Rand.Uint64())))
				eff.Set("at", core.Int(ctx.Now.Nanoseconds()))
				eff.Log(core.LevelDebug, "pulsed")
			}))
		if err != nil {
			return err
		}
		if err := sim.Schedule(100, id, "pulse", core.Unset); err != nil {
			return err
		}
	}
	return nil
}
