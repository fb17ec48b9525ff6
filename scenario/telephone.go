// Package scenario holds prebuilt example simulations used by the host
// binary and the sandboxes under cmd/
package scenario

import (
	"fmt"

	"github.com/lixenwraith/chronon/core"
	"github.com/lixenwraith/chronon/engine"
)

// telephoneNodes is the chain length of the telephone scenario
const telephoneNodes = 5

// BuildTelephone wires a forwarding chain: node 0 receives "tick" with
// a string payload at t=0; each node records the message under "msg"
// and forwards it to the next node with delay 1. The run ends with the
// queue empty at t = nodes-1 and the payload stored on every node
func BuildTelephone(sim *engine.Simulation, msg string) error {
	ids := make([]core.ComponentID, telephoneNodes)

	for i := 0; i < telephoneNodes; i++ {
		i := i
		id, err := sim.Register(fmt.Sprintf("/n%d", i), engine.Passive,
			engine.HandlerFunc(func(ctx *engine.Ctx, eff *engine.Effector) {
				eff.Set("msg", ctx.Event.Payload)
				eff.Log(core.LevelDebug, "received")
				if i < telephoneNodes-1 {
					eff.Schedule(1, ids[i+1], ctx.Event.Name, ctx.Event.Payload)
				}
			}))
		if err != nil {
			return err
		}
		ids[i] = id
	}

	return sim.Schedule(0, ids[0], "tick", core.String(msg))
}
