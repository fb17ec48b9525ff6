// Minimal telephone-chain sandbox: run the 5-node forwarding chain and
// dump the final store
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lixenwraith/chronon/core"
	"github.com/lixenwraith/chronon/engine"
	"github.com/lixenwraith/chronon/scenario"
	"github.com/lixenwraith/chronon/store"
)

func main() {
	sim := engine.New(engine.Config{
		Seed:      1,
		LogWriter: os.Stderr,
		LogLevel:  core.LevelDebug,
	})
	if err := scenario.BuildTelephone(sim, "hi"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	outcome := sim.Run(context.Background(), engine.StopCondition{})
	fmt.Printf("stopped=%s dispatched=%d final_t=%s\n",
		outcome.StoppedReason, outcome.EventsDispatched, outcome.FinalSimTime)

	sim.Store().Current().Range(func(k store.Key, v core.Value) {
		fmt.Printf("  %s %s = %s\n", k.CID, k.Name, v)
	})
}
