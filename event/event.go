package event

import (
	"fmt"

	"github.com/lixenwraith/chronon/core"
)

// Event is a timestamped message addressed to a single component.
// Seq is assigned under the scheduler mutex at schedule time and is the
// sole tiebreaker between events sharing a sim time; it provides a total
// order over every event ever scheduled in a run.
type Event struct {
	Name    string
	Payload core.Value
	Time    core.SimTime
	Target  core.ComponentID
	Seq     uint64
}

func (e Event) String() string {
	return fmt.Sprintf("%s@%s->%s#%d", e.Name, e.Time, e.Target, e.Seq)
}
