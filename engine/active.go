package engine

// dispatch is one unit of work handed to an active component's
// goroutine. The batch dispatcher awaits the reply before sending the
// next event for the same component, so processing stays serial and in
// sequence order
type dispatch struct {
	ctx   *Ctx
	eff   *Effector
	reply chan<- *Fault
}

// runActive is the dedicated loop of one active component: receive
// event, run handler under the panic guard, acknowledge with the fault
// (nil on success). Exits when the scheduler closes the inbound channel
func (c *Component) runActive() {
	defer close(c.exited)
	for d := range c.inbound {
		pv, stack, panicked := runGuarded(func() {
			c.handler.HandleEvent(d.ctx, d.eff)
		})
		var fault *Fault
		if panicked {
			fault = &Fault{
				CID:   c.id,
				Path:  c.path,
				Event: d.ctx.Event.Name,
				Seq:   d.ctx.Event.Seq,
				Panic: pv,
				Stack: string(stack),
			}
		}
		d.reply <- fault
	}
}
