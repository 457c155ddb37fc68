// package motion is the planner front end for the three axes. It is a
// thin bookkeeping layer over the per-axis hal.AxisDriver: the drivers
// own the move queues and step in the background, the planner is the
// single place the foreground plans, aborts and inspects them.
package motion

import (
	"spoolworks.dev/config"
	"spoolworks.dev/hal"
)

type Planner struct {
	drivers [config.NumAxes]hal.AxisDriver
}

func NewPlanner(pulley, selector, idler hal.AxisDriver) *Planner {
	p := &Planner{}
	p.drivers[config.Pulley] = pulley
	p.drivers[config.Selector] = selector
	p.drivers[config.Idler] = idler
	return p
}

// InitAxis powers up the axis driver and verifies communication.
func (p *Planner) InitAxis(a config.Axis) bool {
	return p.drivers[a].Init()
}

func (p *Planner) SetMode(a config.Axis, m hal.StepMode) {
	p.drivers[a].SetMode(m)
}

func (p *Planner) SetModeAll(m hal.StepMode) {
	for _, d := range p.drivers {
		d.SetMode(m)
	}
}

// PlanMoveAxis enqueues a single trapezoidal move on one axis.
func (p *Planner) PlanMoveAxis(a config.Axis, steps int32, feedrate, accel uint16) bool {
	return p.drivers[a].Enqueue(hal.Move{Steps: steps, Feedrate: feedrate, Accel: accel})
}

// PlanMove is the three-axis convenience form. Axes with zero steps are
// left alone.
func (p *Planner) PlanMove(pulley, selector, idler int32, pulleyRate, selectorRate, idlerRate uint16) {
	if pulley != 0 {
		p.PlanMoveAxis(config.Pulley, pulley, pulleyRate, config.PulleyAccel)
	}
	if selector != 0 {
		p.PlanMoveAxis(config.Selector, selector, selectorRate, config.SelectorAccel)
	}
	if idler != 0 {
		p.PlanMoveAxis(config.Idler, idler, idlerRate, config.IdlerAccel)
	}
}

// AbortPlannedMoves flushes every axis queue.
func (p *Planner) AbortPlannedMoves(keepCurrent bool) {
	for _, d := range p.drivers {
		d.Abort(keepCurrent)
	}
}

func (p *Planner) AbortAxis(a config.Axis, keepCurrent bool) {
	p.drivers[a].Abort(keepCurrent)
}

// QueueEmpty reports whether all axis queues have drained.
func (p *Planner) QueueEmpty() bool {
	for _, d := range p.drivers {
		if !d.QueueEmpty() {
			return false
		}
	}
	return true
}

func (p *Planner) QueueEmptyAxis(a config.Axis) bool {
	return p.drivers[a].QueueEmpty()
}

func (p *Planner) StallGuard(a config.Axis) bool {
	return p.drivers[a].StallGuard()
}

func (p *Planner) StallGuardReset(a config.Axis) {
	p.drivers[a].StallGuardReset()
}

func (p *Planner) Position(a config.Axis) int32 {
	return p.drivers[a].Position()
}

func (p *Planner) DriverFlags(a config.Axis) hal.DriverFlags {
	return p.drivers[a].ErrorFlags()
}
