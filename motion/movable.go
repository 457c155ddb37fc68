package motion

import (
	"spoolworks.dev/config"
	"spoolworks.dev/hal"
)

// State of a movable unit.
type State uint8

const (
	Ready State = iota
	Moving
	HomeForward
	HomeBack
	HomingFailed
	TMCFailed
)

// Result of planning an operation on a movable unit.
type Result uint8

const (
	Accepted Result = iota
	Refused
	Failed
)

// Unit supplies the axis-specific pieces of the shared movable state
// machine: how to reach the planned slot, how to plan the two homing
// passes and how to finish them.
type Unit interface {
	PrepareMoveToPlannedSlot(p *Planner)
	PlanHomingMoveForward(p *Planner)
	PlanHomingMoveBack(p *Planner)
	// FinishHoming validates the measured axis length and plans the
	// follow-up move (to the planned slot, or the unit's rest
	// position). It reports false when the length is out of range.
	FinishHoming(p *Planner, measured int32) bool
	FinishMove(p *Planner)
}

// Base is the state shared by the selector and the idler: slot
// bookkeeping, homing validity and the driver fault snapshot.
type Base struct {
	Axis        config.Axis
	CurrentSlot uint8
	PlannedSlot uint8
	HomingValid bool
	TMCFlags    hal.DriverFlags

	state     State
	homeStart int32
}

func (b *Base) State() State { return b.state }

// Ready reports that the unit is idle and its last operation finished.
func (b *Base) Ready() bool { return b.state == Ready }

// InvalidateHoming forces a homing pass before the next slot move.
func (b *Base) InvalidateHoming() { b.HomingValid = false }

// MoveTo plans a move to slot, re-homing first when the axis position
// is not trusted. Refused while a previous operation is in flight.
func (b *Base) MoveTo(u Unit, p *Planner, stealth bool, slot uint8) Result {
	switch b.state {
	case Ready, HomingFailed, TMCFailed:
	default:
		return Refused
	}
	b.PlannedSlot = slot
	if !b.HomingValid {
		return b.planHome(u, p)
	}
	return b.initMovement(u, p)
}

// PlanHome unconditionally starts the two-pass homing procedure. The
// unit returns to its rest position afterwards.
func (b *Base) PlanHome(u Unit, p *Planner) Result {
	switch b.state {
	case Ready, HomingFailed, TMCFailed:
	default:
		return Refused
	}
	b.HomingValid = false
	return b.planHome(u, p)
}

func (b *Base) planHome(u Unit, p *Planner) Result {
	if !p.InitAxis(b.Axis) {
		b.state = TMCFailed
		return Failed
	}
	// Homing runs stall guard, which needs the spreadcycle chopper.
	p.SetMode(b.Axis, hal.ModeNormal)
	p.StallGuardReset(b.Axis)
	u.PlanHomingMoveForward(p)
	b.state = HomeForward
	return Accepted
}

func (b *Base) initMovement(u Unit, p *Planner) Result {
	if !p.InitAxis(b.Axis) {
		b.state = TMCFailed
		return Failed
	}
	u.PrepareMoveToPlannedSlot(p)
	b.state = Moving
	return Accepted
}

// Step advances the unit by at most one edge.
func (b *Base) Step(u Unit, p *Planner, stealth bool) {
	switch b.state {
	case Moving:
		b.performMove(u, p)
	case HomeForward:
		b.performHomeForward(u, p, stealth)
	case HomeBack:
		b.performHomeBack(u, p, stealth)
	}
}

func (b *Base) performMove(u Unit, p *Planner) {
	if flags := p.DriverFlags(b.Axis); !flags.Good() {
		// The driver dropped out mid-move; the planned move cannot
		// have finished. Snapshot the fault for reporting.
		b.TMCFlags = flags
		b.state = TMCFailed
		return
	}
	if p.QueueEmptyAxis(b.Axis) {
		b.CurrentSlot = b.PlannedSlot
		u.FinishMove(p)
		b.state = Ready
	}
}

func (b *Base) performHomeForward(u Unit, p *Planner, stealth bool) {
	if p.StallGuard(b.Axis) {
		// Front end of the axis reached.
		p.StallGuardReset(b.Axis)
		p.AbortAxis(b.Axis, true)
		b.homeStart = p.Position(b.Axis)
		u.PlanHomingMoveBack(p)
		b.state = HomeBack
	} else if p.QueueEmptyAxis(b.Axis) {
		b.homeFailed(p, stealth)
	}
}

func (b *Base) performHomeBack(u Unit, p *Planner, stealth bool) {
	if p.StallGuard(b.Axis) {
		// Back end reached; the axis length is now known.
		p.StallGuardReset(b.Axis)
		p.AbortAxis(b.Axis, true)
		p.SetMode(b.Axis, mode(stealth))
		measured := b.homeStart - p.Position(b.Axis)
		if measured < 0 {
			measured = -measured
		}
		if !u.FinishHoming(p, measured) {
			// Something is blocking the axis; terminate here.
			b.state = HomingFailed
			return
		}
		b.HomingValid = true
		// Not Ready yet: FinishHoming planned the move away from
		// the end stop.
		b.state = Moving
	} else if p.QueueEmptyAxis(b.Axis) {
		b.homeFailed(p, stealth)
	}
}

// homeFailed handles running out of planned moves without a stall.
func (b *Base) homeFailed(p *Planner, stealth bool) {
	b.HomingValid = false
	p.SetMode(b.Axis, mode(stealth))
	b.state = HomingFailed
}

func mode(stealth bool) hal.StepMode {
	if stealth {
		return hal.ModeStealth
	}
	return hal.ModeNormal
}
