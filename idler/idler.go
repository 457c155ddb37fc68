// package idler drives the bearing carriage that presses the pulley
// against one filament. Slot 5 maps to the rest position where no
// filament is gripped.
package idler

import (
	"spoolworks.dev/config"
	"spoolworks.dev/globals"
	"spoolworks.dev/motion"
)

// IdleSlot is the disengaged rest position.
const IdleSlot = globals.ParkedSlot

type Idler struct {
	motion.Base
}

func New() *Idler {
	i := &Idler{}
	i.Axis = config.Idler
	i.CurrentSlot = IdleSlot
	i.PlannedSlot = IdleSlot
	return i
}

// Engage presses the bearing onto slot's filament.
func (i *Idler) Engage(p *motion.Planner, stealth bool, slot uint8) motion.Result {
	if int(slot) >= config.NumSlots {
		return motion.Refused
	}
	return i.Base.MoveTo(i, p, stealth, slot)
}

// Disengage returns the bearing to the rest position.
func (i *Idler) Disengage(p *motion.Planner, stealth bool) motion.Result {
	return i.Base.MoveTo(i, p, stealth, IdleSlot)
}

// Engaged reports the bearing holding a filament, movement finished.
func (i *Idler) Engaged() bool {
	return i.Ready() && i.CurrentSlot != IdleSlot
}

// Disengaged reports the bearing settled in the rest position.
func (i *Idler) Disengaged() bool {
	return i.Ready() && i.CurrentSlot == IdleSlot
}

// MoveToSlot plans a move to any position, the rest slot included.
func (i *Idler) MoveToSlot(p *motion.Planner, stealth bool, slot uint8) motion.Result {
	if slot > IdleSlot {
		return motion.Refused
	}
	return i.Base.MoveTo(i, p, stealth, slot)
}

// Home forces re-homing; the bearing disengages afterwards.
func (i *Idler) Home(p *motion.Planner) motion.Result {
	i.PlannedSlot = IdleSlot
	return i.Base.PlanHome(i, p)
}

func (i *Idler) Step(p *motion.Planner, stealth bool) {
	i.Base.Step(i, p, stealth)
}

func (i *Idler) PrepareMoveToPlannedSlot(p *motion.Planner) {
	delta := config.IdlerSlotSteps[i.PlannedSlot] - config.IdlerSlotSteps[i.CurrentSlot]
	p.PlanMoveAxis(config.Idler, delta, config.IdlerFeedrate, config.IdlerAccel)
}

func (i *Idler) PlanHomingMoveForward(p *motion.Planner) {
	p.PlanMoveAxis(config.Idler, config.IdlerHomeSteps, config.IdlerHomeRate, config.IdlerAccel)
}

func (i *Idler) PlanHomingMoveBack(p *motion.Planner) {
	p.PlanMoveAxis(config.Idler, -config.IdlerHomeSteps, config.IdlerHomeRate, config.IdlerAccel)
}

func (i *Idler) FinishHoming(p *motion.Planner, measured int32) bool {
	if measured < config.IdlerLengthMin || measured > config.IdlerLengthMax {
		return false
	}
	p.PlanMoveAxis(config.Idler, config.IdlerSlotSteps[i.PlannedSlot], config.IdlerFeedrate, config.IdlerAccel)
	return true
}

func (i *Idler) FinishMove(p *motion.Planner) {}
