// package selector drives the carriage that aligns one of the five
// filament paths with the pulley. Slot positions are absolute step
// counts from the homing end stop; slot 5 is the parked position past
// the last filament path.
package selector

import (
	"spoolworks.dev/config"
	"spoolworks.dev/globals"
	"spoolworks.dev/motion"
)

type Selector struct {
	motion.Base
}

func New() *Selector {
	s := &Selector{}
	s.Axis = config.Selector
	s.CurrentSlot = globals.ParkedSlot
	s.PlannedSlot = globals.ParkedSlot
	return s
}

// MoveToSlot plans a move to slot (0..4, or 5 to park).
func (s *Selector) MoveToSlot(p *motion.Planner, stealth bool, slot uint8) motion.Result {
	if slot > globals.ParkedSlot {
		return motion.Refused
	}
	return s.Base.MoveTo(s, p, stealth, slot)
}

// Home forces re-homing; the carriage parks afterwards.
func (s *Selector) Home(p *motion.Planner) motion.Result {
	s.PlannedSlot = globals.ParkedSlot
	return s.Base.PlanHome(s, p)
}

func (s *Selector) Step(p *motion.Planner, stealth bool) {
	s.Base.Step(s, p, stealth)
}

func (s *Selector) PrepareMoveToPlannedSlot(p *motion.Planner) {
	delta := config.SelectorSlotSteps[s.PlannedSlot] - config.SelectorSlotSteps[s.CurrentSlot]
	p.PlanMoveAxis(config.Selector, delta, config.SelectorFeedrate, config.SelectorAccel)
}

func (s *Selector) PlanHomingMoveForward(p *motion.Planner) {
	p.PlanMoveAxis(config.Selector, config.SelectorHomeSteps, config.SelectorHomeRate, config.SelectorAccel)
}

func (s *Selector) PlanHomingMoveBack(p *motion.Planner) {
	p.PlanMoveAxis(config.Selector, -config.SelectorHomeSteps, config.SelectorHomeRate, config.SelectorAccel)
}

func (s *Selector) FinishHoming(p *motion.Planner, measured int32) bool {
	if measured < config.SelectorLengthMin || measured > config.SelectorLengthMax {
		return false
	}
	// The carriage sits at the back stop, the zero reference of the
	// slot table; the planned slot position is the absolute distance.
	p.PlanMoveAxis(config.Selector, config.SelectorSlotSteps[s.PlannedSlot], config.SelectorFeedrate, config.SelectorAccel)
	return true
}

func (s *Selector) FinishMove(p *motion.Planner) {}
