package motion

import (
	"testing"

	"spoolworks.dev/config"
	"spoolworks.dev/hal"
	"spoolworks.dev/hal/sim"
)

func newSimPlanner() (*Planner, [3]*sim.Driver) {
	drv := [3]*sim.Driver{
		{StepsPerTick: 10},
		{StepsPerTick: 10, Limited: true, Max: 1600},
		{StepsPerTick: 10, Limited: true, Max: 1400},
	}
	return NewPlanner(drv[0], drv[1], drv[2]), drv
}

func TestPlanAndDrain(t *testing.T) {
	p, drv := newSimPlanner()
	if !p.QueueEmpty() {
		t.Fatal("fresh planner not empty")
	}
	p.PlanMoveAxis(config.Pulley, 100, 4000, config.PulleyAccel)
	if p.QueueEmpty() || p.QueueEmptyAxis(config.Pulley) {
		t.Fatal("planned move not visible")
	}
	if !p.QueueEmptyAxis(config.Selector) {
		t.Fatal("move leaked onto another axis")
	}
	for i := 0; i < 10; i++ {
		drv[0].Tick()
	}
	if !p.QueueEmpty() {
		t.Fatal("move did not drain")
	}
	if got := p.Position(config.Pulley); got != 100 {
		t.Fatalf("position: got %d, want 100", got)
	}
}

func TestPlanMoveTriple(t *testing.T) {
	p, _ := newSimPlanner()
	p.PlanMove(200, 100, 0, 4000, 2000, 0)
	if p.QueueEmptyAxis(config.Pulley) || p.QueueEmptyAxis(config.Selector) {
		t.Fatal("triple form did not plan both axes")
	}
	if !p.QueueEmptyAxis(config.Idler) {
		t.Fatal("zero-step axis was planned")
	}
	p.AbortPlannedMoves(false)
	if !p.QueueEmpty() {
		t.Fatal("abort left moves queued")
	}
}

func TestStallGuardPassthrough(t *testing.T) {
	p, drv := newSimPlanner()
	p.PlanMoveAxis(config.Selector, 2600, 1000, config.SelectorAccel)
	for i := 0; i < 400 && !p.StallGuard(config.Selector); i++ {
		drv[1].Tick()
	}
	if !p.StallGuard(config.Selector) {
		t.Fatal("end stop did not raise a stall")
	}
	p.StallGuardReset(config.Selector)
	if p.StallGuard(config.Selector) {
		t.Fatal("stall survived reset")
	}
}

func TestDriverFlags(t *testing.T) {
	p, drv := newSimPlanner()
	if !p.DriverFlags(config.Idler).Good() {
		t.Fatal("fresh driver not good")
	}
	drv[2].SetErrorFlags(hal.FlagShortToGround)
	if p.DriverFlags(config.Idler).Good() {
		t.Fatal("fault not visible")
	}
}
