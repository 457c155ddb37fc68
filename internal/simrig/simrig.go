// package simrig builds a whole simulated machine for tests: a
// modules.Context over the sim HAL, the dispatcher, and helpers that
// advance full loop iterations the way the firmware main loop does.
package simrig

import (
	"spoolworks.dev/config"
	"spoolworks.dev/globals"
	"spoolworks.dev/hal/sim"
	"spoolworks.dev/idle"
	"spoolworks.dev/logic"
	"spoolworks.dev/modules"
	"spoolworks.dev/status"
)

// Raw ADC levels for the button ladder and the FINDA channel.
const (
	RawNoButton = 1023
	RawButton0  = 5
	RawButton1  = 344
	RawButton2  = 516

	RawFindaOn  = 1023
	RawFindaOff = 0
)

type Rig struct {
	ADC   *sim.ADC
	Clock *sim.Clock
	UART  *sim.UART
	Store *sim.Storage

	Pulley   *sim.Driver
	SelDrv   *sim.Driver
	IdlerDrv *sim.Driver

	Ctx  *modules.Context
	Idle *idle.Mode
}

// New builds a machine with both movables un-homed and mid-axis, no
// filament and no buttons pressed.
func New() *Rig {
	r := &Rig{
		ADC:   &sim.ADC{},
		Clock: &sim.Clock{},
		UART:  &sim.UART{},
		Store: &sim.Storage{},
		Pulley: &sim.Driver{
			StepsPerTick: 10,
		},
		SelDrv: &sim.Driver{
			StepsPerTick: 10,
			Limited:      true,
			Min:          0,
			Max:          1600,
		},
		IdlerDrv: &sim.Driver{
			StepsPerTick: 10,
			Limited:      true,
			Min:          0,
			Max:          1400,
		},
	}
	r.SelDrv.SetPosition(800)
	r.IdlerDrv.SetPosition(700)
	r.ADC.SetADC(0, RawNoButton)
	r.ADC.SetADC(1, RawFindaOff)
	r.Ctx = modules.New(r.Clock, r.ADC, r.Store, r.Pulley, r.SelDrv, r.IdlerDrv)
	r.Idle = idle.New()
	return r
}

// Tick advances the machine one loop iteration without the dispatcher:
// one millisecond, one background stepping slice per axis, one module
// pass.
func (r *Rig) Tick() {
	r.Clock.Advance(1)
	r.Pulley.Tick()
	r.SelDrv.Tick()
	r.IdlerDrv.Tick()
	r.Ctx.Step()
}

// TickIdle is Tick plus one dispatcher iteration, the full firmware
// loop.
func (r *Rig) TickIdle() {
	r.Tick()
	r.Idle.Step(r.Ctx, r.UART)
}

// SetFinda drives the FINDA channel fully on or off.
func (r *Rig) SetFinda(on bool) {
	if on {
		r.ADC.SetADC(1, RawFindaOn)
	} else {
		r.ADC.SetADC(1, RawFindaOff)
	}
}

// PressButton holds button i down through a full debounce cycle and
// releases it. The latch sets on the second iteration after the
// release (the first one sees the release); a
// running command may consume it immediately, so callers assert on the
// state they expect rather than on the latch.
func (r *Rig) PressButton(i uint8, step func()) {
	raw := [3]uint16{RawButton0, RawButton1, RawButton2}[i]
	r.ADC.SetADC(0, raw)
	for n := 0; n < config.DebounceMs+10; n++ {
		step()
	}
	r.ADC.SetADC(0, RawNoButton)
	for n := 0; n < 10; n++ {
		step()
	}
}

// WhileState steps cmd while it reports the given progress, up to
// budget iterations. It reports whether the state was left in time.
func (r *Rig) WhileState(cmd logic.Command, s status.ProgressCode, budget int) bool {
	for n := 0; n < budget; n++ {
		if cmd.State() != s {
			return true
		}
		r.Tick()
		cmd.Step(r.Ctx)
	}
	return cmd.State() != s
}

// WhileCondition steps cmd while cond holds, calling cond with the
// iteration count first.
func (r *Rig) WhileCondition(cmd logic.Command, cond func(n int) bool, budget int) bool {
	for n := 0; n < budget; n++ {
		if !cond(n) {
			return true
		}
		r.Tick()
		cmd.Step(r.Ctx)
	}
	return false
}

// HomeUnits homes the selector and the idler so slot moves are direct.
func (r *Rig) HomeUnits() bool {
	stealth := r.Ctx.Globals.MotorsStealth()
	r.Ctx.Idler.Disengage(r.Ctx.Motion, stealth)
	r.Ctx.Selector.MoveToSlot(r.Ctx.Motion, stealth, globals.ParkedSlot)
	for n := 0; n < 2000; n++ {
		if r.Ctx.Idler.Ready() && r.Ctx.Selector.Ready() {
			return true
		}
		r.Tick()
	}
	return false
}

// EnsureActiveSlot homes and moves the selector to slot, making it the
// active one, the state a load command starts from.
func (r *Rig) EnsureActiveSlot(slot uint8) bool {
	if !r.HomeUnits() {
		return false
	}
	r.Ctx.Globals.SetActiveSlot(slot)
	r.Ctx.Selector.MoveToSlot(r.Ctx.Motion, r.Ctx.Globals.MotorsStealth(), slot)
	for n := 0; n < 2000; n++ {
		if r.Ctx.Selector.Ready() {
			return true
		}
		r.Tick()
	}
	return false
}
