// package modules aggregates the hardware-facing modules into the
// Context value threaded through every state machine, and fixes the
// order in which one loop iteration advances them.
package modules

import (
	"spoolworks.dev/buttons"
	"spoolworks.dev/finda"
	"spoolworks.dev/fsensor"
	"spoolworks.dev/globals"
	"spoolworks.dev/hal"
	"spoolworks.dev/idler"
	"spoolworks.dev/leds"
	"spoolworks.dev/motion"
	"spoolworks.dev/selector"
)

// Context owns one of everything. There is exactly one physical
// instance of each module; passing the aggregate around instead of
// reaching for package globals keeps the fakes trivial to wire in.
type Context struct {
	Clock    hal.Clock
	ADC      hal.ADC
	Motion   *motion.Planner
	Selector *selector.Selector
	Idler    *idler.Idler
	FINDA    *finda.FINDA
	FSensor  *fsensor.FSensor
	Buttons  *buttons.Buttons
	LEDs     *leds.LEDs
	Globals  *globals.Globals
}

// New wires a Context from a HAL. The axis drivers step in the
// background; everything else advances in Step.
func New(clock hal.Clock, adc hal.ADC, store hal.Storage, pulley, sel, idl hal.AxisDriver) *Context {
	return &Context{
		Clock:    clock,
		ADC:      adc,
		Motion:   motion.NewPlanner(pulley, sel, idl),
		Selector: selector.New(),
		Idler:    idler.New(),
		FINDA:    &finda.FINDA{},
		FSensor:  &fsensor.FSensor{},
		Buttons:  &buttons.Buttons{},
		LEDs:     &leds.LEDs{},
		Globals:  globals.New(store),
	}
}

// Step advances every module exactly once: sensors first, then the
// movable units, then the LEDs. Commands observe sensor transitions
// made in the same iteration.
func (c *Context) Step() {
	now := c.Clock.Millis()
	c.Buttons.Step(now, c.ADC)
	c.FINDA.Step(c.ADC)
	stealth := c.Globals.MotorsStealth()
	c.Idler.Step(c.Motion, stealth)
	c.Selector.Step(c.Motion, stealth)
	c.LEDs.Step(now)
}
