package logic

import (
	"spoolworks.dev/config"
	"spoolworks.dev/globals"
	"spoolworks.dev/leds"
	"spoolworks.dev/modules"
	"spoolworks.dev/status"
)

// EjectFilament pushes a slot's filament out of the unit so the user
// can pull the spool. The selector parks first to clear the output
// path; the command ends with the slot dark and nothing selected.
type EjectFilament struct {
	Base
	slot   uint8
	unload UnloadFilament
}

func (e *EjectFilament) Reset(ctx *modules.Context, slot uint8) {
	e.slot = slot
	if ctx.FINDA.Pressed() {
		e.arm(status.UnloadingFilament)
		e.unload.Reset(ctx, 0)
		return
	}
	e.park(ctx)
}

func (e *EjectFilament) park(ctx *modules.Context) {
	e.arm(status.ParkingSelector)
	ctx.Selector.MoveToSlot(ctx.Motion, ctx.Globals.MotorsStealth(), globals.ParkedSlot)
}

func (e *EjectFilament) Step(ctx *modules.Context) bool {
	if e.done {
		return true
	}
	switch e.progress {
	case status.UnloadingFilament:
		if !e.unload.Step(ctx) {
			return false
		}
		if e.unload.Error() != status.ErrOK {
			return e.fail(e.unload.State(), e.unload.Error())
		}
		e.park(ctx)
	case status.ParkingSelector:
		if ec, bad := unitFailure(ctx.Selector.State(), ctx.Selector.TMCFlags); bad {
			return e.fail(e.progress, ec)
		}
		if ctx.Selector.Ready() {
			e.progress = status.EngagingIdler
			ctx.LEDs.SetMode(e.slot, leds.Green, leds.Blink0)
			ctx.Idler.Engage(ctx.Motion, ctx.Globals.MotorsStealth(), e.slot)
		}
	case status.EngagingIdler:
		if ec, bad := unitFailure(ctx.Idler.State(), ctx.Idler.TMCFlags); bad {
			return e.fail(status.ErrTMCFailed, ec)
		}
		if ctx.Idler.Engaged() {
			e.progress = status.EjectingFilament
			ctx.Motion.PlanMoveAxis(config.Pulley, config.EjectSteps, config.EjectFeedrate, config.PulleyAccel)
		}
	case status.EjectingFilament:
		if ctx.Motion.QueueEmptyAxis(config.Pulley) {
			e.progress = status.DisengagingIdler
			ctx.Idler.Disengage(ctx.Motion, ctx.Globals.MotorsStealth())
		}
	case status.DisengagingIdler:
		if ec, bad := unitFailure(ctx.Idler.State(), ctx.Idler.TMCFlags); bad {
			return e.fail(status.ErrTMCFailed, ec)
		}
		if ctx.Idler.Disengaged() {
			ctx.Globals.SetActiveSlot(globals.ParkedSlot)
			ctx.LEDs.SetMode(e.slot, leds.Green, leds.Off)
			ctx.LEDs.SetMode(e.slot, leds.Red, leds.Off)
			return e.finish()
		}
	}
	return false
}
