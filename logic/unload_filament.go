package logic

import (
	"spoolworks.dev/config"
	"spoolworks.dev/globals"
	"spoolworks.dev/leds"
	"spoolworks.dev/modules"
	"spoolworks.dev/status"
)

// UnloadFilament retracts the active filament from the extruder back
// through the FINDA and parks the tip in the PTFE. A FINDA that never
// releases drops into the same user-assisted recovery tree as loading,
// with the pull direction reversed.
type UnloadFilament struct {
	Base
	slot uint8
	unl  UnloadToFinda
}

func (u *UnloadFilament) Reset(ctx *modules.Context, param uint8) {
	u.slot = ctx.Globals.ActiveSlot()
	if u.slot == globals.ParkedSlot || !ctx.FINDA.Pressed() {
		// Nothing to unload.
		ctx.Globals.SetActiveSlot(globals.ParkedSlot)
		u.arm(status.OK)
		u.done = true
		return
	}
	u.arm(status.EngagingIdler)
	ctx.LEDs.SetMode(u.slot, leds.Green, leds.Blink0)
	ctx.Idler.Engage(ctx.Motion, ctx.Globals.MotorsStealth(), u.slot)
}

func (u *UnloadFilament) Step(ctx *modules.Context) bool {
	if u.done {
		return true
	}
	switch u.progress {
	case status.EngagingIdler:
		if e, bad := unitFailure(ctx.Idler.State(), ctx.Idler.TMCFlags); bad {
			return u.fail(status.ErrTMCFailed, e)
		}
		if ctx.Idler.Engaged() {
			u.progress = status.UnloadingToFinda
			u.unl.Reset(ctx)
		}
	case status.UnloadingToFinda, status.UnloadingToPulley:
		if !u.unl.Step(ctx) {
			u.progress = u.unl.Progress()
			return false
		}
		if u.unl.Succeeded() {
			u.err = status.ErrOK
			u.progress = status.DisengagingIdler
			ctx.Idler.Disengage(ctx.Motion, ctx.Globals.MotorsStealth())
			return false
		}
		// The filament is stuck past the FINDA.
		u.err = status.FindaDidntRelease
		u.progress = status.Err1DisengagingIdler
		ctx.Idler.Disengage(ctx.Motion, ctx.Globals.MotorsStealth())
		ctx.LEDs.SetMode(u.slot, leds.Green, leds.Off)
		ctx.LEDs.SetMode(u.slot, leds.Red, leds.Blink0)
	case status.Err1DisengagingIdler:
		if e, bad := unitFailure(ctx.Idler.State(), ctx.Idler.TMCFlags); bad {
			return u.fail(status.ErrTMCFailed, e)
		}
		if ctx.Idler.Disengaged() {
			u.progress = status.Err1WaitingForUser
		}
	case status.Err1WaitingForUser:
		if i, ok := ctx.Buttons.AnyPressed(); ok {
			ctx.Buttons.Clear(i)
			u.progress = status.Err1EngagingIdler
			ctx.Idler.Engage(ctx.Motion, ctx.Globals.MotorsStealth(), u.slot)
		}
	case status.Err1EngagingIdler:
		if e, bad := unitFailure(ctx.Idler.State(), ctx.Idler.TMCFlags); bad {
			return u.fail(status.ErrTMCFailed, e)
		}
		if ctx.Idler.Engaged() {
			u.progress = status.Err1HelpingFilament
			ctx.Motion.PlanMoveAxis(config.Pulley, config.HelpPullSteps, config.HelpFeedrate, config.PulleyAccel)
		}
	case status.Err1HelpingFilament:
		if !ctx.FINDA.Pressed() {
			// Freed; finish the pull through the normal path.
			ctx.Motion.AbortAxis(config.Pulley, false)
			u.err = status.ErrOK
			u.progress = status.UnloadingToFinda
			u.unl.Reset(ctx)
			return false
		}
		if ctx.Motion.QueueEmptyAxis(config.Pulley) {
			u.progress = status.Err1DisengagingIdler
			ctx.Idler.Disengage(ctx.Motion, ctx.Globals.MotorsStealth())
		}
	case status.DisengagingIdler:
		if e, bad := unitFailure(ctx.Idler.State(), ctx.Idler.TMCFlags); bad {
			return u.fail(status.ErrTMCFailed, e)
		}
		if ctx.Idler.Disengaged() {
			ctx.Globals.SetActiveSlot(globals.ParkedSlot)
			ctx.LEDs.SetMode(u.slot, leds.Green, leds.Off)
			ctx.LEDs.SetMode(u.slot, leds.Red, leds.Off)
			return u.finish()
		}
	}
	return false
}
