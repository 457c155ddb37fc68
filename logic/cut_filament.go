package logic

import (
	"spoolworks.dev/config"
	"spoolworks.dev/hal"
	"spoolworks.dev/leds"
	"spoolworks.dev/modules"
	"spoolworks.dev/status"
)

// CutFilament trims the tip of a slot's filament: the slot is
// selected, the filament pushed out a little, and the selector blade
// driven across it. The selector travels at homing speed in normal
// mode for the cut stroke, then returns so the net displacement is
// zero and the slot bookkeeping stays valid.
type CutFilament struct {
	Base
	slot   uint8
	unload UnloadFilament
}

func (c *CutFilament) Reset(ctx *modules.Context, slot uint8) {
	c.slot = slot
	if ctx.FINDA.Pressed() {
		c.arm(status.UnloadingFilament)
		c.unload.Reset(ctx, 0)
		return
	}
	c.selectSlot(ctx)
}

func (c *CutFilament) selectSlot(ctx *modules.Context) {
	c.arm(status.SelectingFilamentSlot)
	ctx.Globals.SetActiveSlot(c.slot)
	ctx.Selector.MoveToSlot(ctx.Motion, ctx.Globals.MotorsStealth(), c.slot)
}

func (c *CutFilament) Step(ctx *modules.Context) bool {
	if c.done {
		return true
	}
	switch c.progress {
	case status.UnloadingFilament:
		if !c.unload.Step(ctx) {
			return false
		}
		if c.unload.Error() != status.ErrOK {
			return c.fail(c.unload.State(), c.unload.Error())
		}
		c.selectSlot(ctx)
	case status.SelectingFilamentSlot:
		if e, bad := unitFailure(ctx.Selector.State(), ctx.Selector.TMCFlags); bad {
			return c.fail(c.progress, e)
		}
		if ctx.Selector.Ready() {
			c.progress = status.EngagingIdler
			ctx.LEDs.SetMode(c.slot, leds.Green, leds.Blink0)
			ctx.Idler.Engage(ctx.Motion, ctx.Globals.MotorsStealth(), c.slot)
		}
	case status.EngagingIdler:
		if e, bad := unitFailure(ctx.Idler.State(), ctx.Idler.TMCFlags); bad {
			return c.fail(status.ErrTMCFailed, e)
		}
		if ctx.Idler.Engaged() {
			c.progress = status.PushingFilament
			ctx.Motion.PlanMoveAxis(config.Pulley, config.CutPushSteps, config.CutPushRate, config.PulleyAccel)
		}
	case status.PushingFilament:
		if ctx.Motion.QueueEmptyAxis(config.Pulley) {
			// The blade needs full torque.
			c.progress = status.PreparingBlade
			ctx.Motion.SetMode(config.Selector, hal.ModeNormal)
			ctx.Motion.PlanMoveAxis(config.Selector, config.SelectorCutSteps, config.SelectorHomeRate, config.SelectorAccel)
		}
	case status.PreparingBlade:
		if ctx.Motion.QueueEmptyAxis(config.Selector) {
			c.progress = status.PerformingCut
			ctx.Motion.PlanMoveAxis(config.Selector, -config.SelectorCutSteps, config.SelectorHomeRate, config.SelectorAccel)
		}
	case status.PerformingCut:
		if ctx.Motion.QueueEmptyAxis(config.Selector) {
			stealth := ctx.Globals.MotorsStealth()
			if stealth {
				ctx.Motion.SetMode(config.Selector, hal.ModeStealth)
			}
			c.progress = status.ReturningSelector
			ctx.Idler.Disengage(ctx.Motion, stealth)
		}
	case status.ReturningSelector:
		if e, bad := unitFailure(ctx.Idler.State(), ctx.Idler.TMCFlags); bad {
			return c.fail(status.ErrTMCFailed, e)
		}
		if ctx.Idler.Disengaged() {
			ctx.LEDs.SetMode(c.slot, leds.Green, leds.Off)
			return c.finish()
		}
	}
	return false
}
