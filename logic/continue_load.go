package logic

import (
	"spoolworks.dev/globals"
	"spoolworks.dev/leds"
	"spoolworks.dev/modules"
	"spoolworks.dev/status"
)

// ContinueLoad finishes a load whose filament already sits at the
// FINDA: push on into the extruder gears. The printer issues it after
// resolving a problem on its side of the bowden.
type ContinueLoad struct {
	Base
	slot uint8
	bond FeedToBondtech
}

func (c *ContinueLoad) Reset(ctx *modules.Context, param uint8) {
	c.slot = ctx.Globals.ActiveSlot()
	if c.slot == globals.ParkedSlot || !ctx.FINDA.Pressed() {
		// Nothing staged at the FINDA; there is nothing to continue.
		c.arm(status.OK)
		c.done = true
		return
	}
	c.arm(status.EngagingIdler)
	ctx.Idler.Engage(ctx.Motion, ctx.Globals.MotorsStealth(), c.slot)
}

func (c *ContinueLoad) Step(ctx *modules.Context) bool {
	if c.done {
		return true
	}
	switch c.progress {
	case status.EngagingIdler:
		if e, bad := unitFailure(ctx.Idler.State(), ctx.Idler.TMCFlags); bad {
			return c.fail(status.ErrTMCFailed, e)
		}
		if ctx.Idler.Engaged() {
			c.progress = status.FeedingToBondtech
			c.bond.Reset(ctx)
		}
	case status.FeedingToBondtech:
		if !c.bond.Step(ctx) {
			return false
		}
		if !c.bond.Succeeded() {
			return c.fail(c.progress, status.FSensorDidntTrigger)
		}
		c.progress = status.DisengagingIdler
		ctx.Idler.Disengage(ctx.Motion, ctx.Globals.MotorsStealth())
	case status.DisengagingIdler:
		if e, bad := unitFailure(ctx.Idler.State(), ctx.Idler.TMCFlags); bad {
			return c.fail(status.ErrTMCFailed, e)
		}
		if ctx.Idler.Disengaged() {
			ctx.LEDs.SetMode(c.slot, leds.Green, leds.On)
			return c.finish()
		}
	}
	return false
}
