package logic

import (
	"spoolworks.dev/config"
	"spoolworks.dev/leds"
	"spoolworks.dev/modules"
	"spoolworks.dev/status"
)

type feedState uint8

const (
	feedEngaging feedState = iota
	feedPushing
	feedOK
	feedFailed
)

// FeedToFinda pushes the active slot's filament forward until the
// FINDA detects the tip. The limited form bounds the push to the short
// distance between pulley and FINDA and lets a button press interrupt
// it; the unlimited form spans the whole bowden. On success the idler
// stays engaged so a follow-up feed can continue immediately.
type FeedToFinda struct {
	state   feedState
	limited bool
	err     status.ErrorCode
}

func (f *FeedToFinda) Reset(ctx *modules.Context, limited bool) {
	f.state = feedEngaging
	f.limited = limited
	f.err = status.ErrOK
	ctx.Idler.Engage(ctx.Motion, ctx.Globals.MotorsStealth(), ctx.Globals.ActiveSlot())
}

func (f *FeedToFinda) Step(ctx *modules.Context) bool {
	switch f.state {
	case feedEngaging:
		if e, bad := unitFailure(ctx.Idler.State(), ctx.Idler.TMCFlags); bad {
			f.err = e
			f.state = feedFailed
			return false
		}
		if ctx.Idler.Engaged() {
			f.state = feedPushing
			ctx.LEDs.SetMode(ctx.Globals.ActiveSlot(), leds.Green, leds.Blink0)
			steps := int32(config.FeedToFindaUnlimited)
			if f.limited {
				steps = config.FeedToFindaLimited
			}
			ctx.Motion.PlanMoveAxis(config.Pulley, steps, config.FeedToFindaFeedrate, config.PulleyAccel)
		}
	case feedPushing:
		if ctx.FINDA.Pressed() {
			// Tip detected; the rest of the push is not needed.
			ctx.Motion.AbortAxis(config.Pulley, false)
			f.state = feedOK
			return false
		}
		if ctx.Motion.StallGuard(config.Pulley) {
			// The pulley lost steps; the filament is jammed.
			ctx.Motion.StallGuardReset(config.Pulley)
			ctx.Motion.AbortAxis(config.Pulley, false)
			f.err = status.StalledPulley
			f.state = feedFailed
			return false
		}
		interrupted := false
		if f.limited {
			if i, ok := ctx.Buttons.AnyPressed(); ok {
				ctx.Buttons.Clear(i)
				interrupted = true
			}
		}
		if interrupted || ctx.Motion.QueueEmptyAxis(config.Pulley) {
			ctx.Motion.AbortAxis(config.Pulley, false)
			f.err = status.FindaDidntTrigger
			f.state = feedFailed
		}
	case feedOK, feedFailed:
		return true
	}
	return false
}

func (f *FeedToFinda) Succeeded() bool { return f.state == feedOK }

func (f *FeedToFinda) Err() status.ErrorCode { return f.err }

// Progress maps the internal state to the wire progress code.
func (f *FeedToFinda) Progress() status.ProgressCode {
	if f.state == feedEngaging {
		return status.EngagingIdler
	}
	return status.FeedingToFinda
}
