package logic

import (
	"spoolworks.dev/config"
	"spoolworks.dev/leds"
	"spoolworks.dev/modules"
	"spoolworks.dev/status"
)

// helpTarget selects which sensor ends a user-assisted nudge.
type helpTarget uint8

const (
	helpFinda helpTarget = iota
	helpFSensor
)

// LoadFilament feeds the given slot's filament to the FINDA and on
// into the extruder gears. A feed that misses a sensor drops into the
// recovery sub-tree: the idler releases, the user reseats or pushes
// the filament and confirms with any button, and the command nudges
// the filament forward while watching the sensor. Success resumes the
// normal sequence with the error cleared; another miss loops back to
// waiting.
type LoadFilament struct {
	Base
	slot   uint8
	target helpTarget
	feed   FeedToFinda
	bond   FeedToBondtech
}

func (l *LoadFilament) Reset(ctx *modules.Context, slot uint8) {
	l.slot = slot
	ctx.Globals.SetActiveSlot(slot)
	if ctx.Selector.Ready() && ctx.Selector.CurrentSlot == slot {
		l.startFeed(ctx)
		return
	}
	l.arm(status.SelectingFilamentSlot)
	ctx.Selector.MoveToSlot(ctx.Motion, ctx.Globals.MotorsStealth(), slot)
}

func (l *LoadFilament) startFeed(ctx *modules.Context) {
	l.arm(status.EngagingIdler)
	l.feed.Reset(ctx, true)
}

func (l *LoadFilament) Step(ctx *modules.Context) bool {
	if l.done {
		return true
	}
	switch l.progress {
	case status.SelectingFilamentSlot:
		if e, bad := unitFailure(ctx.Selector.State(), ctx.Selector.TMCFlags); bad {
			return l.fail(l.progress, e)
		}
		if ctx.Selector.Ready() {
			l.startFeed(ctx)
		}
	case status.EngagingIdler, status.FeedingToFinda:
		if !l.feed.Step(ctx) {
			l.progress = l.feed.Progress()
			return false
		}
		if l.feed.Succeeded() {
			l.err = status.ErrOK
			l.progress = status.FeedingToBondtech
			l.bond.Reset(ctx)
			return false
		}
		switch e := l.feed.Err(); e {
		case status.FindaDidntTrigger:
			l.enterRecovery(ctx, helpFinda, e)
		case status.StalledPulley:
			return l.fail(l.progress, e)
		case status.HomingFailed:
			return l.fail(status.ErrInternal, e)
		default:
			return l.fail(status.ErrTMCFailed, e)
		}
	case status.FeedingToBondtech:
		if !l.bond.Step(ctx) {
			return false
		}
		if l.bond.Succeeded() {
			l.progress = status.DisengagingIdler
			ctx.Idler.Disengage(ctx.Motion, ctx.Globals.MotorsStealth())
			return false
		}
		l.enterRecovery(ctx, helpFSensor, status.FSensorDidntTrigger)
	case status.Err1DisengagingIdler:
		if e, bad := unitFailure(ctx.Idler.State(), ctx.Idler.TMCFlags); bad {
			return l.fail(status.ErrTMCFailed, e)
		}
		if ctx.Idler.Disengaged() {
			l.progress = status.Err1WaitingForUser
		}
	case status.Err1WaitingForUser:
		if i, ok := ctx.Buttons.AnyPressed(); ok {
			ctx.Buttons.Clear(i)
			l.progress = status.Err1EngagingIdler
			ctx.Idler.Engage(ctx.Motion, ctx.Globals.MotorsStealth(), l.slot)
		}
	case status.Err1EngagingIdler:
		if e, bad := unitFailure(ctx.Idler.State(), ctx.Idler.TMCFlags); bad {
			return l.fail(status.ErrTMCFailed, e)
		}
		if ctx.Idler.Engaged() {
			l.progress = status.Err1HelpingFilament
			ctx.Motion.PlanMoveAxis(config.Pulley, config.HelpPushSteps, config.HelpFeedrate, config.PulleyAccel)
		}
	case status.Err1HelpingFilament:
		triggered := ctx.FINDA.Pressed()
		if l.target == helpFSensor {
			triggered = ctx.FSensor.Triggered()
		}
		if triggered {
			ctx.Motion.AbortAxis(config.Pulley, false)
			l.err = status.ErrOK
			if l.target == helpFinda {
				l.progress = status.FeedingToBondtech
				l.bond.Reset(ctx)
			} else {
				l.progress = status.DisengagingIdler
				ctx.Idler.Disengage(ctx.Motion, ctx.Globals.MotorsStealth())
			}
			return false
		}
		if ctx.Motion.QueueEmptyAxis(config.Pulley) {
			// Still nothing; release the filament and wait for the
			// user again. The error stays latched.
			l.progress = status.Err1DisengagingIdler
			ctx.Idler.Disengage(ctx.Motion, ctx.Globals.MotorsStealth())
		}
	case status.DisengagingIdler:
		if e, bad := unitFailure(ctx.Idler.State(), ctx.Idler.TMCFlags); bad {
			return l.fail(status.ErrTMCFailed, e)
		}
		if ctx.Idler.Disengaged() {
			ctx.LEDs.SetMode(l.slot, leds.Green, leds.On)
			ctx.LEDs.SetMode(l.slot, leds.Red, leds.Off)
			return l.finish()
		}
	}
	return false
}

// enterRecovery switches into the user-assisted sub-tree.
func (l *LoadFilament) enterRecovery(ctx *modules.Context, target helpTarget, e status.ErrorCode) {
	l.target = target
	l.err = e
	l.progress = status.Err1DisengagingIdler
	ctx.Idler.Disengage(ctx.Motion, ctx.Globals.MotorsStealth())
	ctx.LEDs.SetMode(l.slot, leds.Green, leds.Off)
	ctx.LEDs.SetMode(l.slot, leds.Red, leds.Blink0)
}
