package logic

import (
	"spoolworks.dev/config"
	"spoolworks.dev/leds"
	"spoolworks.dev/modules"
)

type bondState uint8

const (
	bondPushing bondState = iota
	bondOK
	bondFailed
)

// FeedToBondtech pushes filament from the FINDA through the bowden
// into the extruder gears. Success is the printer's filament sensor
// reporting the tip; the push length bounds the attempt.
type FeedToBondtech struct {
	state bondState
}

// Reset starts the push. The idler must already be engaged.
func (f *FeedToBondtech) Reset(ctx *modules.Context) {
	f.state = bondPushing
	ctx.LEDs.SetMode(ctx.Globals.ActiveSlot(), leds.Green, leds.Blink0)
	ctx.Motion.PlanMoveAxis(config.Pulley, config.FeedToBondtech, config.FeedToBondtechFeedrate, config.PulleyAccel)
}

func (f *FeedToBondtech) Step(ctx *modules.Context) bool {
	switch f.state {
	case bondPushing:
		if ctx.FSensor.Triggered() {
			ctx.Motion.AbortAxis(config.Pulley, false)
			f.state = bondOK
		} else if ctx.Motion.QueueEmptyAxis(config.Pulley) {
			f.state = bondFailed
		}
	case bondOK, bondFailed:
		return true
	}
	return false
}

func (f *FeedToBondtech) Succeeded() bool { return f.state == bondOK }
