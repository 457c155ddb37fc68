package logic

import (
	"spoolworks.dev/modules"
	"spoolworks.dev/status"
)

// Axes selectable by the home request parameter.
const (
	HomeSelector = 0
	HomeIdler    = 1
	HomeAll      = 2
)

type homePhase uint8

const (
	homeIdlerPass homePhase = iota
	homeSelectorPass
)

// Home re-runs the stall-guard homing procedure on the selected axes.
// The idler homes before the selector so a gripped filament cannot
// block the carriage. Both units end parked.
type Home struct {
	Base
	which uint8
	phase homePhase
}

func (h *Home) Reset(ctx *modules.Context, which uint8) {
	if which > HomeAll {
		which = HomeAll
	}
	h.which = which
	h.arm(status.Homing)
	if which == HomeSelector {
		h.phase = homeSelectorPass
		ctx.Selector.Home(ctx.Motion)
		return
	}
	h.phase = homeIdlerPass
	ctx.Idler.Home(ctx.Motion)
}

func (h *Home) Step(ctx *modules.Context) bool {
	if h.done {
		return true
	}
	switch h.phase {
	case homeIdlerPass:
		if e, bad := unitFailure(ctx.Idler.State(), ctx.Idler.TMCFlags); bad {
			return h.fail(status.Homing, e)
		}
		if !ctx.Idler.Ready() {
			return false
		}
		if h.which == HomeIdler {
			return h.finish()
		}
		h.phase = homeSelectorPass
		ctx.Selector.Home(ctx.Motion)
	case homeSelectorPass:
		if e, bad := unitFailure(ctx.Selector.State(), ctx.Selector.TMCFlags); bad {
			return h.fail(status.Homing, e)
		}
		if ctx.Selector.Ready() {
			return h.finish()
		}
	}
	return false
}
