package logic

import (
	"spoolworks.dev/config"
	"spoolworks.dev/modules"
	"spoolworks.dev/status"
)

type unloadState uint8

const (
	unloadPulling unloadState = iota
	unloadExtra
	unloadOK
	unloadFailed
)

// UnloadToFinda pulls filament back until the FINDA releases, then an
// extra length parks the tip in the PTFE above the selector. The pull
// budget bounds the attempt; a FINDA still pressed when it drains
// means the filament is stuck.
type UnloadToFinda struct {
	state unloadState
}

// Reset starts the pull. The idler must already be engaged.
func (u *UnloadToFinda) Reset(ctx *modules.Context) {
	u.state = unloadPulling
	ctx.Motion.PlanMoveAxis(config.Pulley, config.UnloadToFinda, config.UnloadToFindaFeedrate, config.PulleyAccel)
}

func (u *UnloadToFinda) Step(ctx *modules.Context) bool {
	switch u.state {
	case unloadPulling:
		if !ctx.FINDA.Pressed() {
			ctx.Motion.AbortAxis(config.Pulley, false)
			ctx.Motion.PlanMoveAxis(config.Pulley, config.UnloadExtra, config.UnloadToFindaFeedrate, config.PulleyAccel)
			u.state = unloadExtra
		} else if ctx.Motion.QueueEmptyAxis(config.Pulley) {
			u.state = unloadFailed
		}
	case unloadExtra:
		if ctx.Motion.QueueEmptyAxis(config.Pulley) {
			u.state = unloadOK
		}
	case unloadOK, unloadFailed:
		return true
	}
	return false
}

func (u *UnloadToFinda) Succeeded() bool { return u.state == unloadOK }

func (u *UnloadToFinda) Progress() status.ProgressCode {
	if u.state == unloadExtra {
		return status.UnloadingToPulley
	}
	return status.UnloadingToFinda
}
