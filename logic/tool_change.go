package logic

import (
	"spoolworks.dev/modules"
	"spoolworks.dev/status"
)

type toolPhase uint8

const (
	toolIdle toolPhase = iota
	toolUnloading
	toolLoading
)

// ToolChange swaps the loaded filament: unload the current one if any,
// then load the requested slot all the way to the extruder gears. A
// change to the already loaded slot is a no-op.
type ToolChange struct {
	Base
	slot   uint8
	phase  toolPhase
	unload UnloadFilament
	load   LoadFilament
}

func (t *ToolChange) Reset(ctx *modules.Context, slot uint8) {
	t.slot = slot
	if slot == ctx.Globals.ActiveSlot() && ctx.FINDA.Pressed() {
		t.phase = toolIdle
		t.arm(status.OK)
		t.done = true
		return
	}
	t.arm(status.UnloadingFilament)
	if ctx.FINDA.Pressed() {
		t.phase = toolUnloading
		t.unload.Reset(ctx, 0)
		return
	}
	t.beginLoad(ctx)
}

func (t *ToolChange) beginLoad(ctx *modules.Context) {
	t.phase = toolLoading
	t.load.Reset(ctx, t.slot)
}

func (t *ToolChange) Step(ctx *modules.Context) bool {
	if t.done {
		return true
	}
	switch t.phase {
	case toolUnloading:
		if !t.unload.Step(ctx) {
			return false
		}
		if t.unload.Error() != status.ErrOK {
			return t.fail(t.unload.State(), t.unload.Error())
		}
		t.beginLoad(ctx)
	case toolLoading:
		if !t.load.Step(ctx) {
			return false
		}
		t.done = true
		t.progress = t.load.State()
		t.err = t.load.Error()
		return true
	}
	return false
}

// State reports the sub-command's progress while one runs; the
// unloading half is summarised as a single coarse code.
func (t *ToolChange) State() status.ProgressCode {
	if !t.done {
		switch t.phase {
		case toolUnloading:
			return status.UnloadingFilament
		case toolLoading:
			return t.load.State()
		}
	}
	return t.Base.State()
}

func (t *ToolChange) Error() status.ErrorCode {
	if !t.done {
		switch t.phase {
		case toolUnloading:
			return t.unload.Error()
		case toolLoading:
			return t.load.Error()
		}
	}
	return t.Base.Error()
}
