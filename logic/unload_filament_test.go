package logic_test

import (
	"testing"

	"spoolworks.dev/globals"
	"spoolworks.dev/internal/simrig"
	"spoolworks.dev/leds"
	"spoolworks.dev/logic"
	"spoolworks.dev/status"
)

// loadSlot drives a complete successful load so unload tests start
// from a loaded machine.
func loadSlot(t *testing.T, r *simrig.Rig, slot uint8) {
	t.Helper()
	lf := &logic.LoadFilament{}
	loadCommonSetup(t, r, slot, lf)
	loadSuccessful(t, r, slot, lf)
}

func TestUnloadAfterLoadParks(t *testing.T) {
	r := simrig.New()
	loadSlot(t, r, 2)

	uf := &logic.UnloadFilament{}
	uf.Reset(r.Ctx, 0)
	if got := uf.State(); got != status.EngagingIdler {
		t.Fatalf("after reset: state %v, want engaging idler", got)
	}
	if !r.WhileState(uf, status.EngagingIdler, stepBudget) {
		t.Fatal("stuck engaging idler")
	}

	// The pull passes the FINDA partway through.
	ok := r.WhileCondition(uf, func(n int) bool {
		if n == 100 {
			r.SetFinda(false)
		}
		return uf.State() == status.UnloadingToFinda
	}, stepBudget)
	if !ok {
		t.Fatal("stuck unloading to FINDA")
	}

	for n := 0; n < stepBudget && !uf.Step(r.Ctx); n++ {
		r.Tick()
	}
	if got := uf.State(); got != status.OK {
		t.Fatalf("final state %v, want ok", got)
	}
	if got := uf.Error(); got != status.ErrOK {
		t.Fatalf("final error %v", got)
	}
	if got := r.Ctx.Globals.ActiveSlot(); got != globals.ParkedSlot {
		t.Fatalf("active slot %d, want parked", got)
	}
	if r.Ctx.FINDA.Pressed() {
		t.Fatal("FINDA still pressed after unload")
	}
	if !r.Ctx.Idler.Disengaged() {
		t.Fatal("idler engaged after unload")
	}
	if got := r.Ctx.LEDs.Get(2, leds.Green); got != leds.Off {
		t.Fatalf("green LED mode %d, want off", got)
	}
}

func TestUnloadNothingLoaded(t *testing.T) {
	r := simrig.New()
	if !r.EnsureActiveSlot(1) {
		t.Fatal("machine setup did not settle")
	}
	r.SetFinda(false)
	r.Tick()

	uf := &logic.UnloadFilament{}
	uf.Reset(r.Ctx, 0)
	if !uf.Step(r.Ctx) {
		t.Fatal("no-op unload not finished")
	}
	if got := uf.State(); got != status.OK {
		t.Fatalf("state %v, want ok", got)
	}
	if got := r.Ctx.Globals.ActiveSlot(); got != globals.ParkedSlot {
		t.Fatalf("active slot %d, want parked", got)
	}
}

func TestUnloadStuckFilamentRecovery(t *testing.T) {
	r := simrig.New()
	loadSlot(t, r, 1)

	uf := &logic.UnloadFilament{}
	uf.Reset(r.Ctx, 0)
	if !r.WhileState(uf, status.EngagingIdler, stepBudget) {
		t.Fatal("stuck engaging idler")
	}

	// The FINDA never releases: the whole pull budget drains.
	if !r.WhileState(uf, status.UnloadingToFinda, stepBudget) {
		t.Fatal("stuck unloading to FINDA")
	}
	if got := uf.State(); got != status.Err1DisengagingIdler {
		t.Fatalf("state %v, want err: disengaging idler", got)
	}
	if got := uf.Error(); got != status.FindaDidntRelease {
		t.Fatalf("error %v, want FINDA didn't release", got)
	}
	if !r.WhileState(uf, status.Err1DisengagingIdler, stepBudget) {
		t.Fatal("stuck disengaging in recovery")
	}
	if got := uf.State(); got != status.Err1WaitingForUser {
		t.Fatalf("state %v, want err: waiting for user", got)
	}

	// The user frees the filament and confirms.
	r.PressButton(0, func() {
		r.Tick()
		uf.Step(r.Ctx)
	})
	if got := uf.State(); got != status.Err1EngagingIdler {
		t.Fatalf("after button: state %v, want err: engaging idler", got)
	}
	if !r.WhileState(uf, status.Err1EngagingIdler, stepBudget) {
		t.Fatal("stuck re-engaging idler")
	}
	if got := uf.State(); got != status.Err1HelpingFilament {
		t.Fatalf("state %v, want err: helping filament", got)
	}

	// The assisted pull frees the tip.
	ok := r.WhileCondition(uf, func(n int) bool {
		if n == 50 {
			r.SetFinda(false)
		}
		return uf.State() == status.Err1HelpingFilament
	}, stepBudget)
	if !ok {
		t.Fatal("stuck helping filament")
	}
	if got := uf.Error(); got != status.ErrOK {
		t.Fatalf("error %v, want cleared", got)
	}

	for n := 0; n < stepBudget && !uf.Step(r.Ctx); n++ {
		r.Tick()
	}
	if got := uf.State(); got != status.OK {
		t.Fatalf("final state %v, want ok", got)
	}
	if got := r.Ctx.Globals.ActiveSlot(); got != globals.ParkedSlot {
		t.Fatalf("active slot %d, want parked", got)
	}
}
