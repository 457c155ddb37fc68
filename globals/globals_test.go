package globals

import (
	"testing"

	"spoolworks.dev/hal/sim"
)

func TestDefaults(t *testing.T) {
	g := New(new(sim.Storage))
	if got := g.ActiveSlot(); got != ParkedSlot {
		t.Errorf("active slot: got %d, want parked", got)
	}
	if g.MotorsStealth() {
		t.Error("stealth defaulted on")
	}
	if got := g.FilamentType(0); got != 0 {
		t.Errorf("filament type: got %d, want 0", got)
	}
}

func TestPersistence(t *testing.T) {
	store := new(sim.Storage)
	g := New(store)
	g.SetActiveSlot(3)
	g.SetMotorsStealth(true)
	g.SetFilamentType(1, 2)

	// A reboot reloads everything from storage.
	g2 := New(store)
	if got := g2.ActiveSlot(); got != 3 {
		t.Errorf("active slot: got %d, want 3", got)
	}
	if !g2.MotorsStealth() {
		t.Error("stealth flag lost")
	}
	if got := g2.FilamentType(1); got != 2 {
		t.Errorf("filament type: got %d, want 2", got)
	}
	if got := g2.FilamentType(0); got != 0 {
		t.Errorf("untouched type: got %d, want 0", got)
	}
}

func TestOutOfRange(t *testing.T) {
	g := New(new(sim.Storage))
	g.SetActiveSlot(9)
	if got := g.ActiveSlot(); got != ParkedSlot {
		t.Errorf("active slot: got %d, want clamped to parked", got)
	}
	g.SetFilamentType(7, 1)
	if got := g.FilamentType(7); got != 0 {
		t.Errorf("type of bad slot: got %d, want 0", got)
	}
}
