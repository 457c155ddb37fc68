package buttons

import (
	"testing"

	"spoolworks.dev/config"
	"spoolworks.dev/hal/sim"
)

func TestSampleWindows(t *testing.T) {
	tests := []struct {
		raw  uint16
		want int
	}{
		{0, 0},
		{9, 0},
		{10, NoButton},
		{319, NoButton},
		{321, 1},
		{344, 1},
		{359, 1},
		{360, NoButton},
		{501, 2},
		{516, 2},
		{529, 2},
		{530, NoButton},
		{1023, NoButton},
	}
	adc := new(sim.ADC)
	for _, test := range tests {
		adc.SetADC(0, test.raw)
		if got := Sample(adc); got != test.want {
			t.Errorf("raw %d: got %d, want %d", test.raw, got, test.want)
		}
	}
}

func press(bs *Buttons, adc *sim.ADC, clock *sim.Clock, raw uint16, holdMs int) {
	adc.SetADC(0, raw)
	for n := 0; n < holdMs; n++ {
		clock.Advance(1)
		bs.Step(clock.Millis(), adc)
	}
	adc.SetADC(0, 1023)
	for n := 0; n < 3; n++ {
		clock.Advance(1)
		bs.Step(clock.Millis(), adc)
	}
}

func TestDebounceLatch(t *testing.T) {
	bs := new(Buttons)
	adc := new(sim.ADC)
	clock := new(sim.Clock)
	adc.SetADC(0, 1023)

	// A stable press longer than the window latches after release.
	press(bs, adc, clock, 344, config.DebounceMs+5)
	if !bs.Pressed(1) {
		t.Fatal("stable press did not latch")
	}
	if bs.Pressed(0) || bs.Pressed(2) {
		t.Fatal("wrong button latched")
	}
	bs.Clear(1)
	if bs.Pressed(1) {
		t.Fatal("Clear did not consume the latch")
	}
}

func TestDebounceRejectsGlitch(t *testing.T) {
	bs := new(Buttons)
	adc := new(sim.ADC)
	clock := new(sim.Clock)
	adc.SetADC(0, 1023)

	// A press shorter than the debounce window never latches.
	press(bs, adc, clock, 5, config.DebounceMs/2)
	if bs.Pressed(0) {
		t.Fatal("glitch latched")
	}
}

func TestAnyPressedAndSynthetic(t *testing.T) {
	bs := new(Buttons)
	if _, ok := bs.AnyPressed(); ok {
		t.Fatal("fresh state reports a press")
	}
	bs.Push(2)
	i, ok := bs.AnyPressed()
	if !ok || i != 2 {
		t.Fatalf("got (%d, %v), want (2, true)", i, ok)
	}
	bs.ClearAll()
	if _, ok := bs.AnyPressed(); ok {
		t.Fatal("ClearAll left a latch")
	}
}
