package finda

import (
	"testing"

	"spoolworks.dev/hal/sim"
)

func TestHysteresis(t *testing.T) {
	f := new(FINDA)
	adc := new(sim.ADC)

	step := func(raw uint16) bool {
		adc.SetADC(1, raw)
		f.Step(adc)
		return f.Pressed()
	}

	if step(0) {
		t.Fatal("pressed at zero")
	}
	// Levels between the thresholds keep the previous state.
	if step(500) {
		t.Fatal("mid level turned the switch on")
	}
	if !step(700) {
		t.Fatal("high level did not turn the switch on")
	}
	if !step(500) {
		t.Fatal("mid level turned the switch off")
	}
	if step(100) {
		t.Fatal("low level did not turn the switch off")
	}
}
