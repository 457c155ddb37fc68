package modules_test

import (
	"testing"

	"spoolworks.dev/hal/sim"
	"spoolworks.dev/modules"
)

func TestStepAdvancesSensors(t *testing.T) {
	adc := new(sim.ADC)
	clock := new(sim.Clock)
	ctx := modules.New(clock, adc, new(sim.Storage),
		&sim.Driver{StepsPerTick: 10},
		&sim.Driver{StepsPerTick: 10, Limited: true, Max: 1600},
		&sim.Driver{StepsPerTick: 10, Limited: true, Max: 1400})

	adc.SetADC(0, 1023)
	adc.SetADC(1, 1023)
	clock.Advance(1)
	ctx.Step()
	if !ctx.FINDA.Pressed() {
		t.Fatal("FINDA sample not taken")
	}
	adc.SetADC(1, 0)
	ctx.Step()
	if ctx.FINDA.Pressed() {
		t.Fatal("FINDA sample not refreshed")
	}
}

func TestStepMovesUnits(t *testing.T) {
	adc := new(sim.ADC)
	clock := new(sim.Clock)
	idlerDrv := &sim.Driver{StepsPerTick: 10, Limited: true, Max: 1400}
	ctx := modules.New(clock, adc, new(sim.Storage),
		&sim.Driver{StepsPerTick: 10},
		&sim.Driver{StepsPerTick: 10, Limited: true, Max: 1600},
		idlerDrv)
	adc.SetADC(0, 1023)

	ctx.Idler.Disengage(ctx.Motion, false)
	for n := 0; n < 2000 && !ctx.Idler.Ready(); n++ {
		clock.Advance(1)
		idlerDrv.Tick()
		ctx.Step()
	}
	if !ctx.Idler.Disengaged() {
		t.Fatal("idler did not settle through Context.Step")
	}
	if !ctx.Idler.HomingValid {
		t.Fatal("first move did not home")
	}
}
