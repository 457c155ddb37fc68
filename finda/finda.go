// package finda reads the filament presence switch at the selector
// output. The switch shares the ADC with the buttons but has its own
// channel; a hysteresis pair debounces it.
package finda

import (
	"spoolworks.dev/config"
	"spoolworks.dev/hal"
)

const channel = 1

type FINDA struct {
	pressed bool
}

// Step samples the switch once. The state only changes once the raw
// level crosses the opposite threshold, so chatter around either
// threshold is absorbed.
func (f *FINDA) Step(adc hal.ADC) {
	raw := adc.ReadADC(channel)
	switch {
	case raw >= config.FindaOnThreshold:
		f.pressed = true
	case raw <= config.FindaOffThreshold:
		f.pressed = false
	}
}

// Pressed reports filament present at the selector output.
func (f *FINDA) Pressed() bool { return f.pressed }
