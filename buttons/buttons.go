// package buttons decodes the three front panel buttons from their
// shared ADC channel and debounces each one through a small state
// machine.
package buttons

import (
	"spoolworks.dev/config"
	"spoolworks.dev/hal"
)

// Count of physical buttons.
const Count = 3

// NoButton is the sample value when no window matches.
const NoButton = -1

type state uint8

const (
	waiting state = iota
	detected
	waitForRelease
	update
)

type button struct {
	st         state
	lastChange uint16
	tmp        bool
	pressed    bool
}

// step runs one debounce transition for a single sample.
func (b *button) step(now uint16, press bool) {
	switch b.st {
	case waiting:
		if press {
			b.st = detected
			b.lastChange = now
			b.tmp = press
		}
	case detected:
		if b.tmp == press {
			if now-b.lastChange > config.DebounceMs {
				b.st = waitForRelease
			}
		} else {
			b.st = waiting
		}
	case waitForRelease:
		if !press {
			b.st = update
		}
	case update:
		b.pressed = b.tmp
		b.st = waiting
		b.lastChange = now
		b.tmp = false
	default:
		b.st = waiting
		b.lastChange = now
		b.tmp = false
		b.pressed = false
	}
}

// Buttons is the debounced view of the panel. A press latches after a
// full press-and-release cycle and stays set until consumed with Clear.
type Buttons struct {
	btns [Count]button
}

// Sample decodes the raw ADC level into a button index, or NoButton.
// The resistor ladder puts button 0 near ground, 1 near 344 and 2 near
// 516; concurrent presses are not decodable and read as NoButton.
func Sample(adc hal.ADC) int {
	raw := adc.ReadADC(0)
	switch {
	case raw < 10:
		return 0
	case raw > 320 && raw < 360:
		return 1
	case raw > 500 && raw < 530:
		return 2
	}
	return NoButton
}

// Step samples the ADC once and advances all three debouncers.
func (bs *Buttons) Step(now uint16, adc hal.ADC) {
	cur := Sample(adc)
	for i := range bs.btns {
		bs.btns[i].step(now, i == cur)
	}
}

// Pressed reports the latched state of button i.
func (bs *Buttons) Pressed(i uint8) bool {
	return int(i) < Count && bs.btns[i].pressed
}

// AnyPressed returns the lowest latched button.
func (bs *Buttons) AnyPressed() (uint8, bool) {
	for i := range bs.btns {
		if bs.btns[i].pressed {
			return uint8(i), true
		}
	}
	return 0, false
}

// Clear consumes a latched press.
func (bs *Buttons) Clear(i uint8) {
	if int(i) < Count {
		bs.btns[i].pressed = false
	}
}

// ClearAll drops every latched press.
func (bs *Buttons) ClearAll() {
	for i := range bs.btns {
		bs.btns[i].pressed = false
	}
}

// Push injects a synthetic press, bypassing the debouncer. Used by the
// B request so the host can drive error recovery.
func (bs *Buttons) Push(i uint8) {
	if int(i) < Count {
		bs.btns[i].pressed = true
	}
}
