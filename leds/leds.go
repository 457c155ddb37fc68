// package leds tracks the green/red indicator pair above each slot.
// The module owns the logical modes; a board driver renders On bits to
// the shift register.
package leds

import (
	"spoolworks.dev/config"
)

type Color uint8

const (
	Green Color = iota
	Red
)

type Mode uint8

const (
	Off Mode = iota
	On
	// Blink0 is lit during the first half of the blink period,
	// Blink1 during the second. Two LEDs on opposite phases
	// alternate.
	Blink0
	Blink1
)

type LEDs struct {
	modes [config.NumSlots][2]Mode
	phase bool
}

// SetMode sets one LED of a slot. Slot values out of range (the parked
// sentinel) are ignored.
func (l *LEDs) SetMode(slot uint8, c Color, m Mode) {
	if int(slot) < config.NumSlots {
		l.modes[slot][c] = m
	}
}

// Get returns the logical mode of one LED.
func (l *LEDs) Get(slot uint8, c Color) Mode {
	if int(slot) >= config.NumSlots {
		return Off
	}
	return l.modes[slot][c]
}

// SetAllOff darkens the whole strip.
func (l *LEDs) SetAllOff() {
	l.modes = [config.NumSlots][2]Mode{}
}

// Step recomputes the blink phase from the wrapping ms clock.
func (l *LEDs) Step(now uint16) {
	l.phase = (now/config.BlinkPeriodMs)%2 == 0
}

// Lit reports whether one LED is currently emitting light, blink phase
// included.
func (l *LEDs) Lit(slot uint8, c Color) bool {
	switch l.Get(slot, c) {
	case On:
		return true
	case Blink0:
		return l.phase
	case Blink1:
		return !l.phase
	}
	return false
}
