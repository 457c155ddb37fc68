package board

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"spoolworks.dev/config"
	"spoolworks.dev/leds"
)

// LEDStrip renders the logical LED state to the two 74HC595 shift
// registers behind the slot indicators: ten bits, green then red per
// slot.
type LEDStrip struct {
	data  gpio.PinOut
	clock gpio.PinOut
	latch gpio.PinOut
}

func OpenLEDStrip() (*LEDStrip, error) {
	s := &LEDStrip{
		data:  gpioreg.ByName("GPIO23"),
		clock: gpioreg.ByName("GPIO24"),
		latch: gpioreg.ByName("GPIO25"),
	}
	if s.data == nil || s.clock == nil || s.latch == nil {
		return nil, fmt.Errorf("board: LED pins not found")
	}
	return s, nil
}

// Render shifts the current on/off state out, blink phase resolved.
func (s *LEDStrip) Render(l *leds.LEDs) {
	s.latch.Out(gpio.Low)
	for slot := config.NumSlots - 1; slot >= 0; slot-- {
		for _, c := range [2]leds.Color{leds.Red, leds.Green} {
			bit := gpio.Low
			if l.Lit(uint8(slot), c) {
				bit = gpio.High
			}
			s.data.Out(bit)
			s.clock.Out(gpio.High)
			s.clock.Out(gpio.Low)
		}
	}
	s.latch.Out(gpio.High)
}
