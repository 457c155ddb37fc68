// package sim provides deterministic in-memory implementations of the
// hal interfaces for tests. The clock advances only when told, the
// axis drivers consume a fixed number of steps per tick, and travel
// limits stand in for the physical end stops that raise stall events.
package sim

import (
	"bytes"

	"spoolworks.dev/hal"
)

// ADC is a bank of settable channels.
type ADC struct {
	vals [8]uint16
}

func (a *ADC) ReadADC(channel uint8) uint16 {
	return a.vals[channel]
}

// SetADC programs the raw value a channel reads.
func (a *ADC) SetADC(channel uint8, v uint16) {
	a.vals[channel] = v
}

// Clock is a manually advanced 16-bit millisecond counter.
type Clock struct {
	now uint16
}

func (c *Clock) Millis() uint16 { return c.now }

func (c *Clock) Advance(ms uint16) { c.now += ms }

// Storage is a flat in-memory EEPROM, erased to 0xff like the real
// part.
type Storage struct {
	mem  [64]byte
	init bool
}

func (s *Storage) erase() {
	for i := range s.mem {
		s.mem[i] = 0xff
	}
	s.init = true
}

func (s *Storage) ReadByte(addr uint16) byte {
	if !s.init {
		s.erase()
	}
	return s.mem[addr]
}

func (s *Storage) WriteByte(addr uint16, v byte) {
	if !s.init {
		s.erase()
	}
	s.mem[addr] = v
}

// UART is a loopback port: the test feeds request bytes in and reads
// the firmware's responses back out.
type UART struct {
	rx bytes.Buffer
	tx bytes.Buffer
}

func (u *UART) ReadByte() (byte, bool) {
	b, err := u.rx.ReadByte()
	return b, err == nil
}

func (u *UART) WriteByte(b byte) {
	u.tx.WriteByte(b)
}

// Feed queues bytes for the firmware to read.
func (u *UART) Feed(s string) {
	u.rx.WriteString(s)
}

// Drain returns and clears everything the firmware wrote.
func (u *UART) Drain() string {
	s := u.tx.String()
	u.tx.Reset()
	return s
}

// Driver is a simulated axis: a move queue consumed at StepsPerTick
// steps per Tick. When Limited, the position clamps to [Min, Max]; a
// clamped tick drops the current move and every move queued behind it
// and latches a stall, the way a blocked motor trips the stall guard.
type Driver struct {
	StepsPerTick int32
	Limited      bool
	Min, Max     int32
	// FailInit makes Init report a dead driver.
	FailInit bool

	pos   int32
	queue []hal.Move
	rem   int32
	stall bool
	flags hal.DriverFlags
	mode  hal.StepMode
}

func (d *Driver) Init() bool { return !d.FailInit }

func (d *Driver) SetMode(m hal.StepMode) { d.mode = m }

func (d *Driver) Mode() hal.StepMode { return d.mode }

func (d *Driver) Enqueue(m hal.Move) bool {
	d.queue = append(d.queue, m)
	return true
}

func (d *Driver) Abort(keepCurrent bool) {
	if keepCurrent && len(d.queue) > 0 {
		d.queue = d.queue[:1]
		return
	}
	d.queue = nil
	d.rem = 0
}

func (d *Driver) QueueEmpty() bool { return len(d.queue) == 0 }

func (d *Driver) StallGuard() bool { return d.stall }

func (d *Driver) StallGuardReset() { d.stall = false }

func (d *Driver) Position() int32 { return d.pos }

func (d *Driver) ErrorFlags() hal.DriverFlags { return d.flags }

// SetErrorFlags injects a driver fault.
func (d *Driver) SetErrorFlags(f hal.DriverFlags) { d.flags = f }

// SetPosition places the axis; tests use it for the pre-homing state.
func (d *Driver) SetPosition(pos int32) { d.pos = pos }

// Tick executes up to StepsPerTick steps of the current move.
func (d *Driver) Tick() {
	if len(d.queue) == 0 {
		return
	}
	if d.rem == 0 {
		d.rem = d.queue[0].Steps
		if d.rem < 0 {
			d.rem = -d.rem
		}
	}
	n := d.StepsPerTick
	if n == 0 {
		n = 10
	}
	if n > d.rem {
		n = d.rem
	}
	dir := int32(1)
	if d.queue[0].Steps < 0 {
		dir = -1
	}
	d.pos += dir * n
	d.rem -= n
	if d.Limited {
		clamped := false
		if d.pos > d.Max {
			d.pos = d.Max
			clamped = true
		} else if d.pos < d.Min {
			d.pos = d.Min
			clamped = true
		}
		if clamped {
			// The motor is pushing against the end stop.
			d.stall = true
			d.queue = d.queue[:0]
			d.rem = 0
			return
		}
	}
	if d.rem == 0 {
		d.queue = d.queue[1:]
	}
}
