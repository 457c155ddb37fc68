// package hal declares the capability set the firmware core consumes.
// Production boards implement these against real peripherals, tests
// against the deterministic fakes in hal/sim.
package hal

// ADC samples a 10-bit analog channel on demand.
type ADC interface {
	ReadADC(channel uint8) uint16
}

// Clock is the monotonic millisecond counter. It is 16 bits wide and
// wraps roughly every 65 seconds; consumers compare durations with
// unsigned subtraction.
type Clock interface {
	Millis() uint16
}

// UART is the byte link to the printer. ReadByte must not block; it
// reports ok=false when no byte is pending.
type UART interface {
	ReadByte() (b byte, ok bool)
	WriteByte(b byte)
}

// StepMode selects the driver chopper mode.
type StepMode uint8

const (
	ModeNormal StepMode = iota
	ModeStealth
)

// Move is one entry of an axis queue. Steps is signed; feedrate and
// acceleration are in microsteps per second (squared).
type Move struct {
	Steps    int32
	Feedrate uint16
	Accel    uint16
}

// DriverFlags is the raw fault state of a stepper driver.
type DriverFlags uint8

const (
	FlagReset DriverFlags = 1 << iota
	FlagUndervoltage
	FlagShortToGround
	FlagOverTemperature
	FlagIoinMismatch
)

// Good reports that no fault is latched.
func (f DriverFlags) Good() bool {
	return f == 0
}

// AxisDriver is one motor channel: a driver chip plus the step
// generator consuming its move queue. Stepping happens in the
// background (interrupt or timer goroutine); the foreground observes
// the queue and the stall latch.
type AxisDriver interface {
	// Init powers the driver and verifies communication.
	Init() bool
	SetMode(mode StepMode)
	// Enqueue appends a move. It reports false when the queue is full.
	Enqueue(m Move) bool
	// Abort flushes queued moves. With keepCurrent the move in
	// flight finishes, otherwise it stops immediately.
	Abort(keepCurrent bool)
	QueueEmpty() bool
	// StallGuard reports the latched stall event; StallGuardReset
	// clears the latch.
	StallGuard() bool
	StallGuardReset()
	// Position is the accumulated step counter, updated as moves
	// execute. Used to measure axis length during homing.
	Position() int32
	ErrorFlags() DriverFlags
}

// Storage is the permanent store for the handful of bytes the unit
// keeps across power cycles.
type Storage interface {
	ReadByte(addr uint16) byte
	WriteByte(addr uint16, v byte)
}
