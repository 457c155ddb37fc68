// package board is the production hal implementation for the
// Raspberry Pi based control board: buttons and FINDA behind an
// MCP3008 ADC on SPI, step/dir/enable lines on GPIO with a software
// step generator per axis, driver DIAG lines for stall guard, and a
// file standing in for the EEPROM.
package board

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"spoolworks.dev/hal"
)

// Pin assignments.
var pinNames = struct {
	step, dir, diag [3]string
	enable          string
}{
	step:   [3]string{"GPIO12", "GPIO13", "GPIO18"},
	dir:    [3]string{"GPIO5", "GPIO6", "GPIO7"},
	diag:   [3]string{"GPIO16", "GPIO17", "GPIO4"},
	enable: "GPIO22",
}

type Board struct {
	ADC     *MCP3008
	Clock   *Clock
	Storage *FileStorage
	Axes    [3]*Axis

	spiPort spi.PortCloser
	enable  gpio.PinOut
}

// Open initialises the peripherals. The returned board's axes plug
// straight into the motion planner.
func Open(storagePath string) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	b := &Board{Clock: NewClock()}

	port, err := spireg.Open("")
	if err != nil {
		return nil, fmt.Errorf("board: open SPI: %w", err)
	}
	b.spiPort = port
	conn, err := port.Connect(physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("board: connect ADC: %w", err)
	}
	b.ADC = &MCP3008{conn: conn}

	b.Storage, err = OpenFileStorage(storagePath)
	if err != nil {
		port.Close()
		return nil, err
	}

	b.enable = gpioreg.ByName(pinNames.enable)
	if b.enable == nil {
		port.Close()
		return nil, errors.New("board: enable pin not found")
	}
	for i := range b.Axes {
		a, err := newAxis(pinNames.step[i], pinNames.dir[i], pinNames.diag[i], b.enable)
		if err != nil {
			port.Close()
			return nil, err
		}
		b.Axes[i] = a
	}
	return b, nil
}

func (b *Board) Close() error {
	for _, a := range b.Axes {
		if a != nil {
			a.close()
		}
	}
	return b.spiPort.Close()
}

// MCP3008 is the 8-channel 10-bit ADC carrying the button ladder and
// the FINDA.
type MCP3008 struct {
	mu   sync.Mutex
	conn spi.Conn
}

func (m *MCP3008) ReadADC(channel uint8) uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Single-ended conversion: start bit, SGL|channel, then two
	// clock bytes for the result.
	tx := [3]byte{0x01, 0x80 | channel<<4, 0x00}
	var rx [3]byte
	if err := m.conn.Tx(tx[:], rx[:]); err != nil {
		return 0
	}
	return uint16(rx[1]&0x03)<<8 | uint16(rx[2])
}

// Clock is the wrapping 16-bit millisecond counter, anchored at boot.
type Clock struct {
	start time.Time
}

func NewClock() *Clock {
	return &Clock{start: time.Now()}
}

func (c *Clock) Millis() uint16 {
	return uint16(time.Since(c.start) / time.Millisecond)
}

// FileStorage emulates the EEPROM with a small file, synced on every
// write the way the real part commits each byte.
type FileStorage struct {
	mu   sync.Mutex
	f    *os.File
	data [64]byte
}

func OpenFileStorage(path string) (*FileStorage, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("board: open storage: %w", err)
	}
	s := &FileStorage{f: f}
	for i := range s.data {
		s.data[i] = 0xff
	}
	// A short or fresh file keeps the erased default.
	f.ReadAt(s.data[:], 0)
	return s, nil
}

func (s *FileStorage) ReadByte(addr uint16) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(addr) >= len(s.data) {
		return 0xff
	}
	return s.data[addr]
}

func (s *FileStorage) WriteByte(addr uint16, v byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(addr) >= len(s.data) {
		return
	}
	s.data[addr] = v
	s.f.WriteAt(s.data[:], 0)
	s.f.Sync()
}

// Axis is one motor channel: a queue drained by a step-pulse goroutine
// standing in for the firmware's stepper timer interrupt, plus the
// driver's DIAG line as the stall latch.
type Axis struct {
	step gpio.PinOut
	dir  gpio.PinOut
	diag gpio.PinIn

	mu      sync.Mutex
	queue   []hal.Move
	pos     int32
	abort   bool
	stall   bool
	flags   hal.DriverFlags
	mode    hal.StepMode
	wake    chan struct{}
	done    chan struct{}
	started bool
}

func newAxis(stepName, dirName, diagName string, enable gpio.PinOut) (*Axis, error) {
	a := &Axis{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	if a.step = gpioreg.ByName(stepName); a.step == nil {
		return nil, fmt.Errorf("board: pin %s not found", stepName)
	}
	if a.dir = gpioreg.ByName(dirName); a.dir == nil {
		return nil, fmt.Errorf("board: pin %s not found", dirName)
	}
	if a.diag = gpioreg.ByName(diagName); a.diag == nil {
		return nil, fmt.Errorf("board: pin %s not found", diagName)
	}
	if err := a.diag.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return nil, fmt.Errorf("board: DIAG %s: %w", diagName, err)
	}
	go a.watchDiag()
	go a.run()
	return a, nil
}

func (a *Axis) Init() bool { return true }

func (a *Axis) SetMode(m hal.StepMode) {
	a.mu.Lock()
	a.mode = m
	a.mu.Unlock()
}

// SetErrorFlags lets the register driver publish its fault state.
func (a *Axis) SetErrorFlags(f hal.DriverFlags) {
	a.mu.Lock()
	a.flags = f
	a.mu.Unlock()
}

func (a *Axis) Enqueue(m hal.Move) bool {
	a.mu.Lock()
	a.queue = append(a.queue, m)
	a.mu.Unlock()
	select {
	case a.wake <- struct{}{}:
	default:
	}
	return true
}

func (a *Axis) Abort(keepCurrent bool) {
	a.mu.Lock()
	if keepCurrent && len(a.queue) > 0 {
		a.queue = a.queue[:1]
	} else {
		a.queue = nil
		a.abort = true
	}
	a.mu.Unlock()
}

func (a *Axis) QueueEmpty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue) == 0
}

func (a *Axis) StallGuard() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stall
}

func (a *Axis) StallGuardReset() {
	a.mu.Lock()
	a.stall = false
	a.mu.Unlock()
}

func (a *Axis) Position() int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pos
}

func (a *Axis) ErrorFlags() hal.DriverFlags {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flags
}

func (a *Axis) close() {
	close(a.done)
}

// watchDiag latches DIAG rising edges as stalls.
func (a *Axis) watchDiag() {
	for {
		select {
		case <-a.done:
			return
		default:
		}
		if a.diag.WaitForEdge(100 * time.Millisecond) {
			a.mu.Lock()
			a.stall = true
			a.mu.Unlock()
		}
	}
}

// run drains the queue, emitting step pulses at the move's feedrate.
func (a *Axis) run() {
	for {
		a.mu.Lock()
		if len(a.queue) == 0 {
			a.mu.Unlock()
			select {
			case <-a.wake:
				continue
			case <-a.done:
				return
			}
		}
		m := a.queue[0]
		a.abort = false
		a.mu.Unlock()

		steps := m.Steps
		level := gpio.High
		if steps < 0 {
			steps = -steps
			level = gpio.Low
		}
		a.dir.Out(level)
		period := time.Second / time.Duration(max(int(m.Feedrate), 1))
		for s := int32(0); s < steps; s++ {
			a.step.Out(gpio.High)
			time.Sleep(period / 2)
			a.step.Out(gpio.Low)
			time.Sleep(period / 2)
			a.mu.Lock()
			if m.Steps < 0 {
				a.pos--
			} else {
				a.pos++
			}
			stop := a.abort
			a.mu.Unlock()
			if stop {
				break
			}
		}
		a.mu.Lock()
		if len(a.queue) > 0 {
			a.queue = a.queue[1:]
		}
		a.mu.Unlock()
	}
}
