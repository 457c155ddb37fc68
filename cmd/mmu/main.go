// command mmu runs the multi-material unit firmware on the control
// board: it wires the board hal, the stepper register drivers and the
// printer UART into the cooperative main loop.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tarm/serial"

	"spoolworks.dev/config"
	"spoolworks.dev/driver/tmc2209"
	"spoolworks.dev/hal"
	"spoolworks.dev/hal/board"
	"spoolworks.dev/idle"
	"spoolworks.dev/modules"
	"spoolworks.dev/status"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		os.Exit(2)
	}
}

func run() error {
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	printerDev := flag.String("printer", "", "printer serial device (default: autodetect)")
	driverDev := flag.String("drivers", "/dev/ttyAMA1", "stepper driver UART")
	storagePath := flag.String("storage", "/var/lib/mmu/eeprom", "persistent state file")
	flag.Parse()

	log.Printf("mmu: firmware %d.%d.%d starting", config.VersionMajor, config.VersionMinor, config.VersionRevision)

	b, err := board.Open(*storagePath)
	if err != nil {
		return err
	}
	defer b.Close()

	printer, err := openPrinterPort(*printerDev)
	if err != nil {
		return err
	}
	uart := newUART(printer)

	ctx := modules.New(b.Clock, b.ADC, b.Storage, b.Axes[0], b.Axes[1], b.Axes[2])
	mode := idle.New()

	strip, err := board.OpenLEDStrip()
	if err != nil {
		return err
	}

	drivers, err := setupDrivers(*driverDev)
	if err != nil {
		// The machine can still answer queries; the panic latch
		// reports the fault to Q requests and rejects motion
		// commands.
		log.Printf("mmu: driver setup: %v", err)
		mode.Panic(ctx, status.TMCIoinMismatch)
	} else {
		go pollDriverFaults(drivers, b)
	}

	// The cooperative loop. One iteration a millisecond matches the
	// debounce and blink timing assumptions.
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	n := 0
	for range tick.C {
		ctx.Step()
		mode.Step(ctx, uart)
		// The strip only needs refreshing at blink granularity.
		if n++; n%32 == 0 {
			strip.Render(ctx.LEDs)
		}
	}
	return nil
}

// openPrinterPort opens the UART to the printer, falling back through
// the usual device names.
func openPrinterPort(dev string) (*serial.Port, error) {
	devices := []string{dev}
	if dev == "" {
		devices = []string{"/dev/ttyAMA0", "/dev/ttyUSB0"}
	}
	var firstErr error
	for _, d := range devices {
		p, err := serial.OpenPort(&serial.Config{Name: d, Baud: 115200, ReadTimeout: time.Millisecond})
		if err == nil {
			return p, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// setupDrivers configures the three stepper drivers on their shared
// bus and arms stall detection.
func setupDrivers(dev string) ([3]*tmc2209.Device, error) {
	var drivers [3]*tmc2209.Device
	bus, err := serial.OpenPort(&serial.Config{Name: dev, Baud: 115200, ReadTimeout: 20 * time.Millisecond})
	if err != nil {
		return drivers, fmt.Errorf("driver bus: %w", err)
	}
	currents := [3]uint8{16, 10, 12}
	for i := range drivers {
		d := &tmc2209.Device{Bus: bus, Addr: uint8(i), Run: currents[i], Hold: currents[i] / 2}
		if err := d.SetupSharedUART(); err != nil {
			return drivers, err
		}
		drivers[i] = d
	}
	for _, d := range drivers {
		if err := d.Configure(); err != nil {
			return drivers, err
		}
		if err := d.SetStallThreshold(100); err != nil {
			return drivers, err
		}
		if err := d.SetMinimumStallVelocity(200); err != nil {
			return drivers, err
		}
	}
	return drivers, nil
}

// pollDriverFaults mirrors the register-level fault state into the
// axes the planner watches. The poll is slow; faults latch in GSTAT
// until cleared so nothing is missed.
func pollDriverFaults(drivers [3]*tmc2209.Device, b *board.Board) {
	for range time.Tick(250 * time.Millisecond) {
		for i, d := range drivers {
			flags, err := d.ErrorFlags()
			if err != nil {
				flags = hal.FlagIoinMismatch
			}
			b.Axes[i].SetErrorFlags(flags)
		}
	}
}

// uart adapts the blocking serial port to the non-blocking byte
// interface the dispatcher polls.
type uart struct {
	port *serial.Port
	rx   chan byte
}

func newUART(p *serial.Port) *uart {
	u := &uart{port: p, rx: make(chan byte, 256)}
	go func() {
		buf := make([]byte, 64)
		for {
			n, err := p.Read(buf)
			if err != nil {
				continue
			}
			for _, b := range buf[:n] {
				u.rx <- b
			}
		}
	}()
	return u
}

func (u *uart) ReadByte() (byte, bool) {
	select {
	case b := <-u.rx:
		return b, true
	default:
		return 0, false
	}
}

func (u *uart) WriteByte(b byte) {
	u.port.Write([]byte{b})
}
