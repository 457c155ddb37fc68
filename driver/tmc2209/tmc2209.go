// Package tmc2209 is a UART register driver for the TMC2209 stepper
// drivers on the pulley, selector and idler axes. All three share one
// UART bus; each chip is addressed by its MS pin strapping.
package tmc2209

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"spoolworks.dev/hal"
)

// Settings.
const (
	// 2^stepExp is the number of microsteps to a full step.
	stepExp = 3
	// Microsteps to a full step.
	Microsteps = 1 << stepExp

	// iholdDelay is the number of clock cycles to delay the current
	// switch from IRUN to IHOLD on standstill.
	iholdDelay = 4

	// fclk is the clock frequency in Hz.
	fclk = 12e6
)

type Device struct {
	Bus  io.ReadWriter
	Addr uint8
	// Invert flips the motor direction in GCONF.
	Invert bool
	// Run and hold currents as IRUN/IHOLD register values (0..31).
	Run, Hold uint8

	scratch [7]byte
}

// Register addresses and bits.
const (
	GCONF      = 0x00
	GSTAT      = 0x01
	IFCNT      = 0x02
	SLAVECONF  = 0x03
	IOIN       = 0x06
	IHOLD_IRUN = 0x10
	TCOOLTHRS  = 0x14
	SGTHRS     = 0x40
	SG_RESULT  = 0x41
	CHOPCONF   = 0x6c
	DRV_STATUS = 0x6f

	// GCONF bits.
	I_scale_analog   = 0b1 << 0
	en_spreadcycle   = 0b1 << 2
	shaft            = 0b1 << 3
	pdn_disable      = 0b1 << 6
	mstep_reg_select = 0b1 << 7

	// CHOPCONF fields.
	mres_shift = 24
	intpol     = 1 << 28

	// IOIN carries a hardwired version field that doubles as a
	// communication sanity check.
	ioinVersionShift = 24
	ioinVersion      = 0x21

	// GSTAT bits.
	gstatReset  = 0b1 << 0
	gstatDrvErr = 0b1 << 1
	gstatUVCP   = 0b1 << 2

	// DRV_STATUS bits.
	drvOTPW = 0b1 << 0
	drvOT   = 0b1 << 1
	drvS2GA = 0b1 << 2
	drvS2GB = 0b1 << 3

	min_SENDDELAY = 2

	// attempts is the number of attempts for a read or a write
	// before giving up.
	attempts = 3
)

// SetupSharedUART raises SENDDELAY so multiple drivers can share the
// UART pin without talking over each other.
func (d *Device) SetupSharedUART() error {
	// Reading from a slave may confuse another until SENDDELAY is
	// raised, so write blindly.
	wr := d.scratch[:6]
	writeDatagram(wr, d.Addr, SLAVECONF, min_SENDDELAY<<8)
	var lerr error
	for range attempts {
		if _, err := d.Bus.Write(wr); err != nil {
			lerr = err
		}
	}
	return lerr
}

func (d *Device) Configure() error {
	if err := d.write(SLAVECONF, min_SENDDELAY<<8); err != nil {
		return fmt.Errorf("tmc2209: set SLAVECONF: %w", err)
	}
	if err := d.VerifyIOIN(); err != nil {
		return err
	}
	gconf, err := d.read(GCONF)
	if err != nil {
		return fmt.Errorf("tmc2209: read GCONF: %w", err)
	}
	// The UART pin is a UART pin, not standstill control.
	gconf |= pdn_disable
	// Microstep resolution comes from MRES, not the MS pins.
	gconf |= mstep_reg_select
	// IRUN/IHOLD are absolute, not scaled by Vref.
	gconf &^= I_scale_analog
	if d.Invert {
		gconf |= shaft
	} else {
		gconf &^= shaft
	}
	if err := d.write(GCONF, gconf); err != nil {
		return fmt.Errorf("tmc2209: set GCONF: %w", err)
	}

	ihold_irun := uint32(iholdDelay)<<16 | uint32(d.Run&31)<<8 | uint32(d.Hold&31)
	if err := d.write(IHOLD_IRUN, ihold_irun); err != nil {
		return fmt.Errorf("tmc2209: set IHOLD/IRUN: %w", err)
	}

	chopconf, err := d.read(CHOPCONF)
	if err != nil {
		return fmt.Errorf("tmc2209: read CHOPCONF: %w", err)
	}
	chopconf &^= 0b1111 << mres_shift
	chopconf |= (8 - stepExp) << mres_shift
	chopconf &^= intpol
	if err := d.write(CHOPCONF, chopconf); err != nil {
		return fmt.Errorf("tmc2209: set CHOPCONF: %w", err)
	}

	// Clear the power-on reset flag.
	if err := d.write(GSTAT, 0b111); err != nil {
		return fmt.Errorf("tmc2209: set GSTAT: %w", err)
	}
	return nil
}

// VerifyIOIN checks the hardwired version field, catching a dead or
// miswired driver before any motion is attempted.
func (d *Device) VerifyIOIN() error {
	ioin, err := d.read(IOIN)
	if err != nil {
		return fmt.Errorf("tmc2209: read IOIN: %w", err)
	}
	if ioin>>ioinVersionShift != ioinVersion {
		return fmt.Errorf("tmc2209: IOIN version %#x, want %#x", ioin>>ioinVersionShift, ioinVersion)
	}
	return nil
}

// SetStealth switches between stealthchop and spreadcycle.
func (d *Device) SetStealth(on bool) error {
	gconf, err := d.read(GCONF)
	if err != nil {
		return fmt.Errorf("tmc2209: read GCONF: %w", err)
	}
	if on {
		gconf &^= en_spreadcycle
	} else {
		gconf |= en_spreadcycle
	}
	if err := d.write(GCONF, gconf); err != nil {
		return fmt.Errorf("tmc2209: set GCONF: %w", err)
	}
	return nil
}

// SetStallThreshold sets the SGTHRS level that trips the stall guard
// and raises the DIAG pin.
func (d *Device) SetStallThreshold(threshold uint8) error {
	if err := d.write(SGTHRS, uint32(threshold)); err != nil {
		return fmt.Errorf("tmc2209: set SGTHRS: %w", err)
	}
	return nil
}

// SetMinimumStallVelocity sets the velocity in steps/second below
// which stall detection is suppressed.
func (d *Device) SetMinimumStallVelocity(stepsPerSecond int) error {
	const scale = 256 / Microsteps
	tcoolThrs := fclk / (stepsPerSecond * scale)
	tcoolThrs = min(tcoolThrs, 0xfffff)
	if err := d.write(TCOOLTHRS, uint32(tcoolThrs)); err != nil {
		return fmt.Errorf("tmc2209: set TCOOLTHRS: %w", err)
	}
	return nil
}

// Load returns the stall guard load reading, 0 (free) to 255
// (stalled).
func (d *Device) Load() (int, error) {
	res, err := d.read(SG_RESULT)
	return 255 - int(res/2), err
}

// ErrorFlags folds GSTAT, DRV_STATUS and the IOIN check into the
// planner's fault set.
func (d *Device) ErrorFlags() (hal.DriverFlags, error) {
	var flags hal.DriverFlags
	gstat, err := d.read(GSTAT)
	if err != nil {
		return 0, fmt.Errorf("tmc2209: read GSTAT: %w", err)
	}
	if gstat&gstatReset != 0 {
		flags |= hal.FlagReset
	}
	if gstat&gstatUVCP != 0 {
		flags |= hal.FlagUndervoltage
	}
	if gstat&gstatDrvErr != 0 {
		drv, err := d.read(DRV_STATUS)
		if err != nil {
			return 0, fmt.Errorf("tmc2209: read DRV_STATUS: %w", err)
		}
		if drv&(drvOT|drvOTPW) != 0 {
			flags |= hal.FlagOverTemperature
		}
		if drv&(drvS2GA|drvS2GB) != 0 {
			flags |= hal.FlagShortToGround
		}
	}
	if err := d.VerifyIOIN(); err != nil {
		flags |= hal.FlagIoinMismatch
	}
	return flags, nil
}

func (d *Device) read(addr byte) (uint32, error) {
	wr, rx := d.scratch[:2], d.scratch[2:7]
	wr[0] = d.Addr
	wr[1] = addr
	var lerr error
	for range attempts {
		if _, err := d.Bus.Write(wr); err != nil {
			lerr = fmt.Errorf("write: %v", err)
			continue
		}
		if _, err := d.Bus.Read(rx); err != nil {
			lerr = fmt.Errorf("read: %v", err)
			continue
		}
		if rx[0] != addr {
			lerr = errors.New("read: unexpected receive address")
			continue
		}
		return binary.BigEndian.Uint32(rx[1:]), nil
	}
	return 0, lerr
}

func (d *Device) write(addr uint8, val uint32) error {
	ifcnt, err := d.read(IFCNT)
	if err != nil {
		return err
	}
	wr := d.scratch[:6]
	writeDatagram(wr, d.Addr, addr, val)
	var lerr error
	for range attempts {
		if _, err := d.Bus.Write(wr); err != nil {
			lerr = err
			continue
		}
		ifcnt2, err := d.read(IFCNT)
		if err != nil {
			lerr = err
			continue
		}
		// Check for write error.
		if uint8(ifcnt2)-uint8(ifcnt) != 1 {
			ifcnt = ifcnt2
			lerr = errors.New("write count not updated")
			continue
		}
		return nil
	}
	return lerr
}

func writeDatagram(b []byte, node, addr uint8, val uint32) {
	const WRITE = 0x80
	b[0] = node
	b[1] = addr | WRITE
	binary.BigEndian.PutUint32(b[2:], val)
}
