// package logic contains the command state machines. A command is a
// flat state cursor advanced one edge per Step call; it never blocks
// and reports progress and errors through the wire enums. Reusable
// sub-machines (feed to FINDA, feed to bondtech, unload to FINDA) are
// composed by value into the commands that use them.
package logic

import (
	"spoolworks.dev/hal"
	"spoolworks.dev/modules"
	"spoolworks.dev/motion"
	"spoolworks.dev/status"
)

// Command is the capability set the dispatcher drives. Reset arms the
// command; Step advances it one edge and reports completion. A
// finished command keeps reporting its final state and error.
type Command interface {
	Reset(ctx *modules.Context, param uint8)
	Step(ctx *modules.Context) bool
	State() status.ProgressCode
	Error() status.ErrorCode
}

// Base carries the externally visible state every command shares.
type Base struct {
	progress status.ProgressCode
	err      status.ErrorCode
	done     bool
}

func (b *Base) State() status.ProgressCode { return b.progress }

func (b *Base) Error() status.ErrorCode { return b.err }

func (b *Base) arm(p status.ProgressCode) {
	b.progress = p
	b.err = status.ErrOK
	b.done = false
}

// finish terminates the command successfully.
func (b *Base) finish() bool {
	b.progress = status.OK
	b.done = true
	return true
}

// fail terminates the command with an error, keeping the current
// progress unless a more specific one is given.
func (b *Base) fail(p status.ProgressCode, e status.ErrorCode) bool {
	b.progress = p
	b.err = e
	b.done = true
	return true
}

// tmcError maps a driver fault snapshot to its wire error code.
func tmcError(f hal.DriverFlags) status.ErrorCode {
	switch {
	case f&hal.FlagIoinMismatch != 0:
		return status.TMCIoinMismatch
	case f&hal.FlagOverTemperature != 0:
		return status.TMCOverTemperature
	case f&hal.FlagShortToGround != 0:
		return status.TMCShortToGround
	case f&hal.FlagUndervoltage != 0:
		return status.TMCUndervoltage
	case f&hal.FlagReset != 0:
		return status.TMCReset
	}
	return status.ErrOK
}

// unitFailure inspects a movable unit's terminal failure states.
func unitFailure(st motion.State, flags hal.DriverFlags) (status.ErrorCode, bool) {
	switch st {
	case motion.HomingFailed:
		return status.HomingFailed, true
	case motion.TMCFailed:
		return tmcError(flags), true
	}
	return status.ErrOK, false
}

// NoCommand is the idle placeholder; it is finished from the start.
type NoCommand struct {
	Base
}

func (n *NoCommand) Reset(ctx *modules.Context, param uint8) {
	n.arm(status.OK)
	n.done = true
}

func (n *NoCommand) Step(ctx *modules.Context) bool { return true }
