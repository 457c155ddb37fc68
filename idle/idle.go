// package idle is the top level of the firmware: it owns the protocol
// decoder and the single running command, answers queries, plans or
// rejects command requests and emits the one-shot completion report.
package idle

import (
	"spoolworks.dev/config"
	"spoolworks.dev/globals"
	"spoolworks.dev/hal"
	"spoolworks.dev/idler"
	"spoolworks.dev/leds"
	"spoolworks.dev/logic"
	"spoolworks.dev/modules"
	"spoolworks.dev/protocol"
	"spoolworks.dev/status"
)

// Mode is the top-level dispatcher state.
type Mode struct {
	dec protocol.Decoder

	cmd   logic.Command
	cmdRq protocol.RequestMsg
	// finished latches the running command's completion; reported
	// latches the one-shot F/E line.
	finished bool
	reported bool
	// lastErrReported arms the one-shot E answer to Q after each
	// error-code edge.
	lastErrReported status.ErrorCode

	lastFinishedMs uint16

	panicked  bool
	panicCode status.ErrorCode

	scratch []byte
}

// New starts with NoCommand so the first status query reports
// finished, which matches the machine state right after reset.
func New() *Mode {
	m := &Mode{
		cmd:      &logic.NoCommand{},
		cmdRq:    protocol.RequestMsg{Code: protocol.Reset},
		finished: true,
		reported: true,
	}
	return m
}

// Step runs one dispatcher iteration: at most one parsed request, one
// command step, and the manual-operation check.
func (m *Mode) Step(ctx *modules.Context, uart hal.UART) {
	m.checkMsgs(ctx, uart)
	m.stepCommand(ctx, uart)
	m.checkManualOperation(ctx)
}

// CommandState exposes the running command's progress, for the main
// binary's diagnostics and for tests.
func (m *Mode) CommandState() status.ProgressCode {
	return m.cmd.State()
}

// CommandError exposes the running command's error.
func (m *Mode) CommandError() status.ErrorCode {
	return m.cmd.Error()
}

// Panic latches a fatal condition: motion stops, the active slot
// blinks red and command requests are rejected until a reset request
// arrives.
func (m *Mode) Panic(ctx *modules.Context, e status.ErrorCode) {
	m.panicked = true
	m.panicCode = e
	ctx.Motion.AbortPlannedMoves(false)
	slot := ctx.Globals.ActiveSlot()
	if slot == globals.ParkedSlot {
		slot = 0
	}
	ctx.LEDs.SetMode(slot, leds.Red, leds.Blink0)
}

// checkMsgs drains the UART until the first complete request.
func (m *Mode) checkMsgs(ctx *modules.Context, uart hal.UART) {
	for {
		b, ok := uart.ReadByte()
		if !ok {
			return
		}
		if rq, complete := m.dec.Push(b); complete {
			m.processRequest(ctx, uart, rq)
			return
		}
	}
}

func (m *Mode) stepCommand(ctx *modules.Context, uart hal.UART) {
	if !m.finished && m.cmd.State() == status.Err1WaitingForUser {
		// Tell the host which button the user resolved the wait
		// with; the command consumes the press this same tick.
		if i, ok := ctx.Buttons.AnyPressed(); ok {
			m.respond(uart, protocol.ResponseMsg{
				Request: m.cmdRq, Param: protocol.ButtonPush,
				Value: i, HasValue: true,
			})
		}
	}
	if m.cmd.Step(ctx) {
		m.finished = true
	}
	if m.finished && !m.reported {
		m.reported = true
		m.lastFinishedMs = ctx.Clock.Millis()
		// Presses aimed at the command must not leak into manual
		// operation.
		ctx.Buttons.ClearAll()
		r := protocol.ResponseMsg{Request: m.cmdRq, Param: protocol.Finished}
		if e := m.cmd.Error(); e != status.ErrOK {
			r = protocol.ResponseMsg{
				Request: m.cmdRq, Param: protocol.Error,
				Value: uint8(e), HasValue: true,
			}
		}
		m.respond(uart, r)
	}
}

func (m *Mode) processRequest(ctx *modules.Context, uart hal.UART, rq protocol.RequestMsg) {
	switch rq.Code {
	case protocol.Query:
		m.reportRunningCommand(ctx, uart, rq)
	case protocol.Finda:
		v := uint8(0)
		if ctx.FINDA.Pressed() {
			v = 1
		}
		m.accept(uart, rq, v)
	case protocol.Version:
		m.reportVersion(uart, rq)
	case protocol.Button:
		if int(rq.Value) < 3 {
			ctx.Buttons.Push(rq.Value)
			m.respondAccepted(uart, rq)
		} else {
			m.reject(uart, rq)
		}
	case protocol.Mode:
		stealth := rq.Value == 1
		ctx.Globals.SetMotorsStealth(stealth)
		mode := hal.ModeNormal
		if stealth {
			mode = hal.ModeStealth
		}
		ctx.Motion.SetModeAll(mode)
		m.respondAccepted(uart, rq)
	case protocol.FilamentType:
		if int(rq.Value) < config.NumSlots {
			ctx.Globals.SetFilamentType(rq.Value, rq.Value2)
			m.respondAccepted(uart, rq)
		} else {
			m.reject(uart, rq)
		}
	case protocol.Tool, protocol.Load, protocol.Unload, protocol.Continue,
		protocol.Eject, protocol.Cut, protocol.Home, protocol.Reset:
		m.planCommand(ctx, uart, rq)
	default:
		m.reject(uart, rq)
	}
}

// reportRunningCommand answers a Q request: a one-shot E after each
// error edge, F when idle or finished, P with the progress otherwise.
func (m *Mode) reportRunningCommand(ctx *modules.Context, uart hal.UART, rq protocol.RequestMsg) {
	if m.panicked {
		m.respond(uart, protocol.ResponseMsg{
			Request: rq, Param: protocol.Error,
			Value: uint8(m.panicCode), HasValue: true,
		})
		return
	}
	e := m.cmd.Error()
	if e == status.ErrOK {
		m.lastErrReported = status.ErrOK
	} else if e != m.lastErrReported {
		m.lastErrReported = e
		m.respond(uart, protocol.ResponseMsg{
			Request: rq, Param: protocol.Error,
			Value: uint8(e), HasValue: true,
		})
		return
	}
	if m.finished {
		m.respond(uart, protocol.ResponseMsg{Request: rq, Param: protocol.Finished})
		return
	}
	m.respond(uart, protocol.ResponseMsg{
		Request: rq, Param: protocol.Processing,
		Value: uint8(m.cmd.State()), HasValue: true,
	})
}

func (m *Mode) reportVersion(uart hal.UART, rq protocol.RequestMsg) {
	var v uint8
	switch rq.Value {
	case 0:
		v = config.VersionMajor
	case 1:
		v = config.VersionMinor
	case 2:
		v = config.VersionRevision
	case 3:
		v = config.VersionBuild
	default:
		m.reject(uart, rq)
		return
	}
	m.accept(uart, rq, v)
}

// planCommand starts a new command if the current one is terminal.
func (m *Mode) planCommand(ctx *modules.Context, uart hal.UART, rq protocol.RequestMsg) {
	if rq.Code == protocol.Reset {
		m.reset(ctx)
		m.respondAccepted(uart, rq)
		return
	}
	if m.panicked || !m.finished {
		m.reject(uart, rq)
		return
	}
	var cmd logic.Command
	switch rq.Code {
	case protocol.Tool:
		if int(rq.Value) >= config.NumSlots {
			m.reject(uart, rq)
			return
		}
		cmd = &logic.ToolChange{}
	case protocol.Load:
		if int(rq.Value) >= config.NumSlots {
			m.reject(uart, rq)
			return
		}
		cmd = &logic.LoadFilament{}
	case protocol.Unload:
		cmd = &logic.UnloadFilament{}
	case protocol.Continue:
		cmd = &logic.ContinueLoad{}
	case protocol.Eject:
		if int(rq.Value) >= config.NumSlots {
			m.reject(uart, rq)
			return
		}
		cmd = &logic.EjectFilament{}
	case protocol.Cut:
		if int(rq.Value) >= config.NumSlots {
			m.reject(uart, rq)
			return
		}
		cmd = &logic.CutFilament{}
	case protocol.Home:
		cmd = &logic.Home{}
	}
	cmd.Reset(ctx, rq.Value)
	m.cmd = cmd
	m.cmdRq = rq
	m.finished = false
	m.reported = false
	m.lastErrReported = status.ErrOK
	m.respondAccepted(uart, rq)
}

// reset is the X request: abort motion, drop the running command and
// clear the panic latch.
func (m *Mode) reset(ctx *modules.Context) {
	ctx.Motion.AbortPlannedMoves(false)
	ctx.LEDs.SetAllOff()
	m.cmd = &logic.NoCommand{}
	m.cmdRq = protocol.RequestMsg{Code: protocol.Reset}
	m.finished = true
	m.reported = true
	m.lastErrReported = status.ErrOK
	m.panicked = false
	m.lastFinishedMs = ctx.Clock.Millis()
}

// checkManualOperation lets the user jog the selector and idler with
// the buttons, but only 5 seconds after the last command and with no
// filament in the selector.
func (m *Mode) checkManualOperation(ctx *modules.Context) {
	if !m.finished || m.panicked {
		return
	}
	now := ctx.Clock.Millis()
	if now-m.lastFinishedMs < config.ManualModeDelayMs {
		return
	}
	if ctx.FINDA.Pressed() {
		return
	}
	stealth := ctx.Globals.MotorsStealth()
	if ctx.Buttons.Pressed(0) && ctx.Selector.Ready() {
		ctx.Buttons.Clear(0)
		if s := ctx.Selector.CurrentSlot; s > 0 {
			ctx.Selector.MoveToSlot(ctx.Motion, stealth, s-1)
		}
	}
	if ctx.Buttons.Pressed(2) && ctx.Selector.Ready() {
		ctx.Buttons.Clear(2)
		if s := ctx.Selector.CurrentSlot; s < globals.ParkedSlot {
			ctx.Selector.MoveToSlot(ctx.Motion, stealth, s+1)
		}
	}
	if ctx.Buttons.Pressed(1) && ctx.Idler.Ready() {
		ctx.Buttons.Clear(1)
		next := (ctx.Idler.CurrentSlot + 1) % (idler.IdleSlot + 1)
		ctx.Idler.MoveToSlot(ctx.Motion, stealth, next)
	}
}

func (m *Mode) accept(uart hal.UART, rq protocol.RequestMsg, v uint8) {
	m.respond(uart, protocol.ResponseMsg{
		Request: rq, Param: protocol.Accepted, Value: v, HasValue: true,
	})
}

func (m *Mode) respondAccepted(uart hal.UART, rq protocol.RequestMsg) {
	m.respond(uart, protocol.ResponseMsg{Request: rq, Param: protocol.Accepted})
}

func (m *Mode) reject(uart hal.UART, rq protocol.RequestMsg) {
	m.respond(uart, protocol.ResponseMsg{Request: rq, Param: protocol.Rejected})
}

func (m *Mode) respond(uart hal.UART, r protocol.ResponseMsg) {
	m.scratch = protocol.AppendResponse(m.scratch[:0], r)
	for _, b := range m.scratch {
		uart.WriteByte(b)
	}
}
