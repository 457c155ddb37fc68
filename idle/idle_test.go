package idle_test

import (
	"strings"
	"testing"

	"spoolworks.dev/config"
	"spoolworks.dev/internal/simrig"
	"spoolworks.dev/status"
)

// request feeds one request line and runs one full loop iteration.
func request(r *simrig.Rig, line string) string {
	r.UART.Feed(line)
	r.TickIdle()
	return r.UART.Drain()
}

// runIdle runs full loop iterations until cond holds.
func runIdle(t *testing.T, r *simrig.Rig, budget int, cond func() bool) string {
	t.Helper()
	var out strings.Builder
	for n := 0; n < budget; n++ {
		if cond() {
			return out.String()
		}
		r.TickIdle()
		out.WriteString(r.UART.Drain())
	}
	t.Fatalf("condition not reached; collected %q", out.String())
	return ""
}

func TestQueryAtBoot(t *testing.T) {
	r := simrig.New()
	if got := request(r, "Q0\n"); got != "Q0 F\n" {
		t.Fatalf("got %q, want Q0 F", got)
	}
}

func TestVersionAndFinda(t *testing.T) {
	r := simrig.New()
	if got := request(r, "S0\n"); got != "S0 A3\n" {
		t.Fatalf("S0: got %q", got)
	}
	if got := request(r, "S1\n"); got != "S1 A0\n" {
		t.Fatalf("S1: got %q", got)
	}
	if got := request(r, "S4\n"); got != "S4 R\n" {
		t.Fatalf("S4: got %q", got)
	}
	if got := request(r, "P0\n"); got != "P0 A0\n" {
		t.Fatalf("P0 off: got %q", got)
	}
	r.SetFinda(true)
	r.TickIdle()
	r.UART.Drain()
	if got := request(r, "P0\n"); got != "P0 A1\n" {
		t.Fatalf("P0 on: got %q", got)
	}
}

func TestRejectInvalidSlot(t *testing.T) {
	r := simrig.New()
	if got := request(r, "T5\n"); got != "T5 R\n" {
		t.Fatalf("T5: got %q", got)
	}
	if got := request(r, "L9\n"); got != "L9 R\n" {
		t.Fatalf("L9: got %q", got)
	}
}

func TestRejectWhileBusy(t *testing.T) {
	r := simrig.New()
	if got := request(r, "T1\n"); got != "T1 A\n" {
		t.Fatalf("T1: got %q", got)
	}
	if got := request(r, "T3\n"); got != "T3 R\n" {
		t.Fatalf("T3 while busy: got %q", got)
	}
}

func TestLoadSessionProgress(t *testing.T) {
	r := simrig.New()
	if !r.EnsureActiveSlot(2) {
		t.Fatal("machine setup did not settle")
	}
	r.Ctx.Globals.SetActiveSlot(5)
	r.Ctx.FSensor.ProcessMessage(false)

	if got := request(r, "L2\n"); got != "L2 A\n" {
		t.Fatalf("L2: got %q", got)
	}
	if got := request(r, "Q0\n"); got != "Q0 P1\n" {
		t.Fatalf("Q0 engaging: got %q", got)
	}
	runIdle(t, r, 5000, func() bool {
		return r.Ctx.Idler.Engaged()
	})
	if got := request(r, "Q0\n"); got != "Q0 P5\n" {
		t.Fatalf("Q0 feeding: got %q", got)
	}
	// The tip reaches the FINDA.
	r.SetFinda(true)
	r.TickIdle()
	r.TickIdle()
	r.UART.Drain()
	if got := request(r, "Q0\n"); got != "Q0 P6\n" {
		t.Fatalf("Q0 bondtech: got %q", got)
	}
}

func TestLoadSessionCompletes(t *testing.T) {
	r := simrig.New()
	if !r.EnsureActiveSlot(2) {
		t.Fatal("machine setup did not settle")
	}
	r.Ctx.Globals.SetActiveSlot(5)
	r.Ctx.FSensor.ProcessMessage(false)

	if got := request(r, "L2\n"); got != "L2 A\n" {
		t.Fatalf("L2: got %q", got)
	}
	runIdle(t, r, 5000, func() bool { return r.Ctx.Idler.Engaged() })
	r.SetFinda(true)
	var done string
	for n := 0; n < 5000; n++ {
		r.Ctx.FSensor.ProcessMessage(true)
		r.TickIdle()
		if out := r.UART.Drain(); out != "" {
			done = out
			break
		}
	}
	if done != "L2 F\n" {
		t.Fatalf("completion report: got %q, want L2 F", done)
	}
	if got := request(r, "Q0\n"); got != "Q0 F\n" {
		t.Fatalf("Q0 after completion: got %q", got)
	}
	if got := r.Ctx.Globals.ActiveSlot(); got != 2 {
		t.Fatalf("active slot %d, want 2", got)
	}
	if !r.Ctx.FINDA.Pressed() {
		t.Fatal("FINDA off after load")
	}
}

func TestFailedLoadReportsErrorOnce(t *testing.T) {
	r := simrig.New()
	if !r.EnsureActiveSlot(0) {
		t.Fatal("machine setup did not settle")
	}
	r.Ctx.Globals.SetActiveSlot(5)

	if got := request(r, "L0\n"); got != "L0 A\n" {
		t.Fatalf("L0: got %q", got)
	}
	// The FINDA stays dead; wait for the recovery tree.
	runIdle(t, r, 5000, func() bool {
		return r.Idle != nil && cmdState(r) == status.Err1DisengagingIdler
	})
	wantErr := "Q0 E" + itoa(uint8(status.FindaDidntTrigger)) + "\n"
	if got := request(r, "Q0\n"); got != wantErr {
		t.Fatalf("first Q0 after error: got %q, want %q", got, wantErr)
	}
	// The error was reported; subsequent queries show progress.
	if got := request(r, "Q0\n"); got != "Q0 P9\n" {
		t.Fatalf("second Q0: got %q, want Q0 P9", got)
	}
	runIdle(t, r, 5000, func() bool {
		return cmdState(r) == status.Err1WaitingForUser
	})
	if got := request(r, "Q0\n"); got != "Q0 P11\n" {
		t.Fatalf("waiting Q0: got %q, want Q0 P11", got)
	}

	// The host injects a button; the dispatcher acknowledges it and
	// reports the consumed press against the running command.
	out := request(r, "B1\n")
	if !strings.Contains(out, "B1 A\n") {
		t.Fatalf("B1: got %q, want an ack", out)
	}
	runIdle(t, r, 200, func() bool {
		return cmdState(r) == status.Err1EngagingIdler
	})
	if got := request(r, "Q0\n"); got != "Q0 P10\n" {
		t.Fatalf("after button Q0: got %q, want Q0 P10", got)
	}
}

func TestManualModeGate(t *testing.T) {
	r := simrig.New()
	if !r.EnsureActiveSlot(2) {
		t.Fatal("machine setup did not settle")
	}

	// Less than 5 s since boot: presses are ignored.
	r.Ctx.Buttons.Push(0)
	r.TickIdle()
	if !r.Ctx.Selector.Ready() || r.Ctx.Selector.CurrentSlot != 2 {
		t.Fatal("manual move before the idle window opened")
	}
	r.Ctx.Buttons.ClearAll()

	for n := 0; n < int(config.ManualModeDelayMs)+10; n++ {
		r.TickIdle()
	}
	r.Ctx.Buttons.Push(0)
	r.TickIdle()
	runIdle(t, r, 2000, func() bool { return r.Ctx.Selector.Ready() })
	if got := r.Ctx.Selector.CurrentSlot; got != 1 {
		t.Fatalf("selector slot %d, want 1 after manual left", got)
	}

	// With filament in the selector the gate stays closed.
	r.SetFinda(true)
	r.TickIdle()
	r.Ctx.Buttons.Push(0)
	r.TickIdle()
	if got := r.Ctx.Selector.CurrentSlot; got != 1 || !r.Ctx.Selector.Ready() {
		t.Fatal("manual move with filament present")
	}
	r.Ctx.Buttons.ClearAll()
}

func TestResetClearsCommand(t *testing.T) {
	r := simrig.New()
	if got := request(r, "T1\n"); got != "T1 A\n" {
		t.Fatalf("T1: got %q", got)
	}
	if got := request(r, "X0\n"); got != "X0 A\n" {
		t.Fatalf("X0: got %q", got)
	}
	if got := request(r, "Q0\n"); got != "Q0 F\n" {
		t.Fatalf("Q0 after reset: got %q", got)
	}
	// A new command is accepted right away.
	if got := request(r, "H2\n"); got != "H2 A\n" {
		t.Fatalf("H2 after reset: got %q", got)
	}
}

func TestModeAndFilamentType(t *testing.T) {
	r := simrig.New()
	if got := request(r, "M1\n"); got != "M1 A\n" {
		t.Fatalf("M1: got %q", got)
	}
	if !r.Ctx.Globals.MotorsStealth() {
		t.Fatal("stealth flag not set")
	}
	if got := request(r, "F1 3\n"); got != "F1 A\n" {
		t.Fatalf("F1 3: got %q", got)
	}
	if got := r.Ctx.Globals.FilamentType(1); got != 3 {
		t.Fatalf("filament type %d, want 3", got)
	}
	if got := request(r, "F7 1\n"); got != "F7 R\n" {
		t.Fatalf("F7: got %q", got)
	}
}

func TestPanicLatch(t *testing.T) {
	r := simrig.New()
	r.Idle.Panic(r.Ctx, status.TMCShortToGround)

	wantErr := "Q0 E" + itoa(uint8(status.TMCShortToGround)) + "\n"
	if got := request(r, "Q0\n"); got != wantErr {
		t.Fatalf("Q0 in panic: got %q, want %q", got, wantErr)
	}
	if got := request(r, "T1\n"); got != "T1 R\n" {
		t.Fatalf("T1 in panic: got %q", got)
	}
	// Only a reset clears the latch.
	if got := request(r, "X0\n"); got != "X0 A\n" {
		t.Fatalf("X0: got %q", got)
	}
	if got := request(r, "T1\n"); got != "T1 A\n" {
		t.Fatalf("T1 after reset: got %q", got)
	}
}

func cmdState(r *simrig.Rig) status.ProgressCode {
	return r.Idle.CommandState()
}

func itoa(v uint8) string {
	s := [3]byte{'0' + v/100, '0' + v/10%10, '0' + v%10}
	switch {
	case v >= 100:
		return string(s[:])
	case v >= 10:
		return string(s[1:])
	}
	return string(s[2:])
}
