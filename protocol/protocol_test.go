package protocol

import (
	"testing"
)

func decodeAll(t *testing.T, d *Decoder, s string) []RequestMsg {
	t.Helper()
	var msgs []RequestMsg
	for i := 0; i < len(s); i++ {
		if rq, ok := d.Push(s[i]); ok {
			msgs = append(msgs, rq)
		}
	}
	return msgs
}

func TestDecodeRequests(t *testing.T) {
	tests := []struct {
		line string
		want RequestMsg
	}{
		{"Q0\n", RequestMsg{Code: Query}},
		{"T3\n", RequestMsg{Code: Tool, Value: 3}},
		{"L4\n", RequestMsg{Code: Load, Value: 4}},
		{"U0\n", RequestMsg{Code: Unload}},
		{"X0\n", RequestMsg{Code: Reset}},
		{"P0\n", RequestMsg{Code: Finda}},
		{"S255\n", RequestMsg{Code: Version, Value: 255}},
		{"M1\n", RequestMsg{Code: Mode, Value: 1}},
		{"F1 2\n", RequestMsg{Code: FilamentType, Value: 1, Value2: 2}},
		{"B2\n", RequestMsg{Code: Button, Value: 2}},
		{"K4\n", RequestMsg{Code: Cut, Value: 4}},
		{"H1\n", RequestMsg{Code: Home, Value: 1}},
	}
	for _, test := range tests {
		d := new(Decoder)
		msgs := decodeAll(t, d, test.line)
		if len(msgs) != 1 {
			t.Fatalf("%q: got %d messages, want 1", test.line, len(msgs))
		}
		if msgs[0] != test.want {
			t.Errorf("%q: got %+v, want %+v", test.line, msgs[0], test.want)
		}
	}
}

func TestDecodeRejects(t *testing.T) {
	lines := []string{
		"\n",       // empty
		"Q\n",      // missing parameter
		"z0\n",     // lower case code
		"W0\n",     // unknown code
		"T256\n",   // parameter out of range
		"T1x\n",    // trailing garbage
		"F1 2 3\n", // too many parameters
		"F1  2\n",  // double space
	}
	for _, line := range lines {
		d := new(Decoder)
		if msgs := decodeAll(t, d, line); len(msgs) != 0 {
			t.Errorf("%q: decoded %+v, want rejection", line, msgs)
		}
	}
}

func TestDecodeResync(t *testing.T) {
	d := new(Decoder)
	// An overlong frame must be swallowed without corrupting the
	// stream.
	msgs := decodeAll(t, d, "T123456789012345\nQ0\n")
	if len(msgs) != 1 || msgs[0].Code != Query {
		t.Fatalf("got %+v, want a single Q0", msgs)
	}
	// A rejected line resynchronises too.
	msgs = decodeAll(t, d, "junk\nT2\n")
	if len(msgs) != 1 || (msgs[0] != RequestMsg{Code: Tool, Value: 2}) {
		t.Fatalf("got %+v, want a single T2", msgs)
	}
}

func TestAppendResponse(t *testing.T) {
	tests := []struct {
		r    ResponseMsg
		want string
	}{
		{ResponseMsg{Request: RequestMsg{Code: Tool, Value: 3}, Param: Accepted}, "T3 A\n"},
		{ResponseMsg{Request: RequestMsg{Code: Tool, Value: 3}, Param: Rejected}, "T3 R\n"},
		{ResponseMsg{Request: RequestMsg{Code: Query}, Param: Finished}, "Q0 F\n"},
		{ResponseMsg{Request: RequestMsg{Code: Query}, Param: Processing, Value: 5, HasValue: true}, "Q0 P5\n"},
		{ResponseMsg{Request: RequestMsg{Code: Tool, Value: 3}, Param: Error, Value: 8, HasValue: true}, "T3 E8\n"},
		{ResponseMsg{Request: RequestMsg{Code: Finda}, Param: Accepted, Value: 1, HasValue: true}, "P0 A1\n"},
		{ResponseMsg{Request: RequestMsg{Code: Version, Value: 2}, Param: Accepted, Value: 255, HasValue: true}, "S2 A255\n"},
		{ResponseMsg{Request: RequestMsg{Code: Load, Value: 0}, Param: ButtonPush, Value: 1, HasValue: true}, "L0 B1\n"},
	}
	for _, test := range tests {
		got := string(AppendResponse(nil, test.r))
		if got != test.want {
			t.Errorf("got %q, want %q", got, test.want)
		}
	}
}
