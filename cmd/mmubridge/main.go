// command mmubridge polls a multi-material unit over its serial
// protocol and publishes the state to an MQTT broker as CBOR payloads,
// for print-farm dashboards that want unit state without talking the
// serial protocol themselves.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fxamacker/cbor/v2"
	"github.com/tarm/serial"

	"spoolworks.dev/protocol"
	"spoolworks.dev/status"
)

// State is one telemetry sample.
type State struct {
	Time     time.Time `cbor:"t"`
	Finda    bool      `cbor:"finda"`
	Running  bool      `cbor:"running"`
	Progress uint8     `cbor:"progress,omitempty"`
	Text     string    `cbor:"text,omitempty"`
	Error    uint8     `cbor:"error,omitempty"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		os.Exit(2)
	}
}

func run() error {
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	dev := flag.String("dev", "/dev/ttyUSB0", "serial device of the unit")
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	topic := flag.String("topic", "mmu/state", "MQTT topic")
	interval := flag.Duration("interval", time.Second, "poll interval")
	flag.Parse()

	port, err := serial.OpenPort(&serial.Config{
		Name: *dev, Baud: 115200, ReadTimeout: 500 * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", *dev, err)
	}
	defer port.Close()

	opts := mqtt.NewClientOptions().AddBroker(*broker).SetClientID("mmubridge")
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect %s: %w", *broker, token.Error())
	}
	defer client.Disconnect(250)

	rd := bufio.NewReader(port)
	for {
		st, err := poll(port, rd)
		if err != nil {
			log.Printf("mmubridge: poll: %v", err)
			time.Sleep(*interval)
			continue
		}
		payload, err := cbor.Marshal(st)
		if err != nil {
			return fmt.Errorf("encode state: %w", err)
		}
		client.Publish(*topic, 0, true, payload)
		time.Sleep(*interval)
	}
}

// poll issues a FINDA query and a status query and folds the answers
// into one sample.
func poll(port *serial.Port, rd *bufio.Reader) (State, error) {
	st := State{Time: time.Now()}

	code, value, err := exchange(port, rd, "P0\n")
	if err != nil {
		return st, err
	}
	if code == protocol.Accepted {
		st.Finda = value == 1
	}

	code, value, err = exchange(port, rd, "Q0\n")
	if err != nil {
		return st, err
	}
	switch code {
	case protocol.Processing:
		st.Running = true
		st.Progress = value
		st.Text = status.ProgressCode(value).String()
	case protocol.Error:
		st.Error = value
		st.Text = status.ErrorCode(value).String()
	case protocol.Finished:
		st.Text = status.OK.String()
	}
	return st, nil
}

// exchange writes one request line and parses the response's parameter
// code and value.
func exchange(port *serial.Port, rd *bufio.Reader, req string) (protocol.ResponseParam, uint8, error) {
	if _, err := port.Write([]byte(req)); err != nil {
		return 0, 0, err
	}
	line, err := rd.ReadString('\n')
	if err != nil {
		return 0, 0, err
	}
	line = strings.TrimSuffix(line, "\n")
	_, param, ok := strings.Cut(line, " ")
	if !ok || param == "" {
		return 0, 0, fmt.Errorf("malformed response %q", line)
	}
	code := protocol.ResponseParam(param[0])
	if len(param) == 1 {
		return code, 0, nil
	}
	v, err := strconv.Atoi(param[1:])
	if err != nil || v < 0 || v > 255 {
		return 0, 0, fmt.Errorf("malformed response %q", line)
	}
	return code, uint8(v), nil
}
