// package fsensor mirrors the filament sensor inside the printer's
// extruder. The sensor is physically attached to the printer; its state
// arrives as messages over the serial link and is latched here for the
// commands that wait on it.
package fsensor

type FSensor struct {
	triggered bool
}

// ProcessMessage stores a state update pushed by the printer.
func (f *FSensor) ProcessMessage(on bool) {
	f.triggered = on
}

// Triggered reports filament present at the extruder.
func (f *FSensor) Triggered() bool { return f.triggered }
