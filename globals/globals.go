// package globals is the small set of machine-wide state: the active
// filament slot, the stealth flag and the per-slot filament types.
// Changes are written through to permanent storage; boot restores them.
package globals

import (
	"spoolworks.dev/config"
	"spoolworks.dev/hal"
)

// Storage layout.
const (
	addrActiveSlot    = 0
	addrMotorsStealth = 1
	addrFilamentType  = 2 // five consecutive bytes
)

// ParkedSlot is the active-slot sentinel for "no filament selected".
const ParkedSlot = config.NumSlots

type Globals struct {
	store        hal.Storage
	activeSlot   uint8
	stealth      bool
	filamentType [config.NumSlots]uint8
}

func New(store hal.Storage) *Globals {
	g := &Globals{store: store}
	g.Init()
	return g
}

// Init reloads the persisted state. Unprogrammed storage (0xff) reads
// as parked, normal mode, type 0.
func (g *Globals) Init() {
	slot := g.store.ReadByte(addrActiveSlot)
	if slot > ParkedSlot {
		slot = ParkedSlot
	}
	g.activeSlot = slot
	g.stealth = g.store.ReadByte(addrMotorsStealth) == 1
	for i := range g.filamentType {
		t := g.store.ReadByte(addrFilamentType + uint16(i))
		if t == 0xff {
			t = 0
		}
		g.filamentType[i] = t
	}
}

func (g *Globals) ActiveSlot() uint8 { return g.activeSlot }

func (g *Globals) SetActiveSlot(slot uint8) {
	if slot > ParkedSlot {
		slot = ParkedSlot
	}
	if slot == g.activeSlot {
		return
	}
	g.activeSlot = slot
	g.store.WriteByte(addrActiveSlot, slot)
}

func (g *Globals) MotorsStealth() bool { return g.stealth }

func (g *Globals) SetMotorsStealth(on bool) {
	if on == g.stealth {
		return
	}
	g.stealth = on
	v := byte(0)
	if on {
		v = 1
	}
	g.store.WriteByte(addrMotorsStealth, v)
}

func (g *Globals) FilamentType(slot uint8) uint8 {
	if int(slot) >= config.NumSlots {
		return 0
	}
	return g.filamentType[slot]
}

func (g *Globals) SetFilamentType(slot, t uint8) {
	if int(slot) >= config.NumSlots || g.filamentType[slot] == t {
		return
	}
	g.filamentType[slot] = t
	g.store.WriteByte(addrFilamentType+uint16(slot), t)
}
