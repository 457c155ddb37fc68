// package config holds the mechanical geometry and tuning constants of
// the unit. All distances are in motor microsteps, feedrates in
// microsteps per second and times in milliseconds.
package config

// Firmware version, reported through the S0..S3 queries.
const (
	VersionMajor    = 3
	VersionMinor    = 0
	VersionRevision = 1
	VersionBuild    = 7
)

// NumSlots is the number of filament positions. Slot NumSlots is the
// "parked" sentinel.
const NumSlots = 5

// Axis identifies one of the three motors.
type Axis uint8

const (
	Pulley Axis = iota
	Selector
	Idler
	NumAxes
)

func (a Axis) String() string {
	switch a {
	case Pulley:
		return "pulley"
	case Selector:
		return "selector"
	case Idler:
		return "idler"
	default:
		return "invalid"
	}
}

// Selector geometry. SelectorSlotSteps[NumSlots] is the parked
// position at the far end of the axis, clear of all filament paths.
var SelectorSlotSteps = [NumSlots + 1]int32{75, 372, 669, 966, 1263, 1560}

const (
	// SelectorCutSteps offsets a slot position so that moving the
	// selector across performs the cut.
	SelectorCutSteps = 140
	// SelectorHomeSteps is a planned homing move guaranteed to span
	// the whole axis.
	SelectorHomeSteps = 2600
	// Measured axis length outside this window fails homing.
	SelectorLengthMin = 1500
	SelectorLengthMax = 1700

	SelectorFeedrate = 2000
	SelectorHomeRate = 1000
	SelectorAccel    = 8000
)

// Idler geometry. Position 0 is the disengaged (idle) rest position,
// IdlerSlotSteps[i] presses the bearing onto slot i's filament.
var IdlerSlotSteps = [NumSlots + 1]int32{300, 570, 840, 1110, 1380, 0}

const (
	IdlerHomeSteps = 2400
	IdlerLengthMin = 1300
	IdlerLengthMax = 1500

	IdlerFeedrate = 3000
	IdlerHomeRate = 1500
	IdlerAccel    = 10000
)

// Pulley moves. The pulley axis has no home; all moves are relative.
const (
	// Feed-to-FINDA push lengths. LoadFilament uses the limited form
	// for every load; the unlimited form spans the whole bowden and is
	// selectable through FeedToFinda.Reset, though no command uses it.
	FeedToFindaLimited   = 1500
	FeedToFindaUnlimited = 65535
	FeedToFindaFeedrate  = 4000
	// Retract length after FINDA triggers. No feed plans it: on a
	// FINDA trigger FeedToFinda stops the push and keeps the idler
	// engaged; the unload path parks the tip with UnloadExtra.
	FindaRetract = -600

	// Bowden tube length between FINDA and the extruder gears, plus
	// the margin the filament sensor must trigger within.
	FeedToBondtech         = 9000
	FeedToBondtechFeedrate = 4500

	// Unload pull length budget; FINDA must release before the queue
	// drains or the unload has failed.
	UnloadToFinda         = -11000
	UnloadToFindaFeedrate = 5000
	// Extra pull after FINDA releases, clearing the selector.
	UnloadExtra = -600

	// Slow nudges used while the user assists a failed feed or
	// unload.
	HelpPushSteps = 1500
	HelpPullSteps = -1500
	HelpFeedrate  = 2000

	// Eject push: enough to hand the filament tip to the user.
	EjectSteps    = 2200
	EjectFeedrate = 3000

	// Cut push: sticks the tip out for the blade pass.
	CutPushSteps = 350
	CutPushRate  = 1500
	PulleyAccel  = 20000
)

// Sensor and input tuning.
const (
	// Button debounce window.
	DebounceMs = 20

	// FINDA ADC hysteresis, raw 10-bit counts.
	FindaOnThreshold  = 600
	FindaOffThreshold = 400

	// Manual selector/idler operation opens this long after the last
	// command finished, FINDA permitting.
	ManualModeDelayMs = 5000

	// LED blink half-period.
	BlinkPeriodMs = 500
)
