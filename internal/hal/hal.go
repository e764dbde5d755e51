// Package hal declares the hardware capabilities the engine consumes. The
// register-level drivers live behind these interfaces; a simulated rig backs
// host-side runs and the test suite.
package hal

// AuxChannel is the single-ended ADC channel wired to the load-voltage tap.
const AuxChannel = 2

// MaxLevel is the top of the actuation DAC range.
const MaxLevel = 255

// CurrentSensor reads the instantaneous load current.
type CurrentSensor interface {
	ReadCurrentMA() float64
}

// BridgeADC reads the sensing bridge and auxiliary channels.
type BridgeADC interface {
	ReadDifferential() int16
	ReadSingleEnded(channel int) int16
}

// Actuator drives the relay actuation output.
type Actuator interface {
	SetLevel(level int)
}

// Display is a fixed 4x16 character-cell panel.
type Display interface {
	SetCursor(row, col int)
	Print(text string)
}

// UserInput delivers the debounced edge-triggered operator signal.
type UserInput interface {
	// Events yields one value per button edge. The channel is never closed.
	Events() <-chan struct{}
}

// Rig bundles the capabilities of one test station.
type Rig struct {
	Current  CurrentSensor
	ADC      BridgeADC
	Actuator Actuator
	Display  Display
	Input    UserInput
}
