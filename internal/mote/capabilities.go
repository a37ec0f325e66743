package mote

import (
	"time"

	"railwsn-sim/internal/wire"
)

// Sensor samples the vibration ADC. A failed read is just another value.
type Sensor interface {
	SampleVibration() uint16
}

// Battery reports the remaining charge in percent.
type Battery interface {
	ReadBattery() uint16
}

// Radio is the best-effort transport. Errors are local send failures only;
// delivery is never confirmed.
type Radio interface {
	SendBroadcast(ch wire.Channel, payload []byte) error
	SendUnicast(ch wire.Channel, to NodeID, payload []byte) error
}

// LED names one of the board indicators.
type LED int

const (
	LEDRed LED = iota
	LEDGreen
	LEDBlue
	LEDYellow
	ledCount
)

func (l LED) String() string {
	switch l {
	case LEDRed:
		return "red"
	case LEDGreen:
		return "green"
	case LEDBlue:
		return "blue"
	case LEDYellow:
		return "yellow"
	}
	return "unknown"
}

// Indicators drives the board LEDs.
type Indicators interface {
	SetIndicator(led LED, on bool)
}

// Timer is a one-shot timer that can be re-armed.
type Timer interface {
	Reset(d time.Duration)
}

// Timers schedules callbacks on the node's execution context.
type Timers interface {
	// Every runs fn once per period plus jitter until the node is torn down.
	Every(period, jitter time.Duration, fn func())
	After(d time.Duration, fn func()) Timer
}

// Reporter is the gateway's serial link to the track display.
type Reporter interface {
	Report(WindowReport)
}

// Capabilities bundles the services a node consumes.
type Capabilities struct {
	Sensor     Sensor
	Battery    Battery
	Radio      Radio
	Indicators Indicators
	Timers     Timers
	// Reporter is only used by the gateway.
	Reporter Reporter
}

// OverrideBattery wraps a battery with the debug button toggle: while active
// the mote advertises an empty battery so neighbours route around it.
type OverrideBattery struct {
	Battery
	active bool
}

func (o *OverrideBattery) ReadBattery() uint16 {
	if o.active {
		return 0
	}
	v := o.Battery.ReadBattery()
	if v > 100 {
		return 100
	}
	return v
}

// Toggle flips the override and returns the new state.
func (o *OverrideBattery) Toggle() bool {
	o.active = !o.active
	return o.active
}

// Active reports whether the override is engaged.
func (o *OverrideBattery) Active() bool { return o.active }

type nopIndicators struct{}

func (nopIndicators) SetIndicator(LED, bool) {}
