package sim

import "railwsn-sim/internal/telemetry"

// EventWriter handles vibration event rows.
type EventWriter interface {
	WriteVibration(telemetry.VibrationRow) error
}

// Optional: event writers may support batch mode.
type batchEventWriter interface {
	WriteVibrations([]telemetry.VibrationRow) error
}
