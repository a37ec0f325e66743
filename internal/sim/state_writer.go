package sim

import "railwsn-sim/internal/telemetry"

// StateWriter handles per-window network counter rows.
type StateWriter interface {
	WriteState(telemetry.NetworkStateRow) error
}

// Optional: writers may support batch mode for state rows.
type batchStateWriter interface {
	WriteStates([]telemetry.NetworkStateRow) error
}
