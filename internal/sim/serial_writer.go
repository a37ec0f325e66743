package sim

import (
	"io"
	"os"
	"sync"

	"railwsn-sim/internal/statusline"
	"railwsn-sim/internal/telemetry"
)

// SerialWriter prints window reports in the gateway's serial line format so
// the output can be fed to the track display as is.
type SerialWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewSerialWriter writes status lines to out, or os.Stdout when out is nil.
func NewSerialWriter(out io.Writer) *SerialWriter {
	if out == nil {
		out = os.Stdout
	}
	return &SerialWriter{out: out}
}

// Write prints one window.
func (w *SerialWriter) Write(row telemetry.TrackStatusRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return statusline.Write(w.out, row.Report())
}

// WriteBatch prints several windows in order.
func (w *SerialWriter) WriteBatch(rows []telemetry.TrackStatusRow) error {
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}
