package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"railwsn-sim/internal/telemetry"
)

// JSONStdoutWriter prints every row kind as one JSON object per line.
type JSONStdoutWriter struct {
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

func (w *JSONStdoutWriter) emit(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}

// Write outputs a track status row in JSON format.
func (w *JSONStdoutWriter) Write(row telemetry.TrackStatusRow) error {
	return w.emit(row)
}

// WriteBatch outputs multiple track status rows in JSON format.
func (w *JSONStdoutWriter) WriteBatch(rows []telemetry.TrackStatusRow) error {
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteVibration outputs a vibration event in JSON format.
func (w *JSONStdoutWriter) WriteVibration(row telemetry.VibrationRow) error {
	return w.emit(row)
}

// WriteVibrations outputs multiple vibration events in JSON format.
func (w *JSONStdoutWriter) WriteVibrations(rows []telemetry.VibrationRow) error {
	for _, r := range rows {
		if err := w.WriteVibration(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteRoute outputs a route row in JSON format.
func (w *JSONStdoutWriter) WriteRoute(row telemetry.RouteRow) error {
	return w.emit(row)
}

// WriteRoutes outputs multiple route rows in JSON format.
func (w *JSONStdoutWriter) WriteRoutes(rows []telemetry.RouteRow) error {
	for _, r := range rows {
		if err := w.WriteRoute(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteState outputs network counters in JSON format.
func (w *JSONStdoutWriter) WriteState(row telemetry.NetworkStateRow) error {
	return w.emit(row)
}

// WriteStates outputs multiple network counter rows in JSON format.
func (w *JSONStdoutWriter) WriteStates(rows []telemetry.NetworkStateRow) error {
	for _, r := range rows {
		if err := w.WriteState(r); err != nil {
			return err
		}
	}
	return nil
}
