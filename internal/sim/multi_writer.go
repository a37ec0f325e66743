package sim

import (
	"errors"
	"io"

	"railwsn-sim/internal/telemetry"
)

// MultiWriter fans rows out to several writers. Each row kind only goes to
// the writers that accept it; a failing writer does not starve the others.
type MultiWriter struct {
	writers []StatusWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(ws ...StatusWriter) *MultiWriter {
	return &MultiWriter{writers: ws}
}

// Write sends a status row to all writers.
func (mw *MultiWriter) Write(row telemetry.TrackStatusRow) error {
	var errs []error
	for _, w := range mw.writers {
		errs = append(errs, w.Write(row))
	}
	return errors.Join(errs...)
}

// WriteBatch sends multiple status rows to all writers, using batch if supported.
func (mw *MultiWriter) WriteBatch(rows []telemetry.TrackStatusRow) error {
	var errs []error
	for _, w := range mw.writers {
		if bw, ok := w.(batchWriter); ok {
			errs = append(errs, bw.WriteBatch(rows))
			continue
		}
		for _, r := range rows {
			errs = append(errs, w.Write(r))
		}
	}
	return errors.Join(errs...)
}

// WriteVibration sends a vibration row to every event writer.
func (mw *MultiWriter) WriteVibration(row telemetry.VibrationRow) error {
	var errs []error
	for _, w := range mw.writers {
		if ew, ok := w.(EventWriter); ok {
			errs = append(errs, ew.WriteVibration(row))
		}
	}
	return errors.Join(errs...)
}

// WriteVibrations sends vibration rows to every event writer, using batch if supported.
func (mw *MultiWriter) WriteVibrations(rows []telemetry.VibrationRow) error {
	var errs []error
	for _, w := range mw.writers {
		switch ew := w.(type) {
		case batchEventWriter:
			errs = append(errs, ew.WriteVibrations(rows))
		case EventWriter:
			for _, r := range rows {
				errs = append(errs, ew.WriteVibration(r))
			}
		}
	}
	return errors.Join(errs...)
}

// WriteRoute sends a route row to every route writer.
func (mw *MultiWriter) WriteRoute(row telemetry.RouteRow) error {
	var errs []error
	for _, w := range mw.writers {
		if rw, ok := w.(RouteWriter); ok {
			errs = append(errs, rw.WriteRoute(row))
		}
	}
	return errors.Join(errs...)
}

// WriteRoutes sends route rows to every route writer, using batch if supported.
func (mw *MultiWriter) WriteRoutes(rows []telemetry.RouteRow) error {
	var errs []error
	for _, w := range mw.writers {
		switch rw := w.(type) {
		case batchRouteWriter:
			errs = append(errs, rw.WriteRoutes(rows))
		case RouteWriter:
			for _, r := range rows {
				errs = append(errs, rw.WriteRoute(r))
			}
		}
	}
	return errors.Join(errs...)
}

// WriteState sends a network state row to every state writer.
func (mw *MultiWriter) WriteState(row telemetry.NetworkStateRow) error {
	var errs []error
	for _, w := range mw.writers {
		if sw, ok := w.(StateWriter); ok {
			errs = append(errs, sw.WriteState(row))
		}
	}
	return errors.Join(errs...)
}

// WriteStates sends network state rows to every state writer, using batch if supported.
func (mw *MultiWriter) WriteStates(rows []telemetry.NetworkStateRow) error {
	var errs []error
	for _, w := range mw.writers {
		switch sw := w.(type) {
		case batchStateWriter:
			errs = append(errs, sw.WriteStates(rows))
		case StateWriter:
			for _, r := range rows {
				errs = append(errs, sw.WriteState(r))
			}
		}
	}
	return errors.Join(errs...)
}

// SetAdminStatus forwards the admin listener state to writers that show it.
func (mw *MultiWriter) SetAdminStatus(listening bool) {
	for _, w := range mw.writers {
		if aw, ok := w.(AdminStatusWriter); ok {
			aw.SetAdminStatus(listening)
		}
	}
}

// Close closes every writer that holds resources.
func (mw *MultiWriter) Close() error {
	var errs []error
	for _, w := range mw.writers {
		if c, ok := w.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
