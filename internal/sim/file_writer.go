package sim

import (
	"encoding/json"
	"os"

	"railwsn-sim/internal/telemetry"
)

// FileWriter writes each row kind to its own JSONL file. The status log is
// what replay reads back.
type FileWriter struct {
	statusFile *os.File
	eventFile  *os.File
	routeFile  *os.File
	stateFile  *os.File
	statusEnc  *json.Encoder
	eventEnc   *json.Encoder
	routeEnc   *json.Encoder
	stateEnc   *json.Encoder
}

// NewFileWriter creates a FileWriter. eventPath, routePath, or statePath may
// be empty to skip those logs.
func NewFileWriter(statusPath, eventPath, routePath, statePath string) (*FileWriter, error) {
	sf, err := os.Create(statusPath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{statusFile: sf, statusEnc: json.NewEncoder(sf)}
	open := func(path string, file **os.File, enc **json.Encoder) error {
		if path == "" {
			return nil
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		*file = f
		*enc = json.NewEncoder(f)
		return nil
	}
	if err := open(eventPath, &fw.eventFile, &fw.eventEnc); err != nil {
		fw.Close()
		return nil, err
	}
	if err := open(routePath, &fw.routeFile, &fw.routeEnc); err != nil {
		fw.Close()
		return nil, err
	}
	if err := open(statePath, &fw.stateFile, &fw.stateEnc); err != nil {
		fw.Close()
		return nil, err
	}
	return fw, nil
}

// Write logs a single status row.
func (f *FileWriter) Write(row telemetry.TrackStatusRow) error {
	return f.statusEnc.Encode(row)
}

// WriteBatch logs multiple status rows.
func (f *FileWriter) WriteBatch(rows []telemetry.TrackStatusRow) error {
	for _, r := range rows {
		if err := f.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteVibration logs a single vibration row, if enabled.
func (f *FileWriter) WriteVibration(row telemetry.VibrationRow) error {
	if f.eventEnc == nil {
		return nil
	}
	return f.eventEnc.Encode(row)
}

// WriteVibrations logs multiple vibration rows.
func (f *FileWriter) WriteVibrations(rows []telemetry.VibrationRow) error {
	for _, r := range rows {
		if err := f.WriteVibration(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteRoute logs a single route row, if enabled.
func (f *FileWriter) WriteRoute(row telemetry.RouteRow) error {
	if f.routeEnc == nil {
		return nil
	}
	return f.routeEnc.Encode(row)
}

// WriteRoutes logs multiple route rows.
func (f *FileWriter) WriteRoutes(rows []telemetry.RouteRow) error {
	for _, r := range rows {
		if err := f.WriteRoute(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteState logs a network state row, if enabled.
func (f *FileWriter) WriteState(row telemetry.NetworkStateRow) error {
	if f.stateEnc == nil {
		return nil
	}
	return f.stateEnc.Encode(row)
}

// WriteStates logs multiple network state rows.
func (f *FileWriter) WriteStates(rows []telemetry.NetworkStateRow) error {
	for _, r := range rows {
		if err := f.WriteState(r); err != nil {
			return err
		}
	}
	return nil
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	var err error
	for _, file := range []*os.File{f.statusFile, f.eventFile, f.routeFile, f.stateFile} {
		if file == nil {
			continue
		}
		if e := file.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
