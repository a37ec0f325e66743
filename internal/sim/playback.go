package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"railwsn-sim/internal/statusline"
	"railwsn-sim/internal/telemetry"
)

// ReplayLog replays track status rows from a JSONL log to writer. A speed >0
// paces rows by their timestamps, accelerated by speed. If speed <= 0, no
// artificial delay is inserted.
func ReplayLog(r io.Reader, writer StatusWriter, speed float64) error {
	dec := json.NewDecoder(r)
	var p pacer
	for {
		var row telemetry.TrackStatusRow
		if err := dec.Decode(&row); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		p.wait(row.Timestamp, speed)
		if err := writer.Write(row); err != nil {
			return err
		}
	}
}

// ReplayLogFile opens a file and replays its status rows.
func ReplayLogFile(path string, writer StatusWriter, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReplayLog(f, writer, speed)
}

// SerialReplay describes how a captured serial stream is turned back into
// rows. Windows are stamped Period apart from Start.
type SerialReplay struct {
	RunID  string
	Start  time.Time
	Period time.Duration
	Speed  float64
}

// ReplaySerial parses a serial capture of the gateway and writes one row per
// window.
func ReplaySerial(r io.Reader, writer StatusWriter, opts SerialReplay) error {
	windows, err := statusline.Parse(r)
	if err != nil {
		return err
	}
	var p pacer
	for i, d := range windows {
		at := time.Duration(i+1) * opts.Period
		row := telemetry.TrackStatusRow{
			RunID:        opts.RunID,
			Window:       i + 1,
			TrainArrival: d.TrainArrival != 0,
			Faulted:      d.Faulted,
			Flags:        d.Flags,
			SimSeconds:   at.Seconds(),
			Timestamp:    opts.Start.Add(at),
		}
		p.wait(row.Timestamp, opts.Speed)
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("window %d: %w", i+1, err)
		}
	}
	return nil
}

// ReplaySerialFile opens a serial capture and replays it.
func ReplaySerialFile(path string, writer StatusWriter, opts SerialReplay) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReplaySerial(f, writer, opts)
}

type pacer struct{ prev time.Time }

func (p *pacer) wait(ts time.Time, speed float64) {
	if !p.prev.IsZero() && speed > 0 {
		diff := ts.Sub(p.prev)
		if speed != 1 {
			diff = time.Duration(float64(diff) / speed)
		}
		if diff > 0 {
			time.Sleep(diff)
		}
	}
	p.prev = ts
}
