package sim

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"railwsn-sim/internal/mote"
	"railwsn-sim/internal/statusline"
	"railwsn-sim/internal/telemetry"
)

type collectWriter struct {
	rows []telemetry.TrackStatusRow
	err  error
}

func (c *collectWriter) Write(r telemetry.TrackStatusRow) error {
	if c.err != nil {
		return c.err
	}
	c.rows = append(c.rows, r)
	return nil
}

func TestReplayLog(t *testing.T) {
	rows := []telemetry.TrackStatusRow{
		{RunID: "r1", Window: 1, Flags: []bool{true, true}, Timestamp: time.Unix(0, 0)},
		{RunID: "r1", Window: 2, Faulted: []int{2}, Flags: []bool{true, false}, Timestamp: time.Unix(30, 0)},
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	cw := &collectWriter{}
	if err := ReplayLog(&buf, cw, 0); err != nil {
		t.Fatalf("ReplayLog: %v", err)
	}
	if len(cw.rows) != len(rows) {
		t.Fatalf("expected %d rows, got %d", len(rows), len(cw.rows))
	}
	for i, r := range rows {
		if cw.rows[i].Window != r.Window || cw.rows[i].FlagString() != r.FlagString() {
			t.Fatalf("row %d mismatch: %+v vs %+v", i, cw.rows[i], r)
		}
	}
}

func TestReplayLogStopsOnWriterError(t *testing.T) {
	in := strings.NewReader(`{"window":1}` + "\n" + `{"window":2}` + "\n")
	boom := errors.New("boom")
	if err := ReplayLog(in, &collectWriter{err: boom}, 0); !errors.Is(err, boom) {
		t.Fatalf("expected writer error, got %v", err)
	}
}

func TestReplayLogBadJSON(t *testing.T) {
	if err := ReplayLog(strings.NewReader("{not json"), &collectWriter{}, 0); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestReplaySerial(t *testing.T) {
	var capture bytes.Buffer
	reports := []mote.WindowReport{
		mote.Detect([]bool{false, false, false, false}),
		mote.Detect([]bool{true, true, false, false}),
	}
	for _, r := range reports {
		if err := statusline.Write(&capture, r); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cw := &collectWriter{}
	err := ReplaySerial(&capture, cw, SerialReplay{RunID: "serial", Start: start, Period: 30 * time.Second})
	if err != nil {
		t.Fatalf("ReplaySerial: %v", err)
	}
	if len(cw.rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(cw.rows))
	}
	second := cw.rows[1]
	if second.Window != 2 || second.RunID != "serial" {
		t.Fatalf("unexpected row: %+v", second)
	}
	if !second.Timestamp.Equal(start.Add(time.Minute)) {
		t.Fatalf("timestamp %v", second.Timestamp)
	}
	if second.FlagString() != "1100" {
		t.Fatalf("flags %q", second.FlagString())
	}
	if second.TrainArrival != reports[1].TrainArrival {
		t.Fatalf("train arrival %v, want %v", second.TrainArrival, reports[1].TrainArrival)
	}
	if second.FaultedString() != "2,3" {
		t.Fatalf("faulted %q", second.FaultedString())
	}
}

func TestReplaySerialMinimalCaptureToSerial(t *testing.T) {
	capture := "Clearing Track ID Status\nTrain Arrival Detected = 1\nFaulted Track ID = 3\n"
	var out bytes.Buffer
	err := ReplaySerial(strings.NewReader(capture), NewSerialWriter(&out), SerialReplay{
		RunID:  "serial",
		Start:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Period: time.Minute,
	})
	if err != nil {
		t.Fatalf("ReplaySerial: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"Clearing Track ID Status\n",
		"Train Arrival Detected = 1\n",
		"Faulted Track ID = 3\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	windows, err := statusline.Parse(strings.NewReader(got))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(windows) != 1 || windows[0].TrainArrival != 1 || !windows[0].Faulty(3) {
		t.Fatalf("display after replay: %+v", windows)
	}
}
