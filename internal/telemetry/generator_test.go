package telemetry

import (
	"testing"
	"time"

	"railwsn-sim/internal/mote"
	"railwsn-sim/internal/wire"
)

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewGeneratorAssignsRunID(t *testing.T) {
	a := NewGenerator("", start)
	b := NewGenerator("", start)
	if a.RunID == "" || a.RunID == b.RunID {
		t.Fatalf("expected distinct random run IDs, got %q and %q", a.RunID, b.RunID)
	}
	if c := NewGenerator("fixed", start); c.RunID != "fixed" {
		t.Errorf("expected fixed run ID, got %q", c.RunID)
	}
}

func TestStatusRow(t *testing.T) {
	g := NewGenerator("run", start)
	report := mote.Detect([]bool{true, false, true, false, false, true})
	row := g.StatusRow(6, 3, report, 90*time.Second)

	if row.RunID != "run" || row.Gateway != 6 || row.Window != 3 {
		t.Errorf("unexpected identity fields: %+v", row)
	}
	if !row.TrainArrival {
		t.Error("expected train arrival")
	}
	if got := row.FaultedString(); got != "4,5" {
		t.Errorf("expected faulted 4,5, got %q", got)
	}
	if got := row.FlagString(); got != "101001" {
		t.Errorf("expected flags 101001, got %q", got)
	}
	if row.SimSeconds != 90 {
		t.Errorf("expected 90s, got %v", row.SimSeconds)
	}
	if !row.Timestamp.Equal(start.Add(90 * time.Second)) {
		t.Errorf("unexpected timestamp %v", row.Timestamp)
	}

	report.Flags[0] = false
	if !row.Flags[0] {
		t.Error("row must not alias the report flags")
	}
	if got := row.Report().Faulted(); len(got) != 2 || got[0] != 4 || got[1] != 5 {
		t.Errorf("report rebuilt from flags differs: %v", got)
	}
}

func TestRouteAndVibrationRows(t *testing.T) {
	g := NewGenerator("run", start)
	u := mote.RouteUpdate{
		From:   5,
		Before: mote.RouteEntry{NextHop: 0, Cost: 10000, Battery: 100},
		After:  mote.RouteEntry{NextHop: 5, Cost: 14, Battery: 100},
		Result: mote.Adopted,
		Cost:   14,
	}
	r := g.RouteRow(4, u, time.Second)
	if r.Mote != 4 || r.From != 5 || r.NextHop != 5 || r.Cost != 14 || !r.Changed || r.Result != "adopted" {
		t.Errorf("unexpected route row %+v", r)
	}

	a := g.AdvertisementRow(4, u.After, 2*time.Second)
	if a.Result != RouteAdvertised || a.From != 0 || a.Changed {
		t.Errorf("unexpected advertisement row %+v", a)
	}

	v := g.VibrationRow(3, wire.VibrationEvent{SourceID: 4, Value: 2047}, mote.EventForwarded, 2, 5*time.Second)
	if v.Mote != 3 || v.Source != 4 || v.Value != 2047 || v.Action != "forwarded" || v.Peer != 2 {
		t.Errorf("unexpected vibration row %+v", v)
	}
}

func TestStateRowAndTableNames(t *testing.T) {
	g := NewGenerator("run", start)
	row := g.StateRow(NetworkStateRow{FramesSent: 10, Breaks: []int{2, 4}}, time.Minute)
	if row.RunID != "run" || row.SimSeconds != 60 || row.BreaksString() != "2,4" {
		t.Errorf("unexpected state row %+v", row)
	}
	if (TrackStatusRow{}).TableName() != TrackStatusTableName || TrackStatusTableName == "" {
		t.Error("track status table name not set")
	}
	if (RouteRow{}).TableName() == (VibrationRow{}).TableName() {
		t.Error("route and vibration tables must differ")
	}
}

func TestTrackStatusRowReportWithoutFlags(t *testing.T) {
	row := TrackStatusRow{TrainArrival: true, Faulted: []int{3}}
	r := row.Report()
	if !r.TrainArrival {
		t.Error("arrival lost without flags")
	}
	if got := r.Faulted(); len(got) != 1 || got[0] != 3 {
		t.Errorf("faulted without flags: %v", got)
	}

	if r := (TrackStatusRow{}).Report(); r.TrainArrival || len(r.Sections) != 0 {
		t.Errorf("empty row should report a quiet window: %+v", r)
	}
}
