package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"

	"railwsn-sim/internal/telemetry"
)

type mockGreptimeClient struct {
	table *table.Table
	calls int
	err   error
}

func (m *mockGreptimeClient) Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error) {
	m.calls++
	if len(tables) > 0 {
		m.table = tables[0]
	}
	return &gpb.GreptimeResponse{}, m.err
}

func columnIndex(t *testing.T, rows *gpb.Rows, name string) int {
	t.Helper()
	for i, c := range rows.Schema {
		if c.ColumnName == name {
			return i
		}
	}
	t.Fatalf("column %q not in schema", name)
	return -1
}

func TestGreptimeWriterStatusRows(t *testing.T) {
	ts := time.Unix(0, 0).UTC()
	rows := []telemetry.TrackStatusRow{{
		RunID:        "r1",
		Gateway:      6,
		Window:       2,
		TrainArrival: true,
		Faulted:      []int{3, 4},
		Flags:        []bool{true, true, true, false, false, false},
		Timestamp:    ts,
	}}

	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, statusTable: "track_status"}
	if err := w.WriteBatch(rows); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if m.table == nil {
		t.Fatalf("expected table to be captured")
	}

	got := m.table.GetRows()
	if len(got.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got.Rows))
	}
	vals := got.Rows[0].Values
	if v := vals[columnIndex(t, got, "run_id")].GetStringValue(); v != "r1" {
		t.Errorf("run_id = %s, want r1", v)
	}
	if v := vals[columnIndex(t, got, "faulted")].GetStringValue(); v != "3,4" {
		t.Errorf("faulted = %s, want 3,4", v)
	}
	if v := vals[columnIndex(t, got, "flags")].GetStringValue(); v != "111000" {
		t.Errorf("flags = %s, want 111000", v)
	}
	if v := vals[columnIndex(t, got, "gateway")].GetI64Value(); v != 6 {
		t.Errorf("gateway = %d, want 6", v)
	}
	if v := vals[columnIndex(t, got, "train_arrival")].GetBoolValue(); !v {
		t.Errorf("train_arrival = false, want true")
	}
}

func TestGreptimeWriterVibrationAndRoutes(t *testing.T) {
	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, vibrationTable: "vibration_events", routeTable: "mote_routes"}

	if err := w.WriteVibration(telemetry.VibrationRow{RunID: "r1", Mote: 3, Source: 1, Value: 2222, Action: "forwarded", Peer: 5}); err != nil {
		t.Fatalf("WriteVibration: %v", err)
	}
	got := m.table.GetRows()
	if v := got.Rows[0].Values[columnIndex(t, got, "action")].GetStringValue(); v != "forwarded" {
		t.Errorf("action = %s, want forwarded", v)
	}
	if v := got.Rows[0].Values[columnIndex(t, got, "value")].GetI64Value(); v != 2222 {
		t.Errorf("value = %d, want 2222", v)
	}

	if err := w.WriteRoutes([]telemetry.RouteRow{{Mote: 2, NextHop: 4, Cost: 70, Result: "adopted", Changed: true}, {Mote: 3}}); err != nil {
		t.Fatalf("WriteRoutes: %v", err)
	}
	got = m.table.GetRows()
	if len(got.Rows) != 2 {
		t.Fatalf("expected 2 route rows, got %d", len(got.Rows))
	}
	if v := got.Rows[0].Values[columnIndex(t, got, "cost")].GetI64Value(); v != 70 {
		t.Errorf("cost = %d, want 70", v)
	}
	if m.calls != 2 {
		t.Errorf("expected one write per batch, got %d", m.calls)
	}
}

func TestGreptimeWriterStateAndErrors(t *testing.T) {
	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, stateTable: "network_state"}
	if err := w.WriteStates(nil); err != nil || m.calls != 0 {
		t.Fatalf("empty batch should not write: err=%v calls=%d", err, m.calls)
	}
	row := telemetry.NetworkStateRow{RunID: "r1", FramesSent: 12, CommunicationLoss: 0.02, Breaks: []int{3}}
	if err := w.WriteState(row); err != nil {
		t.Fatalf("WriteState: %v", err)
	}
	got := m.table.GetRows()
	if v := got.Rows[0].Values[columnIndex(t, got, "breaks")].GetStringValue(); v != "3" {
		t.Errorf("breaks = %s, want 3", v)
	}
	if v := got.Rows[0].Values[columnIndex(t, got, "communication_loss")].GetF64Value(); v != 0.02 {
		t.Errorf("communication_loss = %v, want 0.02", v)
	}

	boom := errors.New("unavailable")
	m.err = boom
	if err := w.WriteState(row); !errors.Is(err, boom) {
		t.Fatalf("expected client error, got %v", err)
	}
}
