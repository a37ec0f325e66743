package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"railwsn-sim/internal/telemetry"
)

// greptimeClient is the part of the ingester client the writer needs.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

const greptimeWriteTimeout = 5 * time.Second

// GreptimeDBWriter writes every row kind to its own GreptimeDB table. Tables
// are created on first insert by the server.
type GreptimeDBWriter struct {
	client         greptimeClient
	statusTable    string
	routeTable     string
	vibrationTable string
	stateTable     string
	log            *slog.Logger
}

// NewGreptimeDBWriter connects to endpoint ("host" or "host:port", gRPC port
// 4001 by default) and writes into database.
func NewGreptimeDBWriter(endpoint, database string, log *slog.Logger) (*GreptimeDBWriter, error) {
	host, port := endpoint, 4001
	if h, p, err := net.SplitHostPort(endpoint); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("greptimedb: bad port in %q: %w", endpoint, err)
		}
		host, port = h, n
	}
	if database == "" {
		database = "public"
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptimedb: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &GreptimeDBWriter{
		client:         client,
		statusTable:    telemetry.TrackStatusTableName,
		routeTable:     telemetry.RouteTableName,
		vibrationTable: telemetry.VibrationTableName,
		stateTable:     telemetry.NetworkStateTableName,
		log:            log.With("component", "greptimedb"),
	}, nil
}

func (w *GreptimeDBWriter) write(tbl *table.Table, n int) error {
	ctx, cancel := context.WithTimeout(context.Background(), greptimeWriteTimeout)
	defer cancel()
	if _, err := w.client.Write(ctx, tbl); err != nil {
		w.logger().Warn("write failed", "rows", n, "err", err)
		return err
	}
	w.logger().Debug("rows written", "rows", n)
	return nil
}

func (w *GreptimeDBWriter) logger() *slog.Logger {
	if w.log == nil {
		return slog.Default()
	}
	return w.log
}

// Write inserts a single status row.
func (w *GreptimeDBWriter) Write(row telemetry.TrackStatusRow) error {
	return w.WriteBatch([]telemetry.TrackStatusRow{row})
}

// WriteBatch inserts multiple status rows.
func (w *GreptimeDBWriter) WriteBatch(rows []telemetry.TrackStatusRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.statusTable)
	if err != nil {
		return err
	}
	if err := errors.Join(
		tbl.AddTagColumn("run_id", types.STRING),
		tbl.AddTagColumn("gateway", types.INT64),
		tbl.AddFieldColumn("window", types.INT64),
		tbl.AddFieldColumn("train_arrival", types.BOOLEAN),
		tbl.AddFieldColumn("faulted", types.STRING),
		tbl.AddFieldColumn("faulted_count", types.INT64),
		tbl.AddFieldColumn("flags", types.STRING),
		tbl.AddFieldColumn("sim_s", types.FLOAT64),
		tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND),
	); err != nil {
		return err
	}
	for _, r := range rows {
		if err := tbl.AddRow(r.RunID, int64(r.Gateway), int64(r.Window), r.TrainArrival,
			r.FaultedString(), int64(len(r.Faulted)), r.FlagString(), r.SimSeconds, r.Timestamp); err != nil {
			return err
		}
	}
	return w.write(tbl, len(rows))
}

// WriteVibration inserts a single vibration row.
func (w *GreptimeDBWriter) WriteVibration(row telemetry.VibrationRow) error {
	return w.WriteVibrations([]telemetry.VibrationRow{row})
}

// WriteVibrations inserts multiple vibration rows.
func (w *GreptimeDBWriter) WriteVibrations(rows []telemetry.VibrationRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.vibrationTable)
	if err != nil {
		return err
	}
	if err := errors.Join(
		tbl.AddTagColumn("run_id", types.STRING),
		tbl.AddTagColumn("mote", types.INT64),
		tbl.AddFieldColumn("source", types.INT64),
		tbl.AddFieldColumn("value", types.INT64),
		tbl.AddFieldColumn("action", types.STRING),
		tbl.AddFieldColumn("peer", types.INT64),
		tbl.AddFieldColumn("sim_s", types.FLOAT64),
		tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND),
	); err != nil {
		return err
	}
	for _, r := range rows {
		if err := tbl.AddRow(r.RunID, int64(r.Mote), int64(r.Source), int64(r.Value),
			r.Action, int64(r.Peer), r.SimSeconds, r.Timestamp); err != nil {
			return err
		}
	}
	return w.write(tbl, len(rows))
}

// WriteRoute inserts a single route row.
func (w *GreptimeDBWriter) WriteRoute(row telemetry.RouteRow) error {
	return w.WriteRoutes([]telemetry.RouteRow{row})
}

// WriteRoutes inserts multiple route rows.
func (w *GreptimeDBWriter) WriteRoutes(rows []telemetry.RouteRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.routeTable)
	if err != nil {
		return err
	}
	if err := errors.Join(
		tbl.AddTagColumn("run_id", types.STRING),
		tbl.AddTagColumn("mote", types.INT64),
		tbl.AddFieldColumn("from_mote", types.INT64),
		tbl.AddFieldColumn("next_hop", types.INT64),
		tbl.AddFieldColumn("cost", types.INT64),
		tbl.AddFieldColumn("battery", types.INT64),
		tbl.AddFieldColumn("result", types.STRING),
		tbl.AddFieldColumn("changed", types.BOOLEAN),
		tbl.AddFieldColumn("sim_s", types.FLOAT64),
		tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND),
	); err != nil {
		return err
	}
	for _, r := range rows {
		if err := tbl.AddRow(r.RunID, int64(r.Mote), int64(r.From), int64(r.NextHop), int64(r.Cost),
			int64(r.Battery), r.Result, r.Changed, r.SimSeconds, r.Timestamp); err != nil {
			return err
		}
	}
	return w.write(tbl, len(rows))
}

// WriteState inserts a single network state row.
func (w *GreptimeDBWriter) WriteState(row telemetry.NetworkStateRow) error {
	return w.WriteStates([]telemetry.NetworkStateRow{row})
}

// WriteStates inserts multiple network state rows.
func (w *GreptimeDBWriter) WriteStates(rows []telemetry.NetworkStateRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.stateTable)
	if err != nil {
		return err
	}
	if err := errors.Join(
		tbl.AddTagColumn("run_id", types.STRING),
		tbl.AddFieldColumn("window", types.INT64),
		tbl.AddFieldColumn("frames_sent", types.INT64),
		tbl.AddFieldColumn("frames_delivered", types.INT64),
		tbl.AddFieldColumn("frames_dropped", types.INT64),
		tbl.AddFieldColumn("events_originated", types.INT64),
		tbl.AddFieldColumn("events_delivered", types.INT64),
		tbl.AddFieldColumn("events_dropped", types.INT64),
		tbl.AddFieldColumn("route_changes", types.INT64),
		tbl.AddFieldColumn("communication_loss", types.FLOAT64),
		tbl.AddFieldColumn("trains", types.INT64),
		tbl.AddFieldColumn("breaks", types.STRING),
		tbl.AddFieldColumn("sim_s", types.FLOAT64),
		tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND),
	); err != nil {
		return err
	}
	for _, r := range rows {
		if err := tbl.AddRow(r.RunID, int64(r.Window), int64(r.FramesSent), int64(r.FramesDelivered),
			int64(r.FramesDropped), int64(r.EventsOriginated), int64(r.EventsDelivered), int64(r.EventsDropped),
			int64(r.RouteChanges), r.CommunicationLoss, int64(r.Trains), r.BreaksString(), r.SimSeconds,
			r.Timestamp); err != nil {
			return err
		}
	}
	return w.write(tbl, len(rows))
}
