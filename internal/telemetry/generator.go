package telemetry

import (
	"time"

	"github.com/google/uuid"

	"railwsn-sim/internal/mote"
	"railwsn-sim/internal/wire"
)

// Generator stamps protocol activity into rows. Timestamps are the run start
// plus virtual time, so replays keep the simulated pacing.
type Generator struct {
	RunID string
	Start time.Time
}

// NewGenerator creates a generator for a new run. An empty runID gets a
// random one.
func NewGenerator(runID string, start time.Time) *Generator {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Generator{RunID: runID, Start: start.UTC()}
}

func (g *Generator) stamp(at time.Duration) (float64, time.Time) {
	return at.Seconds(), g.Start.Add(at)
}

// StatusRow builds the row for the window closed at virtual time at.
func (g *Generator) StatusRow(gateway mote.NodeID, window int, r mote.WindowReport, at time.Duration) TrackStatusRow {
	sim, ts := g.stamp(at)
	flags := make([]bool, len(r.Flags))
	copy(flags, r.Flags)
	return TrackStatusRow{
		RunID:        g.RunID,
		Gateway:      int(gateway),
		Window:       window,
		TrainArrival: r.TrainArrival,
		Faulted:      r.Faulted(),
		Flags:        flags,
		SimSeconds:   sim,
		Timestamp:    ts,
	}
}

// RouteRow builds the row for one route table evaluation.
func (g *Generator) RouteRow(node mote.NodeID, u mote.RouteUpdate, at time.Duration) RouteRow {
	sim, ts := g.stamp(at)
	return RouteRow{
		RunID:      g.RunID,
		Mote:       int(node),
		From:       int(u.From),
		NextHop:    int(u.After.NextHop),
		Cost:       int(u.After.Cost),
		Battery:    int(u.After.Battery),
		Result:     u.Result.String(),
		Changed:    u.Changed(),
		SimSeconds: sim,
		Timestamp:  ts,
	}
}

// AdvertisementRow builds the row for a route broadcast.
func (g *Generator) AdvertisementRow(node mote.NodeID, e mote.RouteEntry, at time.Duration) RouteRow {
	sim, ts := g.stamp(at)
	return RouteRow{
		RunID:      g.RunID,
		Mote:       int(node),
		NextHop:    int(e.NextHop),
		Cost:       int(e.Cost),
		Battery:    int(e.Battery),
		Result:     RouteAdvertised,
		SimSeconds: sim,
		Timestamp:  ts,
	}
}

// VibrationRow builds the row for one handling of a vibration event.
func (g *Generator) VibrationRow(node mote.NodeID, ev wire.VibrationEvent, action mote.EventAction, peer mote.NodeID, at time.Duration) VibrationRow {
	sim, ts := g.stamp(at)
	return VibrationRow{
		RunID:      g.RunID,
		Mote:       int(node),
		Source:     int(ev.SourceID),
		Value:      int(ev.Value),
		Action:     action.String(),
		Peer:       int(peer),
		SimSeconds: sim,
		Timestamp:  ts,
	}
}

// StateRow stamps a network counter row.
func (g *Generator) StateRow(row NetworkStateRow, at time.Duration) NetworkStateRow {
	row.RunID = g.RunID
	row.SimSeconds, row.Timestamp = g.stamp(at)
	return row
}
