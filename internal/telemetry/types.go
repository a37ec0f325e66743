// Track telemetry rows with greptime tags
package telemetry

import (
	"os"
	"strconv"
	"strings"
	"time"

	"railwsn-sim/internal/mote"
)

// TrackStatusRow is one gateway aggregation window.
type TrackStatusRow struct {
	RunID        string    `json:"run_id"`        // TAG
	Gateway      int       `json:"gateway"`       // TAG
	Window       int       `json:"window"`        // FIELD
	TrainArrival bool      `json:"train_arrival"` // FIELD
	Faulted      []int     `json:"faulted"`       // FIELD, comma separated in the database
	Flags        []bool    `json:"flags"`         // FIELD, 0/1 string in the database
	SimSeconds   float64   `json:"sim_s"`         // FIELD
	Timestamp    time.Time `json:"ts"`            // TIME INDEX
}

// Report rebuilds the window report. Rows with per-mote flags are
// re-evaluated; rows without them, such as serial captures holding only the
// arrival and fault lines, keep their recorded values.
func (r TrackStatusRow) Report() mote.WindowReport {
	if len(r.Flags) > 0 {
		return mote.Detect(r.Flags)
	}
	rep := mote.WindowReport{TrainArrival: r.TrainArrival}
	for _, id := range r.Faulted {
		rep.Sections = append(rep.Sections, mote.SectionStatus{ID: id, Faulty: true})
	}
	return rep
}

// FaultedString joins the faulty section IDs with commas.
func (r TrackStatusRow) FaultedString() string {
	ids := make([]string, len(r.Faulted))
	for i, id := range r.Faulted {
		ids[i] = strconv.Itoa(id)
	}
	return strings.Join(ids, ",")
}

// FlagString renders the window flags in address order, e.g. "110011".
func (r TrackStatusRow) FlagString() string {
	var b strings.Builder
	for _, f := range r.Flags {
		if f {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// RouteRow records a route table evaluation or an advertisement.
type RouteRow struct {
	RunID      string    `json:"run_id"`         // TAG
	Mote       int       `json:"mote"`           // TAG
	From       int       `json:"from,omitempty"` // FIELD
	NextHop    int       `json:"next_hop"`       // FIELD
	Cost       int       `json:"cost"`           // FIELD
	Battery    int       `json:"battery"`        // FIELD
	Result     string    `json:"result"`         // FIELD
	Changed    bool      `json:"changed"`        // FIELD
	SimSeconds float64   `json:"sim_s"`          // FIELD
	Timestamp  time.Time `json:"ts"`             // TIME INDEX
}

// RouteAdvertised marks a row written when a mote broadcast its entry rather
// than evaluated one.
const RouteAdvertised = "advertised"

// VibrationRow records what one mote did with a vibration event.
type VibrationRow struct {
	RunID      string    `json:"run_id"`         // TAG
	Mote       int       `json:"mote"`           // TAG
	Source     int       `json:"source"`         // FIELD
	Value      int       `json:"value"`          // FIELD
	Action     string    `json:"action"`         // FIELD
	Peer       int       `json:"peer,omitempty"` // FIELD
	SimSeconds float64   `json:"sim_s"`          // FIELD
	Timestamp  time.Time `json:"ts"`             // TIME INDEX
}

// NetworkStateRow captures network counters over one aggregation window.
type NetworkStateRow struct {
	RunID             string    `json:"run_id"`             // TAG
	Window            int       `json:"window"`             // FIELD
	FramesSent        int       `json:"frames_sent"`        // FIELD
	FramesDelivered   int       `json:"frames_delivered"`   // FIELD
	FramesDropped     int       `json:"frames_dropped"`     // FIELD
	EventsOriginated  int       `json:"events_originated"`  // FIELD
	EventsDelivered   int       `json:"events_delivered"`   // FIELD
	EventsDropped     int       `json:"events_dropped"`     // FIELD
	RouteChanges      int       `json:"route_changes"`      // FIELD
	CommunicationLoss float64   `json:"communication_loss"` // FIELD
	Trains            int       `json:"trains"`             // FIELD
	Breaks            []int     `json:"breaks"`             // FIELD, comma separated in the database
	SimSeconds        float64   `json:"sim_s"`              // FIELD
	Timestamp         time.Time `json:"ts"`                 // TIME INDEX
}

// BreaksString joins the broken section IDs with commas.
func (r NetworkStateRow) BreaksString() string {
	ids := make([]string, len(r.Breaks))
	for i, id := range r.Breaks {
		ids[i] = strconv.Itoa(id)
	}
	return strings.Join(ids, ",")
}

func tableName(env, def string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	return def
}

// Table names used when writing to GreptimeDB. Each can be overridden through
// the environment.
var (
	TrackStatusTableName  = tableName("GREPTIMEDB_TABLE", "track_status")
	RouteTableName        = tableName("GREPTIMEDB_ROUTE_TABLE", "mote_routes")
	VibrationTableName    = tableName("GREPTIMEDB_VIBRATION_TABLE", "vibration_events")
	NetworkStateTableName = tableName("GREPTIMEDB_STATE_TABLE", "network_state")
)

func (TrackStatusRow) TableName() string  { return TrackStatusTableName }
func (RouteRow) TableName() string        { return RouteTableName }
func (VibrationRow) TableName() string    { return VibrationTableName }
func (NetworkStateRow) TableName() string { return NetworkStateTableName }
