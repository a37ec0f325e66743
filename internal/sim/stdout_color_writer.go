// ColorStdoutWriter prints human-friendly, colorized track activity to STDOUT.
package sim

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"railwsn-sim/internal/config"
	"railwsn-sim/internal/mote"
	"railwsn-sim/internal/telemetry"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// ColorStdoutWriter prints rows using ANSI colors. Route rows are only shown
// when they change a mote's next hop or cost.
type ColorStdoutWriter struct {
	cfg  *config.Config
	out  io.Writer
	once sync.Once
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter(cfg *config.Config) *ColorStdoutWriter {
	return &ColorStdoutWriter{cfg: cfg, out: os.Stdout}
}

var actionColors = map[string]string{
	mote.EventOriginated.String():      colorYellow,
	mote.EventForwarded.String():       colorCyan,
	mote.EventDelivered.String():       colorGreen,
	mote.EventDetectedLocally.String(): colorMagenta,
	mote.EventDropped.String():         colorRed,
}

func (w *ColorStdoutWriter) printOverview() {
	if w.cfg == nil {
		return
	}
	n := w.cfg.Network
	fmt.Fprintln(w.out, "Network Configuration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Motes:\t%d\n", n.Motes)
	fmt.Fprintf(tw, "Gateway:\t%d\n", n.Gateway)
	fmt.Fprintf(tw, "Radio Channel:\t%d\n", w.cfg.Radio.Channel)
	fmt.Fprintf(tw, "Spacing (m):\t%.0f\n", w.cfg.Radio.SpacingM)
	fmt.Fprintf(tw, "Communication Loss:\t%.2f\n", w.cfg.Radio.CommunicationLoss)
	fmt.Fprintf(tw, "Advertisement Period:\t%s\n", n.AdvertisementPeriod)
	fmt.Fprintf(tw, "Aggregation Window:\t%s\n", n.AggregationWindow)
	fmt.Fprintf(tw, "Field Thresholds:\t%d..%d\n", n.FieldThresholds.Lower, n.FieldThresholds.Upper)
	fmt.Fprintf(tw, "Gateway Thresholds:\t%d..%d\n", n.GatewayThresholds.Lower, n.GatewayThresholds.Upper)
	tw.Flush()

	fmt.Fprintln(w.out, "\nMotes:")
	tw = tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Address\tRole\tPosition (m)\n")
	p := w.cfg.Params()
	for id := 1; id <= n.Motes; id++ {
		role := p.RoleOf(mote.NodeID(id))
		col := colorBlue
		if role == mote.Gateway {
			col = colorMagenta
		}
		fmt.Fprintf(tw, "%s%d%s\t%s\t%.0f\n", col, id, colorReset, role, float64(id-1)*w.cfg.Radio.SpacingM)
	}
	tw.Flush()
	fmt.Fprintln(w.out)
}

func (w *ColorStdoutWriter) stamp(ts time.Time, sim float64) {
	fmt.Fprintf(w.out, "%s[%s t=%.1fs]%s ", colorGray, ts.Format(time.RFC3339), sim, colorReset)
}

// Write outputs one aggregation window.
func (w *ColorStdoutWriter) Write(row telemetry.TrackStatusRow) error {
	w.once.Do(w.printOverview)
	w.stamp(row.Timestamp, row.SimSeconds)
	fmt.Fprintf(w.out, "%sWINDOW %d%s gateway=%d flags=%s ", colorBlue, row.Window, colorReset, row.Gateway, row.FlagString())
	if row.TrainArrival {
		fmt.Fprintf(w.out, "%strain=1%s ", colorYellow, colorReset)
	} else {
		fmt.Fprintf(w.out, "%strain=0%s ", colorGray, colorReset)
	}
	if len(row.Faulted) > 0 {
		fmt.Fprintf(w.out, "%sFAULTED %s%s", colorRed, row.FaultedString(), colorReset)
	} else {
		fmt.Fprintf(w.out, "%sHEALTHY%s", colorGreen, colorReset)
	}
	fmt.Fprintln(w.out)
	return nil
}

// WriteBatch outputs multiple windows.
func (w *ColorStdoutWriter) WriteBatch(rows []telemetry.TrackStatusRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteVibration prints one handling of a vibration event.
func (w *ColorStdoutWriter) WriteVibration(row telemetry.VibrationRow) error {
	w.once.Do(w.printOverview)
	col, ok := actionColors[row.Action]
	if !ok {
		col = colorGray
	}
	w.stamp(row.Timestamp, row.SimSeconds)
	fmt.Fprintf(w.out, "%sVIBRATION%s mote=%d source=%d value=%d %s%s%s",
		colorYellow, colorReset, row.Mote, row.Source, row.Value, col, row.Action, colorReset)
	if row.Peer != 0 {
		fmt.Fprintf(w.out, " peer=%d", row.Peer)
	}
	fmt.Fprintln(w.out)
	return nil
}

// WriteVibrations prints multiple vibration events.
func (w *ColorStdoutWriter) WriteVibrations(rows []telemetry.VibrationRow) error {
	for _, r := range rows {
		_ = w.WriteVibration(r)
	}
	return nil
}

// WriteRoute prints route changes and skips everything else.
func (w *ColorStdoutWriter) WriteRoute(row telemetry.RouteRow) error {
	if !row.Changed {
		return nil
	}
	w.once.Do(w.printOverview)
	w.stamp(row.Timestamp, row.SimSeconds)
	fmt.Fprintf(w.out, "%sROUTE%s mote=%d next_hop=%d cost=%d battery=%d %s%s%s\n",
		colorCyan, colorReset, row.Mote, row.NextHop, row.Cost, row.Battery, colorGray, row.Result, colorReset)
	return nil
}

// WriteRoutes prints multiple route rows.
func (w *ColorStdoutWriter) WriteRoutes(rows []telemetry.RouteRow) error {
	for _, r := range rows {
		_ = w.WriteRoute(r)
	}
	return nil
}

// WriteState prints network counters for one window.
func (w *ColorStdoutWriter) WriteState(row telemetry.NetworkStateRow) error {
	w.once.Do(w.printOverview)
	w.stamp(row.Timestamp, row.SimSeconds)
	fmt.Fprintf(w.out, "%sSTATE%s frames=%d delivered=%d dropped=%d events=%d/%d lost=%d route_changes=%d trains=%d",
		colorBlue, colorReset, row.FramesSent, row.FramesDelivered, row.FramesDropped,
		row.EventsDelivered, row.EventsOriginated, row.EventsDropped, row.RouteChanges, row.Trains)
	if len(row.Breaks) > 0 {
		fmt.Fprintf(w.out, " %sbreaks=%s%s", colorRed, row.BreaksString(), colorReset)
	}
	fmt.Fprintln(w.out)
	return nil
}

// WriteStates prints multiple network counter rows.
func (w *ColorStdoutWriter) WriteStates(rows []telemetry.NetworkStateRow) error {
	for _, r := range rows {
		_ = w.WriteState(r)
	}
	return nil
}
