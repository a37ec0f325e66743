package sim

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"railwsn-sim/internal/mote"
	"railwsn-sim/internal/radio"
	"railwsn-sim/internal/wire"
)

// Metrics exposes protocol counters for Prometheus.
type Metrics struct {
	framesSent      *prometheus.CounterVec
	framesDelivered *prometheus.CounterVec
	framesDropped   *prometheus.CounterVec
	routeChanges    *prometheus.CounterVec
	routeCost       *prometheus.GaugeVec
	battery         *prometheus.GaugeVec
	events          *prometheus.CounterVec
	windows         prometheus.Counter
	trainArrivals   prometheus.Counter
	sectionFaulty   *prometheus.GaugeVec
	faultedSections prometheus.Gauge
	trainsActive    prometheus.Gauge
	simTime         prometheus.Gauge
	writeErrors     prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which keeps tests independent.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "railwsn", Subsystem: "radio", Name: "frames_sent_total",
			Help: "Frames put on the air, by channel.",
		}, []string{"channel"}),
		framesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "railwsn", Subsystem: "radio", Name: "frames_delivered_total",
			Help: "Frame receptions, by channel.",
		}, []string{"channel"}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "railwsn", Subsystem: "radio", Name: "frames_dropped_total",
			Help: "Frames lost before reception, by channel and reason.",
		}, []string{"channel", "reason"}),
		routeChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "railwsn", Subsystem: "route", Name: "next_hop_changes_total",
			Help: "Next hop switches, by mote.",
		}, []string{"mote"}),
		routeCost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "railwsn", Subsystem: "route", Name: "cost",
			Help: "Last advertised path cost, by mote.",
		}, []string{"mote"}),
		battery: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "railwsn", Subsystem: "route", Name: "battery_percent",
			Help: "Last advertised battery level, by mote.",
		}, []string{"mote"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "railwsn", Subsystem: "vibration", Name: "events_total",
			Help: "Vibration event handlings, by action.",
		}, []string{"action"}),
		windows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "railwsn", Subsystem: "gateway", Name: "windows_total",
			Help: "Closed aggregation windows.",
		}),
		trainArrivals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "railwsn", Subsystem: "gateway", Name: "train_arrivals_total",
			Help: "Windows that reported a train arrival.",
		}),
		sectionFaulty: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "railwsn", Subsystem: "gateway", Name: "section_faulty",
			Help: "1 when the last window flagged the section as faulty.",
		}, []string{"section"}),
		faultedSections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "railwsn", Subsystem: "gateway", Name: "faulted_sections",
			Help: "Faulty sections in the last window.",
		}),
		trainsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "railwsn", Subsystem: "track", Name: "trains",
			Help: "Trains on the track.",
		}),
		simTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "railwsn", Subsystem: "sim", Name: "time_seconds",
			Help: "Virtual time since the start of the run.",
		}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "railwsn", Subsystem: "sim", Name: "write_errors_total",
			Help: "Rows a writer failed to accept.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.framesSent, m.framesDelivered, m.framesDropped, m.routeChanges, m.routeCost,
			m.battery, m.events, m.windows, m.trainArrivals, m.sectionFaulty, m.faultedSections,
			m.trainsActive, m.simTime, m.writeErrors)
	}
	return m
}

func moteLabel(id mote.NodeID) string { return strconv.Itoa(int(id)) }

func (m *Metrics) frameSent(ch wire.Channel) {
	m.framesSent.WithLabelValues(ch.String()).Inc()
}

func (m *Metrics) frameDelivered(ch wire.Channel) {
	m.framesDelivered.WithLabelValues(ch.String()).Inc()
}

func (m *Metrics) frameDropped(ch wire.Channel, reason radio.DropReason) {
	m.framesDropped.WithLabelValues(ch.String(), reason.String()).Inc()
}

func (m *Metrics) nextHopChanged(id mote.NodeID) {
	m.routeChanges.WithLabelValues(moteLabel(id)).Inc()
}

func (m *Metrics) advertised(id mote.NodeID, e mote.RouteEntry) {
	m.routeCost.WithLabelValues(moteLabel(id)).Set(float64(e.Cost))
	m.battery.WithLabelValues(moteLabel(id)).Set(float64(e.Battery))
}

func (m *Metrics) vibration(a mote.EventAction) {
	m.events.WithLabelValues(a.String()).Inc()
}

func (m *Metrics) window(r mote.WindowReport) {
	m.windows.Inc()
	if r.TrainArrival {
		m.trainArrivals.Inc()
	}
	faulted := 0
	for _, s := range r.Sections {
		v := 0.0
		if s.Faulty {
			v = 1
			faulted++
		}
		m.sectionFaulty.WithLabelValues(strconv.Itoa(s.ID)).Set(v)
	}
	m.faultedSections.Set(float64(faulted))
}
