package sim

import (
	"fmt"
	"time"

	"railwsn-sim/internal/mote"
	"railwsn-sim/internal/radio"
	"railwsn-sim/internal/telemetry"
	"railwsn-sim/internal/wire"
)

const journalSize = 512

// JournalEntry is one notable thing that happened during the run.
type JournalEntry struct {
	Timestamp  time.Time `json:"ts"`
	SimSeconds float64   `json:"sim_s"`
	Type       string    `json:"type"`
	Mote       int       `json:"mote,omitempty"`
	Details    string    `json:"details"`
}

// Journal returns a copy of the recent journal, oldest first.
func (s *Simulator) Journal() []JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JournalEntry, len(s.journal))
	copy(out, s.journal)
	return out
}

func (s *Simulator) logJournal(typ string, id mote.NodeID, format string, args ...any) {
	now := s.sched.Now()
	e := JournalEntry{
		Timestamp:  s.gen.Start.Add(now),
		SimSeconds: now.Seconds(),
		Type:       typ,
		Mote:       int(id),
		Details:    fmt.Sprintf(format, args...),
	}
	if len(s.journal) == journalSize {
		copy(s.journal, s.journal[1:])
		s.journal = s.journal[:journalSize-1]
	}
	s.journal = append(s.journal, e)
}

// counters accumulate over one aggregation window.
type counters struct {
	framesSent       int
	framesDelivered  int
	framesDropped    int
	eventsOriginated int
	eventsDelivered  int
	eventsDropped    int
	routeChanges     int
}

// observer turns protocol and radio callbacks into rows, metrics and journal
// entries. It runs on the scheduler loop with the simulator lock held.
type observer struct {
	s *Simulator
}

var (
	_ mote.Observer       = observer{}
	_ radio.FrameObserver = observer{}
	_ mote.Reporter       = observer{}
)

func (o observer) RouteUpdated(id mote.NodeID, u mote.RouteUpdate) {
	s := o.s
	if u.Result == mote.OutOfScope {
		return
	}
	s.pendingRoutes = append(s.pendingRoutes, s.gen.RouteRow(id, u, s.sched.Now()))
	if u.Before.NextHop != u.After.NextHop {
		s.counters.routeChanges++
		s.metrics.nextHopChanged(id)
		s.logJournal("route", id, "next hop %d -> %d via %d, cost %d", u.Before.NextHop, u.After.NextHop, u.From, u.After.Cost)
	}
}

func (o observer) Advertised(id mote.NodeID, e mote.RouteEntry) {
	s := o.s
	s.pendingRoutes = append(s.pendingRoutes, s.gen.AdvertisementRow(id, e, s.sched.Now()))
	s.metrics.advertised(id, e)
}

func (o observer) Vibration(id mote.NodeID, ev wire.VibrationEvent, action mote.EventAction, peer mote.NodeID) {
	s := o.s
	s.pendingEvents = append(s.pendingEvents, s.gen.VibrationRow(id, ev, action, peer, s.sched.Now()))
	s.metrics.vibration(action)
	switch action {
	case mote.EventOriginated, mote.EventDetectedLocally:
		s.counters.eventsOriginated++
		s.logJournal("vibration", id, "detected value %d", ev.Value)
	case mote.EventDelivered:
		s.counters.eventsDelivered++
	case mote.EventDropped:
		s.counters.eventsDropped++
		s.logJournal("drop", id, "event from mote %d dropped toward %d", ev.SourceID, peer)
	}
}

func (o observer) WindowClosed(id mote.NodeID, r mote.WindowReport) {
	faulted := r.Faulted()
	if len(faulted) > 0 {
		o.s.logJournal("window", id, "train arrival %d, faulted sections %v", r.ArrivalValue(), faulted)
		return
	}
	o.s.logJournal("window", id, "train arrival %d, track healthy", r.ArrivalValue())
}

// Report is the gateway's serial link.
func (o observer) Report(r mote.WindowReport) {
	o.s.closeWindow(r)
}

func (o observer) FrameSent(from mote.NodeID, ch wire.Channel, to mote.NodeID) {
	o.s.counters.framesSent++
	o.s.metrics.frameSent(ch)
}

func (o observer) FrameDelivered(f wire.Frame) {
	o.s.counters.framesDelivered++
	o.s.metrics.frameDelivered(f.Channel)
}

func (o observer) FrameDropped(from, to mote.NodeID, ch wire.Channel, reason radio.DropReason) {
	o.s.counters.framesDropped++
	o.s.metrics.frameDropped(ch, reason)
}

func (c counters) row(window int) telemetry.NetworkStateRow {
	return telemetry.NetworkStateRow{
		Window:           window,
		FramesSent:       c.framesSent,
		FramesDelivered:  c.framesDelivered,
		FramesDropped:    c.framesDropped,
		EventsOriginated: c.eventsOriginated,
		EventsDelivered:  c.eventsDelivered,
		EventsDropped:    c.eventsDropped,
		RouteChanges:     c.routeChanges,
	}
}
