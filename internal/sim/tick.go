package sim

import (
	"railwsn-sim/internal/mote"
	"railwsn-sim/internal/scenario"
	"railwsn-sim/internal/telemetry"
	"railwsn-sim/internal/train"
)

// tick moves the trains and flushes the rows buffered since the last one.
func (s *Simulator) tick() {
	before := len(s.track.Trains)
	s.track.Step(s.cfg.Track.StepInterval.Seconds())
	if after := len(s.track.Trains); after != before {
		s.metrics.trainsActive.Set(float64(after))
		if after < before {
			s.logJournal("train", mote.NoNode, "%d train(s) left the line", before-after)
		}
	}
	s.metrics.simTime.Set(s.sched.Now().Seconds())
	s.flush()
}

// flush hands buffered route and event rows to the writer, in batch when it
// supports that.
func (s *Simulator) flush() {
	if len(s.pendingRoutes) > 0 {
		if rw, ok := s.writer.(RouteWriter); ok {
			var err error
			if bw, ok := s.writer.(batchRouteWriter); ok {
				err = bw.WriteRoutes(s.pendingRoutes)
			} else {
				for _, r := range s.pendingRoutes {
					if err = rw.WriteRoute(r); err != nil {
						break
					}
				}
			}
			s.writeFailed("routes", err)
		}
		s.pendingRoutes = nil
	}
	if len(s.pendingEvents) > 0 {
		if ew, ok := s.writer.(EventWriter); ok {
			var err error
			if bw, ok := s.writer.(batchEventWriter); ok {
				err = bw.WriteVibrations(s.pendingEvents)
			} else {
				for _, r := range s.pendingEvents {
					if err = ew.WriteVibration(r); err != nil {
						break
					}
				}
			}
			s.writeFailed("vibrations", err)
		}
		s.pendingEvents = nil
	}
}

func (s *Simulator) writeFailed(what string, err error) {
	if err == nil {
		return
	}
	s.metrics.writeErrors.Inc()
	s.log.Warn("writer failed", "rows", what, "err", err)
}

// closeWindow records a gateway report and the network counters of the
// window it closes.
func (s *Simulator) closeWindow(r mote.WindowReport) {
	s.flush()
	s.window++
	now := s.sched.Now()
	row := s.gen.StatusRow(s.params.GatewayAddr, s.window, r, now)
	s.last = &row
	s.metrics.window(r)
	if s.writer != nil {
		s.writeFailed("status", s.writer.Write(row))
	}

	state := s.counters.row(s.window)
	state.CommunicationLoss = s.cfg.Radio.CommunicationLoss
	state.Trains = len(s.track.Trains)
	state.Breaks = s.track.Breaks()
	state = s.gen.StateRow(state, now)
	if sw, ok := s.writer.(StateWriter); ok {
		s.writeFailed("state", sw.WriteState(state))
	}
	s.counters = counters{}
}

// ApplyScenario schedules every action of sc relative to the current virtual
// time. Failing actions are logged and skipped.
func (s *Simulator) ApplyScenario(sc *scenario.Scenario) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	return s.exec(func() error {
		for _, a := range sc.Actions {
			s.sched.After(a.At, func() {
				if err := s.apply(a); err != nil {
					s.log.Warn("scenario action failed", "action", a.String(), "err", err)
				}
			})
		}
		s.log.Info("scenario applied", "name", sc.Name, "actions", len(sc.Actions))
		s.logJournal("scenario", mote.NoNode, "%s: %d action(s) scheduled", sc.Name, len(sc.Actions))
		return nil
	})
}

func (s *Simulator) apply(a scenario.Action) error {
	switch a.Kind {
	case scenario.Train:
		_, err := s.dispatchTrain(a.Mote, a.Speed)
		return err
	case scenario.Break:
		return s.breakSection(a.Section)
	case scenario.Repair:
		return s.repairSection(a.Section)
	case scenario.BatteryOverride:
		_, err := s.toggleBatteryOverride(a.Mote)
		return err
	}
	return nil
}

// MoteStatus is a snapshot of one mote for display.
type MoteStatus struct {
	MoteRoute
	PositionM       float64         `json:"position_m"`
	Charge          float64         `json:"charge"`
	BatteryOverride bool            `json:"battery_override"`
	Amplitude       float64         `json:"amplitude"`
	FramesSent      int             `json:"frames_sent"`
	Links           []int16         `json:"links"`
	LEDs            map[string]bool `json:"leds"`
}

// Status is a snapshot of the whole run.
type Status struct {
	RunID      string                    `json:"run_id"`
	SimSeconds float64                   `json:"sim_s"`
	Windows    int                       `json:"windows"`
	Motes      []MoteStatus              `json:"motes"`
	Trains     []train.Train             `json:"trains"`
	Breaks     []int                     `json:"breaks"`
	Pending    []bool                    `json:"pending_flags"`
	Last       *telemetry.TrackStatusRow `json:"last_report,omitempty"`
}

// Status returns a consistent snapshot of the network and track.
func (s *Simulator) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		RunID:      s.gen.RunID,
		SimSeconds: s.sched.Now().Seconds(),
		Windows:    s.window,
		Trains:     s.track.Snapshot(),
		Breaks:     s.track.Breaks(),
	}
	if s.last != nil {
		last := *s.last
		st.Last = &last
	}
	for _, r := range s.rigs {
		id := r.node.ID()
		e := r.node.Route()
		lights := make(map[string]bool, len(r.leds))
		for led, on := range r.leds {
			lights[led.String()] = on
		}
		ms := MoteStatus{
			MoteRoute: MoteRoute{
				ID:      int(id),
				Role:    r.node.Role().String(),
				NextHop: int(e.NextHop),
				Cost:    int(e.Cost),
				Battery: int(e.Battery),
			},
			PositionM:       s.medium.Position(id),
			Charge:          r.cell.Level(),
			BatteryOverride: r.node.BatteryOverride(),
			Amplitude:       s.track.MoteAmplitude(int(id)),
			FramesSent:      r.radio.Sent(),
			Links:           r.node.Links(),
			LEDs:            lights,
		}
		if r.node.Role() == mote.Gateway {
			st.Pending = r.node.PendingFlags()
		}
		st.Motes = append(st.Motes, ms)
	}
	return st
}
