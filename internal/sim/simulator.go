// Simulator wiring a line of motes to the radio medium, the track and writers
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"railwsn-sim/internal/config"
	"railwsn-sim/internal/mote"
	"railwsn-sim/internal/radio"
	"railwsn-sim/internal/sched"
	"railwsn-sim/internal/telemetry"
	"railwsn-sim/internal/train"
	"railwsn-sim/internal/wire"
)

var (
	ErrUnknownMote = errors.New("sim: unknown mote")
	ErrRunning     = errors.New("sim: already running")
	ErrStopped     = errors.New("sim: stopped")
)

// StatusWriter receives one row per closed aggregation window.
type StatusWriter interface {
	Write(telemetry.TrackStatusRow) error
}

// Optional: Writers can also support batch mode
type batchWriter interface {
	WriteBatch([]telemetry.TrackStatusRow) error
}

// Writer is implemented by sinks that accept every row kind.
type Writer interface {
	StatusWriter
	EventWriter
	RouteWriter
	StateWriter
}

// rig is one mote with its simulated hardware.
type rig struct {
	node   *mote.Node
	radio  *radio.Endpoint
	sensor *vibrationSensor
	cell   *cell
	leds   leds
}

// Simulator runs a deployment on a virtual clock. Everything it owns is
// mutated on the scheduler loop with mu held.
type Simulator struct {
	mu     sync.Mutex
	cfg    *config.Config
	params mote.Params
	sched  *sched.Scheduler
	medium *radio.Medium
	track  *train.Engine
	rigs   []*rig // index = address-1
	gen    *telemetry.Generator

	writer  StatusWriter
	metrics *Metrics
	log     *slog.Logger

	started       bool
	window        int
	last          *telemetry.TrackStatusRow
	counters      counters
	pendingRoutes []telemetry.RouteRow
	pendingEvents []telemetry.VibrationRow
	journal       []JournalEntry

	// ctl guards loop, which is non-nil while Run drives the scheduler.
	ctl  sync.Mutex
	loop chan struct{}
}

// Option customises a Simulator.
type Option func(*Simulator)

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.log = l }
}

// WithMetrics records into m instead of an unregistered set.
func WithMetrics(m *Metrics) Option {
	return func(s *Simulator) { s.metrics = m }
}

// WithGenerator sets the run ID and wall clock origin of emitted rows.
func WithGenerator(g *telemetry.Generator) Option {
	return func(s *Simulator) { s.gen = g }
}

// NewSimulator builds the motes described by cfg. writer may also implement
// EventWriter, RouteWriter and StateWriter to receive those rows.
func NewSimulator(cfg *config.Config, writer StatusWriter, opts ...Option) (*Simulator, error) {
	params := cfg.Params()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	s := &Simulator{
		cfg:    cfg,
		params: params,
		writer: writer,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	if s.gen == nil {
		s.gen = telemetry.NewGenerator("", time.Now())
	}
	s.sched = sched.New(sched.WithSeed(cfg.Seed), sched.WithLocker(&s.mu))
	obs := observer{s: s}
	s.medium = radio.NewMedium(cfg.Radio, s.sched, rand.New(rand.NewSource(cfg.Seed+1)), s.log)
	s.medium.Observe(obs)
	s.track = train.NewEngine(train.Config{
		Motes:            params.MoteCount,
		SpacingM:         cfg.Radio.SpacingM,
		VibrationRadiusM: cfg.Track.VibrationRadiusM,
		TrainLengthM:     cfg.Track.TrainLengthM,
	})

	rng := rand.New(rand.NewSource(cfg.Seed + 2))
	for i := 1; i <= params.MoteCount; i++ {
		id := mote.NodeID(i)
		r := &rig{leds: leds{}}
		r.radio = s.medium.Attach(id, func(f wire.Frame) { r.node.HandleFrame(f) })
		r.sensor = &vibrationSensor{
			cfg:       cfg.Sensor,
			amplitude: func() float64 { return s.track.MoteAmplitude(i) },
			rng:       rng,
		}
		r.cell = &cell{
			initial: float64(params.InitialBattery),
			cfg:     cfg.Battery,
			now:     s.sched.Now,
			sent:    r.radio.Sent,
		}
		caps := mote.Capabilities{
			Sensor:     r.sensor,
			Battery:    r.cell,
			Radio:      r.radio,
			Indicators: r.leds,
			Timers:     timers{s: s.sched},
			Reporter:   obs,
		}
		node, err := mote.New(id, params, caps, mote.WithObserver(obs), mote.WithLogger(s.log))
		if err != nil {
			return nil, fmt.Errorf("build mote %d: %w", i, err)
		}
		r.node = node
		s.rigs = append(s.rigs, r)
	}
	return s, nil
}

// RunID identifies the rows of this run.
func (s *Simulator) RunID() string { return s.gen.RunID }

// Config returns the deployment configuration.
func (s *Simulator) Config() *config.Config { return s.cfg }

// start arms every mote and the track tick once. Callers hold mu.
func (s *Simulator) start() {
	if s.started {
		return
	}
	s.started = true
	for _, r := range s.rigs {
		r.node.Start()
	}
	s.sched.Every(s.cfg.Track.StepInterval, 0, s.tick)
	s.log.Info("network started", "motes", s.params.MoteCount, "gateway", int(s.params.GatewayAddr), "run_id", s.gen.RunID)
}

func (s *Simulator) rig(id int) (*rig, error) {
	if id < 1 || id > len(s.rigs) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMote, id)
	}
	return s.rigs[id-1], nil
}

// exec runs fn on the scheduler loop when Run is active and directly under
// the lock otherwise.
func (s *Simulator) exec(fn func() error) error {
	s.ctl.Lock()
	if s.loop == nil {
		defer s.ctl.Unlock()
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn()
	}
	loop := s.loop
	s.ctl.Unlock()

	res := make(chan error, 1)
	s.sched.Post(func() { res <- fn() })
	select {
	case err := <-res:
		return err
	case <-loop:
		return ErrStopped
	}
}

// Now returns the virtual time since the start of the run.
func (s *Simulator) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Now()
}

// MoteRoute is one mote's routing state.
type MoteRoute struct {
	ID      int    `json:"id"`
	Role    string `json:"role"`
	NextHop int    `json:"next_hop"`
	Cost    int    `json:"cost"`
	Battery int    `json:"battery"`
}

// Routes returns every mote's current route entry.
func (s *Simulator) Routes() []MoteRoute {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MoteRoute, len(s.rigs))
	for i, r := range s.rigs {
		e := r.node.Route()
		out[i] = MoteRoute{
			ID:      int(r.node.ID()),
			Role:    r.node.Role().String(),
			NextHop: int(e.NextHop),
			Cost:    int(e.Cost),
			Battery: int(e.Battery),
		}
	}
	return out
}

// LastReport returns the most recent window, if one has closed.
func (s *Simulator) LastReport() (telemetry.TrackStatusRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return telemetry.TrackStatusRow{}, false
	}
	return *s.last, true
}

// ToggleBatteryOverride presses the debug button on mote id and returns the
// new override state.
func (s *Simulator) ToggleBatteryOverride(id int) (bool, error) {
	var active bool
	err := s.exec(func() error {
		var err error
		active, err = s.toggleBatteryOverride(id)
		return err
	})
	return active, err
}

func (s *Simulator) toggleBatteryOverride(id int) (bool, error) {
	r, err := s.rig(id)
	if err != nil {
		return false, err
	}
	active, err := r.node.ToggleBatteryOverride()
	if err != nil {
		return false, fmt.Errorf("mote %d: %w", id, err)
	}
	s.logJournal("operator", r.node.ID(), "battery override %t", active)
	return active, nil
}

// BreakSection breaks the rail between motes k and k+1.
func (s *Simulator) BreakSection(k int) error {
	return s.exec(func() error { return s.breakSection(k) })
}

func (s *Simulator) breakSection(k int) error {
	if err := s.track.Break(k); err != nil {
		return err
	}
	s.log.Info("rail broken", "section", k)
	s.logJournal("operator", mote.NoNode, "rail broken in section %d", k)
	return nil
}

// RepairSection repairs the rail between motes k and k+1.
func (s *Simulator) RepairSection(k int) error {
	return s.exec(func() error { return s.repairSection(k) })
}

func (s *Simulator) repairSection(k int) error {
	if err := s.track.Repair(k); err != nil {
		return err
	}
	s.log.Info("rail repaired", "section", k)
	s.logJournal("operator", mote.NoNode, "rail repaired in section %d", k)
	return nil
}

// DispatchTrain puts a train on the line at mote from, or at the far end when
// from is 0. A speed of zero uses the configured train speed.
func (s *Simulator) DispatchTrain(from int, speed float64) (train.Train, error) {
	var t train.Train
	err := s.exec(func() error {
		var err error
		t, err = s.dispatchTrain(from, speed)
		return err
	})
	return t, err
}

func (s *Simulator) dispatchTrain(from int, speed float64) (train.Train, error) {
	if from == 0 {
		from = s.params.MoteCount
	}
	if speed == 0 {
		speed = s.cfg.Track.TrainSpeedMPS
	}
	t, err := s.track.Dispatch(from, speed)
	if err != nil {
		return train.Train{}, err
	}
	s.metrics.trainsActive.Set(float64(len(s.track.Trains)))
	s.log.Info("train dispatched", "train", t.ID, "from", from, "direction", t.Direction.String(), "speed_mps", speed)
	s.logJournal("train", mote.NodeID(from), "train %s dispatched %s at %.1f m/s", t.ID[:8], t.Direction, speed)
	return *t, nil
}

// Run drives the network until ctx is done, speed times faster than real
// time; speed <= 0 runs as fast as possible.
func (s *Simulator) Run(ctx context.Context, speed float64) error {
	return s.RunUntil(ctx, speed, 0)
}

// RunUntil is Run with a virtual time limit; zero means no limit.
func (s *Simulator) RunUntil(ctx context.Context, speed float64, limit time.Duration) error {
	s.ctl.Lock()
	if s.loop != nil {
		s.ctl.Unlock()
		return ErrRunning
	}
	loop := make(chan struct{})
	s.loop = loop
	s.ctl.Unlock()
	defer func() {
		s.ctl.Lock()
		close(loop)
		s.loop = nil
		s.ctl.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	reached := false
	s.mu.Lock()
	s.start()
	if limit > 0 {
		s.sched.After(limit-s.sched.Now(), func() {
			reached = true
			cancel()
		})
	}
	s.mu.Unlock()

	s.log.Info("simulation running", "speed", speed, "limit", limit)
	err := s.sched.Run(ctx, speed)
	if reached {
		// the rest of the work due at the limit
		s.sched.RunUntil(limit)
	}
	s.mu.Lock()
	s.flush()
	s.mu.Unlock()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.log.Info("simulation stopped", "sim_time", s.Now())
		return nil
	}
	return err
}

// RunFor advances the network by d as fast as possible. It must not be
// called while Run is active.
func (s *Simulator) RunFor(d time.Duration) error {
	s.ctl.Lock()
	defer s.ctl.Unlock()
	if s.loop != nil {
		return ErrRunning
	}
	s.mu.Lock()
	s.start()
	s.mu.Unlock()
	s.sched.RunFor(d)
	s.mu.Lock()
	s.flush()
	s.mu.Unlock()
	return nil
}
