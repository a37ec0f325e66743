// Package radio simulates the shared 802.15.4 channel the motes talk over.
// Delivery is best effort: frames are attenuated by distance, may be lost,
// and arrive after a short airtime as scheduler tasks.
package radio

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"math/rand"
	"slices"
	"time"

	"railwsn-sim/internal/mote"
	"railwsn-sim/internal/sched"
	"railwsn-sim/internal/wire"
)

var ErrNotAttached = errors.New("radio: endpoint not attached")

// Config describes the propagation model.
type Config struct {
	Channel           int           `yaml:"channel" toml:"channel" json:"channel"`
	TxPowerDBm        float64       `yaml:"tx_power_dbm" toml:"tx_power_dbm" json:"tx_power_dbm"`
	ReferenceLossDB   float64       `yaml:"reference_loss_db" toml:"reference_loss_db" json:"reference_loss_db"`
	PathLossExponent  float64       `yaml:"path_loss_exponent" toml:"path_loss_exponent" json:"path_loss_exponent"`
	ShadowingSigmaDB  float64       `yaml:"shadowing_sigma_db" toml:"shadowing_sigma_db" json:"shadowing_sigma_db"`
	SensitivityDBm    float64       `yaml:"sensitivity_dbm" toml:"sensitivity_dbm" json:"sensitivity_dbm"`
	SpacingM          float64       `yaml:"spacing_m" toml:"spacing_m" json:"spacing_m"`
	Airtime           time.Duration `yaml:"airtime" toml:"airtime" json:"airtime"`
	CommunicationLoss float64       `yaml:"communication_loss" toml:"communication_loss" json:"communication_loss"`
}

// DefaultConfig matches the lab deployment: channel 16 at -24 dBm with motes
// ten metres apart.
func DefaultConfig() Config {
	return Config{
		Channel:           16,
		TxPowerDBm:        -24,
		ReferenceLossDB:   40,
		PathLossExponent:  2.0,
		ShadowingSigmaDB:  2,
		SensitivityDBm:    -97,
		SpacingM:          10,
		Airtime:           4 * time.Millisecond,
		CommunicationLoss: 0.02,
	}
}

// DropReason says why a frame never reached a receiver.
type DropReason int

const (
	OutOfRange DropReason = iota
	ChannelLoss
	UnknownDestination
)

func (r DropReason) String() string {
	switch r {
	case OutOfRange:
		return "out_of_range"
	case ChannelLoss:
		return "channel_loss"
	case UnknownDestination:
		return "unknown_destination"
	}
	return "unknown"
}

// FrameObserver is told about every transmission attempt.
type FrameObserver interface {
	FrameSent(from mote.NodeID, ch wire.Channel, to mote.NodeID)
	FrameDelivered(f wire.Frame)
	FrameDropped(from, to mote.NodeID, ch wire.Channel, reason DropReason)
}

// Handler receives frames on the scheduler loop.
type Handler func(wire.Frame)

// Medium connects endpoints placed along the track.
type Medium struct {
	cfg       Config
	sched     *sched.Scheduler
	rng       *rand.Rand
	endpoints map[mote.NodeID]*Endpoint
	observers []FrameObserver
	log       *slog.Logger
}

func NewMedium(cfg Config, s *sched.Scheduler, rng *rand.Rand, log *slog.Logger) *Medium {
	if log == nil {
		log = slog.Default()
	}
	return &Medium{
		cfg:       cfg,
		sched:     s,
		rng:       rng,
		endpoints: make(map[mote.NodeID]*Endpoint),
		log:       log.With("component", "radio"),
	}
}

// Observe registers a frame observer.
func (m *Medium) Observe(o FrameObserver) { m.observers = append(m.observers, o) }

// Attach places a mote on the track and returns its radio.
func (m *Medium) Attach(id mote.NodeID, h Handler) *Endpoint {
	ep := &Endpoint{m: m, id: id, handler: h}
	m.endpoints[id] = ep
	return ep
}

// Position returns the distance of a mote from the start of the track.
func (m *Medium) Position(id mote.NodeID) float64 {
	return float64(int(id)-1) * m.cfg.SpacingM
}

// MeanRSSI is the expected signal strength between two motes, without
// shadowing.
func (m *Medium) MeanRSSI(from, to mote.NodeID) float64 {
	d := math.Abs(m.Position(from) - m.Position(to))
	if d < 1 {
		d = 1
	}
	return m.cfg.TxPowerDBm - (m.cfg.ReferenceLossDB + 10*m.cfg.PathLossExponent*math.Log10(d))
}

func (m *Medium) sampleRSSI(from, to mote.NodeID) float64 {
	return m.MeanRSSI(from, to) + m.rng.NormFloat64()*m.cfg.ShadowingSigmaDB
}

func (m *Medium) transmit(from *Endpoint, ch wire.Channel, to mote.NodeID, payload []byte) {
	for _, o := range m.observers {
		o.FrameSent(from.id, ch, to)
	}
	if to != mote.NoNode {
		dst, ok := m.endpoints[to]
		if !ok {
			m.dropped(from.id, to, ch, UnknownDestination)
			return
		}
		m.deliver(from, dst, ch, to, payload)
		return
	}
	// address order keeps runs reproducible for a given seed
	for _, id := range slices.Sorted(maps.Keys(m.endpoints)) {
		if id == from.id {
			continue
		}
		m.deliver(from, m.endpoints[id], ch, mote.NoNode, payload)
	}
}

func (m *Medium) deliver(from, dst *Endpoint, ch wire.Channel, to mote.NodeID, payload []byte) {
	rssi := m.sampleRSSI(from.id, dst.id)
	if rssi < m.cfg.SensitivityDBm {
		m.dropped(from.id, dst.id, ch, OutOfRange)
		return
	}
	if m.cfg.CommunicationLoss > 0 && m.rng.Float64() < m.cfg.CommunicationLoss {
		m.dropped(from.id, dst.id, ch, ChannelLoss)
		return
	}
	f := wire.Frame{
		Channel: ch,
		From:    uint8(from.id),
		To:      uint8(to),
		RSSI:    int16(math.Round(rssi)),
		Payload: append([]byte(nil), payload...),
	}
	m.sched.After(m.cfg.Airtime, func() {
		for _, o := range m.observers {
			o.FrameDelivered(f)
		}
		dst.handler(f)
	})
}

func (m *Medium) dropped(from, to mote.NodeID, ch wire.Channel, reason DropReason) {
	m.log.Debug("frame dropped", "from", int(from), "to", int(to), "channel", ch.String(), "reason", reason.String())
	for _, o := range m.observers {
		o.FrameDropped(from, to, ch, reason)
	}
}

// Endpoint is one mote's radio. It satisfies mote.Radio.
type Endpoint struct {
	m       *Medium
	id      mote.NodeID
	handler Handler
	sent    int
}

func (e *Endpoint) SendBroadcast(ch wire.Channel, payload []byte) error {
	if e.m.endpoints[e.id] != e {
		return fmt.Errorf("%w: mote %d", ErrNotAttached, e.id)
	}
	e.sent++
	e.m.transmit(e, ch, mote.NoNode, payload)
	return nil
}

func (e *Endpoint) SendUnicast(ch wire.Channel, to mote.NodeID, payload []byte) error {
	if e.m.endpoints[e.id] != e {
		return fmt.Errorf("%w: mote %d", ErrNotAttached, e.id)
	}
	e.sent++
	e.m.transmit(e, ch, to, payload)
	return nil
}

// Sent counts transmissions, used by the battery model.
func (e *Endpoint) Sent() int { return e.sent }

// Detach removes the endpoint; frames already in flight are still delivered.
func (m *Medium) Detach(id mote.NodeID) { delete(m.endpoints, id) }

var _ mote.Radio = (*Endpoint)(nil)
