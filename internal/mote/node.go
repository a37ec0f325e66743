package mote

import (
	"fmt"
	"log/slog"
	"time"

	"railwsn-sim/internal/wire"
)

// Node is the complete per-mote protocol context. Every exported method is a
// run-to-completion callback; the caller guarantees they never run
// concurrently for the same node.
type Node struct {
	id     NodeID
	role   Role
	params Params
	caps   Capabilities

	links   *LinkEstimator
	routes  *RouteTable
	battery *OverrideBattery
	leds    *indicatorBank

	// gateway only
	window *VibrationWindow
	avg    uint16

	obs Observer
	log *slog.Logger
}

// Option customises a Node.
type Option func(*Node)

// WithObserver attaches an activity observer.
func WithObserver(o Observer) Option {
	return func(n *Node) { n.obs = o }
}

// WithLogger sets the base logger; the node adds its own address.
func WithLogger(l *slog.Logger) Option {
	return func(n *Node) { n.log = l }
}

// New builds the node with address id. Its role follows from params.
func New(id NodeID, params Params, caps Capabilities, opts ...Option) (*Node, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if id == NoNode || int(id) > params.MoteCount {
		return nil, fmt.Errorf("%w: address %d outside 1..%d", ErrInvalidNode, id, params.MoteCount)
	}
	if caps.Sensor == nil || caps.Battery == nil || caps.Radio == nil || caps.Timers == nil {
		return nil, fmt.Errorf("%w: mote %d is missing a capability", ErrInvalidNode, id)
	}
	n := &Node{
		id:     id,
		role:   params.RoleOf(id),
		params: params,
		caps:   caps,
		links:  NewLinkEstimator(params.MoteCount, params.InitialRSSI),
		obs:    NopObserver{},
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(n)
	}
	n.log = n.log.With("mote", int(id), "role", n.role.String())
	n.leds = newIndicatorBank(caps.Indicators, caps.Timers)
	n.battery = &OverrideBattery{Battery: caps.Battery}

	if n.role == Gateway {
		if caps.Reporter == nil {
			return nil, fmt.Errorf("%w: gateway %d needs a reporter", ErrInvalidNode, id)
		}
		n.routes = NewTerminalRoute(id, params.InitialBattery)
		n.window = NewVibrationWindow(params.MoteCount)
		n.avg = params.GatewayInitialAverage
	} else {
		n.routes = NewRouteTable(params.MaxRSSI, params.CostSentinel, params.InitialBattery)
	}
	return n, nil
}

// ID returns the node address.
func (n *Node) ID() NodeID { return n.id }

// Role returns whether the node is the gateway.
func (n *Node) Role() Role { return n.role }

// Route returns the current route entry.
func (n *Node) Route() RouteEntry { return n.routes.Entry() }

// Links returns a copy of the smoothed RSSI table.
func (n *Node) Links() []int16 { return n.links.Snapshot() }

// PendingFlags returns the gateway's current window, nil on field motes.
func (n *Node) PendingFlags() []bool {
	if n.window == nil {
		return nil
	}
	return n.window.Flags()
}

// Start arms the periodic timers for the node's role.
func (n *Node) Start() {
	p := n.params
	t := n.caps.Timers
	t.Every(p.AdvertisementPeriod, p.AdvertisementJitter, n.Broadcast)
	if n.role == Gateway {
		t.Every(p.GatewaySensingPeriod, p.SensingJitter, n.Sense)
		t.Every(p.AggregationWindow, 0, func() { n.Aggregate() })
		return
	}
	t.Every(p.FieldSensingPeriod, p.SensingJitter, n.Sense)
	t.Every(p.RouteResetPeriod, 0, n.ResetRoute)
}

// HandleFrame dispatches a reception by channel.
func (n *Node) HandleFrame(f wire.Frame) {
	switch f.Channel {
	case wire.AdvertisementChannel:
		n.onAdvertisement(f)
	case wire.EventChannel:
		n.onEvent(f)
	default:
		n.log.Debug("frame on unknown channel", "channel", f.Channel, "from", f.From)
	}
}

func (n *Node) onAdvertisement(f wire.Frame) {
	from := NodeID(f.From)
	if !InScope(n.id, from) {
		n.obs.RouteUpdated(n.id, RouteUpdate{From: from, Before: n.Route(), After: n.Route(), Result: OutOfScope})
		return
	}
	if !n.links.Observe(from, f.RSSI) {
		n.log.Warn("dropping advertisement from unknown address", "from", int(from))
		return
	}
	if n.role == Gateway {
		return
	}

	var adv wire.RouteAdvertisement
	if err := adv.UnmarshalBinary(f.Payload); err != nil {
		n.log.Warn("dropping advertisement", "from", int(from), "err", err)
		return
	}
	before := n.Route()
	result, cost := n.routes.Consider(from, adv, n.links.RSSI(from))
	after := n.Route()
	n.log.Debug("advertisement",
		"from", int(from), "rssi", f.RSSI, "ewma", n.links.RSSI(from),
		"adv_cost", adv.Cost, "adv_battery", adv.Battery, "total", cost, "result", result.String())
	n.obs.RouteUpdated(n.id, RouteUpdate{From: from, Before: before, After: after, Result: result, Cost: cost})
}

func (n *Node) onEvent(f wire.Frame) {
	from := NodeID(f.From)
	if !n.links.Observe(from, f.RSSI) {
		n.log.Warn("dropping vibration event from unknown address", "from", int(from))
		return
	}

	var ev wire.VibrationEvent
	if err := ev.UnmarshalBinary(f.Payload); err != nil {
		n.log.Warn("dropping vibration event", "from", int(from), "err", err)
		return
	}
	if n.role == Gateway {
		if err := n.window.Mark(NodeID(ev.SourceID)); err != nil {
			n.log.Warn("vibration event from unknown source", "from", int(from), "err", err)
			n.obs.Vibration(n.id, ev, EventDropped, from)
			return
		}
		n.log.Debug("vibration event received", "from", int(from), "source", ev.SourceID, "value", ev.Value)
		n.leds.Blink(LEDBlue, time.Second)
		n.obs.Vibration(n.id, ev, EventDelivered, from)
		return
	}
	if n.send(ev, f.Payload) {
		n.leds.Blink(LEDGreen, time.Second)
		n.obs.Vibration(n.id, ev, EventForwarded, n.routes.NextHop())
	}
}

// send unicasts an event payload toward the current next hop.
func (n *Node) send(ev wire.VibrationEvent, payload []byte) bool {
	next := n.routes.NextHop()
	if next == NoNode {
		n.log.Info("no route toward gateway, dropping vibration event", "source", ev.SourceID)
		n.obs.Vibration(n.id, ev, EventDropped, NoNode)
		return false
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	if err := n.caps.Radio.SendUnicast(wire.EventChannel, next, out); err != nil {
		n.log.Warn("unicast failed", "to", int(next), "err", err)
		n.obs.Vibration(n.id, ev, EventDropped, next)
		return false
	}
	return true
}

// Broadcast advertises the current route entry.
func (n *Node) Broadcast() {
	n.routes.SetBattery(n.battery.ReadBattery())
	entry := n.Route()
	payload, _ := n.routes.Advertisement().MarshalBinary()
	if err := n.caps.Radio.SendBroadcast(wire.AdvertisementChannel, payload); err != nil {
		n.log.Warn("broadcast failed", "err", err)
		return
	}
	n.log.Debug("route broadcast", "next_hop", int(entry.NextHop), "cost", entry.Cost, "battery", entry.Battery)
	n.obs.Advertised(n.id, entry)
}

// Sense samples the vibration sensor once.
func (n *Node) Sense() {
	sample := n.caps.Sensor.SampleVibration()
	if n.role == Gateway {
		n.avg = uint16((uint32(n.avg) + uint32(sample)) / 2)
		if !n.params.GatewayThresholds.Tripped(n.avg) {
			return
		}
		_ = n.window.Mark(n.id)
		n.log.Debug("vibration detected", "average", n.avg)
		n.leds.Blink(LEDYellow, time.Second)
		n.obs.Vibration(n.id, wire.VibrationEvent{SourceID: uint8(n.id), Value: n.avg}, EventDetectedLocally, n.id)
		return
	}
	if !n.params.FieldThresholds.Tripped(sample) {
		return
	}
	ev := wire.VibrationEvent{SourceID: uint8(n.id), Value: sample}
	payload, _ := ev.MarshalBinary()
	n.log.Debug("vibration detected", "value", sample)
	if n.send(ev, payload) {
		// blink length encodes the address for field debugging
		n.leds.Blink(LEDBlue, time.Duration(n.id)*time.Second)
		n.obs.Vibration(n.id, ev, EventOriginated, n.routes.NextHop())
	}
}

// ResetRoute invalidates the stored cost.
func (n *Node) ResetRoute() {
	before := n.Route()
	n.routes.Reset()
	n.log.Debug("route cost reset", "next_hop", int(before.NextHop))
	n.obs.RouteUpdated(n.id, RouteUpdate{From: NoNode, Before: before, After: n.Route(), Result: CostReset})
}

// Aggregate closes the gateway's window, reports it and starts a new one.
// Field motes return an empty report.
func (n *Node) Aggregate() WindowReport {
	if n.role != Gateway {
		return WindowReport{}
	}
	r := n.window.Close()
	n.log.Info("window closed", "train_arrival", r.ArrivalValue(), "faulted", r.Faulted())
	n.caps.Reporter.Report(r)
	n.obs.WindowClosed(n.id, r)
	return r
}

// ToggleBatteryOverride is the debug button: it makes a field mote advertise
// an empty battery until pressed again. The red LED mirrors the state.
func (n *Node) ToggleBatteryOverride() (bool, error) {
	if n.role != FieldMote {
		return false, ErrNotFieldMote
	}
	active := n.battery.Toggle()
	n.leds.Set(LEDRed, active)
	n.log.Info("battery override toggled", "active", active)
	return active, nil
}

// BatteryOverride reports whether the debug override is engaged.
func (n *Node) BatteryOverride() bool { return n.battery.Active() }
