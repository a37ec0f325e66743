// Package mote implements the routing and breakage-detection protocol that
// runs on every mote of the track network. Each Node is driven by run-to-completion
// callbacks from timers and radio receptions; it never blocks and owns its state.
package mote

import (
	"errors"
	"fmt"
	"time"
)

// NodeID is a mote address on the track, 1..N.
type NodeID uint8

// NoNode marks an unknown next hop.
const NoNode NodeID = 0

// Role distinguishes the border gateway from field motes.
type Role int

const (
	FieldMote Role = iota
	Gateway
)

func (r Role) String() string {
	if r == Gateway {
		return "gateway"
	}
	return "field"
}

var (
	ErrUnknownSource = errors.New("mote: vibration source outside the window")
	ErrNotFieldMote  = errors.New("mote: operation only valid on field motes")
	ErrInvalidNode   = errors.New("mote: invalid node")
)

// RouteEntry is a node's best known route toward the gateway.
type RouteEntry struct {
	NextHop NodeID `json:"next_hop"`
	Cost    uint16 `json:"cost"`
	Battery uint16 `json:"battery"`
}

// Thresholds bound the resting band of the vibration sensor. A sample outside
// (Lower, Upper) counts as vibration.
type Thresholds struct {
	Lower uint16
	Upper uint16
}

// Tripped reports whether v lies outside the resting band.
func (t Thresholds) Tripped(v uint16) bool {
	return v > t.Upper || v < t.Lower
}

// Params holds the protocol constants shared by every mote of a network.
type Params struct {
	MoteCount   int
	GatewayAddr NodeID

	MaxRSSI        int16
	InitialRSSI    int16
	CostSentinel   uint16
	InitialBattery uint16

	AdvertisementPeriod  time.Duration
	AdvertisementJitter  time.Duration
	FieldSensingPeriod   time.Duration
	GatewaySensingPeriod time.Duration
	SensingJitter        time.Duration
	RouteResetPeriod     time.Duration
	AggregationWindow    time.Duration

	FieldThresholds       Thresholds
	GatewayThresholds     Thresholds
	GatewayInitialAverage uint16
}

// DefaultParams mirrors the values the motes were flashed with.
func DefaultParams() Params {
	return Params{
		MoteCount:             6,
		GatewayAddr:           6,
		MaxRSSI:               -35,
		InitialRSSI:           -50,
		CostSentinel:          10000,
		InitialBattery:        100,
		AdvertisementPeriod:   10 * time.Second,
		AdvertisementJitter:   100 * time.Millisecond,
		FieldSensingPeriod:    5 * time.Second,
		GatewaySensingPeriod:  time.Second,
		SensingJitter:         100 * time.Millisecond,
		RouteResetPeriod:      120 * time.Second,
		AggregationWindow:     60 * time.Second,
		FieldThresholds:       Thresholds{Lower: 500, Upper: 1800},
		GatewayThresholds:     Thresholds{Lower: 900, Upper: 1200},
		GatewayInitialAverage: 1000,
	}
}

// Validate checks that the parameters describe a usable network.
func (p Params) Validate() error {
	if p.MoteCount < 1 || p.MoteCount > 255 {
		return fmt.Errorf("%w: mote count %d", ErrInvalidNode, p.MoteCount)
	}
	if p.GatewayAddr == NoNode || int(p.GatewayAddr) > p.MoteCount {
		return fmt.Errorf("%w: gateway address %d outside 1..%d", ErrInvalidNode, p.GatewayAddr, p.MoteCount)
	}
	return nil
}

// RoleOf returns the role of addr in this network.
func (p Params) RoleOf(addr NodeID) Role {
	if addr == p.GatewayAddr {
		return Gateway
	}
	return FieldMote
}
