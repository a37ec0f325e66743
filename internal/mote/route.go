package mote

import (
	"math"

	"railwsn-sim/internal/wire"
)

// UpdateResult says what an advertisement did to the route table.
type UpdateResult int

const (
	// Adopted switched to (or re-confirmed) the advertiser as next hop.
	Adopted UpdateResult = iota
	// Refreshed updated the cost of the current next hop without switching.
	Refreshed
	Rejected
	OutOfScope
	// Ignored is returned by the gateway's terminal entry.
	Ignored
	// CostReset marks the periodic cost invalidation.
	CostReset
)

func (r UpdateResult) String() string {
	switch r {
	case Adopted:
		return "adopted"
	case Refreshed:
		return "refreshed"
	case Rejected:
		return "rejected"
	case OutOfScope:
		return "out_of_scope"
	case Ignored:
		return "ignored"
	case CostReset:
		return "reset"
	}
	return "unknown"
}

// InScope applies the linear-track neighbour rule: an odd mote listens to
// advertisers below self+3, an even mote to advertisers up to self+3.
func InScope(self, addr NodeID) bool {
	if self%2 == 1 {
		return int(addr) < int(self)+3
	}
	return int(addr) <= int(self)+3
}

// LocalCost is the price of the hop to an advertiser. Lower is better.
func LocalCost(ewma, maxRSSI int16, battery uint16) int {
	return (int(maxRSSI) - int(ewma)) + (100 - int(battery))
}

// RouteTable holds the single route-to-gateway entry of a node.
type RouteTable struct {
	entry    RouteEntry
	maxRSSI  int16
	sentinel uint16
	terminal bool
}

// NewRouteTable starts a field mote with no next hop and a sentinel cost.
func NewRouteTable(maxRSSI int16, sentinel, battery uint16) *RouteTable {
	return &RouteTable{
		entry:    RouteEntry{NextHop: NoNode, Cost: sentinel, Battery: battery},
		maxRSSI:  maxRSSI,
		sentinel: sentinel,
	}
}

// NewTerminalRoute is the gateway's fixed "self is destination" entry.
func NewTerminalRoute(self NodeID, battery uint16) *RouteTable {
	return &RouteTable{
		entry:    RouteEntry{NextHop: self, Cost: 0, Battery: battery},
		terminal: true,
	}
}

// Entry returns the current route.
func (r *RouteTable) Entry() RouteEntry { return r.entry }

// NextHop returns where events should be sent.
func (r *RouteTable) NextHop() NodeID { return r.entry.NextHop }

// Consider evaluates an in-scope advertisement received from a neighbour whose
// smoothed RSSI is ewma. It returns the outcome and the computed path cost.
func (r *RouteTable) Consider(from NodeID, adv wire.RouteAdvertisement, ewma int16) (UpdateResult, uint16) {
	if r.terminal {
		return Ignored, r.entry.Cost
	}
	total := clampCost(int(adv.Cost) + LocalCost(ewma, r.maxRSSI, adv.Battery))
	switch {
	case total <= r.entry.Cost:
		r.entry.NextHop = from
		r.entry.Cost = total
		return Adopted, total
	case from == r.entry.NextHop:
		// keep following the current path even when it got worse
		r.entry.Cost = total
		return Refreshed, total
	default:
		return Rejected, total
	}
}

// Reset invalidates the stored cost so the next advertisements re-converge
// the route. The next hop is kept.
func (r *RouteTable) Reset() {
	if r.terminal {
		return
	}
	r.entry.Cost = r.sentinel
}

// SetBattery records the battery level advertised by this node.
func (r *RouteTable) SetBattery(b uint16) { r.entry.Battery = b }

// Advertisement serializes the entry for broadcast.
func (r *RouteTable) Advertisement() wire.RouteAdvertisement {
	return wire.RouteAdvertisement{
		NextHop: uint8(r.entry.NextHop),
		Cost:    r.entry.Cost,
		Battery: r.entry.Battery,
	}
}

func clampCost(c int) uint16 {
	if c < 0 {
		return 0
	}
	if c > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(c)
}
