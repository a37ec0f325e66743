package mote

import "railwsn-sim/internal/wire"

// EventAction describes what a node did with a vibration event.
type EventAction int

const (
	EventOriginated EventAction = iota
	EventForwarded
	EventDelivered
	EventDetectedLocally
	EventDropped
)

func (a EventAction) String() string {
	switch a {
	case EventOriginated:
		return "originated"
	case EventForwarded:
		return "forwarded"
	case EventDelivered:
		return "delivered"
	case EventDetectedLocally:
		return "detected_locally"
	case EventDropped:
		return "dropped"
	}
	return "unknown"
}

// RouteUpdate records one route table evaluation.
type RouteUpdate struct {
	From   NodeID
	Before RouteEntry
	After  RouteEntry
	Result UpdateResult
	// Cost is the computed path cost through From, zero for resets.
	Cost uint16
}

// Changed reports whether next hop or cost moved.
func (u RouteUpdate) Changed() bool { return u.Before != u.After }

// Observer receives protocol activity for recording. Calls happen on the
// node's execution context and must not block.
type Observer interface {
	RouteUpdated(node NodeID, u RouteUpdate)
	Advertised(node NodeID, entry RouteEntry)
	Vibration(node NodeID, ev wire.VibrationEvent, action EventAction, peer NodeID)
	WindowClosed(node NodeID, r WindowReport)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) RouteUpdated(NodeID, RouteUpdate) {}
func (NopObserver) Advertised(NodeID, RouteEntry) {}
func (NopObserver) Vibration(NodeID, wire.VibrationEvent, EventAction, NodeID) {}
func (NopObserver) WindowClosed(NodeID, WindowReport) {}
