package sim

import "railwsn-sim/internal/telemetry"

// RouteWriter handles route table rows.
type RouteWriter interface {
	WriteRoute(telemetry.RouteRow) error
}

// Optional: route writers may support batch mode.
type batchRouteWriter interface {
	WriteRoutes([]telemetry.RouteRow) error
}
