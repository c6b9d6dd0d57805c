package metrics

import (
	"go.uber.org/atomic"
)

// ServerMetrics defines metrics over the entire runtime of the relay event processing.
type ServerMetrics struct {
	// The number of events received from the relay engine.
	Events atomic.Uint64
	// The number of events which resulted in a store mutation or engine command.
	DispatchedEvents atomic.Uint64
	// The number of events without a handler.
	IgnoredEvents atomic.Uint64
	// The number of accepted reservations (including renewals).
	AcceptedReservations atomic.Uint64
	// The number of denied reservations.
	DeniedReservations atomic.Uint64
	// The number of accepted circuits.
	AcceptedCircuits atomic.Uint64
	// The number of denied circuits.
	DeniedCircuits atomic.Uint64
	// The number of addresses observed for the relay by remote peers.
	ObservedAddresses atomic.Uint64
}
