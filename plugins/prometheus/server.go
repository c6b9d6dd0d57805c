package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fusionrelay/relaynode/pkg/metrics"
)

// registers the gauges of the event processing counters and returns their collect func.
func configureServer(registry *prometheus.Registry, serverMetrics *metrics.ServerMetrics) func() {
	newGauge := func(name string, help string) prometheus.Gauge {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relay",
			Subsystem: "server",
			Name:      name,
			Help:      help,
		})
		registry.MustRegister(gauge)
		return gauge
	}

	events := newGauge("events", "Number of events received from the relay engine.")
	dispatchedEvents := newGauge("dispatched_events", "Number of events which resulted in a metrics update.")
	ignoredEvents := newGauge("ignored_events", "Number of events without a handler.")
	acceptedReservations := newGauge("accepted_reservations", "Number of accepted reservations including renewals.")
	deniedReservations := newGauge("denied_reservations", "Number of denied reservations.")
	acceptedCircuits := newGauge("accepted_circuits", "Number of accepted circuits.")
	deniedCircuits := newGauge("denied_circuits", "Number of denied circuits.")
	observedAddresses := newGauge("observed_addresses", "Number of addresses observed for the relay by remote peers.")

	return func() {
		events.Set(float64(serverMetrics.Events.Load()))
		dispatchedEvents.Set(float64(serverMetrics.DispatchedEvents.Load()))
		ignoredEvents.Set(float64(serverMetrics.IgnoredEvents.Load()))
		acceptedReservations.Set(float64(serverMetrics.AcceptedReservations.Load()))
		deniedReservations.Set(float64(serverMetrics.DeniedReservations.Load()))
		acceptedCircuits.Set(float64(serverMetrics.AcceptedCircuits.Load()))
		deniedCircuits.Set(float64(serverMetrics.DeniedCircuits.Load()))
		observedAddresses.Set(float64(serverMetrics.ObservedAddresses.Load()))
	}
}
