package prometheus

import (
	libp2pmetrics "github.com/libp2p/go-libp2p-core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// registers the gauges of the host wide traffic and returns their collect func.
func configureBandwidth(registry *prometheus.Registry, reporter libp2pmetrics.Reporter) func() {
	totalIn := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "bandwidth",
		Name:      "total_in_bytes",
		Help:      "Bytes received by the relay host.",
	})
	totalOut := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "bandwidth",
		Name:      "total_out_bytes",
		Help:      "Bytes sent by the relay host.",
	})
	rateIn := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "bandwidth",
		Name:      "rate_in_bytes_per_second",
		Help:      "Current incoming traffic of the relay host.",
	})
	rateOut := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "bandwidth",
		Name:      "rate_out_bytes_per_second",
		Help:      "Current outgoing traffic of the relay host.",
	})

	registry.MustRegister(totalIn)
	registry.MustRegister(totalOut)
	registry.MustRegister(rateIn)
	registry.MustRegister(rateOut)

	return func() {
		stats := reporter.GetBandwidthTotals()
		totalIn.Set(float64(stats.TotalIn))
		totalOut.Set(float64(stats.TotalOut))
		rateIn.Set(stats.RateIn)
		rateOut.Set(stats.RateOut)
	}
}
