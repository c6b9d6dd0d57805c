package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fusionrelay/relaynode/core/app"
)

// registers the static app info gauge.
func configureInfo(registry *prometheus.Registry, appInfo *app.AppInfo, peerID string) {
	info := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "relay",
			Name:      "app_info",
			Help:      "Relay software name and version.",
		},
		[]string{"name", "version", "peer_id"},
	)

	info.WithLabelValues(appInfo.Name, appInfo.Version, peerID).Set(1)
	registry.MustRegister(info)
}
