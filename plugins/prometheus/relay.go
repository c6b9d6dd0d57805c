package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fusionrelay/relaynode/pkg/metrics"
)

// registers the gauges derived from the relay metrics snapshot and returns their collect func.
func configureRelay(registry *prometheus.Registry, store *metrics.RelayMetricsStore) func() {
	totalConnections := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Name:      "connections_24h",
		Help:      "Number of connections established within the last 24h.",
	})
	activeConnections := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Name:      "active_connections",
		Help:      "Number of currently connected peers.",
	})
	bytesTransferred := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Name:      "bytes_transferred_24h",
		Help:      "Bytes transferred by peers which connected within the last 24h.",
	})
	messagesRelayed := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Name:      "messages_relayed_24h",
		Help:      "Circuits relayed for peers which connected within the last 24h.",
	})
	relayAddresses := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Name:      "addresses",
		Help:      "Number of addresses the relay is reachable on.",
	})
	uptime := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Name:      "uptime_seconds",
		Help:      "Seconds since the relay started.",
	})

	registry.MustRegister(totalConnections)
	registry.MustRegister(activeConnections)
	registry.MustRegister(bytesTransferred)
	registry.MustRegister(messagesRelayed)
	registry.MustRegister(relayAddresses)
	registry.MustRegister(uptime)

	return func() {
		snapshot := store.Snapshot()

		totalConnections.Set(float64(snapshot.TotalConnections))
		activeConnections.Set(float64(snapshot.ActiveConnections))
		bytesTransferred.Set(float64(snapshot.TotalBytesTransferred24h))
		messagesRelayed.Set(float64(snapshot.TotalMessagesRelayed24h))
		relayAddresses.Set(float64(len(snapshot.RelayAddresses)))
		uptime.Set(snapshot.Uptime.Seconds())
	}
}

// registers the per peer gauges and returns their collect func.
// Peers which disconnected are removed on the next collect.
func configurePeers(registry *prometheus.Registry, store *metrics.RelayMetricsStore) func() {
	peerLabels := []string{"peer_id"}

	peersBytesSent := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "peers",
		Name:      "bytes_sent",
		Help:      "Bytes sent to the peer since it connected.",
	}, peerLabels)
	peersBytesReceived := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "peers",
		Name:      "bytes_received",
		Help:      "Bytes received from the peer since it connected.",
	}, peerLabels)
	peersMessagesRelayed := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "peers",
		Name:      "messages_relayed",
		Help:      "Circuits relayed on behalf of the peer since it connected.",
	}, peerLabels)
	peersConnectedAt := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "peers",
		Name:      "connected_at_seconds",
		Help:      "Unix time the peer connected.",
	}, peerLabels)

	registry.MustRegister(peersBytesSent)
	registry.MustRegister(peersBytesReceived)
	registry.MustRegister(peersMessagesRelayed)
	registry.MustRegister(peersConnectedAt)

	return func() {
		peersBytesSent.Reset()
		peersBytesReceived.Reset()
		peersMessagesRelayed.Reset()
		peersConnectedAt.Reset()

		for _, conn := range store.Snapshot().Connections {
			labels := prometheus.Labels{"peer_id": conn.PeerID}
			peersBytesSent.With(labels).Set(float64(conn.BytesSent))
			peersBytesReceived.With(labels).Set(float64(conn.BytesReceived))
			peersMessagesRelayed.With(labels).Set(float64(conn.MessagesRelayed))
			peersConnectedAt.With(labels).Set(float64(conn.ConnectedAt.Unix()))
		}
	}
}
