package dashboard

import (
	"time"

	"github.com/fusionrelay/relaynode/pkg/metrics"
)

// uptime is serialized as whole seconds plus the sub-second remainder.
type uptime struct {
	Secs  uint64 `json:"secs"`
	Nanos uint32 `json:"nanos"`
}

func newUptime(d time.Duration) uptime {
	if d < 0 {
		d = 0
	}
	return uptime{
		Secs:  uint64(d / time.Second),
		Nanos: uint32(d % time.Second),
	}
}

// connectionResponse defines the response of a GET /api/connections/{peerID} REST API call
// and the elements of the connections in a metricsResponse.
type connectionResponse struct {
	PeerID          string    `json:"peer_id"`
	ConnectedAt     time.Time `json:"connected_at"`
	BytesSent       uint64    `json:"bytes_sent"`
	BytesReceived   uint64    `json:"bytes_received"`
	MessagesRelayed uint64    `json:"messages_relayed"`
}

// metricsResponse defines the response of a GET /api/metrics REST API call.
// The live feed pushes the same payload.
type metricsResponse struct {
	TotalConnections         uint64                `json:"total_connections"`
	ActiveConnections        uint64                `json:"active_connections"`
	TotalBytesTransferred24h uint64                `json:"total_bytes_transferred_24h"`
	TotalMessagesRelayed24h  uint64                `json:"total_messages_relayed_24h"`
	RelayAddresses           []string              `json:"relay_addresses"`
	Uptime                   uptime                `json:"uptime"`
	Connections              []*connectionResponse `json:"connections"`
}

func newConnectionResponse(conn metrics.PeerConnection) *connectionResponse {
	return &connectionResponse{
		PeerID:          conn.PeerID,
		ConnectedAt:     conn.ConnectedAt.UTC(),
		BytesSent:       conn.BytesSent,
		BytesReceived:   conn.BytesReceived,
		MessagesRelayed: conn.MessagesRelayed,
	}
}

func newMetricsResponse(snapshot *metrics.RelayMetrics) *metricsResponse {
	connections := make([]*connectionResponse, 0, len(snapshot.Connections))
	for _, conn := range snapshot.Connections {
		connections = append(connections, newConnectionResponse(conn))
	}

	return &metricsResponse{
		TotalConnections:         snapshot.TotalConnections,
		ActiveConnections:        snapshot.ActiveConnections,
		TotalBytesTransferred24h: snapshot.TotalBytesTransferred24h,
		TotalMessagesRelayed24h:  snapshot.TotalMessagesRelayed24h,
		RelayAddresses:           snapshot.RelayAddresses,
		Uptime:                   newUptime(snapshot.Uptime),
		Connections:              connections,
	}
}
