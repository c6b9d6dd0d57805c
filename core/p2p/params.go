package p2p

import (
	"time"

	flag "github.com/spf13/pflag"

	"github.com/fusionrelay/relaynode/pkg/node"
)

const (
	// Defines the bind addresses of the relay.
	CfgP2PBindMultiAddresses = "p2p.bindMultiAddresses"
	// Defines the high watermark to use within the connection manager.
	CfgP2PConnMngHighWatermark = "p2p.connectionManager.highWatermark"
	// Defines the low watermark to use within the connection manager.
	CfgP2PConnMngLowWatermark = "p2p.connectionManager.lowWatermark"
	// Defines the private key used to derive the relay identity (optional).
	CfgP2PIdentityPrivKey = "p2p.identityPrivateKey"
	// Defines the path to the p2p database.
	CfgP2PDatabasePath = "p2p.db.path"
	// Defines the amount of events buffered between the relay engine and the event dispatcher.
	CfgRelayEventBufferSize = "relay.eventBufferSize"
	// Defines the maximum amount of concurrent reservations on the relay.
	CfgRelayMaxReservations = "relay.maxReservations"
	// Defines the maximum amount of concurrently relayed circuits.
	CfgRelayMaxCircuits = "relay.maxCircuits"
	// Defines how long a reservation is valid.
	CfgRelayReservationTTL = "relay.reservationTTL"
	// Defines the peers allowed to reserve a slot on the relay, everyone is allowed if empty.
	CfgRelayAllowedPeers = "relay.allowedPeers"
)

var params = &node.PluginParams{
	Params: map[string]*flag.FlagSet{
		"nodeConfig": func() *flag.FlagSet {
			fs := flag.NewFlagSet("", flag.ContinueOnError)
			fs.StringSlice(CfgP2PBindMultiAddresses, []string{
				"/ip4/0.0.0.0/tcp/3000",
				"/ip6/::/tcp/3000",
				"/ip4/0.0.0.0/tcp/3001/ws",
				"/ip6/::/tcp/3001/ws",
			}, "the bind addresses of the relay")
			fs.Int(CfgP2PConnMngHighWatermark, 512, "the threshold up on which connections count truncates to the lower watermark")
			fs.Int(CfgP2PConnMngLowWatermark, 256, "the minimum connections count to hold after the high watermark was reached")
			fs.String(CfgP2PIdentityPrivKey, "", "private key used to derive the relay identity (optional)")
			fs.String(CfgP2PDatabasePath, "p2pstore", "the path to the p2p database")
			fs.Int(CfgRelayEventBufferSize, 1024, "the amount of events buffered between the relay engine and the event dispatcher")
			fs.Int(CfgRelayMaxReservations, 128, "the maximum amount of concurrent reservations on the relay")
			fs.Int(CfgRelayMaxCircuits, 16, "the maximum amount of concurrently relayed circuits per peer")
			fs.Duration(CfgRelayReservationTTL, time.Hour, "how long a reservation is valid")
			fs.StringSlice(CfgRelayAllowedPeers, []string{}, "the peers allowed to reserve a slot on the relay, everyone is allowed if empty")
			return fs
		}(),
	},
	Masked: []string{CfgP2PIdentityPrivKey},
}
