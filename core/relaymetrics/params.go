package relaymetrics

import (
	"time"

	flag "github.com/spf13/pflag"

	"github.com/fusionrelay/relaynode/pkg/node"
)

const (
	// Defines how often the traffic per peer is sampled.
	CfgRelayBandwidthSampleInterval = "relay.bandwidthSampleInterval"
	// Defines whether connection history entries older than the metrics window are dropped.
	CfgRelayPruneHistory = "relay.pruneHistory"
)

var params = &node.PluginParams{
	Params: map[string]*flag.FlagSet{
		"nodeConfig": func() *flag.FlagSet {
			fs := flag.NewFlagSet("", flag.ContinueOnError)
			fs.Duration(CfgRelayBandwidthSampleInterval, 5*time.Second, "how often the traffic per peer is sampled")
			fs.Bool(CfgRelayPruneHistory, true, "whether connection history entries older than the metrics window are dropped")
			return fs
		}(),
	},
}
