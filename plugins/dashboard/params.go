package dashboard

import (
	"time"

	flag "github.com/spf13/pflag"

	"github.com/fusionrelay/relaynode/pkg/node"
)

const (
	// the bind address on which the dashboard can be accessed from
	CfgDashboardBindAddress = "dashboard.bindAddress"
	// how often the live feed pushes the metrics to websocket clients
	CfgDashboardLiveFeedInterval = "dashboard.liveFeedInterval"
	// whether the debug logging for requests should be enabled
	CfgDashboardDebugRequestLoggerEnabled = "dashboard.debugRequestLoggerEnabled"
)

var params = &node.PluginParams{
	Params: map[string]*flag.FlagSet{
		"nodeConfig": func() *flag.FlagSet {
			fs := flag.NewFlagSet("", flag.ContinueOnError)
			fs.String(CfgDashboardBindAddress, "0.0.0.0:8080", "the bind address on which the dashboard can be accessed from")
			fs.Duration(CfgDashboardLiveFeedInterval, 2*time.Second, "how often the live feed pushes the metrics to websocket clients")
			fs.Bool(CfgDashboardDebugRequestLoggerEnabled, false, "whether the debug logging for requests should be enabled")
			return fs
		}(),
	},
}
