package gracefulshutdown

import (
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/dig"

	"github.com/fusionrelay/relaynode/pkg/node"
	"github.com/fusionrelay/relaynode/pkg/shutdown"
	"github.com/iotaledger/hive.go/configuration"
)

const (
	// CfgNodeShutdownWaitToKillTime defines how long to wait for background workers to stop before the process is killed.
	CfgNodeShutdownWaitToKillTime = "node.shutdown.waitToKillTime"
)

func init() {
	CorePlugin = &node.CorePlugin{
		Pluggable: node.Pluggable{
			Name:      "Graceful Shutdown",
			Params:    params,
			Provide:   provide,
			DepsFunc:  func(cDeps dependencies) { deps = cDeps },
			Configure: configure,
		},
	}
}

var (
	CorePlugin *node.CorePlugin
	deps       dependencies

	params = &node.PluginParams{
		Params: map[string]*flag.FlagSet{
			"nodeConfig": func() *flag.FlagSet {
				fs := flag.NewFlagSet("", flag.ContinueOnError)
				fs.Duration(CfgNodeShutdownWaitToKillTime, 60*time.Second, "the maximum time to wait for background workers to stop before the process is killed")
				return fs
			}(),
		},
	}
)

type dependencies struct {
	dig.In
	ShutdownHandler *shutdown.ShutdownHandler
}

func provide(c *dig.Container) {

	type handlerDeps struct {
		dig.In
		NodeConfig *configuration.Configuration `name:"nodeConfig"`
	}

	if err := c.Provide(func(deps handlerDeps) *shutdown.ShutdownHandler {
		return shutdown.NewShutdownHandler(CorePlugin.Logger(), CorePlugin.Daemon(), deps.NodeConfig.Duration(CfgNodeShutdownWaitToKillTime))
	}); err != nil {
		CorePlugin.LogPanic(err)
	}
}

func configure() {
	deps.ShutdownHandler.Run()
}
