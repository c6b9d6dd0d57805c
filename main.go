package main

import (
	"github.com/fusionrelay/relaynode/core/app"
	"github.com/fusionrelay/relaynode/core/gracefulshutdown"
	"github.com/fusionrelay/relaynode/core/p2p"
	"github.com/fusionrelay/relaynode/core/relaymetrics"
	"github.com/fusionrelay/relaynode/pkg/node"
	"github.com/fusionrelay/relaynode/plugins/dashboard"
	"github.com/fusionrelay/relaynode/plugins/prometheus"
)

func main() {
	node.Run(
		node.WithInitPlugin(app.InitPlugin),
		node.WithCorePlugins([]*node.CorePlugin{
			gracefulshutdown.CorePlugin,
			p2p.CorePlugin,
			relaymetrics.CorePlugin,
		}...),
		node.WithPlugins([]*node.Plugin{
			dashboard.Plugin,
			prometheus.Plugin,
		}...),
	)
}
