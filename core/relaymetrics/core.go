package relaymetrics

import (
	"context"

	"github.com/libp2p/go-libp2p-core/host"
	libp2pmetrics "github.com/libp2p/go-libp2p-core/metrics"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/fusionrelay/relaynode/pkg/metrics"
	"github.com/fusionrelay/relaynode/pkg/node"
	"github.com/fusionrelay/relaynode/pkg/p2p"
	"github.com/fusionrelay/relaynode/pkg/shutdown"
	"github.com/iotaledger/hive.go/configuration"
	"github.com/iotaledger/hive.go/logger"
)

func init() {
	CorePlugin = &node.CorePlugin{
		Pluggable: node.Pluggable{
			Name:     "RelayMetrics",
			DepsFunc: func(cDeps dependencies) { deps = cDeps },
			Params:   params,
			Provide:  provide,
			Run:      run,
		},
	}
}

var (
	CorePlugin *node.CorePlugin
	deps       dependencies
)

type dependencies struct {
	dig.In
	NodeConfig       *configuration.Configuration `name:"nodeConfig"`
	Engine           *p2p.Engine
	Dispatcher       *p2p.Dispatcher
	BandwidthSampler *p2p.BandwidthSampler
	ShutdownHandler  *shutdown.ShutdownHandler
}

func provide(c *dig.Container) {

	type storeDeps struct {
		dig.In
		NodeConfig *configuration.Configuration `name:"nodeConfig"`
		Host       host.Host
	}

	if err := c.Provide(func(deps storeDeps) *metrics.RelayMetricsStore {
		return metrics.NewRelayMetricsStore(deps.Host.ID().String(),
			metrics.WithHistoryPruning(deps.NodeConfig.Bool(CfgRelayPruneHistory)),
		)
	}); err != nil {
		CorePlugin.LogPanic(err)
	}

	if err := c.Provide(func() *metrics.ServerMetrics {
		return &metrics.ServerMetrics{}
	}); err != nil {
		CorePlugin.LogPanic(err)
	}

	type dispatcherDeps struct {
		dig.In
		Engine        *p2p.Engine
		Store         *metrics.RelayMetricsStore
		ServerMetrics *metrics.ServerMetrics
	}

	if err := c.Provide(func(deps dispatcherDeps) *p2p.Dispatcher {
		return p2p.NewDispatcher(deps.Engine, deps.Store,
			p2p.WithDispatcherLogger(logger.NewLogger("Relay-Dispatcher")),
			p2p.WithDispatcherServerMetrics(deps.ServerMetrics),
		)
	}); err != nil {
		CorePlugin.LogPanic(err)
	}

	if err := c.Provide(func(bandwidthCounter *libp2pmetrics.BandwidthCounter) *p2p.BandwidthSampler {
		return p2p.NewBandwidthSampler(bandwidthCounter)
	}); err != nil {
		CorePlugin.LogPanic(err)
	}
}

func run() {

	if err := CorePlugin.Daemon().BackgroundWorker("Relay[EventDispatcher]", func(ctx context.Context) {
		CorePlugin.LogInfo("Starting event dispatcher ... done")

		if err := deps.Dispatcher.Run(ctx); err != nil {
			if errors.Is(err, p2p.ErrEventStreamTerminated) {
				CorePlugin.LogErrorf("relay engine stopped unexpectedly: %s", err)
				deps.ShutdownHandler.SelfShutdown(err.Error())
				return
			}
			CorePlugin.LogErrorf("event dispatcher failed: %s", err)
		}

		CorePlugin.LogInfo("Stopping event dispatcher ... done")
	}, shutdown.PriorityEventDispatcher); err != nil {
		CorePlugin.LogPanicf("failed to start worker: %s", err)
	}

	if err := CorePlugin.Daemon().BackgroundWorker("Relay[BandwidthSampler]", func(ctx context.Context) {
		deps.Engine.SampleBandwidth(ctx, deps.BandwidthSampler, deps.NodeConfig.Duration(CfgRelayBandwidthSampleInterval))
	}, shutdown.PriorityBandwidthSampler); err != nil {
		CorePlugin.LogPanicf("failed to start worker: %s", err)
	}
}
