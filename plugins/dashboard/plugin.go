package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/fusionrelay/relaynode/pkg/metrics"
	"github.com/fusionrelay/relaynode/pkg/node"
	"github.com/fusionrelay/relaynode/pkg/restapi"
	"github.com/fusionrelay/relaynode/pkg/shutdown"
	"github.com/iotaledger/hive.go/configuration"
)

func init() {
	Plugin = &node.Plugin{
		Status: node.Enabled,
		Pluggable: node.Pluggable{
			Name:      "Dashboard",
			DepsFunc:  func(cDeps dependencies) { deps = cDeps },
			Params:    params,
			Provide:   provide,
			Configure: configure,
			Run:       run,
		},
	}
}

var (
	Plugin *node.Plugin
	deps   dependencies

	feed *liveFeed
)

type dependencies struct {
	dig.In
	NodeConfig      *configuration.Configuration `name:"nodeConfig"`
	Store           *metrics.RelayMetricsStore
	DashboardEcho   *echo.Echo `name:"dashboardEcho"`
	ShutdownHandler *shutdown.ShutdownHandler
}

func provide(c *dig.Container) {

	type echoDeps struct {
		dig.In
		NodeConfig *configuration.Configuration `name:"nodeConfig"`
	}

	type echoResult struct {
		dig.Out
		DashboardEcho *echo.Echo `name:"dashboardEcho"`
	}

	if err := c.Provide(func(deps echoDeps) echoResult {
		return echoResult{
			DashboardEcho: restapi.NewEcho(Plugin.Logger(), restapi.LogServerErrors(Plugin.Logger()), deps.NodeConfig.Bool(CfgDashboardDebugRequestLoggerEnabled)),
		}
	}); err != nil {
		Plugin.LogPanic(err)
	}
}

func configure() {
	feed = newLiveFeed(Plugin.Logger(), func() interface{} {
		return newMetricsResponse(deps.Store.Snapshot())
	})
	setupRoutes(deps.DashboardEcho, deps.Store, feed)
}

func run() {

	if err := Plugin.Daemon().BackgroundWorker("Dashboard[LiveFeed]", func(ctx context.Context) {
		Plugin.LogInfo("Starting Dashboard[LiveFeed] ... done")
		feed.Run(ctx, deps.NodeConfig.Duration(CfgDashboardLiveFeedInterval))
		Plugin.LogInfo("Stopping Dashboard[LiveFeed] ... done")
	}, shutdown.PriorityDashboardFeed); err != nil {
		Plugin.LogPanicf("failed to start worker: %s", err)
	}

	if err := Plugin.Daemon().BackgroundWorker("Dashboard", func(ctx context.Context) {
		bindAddr := deps.NodeConfig.String(CfgDashboardBindAddress)
		Plugin.LogInfof("Starting dashboard server (%s) ...", bindAddr)

		go func() {
			Plugin.LogInfof("You can now access the dashboard using: http://%s", bindAddr)
			if err := deps.DashboardEcho.Start(bindAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				Plugin.LogWarnf("Stopped dashboard server due to an error (%s)", err)
				deps.ShutdownHandler.SelfShutdown("dashboard server stopped unexpectedly")
			}
		}()

		<-ctx.Done()
		Plugin.LogInfo("Stopping dashboard server ...")

		shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCtxCancel()

		//nolint:contextcheck // false positive
		if err := deps.DashboardEcho.Shutdown(shutdownCtx); err != nil {
			Plugin.LogWarn(err)
		}

		Plugin.LogInfo("Stopping dashboard server ... done")
	}, shutdown.PriorityDashboard); err != nil {
		Plugin.LogPanicf("failed to start worker: %s", err)
	}
}
