package prometheus

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	libp2pmetrics "github.com/libp2p/go-libp2p-core/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/dig"

	"github.com/fusionrelay/relaynode/core/app"
	"github.com/fusionrelay/relaynode/pkg/metrics"
	"github.com/fusionrelay/relaynode/pkg/node"
	"github.com/fusionrelay/relaynode/pkg/restapi"
	"github.com/fusionrelay/relaynode/pkg/shutdown"
	"github.com/fusionrelay/relaynode/pkg/utils"
	"github.com/iotaledger/hive.go/configuration"
)

// RouteMetrics is the route for getting the prometheus metrics.
// GET returns metrics.
const (
	RouteMetrics = "/metrics"
)

func init() {
	Plugin = &node.Plugin{
		Status: node.Disabled,
		Pluggable: node.Pluggable{
			Name:      "Prometheus",
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

	registry = prometheus.NewRegistry()
	collects []func()
)

type dependencies struct {
	dig.In
	NodeConfig       *configuration.Configuration `name:"nodeConfig"`
	AppInfo          *app.AppInfo
	Store            *metrics.RelayMetricsStore
	ServerMetrics    *metrics.ServerMetrics
	BandwidthCounter *libp2pmetrics.BandwidthCounter
	PrometheusEcho   *echo.Echo `name:"prometheusEcho"`
}

func provide(c *dig.Container) {

	type depsOut struct {
		dig.Out
		PrometheusEcho *echo.Echo `name:"prometheusEcho"`
	}

	if err := c.Provide(func() depsOut {
		return depsOut{
			PrometheusEcho: restapi.NewEcho(Plugin.Logger(), restapi.LogServerErrors(Plugin.Logger()), false),
		}
	}); err != nil {
		Plugin.LogPanic(err)
	}
}

func configure() {
	configureInfo(registry, deps.AppInfo, deps.Store.PeerID())

	if deps.NodeConfig.Bool(CfgPrometheusRelayMetrics) {
		addCollect(configureRelay(registry, deps.Store))
		addCollect(configureServer(registry, deps.ServerMetrics))
		addCollect(configureBandwidth(registry, deps.BandwidthCounter))
	}
	if deps.NodeConfig.Bool(CfgPrometheusPeerMetrics) {
		addCollect(configurePeers(registry, deps.Store))
	}
	if deps.NodeConfig.Bool(CfgPrometheusGoMetrics) {
		registry.MustRegister(collectors.NewGoCollector())
	}
	if deps.NodeConfig.Bool(CfgPrometheusProcessMetrics) {
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	setupRoute(deps.PrometheusEcho, registry, deps.NodeConfig.Bool(CfgPrometheusPromhttpMetrics))
}

func addCollect(collect func()) {
	collects = append(collects, collect)
}

// refreshes all gauges before every scrape.
func setupRoute(e *echo.Echo, registry *prometheus.Registry, promhttpMetrics bool) {
	handler := promhttp.HandlerFor(
		registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	)
	if promhttpMetrics {
		handler = promhttp.InstrumentMetricHandler(registry, handler)
	}

	// the collects reset and refill vectors, so scrapes must not interleave
	var scrapeLock sync.Mutex

	e.GET(RouteMetrics, func(c echo.Context) error {
		scrapeLock.Lock()
		defer scrapeLock.Unlock()

		for _, collect := range collects {
			collect()
		}

		handler.ServeHTTP(c.Response().Writer, c.Request())
		return nil
	})
}

type fileservicediscovery struct {
	Targets []string          `json:"targets"`
	Labels  map[string]string `json:"labels"`
}

func writeFileServiceDiscoveryFile(path string, target string) error {
	d := []fileservicediscovery{{
		Targets: []string{target},
		Labels:  make(map[string]string),
	}}

	// this truncates an existing file
	if err := utils.WriteJSONToFile(path, d, 0o640); err != nil {
		return errors.Wrap(err, "unable to write file service discovery file")
	}

	return nil
}

func run() {
	Plugin.LogInfo("Starting Prometheus exporter ...")

	if deps.NodeConfig.Bool(CfgPrometheusFileServiceDiscoveryEnabled) {
		path := deps.NodeConfig.String(CfgPrometheusFileServiceDiscoveryPath)
		if err := writeFileServiceDiscoveryFile(path, deps.NodeConfig.String(CfgPrometheusFileServiceDiscoveryTarget)); err != nil {
			Plugin.LogPanic(err)
		}
		Plugin.LogInfof("Wrote 'file service discovery' content to %s", path)
	}

	if err := Plugin.Daemon().BackgroundWorker("Prometheus exporter", func(ctx context.Context) {
		Plugin.LogInfo("Starting Prometheus exporter ... done")

		bindAddr := deps.NodeConfig.String(CfgPrometheusBindAddress)

		go func() {
			Plugin.LogInfof("You can now access the Prometheus exporter using: http://%s/metrics", bindAddr)
			if err := deps.PrometheusEcho.Start(bindAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				Plugin.LogWarnf("Stopped Prometheus exporter due to an error (%s)", err)
			}
		}()

		<-ctx.Done()
		Plugin.LogInfo("Stopping Prometheus exporter ...")

		shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCtxCancel()

		//nolint:contextcheck // false positive
		if err := deps.PrometheusEcho.Shutdown(shutdownCtx); err != nil {
			Plugin.LogWarn(err)
		}

		Plugin.LogInfo("Stopping Prometheus exporter ... done")
	}, shutdown.PriorityPrometheus); err != nil {
		Plugin.LogPanicf("failed to start worker: %s", err)
	}
}
