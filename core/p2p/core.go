package p2p

import (
	"context"

	"github.com/libp2p/go-libp2p"
	connmgr "github.com/libp2p/go-libp2p-connmgr"
	"github.com/libp2p/go-libp2p-core/host"
	libp2pmetrics "github.com/libp2p/go-libp2p-core/metrics"
	"github.com/libp2p/go-libp2p/p2p/protocol/circuitv2/relay"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/fusionrelay/relaynode/pkg/node"
	p2ppkg "github.com/fusionrelay/relaynode/pkg/p2p"
	"github.com/fusionrelay/relaynode/pkg/shutdown"
	"github.com/iotaledger/hive.go/configuration"
	"github.com/iotaledger/hive.go/logger"
)

func init() {
	CorePlugin = &node.CorePlugin{
		Pluggable: node.Pluggable{
			Name:      "P2P",
			DepsFunc:  func(cDeps dependencies) { deps = cDeps },
			Params:    params,
			Provide:   provide,
			Configure: configure,
			Run:       run,
		},
	}
}

// UserAgent is announced to remote peers via identify.
// The identify protocol version itself is fixed by libp2p.
const UserAgent = "/fusion/1.0.0"

var (
	CorePlugin *node.CorePlugin
	deps       dependencies
)

type dependencies struct {
	dig.In
	Identity        *p2ppkg.Identity
	Host            host.Host
	Engine          *p2ppkg.Engine
	Relay           *relay.Relay
	NodeConfig      *configuration.Configuration `name:"nodeConfig"`
	ShutdownHandler *shutdown.ShutdownHandler
}

func provide(c *dig.Container) {

	type identityDeps struct {
		dig.In
		NodeConfig *configuration.Configuration `name:"nodeConfig"`
	}

	if err := c.Provide(func(deps identityDeps) (*p2ppkg.Identity, error) {
		peerStorePath := deps.NodeConfig.String(CfgP2PDatabasePath)

		identity, err := p2ppkg.LoadOrCreateIdentity(peerStorePath, deps.NodeConfig.String(CfgP2PIdentityPrivKey))
		if err != nil {
			return nil, errors.Wrap(err, "unable to load/create peer identity")
		}

		if identity.Created {
			CorePlugin.LogInfof("generated a new peer identity, stored public key under %s", peerStorePath)
		}

		// make sure nobody copies around the peer store since it contains the private key of the relay
		CorePlugin.LogInfof("never share your %s folder as it contains your relay's private key!", peerStorePath)

		return identity, nil
	}); err != nil {
		CorePlugin.LogPanic(err)
	}

	type engineDeps struct {
		dig.In
		NodeConfig *configuration.Configuration `name:"nodeConfig"`
	}

	if err := c.Provide(func(deps engineDeps) (*p2ppkg.Engine, error) {
		engineOpts := []p2ppkg.EngineOption{
			p2ppkg.WithEngineLogger(logger.NewLogger("Relay-Engine")),
			p2ppkg.WithEventBufferSize(deps.NodeConfig.Int(CfgRelayEventBufferSize)),
		}

		if allowedPeers := deps.NodeConfig.Strings(CfgRelayAllowedPeers); len(allowedPeers) > 0 {
			allowList, err := p2ppkg.NewPeerAllowList(allowedPeers)
			if err != nil {
				return nil, err
			}
			CorePlugin.LogInfof("reservations restricted to %d allowed peers", allowList.Len())
			engineOpts = append(engineOpts, p2ppkg.WithACL(allowList))
		}

		return p2ppkg.NewEngine(engineOpts...), nil
	}); err != nil {
		CorePlugin.LogPanic(err)
	}

	if err := c.Provide(libp2pmetrics.NewBandwidthCounter); err != nil {
		CorePlugin.LogPanic(err)
	}

	type hostDeps struct {
		dig.In
		NodeConfig       *configuration.Configuration `name:"nodeConfig"`
		Identity         *p2ppkg.Identity
		Engine           *p2ppkg.Engine
		BandwidthCounter *libp2pmetrics.BandwidthCounter
	}

	if err := c.Provide(func(deps hostDeps) (host.Host, error) {
		return createHost(deps.Identity, deps.Engine, deps.BandwidthCounter,
			deps.NodeConfig.Int(CfgP2PConnMngLowWatermark),
			deps.NodeConfig.Int(CfgP2PConnMngHighWatermark),
		)
	}); err != nil {
		CorePlugin.LogPanic(err)
	}

	type relayDeps struct {
		dig.In
		NodeConfig *configuration.Configuration `name:"nodeConfig"`
		Host       host.Host
		Engine     *p2ppkg.Engine
	}

	if err := c.Provide(func(deps relayDeps) (*relay.Relay, error) {
		resources := relay.DefaultResources()
		resources.MaxReservations = deps.NodeConfig.Int(CfgRelayMaxReservations)
		resources.MaxCircuits = deps.NodeConfig.Int(CfgRelayMaxCircuits)
		resources.ReservationTTL = deps.NodeConfig.Duration(CfgRelayReservationTTL)

		relayService, err := relay.New(deps.Host,
			relay.WithResources(resources),
			relay.WithACL(deps.Engine),
		)
		if err != nil {
			return nil, errors.Wrap(err, "unable to start relay service")
		}

		return relayService, nil
	}); err != nil {
		CorePlugin.LogPanic(err)
	}
}

func configure() {
	CorePlugin.LogInfof("relay configured, ID: %s", deps.Host.ID())
}

func run() {

	if err := CorePlugin.Daemon().BackgroundWorker("Close peer store", func(ctx context.Context) {
		<-ctx.Done()
		CorePlugin.LogInfo("Syncing peer store to disk ...")
		if err := deps.Identity.Close(); err != nil {
			CorePlugin.LogErrorf("unable to cleanly close peer store: %s", err)
		}
		CorePlugin.LogInfo("Syncing peer store to disk ... done")
	}, shutdown.PriorityCloseDatabase); err != nil {
		CorePlugin.LogPanicf("failed to start worker: %s", err)
	}

	if err := CorePlugin.Daemon().BackgroundWorker("P2P host", func(ctx context.Context) {
		if err := deps.Engine.Start(deps.Host); err != nil {
			CorePlugin.LogErrorf("unable to start relay engine: %s", err)
			deps.ShutdownHandler.SelfShutdown("relay engine failed to start")
			return
		}

		if listening := listen(deps.NodeConfig.Strings(CfgP2PBindMultiAddresses)); listening == 0 {
			deps.ShutdownHandler.SelfShutdown("relay isn't listening on any address")
		}

		<-ctx.Done()
		CorePlugin.LogInfo("Stopping P2P host ...")
		if err := deps.Engine.Close(); err != nil {
			CorePlugin.LogWarnf("unable to cleanly close relay engine: %s", err)
		}
		if err := deps.Host.Close(); err != nil {
			CorePlugin.LogWarnf("unable to cleanly close host: %s", err)
		}
		CorePlugin.LogInfo("Stopping P2P host ... done")
	}, shutdown.PriorityP2PHost); err != nil {
		CorePlugin.LogPanicf("failed to start worker: %s", err)
	}

	if err := CorePlugin.Daemon().BackgroundWorker("Relay service", func(ctx context.Context) {
		<-ctx.Done()
		if err := deps.Relay.Close(); err != nil {
			CorePlugin.LogWarnf("unable to cleanly close relay service: %s", err)
		}
	}, shutdown.PriorityRelayService); err != nil {
		CorePlugin.LogPanicf("failed to start worker: %s", err)
	}
}

// creates the libp2p host of the relay.
// The host starts without listening, the relay listens once the engine observes the host.
func createHost(identity *p2ppkg.Identity, engine *p2ppkg.Engine, bandwidthCounter *libp2pmetrics.BandwidthCounter, lowWatermark int, highWatermark int) (host.Host, error) {
	connManager, err := connmgr.NewConnManager(lowWatermark, highWatermark)
	if err != nil {
		return nil, errors.Wrap(err, "unable to initialize connection manager")
	}

	createdHost, err := libp2p.New(
		libp2p.Identity(identity.PrivateKey),
		libp2p.Peerstore(identity.PeerStore),
		libp2p.NoListenAddrs,
		libp2p.DefaultTransports,
		libp2p.ConnectionManager(connManager),
		libp2p.BandwidthReporter(bandwidthCounter),
		libp2p.AddrsFactory(engine.AddrsFactory),
		libp2p.NATPortMap(),
		libp2p.UserAgent(UserAgent),
	)
	if err != nil {
		return nil, errors.Wrap(err, "unable to initialize peer")
	}

	return createdHost, nil
}

// instructs the engine to listen on the given addresses and returns on how many it succeeded.
func listen(bindAddrs []string) int {
	listening := 0
	for _, bindAddr := range bindAddrs {
		addr, err := multiaddr.NewMultiaddr(bindAddr)
		if err != nil {
			CorePlugin.LogWarnf("invalid bind address %s: %s", bindAddr, err)
			continue
		}

		if err := deps.Engine.ListenOn(addr); err != nil {
			CorePlugin.LogWarnf("%s", err)
			continue
		}
		listening++
	}
	return listening
}
