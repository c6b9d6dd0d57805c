package p2p

import (
	"context"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p-core/crypto"
	libp2pmetrics "github.com/libp2p/go-libp2p-core/metrics"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"

	p2ppkg "github.com/fusionrelay/relaynode/pkg/p2p"
)

func TestCreateHostAnnouncesUserAgent(t *testing.T) {
	identity, err := p2ppkg.LoadOrCreateIdentity(t.TempDir(), "")
	require.NoError(t, err)
	defer func() { _ = identity.Close() }()

	engine := p2ppkg.NewEngine()
	relayHost, err := createHost(identity, engine, libp2pmetrics.NewBandwidthCounter(), 8, 16)
	require.NoError(t, err)
	defer func() { _ = relayHost.Close() }()

	go func() {
		for range engine.Events() {
		}
	}()
	defer func() { _ = engine.Close() }()

	require.NoError(t, engine.Start(relayHost))
	require.NoError(t, engine.ListenOn(multiaddr.StringCast("/ip4/127.0.0.1/tcp/0")))

	sk, _, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	require.NoError(t, err)
	clientHost, err := libp2p.New(libp2p.Identity(sk), libp2p.NoListenAddrs)
	require.NoError(t, err)
	defer func() { _ = clientHost.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, clientHost.Connect(ctx, peer.AddrInfo{ID: relayHost.ID(), Addrs: relayHost.Addrs()}))

	require.Eventually(t, func() bool {
		agentVersion, err := clientHost.Peerstore().Get(relayHost.ID(), "AgentVersion")
		return err == nil && agentVersion == UserAgent
	}, 10*time.Second, 10*time.Millisecond)
}
