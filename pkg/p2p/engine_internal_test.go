package p2p

import (
	"sync"
	"testing"

	"github.com/libp2p/go-libp2p-core/crypto"
	"github.com/libp2p/go-libp2p-core/network"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"
)

// fakeNetwork only tracks the connections of a single peer.
type fakeNetwork struct {
	network.Network

	sync.Mutex
	conns map[network.Conn]struct{}
}

func (n *fakeNetwork) ConnsToPeer(peer.ID) []network.Conn {
	n.Lock()
	defer n.Unlock()

	conns := make([]network.Conn, 0, len(n.conns))
	for conn := range n.conns {
		conns = append(conns, conn)
	}
	return conns
}

func (n *fakeNetwork) add(conn network.Conn) {
	n.Lock()
	defer n.Unlock()
	n.conns[conn] = struct{}{}
}

func (n *fakeNetwork) remove(conn network.Conn) {
	n.Lock()
	defer n.Unlock()
	delete(n.conns, conn)
}

type fakeConn struct {
	network.Conn

	remote peer.ID
	port   string
}

func (c *fakeConn) RemotePeer() peer.ID { return c.remote }
func (c *fakeConn) LocalMultiaddr() multiaddr.Multiaddr {
	return multiaddr.StringCast("/ip4/127.0.0.1/tcp/3000")
}
func (c *fakeConn) RemoteMultiaddr() multiaddr.Multiaddr {
	return multiaddr.StringCast("/ip4/127.0.0.1/tcp/" + c.port)
}

func TestNotifieeOrdersInterleavedConnectionEvents(t *testing.T) {
	sk, _, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	require.NoError(t, err)
	remote, err := peer.IDFromPrivateKey(sk)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		engine := NewEngine(WithEventBufferSize(4))
		notifiee := (*netNotifiee)(engine)

		connA := &fakeConn{remote: remote, port: "4000"}
		connB := &fakeConn{remote: remote, port: "4001"}
		net := &fakeNetwork{conns: map[network.Conn]struct{}{connA: {}}}

		// connection A closes while connection B gets established,
		// every handler runs after the swarm applied its change.
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			net.remove(connA)
			notifiee.Disconnected(net, connA)
		}()
		go func() {
			defer wg.Done()
			net.add(connB)
			notifiee.Connected(net, connB)
		}()
		wg.Wait()

		<-engine.Events()
		last := <-engine.Events()

		// the peer stays connected via B, so the last event must not report it as gone
		switch evt := last.(type) {
		case ConnectionEstablished:
			require.Equal(t, 1, evt.NumEstablished)
		case ConnectionClosed:
			require.Equal(t, 1, evt.NumEstablished)
		default:
			t.Fatalf("unexpected event %s", last)
		}

		require.NoError(t, engine.Close())
	}
}
