package p2p_test

import (
	"testing"

	"github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"

	"github.com/fusionrelay/relaynode/pkg/p2p"
)

func TestPeerAllowList(t *testing.T) {
	allowed := randomPeerID(t)
	other := randomPeerID(t)
	addr := multiaddr.StringCast("/ip4/127.0.0.1/tcp/3000")

	allowList, err := p2p.NewPeerAllowList([]string{allowed.String()})
	require.NoError(t, err)
	require.Equal(t, 1, allowList.Len())

	require.True(t, allowList.AllowReserve(allowed, addr))
	require.False(t, allowList.AllowReserve(other, addr))
	require.True(t, allowList.AllowConnect(other, addr, allowed))
	require.True(t, allowList.AllowConnect(allowed, addr, other))
	require.False(t, allowList.AllowConnect(other, addr, randomPeerID(t)))

	_, err = p2p.NewPeerAllowList([]string{"not-a-peer-id"})
	require.Error(t, err)
}

func TestEngineWithPeerAllowList(t *testing.T) {
	allowed := randomPeerID(t)
	other := randomPeerID(t)
	addr := multiaddr.StringCast("/ip4/127.0.0.1/tcp/3000")

	allowList, err := p2p.NewPeerAllowList([]string{allowed.String()})
	require.NoError(t, err)

	engine := p2p.NewEngine(p2p.WithEventBufferSize(16), p2p.WithACL(allowList))
	require.True(t, engine.AllowReserve(allowed, addr))
	require.False(t, engine.AllowReserve(other, addr))

	require.Equal(t, p2p.ReservationAccepted{Peer: allowed}, <-engine.Events())
	require.Equal(t, p2p.ReservationDenied{Peer: other}, <-engine.Events())
}
