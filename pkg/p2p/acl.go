package p2p

import (
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
)

// PeerAllowList is a relay.ACLFilter which only hands out reservations to the listed peers.
// Circuits are allowed if either end of it is listed.
type PeerAllowList struct {
	peers map[peer.ID]struct{}
}

// NewPeerAllowList parses the given peer IDs into a PeerAllowList.
func NewPeerAllowList(peerIDs []string) (*PeerAllowList, error) {
	peers := make(map[peer.ID]struct{}, len(peerIDs))
	for _, peerID := range peerIDs {
		id, err := peer.Decode(peerID)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid peer ID %s in allow list", peerID)
		}
		peers[id] = struct{}{}
	}
	return &PeerAllowList{peers: peers}, nil
}

// Len returns the amount of listed peers.
func (l *PeerAllowList) Len() int {
	return len(l.peers)
}

func (l *PeerAllowList) contains(p peer.ID) bool {
	_, exists := l.peers[p]
	return exists
}

// AllowReserve implements relay.ACLFilter.
func (l *PeerAllowList) AllowReserve(p peer.ID, _ multiaddr.Multiaddr) bool {
	return l.contains(p)
}

// AllowConnect implements relay.ACLFilter.
func (l *PeerAllowList) AllowConnect(src peer.ID, _ multiaddr.Multiaddr, dest peer.ID) bool {
	return l.contains(src) || l.contains(dest)
}
