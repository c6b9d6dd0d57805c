package p2p

import (
	"fmt"

	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/multiformats/go-multiaddr"
)

// Event is an event emitted by the relay engine.
// The set of events is closed, only the types declared in this package implement it.
type Event interface {
	fmt.Stringer
	relayEvent()
}

// ReservationAccepted is emitted when a peer got a reservation slot on the relay.
type ReservationAccepted struct {
	// The peer which requested the reservation.
	Peer peer.ID
	// Whether the peer already held a reservation.
	Renewed bool
}

// ReservationDenied is emitted when a reservation request of a peer was refused.
type ReservationDenied struct {
	Peer peer.ID
}

// CircuitAccepted is emitted when the relay agreed to open a circuit from Src to Dst.
type CircuitAccepted struct {
	Src peer.ID
	Dst peer.ID
}

// CircuitDenied is emitted when the relay refused to open a circuit from Src to Dst.
type CircuitDenied struct {
	Src peer.ID
	Dst peer.ID
}

// ConnectionEstablished is emitted for every new transport connection.
type ConnectionEstablished struct {
	Peer   peer.ID
	ConnID string
	// The amount of established connections to the peer, including this one.
	NumEstablished int
}

// ConnectionClosed is emitted for every closed transport connection.
type ConnectionClosed struct {
	Peer   peer.ID
	ConnID string
	// The amount of connections to the peer which are still established.
	NumEstablished int
}

// IdentifyReceived is emitted when a remote peer told us under which address it sees us.
type IdentifyReceived struct {
	Peer         peer.ID
	ObservedAddr multiaddr.Multiaddr
}

// NewListenAddr is emitted when the relay started listening on a new address.
type NewListenAddr struct {
	Address multiaddr.Multiaddr
}

// BytesTransferred is emitted with the traffic exchanged with a peer since the last sample.
type BytesTransferred struct {
	Peer     peer.ID
	Sent     uint64
	Received uint64
}

func (ReservationAccepted) relayEvent()   {}
func (ReservationDenied) relayEvent()     {}
func (CircuitAccepted) relayEvent()       {}
func (CircuitDenied) relayEvent()         {}
func (ConnectionEstablished) relayEvent() {}
func (ConnectionClosed) relayEvent()      {}
func (IdentifyReceived) relayEvent()      {}
func (NewListenAddr) relayEvent()         {}
func (BytesTransferred) relayEvent()      {}

func (e ReservationAccepted) String() string {
	return fmt.Sprintf("reservation accepted: %s (renewed: %v)", e.Peer.ShortString(), e.Renewed)
}

func (e ReservationDenied) String() string {
	return fmt.Sprintf("reservation denied: %s", e.Peer.ShortString())
}

func (e CircuitAccepted) String() string {
	return fmt.Sprintf("circuit accepted: %s -> %s", e.Src.ShortString(), e.Dst.ShortString())
}

func (e CircuitDenied) String() string {
	return fmt.Sprintf("circuit denied: %s -> %s", e.Src.ShortString(), e.Dst.ShortString())
}

func (e ConnectionEstablished) String() string {
	return fmt.Sprintf("connection established: %s (%s), established: %d", e.Peer.ShortString(), e.ConnID, e.NumEstablished)
}

func (e ConnectionClosed) String() string {
	return fmt.Sprintf("connection closed: %s (%s), remaining: %d", e.Peer.ShortString(), e.ConnID, e.NumEstablished)
}

func (e IdentifyReceived) String() string {
	return fmt.Sprintf("identify received: %s observed %s", e.Peer.ShortString(), e.ObservedAddr)
}

func (e NewListenAddr) String() string {
	return fmt.Sprintf("listening on %s", e.Address)
}

func (e BytesTransferred) String() string {
	return fmt.Sprintf("bytes transferred: %s sent %d, received %d", e.Peer.ShortString(), e.Sent, e.Received)
}
