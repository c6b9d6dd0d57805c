package p2p

import (
	"context"
	"sync"
	"time"

	"github.com/iotaledger/hive.go/logger"
	"github.com/libp2p/go-libp2p-core/event"
	"github.com/libp2p/go-libp2p-core/host"
	"github.com/libp2p/go-libp2p-core/network"
	"github.com/libp2p/go-libp2p-core/peer"
	basichost "github.com/libp2p/go-libp2p/p2p/host/basic"
	"github.com/libp2p/go-libp2p/p2p/protocol/circuitv2/relay"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
)

const (
	defaultEventBufferSize = 1024
)

var (
	// ErrEngineNotStarted is returned if a command is issued to an Engine without a host.
	ErrEngineNotStarted = errors.New("relay engine not started")
)

// the default options applied to the Engine.
var defaultEngineOptions = []EngineOption{
	WithEventBufferSize(defaultEventBufferSize),
	WithObservedAddrs(identifyObservedAddrs),
}

// EngineOptions define options for an Engine.
type EngineOptions struct {
	Logger          *logger.Logger
	EventBufferSize int
	// Decides about reservations and circuits, everything is allowed if nil.
	ACL relay.ACLFilter
	// Returns the addresses remote peers observed for the host.
	ObservedAddrs func(h host.Host) []multiaddr.Multiaddr
}

// EngineOption is a function setting an EngineOptions option.
type EngineOption func(opts *EngineOptions)

// WithEngineLogger enables logging within the Engine.
func WithEngineLogger(logger *logger.Logger) EngineOption {
	return func(opts *EngineOptions) {
		opts.Logger = logger
	}
}

// WithEventBufferSize defines how many events are buffered until emitters block.
func WithEventBufferSize(size int) EngineOption {
	return func(opts *EngineOptions) {
		opts.EventBufferSize = size
	}
}

// WithACL sets the filter deciding about reservation and circuit requests.
func WithACL(acl relay.ACLFilter) EngineOption {
	return func(opts *EngineOptions) {
		opts.ACL = acl
	}
}

// WithObservedAddrs sets the function returning the addresses remote peers observed for the host.
func WithObservedAddrs(observedAddrs func(h host.Host) []multiaddr.Multiaddr) EngineOption {
	return func(opts *EngineOptions) {
		opts.ObservedAddrs = observedAddrs
	}
}

// applies the given EngineOption.
func (eo *EngineOptions) apply(opts ...EngineOption) {
	for _, opt := range opts {
		opt(eo)
	}
}

// Engine turns the notifications of a libp2p host and its circuit relay
// into a single ordered stream of events.
// It is passed as relay.ACLFilter to the relay service and its AddrsFactory to the host.
type Engine struct {
	host host.Host
	opts *EngineOptions

	eventsLock sync.RWMutex
	events     chan Event
	closing    chan struct{}
	closed     bool
	closeOnce  sync.Once

	identifySub event.Subscription

	externalAddrsLock sync.RWMutex
	externalAddrs     []multiaddr.Multiaddr

	reservationsLock sync.Mutex
	reservations     map[peer.ID]struct{}

	// held across counting the connections of a peer and emitting the event,
	// so the emitted order agrees with the connections of the swarm.
	connEventsLock sync.Mutex
}

// NewEngine creates a new Engine.
// The Engine only emits events after Start was called with the host.
func NewEngine(opts ...EngineOption) *Engine {
	engineOpts := &EngineOptions{}
	engineOpts.apply(defaultEngineOptions...)
	engineOpts.apply(opts...)

	return &Engine{
		opts:          engineOpts,
		events:        make(chan Event, engineOpts.EventBufferSize),
		closing:       make(chan struct{}),
		externalAddrs: make([]multiaddr.Multiaddr, 0),
		reservations:  make(map[peer.ID]struct{}),
	}
}

// Start registers the Engine on the network notifications and the identify events of the given host
// and emits the addresses the host already listens on.
func (e *Engine) Start(h host.Host) error {
	e.host = h

	sub, err := h.EventBus().Subscribe(new(event.EvtPeerIdentificationCompleted))
	if err != nil {
		return errors.Wrap(err, "unable to subscribe to identify events")
	}
	e.identifySub = sub
	go e.processIdentifications(sub)

	h.Network().Notify((*netNotifiee)(e))
	e.emitInterfaceListenAddrs(h.Network())

	return nil
}

// Events returns the stream of events. It gets closed by Close.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// LocalPeerID returns the ID of the host.
func (e *Engine) LocalPeerID() peer.ID {
	if e.host == nil {
		return ""
	}
	return e.host.ID()
}

// ListenOn instructs the host to listen on the given address.
func (e *Engine) ListenOn(addr multiaddr.Multiaddr) error {
	if e.host == nil {
		return ErrEngineNotStarted
	}
	if err := e.host.Network().Listen(addr); err != nil {
		return errors.Wrapf(err, "unable to listen on %s", addr)
	}
	return nil
}

// AddExternalAddress adds the address to the addresses the host announces.
func (e *Engine) AddExternalAddress(addr multiaddr.Multiaddr) {
	e.externalAddrsLock.Lock()
	defer e.externalAddrsLock.Unlock()

	if containsAddr(e.externalAddrs, addr) {
		return
	}
	e.externalAddrs = append(e.externalAddrs, addr)

	if e.opts.Logger != nil {
		e.opts.Logger.Infof("added external address %s", addr)
	}
}

// ExternalAddresses returns the addresses added via AddExternalAddress.
func (e *Engine) ExternalAddresses() []multiaddr.Multiaddr {
	e.externalAddrsLock.RLock()
	defer e.externalAddrsLock.RUnlock()

	return append(make([]multiaddr.Multiaddr, 0, len(e.externalAddrs)), e.externalAddrs...)
}

// AddrsFactory appends the external addresses to the addresses the host listens on.
// It is meant to be passed to libp2p.AddrsFactory.
func (e *Engine) AddrsFactory(addrs []multiaddr.Multiaddr) []multiaddr.Multiaddr {
	result := append(make([]multiaddr.Multiaddr, 0, len(addrs)), addrs...)

	for _, external := range e.ExternalAddresses() {
		if containsAddr(result, external) {
			continue
		}
		result = append(result, external)
	}
	return result
}

// AllowReserve implements relay.ACLFilter.
func (e *Engine) AllowReserve(p peer.ID, a multiaddr.Multiaddr) bool {
	if e.opts.ACL != nil && !e.opts.ACL.AllowReserve(p, a) {
		e.emit(ReservationDenied{Peer: p})
		return false
	}

	e.reservationsLock.Lock()
	_, renewed := e.reservations[p]
	e.reservations[p] = struct{}{}
	e.reservationsLock.Unlock()

	e.emit(ReservationAccepted{Peer: p, Renewed: renewed})
	return true
}

// AllowConnect implements relay.ACLFilter.
func (e *Engine) AllowConnect(src peer.ID, srcAddr multiaddr.Multiaddr, dest peer.ID) bool {
	if e.opts.ACL != nil && !e.opts.ACL.AllowConnect(src, srcAddr, dest) {
		e.emit(CircuitDenied{Src: src, Dst: dest})
		return false
	}

	e.emit(CircuitAccepted{Src: src, Dst: dest})
	return true
}

// SampleBandwidth emits the traffic measured by the sampler every interval until ctx is done.
func (e *Engine) SampleBandwidth(ctx context.Context, sampler *BandwidthSampler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, transferred := range sampler.Sample() {
				e.emit(transferred)
			}
		}
	}
}

// Close unregisters the Engine from the host and closes the event stream.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		// unblock pending emitters, the swarm waits for running notifiees on StopNotify
		close(e.closing)

		if e.host != nil {
			e.host.Network().StopNotify((*netNotifiee)(e))
		}
		if e.identifySub != nil {
			err = e.identifySub.Close()
		}

		e.eventsLock.Lock()
		defer e.eventsLock.Unlock()
		e.closed = true
		close(e.events)
	})
	return err
}

func (e *Engine) emit(evt Event) {
	e.eventsLock.RLock()
	defer e.eventsLock.RUnlock()

	if e.closed {
		return
	}

	select {
	case e.events <- evt:
	case <-e.closing:
	}
}

func (e *Engine) emitInterfaceListenAddrs(net network.Network) {
	addrs, err := net.InterfaceListenAddresses()
	if err != nil {
		if e.opts.Logger != nil {
			e.opts.Logger.Warnf("unable to resolve listen addresses: %s", err)
		}
		return
	}
	for _, addr := range addrs {
		e.emit(NewListenAddr{Address: addr})
	}
}

func (e *Engine) processIdentifications(sub event.Subscription) {
	for evt := range sub.Out() {
		identified, ok := evt.(event.EvtPeerIdentificationCompleted)
		if !ok || e.opts.ObservedAddrs == nil {
			continue
		}
		for _, addr := range e.opts.ObservedAddrs(e.host) {
			e.emit(IdentifyReceived{Peer: identified.Peer, ObservedAddr: addr})
		}
	}
}

// returns the addresses the identify service of the host confirmed.
func identifyObservedAddrs(h host.Host) []multiaddr.Multiaddr {
	bh, ok := h.(*basichost.BasicHost)
	if !ok {
		return nil
	}
	return bh.IDService().OwnObservedAddrs()
}

// a reservation is bound to the connection it was made on.
func (e *Engine) forgetReservation(p peer.ID) {
	e.reservationsLock.Lock()
	defer e.reservationsLock.Unlock()
	delete(e.reservations, p)
}

func containsAddr(addrs []multiaddr.Multiaddr, addr multiaddr.Multiaddr) bool {
	for _, known := range addrs {
		if known.Equal(addr) {
			return true
		}
	}
	return false
}

// identifies a connection by its endpoints.
func connectionID(conn network.Conn) string {
	return conn.LocalMultiaddr().String() + "<->" + conn.RemoteMultiaddr().String()
}

// lets Engine implement network.Notifiee, we do this as a separate
// type to not pollute the Engine's public methods.
// the handlers are called in newly spawned goroutines.
type netNotifiee Engine

func (n *netNotifiee) Listen(net network.Network, _ multiaddr.Multiaddr) {
	(*Engine)(n).emitInterfaceListenAddrs(net)
}
func (n *netNotifiee) ListenClose(net network.Network, multiaddr multiaddr.Multiaddr) {}
func (n *netNotifiee) Connected(net network.Network, conn network.Conn) {
	e := (*Engine)(n)
	e.connEventsLock.Lock()
	defer e.connEventsLock.Unlock()

	e.emit(ConnectionEstablished{
		Peer:           conn.RemotePeer(),
		ConnID:         connectionID(conn),
		NumEstablished: len(net.ConnsToPeer(conn.RemotePeer())),
	})
}
func (n *netNotifiee) Disconnected(net network.Network, conn network.Conn) {
	e := (*Engine)(n)
	e.connEventsLock.Lock()
	defer e.connEventsLock.Unlock()

	remaining := len(net.ConnsToPeer(conn.RemotePeer()))
	if remaining == 0 {
		e.forgetReservation(conn.RemotePeer())
	}
	e.emit(ConnectionClosed{
		Peer:           conn.RemotePeer(),
		ConnID:         connectionID(conn),
		NumEstablished: remaining,
	})
}
func (n *netNotifiee) OpenedStream(net network.Network, stream network.Stream) {}
func (n *netNotifiee) ClosedStream(net network.Network, stream network.Stream) {}
