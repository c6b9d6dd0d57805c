package p2p

import (
	"context"

	"github.com/iotaledger/hive.go/events"
	"github.com/iotaledger/hive.go/logger"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"

	"github.com/fusionrelay/relaynode/pkg/metrics"
)

var (
	// ErrEventStreamTerminated is returned if the event source closed its event stream.
	// The relay can't operate without it.
	ErrEventStreamTerminated = errors.New("relay event stream terminated")
)

// MetricsRecorder records the connection lifecycle of a relay.
type MetricsRecorder interface {
	ConnectionEstablished(peerID string)
	ConnectionClosed(peerID string)
	BytesTransferred(peerID string, sent uint64, received uint64)
	MessageRelayed(peerID string)
	AddRelayAddress(address string)
}

// EventSource is a totally ordered stream of relay events
// which also accepts commands derived from them.
type EventSource interface {
	// Events returns the stream of events. It gets closed when the source terminates.
	Events() <-chan Event
	// LocalPeerID returns the ID of the relay.
	LocalPeerID() peer.ID
	// AddExternalAddress announces an address under which the relay is reachable.
	AddExternalAddress(addr multiaddr.Multiaddr)
}

// DispatcherEvents are events happening around a Dispatcher.
// No methods on Dispatcher must be called from within the event handlers.
type DispatcherEvents struct {
	// Fired when an event resulted in a metrics mutation or engine command.
	Dispatched *events.Event
	// Fired when an event was not acted upon.
	Ignored *events.Event
}

// EventCaller gets called with an Event.
func EventCaller(handler interface{}, params ...interface{}) {
	handler.(func(Event))(params[0].(Event))
}

// DispatcherOptions define options for a Dispatcher.
type DispatcherOptions struct {
	Logger        *logger.Logger
	ServerMetrics *metrics.ServerMetrics
}

// DispatcherOption is a function setting a DispatcherOptions option.
type DispatcherOption func(opts *DispatcherOptions)

// WithDispatcherLogger enables logging within the Dispatcher.
func WithDispatcherLogger(logger *logger.Logger) DispatcherOption {
	return func(opts *DispatcherOptions) {
		opts.Logger = logger
	}
}

// WithDispatcherServerMetrics sets the counters the Dispatcher accounts processed events in.
func WithDispatcherServerMetrics(serverMetrics *metrics.ServerMetrics) DispatcherOption {
	return func(opts *DispatcherOptions) {
		opts.ServerMetrics = serverMetrics
	}
}

// applies the given DispatcherOption.
func (do *DispatcherOptions) apply(opts ...DispatcherOption) {
	for _, opt := range opts {
		opt(do)
	}
}

// Dispatcher translates the events of an EventSource into metrics mutations.
type Dispatcher struct {
	// Events happening around the Dispatcher.
	Events DispatcherEvents

	source   EventSource
	recorder MetricsRecorder
	opts     *DispatcherOptions
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(source EventSource, recorder MetricsRecorder, opts ...DispatcherOption) *Dispatcher {
	dispOpts := &DispatcherOptions{}
	dispOpts.apply(opts...)
	if dispOpts.ServerMetrics == nil {
		dispOpts.ServerMetrics = &metrics.ServerMetrics{}
	}

	d := &Dispatcher{
		Events: DispatcherEvents{
			Dispatched: events.NewEvent(EventCaller),
			Ignored:    events.NewEvent(EventCaller),
		},
		source:   source,
		recorder: recorder,
		opts:     dispOpts,
	}
	if d.opts.Logger != nil {
		d.registerLoggerOnEvents()
	}
	return d
}

// Run processes the events of the source in the order they arrive.
// It returns nil once ctx is done and ErrEventStreamTerminated if the source closed its stream.
func (d *Dispatcher) Run(ctx context.Context) error {
	eventsChan := d.source.Events()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-eventsChan:
			if !ok {
				return ErrEventStreamTerminated
			}
			d.Dispatch(event)
		}
	}
}

// Dispatch applies the given event.
func (d *Dispatcher) Dispatch(event Event) {
	serverMetrics := d.opts.ServerMetrics
	serverMetrics.Events.Inc()

	handled := true
	switch e := event.(type) {
	case ReservationAccepted:
		serverMetrics.AcceptedReservations.Inc()
		d.recorder.ConnectionEstablished(e.Peer.String())

	case ReservationDenied:
		serverMetrics.DeniedReservations.Inc()
		handled = false

	case CircuitAccepted:
		serverMetrics.AcceptedCircuits.Inc()
		d.recorder.MessageRelayed(e.Src.String())

	case CircuitDenied:
		serverMetrics.DeniedCircuits.Inc()
		handled = false

	case ConnectionEstablished:
		d.recorder.ConnectionEstablished(e.Peer.String())

	case ConnectionClosed:
		// the peer is still connected via other connections
		if e.NumEstablished > 0 {
			handled = false
			break
		}
		d.recorder.ConnectionClosed(e.Peer.String())

	case IdentifyReceived:
		serverMetrics.ObservedAddresses.Inc()
		d.source.AddExternalAddress(e.ObservedAddr)

	case NewListenAddr:
		d.recorder.AddRelayAddress(relayAddress(e.Address, d.source.LocalPeerID()))

	case BytesTransferred:
		d.recorder.BytesTransferred(e.Peer.String(), e.Sent, e.Received)

	default:
		handled = false
	}

	if !handled {
		serverMetrics.IgnoredEvents.Inc()
		d.Events.Ignored.Trigger(event)
		return
	}

	serverMetrics.DispatchedEvents.Inc()
	d.Events.Dispatched.Trigger(event)
}

// ServerMetrics returns the counters of the Dispatcher.
func (d *Dispatcher) ServerMetrics() *metrics.ServerMetrics {
	return d.opts.ServerMetrics
}

// returns the given listen address with the relay's peer ID appended,
// which is the form clients need to reserve a slot.
func relayAddress(addr multiaddr.Multiaddr, id peer.ID) string {
	if _, err := addr.ValueForProtocol(multiaddr.P_P2P); err == nil {
		return addr.String()
	}

	p2pComponent, err := multiaddr.NewComponent("p2p", id.String())
	if err != nil {
		return addr.String()
	}
	return addr.Encapsulate(p2pComponent).String()
}

// registers the logger on the events of the Dispatcher.
func (d *Dispatcher) registerLoggerOnEvents() {
	d.Events.Dispatched.Attach(events.NewClosure(func(event Event) {
		switch event.(type) {
		case BytesTransferred:
			d.opts.Logger.Debug(event)
		default:
			d.opts.Logger.Info(event)
		}
	}))
	d.Events.Ignored.Attach(events.NewClosure(func(event Event) {
		switch event.(type) {
		case ReservationDenied, CircuitDenied:
			d.opts.Logger.Info(event)
		default:
			d.opts.Logger.Debugf("ignored %s", event)
		}
	}))
}
