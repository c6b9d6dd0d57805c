package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	// MetricsWindow is the rolling period the 24h totals of a RelayMetrics snapshot are computed over.
	MetricsWindow = 24 * time.Hour
)

// PeerConnection holds the traffic counters of a currently connected peer.
type PeerConnection struct {
	// The ID of the remote peer.
	PeerID string
	// The time the peer got (re-)established.
	ConnectedAt time.Time
	// The amount of bytes sent to the peer.
	BytesSent uint64
	// The amount of bytes received from the peer.
	BytesReceived uint64
	// The amount of circuits relayed on behalf of the peer.
	MessagesRelayed uint64
}

// RelayMetrics is a point in time copy of the metrics of a RelayMetricsStore.
type RelayMetrics struct {
	// The ID of the relay itself.
	PeerID string
	// The time the snapshot was taken.
	GeneratedAt time.Time
	// The amount of connections established within the last 24h.
	TotalConnections uint64
	// The amount of currently connected peers.
	ActiveConnections uint64
	// The bytes sent and received by peers which connected within the last 24h.
	TotalBytesTransferred24h uint64
	// The circuits relayed for peers which connected within the last 24h.
	TotalMessagesRelayed24h uint64
	// The addresses the relay is reachable on, in the order they were observed.
	RelayAddresses []string
	// The time since the store was created.
	Uptime time.Duration
	// The currently connected peers.
	Connections []PeerConnection
}

// the default options applied to the RelayMetricsStore.
var defaultStoreOptions = []StoreOption{
	WithClock(clock.New()),
	WithHistoryPruning(true),
}

// StoreOptions define options for a RelayMetricsStore.
type StoreOptions struct {
	Clock        clock.Clock
	PruneHistory bool
}

// StoreOption is a function setting a StoreOptions option.
type StoreOption func(opts *StoreOptions)

// WithClock sets the clock used to timestamp connections and to compute the window.
func WithClock(c clock.Clock) StoreOption {
	return func(opts *StoreOptions) {
		opts.Clock = c
	}
}

// WithHistoryPruning defines whether connection history entries which fell out of
// the metrics window are dropped when new connections are recorded.
func WithHistoryPruning(prune bool) StoreOption {
	return func(opts *StoreOptions) {
		opts.PruneHistory = prune
	}
}

// applies the given StoreOption.
func (so *StoreOptions) apply(opts ...StoreOption) {
	for _, opt := range opts {
		opt(so)
	}
}

// RelayMetricsStore aggregates the connection lifecycle of a relay.
// All state is guarded by a single lock, snapshots are copied out while holding it.
type RelayMetricsStore struct {
	mu sync.Mutex

	peerID    string
	opts      *StoreOptions
	startTime time.Time

	connections map[string]*PeerConnection
	// sorted ascending since entries are appended with the current time.
	connectionHistory []time.Time
	relayAddresses    []string
}

// NewRelayMetricsStore creates a new RelayMetricsStore for the relay with the given peer ID.
func NewRelayMetricsStore(peerID string, opts ...StoreOption) *RelayMetricsStore {
	storeOpts := &StoreOptions{}
	storeOpts.apply(defaultStoreOptions...)
	storeOpts.apply(opts...)

	return &RelayMetricsStore{
		peerID:            peerID,
		opts:              storeOpts,
		startTime:         storeOpts.Clock.Now(),
		connections:       make(map[string]*PeerConnection),
		connectionHistory: make([]time.Time, 0),
		relayAddresses:    make([]string, 0),
	}
}

// PeerID returns the ID of the relay.
func (s *RelayMetricsStore) PeerID() string {
	return s.peerID
}

// ConnectionEstablished (re-)creates the record of the given peer with zeroed counters
// and adds an entry to the connection history.
// An already existing record gets overwritten, the most recent establishment wins.
func (s *RelayMetricsStore) ConnectionEstablished(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Clock.Now()
	s.connections[peerID] = &PeerConnection{
		PeerID:      peerID,
		ConnectedAt: now,
	}

	if s.opts.PruneHistory {
		s.pruneHistory(now.Add(-MetricsWindow))
	}
	s.connectionHistory = append(s.connectionHistory, now)
}

// ConnectionClosed removes the record of the given peer.
// Callers must only call this once the peer has no established connections left.
func (s *RelayMetricsStore) ConnectionClosed(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.connections, peerID)
}

// BytesTransferred adds the given amounts to the counters of the peer.
// Traffic of peers without a record is dropped.
func (s *RelayMetricsStore) BytesTransferred(peerID string, sent uint64, received uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, has := s.connections[peerID]
	if !has {
		return
	}
	conn.BytesSent += sent
	conn.BytesReceived += received
}

// MessageRelayed increments the relay counter of the peer.
// Relays for peers without a record are dropped.
func (s *RelayMetricsStore) MessageRelayed(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, has := s.connections[peerID]
	if !has {
		return
	}
	conn.MessagesRelayed++
}

// AddRelayAddress adds the address to the relay addresses if it isn't known yet.
func (s *RelayMetricsStore) AddRelayAddress(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, addr := range s.relayAddresses {
		if addr == address {
			return
		}
	}
	s.relayAddresses = append(s.relayAddresses, address)
}

// Snapshot returns a copy of the current metrics.
// The 24h totals only include connections established within the window,
// the active connections are not windowed.
func (s *RelayMetricsStore) Snapshot() *RelayMetrics {
	snapshot := s.copySnapshot()

	sort.Slice(snapshot.Connections, func(i, j int) bool {
		a, b := snapshot.Connections[i], snapshot.Connections[j]
		if !a.ConnectedAt.Equal(b.ConnectedAt) {
			return a.ConnectedAt.Before(b.ConnectedAt)
		}
		return a.PeerID < b.PeerID
	})

	return snapshot
}

func (s *RelayMetricsStore) copySnapshot() *RelayMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Clock.Now()
	windowStart := now.Add(-MetricsWindow)

	// the history is sorted, so everything from the first entry inside the window counts
	firstInWindow := sort.Search(len(s.connectionHistory), func(i int) bool {
		return !s.connectionHistory[i].Before(windowStart)
	})

	snapshot := &RelayMetrics{
		PeerID:            s.peerID,
		GeneratedAt:       now,
		TotalConnections:  uint64(len(s.connectionHistory) - firstInWindow),
		ActiveConnections: uint64(len(s.connections)),
		RelayAddresses:    append(make([]string, 0, len(s.relayAddresses)), s.relayAddresses...),
		Uptime:            now.Sub(s.startTime),
		Connections:       make([]PeerConnection, 0, len(s.connections)),
	}

	for _, conn := range s.connections {
		if !conn.ConnectedAt.Before(windowStart) {
			snapshot.TotalBytesTransferred24h += conn.BytesSent + conn.BytesReceived
			snapshot.TotalMessagesRelayed24h += conn.MessagesRelayed
		}
		snapshot.Connections = append(snapshot.Connections, *conn)
	}

	return snapshot
}

// drops the history entries before the given time. Must be called with the lock held.
func (s *RelayMetricsStore) pruneHistory(before time.Time) {
	idx := sort.Search(len(s.connectionHistory), func(i int) bool {
		return !s.connectionHistory[i].Before(before)
	})
	if idx == 0 {
		return
	}
	s.connectionHistory = append(s.connectionHistory[:0], s.connectionHistory[idx:]...)
}
