package metrics_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusionrelay/relaynode/pkg/metrics"
)

func newStore(t *testing.T, opts ...metrics.StoreOption) (*metrics.RelayMetricsStore, *clock.Mock) {
	t.Helper()

	mockClock := clock.NewMock()
	mockClock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	return metrics.NewRelayMetricsStore("relay", append([]metrics.StoreOption{metrics.WithClock(mockClock)}, opts...)...), mockClock
}

func TestConnectionEstablished(t *testing.T) {
	store, mockClock := newStore(t)

	store.ConnectionEstablished("A")

	snapshot := store.Snapshot()
	require.Len(t, snapshot.Connections, 1)
	require.Equal(t, metrics.PeerConnection{PeerID: "A", ConnectedAt: mockClock.Now()}, snapshot.Connections[0])
	require.EqualValues(t, 1, snapshot.ActiveConnections)
	require.EqualValues(t, 1, snapshot.TotalConnections)
	require.Equal(t, "relay", snapshot.PeerID)
}

func TestConnectionEstablishedOverwrites(t *testing.T) {
	store, mockClock := newStore(t)

	store.ConnectionEstablished("A")
	store.MessageRelayed("A")
	store.BytesTransferred("A", 10, 20)

	mockClock.Add(time.Minute)
	store.ConnectionEstablished("A")

	snapshot := store.Snapshot()
	require.Len(t, snapshot.Connections, 1)
	require.Equal(t, metrics.PeerConnection{PeerID: "A", ConnectedAt: mockClock.Now()}, snapshot.Connections[0])
	// both establishments count towards the history
	require.EqualValues(t, 2, snapshot.TotalConnections)
}

func TestTrafficOfUnknownPeerIsDropped(t *testing.T) {
	store, _ := newStore(t)

	store.BytesTransferred("ghost", 100, 200)
	store.MessageRelayed("ghost")

	snapshot := store.Snapshot()
	require.Empty(t, snapshot.Connections)
	require.Zero(t, snapshot.ActiveConnections)
	require.Zero(t, snapshot.TotalBytesTransferred24h)
	require.Zero(t, snapshot.TotalMessagesRelayed24h)
}

func TestAddRelayAddress(t *testing.T) {
	store, _ := newStore(t)

	store.AddRelayAddress("/ip4/1.2.3.4/tcp/3000/p2p/relay")
	store.AddRelayAddress("/ip6/::1/tcp/3000/p2p/relay")
	store.AddRelayAddress("/ip4/1.2.3.4/tcp/3000/p2p/relay")

	require.Equal(t, []string{
		"/ip4/1.2.3.4/tcp/3000/p2p/relay",
		"/ip6/::1/tcp/3000/p2p/relay",
	}, store.Snapshot().RelayAddresses)
}

func TestSnapshotWindow(t *testing.T) {
	store, mockClock := newStore(t)

	store.ConnectionEstablished("old")
	store.BytesTransferred("old", 1000, 1000)
	store.MessageRelayed("old")

	mockClock.Add(25 * time.Hour)

	store.ConnectionEstablished("new")
	store.BytesTransferred("new", 5, 7)
	store.MessageRelayed("new")
	store.MessageRelayed("new")

	// traffic after the window passed still isn't counted for the old connection
	store.BytesTransferred("old", 1, 1)

	snapshot := store.Snapshot()
	require.EqualValues(t, 2, snapshot.ActiveConnections)
	require.Len(t, snapshot.Connections, 2)
	require.EqualValues(t, 1, snapshot.TotalConnections)
	require.EqualValues(t, 12, snapshot.TotalBytesTransferred24h)
	require.EqualValues(t, 2, snapshot.TotalMessagesRelayed24h)

	// ordered by connection time
	require.Equal(t, "old", snapshot.Connections[0].PeerID)
	require.EqualValues(t, 1001, snapshot.Connections[0].BytesSent)
	require.Equal(t, "new", snapshot.Connections[1].PeerID)
}

func TestSnapshotWindowIsInclusive(t *testing.T) {
	store, mockClock := newStore(t)

	store.ConnectionEstablished("A")
	store.MessageRelayed("A")

	mockClock.Add(metrics.MetricsWindow)
	snapshot := store.Snapshot()
	require.EqualValues(t, 1, snapshot.TotalConnections)
	require.EqualValues(t, 1, snapshot.TotalMessagesRelayed24h)

	mockClock.Add(time.Nanosecond)
	snapshot = store.Snapshot()
	require.Zero(t, snapshot.TotalConnections)
	require.Zero(t, snapshot.TotalMessagesRelayed24h)
	require.EqualValues(t, 1, snapshot.ActiveConnections)
}

func TestHistoryCountIsIndependentOfPruning(t *testing.T) {
	for _, prune := range []bool{true, false} {
		t.Run(fmt.Sprintf("prune=%v", prune), func(t *testing.T) {
			store, mockClock := newStore(t, metrics.WithHistoryPruning(prune))

			for i := 0; i < 5; i++ {
				store.ConnectionEstablished(fmt.Sprintf("peer-%d", i))
				mockClock.Add(10 * time.Hour)
			}

			// entries at -50h, -40h, -30h, -20h, -10h
			require.EqualValues(t, 2, store.Snapshot().TotalConnections)

			store.ConnectionEstablished("late")
			require.EqualValues(t, 3, store.Snapshot().TotalConnections)
		})
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	store, _ := newStore(t)

	store.ConnectionEstablished("A")
	store.AddRelayAddress("/ip4/1.2.3.4/tcp/3000")
	snapshot := store.Snapshot()

	store.BytesTransferred("A", 10, 10)
	store.MessageRelayed("A")
	store.AddRelayAddress("/ip4/5.6.7.8/tcp/3000")
	store.ConnectionEstablished("B")

	require.Len(t, snapshot.Connections, 1)
	require.Zero(t, snapshot.Connections[0].BytesSent)
	require.Zero(t, snapshot.Connections[0].MessagesRelayed)
	require.Len(t, snapshot.RelayAddresses, 1)

	snapshot.Connections[0].BytesSent = 1234
	snapshot.RelayAddresses[0] = "modified"

	fresh := store.Snapshot()
	require.EqualValues(t, 10, fresh.Connections[0].BytesSent)
	require.Equal(t, "/ip4/1.2.3.4/tcp/3000", fresh.RelayAddresses[0])
}

func TestUptime(t *testing.T) {
	store, mockClock := newStore(t)

	mockClock.Add(90 * time.Minute)
	require.Equal(t, 90*time.Minute, store.Snapshot().Uptime)
}

func TestMessagesAndBytes(t *testing.T) {
	store, _ := newStore(t)

	store.ConnectionEstablished("A")
	for i := 0; i < 3; i++ {
		store.MessageRelayed("A")
	}
	store.BytesTransferred("A", 2048, 1024)

	snapshot := store.Snapshot()
	require.EqualValues(t, 1, snapshot.ActiveConnections)
	require.Len(t, snapshot.Connections, 1)
	require.EqualValues(t, 3, snapshot.Connections[0].MessagesRelayed)
	require.EqualValues(t, 2048, snapshot.Connections[0].BytesSent)
	require.EqualValues(t, 1024, snapshot.Connections[0].BytesReceived)
	require.EqualValues(t, 3, snapshot.TotalMessagesRelayed24h)
	require.EqualValues(t, 3072, snapshot.TotalBytesTransferred24h)
}

func TestConnectionClosedKeepsHistory(t *testing.T) {
	store, _ := newStore(t)

	store.ConnectionEstablished("B")
	store.ConnectionClosed("B")
	// closing an unknown peer is a no-op
	store.ConnectionClosed("B")

	snapshot := store.Snapshot()
	require.Zero(t, snapshot.ActiveConnections)
	require.Empty(t, snapshot.Connections)
	require.EqualValues(t, 1, snapshot.TotalConnections)
}

func TestConcurrentMutationsAndSnapshots(t *testing.T) {
	store := metrics.NewRelayMetricsStore("relay")

	const writers = 8
	const readers = 4
	const iterations = 500

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				peerID := fmt.Sprintf("peer-%d-%d", w, i%10)
				store.ConnectionEstablished(peerID)
				store.BytesTransferred(peerID, uint64(i), uint64(i))
				store.MessageRelayed(peerID)
				store.AddRelayAddress(fmt.Sprintf("/ip4/10.0.0.%d/tcp/3000", i%4))
				if i%3 == 0 {
					store.ConnectionClosed(peerID)
				}
			}
		}(w)
	}

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				snapshot := store.Snapshot()
				assert.EqualValues(t, len(snapshot.Connections), snapshot.ActiveConnections)
				assert.LessOrEqual(t, len(snapshot.RelayAddresses), 4)

				var messages uint64
				for _, conn := range snapshot.Connections {
					messages += conn.MessagesRelayed
				}
				assert.Equal(t, messages, snapshot.TotalMessagesRelayed24h)
			}
		}()
	}

	wg.Wait()

	snapshot := store.Snapshot()
	require.EqualValues(t, writers*iterations, snapshot.TotalConnections)
	require.EqualValues(t, len(snapshot.Connections), snapshot.ActiveConnections)
}
