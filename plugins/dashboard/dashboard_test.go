package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/libp2p/go-libp2p-core/crypto"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fusionrelay/relaynode/pkg/metrics"
	"github.com/fusionrelay/relaynode/pkg/restapi"
)

func randomPeerID(t *testing.T) peer.ID {
	t.Helper()

	sk, _, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	require.NoError(t, err)

	id, err := peer.IDFromPrivateKey(sk)
	require.NoError(t, err)
	return id
}

type testDashboard struct {
	echo  *echo.Echo
	store *metrics.RelayMetricsStore
	clock *clock.Mock
	feed  *liveFeed
	relay peer.ID
}

func newTestDashboard(t *testing.T) *testDashboard {
	t.Helper()

	mockClock := clock.NewMock()
	mockClock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	relayID := randomPeerID(t)
	store := metrics.NewRelayMetricsStore(relayID.String(), metrics.WithClock(mockClock))

	log := zaptest.NewLogger(t).Sugar()
	e := restapi.NewEcho(log, nil, false)
	feed := newLiveFeed(log, func() interface{} {
		return newMetricsResponse(store.Snapshot())
	})
	setupRoutes(e, store, feed)

	return &testDashboard{
		echo:  e,
		store: store,
		clock: mockClock,
		feed:  feed,
		relay: relayID,
	}
}

func (d *testDashboard) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	d.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestMetricsRoute(t *testing.T) {
	d := newTestDashboard(t)
	peerA := randomPeerID(t)

	d.store.AddRelayAddress("/ip4/192.168.1.10/tcp/3000/p2p/" + d.relay.String())
	d.store.ConnectionEstablished(peerA.String())
	for i := 0; i < 3; i++ {
		d.store.MessageRelayed(peerA.String())
	}
	d.store.BytesTransferred(peerA.String(), 2048, 1024)
	d.clock.Add(90*time.Minute + 250*time.Millisecond)

	rec := d.get(t, RouteMetrics)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := &metricsResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), resp))
	require.EqualValues(t, 1, resp.TotalConnections)
	require.EqualValues(t, 1, resp.ActiveConnections)
	require.EqualValues(t, 3072, resp.TotalBytesTransferred24h)
	require.EqualValues(t, 3, resp.TotalMessagesRelayed24h)
	require.Equal(t, []string{"/ip4/192.168.1.10/tcp/3000/p2p/" + d.relay.String()}, resp.RelayAddresses)
	require.Equal(t, uptime{Secs: 5400, Nanos: 250000000}, resp.Uptime)

	require.Len(t, resp.Connections, 1)
	require.Equal(t, peerA.String(), resp.Connections[0].PeerID)
	require.True(t, resp.Connections[0].ConnectedAt.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
	require.EqualValues(t, 2048, resp.Connections[0].BytesSent)
	require.EqualValues(t, 1024, resp.Connections[0].BytesReceived)
	require.EqualValues(t, 3, resp.Connections[0].MessagesRelayed)

	// the JSON keys are snake case
	raw := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, key := range []string{"total_connections", "active_connections", "total_bytes_transferred_24h", "total_messages_relayed_24h", "relay_addresses", "uptime", "connections"} {
		require.Contains(t, raw, key)
	}
}

func TestMetricsRouteWithoutConnections(t *testing.T) {
	d := newTestDashboard(t)

	rec := d.get(t, RouteMetrics)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"connections":[]`)
	require.Contains(t, rec.Body.String(), `"relay_addresses":[]`)
}

func TestPeerIDRoute(t *testing.T) {
	d := newTestDashboard(t)

	rec := d.get(t, RoutePeerID)
	require.Equal(t, http.StatusOK, rec.Code)

	var peerID string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &peerID))
	require.Equal(t, d.relay.String(), peerID)
}

func TestConnectionRoute(t *testing.T) {
	d := newTestDashboard(t)
	peerA := randomPeerID(t)
	d.store.ConnectionEstablished(peerA.String())
	d.store.BytesTransferred(peerA.String(), 10, 20)

	rec := d.get(t, "/api/connections/"+peerA.String())
	require.Equal(t, http.StatusOK, rec.Code)

	resp := &connectionResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), resp))
	require.Equal(t, peerA.String(), resp.PeerID)
	require.EqualValues(t, 10, resp.BytesSent)
	require.EqualValues(t, 20, resp.BytesReceived)

	rec = d.get(t, "/api/connections/"+randomPeerID(t).String())
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = d.get(t, "/api/connections/invalid")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	envelope := &restapi.HTTPErrorResponseEnvelope{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), envelope))
	require.Equal(t, "400", envelope.Error.Code)
}

func TestHomepage(t *testing.T) {
	d := newTestDashboard(t)
	peerA := randomPeerID(t)

	rec := d.get(t, RouteHomepage)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMETextHTML))
	require.Contains(t, rec.Body.String(), `<meta http-equiv="refresh" content="30">`)
	require.Contains(t, rec.Body.String(), "No addresses available yet...")

	d.store.AddRelayAddress("/ip4/192.168.1.10/tcp/3000/p2p/" + d.relay.String())
	d.store.ConnectionEstablished(peerA.String())
	d.store.BytesTransferred(peerA.String(), 2048, 0)
	d.clock.Add(2 * time.Hour)

	body := d.get(t, RouteHomepage).Body.String()
	require.NotContains(t, body, "No addresses available yet...")
	require.Contains(t, body, "/ip4/192.168.1.10/tcp/3000/p2p/"+d.relay.String())
	require.Contains(t, body, "Uptime: 2 hours")
	require.Contains(t, body, "..."+shortPeerID(peerA.String()))
	require.Contains(t, body, "2024-03-01 12:00:00 UTC")
	require.Contains(t, body, "2.0 KiB")
}

func TestHomepageContentNegotiation(t *testing.T) {
	d := newTestDashboard(t)
	d.store.ConnectionEstablished(randomPeerID(t).String())

	request := func(accept string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, RouteHomepage, nil)
		if accept != "" {
			req.Header.Set(echo.HeaderAccept, accept)
		}
		rec := httptest.NewRecorder()
		d.echo.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		return rec
	}

	rec := request(echo.MIMEApplicationJSON)
	require.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON))
	resp := &metricsResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), resp))
	require.EqualValues(t, 1, resp.ActiveConnections)

	for _, accept := range []string{"", "*/*", "text/html,application/xhtml+xml,application/xml;q=0.9"} {
		rec = request(accept)
		require.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMETextHTML), accept)
	}
}

func TestShortPeerID(t *testing.T) {
	require.Equal(t, "abc", shortPeerID("abc"))
	require.Equal(t, "fghij", shortPeerID("abcdefghij"))
}

func TestNewUptime(t *testing.T) {
	require.Equal(t, uptime{Secs: 1, Nanos: 500}, newUptime(time.Second+500*time.Nanosecond))
	require.Equal(t, uptime{}, newUptime(-time.Second))
}

func TestLiveFeed(t *testing.T) {
	d := newTestDashboard(t)
	d.store.ConnectionEstablished(randomPeerID(t).String())

	server := httptest.NewServer(d.echo)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		d.feed.Run(ctx, 10*time.Millisecond)
	}()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + RouteLiveFeed
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// the initial payload and at least one periodic update
	for i := 0; i < 2; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		resp := &metricsResponse{}
		require.NoError(t, conn.ReadJSON(resp))
		require.EqualValues(t, 1, resp.ActiveConnections)
	}

	cancel()
	select {
	case <-feedDone:
	case <-time.After(5 * time.Second):
		t.Fatal("live feed didn't stop after the context was canceled")
	}

	// the feed closes the connection of its clients on shutdown
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
