package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iotaledger/hive.go/logger"
	"github.com/iotaledger/hive.go/websockethub"
)

const (
	// time allowed to complete the websocket handshake.
	webSocketWriteTimeout = 10 * time.Second

	broadcastQueueSize = 20

	// maximum amount of queued payloads per client, slower clients miss updates.
	clientSendChannelSize = 10

	// the feed doesn't expect messages from its clients.
	maxWebsocketMessageSize = 125
)

// PayloadFunc returns the payload sent to the clients.
type PayloadFunc func() interface{}

// liveFeed pushes the payload of a PayloadFunc to all connected websocket clients.
type liveFeed struct {
	hub     *websockethub.Hub
	payload PayloadFunc
}

func newLiveFeed(log *logger.Logger, payload PayloadFunc) *liveFeed {
	upgrader := &websocket.Upgrader{
		HandshakeTimeout:  webSocketWriteTimeout,
		CheckOrigin:       func(r *http.Request) bool { return true }, // allow any origin for websocket connections
		EnableCompression: true,
	}

	return &liveFeed{
		hub:     websockethub.NewHub(log, upgrader, broadcastQueueSize, clientSendChannelSize, maxWebsocketMessageSize),
		payload: payload,
	}
}

// Run runs the hub and broadcasts the payload in the given interval until the context is canceled.
// It returns after all clients were removed.
func (f *liveFeed) Run(ctx context.Context, interval time.Duration) {
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		f.hub.Run(ctx)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-hubDone
			return
		case <-ticker.C:
			f.hub.BroadcastMsg(f.payload())
		}
	}
}

// ServeWebsocket upgrades the request and registers the client at the hub.
// New clients get the current payload right away.
func (f *liveFeed) ServeWebsocket(w http.ResponseWriter, r *http.Request) {
	f.hub.ServeWebsocket(w, r, nil, func(client *websockethub.Client) {
		client.Send(f.payload())
	})
}
