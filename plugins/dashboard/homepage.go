package dashboard

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fusionrelay/relaynode/pkg/metrics"
)

const (
	homepageRefreshInterval = 30 * time.Second
	homepageTimeFormat      = "2006-01-02 15:04:05 UTC"
	shortPeerIDLength       = 5
)

var (
	//go:embed templates/index.html
	homepageTemplateContent string

	homepageTemplate = template.Must(template.New("index").Parse(homepageTemplateContent))
)

type homepageConnection struct {
	PeerID          string
	ShortPeerID     string
	ConnectedSince  string
	BytesSent       string
	BytesReceived   string
	MessagesRelayed uint64
}

type homepageData struct {
	PeerID              string
	RefreshSeconds      int
	TotalConnections    uint64
	ActiveConnections   uint64
	BytesTransferred24h string
	MessagesRelayed24h  uint64
	RelayAddresses      []string
	UptimeHours         int64
	Connections         []homepageConnection
	LastUpdated         string
}

func shortPeerID(peerID string) string {
	if len(peerID) <= shortPeerIDLength {
		return peerID
	}
	return peerID[len(peerID)-shortPeerIDLength:]
}

func newHomepageData(snapshot *metrics.RelayMetrics) *homepageData {
	data := &homepageData{
		PeerID:              snapshot.PeerID,
		RefreshSeconds:      int(homepageRefreshInterval / time.Second),
		TotalConnections:    snapshot.TotalConnections,
		ActiveConnections:   snapshot.ActiveConnections,
		BytesTransferred24h: humanize.IBytes(snapshot.TotalBytesTransferred24h),
		MessagesRelayed24h:  snapshot.TotalMessagesRelayed24h,
		RelayAddresses:      snapshot.RelayAddresses,
		UptimeHours:         int64(snapshot.Uptime / time.Hour),
		Connections:         make([]homepageConnection, 0, len(snapshot.Connections)),
		LastUpdated:         snapshot.GeneratedAt.UTC().Format(homepageTimeFormat),
	}

	for _, conn := range snapshot.Connections {
		data.Connections = append(data.Connections, homepageConnection{
			PeerID:          conn.PeerID,
			ShortPeerID:     shortPeerID(conn.PeerID),
			ConnectedSince:  conn.ConnectedAt.UTC().Format(homepageTimeFormat),
			BytesSent:       humanize.IBytes(conn.BytesSent),
			BytesReceived:   humanize.IBytes(conn.BytesReceived),
			MessagesRelayed: conn.MessagesRelayed,
		})
	}

	return data
}

// renders the snapshot after the store lock was released.
func homepage(c echo.Context, store *metrics.RelayMetricsStore) error {
	var buf bytes.Buffer
	if err := homepageTemplate.Execute(&buf, newHomepageData(store.Snapshot())); err != nil {
		return errors.WithMessagef(echo.ErrInternalServerError, "rendering the dashboard failed: %s", err)
	}

	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
