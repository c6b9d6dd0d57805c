package dashboard

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fusionrelay/relaynode/pkg/metrics"
	"github.com/fusionrelay/relaynode/pkg/restapi"
)

const (
	// RouteHomepage is the route for the HTML dashboard.
	// GET returns the rendered metrics, or the metrics as JSON if the request accepts "application/json".
	RouteHomepage = "/"

	// RouteMetrics is the route for getting the relay metrics.
	// GET returns the current snapshot as JSON.
	RouteMetrics = "/api/metrics"

	// RoutePeerID is the route for getting the peer ID of the relay.
	// GET returns the peer ID as a JSON string.
	RoutePeerID = "/api/peerid"

	// RouteConnection is the route for getting the metrics of a single connected peer.
	// GET returns the connection of the peer or 404 if it isn't connected.
	RouteConnection = "/api/connections/:" + restapi.ParameterPeerID

	// RouteLiveFeed is the route of the websocket live feed.
	RouteLiveFeed = "/ws"
)

var (
	// ErrConnectionNotFound is returned if the requested peer isn't connected to the relay.
	ErrConnectionNotFound = echo.NewHTTPError(http.StatusNotFound, "connection not found")
)

func setupRoutes(e *echo.Echo, store *metrics.RelayMetricsStore, feed *liveFeed) {

	e.GET(RouteHomepage, func(c echo.Context) error {
		mimeType, err := restapi.GetAcceptHeaderContentType(c, echo.MIMEApplicationJSON, echo.MIMETextHTML)
		if err != nil && !errors.Is(err, restapi.ErrNotAcceptable) {
			return err
		}

		if mimeType == echo.MIMEApplicationJSON {
			return restapi.JSONResponse(c, http.StatusOK, newMetricsResponse(store.Snapshot()))
		}
		// browsers and everything else get the rendered page
		return homepage(c, store)
	})

	e.GET(RouteMetrics, func(c echo.Context) error {
		return restapi.JSONResponse(c, http.StatusOK, newMetricsResponse(store.Snapshot()))
	})

	e.GET(RoutePeerID, func(c echo.Context) error {
		return restapi.JSONResponse(c, http.StatusOK, store.PeerID())
	})

	e.GET(RouteConnection, func(c echo.Context) error {
		resp, err := connectionByPeerID(c, store)
		if err != nil {
			return err
		}
		return restapi.JSONResponse(c, http.StatusOK, resp)
	})

	e.GET(RouteLiveFeed, func(c echo.Context) error {
		feed.ServeWebsocket(c.Response(), c.Request())
		return nil
	})
}

func connectionByPeerID(c echo.Context, store *metrics.RelayMetricsStore) (*connectionResponse, error) {
	peerID, err := restapi.ParsePeerIDParam(c)
	if err != nil {
		return nil, err
	}

	for _, conn := range store.Snapshot().Connections {
		if conn.PeerID == peerID.String() {
			return newConnectionResponse(conn), nil
		}
	}

	return nil, errors.WithMessagef(ErrConnectionNotFound, "peer %s", peerID)
}
