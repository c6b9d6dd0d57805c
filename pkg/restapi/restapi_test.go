package restapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/libp2p/go-libp2p-core/crypto"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fusionrelay/relaynode/pkg/restapi"
)

func TestNewEchoRendersErrorEnvelope(t *testing.T) {
	var handled []error
	e := restapi.NewEcho(zaptest.NewLogger(t).Sugar(), func(err error, c echo.Context) {
		handled = append(handled, err)
	}, true)

	e.GET("/peer/:"+restapi.ParameterPeerID, func(c echo.Context) error {
		peerID, err := restapi.ParsePeerIDParam(c)
		if err != nil {
			return err
		}
		return restapi.JSONResponse(c, http.StatusOK, peerID.String())
	})
	e.GET("/panic", func(c echo.Context) error {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/peer/invalid", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	envelope := &restapi.HTTPErrorResponseEnvelope{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), envelope))
	require.Equal(t, "400", envelope.Error.Code)
	require.Contains(t, envelope.Error.Message, "invalid peerID")
	require.Len(t, handled, 1)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestParsePeerIDParam(t *testing.T) {
	sk, _, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	require.NoError(t, err)
	id, err := peer.IDFromPrivateKey(sk)
	require.NoError(t, err)

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames(restapi.ParameterPeerID)
	c.SetParamValues(id.String())

	parsed, err := restapi.ParsePeerIDParam(c)
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestGetAcceptHeaderContentType(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	contentType, err := restapi.GetAcceptHeaderContentType(c, echo.MIMETextHTML, echo.MIMEApplicationJSON)
	require.NoError(t, err)
	require.Equal(t, echo.MIMEApplicationJSON, contentType)

	_, err = restapi.GetAcceptHeaderContentType(c, echo.MIMETextHTML)
	require.ErrorIs(t, err, restapi.ErrNotAcceptable)
}

func TestLogServerErrors(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	e := restapi.NewEcho(zap.New(core).Sugar(), restapi.LogServerErrors(zap.New(core).Sugar()), false)

	e.GET("/bad", func(c echo.Context) error {
		return restapi.ErrInvalidParameter
	})
	e.GET("/broken", func(c echo.Context) error {
		return errors.New("storage unavailable")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bad", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, logs.Len())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/broken", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, 1, logs.Len())
	require.Contains(t, logs.All()[0].Message, "GET /broken failed: storage unavailable")
}
