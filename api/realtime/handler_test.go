package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rt "codeberg.org/wavelink/server/internal/realtime"
)

type stubVerifier struct {
	auth rt.SessionAuth
	err  error
}

func (s *stubVerifier) VerifyToken(_ context.Context, _ string) (rt.SessionAuth, error) {
	return s.auth, s.err
}

func newUpgradeRequest(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")

	return req
}

func TestExtractAccessTokenPrefersAuthorizationHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/realtime/socket?token=query-token", nil)
	req.Header.Set("Authorization", "Bearer header-token")

	token, httpErr := extractAccessToken(req, DefaultRouteOptions())
	require.Nil(t, httpErr)
	assert.Equal(t, "header-token", token)
}

func TestExtractAccessTokenFallsBackToQueryToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/realtime/socket?token=query-token", nil)

	token, httpErr := extractAccessToken(req, DefaultRouteOptions())
	require.Nil(t, httpErr)
	assert.Equal(t, "query-token", token)
}

func TestExtractAccessTokenRejectsInvalidHeaderWhenStrict(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/realtime/socket?token=query-token", nil)
	req.Header.Set("Authorization", "Token abc")

	_, httpErr := extractAccessToken(req, DefaultRouteOptions())
	require.NotNil(t, httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.status)
	assert.Equal(t, "Missing/invalid Authorization header", httpErr.message)
}

func TestExtractAccessTokenLenientHeaderFallsThrough(t *testing.T) {
	options := DefaultRouteOptions()
	options.StrictHeaderPrecedence = false

	req := httptest.NewRequest(http.MethodGet, "/realtime/socket?token=query-token", nil)
	req.Header.Set("Authorization", "Token abc")

	token, httpErr := extractAccessToken(req, options)
	require.Nil(t, httpErr)
	assert.Equal(t, "query-token", token)
}

func TestExtractAccessTokenMissingEverywhere(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/realtime/socket", nil)

	_, httpErr := extractAccessToken(req, DefaultRouteOptions())
	require.NotNil(t, httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.status)
}

func TestExtractAccessTokenIgnoresQueryWhenDisallowed(t *testing.T) {
	options := DefaultRouteOptions()
	options.AllowQueryToken = false

	req := httptest.NewRequest(http.MethodGet, "/realtime/socket?token=query-token", nil)

	_, httpErr := extractAccessToken(req, options)
	require.NotNil(t, httpErr)
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForKind(rt.KindBadRequest))
	assert.Equal(t, http.StatusUnauthorized, statusForKind(rt.KindUnauthorized))
	assert.Equal(t, http.StatusForbidden, statusForKind(rt.KindForbidden))
	assert.Equal(t, http.StatusNotFound, statusForKind(rt.KindNotFound))
	assert.Equal(t, http.StatusInternalServerError, statusForKind(rt.KindInternal))
}

func newTestRouter(handle *rt.Handle, verifier rt.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	RegisterRoutes(router, handle, verifier, DefaultRouteOptions())

	return router
}

func TestSocketHandlerDisabledReturns404(t *testing.T) {
	cfg := rt.DefaultConfig()
	cfg.Enabled = false

	handle := rt.Spawn(cfg)
	router := newTestRouter(handle, &stubVerifier{})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, newUpgradeRequest("/realtime/socket"))

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "Realtime is disabled", recorder.Body.String())
}

func TestSocketHandlerRejectsPlainHTTP(t *testing.T) {
	handle := rt.Spawn(rt.DefaultConfig())
	defer handle.Shutdown()

	router := newTestRouter(handle, &stubVerifier{})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/realtime/socket", nil))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "WebSocket upgrade required", recorder.Body.String())
}

func TestSocketHandlerRejectsMissingToken(t *testing.T) {
	handle := rt.Spawn(rt.DefaultConfig())
	defer handle.Shutdown()

	router := newTestRouter(handle, &stubVerifier{})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, newUpgradeRequest("/realtime/socket"))

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestSocketHandlerMapsVerifierFailures(t *testing.T) {
	handle := rt.Spawn(rt.DefaultConfig())
	defer handle.Shutdown()

	cases := []struct {
		err    *rt.Error
		status int
	}{
		{rt.NewUnauthorized("invalid or expired token"), http.StatusUnauthorized},
		{rt.NewForbidden("account suspended"), http.StatusForbidden},
		{rt.NewNotFound("user not found"), http.StatusNotFound},
		{rt.NewBadRequest("malformed token"), http.StatusBadRequest},
		{rt.NewInternal("verifier backend down"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		router := newTestRouter(handle, &stubVerifier{err: tc.err})

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, newUpgradeRequest("/realtime/socket?token=abc"))

		assert.Equal(t, tc.status, recorder.Code)
		assert.Equal(t, tc.err.Message, recorder.Body.String())
	}
}
