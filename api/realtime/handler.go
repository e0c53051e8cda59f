package realtime

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"codeberg.org/wavelink/server/internal/logger"
	rt "codeberg.org/wavelink/server/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     CheckOrigin,
}

// httpError is a pre-upgrade rejection; responses are plain text until
// the socket is established, after which errors travel as frames
type httpError struct {
	status  int
	message string
}

// SocketHandler authenticates the upgrade request and hands the socket
// to a new realtime session.
func SocketHandler(handle *rt.Handle, verifier rt.TokenVerifier, options RouteOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !handle.IsEnabled() {
			c.String(http.StatusNotFound, "Realtime is disabled")
			return
		}

		if !websocket.IsWebSocketUpgrade(c.Request) {
			c.String(http.StatusBadRequest, "WebSocket upgrade required")
			return
		}

		token, httpErr := extractAccessToken(c.Request, options)
		if httpErr != nil {
			c.String(httpErr.status, httpErr.message)
			return
		}

		auth, err := verifier.VerifyToken(c.Request.Context(), token)
		if err != nil {
			verifyErr := rt.AsError(err)
			c.String(statusForKind(verifyErr.Kind), verifyErr.Message)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote an HTTP error response
			logger.ErrorErr(err, "failed to upgrade realtime connection",
				"user_id", auth.UserID,
				"ip", c.ClientIP(),
			)
			return
		}

		logger.Info("realtime connection established",
			"user_id", auth.UserID,
			"ip", c.ClientIP(),
		)

		handle.ServeSocket(conn, auth)
	}
}

// extractAccessToken prefers the Authorization header and falls back to
// the token query parameter when allowed.
func extractAccessToken(r *http.Request, options RouteOptions) (string, *httpError) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if bearer, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
			if token := strings.TrimSpace(bearer); token != "" {
				return token, nil
			}
		}

		if options.StrictHeaderPrecedence {
			return "", &httpError{http.StatusUnauthorized, "Missing/invalid Authorization header"}
		}
	}

	if options.AllowQueryToken {
		if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
			return token, nil
		}
	}

	return "", &httpError{http.StatusUnauthorized, "Missing access token (use Authorization Bearer or token query param)"}
}

// maps verifier error kinds onto pre-upgrade HTTP statuses
func statusForKind(kind rt.ErrorKind) int {
	switch kind {
	case rt.KindBadRequest:
		return http.StatusBadRequest
	case rt.KindUnauthorized:
		return http.StatusUnauthorized
	case rt.KindForbidden:
		return http.StatusForbidden
	case rt.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
