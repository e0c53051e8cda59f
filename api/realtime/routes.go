package realtime

import (
	"github.com/gin-gonic/gin"

	rt "codeberg.org/wavelink/server/internal/realtime"
)

// registers the websocket upgrade route at the configured path
func RegisterRoutes(router *gin.Engine, handle *rt.Handle, verifier rt.TokenVerifier, options RouteOptions) {
	router.GET(options.Path, SocketHandler(handle, verifier, options))
}
