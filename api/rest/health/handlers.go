package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// reports service health
func Handler(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Status:  "healthy",
		Service: "wavelink",
		Version: "1.0.0",
	})
}

// simple liveness probe
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, PingResponse{
		Message: "pong",
	})
}
