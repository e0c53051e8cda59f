package main

import (
	"github.com/gin-gonic/gin"

	apirealtime "codeberg.org/wavelink/server/api/realtime"
	"codeberg.org/wavelink/server/api/rest/chat"
	"codeberg.org/wavelink/server/api/rest/health"
	"codeberg.org/wavelink/server/internal/middleware"
)

// requests per minute allowed per client IP across the public surface
const restRateLimitPerMinute = 120

// sets up all API routes and middleware
func RegisterRoutes(router *gin.Engine, server *Server) {
	router.Use(CORSMiddleware())
	router.Use(middleware.RateLimit(restRateLimitPerMinute))

	router.GET("/health", health.Handler)

	// websocket upgrade lives at the root, outside the versioned API
	apirealtime.RegisterRoutes(router, server.realtime, server.verifier, apirealtime.DefaultRouteOptions())

	v1 := router.Group("/api/v1")

	{
		v1.GET("/ping", health.PingHandler)

		chat.RegisterRoutes(v1, server.chatRooms, server.realtime)
	}
}
