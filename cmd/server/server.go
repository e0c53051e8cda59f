package main

import (
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"codeberg.org/wavelink/server/internal/auth"
	"codeberg.org/wavelink/server/internal/chat"
	"codeberg.org/wavelink/server/internal/config"
	"codeberg.org/wavelink/server/internal/logger"
	"codeberg.org/wavelink/server/internal/realtime"
)

// creates and configures a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	chatRooms := chat.NewRoomRegistry()

	// chat rooms feed the channel policy: sockets may only subscribe to
	// chat:room: channels the registry admitted them to
	handle := realtime.SpawnWithPolicy(cfg.Realtime, chat.NewRoomPolicy(chatRooms))

	logger.Info("realtime hub started",
		"enabled", cfg.Realtime.Enabled,
		"max_connections", cfg.Realtime.MaxConnections,
		"max_message_bytes", cfg.Realtime.MaxMessageBytes,
	)

	srv := &Server{
		config:    cfg,
		router:    gin.Default(),
		realtime:  handle,
		verifier:  auth.NewVerifier(),
		chatRooms: chatRooms,
	}

	RegisterRoutes(srv.router, srv)

	return srv, nil
}

// stops background work; live sessions drain and disconnect
func (s *Server) Shutdown() {
	s.realtime.Shutdown()
}

// builds the CORS middleware from ALLOWED_ORIGINS
func CORSMiddleware() gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if envOrigins := os.Getenv("ALLOWED_ORIGINS"); envOrigins != "" {
		origins := strings.Split(envOrigins, ",")

		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}

		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}

	return cors.New(corsConfig)
}
