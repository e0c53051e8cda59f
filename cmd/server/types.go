package main

import (
	"github.com/gin-gonic/gin"

	"codeberg.org/wavelink/server/internal/auth"
	"codeberg.org/wavelink/server/internal/chat"
	"codeberg.org/wavelink/server/internal/config"
	"codeberg.org/wavelink/server/internal/realtime"
)

// holds all dependencies and state for the API server
type Server struct {
	config    *config.Config
	router    *gin.Engine
	realtime  *realtime.Handle
	verifier  *auth.Verifier
	chatRooms *chat.RoomRegistry
}
