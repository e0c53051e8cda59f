package chat

import (
	"github.com/gin-gonic/gin"

	"codeberg.org/wavelink/server/internal/auth"
	"codeberg.org/wavelink/server/internal/chat"
	"codeberg.org/wavelink/server/internal/realtime"
)

func RegisterRoutes(router *gin.RouterGroup, rooms *chat.RoomRegistry, handle *realtime.Handle) {
	router.POST("/chat/rooms/join", auth.AuthMiddleware(), JoinRoomHandler(rooms, handle))
	router.POST("/chat/rooms/leave", auth.AuthMiddleware(), LeaveRoomHandler(rooms, handle))
}
