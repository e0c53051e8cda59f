package chat

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"codeberg.org/wavelink/server/internal/auth"
	"codeberg.org/wavelink/server/internal/chat"
	"codeberg.org/wavelink/server/internal/errors"
	"codeberg.org/wavelink/server/internal/logger"
	"codeberg.org/wavelink/server/internal/realtime"
)

// handles joining (or creating) a chat room. Membership is what the
// realtime policy later checks when the socket subscribes to the
// room's channel.
func JoinRoomHandler(rooms *chat.RoomRegistry, handle *realtime.Handle) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			errors.Unauthorized(c, "")
			return
		}

		var req JoinRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errors.BadRequest(c, "room_name is required")
			return
		}

		joined, err := rooms.JoinRoom(userID, req.RoomName)
		if err != nil {
			respondRegistryError(c, err)
			return
		}

		notifyPresence(handle, joined.Channel, "room.joined", userID, joined.MemberCount)

		c.JSON(http.StatusOK, JoinRoomResponse{
			RoomName:     joined.RoomName,
			Channel:      joined.Channel,
			MemberCount:  joined.MemberCount,
			SwitchedFrom: joined.SwitchedFrom,
		})
	}
}

// handles leaving a chat room
func LeaveRoomHandler(rooms *chat.RoomRegistry, handle *realtime.Handle) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			errors.Unauthorized(c, "")
			return
		}

		var req LeaveRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errors.BadRequest(c, "room_name is required")
			return
		}

		left, err := rooms.LeaveRoom(userID, req.RoomName)
		if err != nil {
			respondRegistryError(c, err)
			return
		}

		notifyPresence(handle, left.Channel, "room.left", userID, left.MemberCount)

		c.JSON(http.StatusOK, LeaveRoomResponse{
			RoomName:    left.RoomName,
			Channel:     left.Channel,
			MemberCount: left.MemberCount,
		})
	}
}

// best-effort presence event to the room's channel; members that are
// not yet (or no longer) subscribed simply miss it
func notifyPresence(handle *realtime.Handle, channel, event, userID string, memberCount int) {
	payload, err := json.Marshal(gin.H{
		"user_id":      userID,
		"member_count": memberCount,
	})
	if err != nil {
		return
	}

	if sendErr := handle.SendEvent(channel, event, payload); sendErr != nil {
		logger.Warn("failed to send room presence event",
			"channel", channel,
			"event", event,
			"error", sendErr,
		)
	}
}

func respondRegistryError(c *gin.Context, err error) {
	rtErr := realtime.AsError(err)

	switch rtErr.Kind {
	case realtime.KindBadRequest:
		errors.BadRequest(c, rtErr.Message)
	case realtime.KindNotFound:
		errors.NotFound(c, "room")
	default:
		errors.InternalError(c, "failed to update chat room", err)
	}
}
