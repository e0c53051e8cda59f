package chat

import (
	"strings"

	"codeberg.org/wavelink/server/internal/realtime"
)

// RoomPolicy gates chat:room: channels on registry membership and
// delegates everything else to the default channel policy. Rooms must
// be joined via the REST surface before the socket may subscribe.
type RoomPolicy struct {
	rooms    *RoomRegistry
	fallback realtime.DefaultChannelPolicy
}

func NewRoomPolicy(rooms *RoomRegistry) *RoomPolicy {
	return &RoomPolicy{rooms: rooms}
}

func (p *RoomPolicy) CanJoin(meta *realtime.ConnectionMeta, channel realtime.ChannelName) *realtime.Error {
	if isChatRoomChannel(channel.String()) {
		if p.rooms.UserCanAccessChannel(meta.UserID, channel.String()) {
			return nil
		}

		return realtime.NewForbidden("Join room via /api/v1/chat/rooms/join before subscribing")
	}

	return p.fallback.CanJoin(meta, channel)
}

func (p *RoomPolicy) CanPublish(meta *realtime.ConnectionMeta, channel realtime.ChannelName, event string) *realtime.Error {
	if isChatRoomChannel(channel.String()) {
		if strings.TrimSpace(event) == "" {
			return realtime.NewBadRequest("Event name is required")
		}

		if p.rooms.UserCanAccessChannel(meta.UserID, channel.String()) {
			return nil
		}

		return realtime.NewForbidden("Join room via /api/v1/chat/rooms/join before publishing")
	}

	return p.fallback.CanPublish(meta, channel, event)
}
