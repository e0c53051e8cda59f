package chat

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"codeberg.org/wavelink/server/internal/realtime"
)

const (
	chatRoomPrefix = "chat:room:"
	maxRoomNameLen = 64
	maxRoomMembers = 2
)

// RoomJoin describes the outcome of joining a room
type RoomJoin struct {
	RoomName     string
	Channel      string
	MemberCount  int
	SwitchedFrom string // previous room's display name, empty if none
}

// RoomLeave describes the outcome of leaving a room
type RoomLeave struct {
	RoomName    string
	Channel     string
	MemberCount int
}

type roomRecord struct {
	displayName string
	channel     string
	members     map[string]struct{}
}

// RoomRegistry tracks chat rooms registered out-of-band over REST.
// Each room maps to a generated chat:room:<id> realtime channel capped
// at two participants; the channel policy consults the registry for
// membership.
type RoomRegistry struct {
	mu            sync.RWMutex
	roomsByName   map[string]*roomRecord
	channelToRoom map[string]string
	userToRoom    map[string]string
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		roomsByName:   make(map[string]*roomRecord),
		channelToRoom: make(map[string]string),
		userToRoom:    make(map[string]string),
	}
}

// JoinRoom adds a user to a room, creating it on first join. Joining a
// room the user is already in is idempotent; joining a different room
// first removes them from the previous one.
func (r *RoomRegistry) JoinRoom(userID, roomName string) (*RoomJoin, error) {
	roomKey, displayName, err := normalizeRoomName(roomName)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switchedFrom := ""

	if existingKey, ok := r.userToRoom[userID]; ok {
		if existingKey != roomKey {
			if previous, ok := r.roomsByName[existingKey]; ok {
				delete(previous.members, userID)
				switchedFrom = previous.displayName

				if len(previous.members) == 0 {
					delete(r.roomsByName, existingKey)
					delete(r.channelToRoom, previous.channel)
				}
			}
		} else if room, ok := r.roomsByName[roomKey]; ok {
			if _, member := room.members[userID]; member {
				return &RoomJoin{
					RoomName:    room.displayName,
					Channel:     room.channel,
					MemberCount: len(room.members),
				}, nil
			}
		}
	}

	room, ok := r.roomsByName[roomKey]
	if !ok {
		room = &roomRecord{
			displayName: displayName,
			channel:     makeRoomChannel(),
			members:     make(map[string]struct{}),
		}
		r.roomsByName[roomKey] = room
	}

	if _, member := room.members[userID]; !member && len(room.members) >= maxRoomMembers {
		return nil, realtime.NewBadRequest("Room already has two participants")
	}

	room.members[userID] = struct{}{}
	r.channelToRoom[room.channel] = roomKey
	r.userToRoom[userID] = roomKey

	return &RoomJoin{
		RoomName:     room.displayName,
		Channel:      room.channel,
		MemberCount:  len(room.members),
		SwitchedFrom: switchedFrom,
	}, nil
}

// LeaveRoom removes a user from a room, pruning the room once empty.
func (r *RoomRegistry) LeaveRoom(userID, roomName string) (*RoomLeave, error) {
	roomKey, _, err := normalizeRoomName(roomName)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.roomsByName[roomKey]
	if !ok {
		return nil, realtime.NewNotFound("Room not found")
	}

	if _, member := room.members[userID]; !member {
		return nil, realtime.NewNotFound("User is not a member of this room")
	}

	delete(room.members, userID)

	if current, ok := r.userToRoom[userID]; ok && current == roomKey {
		delete(r.userToRoom, userID)
	}

	left := &RoomLeave{
		RoomName:    room.displayName,
		Channel:     room.channel,
		MemberCount: len(room.members),
	}

	if len(room.members) == 0 {
		delete(r.roomsByName, roomKey)
		delete(r.channelToRoom, room.channel)
	}

	return left, nil
}

// UserCanAccessChannel reports whether a user is a registered member of
// the room behind a chat channel.
func (r *RoomRegistry) UserCanAccessChannel(userID, channel string) bool {
	if !isChatRoomChannel(channel) {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	roomKey, ok := r.channelToRoom[channel]
	if !ok {
		return false
	}

	room, ok := r.roomsByName[roomKey]
	if !ok {
		return false
	}

	_, member := room.members[userID]

	return member
}

// normalizes a raw room name into its lookup key and display name
func normalizeRoomName(raw string) (string, string, error) {
	trimmed := strings.TrimSpace(raw)

	if trimmed == "" {
		return "", "", realtime.NewBadRequest("room_name is required")
	}

	if len(trimmed) > maxRoomNameLen {
		return "", "", realtime.NewBadRequest("room_name is too long")
	}

	for _, c := range trimmed {
		if isRoomNameChar(c) {
			continue
		}

		return "", "", realtime.NewBadRequest("room_name has invalid characters")
	}

	displayName := strings.Join(strings.Fields(trimmed), " ")
	roomKey := strings.ToLower(displayName)

	return roomKey, displayName, nil
}

func isRoomNameChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == ' ' || c == '_' || c == '-' || c == '.':
		return true
	}

	return false
}

func makeRoomChannel() string {
	return fmt.Sprintf("%s%s", chatRoomPrefix, strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func isChatRoomChannel(channel string) bool {
	return strings.HasPrefix(channel, chatRoomPrefix)
}
