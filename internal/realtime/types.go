package realtime

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ConnectionID uniquely identifies one websocket connection for the
// lifetime of its session. It is the key for every hub-internal index.
type ConnectionID string

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

func (id ConnectionID) String() string {
	return string(id)
}

// maximum channel name length after trimming
const maxChannelNameLen = 128

// ChannelName is a validated fan-out topic name. Construct via
// ParseChannelName; the zero value is not a valid channel.
type ChannelName string

// parses and validates a raw channel name. The name is trimmed and must
// be non-empty, at most 128 bytes, and restricted to ASCII alphanumerics
// plus ':', '_', '-' and '.'.
func ParseChannelName(raw string) (ChannelName, *Error) {
	trimmed := strings.TrimSpace(raw)

	if trimmed == "" {
		return "", NewBadRequest("Channel name is required")
	}

	if len(trimmed) > maxChannelNameLen {
		return "", NewBadRequest("Channel name is too long")
	}

	for _, c := range trimmed {
		if isChannelNameChar(c) {
			continue
		}

		return "", NewBadRequest("Channel name contains invalid characters")
	}

	return ChannelName(trimmed), nil
}

func isChannelNameChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == ':' || c == '_' || c == '-' || c == '.':
		return true
	}

	return false
}

func (c ChannelName) String() string {
	return string(c)
}

// builds the private channel name for a user
func userChannel(userID string) ChannelName {
	return ChannelName(fmt.Sprintf("user:%s", userID))
}

// SessionAuth is the identity resolved from an access token before the
// socket session starts.
type SessionAuth struct {
	UserID string
	Roles  []string
}

// ConnectionMeta describes one registered connection. It is immutable
// after registration.
type ConnectionMeta struct {
	ID           ConnectionID
	UserID       string
	Roles        []string
	JoinedAtUnix int64
}

func (m *ConnectionMeta) hasRole(role string) bool {
	for _, r := range m.Roles {
		if r == role {
			return true
		}
	}

	return false
}

// DisconnectReason records why a session loop exited. It is logged by
// the hub and never sent to clients.
type DisconnectReason string

const (
	ReasonClientClosed   DisconnectReason = "client_closed"
	ReasonSocketError    DisconnectReason = "socket_error"
	ReasonHubUnavailable DisconnectReason = "hub_unavailable"
	ReasonSlowConsumer   DisconnectReason = "slow_consumer"
	ReasonIdleTimeout    DisconnectReason = "idle_timeout"
	ReasonProtocolError  DisconnectReason = "protocol_error"
)
