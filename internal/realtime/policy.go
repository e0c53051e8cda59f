package realtime

import "strings"

// ChannelPolicy makes the authoritative membership decisions for join
// and publish. It is consulted by the hub only; sessions never see it.
// Returned errors must be *Error values (bad_request or forbidden).
type ChannelPolicy interface {
	CanJoin(meta *ConnectionMeta, channel ChannelName) *Error
	CanPublish(meta *ConnectionMeta, channel ChannelName, event string) *Error
}

const adminRole = "admin"

// DefaultChannelPolicy guards user: and admin: prefixed channels and
// allows everything else.
type DefaultChannelPolicy struct{}

func (DefaultChannelPolicy) CanJoin(meta *ConnectionMeta, channel ChannelName) *Error {
	name := channel.String()

	if owner, ok := strings.CutPrefix(name, "user:"); ok {
		if owner == meta.UserID || meta.hasRole(adminRole) {
			return nil
		}

		return NewForbidden("Cannot join another user's private channel")
	}

	if strings.HasPrefix(name, "admin:") && !meta.hasRole(adminRole) {
		return NewForbidden("Admin channel requires admin role")
	}

	return nil
}

func (DefaultChannelPolicy) CanPublish(meta *ConnectionMeta, channel ChannelName, event string) *Error {
	if strings.TrimSpace(event) == "" {
		return NewBadRequest("Event name is required")
	}

	name := channel.String()

	if owner, ok := strings.CutPrefix(name, "user:"); ok {
		if owner == meta.UserID || meta.hasRole(adminRole) {
			return nil
		}

		return NewForbidden("Cannot publish to another user's private channel")
	}

	if strings.HasPrefix(name, "admin:") && !meta.hasRole(adminRole) {
		return NewForbidden("Admin channel requires admin role")
	}

	return nil
}

// channels whose name begins with echo: deliver a publisher's own event
// back to it
func shouldEchoToSender(channel ChannelName) bool {
	return strings.HasPrefix(channel.String(), "echo:")
}
