package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// Handle is the external surface of the realtime subsystem. Host code
// uses it to push events to channels and users, to observe inbound
// traffic, and to serve upgraded sockets. A disabled handle accepts
// every call and does nothing.
type Handle struct {
	config Config

	// nil when the subsystem is disabled
	commands chan hubCommand
	done     chan struct{}
	stopOnce sync.Once

	subs *subscriptions
}

// Spawn starts the hub and dispatcher goroutines with the default
// channel policy.
func Spawn(cfg Config) *Handle {
	return SpawnWithPolicy(cfg, DefaultChannelPolicy{})
}

// SpawnWithPolicy starts the hub with a host-supplied channel policy.
func SpawnWithPolicy(cfg Config, policy ChannelPolicy) *Handle {
	subs := newSubscriptions()

	if !cfg.Enabled {
		return &Handle{config: cfg, subs: subs}
	}

	commands := make(chan hubCommand, hubQueueSize)
	done := make(chan struct{})
	inbound := newQueue[InboundMessage](inboundQueueSize)

	go newHub(cfg, commands, done, policy, inbound).run()
	go runDispatcher(inbound, subs)

	return &Handle{
		config:   cfg,
		commands: commands,
		done:     done,
		subs:     subs,
	}
}

func (h *Handle) IsEnabled() bool {
	return h.config.Enabled && h.commands != nil
}

// config accessor used by the upgrade handler
func (h *Handle) MaxMessageBytes() int {
	return h.config.MaxMessageBytes
}

// Shutdown stops the hub loop; every live session and the dispatcher
// drain and exit. Safe to call more than once.
func (h *Handle) Shutdown() {
	if h.done == nil {
		return
	}

	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// ServeSocket runs the session loop for one upgraded connection and
// blocks until the session ends. The caller keeps ownership of the
// HTTP goroutine; gorilla hijacks the underlying connection.
func (h *Handle) ServeSocket(conn *websocket.Conn, auth SessionAuth) {
	if h.commands == nil {
		conn.Close()
		return
	}

	runSession(conn, auth, h.commands, h.done, h.config)
}

// Send publishes to a channel with the default event name. Delivery is
// at-most-once to currently connected members.
func (h *Handle) Send(channel string, payload json.RawMessage) *Error {
	return h.SendEvent(channel, DefaultEvent, payload)
}

// SendEvent publishes a named event to a channel.
func (h *Handle) SendEvent(channel, event string, payload json.RawMessage) *Error {
	if h.commands == nil {
		return nil
	}

	parsed, err := ParseChannelName(channel)
	if err != nil {
		return err
	}

	return h.sendCommand(sendToChannelCmd{channel: parsed, event: event, payload: payload})
}

// SendToUser delivers to every live connection of a user over their
// private channel. A user with no connections is a silent no-op.
func (h *Handle) SendToUser(userID string, payload json.RawMessage) *Error {
	return h.SendEventToUser(userID, DefaultEvent, payload)
}

// SendEventToUser delivers a named event to every live connection of a
// user.
func (h *Handle) SendEventToUser(userID, event string, payload json.RawMessage) *Error {
	if h.commands == nil {
		return nil
	}

	return h.sendCommand(sendToUserCmd{userID: userID, event: event, payload: payload})
}

// OnMessage subscribes to every publish on one channel.
func (h *Handle) OnMessage(channel string, handler ChannelHandler) SubscriptionID {
	return h.subs.onMessage(channel, handler)
}

// OnMessages subscribes to every publish on every channel.
func (h *Handle) OnMessages(handler GlobalHandler) SubscriptionID {
	return h.subs.onMessages(handler)
}

// OnChannelEvent subscribes to one channel with the event name passed
// through.
func (h *Handle) OnChannelEvent(channel string, handler ChannelEventHandler) SubscriptionID {
	return h.subs.onChannelEvent(channel, handler)
}

// OnEvents subscribes to every channel with the event name passed
// through.
func (h *Handle) OnEvents(handler GlobalEventHandler) SubscriptionID {
	return h.subs.onEvents(handler)
}

// Off removes a subscription and reports whether it existed.
func (h *Handle) Off(id SubscriptionID) bool {
	return h.subs.off(id)
}

// sendCommand blocks while the hub queue is full and fails once the
// hub is gone. A stopped hub wins over free queue space.
func (h *Handle) sendCommand(cmd hubCommand) *Error {
	select {
	case <-h.done:
		return NewInternal("realtime hub is unavailable")
	default:
	}

	select {
	case h.commands <- cmd:
		return nil
	case <-h.done:
		return NewInternal("realtime hub is unavailable")
	}
}
