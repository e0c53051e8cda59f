package realtime

import (
	"encoding/json"
	"time"

	"codeberg.org/wavelink/server/internal/logger"
)

const (
	hubQueueSize     = 4096
	inboundQueueSize = 4096
)

// commands accepted by the hub loop. Sessions and the façade are the
// producers; the hub goroutine is the sole consumer.
type hubCommand interface {
	isHubCommand()
}

type registerCmd struct {
	meta     ConnectionMeta
	outbound *queue[ServerFrame]
}

type unregisterCmd struct {
	connID ConnectionID
	reason DisconnectReason
}

type joinCmd struct {
	connID  ConnectionID
	channel ChannelName
	reqID   string
}

type leaveCmd struct {
	connID  ConnectionID
	channel ChannelName
	reqID   string
}

type emitCmd struct {
	connID  ConnectionID
	channel ChannelName
	event   string
	payload json.RawMessage
	reqID   string
}

type pingCmd struct {
	connID ConnectionID
	reqID  string
}

type sendToChannelCmd struct {
	channel ChannelName
	event   string
	payload json.RawMessage
}

type sendToUserCmd struct {
	userID  string
	event   string
	payload json.RawMessage
}

func (registerCmd) isHubCommand()      {}
func (unregisterCmd) isHubCommand()    {}
func (joinCmd) isHubCommand()          {}
func (leaveCmd) isHubCommand()         {}
func (emitCmd) isHubCommand()          {}
func (pingCmd) isHubCommand()          {}
func (sendToChannelCmd) isHubCommand() {}
func (sendToUserCmd) isHubCommand()    {}

// connectionState is the hub-private record for one connection. The
// rate windows are mutated only by the hub goroutine.
type connectionState struct {
	meta     ConnectionMeta
	outbound *queue[ServerFrame]
	joinRate rateWindow
	emitRate rateWindow
}

// InboundMessage is one observed channel publish handed to the
// in-process dispatcher.
type InboundMessage struct {
	Channel string
	Event   string
	Payload json.RawMessage
}

// hub owns every connection/channel/user index and is their only
// mutator. It processes commands serially and never blocks on a
// recipient: all outbound sends are try-sends against bounded queues.
type hub struct {
	config   Config
	commands <-chan hubCommand
	done     <-chan struct{}
	policy   ChannelPolicy

	// producer side of the dispatcher queue; nil once the dispatcher
	// is observed closed
	inbound *queue[InboundMessage]

	connections        map[ConnectionID]*connectionState
	users              map[string]map[ConnectionID]struct{}
	channels           map[ChannelName]map[ConnectionID]struct{}
	connectionChannels map[ConnectionID]map[ChannelName]struct{}
}

func newHub(cfg Config, commands <-chan hubCommand, done <-chan struct{}, policy ChannelPolicy, inbound *queue[InboundMessage]) *hub {
	return &hub{
		config:             cfg,
		commands:           commands,
		done:               done,
		policy:             policy,
		inbound:            inbound,
		connections:        make(map[ConnectionID]*connectionState),
		users:              make(map[string]map[ConnectionID]struct{}),
		channels:           make(map[ChannelName]map[ConnectionID]struct{}),
		connectionChannels: make(map[ConnectionID]map[ChannelName]struct{}),
	}
}

// run consumes commands until shutdown. The loop suspends only here;
// every command is served to completion before the next.
func (h *hub) run() {
	defer h.closeAll()

	for {
		select {
		case cmd := <-h.commands:
			h.handleCommand(cmd)
		case <-h.done:
			return
		}
	}
}

func (h *hub) handleCommand(cmd hubCommand) {
	switch c := cmd.(type) {
	case registerCmd:
		h.register(c.meta, c.outbound)
	case unregisterCmd:
		h.unregister(c.connID, c.reason)
	case joinCmd:
		h.handleJoin(c.connID, c.channel, c.reqID)
	case leaveCmd:
		h.handleLeave(c.connID, c.channel, c.reqID)
	case emitCmd:
		h.handleEmit(c.connID, c.channel, c.event, c.payload, c.reqID)
	case pingCmd:
		h.handlePing(c.connID, c.reqID)
	case sendToChannelCmd:
		h.handleSendToChannel(c.channel, c.event, c.payload)
	case sendToUserCmd:
		h.handleSendToUser(c.userID, c.event, c.payload)
	}
}

func (h *hub) register(meta ConnectionMeta, outbound *queue[ServerFrame]) {
	if len(h.connections) >= h.config.MaxConnections {
		outbound.TrySend(ErrorFrame("capacity_exceeded", "Realtime server is at capacity"))
		outbound.Close()
		return
	}

	connID := meta.ID
	userID := meta.UserID
	now := time.Now()

	h.connections[connID] = &connectionState{
		meta:     meta,
		outbound: outbound,
		joinRate: newRateWindow(now),
		emitRate: newRateWindow(now),
	}

	if h.users[userID] == nil {
		h.users[userID] = make(map[ConnectionID]struct{})
	}
	h.users[userID][connID] = struct{}{}

	logger.Debug("realtime connection registered",
		"conn_id", connID,
		"user_id", userID,
	)

	outbound.TrySend(ConnectedFrame(connID.String(), userID))

	private := userChannel(userID)
	h.joinInternal(connID, private)
	h.sendFrame(connID, JoinedFrame(private))
}

func (h *hub) unregister(connID ConnectionID, reason DisconnectReason) {
	existing, ok := h.connections[connID]
	if !ok {
		return
	}

	delete(h.connections, connID)
	existing.outbound.Close()

	logger.Debug("realtime connection disconnected",
		"conn_id", connID,
		"user_id", existing.meta.UserID,
		"reason", reason,
	)

	if userSet, ok := h.users[existing.meta.UserID]; ok {
		delete(userSet, connID)

		if len(userSet) == 0 {
			delete(h.users, existing.meta.UserID)
		}
	}

	for channel := range h.connectionChannels[connID] {
		if memberSet, ok := h.channels[channel]; ok {
			delete(memberSet, connID)

			if len(memberSet) == 0 {
				delete(h.channels, channel)
			}
		}
	}
	delete(h.connectionChannels, connID)
}

func (h *hub) handleJoin(connID ConnectionID, channel ChannelName, reqID string) {
	if !h.checkJoinRate(connID) {
		h.sendFrame(connID, AckErr(reqID, "rate_limited", "Join rate limit exceeded"))
		return
	}

	// missing connection means a race with unregister; drop silently
	state, ok := h.connections[connID]
	if !ok {
		return
	}
	meta := state.meta

	if err := h.policy.CanJoin(&meta, channel); err != nil {
		logger.Debug("realtime join denied by policy",
			"conn_id", connID,
			"user_id", meta.UserID,
			"channel", channel,
			"reason", err.Message,
		)
		h.sendFrame(connID, AckErr(reqID, "forbidden_channel", err.Message))
		return
	}

	if h.isMember(connID, channel) {
		// idempotent: ack again without a second joined frame
		h.sendFrame(connID, AckOK(reqID))
		return
	}

	if len(h.connectionChannels[connID]) >= h.config.MaxChannelsPerConnection {
		h.sendFrame(connID, AckErr(reqID, "channel_limit_exceeded", "Maximum channels per connection reached"))
		return
	}

	h.joinInternal(connID, channel)

	logger.Debug("realtime join succeeded",
		"conn_id", connID,
		"user_id", meta.UserID,
		"channel", channel,
	)

	h.sendFrame(connID, AckOK(reqID))
	h.sendFrame(connID, JoinedFrame(channel))
}

func (h *hub) handleLeave(connID ConnectionID, channel ChannelName, reqID string) {
	if !h.isMember(connID, channel) {
		h.sendFrame(connID, AckErr(reqID, "channel_not_joined", "Not a member of channel"))
		return
	}

	h.leaveInternal(connID, channel)
	h.sendFrame(connID, AckOK(reqID))
	h.sendFrame(connID, LeftFrame(channel))
}

func (h *hub) handleEmit(connID ConnectionID, channel ChannelName, event string, payload json.RawMessage, reqID string) {
	if !h.checkEmitRate(connID) {
		h.sendFrame(connID, AckErr(reqID, "rate_limited", "Emit rate limit exceeded"))
		return
	}

	state, ok := h.connections[connID]
	if !ok {
		return
	}
	meta := state.meta

	if err := h.policy.CanPublish(&meta, channel, event); err != nil {
		h.sendFrame(connID, AckErr(reqID, "forbidden_channel", err.Message))
		return
	}

	if !h.isMember(connID, channel) {
		h.sendFrame(connID, AckErr(reqID, "channel_not_joined", "Join channel before emitting"))
		return
	}

	h.publishInbound(InboundMessage{
		Channel: channel.String(),
		Event:   event,
		Payload: payload,
	})

	// fan-out may unregister slow recipients mid-loop, so snapshot the
	// member set first
	recipients := h.memberSnapshot(channel)
	includeSender := shouldEchoToSender(channel)
	fromUser := meta.UserID
	frame := EventFrame(channel, event, payload, &fromUser)

	for _, recipientID := range recipients {
		if recipientID == connID && !includeSender {
			continue
		}

		h.sendFrame(recipientID, frame)
	}

	h.sendFrame(connID, AckOK(reqID))
}

func (h *hub) handlePing(connID ConnectionID, reqID string) {
	h.sendFrame(connID, PongFrame(reqID))
}

func (h *hub) handleSendToChannel(channel ChannelName, event string, payload json.RawMessage) {
	recipients := h.memberSnapshot(channel)
	if len(recipients) == 0 {
		return
	}

	frame := EventFrame(channel, event, payload, nil)

	for _, connID := range recipients {
		h.sendFrame(connID, frame)
	}
}

func (h *hub) handleSendToUser(userID, event string, payload json.RawMessage) {
	userSet, ok := h.users[userID]
	if !ok {
		return
	}

	recipients := make([]ConnectionID, 0, len(userSet))
	for connID := range userSet {
		recipients = append(recipients, connID)
	}

	frame := EventFrame(userChannel(userID), event, payload, nil)

	for _, connID := range recipients {
		h.sendFrame(connID, frame)
	}
}

// hands one observed publish to the dispatcher; lossy under pressure
func (h *hub) publishInbound(message InboundMessage) {
	if h.inbound == nil {
		return
	}

	switch h.inbound.TrySend(message) {
	case sendOK:
	case sendFull:
		logger.Debug("realtime inbound dispatch queue is full; dropping message")
	case sendClosed:
		h.inbound = nil
	}
}

func (h *hub) checkJoinRate(connID ConnectionID) bool {
	state, ok := h.connections[connID]
	if !ok {
		return false
	}

	return state.joinRate.allow(time.Now(), h.config.JoinRatePerSec)
}

func (h *hub) checkEmitRate(connID ConnectionID) bool {
	state, ok := h.connections[connID]
	if !ok {
		return false
	}

	return state.emitRate.allow(time.Now(), h.config.EmitRatePerSec)
}

func (h *hub) isMember(connID ConnectionID, channel ChannelName) bool {
	_, ok := h.connectionChannels[connID][channel]
	return ok
}

func (h *hub) joinInternal(connID ConnectionID, channel ChannelName) {
	if h.connectionChannels[connID] == nil {
		h.connectionChannels[connID] = make(map[ChannelName]struct{})
	}
	h.connectionChannels[connID][channel] = struct{}{}

	if h.channels[channel] == nil {
		h.channels[channel] = make(map[ConnectionID]struct{})
	}
	h.channels[channel][connID] = struct{}{}
}

func (h *hub) leaveInternal(connID ConnectionID, channel ChannelName) {
	if set, ok := h.connectionChannels[connID]; ok {
		delete(set, channel)

		if len(set) == 0 {
			delete(h.connectionChannels, connID)
		}
	}

	if set, ok := h.channels[channel]; ok {
		delete(set, connID)

		if len(set) == 0 {
			delete(h.channels, channel)
		}
	}
}

func (h *hub) memberSnapshot(channel ChannelName) []ConnectionID {
	memberSet, ok := h.channels[channel]
	if !ok {
		return nil
	}

	members := make([]ConnectionID, 0, len(memberSet))
	for connID := range memberSet {
		members = append(members, connID)
	}

	return members
}

// sendFrame try-sends to one recipient's outbound queue. A full queue
// means the consumer stopped keeping up, a closed queue means the
// session already died; both unregister the connection on the spot.
func (h *hub) sendFrame(connID ConnectionID, frame ServerFrame) {
	state, ok := h.connections[connID]
	if !ok {
		return
	}

	switch state.outbound.TrySend(frame) {
	case sendOK:
	case sendFull:
		h.unregister(connID, ReasonSlowConsumer)
	case sendClosed:
		h.unregister(connID, ReasonSocketError)
	}
}

// closeAll releases every session and the dispatcher on shutdown
func (h *hub) closeAll() {
	for connID, state := range h.connections {
		state.outbound.Close()
		delete(h.connections, connID)
	}

	if h.inbound != nil {
		h.inbound.Close()
	}

	logger.Info("realtime hub stopped")
}
