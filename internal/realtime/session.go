package realtime

import (
	"errors"
	"io"
	"time"

	"github.com/gorilla/websocket"

	"codeberg.org/wavelink/server/internal/logger"
)

const (
	// time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// headroom over max_message_bytes so oversized frames get a
	// graceful message_too_large error instead of a hard close; frames
	// beyond the doubled limit terminate the read side
	readLimitFactor = 2
)

// kinds of events the socket reader forwards to the session loop
type socketEventKind int

const (
	eventText socketEventKind = iota
	eventBinary
	eventPingReceived
	eventPongReceived
	eventReadFailed
)

type socketEvent struct {
	kind socketEventKind
	data []byte
	err  error
}

// runSession owns one websocket connection: it registers with the hub,
// then multiplexes outbound frames, inbound socket traffic, and the
// heartbeat until something ends the session. On exit it best-effort
// unregisters so the hub can clear the connection's state.
func runSession(conn *websocket.Conn, auth SessionAuth, commands chan<- hubCommand, hubDone <-chan struct{}, cfg Config) {
	defer conn.Close()

	connID := NewConnectionID()
	outbound := newQueue[ServerFrame](cfg.OutboundQueueSize)

	meta := ConnectionMeta{
		ID:           connID,
		UserID:       auth.UserID,
		Roles:        auth.Roles,
		JoinedAtUnix: time.Now().Unix(),
	}

	select {
	case commands <- registerCmd{meta: meta, outbound: outbound}:
	case <-hubDone:
		return
	}

	defer outbound.CloseConsumer()

	events := make(chan socketEvent, 1)
	readerStop := make(chan struct{})
	defer close(readerStop)

	go readSocket(conn, cfg, events, readerStop)

	heartbeat := time.NewTicker(time.Duration(cfg.HeartbeatIntervalSecs) * time.Second)
	defer heartbeat.Stop()

	idleTimeout := time.Duration(cfg.IdleTimeoutSecs) * time.Second
	lastActivity := time.Now()

	var reason DisconnectReason

loop:
	for {
		select {
		case frame := <-outbound.items:
			if !writeFrame(conn, frame) {
				reason = ReasonSocketError
				break loop
			}

		case <-outbound.producerDone:
			// the hub dropped us (kick, capacity, shutdown); flush what
			// it already queued, then go away
			for {
				frame, ok := outbound.TryRecv()
				if !ok {
					break
				}

				if !writeFrame(conn, frame) {
					reason = ReasonSocketError
					break loop
				}
			}

			reason = ReasonHubUnavailable
			break loop

		case event := <-events:
			exit, exitReason := false, DisconnectReason("")

			switch event.kind {
			case eventText:
				lastActivity = time.Now()
				exit, exitReason = handleInboundText(conn, connID, event.data, commands, hubDone, cfg)
			case eventBinary:
				writeFrame(conn, ErrorFrame("invalid_payload", "Binary websocket payloads are not supported"))
			case eventPingReceived, eventPongReceived:
				lastActivity = time.Now()
			case eventReadFailed:
				exit, exitReason = true, disconnectReasonForReadError(event.err)
			}

			if exit {
				reason = exitReason
				break loop
			}

		case <-heartbeat.C:
			if time.Since(lastActivity) > idleTimeout {
				reason = ReasonIdleTimeout
				break loop
			}

			deadline := time.Now().Add(writeWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				reason = ReasonSocketError
				break loop
			}
		}
	}

	select {
	case commands <- unregisterCmd{connID: connID, reason: reason}:
	case <-hubDone:
	}
}

// readSocket pumps inbound websocket traffic into the session loop.
// Control frames surface through the ping/pong handlers, which run on
// this goroutine inside ReadMessage.
func readSocket(conn *websocket.Conn, cfg Config, events chan<- socketEvent, stop <-chan struct{}) {
	conn.SetReadLimit(int64(cfg.MaxMessageBytes) * readLimitFactor)

	forward := func(event socketEvent) bool {
		select {
		case events <- event:
			return true
		case <-stop:
			return false
		}
	}

	conn.SetPingHandler(func(payload string) error {
		deadline := time.Now().Add(writeWait)
		if err := conn.WriteControl(websocket.PongMessage, []byte(payload), deadline); err != nil {
			return err
		}

		forward(socketEvent{kind: eventPingReceived})
		return nil
	})

	conn.SetPongHandler(func(string) error {
		forward(socketEvent{kind: eventPongReceived})
		return nil
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			forward(socketEvent{kind: eventReadFailed, err: err})
			return
		}

		switch messageType {
		case websocket.TextMessage:
			if !forward(socketEvent{kind: eventText, data: data}) {
				return
			}
		case websocket.BinaryMessage:
			if !forward(socketEvent{kind: eventBinary}) {
				return
			}
		}
	}
}

// handleInboundText validates, decodes, and forwards one client frame.
// Oversize and malformed input answer with a direct error frame and
// keep the session alive; only a dead hub ends it.
func handleInboundText(conn *websocket.Conn, connID ConnectionID, data []byte, commands chan<- hubCommand, hubDone <-chan struct{}, cfg Config) (bool, DisconnectReason) {
	if len(data) > cfg.MaxMessageBytes {
		writeFrame(conn, ErrorFrame("message_too_large", "Message exceeds realtime.max_message_bytes"))
		return false, ""
	}

	frame, err := DecodeClientFrame(data)
	if err != nil {
		writeFrame(conn, ErrorFrame("invalid_payload", "Invalid websocket payload"))
		return false, ""
	}

	var cmd hubCommand

	switch frame.Op {
	case OpChannelJoin, OpChannelLeave, OpChannelEmit:
		channel, parseErr := ParseChannelName(frame.Channel)
		if parseErr != nil {
			writeFrame(conn, ErrorFrame("invalid_channel", parseErr.Message))
			return false, ""
		}

		switch frame.Op {
		case OpChannelJoin:
			cmd = joinCmd{connID: connID, channel: channel, reqID: frame.ID}
		case OpChannelLeave:
			cmd = leaveCmd{connID: connID, channel: channel, reqID: frame.ID}
		case OpChannelEmit:
			cmd = emitCmd{connID: connID, channel: channel, event: frame.Event, payload: frame.Data, reqID: frame.ID}
		}
	case OpPing:
		cmd = pingCmd{connID: connID, reqID: frame.ID}
	}

	select {
	case commands <- cmd:
		return false, ""
	case <-hubDone:
		return true, ReasonHubUnavailable
	}
}

// writeFrame serializes and writes one server frame; false means the
// socket is unusable
func writeFrame(conn *websocket.Conn, frame ServerFrame) bool {
	payload, err := EncodeServerFrame(frame)
	if err != nil {
		logger.ErrorErr(err, "failed to encode server frame", "op", frame.Op)
		return true
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))

	return conn.WriteMessage(websocket.TextMessage, payload) == nil
}

// maps a read error onto the disconnect taxonomy: an orderly close (or
// plain end of stream) is the client's doing, anything else is a
// transport failure
func disconnectReasonForReadError(err error) DisconnectReason {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return ReasonClientClosed
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ReasonClientClosed
	}

	return ReasonSocketError
}
