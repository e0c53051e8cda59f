package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// client frame ops
const (
	OpChannelJoin  = "channel_join"
	OpChannelLeave = "channel_leave"
	OpChannelEmit  = "channel_emit"
	OpPing         = "ping"
)

// server frame ops
const (
	OpConnected = "connected"
	OpJoined    = "joined"
	OpLeft      = "left"
	OpEvent     = "event"
	OpAck       = "ack"
	OpPong      = "pong"
	OpError     = "error"
)

// event name used for server-initiated sends without an explicit event
const DefaultEvent = "message"

var nullPayload = json.RawMessage("null")

// ErrorPayload is the code/message pair carried by ack and error frames.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ClientFrame is one decoded inbound websocket text message. Fields are
// populated according to Op; Data is "null" when the client omitted it.
type ClientFrame struct {
	Op      string          `json:"op"`
	ID      string          `json:"id"`
	Channel string          `json:"channel,omitempty"`
	Event   string          `json:"event,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Ts      *int64          `json:"ts,omitempty"`
}

// decodes and validates one client frame. Unknown ops and frames missing
// the fields their op requires are rejected.
func DecodeClientFrame(raw []byte) (*ClientFrame, error) {
	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("decode client frame: %w", err)
	}

	if frame.ID == "" {
		return nil, fmt.Errorf("decode client frame: missing id")
	}

	switch frame.Op {
	case OpChannelJoin, OpChannelLeave:
		if frame.Channel == "" {
			return nil, fmt.Errorf("decode client frame: %s requires channel", frame.Op)
		}
	case OpChannelEmit:
		if frame.Channel == "" {
			return nil, fmt.Errorf("decode client frame: channel_emit requires channel")
		}
		if frame.Event == "" {
			return nil, fmt.Errorf("decode client frame: channel_emit requires event")
		}
	case OpPing:
	default:
		return nil, fmt.Errorf("decode client frame: unknown op %q", frame.Op)
	}

	if len(frame.Data) == 0 {
		frame.Data = nullPayload
	}

	return &frame, nil
}

// ServerFrame is one outbound frame. Op selects which fields are
// meaningful; EncodeServerFrame emits the exact wire shape per op.
type ServerFrame struct {
	Op       string
	ID       string
	ConnID   string
	UserID   string
	Channel  string
	Event    string
	Data     json.RawMessage
	FromUser *string
	ForID    string
	OK       bool
	Err      *ErrorPayload
	Ts       int64
}

func ConnectedFrame(connID, userID string) ServerFrame {
	return ServerFrame{
		Op:     OpConnected,
		ID:     newFrameID(),
		ConnID: connID,
		UserID: userID,
		Ts:     nowUnix(),
	}
}

func JoinedFrame(channel ChannelName) ServerFrame {
	return ServerFrame{
		Op:      OpJoined,
		ID:      newFrameID(),
		Channel: channel.String(),
		Ts:      nowUnix(),
	}
}

func LeftFrame(channel ChannelName) ServerFrame {
	return ServerFrame{
		Op:      OpLeft,
		ID:      newFrameID(),
		Channel: channel.String(),
		Ts:      nowUnix(),
	}
}

// builds an event frame; fromUser is nil for server-initiated sends
func EventFrame(channel ChannelName, event string, data json.RawMessage, fromUser *string) ServerFrame {
	if len(data) == 0 {
		data = nullPayload
	}

	return ServerFrame{
		Op:       OpEvent,
		ID:       newFrameID(),
		Channel:  channel.String(),
		Event:    event,
		Data:     data,
		FromUser: fromUser,
		Ts:       nowUnix(),
	}
}

func AckOK(forID string) ServerFrame {
	return ServerFrame{
		Op:    OpAck,
		ID:    newFrameID(),
		ForID: forID,
		OK:    true,
		Ts:    nowUnix(),
	}
}

func AckErr(forID, code, message string) ServerFrame {
	return ServerFrame{
		Op:    OpAck,
		ID:    newFrameID(),
		ForID: forID,
		Err:   &ErrorPayload{Code: code, Message: message},
		Ts:    nowUnix(),
	}
}

// Pong echoes the request id instead of minting a fresh one.
func PongFrame(forID string) ServerFrame {
	return ServerFrame{
		Op: OpPong,
		ID: forID,
		Ts: nowUnix(),
	}
}

func ErrorFrame(code, message string) ServerFrame {
	return ServerFrame{
		Op:  OpError,
		ID:  newFrameID(),
		Err: &ErrorPayload{Code: code, Message: message},
		Ts:  nowUnix(),
	}
}

// encodes a server frame to its wire shape. Every op carries an id (fresh,
// except pong, which echoes the request id) and a unix-seconds ts; event frames always carry from_user (null for
// server-initiated sends) and ack frames always carry error (null on
// success).
func EncodeServerFrame(frame ServerFrame) ([]byte, error) {
	switch frame.Op {
	case OpConnected:
		return json.Marshal(struct {
			Op     string `json:"op"`
			ID     string `json:"id"`
			ConnID string `json:"conn_id"`
			UserID string `json:"user_id"`
			Ts     int64  `json:"ts"`
		}{frame.Op, frame.ID, frame.ConnID, frame.UserID, frame.Ts})
	case OpJoined, OpLeft:
		return json.Marshal(struct {
			Op      string `json:"op"`
			ID      string `json:"id"`
			Channel string `json:"channel"`
			Ts      int64  `json:"ts"`
		}{frame.Op, frame.ID, frame.Channel, frame.Ts})
	case OpEvent:
		data := frame.Data
		if len(data) == 0 {
			data = nullPayload
		}
		return json.Marshal(struct {
			Op       string          `json:"op"`
			ID       string          `json:"id"`
			Channel  string          `json:"channel"`
			Event    string          `json:"event"`
			Data     json.RawMessage `json:"data"`
			FromUser *string         `json:"from_user"`
			Ts       int64           `json:"ts"`
		}{frame.Op, frame.ID, frame.Channel, frame.Event, data, frame.FromUser, frame.Ts})
	case OpAck:
		return json.Marshal(struct {
			Op    string        `json:"op"`
			ID    string        `json:"id"`
			ForID string        `json:"for_id"`
			OK    bool          `json:"ok"`
			Error *ErrorPayload `json:"error"`
			Ts    int64         `json:"ts"`
		}{frame.Op, frame.ID, frame.ForID, frame.OK, frame.Err, frame.Ts})
	case OpPong:
		return json.Marshal(struct {
			Op string `json:"op"`
			ID string `json:"id"`
			Ts int64  `json:"ts"`
		}{frame.Op, frame.ID, frame.Ts})
	case OpError:
		return json.Marshal(struct {
			Op    string        `json:"op"`
			ID    string        `json:"id"`
			Error *ErrorPayload `json:"error"`
			Ts    int64         `json:"ts"`
		}{frame.Op, frame.ID, frame.Err, frame.Ts})
	}

	return nil, fmt.Errorf("encode server frame: unknown op %q", frame.Op)
}

func newFrameID() string {
	return uuid.NewString()
}

func nowUnix() int64 {
	return time.Now().Unix()
}
