package realtime

import (
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// registers a bare connection with the running hub through the command
// queue, the same way a session would
func attachConnection(t *testing.T, handle *Handle, userID string) (ConnectionID, *queue[ServerFrame]) {
	t.Helper()

	outbound := newQueue[ServerFrame](handle.config.OutboundQueueSize)
	meta := ConnectionMeta{
		ID:           NewConnectionID(),
		UserID:       userID,
		JoinedAtUnix: time.Now().Unix(),
	}

	select {
	case handle.commands <- registerCmd{meta: meta, outbound: outbound}:
	case <-time.After(time.Second):
		t.Fatal("hub did not accept register")
	}

	return meta.ID, outbound
}

// waits for one frame matching the predicate, failing on timeout
func awaitFrame(t *testing.T, outbound *queue[ServerFrame], match func(ServerFrame) bool) ServerFrame {
	t.Helper()

	deadline := time.After(2 * time.Second)

	for {
		select {
		case frame := <-outbound.items:
			if match(frame) {
				return frame
			}
		case <-deadline:
			t.Fatal("expected frame did not arrive")
			return ServerFrame{}
		}
	}
}

func TestDisabledHandleNoops(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false

	handle := Spawn(cfg)

	assert.False(t, handle.IsEnabled())
	assert.Nil(t, handle.Send("room:a", json.RawMessage(`{}`)))
	assert.Nil(t, handle.SendToUser("u1", json.RawMessage(`{}`)))

	// shutdown of a disabled handle is safe
	handle.Shutdown()
}

func TestHandleExposesMaxMessageBytes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMessageBytes = 1024

	handle := Spawn(cfg)
	defer handle.Shutdown()

	assert.Equal(t, 1024, handle.MaxMessageBytes())
}

func TestSendEventRejectsInvalidChannel(t *testing.T) {
	handle := Spawn(DefaultConfig())
	defer handle.Shutdown()

	err := handle.SendEvent("not/a/channel", "msg", json.RawMessage(`{}`))
	require.NotNil(t, err)
	assert.Equal(t, KindBadRequest, err.Kind)
}

func TestSendToUserDeliversToEveryConnection(t *testing.T) {
	handle := Spawn(DefaultConfig())
	defer handle.Shutdown()

	_, outA := attachConnection(t, handle, "u1")
	_, outB := attachConnection(t, handle, "u1")

	require.Nil(t, handle.SendToUser("u1", json.RawMessage(`{"k":1}`)))

	for _, outbound := range []*queue[ServerFrame]{outA, outB} {
		frame := awaitFrame(t, outbound, func(f ServerFrame) bool { return f.Op == OpEvent })
		assert.Equal(t, "user:u1", frame.Channel)
		assert.Equal(t, DefaultEvent, frame.Event)
		assert.Nil(t, frame.FromUser)
		assert.JSONEq(t, `{"k":1}`, string(frame.Data))
	}
}

func TestSendToAbsentUserSucceeds(t *testing.T) {
	handle := Spawn(DefaultConfig())
	defer handle.Shutdown()

	assert.Nil(t, handle.SendToUser("nobody", json.RawMessage(`{"k":1}`)))
}

func TestSendEventReachesChannelMembers(t *testing.T) {
	handle := Spawn(DefaultConfig())
	defer handle.Shutdown()

	connID, outbound := attachConnection(t, handle, "u1")

	select {
	case handle.commands <- joinCmd{connID: connID, channel: "room:a", reqID: "j1"}:
	case <-time.After(time.Second):
		t.Fatal("hub did not accept join")
	}

	require.Nil(t, handle.SendEvent("room:a", "notice", json.RawMessage(`{"v":1}`)))

	frame := awaitFrame(t, outbound, func(f ServerFrame) bool { return f.Op == OpEvent && f.Channel == "room:a" })
	assert.Equal(t, "notice", frame.Event)
	assert.Nil(t, frame.FromUser)
}

func TestSendAfterShutdownReturnsInternal(t *testing.T) {
	handle := Spawn(DefaultConfig())
	handle.Shutdown()

	// done is checked before the command queue, so a send after
	// Shutdown fails even while the queue still has room
	var err *Error
	require.Eventually(t, func() bool {
		err = handle.SendToUser("u1", json.RawMessage(`{}`))
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, KindInternal, err.Kind)
}

func TestSubscribersObserveEmittedTraffic(t *testing.T) {
	handle := Spawn(DefaultConfig())
	defer handle.Shutdown()

	var seen atomic.Int64
	handle.OnEvents(func(channel, event string, payload json.RawMessage) {
		if channel == "room:a" && event == "msg" {
			seen.Add(1)
		}
	})

	connID, _ := attachConnection(t, handle, "u1")

	handle.commands <- joinCmd{connID: connID, channel: "room:a", reqID: "j1"}
	handle.commands <- emitCmd{
		connID:  connID,
		channel: "room:a",
		event:   "msg",
		payload: json.RawMessage(`{"text":"hi"}`),
		reqID:   "e1",
	}

	require.Eventually(t, func() bool {
		return seen.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOffReportsRemovalOnce(t *testing.T) {
	handle := Spawn(DefaultConfig())
	defer handle.Shutdown()

	id := handle.OnMessages(func(string, json.RawMessage) {})

	assert.True(t, handle.Off(id))
	assert.False(t, handle.Off(id))
}
