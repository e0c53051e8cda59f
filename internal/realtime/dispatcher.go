package realtime

import (
	"encoding/json"
	"sync"

	"codeberg.org/wavelink/server/internal/logger"
)

// SubscriptionID addresses one registered server-side handler.
type SubscriptionID uint64

// handler shapes; event-aware variants also receive the event name
type (
	ChannelHandler      func(payload json.RawMessage)
	GlobalHandler       func(channel string, payload json.RawMessage)
	ChannelEventHandler func(event string, payload json.RawMessage)
	GlobalEventHandler  func(channel, event string, payload json.RawMessage)
)

// subscriptions is the registry of in-process observers of inbound
// channel traffic. Registration is rare, so a plain mutex guards the
// maps; handlers are invoked from the dispatcher goroutine only.
type subscriptions struct {
	mu     sync.Mutex
	nextID SubscriptionID

	channelHandlers      map[string]map[SubscriptionID]ChannelHandler
	globalHandlers       map[SubscriptionID]GlobalHandler
	channelEventHandlers map[string]map[SubscriptionID]ChannelEventHandler
	globalEventHandlers  map[SubscriptionID]GlobalEventHandler
}

func newSubscriptions() *subscriptions {
	return &subscriptions{
		nextID:               1,
		channelHandlers:      make(map[string]map[SubscriptionID]ChannelHandler),
		globalHandlers:       make(map[SubscriptionID]GlobalHandler),
		channelEventHandlers: make(map[string]map[SubscriptionID]ChannelEventHandler),
		globalEventHandlers:  make(map[SubscriptionID]GlobalEventHandler),
	}
}

func (s *subscriptions) allocateID() SubscriptionID {
	id := s.nextID
	s.nextID++

	return id
}

func (s *subscriptions) onMessage(channel string, handler ChannelHandler) SubscriptionID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.allocateID()

	if s.channelHandlers[channel] == nil {
		s.channelHandlers[channel] = make(map[SubscriptionID]ChannelHandler)
	}
	s.channelHandlers[channel][id] = handler

	return id
}

func (s *subscriptions) onMessages(handler GlobalHandler) SubscriptionID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.allocateID()
	s.globalHandlers[id] = handler

	return id
}

func (s *subscriptions) onChannelEvent(channel string, handler ChannelEventHandler) SubscriptionID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.allocateID()

	if s.channelEventHandlers[channel] == nil {
		s.channelEventHandlers[channel] = make(map[SubscriptionID]ChannelEventHandler)
	}
	s.channelEventHandlers[channel][id] = handler

	return id
}

func (s *subscriptions) onEvents(handler GlobalEventHandler) SubscriptionID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.allocateID()
	s.globalEventHandlers[id] = handler

	return id
}

// off removes one subscription wherever it lives and reports whether
// anything was removed
func (s *subscriptions) off(id SubscriptionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false

	if _, ok := s.globalHandlers[id]; ok {
		delete(s.globalHandlers, id)
		removed = true
	}

	for channel, handlers := range s.channelHandlers {
		if _, ok := handlers[id]; ok {
			delete(handlers, id)
			removed = true
		}

		if len(handlers) == 0 {
			delete(s.channelHandlers, channel)
		}
	}

	if _, ok := s.globalEventHandlers[id]; ok {
		delete(s.globalEventHandlers, id)
		removed = true
	}

	for channel, handlers := range s.channelEventHandlers {
		if _, ok := handlers[id]; ok {
			delete(handlers, id)
			removed = true
		}

		if len(handlers) == 0 {
			delete(s.channelEventHandlers, channel)
		}
	}

	return removed
}

// dispatch fans one inbound message out to every matching handler.
// Handler slices are copied under the lock; callbacks run without it.
func (s *subscriptions) dispatch(message InboundMessage) {
	s.mu.Lock()

	channelCallbacks := make([]ChannelHandler, 0, len(s.channelHandlers[message.Channel]))
	for _, handler := range s.channelHandlers[message.Channel] {
		channelCallbacks = append(channelCallbacks, handler)
	}

	globalCallbacks := make([]GlobalHandler, 0, len(s.globalHandlers))
	for _, handler := range s.globalHandlers {
		globalCallbacks = append(globalCallbacks, handler)
	}

	channelEventCallbacks := make([]ChannelEventHandler, 0, len(s.channelEventHandlers[message.Channel]))
	for _, handler := range s.channelEventHandlers[message.Channel] {
		channelEventCallbacks = append(channelEventCallbacks, handler)
	}

	globalEventCallbacks := make([]GlobalEventHandler, 0, len(s.globalEventHandlers))
	for _, handler := range s.globalEventHandlers {
		globalEventCallbacks = append(globalEventCallbacks, handler)
	}

	s.mu.Unlock()

	for _, callback := range channelCallbacks {
		callback(message.Payload)
	}

	for _, callback := range globalCallbacks {
		callback(message.Channel, message.Payload)
	}

	for _, callback := range channelEventCallbacks {
		callback(message.Event, message.Payload)
	}

	for _, callback := range globalEventCallbacks {
		callback(message.Channel, message.Event, message.Payload)
	}
}

// runDispatcher drains the inbound queue and invokes subscribers.
// Handlers run on this goroutine: a handler that blocks starves every
// other subscriber, so handlers doing real work should hand off to
// their own goroutine.
func runDispatcher(inbound *queue[InboundMessage], subs *subscriptions) {
	defer inbound.CloseConsumer()

	for {
		select {
		case message := <-inbound.items:
			subs.dispatch(message)
		case <-inbound.producerDone:
			// drain what the hub already queued before stopping
			for {
				message, ok := inbound.TryRecv()
				if !ok {
					logger.Debug("realtime dispatcher stopped")
					return
				}

				subs.dispatch(message)
			}
		}
	}
}
