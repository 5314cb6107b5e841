package domain

import (
	"sync"
	"time"
)

type EventType string

const (
	EventTypeMessageAppended    EventType = "message.appended"
	EventTypeSendFailed         EventType = "message.send_failed"
	EventTypeUnreadChanged      EventType = "unread.changed"
	EventTypeConversationLoaded EventType = "conversation.loaded"
	EventTypeCallState          EventType = "call.state"
	EventTypePiPState           EventType = "pip.state"
)

type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// MessageSource tells where an appended message came from.
type MessageSource string

const (
	MessageSourceRemote     MessageSource = "remote"
	MessageSourceOptimistic MessageSource = "optimistic"
)

type MessageAppendedEvent struct {
	CallID    string
	Message   ChatMessage
	Source    MessageSource
	EventTime time.Time
}

func (e MessageAppendedEvent) Type() EventType      { return EventTypeMessageAppended }
func (e MessageAppendedEvent) Timestamp() time.Time { return e.EventTime }

type SendFailedEvent struct {
	CallID    string
	MessageID string
	Reason    string
	EventTime time.Time
}

func (e SendFailedEvent) Type() EventType      { return EventTypeSendFailed }
func (e SendFailedEvent) Timestamp() time.Time { return e.EventTime }

type UnreadChangedEvent struct {
	CallID      string
	UnreadCount int
	HasUnread   bool
	EventTime   time.Time
}

func (e UnreadChangedEvent) Type() EventType      { return EventTypeUnreadChanged }
func (e UnreadChangedEvent) Timestamp() time.Time { return e.EventTime }

// ConversationLoadedEvent is published when a session is hydrated or purged.
type ConversationLoadedEvent struct {
	CallID       string
	MessageCount int
	Purged       bool
	EventTime    time.Time
}

func (e ConversationLoadedEvent) Type() EventType      { return EventTypeConversationLoaded }
func (e ConversationLoadedEvent) Timestamp() time.Time { return e.EventTime }

type CallStateEvent struct {
	CallID    string
	State     CallState
	EventTime time.Time
}

func (e CallStateEvent) Type() EventType      { return EventTypeCallState }
func (e CallStateEvent) Timestamp() time.Time { return e.EventTime }

type PiPStateEvent struct {
	State     string
	EventTime time.Time
}

func (e PiPStateEvent) Type() EventType      { return EventTypePiPState }
func (e PiPStateEvent) Timestamp() time.Time { return e.EventTime }

// EventBus provides pub/sub for domain events
type EventBus interface {
	Publish(event Event)
	Subscribe(eventTypes []EventType) <-chan Event
	Unsubscribe(ch <-chan Event)
}

// SimpleEventBus is a basic in-memory implementation of EventBus
type SimpleEventBus struct {
	mu          sync.RWMutex
	subscribers map[<-chan Event]subscription
}

type subscription struct {
	ch         chan Event
	eventTypes map[EventType]bool
}

func NewEventBus() *SimpleEventBus {
	return &SimpleEventBus{
		subscribers: make(map[<-chan Event]subscription),
	}
}

func (b *SimpleEventBus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if len(sub.eventTypes) == 0 || sub.eventTypes[event.Type()] {
			select {
			case sub.ch <- event:
			default:
				// Channel full, skip this subscriber
			}
		}
	}
}

func (b *SimpleEventBus) Subscribe(eventTypes []EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 100)
	typeMap := make(map[EventType]bool)
	for _, t := range eventTypes {
		typeMap[t] = true
	}

	b.subscribers[ch] = subscription{
		ch:         ch,
		eventTypes: typeMap,
	}

	return ch
}

func (b *SimpleEventBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[ch]; ok {
		close(sub.ch)
		delete(b.subscribers, ch)
	}
}
