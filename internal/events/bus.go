package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// A nil *Bus drops every event, so components can run without one.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(SessionStartedEvent{...})
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case SessionStartedEvent:
		event.Publish(b.dispatcher, e)
	case SessionEndedEvent:
		event.Publish(b.dispatcher, e)
	case HeartbeatFailedEvent:
		event.Publish(b.dispatcher, e)
	case RestartScheduledEvent:
		event.Publish(b.dispatcher, e)
	case VolumeChangedEvent:
		event.Publish(b.dispatcher, e)
	case StreamerStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case StopRequestedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler's parameter type selects the events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e SessionEndedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	if b == nil {
		return func() {}
	}
	switch h := handler.(type) {
	case func(SessionStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionEndedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(HeartbeatFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RestartScheduledEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(VolumeChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamerStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StopRequestedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
