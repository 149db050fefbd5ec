package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for in-process broadcasting of
// signal and DMA lifecycle events.
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
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case SignalLockedEvent:
		event.Publish(b.dispatcher, e)
	case SignalLostEvent:
		event.Publish(b.dispatcher, e)
	case CableRemovedEvent:
		event.Publish(b.dispatcher, e)
	case TimingChangedEvent:
		event.Publish(b.dispatcher, e)
	case ResyncDoneEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a handler; the handler's parameter type selects
// which events it receives. Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e SignalLockedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(SignalLockedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SignalLostEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CableRemovedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TimingChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ResyncDoneEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
