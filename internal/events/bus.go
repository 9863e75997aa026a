package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(StageToggledEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case PipelineStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case StageToggledEvent:
		event.Publish(b.dispatcher, e)
	case ObjectsTrackedEvent:
		event.Publish(b.dispatcher, e)
	case ConfigPersistedEvent:
		event.Publish(b.dispatcher, e)
	case SinkFailedEvent:
		event.Publish(b.dispatcher, e)
	case EncoderMetricsEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type selects the events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(PipelineStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StageToggledEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ObjectsTrackedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ConfigPersistedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SinkFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(EncoderMetricsEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
