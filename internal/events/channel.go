package events

import "github.com/kelindar/event"

// SubscribeToChannel forwards events of type T into ch. Events are dropped
// while ch is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// SubscribeAll forwards every event type the bus carries into ch and
// returns a single unsubscribe.
func SubscribeAll(bus *Bus, ch chan<- any) func() {
	unsubscribers := []func(){
		SubscribeToChannel[PipelineStateChangedEvent](bus, ch),
		SubscribeToChannel[StageToggledEvent](bus, ch),
		SubscribeToChannel[ObjectsTrackedEvent](bus, ch),
		SubscribeToChannel[ConfigPersistedEvent](bus, ch),
		SubscribeToChannel[SinkFailedEvent](bus, ch),
		SubscribeToChannel[EncoderMetricsEvent](bus, ch),
	}
	return func() {
		for _, unsub := range unsubscribers {
			unsub()
		}
	}
}
