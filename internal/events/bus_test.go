package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan StageToggledEvent, 1)

	unsub := bus.Subscribe(func(e StageToggledEvent) {
		received <- e
	})
	defer unsub()

	bus.Publish(StageToggledEvent{Stage: "thresholder", Flag: "G", Persist: true})

	got := <-received
	if got.Stage != "thresholder" || got.Flag != "G" || !got.Persist {
		t.Errorf("unexpected event %+v", got)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan PipelineStateChangedEvent, 1)
	received2 := make(chan PipelineStateChangedEvent, 1)

	unsub1 := bus.Subscribe(func(e PipelineStateChangedEvent) { received1 <- e })
	defer unsub1()
	unsub2 := bus.Subscribe(func(e PipelineStateChangedEvent) { received2 <- e })
	defer unsub2()

	bus.Publish(PipelineStateChangedEvent{From: "building", To: "running"})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan ConfigPersistedEvent, 1)

	unsub := bus.Subscribe(func(e ConfigPersistedEvent) { received <- e })

	bus.Publish(ConfigPersistedEvent{Path: "a.toml"})
	<-received

	unsub()

	bus.Publish(ConfigPersistedEvent{Path: "b.toml"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	toggled := make(chan bool, 1)
	tracked := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ StageToggledEvent) { toggled <- true })
	defer unsub1()
	unsub2 := bus.Subscribe(func(_ ObjectsTrackedEvent) { tracked <- true })
	defer unsub2()

	bus.Publish(StageToggledEvent{Stage: "finder"})
	<-toggled

	select {
	case <-tracked:
		t.Fatal("ObjectsTracked subscriber received a StageToggled event")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)
	unsub := bus.Subscribe(func(_ ObjectsTrackedEvent) { receivedCh <- true })
	defer unsub()

	for i := range numGoroutines {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := range eventsPerGoroutine {
				bus.Publish(ObjectsTrackedEvent{Frame: uint64(n*eventsPerGoroutine + j)})
			}
		}(i)
	}
	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_UnknownHandlerIsNoop(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	if unsub == nil {
		t.Fatal("expected a non-nil unsubscribe function")
	}
	unsub()
}

func TestObjectsTrackedJSON(t *testing.T) {
	ev := ObjectsTrackedEvent{
		Frame:   7,
		Objects: []TrackedObject{{ID: 3, X: 0.25, Y: 0.5, Angle: 1}},
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	objs, ok := m["objects"].([]any)
	if !ok || len(objs) != 1 {
		t.Fatalf("objects = %v", m["objects"])
	}
	if obj := objs[0].(map[string]any); obj["id"] != float64(3) || obj["finger"] != false {
		t.Errorf("object = %v", obj)
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any, 1)
	unsub := SubscribeToChannel[StageToggledEvent](bus, ch)
	defer unsub()

	// second publish must be dropped rather than block
	bus.Publish(StageToggledEvent{Flag: "a"})
	bus.Publish(StageToggledEvent{Flag: "b"})
	<-ch
}

func TestSubscribeAll(t *testing.T) {
	bus := New()
	ch := make(chan any, 8)
	unsub := SubscribeAll(bus, ch)

	bus.Publish(PipelineStateChangedEvent{To: "running"})
	bus.Publish(ConfigPersistedEvent{Path: "tracknode.toml"})

	seen := map[uint32]bool{}
	timeout := time.After(time.Second)
	for len(seen) < 2 {
		select {
		case e := <-ch:
			seen[e.(Event).Type()] = true
		case <-timeout:
			t.Fatalf("received %v before timeout", seen)
		}
	}

	unsub()
	bus.Publish(StageToggledEvent{Flag: "g"})
	select {
	case e := <-ch:
		t.Errorf("received %T after unsubscribe", e)
	case <-time.After(50 * time.Millisecond):
	}
}
