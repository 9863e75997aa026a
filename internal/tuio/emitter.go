package tuio

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/smazurov/tracknode/internal/events"
)

// BusEmitter publishes each frame as an ObjectsTrackedEvent.
type BusEmitter struct {
	bus *events.Bus
}

// NewBusEmitter creates an emitter publishing on bus.
func NewBusEmitter(bus *events.Bus) *BusEmitter {
	return &BusEmitter{bus: bus}
}

// Emit publishes the frame.
func (e *BusEmitter) Emit(frame uint64, objects []events.TrackedObject) error {
	e.bus.Publish(events.ObjectsTrackedEvent{Frame: frame, Objects: objects})
	return nil
}

// UDPEmitter sends each frame as one JSON datagram to a fixed endpoint.
type UDPEmitter struct {
	mu   sync.Mutex
	conn net.Conn
}

// DialUDP connects an emitter to addr.
func DialUDP(addr string) (*UDPEmitter, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial tracking endpoint %s: %w", addr, err)
	}
	return &UDPEmitter{conn: conn}, nil
}

// Emit writes the frame datagram.
func (e *UDPEmitter) Emit(frame uint64, objects []events.TrackedObject) error {
	if objects == nil {
		objects = []events.TrackedObject{}
	}
	data, err := json.Marshal(events.ObjectsTrackedEvent{Frame: frame, Objects: objects})
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.conn.Write(data); err != nil {
		return fmt.Errorf("failed to send frame %d: %w", frame, err)
	}
	return nil
}

// Close releases the socket.
func (e *UDPEmitter) Close() error {
	return e.conn.Close()
}
