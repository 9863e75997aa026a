// Package tuio holds the tracking-event server: the endpoint address, the
// per-axis inversion flags and the emitters that carry each frame of tracked
// objects to consumers.
package tuio

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strconv"
	"sync"

	"github.com/smazurov/tracknode/internal/events"
	"github.com/smazurov/tracknode/internal/logging"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("tracking server closed")

// Emitter delivers one frame of tracked objects.
type Emitter interface {
	Emit(frame uint64, objects []events.TrackedObject) error
}

// Axis selects an inversion flag.
type Axis byte

// Inversion axes, matching the operator toggle keys.
const (
	AxisX     Axis = 'x'
	AxisY     Axis = 'y'
	AxisAngle Axis = 'a'
)

// Inversion is a snapshot of the three flags.
type Inversion struct {
	X, Y, A bool
}

// Server maps finder output into the tracking coordinate space and fans it
// out to the emitters. Inversion flags may be flipped from the control API
// while the frame loop is sending.
type Server struct {
	host     string
	port     int
	emitters []Emitter
	logger   *slog.Logger

	mu     sync.Mutex
	inv    Inversion
	frame  uint64
	closed bool
}

// NewServer creates a server for host:port.
func NewServer(host string, port int, emitters ...Emitter) *Server {
	return &Server{
		host:     host,
		port:     port,
		emitters: emitters,
		logger:   logging.GetLogger("tuio"),
	}
}

// Addr returns the host:port endpoint.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// SetInversion replaces all three flags.
func (s *Server) SetInversion(inv Inversion) {
	s.mu.Lock()
	s.inv = inv
	s.mu.Unlock()
}

// Inversion returns the current flags.
func (s *Server) Inversion() Inversion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inv
}

// ToggleInversion flips one axis and returns its new state.
func (s *Server) ToggleInversion(axis Axis) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var flag *bool
	switch axis {
	case AxisX:
		flag = &s.inv.X
	case AxisY:
		flag = &s.inv.Y
	case AxisAngle:
		flag = &s.inv.A
	default:
		return false, fmt.Errorf("unknown inversion axis %q", axis)
	}
	*flag = !*flag
	s.logger.Info("Inversion toggled", "axis", string(axis), "enabled", *flag)
	return *flag, nil
}

// Send applies inversion to normalised objects and emits them as one frame.
// Emitter failures are joined; every emitter is tried.
func (s *Server) Send(objects []events.TrackedObject) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	inv := s.inv
	s.frame++
	frame := s.frame
	s.mu.Unlock()

	out := make([]events.TrackedObject, len(objects))
	for i, o := range objects {
		out[i] = invert(o, inv)
	}
	return s.emit(frame, out)
}

// Close flushes an empty frame so consumers drop all live objects, then
// rejects further sends.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.frame++
	frame := s.frame
	s.mu.Unlock()

	err := s.emit(frame, nil)
	for _, e := range s.emitters {
		if c, ok := e.(interface{ Close() error }); ok {
			err = errors.Join(err, c.Close())
		}
	}
	s.logger.Debug("Tracking server closed", "addr", s.Addr(), "frames", frame)
	return err
}

func (s *Server) emit(frame uint64, objects []events.TrackedObject) error {
	var errs []error
	for _, e := range s.emitters {
		if err := e.Emit(frame, objects); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func invert(o events.TrackedObject, inv Inversion) events.TrackedObject {
	if inv.X {
		o.X = 1 - o.X
	}
	if inv.Y {
		o.Y = 1 - o.Y
	}
	if inv.A && !o.Finger {
		o.Angle = math.Mod(2*math.Pi-o.Angle, 2*math.Pi)
	}
	return o
}
