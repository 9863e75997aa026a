// Package sink re-encodes the display frame for network delivery.
package sink

import (
	"errors"
	"fmt"
	"sync"

	"github.com/smazurov/tracknode/internal/encoder"
	"github.com/smazurov/tracknode/internal/metrics"
	"github.com/smazurov/tracknode/internal/stage"
)

// FrameAlign is the plane alignment requested from the encoder.
const FrameAlign = 32

// neutralChroma is the Cb/Cr value that leaves a picture gray.
const neutralChroma = 128

// Publisher delivers encoded packets to viewers.
type Publisher interface {
	WritePacket(pkt encoder.Packet) error
}

// Config selects the codec and rate the sink negotiates.
type Config struct {
	Codec   string
	FPS     int
	Session string
}

// StreamingSink is a stage that passes frames through and encodes the
// display frame after each chain run.
type StreamingSink struct {
	stage.Base
	backend   encoder.Backend
	publisher Publisher
	config    Config

	mu      sync.Mutex
	session encoder.Session
	frame   *encoder.Frame
	// exited is set once the encoder has reported end of stream.
	exited        bool
	publishFailed bool
	sendFailed    bool
}

// New creates a sink. Nothing is allocated until Init.
func New(backend encoder.Backend, publisher Publisher, config Config) *StreamingSink {
	if config.Codec == "" {
		config.Codec = "h264"
	}
	if config.Session == "" {
		config.Session = "sink"
	}
	return &StreamingSink{
		Base:      stage.NewBase(stage.KindSink),
		backend:   backend,
		publisher: publisher,
		config:    config,
	}
}

// Init negotiates an encoder for the geometry. On failure everything
// acquired so far is released and the sink holds no encoder state.
func (s *StreamingSink) Init(g stage.Geometry) error {
	if err := stage.RequireGray(g); err != nil {
		return err
	}
	if err := g.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		if err := s.releaseLocked(); err != nil {
			s.Logger().Warn("Failed to release previous encoder", "error", err)
		}
	}

	codec, err := s.backend.Find(s.config.Codec)
	if err != nil {
		return fmt.Errorf("failed to find %s encoder: %w", s.config.Codec, err)
	}
	session, err := s.backend.NewSession(codec)
	if err != nil {
		return fmt.Errorf("failed to create encoder context: %w", err)
	}

	params := encoder.Params{Width: g.Width, Height: g.Height, FPS: s.config.FPS, Session: s.config.Session}
	if err := session.Open(params); err != nil {
		return errors.Join(fmt.Errorf("failed to open encoder: %w", err), session.Release())
	}

	frame, err := session.AllocFrame(FrameAlign)
	if err != nil {
		return errors.Join(fmt.Errorf("failed to allocate frame: %w", err), session.Close(), session.Release())
	}
	fill(frame.Data[1], neutralChroma)
	fill(frame.Data[2], neutralChroma)

	if err := s.Base.Init(g); err != nil {
		frame.Free()
		return errors.Join(err, session.Close(), session.Release())
	}

	s.session = session
	s.frame = frame
	s.exited = false
	s.publishFailed = false
	s.sendFailed = false
	s.Logger().Info("Streaming sink ready", "encoder", codec.Name, "width", g.Width, "height", g.Height)
	return nil
}

// Process passes the frame through.
func (s *StreamingSink) Process(src, dst []byte) {
	g := s.Geometry()
	if !s.Ready() || len(src) < g.SrcSize() || len(dst) < g.DstSize() {
		return
	}
	copy(dst[:g.DstSize()], src[:g.SrcSize()])
}

// PostProcess encodes display and forwards at most one finished packet.
func (s *StreamingSink) PostProcess(display []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.exited {
		return
	}
	f := s.frame
	if len(display) < f.Width*f.Height {
		return
	}

	if err := f.MakeWritable(); err != nil {
		s.Logger().Warn("Encoder frame not writable", "error", err)
		metrics.IncSinkDrop()
		return
	}
	for y := range f.Height {
		copy(f.Data[0][y*f.Stride[0]:y*f.Stride[0]+f.Width], display[y*f.Width:(y+1)*f.Width])
	}

	switch err := s.session.Send(f); {
	case err == nil:
		metrics.IncSinkFrame()
		s.sendFailed = false
	case errors.Is(err, encoder.ErrAgain):
		metrics.IncSinkDrop()
	default:
		metrics.IncSinkDrop()
		if !s.sendFailed {
			s.Logger().Warn("Failed to submit frame", "error", err)
			s.sendFailed = true
		}
	}

	pkt, err := s.session.Receive()
	switch {
	case err == nil:
		metrics.AddSinkPacket(len(pkt.Data))
		s.publish(pkt)
	case errors.Is(err, encoder.ErrEOF):
		s.Logger().Error("Encoder exited, streaming stopped")
		s.exited = true
	case !errors.Is(err, encoder.ErrAgain):
		s.Logger().Warn("Failed to receive packet", "error", err)
	}
}

func (s *StreamingSink) publish(pkt encoder.Packet) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.WritePacket(pkt); err != nil {
		if !s.publishFailed {
			s.Logger().Warn("Failed to publish packet", "error", err)
			s.publishFailed = true
		}
		return
	}
	s.publishFailed = false
}

// Toggle handles no flags.
func (s *StreamingSink) Toggle(stage.Flag, bool) bool { return false }

// Tuned reports nothing; the sink has no persisted parameters.
func (s *StreamingSink) Tuned() stage.Tuned { return nil }

// Close closes the encoder session, frees the frame and releases the
// encoder context, in that order. It is safe on a sink that never opened.
func (s *StreamingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	return s.releaseLocked()
}

func (s *StreamingSink) releaseLocked() error {
	closeErr := s.session.Close()
	s.frame.Free()
	releaseErr := s.session.Release()
	s.session = nil
	s.frame = nil
	return errors.Join(closeErr, releaseErr)
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}
