package encoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/smazurov/tracknode/internal/ffmpeg"
	"github.com/smazurov/tracknode/internal/logging"
	"github.com/smazurov/tracknode/internal/metrics/collectors"
	"github.com/smazurov/tracknode/internal/process"
)

const (
	inputQueue  = 4
	packetQueue = 16
	drainWait   = 2 * time.Second
)

// DefaultPreference is the encoder order used when a family is requested.
var DefaultPreference = []string{"libx264", "libopenh264", "h264_v4l2m2m", "h264_omx"}

// FFmpegConfig tunes the ffmpeg backend.
type FFmpegConfig struct {
	Preference []string
	Bitrate    string
	Preset     string
	GOP        int
	// Progress enables the -progress socket feeding encoder metrics.
	Progress bool
}

// FFmpegBackend encodes through an ffmpeg subprocess fed over stdin.
type FFmpegBackend struct {
	config FFmpegConfig
	list   func(ctx context.Context) ([]Codec, error)
	logger *slog.Logger

	mu     sync.Mutex
	codecs []Codec
}

// NewFFmpegBackend creates a backend that probes the local ffmpeg.
func NewFFmpegBackend(config FFmpegConfig) *FFmpegBackend {
	if len(config.Preference) == 0 {
		config.Preference = DefaultPreference
	}
	return &FFmpegBackend{
		config: config,
		list:   ListVideoCodecs,
		logger: logging.GetLogger("encoder"),
	}
}

// Find returns the encoder for codec, probing ffmpeg on first use.
func (b *FFmpegBackend) Find(codec string) (Codec, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.codecs == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		codecs, err := b.list(ctx)
		if err != nil {
			return Codec{}, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		b.codecs = codecs
	}

	c, err := selectCodec(codec, b.codecs, b.config.Preference)
	if err != nil {
		return Codec{}, err
	}
	b.logger.Info("Encoder selected", "requested", codec, "encoder", c.Name, "hwaccel", c.HWAccel)
	return c, nil
}

// NewSession creates an unopened session for codec.
func (b *FFmpegBackend) NewSession(codec Codec) (Session, error) {
	if codec.Name == "" {
		return nil, fmt.Errorf("%w: empty codec", ErrNotFound)
	}
	return &ffmpegSession{
		codec:  codec,
		config: b.config,
		logger: b.logger.With("encoder", codec.Name),
	}, nil
}

type ffmpegSession struct {
	codec  Codec
	config FFmpegConfig
	logger *slog.Logger

	mu        sync.Mutex
	params    Params
	open      bool
	released  bool
	pipe      *process.Pipe
	collector *collectors.ProgressCollector
	cancel    context.CancelFunc
	input     chan []byte
	packets   chan Packet
	pool      sync.Pool
	writerWG  sync.WaitGroup
	readerWG  sync.WaitGroup
}

func (s *ffmpegSession) Open(p Params) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %dx%d", err, p.Width, p.Height)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrReleased
	}
	if s.open {
		s.closeLocked()
	}
	if p.Session == "" {
		p.Session = "sink"
	}

	ctx, cancel := context.WithCancel(context.Background())
	encode := ffmpeg.EncodeParams{
		Encoder: s.codec.Name,
		Width:   p.Width,
		Height:  p.Height,
		FPS:     p.FPS,
		Bitrate: s.config.Bitrate,
		Preset:  s.config.Preset,
		GOP:     s.config.GOP,
	}

	var collector *collectors.ProgressCollector
	if s.config.Progress {
		socket := filepath.Join(os.TempDir(), fmt.Sprintf("tracknode-progress-%s-%d.sock", p.Session, os.Getpid()))
		collector = collectors.NewProgressCollector(socket, p.Session)
		if err := collector.Start(ctx); err != nil {
			s.logger.Warn("Progress monitoring unavailable", "error", err)
			collector = nil
		} else {
			encode.ProgressSocket = socket
		}
	}

	pipe, err := process.Start("encoder-"+p.Session, ffmpeg.EncodeArgs(encode),
		process.WithStdin(),
		process.WithStdout(),
		process.WithLogParser(s.logger, ffmpeg.ParseLogLine))
	if err != nil {
		cancel()
		if collector != nil {
			collector.Stop()
		}
		return fmt.Errorf("failed to start encoder: %w", err)
	}

	frameSize := (&Frame{Width: p.Width, Height: p.Height}).PackedSize()
	s.pool = sync.Pool{New: func() any { return make([]byte, 0, frameSize) }}
	s.params = p
	s.pipe = pipe
	s.collector = collector
	s.cancel = cancel
	s.input = make(chan []byte, inputQueue)
	s.packets = make(chan Packet, packetQueue)
	s.open = true

	s.writerWG.Add(1)
	go s.write(pipe.Stdin(), s.input)
	s.readerWG.Add(1)
	go s.read(pipe.Stdout(), s.packets)

	s.logger.Info("Encoder session opened", "session", p.Session, "width", p.Width, "height", p.Height, "fps", p.FPS)
	return nil
}

func (s *ffmpegSession) AllocFrame(align int) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, ErrNotOpen
	}
	return NewFrame(s.params.Width, s.params.Height, align)
}

func (s *ffmpegSession) Send(f *Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	if f.Width != s.params.Width || f.Height != s.params.Height {
		return fmt.Errorf("%w: frame %dx%d, session %dx%d", ErrGeometry, f.Width, f.Height, s.params.Width, s.params.Height)
	}

	buf := s.pool.Get().([]byte)[:0]
	buf, err := f.Pack(buf)
	if err != nil {
		s.pool.Put(buf[:0])
		return err
	}

	select {
	case s.input <- buf:
		return nil
	default:
		s.pool.Put(buf[:0])
		return ErrAgain
	}
}

func (s *ffmpegSession) Receive() (Packet, error) {
	s.mu.Lock()
	packets := s.packets
	open := s.open
	s.mu.Unlock()
	if !open {
		return Packet{}, ErrNotOpen
	}

	select {
	case pkt, ok := <-packets:
		if !ok {
			return Packet{}, ErrEOF
		}
		return pkt, nil
	default:
		return Packet{}, ErrAgain
	}
}

func (s *ffmpegSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	return s.closeLocked()
}

func (s *ffmpegSession) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.open {
		err = s.closeLocked()
	}
	s.released = true
	return err
}

// closeLocked lets queued frames drain, stops ffmpeg and waits for the
// reader to see the end of the stream.
func (s *ffmpegSession) closeLocked() error {
	close(s.input)
	if !waitTimeout(&s.writerWG, drainWait) {
		s.logger.Warn("Encoder input did not drain", "timeout", drainWait)
	}

	code := s.pipe.Stop()
	s.writerWG.Wait()
	s.readerWG.Wait()

	s.cancel()
	if s.collector != nil {
		s.collector.Stop()
		s.collector = nil
	}
	s.open = false
	s.logger.Info("Encoder session closed", "session", s.params.Session, "exit_code", code)

	if code != 0 && code != 255 {
		return fmt.Errorf("encoder exited with code %d", code)
	}
	return nil
}

func (s *ffmpegSession) write(stdin io.WriteCloser, input <-chan []byte) {
	defer s.writerWG.Done()
	defer stdin.Close()

	failed := false
	for buf := range input {
		if !failed {
			if _, err := stdin.Write(buf); err != nil {
				s.logger.Warn("Encoder input closed", "error", err)
				failed = true
			}
		}
		s.pool.Put(buf[:0])
	}
}

func (s *ffmpegSession) read(stdout io.Reader, packets chan Packet) {
	defer s.readerWG.Done()
	defer close(packets)

	units, err := newAccessUnitReader(stdout)
	if err != nil {
		s.logger.Error("Failed to read encoder output", "error", err)
		return
	}

	for {
		pkt, err := units.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				s.logger.Warn("Encoder output ended", "error", err)
			}
			return
		}

		select {
		case packets <- pkt:
		default:
			// Drop the oldest packet to keep latency bounded.
			select {
			case <-packets:
				s.logger.Debug("Dropped oldest encoded packet", "next_pts", pkt.PTS)
			default:
			}
			packets <- pkt
		}
	}
}

func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
