// Package engine drives the stage chain: it reads frames from a Source,
// passes each through the registered stages, picks the display buffer and
// hands it to the post-processors.
package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/tracknode/internal/config"
	"github.com/smazurov/tracknode/internal/logging"
	"github.com/smazurov/tracknode/internal/metrics"
	"github.com/smazurov/tracknode/internal/stage"
)

// maxSourceErrors is how many consecutive failed reads end the run.
const maxSourceErrors = 30

var (
	// ErrRunning is returned by Start while another Start is in progress.
	ErrRunning = errors.New("engine already running")
	// ErrDuplicate is returned when a processor is registered twice.
	ErrDuplicate = errors.New("processor already registered")
	// ErrUnknown is returned when removing a processor that is not registered.
	ErrUnknown = errors.New("processor not registered")
)

// Source produces gray frames of a fixed size. Read blocks until buf holds
// a full frame. It returns io.EOF when the source is exhausted. Close must
// unblock a pending Read.
type Source interface {
	Size() (width, height int)
	Read(buf []byte) error
	Close() error
}

// Interface is the display handle the orchestrator queries after the run.
type Interface interface {
	DisplayMode() config.DisplayMode
	SetDisplayMode(config.DisplayMode)
}

// Display holds the display mode. It is read by the frame loop on every
// frame and written by the control API.
type Display struct {
	mode atomic.Int32
}

// DisplayMode returns the current mode.
func (d *Display) DisplayMode() config.DisplayMode {
	return config.DisplayMode(d.mode.Load())
}

// SetDisplayMode replaces the mode.
func (d *Display) SetDisplayMode(m config.DisplayMode) {
	d.mode.Store(int32(m))
}

// Options configures an Engine.
type Options struct {
	// Headless runs without a display handle.
	Headless bool
	// Display is the initial display mode.
	Display config.DisplayMode
}

type readResult struct {
	buf []byte
	err error
}

// Engine runs the frame loop.
type Engine struct {
	source   Source
	geometry stage.Geometry
	headless bool
	display  Display
	logger   *slog.Logger

	mu         sync.Mutex
	processors []stage.Stage

	running  atomic.Bool
	frames   atomic.Uint64
	stopOnce sync.Once
	stopCh   chan struct{}

	readerWG  sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New creates an engine over source.
func New(source Source, opts Options) (*Engine, error) {
	if source == nil {
		return nil, errors.New("engine requires a frame source")
	}
	w, h := source.Size()
	g := stage.Geometry{Width: w, Height: h, Src: stage.FormatGray, Dst: stage.FormatGray}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid source: %w", err)
	}

	e := &Engine{
		source:   source,
		geometry: g,
		headless: opts.Headless,
		logger:   logging.GetLogger("engine"),
		stopCh:   make(chan struct{}),
	}
	e.display.SetDisplayMode(opts.Display)
	return e, nil
}

// Geometry is the frame layout every stage is initialised with.
func (e *Engine) Geometry() stage.Geometry { return e.geometry }

// Interface returns the display handle, or nil when headless.
func (e *Engine) Interface() Interface {
	if e.headless {
		return nil
	}
	return &e.display
}

// Frames returns how many frames went through the chain.
func (e *Engine) Frames() uint64 { return e.frames.Load() }

// AddProcessor appends s to the chain.
func (e *Engine) AddProcessor(s stage.Stage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.processors {
		if p == s {
			return fmt.Errorf("%w: %s", ErrDuplicate, s.Name())
		}
	}
	e.processors = append(e.processors, s)
	e.logger.Debug("Processor added", "stage", s.Name(), "count", len(e.processors))
	return nil
}

// RemoveProcessor takes s out of the chain.
func (e *Engine) RemoveProcessor(s stage.Stage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, p := range e.processors {
		if p == s {
			e.processors = append(e.processors[:i], e.processors[i+1:]...)
			e.logger.Debug("Processor removed", "stage", s.Name(), "count", len(e.processors))
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknown, s.Name())
}

// Processors returns the chain in order.
func (e *Engine) Processors() []stage.Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]stage.Stage(nil), e.processors...)
}

// Stop asks the frame loop to return. It never blocks and may be called
// any number of times from any goroutine, including before Start.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// Start runs the frame loop until Stop, the end of the source, or too many
// consecutive read failures. A source that ends with io.EOF is a normal
// return.
func (e *Engine) Start() error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer e.running.Store(false)
	defer e.Stop()

	select {
	case <-e.stopCh:
		return nil
	default:
	}

	srcSize := e.geometry.SrcSize()
	dstSize := e.geometry.DstSize()

	// Two raw buffers let the reader fill one while the chain works on the other.
	free := make(chan []byte, 2)
	free <- make([]byte, srcSize)
	free <- make([]byte, srcSize)
	results := make(chan readResult)

	e.readerWG.Add(1)
	go e.read(free, results)

	bufA := make([]byte, dstSize)
	bufB := make([]byte, dstSize)

	e.logger.Info("Engine started", "width", e.geometry.Width, "height", e.geometry.Height, "stages", len(e.Processors()))
	defer e.logger.Info("Engine stopped", "frames", e.frames.Load())

	failures := 0
	for {
		var res readResult
		select {
		case <-e.stopCh:
			return nil
		case res = <-results:
		}

		if res.err != nil {
			if errors.Is(res.err, io.EOF) {
				e.logger.Info("Frame source ended")
				return nil
			}
			metrics.IncSourceErrors()
			failures++
			if failures == 1 {
				e.logger.Warn("Frame read failed", "error", res.err)
			}
			if failures >= maxSourceErrors {
				return fmt.Errorf("frame source failed %d times: %w", failures, res.err)
			}
			continue
		}
		failures = 0

		e.runChain(res.buf, bufA, bufB)
		free <- res.buf
	}
}

func (e *Engine) runChain(raw, bufA, bufB []byte) {
	start := time.Now()
	procs := e.Processors()

	src, dst := raw, bufA
	for _, p := range procs {
		t := time.Now()
		p.Process(src, dst)
		metrics.ObserveStage(p.Name(), time.Since(t))
		src = dst
		if &dst[0] == &bufA[0] {
			dst = bufB
		} else {
			dst = bufA
		}
	}

	var display []byte
	switch e.display.DisplayMode() {
	case config.DisplaySource:
		display = raw
	case config.DisplayDest:
		display = src
	}
	if display != nil {
		for _, p := range procs {
			if pp, ok := p.(stage.PostProcessor); ok {
				pp.PostProcess(display)
			}
		}
	}

	e.frames.Add(1)
	metrics.ObserveFrame(time.Since(start))
}

// read fills free buffers from the source until Stop or a read error.
func (e *Engine) read(free chan []byte, results chan<- readResult) {
	defer e.readerWG.Done()
	for {
		var buf []byte
		select {
		case <-e.stopCh:
			return
		case buf = <-free:
		}

		err := e.source.Read(buf)
		if err != nil {
			free <- buf
			buf = nil
		}

		select {
		case <-e.stopCh:
			return
		case results <- readResult{buf: buf, err: err}:
		}
		if errors.Is(err, io.EOF) {
			return
		}
	}
}

// Close stops the loop, closes the source and waits for the reader.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.Stop()
		e.closeErr = e.source.Close()
		e.readerWG.Wait()
	})
	return e.closeErr
}
