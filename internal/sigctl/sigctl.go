// Package sigctl relays termination signals to the running engine. It
// holds a single process-wide stop handle, set once before signals are
// registered and cleared on teardown. The relay only ever calls Stop.
package sigctl

import (
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/smazurov/tracknode/internal/logging"
)

// ErrInstalled is returned when a handle is already installed.
var ErrInstalled = errors.New("signal handler already installed")

// Stopper requests an orderly stop without blocking.
type Stopper interface {
	Stop()
}

// Signals are the termination signals relayed to the stopper.
var Signals = []os.Signal{syscall.SIGINT, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM}

var (
	mu      sync.Mutex
	active  *handler
	notify  = signal.Notify
	restore = signal.Stop
)

type handler struct {
	stopper Stopper
	signals chan os.Signal
	done    chan struct{}
	once    sync.Once
}

// Install stores stopper and starts relaying signals to it. The first
// signal calls Stop exactly once; later signals are ignored until Clear.
func Install(stopper Stopper) error {
	mu.Lock()
	defer mu.Unlock()
	if active != nil {
		return ErrInstalled
	}

	h := &handler{
		stopper: stopper,
		signals: make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
	notify(h.signals, Signals...)
	active = h
	go h.relay()
	return nil
}

func (h *handler) relay() {
	logger := logging.GetLogger("main")
	for {
		select {
		case <-h.done:
			return
		case sig := <-h.signals:
			h.once.Do(func() {
				logger.Info("Signal received, stopping", "signal", sig.String())
				if h.stopper != nil {
					h.stopper.Stop()
				}
			})
		}
	}
}

// Deliver relays sig as if the process had received it. It is a no-op when
// nothing is installed.
func Deliver(sig os.Signal) {
	mu.Lock()
	h := active
	mu.Unlock()
	if h == nil {
		return
	}
	select {
	case h.signals <- sig:
	default:
	}
}

// Clear unregisters the signals and drops the handle. The default signal
// behaviour is restored.
func Clear() {
	mu.Lock()
	defer mu.Unlock()
	if active == nil {
		return
	}
	restore(active.signals)
	close(active.done)
	active = nil
}

// Installed reports whether a handle is installed.
func Installed() bool {
	mu.Lock()
	defer mu.Unlock()
	return active != nil
}
