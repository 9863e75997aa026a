package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/tracknode/internal/events"
	"github.com/smazurov/tracknode/internal/logging"
)

// Manager follows pipeline state changes and mirrors them on the LED:
// blinking while the chain is built or stopped, solid while frames flow
// and off once the run has ended.
type Manager struct {
	controller  Controller
	eventBus    *events.Bus
	logger      *slog.Logger
	unsubscribe func()

	mu    sync.Mutex
	state string
}

// NewManager creates a manager for controller.
func NewManager(controller Controller, eventBus *events.Bus) *Manager {
	return &Manager{
		controller: controller,
		eventBus:   eventBus,
		logger:     logging.GetLogger("led"),
	}
}

// Start subscribes to pipeline state changes.
func (m *Manager) Start() {
	m.unsubscribe = m.eventBus.Subscribe(func(e events.PipelineStateChangedEvent) {
		m.handleEvent(e)
	})
	m.logger.Debug("LED manager started", "led", m.controller.Name())
}

// Stop unsubscribes and switches the LED off.
func (m *Manager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	if err := m.controller.Set(false, ""); err != nil {
		m.logger.Warn("Failed to switch status LED off", "error", err)
	}
}

// State returns the last pipeline state applied to the LED.
func (m *Manager) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) handleEvent(e events.PipelineStateChangedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = e.To

	enabled, pattern := true, PatternBlink
	switch e.To {
	case "running":
		pattern = PatternSolid
	case "torn_down", "failed":
		enabled, pattern = false, ""
	}
	if err := m.controller.Set(enabled, pattern); err != nil {
		m.logger.Warn("Failed to set status LED", "state", e.To, "error", err)
	}
}
