// Package pipeline builds the stage chain from the settings, runs it on the
// engine and, once the engine returns, harvests what the operator tuned
// back into the settings before they are persisted.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/tracknode/internal/config"
	"github.com/smazurov/tracknode/internal/engine"
	"github.com/smazurov/tracknode/internal/events"
	"github.com/smazurov/tracknode/internal/logging"
	"github.com/smazurov/tracknode/internal/metrics"
	"github.com/smazurov/tracknode/internal/stage"
	"github.com/smazurov/tracknode/internal/tuio"
)

var (
	// ErrNotRunning is returned by Toggle outside the running state.
	ErrNotRunning = errors.New("pipeline not running")
	// ErrUnknownStage is returned by Toggle for a stage not in the chain.
	ErrUnknownStage = errors.New("unknown stage")
	// ErrAlreadyRun is returned when Run is called a second time.
	ErrAlreadyRun = errors.New("pipeline already run")
)

// Engine is the driving engine the chain is registered with.
type Engine interface {
	Geometry() stage.Geometry
	AddProcessor(s stage.Stage) error
	RemoveProcessor(s stage.Stage) error
	Start() error
	Stop()
	Interface() engine.Interface
}

// Store persists the harvested settings.
type Store interface {
	Save(settings config.Settings) error
	Path() string
}

// Server is the tracking server the finder reports to. Its inversion flags
// are harvested after the chain has stopped and before it is closed.
type Server interface {
	stage.Tracker
	SetInversion(inv tuio.Inversion)
	Inversion() tuio.Inversion
	Close() error
}

// SinkFactory creates the streaming sink. It is called once per build.
type SinkFactory func() stage.Stage

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Engine     Engine
	Store      Store
	Server     Server
	Recognizer stage.Recognizer
	// Sink is nil when streaming is disabled.
	Sink SinkFactory
	// Bus is optional.
	Bus *events.Bus
}

// Orchestrator owns the stage chain for one run.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger

	// settings is touched only by the goroutine calling Run.
	settings config.Settings

	mu     sync.RWMutex
	state  State
	stages []stage.Stage
}

// New creates an orchestrator for settings.
func New(settings config.Settings, deps Deps) *Orchestrator {
	return &Orchestrator{
		deps:     deps,
		settings: settings,
		state:    StateUnstarted,
		logger:   logging.GetLogger("pipeline"),
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Stages returns the chain in processing order.
func (o *Orchestrator) Stages() []stage.Stage {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]stage.Stage(nil), o.stages...)
}

// Settings returns the settings record. After Run it holds the harvested
// values. It must not be called while Run is in progress.
func (o *Orchestrator) Settings() config.Settings {
	return o.settings
}

// Stop asks the engine to return. It never blocks.
func (o *Orchestrator) Stop() {
	o.deps.Engine.Stop()
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	prev := o.state
	o.state = s
	count := len(o.stages)
	o.mu.Unlock()

	metrics.SetPipelineState(string(prev), string(s))
	o.logger.Debug("Pipeline state changed", "from", prev, "to", s, "stages", count)
	o.publish(events.PipelineStateChangedEvent{
		From:      string(prev),
		To:        string(s),
		Stages:    count,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (o *Orchestrator) publish(ev events.Event) {
	if o.deps.Bus != nil {
		o.deps.Bus.Publish(ev)
	}
}

// Run builds the chain, blocks in the engine until it returns or ctx is
// done, then harvests and persists. A persistence failure is logged and
// does not fail the run. Build failures of required stages return an
// error without starting the engine.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.State() != StateUnstarted {
		return ErrAlreadyRun
	}

	if err := o.build(); err != nil {
		o.abort()
		o.setState(StateFailed)
		return err
	}

	o.setState(StateRunning)
	stopOnCancel := context.AfterFunc(ctx, o.deps.Engine.Stop)
	runErr := o.deps.Engine.Start()
	stopOnCancel()
	if runErr != nil {
		o.logger.Error("Engine stopped with error", "error", runErr)
	}

	o.setState(StateStopping)
	o.harvest()
	o.setState(StateHarvested)

	o.persist()
	o.setState(StateTornDown)

	if runErr != nil {
		return fmt.Errorf("engine: %w", runErr)
	}
	return nil
}

// build constructs the chain in domain order. Optional stages that fail
// are left out; a required stage failing aborts the build.
func (o *Orchestrator) build() error {
	o.setState(StateBuilding)
	s := o.settings
	g := o.deps.Engine.Geometry()

	o.deps.Server.SetInversion(tuio.Inversion{X: s.InvertX, Y: s.InvertY, A: s.InvertA})

	equalizer := stage.NewEqualizer()
	if err := o.add(equalizer, g); err != nil {
		return err
	}
	if s.Background {
		equalizer.Toggle(stage.FlagBackground, false)
	}

	if err := o.add(stage.NewThresholder(s.GradientGate(), s.TileSize(), s.ThreadCount()), g); err != nil {
		return err
	}

	if s.Amoeba {
		finder := stage.NewFinder(o.deps.Server, o.deps.Recognizer, s.FingerSize, s.FingerSensitivity)
		if err := o.add(finder, g); err != nil {
			o.logger.Warn("Object finder disabled", "error", err)
		}
	}

	calibrator := stage.NewCalibrator(config.RelativeTo(o.deps.Store.Path(), s.GridConfig))
	if err := o.add(calibrator, g); err != nil {
		calibrator.Close()
		return err
	}

	if o.deps.Sink != nil {
		sink := o.deps.Sink()
		if err := o.add(sink, g); err != nil {
			o.logger.Warn("Streaming sink disabled", "error", err)
			o.publish(events.SinkFailedEvent{
				Stage:     sink.Name(),
				Error:     err.Error(),
				Timestamp: time.Now().Format(time.RFC3339),
			})
		}
	}

	metrics.SetStageCount(len(o.Stages()))
	o.logger.Info("Pipeline built", "stages", stageNames(o.Stages()))
	return nil
}

// add initialises st and registers it. A stage that fails is never
// registered and holds nothing after Init returns an error.
func (o *Orchestrator) add(st stage.Stage, g stage.Geometry) error {
	if err := st.Init(g); err != nil {
		return fmt.Errorf("%s init: %w", st.Name(), err)
	}
	if err := o.deps.Engine.AddProcessor(st); err != nil {
		closeStage(st)
		return fmt.Errorf("%s register: %w", st.Name(), err)
	}
	o.mu.Lock()
	o.stages = append(o.stages, st)
	o.mu.Unlock()
	return nil
}

// abort unwinds a partial build.
func (o *Orchestrator) abort() {
	for _, st := range o.takeStages() {
		o.deps.Engine.RemoveProcessor(st)
		closeStage(st)
	}
	o.deps.Server.Close()
}

// takeStages empties the chain and returns it in reverse order.
func (o *Orchestrator) takeStages() []stage.Stage {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]stage.Stage, len(o.stages))
	for i, st := range o.stages {
		out[len(o.stages)-1-i] = st
	}
	o.stages = nil
	return out
}

// harvest removes the stages in reverse order, reading each one's tuned
// state before closing it, then reads the server inversion flags before
// closing the server.
func (o *Orchestrator) harvest() {
	if ui := o.deps.Engine.Interface(); ui != nil {
		o.settings.Display = ui.DisplayMode()
	}

	for _, st := range o.takeStages() {
		if err := o.deps.Engine.RemoveProcessor(st); err != nil {
			o.logger.Warn("Failed to remove stage", "stage", st.Name(), "error", err)
		}
		o.apply(st.Tuned())
		closeStage(st)
		o.logger.Debug("Stage torn down", "stage", st.Name())
	}
	metrics.SetStageCount(0)

	inv := o.deps.Server.Inversion()
	o.settings.InvertX, o.settings.InvertY, o.settings.InvertA = inv.X, inv.Y, inv.A
	if err := o.deps.Server.Close(); err != nil {
		o.logger.Warn("Failed to close tracking server", "error", err)
	}
}

func (o *Orchestrator) apply(tuned stage.Tuned) {
	s := &o.settings
	switch t := tuned.(type) {
	case stage.EqualizerState:
		s.Background = t.Background
	case stage.ThresholderState:
		s.Gradient = s.Gradient.Update(t.Gradient, config.GradientBounds)
		s.Tile = s.Tile.Update(t.Tile, config.TileBounds)
	case stage.FinderState:
		s.FingerSize = t.FingerSize
		s.FingerSensitivity = t.FingerSensitivity
	}
}

func (o *Orchestrator) persist() {
	ev := events.ConfigPersistedEvent{Path: o.deps.Store.Path()}
	if err := o.deps.Store.Save(o.settings); err != nil {
		o.logger.Error("Failed to save configuration", "path", o.deps.Store.Path(), "error", err)
		ev.Error = err.Error()
	}
	ev.Timestamp = time.Now().Format(time.RFC3339)
	o.publish(ev)
}

// Toggle applies flag to the named stage while the chain runs.
func (o *Orchestrator) Toggle(name string, flag stage.Flag) (bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.state != StateRunning {
		return false, ErrNotRunning
	}
	for _, st := range o.stages {
		if st.Name() != name {
			continue
		}
		on := st.Toggle(flag, true)
		metrics.IncToggle(name, flag.String())
		o.publish(events.StageToggledEvent{
			Stage:     name,
			Flag:      flag.String(),
			Persist:   true,
			Timestamp: time.Now().Format(time.RFC3339),
		})
		return on, nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownStage, name)
}

func closeStage(st stage.Stage) {
	if c, ok := st.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logging.GetLogger("pipeline").Warn("Failed to close stage", "stage", st.Name(), "error", err)
		}
	}
}

func stageNames(stages []stage.Stage) []string {
	names := make([]string, len(stages))
	for i, st := range stages {
		names[i] = st.Name()
	}
	return names
}
