package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracknode",
		Subsystem: "engine",
		Name:      "frames_total",
		Help:      "Frames pushed through the stage chain",
	})

	framesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracknode",
		Subsystem: "engine",
		Name:      "source_errors_total",
		Help:      "Frame reads that failed",
	})

	frameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tracknode",
		Subsystem: "engine",
		Name:      "frame_duration_seconds",
		Help:      "Time spent running the stage chain for one frame",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tracknode",
		Subsystem: "stage",
		Name:      "process_duration_seconds",
		Help:      "Per-stage frame transform time",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
	}, []string{"stage"})

	stageToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracknode",
		Subsystem: "stage",
		Name:      "toggles_total",
		Help:      "Operator toggles accepted per stage and flag",
	}, []string{"stage", "flag"})

	pipelineStages = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tracknode",
		Subsystem: "pipeline",
		Name:      "stages",
		Help:      "Stages currently registered with the engine",
	})

	pipelineState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tracknode",
		Subsystem: "pipeline",
		Name:      "state",
		Help:      "1 for the current orchestrator state, 0 otherwise",
	}, []string{"state"})

	sinkFrames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracknode",
		Subsystem: "sink",
		Name:      "frames_submitted_total",
		Help:      "Display frames submitted to the encoder",
	})

	sinkPackets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracknode",
		Subsystem: "sink",
		Name:      "packets_total",
		Help:      "Compressed packets received from the encoder",
	})

	sinkBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracknode",
		Subsystem: "sink",
		Name:      "bytes_total",
		Help:      "Compressed bytes received from the encoder",
	})

	sinkDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracknode",
		Subsystem: "sink",
		Name:      "dropped_frames_total",
		Help:      "Display frames the sink could not submit",
	})
)

// ObserveFrame records one pass of the stage chain.
func ObserveFrame(d time.Duration) {
	framesProcessed.Inc()
	frameDuration.Observe(d.Seconds())
}

// IncSourceErrors counts a failed frame read.
func IncSourceErrors() {
	framesFailed.Inc()
}

// ObserveStage records one stage transform.
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IncToggle counts an accepted toggle.
func IncToggle(stage, flag string) {
	stageToggles.WithLabelValues(stage, flag).Inc()
}

// SetStageCount sets the number of registered stages.
func SetStageCount(n int) {
	pipelineStages.Set(float64(n))
}

// SetPipelineState marks state as current and clears prev.
func SetPipelineState(prev, state string) {
	if prev != "" {
		pipelineState.WithLabelValues(prev).Set(0)
	}
	pipelineState.WithLabelValues(state).Set(1)
}

// IncSinkFrame counts a submitted display frame.
func IncSinkFrame() {
	sinkFrames.Inc()
}

// AddSinkPacket counts a received packet and its size.
func AddSinkPacket(size int) {
	sinkPackets.Inc()
	sinkBytes.Add(float64(size))
}

// IncSinkDrop counts a frame the sink gave up on.
func IncSinkDrop() {
	sinkDrops.Inc()
}
