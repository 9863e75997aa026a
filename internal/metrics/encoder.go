// Package metrics provides Prometheus metrics for the frame loop, the
// pipeline stages and the encoder session.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	encoderFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tracknode",
		Subsystem: "encoder",
		Name:      "fps",
		Help:      "Current encoding rate reported by the encoder",
	}, []string{"session"})

	encoderDroppedFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tracknode",
		Subsystem: "encoder",
		Name:      "dropped_frames_total",
		Help:      "Frames dropped by the encoder",
	}, []string{"session"})

	encoderDuplicateFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tracknode",
		Subsystem: "encoder",
		Name:      "duplicate_frames_total",
		Help:      "Frames duplicated by the encoder",
	}, []string{"session"})

	encoderSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tracknode",
		Subsystem: "encoder",
		Name:      "processing_speed",
		Help:      "Encoding speed relative to real time",
	}, []string{"session"})

	// Local cache for the SSE exporter and the status endpoint.
	encoderCache   = make(map[string]*EncoderStats)
	encoderCacheMu sync.RWMutex
)

// EncoderStats holds current progress values for a session.
type EncoderStats struct {
	FPS             float64
	DroppedFrames   float64
	DuplicateFrames float64
	Speed           float64
}

// SetEncoderFPS sets the current rate for a session.
func SetEncoderFPS(session string, fps float64) {
	encoderFPS.WithLabelValues(session).Set(fps)
	updateCache(session, func(m *EncoderStats) { m.FPS = fps })
}

// SetEncoderDroppedFrames sets the dropped frame count for a session.
func SetEncoderDroppedFrames(session string, count float64) {
	encoderDroppedFrames.WithLabelValues(session).Set(count)
	updateCache(session, func(m *EncoderStats) { m.DroppedFrames = count })
}

// SetEncoderDuplicateFrames sets the duplicated frame count for a session.
func SetEncoderDuplicateFrames(session string, count float64) {
	encoderDuplicateFrames.WithLabelValues(session).Set(count)
	updateCache(session, func(m *EncoderStats) { m.DuplicateFrames = count })
}

// SetEncoderSpeed sets the speed multiplier for a session.
func SetEncoderSpeed(session string, speed float64) {
	encoderSpeed.WithLabelValues(session).Set(speed)
	updateCache(session, func(m *EncoderStats) { m.Speed = speed })
}

// DeleteEncoderMetrics removes all metrics for a session.
func DeleteEncoderMetrics(session string) {
	encoderFPS.DeleteLabelValues(session)
	encoderDroppedFrames.DeleteLabelValues(session)
	encoderDuplicateFrames.DeleteLabelValues(session)
	encoderSpeed.DeleteLabelValues(session)

	encoderCacheMu.Lock()
	delete(encoderCache, session)
	encoderCacheMu.Unlock()
}

// GetEncoderStats returns a copy of the current values for a session.
func GetEncoderStats(session string) *EncoderStats {
	encoderCacheMu.RLock()
	defer encoderCacheMu.RUnlock()
	if m, ok := encoderCache[session]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllEncoderStats returns copies for all live sessions.
func GetAllEncoderStats() map[string]*EncoderStats {
	encoderCacheMu.RLock()
	defer encoderCacheMu.RUnlock()
	result := make(map[string]*EncoderStats, len(encoderCache))
	for id, m := range encoderCache {
		dup := *m
		result[id] = &dup
	}
	return result
}

func updateCache(session string, update func(*EncoderStats)) {
	encoderCacheMu.Lock()
	defer encoderCacheMu.Unlock()
	m, ok := encoderCache[session]
	if !ok {
		m = &EncoderStats{}
		encoderCache[session] = m
	}
	update(m)
}
