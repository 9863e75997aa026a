package exporters

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/tracknode/internal/events"
	"github.com/smazurov/tracknode/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter periodically publishes encoder stats on the event bus so the
// SSE endpoint can stream them.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSSEExporter creates a new SSE exporter.
func NewSSEExporter(eventBus EventPublisher) *SSEExporter {
	return &SSEExporter{
		eventBus: eventBus,
		interval: 1 * time.Second,
	}
}

// Start begins the export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the exporter and waits for the goroutine to finish.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publishMetrics()
		}
	}
}

func (s *SSEExporter) publishMetrics() {
	for session, m := range metrics.GetAllEncoderStats() {
		s.eventBus.Publish(events.EncoderMetricsEvent{
			Session:         session,
			FPS:             strconv.FormatFloat(m.FPS, 'f', 2, 64),
			DroppedFrames:   strconv.FormatFloat(m.DroppedFrames, 'f', 0, 64),
			DuplicateFrames: strconv.FormatFloat(m.DuplicateFrames, 'f', 0, 64),
			Speed:           strconv.FormatFloat(m.Speed, 'f', 2, 64),
		})
	}
}

// EventTypes returns the SSE event names this exporter produces.
func EventTypes() map[string]any {
	return map[string]any{
		"encoder-metrics": events.EncoderMetricsEvent{},
	}
}
