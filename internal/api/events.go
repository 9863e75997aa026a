package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/tracknode/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	if s.eventBus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Pipeline state changes, toggles, tracked objects and encoder progress",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"pipeline-state-changed": events.PipelineStateChangedEvent{},
		"stage-toggled":          events.StageToggledEvent{},
		"objects-tracked":        events.ObjectsTrackedEvent{},
		"config-persisted":       events.ConfigPersistedEvent{},
		"sink-failed":            events.SinkFailedEvent{},
		"encoder-metrics":        events.EncoderMetricsEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Tracked objects arrive every frame, so leave room for bursts.
		eventCh := make(chan any, 64)

		unsubscribe := events.SubscribeAll(s.eventBus, eventCh)
		defer unsubscribe()

		// Send the current state so clients need not wait for a transition.
		if err := send.Data(events.PipelineStateChangedEvent{
			To:        string(s.options.Pipeline.State()),
			Stages:    len(s.options.Pipeline.Stages()),
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
