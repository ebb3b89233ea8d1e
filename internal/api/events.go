package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/airradio/internal/events"
)

// registerSSERoutes registers the session and playback event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time session lifecycle, restart, volume and playback events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"session-started":        events.SessionStartedEvent{},
		"session-ended":          events.SessionEndedEvent{},
		"heartbeat-failed":       events.HeartbeatFailedEvent{},
		"restart-scheduled":      events.RestartScheduledEvent{},
		"volume-changed":         events.VolumeChangedEvent{},
		"streamer-state-changed": events.StreamerStateChangedEvent{},
		"stop-requested":         events.StopRequestedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)
		bus := s.options.EventBus

		unsubscribers := []func(){
			events.SubscribeToChannel[events.SessionStartedEvent](bus, eventCh),
			events.SubscribeToChannel[events.SessionEndedEvent](bus, eventCh),
			events.SubscribeToChannel[events.HeartbeatFailedEvent](bus, eventCh),
			events.SubscribeToChannel[events.RestartScheduledEvent](bus, eventCh),
			events.SubscribeToChannel[events.VolumeChangedEvent](bus, eventCh),
			events.SubscribeToChannel[events.StreamerStateChangedEvent](bus, eventCh),
			events.SubscribeToChannel[events.StopRequestedEvent](bus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

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
