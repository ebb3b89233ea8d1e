// Package streamers holds the participants registered with the playback
// coordinator: radios, file and audio switches, the volume control and the
// web action handler. Every streamer drives its own supervised device.
package streamers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/smazurov/airradio/internal/events"
	"github.com/smazurov/airradio/internal/playback"
	"github.com/smazurov/airradio/internal/supervisor"
)

// Device is the supervised stream a streamer controls.
// *supervisor.Supervisor satisfies it.
type Device interface {
	Play(ctx context.Context, req supervisor.StreamRequest) error
	Stop(ctx context.Context)
	IsPlaying() bool
	SetVolume(ctx context.Context, level int) error
	Volume(ctx context.Context) float64
}

// ErrNotStarted is returned when Play succeeded but no session is held,
// which is how the supervisor reports a failed spawn.
var ErrNotStarted = errors.New("stream process did not start")

// MediaState is the HomeKit media state value stored for auto-resume.
type MediaState int

// Media states.
const (
	MediaPlay  MediaState = 0
	MediaPause MediaState = 1
	MediaStop  MediaState = 2
)

func (m MediaState) String() string {
	switch m {
	case MediaPlay:
		return "PLAY"
	case MediaPause:
		return "PAUSE"
	case MediaStop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// Deps are the collaborators shared by all streamers.
type Deps struct {
	Coordinator *playback.Coordinator
	Events      *events.Bus
	Logger      *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// requestStop asks every other streamer to stop. Failures are logged; the
// caller proceeds with its own start regardless.
func (d Deps) requestStop(ctx context.Context, source playback.Streamer) {
	if d.Coordinator == nil {
		return
	}
	if err := d.Coordinator.RequestStop(ctx, source); err != nil {
		d.logger().Warn("Some streamers failed to stop", "streamer", source.StreamerName(), "error", err)
	}
}

func (d Deps) publishState(name string, playing bool) {
	d.Events.Publish(events.StreamerStateChangedEvent{
		Streamer:  name,
		Playing:   playing,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func optionalVolume(v int) *int {
	if v <= 0 {
		return nil
	}
	return supervisor.Int(v)
}

var (
	_ Device = (*supervisor.Supervisor)(nil)

	_ playback.Streamer = (*Radio)(nil)
	_ playback.Streamer = (*FileSwitch)(nil)
	_ playback.Streamer = (*Volume)(nil)
	_ playback.Streamer = (*WebActions)(nil)
)
