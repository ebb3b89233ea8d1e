package streamers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/smazurov/airradio/internal/playback"
)

const (
	// DefaultCurrentVolume is reported before any volume was set.
	DefaultCurrentVolume = 25
	// MaxVolume caps volume requested through the control surface, 75% of
	// the device range.
	MaxVolume = 75
)

// Volume exposes the target's volume as a streamer. It never plays;
// it applies volume broadcasts addressed to its target.
type Volume struct {
	target string
	device Device
	logger *slog.Logger

	mu      sync.Mutex
	current int
}

// NewVolume creates the volume streamer for target.
func NewVolume(target string, device Device, deps Deps) *Volume {
	v := &Volume{
		target:  target,
		device:  device,
		current: DefaultCurrentVolume,
	}
	v.logger = deps.logger().With("streamer", v.StreamerName())
	return v
}

func (v *Volume) StreamerName() string {
	return v.target + " Volume"
}

func (v *Volume) IsPlaying() bool {
	return v.device.IsPlaying()
}

// CurrentVolume is the last level applied through this streamer.
func (v *Volume) CurrentVolume() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// SetVolume applies level capped at MaxVolume and returns the level used.
func (v *Volume) SetVolume(ctx context.Context, level int) (int, error) {
	if level > MaxVolume {
		level = MaxVolume
	}
	return level, v.apply(ctx, level)
}

func (v *Volume) apply(ctx context.Context, level int) error {
	v.mu.Lock()
	v.current = level
	v.mu.Unlock()

	v.logger.Info("Setting volume", "level", level)
	return v.device.SetVolume(ctx, level)
}

func (v *Volume) StartPlaying(context.Context) error {
	return nil
}

func (v *Volume) StopPlaying(context.Context) error {
	return nil
}

func (v *Volume) StopRequested(context.Context, playback.Streamer) error {
	return nil
}

func (v *Volume) ShutdownRequested(context.Context) error {
	return nil
}

func (v *Volume) PlatformLaunched(context.Context) error {
	return nil
}

// VolumeUpdated applies broadcasts for this streamer's target only.
func (v *Volume) VolumeUpdated(ctx context.Context, target string, level int) error {
	if target != v.target {
		return nil
	}
	return v.apply(ctx, level)
}
