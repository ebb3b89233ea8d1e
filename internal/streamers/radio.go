package streamers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/smazurov/airradio/internal/config"
	"github.com/smazurov/airradio/internal/playback"
	"github.com/smazurov/airradio/internal/supervisor"
)

// Radio streams an internet radio station.
type Radio struct {
	device   Device
	deps     Deps
	store    *StateStore
	resolver *Resolver
	logger   *slog.Logger

	mu  sync.RWMutex
	cfg config.Radio
}

// NewRadio creates a radio streamer. store and resolver may be nil when
// auto-resume or URL validation are never enabled.
func NewRadio(cfg config.Radio, device Device, store *StateStore, resolver *Resolver, deps Deps) *Radio {
	return &Radio{
		device:   device,
		deps:     deps,
		store:    store,
		resolver: resolver,
		logger:   deps.logger().With("streamer", cfg.Name),
		cfg:      cfg,
	}
}

// Config returns the radio definition in effect.
func (r *Radio) Config() config.Radio {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Update replaces the radio definition. The name is kept; a playing
// stream continues with the old settings until the next start.
func (r *Radio) Update(cfg config.Radio) {
	r.mu.Lock()
	cfg.Name = r.cfg.Name
	r.cfg = cfg
	r.mu.Unlock()
	r.logger.Info("Radio definition updated", "url", cfg.URL, "volume", cfg.Volume)
}

func (r *Radio) StreamerName() string {
	return r.Config().Name
}

func (r *Radio) IsPlaying() bool {
	return r.device.IsPlaying()
}

// MediaState reports PLAY while a session is live, STOP otherwise.
func (r *Radio) MediaState() MediaState {
	if r.device.IsPlaying() {
		return MediaPlay
	}
	return MediaStop
}

// SetTargetMediaState starts on PLAY and stops on PAUSE or STOP.
func (r *Radio) SetTargetMediaState(ctx context.Context, state MediaState) error {
	r.logger.Info("Target media state", "state", state.String())
	if state == MediaPause || state == MediaStop {
		return r.StopPlaying(ctx)
	}
	return r.StartPlaying(ctx)
}

// StartPlaying stops every other streamer and then starts the station.
func (r *Radio) StartPlaying(ctx context.Context) error {
	r.deps.requestStop(ctx, r)

	cfg := r.Config()
	url := cfg.URL
	if cfg.ValidateURL && r.resolver != nil {
		r.logger.Info("Validating radio url", "url", url)
		resolved, err := r.resolver.Resolve(ctx, url)
		if err != nil {
			r.logger.Warn("Failed to start playing", "error", err)
			return err
		}
		url = resolved
	}

	err := r.device.Play(ctx, supervisor.StreamRequest{
		Kind:        supervisor.SourceURL,
		Source:      url,
		Title:       cfg.TrackName,
		Album:       cfg.Name,
		Volume:      optionalVolume(cfg.Volume),
		MetadataURL: cfg.MetadataURL,
		ArtworkURL:  cfg.ArtworkURL,
	})
	playing := r.device.IsPlaying()
	r.deps.publishState(cfg.Name, playing)
	if err == nil && !playing {
		err = ErrNotStarted
	}
	if err != nil {
		r.logger.Warn("Failed to start playing", "error", err)
	}
	return err
}

func (r *Radio) StopPlaying(ctx context.Context) error {
	r.device.Stop(ctx)
	r.deps.publishState(r.StreamerName(), false)
	return nil
}

func (r *Radio) StopRequested(ctx context.Context, source playback.Streamer) error {
	r.logger.Info("Stopping playback on request", "source", source.StreamerName())
	r.device.Stop(ctx)
	r.deps.publishState(r.StreamerName(), false)
	return r.storeState()
}

func (r *Radio) ShutdownRequested(context.Context) error {
	return r.storeState()
}

// PlatformLaunched resumes the stored state when auto-resume is enabled.
func (r *Radio) PlatformLaunched(ctx context.Context) error {
	if !r.Config().AutoResume || r.store == nil {
		r.logger.Debug("Skipped reading state")
		return nil
	}

	state, ok, err := r.store.Read()
	if err != nil {
		r.logger.Warn("Ignoring unreadable state", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	r.logger.Info("Restoring state", "state", state.String())
	return r.SetTargetMediaState(ctx, state)
}

func (r *Radio) VolumeUpdated(context.Context, string, int) error {
	return nil
}

func (r *Radio) storeState() error {
	if !r.Config().AutoResume || r.store == nil {
		return nil
	}
	state := r.MediaState()
	if err := r.store.Write(state); err != nil {
		return err
	}
	r.logger.Info("Stored state", "state", state.String(), "path", r.store.Path())
	return nil
}
