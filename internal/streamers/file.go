package streamers

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/smazurov/airradio/internal/config"
	"github.com/smazurov/airradio/internal/playback"
	"github.com/smazurov/airradio/internal/supervisor"
)

// FileSwitch plays one media file from the media path. The audio variant
// also broadcasts its volume to the target's other streamers after
// starting.
type FileSwitch struct {
	name       string
	fileName   string
	volume     int
	artworkURL string
	mediaPath  string
	target     string
	broadcast  bool

	device Device
	deps   Deps
	logger *slog.Logger
}

// NewFileSwitch creates a file streamer.
func NewFileSwitch(cfg config.FileSwitch, mediaPath string, device Device, deps Deps) *FileSwitch {
	return &FileSwitch{
		name:       cfg.Name,
		fileName:   cfg.FileName,
		volume:     cfg.Volume,
		artworkURL: cfg.ArtworkURL,
		mediaPath:  mediaPath,
		device:     device,
		deps:       deps,
		logger:     deps.logger().With("streamer", cfg.Name),
	}
}

// NewAudioSwitch creates a file streamer that announces its volume for
// target once playing.
func NewAudioSwitch(cfg config.AudioSwitch, mediaPath, target string, device Device, deps Deps) *FileSwitch {
	s := NewFileSwitch(config.FileSwitch(cfg), mediaPath, device, deps)
	s.target = target
	s.broadcast = true
	return s
}

// FilePath is the file this switch plays.
func (s *FileSwitch) FilePath() string {
	return filepath.Join(s.mediaPath, s.fileName)
}

// Kind is "audio" for switches that broadcast their volume, "file" otherwise.
func (s *FileSwitch) Kind() string {
	if s.broadcast {
		return "audio"
	}
	return "file"
}

func (s *FileSwitch) StreamerName() string {
	return s.name
}

func (s *FileSwitch) IsPlaying() bool {
	return s.device.IsPlaying()
}

func (s *FileSwitch) StartPlaying(ctx context.Context) error {
	s.deps.requestStop(ctx, s)

	err := s.device.Play(ctx, supervisor.StreamRequest{
		Kind:       supervisor.SourceFile,
		Source:     s.FilePath(),
		Title:      s.name,
		Album:      s.name,
		Volume:     optionalVolume(s.volume),
		ArtworkURL: s.artworkURL,
	})
	playing := s.device.IsPlaying()
	s.deps.publishState(s.name, playing)
	if err != nil {
		return err
	}
	if !playing {
		return ErrNotStarted
	}

	if s.broadcast && s.volume > 0 && s.deps.Coordinator != nil {
		if err := s.deps.Coordinator.UpdateVolume(ctx, s.target, s.volume); err != nil {
			s.logger.Warn("Volume broadcast incomplete", "error", err)
		}
	}
	return nil
}

func (s *FileSwitch) StopPlaying(ctx context.Context) error {
	s.device.Stop(ctx)
	s.deps.publishState(s.name, false)
	return nil
}

func (s *FileSwitch) StopRequested(ctx context.Context, source playback.Streamer) error {
	s.logger.Info("Stopping playback on request", "source", source.StreamerName())
	return s.StopPlaying(ctx)
}

func (s *FileSwitch) ShutdownRequested(context.Context) error {
	return nil
}

func (s *FileSwitch) PlatformLaunched(context.Context) error {
	return nil
}

func (s *FileSwitch) VolumeUpdated(context.Context, string, int) error {
	return nil
}
