package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/smazurov/airradio/internal/airplay"
	"github.com/smazurov/airradio/internal/api"
	"github.com/smazurov/airradio/internal/config"
	"github.com/smazurov/airradio/internal/events"
	"github.com/smazurov/airradio/internal/logging"
	"github.com/smazurov/airradio/internal/metrics"
	"github.com/smazurov/airradio/internal/playback"
	"github.com/smazurov/airradio/internal/process"
	"github.com/smazurov/airradio/internal/streamers"
	"github.com/smazurov/airradio/internal/supervisor"
	"github.com/smazurov/airradio/internal/systemd"
)

const shutdownTimeout = 15 * time.Second

var exit = os.Exit

// service is the running daemon: one supervisor per streamer, all
// registered with a single coordinator.
type service struct {
	opts   *Options
	logger *slog.Logger

	platform    *config.Platform
	bus         *events.Bus
	coordinator *playback.Coordinator
	radios      map[string]*streamers.Radio
	supervisors map[string]*supervisor.Supervisor
	server      *api.Server
	watcher     *config.Watcher[*config.Platform]
	notifier    *systemd.Notifier

	unsubscribe []func()
	cancel      context.CancelFunc
}

func newService(opts *Options) (*service, error) {
	s := &service{
		opts:        opts,
		logger:      logging.GetLogger("main"),
		bus:         events.New(),
		radios:      make(map[string]*streamers.Radio),
		supervisors: make(map[string]*supervisor.Supervisor),
		notifier:    systemd.NewNotifier(logging.GetLogger("systemd")),
	}

	platform, err := config.LoadPlatform(opts.PlatformFile)
	if err != nil {
		return nil, fmt.Errorf("load platform %s: %w", opts.PlatformFile, err)
	}
	s.platform = platform

	supCfg, err := s.supervisorConfig()
	if err != nil {
		return nil, err
	}
	validateTimeout, err := parseDuration("validate-timeout", opts.ValidateTimeout)
	if err != nil {
		return nil, err
	}

	s.unsubscribe = append(s.unsubscribe, metrics.Subscribe(s.bus))
	s.coordinator = playback.New(logging.GetLogger("playback"), s.bus)
	deps := streamers.Deps{Coordinator: s.coordinator, Events: s.bus, Logger: logging.GetLogger("streamers")}
	resolver := streamers.NewResolver(validateTimeout, logging.GetLogger("streamers"))

	device := func(name string) (*supervisor.Supervisor, error) {
		sup, err := supervisor.New(supCfg)
		if err != nil {
			return nil, err
		}
		s.supervisors[name] = sup
		return sup, nil
	}

	for _, rc := range platform.Radios {
		sup, err := device(rc.Name)
		if err != nil {
			return nil, err
		}
		store := streamers.NewStateStore(streamers.StatePath(opts.StateDir, rc.Name))
		radio := streamers.NewRadio(rc, sup, store, resolver, deps)
		s.radios[rc.Name] = radio
		s.coordinator.AddStreamer(radio)
	}
	for _, fc := range platform.Files {
		sup, err := device(fc.Name)
		if err != nil {
			return nil, err
		}
		s.coordinator.AddStreamer(streamers.NewFileSwitch(fc, platform.MediaPath, sup, deps))
	}
	for _, ac := range platform.Audios {
		sup, err := device(ac.Name)
		if err != nil {
			return nil, err
		}
		s.coordinator.AddStreamer(streamers.NewAudioSwitch(ac, platform.MediaPath, platform.TargetID, sup, deps))
	}

	control, err := device(streamers.WebActionsName)
	if err != nil {
		return nil, err
	}
	web := streamers.NewWebActions(platform.MediaPath, control, deps)
	s.coordinator.AddStreamer(web)

	var volume *streamers.Volume
	if platform.VolumeControl {
		volume = streamers.NewVolume(platform.TargetID, control, deps)
		s.coordinator.AddStreamer(volume)
	}

	sessions := make(map[string]api.SessionReporter, len(s.supervisors))
	for name, sup := range s.supervisors {
		sessions[name] = sup
	}

	apiOpts := &api.Options{
		AuthUsername: opts.AuthUsername,
		AuthPassword: opts.AuthPassword,
		CORSOrigin:   opts.CORSOrigin,
		Coordinator:  s.coordinator,
		Device:       control,
		Volume:       volume,
		WebActions:   web,
		Sessions:     sessions,
		EventBus:     s.bus,
	}
	if opts.MetricsEnabled {
		apiOpts.PrometheusHandler = metrics.Handler()
	}
	s.server = api.NewServer(apiOpts)

	s.watcher = config.NewWatcher(opts.PlatformFile, config.LoadPlatform, logging.GetLogger("config"),
		config.WithErrorHandler[*config.Platform](func(err error) {
			s.logger.Warn("Ignoring invalid platform file", "error", err)
		}))
	s.watcher.OnReload(s.applyPlatform)

	s.logger.Info("Platform loaded",
		"target", platform.TargetID,
		"radios", platform.RadioNames(),
		"files", len(platform.Files),
		"audios", len(platform.Audios),
		"volume_control", platform.VolumeControl)

	return s, nil
}

func (s *service) supervisorConfig() (supervisor.Config, error) {
	command, err := process.ParseCommand(s.opts.StreamCommand)
	if err != nil {
		return supervisor.Config{}, fmt.Errorf("invalid stream command: %w", err)
	}
	remote, err := airplay.NewRemote(s.opts.ControlCommand, 0, logging.GetLogger("airplay"))
	if err != nil {
		return supervisor.Config{}, err
	}

	cfg := supervisor.Config{
		Target:           s.platform.TargetID,
		StreamCommand:    command,
		StreamTimeout:    s.opts.StreamTimeout,
		Verbose:          s.platform.VerboseMode,
		MaxRetries:       s.opts.MaxRetries,
		PlaceholderTitle: s.opts.PlaceholderTitle,
		Controller:       remote,
		Events:           s.bus,
		Logger:           logging.GetLogger("supervisor"),
		StreamLogger:     logging.GetLogger("stream"),
	}
	if cfg.HeartbeatInterval, err = parseDuration("heartbeat-interval", s.opts.HeartbeatInterval); err != nil {
		return supervisor.Config{}, err
	}
	if cfg.LastSeenThreshold, err = parseDuration("last-seen-threshold", s.opts.LastSeenThreshold); err != nil {
		return supervisor.Config{}, err
	}
	if cfg.RestartDelay, err = parseDuration("restart-delay", s.opts.RestartDelay); err != nil {
		return supervisor.Config{}, err
	}
	return cfg, nil
}

// applyPlatform re-applies radio definitions from a reloaded platform file.
// Streamers are fixed at startup; added or removed entries need a restart.
func (s *service) applyPlatform(p *config.Platform) {
	seen := make(map[string]bool, len(p.Radios))
	for _, rc := range p.Radios {
		seen[rc.Name] = true
		radio, ok := s.radios[rc.Name]
		if !ok {
			s.logger.Warn("New radio in platform file, restart to enable it", "radio", rc.Name)
			continue
		}
		radio.Update(rc)
	}
	for name := range s.radios {
		if !seen[name] {
			s.logger.Warn("Radio removed from platform file, restart to disable it", "radio", name)
		}
	}
	if p.TargetID != s.platform.TargetID {
		s.logger.Warn("Target changed in platform file, restart to apply", "target", p.TargetID)
	}
}

// run starts background work and blocks serving HTTP.
func (s *service) run() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if err := s.coordinator.PlatformReady(ctx); err != nil {
		s.logger.Warn("Platform launch handlers failed", "error", err)
	}

	if err := s.watcher.Start(); err != nil {
		s.logger.Warn("Failed to start platform watcher, hot-reload disabled", "error", err)
	}

	if s.opts.SystemdNotify {
		s.notifier.Ready()
		go s.notifier.RunWatchdog(ctx)
	}

	s.logger.Info("Starting HTTP server", "port", s.opts.Port)
	if err := s.server.Start(s.opts.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Failed to start HTTP server", "error", err)
		exit(1)
	}
}

// shutdown stores radio state, stops every session and releases resources.
func (s *service) shutdown() {
	s.logger.Info("Shutting down server")
	if s.opts.SystemdNotify {
		s.notifier.Stopping()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Stop(ctx); err != nil {
		s.logger.Error("Error stopping HTTP server", "error", err)
	}

	// State is stored before sessions are stopped so auto-resume sees PLAY.
	if err := s.coordinator.Shutdown(ctx); err != nil {
		s.logger.Warn("Shutdown handlers failed", "error", err)
	}

	s.logger.Info("Stopping all stream sessions")
	for _, sup := range s.supervisors {
		sup.Stop(ctx)
	}

	if err := s.watcher.Stop(); err != nil {
		s.logger.Warn("Error stopping platform watcher", "error", err)
	}
	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	if s.cancel != nil {
		s.cancel()
	}
}

func parseDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return d, nil
}
