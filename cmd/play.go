package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/airradio/internal/config"
	"github.com/smazurov/airradio/internal/events"
	"github.com/smazurov/airradio/internal/logging"
	"github.com/smazurov/airradio/internal/process"
	"github.com/smazurov/airradio/internal/supervisor"
)

type playFlags struct {
	platformFile  string
	target        string
	url           string
	file          string
	title         string
	album         string
	volume        int
	streamCommand string
	verbose       bool
	logJSON       bool
}

// CreatePlayCmd creates the play command.
func CreatePlayCmd() *cobra.Command {
	var f playFlags

	cmd := &cobra.Command{
		Use:   "play [radio-name]",
		Short: "Stream one source to a device until interrupted",
		Long: `Runs a single supervised stream in the foreground. With a radio name the radio is ` +
			`loaded from the platform file and re-applied whenever the file changes; otherwise ` +
			`--target and one of --url or --file describe the stream.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			loggingConfig := logging.Config{Level: "info", Format: "text"}
			if f.logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)

			radioName := ""
			if len(args) == 1 {
				radioName = args[0]
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			exitCode := f.run(ctx, radioName)
			stop()

			logging.GetLogger("main").Info("Play command exiting", "exit_code", exitCode)
			os.Exit(exitCode)
		},
	}

	cmd.Flags().StringVar(&f.platformFile, "platform", "platform.toml", "Platform file holding the named radio")
	cmd.Flags().StringVar(&f.target, "target", "", "AirPlay device id (defaults to the platform homepodId)")
	cmd.Flags().StringVar(&f.url, "url", "", "Stream URL")
	cmd.Flags().StringVar(&f.file, "file", "", "Audio file path")
	cmd.Flags().StringVar(&f.title, "title", "", "Track title shown on the device")
	cmd.Flags().StringVar(&f.album, "album", "", "Album shown on the device")
	cmd.Flags().IntVar(&f.volume, "volume", 0, "Volume to set on start (0 leaves it unchanged)")
	cmd.Flags().StringVar(&f.streamCommand, "stream-command", "", "Streaming executable and leading arguments")
	cmd.Flags().BoolVar(&f.verbose, "verbose", false, "Pass --verbose to the streaming executable")
	cmd.Flags().BoolVar(&f.logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

// run streams until ctx is cancelled or the session ends on its own.
// It returns the process exit code of the command.
func (f *playFlags) run(ctx context.Context, radioName string) int {
	logger := logging.GetLogger("main")

	target, req, err := f.request(radioName)
	if err != nil {
		logger.Error("Invalid play request", "error", err)
		return 1
	}

	bus := events.New()
	sup, err := f.supervisor(target, bus)
	if err != nil {
		logger.Error("Failed to create supervisor", "error", err)
		return 1
	}

	ended := make(chan string, 1)
	unsubscribe := bus.Subscribe(func(e events.SessionEndedEvent) {
		if !sessionFinished(e.Reason) {
			return
		}
		select {
		case ended <- e.Reason:
		default:
		}
	})
	defer unsubscribe()

	if err := sup.Play(ctx, req); err != nil {
		logger.Error("Failed to start stream", "error", err)
		return 1
	}
	if !sup.IsPlaying() {
		logger.Error("Stream did not start")
		return 1
	}

	if radioName != "" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()

		reloader := &radioReloader{sup: sup, name: radioName, req: req, stop: cancel, logger: logger}
		watcher := config.NewWatcher(f.platformFile, config.LoadPlatform, logging.GetLogger("config"))
		watcher.OnReload(func(p *config.Platform) { reloader.apply(ctx, p) })
		if err := watcher.Start(); err != nil {
			logger.Warn("Failed to start platform watcher, hot-reload disabled", "error", err)
		} else {
			defer func() { _ = watcher.Stop() }()
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping stream")
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			sup.Stop(stopCtx)
			cancel()
			return 0
		case reason := <-ended:
			// A reload may already have started the next session.
			if sup.IsPlaying() {
				continue
			}
			logger.Warn("Stream session ended", "reason", reason)
			return 1
		}
	}
}

// sessionFinished reports whether a session end reason leaves the
// supervisor without a session. Replaced and restarting sessions are
// followed by a new one; stopped is our own shutdown.
func sessionFinished(reason string) bool {
	switch reason {
	case "replaced", "restarting", "stopped":
		return false
	}
	return true
}

// radioReloader restarts the stream when the radio's definition changes.
type radioReloader struct {
	sup    *supervisor.Supervisor
	name   string
	stop   context.CancelFunc
	logger *slog.Logger

	mu  sync.Mutex
	req supervisor.StreamRequest
}

func (r *radioReloader) apply(ctx context.Context, p *config.Platform) {
	radio, ok := findRadio(p, r.name)
	if !ok {
		r.logger.Warn("Radio removed from platform config, stopping")
		r.stop()
		return
	}
	next := radioRequest(radio)

	r.mu.Lock()
	defer r.mu.Unlock()
	if sameRequest(next, r.req) {
		r.logger.Debug("Platform reloaded, radio unchanged")
		return
	}
	r.logger.Info("Radio changed, restarting stream")
	r.req = next
	if err := r.sup.Play(ctx, next); err != nil {
		r.logger.Warn("Failed to restart stream", "error", err)
	}
}

// request resolves the target and stream request from a radio name or
// the explicit flags.
func (f *playFlags) request(radioName string) (string, supervisor.StreamRequest, error) {
	if radioName != "" {
		p, err := config.LoadPlatform(f.platformFile)
		if err != nil {
			return "", supervisor.StreamRequest{}, err
		}
		radio, ok := findRadio(p, radioName)
		if !ok {
			return "", supervisor.StreamRequest{}, fmt.Errorf("radio %q not found in %s", radioName, f.platformFile)
		}
		target := f.target
		if target == "" {
			target = p.TargetID
		}
		f.verbose = f.verbose || p.VerboseMode
		return target, radioRequest(radio), nil
	}

	if f.target == "" {
		return "", supervisor.StreamRequest{}, errors.New("--target is required without a radio name")
	}

	req := supervisor.StreamRequest{Title: f.title, Album: f.album}
	switch {
	case f.file != "" && f.url != "":
		return "", supervisor.StreamRequest{}, errors.New("--url and --file are mutually exclusive")
	case f.file != "":
		req.Kind = supervisor.SourceFile
		req.Source = f.file
	default:
		req.Kind = supervisor.SourceURL
		req.Source = f.url
	}
	if f.volume > 0 {
		req.Volume = supervisor.Int(f.volume)
	}
	return f.target, req, req.Validate()
}

func (f *playFlags) supervisor(target string, bus *events.Bus) (*supervisor.Supervisor, error) {
	cfg := supervisor.Config{
		Target:       target,
		Events:       bus,
		Verbose:      f.verbose,
		Logger:       logging.GetLogger("supervisor"),
		StreamLogger: logging.GetLogger("stream"),
	}
	if f.streamCommand != "" {
		command, err := process.ParseCommand(f.streamCommand)
		if err != nil {
			return nil, err
		}
		cfg.StreamCommand = command
	}
	return supervisor.New(cfg)
}

func findRadio(p *config.Platform, name string) (config.Radio, bool) {
	for _, r := range p.Radios {
		if r.Name == name {
			return r, true
		}
	}
	return config.Radio{}, false
}

func sameRequest(a, b supervisor.StreamRequest) bool {
	va, vb := 0, 0
	if a.Volume != nil {
		va = *a.Volume
	}
	if b.Volume != nil {
		vb = *b.Volume
	}
	a.Volume, b.Volume = nil, nil
	return a == b && va == vb
}

// radioRequest builds the request a radio plays. URL validation is left to
// the service; the foreground command streams the configured URL.
func radioRequest(r config.Radio) supervisor.StreamRequest {
	req := supervisor.StreamRequest{
		Kind:        supervisor.SourceURL,
		Source:      r.URL,
		Title:       r.TrackName,
		Album:       r.Name,
		MetadataURL: r.MetadataURL,
		ArtworkURL:  r.ArtworkURL,
	}
	if r.Volume > 0 {
		req.Volume = supervisor.Int(r.Volume)
	}
	return req
}
