package streamers

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/smazurov/airradio/internal/playback"
	"github.com/smazurov/airradio/internal/supervisor"
)

// WebActionsName is the registry name of the web action streamer.
const WebActionsName = "PlatformWebActions"

// Result is the outcome of a web action. Error results map to HTTP 500.
type Result struct {
	Error   bool   `json:"error" doc:"Whether the action was rejected"`
	Message string `json:"message" example:"Started playing file: /media/bell.mp3" doc:"Human readable outcome"`
}

type actionKind int

const (
	actionUnsupported actionKind = iota
	actionPlayFile
	actionPlayURL
)

type action struct {
	kind actionKind
	data string
}

// WebActions plays files or URLs requested over HTTP:
//
//	/play/<file>        file inside the media path
//	/playUrl/<base64>   base64 encoded stream URL
type WebActions struct {
	mediaPath string
	device    Device
	deps      Deps
	logger    *slog.Logger
}

// NewWebActions creates the web action streamer.
func NewWebActions(mediaPath string, device Device, deps Deps) *WebActions {
	return &WebActions{
		mediaPath: mediaPath,
		device:    device,
		deps:      deps,
		logger:    deps.logger().With("streamer", WebActionsName),
	}
}

// Handle runs the action encoded in uri.
func (w *WebActions) Handle(ctx context.Context, uri string) Result {
	w.logger.Info("Received request", "uri", uri)
	act := w.parse(uri)

	switch act.kind {
	case actionPlayFile:
		if !fileExists(act.data) {
			return Result{Message: "File does not exist: " + act.data}
		}
		message := "Started playing file: " + act.data
		w.logger.Info(message)
		return w.play(ctx, supervisor.StreamRequest{
			Kind:   supervisor.SourceFile,
			Source: act.data,
			Title:  filepath.Base(act.data),
		}, message)

	case actionPlayURL:
		message := "Started playing url: " + act.data
		w.logger.Info(message)
		return w.play(ctx, supervisor.StreamRequest{
			Kind:   supervisor.SourceURL,
			Source: act.data,
			Title:  act.data,
		}, message)

	default:
		return Result{Error: true, Message: act.data}
	}
}

func (w *WebActions) play(ctx context.Context, req supervisor.StreamRequest, message string) Result {
	w.deps.requestStop(ctx, w)
	if err := w.device.Play(ctx, req); err != nil {
		return Result{Error: true, Message: err.Error()}
	}
	playing := w.device.IsPlaying()
	w.deps.publishState(WebActionsName, playing)
	if !playing {
		return Result{Error: true, Message: ErrNotStarted.Error()}
	}
	return Result{Message: message}
}

func (w *WebActions) parse(uri string) action {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}
	parts := strings.Split(uri, "/")
	if len(parts) < 3 {
		return action{kind: actionUnsupported, data: "Unsupported request"}
	}

	rest := strings.Join(parts[2:], "/")

	switch parts[1] {
	case "play":
		name := rest
		if !filepath.IsLocal(name) {
			return action{kind: actionUnsupported, data: fmt.Sprintf("Invalid file name: %s", name)}
		}
		return action{kind: actionPlayFile, data: filepath.Join(w.mediaPath, name)}
	case "playUrl":
		url, err := decodeBase64(rest)
		if err != nil {
			return action{kind: actionUnsupported, data: "Invalid url encoding"}
		}
		return action{kind: actionPlayURL, data: url}
	}
	return action{kind: actionUnsupported, data: "Unsupported request"}
}

// decodeBase64 accepts standard and URL-safe alphabets, padded or not.
func decodeBase64(s string) (string, error) {
	var lastErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return string(b), nil
		}
		lastErr = err
	}
	return "", lastErr
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (w *WebActions) StreamerName() string {
	return WebActionsName
}

func (w *WebActions) IsPlaying() bool {
	return w.device.IsPlaying()
}

func (w *WebActions) StartPlaying(context.Context) error {
	return nil
}

func (w *WebActions) StopPlaying(ctx context.Context) error {
	w.device.Stop(ctx)
	w.deps.publishState(WebActionsName, false)
	return nil
}

// StopRequested is ignored: a web action plays to completion.
func (w *WebActions) StopRequested(context.Context, playback.Streamer) error {
	return nil
}

func (w *WebActions) ShutdownRequested(context.Context) error {
	return nil
}

func (w *WebActions) PlatformLaunched(context.Context) error {
	return nil
}

func (w *WebActions) VolumeUpdated(context.Context, string, int) error {
	return nil
}
