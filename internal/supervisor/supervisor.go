package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/airradio/internal/airplay"
	"github.com/smazurov/airradio/internal/events"
	"github.com/smazurov/airradio/internal/process"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultLastSeenThreshold = 5 * time.Second
	DefaultRestartDelay      = 500 * time.Millisecond
	DefaultMaxRetries        = 5
	DefaultPlaceholderTitle  = "Streaming with pyatv"
	DefaultKillTimeout       = 5 * time.Second
)

// Controller runs out-of-band commands against a target.
// *airplay.Remote is the production implementation.
type Controller interface {
	Title(ctx context.Context, target string) (string, error)
	Volume(ctx context.Context, target string) (string, error)
	SetVolume(ctx context.Context, target string, level int) error
}

// Config configures a Supervisor.
type Config struct {
	// Target is the AirPlay device identifier. Required.
	Target string

	// StreamCommand is the streaming executable and its leading arguments.
	// Empty means airplay.DefaultStreamCommand.
	StreamCommand []string

	// StreamTimeout is the upstream timeout in seconds passed to the executable.
	StreamTimeout int

	// Verbose passes --verbose to the executable.
	Verbose bool

	HeartbeatInterval time.Duration
	LastSeenThreshold time.Duration
	RestartDelay      time.Duration

	// MaxRetries bounds consecutive restarts without activity (0 = default).
	MaxRetries int

	// PlaceholderTitle is what the target reports while the streaming tool
	// holds it without metadata.
	PlaceholderTitle string

	// KillTimeout bounds the wait for a killed process to exit.
	KillTimeout time.Duration

	// Controller runs title/volume commands. Nil uses atvremote.
	Controller Controller

	Events       *events.Bus
	Logger       *slog.Logger
	StreamLogger *slog.Logger

	// Now is the clock used by the watchdog (nil = time.Now).
	Now func() time.Time
}

// State is the supervisor's session state.
type State string

// Session states.
const (
	StateNoSession State = "no_session"
	StateStarting  State = "starting"
	StateActive    State = "active"
	StateEnding    State = "ending"
)

// Status is a snapshot of a supervisor.
type Status struct {
	Target     string
	State      State
	SessionID  string
	PID        int
	Kind       SourceKind
	Source     string
	Title      string
	RetryCount int
	StartedAt  time.Time
	LastSeenAt time.Time
}

// Supervisor owns the stream process for one target.
type Supervisor struct {
	cfg          Config
	logger       *slog.Logger
	streamLogger *slog.Logger
	now          func() time.Time

	// opMu serializes session transitions: play, stop, restart, exit and
	// heartbeat failure handling.
	opMu sync.Mutex

	// mu guards state, session and the session's watchdog fields.
	mu      sync.Mutex
	state   State
	session *session
}

// New creates a supervisor for cfg.Target.
func New(cfg Config) (*Supervisor, error) {
	if strings.TrimSpace(cfg.Target) == "" {
		return nil, NewError(ErrCodeConfigError, "target id is required", nil)
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.StreamLogger == nil {
		cfg.StreamLogger = cfg.Logger
	}
	if len(cfg.StreamCommand) == 0 {
		command, err := process.ParseCommand(airplay.DefaultStreamCommand)
		if err != nil {
			return nil, NewError(ErrCodeConfigError, "invalid stream command", err)
		}
		cfg.StreamCommand = command
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = airplay.DefaultStreamTimeout
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.LastSeenThreshold <= 0 {
		cfg.LastSeenThreshold = DefaultLastSeenThreshold
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.PlaceholderTitle == "" {
		cfg.PlaceholderTitle = DefaultPlaceholderTitle
	}
	if cfg.KillTimeout <= 0 {
		cfg.KillTimeout = DefaultKillTimeout
	}
	if cfg.Controller == nil {
		remote, err := airplay.NewRemote("", 0, cfg.Logger)
		if err != nil {
			return nil, NewError(ErrCodeConfigError, "invalid control command", err)
		}
		cfg.Controller = remote
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Supervisor{
		cfg:          cfg,
		logger:       cfg.Logger.With("target", cfg.Target),
		streamLogger: cfg.StreamLogger.With("target", cfg.Target),
		now:          cfg.Now,
		state:        StateNoSession,
	}, nil
}

// Target returns the target identifier.
func (s *Supervisor) Target() string {
	return s.cfg.Target
}

// IsPlaying reports whether a session is held. It never waits on a transition.
func (s *Supervisor) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// Status returns a snapshot of the current session.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Target: s.cfg.Target, State: s.state}
	if sess := s.session; sess != nil {
		st.SessionID = sess.id
		st.PID = sess.handle.PID()
		st.Kind = sess.req.Kind
		st.Source = sess.req.Source
		st.Title = sess.req.Title
		st.RetryCount = sess.retryCount
		st.StartedAt = sess.startedAt
		st.LastSeenAt = sess.lastSeenAt
	}
	return st
}

// Play ends any active session and starts a new one for req. A spawn failure
// is logged and leaves the supervisor idle with a nil error. The only error
// after validation is a failed initial volume command.
func (s *Supervisor) Play(ctx context.Context, req StreamRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if prev := s.current(); prev != nil {
		s.logger.Info("Replacing active session", "session", prev.id, "previous", prev.req.Source, "next", req.Source)
		s.endSession(ctx, prev, "replaced")
	}

	if s.startSession(req, 0) == nil {
		return nil
	}

	if req.Volume != nil {
		return s.SetVolume(ctx, *req.Volume)
	}
	return nil
}

// Stop ends the active session. Without one it only logs.
func (s *Supervisor) Stop(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	sess := s.current()
	if sess == nil {
		s.logger.Debug("Stop requested with no active session")
		return
	}
	s.endSession(ctx, sess, "stopped")
}

// SetVolume sets the target volume (0-100).
func (s *Supervisor) SetVolume(ctx context.Context, level int) error {
	if level < 0 || level > 100 {
		return NewError(ErrCodeInvalidParams, fmt.Sprintf("volume %d out of range 0-100", level), nil)
	}

	if err := s.cfg.Controller.SetVolume(ctx, s.cfg.Target, level); err != nil {
		s.logger.Error("Failed to set volume", "level", level, "error", err)
		return NewError(ErrCodeVolumeFailed, fmt.Sprintf("set volume to %d", level), err)
	}

	s.logger.Debug("Volume set", "level", level)
	s.cfg.Events.Publish(events.VolumeChangedEvent{
		Target:    s.cfg.Target,
		Level:     level,
		Timestamp: s.now().Format(time.RFC3339),
	})
	return nil
}

// Volume returns the target volume, or 0 when it cannot be read or parsed.
func (s *Supervisor) Volume(ctx context.Context) float64 {
	out, err := s.cfg.Controller.Volume(ctx, s.cfg.Target)
	if err != nil {
		s.logger.Warn("Failed to read volume", "error", err)
		return 0
	}

	volume, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		s.logger.Warn("Volume output is not a number", "output", out)
		return 0
	}
	return volume
}

// PlaybackTitle returns the title the target reports, or "" on failure.
func (s *Supervisor) PlaybackTitle(ctx context.Context) string {
	title, err := s.cfg.Controller.Title(ctx, s.cfg.Target)
	if err != nil {
		s.logger.Warn("Failed to read playback title", "error", err)
		return ""
	}
	return strings.TrimSpace(title)
}

func (s *Supervisor) current() *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *Supervisor) isCurrent(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session == sess
}

// startSession spawns the stream process and arms the watchdog.
// Caller holds opMu. Returns nil when the process could not be started.
func (s *Supervisor) startSession(req StreamRequest, retryCount int) *session {
	sess := newSession(uuid.NewString(), req, retryCount)

	s.mu.Lock()
	s.state = StateStarting
	s.mu.Unlock()

	args := airplay.StreamArgs{
		Target:      s.cfg.Target,
		Title:       req.Title,
		Album:       req.Album,
		Timeout:     s.cfg.StreamTimeout,
		MetadataURL: req.MetadataURL,
		ArtworkURL:  req.ArtworkURL,
		Verbose:     s.cfg.Verbose,
	}
	if req.Kind == SourceFile {
		args.File = req.Source
	} else {
		args.URL = req.Source
	}
	if req.Volume != nil {
		args.Volume = *req.Volume
	}

	handle, err := process.Start(args.Args(s.cfg.StreamCommand), process.Options{
		ID:            sess.id,
		Logger:        s.logger,
		ProcessLogger: s.streamLogger,
		LogParser:     airplay.ParseLogLine,
		Output: process.OutputHandlerFunc(func(_, _ string) {
			s.signal(sess, signalActivity)
		}),
	})
	if err != nil {
		s.logger.Error("Failed to start stream process", "source", req.Source, "error", err)
		s.mu.Lock()
		s.state = StateNoSession
		s.mu.Unlock()
		return nil
	}

	now := s.now()
	s.mu.Lock()
	sess.handle = handle
	sess.startedAt = now
	sess.lastSeenAt = now
	s.session = sess
	s.state = StateActive
	s.mu.Unlock()

	go s.watchExit(sess)
	go s.runHeartbeat(sess)

	s.logger.Info("Session started", "session", sess.id, "pid", handle.PID(), "source", req.Source, "attempt", retryCount)
	s.cfg.Events.Publish(events.SessionStartedEvent{
		Target:    s.cfg.Target,
		SessionID: sess.id,
		PID:       handle.PID(),
		Source:    req.Source,
		Title:     req.Title,
		Attempt:   retryCount,
		Timestamp: now.Format(time.RFC3339),
	})
	return sess
}

// endSession stops the watchdog, kills the process group and clears the
// session. Caller holds opMu. Ending a session that is not current is a no-op.
func (s *Supervisor) endSession(ctx context.Context, sess *session, reason string) {
	s.mu.Lock()
	if sess == nil || s.session != sess {
		s.mu.Unlock()
		return
	}
	s.state = StateEnding
	if sess.restartTimer != nil {
		sess.restartTimer.Stop()
	}
	s.mu.Unlock()

	sess.cancelHeartbeat()

	if err := sess.handle.Kill(); err != nil {
		s.logger.Warn("Failed to kill stream process", "session", sess.id, "error", err)
	}

	timer := time.NewTimer(s.cfg.KillTimeout)
	defer timer.Stop()
	select {
	case <-sess.handle.Done():
	case <-timer.C:
		s.logger.Error("Stream process did not exit after kill", "session", sess.id, "pid", sess.handle.PID())
	case <-ctx.Done():
		s.logger.Warn("Stopped waiting for stream process exit", "session", sess.id, "error", ctx.Err())
	}

	s.mu.Lock()
	s.session = nil
	s.state = StateNoSession
	s.mu.Unlock()

	s.logger.Info("Session ended", "session", sess.id, "reason", reason)
	s.cfg.Events.Publish(events.SessionEndedEvent{
		Target:    s.cfg.Target,
		SessionID: sess.id,
		Reason:    reason,
		Timestamp: s.now().Format(time.RFC3339),
	})
}

// watchExit ends the session when its process exits on its own.
func (s *Supervisor) watchExit(sess *session) {
	<-sess.handle.Done()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if !s.isCurrent(sess) {
		return
	}
	s.logger.Warn("Stream process exited", "session", sess.id, "exit_code", sess.handle.ExitCode())
	s.endSession(context.Background(), sess, "exited")
}
