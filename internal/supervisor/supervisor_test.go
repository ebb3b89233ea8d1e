package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/smazurov/airradio/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeController struct {
	mu         sync.Mutex
	title      string
	volume     string
	titleErr   error
	volumeErr  error
	setErr     error
	titleCalls int
	setCalls   []int
}

func (f *fakeController) Title(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.titleCalls++
	return f.title, f.titleErr
}

func (f *fakeController) Volume(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume, f.volumeErr
}

func (f *fakeController) SetVolume(_ context.Context, _ string, level int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls = append(f.setCalls, level)
	return f.setErr
}

func (f *fakeController) TitleCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.titleCalls
}

func (f *fakeController) SetTitle(title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.title = title
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestSupervisor runs script under sh as the stream executable. The
// heartbeat ticker is effectively disabled unless a test overrides it.
func newTestSupervisor(t *testing.T, script string, ctrl Controller, modify func(*Config)) *Supervisor {
	t.Helper()
	cfg := Config{
		Target:            "AA:BB:CC:DD:EE:FF",
		StreamCommand:     []string{"sh", "-c", script, "stream"},
		HeartbeatInterval: time.Hour,
		LastSeenThreshold: 5 * time.Second,
		RestartDelay:      time.Millisecond,
		KillTimeout:       2 * time.Second,
		Controller:        ctrl,
		Logger:            testLogger(),
	}
	if modify != nil {
		modify(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s
}

func urlRequest(source string) StreamRequest {
	return StreamRequest{Kind: SourceURL, Source: source, Title: "Radio", Album: "Test"}
}

// waitUntil polls cond until it is true, failing the test on timeout.
func waitUntil(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func alive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func TestNewRequiresTarget(t *testing.T) {
	_, err := New(Config{Logger: testLogger()})
	if !IsCode(err, ErrCodeConfigError) {
		t.Fatalf("expected CONFIG_ERROR, got %v", err)
	}
}

func TestNewDefaults(t *testing.T) {
	s, err := New(Config{Target: "AA", Controller: &fakeController{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.cfg.HeartbeatInterval != DefaultHeartbeatInterval || s.cfg.MaxRetries != DefaultMaxRetries {
		t.Errorf("defaults not applied: %+v", s.cfg)
	}
	if strings.Join(s.cfg.StreamCommand, " ") != "python3 bin/stream.py" {
		t.Errorf("unexpected default stream command %v", s.cfg.StreamCommand)
	}
	if s.cfg.PlaceholderTitle != "Streaming with pyatv" {
		t.Errorf("unexpected placeholder %q", s.cfg.PlaceholderTitle)
	}
}

func TestStopWithoutSession(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestSupervisor(t, "exec sleep 30", ctrl, nil)

	s.Stop(context.Background())
	s.Stop(context.Background())

	if s.IsPlaying() {
		t.Error("expected not playing")
	}
	if st := s.Status(); st.State != StateNoSession {
		t.Errorf("expected state %s, got %s", StateNoSession, st.State)
	}
	if ctrl.TitleCalls() != 0 || len(ctrl.setCalls) != 0 {
		t.Error("expected no control commands")
	}
}

func TestPlayAndStop(t *testing.T) {
	s := newTestSupervisor(t, "exec sleep 30", &fakeController{}, nil)

	if err := s.Play(context.Background(), urlRequest("http://a")); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !s.IsPlaying() {
		t.Fatal("expected playing after Play")
	}

	st := s.Status()
	if st.State != StateActive || st.PID <= 0 || st.Source != "http://a" || st.SessionID == "" {
		t.Fatalf("unexpected status %+v", st)
	}

	s.Stop(context.Background())
	if s.IsPlaying() {
		t.Error("expected not playing after Stop")
	}
	if alive(st.PID) {
		t.Errorf("expected pid %d to be gone after Stop", st.PID)
	}

	s.Stop(context.Background())
}

func TestStreamArgumentsPassed(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	s := newTestSupervisor(t, `echo "$@" > `+argsFile+`; exec sleep 30`, &fakeController{}, func(c *Config) {
		c.Verbose = true
	})

	req := StreamRequest{Kind: SourceFile, Source: "/media/bell.mp3", Title: "Bell", Album: "Files", Volume: Int(20)}
	if err := s.Play(context.Background(), req); err != nil {
		t.Fatalf("Play: %v", err)
	}

	var args string
	waitUntil(t, 2*time.Second, "args file", func() bool {
		data, err := os.ReadFile(argsFile)
		args = strings.TrimSpace(string(data))
		return err == nil && args != ""
	})

	want := "--id AA:BB:CC:DD:EE:FF --title Bell --album Files --file /media/bell.mp3 --stream_timeout 5 --volume 20 --verbose"
	if args != want {
		t.Errorf("unexpected args:\n got: %s\nwant: %s", args, want)
	}
}

func TestPlayReplacesSession(t *testing.T) {
	s := newTestSupervisor(t, "exec sleep 30", &fakeController{}, nil)

	if err := s.Play(context.Background(), urlRequest("http://a")); err != nil {
		t.Fatalf("Play A: %v", err)
	}
	first := s.current()

	if err := s.Play(context.Background(), urlRequest("http://b")); err != nil {
		t.Fatalf("Play B: %v", err)
	}

	if !first.handle.Exited() {
		t.Error("expected A's process to have exited before B started")
	}
	st := s.Status()
	if st.Source != "http://b" {
		t.Errorf("expected source http://b, got %s", st.Source)
	}
	if st.SessionID == first.id {
		t.Error("expected a new session id")
	}
}

func TestConcurrentPlayLeavesOneSession(t *testing.T) {
	bus := events.New()
	var mu sync.Mutex
	var pids []int
	defer bus.Subscribe(func(e events.SessionStartedEvent) {
		mu.Lock()
		pids = append(pids, e.PID)
		mu.Unlock()
	})()

	s := newTestSupervisor(t, "exec sleep 30", &fakeController{}, func(c *Config) {
		c.Events = bus
	})

	var wg sync.WaitGroup
	for _, src := range []string{"http://1", "http://2", "http://3", "http://4"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Play(context.Background(), urlRequest(src))
		}()
	}
	wg.Wait()

	current := s.Status().PID
	waitUntil(t, 2*time.Second, "four session events", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(pids) == 4
	})

	mu.Lock()
	defer mu.Unlock()
	for _, pid := range pids {
		if pid != current && alive(pid) {
			t.Errorf("replaced process %d still alive", pid)
		}
	}
	if !alive(current) {
		t.Errorf("current process %d not alive", current)
	}
}

func TestHeartbeatThreshold(t *testing.T) {
	tests := []struct {
		name        string
		advance     time.Duration
		wantHandler bool
	}{
		{"just over threshold", 5*time.Second + time.Millisecond, true},
		{"just under threshold", 5*time.Second - time.Millisecond, false},
		{"exactly threshold", 5 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			ctrl := &fakeController{title: "Radio"}
			s := newTestSupervisor(t, "exec sleep 30", ctrl, func(c *Config) {
				c.Now = clock.Now
			})

			if err := s.Play(context.Background(), urlRequest("http://a")); err != nil {
				t.Fatalf("Play: %v", err)
			}
			sess := s.current()

			clock.Advance(tt.advance)
			s.signal(sess, signalHeartbeat)

			if got := ctrl.TitleCalls() > 0; got != tt.wantHandler {
				t.Errorf("failure handler invoked = %v, want %v", got, tt.wantHandler)
			}
		})
	}
}

func TestActivityResetsWatchdog(t *testing.T) {
	clock := newFakeClock()
	s := newTestSupervisor(t, "exec sleep 30", &fakeController{}, func(c *Config) {
		c.Now = clock.Now
	})

	if err := s.Play(context.Background(), urlRequest("http://a")); err != nil {
		t.Fatalf("Play: %v", err)
	}
	sess := s.current()

	s.mu.Lock()
	sess.retryCount = 3
	s.mu.Unlock()

	clock.Advance(time.Minute)
	s.signal(sess, signalActivity)

	st := s.Status()
	if st.RetryCount != 0 {
		t.Errorf("expected retry count reset, got %d", st.RetryCount)
	}
	if !st.LastSeenAt.Equal(clock.Now()) {
		t.Errorf("expected lastSeenAt %v, got %v", clock.Now(), st.LastSeenAt)
	}
}

func TestOutputCountsAsActivity(t *testing.T) {
	clock := newFakeClock()
	s := newTestSupervisor(t, "while :; do echo tick; sleep 0.05; done", &fakeController{}, func(c *Config) {
		c.Now = clock.Now
	})

	if err := s.Play(context.Background(), urlRequest("http://a")); err != nil {
		t.Fatalf("Play: %v", err)
	}
	started := s.Status().LastSeenAt

	clock.Advance(time.Second)
	waitUntil(t, 2*time.Second, "output activity", func() bool {
		return s.Status().LastSeenAt.After(started)
	})
}

func TestHeartbeatFailureTakenOver(t *testing.T) {
	clock := newFakeClock()
	ctrl := &fakeController{title: "Someone Else's Song"}
	s := newTestSupervisor(t, "exec sleep 30", ctrl, func(c *Config) {
		c.Now = clock.Now
	})

	if err := s.Play(context.Background(), urlRequest("http://a")); err != nil {
		t.Fatalf("Play: %v", err)
	}
	sess := s.current()

	clock.Advance(10 * time.Second)
	s.signal(sess, signalHeartbeat)

	if s.IsPlaying() {
		t.Error("expected session ended when target plays something else")
	}
	if !sess.handle.Exited() {
		t.Error("expected process killed")
	}
}

func TestHeartbeatFailureSchedulesRestart(t *testing.T) {
	clock := newFakeClock()
	ctrl := &fakeController{title: DefaultPlaceholderTitle}
	s := newTestSupervisor(t, "exec sleep 30", ctrl, func(c *Config) {
		c.Now = clock.Now
	})

	if err := s.Play(context.Background(), urlRequest("http://a")); err != nil {
		t.Fatalf("Play: %v", err)
	}
	first := s.current()

	clock.Advance(10 * time.Second)
	s.signal(first, signalHeartbeat)

	waitUntil(t, 2*time.Second, "restarted session", func() bool {
		st := s.Status()
		return st.SessionID != "" && st.SessionID != first.id
	})

	st := s.Status()
	if st.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", st.RetryCount)
	}
	if st.Source != "http://a" {
		t.Errorf("expected same request, got %s", st.Source)
	}
	if !first.handle.Exited() {
		t.Error("expected stalled process killed")
	}
}

func TestRetryBound(t *testing.T) {
	dir := t.TempDir()
	countFile := filepath.Join(dir, "starts")
	ctrl := &fakeController{}

	s := newTestSupervisor(t, "echo started >> "+countFile+"; exec sleep 30", ctrl, func(c *Config) {
		c.HeartbeatInterval = 20 * time.Millisecond
		c.LastSeenThreshold = 10 * time.Millisecond
		c.RestartDelay = time.Millisecond
		c.MaxRetries = 3
	})

	if err := s.Play(context.Background(), urlRequest("http://a")); err != nil {
		t.Fatalf("Play: %v", err)
	}

	waitUntil(t, 5*time.Second, "session to end", func() bool {
		return !s.IsPlaying()
	})
	time.Sleep(200 * time.Millisecond)

	if s.IsPlaying() {
		t.Fatal("expected no further restart after retries exhausted")
	}

	data, err := os.ReadFile(countFile)
	if err != nil {
		t.Fatalf("read count file: %v", err)
	}
	if starts := strings.Count(string(data), "started"); starts != 4 {
		t.Errorf("expected 4 starts (1 + 3 retries), got %d", starts)
	}
}

func TestOwnTitleStallIsBounded(t *testing.T) {
	clock := newFakeClock()
	ctrl := &fakeController{title: "Test - Radio"}
	s := newTestSupervisor(t, "exec sleep 30", ctrl, func(c *Config) {
		c.Now = clock.Now
		c.MaxRetries = 3
	})

	if err := s.Play(context.Background(), urlRequest("http://a")); err != nil {
		t.Fatalf("Play: %v", err)
	}

	failures := 0
	for i := 0; i < 20; i++ {
		sess := s.current()
		if sess == nil {
			break
		}
		clock.Advance(10 * time.Second)
		s.signal(sess, signalHeartbeat)
		failures++
		waitUntil(t, 2*time.Second, "session replaced or ended", func() bool {
			return s.current() != sess
		})
	}

	if s.IsPlaying() {
		t.Fatal("expected stalled session to end once retries are exhausted")
	}
	if failures != 4 {
		t.Errorf("expected 4 heartbeat failures (3 restarts + final), got %d", failures)
	}
	if calls := ctrl.TitleCalls(); calls != 4 {
		t.Errorf("expected 4 title queries, got %d", calls)
	}
}

func TestStaleHeartbeatIgnored(t *testing.T) {
	clock := newFakeClock()
	ctrl := &fakeController{}
	s := newTestSupervisor(t, "exec sleep 30", ctrl, func(c *Config) {
		c.Now = clock.Now
	})

	if err := s.Play(context.Background(), urlRequest("http://a")); err != nil {
		t.Fatalf("Play: %v", err)
	}
	sess := s.current()
	s.Stop(context.Background())

	clock.Advance(time.Minute)
	s.signal(sess, signalHeartbeat)

	if ctrl.TitleCalls() != 0 {
		t.Error("expected stale heartbeat to be ignored")
	}
	select {
	case <-sess.stop:
	default:
		t.Error("expected stale session heartbeat to be cancelled")
	}
}

func TestProcessExitEndsSession(t *testing.T) {
	s := newTestSupervisor(t, "exit 0", &fakeController{}, nil)

	if err := s.Play(context.Background(), urlRequest("http://a")); err != nil {
		t.Fatalf("Play: %v", err)
	}

	waitUntil(t, 2*time.Second, "session end after exit", func() bool {
		return !s.IsPlaying()
	})
}

func TestSpawnFailure(t *testing.T) {
	s := newTestSupervisor(t, "", &fakeController{}, func(c *Config) {
		c.StreamCommand = []string{"/nonexistent/stream/executable"}
	})

	if err := s.Play(context.Background(), urlRequest("http://a")); err != nil {
		t.Fatalf("expected nil error for spawn failure, got %v", err)
	}
	if s.IsPlaying() {
		t.Error("expected not playing after spawn failure")
	}
	if st := s.Status(); st.State != StateNoSession {
		t.Errorf("expected state %s, got %s", StateNoSession, st.State)
	}
}

func TestPlayInvalidRequest(t *testing.T) {
	s := newTestSupervisor(t, "exec sleep 30", &fakeController{}, nil)

	err := s.Play(context.Background(), StreamRequest{Kind: SourceURL})
	if !IsCode(err, ErrCodeInvalidParams) {
		t.Errorf("expected INVALID_PARAMS, got %v", err)
	}
	if s.IsPlaying() {
		t.Error("expected not playing")
	}
}

func TestPlayInitialVolume(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestSupervisor(t, "exec sleep 30", ctrl, nil)

	req := urlRequest("http://a")
	req.Volume = Int(40)
	if err := s.Play(context.Background(), req); err != nil {
		t.Fatalf("Play: %v", err)
	}

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if len(ctrl.setCalls) != 1 || ctrl.setCalls[0] != 40 {
		t.Errorf("expected one set_volume=40, got %v", ctrl.setCalls)
	}
}

func TestPlayInitialVolumeFailure(t *testing.T) {
	ctrl := &fakeController{setErr: errors.New("device unreachable")}
	s := newTestSupervisor(t, "exec sleep 30", ctrl, nil)

	req := urlRequest("http://a")
	req.Volume = Int(40)
	err := s.Play(context.Background(), req)
	if !IsCode(err, ErrCodeVolumeFailed) {
		t.Fatalf("expected VOLUME_FAILED, got %v", err)
	}
	if !s.IsPlaying() {
		t.Error("expected session to stay active after volume failure")
	}
}

func TestVolume(t *testing.T) {
	tests := []struct {
		name   string
		output string
		err    error
		want   float64
	}{
		{"numeric", "35.5", nil, 35.5},
		{"padded", " 20\n", nil, 20},
		{"non-numeric", "Volume: unknown", nil, 0},
		{"empty", "", nil, 0},
		{"command failure", "", errors.New("exit 1"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSupervisor(t, "", &fakeController{volume: tt.output, volumeErr: tt.err}, nil)
			if got := s.Volume(context.Background()); got != tt.want {
				t.Errorf("Volume() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetVolumeRange(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestSupervisor(t, "", ctrl, nil)

	if err := s.SetVolume(context.Background(), 101); !IsCode(err, ErrCodeInvalidParams) {
		t.Errorf("expected INVALID_PARAMS for 101, got %v", err)
	}
	if err := s.SetVolume(context.Background(), 75); err != nil {
		t.Errorf("SetVolume(75): %v", err)
	}
	if len(ctrl.setCalls) != 1 {
		t.Errorf("expected one command, got %v", ctrl.setCalls)
	}
}

func TestPlaybackTitle(t *testing.T) {
	s := newTestSupervisor(t, "", &fakeController{title: "  Radio BBC\n"}, nil)
	if got := s.PlaybackTitle(context.Background()); got != "Radio BBC" {
		t.Errorf("expected trimmed title, got %q", got)
	}

	s = newTestSupervisor(t, "", &fakeController{title: "partial", titleErr: errors.New("timeout")}, nil)
	if got := s.PlaybackTitle(context.Background()); got != "" {
		t.Errorf("expected empty title on failure, got %q", got)
	}
}

func TestOwnTitle(t *testing.T) {
	req := StreamRequest{Title: "Radio", Album: "BBC"}
	tests := map[string]bool{
		"Radio":                true,
		"BBC - Radio":          true,
		"":                     false,
		"Streaming with pyatv": false,
		"Other":                false,
	}
	for title, want := range tests {
		if got := ownTitle(title, req); got != want {
			t.Errorf("ownTitle(%q) = %v, want %v", title, got, want)
		}
	}
}
