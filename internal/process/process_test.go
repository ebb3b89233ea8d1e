package process

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startShell starts `sh -c script` and fails the test on error.
func startShell(t *testing.T, script string, output OutputHandler) *Handle {
	t.Helper()
	h, err := Start([]string{"sh", "-c", script}, Options{ID: "test", Logger: testLogger(), Output: output})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = h.Kill() })
	return h
}

// waitDone waits for the handle to exit, fails test on timeout.
func waitDone(t *testing.T, h *Handle, timeout time.Duration) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
	}
}

type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCollector) HandleLine(_, line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

func (c *lineCollector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func TestKillTerminatesProcessIgnoringSignals(t *testing.T) {
	h := startShell(t, `trap '' INT TERM; while :; do sleep 0.1; done`, nil)

	if err := h.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	waitDone(t, h, 2*time.Second)

	if code := h.ExitCode(); code != -1 {
		t.Errorf("expected exit code -1 for killed process, got %d", code)
	}
}

func TestKillReachesProcessGroup(t *testing.T) {
	c := &lineCollector{}
	// The background sleep inherits the pipes; Done only closes once it dies too.
	h := startShell(t, `sleep 30 & echo $!; wait`, c)

	deadline := time.Now().Add(2 * time.Second)
	for len(c.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(c.snapshot()) == 0 {
		t.Fatal("child pid was never printed")
	}

	if err := h.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	waitDone(t, h, 2*time.Second)
}

func TestKillIsIdempotent(t *testing.T) {
	h := startShell(t, "sleep 10", nil)

	for i := 0; i < 3; i++ {
		if err := h.Kill(); err != nil {
			t.Fatalf("Kill #%d: %v", i+1, err)
		}
	}
	waitDone(t, h, 2*time.Second)

	if err := h.Kill(); err != nil {
		t.Errorf("Kill after exit: %v", err)
	}
}

func TestKillAfterNaturalExit(t *testing.T) {
	h := startShell(t, "true", nil)
	waitDone(t, h, 2*time.Second)

	if err := h.Kill(); err != nil {
		t.Errorf("expected nil error killing exited process, got %v", err)
	}
	if code := h.ExitCode(); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestExitCode(t *testing.T) {
	h := startShell(t, "exit 42", nil)
	waitDone(t, h, 2*time.Second)

	if code := h.ExitCode(); code != 42 {
		t.Errorf("expected exit code 42, got %d", code)
	}
	if h.Err() == nil {
		t.Error("expected non-nil Err for non-zero exit")
	}
}

func TestExited(t *testing.T) {
	h := startShell(t, "sleep 10", nil)
	if h.Exited() {
		t.Error("expected running process to report not exited")
	}
	if h.PID() <= 0 {
		t.Errorf("expected positive pid, got %d", h.PID())
	}

	_ = h.Kill()
	waitDone(t, h, 2*time.Second)

	if !h.Exited() {
		t.Error("expected killed process to report exited")
	}
}

func TestStartNonExistentCommand(t *testing.T) {
	_, err := Start([]string{"/nonexistent/command/that/does/not/exist"}, Options{Logger: testLogger()})
	if err == nil {
		t.Fatal("expected error for non-existent command")
	}
}

func TestStartEmptyCommand(t *testing.T) {
	if _, err := Start(nil, Options{Logger: testLogger()}); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestOutputHandler(t *testing.T) {
	c := &lineCollector{}
	h := startShell(t, "echo line1; echo line2 >&2", c)
	waitDone(t, h, 2*time.Second)

	lines := c.snapshot()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lines)
	}
	got := strings.Join(lines, ",")
	if !strings.Contains(got, "line1") || !strings.Contains(got, "line2") {
		t.Errorf("expected line1 and line2, got %v", lines)
	}
}

func TestOutputHandlerFunc(t *testing.T) {
	var mu sync.Mutex
	sources := map[string]bool{}
	h := startShell(t, "echo out; echo err >&2", OutputHandlerFunc(func(source, _ string) {
		mu.Lock()
		defer mu.Unlock()
		sources[source] = true
	}))
	waitDone(t, h, 2*time.Second)

	mu.Lock()
	defer mu.Unlock()
	if !sources["stdout"] || !sources["stderr"] {
		t.Errorf("expected both stdout and stderr sources, got %v", sources)
	}
}

func TestStreamOutputLogLevels(t *testing.T) {
	parser := func(line string) (string, string) {
		if strings.HasPrefix(line, "[") {
			end := strings.Index(line, "]")
			return line[1:end], strings.TrimSpace(line[end+1:])
		}
		return "info", line
	}
	script := `echo "[error] error message"; echo "[warning] warn message"; echo "[debug] debug message"; echo "plain message"`
	h, err := Start([]string{"sh", "-c", script}, Options{ID: "levels", Logger: testLogger(), LogParser: parser})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, h, 2*time.Second)
}

func TestOutputCommand(t *testing.T) {
	out, err := Output(context.Background(), []string{"sh", "-c", "echo '  0.45  '"}, testLogger())
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if out != "0.45" {
		t.Errorf("expected trimmed output %q, got %q", "0.45", out)
	}
}

func TestOutputCommandFailure(t *testing.T) {
	_, err := Output(context.Background(), []string{"sh", "-c", "echo boom >&2; exit 3"}, testLogger())
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected stderr in error, got %v", err)
	}
}

func TestOutputCommandContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := Output(ctx, []string{"sleep", "10"}, testLogger()); err == nil {
		t.Fatal("expected error when context expires")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected Output to return promptly, took %v", elapsed)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input   string
		want    []string
		wantErr bool
	}{
		{input: "python3 bin/stream.py", want: []string{"python3", "bin/stream.py"}},
		{input: `sh -c "echo hi"`, want: []string{"sh", "-c", "echo hi"}},
		{input: `echo 'it"s'`, want: []string{"echo", `it"s`}},
		{input: `echo hello\ world`, want: []string{"echo", "hello world"}},
		{input: "  atvremote  ", want: []string{"atvremote"}},
		{input: `echo "unclosed`, wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCommand(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("ParseCommand(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExitCodeFromError(t *testing.T) {
	if code := exitCodeFromError(nil); code != 0 {
		t.Errorf("expected 0 for nil error, got %d", code)
	}
	if code := exitCodeFromError(syscall.EINVAL); code != 1 {
		t.Errorf("expected 1 for generic error, got %d", code)
	}
}
