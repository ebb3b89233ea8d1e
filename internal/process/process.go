package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
)

// OutputHandler receives output lines from the subprocess.
type OutputHandler interface {
	HandleLine(source, line string)
}

// OutputHandlerFunc adapts a function to OutputHandler.
type OutputHandlerFunc func(source, line string)

// HandleLine calls f(source, line).
func (f OutputHandlerFunc) HandleLine(source, line string) {
	f(source, line)
}

// LogParser parses a log line and returns the log level and message.
// Used to extract structured log info from process output (pyatv, ffmpeg).
type LogParser func(line string) (level, msg string)

// Options configures a Handle.
type Options struct {
	// ID is attached to log lines (typically the target or streamer name).
	ID string

	// Logger for lifecycle messages. If nil, uses slog.Default().
	Logger *slog.Logger

	// ProcessLogger receives the child's output lines (nil = Logger).
	ProcessLogger *slog.Logger

	// LogParser extracts a level from each output line (nil = info).
	LogParser LogParser

	// Output receives every stdout/stderr line (optional).
	Output OutputHandler
}

// Handle owns one running child process.
type Handle struct {
	id            string
	args          []string
	cmd           *exec.Cmd
	logger        *slog.Logger
	processLogger *slog.Logger
	logParser     LogParser
	outputHandler OutputHandler

	done     chan struct{}
	exitCode int
	exitErr  error

	killOnce sync.Once
	killErr  error
}

// Start spawns args[0] with args[1:] in a new process group and begins
// streaming its output. The returned handle is live until Done is closed.
func Start(args []string, opts Options) (*Handle, error) {
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handle{
		id:            opts.ID,
		args:          args,
		logger:        logger,
		processLogger: opts.ProcessLogger,
		logParser:     opts.LogParser,
		outputHandler: opts.Output,
		done:          make(chan struct{}),
	}

	h.cmd = exec.Command(args[0], args[1:]...)
	h.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := h.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	stderr, err := h.cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := h.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", args[0], err)
	}

	h.logger.Info("Process started", "id", h.id, "pid", h.cmd.Process.Pid, "command", args[0])

	var outputs sync.WaitGroup
	outputs.Add(2)
	go func() {
		defer outputs.Done()
		h.streamOutput(stdout, "stdout")
	}()
	go func() {
		defer outputs.Done()
		h.streamOutput(stderr, "stderr")
	}()

	// Wait must not run before the pipes are drained.
	go func() {
		outputs.Wait()
		h.exitErr = h.cmd.Wait()
		h.exitCode = exitCodeFromError(h.exitErr)
		if h.exitErr != nil && h.exitCode == 1 {
			h.logger.Error("Process exited with error", "id", h.id, "error", h.exitErr)
		}
		h.logger.Info("Process exited", "id", h.id, "pid", h.cmd.Process.Pid, "exit_code", h.exitCode)
		close(h.done)
	}()

	return h, nil
}

// PID returns the OS process id of the child.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// Done is closed once the child has exited and its output is drained.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited reports whether Done is closed.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit code. Only meaningful after Done is closed.
// A child terminated by a signal reports -1.
func (h *Handle) ExitCode() int {
	<-h.done
	return h.exitCode
}

// Err returns the error from Wait. Only meaningful after Done is closed.
func (h *Handle) Err() error {
	<-h.done
	return h.exitErr
}

// Kill sends SIGKILL to the child's process group. Calling Kill more than
// once, or after the child exited on its own, is a no-op.
func (h *Handle) Kill() error {
	if h.Exited() {
		return nil
	}
	h.killOnce.Do(func() {
		pid := h.cmd.Process.Pid
		h.logger.Info("Killing process group", "id", h.id, "pid", pid)
		err := syscall.Kill(-pid, syscall.SIGKILL)
		if err != nil && !errors.Is(err, syscall.ESRCH) {
			// Fall back to the leader alone.
			if killErr := h.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
				h.killErr = fmt.Errorf("kill pid %d: %w", pid, errors.Join(err, killErr))
			}
		}
	})
	return h.killErr
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// streamOutput forwards output lines to the output handler and the process logger.
func (h *Handle) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)

	logger := h.processLogger
	if logger == nil {
		logger = h.logger
	}

	for scanner.Scan() {
		line := scanner.Text()

		if h.outputHandler != nil {
			h.outputHandler.HandleLine(source, line)
		}

		level, msg := "info", line
		if h.logParser != nil {
			level, msg = h.logParser(line)
		}

		switch level {
		case "fatal", "error", "critical":
			logger.Error(msg, "id", h.id)
		case "warning", "warn":
			logger.Warn(msg, "id", h.id)
		case "debug", "trace":
			logger.Debug(msg, "id", h.id)
		default:
			logger.Info(msg, "id", h.id)
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		h.logger.Warn("Error reading output", "id", h.id, "source", source, "error", err)
	}
}
