package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// outputWaitDelay bounds how long Output waits for pipes after the command is killed.
const outputWaitDelay = time.Second

// Output runs a short-lived command and returns its trimmed standard output.
// The command is killed when ctx is done. A non-zero exit is returned as an
// error carrying the child's stderr.
func Output(ctx context.Context, args []string, logger *slog.Logger) (string, error) {
	if len(args) == 0 {
		return "", errors.New("empty command")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = outputWaitDelay

	logger.Debug("Running command", "command", strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s exited with code %d: %s: %w", args[0], exitCodeFromError(err), msg, err)
		}
		return "", fmt.Errorf("%s exited with code %d: %w", args[0], exitCodeFromError(err), err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// ParseCommand splits a command string into arguments, handling quotes.
// Used for configured executables such as "python3 /opt/airradio/stream.py".
func ParseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	runes := []rune(strings.TrimSpace(command))

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case (r == ' ' || r == '\t') && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}

	if inQuote {
		return nil, errors.New("unclosed quote in command")
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}

	return args, nil
}
