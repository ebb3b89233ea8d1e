// Package airplay runs the out-of-band control tool (atvremote) against an
// AirPlay target and builds the argument list of the streaming executable.
package airplay

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/smazurov/airradio/internal/process"
)

// DefaultControlCommand is the control tool used when none is configured.
const DefaultControlCommand = "atvremote"

// DefaultCommandTimeout bounds a single control tool invocation.
const DefaultCommandTimeout = 10 * time.Second

// Remote invokes the control tool for title and volume commands.
// Each call is a separate short-lived process.
type Remote struct {
	command []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewRemote creates a Remote running command (for example "atvremote" or
// "python3 -m pyatv.scripts.atvremote"). An empty command uses atvremote.
func NewRemote(command string, timeout time.Duration, logger *slog.Logger) (*Remote, error) {
	if command == "" {
		command = DefaultControlCommand
	}
	args, err := process.ParseCommand(command)
	if err != nil {
		return nil, fmt.Errorf("parse control command: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Remote{command: args, timeout: timeout, logger: logger}, nil
}

// Title returns the free-text title currently reported by target.
func (r *Remote) Title(ctx context.Context, target string) (string, error) {
	return r.run(ctx, target, "title")
}

// Volume returns the raw volume text reported by target.
func (r *Remote) Volume(ctx context.Context, target string) (string, error) {
	return r.run(ctx, target, "volume")
}

// SetVolume sets the target volume. Only the exit status is meaningful.
func (r *Remote) SetVolume(ctx context.Context, target string, level int) error {
	_, err := r.run(ctx, target, "set_volume="+strconv.Itoa(level))
	return err
}

func (r *Remote) run(ctx context.Context, target, command string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := make([]string, 0, len(r.command)+3)
	args = append(args, r.command...)
	args = append(args, "--id", target, command)

	out, err := process.Output(ctx, args, r.logger)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", r.command[0], command, err)
	}
	return out, nil
}
