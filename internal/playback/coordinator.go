// Package playback keeps the process-wide registry of streamers and fans out
// stop, shutdown, launch and volume notifications to them.
//
// Mutual exclusion on a target is a convention: a streamer about to play
// calls RequestStop with itself as source before starting its own process.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/smazurov/airradio/internal/events"
)

// Streamer is a participant in the coordinator's protocol.
// Implementations must be pointer types; the registry compares identities.
type Streamer interface {
	StreamerName() string
	IsPlaying() bool
	StartPlaying(ctx context.Context) error
	StopPlaying(ctx context.Context) error
	StopRequested(ctx context.Context, source Streamer) error
	ShutdownRequested(ctx context.Context) error
	PlatformLaunched(ctx context.Context) error
	VolumeUpdated(ctx context.Context, target string, level int) error
}

// Coordinator is the streamer registry.
type Coordinator struct {
	mu        sync.RWMutex
	streamers []Streamer
	logger    *slog.Logger
	events    *events.Bus
}

// New creates an empty coordinator. bus may be nil.
func New(logger *slog.Logger, bus *events.Bus) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{logger: logger, events: bus}
}

// AddStreamer appends s. Adding the same streamer twice registers it twice.
func (c *Coordinator) AddStreamer(s Streamer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streamers = append(c.streamers, s)
	c.logger.Debug("Streamer registered", "streamer", s.StreamerName(), "count", len(c.streamers))
}

// RemoveStreamer removes every registration of s and reports whether any existed.
func (c *Coordinator) RemoveStreamer(s Streamer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := len(c.streamers)
	c.streamers = slices.DeleteFunc(c.streamers, func(other Streamer) bool {
		return other == s
	})
	removed := len(c.streamers) < before
	if removed {
		c.logger.Debug("Streamer removed", "streamer", s.StreamerName(), "count", len(c.streamers))
	}
	return removed
}

// Streamers returns a snapshot of the registry in registration order.
func (c *Coordinator) Streamers() []Streamer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.streamers)
}

// Find returns the first streamer named name.
func (c *Coordinator) Find(name string) (Streamer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.streamers {
		if s.StreamerName() == name {
			return s, true
		}
	}
	return nil, false
}

// RequestStop asks every streamer except source to stop. source may be nil.
func (c *Coordinator) RequestStop(ctx context.Context, source Streamer) error {
	recipients := c.except(source)

	sourceName := ""
	if source != nil {
		sourceName = source.StreamerName()
	}

	c.logger.Debug("Stop requested", "source", sourceName, "recipients", len(recipients))
	failures, err := c.fanOut(ctx, "stop", recipients, func(ctx context.Context, s Streamer) error {
		return s.StopRequested(ctx, source)
	})

	c.events.Publish(events.StopRequestedEvent{
		Source:     sourceName,
		Recipients: len(recipients),
		Failures:   failures,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
	return err
}

// Shutdown notifies every streamer that the process is exiting.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down streamers")
	_, err := c.fanOut(ctx, "shutdown", c.Streamers(), func(ctx context.Context, s Streamer) error {
		return s.ShutdownRequested(ctx)
	})
	return err
}

// PlatformReady notifies every streamer that startup has finished.
func (c *Coordinator) PlatformReady(ctx context.Context) error {
	c.logger.Info("Platform ready")
	_, err := c.fanOut(ctx, "platform launched", c.Streamers(), func(ctx context.Context, s Streamer) error {
		return s.PlatformLaunched(ctx)
	})
	return err
}

// UpdateVolume tells every streamer that target's volume changed; each
// streamer decides whether target concerns it.
func (c *Coordinator) UpdateVolume(ctx context.Context, target string, level int) error {
	c.logger.Debug("Volume update", "target", target, "level", level)
	_, err := c.fanOut(ctx, "volume updated", c.Streamers(), func(ctx context.Context, s Streamer) error {
		return s.VolumeUpdated(ctx, target, level)
	})
	return err
}

func (c *Coordinator) except(source Streamer) []Streamer {
	c.mu.RLock()
	defer c.mu.RUnlock()

	recipients := make([]Streamer, 0, len(c.streamers))
	for _, s := range c.streamers {
		if source != nil && s == source {
			continue
		}
		recipients = append(recipients, s)
	}
	return recipients
}

// fanOut runs fn for every streamer in its own goroutine and waits for all of
// them or for ctx. Each failure is logged; the joined failures are returned.
func (c *Coordinator) fanOut(ctx context.Context, op string, targets []Streamer, fn func(context.Context, Streamer) error) (int, error) {
	if len(targets) == 0 {
		return 0, nil
	}

	results := make(chan error, len(targets))
	for _, s := range targets {
		go func() {
			results <- c.deliver(ctx, op, s, fn)
		}()
	}

	var errs []error
	for range targets {
		select {
		case err := <-results:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			c.logger.Warn("Stopped waiting for streamers", "op", op, "error", ctx.Err())
			errs = append(errs, fmt.Errorf("%s: %w", op, ctx.Err()))
			return len(errs), errors.Join(errs...)
		}
	}
	return len(errs), errors.Join(errs...)
}

// deliver calls fn for one streamer, turning a panic into an error.
func (c *Coordinator) deliver(ctx context.Context, op string, s Streamer, fn func(context.Context, Streamer) error) (err error) {
	name := "unknown"
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s %q: panic: %v", op, name, r)
		}
		if err != nil {
			c.logger.Error("Streamer notification failed", "op", op, "streamer", name, "error", err)
		}
	}()

	name = s.StreamerName()
	if err := fn(ctx, s); err != nil {
		return fmt.Errorf("%s %q: %w", op, name, err)
	}
	return nil
}
