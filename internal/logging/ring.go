package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Entry is one log record kept in the ring.
type Entry struct {
	Seq        uint64         `json:"seq"`
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Ring is a fixed-size, thread-safe buffer of recent entries.
type Ring struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
	seq     uint64
}

// NewRing creates a ring holding at most size entries.
func NewRing(size int) *Ring {
	if size < 1 {
		size = 1
	}
	return &Ring{entries: make([]Entry, size)}
}

// Add stores e, overwriting the oldest entry when full, and returns its sequence number.
func (r *Ring) Add(e Entry) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	e.Seq = r.seq
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
	return e.Seq
}

// Entries returns up to limit of the newest entries in chronological order,
// optionally restricted to one module. limit <= 0 means all.
func (r *Ring) Entries(module string, limit int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ordered []Entry
	if r.full {
		ordered = append(ordered, r.entries[r.next:]...)
	}
	ordered = append(ordered, r.entries[:r.next]...)

	result := make([]Entry, 0, len(ordered))
	for _, e := range ordered {
		if module == "" || e.Module == module {
			result = append(result, e)
		}
	}

	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result
}

// Len returns the number of stored entries.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}

// RingHandler is a slog.Handler that records into a Ring.
type RingHandler struct {
	ring   *Ring
	level  slog.Leveler
	module string
	preset map[string]any
	groups []string
}

// NewRingHandler creates a handler writing to ring at level.
func NewRingHandler(ring *Ring, level slog.Leveler) *RingHandler {
	return &RingHandler{ring: ring, level: level, module: "app"}
}

// Enabled implements slog.Handler.
func (h *RingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *RingHandler) Handle(_ context.Context, r slog.Record) error {
	e := Entry{
		Timestamp: r.Time,
		Level:     levelName(r.Level),
		Module:    h.module,
		Message:   r.Message,
	}

	if len(h.preset) > 0 || r.NumAttrs() > 0 {
		e.Attributes = make(map[string]any, len(h.preset)+r.NumAttrs())
		for k, v := range h.preset {
			e.Attributes[k] = v
		}
		r.Attrs(func(a slog.Attr) bool {
			flatten(e.Attributes, h.groups, a)
			return true
		})
	}

	h.ring.Add(e)
	return nil
}

// WithAttrs implements slog.Handler. A top-level "module" attribute names the
// entry's module instead of becoming an attribute.
func (h *RingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.preset = make(map[string]any, len(h.preset)+len(attrs))
	for k, v := range h.preset {
		clone.preset[k] = v
	}
	for _, a := range attrs {
		if a.Key == "module" && len(h.groups) == 0 {
			clone.module = a.Value.String()
			continue
		}
		flatten(clone.preset, h.groups, a)
	}
	return &clone
}

// WithGroup implements slog.Handler.
func (h *RingHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// flatten stores a into attrs using dot-joined group keys.
func flatten(attrs map[string]any, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		nested := append(append([]string(nil), groups...), a.Key)
		for _, ga := range a.Value.Group() {
			flatten(attrs, nested, ga)
		}
	case slog.KindTime:
		attrs[key] = a.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		attrs[key] = a.Value.Duration().String()
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			attrs[key] = err.Error()
		} else {
			attrs[key] = a.Value.Any()
		}
	default:
		attrs[key] = a.Value.Any()
	}
}
