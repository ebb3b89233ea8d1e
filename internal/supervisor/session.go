package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/airradio/internal/events"
	"github.com/smazurov/airradio/internal/process"
)

type signalKind int

const (
	signalActivity signalKind = iota
	signalHeartbeat
)

// session is one play attempt: its process and watchdog state.
type session struct {
	id  string
	req StreamRequest

	// Set once under Supervisor.mu when the session becomes current.
	handle    *process.Handle
	startedAt time.Time

	// Guarded by Supervisor.mu.
	lastSeenAt   time.Time
	retryCount   int
	restarting   bool
	restartTimer *time.Timer

	stop     chan struct{}
	stopOnce sync.Once
}

func newSession(id string, req StreamRequest, retryCount int) *session {
	return &session{
		id:         id,
		req:        req,
		retryCount: retryCount,
		stop:       make(chan struct{}),
	}
}

// cancelHeartbeat stops the session's ticker goroutine. Safe to call repeatedly.
func (sess *session) cancelHeartbeat() {
	sess.stopOnce.Do(func() {
		close(sess.stop)
	})
}

// runHeartbeat emits a heartbeat signal every HeartbeatInterval until the
// session is cancelled.
func (s *Supervisor) runHeartbeat(sess *session) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.stop:
			return
		case <-ticker.C:
			s.signal(sess, signalHeartbeat)
		}
	}
}

// signal evaluates one watchdog input for sess. Output lines count as
// activity; heartbeats compare the time since the last activity with
// LastSeenThreshold.
func (s *Supervisor) signal(sess *session, kind signalKind) {
	s.mu.Lock()
	if s.session != sess {
		started := sess.handle != nil
		s.mu.Unlock()
		// Output can arrive before the session is registered; only a
		// session that was current and has since ended is stale.
		if started {
			sess.cancelHeartbeat()
		}
		return
	}

	now := s.now()
	if kind == signalActivity {
		sess.lastSeenAt = now
		sess.retryCount = 0
		s.mu.Unlock()
		return
	}

	elapsed := now.Sub(sess.lastSeenAt)
	if elapsed <= s.cfg.LastSeenThreshold || sess.restarting {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.heartbeatFailed(sess, elapsed)
}

// heartbeatFailed decides between restart and end for a stalled session.
func (s *Supervisor) heartbeatFailed(sess *session, elapsed time.Duration) {
	title := s.PlaybackTitle(context.Background())

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.session != sess || sess.restarting {
		s.mu.Unlock()
		return
	}
	retryCount := sess.retryCount
	s.mu.Unlock()

	s.logger.Warn("Heartbeat failed", "session", sess.id, "elapsed", elapsed, "title", title, "retry_count", retryCount)
	s.cfg.Events.Publish(events.HeartbeatFailedEvent{
		Target:     s.cfg.Target,
		SessionID:  sess.id,
		ElapsedMs:  elapsed.Milliseconds(),
		Title:      title,
		RetryCount: retryCount,
		Timestamp:  s.now().Format(time.RFC3339),
	})

	// Our own metadata on a silent stream is a stall like the placeholder.
	ours := title == "" || title == s.cfg.PlaceholderTitle || ownTitle(title, sess.req)

	switch {
	case !ours:
		s.logger.Info("Target is playing something else, ending session", "session", sess.id, "title", title)
		s.endSession(context.Background(), sess, "taken_over")
	case retryCount >= s.cfg.MaxRetries:
		s.logger.Error("Stream stalled and retries exhausted", "session", sess.id, "max_retries", s.cfg.MaxRetries)
		s.endSession(context.Background(), sess, "stalled")
	default:
		s.scheduleRestart(sess)
	}
}

// scheduleRestart arms a restart after RestartDelay*retryCount. Caller holds opMu.
func (s *Supervisor) scheduleRestart(sess *session) {
	s.mu.Lock()
	delay := s.cfg.RestartDelay * time.Duration(sess.retryCount)
	sess.retryCount++
	attempt := sess.retryCount
	sess.restarting = true
	sess.restartTimer = time.AfterFunc(delay, func() {
		s.restart(sess)
	})
	s.mu.Unlock()

	s.logger.Warn("Scheduling stream restart", "session", sess.id, "attempt", attempt, "delay", delay)
	s.cfg.Events.Publish(events.RestartScheduledEvent{
		Target:    s.cfg.Target,
		SessionID: sess.id,
		Attempt:   attempt,
		DelayMs:   delay.Milliseconds(),
		Timestamp: s.now().Format(time.RFC3339),
	})
}

// restart replaces sess with a fresh session for the same request, carrying
// the retry count forward.
func (s *Supervisor) restart(sess *session) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.session != sess {
		s.mu.Unlock()
		return
	}
	req, retryCount := sess.req, sess.retryCount
	s.mu.Unlock()

	s.logger.Info("Restarting stream", "session", sess.id, "attempt", retryCount)
	s.endSession(context.Background(), sess, "restarting")
	s.startSession(req, retryCount)
}

// ownTitle reports whether title is the metadata our stream sets. The stream
// executable publishes "<album> - <title>".
func ownTitle(title string, req StreamRequest) bool {
	if title == "" || req.Title == "" {
		return false
	}
	if title == req.Title {
		return true
	}
	return req.Album != "" && title == req.Album+" - "+req.Title
}
