// Package metrics provides Prometheus metrics for supervised sessions and
// the playback coordinator.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/airradio/internal/events"
)

const namespace = "airradio"

var (
	sessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "supervisor",
		Name:      "sessions_started_total",
		Help:      "Stream sessions started, including restarts",
	}, []string{"target"})

	sessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "supervisor",
		Name:      "sessions_ended_total",
		Help:      "Stream sessions ended, by reason",
	}, []string{"target", "reason"})

	sessionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "supervisor",
		Name:      "sessions_active",
		Help:      "Live stream sessions",
	}, []string{"target"})

	heartbeatFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "supervisor",
		Name:      "heartbeat_failures_total",
		Help:      "Heartbeat checks that found the stream silent",
	}, []string{"target"})

	restartsScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "supervisor",
		Name:      "restarts_scheduled_total",
		Help:      "Restarts scheduled after a stalled stream",
	}, []string{"target"})

	volume = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "device",
		Name:      "volume",
		Help:      "Last volume set on the device",
	}, []string{"target"})

	streamerPlaying = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "playback",
		Name:      "streamer_playing",
		Help:      "1 while the streamer is playing",
	}, []string{"streamer"})

	stopRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "playback",
		Name:      "stop_requests_total",
		Help:      "Coordinator stop fan-outs",
	})

	stopFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "playback",
		Name:      "stop_failures_total",
		Help:      "Streamers that failed a stop request",
	})

	// Local cache for the status API.
	statsCache   = make(map[string]*TargetStats)
	statsCacheMu sync.RWMutex
)

// TargetStats holds counters for one device.
type TargetStats struct {
	SessionsStarted   int     `json:"sessions_started"`
	SessionsEnded     int     `json:"sessions_ended"`
	ActiveSessions    int     `json:"active_sessions"`
	HeartbeatFailures int     `json:"heartbeat_failures"`
	Restarts          int     `json:"restarts"`
	Volume            float64 `json:"volume"`
	LastEndReason     string  `json:"last_end_reason,omitempty"`
}

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSessionStarted counts a started session.
func RecordSessionStarted(target string) {
	sessionsStarted.WithLabelValues(target).Inc()
	sessionsActive.WithLabelValues(target).Inc()
	updateStats(target, func(s *TargetStats) {
		s.SessionsStarted++
		s.ActiveSessions++
	})
}

// RecordSessionEnded counts an ended session.
func RecordSessionEnded(target, reason string) {
	sessionsEnded.WithLabelValues(target, reason).Inc()
	sessionsActive.WithLabelValues(target).Dec()
	updateStats(target, func(s *TargetStats) {
		s.SessionsEnded++
		if s.ActiveSessions > 0 {
			s.ActiveSessions--
		}
		s.LastEndReason = reason
	})
}

// RecordHeartbeatFailure counts a silent heartbeat check.
func RecordHeartbeatFailure(target string) {
	heartbeatFailures.WithLabelValues(target).Inc()
	updateStats(target, func(s *TargetStats) { s.HeartbeatFailures++ })
}

// RecordRestart counts a scheduled restart.
func RecordRestart(target string) {
	restartsScheduled.WithLabelValues(target).Inc()
	updateStats(target, func(s *TargetStats) { s.Restarts++ })
}

// SetVolume records the device volume.
func SetVolume(target string, level float64) {
	volume.WithLabelValues(target).Set(level)
	updateStats(target, func(s *TargetStats) { s.Volume = level })
}

// SetStreamerPlaying records whether a streamer plays.
func SetStreamerPlaying(streamer string, playing bool) {
	v := 0.0
	if playing {
		v = 1
	}
	streamerPlaying.WithLabelValues(streamer).Set(v)
}

// RecordStopRequest counts a coordinator fan-out and its failures.
func RecordStopRequest(failures int) {
	stopRequests.Inc()
	stopFailures.Add(float64(failures))
}

// DeleteTarget removes all metrics for a device.
func DeleteTarget(target string) {
	sessionsStarted.DeleteLabelValues(target)
	sessionsActive.DeleteLabelValues(target)
	sessionsEnded.DeletePartialMatch(prometheus.Labels{"target": target})
	heartbeatFailures.DeleteLabelValues(target)
	restartsScheduled.DeleteLabelValues(target)
	volume.DeleteLabelValues(target)

	statsCacheMu.Lock()
	delete(statsCache, target)
	statsCacheMu.Unlock()
}

// GetTargetStats returns a copy of the counters for target, or nil.
func GetTargetStats(target string) *TargetStats {
	statsCacheMu.RLock()
	defer statsCacheMu.RUnlock()
	if s, ok := statsCache[target]; ok {
		dup := *s
		return &dup
	}
	return nil
}

// GetAllTargetStats returns copies of all per-device counters.
func GetAllTargetStats() map[string]*TargetStats {
	statsCacheMu.RLock()
	defer statsCacheMu.RUnlock()
	result := make(map[string]*TargetStats, len(statsCache))
	for target, s := range statsCache {
		dup := *s
		result[target] = &dup
	}
	return result
}

func updateStats(target string, update func(*TargetStats)) {
	statsCacheMu.Lock()
	defer statsCacheMu.Unlock()
	s, ok := statsCache[target]
	if !ok {
		s = &TargetStats{}
		statsCache[target] = s
	}
	update(s)
}

// Subscribe records bus events into the metrics. The returned function
// unsubscribes.
func Subscribe(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(func(e events.SessionStartedEvent) { RecordSessionStarted(e.Target) }),
		bus.Subscribe(func(e events.SessionEndedEvent) { RecordSessionEnded(e.Target, e.Reason) }),
		bus.Subscribe(func(e events.HeartbeatFailedEvent) { RecordHeartbeatFailure(e.Target) }),
		bus.Subscribe(func(e events.RestartScheduledEvent) { RecordRestart(e.Target) }),
		bus.Subscribe(func(e events.VolumeChangedEvent) { SetVolume(e.Target, float64(e.Level)) }),
		bus.Subscribe(func(e events.StreamerStateChangedEvent) { SetStreamerPlaying(e.Streamer, e.Playing) }),
		bus.Subscribe(func(e events.StopRequestedEvent) { RecordStopRequest(e.Failures) }),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
