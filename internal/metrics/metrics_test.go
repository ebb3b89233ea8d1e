package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/smazurov/airradio/internal/events"
)

func TestSessionCounters(t *testing.T) {
	target := "test-sessions"
	DeleteTarget(target)
	defer DeleteTarget(target)

	RecordSessionStarted(target)
	RecordSessionStarted(target)
	RecordSessionEnded(target, "restarting")

	if got := testutil.ToFloat64(sessionsStarted.WithLabelValues(target)); got != 2 {
		t.Errorf("started = %v, want 2", got)
	}
	if got := testutil.ToFloat64(sessionsActive.WithLabelValues(target)); got != 1 {
		t.Errorf("active = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sessionsEnded.WithLabelValues(target, "restarting")); got != 1 {
		t.Errorf("ended = %v, want 1", got)
	}

	stats := GetTargetStats(target)
	if stats == nil {
		t.Fatal("expected stats")
	}
	if stats.SessionsStarted != 2 || stats.ActiveSessions != 1 || stats.LastEndReason != "restarting" {
		t.Errorf("stats = %+v", stats)
	}
}

func TestStatsAreCopies(t *testing.T) {
	target := "test-copies"
	DeleteTarget(target)
	defer DeleteTarget(target)

	RecordRestart(target)
	s := GetTargetStats(target)
	s.Restarts = 100

	if got := GetTargetStats(target).Restarts; got != 1 {
		t.Errorf("cache modified through copy: %d", got)
	}
	if all := GetAllTargetStats(); all[target] == nil || all[target].Restarts != 1 {
		t.Errorf("all stats = %+v", all[target])
	}
}

func TestDeleteTarget(t *testing.T) {
	target := "test-delete"
	SetVolume(target, 40)
	RecordHeartbeatFailure(target)
	DeleteTarget(target)

	if GetTargetStats(target) != nil {
		t.Error("stats survived delete")
	}
}

func TestActiveSessionsNeverNegativeInStats(t *testing.T) {
	target := "test-negative"
	DeleteTarget(target)
	defer DeleteTarget(target)

	RecordSessionEnded(target, "stopped")
	if got := GetTargetStats(target).ActiveSessions; got != 0 {
		t.Errorf("active = %d", got)
	}
}

func TestSubscribe(t *testing.T) {
	target := "test-bus"
	DeleteTarget(target)
	defer DeleteTarget(target)

	bus := events.New()
	unsubscribe := Subscribe(bus)
	defer unsubscribe()

	bus.Publish(events.SessionStartedEvent{Target: target})
	bus.Publish(events.VolumeChangedEvent{Target: target, Level: 35})
	bus.Publish(events.StreamerStateChangedEvent{Streamer: "test-bus-radio", Playing: true})

	deadline := time.Now().Add(2 * time.Second)
	for {
		s := GetTargetStats(target)
		playing := testutil.ToFloat64(streamerPlaying.WithLabelValues("test-bus-radio"))
		if s != nil && s.SessionsStarted == 1 && s.Volume == 35 && playing == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("events not recorded: stats=%+v playing=%v", s, playing)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandler(t *testing.T) {
	target := "test-http"
	defer DeleteTarget(target)
	RecordSessionStarted(target)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "airradio_supervisor_sessions_started_total") {
		t.Error("expected airradio metrics in response")
	}
}
