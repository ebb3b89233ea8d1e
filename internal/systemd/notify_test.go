package systemd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestNotifier(sent *[]string, err error) *Notifier {
	n := NewNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	n.notify = func(_ bool, state string) (bool, error) {
		*sent = append(*sent, state)
		return err == nil, err
	}
	return n
}

func TestNotifierStates(t *testing.T) {
	var sent []string
	n := newTestNotifier(&sent, nil)

	n.Ready()
	n.Status("2 radios")
	n.Stopping()

	want := []string{"READY=1", "STATUS=2 radios", "STOPPING=1"}
	if len(sent) != len(want) {
		t.Fatalf("sent = %v", sent)
	}
	for i := range want {
		if sent[i] != want[i] {
			t.Errorf("sent[%d] = %q, want %q", i, sent[i], want[i])
		}
	}
}

func TestNotifierErrorIsLogged(t *testing.T) {
	var sent []string
	n := newTestNotifier(&sent, errors.New("socket closed"))
	n.Ready()
	if len(sent) != 1 {
		t.Fatalf("sent = %v", sent)
	}
}

func TestRunWatchdogWithoutSystemd(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")
	t.Setenv("WATCHDOG_PID", "")

	var sent []string
	n := newTestNotifier(&sent, nil)

	done := make(chan struct{})
	go func() {
		n.RunWatchdog(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunWatchdog blocked without a watchdog")
	}
	if len(sent) != 0 {
		t.Errorf("sent = %v", sent)
	}
}
