package airplay

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTool writes an executable shell script standing in for atvremote.
// It echoes its arguments to argsFile and prints output.
func fakeTool(t *testing.T, output string, exitCode int) (command, argsFile string) {
	t.Helper()
	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args")
	script := filepath.Join(dir, "atvremote")
	body := "#!/bin/sh\necho \"$@\" > " + argsFile + "\necho '" + output + "'\nexit " + strconv.Itoa(exitCode) + "\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write fake tool: %v", err)
	}
	return script, argsFile
}

func readArgs(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	return strings.TrimSpace(string(data))
}

func TestRemoteTitle(t *testing.T) {
	command, argsFile := fakeTool(t, "Radio BBC", 0)
	r, err := NewRemote(command, time.Second, testLogger())
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}

	title, err := r.Title(context.Background(), "AA:BB")
	if err != nil {
		t.Fatalf("Title: %v", err)
	}
	if title != "Radio BBC" {
		t.Errorf("expected title %q, got %q", "Radio BBC", title)
	}
	if got := readArgs(t, argsFile); got != "--id AA:BB title" {
		t.Errorf("unexpected args %q", got)
	}
}

func TestRemoteVolume(t *testing.T) {
	command, argsFile := fakeTool(t, "35.0", 0)
	r, err := NewRemote(command, time.Second, testLogger())
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}

	out, err := r.Volume(context.Background(), "AA:BB")
	if err != nil {
		t.Fatalf("Volume: %v", err)
	}
	if out != "35.0" {
		t.Errorf("expected 35.0, got %q", out)
	}
	if got := readArgs(t, argsFile); got != "--id AA:BB volume" {
		t.Errorf("unexpected args %q", got)
	}
}

func TestRemoteSetVolume(t *testing.T) {
	command, argsFile := fakeTool(t, "", 0)
	r, err := NewRemote(command, time.Second, testLogger())
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}

	if err := r.SetVolume(context.Background(), "AA:BB", 42); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	if got := readArgs(t, argsFile); got != "--id AA:BB set_volume=42" {
		t.Errorf("unexpected args %q", got)
	}
}

func TestRemoteFailure(t *testing.T) {
	command, _ := fakeTool(t, "no device", 1)
	r, err := NewRemote(command, time.Second, testLogger())
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}

	if err := r.SetVolume(context.Background(), "AA:BB", 10); err == nil {
		t.Error("expected error for failing control tool")
	}
}

func TestRemoteTimeout(t *testing.T) {
	r, err := NewRemote(`sh -c "sleep 10" --`, 100*time.Millisecond, testLogger())
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}

	start := time.Now()
	if _, err := r.Title(context.Background(), "AA:BB"); err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected prompt timeout, took %v", elapsed)
	}
}

func TestNewRemoteDefaults(t *testing.T) {
	r, err := NewRemote("", 0, nil)
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}
	if r.command[0] != DefaultControlCommand {
		t.Errorf("expected default command, got %v", r.command)
	}
	if r.timeout != DefaultCommandTimeout {
		t.Errorf("expected default timeout, got %v", r.timeout)
	}

	if _, err := NewRemote(`atvremote "unclosed`, 0, nil); err == nil {
		t.Error("expected error for unclosed quote")
	}
}
