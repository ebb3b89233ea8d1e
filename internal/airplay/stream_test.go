package airplay

import (
	"strings"
	"testing"
)

func TestStreamArgsURL(t *testing.T) {
	args := StreamArgs{
		Target:      "AA:BB",
		Title:       "Radio BBC",
		Album:       "BBC",
		URL:         "https://example.com/stream.mp3",
		MetadataURL: "https://example.com/meta",
		ArtworkURL:  "https://example.com/art.png",
		Volume:      30,
		Verbose:     true,
	}.Args([]string{"python3", "stream.py"})

	want := "python3 stream.py --id AA:BB --title Radio BBC --album BBC --stream_url https://example.com/stream.mp3 " +
		"--stream_timeout 5 --stream_metadata https://example.com/meta --stream_artwork https://example.com/art.png --volume 30 --verbose"
	if got := strings.Join(args, " "); got != want {
		t.Errorf("unexpected args:\n got: %s\nwant: %s", got, want)
	}
}

func TestStreamArgsFile(t *testing.T) {
	args := StreamArgs{Target: "AA", Title: "Bell", Album: "Files", File: "/media/bell.mp3", Timeout: 9}.Args([]string{"stream"})

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--file /media/bell.mp3") {
		t.Errorf("expected --file, got %s", joined)
	}
	if strings.Contains(joined, "--stream_url") {
		t.Errorf("expected no --stream_url for file source, got %s", joined)
	}
	if !strings.Contains(joined, "--stream_timeout 9") {
		t.Errorf("expected custom timeout, got %s", joined)
	}
	if strings.Contains(joined, "--stream_metadata") || strings.Contains(joined, "--verbose") {
		t.Errorf("expected optional flags omitted, got %s", joined)
	}
}

func TestStreamArgsDoesNotAliasCommand(t *testing.T) {
	command := make([]string, 1, 8)
	command[0] = "stream"
	first := StreamArgs{Target: "A", URL: "u1"}.Args(command)
	second := StreamArgs{Target: "B", URL: "u2"}.Args(command)

	if first[2] != "A" || second[2] != "B" {
		t.Errorf("args share backing array: %v %v", first, second)
	}
}

func TestParseLogLine(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"2026-01-02 10:00:00,123 WARNING [stream]: STREAM_LAST_SEEN: 6sec", "warning", "[stream]: STREAM_LAST_SEEN: 6sec"},
		{"2026-01-02 10:00:00,123 ERROR [stream]: boom", "error", "[stream]: boom"},
		{"2026-01-02 10:00:00,123 DEBUG [pyatv]: packet", "debug", "[pyatv]: packet"},
		{"Traceback (most recent call last):", "info", "Traceback (most recent call last):"},
	}
	for _, tt := range tests {
		level, msg := ParseLogLine(tt.line)
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Errorf("ParseLogLine(%q) = (%q, %q), want (%q, %q)", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
		}
	}
}
