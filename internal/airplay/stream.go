package airplay

import (
	"strconv"
	"strings"
)

// DefaultStreamCommand is the streaming executable used when none is configured.
const DefaultStreamCommand = "python3 bin/stream.py"

// DefaultStreamTimeout is the upstream read timeout, in seconds, handed to the
// streaming executable.
const DefaultStreamTimeout = 5

// StreamArgs describes one invocation of the streaming executable.
type StreamArgs struct {
	Target      string
	Title       string
	Album       string
	URL         string
	File        string
	Timeout     int
	MetadataURL string
	ArtworkURL  string
	Volume      int
	Verbose     bool
}

// Args appends the flag list for a to command.
// Exactly one of URL and File is passed; File wins when both are set.
func (a StreamArgs) Args(command []string) []string {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultStreamTimeout
	}

	args := append([]string(nil), command...)
	args = append(args,
		"--id", a.Target,
		"--title", a.Title,
		"--album", a.Album,
	)

	if a.File != "" {
		args = append(args, "--file", a.File)
	} else {
		args = append(args, "--stream_url", a.URL)
	}

	args = append(args, "--stream_timeout", strconv.Itoa(timeout))

	if a.MetadataURL != "" {
		args = append(args, "--stream_metadata", a.MetadataURL)
	}
	if a.ArtworkURL != "" {
		args = append(args, "--stream_artwork", a.ArtworkURL)
	}

	args = append(args, "--volume", strconv.Itoa(a.Volume))

	if a.Verbose {
		args = append(args, "--verbose")
	}
	return args
}

// ParseLogLine extracts the level from a stream.py log line of the form
// "2026-01-02 10:00:00,123 WARNING message". Lines without a recognizable
// level are reported as info.
func ParseLogLine(line string) (level, msg string) {
	for _, candidate := range []struct {
		token, level string
	}{
		{" CRITICAL ", "critical"},
		{" ERROR ", "error"},
		{" WARNING ", "warning"},
		{" DEBUG ", "debug"},
		{" INFO ", "info"},
	} {
		if idx := strings.Index(line, candidate.token); idx >= 0 {
			return candidate.level, line[idx+len(candidate.token):]
		}
	}
	return "info", line
}
