package streamers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// StateStore persists a streamer's playback state between runs.
type StateStore struct {
	path string
}

type storedState struct {
	PlaybackState MediaState `json:"playbackState"`
}

// NewStateStore stores state in path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// StatePath returns the state file for the named streamer inside dir. The
// file name is derived from the name so renaming a radio starts fresh.
func StatePath(dir, name string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("airradio:radio:"+name))
	return filepath.Join(dir, "airradio-"+id.String()+".status.json")
}

// Path returns the state file location.
func (s *StateStore) Path() string {
	return s.path
}

// Read returns the stored state. ok is false when nothing was stored yet.
func (s *StateStore) Read() (state MediaState, ok bool, err error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return MediaStop, false, nil
	}
	if err != nil {
		return MediaStop, false, fmt.Errorf("failed to read state: %w", err)
	}

	var st storedState
	if err := json.Unmarshal(data, &st); err != nil {
		return MediaStop, false, fmt.Errorf("failed to parse state %s: %w", s.path, err)
	}
	return st.PlaybackState, true, nil
}

// Write replaces the stored state atomically.
func (s *StateStore) Write(state MediaState) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.Marshal(storedState{PlaybackState: state})
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}
