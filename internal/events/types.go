package events

// Event type constants for kelindar/event.
const (
	TypeSessionStarted uint32 = iota + 1
	TypeSessionEnded
	TypeHeartbeatFailed
	TypeRestartScheduled
	TypeVolumeChanged
	TypeStreamerStateChanged
	TypeStopRequested
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionStartedEvent is published when a supervisor spawns a stream process.
type SessionStartedEvent struct {
	Target    string `json:"target" example:"AA:BB:CC:DD:EE:FF" doc:"Playback target identifier"`
	SessionID string `json:"session_id" doc:"Session identifier"`
	PID       int    `json:"pid" example:"4242" doc:"Stream process id"`
	Source    string `json:"source" example:"https://stream.example/radio.mp3" doc:"Stream URL or file path"`
	Title     string `json:"title" example:"Radio BBC" doc:"Display title"`
	Attempt   int    `json:"attempt" example:"0" doc:"Restart attempt, 0 for a fresh play"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStartedEvent.
func (e SessionStartedEvent) Type() uint32 { return TypeSessionStarted }

// SessionEndedEvent is published when a session is torn down for any reason.
type SessionEndedEvent struct {
	Target    string `json:"target" doc:"Playback target identifier"`
	SessionID string `json:"session_id" doc:"Session identifier"`
	Reason    string `json:"reason" example:"stopped" doc:"stopped, replaced, exited, stalled, restarting"`
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionEndedEvent.
func (e SessionEndedEvent) Type() uint32 { return TypeSessionEnded }

// HeartbeatFailedEvent is published when no output was seen within the threshold.
type HeartbeatFailedEvent struct {
	Target     string `json:"target" doc:"Playback target identifier"`
	SessionID  string `json:"session_id" doc:"Session identifier"`
	ElapsedMs  int64  `json:"elapsed_ms" example:"5200" doc:"Time since last output"`
	Title      string `json:"title" doc:"Title reported by the target"`
	RetryCount int    `json:"retry_count" doc:"Restarts already scheduled without activity"`
	Timestamp  string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for HeartbeatFailedEvent.
func (e HeartbeatFailedEvent) Type() uint32 { return TypeHeartbeatFailed }

// RestartScheduledEvent is published when a stalled session will be restarted.
type RestartScheduledEvent struct {
	Target    string `json:"target" doc:"Playback target identifier"`
	SessionID string `json:"session_id" doc:"Session being restarted"`
	Attempt   int    `json:"attempt" example:"1" doc:"Restart attempt number"`
	DelayMs   int64  `json:"delay_ms" example:"500" doc:"Delay before the restart"`
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for RestartScheduledEvent.
func (e RestartScheduledEvent) Type() uint32 { return TypeRestartScheduled }

// VolumeChangedEvent is published when a target volume was set.
type VolumeChangedEvent struct {
	Target    string `json:"target" doc:"Playback target identifier"`
	Level     int    `json:"level" example:"35" doc:"Volume level 0-100"`
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for VolumeChangedEvent.
func (e VolumeChangedEvent) Type() uint32 { return TypeVolumeChanged }

// StreamerStateChangedEvent is published when a streamer starts or stops playing.
type StreamerStateChangedEvent struct {
	Streamer  string `json:"streamer" example:"Radio BBC" doc:"Streamer name"`
	Playing   bool   `json:"playing" doc:"Whether the streamer is playing"`
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamerStateChangedEvent.
func (e StreamerStateChangedEvent) Type() uint32 { return TypeStreamerStateChanged }

// StopRequestedEvent is published for every coordinator stop fan-out.
type StopRequestedEvent struct {
	Source     string `json:"source" doc:"Name of the streamer about to play"`
	Recipients int    `json:"recipients" doc:"Streamers asked to stop"`
	Failures   int    `json:"failures" doc:"Streamers whose stop failed"`
	Timestamp  string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for StopRequestedEvent.
func (e StopRequestedEvent) Type() uint32 { return TypeStopRequested }
