// Package supervisor runs one streaming subprocess per AirPlay target and
// watches that it keeps producing output.
//
// # Sessions
//
// A Supervisor holds zero or one session. Play ends the current session
// (killing its process group and waiting for exit) before spawning the next,
// so two sessions never hold a process for the same target. IsPlaying is true
// exactly while a session is held.
//
// # Watchdog
//
// Every stdout/stderr line is activity: it refreshes lastSeenAt and clears the
// retry count. A ticker fires every HeartbeatInterval; when more than
// LastSeenThreshold has passed since the last activity the target's title is
// queried with the control tool:
//
//	title empty, placeholder or ours, retries left -> restart after RestartDelay*retryCount
//	title empty, placeholder or ours, no retries   -> end session (stalled)
//	anything else                                  -> end session (target taken over)
//
// # Control commands
//
// SetVolume, Volume and PlaybackTitle run the control tool as separate
// processes and work with or without a session. Volume and PlaybackTitle
// never fail; they log and return 0 or "".
package supervisor
