// Package models holds the request and response bodies of the HTTP API.
package models

import (
	"time"

	"github.com/smazurov/airradio/internal/logging"
	"github.com/smazurov/airradio/internal/metrics"
	"github.com/smazurov/airradio/internal/version"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionResponse struct {
	Body version.Info
}

// Streamer models
type StreamerData struct {
	Name    string `json:"name" example:"Radio BBC" doc:"Streamer name"`
	Kind    string `json:"kind" enum:"radio,file,audio,volume,web" doc:"Streamer kind"`
	Playing bool   `json:"playing" doc:"Whether the streamer's device has a live session"`
	State   string `json:"state" enum:"PLAY,STOP" doc:"Current media state"`
}

type StreamerListData struct {
	Streamers []StreamerData `json:"streamers" doc:"Registered streamers"`
	Count     int            `json:"count" example:"3" doc:"Number of streamers"`
}

type StreamerListResponse struct {
	Body StreamerListData
}

type StreamerPathInput struct {
	Name string `path:"name" example:"Radio BBC" doc:"Streamer name"`
}

type StreamerResponse struct {
	Body StreamerData
}

type MediaStateData struct {
	State string `json:"state" enum:"PLAY,PAUSE,STOP" doc:"Target media state"`
}

type MediaStateRequest struct {
	Name string `path:"name" example:"Radio BBC" doc:"Streamer name"`
	Body MediaStateData
}

// Session models
type SessionData struct {
	Streamer   string    `json:"streamer" doc:"Streamer owning the supervisor"`
	Target     string    `json:"target" doc:"AirPlay device id"`
	State      string    `json:"state" enum:"no_session,starting,active,ending" doc:"Supervisor state"`
	SessionID  string    `json:"session_id,omitempty" doc:"Live session id"`
	PID        int       `json:"pid,omitempty" doc:"Stream process id"`
	Kind       string    `json:"kind,omitempty" enum:"url,file" doc:"Source kind"`
	Source     string    `json:"source,omitempty" doc:"Stream URL or file path"`
	Title      string    `json:"title,omitempty" doc:"Requested title"`
	RetryCount int       `json:"retry_count" doc:"Restarts in the current run"`
	StartedAt  time.Time `json:"started_at,omitzero" doc:"Session start"`
	LastSeenAt time.Time `json:"last_seen_at,omitzero" doc:"Last stream activity"`
}

type SessionListData struct {
	Sessions []SessionData `json:"sessions" doc:"One entry per supervisor"`
}

type SessionListResponse struct {
	Body SessionListData
}

// Device models
type DeviceData struct {
	Target        string               `json:"target" doc:"AirPlay device id"`
	Volume        float64              `json:"volume" example:"35" doc:"Volume reported by the device, 0 when unknown"`
	CurrentVolume int                  `json:"current_volume" example:"25" doc:"Last volume applied through the service"`
	Title         string               `json:"title" doc:"Title the device is playing"`
	Stats         *metrics.TargetStats `json:"stats,omitempty" doc:"Session counters"`
}

type DeviceResponse struct {
	Body DeviceData
}

type VolumeData struct {
	Level int `json:"level" minimum:"0" maximum:"100" example:"40" doc:"Volume level"`
}

type VolumeRequest struct {
	Body VolumeData
}

type VolumeResponse struct {
	Body VolumeData
}

// Web action models
type ActionData struct {
	URI string `json:"uri" example:"/play/doorbell.mp3" doc:"Action path: /play/<file> or /playUrl/<base64 url>"`
}

type ActionRequest struct {
	Body ActionData
}

type ActionResult struct {
	Error   bool   `json:"error" doc:"Whether the action was rejected"`
	Message string `json:"message" doc:"Outcome"`
}

type ActionResponse struct {
	Status int
	Body   ActionResult
}

// Log models
type LogsInput struct {
	Module string `query:"module" doc:"Only entries of this module"`
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" default:"200" doc:"Newest N entries"`
}

type LogsData struct {
	Entries []logging.Entry `json:"entries" doc:"Recent log entries, oldest first"`
	Count   int             `json:"count" doc:"Number of entries"`
}

type LogsResponse struct {
	Body LogsData
}

type LogLevelsData struct {
	Levels map[string]string `json:"levels" doc:"Level per module"`
}

type LogLevelsResponse struct {
	Body LogLevelsData
}

type LogLevelRequest struct {
	Module string `path:"module" example:"supervisor" doc:"Logger module"`
	Body   struct {
		Level string `json:"level" enum:"debug,info,warn,error" doc:"New level"`
	}
}

// Stats models
type StatsData struct {
	Targets map[string]*metrics.TargetStats `json:"targets" doc:"Session counters per device"`
}

type StatsResponse struct {
	Body StatsData
}
