package models

import (
	"time"

	"github.com/smazurov/tracknode/internal/ffmpeg"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc123" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go runtime version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Pipeline models
type StageInfo struct {
	Name        string   `json:"name" example:"thresholder" doc:"Stage name used by the toggle endpoint"`
	Flags       []string `json:"flags" example:"[\"g\",\"G\"]" doc:"Toggle keys the stage handles"`
	PostProcess bool     `json:"post_process" doc:"Whether the stage consumes the display frame"`
}

type PipelineData struct {
	State  string      `json:"state" example:"running" doc:"Orchestrator state"`
	Stages []StageInfo `json:"stages" doc:"Stages in processing order"`
	Peers  int         `json:"peers" example:"1" doc:"Connected WebRTC viewers"`
}

type PipelineResponse struct {
	Body PipelineData
}

type ToggleRequest struct {
	Name string `path:"name" example:"thresholder" doc:"Stage name"`
	Body struct {
		Flag string `json:"flag" minLength:"1" maxLength:"1" pattern:"^[ -~]$" example:"G" doc:"Toggle key, one printable ASCII character"`
	}
}

type ToggleData struct {
	Stage   string `json:"stage" example:"thresholder" doc:"Stage name"`
	Flag    string `json:"flag" example:"G" doc:"Toggle key"`
	Enabled bool   `json:"enabled" doc:"State reported by the stage after the toggle"`
}

type ToggleResponse struct {
	Body ToggleData
}

// Display models
type DisplayData struct {
	Mode string `json:"mode" enum:"none,src,dest" example:"dest" doc:"Buffer shown and streamed"`
}

type DisplayRequest struct {
	Body DisplayData
}

type DisplayResponse struct {
	Body DisplayData
}

type StopResponse struct {
	Body struct {
		Status string `json:"status" example:"stopping" doc:"Stop request status"`
	}
}

// Log models
type LogsRequest struct {
	Limit int `query:"limit" minimum:"1" maximum:"1000" default:"100" doc:"Number of recent entries"`
}

type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp" doc:"Entry time"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"pipeline" doc:"Originating module"`
	Message    string         `json:"message" example:"Pipeline built" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

type LogsResponse struct {
	Body struct {
		Entries []LogEntry `json:"entries" doc:"Recent log entries, oldest first"`
		Count   int        `json:"count" example:"100" doc:"Number of entries returned"`
	}
}

// Encoder models
type EncoderInfo struct {
	Name        string `json:"name" example:"libx264" doc:"Encoder name"`
	Family      string `json:"family" example:"h264" doc:"Codec family"`
	Description string `json:"description" example:"libx264 H.264 / AVC" doc:"Human-readable description"`
	HWAccel     bool   `json:"hwaccel" example:"false" doc:"Whether this is a hardware-accelerated encoder"`
}

type EncodersResponse struct {
	Body struct {
		Encoders []EncoderInfo `json:"encoders" doc:"Video encoders ffmpeg reports"`
		Count    int           `json:"count" example:"4" doc:"Number of encoders"`
	}
}

// Device models
type DeviceInfo struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Device node"`
	DeviceName string `json:"device_name" example:"USB Camera" doc:"Driver-reported name"`
	DeviceID   string `json:"device_id,omitempty" example:"usb-Vendor_Camera-video-index0" doc:"Stable by-id name"`
}

type DevicesResponse struct {
	Body struct {
		Devices []DeviceInfo `json:"devices" doc:"Capture devices"`
		Count   int          `json:"count" example:"1" doc:"Number of devices"`
	}
}

// Options models
type OptionsData struct {
	Options []ffmpeg.Option `json:"options" doc:"Capture input options the camera file may name"`
}

type OptionsResponse struct {
	Body OptionsData
}
