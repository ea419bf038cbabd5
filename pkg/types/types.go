package types

import (
	"image"
	"time"
)

// Frame is one decoded camera frame moving through the pipeline.
type Frame struct {
	Image     *image.RGBA // Decoded pixels, owned by the pipeline after Next returns
	Number    uint64      // Sequential frame number, starts at 1
	Timestamp time.Time   // Capture timestamp
}

// AlertEvent is the JSON shape pushed to SSE, websocket and WebRTC clients
// whenever the drowsiness alert changes state.
type AlertEvent struct {
	FrameNumber uint64  `json:"frame_number"`
	Timestamp   float64 `json:"timestamp"`
	Alert       bool    `json:"alert"`
	MeanEAR     float64 `json:"mean_ear"`
	LowFrames   int     `json:"low_frames"`
	Faces       int     `json:"faces"`
}

// MonitorStats mirrors the status JSON served by the original Flask demo.
type MonitorStats struct {
	FramesProcessed uint64  `json:"frames_processed"`
	FramesDropped   uint64  `json:"frames_dropped"`
	CurrentFPS      float64 `json:"current_fps"`
	TargetFPS       int     `json:"target_fps"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// DrowsyStats is the decision-side half of the status payload.
type DrowsyStats struct {
	AlertActive         bool    `json:"alert_active"`
	LowFrames           int     `json:"low_frames"`
	LastMeanEAR         float64 `json:"last_mean_ear"`
	Faces               int     `json:"faces"`
	AlertsTotal         uint64  `json:"alerts_total"`
	EARThreshold        float64 `json:"ear_threshold"`
	FrameCheckThreshold int     `json:"frame_check_threshold"`
}
