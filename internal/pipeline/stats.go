package pipeline

import (
	"sync"
	"time"

	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/drowsy"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/pkg/types"
)

const alertHistorySize = 8

// Stats tracks pipeline throughput and the latest decision outputs for
// the status API.
type Stats struct {
	startTime time.Time
	targetFPS int

	mu              sync.Mutex
	framesProcessed uint64
	framesDropped   uint64
	alertsTotal     uint64
	lastDecision    drowsy.Decision
	alertHistory    []types.AlertEvent

	// Sliding window of recent frame timestamps for FPS estimation.
	window []time.Time
}

// NewStats creates a Stats tracker for the given target frame rate.
func NewStats(targetFPS int) *Stats {
	return &Stats{
		startTime: time.Now(),
		targetFPS: targetFPS,
	}
}

// RecordFrame registers one processed frame and its decision.
func (s *Stats) RecordFrame(dec drowsy.Decision, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.framesProcessed++
	s.lastDecision = dec

	s.window = append(s.window, now)
	cutoff := now.Add(-5 * time.Second)
	for len(s.window) > 0 && s.window[0].Before(cutoff) {
		s.window = s.window[1:]
	}
}

// RecordDrop registers a frame dropped between capture and processing.
func (s *Stats) RecordDrop() {
	s.mu.Lock()
	s.framesDropped++
	s.mu.Unlock()
}

// RecordAlert stores an alert transition in the bounded history.
func (s *Stats) RecordAlert(event types.AlertEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.Alert {
		s.alertsTotal++
	}
	s.alertHistory = append([]types.AlertEvent{event}, s.alertHistory...)
	if len(s.alertHistory) > alertHistorySize {
		s.alertHistory = s.alertHistory[:alertHistorySize]
	}
}

// Snapshot returns the current monitor stats, decision stats and a copy
// of the recent alert history.
func (s *Stats) Snapshot(cfg drowsy.Config) (types.MonitorStats, types.DrowsyStats, []types.AlertEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	monitor := types.MonitorStats{
		FramesProcessed: s.framesProcessed,
		FramesDropped:   s.framesDropped,
		CurrentFPS:      s.currentFPSLocked(),
		TargetFPS:       s.targetFPS,
		UptimeSeconds:   time.Since(s.startTime).Seconds(),
	}

	decision := types.DrowsyStats{
		AlertActive:         s.lastDecision.Alert,
		LowFrames:           s.lastDecision.LowFrames,
		LastMeanEAR:         s.lastDecision.MeanEAR,
		Faces:               s.lastDecision.Faces,
		AlertsTotal:         s.alertsTotal,
		EARThreshold:        cfg.EARThreshold,
		FrameCheckThreshold: cfg.FrameCheckThreshold,
	}

	history := make([]types.AlertEvent, len(s.alertHistory))
	copy(history, s.alertHistory)

	return monitor, decision, history
}

func (s *Stats) currentFPSLocked() float64 {
	if len(s.window) < 2 {
		return 0
	}
	span := s.window[len(s.window)-1].Sub(s.window[0]).Seconds()
	if span <= 0 {
		return 0
	}
	return float64(len(s.window)-1) / span
}
