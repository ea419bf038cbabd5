// Package config loads daemon settings from the environment, with an
// optional .env file for development setups.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable of the daemon. Values come from DROWSY_*
// environment variables; command-line flags may override them afterwards.
type Config struct {
	// HTTP surfaces
	HTTPAddr    string
	MetricsAddr string
	PprofAddr   string

	// Camera
	Source string // "v4l2" or "synthetic"
	Device string
	Width  int
	Height int
	FPS    int

	// Detection
	CascadeDir          string
	EARThreshold        float64
	FrameCheckThreshold int
	TrackFaces          bool

	// Output
	JPEGQuality     int
	SnapshotDir     string
	SnapshotOnAlert bool
	StatusInterval  time.Duration

	// WebRTC
	MaxRTCClients int
	STUNServers   []string

	// Logging
	LogLevel string
	LogColor bool
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:    getEnv("DROWSY_HTTP_ADDR", ":8000"),
		MetricsAddr: getEnv("DROWSY_METRICS_ADDR", ":9090"),
		PprofAddr:   getEnv("DROWSY_PPROF_ADDR", ""),

		Source: getEnv("DROWSY_SOURCE", "v4l2"),
		Device: getEnv("DROWSY_DEVICE", "/dev/video0"),
		Width:  getEnvInt("DROWSY_WIDTH", 640),
		Height: getEnvInt("DROWSY_HEIGHT", 480),
		FPS:    getEnvInt("DROWSY_FPS", 30),

		CascadeDir:          getEnv("DROWSY_CASCADE_DIR", "cascade"),
		EARThreshold:        getEnvFloat("DROWSY_EAR_THRESHOLD", 0.25),
		FrameCheckThreshold: getEnvInt("DROWSY_FRAME_CHECK", 20),
		TrackFaces:          getEnvBool("DROWSY_TRACK_FACES", false),

		JPEGQuality:     getEnvInt("DROWSY_JPEG_QUALITY", 75),
		SnapshotDir:     getEnv("DROWSY_SNAPSHOT_DIR", "snapshots"),
		SnapshotOnAlert: getEnvBool("DROWSY_SNAPSHOT_ON_ALERT", true),
		StatusInterval:  getEnvDuration("DROWSY_STATUS_INTERVAL", time.Second),

		MaxRTCClients: getEnvInt("DROWSY_MAX_RTC_CLIENTS", 4),
		STUNServers:   getEnvList("DROWSY_STUN_SERVERS", []string{"stun:stun.l.google.com:19302"}),

		LogLevel: getEnv("DROWSY_LOG_LEVEL", "info"),
		LogColor: getEnvBool("DROWSY_LOG_COLOR", true),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
