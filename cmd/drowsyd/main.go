package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // Enable pprof
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/camera"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/config"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/drowsy"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/landmark"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/logger"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/metrics"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/pipeline"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/rtc"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/snapshot"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/webui"
)

// Server wires the camera pipeline to the HTTP surfaces.
type Server struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg        *config.Config
	metrics    *metrics.Metrics
	source     camera.Source
	detector   *landmark.Swappable
	monitor    *drowsy.Monitor
	stats      *pipeline.Stats
	frames     *pipeline.FrameBroadcaster
	events     *pipeline.EventBroadcaster
	snapshots  *snapshot.Keeper
	pipe       *pipeline.Pipeline
	rtcServer  *rtc.Server
	httpServer *http.Server
}

func main() {
	cfg := config.Load()

	// Flags override the environment.
	flag.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP server address")
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Metrics server address")
	flag.StringVar(&cfg.PprofAddr, "pprof", cfg.PprofAddr, "pprof server address (empty to disable)")
	flag.StringVar(&cfg.Source, "source", cfg.Source, "Camera source (v4l2, synthetic)")
	flag.StringVar(&cfg.Device, "device", cfg.Device, "V4L2 device path")
	flag.IntVar(&cfg.Width, "width", cfg.Width, "Frame width")
	flag.IntVar(&cfg.Height, "height", cfg.Height, "Frame height")
	flag.IntVar(&cfg.FPS, "fps", cfg.FPS, "Target frame rate")
	flag.StringVar(&cfg.CascadeDir, "cascades", cfg.CascadeDir, "Cascade file directory")
	flag.Float64Var(&cfg.EARThreshold, "ear-threshold", cfg.EARThreshold, "Eye aspect ratio alert threshold")
	flag.IntVar(&cfg.FrameCheckThreshold, "frame-check", cfg.FrameCheckThreshold, "Consecutive low-EAR frames before alerting")
	flag.BoolVar(&cfg.TrackFaces, "track-faces", cfg.TrackFaces, "Track per-face counters instead of one shared counter")
	flag.IntVar(&cfg.JPEGQuality, "jpeg-quality", cfg.JPEGQuality, "Stream JPEG quality (1-100)")
	flag.StringVar(&cfg.SnapshotDir, "snapshot-dir", cfg.SnapshotDir, "Alert snapshot directory")
	flag.BoolVar(&cfg.SnapshotOnAlert, "snapshot-on-alert", cfg.SnapshotOnAlert, "Save a snapshot when an alert fires")
	flag.IntVar(&cfg.MaxRTCClients, "max-rtc-clients", cfg.MaxRTCClients, "Maximum WebRTC clients")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error, silent)")
	flag.BoolVar(&cfg.LogColor, "log-color", cfg.LogColor, "Enable colored log output")
	flag.Parse()

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, cfg.LogColor)

	logger.Info("Main", "Drowsiness monitor starting...")
	logger.Info("Main", "Log level: %s", level)

	srv, err := NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Main", "Shutting down...")

	if err := srv.Shutdown(); err != nil {
		logger.Error("Main", "Error during shutdown: %v", err)
	}

	logger.Info("Main", "Server stopped")
}

// NewServer builds all components from the configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	m := metrics.New()

	settings := camera.Settings{
		Device: cfg.Device,
		Width:  cfg.Width,
		Height: cfg.Height,
		FPS:    cfg.FPS,
	}

	var source camera.Source
	var err error
	switch strings.ToLower(cfg.Source) {
	case "synthetic":
		source = camera.NewSynthetic(settings)
	case "v4l2", "":
		source, err = camera.OpenV4L2(settings)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to open camera %s: %w", cfg.Device, err)
		}
	default:
		cancel()
		return nil, fmt.Errorf("unknown camera source %q", cfg.Source)
	}

	pigoCfg := landmark.DefaultPigoConfig(cfg.CascadeDir)
	det, err := landmark.NewPigoDetector(pigoCfg)
	if err != nil {
		cancel()
		source.Close()
		return nil, fmt.Errorf("failed to load cascades from %s: %w", cfg.CascadeDir, err)
	}
	detector := landmark.NewSwappable(det)

	monitor := drowsy.NewMonitor(drowsy.Config{
		EARThreshold:        cfg.EARThreshold,
		FrameCheckThreshold: cfg.FrameCheckThreshold,
		TrackFaces:          cfg.TrackFaces,
	})

	keeper, err := snapshot.NewKeeper(cfg.SnapshotDir, cfg.SnapshotOnAlert)
	if err != nil {
		cancel()
		source.Close()
		return nil, err
	}

	stats := pipeline.NewStats(cfg.FPS)
	frames := pipeline.NewFrameBroadcaster()
	events := pipeline.NewEventBroadcaster()

	pipe := pipeline.New(pipeline.Options{
		Source:      source,
		Detector:    detector,
		Monitor:     monitor,
		Frames:      frames,
		Events:      events,
		Stats:       stats,
		Metrics:     m,
		Snapshots:   keeper,
		JPEGQuality: cfg.JPEGQuality,
	})

	rtcServer := rtc.NewServer(cfg.STUNServers, cfg.MaxRTCClients, events, m)

	ui := webui.NewServer(webui.Config{
		StatusInterval: cfg.StatusInterval,
		FrameSize:      [2]int{cfg.Width, cfg.Height},
	}, monitor, stats, frames, events, keeper, rtcServer, m)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: ui.Handler(),
	}

	return &Server{
		ctx:        ctx,
		cancel:     cancel,
		cfg:        cfg,
		metrics:    m,
		source:     source,
		detector:   detector,
		monitor:    monitor,
		stats:      stats,
		frames:     frames,
		events:     events,
		snapshots:  keeper,
		pipe:       pipe,
		rtcServer:  rtcServer,
		httpServer: httpServer,
	}, nil
}

// Start launches the pipeline, HTTP surfaces and the cascade watcher.
func (s *Server) Start() error {
	logger.Info("Main", "  Camera: %s (%s %dx%d @ %d fps)",
		s.cfg.Source, s.cfg.Device, s.cfg.Width, s.cfg.Height, s.cfg.FPS)
	logger.Info("Main", "  HTTP server: %s", s.cfg.HTTPAddr)
	logger.Info("Main", "  Metrics server: %s", s.cfg.MetricsAddr)
	logger.Info("Main", "  Cascades: %s", s.cfg.CascadeDir)
	logger.Info("Main", "  Snapshots: %s (on alert: %v)", s.cfg.SnapshotDir, s.cfg.SnapshotOnAlert)
	logger.Info("Main", "  Alerting: EAR < %.3f for %d frames",
		s.cfg.EARThreshold, s.cfg.FrameCheckThreshold)

	if s.cfg.PprofAddr != "" {
		go func() {
			logger.Info("Main", "Starting pprof server on %s", s.cfg.PprofAddr)
			if err := http.ListenAndServe(s.cfg.PprofAddr, nil); err != nil {
				logger.Error("Main", "pprof server error: %v", err)
			}
		}()
	}

	go func() {
		logger.Info("Main", "Starting metrics server on %s", s.cfg.MetricsAddr)
		if err := s.metrics.StartServer(s.cfg.MetricsAddr); err != nil {
			logger.Error("Main", "Metrics server error: %v", err)
		}
	}()

	go func() {
		logger.Info("Main", "Starting HTTP server on %s", s.cfg.HTTPAddr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("Main", "HTTP server error: %v", err)
		}
	}()

	// Hot-reload cascades when the files change on disk.
	go func() {
		if err := landmark.WatchCascades(s.ctx, s.detector, landmark.DefaultPigoConfig(s.cfg.CascadeDir)); err != nil {
			logger.Warn("Main", "Cascade watcher stopped: %v", err)
		}
	}()

	s.pipe.Start(s.ctx)

	logger.Info("Main", "Server started successfully")
	return nil
}

// Shutdown stops the pipeline and HTTP surfaces in order.
func (s *Server) Shutdown() error {
	s.cancel()

	// Unblocks a capture loop waiting on the camera.
	if err := s.source.Close(); err != nil {
		logger.Warn("Main", "Camera close error: %v", err)
	}

	s.pipe.Stop()
	s.frames.Stop()
	s.events.Stop()
	s.rtcServer.Close()

	if err := s.detector.Close(); err != nil {
		logger.Warn("Main", "Detector close error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
