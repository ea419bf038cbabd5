// Package webui serves the browser dashboard and the HTTP API: MJPEG
// streaming, status JSON, SSE and websocket alert feeds, runtime
// configuration and snapshots.
package webui

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/drowsy"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/logger"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/metrics"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/pipeline"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/snapshot"
)

// OfferHandler answers WebRTC offers. Implemented by the rtc package.
type OfferHandler interface {
	HandleOffer(offer []byte) ([]byte, error)
	ClientCount() int
}

// Config carries the server's tunables.
type Config struct {
	StatusInterval time.Duration
	FrameSize      [2]int // blank keepalive frame dimensions
}

// Server serves the dashboard and API endpoints.
type Server struct {
	cfg       Config
	monitor   *drowsy.Monitor
	stats     *pipeline.Stats
	frames    *pipeline.FrameBroadcaster
	events    *pipeline.EventBroadcaster
	snapshots *snapshot.Keeper
	rtc       OfferHandler
	met       *metrics.Metrics
	upgrader  websocket.Upgrader
}

// NewServer returns a configured server. snapshots, rtc and met may be nil.
func NewServer(cfg Config, monitor *drowsy.Monitor, stats *pipeline.Stats,
	frames *pipeline.FrameBroadcaster, events *pipeline.EventBroadcaster,
	snapshots *snapshot.Keeper, rtc OfferHandler, met *metrics.Metrics) *Server {

	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = time.Second
	}
	if cfg.FrameSize[0] <= 0 || cfg.FrameSize[1] <= 0 {
		cfg.FrameSize = [2]int{640, 480}
	}

	return &Server{
		cfg:       cfg,
		monitor:   monitor,
		stats:     stats,
		frames:    frames,
		events:    events,
		snapshots: snapshots,
		rtc:       rtc,
		met:       met,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/status/stream", s.handleStatusStream)
	mux.HandleFunc("/api/alerts/stream", s.handleAlertsStream)
	mux.HandleFunc("/ws/alerts", s.handleAlertsWS)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/webrtc/offer", s.handleWebRTCOffer)
	if s.snapshots != nil {
		mux.Handle("/snapshots/", http.StripPrefix("/snapshots/",
			http.FileServer(http.Dir(s.snapshots.Dir()))))
	}

	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"status": "ok"})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.met != nil {
		s.met.StreamClients.Add(1)
		defer s.met.StreamClients.Add(^uint64(0))
	}
	id, frameCh := s.frames.Subscribe()
	defer s.frames.Unsubscribe(id)
	streamMJPEGFromChannel(w, r, frameCh, s.cfg.FrameSize)
}

func (s *Server) statusPayload() map[string]any {
	monitorStats, drowsyStats, history := s.stats.Snapshot(s.monitor.Config())
	payload := map[string]any{
		"monitor":       monitorStats,
		"drowsiness":    drowsyStats,
		"alert_history": history,
		"timestamp":     float64(time.Now().Unix()),
	}
	if s.snapshots != nil {
		payload["snapshots"] = s.snapshots.Status()
	}
	if s.rtc != nil {
		payload["rtc_clients"] = s.rtc.ClientCount()
	}
	return payload
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.statusPayload())
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		if err := writeSSE(w, s.statusPayload()); err != nil {
			return
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) handleAlertsStream(w http.ResponseWriter, r *http.Request) {
	if s.met != nil {
		s.met.EventClients.Add(1)
		defer s.met.EventClients.Add(^uint64(0))
	}

	id, eventCh := s.events.Subscribe()
	defer s.events.Unsubscribe(id)

	// Content negotiation based on Accept header
	accept := r.Header.Get("Accept")
	useProtobuf := strings.Contains(accept, "application/protobuf") ||
		strings.Contains(accept, "application/x-protobuf")

	streamAlertEventsFromChannel(w, r, eventCh, useProtobuf)
}

func (s *Server) handleAlertsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebUI", "Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if s.met != nil {
		s.met.EventClients.Add(1)
		defer s.met.EventClients.Add(^uint64(0))
	}

	id, eventCh := s.events.Subscribe()
	defer s.events.Unsubscribe(id)

	// Drain reads so close frames and pings are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, event.JSONData); err != nil {
				logger.Debug("WebUI", "Websocket client disconnected: %v", err)
				return
			}
		case <-time.After(30 * time.Second):
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// configPayload is the runtime-tunable subset of the decision config.
type configPayload struct {
	EARThreshold        *float64 `json:"ear_threshold"`
	FrameCheckThreshold *int     `json:"frame_check_threshold"`
	TrackFaces          *bool    `json:"track_faces"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeConfig(w)
	case http.MethodPost:
		var payload configPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSONWithStatus(w, map[string]any{"error": "Invalid config data"}, http.StatusBadRequest)
			return
		}

		cfg := s.monitor.Config()
		if payload.EARThreshold != nil {
			if *payload.EARThreshold <= 0 || *payload.EARThreshold >= 1 {
				writeJSONWithStatus(w, map[string]any{"error": "ear_threshold must be in (0, 1)"}, http.StatusBadRequest)
				return
			}
			cfg.EARThreshold = *payload.EARThreshold
		}
		if payload.FrameCheckThreshold != nil {
			if *payload.FrameCheckThreshold < 1 {
				writeJSONWithStatus(w, map[string]any{"error": "frame_check_threshold must be >= 1"}, http.StatusBadRequest)
				return
			}
			cfg.FrameCheckThreshold = *payload.FrameCheckThreshold
		}
		if payload.TrackFaces != nil {
			cfg.TrackFaces = *payload.TrackFaces
		}
		s.monitor.SetConfig(cfg)
		logger.Info("WebUI", "Config updated: threshold=%.3f frames=%d track_faces=%v",
			cfg.EARThreshold, cfg.FrameCheckThreshold, cfg.TrackFaces)
		s.writeConfig(w)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) writeConfig(w http.ResponseWriter) {
	cfg := s.monitor.Config()
	writeJSON(w, map[string]any{
		"ear_threshold":         cfg.EARThreshold,
		"frame_check_threshold": cfg.FrameCheckThreshold,
		"track_faces":           cfg.TrackFaces,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeJSONWithStatus(w, map[string]any{"error": "snapshots disabled"}, http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.snapshots.Status())
	case http.MethodPost:
		// Grab the next annotated frame off the broadcaster.
		id, frameCh := s.frames.Subscribe()
		defer s.frames.Unsubscribe(id)

		select {
		case data, ok := <-frameCh:
			if !ok {
				writeJSONWithStatus(w, map[string]any{"error": "stream stopped"}, http.StatusServiceUnavailable)
				return
			}
			path, err := s.snapshots.Save(data, time.Now())
			if err != nil {
				writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusInternalServerError)
				return
			}
			if s.met != nil {
				s.met.SnapshotsSaved.Add(1)
				s.met.SnapshotBytes.Add(uint64(len(data)))
			}
			writeJSON(w, map[string]any{
				"status":   "saved",
				"file":     path,
				"saved_at": float64(time.Now().Unix()),
			})
		case <-time.After(3 * time.Second):
			writeJSONWithStatus(w, map[string]any{"error": "no frame available"}, http.StatusServiceUnavailable)
		case <-r.Context().Done():
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleWebRTCOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.rtc == nil {
		writeJSONWithStatus(w, map[string]any{"error": "WebRTC disabled"}, http.StatusNotFound)
		return
	}

	offer, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "Invalid offer data"}, http.StatusBadRequest)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(offer, &payload); err != nil || payload["sdp"] == nil || payload["type"] == nil {
		writeJSONWithStatus(w, map[string]any{"error": "Invalid offer data"}, http.StatusBadRequest)
		return
	}

	answer, err := s.rtc.HandleOffer(offer)
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(answer)
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
