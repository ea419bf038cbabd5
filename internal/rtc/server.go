// Package rtc pushes alert events to browsers over a WebRTC data
// channel, for clients that want lower latency than SSE offers.
package rtc

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/logger"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/metrics"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/pipeline"
)

// Client represents a connected WebRTC peer.
type Client struct {
	id         string
	peerConn   *webrtc.PeerConnection
	closeChan  chan struct{}
	closeOnce  sync.Once
	eventsSent uint64
}

// Server manages WebRTC peers subscribed to the alert feed.
type Server struct {
	clients    map[string]*Client
	clientsMu  sync.RWMutex
	config     webrtc.Configuration
	maxClients int
	api        *webrtc.API
	events     *pipeline.EventBroadcaster
	met        *metrics.Metrics
}

// NewServer creates a WebRTC server that forwards alert events from
// events to each connected peer's "alerts" data channel. met may be nil.
func NewServer(stunServers []string, maxClients int, events *pipeline.EventBroadcaster, met *metrics.Metrics) *Server {
	iceServers := make([]webrtc.ICEServer, 0, len(stunServers))
	for _, url := range stunServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs: []string{url},
		})
	}
	if len(iceServers) == 0 {
		iceServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}

	settingsEngine := webrtc.SettingEngine{}
	settingsEngine.SetDTLSRetransmissionInterval(time.Second * 2)
	settingsEngine.SetNetworkTypes([]webrtc.NetworkType{
		webrtc.NetworkTypeUDP4,
		webrtc.NetworkTypeUDP6,
	})

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingsEngine))

	return &Server{
		clients: make(map[string]*Client),
		config: webrtc.Configuration{
			ICEServers: iceServers,
		},
		maxClients: maxClients,
		api:        api,
		events:     events,
		met:        met,
	}
}

// HandleOffer handles a WebRTC offer and returns an answer.
func (s *Server) HandleOffer(offerJSON []byte) ([]byte, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(offerJSON, &offer); err != nil {
		return nil, fmt.Errorf("failed to parse offer: %w", err)
	}

	s.clientsMu.RLock()
	numClients := len(s.clients)
	s.clientsMu.RUnlock()

	if numClients >= s.maxClients {
		return nil, fmt.Errorf("maximum clients reached (%d)", s.maxClients)
	}

	peerConn, err := s.api.NewPeerConnection(s.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	client := &Client{
		id:        generateClientID(),
		peerConn:  peerConn,
		closeChan: make(chan struct{}),
	}

	// The browser opens the "alerts" channel; we start forwarding when
	// it arrives.
	peerConn.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != "alerts" {
			logger.Debug("WebRTC", "Client %s opened unknown channel %q, ignoring", client.id, dc.Label())
			return
		}
		dc.OnOpen(func() {
			logger.Info("WebRTC", "Client %s alert channel open", client.id)
			go s.forwardEvents(client, dc)
		})
	})

	peerConn.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		logger.Debug("WebRTC", "Client %s ICE state: %s", client.id, state.String())

		if state == webrtc.ICEConnectionStateDisconnected ||
			state == webrtc.ICEConnectionStateFailed ||
			state == webrtc.ICEConnectionStateClosed {
			logger.Info("WebRTC", "Client %s connection lost (ICE: %s), removing...", client.id, state.String())
			s.RemoveClient(client.id)
		}
	})

	peerConn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Debug("WebRTC", "Client %s connection state: %s", client.id, state.String())

		if state == webrtc.PeerConnectionStateDisconnected ||
			state == webrtc.PeerConnectionStateFailed ||
			state == webrtc.PeerConnectionStateClosed {
			logger.Info("WebRTC", "Client %s connection lost (Peer: %s), removing...", client.id, state.String())
			s.RemoveClient(client.id)
		}
	})

	if err := peerConn.SetRemoteDescription(offer); err != nil {
		peerConn.Close()
		return nil, fmt.Errorf("failed to set remote description: %w", err)
	}

	answer, err := peerConn.CreateAnswer(nil)
	if err != nil {
		peerConn.Close()
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(peerConn)

	if err := peerConn.SetLocalDescription(answer); err != nil {
		peerConn.Close()
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}

	// Wait for ICE gathering so the answer carries all candidates.
	<-gatherComplete
	logger.Debug("WebRTC", "ICE gathering complete for client %s", client.id)

	s.clientsMu.Lock()
	s.clients[client.id] = client
	n := len(s.clients)
	s.clientsMu.Unlock()

	if s.met != nil {
		s.met.RTCClients.Store(uint64(n))
	}
	logger.Info("WebRTC", "Client %s connected", client.id)

	localDesc := peerConn.LocalDescription()
	if localDesc == nil {
		return nil, fmt.Errorf("no local description available")
	}

	answerJSON, err := json.Marshal(localDesc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal answer: %w", err)
	}

	return answerJSON, nil
}

// forwardEvents relays alert events to one client's data channel until
// the client goes away.
func (s *Server) forwardEvents(client *Client, dc *webrtc.DataChannel) {
	id, eventCh := s.events.Subscribe()
	defer s.events.Unsubscribe(id)

	for {
		select {
		case <-client.closeChan:
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if err := dc.SendText(string(event.JSONData)); err != nil {
				logger.Warn("WebRTC", "Error sending event to client %s: %v", client.id, err)
				return
			}
			client.eventsSent++
		}
	}
}

// RemoveClient removes a client by ID.
func (s *Server) RemoveClient(clientID string) {
	s.clientsMu.Lock()
	client, exists := s.clients[clientID]
	if exists {
		delete(s.clients, clientID)
	}
	n := len(s.clients)
	s.clientsMu.Unlock()

	if !exists {
		return
	}
	if s.met != nil {
		s.met.RTCClients.Store(uint64(n))
	}

	client.closeOnce.Do(func() { close(client.closeChan) })
	client.peerConn.Close()

	logger.Info("WebRTC", "Client %s disconnected (events sent: %d)", clientID, client.eventsSent)
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Close closes all client connections.
func (s *Server) Close() error {
	s.clientsMu.RLock()
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	s.clientsMu.RUnlock()

	for _, id := range ids {
		s.RemoveClient(id)
	}
	return nil
}

func generateClientID() string {
	return fmt.Sprintf("client-%d", time.Now().UnixNano())
}
