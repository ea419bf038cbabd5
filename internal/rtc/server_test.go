package rtc

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/pipeline"
)

// localOffer builds a real SDP offer with an "alerts" data channel,
// without any network activity.
func localOffer(t *testing.T) []byte {
	t.Helper()

	peer, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection: %v", err)
	}
	t.Cleanup(func() { peer.Close() })

	if _, err := peer.CreateDataChannel("alerts", nil); err != nil {
		t.Fatalf("CreateDataChannel: %v", err)
	}
	offer, err := peer.CreateOffer(nil)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	data, err := json.Marshal(offer)
	if err != nil {
		t.Fatalf("marshal offer: %v", err)
	}
	return data
}

func TestHandleOfferRejectsGarbage(t *testing.T) {
	s := NewServer(nil, 4, pipeline.NewEventBroadcaster(), nil)
	defer s.Close()

	if _, err := s.HandleOffer([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
	if s.ClientCount() != 0 {
		t.Errorf("ClientCount = %d after rejected offer", s.ClientCount())
	}
}

func TestHandleOfferEnforcesClientLimit(t *testing.T) {
	s := NewServer(nil, 0, pipeline.NewEventBroadcaster(), nil)
	defer s.Close()

	if _, err := s.HandleOffer(localOffer(t)); err == nil {
		t.Fatal("expected client limit error")
	}
}

func TestRemoveUnknownClientIsNoop(t *testing.T) {
	s := NewServer(nil, 4, pipeline.NewEventBroadcaster(), nil)
	defer s.Close()

	s.RemoveClient("client-does-not-exist")
	if s.ClientCount() != 0 {
		t.Errorf("ClientCount = %d", s.ClientCount())
	}
}
