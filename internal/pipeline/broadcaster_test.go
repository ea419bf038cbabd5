package pipeline

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/pkg/types"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestFrameBroadcasterFanout(t *testing.T) {
	fb := NewFrameBroadcaster()
	defer fb.Stop()

	id1, ch1 := fb.Subscribe()
	id2, ch2 := fb.Subscribe()
	defer fb.Unsubscribe(id1)
	defer fb.Unsubscribe(id2)

	if fb.ClientCount() != 2 {
		t.Fatalf("ClientCount = %d, want 2", fb.ClientCount())
	}

	fb.Publish([]byte("frame-1"))

	for i, ch := range []<-chan []byte{ch1, ch2} {
		select {
		case data := <-ch:
			if string(data) != "frame-1" {
				t.Errorf("client %d got %q", i, data)
			}
		default:
			t.Errorf("client %d received nothing", i)
		}
	}
}

func TestFrameBroadcasterSlowClientDropsFrames(t *testing.T) {
	fb := NewFrameBroadcaster()
	defer fb.Stop()

	id, ch := fb.Subscribe()
	defer fb.Unsubscribe(id)

	// Channel buffer is 2; the rest must be dropped, not block.
	for i := 0; i < 10; i++ {
		fb.Publish([]byte{byte(i)})
	}

	var received int
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	if received != 2 {
		t.Errorf("slow client received %d frames, want 2", received)
	}
}

func TestFrameBroadcasterUnsubscribeClosesChannel(t *testing.T) {
	fb := NewFrameBroadcaster()
	defer fb.Stop()

	id, ch := fb.Subscribe()
	fb.Unsubscribe(id)

	if _, open := <-ch; open {
		t.Error("channel still open after Unsubscribe")
	}
	// Double unsubscribe is a no-op.
	fb.Unsubscribe(id)
	if fb.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", fb.ClientCount())
	}
}

func TestFrameBroadcasterStop(t *testing.T) {
	fb := NewFrameBroadcaster()
	_, ch := fb.Subscribe()

	fb.Stop()
	fb.Stop() // idempotent

	if _, open := <-ch; open {
		t.Error("channel still open after Stop")
	}
	fb.Publish([]byte("late")) // must not panic
}

func TestEventBroadcasterFanout(t *testing.T) {
	eb := NewEventBroadcaster()
	defer eb.Stop()

	id, ch := eb.Subscribe()
	defer eb.Unsubscribe(id)

	event := types.AlertEvent{
		FrameNumber: 42,
		Timestamp:   1756166400.5,
		Alert:       true,
		MeanEAR:     0.19,
		LowFrames:   20,
		Faces:       1,
	}
	eb.Publish(event)

	var se *SerializedEvent
	select {
	case se = <-ch:
	default:
		t.Fatal("no event received")
	}

	if se.Event != event {
		t.Errorf("Event = %+v, want %+v", se.Event, event)
	}

	var decoded types.AlertEvent
	if err := json.Unmarshal(se.JSONData, &decoded); err != nil {
		t.Fatalf("unmarshal JSONData: %v", err)
	}
	if decoded != event {
		t.Errorf("JSON round-trip = %+v, want %+v", decoded, event)
	}
}

func TestSerializeEventProtobufPayload(t *testing.T) {
	event := types.AlertEvent{FrameNumber: 7, Alert: true, MeanEAR: 0.21, LowFrames: 3, Faces: 2}

	se, err := SerializeEvent(event)
	if err != nil {
		t.Fatalf("SerializeEvent: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(string(se.ProtobufData))
	if err != nil {
		t.Fatalf("protobuf payload is not base64: %v", err)
	}

	var st structpb.Struct
	if err := proto.Unmarshal(raw, &st); err != nil {
		t.Fatalf("protobuf unmarshal: %v", err)
	}
	fields := st.GetFields()
	if got := fields["frame_number"].GetNumberValue(); got != 7 {
		t.Errorf("frame_number = %v, want 7", got)
	}
	if !fields["alert"].GetBoolValue() {
		t.Error("alert field should be true")
	}
	if got := fields["mean_ear"].GetNumberValue(); got != 0.21 {
		t.Errorf("mean_ear = %v, want 0.21", got)
	}
}
