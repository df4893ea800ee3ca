package bus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anprsight/vision-core/internal/detect"
	"github.com/anprsight/vision-core/internal/geometry"
	"github.com/anprsight/vision-core/internal/tracker"
)

// TestPayloadJSONRoundTrip covers spec.md §8's "JSON encode/decode of
// every event payload is identity" round-trip for all seven topics.
func TestPayloadJSONRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	pan, zoom := 0.25, 0.5
	trackID := 7

	cases := []any{
		DetectionEvent{
			EventID: "e1", Timestamp: now, FrameNumber: 42,
			Box: geometry.NewBox(1, 2, 3, 4), Class: detect.ClassCar,
			Confidence: 0.9, FrameWidth: 1920, FrameHeight: 1080,
		},
		TrackingEvent{
			EventID: "e2", Timestamp: now, TrackID: 1, FrameNumber: 3,
			Box: geometry.NewBox(1, 2, 3, 4), Class: detect.ClassTruck,
			Confidence: 0.8, Velocity: tracker.Velocity{VX: 1, VY: 2},
			Trajectory: []tracker.Point{{X: 1, Y: 1}, {X: 2, Y: 2}},
			Age: 5, Hits: 3,
		},
		PTZCommandEvent{
			EventID: "e3", Timestamp: now, Command: CommandMoveRelative,
			Pan: &pan, Zoom: &zoom, TargetTrackID: &trackID,
		},
		PTZStatusEvent{EventID: "e4", Timestamp: now, Pan: 0.1, Tilt: -0.1, Zoom: 0.5, IsMoving: true},
		ANPRRequestEvent{
			RequestID: "r1", Timestamp: now, TrackID: 1, FrameNumber: 9,
			CropPath: "/tmp/plate_crops/track_1_frame_9.jpg",
			PlateBox: geometry.NewBox(0, 0, 10, 5), VehicleBox: geometry.NewBox(0, 0, 100, 50),
			Class: detect.ClassBus,
		},
		ANPRResultEvent{
			EventID: "e5", Timestamp: now, RequestID: "r1", TrackID: 1,
			PlateText: "ABC123", Confidence: 0.95, CropPath: "/tmp/x.jpg",
			Validated: true, RawDetections: []string{"ABC123", "ABCL23"},
		},
		SystemEvent{
			ServiceName: "vision-core", EventType: "startup", Message: "ready",
			Metadata: map[string]string{"version": "1.0"}, Severity: SeverityInfo,
		},
	}

	for _, original := range cases {
		data, err := json.Marshal(original)
		require.NoError(t, err)

		decoded := newZeroOf(original)
		require.NoError(t, json.Unmarshal(data, decoded))

		data2, err := json.Marshal(decoded)
		require.NoError(t, err)
		require.JSONEq(t, string(data), string(data2))
	}
}

func newZeroOf(v any) any {
	switch v.(type) {
	case DetectionEvent:
		return &DetectionEvent{}
	case TrackingEvent:
		return &TrackingEvent{}
	case PTZCommandEvent:
		return &PTZCommandEvent{}
	case PTZStatusEvent:
		return &PTZStatusEvent{}
	case ANPRRequestEvent:
		return &ANPRRequestEvent{}
	case ANPRResultEvent:
		return &ANPRResultEvent{}
	case SystemEvent:
		return &SystemEvent{}
	default:
		panic("unhandled payload type in test")
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	payload := SystemEvent{ServiceName: "vision-core", EventType: "x", Message: "y", Severity: SeverityWarning}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	env := Envelope{EventID: "abc", Timestamp: time.Now().UTC(), Topic: TopicSystem, Payload: raw}
	data, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, env.EventID, decoded.EventID)
	require.Equal(t, env.Topic, decoded.Topic)

	var decodedPayload SystemEvent
	require.NoError(t, json.Unmarshal(decoded.Payload, &decodedPayload))
	require.Equal(t, payload, decodedPayload)
}
