package bus

import (
	"time"

	"github.com/anprsight/vision-core/internal/detect"
	"github.com/anprsight/vision-core/internal/geometry"
	"github.com/anprsight/vision-core/internal/tracker"
)

// DetectionEvent is the payload of the detections topic (spec.md §6).
type DetectionEvent struct {
	EventID      string             `json:"event_id"`
	Timestamp    time.Time          `json:"timestamp"`
	FrameNumber  int64              `json:"frame_number"`
	Box          geometry.Box       `json:"box"`
	Class        detect.VehicleClass `json:"class"`
	Confidence   float64            `json:"confidence"`
	FrameWidth   int                `json:"frame_w"`
	FrameHeight  int                `json:"frame_h"`
}

// TrackingEvent is the payload of the tracking topic.
type TrackingEvent struct {
	EventID     string              `json:"event_id"`
	Timestamp   time.Time           `json:"timestamp"`
	TrackID     int                 `json:"track_id"`
	FrameNumber int64               `json:"frame_number"`
	Box         geometry.Box        `json:"box"`
	Class       detect.VehicleClass `json:"class"`
	Confidence  float64             `json:"confidence"`
	Velocity    tracker.Velocity    `json:"velocity"`
	Trajectory  []tracker.Point     `json:"trajectory"`
	Age         int                 `json:"age"`
	Hits        int                 `json:"hits"`
}

// PTZCommandKind enumerates the ptz.commands payload's command field.
type PTZCommandKind string

const (
	CommandMoveAbsolute PTZCommandKind = "move_absolute"
	CommandMoveRelative PTZCommandKind = "move_relative"
	CommandZoom         PTZCommandKind = "zoom"
	CommandGotoPreset   PTZCommandKind = "goto_preset"
	CommandStop         PTZCommandKind = "stop"
)

// PTZCommandEvent is the payload of the ptz.commands topic. Pan/Tilt/
// Zoom/PresetID/TargetTrackID are optional depending on Command.
type PTZCommandEvent struct {
	EventID       string         `json:"event_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Command       PTZCommandKind `json:"command"`
	Pan           *float64       `json:"pan,omitempty"`
	Tilt          *float64       `json:"tilt,omitempty"`
	Zoom          *float64       `json:"zoom,omitempty"`
	PresetID      string         `json:"preset_id,omitempty"`
	TargetTrackID *int           `json:"target_track_id,omitempty"`
}

// PTZStatusEvent is the payload of the ptz.status topic.
type PTZStatusEvent struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	Pan       float64   `json:"pan"`
	Tilt      float64   `json:"tilt"`
	Zoom      float64   `json:"zoom"`
	IsMoving  bool      `json:"is_moving"`
}

// ANPRRequestEvent is the payload of the anpr.requests topic.
type ANPRRequestEvent struct {
	RequestID   string       `json:"request_id"`
	Timestamp   time.Time    `json:"timestamp"`
	TrackID     int          `json:"track_id"`
	FrameNumber int64        `json:"frame_number"`
	CropPath    string       `json:"crop_path"`
	PlateBox    geometry.Box `json:"plate_box"`
	VehicleBox  geometry.Box `json:"vehicle_box"`
	Class       detect.VehicleClass `json:"class"`
}

// ANPRResultEvent is the payload of the anpr.results topic.
type ANPRResultEvent struct {
	EventID       string    `json:"event_id"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id"`
	TrackID       int       `json:"track_id"`
	PlateText     string    `json:"plate_text"`
	Confidence    float64   `json:"confidence"`
	CropPath      string    `json:"crop_path"`
	Validated     bool      `json:"validated"`
	RawDetections []string  `json:"raw_detections"`
}

// Severity enumerates the system topic's severity field.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// SystemEvent is the payload of the system topic, publishable by any
// component.
type SystemEvent struct {
	ServiceName string            `json:"service_name"`
	EventType   string            `json:"event_type"`
	Message     string            `json:"message"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Severity    Severity          `json:"severity"`
}
