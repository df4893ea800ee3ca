// Package ptz implements the PTZ controller: hysteresis, rate limiting,
// zoom state, idle return, and preset sweep, per spec.md §4.5. The
// device transport is narrowed to the Device interface below so the
// controller's control logic can be tested against a fake, the same way
// the teacher tests tracker.go's matching logic against fake detections
// rather than a real camera (tracker/tracker_test.go).
package ptz

import "context"

// Position is a normalized camera position: pan/tilt in [-1, 1], zoom
// in [0, 1], per spec.md §3.
type Position struct {
	Pan, Tilt, Zoom float64
}

// Preset is a device-stored position addressable by token, in the
// fixed order the device enumerates them (spec.md §3).
type Preset struct {
	Token       string
	DisplayName string
	Position    Position
}

// Status is what GetStatus reports back from the device.
type Status struct {
	Position  Position
	IsMoving  bool // open question (b): the source never derives this; see Controller.CurrentState.
}

// Device is the narrow PTZ device protocol surface this package
// depends on: absolute/relative/continuous move, stop, status, and
// presets (spec.md §6.2). A concrete ONVIF/Hikvision-style HTTP client
// implementing this interface lives in onvif_device.go.
type Device interface {
	AbsoluteMove(ctx context.Context, pos Position) error
	RelativeMove(ctx context.Context, panOffset, tiltOffset, zoomOffset float64) error
	ContinuousMove(ctx context.Context, panVel, tiltVel, zoomVel float64) error
	Stop(ctx context.Context) error
	GetStatus(ctx context.Context) (Status, error)
	GetPresets(ctx context.Context) ([]Preset, error)
	GotoPreset(ctx context.Context, token string) error
}
