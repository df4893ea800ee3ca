// Package orchestrator implements the Pipeline Orchestrator of
// spec.md §4.6: the main per-frame loop tying ingest, detection,
// tracking, prioritization, plate proposal, and PTZ control together,
// publishing events along the way. The loop shape is the teacher's
// run() method (object_tracker.go): select on ctx.Done, else do one
// iteration of work, then pace to the configured frequency.
package orchestrator

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/anprsight/vision-core/internal/bus"
	"github.com/anprsight/vision-core/internal/detect"
	"github.com/anprsight/vision-core/internal/geometry"
	"github.com/anprsight/vision-core/internal/ingest"
	"github.com/anprsight/vision-core/internal/logging"
	"github.com/anprsight/vision-core/internal/plate"
	"github.com/anprsight/vision-core/internal/prioritize"
	"github.com/anprsight/vision-core/internal/ptz"
	"github.com/anprsight/vision-core/internal/store"
	"github.com/anprsight/vision-core/internal/tracker"
)

// Detector is the external object-detector collaborator, specified
// only at its boundary by spec.md: given a decoded frame, return the
// raw per-frame detections.
type Detector interface {
	Detect(ctx context.Context, frameWidth, frameHeight int, frameData []byte) ([]detect.Detection, error)
}

// Config configures one Orchestrator instance.
type Config struct {
	MaxFrequencyHz float64
	FrameTimeout   time.Duration
}

// Orchestrator wires one camera's end-to-end pipeline.
type Orchestrator struct {
	cfg Config

	stream     *ingest.Stream
	detector   Detector
	tracker    *tracker.Tracker
	prioritize *prioritize.Prioritizer
	proposer   *plate.Proposer
	controller *ptz.Controller
	store      *store.Store
	eventBus   *bus.Bus
	logger     logging.Logger

	hasCurrentTarget bool
	currentTargetID  int
}

// New constructs an Orchestrator from its already-constructed
// collaborators (Design Note: no global singleton wiring).
func New(
	cfg Config,
	stream *ingest.Stream,
	detector Detector,
	trk *tracker.Tracker,
	prio *prioritize.Prioritizer,
	proposer *plate.Proposer,
	controller *ptz.Controller,
	st *store.Store,
	eventBus *bus.Bus,
	logger logging.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg: cfg, stream: stream, detector: detector, tracker: trk,
		prioritize: prio, proposer: proposer, controller: controller,
		store: st, eventBus: eventBus, logger: logger,
	}
}

// Run blocks, executing the main loop until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	period := time.Second
	if o.cfg.MaxFrequencyHz > 0 {
		period = time.Duration(float64(time.Second) / o.cfg.MaxFrequencyHz)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		start := time.Now()
		if err := o.step(ctx); err != nil {
			o.logger.Errorw("pipeline iteration failed", "err", err)
		}

		if wait := period - time.Since(start); wait > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
		}
	}
}

// step runs the eight numbered steps of spec.md §4.6 for one frame.
func (o *Orchestrator) step(ctx context.Context) error {
	timeout := o.cfg.FrameTimeout
	if timeout <= 0 {
		timeout = 200 * time.Millisecond
	}
	frame, err := o.stream.Read(timeout)
	if err != nil {
		return nil // transient I/O, swallow per spec.md §7
	}
	defer frame.Close()

	frameW, frameH := frame.Mat.Cols(), frame.Mat.Rows()
	frameData := frame.Mat.ToBytes()

	// 1. Run detection (external).
	detections, err := o.detector.Detect(ctx, frameW, frameH, frameData)
	if err != nil {
		return errors.Wrap(err, "running detector")
	}

	// 2. Feed detections to the tracker; emit one tracking event per
	// confirmed track.
	confirmed := o.tracker.Update(detections)
	for _, tr := range confirmed {
		o.publishTracking(tr, frame.Seq)
	}
	for _, det := range detections {
		o.publishDetection(det, frame.Seq, frameW, frameH)
	}

	// 3. Invoke prioritizer on the confirmed set.
	target, ok := o.prioritize.Select(confirmed, float64(frameW), float64(frameH))
	if !ok {
		// 8. No target: clear the current-target memory.
		o.hasCurrentTarget = false
		return nil
	}

	// 4. On target change, reset plate-proposer stability for the new id.
	if !o.hasCurrentTarget || o.currentTargetID != target.ID {
		o.proposer.ResetStability(target.ID)
		o.hasCurrentTarget = true
		o.currentTargetID = target.ID
	}

	// 5. Estimate plate region; check readiness.
	region, verdict := o.proposer.Propose(target.ID, target.Box)

	if verdict.Ready {
		// 6. Crop, persist, emit an OCR request, mark_tracked.
		return o.onCaptureReady(ctx, target, region, frame.Mat, frame.Seq)
	}

	// 7. Not ready: point/zoom toward the target. spec.md's External
	// Interfaces table names ptz.commands (Producer=vision) as the
	// boundary between this service and the PTZ controller; the
	// combined move_relative shape (pan, tilt, zoom, target_track_id in
	// one event) mirrors the original vision-service's PTZEvent
	// (original_source/services/vision-service/main.py). This service
	// also owns the controller in-process for a single-camera
	// deployment, so it drives it directly in addition to publishing.
	cx, cy := target.Box.Center()
	o.publishPTZCommand(bus.CommandMoveRelative, cx, cy, verdict.Zoom, target.ID)
	o.controller.PointToTarget(ctx, cx, cy, float64(frameW), float64(frameH), target.ID)
	o.controller.ZoomByFactor(ctx, verdict.Zoom, target.ID)
	return nil
}

// publishPTZCommand publishes a PTZCommandEvent on ptz.commands. pan and
// tilt are frame-pixel coordinates for CommandMoveRelative; callers
// needing a different command shape build the event directly.
func (o *Orchestrator) publishPTZCommand(kind bus.PTZCommandKind, pan, tilt, zoom float64, trackID int) {
	if o.eventBus == nil {
		return
	}
	if err := o.eventBus.Publish(bus.TopicPTZCommands, bus.PTZCommandEvent{
		EventID:       randomRequestID(),
		Timestamp:     time.Now(),
		Command:       kind,
		Pan:           &pan,
		Tilt:          &tilt,
		Zoom:          &zoom,
		TargetTrackID: &trackID,
	}); err != nil {
		o.logger.Errorw("publishing ptz command failed", "err", err)
	}
}

func (o *Orchestrator) onCaptureReady(ctx context.Context, target tracker.Track, region geometry.Box, sourceFrame gocv.Mat, frameSeq int64) error {
	crop, err := cropRegion(sourceFrame, region)
	if err != nil {
		return errors.Wrap(err, "cropping plate region")
	}
	defer crop.Close()

	path, err := o.store.SaveCrop(ctx, target.ID, frameSeq, crop)
	if err != nil {
		return errors.Wrap(err, "persisting plate crop")
	}

	// The target is framed well enough to capture; tell the PTZ
	// controller to hold still for this track rather than keep
	// chasing it while the crop is in flight to OCR.
	if o.eventBus != nil {
		trackID := target.ID
		if err := o.eventBus.Publish(bus.TopicPTZCommands, bus.PTZCommandEvent{
			EventID:       randomRequestID(),
			Timestamp:     time.Now(),
			Command:       bus.CommandStop,
			TargetTrackID: &trackID,
		}); err != nil {
			o.logger.Errorw("publishing ptz stop command failed", "err", err)
		}
	}

	if o.eventBus != nil {
		if err := o.eventBus.Publish(bus.TopicANPRRequest, bus.ANPRRequestEvent{
			RequestID:   randomRequestID(),
			Timestamp:   time.Now(),
			TrackID:     target.ID,
			FrameNumber: frameSeq,
			CropPath:    path,
			PlateBox:    region,
			VehicleBox:  target.Box,
			Class:       target.Class,
		}); err != nil {
			o.logger.Errorw("publishing anpr request failed", "err", err)
		}
	}

	o.prioritize.MarkTracked(target.ID)
	return nil
}

// cropRegion clamps region to frame's bounds and returns the
// corresponding sub-Mat, grounded on the teacher pack's gocv.Mat
// region-of-interest usage (MiFaceDEV/miface's preview pipeline).
func cropRegion(frame gocv.Mat, region geometry.Box) (gocv.Mat, error) {
	w, h := frame.Cols(), frame.Rows()

	x1 := clampInt(int(region.X1), 0, w-1)
	y1 := clampInt(int(region.Y1), 0, h-1)
	x2 := clampInt(int(region.X2), x1+1, w)
	y2 := clampInt(int(region.Y2), y1+1, h)

	rect := image.Rect(x1, y1, x2, y2)
	sub := frame.Region(rect)
	defer sub.Close()
	if sub.Empty() {
		return gocv.Mat{}, errors.New("crop region is empty")
	}
	return sub.Clone(), nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (o *Orchestrator) publishTracking(tr tracker.Track, frameSeq int64) {
	if o.eventBus == nil {
		return
	}
	if err := o.eventBus.Publish(bus.TopicTracking, bus.TrackingEvent{
		EventID: randomRequestID(), Timestamp: time.Now(), TrackID: tr.ID,
		FrameNumber: frameSeq, Box: tr.Box, Class: tr.Class, Confidence: tr.Confidence,
		Velocity: tr.Velocity, Trajectory: tr.Trajectory, Age: tr.Age, Hits: tr.Hits,
	}); err != nil {
		o.logger.Errorw("publishing tracking event failed", "err", err)
	}
}

func (o *Orchestrator) publishDetection(det detect.Detection, frameSeq int64, frameW, frameH int) {
	if o.eventBus == nil {
		return
	}
	if err := o.eventBus.Publish(bus.TopicDetections, bus.DetectionEvent{
		EventID: randomRequestID(), Timestamp: time.Now(), FrameNumber: frameSeq,
		Box: det.Box, Class: det.Class, Confidence: det.Confidence,
		FrameWidth: frameW, FrameHeight: frameH,
	}); err != nil {
		o.logger.Errorw("publishing detection event failed", "err", err)
	}
}
