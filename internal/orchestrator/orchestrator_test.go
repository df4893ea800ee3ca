package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

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

// fakeDetector always returns one car detection, exercising the happy
// path without a real model.
type fakeDetector struct{ box geometry.Box }

func (f fakeDetector) Detect(ctx context.Context, w, h int, data []byte) ([]detect.Detection, error) {
	return []detect.Detection{{Box: f.box, Class: detect.ClassCar, Confidence: 0.9}}, nil
}

type fakeDevice struct{}

func (fakeDevice) AbsoluteMove(ctx context.Context, pos ptz.Position) error   { return nil }
func (fakeDevice) RelativeMove(ctx context.Context, p, t, z float64) error    { return nil }
func (fakeDevice) ContinuousMove(ctx context.Context, p, t, z float64) error  { return nil }
func (fakeDevice) Stop(ctx context.Context) error                            { return nil }
func (fakeDevice) GetStatus(ctx context.Context) (ptz.Status, error)         { return ptz.Status{}, nil }
func (fakeDevice) GetPresets(ctx context.Context) ([]ptz.Preset, error)      { return nil, nil }
func (fakeDevice) GotoPreset(ctx context.Context, token string) error        { return nil }

// fakeDecoder produces one fixed synthetic frame repeatedly.
type fakeDecoder struct{}

func (fakeDecoder) Open(url string) error { return nil }
func (fakeDecoder) Read() (gocv.Mat, error) {
	mat := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	return mat, nil
}
func (fakeDecoder) Close() error { return nil }

func newTestOrchestrator(t *testing.T) (*Orchestrator, *ingest.Stream) {
	t.Helper()
	stream := ingest.NewWithDecoder(ingest.Config{BufferSize: 5, ReconnectDelay: time.Millisecond}, fakeDecoder{}, logging.NewNop())

	trk, err := tracker.New(tracker.Config{MaxAge: 30, MinHits: 1, IoUThreshold: 0.3, TrajectoryCapacity: 30})
	require.NoError(t, err)

	prio := prioritize.New(prioritize.Config{Strategy: prioritize.Strategy{Kind: prioritize.Proximity}})
	proposer := plate.New(plate.Config{MinPlateHeightPixels: 1, TargetPlateHeight: 10, StabilityFrames: 1})
	controller := ptz.New(ptz.Config{HysteresisPixels: 5, ZoomStep: 0.1}, fakeDevice{}, ptz.NewPresetManager(nil), logging.NewNop())

	st := store.New(t.TempDir(), nil)

	o := New(Config{MaxFrequencyHz: 1000, FrameTimeout: 100 * time.Millisecond},
		stream, fakeDetector{box: geometry.NewBox(100, 100, 300, 400)},
		trk, prio, proposer, controller, st, nil, logging.NewNop())
	return o, stream
}

func TestStepRunsWithoutError(t *testing.T) {
	o, stream := newTestOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, stream.Start(ctx))
	defer stream.Stop()

	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, o.step(ctx))
	}
}

func TestCropRegionClampsToFrameBounds(t *testing.T) {
	frame := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer frame.Close()

	crop, err := cropRegion(frame, geometry.NewBox(-10, -10, 200, 200))
	require.NoError(t, err)
	defer crop.Close()

	require.LessOrEqual(t, crop.Cols(), 100)
	require.LessOrEqual(t, crop.Rows(), 100)
}
