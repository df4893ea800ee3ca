package tracker

import (
	"math"

	"github.com/anprsight/vision-core/internal/detect"
	"github.com/anprsight/vision-core/internal/geometry"
)

// Velocity is a per-frame pixel displacement, computed from the two
// most recent trajectory centers.
type Velocity struct {
	VX, VY float64
}

// Magnitude returns the Euclidean speed in pixels/frame.
func (v Velocity) Magnitude() float64 {
	return math.Hypot(v.VX, v.VY)
}

// point is a single trajectory sample (a box center at some frame).
type point struct {
	X, Y float64
}

// trajectory is a fixed-capacity ring buffer of recent box centers,
// grounded on the teacher's fixed-length detectionsBuffer/tracksBuffer
// shape in object_tracker.go/tracker.go, generalized from a slice of
// detection-slices to a single per-track ring of centers.
type trajectory struct {
	buf   []point
	cap   int
	start int
	size  int
}

func newTrajectory(capacity int) *trajectory {
	if capacity < 1 {
		capacity = defaultTrajectoryCapacity
	}
	return &trajectory{buf: make([]point, capacity), cap: capacity}
}

func (t *trajectory) append(p point) {
	idx := (t.start + t.size) % t.cap
	t.buf[idx] = p
	if t.size < t.cap {
		t.size++
	} else {
		t.start = (t.start + 1) % t.cap
	}
}

// len returns the number of samples currently held.
func (t *trajectory) len() int {
	return t.size
}

// at returns the i-th oldest sample (0 is the oldest retained sample).
func (t *trajectory) at(i int) point {
	return t.buf[(t.start+i)%t.cap]
}

// last returns the n most recently appended samples, oldest first.
// If fewer than n samples exist, it returns all of them.
func (t *trajectory) last(n int) []point {
	if n > t.size {
		n = t.size
	}
	out := make([]point, n)
	for i := 0; i < n; i++ {
		out[i] = t.at(t.size - n + i)
	}
	return out
}

// snapshot returns every retained sample, oldest first, as a plain
// slice — the copy handed to event publishers (Design Note 9).
func (t *trajectory) snapshot() []point {
	return t.last(t.size)
}

const defaultTrajectoryCapacity = 30

// Track is a persistent identity maintained across frames for one
// physical object, per spec.md §3.
type Track struct {
	ID              int
	Box             geometry.Box
	Class           detect.VehicleClass
	Confidence      float64
	Age             int
	Hits            int
	TimeSinceUpdate int
	Velocity        Velocity
	Trajectory      []Point // snapshot copy, oldest first

	trajBuf *trajectory
}

// Point is a publishable (x, y) sample of a track's center history.
type Point struct {
	X, Y float64
}

// newTrackFromDetection creates a freshly-spawned track from an
// unmatched detection, per spec.md §4.2 step 3.
func newTrackFromDetection(id int, det detect.Detection, trajCap int) *Track {
	cx, cy := det.Box.Center()
	tr := newTrajectory(trajCap)
	tr.append(point{cx, cy})

	return &Track{
		ID:              id,
		Box:             det.Box,
		Class:           det.Class,
		Confidence:      det.Confidence,
		Age:             0,
		Hits:            1,
		TimeSinceUpdate: 0,
		Velocity:        Velocity{},
		trajBuf:         tr,
		Trajectory:      tr.snapshot(),
	}
}

// predict shifts the box forward by the track's velocity and advances
// the age/time-since-update counters, per spec.md §4.2 step 1.
func (t *Track) predict() {
	t.Box = t.Box.Shift(t.Velocity.VX, t.Velocity.VY)
	t.Age++
	t.TimeSinceUpdate++
}

// applyMatch updates the track from an associated detection, per
// spec.md §4.2 step 2: box replaced, confidence replaced, hits
// incremented, time_since_update reset, a new center appended, and
// velocity recomputed from the two most recent centers only.
func (t *Track) applyMatch(det detect.Detection) {
	t.Box = det.Box
	t.Class = det.Class
	t.Confidence = det.Confidence
	t.Hits++
	t.TimeSinceUpdate = 0

	cx, cy := det.Box.Center()
	t.trajBuf.append(point{cx, cy})
	t.Trajectory = t.trajBuf.snapshot()

	if n := t.trajBuf.len(); n >= 2 {
		last2 := t.trajBuf.last(2)
		t.Velocity = Velocity{
			VX: last2[1].X - last2[0].X,
			VY: last2[1].Y - last2[0].Y,
		}
	}
}

// confirmed reports whether the track has accumulated enough hits to
// be emitted externally, per spec.md §3's "confirmed" definition.
func (t *Track) confirmed(minHits int) bool {
	return t.Hits >= minHits
}

// snapshot returns a value copy of the track safe to hand to a
// publisher (no shared trajBuf pointer).
func (t *Track) snapshot() Track {
	cp := *t
	cp.trajBuf = nil
	cp.Trajectory = append([]Point(nil), t.Trajectory...)
	return cp
}
