// Package tracker implements per-frame identity management: associating
// detections to persistent tracks, aging and retiring lost tracks, and
// maintaining each track's velocity and trajectory. Grounded on the
// teacher module's tracker/tracker.go, replacing its Munkres-only
// association with the greedy IoU walk spec.md §4.2 requires as the
// default, while keeping Munkres available as an alternate mode (see
// SPEC_FULL.md §4.2).
package tracker

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/anprsight/vision-core/internal/detect"
)

// Config configures a Tracker. There is no global configuration
// singleton (Design Note 9): every Tracker is constructed with its own
// typed Config value.
type Config struct {
	// MaxAge is the number of consecutive unmatched frames a track may
	// survive before it is retired.
	MaxAge int
	// MinHits is the minimum hit count before a track is "confirmed"
	// (emittable).
	MinHits int
	// IoUThreshold is the minimum IoU required for an association to
	// be accepted.
	IoUThreshold float64
	// AssociationMode selects Greedy (spec default) or Hungarian.
	AssociationMode AssociationMode
	// TrajectoryCapacity bounds the ring buffer of retained centers per
	// track (spec.md §3 requires capacity >= 30).
	TrajectoryCapacity int
}

// DefaultConfig returns the spec's suggested defaults.
func DefaultConfig() Config {
	return Config{
		MaxAge:             30,
		MinHits:            3,
		IoUThreshold:       0.3,
		AssociationMode:    Greedy,
		TrajectoryCapacity: defaultTrajectoryCapacity,
	}
}

// Tracker is the per-frame identity manager. It owns the track map
// exclusively (Design §5): callers must not invoke Update concurrently,
// nor read tracker state from another goroutine.
type Tracker struct {
	cfg    Config
	tracks map[int]*Track
	nextID int
}

// New constructs a Tracker from its config.
func New(cfg Config) (*Tracker, error) {
	if cfg.MaxAge < 0 {
		return nil, errors.New("max_age must be non-negative")
	}
	if cfg.MinHits < 1 {
		return nil, errors.New("min_hits must be at least 1")
	}
	if cfg.IoUThreshold < 0 || cfg.IoUThreshold > 1 {
		return nil, errors.New("iou_threshold must be between 0.0 and 1.0")
	}
	if cfg.TrajectoryCapacity <= 0 {
		cfg.TrajectoryCapacity = defaultTrajectoryCapacity
	}
	if cfg.AssociationMode == "" {
		cfg.AssociationMode = Greedy
	}
	return &Tracker{
		cfg:    cfg,
		tracks: make(map[int]*Track),
		nextID: 1,
	}, nil
}

// sortedTrackIDs returns the current track ids in ascending order, the
// deterministic iteration order spec.md §4.2 requires.
func (t *Tracker) sortedTrackIDs() []int {
	ids := make([]int, 0, len(t.tracks))
	for id := range t.tracks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Update runs one tracker step: predict, associate, spawn, retire,
// return confirmed tracks. It must be called at most once per frame
// (spec.md §4.2).
func (t *Tracker) Update(detections []detect.Detection) []Track {
	ids := t.sortedTrackIDs()
	ordered := make([]*Track, len(ids))
	for i, id := range ids {
		ordered[i] = t.tracks[id]
	}

	// 1. Predict.
	for _, tr := range ordered {
		tr.predict()
	}

	// 2. Associate.
	var matches []match
	if t.cfg.AssociationMode == Hungarian {
		m, err := associateHungarian(ordered, detections, t.cfg.IoUThreshold)
		if err != nil {
			// Fall back to the deterministic greedy walk rather than
			// dropping the frame's detections entirely.
			m = associateGreedy(ordered, detections, t.cfg.IoUThreshold)
		}
		matches = m
	} else {
		matches = associateGreedy(ordered, detections, t.cfg.IoUThreshold)
	}

	matchedDet := make([]bool, len(detections))
	for _, m := range matches {
		ordered[m.trackIdx].applyMatch(detections[m.detIdx])
		matchedDet[m.detIdx] = true
	}

	// 3. Spawn: every unmatched detection becomes a new track.
	for di, d := range detections {
		if matchedDet[di] {
			continue
		}
		id := t.nextID
		t.nextID++
		t.tracks[id] = newTrackFromDetection(id, d, t.cfg.TrajectoryCapacity)
	}

	// 4. Retire.
	for id, tr := range t.tracks {
		if tr.TimeSinceUpdate > t.cfg.MaxAge {
			delete(t.tracks, id)
		}
	}

	// 5. Return confirmed tracks in ascending id order, as value
	// snapshots (Design Note 9: consumers get a copy, not a live
	// pointer into tracker-owned state).
	out := make([]Track, 0, len(t.tracks))
	for _, id := range t.sortedTrackIDs() {
		tr := t.tracks[id]
		if tr.confirmed(t.cfg.MinHits) {
			out = append(out, tr.snapshot())
		}
	}
	return out
}

// Get returns a snapshot of a single track by id, for callers (e.g. the
// plate proposer) that need the latest box of a previously-selected
// target without re-running Update.
func (t *Tracker) Get(id int) (Track, bool) {
	tr, ok := t.tracks[id]
	if !ok {
		return Track{}, false
	}
	return tr.snapshot(), true
}

// Len reports the number of tracks currently held, confirmed or not.
func (t *Tracker) Len() int {
	return len(t.tracks)
}
