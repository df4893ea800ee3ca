// Package prioritize selects at most one current target per frame from
// the tracker's confirmed track set, per spec.md §4.3. Strategies are
// modeled as a tagged variant (Design Note 9) rather than an interface
// hierarchy, since the pack's equivalent enum types (e.g. Spatial-NVR's
// ObjectType/BackendType) are plain data, not polymorphic objects.
package prioritize

import (
	"math"
	"sort"

	"github.com/anprsight/vision-core/internal/geometry"
	"github.com/anprsight/vision-core/internal/tracker"
)

// Kind names a prioritization strategy.
type Kind string

const (
	Proximity Kind = "proximity"
	ROI       Kind = "roi"
	Weighted  Kind = "weighted"
)

// Zone is a named, weighted polygon used by the ROI and weighted
// strategies.
type Zone struct {
	Name    string
	Weight  float64
	Polygon []geometry.Point2D
}

// Weights configures the Weighted strategy's linear combination.
type Weights struct {
	Proximity float64
	ROI       float64
	Speed     float64
	Novelty   float64
}

// Strategy is the tagged variant, selected by Kind: Proximity reads
// neither Weights nor Zones, ROI reads Zones, and Weighted reads both
// Weights and Zones (for its ROI term).
type Strategy struct {
	Kind    Kind
	Weights Weights
	Zones   []Zone
}

// Config configures a Prioritizer. No global singleton (Design Note 9):
// every Prioritizer is constructed with its own value.
type Config struct {
	Strategy            Strategy
	MinTargetSizePixels float64
}

// Prioritizer selects the current target track per frame and records
// which ids have been marked tracked (captured) via MarkTracked, for the
// Weighted strategy's novelty term.
type Prioritizer struct {
	cfg     Config
	tracked map[int]struct{}
}

// New constructs a Prioritizer.
func New(cfg Config) *Prioritizer {
	return &Prioritizer{cfg: cfg, tracked: make(map[int]struct{})}
}

// MarkTracked records that a track id has been captured; Novelty in the
// Weighted strategy penalizes ids already in this set. The set grows
// monotonically for the process lifetime, per spec.md §4.3.
func (p *Prioritizer) MarkTracked(id int) {
	p.tracked[id] = struct{}{}
}

// Select returns the current target, or ok=false if none qualifies.
// Deterministic: given the same tracks slice and frame dimensions, the
// same track (or none) is always returned.
func (p *Prioritizer) Select(tracks []tracker.Track, frameWidth, frameHeight float64) (tracker.Track, bool) {
	filtered := make([]tracker.Track, 0, len(tracks))
	for _, tr := range tracks {
		if tr.Box.Height() >= p.cfg.MinTargetSizePixels {
			filtered = append(filtered, tr)
		}
	}
	if len(filtered) == 0 {
		return tracker.Track{}, false
	}

	// Stable order by ascending track id: both the ROI fallback and
	// the Weighted tie-break rely on this as "insertion order / ascending
	// track id".
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].ID < filtered[j].ID })

	switch p.cfg.Strategy.Kind {
	case Proximity:
		return p.selectProximity(filtered, frameWidth, frameHeight)
	case ROI:
		return p.selectROI(filtered)
	default:
		// Weighted is the default strategy (spec.md §4.3); an empty or
		// unrecognized Kind falls through to it too.
		return p.selectWeighted(filtered, frameWidth, frameHeight)
	}
}

func (p *Prioritizer) selectProximity(tracks []tracker.Track, frameWidth, frameHeight float64) (tracker.Track, bool) {
	fcx, fcy := frameWidth/2, frameHeight/2
	best := tracks[0]
	bestDist := distanceToPoint(best.Box, fcx, fcy)
	for _, tr := range tracks[1:] {
		d := distanceToPoint(tr.Box, fcx, fcy)
		if d < bestDist {
			bestDist = d
			best = tr
		}
	}
	return best, true
}

func distanceToPoint(b geometry.Box, x, y float64) float64 {
	cx, cy := b.Center()
	return math.Hypot(cx-x, cy-y)
}

// selectROI returns the track whose center lies in the highest-weighted
// configured zone; if none matched, falls back to the first filtered
// track (already sorted by ascending id).
func (p *Prioritizer) selectROI(tracks []tracker.Track) (tracker.Track, bool) {
	var best tracker.Track
	bestWeight := math.Inf(-1)
	found := false

	for _, tr := range tracks {
		cx, cy := tr.Box.Center()
		for _, z := range p.cfg.Strategy.Zones {
			if !pointInPolygon(cx, cy, z.Polygon) {
				continue
			}
			if z.Weight > bestWeight {
				bestWeight = z.Weight
				best = tr
				found = true
			}
		}
	}
	if found {
		return best, true
	}
	return tracks[0], true
}

// selectWeighted implements the default scoring policy of spec.md §4.3.
func (p *Prioritizer) selectWeighted(tracks []tracker.Track, frameWidth, frameHeight float64) (tracker.Track, bool) {
	w := p.cfg.Strategy.Weights
	dMax := math.Hypot(frameWidth/2, frameHeight/2)

	var best tracker.Track
	bestScore := math.Inf(-1)
	for _, tr := range tracks {
		d := distanceToPoint(tr.Box, frameWidth/2, frameHeight/2)
		proximityTerm := 0.0
		if dMax > 0 {
			proximityTerm = 1 - d/dMax
		}

		roiTerm := p.zoneWeightFor(tr)
		speedTerm := math.Min(1, tr.Velocity.Magnitude()/20)
		noveltyTerm := 1.0
		if _, seen := p.tracked[tr.ID]; seen {
			noveltyTerm = 0.0
		}

		score := w.Proximity*proximityTerm + w.ROI*roiTerm + w.Speed*speedTerm + w.Novelty*noveltyTerm
		if score > bestScore {
			bestScore = score
			best = tr
		}
	}
	return best, true
}

func (p *Prioritizer) zoneWeightFor(tr tracker.Track) float64 {
	cx, cy := tr.Box.Center()
	weight := 0.0
	for _, z := range p.cfg.Strategy.Zones {
		if pointInPolygon(cx, cy, z.Polygon) && z.Weight > weight {
			weight = z.Weight
		}
	}
	return weight
}

// pointInPolygon implements the standard ray-casting test.
func pointInPolygon(x, y float64, poly []geometry.Point2D) bool {
	if len(poly) < 3 {
		return false
	}
	inside := false
	j := len(poly) - 1
	for i := 0; i < len(poly); i++ {
		pi, pj := poly[i], poly[j]
		if (pi.Y > y) != (pj.Y > y) {
			xIntersect := (pj.X-pi.X)*(y-pi.Y)/(pj.Y-pi.Y) + pi.X
			if x < xIntersect {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}
