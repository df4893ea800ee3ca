// Package plate estimates a license-plate sub-region inside a target's
// box and decides when a capture is admissible, per spec.md §4.4.
package plate

import (
	"sync"

	"github.com/anprsight/vision-core/internal/geometry"
)

// Config configures a Proposer. No global singleton (Design Note 9).
type Config struct {
	MinPlateHeightPixels float64
	TargetPlateHeight    float64
	StabilityFrames      int
}

// Verdict is the capture-readiness result, plus the suggested zoom
// factor (>1 means "zoom in more").
type Verdict struct {
	Ready bool
	Zoom  float64
}

// Proposer holds per-track stability counters: the number of
// consecutive frames a track has been the current target. Reset on
// target switch or explicit ResetStability.
type Proposer struct {
	cfg Config

	mu          sync.Mutex
	stability   map[int]int
	lastTarget  int
	hasLastTrgt bool
}

// New constructs a Proposer.
func New(cfg Config) *Proposer {
	return &Proposer{cfg: cfg, stability: make(map[int]int)}
}

// EstimateRegion implements spec.md §4.4's region heuristic: inside the
// vehicle box, plate height is 15% of vehicle height, plate width is
// 60% of vehicle width, horizontally centered, with its top positioned
// at vehicle.y2 - 0.25*vehicle.height.
func EstimateRegion(vehicle geometry.Box) geometry.Box {
	vh := vehicle.Height()
	vw := vehicle.Width()

	plateH := 0.15 * vh
	plateW := 0.60 * vw

	vcx, _ := vehicle.Center()
	plateX1 := vcx - plateW/2
	plateX2 := vcx + plateW/2

	plateY1 := vehicle.Y2 - 0.25*vh
	plateY2 := plateY1 + plateH

	return geometry.NewBox(plateX1, plateY1, plateX2, plateY2)
}

// Propose evaluates readiness for trackID given its current vehicle box,
// advancing (or resetting) the stability counter as a side effect, per
// spec.md §4.4's ordered rules.
func (p *Proposer) Propose(trackID int, vehicle geometry.Box) (geometry.Box, Verdict) {
	plateBox := EstimateRegion(vehicle)
	plateH := plateBox.Height()

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.hasLastTrgt || p.lastTarget != trackID {
		p.stability[trackID] = 0
		p.lastTarget = trackID
		p.hasLastTrgt = true
	}
	p.stability[trackID]++

	// Rule 1: minimum plate size.
	if plateH < p.cfg.MinPlateHeightPixels {
		return plateBox, Verdict{Ready: false, Zoom: p.cfg.TargetPlateHeight / plateH}
	}

	// Rule 2: stability.
	if p.stability[trackID] < p.cfg.StabilityFrames {
		return plateBox, Verdict{Ready: false, Zoom: 1}
	}

	// Rule 3: large enough already.
	if plateH >= p.cfg.TargetPlateHeight {
		return plateBox, Verdict{Ready: true, Zoom: 1}
	}

	// Rule 4: stable but still needs more zoom.
	return plateBox, Verdict{Ready: false, Zoom: p.cfg.TargetPlateHeight / plateH}
}

// ResetStability zeroes the stability counter for trackID, as if the
// target had just switched to it — used by the orchestrator on a
// target change (spec.md §4.6 step 4).
func (p *Proposer) ResetStability(trackID int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stability[trackID] = 0
	p.lastTarget = trackID
	p.hasLastTrgt = true
}

// Cleanup removes stability entries for ids no longer present among
// activeIDs, per spec.md §4.4.
func (p *Proposer) Cleanup(activeIDs map[int]struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.stability {
		if _, ok := activeIDs[id]; !ok {
			delete(p.stability, id)
		}
	}
}
