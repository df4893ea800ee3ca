package ptz

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/anprsight/vision-core/internal/logging"
)

// State is the controller's idle/sweep state machine (spec.md §4.5).
type State string

const (
	Active   State = "active"
	Idle     State = "idle"
	Sweeping State = "sweeping"
)

// Config configures a Controller. No global singleton (Design Note 9).
type Config struct {
	HysteresisPixels   float64
	ZoomStep           float64
	MoveRateLimit      time.Duration
	IdleEnabled        bool
	IdleTimeout        time.Duration
	ReturnToPreset     string
	SweepEnabled       bool
	SweepInterval      time.Duration
}

// Snapshot is the read-only view returned by CurrentState: software
// zoom level, last commanded target pixel, and idle/sweep state.
type Snapshot struct {
	Zoom            float64
	LastTargetX     float64
	LastTargetY     float64
	HasLastTarget   bool
	State           State
	LastMoveTime    time.Time
	LastActivity    time.Time
}

// Controller translates target geometry into pan/tilt/zoom commands,
// applying hysteresis and rate limits, and owns the idle/sweep state
// machine. Presets are a field of the controller (Design Note 9's
// one-way ownership): the idle monitor holds a reference to the
// Controller itself and calls its methods, but does not co-own its
// lifetime.
type Controller struct {
	cfg    Config
	device Device
	logger logging.Logger

	presets *PresetManager

	mu            sync.Mutex
	zoom          float64
	lastTargetX   float64
	lastTargetY   float64
	hasLastTarget bool
	lastMoveTime  time.Time
	state         State
	lastActivity  time.Time
	sweepAt       time.Time
}

// New constructs a Controller. presets is owned exclusively by the
// resulting Controller from this point on (Design Note 9).
func New(cfg Config, device Device, presets *PresetManager, logger logging.Logger) *Controller {
	now := time.Now()
	if presets == nil {
		presets = NewPresetManager(nil)
	}
	return &Controller{
		cfg:          cfg,
		device:       device,
		logger:       logger,
		presets:      presets,
		state:        Active,
		lastActivity: now,
	}
}

// StartupSweep visits each configured preset in order with a 2s dwell,
// per spec.md §4.5's startup behavior, run once before the main loop
// becomes active.
func (c *Controller) StartupSweep(ctx context.Context) {
	c.presets.Reset()
	for _, p := range c.presets.All() {
		if err := c.device.GotoPreset(ctx, p.Token); err != nil {
			c.logger.Warnw("startup sweep preset failed", "token", p.Token, "err", err)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

// PointToTarget issues a relative pan/tilt toward the pixel (tx, ty) in
// a frame of size (frameW, frameH), unless it falls inside the
// hysteresis dead-zone around the last commanded target. Returns
// whether a command was sent.
func (c *Controller) PointToTarget(ctx context.Context, tx, ty, frameW, frameH float64, trackID int) bool {
	c.mu.Lock()
	if c.hasLastTarget &&
		math.Abs(tx-c.lastTargetX) < c.cfg.HysteresisPixels &&
		math.Abs(ty-c.lastTargetY) < c.cfg.HysteresisPixels {
		c.mu.Unlock()
		return false
	}
	rateLimited := c.rateLimited()
	c.mu.Unlock()

	if rateLimited {
		return false
	}

	panOffset := (tx - frameW/2) / frameW
	tiltOffset := -(ty - frameH/2) / frameH

	err := c.device.RelativeMove(ctx, panOffset, tiltOffset, 0)
	if err != nil {
		c.logger.Errorw("ptz relative move failed", "track_id", trackID, "err", err)
		return false
	}

	c.mu.Lock()
	c.lastTargetX, c.lastTargetY, c.hasLastTarget = tx, ty, true
	c.lastMoveTime = time.Now()
	c.mu.Unlock()
	c.MarkActivity()
	return true
}

// ZoomToTarget steps the software zoom toward desiredH, issuing a
// relative zoom command when the ratio to currentH crosses the step
// thresholds, per spec.md §4.5's zoom mapping.
func (c *Controller) ZoomToTarget(ctx context.Context, currentH, desiredH float64, trackID int) bool {
	if currentH <= 0 {
		return false
	}
	return c.ZoomByFactor(ctx, desiredH/currentH, trackID)
}

// ZoomByFactor issues a relative zoom command when zoomFactor (desired
// / current plate or target height) crosses the step thresholds, per
// spec.md §4.5/§4.6 step 7 ("a small zoom increment iff suggested
// factor > 1.2").
func (c *Controller) ZoomByFactor(ctx context.Context, zoomFactor float64, trackID int) bool {
	var delta float64
	switch {
	case zoomFactor > 1.2:
		delta = c.cfg.ZoomStep
	case zoomFactor < 0.8:
		delta = -c.cfg.ZoomStep
	default:
		return false
	}

	c.mu.Lock()
	if c.rateLimited() {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	if err := c.device.RelativeMove(ctx, 0, 0, delta); err != nil {
		c.logger.Errorw("ptz zoom failed", "track_id", trackID, "err", err)
		return false
	}

	c.mu.Lock()
	c.zoom = clamp01(c.zoom + delta)
	c.lastMoveTime = time.Now()
	c.mu.Unlock()
	c.MarkActivity()
	return true
}

// ResetZoom issues a wide-angle (zero) zoom command.
func (c *Controller) ResetZoom(ctx context.Context) bool {
	c.mu.Lock()
	if c.rateLimited() {
		c.mu.Unlock()
		return false
	}
	current := c.zoom
	c.mu.Unlock()

	if err := c.device.RelativeMove(ctx, 0, 0, -current); err != nil {
		c.logger.Errorw("ptz reset zoom failed", "err", err)
		return false
	}

	c.mu.Lock()
	c.zoom = 0
	c.lastMoveTime = time.Now()
	c.mu.Unlock()
	c.MarkActivity()
	return true
}

// TrackAndZoom composes PointToTarget and ZoomToTarget: point, wait
// 500ms for the pan/tilt to settle, then zoom (spec.md §4.5).
func (c *Controller) TrackAndZoom(ctx context.Context, tx, ty, frameW, frameH, currentH, desiredH float64, trackID int) (pointed, zoomed bool) {
	pointed = c.PointToTarget(ctx, tx, ty, frameW, frameH, trackID)

	select {
	case <-ctx.Done():
		return pointed, false
	case <-time.After(500 * time.Millisecond):
	}

	zoomed = c.ZoomToTarget(ctx, currentH, desiredH, trackID)
	return pointed, zoomed
}

// rateLimited reports whether fewer than MoveRateLimit has elapsed
// since the last accepted motion command. Caller must hold c.mu.
func (c *Controller) rateLimited() bool {
	if c.lastMoveTime.IsZero() {
		return false
	}
	return time.Since(c.lastMoveTime) < c.cfg.MoveRateLimit
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// MarkActivity refreshes last-activity time and, if the controller was
// Idle or Sweeping, transitions it back to Active (spec.md §4.5).
func (c *Controller) MarkActivity() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = time.Now()
	c.state = Active
}

// Tick evaluates the idle/sweep state machine once, meant to be called
// by the idle-monitor goroutine at roughly 1 Hz (spec.md §5). It issues
// device commands unlocked, snapshotting state under the lock first and
// committing results under the lock afterward (Design Note 9).
func (c *Controller) Tick(ctx context.Context) {
	c.mu.Lock()
	state := c.state
	idleFor := time.Since(c.lastActivity)
	c.mu.Unlock()

	switch state {
	case Active:
		if c.cfg.IdleTimeout > 0 && idleFor > c.cfg.IdleTimeout {
			if c.gotoPresetLocked(ctx, c.cfg.ReturnToPreset) {
				c.mu.Lock()
				c.state = Idle
				c.mu.Unlock()
			}
		}
	case Idle:
		if c.cfg.SweepEnabled {
			c.mu.Lock()
			c.state = Sweeping
			c.mu.Unlock()
		}
	case Sweeping:
		if !c.cfg.SweepEnabled {
			c.mu.Lock()
			c.state = Idle
			c.mu.Unlock()
			return
		}
		c.advanceSweep(ctx)
	}
}

// gotoPresetLocked issues a goto-preset command through the rate
// limiter (the idle transition's single goto-preset, per spec.md §4.5).
func (c *Controller) gotoPresetLocked(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	c.mu.Lock()
	if c.rateLimited() {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	if err := c.device.GotoPreset(ctx, token); err != nil {
		c.logger.Errorw("ptz goto preset failed", "token", token, "err", err)
		return false
	}

	c.mu.Lock()
	c.lastMoveTime = time.Now()
	c.mu.Unlock()
	return true
}

// advanceSweep moves to the next preset in the enumerated order,
// wrapping, every SweepInterval. The sweep does not leave Idle/Sweeping
// (spec.md §4.5): it is driven purely by Tick, never by MarkActivity.
func (c *Controller) advanceSweep(ctx context.Context) {
	if c.presets.Len() == 0 {
		return
	}
	c.mu.Lock()
	due := time.Since(c.sweepLastAt()) >= c.cfg.SweepInterval
	c.mu.Unlock()
	if !due {
		return
	}

	token, ok := c.presets.Next()
	if !ok {
		return
	}

	c.gotoPresetLocked(ctx, token)
	c.mu.Lock()
	c.setSweepLastAt(time.Now())
	c.mu.Unlock()
}

// sweepLastAt/setSweepLastAt track the last sweep advance time. Caller
// must hold c.mu.
func (c *Controller) sweepLastAt() time.Time {
	return c.sweepAt
}

func (c *Controller) setSweepLastAt(t time.Time) {
	c.sweepAt = t
}

// CurrentState returns a snapshot of the controller's software state.
func (c *Controller) CurrentState() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Zoom:          c.zoom,
		LastTargetX:   c.lastTargetX,
		LastTargetY:   c.lastTargetY,
		HasLastTarget: c.hasLastTarget,
		State:         c.state,
		LastMoveTime:  c.lastMoveTime,
		LastActivity:  c.lastActivity,
	}
}
