// Package cursor maps the index fingertip landmark to screen pixels: a
// stateful One-Euro-smoothed, dead-zoned, mirrored, and scaled mapping from
// normalized camera space to a pixel, reported through the same
// intentional-movement gate (30px) used elsewhere in the system. Actually
// moving the OS cursor is left to a collaborator plugin, the way a
// system-control plugin executes OS actions out-of-process rather than the
// core reaching into the OS directly.
package cursor

import (
	"math"

	"github.com/ayusman/airclick/internal/landmark"
	"github.com/ayusman/airclick/internal/onefilter"
)

const (
	// DefaultBeta and DefaultDCutoff are fixed per the cursor-controller
	// contract; only min_cutoff is user-configurable (smoothing_level).
	DefaultBeta    = 0.01
	DefaultDCutoff = 1.0

	// DefaultDeadZone is the normalized-space freeze radius.
	DefaultDeadZone = 0.01

	// DefaultScale is the centered scale applied around (0.5,0.5) before
	// mapping to pixels.
	DefaultScale = 1.0

	// MovementGate is the pixel distance beyond which a cursor update is
	// reported as an intentional movement, mirrored from the 30px gate the
	// rest of the system uses for "did something meaningful happen".
	MovementGate = 30.0
)

// Result is the outcome of one Update call.
type Result struct {
	X, Y   int
	Moved  bool
	Frozen bool // true when the dead zone suppressed the update
}

// Controller holds the cursor mapping's stateful filters and last-accepted
// position, scoped to one session.
type Controller struct {
	MinCutoff float64
	Beta      float64
	DCutoff   float64
	DeadZone  float64
	Scale     float64

	filterX *onefilter.Filter
	filterY *onefilter.Filter

	hasLast        bool
	lastNormX      float64
	lastNormY      float64
	hasLastEmitted bool
	lastPixelX     int
	lastPixelY     int
}

// New returns a Controller using minCutoff for smoothing (the user's
// "smoothing_level" setting) and the fixed beta/d_cutoff/dead-zone/scale
// defaults.
func New(minCutoff float64) *Controller {
	if minCutoff <= 0 {
		minCutoff = onefilter.DefaultMinCutoff
	}
	return &Controller{
		MinCutoff: minCutoff,
		Beta:      DefaultBeta,
		DCutoff:   DefaultDCutoff,
		DeadZone:  DefaultDeadZone,
		Scale:     DefaultScale,
		filterX:   onefilter.New(minCutoff, DefaultBeta, DefaultDCutoff),
		filterY:   onefilter.New(minCutoff, DefaultBeta, DefaultDCutoff),
	}
}

// Update maps one frame's index-tip landmark to a pixel against a
// screenW x screenH surface. t is a monotonically increasing timestamp in
// milliseconds. Returns ok=false when the landmark is out of [0,1] range
// ("not moved").
func (c *Controller) Update(indexTip landmark.Point, t int64, screenW, screenH int) (Result, bool) {
	if indexTip.X < 0 || indexTip.X > 1 || indexTip.Y < 0 || indexTip.Y > 1 {
		return Result{}, false
	}

	x := c.filterX.Apply(indexTip.X, t)
	y := c.filterY.Apply(indexTip.Y, t)

	if c.hasLast {
		dx, dy := x-c.lastNormX, y-c.lastNormY
		if math.Hypot(dx, dy) <= c.DeadZone {
			return Result{X: c.lastPixelX, Y: c.lastPixelY, Moved: false, Frozen: true}, true
		}
	}
	c.lastNormX, c.lastNormY = x, y
	c.hasLast = true

	mirroredX := 1 - x
	scaledX := (mirroredX-0.5)*c.scaleOrDefault() + 0.5
	scaledY := (y-0.5)*c.scaleOrDefault() + 0.5
	scaledX = clamp01(scaledX)
	scaledY = clamp01(scaledY)

	px := clampInt(int(scaledX*float64(screenW)), 0, screenW-1)
	py := clampInt(int(scaledY*float64(screenH)), 0, screenH-1)

	moved := true
	if c.hasLastEmitted {
		dist := math.Hypot(float64(px-c.lastPixelX), float64(py-c.lastPixelY))
		moved = dist > MovementGate
	}
	c.lastPixelX, c.lastPixelY = px, py
	c.hasLastEmitted = true

	return Result{X: px, Y: py, Moved: moved}, true
}

func (c *Controller) scaleOrDefault() float64 {
	if c.Scale <= 0 {
		return DefaultScale
	}
	return c.Scale
}

// Reset clears all stateful filters and positions, for use when the hand is
// lost or the hybrid state machine leaves CURSOR_ONLY.
func (c *Controller) Reset() {
	c.filterX.Reset()
	c.filterY.Reset()
	c.hasLast = false
	c.hasLastEmitted = false
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

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
