// Package pinch implements the dual left/right click detectors: a
// stability and orientation precondition gate followed by a consistency-
// buffered state machine per fingertip pair, structured the way a motion
// tracker keeps a ring buffer of recent samples to decide whether the scene
// is "stable" before acting on it.
package pinch

import (
	"github.com/ayusman/airclick/internal/landmark"
)

const (
	stabilityBufferSize   = 5
	DefaultStabilityThreshold = 0.02

	DefaultPinchThreshold = 0.05

	consistencyBufferSize = 2

	// CooldownFrames is how long a detector stays in COOLDOWN after a
	// click fires, roughly 160ms at 30fps.
	CooldownFrames = 5

	orientationMeanZThreshold = -0.3
	orientationVarThreshold   = 0.1

	adaptiveCalibrationSamples = 30
	adaptiveReferenceDistance  = 0.2
)

// State is a single click detector's state machine position.
type State int

const (
	Idle State = iota
	PinchDetected
	ClickTriggered
	Cooldown
)

// Side identifies which fingertip pair a Detector tracks.
type Side int

const (
	LeftClick Side = iota
	RightClick
)

// Frame carries exactly the landmarks the preconditions and per-click
// detection need out of a full hand frame.
type Frame struct {
	Wrist      landmark.Point
	ThumbTip   landmark.Point
	IndexTip   landmark.Point
	MiddleTip  landmark.Point
	IndexMCP   landmark.Point
	PinkyMCP   landmark.Point
}

// Detector runs one side's click state machine plus the shared stability
// and orientation preconditions. The two Detectors sharing a hand should
// call Preconditions once per frame and pass its result to both.
type Detector struct {
	Side             Side
	PinchThreshold   float64
	ReleaseThreshold float64

	state            State
	cooldownCounter  int
	consistency      []bool
	falsePositives   int

	calibrating      bool
	calibrationData  []float64
}

// NewDetector returns a Detector for side using the default pinch
// threshold for both engage and release.
func NewDetector(side Side) *Detector {
	return &Detector{
		Side:             side,
		PinchThreshold:   DefaultPinchThreshold,
		ReleaseThreshold: DefaultPinchThreshold,
	}
}

// Preconditions is the shared stability/orientation gate evaluated once per
// frame from ring buffers of recent wrist positions and palm-normal Z
// components.
type Preconditions struct {
	wristBuffer  []landmark.Point
	normalZBuffer []float64
}

// NewPreconditions returns an empty precondition tracker.
func NewPreconditions() *Preconditions {
	return &Preconditions{}
}

// Evaluate pushes the current frame's wrist position and palm normal into
// the ring buffers and returns whether both the stability and orientation
// gates currently pass. On failure the caller must treat this frame as
// "no click possible" and both detectors' consistency buffers get cleared.
func (p *Preconditions) Evaluate(f Frame, stabilityThreshold float64) bool {
	p.wristBuffer = pushCapped(p.wristBuffer, f.Wrist, stabilityBufferSize)

	normal := f.IndexMCP.Sub(f.Wrist).Cross(f.PinkyMCP.Sub(f.Wrist)).Unit()
	p.normalZBuffer = pushFloatCapped(p.normalZBuffer, normal.Z, stabilityBufferSize)

	if len(p.wristBuffer) < stabilityBufferSize || len(p.normalZBuffer) < stabilityBufferSize {
		return false
	}

	if !withinVariance(p.wristBuffer, stabilityThreshold*stabilityThreshold) {
		return false
	}

	meanZ, varZ := meanAndVariance(p.normalZBuffer)
	if meanZ >= orientationMeanZThreshold || varZ >= orientationVarThreshold {
		return false
	}
	return true
}

func pushCapped(buf []landmark.Point, v landmark.Point, capacity int) []landmark.Point {
	buf = append(buf, v)
	if len(buf) > capacity {
		buf = buf[len(buf)-capacity:]
	}
	return buf
}

func pushFloatCapped(buf []float64, v float64, capacity int) []float64 {
	buf = append(buf, v)
	if len(buf) > capacity {
		buf = buf[len(buf)-capacity:]
	}
	return buf
}

func withinVariance(points []landmark.Point, thresholdSq float64) bool {
	var sumX, sumY, sumZ float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
		sumZ += p.Z
	}
	n := float64(len(points))
	meanX, meanY, meanZ := sumX/n, sumY/n, sumZ/n

	var varX, varY, varZ float64
	for _, p := range points {
		varX += (p.X - meanX) * (p.X - meanX)
		varY += (p.Y - meanY) * (p.Y - meanY)
		varZ += (p.Z - meanZ) * (p.Z - meanZ)
	}
	varX /= n
	varY /= n
	varZ /= n

	return varX < thresholdSq && varY < thresholdSq && varZ < thresholdSq
}

func meanAndVariance(values []float64) (mean, variance float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, variance
}

// fingertipDistance returns the 3D Euclidean distance between the thumb tip
// and this detector's opposite fingertip (index for left click, middle for
// right click).
func (d *Detector) fingertipDistance(f Frame) float64 {
	other := f.IndexTip
	if d.Side == RightClick {
		other = f.MiddleTip
	}
	return f.ThumbTip.Distance(other)
}

// Step advances the detector's state machine by one frame. preconditionsOK
// must come from Preconditions.Evaluate for this same frame. Returns true
// exactly on the frame a click fires.
func (d *Detector) Step(f Frame, preconditionsOK bool) bool {
	if d.state == Cooldown {
		d.cooldownCounter--
		if d.cooldownCounter <= 0 {
			d.state = Idle
		}
		return false
	}

	if !preconditionsOK {
		d.consistency = nil
		if d.state == PinchDetected {
			d.falsePositives++
		}
		d.state = Idle
		return false
	}

	distance := d.fingertipDistance(f)
	isPinched := distance < d.PinchThreshold

	d.consistency = append(d.consistency, isPinched)
	if len(d.consistency) > consistencyBufferSize {
		d.consistency = d.consistency[len(d.consistency)-consistencyBufferSize:]
	}
	consistent := len(d.consistency) == consistencyBufferSize && allEqual(d.consistency, isPinched)

	switch d.state {
	case Idle:
		if consistent && isPinched {
			d.state = PinchDetected
		}
	case PinchDetected:
		if consistent && isPinched {
			d.state = ClickTriggered
			d.enterCooldown()
			return true
		}
		if !isPinched {
			d.falsePositives++
			d.state = Idle
		}
	case ClickTriggered:
		if !isPinched {
			d.state = Idle
		}
	}
	return false
}

func (d *Detector) enterCooldown() {
	d.state = Cooldown
	d.cooldownCounter = CooldownFrames
}

func allEqual(values []bool, want bool) bool {
	for _, v := range values {
		if v != want {
			return false
		}
	}
	return true
}

// FalsePositives returns the count of PINCH_DETECTED -> IDLE transitions
// observed so far, supplementing the state machine with the visibility a
// calibration UI would want.
func (d *Detector) FalsePositives() int { return d.falsePositives }

// State returns the detector's current state.
func (d *Detector) State() State { return d.state }

// BeginCalibration starts an adaptive-threshold calibration window: the
// next adaptiveCalibrationSamples calls to ObserveCalibrationSample feed
// the median wrist-to-middle-tip distance used to rescale thresholds.
// Adaptive thresholds are disabled by default; callers must opt in.
func (d *Detector) BeginCalibration() {
	d.calibrating = true
	d.calibrationData = d.calibrationData[:0]
}

// ObserveCalibrationSample records one wrist-to-middle-tip distance sample.
// Once adaptiveCalibrationSamples samples have been collected, thresholds
// are rescaled by median/adaptiveReferenceDistance and calibration ends.
func (d *Detector) ObserveCalibrationSample(wristToMiddleTip float64) {
	if !d.calibrating {
		return
	}
	d.calibrationData = append(d.calibrationData, wristToMiddleTip)
	if len(d.calibrationData) < adaptiveCalibrationSamples {
		return
	}

	median := medianOf(d.calibrationData)
	scale := median / adaptiveReferenceDistance
	d.PinchThreshold *= scale
	d.ReleaseThreshold *= scale
	d.calibrating = false
}

func medianOf(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// Pair fires one hand's left/right click pair for the current frame.
// Preconditions are evaluated once and shared; when both detectors fire
// the same frame, left wins.
type Pair struct {
	Preconditions *Preconditions
	Left          *Detector
	Right         *Detector
}

// NewPair returns a Pair with fresh preconditions and both detectors.
func NewPair() *Pair {
	return &Pair{
		Preconditions: NewPreconditions(),
		Left:          NewDetector(LeftClick),
		Right:         NewDetector(RightClick),
	}
}

// Step advances both detectors for one frame and returns which side (if
// any) fired a click. When both fire the same frame, left wins and right's
// firing is suppressed for that frame's report (its state machine still
// advances).
func (p *Pair) Step(f Frame, stabilityThreshold float64) (firedLeft, firedRight bool) {
	ok := p.Preconditions.Evaluate(f, stabilityThreshold)
	leftFired := p.Left.Step(f, ok)
	rightFired := p.Right.Step(f, ok)
	if leftFired {
		return true, false
	}
	return false, rightFired
}

// Stats reports each side's accumulated false-positive count, supplementing
// the transition table with the counters a calibration UI would read.
func (p *Pair) Stats() (leftFalsePositives, rightFalsePositives int) {
	return p.Left.FalsePositives(), p.Right.FalsePositives()
}
