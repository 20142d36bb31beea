// Package landmark defines the shared hand-landmark data model used across
// the gesture recognition core: points, frames, frame sequences, and the
// error taxonomy components raise when that data is malformed.
package landmark

import "math"

// Hand landmark indices following the MediaPipe convention (21 points per hand).
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21

	// FeatureDim is the flattened per-frame feature width: 21 landmarks * 3 coords.
	FeatureDim = NumLandmarks * 3
	// ResampledLength is the fixed sequence length (T) used for matching/storage.
	ResampledLength = 60
)

// Handedness identifies which hand a frame belongs to.
type Handedness string

const (
	Left  Handedness = "Left"
	Right Handedness = "Right"
)

// Point is a 3D point in normalized image coordinates. X and Y are typically
// in [0,1]; Z is signed depth relative to the wrist.
type Point struct {
	X, Y, Z float64
}

// Sub returns a - b.
func (a Point) Sub(b Point) Point {
	return Point{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z}
}

// Add returns a + b.
func (a Point) Add(b Point) Point {
	return Point{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z}
}

// Scale returns a scaled by s.
func (a Point) Scale(s float64) Point {
	return Point{X: a.X * s, Y: a.Y * s, Z: a.Z * s}
}

// Norm returns the Euclidean norm of the point treated as a vector.
func (a Point) Norm() float64 {
	return math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z)
}

// Dot returns the dot product of a and b.
func (a Point) Dot(b Point) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

// Cross returns the cross product a x b.
func (a Point) Cross(b Point) Point {
	return Point{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

// Unit returns a normalized to unit length, or the zero point if a is
// degenerate (norm below 1e-9).
func (a Point) Unit() Point {
	n := a.Norm()
	if n < 1e-9 {
		return Point{}
	}
	return a.Scale(1 / n)
}

// Distance returns the Euclidean distance between a and b.
func (a Point) Distance(b Point) float64 {
	return a.Sub(b).Norm()
}

// NormalizedFeatures is the preprocessor's output: ResampledLength frames of
// FeatureDim flattened, translation/scale/base-orientation invariant
// coordinates, with motion direction re-encoded into two slack channels.
type NormalizedFeatures [ResampledLength][FeatureDim]float64

// Frame is a single captured instant: a timestamp, 21 landmarks for one hand,
// the hand's handedness, and the detector's confidence for this frame.
type Frame struct {
	TimestampMs int64
	Landmarks   [NumLandmarks]Point
	Handedness  Handedness
	Confidence  float64
}

// FrameSequence is an ordered sequence of Frames belonging to one gesture
// attempt or recording.
type FrameSequence []Frame

// Flatten returns the frame's landmarks as a flat 63-element feature vector
// in landmark-major, coordinate-minor order (x0,y0,z0,x1,y1,z1,...).
func (f Frame) Flatten() [FeatureDim]float64 {
	var out [FeatureDim]float64
	for i, p := range f.Landmarks {
		out[i*3+0] = p.X
		out[i*3+1] = p.Y
		out[i*3+2] = p.Z
	}
	return out
}
