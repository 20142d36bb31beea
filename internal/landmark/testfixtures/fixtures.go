// Package testfixtures provides canned landmark frames and sequences shared
// across the core's test suites, in the spirit of a mock detector's
// preset-pose helpers.
package testfixtures

import "github.com/ayusman/airclick/internal/landmark"

// ThumbsUp returns a single frame representing a thumbs-up pose: thumb
// extended upward, remaining fingers curled toward the palm.
func ThumbsUp() landmark.Frame {
	f := landmark.Frame{Handedness: landmark.Right, Confidence: 0.95}
	p := &f.Landmarks

	p[landmark.Wrist] = landmark.Point{X: 0.5, Y: 0.8, Z: 0.0}

	p[landmark.ThumbCMC] = landmark.Point{X: 0.55, Y: 0.75, Z: 0.0}
	p[landmark.ThumbMCP] = landmark.Point{X: 0.58, Y: 0.65, Z: 0.0}
	p[landmark.ThumbIP] = landmark.Point{X: 0.58, Y: 0.50, Z: 0.0}
	p[landmark.ThumbTip] = landmark.Point{X: 0.58, Y: 0.35, Z: 0.0}

	p[landmark.IndexMCP] = landmark.Point{X: 0.55, Y: 0.70, Z: -0.02}
	p[landmark.IndexPIP] = landmark.Point{X: 0.55, Y: 0.68, Z: -0.05}
	p[landmark.IndexDIP] = landmark.Point{X: 0.52, Y: 0.70, Z: -0.04}
	p[landmark.IndexTip] = landmark.Point{X: 0.50, Y: 0.72, Z: -0.02}

	p[landmark.MiddleMCP] = landmark.Point{X: 0.50, Y: 0.68, Z: -0.02}
	p[landmark.MiddlePIP] = landmark.Point{X: 0.50, Y: 0.66, Z: -0.05}
	p[landmark.MiddleDIP] = landmark.Point{X: 0.47, Y: 0.68, Z: -0.04}
	p[landmark.MiddleTip] = landmark.Point{X: 0.45, Y: 0.70, Z: -0.02}

	p[landmark.RingMCP] = landmark.Point{X: 0.45, Y: 0.70, Z: -0.02}
	p[landmark.RingPIP] = landmark.Point{X: 0.45, Y: 0.68, Z: -0.05}
	p[landmark.RingDIP] = landmark.Point{X: 0.42, Y: 0.70, Z: -0.04}
	p[landmark.RingTip] = landmark.Point{X: 0.40, Y: 0.72, Z: -0.02}

	p[landmark.PinkyMCP] = landmark.Point{X: 0.40, Y: 0.72, Z: -0.02}
	p[landmark.PinkyPIP] = landmark.Point{X: 0.40, Y: 0.70, Z: -0.05}
	p[landmark.PinkyDIP] = landmark.Point{X: 0.37, Y: 0.72, Z: -0.04}
	p[landmark.PinkyTip] = landmark.Point{X: 0.35, Y: 0.74, Z: -0.02}

	return f
}

// OpenPalm returns a single frame representing an open-palm pose: all
// fingers extended.
func OpenPalm() landmark.Frame {
	f := landmark.Frame{Handedness: landmark.Right, Confidence: 0.95}
	p := &f.Landmarks

	p[landmark.Wrist] = landmark.Point{X: 0.5, Y: 0.8, Z: 0.0}

	p[landmark.ThumbCMC] = landmark.Point{X: 0.55, Y: 0.75, Z: 0.02}
	p[landmark.ThumbMCP] = landmark.Point{X: 0.62, Y: 0.70, Z: 0.03}
	p[landmark.ThumbIP] = landmark.Point{X: 0.68, Y: 0.65, Z: 0.03}
	p[landmark.ThumbTip] = landmark.Point{X: 0.73, Y: 0.60, Z: 0.03}

	p[landmark.IndexMCP] = landmark.Point{X: 0.55, Y: 0.68, Z: 0.0}
	p[landmark.IndexPIP] = landmark.Point{X: 0.57, Y: 0.55, Z: 0.0}
	p[landmark.IndexDIP] = landmark.Point{X: 0.58, Y: 0.45, Z: 0.0}
	p[landmark.IndexTip] = landmark.Point{X: 0.58, Y: 0.35, Z: 0.0}

	p[landmark.MiddleMCP] = landmark.Point{X: 0.50, Y: 0.66, Z: 0.0}
	p[landmark.MiddlePIP] = landmark.Point{X: 0.50, Y: 0.52, Z: 0.0}
	p[landmark.MiddleDIP] = landmark.Point{X: 0.50, Y: 0.40, Z: 0.0}
	p[landmark.MiddleTip] = landmark.Point{X: 0.50, Y: 0.28, Z: 0.0}

	p[landmark.RingMCP] = landmark.Point{X: 0.45, Y: 0.68, Z: 0.0}
	p[landmark.RingPIP] = landmark.Point{X: 0.43, Y: 0.55, Z: 0.0}
	p[landmark.RingDIP] = landmark.Point{X: 0.42, Y: 0.45, Z: 0.0}
	p[landmark.RingTip] = landmark.Point{X: 0.42, Y: 0.35, Z: 0.0}

	p[landmark.PinkyMCP] = landmark.Point{X: 0.40, Y: 0.70, Z: 0.0}
	p[landmark.PinkyPIP] = landmark.Point{X: 0.37, Y: 0.60, Z: 0.0}
	p[landmark.PinkyDIP] = landmark.Point{X: 0.35, Y: 0.50, Z: 0.0}
	p[landmark.PinkyTip] = landmark.Point{X: 0.34, Y: 0.42, Z: 0.0}

	return f
}

// Swipe generates a synthetic dynamic-gesture sequence of n frames, 33ms
// apart, in which the whole hand translates linearly from (x0,y) to (x1,y)
// while keeping the OpenPalm finger configuration. x1 > x0 is a
// left-to-right swipe; Mirror() of it produces the opposite-direction swipe
// (handedness unchanged) used by direction-discrimination tests.
func Swipe(n int, x0, x1, y float64) landmark.FrameSequence {
	base := OpenPalm()
	wrist := base.Landmarks[landmark.Wrist]

	seq := make(landmark.FrameSequence, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		cx := x0 + (x1-x0)*t
		cy := y
		f := base
		f.TimestampMs = int64(i) * 33
		for j, p := range base.Landmarks {
			f.Landmarks[j] = landmark.Point{
				X: p.X - wrist.X + cx,
				Y: p.Y - wrist.Y + cy,
				Z: p.Z,
			}
		}
		seq[i] = f
	}
	return seq
}

// Mirror returns a copy of seq reflected horizontally (x -> 1-x), used to
// build the opposite-direction gesture in direction-discrimination tests.
func Mirror(seq landmark.FrameSequence) landmark.FrameSequence {
	out := make(landmark.FrameSequence, len(seq))
	for i, f := range seq {
		g := f
		for j, p := range f.Landmarks {
			g.Landmarks[j] = landmark.Point{X: 1 - p.X, Y: p.Y, Z: p.Z}
		}
		out[i] = g
	}
	return out
}

// WithNoise adds small deterministic per-frame jitter to seq so a noised
// copy of a sequence is distinguishable from, but close to, the original.
func WithNoise(seq landmark.FrameSequence, amplitude float64) landmark.FrameSequence {
	out := make(landmark.FrameSequence, len(seq))
	for i, f := range seq {
		g := f
		for j, p := range f.Landmarks {
			sign := 1.0
			if (i+j)%2 == 0 {
				sign = -1.0
			}
			g.Landmarks[j] = landmark.Point{
				X: p.X + sign*amplitude,
				Y: p.Y - sign*amplitude,
				Z: p.Z,
			}
		}
		out[i] = g
	}
	return out
}
