// Package signature computes a cheap, deterministic summary of a raw
// landmark frame sequence — frame count, handedness, bounding box,
// centroid, trajectory length, and wrist-speed statistics — used by the
// indexer to reject obviously-dissimilar templates before any DTW work
// runs. Generalizes template/path-point bookkeeping from a stored template
// field into a computed O(N) summary shared by matcher and indexer alike.
package signature

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/airclick/internal/landmark"
)

// Signature is the deterministic O(N) summary of a frame sequence.
type Signature struct {
	FrameCount     int
	Handedness     landmark.Handedness
	BoundingMin    landmark.Point
	BoundingMax    landmark.Point
	Centroid       landmark.Point
	TrajectoryLen  float64
	VelocityMean   float64
	VelocityStdDev float64
}

const wristDt = 1.0 / 30.0

// Extract computes a Signature from seq. seq must contain at least one
// frame.
func Extract(seq landmark.FrameSequence) (Signature, error) {
	if len(seq) == 0 {
		return Signature{}, landmark.NewInputError("cannot extract a signature from an empty sequence")
	}

	sig := Signature{
		FrameCount: len(seq),
		Handedness: seq[0].Handedness,
	}

	min := seq[0].Landmarks[0]
	max := seq[0].Landmarks[0]
	var sum landmark.Point
	var count int

	for _, f := range seq {
		for _, p := range f.Landmarks {
			min = landmark.Point{X: math.Min(min.X, p.X), Y: math.Min(min.Y, p.Y), Z: math.Min(min.Z, p.Z)}
			max = landmark.Point{X: math.Max(max.X, p.X), Y: math.Max(max.Y, p.Y), Z: math.Max(max.Z, p.Z)}
			sum = sum.Add(p)
			count++
		}
	}
	sig.BoundingMin = min
	sig.BoundingMax = max
	sig.Centroid = sum.Scale(1 / float64(count))

	var trajectoryLen float64
	speeds := make([]float64, 0, len(seq)-1)
	for i := 1; i < len(seq); i++ {
		delta := seq[i].Landmarks[landmark.Wrist].Distance(seq[i-1].Landmarks[landmark.Wrist])
		trajectoryLen += delta
		speeds = append(speeds, delta/wristDt)
	}
	sig.TrajectoryLen = trajectoryLen

	if len(speeds) > 0 {
		mean, std := stat.MeanStdDev(speeds, nil)
		sig.VelocityMean = mean
		sig.VelocityStdDev = std
	}

	return sig, nil
}
