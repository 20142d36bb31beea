// Package preprocess makes a hand-landmark frame sequence invariant to
// translation, scale, and base orientation while preserving motion
// direction, generalizing per-frame wrist-relative normalization from a
// single static pose into a full sequence pipeline with outlier rejection,
// per-frame Procrustes alignment, a direction-preserving trajectory
// encoding, and a single-scale bone-length normalization.
package preprocess

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/airclick/internal/landmark"
	"github.com/ayusman/airclick/internal/resample"
)

const (
	minConfidence  = 0.7
	outlierFactor  = 5.0
	minSurvivors   = 5
	trajectoryGain = 0.02
	trajectoryCap  = 0.05
)

// Process runs the full preprocessing pipeline on seq and returns the
// resulting (60,63) NormalizedFeatures. At least 5 frames must survive
// confidence filtering and outlier removal, or Process returns a
// PreprocessingError; the surviving frames are resampled, so the result
// always has exactly landmark.ResampledLength frames when it succeeds.
func Process(seq landmark.FrameSequence) (landmark.NormalizedFeatures, error) {
	var out landmark.NormalizedFeatures

	filtered := filterByConfidence(seq)
	if len(filtered) < minSurvivors {
		return out, landmark.NewPreprocessingError("fewer than 5 frames survive confidence filtering")
	}

	deJumped, err := removeOutliers(filtered)
	if err != nil {
		return out, err
	}

	resampled, err := resample.Resample(deJumped)
	if err != nil {
		return out, err
	}

	return NormalizeResampled(resampled)
}

// NormalizeResampled runs the geometric half of the pipeline — per-frame
// Procrustes alignment, trajectory encoding, single-scale bone-length
// normalization, and flattening — on a sequence that has already been
// resampled to landmark.ResampledLength frames. It is exported so callers
// with their own upstream treatment of raw frames (for example a stateful
// One-Euro smoothing pass instead of outlier rejection) can still share
// this geometric normalization discipline.
func NormalizeResampled(resampled landmark.FrameSequence) (landmark.NormalizedFeatures, error) {
	var out landmark.NormalizedFeatures
	if len(resampled) != landmark.ResampledLength {
		return out, landmark.NewPreprocessingError("NormalizeResampled requires exactly ResampledLength frames")
	}

	raw := make([][landmark.NumLandmarks]landmark.Point, len(resampled))
	for i, f := range resampled {
		raw[i] = f.Landmarks
	}

	normalized := make([][landmark.NumLandmarks]landmark.Point, len(raw))
	for i, pts := range raw {
		normalized[i] = procrustes(pts)
	}

	encodeTrajectory(normalized, raw)

	s := boneScale(normalized)
	if s < 1e-6 {
		return out, landmark.NewPreprocessingError("degenerate reference scale")
	}
	for i := range normalized {
		for j := range normalized[i] {
			normalized[i][j] = normalized[i][j].Scale(1 / s)
		}
	}

	for i, pts := range normalized {
		f := landmark.Frame{Landmarks: pts}
		out[i] = f.Flatten()
	}
	return out, nil
}

func filterByConfidence(seq landmark.FrameSequence) landmark.FrameSequence {
	out := make(landmark.FrameSequence, 0, len(seq))
	for _, f := range seq {
		if f.Confidence < minConfidence {
			continue
		}
		out = append(out, f)
	}
	return out
}

// removeOutliers computes the mean per-landmark movement between consecutive
// frames, flags any frame whose movement from its predecessor exceeds
// outlierFactor times the median movement as a sudden jump, and drops it.
func removeOutliers(seq landmark.FrameSequence) (landmark.FrameSequence, error) {
	if len(seq) < 2 {
		if len(seq) < minSurvivors {
			return nil, landmark.NewPreprocessingError("fewer than 5 frames survive outlier removal")
		}
		return seq, nil
	}

	movements := make([]float64, len(seq)-1)
	for i := 1; i < len(seq); i++ {
		movements[i-1] = meanLandmarkMovement(seq[i-1], seq[i])
	}

	sorted := append([]float64(nil), movements...)
	sort.Float64s(sorted)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)

	out := make(landmark.FrameSequence, 0, len(seq))
	out = append(out, seq[0])
	threshold := outlierFactor * median
	for i := 1; i < len(seq); i++ {
		if movements[i-1] > threshold {
			continue
		}
		out = append(out, seq[i])
	}

	if len(out) < minSurvivors {
		return nil, landmark.NewPreprocessingError("fewer than 5 frames survive outlier removal")
	}
	return out, nil
}

func meanLandmarkMovement(a, b landmark.Frame) float64 {
	var sum float64
	for i := range a.Landmarks {
		sum += a.Landmarks[i].Distance(b.Landmarks[i])
	}
	return sum / landmark.NumLandmarks
}

// procrustes translates pts so landmark 0 (wrist) is the origin, scales by
// the palm length (distance from wrist to landmark 9), and rotates into an
// orthonormal basis built from the palm-length axis and the index-MCP
// landmark, so every frame shares the same translation/scale/orientation
// frame of reference.
func procrustes(pts [landmark.NumLandmarks]landmark.Point) [landmark.NumLandmarks]landmark.Point {
	var out [landmark.NumLandmarks]landmark.Point

	origin := pts[landmark.Wrist]
	translated := make([]landmark.Point, landmark.NumLandmarks)
	for i, p := range pts {
		translated[i] = p.Sub(origin)
	}

	scale := translated[landmark.MiddleMCP].Norm()
	if scale > 1e-6 {
		for i := range translated {
			translated[i] = translated[i].Scale(1 / scale)
		}
	}

	primary := translated[landmark.MiddleMCP].Unit()
	aux := translated[landmark.IndexMCP]
	third := primary.Cross(aux).Unit()
	if third.Norm() < 1e-9 {
		third = landmark.Point{Z: 1}
	}
	second := third.Cross(primary).Unit()

	for i, p := range translated {
		out[i] = landmark.Point{
			X: p.Dot(primary),
			Y: p.Dot(second),
			Z: p.Dot(third),
		}
	}
	return out
}

// encodeTrajectory preserves motion direction, which per-frame Procrustes
// alignment would otherwise erase, by computing wrist-to-wrist deltas from
// the raw (pre-Procrustes) frames and folding the unit direction vector's
// X/Y components into two slack channels of the normalized array: landmark
// 0's Z coordinate and landmark 9's Z coordinate.
func encodeTrajectory(normalized, raw [][landmark.NumLandmarks]landmark.Point) {
	n := len(raw)
	if n < 2 {
		return
	}
	for i := 0; i < n-1; i++ {
		delta := raw[i+1][landmark.Wrist].Sub(raw[i][landmark.Wrist])
		dir := delta.Unit()
		w := math.Min(dir.Norm()*trajectoryGain, trajectoryCap)

		normalized[i][landmark.Wrist].Z += dir.X * w
		normalized[i][landmark.MiddleMCP].Z += dir.Y * w
	}
}

// boneScale computes the single reference scale s used to normalize bone
// length across the whole sequence: the mean, over all frames, of the
// Euclidean palm diagonal sqrt(palm_width^2 + palm_height^2), where
// palm_width is the distance between the pinky-MCP and index-MCP landmarks
// and palm_height is the distance between the middle-MCP and wrist.
func boneScale(raw [][landmark.NumLandmarks]landmark.Point) float64 {
	samples := make([]float64, len(raw))
	for i, pts := range raw {
		palmWidth := pts[landmark.PinkyMCP].Distance(pts[landmark.IndexMCP])
		palmHeight := pts[landmark.MiddleMCP].Distance(pts[landmark.Wrist])
		samples[i] = math.Sqrt(palmWidth*palmWidth + palmHeight*palmHeight)
	}
	return stat.Mean(samples, nil)
}
