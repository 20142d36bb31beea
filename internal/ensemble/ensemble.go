// Package ensemble combines the three internal/dtw distance measures into a
// single similarity score in [0,1], turning distance into score the way a
// DynamicMatcher's score = 1/(1+distance) does, but using a fixed empirical
// ceiling and a weighted combination across the three DTW variants instead
// of a single inverse-distance transform.
package ensemble

import (
	"github.com/ayusman/airclick/internal/dtw"
)

// DMax is the fixed empirical ceiling distance, chosen because
// post-Procrustes distances cluster well below 100 for genuine matches.
const DMax = 150.0

// Weights are the per-variant contribution weights to the final ensemble
// similarity.
type Weights struct {
	Standard     float64
	Direction    float64
	MultiFeature float64
}

// DefaultWeights are the standard weighting: 0.30/0.35/0.35.
func DefaultWeights() Weights {
	return Weights{Standard: 0.30, Direction: 0.35, MultiFeature: 0.35}
}

// similarity converts a raw DTW distance to a similarity in [0,1].
func similarity(distance float64) float64 {
	s := 1 - distance/DMax
	if s < 0 {
		return 0
	}
	return s
}

// Similarity exposes the DMax-based distance-to-similarity conversion for
// callers that scored a candidate with a distance-valued method and still
// owe it the conversion. Never call this on a value a similarity-valued
// method (e.g. DefaultMatch) already produced.
func Similarity(distance float64) float64 {
	return similarity(distance)
}

// Match computes the ensemble similarity between a and b: the weighted sum
// of the standard, direction-similarity, and multi-feature DTW
// sub-similarities, each independently converted via DMax. The result is
// the final emitted similarity value; callers must never reconvert it
// through DMax a second time.
func Match(a, b dtw.Sequence, w Weights, alpha float64, mfWeights dtw.MultiFeatureWeights) float64 {
	standardSim := similarity(dtw.Standard(a, b, 0))
	directionSim := similarity(dtw.Direction(a, b, alpha))
	multiFeatureSim := similarity(dtw.MultiFeature(a, b, mfWeights))

	return w.Standard*standardSim + w.Direction*directionSim + w.MultiFeature*multiFeatureSim
}

// DefaultMatch computes Match using the default weights, direction alpha
// (0.6), and multi-feature weights.
func DefaultMatch(a, b dtw.Sequence) float64 {
	return Match(a, b, DefaultWeights(), 0.6, dtw.DefaultMultiFeatureWeights())
}
