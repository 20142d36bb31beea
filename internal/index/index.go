// Package index narrows the set of gesture templates considered for a DTW
// match down to a small, plausible candidate set before any expensive DTW
// work runs. It runs a hand-rolled k-means clusterer (seeded and bounded the
// way a DBSCAN clusterer in a LiDAR perception stack is parameterized and
// re-run deterministically) followed by a handful of cheap feature-distance
// rejections, generalizing a tolerance-gated linear scan into a two-stage
// filter.
package index

import (
	"math"
	"sort"
	"time"

	"github.com/ayusman/airclick/internal/dtw"
	"github.com/ayusman/airclick/internal/landmark"
	"github.com/ayusman/airclick/internal/signature"
)

// Template is a registered gesture: its raw frames, cached features and
// signature, an optional per-template acceptance threshold, and the cluster
// it was last assigned to.
type Template struct {
	ID                string
	Name              string
	Frames            landmark.FrameSequence
	Features          landmark.NormalizedFeatures
	Signature         signature.Signature
	AdaptiveThreshold *float64
	ClusterID         int
}

// Sequence returns t's features as a dtw.Sequence.
func (t *Template) Sequence() dtw.Sequence {
	out := make(dtw.Sequence, len(t.Features))
	for i, row := range t.Features {
		out[i] = append([]float64(nil), row[:]...)
	}
	return out
}

const (
	minClusterableTemplates = 10
	minK                    = 3
	maxK                    = 50
	kmeansSeed              = 42
	kmeansInits             = 10
	kmeansIterations        = 300
	topClusters             = 3

	candidateCap = 50

	strictFilterThreshold = 500

	frameCountRelTol   = 0.5
	centroidDistTol    = 0.3
	trajectoryRelTol   = 0.6
	velocityMeanRelTol = 0.7

	strictFrameCountFactor = 0.7
	strictTrajectoryFactor = 0.8
	strictVelocityFactor   = 0.8
)

// Index holds the built clustering state over a set of templates.
type Index struct {
	templates []*Template
	clusters  []cluster
	dims      [7]dimStats
	built     bool

	lastBuildDuration time.Duration
}

// Stats reports the bookkeeping a calibration or monitoring surface would
// want: how many templates are indexed, how many clusters were formed (0
// when the template set was too small to cluster), and how long the most
// recent Build call took.
type Stats struct {
	TemplatesIndexed int
	ClustersBuilt    int
	LastBuildTime    time.Duration
}

// Stats returns the current indexing statistics.
func (ix *Index) Stats() Stats {
	return Stats{
		TemplatesIndexed: len(ix.templates),
		ClustersBuilt:    len(ix.clusters),
		LastBuildTime:    ix.lastBuildDuration,
	}
}

type cluster struct {
	centroid [7]float64
}

type dimStats struct {
	mean, std float64
}

// New returns an empty Index.
func New() *Index {
	return &Index{}
}

// Build rebuilds the index from scratch over templates. Per the rebuild
// policy, callers must call Build again after any add/update/delete.
func (ix *Index) Build(templates []*Template) {
	start := time.Now()
	defer func() { ix.lastBuildDuration = time.Since(start) }()

	ix.templates = templates
	ix.clusters = nil
	ix.built = true

	n := len(templates)
	if n < minClusterableTemplates {
		return
	}

	vectors := make([][7]float64, n)
	for i, tpl := range templates {
		vectors[i] = featureVector(tpl.Signature)
	}
	ix.dims = standardizeStats(vectors)
	standardized := make([][7]float64, n)
	for i, v := range vectors {
		standardized[i] = standardize(v, ix.dims)
	}

	k := n
	if r := int(math.Sqrt(float64(n))); r < k {
		k = r
	}
	if k < minK {
		k = minK
	}
	if k > maxK {
		k = maxK
	}
	if k > n {
		k = n
	}

	assignments, centroids := kmeans(standardized, k, kmeansSeed, kmeansInits, kmeansIterations)
	ix.clusters = make([]cluster, len(centroids))
	for i, c := range centroids {
		ix.clusters[i] = cluster{centroid: c}
	}
	for i, tpl := range templates {
		tpl.ClusterID = assignments[i]
	}
}

func featureVector(sig signature.Signature) [7]float64 {
	return [7]float64{
		float64(sig.FrameCount) / 100.0,
		sig.Centroid.X,
		sig.Centroid.Y,
		sig.Centroid.Z,
		sig.TrajectoryLen,
		sig.VelocityMean,
		sig.VelocityStdDev,
	}
}

func standardizeStats(vectors [][7]float64) [7]dimStats {
	var stats [7]dimStats
	n := float64(len(vectors))
	for d := 0; d < 7; d++ {
		var sum float64
		for _, v := range vectors {
			sum += v[d]
		}
		mean := sum / n
		var variance float64
		for _, v := range vectors {
			diff := v[d] - mean
			variance += diff * diff
		}
		std := math.Sqrt(variance / n)
		stats[d] = dimStats{mean: mean, std: std}
	}
	return stats
}

func standardize(v [7]float64, stats [7]dimStats) [7]float64 {
	var out [7]float64
	for d := 0; d < 7; d++ {
		if stats[d].std < 1e-9 {
			out[d] = 0
			continue
		}
		out[d] = (v[d] - stats[d].mean) / stats[d].std
	}
	return out
}

// kmeansRNG is a small deterministic linear congruential generator so
// cluster initialization is reproducible across runs without depending on
// math/rand's global state.
type kmeansRNG struct{ state uint64 }

func newKmeansRNG(seed uint64) *kmeansRNG { return &kmeansRNG{state: seed + 1} }

func (r *kmeansRNG) next() uint64 {
	r.state = r.state*6364136223846793005 + 1442695040888963407
	return r.state
}

func (r *kmeansRNG) intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.next() % uint64(n))
}

func sqDist7(a, b [7]float64) float64 {
	var sum float64
	for d := 0; d < 7; d++ {
		diff := a[d] - b[d]
		sum += diff * diff
	}
	return sum
}

// kmeans runs k-means clustering with the given fixed seed, up to maxInits
// random restarts (keeping the lowest-inertia result), and up to
// maxIterations Lloyd iterations each. Returns per-point cluster
// assignments and the winning centroids.
func kmeans(points [][7]float64, k, seed, maxInits, maxIterations int) ([]int, [][7]float64) {
	n := len(points)
	bestInertia := math.Inf(1)
	var bestAssignments []int
	var bestCentroids [][7]float64

	rng := newKmeansRNG(uint64(seed))

	for init := 0; init < maxInits; init++ {
		centroids := make([][7]float64, k)
		chosen := map[int]bool{}
		for len(chosen) < k && len(chosen) < n {
			idx := rng.intn(n)
			if chosen[idx] {
				continue
			}
			chosen[idx] = true
			centroids[len(chosen)-1] = points[idx]
		}

		assignments := make([]int, n)
		for iter := 0; iter < maxIterations; iter++ {
			changed := false
			for i, p := range points {
				best := 0
				bestD := math.Inf(1)
				for c, centroid := range centroids {
					d := sqDist7(p, centroid)
					if d < bestD {
						bestD = d
						best = c
					}
				}
				if assignments[i] != best {
					assignments[i] = best
					changed = true
				}
			}

			sums := make([][7]float64, k)
			counts := make([]int, k)
			for i, p := range points {
				c := assignments[i]
				counts[c]++
				for d := 0; d < 7; d++ {
					sums[c][d] += p[d]
				}
			}
			for c := range centroids {
				if counts[c] == 0 {
					continue
				}
				for d := 0; d < 7; d++ {
					centroids[c][d] = sums[c][d] / float64(counts[c])
				}
			}

			if !changed && iter > 0 {
				break
			}
		}

		var inertia float64
		for i, p := range points {
			inertia += sqDist7(p, centroids[assignments[i]])
		}
		if inertia < bestInertia {
			bestInertia = inertia
			bestAssignments = assignments
			bestCentroids = centroids
		}
	}

	return bestAssignments, bestCentroids
}

// Templates returns every registered template, in build order.
func (ix *Index) Templates() []*Template { return ix.templates }

// Len returns the number of registered templates.
func (ix *Index) Len() int { return len(ix.templates) }

// ByID returns the registered template with the given ID, or nil if none
// matches.
func (ix *Index) ByID(id string) *Template {
	for _, tpl := range ix.templates {
		if tpl.ID == id {
			return tpl
		}
	}
	return nil
}

// Query returns the templates that survive clustering plus early rejection
// against the given input signature, capped at candidateCap entries in
// insertion order.
func (ix *Index) Query(input signature.Signature) []*Template {
	pool := ix.templates
	if ix.built && len(ix.clusters) > 0 {
		pool = ix.clusterFiltered(input)
	}

	strict := len(ix.templates) > strictFilterThreshold

	candidates := make([]*Template, 0, candidateCap)
	for _, tpl := range pool {
		if !passesEarlyRejection(input, tpl.Signature, strict) {
			continue
		}
		candidates = append(candidates, tpl)
		if len(candidates) >= candidateCap {
			break
		}
	}
	return candidates
}

func (ix *Index) clusterFiltered(input signature.Signature) []*Template {
	v := standardize(featureVector(input), ix.dims)

	type clusterDist struct {
		id   int
		dist float64
	}
	dists := make([]clusterDist, len(ix.clusters))
	for i, c := range ix.clusters {
		dists[i] = clusterDist{id: i, dist: sqDist7(v, c.centroid)}
	}
	sort.Slice(dists, func(i, j int) bool { return dists[i].dist < dists[j].dist })

	keep := map[int]bool{}
	for i := 0; i < topClusters && i < len(dists); i++ {
		keep[dists[i].id] = true
	}

	out := make([]*Template, 0, len(ix.templates))
	for _, tpl := range ix.templates {
		if keep[tpl.ClusterID] {
			out = append(out, tpl)
		}
	}
	return out
}

func passesEarlyRejection(input, candidate signature.Signature, strict bool) bool {
	frameTol := frameCountRelTol
	trajectoryTol := trajectoryRelTol
	velocityTol := velocityMeanRelTol
	if strict {
		frameTol *= strictFrameCountFactor
		trajectoryTol *= strictTrajectoryFactor
		velocityTol *= strictVelocityFactor
	}

	if relDiff(float64(input.FrameCount), float64(candidate.FrameCount)) > frameTol {
		return false
	}
	if input.Handedness != candidate.Handedness {
		return false
	}
	if input.Centroid.Distance(candidate.Centroid) > centroidDistTol {
		return false
	}
	if relDiff(input.TrajectoryLen, candidate.TrajectoryLen) > trajectoryTol {
		return false
	}
	if relDiff(input.VelocityMean, candidate.VelocityMean) > velocityTol {
		return false
	}
	return true
}

func relDiff(a, b float64) float64 {
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom < 1e-9 {
		return 0
	}
	return math.Abs(a-b) / denom
}
