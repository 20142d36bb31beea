// Package matcher orchestrates a single match(input, templates) call: cache
// lookup, feature extraction, candidate narrowing via the indexer, scoring
// over a bounded worker pool, and threshold-gated acceptance. Generalizes a
// normalize-score-every-template-keep-the-best orchestration from a full
// linear scan into the cache+index+worker-pool pipeline this design calls
// for, with context.Context plumbed through the way a bounded executor
// bounds its own work.
package matcher

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ayusman/airclick/internal/cache"
	"github.com/ayusman/airclick/internal/dtw"
	"github.com/ayusman/airclick/internal/ensemble"
	"github.com/ayusman/airclick/internal/index"
	"github.com/ayusman/airclick/internal/landmark"
	"github.com/ayusman/airclick/internal/onefilter"
	"github.com/ayusman/airclick/internal/preprocess"
	"github.com/ayusman/airclick/internal/resample"
	"github.com/ayusman/airclick/internal/signature"
)

const (
	// DefaultThreshold is the global acceptance threshold used when a
	// template has no per-template adaptive threshold.
	DefaultThreshold = 0.65

	// DefaultWorkerCount bounds the candidate-scoring fan-out.
	DefaultWorkerCount = 4

	// indexerThreshold is the candidate count above which the indexer is
	// consulted instead of scoring every template.
	indexerThreshold = 10

	// fanOutThreshold is the candidate count above which scoring runs on
	// the bounded worker pool instead of sequentially.
	fanOutThreshold = 10

	minInputFrames = 5
)

// ScoreKind distinguishes a raw DTW distance from an already-converted
// similarity, so the threshold gate never reconverts a similarity through
// the ensemble ceiling a second time.
type ScoreKind int

const (
	// DistanceScore marks a raw DTW distance still needing conversion.
	DistanceScore ScoreKind = iota
	// SimilarityScore marks a value already in [0,1].
	SimilarityScore
)

// Score pairs a scoring value with its kind, so logging and aggregation
// stay unambiguous about whether a conversion is still owed.
type Score struct {
	Value float64
	Kind  ScoreKind
}

func (s Score) similarity() float64 {
	if s.Kind == SimilarityScore {
		return s.Value
	}
	return ensemble.Similarity(s.Value)
}

// Outcome is a successful match: the winning template's ID and the
// similarity it scored.
type Outcome struct {
	TemplateID string
	Similarity float64
}

// Stats reports the run-level detail a gesture_match emission needs beyond
// the winning outcome itself. Passing nil to Match skips this bookkeeping.
type Stats struct {
	CandidatesEvaluated int
	TotalTimeMs         float64
}

// Matcher holds the shared cache and worker-pool configuration for a
// session's match calls. It is safe for concurrent use.
type Matcher struct {
	Cache       *cache.Cache
	Threshold   float64
	WorkerCount int
}

// New returns a Matcher with the default threshold and worker count,
// backed by c.
func New(c *cache.Cache) *Matcher {
	return &Matcher{Cache: c, Threshold: DefaultThreshold, WorkerCount: DefaultWorkerCount}
}

// Match runs the full orchestration contract against ix's templates.
// Returns (nil, nil) when no candidate clears the threshold gate, never an
// error for that case — errors are reserved for malformed input.
func (m *Matcher) Match(ctx context.Context, input landmark.FrameSequence, ix *index.Index, userID, appContext string, stats *Stats) (*Outcome, error) {
	start := time.Now()
	if stats != nil {
		defer func() {
			stats.TotalTimeMs = float64(time.Since(start).Microseconds()) / 1000.0
		}()
	}

	if ix.Len() == 0 {
		return nil, landmark.NewInputError("no templates registered")
	}
	if len(input) < minInputFrames {
		return nil, landmark.NewInputError("fewer than 5 input frames")
	}

	matchKey := cache.MatchKey(input, userID, appContext)
	if hit, ok := m.Cache.GetMatch(matchKey); ok {
		if stats != nil {
			stats.CandidatesEvaluated = 1
		}
		return &Outcome{TemplateID: hit.TemplateID, Similarity: hit.Similarity}, nil
	}

	inputSeq, inputSig, err := m.extractFeatures(input)
	if err != nil {
		return nil, err
	}

	candidates := m.selectCandidates(ix, inputSig)
	if stats != nil {
		stats.CandidatesEvaluated = len(candidates)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	best, bestSim := m.scoreCandidates(ctx, input, inputSeq, candidates)
	if best == nil {
		return nil, nil
	}

	threshold := m.Threshold
	if best.AdaptiveThreshold != nil {
		threshold = *best.AdaptiveThreshold
	}
	if bestSim < threshold {
		return nil, nil
	}

	m.Cache.PutMatch(matchKey, userID, cache.MatchResult{TemplateID: best.ID, Similarity: bestSim})
	return &Outcome{TemplateID: best.ID, Similarity: bestSim}, nil
}

// extractFeatures runs the matching-discipline feature extraction: resample
// to 60, stateful One-Euro smoothing (fresh per call, since each input
// sequence is an independent gesture attempt), Procrustes + trajectory
// encoding, single-scale bone normalization, flatten. No z-score
// normalization is applied afterward, since that would erase the geometric
// features Procrustes already established.
func (m *Matcher) extractFeatures(input landmark.FrameSequence) (dtw.Sequence, signature.Signature, error) {
	var zero dtw.Sequence

	sig, err := signature.Extract(input)
	if err != nil {
		return zero, sig, err
	}

	featureKey := cache.FramesHash(input, 3)
	if cached, ok := m.Cache.GetFeatures(featureKey); ok {
		return toSequence(cached), sig, nil
	}

	resampled, err := resample.Resample(input)
	if err != nil {
		return zero, sig, err
	}

	smoothed := smoothSequence(resampled)

	features, err := preprocess.NormalizeResampled(smoothed)
	if err != nil {
		return zero, sig, err
	}

	m.Cache.PutFeatures(featureKey, features)
	return toSequence(features), sig, nil
}

// smoothSequence applies a fresh per-axis One-Euro filter bank across the
// resampled sequence, treating frame index as the synthetic 30fps timeline
// since resample.Resample fixes the frame count but not wall-clock spacing.
func smoothSequence(seq landmark.FrameSequence) landmark.FrameSequence {
	bank := onefilter.NewBank(onefilter.DefaultMinCutoff, onefilter.DefaultBeta, onefilter.DefaultDCutoff)

	out := make(landmark.FrameSequence, len(seq))
	for i, f := range seq {
		t := int64(i) * 33
		flat := f.Flatten()
		smoothed := bank.Apply(flat[:], t)

		g := f
		for lm := 0; lm < landmark.NumLandmarks; lm++ {
			base := lm * 3
			g.Landmarks[lm] = landmark.Point{X: smoothed[base], Y: smoothed[base+1], Z: smoothed[base+2]}
		}
		out[i] = g
	}
	return out
}

func toSequence(features landmark.NormalizedFeatures) dtw.Sequence {
	out := make(dtw.Sequence, len(features))
	for i, row := range features {
		out[i] = append([]float64(nil), row[:]...)
	}
	return out
}

func (m *Matcher) selectCandidates(ix *index.Index, inputSig signature.Signature) []*index.Template {
	if ix.Len() > indexerThreshold {
		return ix.Query(inputSig)
	}
	return ix.Templates()
}

func (m *Matcher) scoreCandidates(ctx context.Context, inputFrames landmark.FrameSequence, inputSeq dtw.Sequence, candidates []*index.Template) (*index.Template, float64) {
	score := func(tpl *index.Template) float64 {
		return m.scoreOne(inputFrames, inputSeq, tpl)
	}

	if len(candidates) <= fanOutThreshold {
		var best *index.Template
		bestSim := -1.0
		for _, tpl := range candidates {
			if ctx.Err() != nil {
				break
			}
			if sim := score(tpl); sim > bestSim {
				bestSim = sim
				best = tpl
			}
		}
		return best, bestSim
	}

	workers := m.WorkerCount
	if workers <= 0 {
		workers = DefaultWorkerCount
	}

	jobs := make(chan *index.Template)
	var mu sync.Mutex
	var best *index.Template
	bestSim := -1.0

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tpl := range jobs {
				sim := score(tpl)
				mu.Lock()
				if sim > bestSim {
					bestSim = sim
					best = tpl
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, tpl := range candidates {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- tpl:
		}
	}
	close(jobs)
	wg.Wait()

	return best, bestSim
}

// scoreOne computes a single candidate's similarity, using the dtw_cache to
// avoid recomputation across repeated matches against the same pair, and
// never failing the overall match on a single candidate's error — it logs
// and scores the candidate 0 instead. The dtw_cache entry for the pair holds
// the final ensemble similarity, not a raw DTW distance.
func (m *Matcher) scoreOne(inputFrames landmark.FrameSequence, inputSeq dtw.Sequence, tpl *index.Template) float64 {
	pairKey := cache.PairHash(inputFrames, tpl.Frames, 3)
	if cached, ok := m.Cache.GetDTW(pairKey); ok {
		return cached
	}

	sim, err := func() (sim float64, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = landmark.NewScoringError("candidate scoring panicked", nil)
			}
		}()
		return ensemble.DefaultMatch(inputSeq, tpl.Sequence()), nil
	}()
	if err != nil {
		log.Printf("matcher: candidate %s scoring failed: %v", tpl.ID, err)
		return 0
	}

	score := Score{Value: sim, Kind: SimilarityScore}
	result := score.similarity()
	m.Cache.PutDTW(pairKey, result)
	return result
}
