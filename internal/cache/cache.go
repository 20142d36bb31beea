// Package cache provides three TTL-backed LRU tables — match results,
// per-pair scores, and extracted features — keyed by deterministic MD5
// digests of a frame sequence's six key landmarks. The pair table (dtw_cache)
// stores whatever float64 its caller writes; internal/matcher writes the
// pair's final ensemble similarity there, not a raw DTW distance. Shaped like
// a keyed table with explicit invalidation, but implemented as in-memory LRUs
// since these caches exist purely to avoid recomputation within a process
// lifetime rather than to persist anything.
package cache

import (
	"container/list"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ayusman/airclick/internal/landmark"
)

// DefaultTTL is the default entry lifetime for all three tables.
const DefaultTTL = 30 * time.Minute

const (
	matchCacheCapacity   = 50
	dtwCacheCapacity     = 200
	featureCacheCapacity = 500
)

// keyLandmarks are the six landmarks (wrist + five fingertips) used to
// build a frame-sequence hash; using all 21 would make the hash too
// sensitive to normalization noise for a cache key.
var keyLandmarks = [6]int{
	landmark.Wrist,
	landmark.ThumbTip,
	landmark.IndexTip,
	landmark.MiddleTip,
	landmark.RingTip,
	landmark.PinkyTip,
}

// FramesHash returns a deterministic MD5 digest of seq's six key landmarks,
// each coordinate rounded to precision decimal digits before serialization.
func FramesHash(seq landmark.FrameSequence, precision int) string {
	h := md5.New()
	scale := math.Pow(10, float64(precision))
	var buf [8]byte
	for _, f := range seq {
		for _, idx := range keyLandmarks {
			p := f.Landmarks[idx]
			for _, v := range [3]float64{p.X, p.Y, p.Z} {
				rounded := math.Round(v*scale) / scale
				binary.BigEndian.PutUint64(buf[:], math.Float64bits(rounded))
				h.Write(buf[:])
			}
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// PairHash returns a symmetric hash of two frame sequences: their
// individual FramesHash values are sorted before combining, so call order
// does not affect the result.
func PairHash(a, b landmark.FrameSequence, precision int) string {
	ha, hb := FramesHash(a, precision), FramesHash(b, precision)
	hashes := []string{ha, hb}
	sort.Strings(hashes)
	h := md5.New()
	h.Write([]byte(hashes[0]))
	h.Write([]byte(hashes[1]))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// MatchKey builds a match_cache key from the input frames, user ID, and
// application context.
func MatchKey(input landmark.FrameSequence, userID, appContext string) string {
	h := md5.New()
	h.Write([]byte(FramesHash(input, 3)))
	h.Write([]byte{0})
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(appContext))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// MatchResult is the value stored in match_cache.
type MatchResult struct {
	TemplateID string
	Similarity float64
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	userID    string
}

// lru is a generic capacity-bounded, TTL-checked-on-read LRU table.
type lru[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List
	items    map[string]*list.Element
}

func newLRU[V any](capacity int, ttl time.Duration) *lru[V] {
	return &lru[V]{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (c *lru[V]) get(key string, now time.Time) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	e := el.Value.(*entry[V])
	if now.After(e.expiresAt) {
		c.order.Remove(el)
		delete(c.items, key)
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

func (c *lru[V]) set(key string, value V, userID string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.expiresAt = now.Add(c.ttl)
		e.userID = userID
		c.order.MoveToFront(el)
		return
	}

	e := &entry[V]{key: key, value: value, expiresAt: now.Add(c.ttl), userID: userID}
	el := c.order.PushFront(e)
	c.items[key] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*entry[V]).key)
		}
	}
}

func (c *lru[V]) invalidateUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, el := range c.items {
		if el.Value.(*entry[V]).userID == userID {
			c.order.Remove(el)
			delete(c.items, key)
		}
	}
}

func (c *lru[V]) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
}

func (c *lru[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Cache bundles the three tables: match results, per-pair scores, and
// extracted features.
type Cache struct {
	ttl     time.Duration
	match   *lru[MatchResult]
	dtw     *lru[float64]
	feature *lru[landmark.NormalizedFeatures]

	// Now is called to obtain the current time; overridden directly in
	// tests that need to simulate TTL expiry.
	Now func() time.Time
}

// New returns a Cache with the given TTL applied to all three tables. A
// zero ttl selects DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		match:   newLRU[MatchResult](matchCacheCapacity, ttl),
		dtw:     newLRU[float64](dtwCacheCapacity, ttl),
		feature: newLRU[landmark.NormalizedFeatures](featureCacheCapacity, ttl),
		Now:     time.Now,
	}
}

// GetMatch reads match_cache.
func (c *Cache) GetMatch(key string) (MatchResult, bool) {
	return c.match.get(key, c.Now())
}

// PutMatch writes match_cache, associating the entry with userID so
// InvalidateUser can find it later.
func (c *Cache) PutMatch(key, userID string, result MatchResult) {
	c.match.set(key, result, userID, c.Now())
}

// GetDTW reads dtw_cache.
func (c *Cache) GetDTW(key string) (float64, bool) {
	return c.dtw.get(key, c.Now())
}

// PutDTW writes dtw_cache. The value is stored as given; internal/matcher
// writes the pair's ensemble similarity, not a raw DTW distance.
func (c *Cache) PutDTW(key string, distance float64) {
	c.dtw.set(key, distance, "", c.Now())
}

// GetFeatures reads feature_cache.
func (c *Cache) GetFeatures(key string) (landmark.NormalizedFeatures, bool) {
	return c.feature.get(key, c.Now())
}

// PutFeatures writes feature_cache.
func (c *Cache) PutFeatures(key string, features landmark.NormalizedFeatures) {
	c.feature.set(key, features, "", c.Now())
}

// InvalidateUser drops every match_cache entry belonging to userID. The
// dtw_cache and feature_cache are keyed only by frame content, not user, so
// they are left untouched.
func (c *Cache) InvalidateUser(userID string) {
	c.match.invalidateUser(userID)
}

// ClearAll wipes all three tables.
func (c *Cache) ClearAll() {
	c.match.clear()
	c.dtw.clear()
	c.feature.clear()
}

// Stats reports the current occupancy (entry count) of each of the three
// tables. No hit or miss counters are kept.
type Stats struct {
	MatchEntries   int
	DTWEntries     int
	FeatureEntries int
}

// Stats returns the current table sizes.
func (c *Cache) Stats() Stats {
	return Stats{
		MatchEntries:   c.match.len(),
		DTWEntries:     c.dtw.len(),
		FeatureEntries: c.feature.len(),
	}
}
