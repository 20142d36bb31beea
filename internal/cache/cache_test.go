package cache

import (
	"testing"
	"time"

	"github.com/ayusman/airclick/internal/landmark"
	"github.com/ayusman/airclick/internal/landmark/testfixtures"
)

func TestFramesHashDeterministic(t *testing.T) {
	seq := testfixtures.Swipe(10, 0.2, 0.8, 0.5)
	if FramesHash(seq, 3) != FramesHash(seq, 3) {
		t.Error("expected FramesHash to be deterministic for the same sequence")
	}
}

func TestFramesHashDiffersOnDifferentSequences(t *testing.T) {
	a := testfixtures.Swipe(10, 0.2, 0.8, 0.5)
	b := testfixtures.Swipe(10, 0.3, 0.7, 0.4)
	if FramesHash(a, 3) == FramesHash(b, 3) {
		t.Error("expected different sequences to hash differently")
	}
}

func TestPairHashIsOrderIndependent(t *testing.T) {
	a := testfixtures.Swipe(10, 0.2, 0.8, 0.5)
	b := testfixtures.Swipe(10, 0.3, 0.7, 0.4)
	if PairHash(a, b, 3) != PairHash(b, a, 3) {
		t.Error("expected PairHash to be symmetric regardless of argument order")
	}
}

func TestMatchCacheHitAndMiss(t *testing.T) {
	c := New(DefaultTTL)
	key := MatchKey(testfixtures.Swipe(10, 0.2, 0.8, 0.5), "user-1", "app-1")

	if _, ok := c.GetMatch(key); ok {
		t.Fatal("expected miss before any write")
	}
	c.PutMatch(key, "user-1", MatchResult{TemplateID: "swipe-right", Similarity: 0.9})
	got, ok := c.GetMatch(key)
	if !ok {
		t.Fatal("expected hit after write")
	}
	if got.TemplateID != "swipe-right" || got.Similarity != 0.9 {
		t.Errorf("unexpected cached value: %+v", got)
	}
}

func TestMatchCacheTTLExpiry(t *testing.T) {
	c := New(time.Minute)
	fixed := time.Now()
	c.Now = func() time.Time { return fixed }

	key := MatchKey(testfixtures.Swipe(10, 0.2, 0.8, 0.5), "user-1", "app-1")
	c.PutMatch(key, "user-1", MatchResult{TemplateID: "swipe-right", Similarity: 0.9})

	c.Now = func() time.Time { return fixed.Add(2 * time.Minute) }
	if _, ok := c.GetMatch(key); ok {
		t.Error("expected expired entry to be treated as a miss")
	}
}

func TestMatchCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(DefaultTTL)
	var first, last string
	for i := 0; i < matchCacheCapacity+5; i++ {
		seq := testfixtures.Swipe(10, float64(i)*0.001, float64(i)*0.001+0.6, 0.5)
		key := MatchKey(seq, "user-1", "app-1")
		if i == 0 {
			first = key
		}
		last = key
		c.PutMatch(key, "user-1", MatchResult{TemplateID: "t", Similarity: 0.5})
	}
	if got := c.Stats().MatchEntries; got != matchCacheCapacity {
		t.Errorf("expected match_cache capped at %d entries, got %d", matchCacheCapacity, got)
	}
	if _, ok := c.GetMatch(first); ok {
		t.Error("expected the least recently used entry to be evicted")
	}
	if _, ok := c.GetMatch(last); !ok {
		t.Error("expected the most recently written entry to survive")
	}
}

func TestInvalidateUserOnlyDropsThatUsersEntries(t *testing.T) {
	c := New(DefaultTTL)
	seqA := testfixtures.Swipe(10, 0.2, 0.8, 0.5)
	seqB := testfixtures.Swipe(10, 0.3, 0.7, 0.4)
	keyA := MatchKey(seqA, "user-a", "app-1")
	keyB := MatchKey(seqB, "user-b", "app-1")

	c.PutMatch(keyA, "user-a", MatchResult{TemplateID: "a", Similarity: 0.8})
	c.PutMatch(keyB, "user-b", MatchResult{TemplateID: "b", Similarity: 0.8})

	c.InvalidateUser("user-a")

	if _, ok := c.GetMatch(keyA); ok {
		t.Error("expected user-a's entry to be invalidated")
	}
	if _, ok := c.GetMatch(keyB); !ok {
		t.Error("expected user-b's entry to survive")
	}
}

func TestClearAllWipesAllThreeTables(t *testing.T) {
	c := New(DefaultTTL)
	seq := testfixtures.Swipe(10, 0.2, 0.8, 0.5)
	matchKey := MatchKey(seq, "user-1", "app-1")
	c.PutMatch(matchKey, "user-1", MatchResult{TemplateID: "t", Similarity: 0.7})
	c.PutDTW(FramesHash(seq, 3), 12.5)
	var features landmark.NormalizedFeatures
	c.PutFeatures(FramesHash(seq, 3), features)

	c.ClearAll()

	stats := c.Stats()
	if stats.MatchEntries != 0 || stats.DTWEntries != 0 || stats.FeatureEntries != 0 {
		t.Errorf("expected all tables empty after ClearAll, got %+v", stats)
	}
}
