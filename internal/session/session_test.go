package session

import (
	"sync"
	"testing"
	"time"

	"github.com/ayusman/airclick/internal/cache"
	"github.com/ayusman/airclick/internal/index"
	"github.com/ayusman/airclick/internal/landmark"
	"github.com/ayusman/airclick/internal/landmark/testfixtures"
	"github.com/ayusman/airclick/internal/preprocess"
	"github.com/ayusman/airclick/internal/signature"
)

type fakeSink struct {
	mu      sync.Mutex
	moves   []CursorMoveEvent
	clicks  []ClickEvent
	matches []GestureMatchEvent
}

func (f *fakeSink) EmitCursorMove(e CursorMoveEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, e)
}

func (f *fakeSink) EmitClick(e ClickEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, e)
}

func (f *fakeSink) EmitGestureMatch(e GestureMatchEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches = append(f.matches, e)
}

func (f *fakeSink) moveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.moves)
}

func (f *fakeSink) clickCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clicks)
}

type fakeTemplates struct {
	mu        sync.Mutex
	templates []*index.Template
	listCalls int
	stats     []struct {
		id         string
		similarity float64
	}
}

func (f *fakeTemplates) ListTemplates(userID, appContext string) ([]*index.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.templates, nil
}

func (f *fakeTemplates) UpdateTemplateStats(templateID string, similarity float64, matchCount int, accumulatedSimilarity float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats = append(f.stats, struct {
		id         string
		similarity float64
	}{templateID, similarity})
}

func handFrame(x, y float64) FrameInput {
	hands := make([]HandInput, 1)
	hands[0].Handedness = landmark.Right
	hands[0].Confidence = 0.9
	hands[0].Landmarks[landmark.IndexTip] = landmark.Point{X: x, Y: y}
	return FrameInput{TimestampMs: time.Now().UnixMilli(), Hands: hands, HandCount: 1}
}

func noHandFrame() FrameInput {
	return FrameInput{TimestampMs: time.Now().UnixMilli(), HandCount: 0}
}

func newTestSession(sink EventSink, templates TemplateProvider) *Session {
	cfg := DefaultConfig()
	cfg.CursorDeadZone = 0
	return New("user-1", "app-1", cfg, cache.New(cache.DefaultTTL), sink, templates, func() bool { return true }, 1000, 1000)
}

func TestNewClampsOutOfRangeConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GestureSensitivity = 5.0
	cfg.CursorSpeed = -1
	s := New("u", "a", cfg, cache.New(cache.DefaultTTL), nil, nil, nil, 1000, 1000)
	if s.Config.GestureSensitivity > configBounds.gestureSensitivity[1] {
		t.Errorf("expected gesture sensitivity clamped, got %v", s.Config.GestureSensitivity)
	}
	if s.Config.CursorSpeed < configBounds.cursorSpeed[0] {
		t.Errorf("expected cursor speed clamped, got %v", s.Config.CursorSpeed)
	}
}

func TestStepEmitsCursorMoveWhileCursorOnly(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSession(sink, nil)
	s.Step(handFrame(0.5, 0.5))
	if sink.moveCount() != 1 {
		t.Fatalf("expected one cursor_move event, got %d", sink.moveCount())
	}
}

func TestStepEmitsNoCursorMoveWithoutHand(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSession(sink, nil)
	s.Step(noHandFrame())
	if sink.moveCount() != 0 {
		t.Errorf("expected no cursor_move for a hand-absent frame, got %d", sink.moveCount())
	}
}

func TestStepRespectsCursorEnabledSwitch(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSession(sink, nil)
	s.Config.CursorEnabled = false
	s.Step(handFrame(0.5, 0.5))
	if sink.moveCount() != 0 {
		t.Errorf("expected no cursor_move when cursor.enabled is false, got %d", sink.moveCount())
	}
}

func TestStepEmitsClickOnSustainedPinch(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSession(sink, nil)

	pinchedHand := func() FrameInput {
		hands := make([]HandInput, 1)
		hands[0].Handedness = landmark.Right
		hands[0].Confidence = 0.9
		hands[0].Landmarks[landmark.Wrist] = landmark.Point{X: 0.5, Y: 0.8, Z: 0}
		hands[0].Landmarks[landmark.ThumbTip] = landmark.Point{X: 0.55, Y: 0.75, Z: 0}
		hands[0].Landmarks[landmark.IndexTip] = landmark.Point{X: 0.555, Y: 0.75, Z: 0}
		hands[0].Landmarks[landmark.MiddleTip] = landmark.Point{X: 0.6, Y: 0.7, Z: 0}
		hands[0].Landmarks[landmark.IndexMCP] = landmark.Point{X: 0.55, Y: 0.68, Z: -0.02}
		hands[0].Landmarks[landmark.PinkyMCP] = landmark.Point{X: 0.40, Y: 0.70, Z: -0.02}
		return FrameInput{TimestampMs: time.Now().UnixMilli(), Hands: hands, HandCount: 1}
	}

	var fired bool
	for i := 0; i < 8 && !fired; i++ {
		s.Step(pinchedHand())
		fired = sink.clickCount() > 0
	}
	if !fired {
		t.Error("expected a left click to eventually fire on a sustained pinch")
	}
	if sink.clicks[0].Kind != "left" {
		t.Errorf("expected a left click, got %q", sink.clicks[0].Kind)
	}
}

func TestStepRespectsClickEnabledSwitch(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSession(sink, nil)
	s.Config.ClickEnabled = false

	pinchedHand := func() FrameInput {
		hands := make([]HandInput, 1)
		hands[0].Landmarks[landmark.Wrist] = landmark.Point{X: 0.5, Y: 0.8, Z: 0}
		hands[0].Landmarks[landmark.ThumbTip] = landmark.Point{X: 0.55, Y: 0.75, Z: 0}
		hands[0].Landmarks[landmark.IndexTip] = landmark.Point{X: 0.555, Y: 0.75, Z: 0}
		hands[0].Landmarks[landmark.MiddleTip] = landmark.Point{X: 0.6, Y: 0.7, Z: 0}
		hands[0].Landmarks[landmark.IndexMCP] = landmark.Point{X: 0.55, Y: 0.68, Z: -0.02}
		hands[0].Landmarks[landmark.PinkyMCP] = landmark.Point{X: 0.40, Y: 0.70, Z: -0.02}
		return FrameInput{TimestampMs: time.Now().UnixMilli(), Hands: hands, HandCount: 1}
	}
	for i := 0; i < 8; i++ {
		s.Step(pinchedHand())
	}
	if sink.clickCount() != 0 {
		t.Errorf("expected no clicks when click.enabled is false, got %d", sink.clickCount())
	}
}

func TestRebuildIndexLoadsFromTemplateProvider(t *testing.T) {
	tpl := &index.Template{ID: "swipe-right"}
	templates := &fakeTemplates{templates: []*index.Template{tpl}}
	s := newTestSession(nil, templates)

	if err := s.RebuildIndex(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.currentIndex().Len() != 1 {
		t.Errorf("expected one template loaded, got %d", s.currentIndex().Len())
	}
}

func TestOnTemplateChangeInvalidatesAndRebuilds(t *testing.T) {
	tpl := &index.Template{ID: "swipe-right"}
	templates := &fakeTemplates{templates: []*index.Template{tpl}}
	s := newTestSession(nil, templates)
	if err := s.RebuildIndex(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.cache.PutMatch("k", "user-1", cache.MatchResult{TemplateID: "swipe-right", Similarity: 0.9})
	templates.templates = append(templates.templates, &index.Template{ID: "swipe-left"})

	s.OnTemplateChange("user-1", "create")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.currentIndex().Len() == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if s.currentIndex().Len() != 2 {
		t.Fatalf("expected rebuild to pick up the new template, got %d", s.currentIndex().Len())
	}
	if _, ok := s.cache.GetMatch("k"); ok {
		t.Error("expected the user's match cache entry to be invalidated")
	}
}

func TestOnTemplateChangeIgnoresOtherUsers(t *testing.T) {
	templates := &fakeTemplates{}
	s := newTestSession(nil, templates)
	s.OnTemplateChange("someone-else", "create")
	time.Sleep(10 * time.Millisecond)
	templates.mu.Lock()
	calls := templates.listCalls
	templates.mu.Unlock()
	if calls != 0 {
		t.Errorf("expected no rebuild for an unrelated user, got %d ListTemplates calls", calls)
	}
}

func TestNoMatchStillEmitsGestureMatchFalse(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSession(sink, &fakeTemplates{})
	s.onMatchBuffer(landmark.FrameSequence{landmark.Frame{}})
	if len(sink.matches) != 1 {
		t.Fatalf("expected one gesture_match event, got %d", len(sink.matches))
	}
	if sink.matches[0].Matched {
		t.Error("expected matched=false when no index is built")
	}
}

func TestAuthCallbackTracksLockedState(t *testing.T) {
	authOK := false
	cfg := DefaultConfig()
	s := New("user-1", "app-1", cfg, cache.New(cache.DefaultTTL), nil, &fakeTemplates{}, func() bool { return authOK }, 1000, 1000)

	if ok := s.authCallback(); ok {
		t.Error("expected auth check to report false")
	}
	if !s.authWasLocked {
		t.Error("expected authWasLocked to be set after a false auth check")
	}

	authOK = true
	if ok := s.authCallback(); !ok {
		t.Error("expected auth check to report true")
	}
	if s.authWasLocked {
		t.Error("expected authWasLocked to clear after the check turns true")
	}
}

func TestAuthCallbackDefaultsToTrueWithoutCollaborator(t *testing.T) {
	s := New("user-1", "app-1", DefaultConfig(), cache.New(cache.DefaultTTL), nil, &fakeTemplates{}, nil, 1000, 1000)
	if !s.authCallback() {
		t.Error("expected a nil Auth collaborator to default to true")
	}
}

func TestOnMatchBufferPopulatesTemplateName(t *testing.T) {
	seq := testfixtures.Swipe(20, 0.2, 0.8, 0.5)
	features, err := preprocess.Process(seq)
	if err != nil {
		t.Fatalf("unexpected preprocessing error: %v", err)
	}
	sig, err := signature.Extract(seq)
	if err != nil {
		t.Fatalf("unexpected signature error: %v", err)
	}

	tpl := &index.Template{ID: "swipe-right", Name: "Swipe Right", Frames: seq, Features: features, Signature: sig}
	templates := &fakeTemplates{templates: []*index.Template{tpl}}

	sink := &fakeSink{}
	s := newTestSession(sink, templates)
	if err := s.RebuildIndex(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.matcher.Threshold = 0

	s.onMatchBuffer(seq)

	if len(sink.matches) != 1 {
		t.Fatalf("expected one gesture_match event, got %d", len(sink.matches))
	}
	got := sink.matches[0]
	if !got.Matched {
		t.Fatal("expected the exact template frames to match")
	}
	if got.Name != "Swipe Right" {
		t.Errorf("expected Name %q, got %q", "Swipe Right", got.Name)
	}
}
