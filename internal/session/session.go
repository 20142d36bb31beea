// Package session owns one user's live frame loop: it wires the hybrid
// arbitration machine, cursor controller, and pinch-click detectors into
// the single-threaded per-frame pipeline the contract describes, and calls
// out to the gesture matcher only when the hybrid machine decides a
// collected buffer is ready. Structured as a Config struct, a New
// constructor, and a single owning struct that holds every stateful
// collaborator instead of scattering them across globals.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ayusman/airclick/internal/cache"
	"github.com/ayusman/airclick/internal/cursor"
	"github.com/ayusman/airclick/internal/hybrid"
	"github.com/ayusman/airclick/internal/index"
	"github.com/ayusman/airclick/internal/landmark"
	"github.com/ayusman/airclick/internal/matcher"
	"github.com/ayusman/airclick/internal/pinch"
)

// HandInput is one detected hand as the frame-ingest interface describes
// it: handedness, detector confidence, and 21 landmarks.
type HandInput struct {
	Handedness landmark.Handedness
	Confidence float64
	Landmarks  [landmark.NumLandmarks]landmark.Point
}

// FrameInput is one ingested frame. HandCount == 0 is a "no hand" event and
// must still reach the hybrid machine.
type FrameInput struct {
	TimestampMs int64
	Hands       []HandInput
	HandCount   int
	FrameWidth  int
	FrameHeight int
}

// CursorMoveEvent is emitted whenever the cursor controller runs.
type CursorMoveEvent struct {
	XPx       int
	YPx       int
	Moved     bool
	LatencyMs float64
}

// ClickEvent is emitted on pinch acceptance. Kind is "left" or "right".
type ClickEvent struct {
	Kind string
}

// GestureMatchEvent is emitted whenever the matcher completes a run,
// win or lose, so observers can track attempt outcomes.
type GestureMatchEvent struct {
	Matched             bool
	TemplateID          string
	Name                string
	Similarity          float64
	CandidatesEvaluated int
	TotalTimeMs         float64
}

// EventSink receives the three event kinds the core emits. A nil method
// receiver on any individual event is not supported; callers wanting to
// ignore a kind implement a no-op.
type EventSink interface {
	EmitCursorMove(CursorMoveEvent)
	EmitClick(ClickEvent)
	EmitGestureMatch(GestureMatchEvent)
}

// TemplateProvider is the collaborator's template storage, consulted for
// candidate listing and post-match statistics bookkeeping.
type TemplateProvider interface {
	ListTemplates(userID, appContext string) ([]*index.Template, error)
	UpdateTemplateStats(templateID string, similarity float64, matchCount int, accumulatedSimilarity float64)
}

// Config is the collaborator-supplied configuration surface, with defaults
// matching the documented table.
type Config struct {
	CursorSpeed         float64
	CursorSmoothing     float64
	CursorDeadZone      float64
	CursorEnabled       bool
	ClickSensitivity    float64
	ClickEnabled        bool
	GestureSensitivity  float64
	GestureHoldTime     time.Duration
	CollectionMaxFrames int
	IdleCooldown        time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		CursorSpeed:         1.0,
		CursorSmoothing:     0.5,
		CursorDeadZone:      0.0,
		CursorEnabled:       true,
		ClickSensitivity:    0.08,
		ClickEnabled:        true,
		GestureSensitivity:  0.70,
		GestureHoldTime:     2 * time.Second,
		CollectionMaxFrames: 90,
		IdleCooldown:        1 * time.Second,
	}
}

// configBounds documents the clamp range for each configuration key that
// can be out of range, per the ConfigError handling rule: clamp and log
// once at WARN per distinct key.
var configBounds = struct {
	gestureSensitivity [2]float64
	cursorSpeed        [2]float64
	clickSensitivity   [2]float64
}{
	gestureSensitivity: [2]float64{0.5, 0.95},
	cursorSpeed:         [2]float64{0.1, 5.0},
	clickSensitivity:    [2]float64{0.02, 0.2},
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sanitize clamps out-of-range config values in place and returns it,
// logging once per distinct key that needed clamping.
func sanitize(c Config, warned map[string]bool, warn func(key string)) Config {
	if c.GestureSensitivity < configBounds.gestureSensitivity[0] || c.GestureSensitivity > configBounds.gestureSensitivity[1] {
		c.GestureSensitivity = clamp(c.GestureSensitivity, configBounds.gestureSensitivity[0], configBounds.gestureSensitivity[1])
		warnOnce(warned, "gesture.sensitivity", warn)
	}
	if c.CursorSpeed < configBounds.cursorSpeed[0] || c.CursorSpeed > configBounds.cursorSpeed[1] {
		c.CursorSpeed = clamp(c.CursorSpeed, configBounds.cursorSpeed[0], configBounds.cursorSpeed[1])
		warnOnce(warned, "cursor.speed", warn)
	}
	if c.ClickSensitivity < configBounds.clickSensitivity[0] || c.ClickSensitivity > configBounds.clickSensitivity[1] {
		c.ClickSensitivity = clamp(c.ClickSensitivity, configBounds.clickSensitivity[0], configBounds.clickSensitivity[1])
		warnOnce(warned, "click.sensitivity", warn)
	}
	return c
}

func warnOnce(warned map[string]bool, key string, warn func(key string)) {
	if warned[key] {
		return
	}
	warned[key] = true
	warn(key)
}

// Session services one user's frame loop. Filter state (One-Euro, pinch
// machines, the hybrid FSM) is single-owner: only the owning goroutine
// should call Step.
type Session struct {
	UserID     string
	AppContext string
	Config     Config

	Sink      EventSink
	Templates TemplateProvider
	Auth      func() bool

	hybrid  *hybrid.Machine
	cursor  *cursor.Controller
	clicks  *pinch.Pair
	matcher *matcher.Matcher
	cache   *cache.Cache

	mu            sync.Mutex
	index         *index.Index
	screenW       int
	screenH       int
	matchCount    map[string]int
	accumulated   map[string]float64
	warned        map[string]bool
	authWasLocked bool
}

// New returns a Session wired against c and the given collaborators.
// screenW/screenH size the cursor's pixel mapping.
func New(userID, appContext string, cfg Config, c *cache.Cache, sink EventSink, templates TemplateProvider, auth func() bool, screenW, screenH int) *Session {
	s := &Session{
		UserID:      userID,
		AppContext:  appContext,
		Config:      cfg,
		Sink:        sink,
		Templates:   templates,
		Auth:        auth,
		cursor:      cursor.New(cfg.CursorSmoothing),
		clicks:      pinch.NewPair(),
		matcher:     matcher.New(c),
		cache:       c,
		index:       index.New(),
		screenW:     screenW,
		screenH:     screenH,
		matchCount:  make(map[string]int),
		accumulated: make(map[string]float64),
		warned:      make(map[string]bool),
	}
	s.Config = sanitize(s.Config, s.warned, func(key string) {
		log.Printf("session: config key %s out of range, clamped", key)
	})
	s.cursor.DeadZone = s.Config.CursorDeadZone
	s.cursor.Scale = s.Config.CursorSpeed
	s.clicks.Left.PinchThreshold = s.Config.ClickSensitivity
	s.clicks.Left.ReleaseThreshold = s.Config.ClickSensitivity
	s.clicks.Right.PinchThreshold = s.Config.ClickSensitivity
	s.clicks.Right.ReleaseThreshold = s.Config.ClickSensitivity
	s.matcher.Threshold = s.Config.GestureSensitivity

	params := hybrid.DefaultParams()
	params.StationaryDuration = s.Config.GestureHoldTime
	params.CollectionMaxFrames = s.Config.CollectionMaxFrames
	params.IdleCooldown = s.Config.IdleCooldown
	s.hybrid = hybrid.New(params, s.authCallback, s.onMatchBuffer)

	return s
}

// authCallback wraps the collaborator's auth check, logging a single INFO
// line on the false-to-true transition so an operator can see when
// recording access was restored without logging every per-frame check.
func (s *Session) authCallback() bool {
	if s.Auth == nil {
		return true
	}
	ok := s.Auth()
	if ok {
		if s.authWasLocked {
			log.Printf("session: auth restored for user %s", s.UserID)
		}
		s.authWasLocked = false
	} else {
		s.authWasLocked = true
	}
	return ok
}

// SetScreenSize updates the pixel surface the cursor maps onto.
func (s *Session) SetScreenSize(w, h int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenW, s.screenH = w, h
}

// RebuildIndex rebuilds the candidate index from the current template set.
// Callers must invoke this after load and whenever on_template_change
// fires, per the rebuild policy templates are read-only to the matcher.
func (s *Session) RebuildIndex() error {
	templates, err := s.Templates.ListTemplates(s.UserID, s.AppContext)
	if err != nil {
		return err
	}
	ix := index.New()
	ix.Build(templates)

	s.mu.Lock()
	s.index = ix
	s.mu.Unlock()
	return nil
}

// OnTemplateChange implements the on_template_change callback contract:
// invalidate this user's match cache and trigger an asynchronous rebuild.
func (s *Session) OnTemplateChange(userID string, kind string) {
	if userID != s.UserID {
		return
	}
	s.cache.InvalidateUser(userID)
	go func() {
		if err := s.RebuildIndex(); err != nil {
			log.Printf("session: index rebuild after template %s failed: %v", kind, err)
		}
	}()
}

func (s *Session) currentIndex() *index.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

func (s *Session) screenSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screenW, s.screenH
}

// Step ingests one frame, running it through the hybrid FSM and, while in
// CURSOR_ONLY, the cursor controller and pinch-click pair, in that order.
// This is the single per-frame entry point; it must be called from only
// one goroutine per Session.
func (s *Session) Step(in FrameInput) {
	frame := toLandmarkFrame(in)

	wasCursorOnly := s.hybrid.State() == hybrid.CursorOnly
	s.hybrid.Step(frame)

	if s.hybrid.State() != hybrid.CursorOnly {
		if wasCursorOnly {
			s.cursor.Reset()
		}
		return
	}

	if frame == nil {
		s.cursor.Reset()
		return
	}

	start := time.Now()
	if s.Config.CursorEnabled {
		s.stepCursor(*frame, in.TimestampMs, start)
	}
	if s.Config.ClickEnabled {
		s.stepClicks(*frame)
	}
}

func toLandmarkFrame(in FrameInput) *landmark.Frame {
	if in.HandCount == 0 || len(in.Hands) == 0 {
		return nil
	}
	h := in.Hands[0]
	return &landmark.Frame{
		TimestampMs: in.TimestampMs,
		Landmarks:   h.Landmarks,
		Handedness:  h.Handedness,
		Confidence:  h.Confidence,
	}
}

func (s *Session) stepCursor(frame landmark.Frame, t int64, start time.Time) {
	w, h := s.sizeOrDefault()
	result, ok := s.cursor.Update(frame.Landmarks[landmark.IndexTip], t, w, h)
	if !ok {
		return
	}
	if s.Sink == nil {
		return
	}
	s.Sink.EmitCursorMove(CursorMoveEvent{
		XPx:       result.X,
		YPx:       result.Y,
		Moved:     result.Moved,
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000.0,
	})
}

// sizeOrDefault returns the current screen size, falling back to a sane
// default so a collaborator that never called SetScreenSize still gets a
// usable pixel mapping.
func (s *Session) sizeOrDefault() (int, int) {
	w, h := s.screenSize()
	if w <= 0 {
		w = 1920
	}
	if h <= 0 {
		h = 1080
	}
	return w, h
}

func (s *Session) stepClicks(frame landmark.Frame) {
	f := pinch.Frame{
		Wrist:     frame.Landmarks[landmark.Wrist],
		ThumbTip:  frame.Landmarks[landmark.ThumbTip],
		IndexTip:  frame.Landmarks[landmark.IndexTip],
		MiddleTip: frame.Landmarks[landmark.MiddleTip],
		IndexMCP:  frame.Landmarks[landmark.IndexMCP],
		PinkyMCP:  frame.Landmarks[landmark.PinkyMCP],
	}
	left, right := s.clicks.Step(f, pinch.DefaultStabilityThreshold)
	if s.Sink == nil {
		return
	}
	if left {
		s.Sink.EmitClick(ClickEvent{Kind: "left"})
	}
	if right {
		s.Sink.EmitClick(ClickEvent{Kind: "right"})
	}
}

// onMatchBuffer is the hybrid machine's MatchCallback: it runs a matcher
// pass over the collected buffer and emits a gesture_match event whether or
// not a template cleared the threshold gate.
func (s *Session) onMatchBuffer(buffer landmark.FrameSequence) {
	ix := s.currentIndex()
	if ix == nil || ix.Len() == 0 {
		if s.Sink != nil {
			s.Sink.EmitGestureMatch(GestureMatchEvent{Matched: false})
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var stats matcher.Stats
	outcome, err := s.matcher.Match(ctx, buffer, ix, s.UserID, s.AppContext, &stats)
	if err != nil {
		log.Printf("session: gesture match failed: %v", err)
		if s.Sink != nil {
			s.Sink.EmitGestureMatch(GestureMatchEvent{Matched: false, CandidatesEvaluated: stats.CandidatesEvaluated, TotalTimeMs: stats.TotalTimeMs})
		}
		return
	}

	if outcome == nil {
		if s.Sink != nil {
			s.Sink.EmitGestureMatch(GestureMatchEvent{Matched: false, CandidatesEvaluated: stats.CandidatesEvaluated, TotalTimeMs: stats.TotalTimeMs})
		}
		return
	}

	s.recordStats(outcome.TemplateID, outcome.Similarity)
	if s.Sink != nil {
		name := ""
		if tpl := ix.ByID(outcome.TemplateID); tpl != nil {
			name = tpl.Name
		}
		s.Sink.EmitGestureMatch(GestureMatchEvent{
			Matched:             true,
			TemplateID:          outcome.TemplateID,
			Name:                name,
			Similarity:          outcome.Similarity,
			CandidatesEvaluated: stats.CandidatesEvaluated,
			TotalTimeMs:         stats.TotalTimeMs,
		})
	}
}

func (s *Session) recordStats(templateID string, similarity float64) {
	s.mu.Lock()
	s.matchCount[templateID]++
	s.accumulated[templateID] += similarity
	count := s.matchCount[templateID]
	total := s.accumulated[templateID]
	s.mu.Unlock()

	if s.Templates != nil {
		s.Templates.UpdateTemplateStats(templateID, similarity, count, total)
	}
}

// State returns the hybrid machine's current state, for UI/tray reporting.
func (s *Session) State() hybrid.State { return s.hybrid.State() }
