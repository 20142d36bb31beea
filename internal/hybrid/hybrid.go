// Package hybrid arbitrates whether a session is driving the cursor or
// collecting frames for a gesture match, structured as an explicit state
// machine that drives its own idle/active lifecycle from per-frame motion
// and timer checks, the way an idle-timeout handler tracks last-motion time
// and compares it against a deadline on every tick.
package hybrid

import (
	"time"

	"github.com/ayusman/airclick/internal/landmark"
)

// State is one of the four hybrid-machine states.
type State int

const (
	CursorOnly State = iota
	Collecting
	Matching
	Idle
)

func (s State) String() string {
	switch s {
	case CursorOnly:
		return "CURSOR_ONLY"
	case Collecting:
		return "COLLECTING"
	case Matching:
		return "MATCHING"
	case Idle:
		return "IDLE"
	default:
		return "UNKNOWN"
	}
}

// TriggerType names why a collection window opened, which in turn decides
// how its end condition is evaluated.
type TriggerType int

const (
	NoTrigger TriggerType = iota
	StationaryTrigger
	MovingTrigger
)

// Params are the hybrid machine's tunable thresholds, defaulted per the
// contract.
type Params struct {
	StationaryVelocityThreshold float64
	StationaryDuration          time.Duration
	MovingVelocityThreshold     float64
	MovingDuration              time.Duration
	CollectionMaxFrames         int
	CollectionMinFrames         int
	GestureEndStationaryDur     time.Duration
	IdleCooldown                time.Duration
}

// DefaultParams returns the contract's documented default thresholds.
func DefaultParams() Params {
	return Params{
		StationaryVelocityThreshold: 0.015,
		StationaryDuration:          800 * time.Millisecond,
		MovingVelocityThreshold:     0.12,
		MovingDuration:              500 * time.Millisecond,
		CollectionMaxFrames:         90,
		CollectionMinFrames:         10,
		GestureEndStationaryDur:     500 * time.Millisecond,
		IdleCooldown:                1 * time.Second,
	}
}

// AuthCallback decides whether a collection window is permitted to open,
// and is consulted again on every COLLECTING frame to allow an abort.
type AuthCallback func() bool

// MatchCallback runs a synchronous match over the collected buffer once
// MATCHING is entered.
type MatchCallback func(buffer landmark.FrameSequence)

// Machine holds one session's hybrid-arbitration state.
type Machine struct {
	Params  Params
	Auth    AuthCallback
	OnMatch MatchCallback

	state State
	now   func() time.Time

	buffer      landmark.FrameSequence
	triggerType TriggerType

	hasWristPrev bool
	wristPrev    landmark.Point
	lastVelocity float64

	stationarySince time.Time
	movingSince     time.Time
	hasStationary   bool
	hasMoving       bool

	gestureEndStationarySince time.Time
	hasGestureEndStationary   bool

	idleEnteredAt time.Time
}

// New returns a Machine starting in CURSOR_ONLY.
func New(params Params, auth AuthCallback, onMatch MatchCallback) *Machine {
	return &Machine{
		Params:  params,
		Auth:    auth,
		OnMatch: onMatch,
		state:   CursorOnly,
		now:     time.Now,
	}
}

// State returns the machine's current state.
func (m *Machine) State() State { return m.state }

// TriggerType returns the trigger that opened the current (or most recent)
// collection window.
func (m *Machine) TriggerType() TriggerType { return m.triggerType }

// resetWristTracking clears wrist position/velocity bookkeeping, used on
// IDLE entry and whenever the vision layer reports no hand.
func (m *Machine) resetWristTracking() {
	m.hasWristPrev = false
	m.lastVelocity = 0
	m.hasStationary = false
	m.hasMoving = false
	m.hasGestureEndStationary = false
}

// Step advances the machine by one frame. frame is nil when the vision
// layer reports no hand this frame.
func (m *Machine) Step(frame *landmark.Frame) {
	now := m.now()

	if m.state == Idle {
		if now.Sub(m.idleEnteredAt) >= m.Params.IdleCooldown {
			m.state = CursorOnly
		} else {
			if frame != nil {
				m.resetWristTracking()
			}
			return
		}
	}

	if frame == nil {
		if m.state == Collecting && len(m.buffer) >= m.Params.CollectionMinFrames {
			m.enterMatching()
			return
		}
		m.resetWristTracking()
		if m.state == Collecting {
			m.state = CursorOnly
			m.buffer = nil
		}
		return
	}

	wrist := frame.Landmarks[landmark.Wrist]
	velocity := 0.0
	if m.hasWristPrev {
		velocity = m.wristPrev.Distance(wrist)
	}
	m.wristPrev = wrist
	m.hasWristPrev = true
	m.lastVelocity = velocity

	switch m.state {
	case CursorOnly:
		m.stepCursorOnly(now, velocity, *frame)
	case Collecting:
		m.stepCollecting(now, velocity, *frame)
	}
}

func (m *Machine) stepCursorOnly(now time.Time, velocity float64, frame landmark.Frame) {
	if velocity < m.Params.StationaryVelocityThreshold {
		if !m.hasStationary {
			m.hasStationary = true
			m.stationarySince = now
		}
	} else {
		m.hasStationary = false
	}

	if velocity > m.Params.MovingVelocityThreshold {
		if !m.hasMoving {
			m.hasMoving = true
			m.movingSince = now
		}
	} else {
		m.hasMoving = false
	}

	stationaryElapsed := m.hasStationary && now.Sub(m.stationarySince) >= m.Params.StationaryDuration
	movingElapsed := m.hasMoving && now.Sub(m.movingSince) >= m.Params.MovingDuration

	if !stationaryElapsed && !movingElapsed {
		return
	}
	if m.Auth == nil || !m.Auth() {
		return
	}

	if stationaryElapsed {
		m.triggerType = StationaryTrigger
	} else {
		m.triggerType = MovingTrigger
	}
	m.state = Collecting
	m.buffer = landmark.FrameSequence{frame}
	m.hasGestureEndStationary = false
}

func (m *Machine) stepCollecting(now time.Time, velocity float64, frame landmark.Frame) {
	if m.Auth != nil && !m.Auth() {
		m.state = CursorOnly
		m.buffer = nil
		return
	}

	m.buffer = append(m.buffer, frame)

	if len(m.buffer) >= m.Params.CollectionMaxFrames {
		m.enterMatching()
		return
	}

	if len(m.buffer) < m.Params.CollectionMinFrames {
		return
	}

	switch m.triggerType {
	case MovingTrigger:
		if velocity < m.Params.StationaryVelocityThreshold {
			if !m.hasGestureEndStationary {
				m.hasGestureEndStationary = true
				m.gestureEndStationarySince = now
			}
			if now.Sub(m.gestureEndStationarySince) >= m.Params.GestureEndStationaryDur {
				m.enterMatching()
			}
		} else {
			m.hasGestureEndStationary = false
		}
	case StationaryTrigger:
		if velocity > m.Params.MovingVelocityThreshold {
			m.enterMatching()
		}
	}
}

func (m *Machine) enterMatching() {
	m.state = Matching
	buffer := m.buffer
	m.buffer = nil
	if m.OnMatch != nil {
		m.OnMatch(buffer)
	}
	m.resetWristTracking()
	m.state = Idle
	m.idleEnteredAt = m.now()
}
