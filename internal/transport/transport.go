// Package transport exposes a Session over a WebSocket connection: a
// gorilla/websocket upgrader, a per-connection handler, and a read loop
// that keeps the connection alive. Direction is inverted from a
// camera-broadcast model: here the client pushes frames and the server
// pushes events back over the same connection, since AirClick's camera
// lives on the client.
package transport

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ayusman/airclick/internal/landmark"
	"github.com/ayusman/airclick/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local-only companion app, no cross-origin concern
	},
}

// wireHand is the wire representation of one detected hand.
type wireHand struct {
	Handedness string     `json:"handedness"`
	Confidence float64    `json:"confidence"`
	Landmarks  [][3]float64 `json:"landmarks"`
}

// wireFrame is the JSON message a client sends per captured frame.
type wireFrame struct {
	TimestampMs int64      `json:"timestamp_ms"`
	Hands       []wireHand `json:"hands"`
	FrameWidth  int        `json:"frame_width"`
	FrameHeight int        `json:"frame_height"`
}

// wireEvent is the JSON envelope the server writes back: exactly one of
// CursorMove, Click, GestureMatch is set, named by Kind.
type wireEvent struct {
	Kind         string                     `json:"kind"`
	CursorMove   *session.CursorMoveEvent   `json:"cursor_move,omitempty"`
	Click        *session.ClickEvent        `json:"click,omitempty"`
	GestureMatch *session.GestureMatchEvent `json:"gesture_match,omitempty"`
}

// connSink implements session.EventSink by writing each event as JSON to
// a single WebSocket connection. Writes are serialized with a mutex since
// gorilla/websocket forbids concurrent writers on one connection.
type connSink struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *connSink) write(ev wireEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteJSON(ev); err != nil {
		log.Printf("transport: write failed: %v", err)
	}
}

func (s *connSink) EmitCursorMove(ev session.CursorMoveEvent) {
	s.write(wireEvent{Kind: "cursor_move", CursorMove: &ev})
}

func (s *connSink) EmitClick(ev session.ClickEvent) {
	s.write(wireEvent{Kind: "click", Click: &ev})
}

func (s *connSink) EmitGestureMatch(ev session.GestureMatchEvent) {
	s.write(wireEvent{Kind: "gesture_match", GestureMatch: &ev})
}

// SessionFactory builds a Session for a newly connected user/app pair. The
// handler owns the resulting Session for the lifetime of the connection.
type SessionFactory func(userID, appContext string, sink session.EventSink) (*session.Session, error)

// Handler upgrades incoming HTTP requests to WebSocket connections and
// drives one Session per connection from the inbound frame stream.
type Handler struct {
	newSession SessionFactory

	// Enabled, if set, is consulted before each frame is stepped. When it
	// returns false, inbound frames are read (to keep the connection
	// alive) and silently dropped, so a tray-driven pause takes effect
	// without disconnecting clients.
	Enabled func() bool
}

// NewHandler returns a Handler that builds a fresh Session per connection
// via factory.
func NewHandler(factory SessionFactory) *Handler {
	return &Handler{newSession: factory}
}

// ServeHTTP upgrades the request, pairs it with a Session keyed by the
// user_id/app_context query parameters, and runs the read loop until the
// client disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	appContext := r.URL.Query().Get("app_context")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("transport: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	sink := &connSink{conn: conn}
	sess, err := h.newSession(userID, appContext, sink)
	if err != nil {
		log.Printf("transport: session setup failed for user %s: %v", userID, err)
		return
	}
	if err := sess.RebuildIndex(); err != nil {
		log.Printf("transport: initial index build failed for user %s: %v", userID, err)
	}

	for {
		var wf wireFrame
		if err := conn.ReadJSON(&wf); err != nil {
			break
		}
		if h.Enabled != nil && !h.Enabled() {
			continue
		}
		sess.SetScreenSize(wf.FrameWidth, wf.FrameHeight)
		sess.Step(decodeFrame(wf))
	}
}

func decodeFrame(wf wireFrame) session.FrameInput {
	hands := make([]session.HandInput, 0, len(wf.Hands))
	for _, wh := range wf.Hands {
		if len(wh.Landmarks) != landmark.NumLandmarks {
			continue
		}
		var lm [landmark.NumLandmarks]landmark.Point
		for i, p := range wh.Landmarks {
			lm[i] = landmark.Point{X: p[0], Y: p[1], Z: p[2]}
		}
		hands = append(hands, session.HandInput{
			Handedness: landmark.Handedness(wh.Handedness),
			Confidence: wh.Confidence,
			Landmarks:  lm,
		})
	}
	return session.FrameInput{
		TimestampMs: wf.TimestampMs,
		Hands:       hands,
		HandCount:   len(hands),
		FrameWidth:  wf.FrameWidth,
		FrameHeight: wf.FrameHeight,
	}
}
