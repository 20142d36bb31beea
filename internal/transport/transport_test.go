package transport

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/airclick/internal/cache"
	"github.com/ayusman/airclick/internal/index"
	"github.com/ayusman/airclick/internal/session"
)

type emptyTemplates struct{}

func (emptyTemplates) ListTemplates(userID, appContext string) ([]*index.Template, error) {
	return nil, nil
}
func (emptyTemplates) UpdateTemplateStats(string, float64, int, float64) {}

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	factory := func(userID, appContext string, sink session.EventSink) (*session.Session, error) {
		return session.New(userID, appContext, session.DefaultConfig(), cache.New(cache.DefaultTTL), sink, emptyTemplates{}, nil, 1920, 1080), nil
	}
	srv := httptest.NewServer(NewHandler(factory))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user_id=user-1&app_context=app-1"
	return srv, url
}

func TestHandlerUpgradesAndAcceptsFrames(t *testing.T) {
	_, url := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	frame := wireFrame{TimestampMs: 1000, Hands: nil, FrameWidth: 1920, FrameHeight: 1080}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write frame failed: %v", err)
	}

	// No hand means no cursor_move; write a second frame and expect the
	// connection to still be alive (no server-side panic or abrupt close).
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write second frame failed: %v", err)
	}
}

func TestHandlerEmitsCursorMoveForHandFrames(t *testing.T) {
	_, url := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	landmarks := make([][3]float64, 21)
	for i := range landmarks {
		landmarks[i] = [3]float64{0.5, 0.5, 0}
	}
	frame := wireFrame{
		TimestampMs: 1000,
		Hands: []wireHand{{
			Handedness: "Right",
			Confidence: 0.95,
			Landmarks:  landmarks,
		}},
		FrameWidth:  1920,
		FrameHeight: 1080,
	}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write frame failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev wireEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("expected an event in response to a hand frame: %v", err)
	}
	if ev.Kind != "cursor_move" {
		t.Errorf("expected cursor_move, got %q", ev.Kind)
	}
}

func TestHandlerClosesWhenClientDisconnects(t *testing.T) {
	_, url := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	conn.Close()
}
