package cursor

import (
	"testing"

	"github.com/ayusman/airclick/internal/landmark"
)

func TestUpdateRejectsOutOfRangeLandmark(t *testing.T) {
	c := New(1.0)
	_, ok := c.Update(landmark.Point{X: 1.5, Y: 0.5}, 0, 1920, 1080)
	if ok {
		t.Error("expected out-of-range landmark to be rejected")
	}
}

func TestUpdateMirrorsX(t *testing.T) {
	c := New(1.0)
	c.DeadZone = 0
	// x=0.9 should map toward the left side of the screen (mirrored).
	result, ok := c.Update(landmark.Point{X: 0.9, Y: 0.5}, 0, 1000, 1000)
	if !ok {
		t.Fatal("expected a valid update")
	}
	if result.X > 500 {
		t.Errorf("expected mirrored x near the left edge, got pixel x=%d", result.X)
	}
}

func TestUpdateFreezesWithinDeadZone(t *testing.T) {
	c := New(1.0)
	c.DeadZone = 0.05
	first, ok := c.Update(landmark.Point{X: 0.5, Y: 0.5}, 0, 1000, 1000)
	if !ok {
		t.Fatal("expected first update to succeed")
	}
	second, ok := c.Update(landmark.Point{X: 0.505, Y: 0.5}, 33, 1000, 1000)
	if !ok {
		t.Fatal("expected second update to succeed")
	}
	if !second.Frozen {
		t.Error("expected a small movement within the dead zone to freeze")
	}
	if second.X != first.X || second.Y != first.Y {
		t.Errorf("expected frozen pixel to match the last accepted position, got %+v vs %+v", second, first)
	}
}

func TestUpdateReportsMovedBeyondGate(t *testing.T) {
	c := New(1.0)
	c.DeadZone = 0
	first, ok := c.Update(landmark.Point{X: 0.1, Y: 0.1}, 0, 1000, 1000)
	if !ok || !first.Moved {
		t.Fatalf("expected first update to report moved, got %+v ok=%v", first, ok)
	}
	second, ok := c.Update(landmark.Point{X: 0.9, Y: 0.9}, 33, 1000, 1000)
	if !ok {
		t.Fatal("expected second update to succeed")
	}
	if !second.Moved {
		t.Error("expected a large jump to exceed the 30px movement gate")
	}
}

func TestUpdateClampsToScreenBounds(t *testing.T) {
	c := New(1.0)
	c.DeadZone = 0
	result, ok := c.Update(landmark.Point{X: 0, Y: 0}, 0, 1000, 1000)
	if !ok {
		t.Fatal("expected update to succeed")
	}
	if result.X < 0 || result.X >= 1000 || result.Y < 0 || result.Y >= 1000 {
		t.Errorf("expected pixel within screen bounds, got %+v", result)
	}
}

func TestResetClearsState(t *testing.T) {
	c := New(1.0)
	c.DeadZone = 0
	c.Update(landmark.Point{X: 0.5, Y: 0.5}, 0, 1000, 1000)
	c.Reset()
	if c.hasLast || c.hasLastEmitted {
		t.Error("expected Reset to clear last-position state")
	}
}
