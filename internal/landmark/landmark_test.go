package landmark

import "testing"

func TestPointUnit(t *testing.T) {
	p := Point{X: 3, Y: 4, Z: 0}
	u := p.Unit()
	if got := u.Norm(); got < 0.999 || got > 1.001 {
		t.Errorf("expected unit norm ~1, got %f", got)
	}
}

func TestPointUnitDegenerate(t *testing.T) {
	p := Point{X: 1e-12, Y: 0, Z: 0}
	u := p.Unit()
	if u != (Point{}) {
		t.Errorf("expected zero point for degenerate vector, got %+v", u)
	}
}

func TestFrameFlatten(t *testing.T) {
	var f Frame
	f.Landmarks[1] = Point{X: 1, Y: 2, Z: 3}
	flat := f.Flatten()
	if flat[3] != 1 || flat[4] != 2 || flat[5] != 3 {
		t.Errorf("expected landmark 1 at offset 3..5, got %v", flat[3:6])
	}
}

func TestCoreErrorUnwrap(t *testing.T) {
	cause := NewInputError("bad frame")
	wrapped := NewScoringError("candidate failed", cause)
	ce, ok := wrapped.(*CoreError)
	if !ok {
		t.Fatal("expected *CoreError")
	}
	if ce.Kind != ScoringErrorKind {
		t.Errorf("expected ScoringErrorKind, got %v", ce.Kind)
	}
}
