package signature

import (
	"testing"

	"github.com/ayusman/airclick/internal/landmark"
	"github.com/ayusman/airclick/internal/landmark/testfixtures"
)

func TestExtractRejectsEmptySequence(t *testing.T) {
	if _, err := Extract(nil); err == nil {
		t.Error("expected error for empty sequence")
	}
}

func TestExtractFrameCountAndHandedness(t *testing.T) {
	seq := testfixtures.Swipe(15, 0.2, 0.8, 0.5)
	sig, err := Extract(seq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig.FrameCount != 15 {
		t.Errorf("expected frame count 15, got %d", sig.FrameCount)
	}
	if sig.Handedness != landmark.Right {
		t.Errorf("expected handedness Right, got %v", sig.Handedness)
	}
}

func TestExtractTrajectoryLengthIsZeroForStaticPose(t *testing.T) {
	pose := testfixtures.OpenPalm()
	seq := make(landmark.FrameSequence, 10)
	for i := range seq {
		seq[i] = pose
	}
	sig, err := Extract(seq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig.TrajectoryLen != 0 {
		t.Errorf("expected zero trajectory length for a static pose, got %f", sig.TrajectoryLen)
	}
	if sig.VelocityMean != 0 {
		t.Errorf("expected zero mean velocity for a static pose, got %f", sig.VelocityMean)
	}
}

func TestExtractTrajectoryLengthIsPositiveForSwipe(t *testing.T) {
	seq := testfixtures.Swipe(15, 0.2, 0.8, 0.5)
	sig, err := Extract(seq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig.TrajectoryLen <= 0 {
		t.Errorf("expected positive trajectory length for a swipe, got %f", sig.TrajectoryLen)
	}
	if sig.VelocityMean <= 0 {
		t.Errorf("expected positive mean velocity for a swipe, got %f", sig.VelocityMean)
	}
}

func TestExtractCentroidWithinBoundingBox(t *testing.T) {
	seq := testfixtures.Swipe(15, 0.2, 0.8, 0.5)
	sig, err := Extract(seq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig.Centroid.X < sig.BoundingMin.X || sig.Centroid.X > sig.BoundingMax.X {
		t.Errorf("expected centroid X within bounding box, got centroid=%v min=%v max=%v", sig.Centroid, sig.BoundingMin, sig.BoundingMax)
	}
}
