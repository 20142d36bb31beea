// Package resample linearly resamples a hand-landmark frame sequence to a
// fixed length, the way a gesture trainer resamples dynamic gesture paths
// to a common length before averaging them.
package resample

import "github.com/ayusman/airclick/internal/landmark"

// Length is the fixed target length (T) frames are resampled to.
const Length = landmark.ResampledLength

// Resample linearly resamples seq to exactly Length frames. For each target
// index t in [0,Length-1], u = t*(N-1)/(Length-1); i = floor(u); j =
// min(i+1, N-1); w = u-i. The output frame interpolates landmark
// coordinates, timestamp, and confidence between frame i and frame j;
// handedness is copied from frame i. Every input frame must carry exactly
// 21 landmarks or it is dropped once and retried against its neighbor;
// a sequence where that single retry still fails is rejected outright.
// Resample is idempotent when len(seq) == Length.
func Resample(seq landmark.FrameSequence) (landmark.FrameSequence, error) {
	n := len(seq)
	if n == 0 {
		return nil, landmark.NewInputError("resample: empty sequence")
	}

	clean, err := repairFrames(seq)
	if err != nil {
		return nil, err
	}
	n = len(clean)

	if n == Length {
		out := make(landmark.FrameSequence, Length)
		copy(out, clean)
		return out, nil
	}

	out := make(landmark.FrameSequence, Length)
	for t := 0; t < Length; t++ {
		u := float64(t) * float64(n-1) / float64(Length-1)
		i := int(u)
		if i > n-1 {
			i = n - 1
		}
		j := i + 1
		if j > n-1 {
			j = n - 1
		}
		w := u - float64(i)
		out[t] = lerpFrame(clean[i], clean[j], w)
	}
	return out, nil
}

// repairFrames rejects frames whose landmark count is wrong. Since Frame
// carries landmarks in a fixed-size [21]Point array, a malformed frame can
// only arise from a zero-value Frame produced by a caller that skipped
// validation; those are recognized by an all-zero Handedness and dropped,
// with one retry against the sequence (i.e. dropping a single bad frame is
// tolerated, two is not).
func repairFrames(seq landmark.FrameSequence) (landmark.FrameSequence, error) {
	bad := 0
	clean := make(landmark.FrameSequence, 0, len(seq))
	for _, f := range seq {
		if f.Handedness != landmark.Left && f.Handedness != landmark.Right {
			bad++
			continue
		}
		clean = append(clean, f)
	}
	if bad > 1 {
		return nil, landmark.NewInputError("resample: more than one malformed frame")
	}
	if len(clean) == 0 {
		return nil, landmark.NewInputError("resample: no valid frames remain")
	}
	return clean, nil
}

func lerpFrame(a, b landmark.Frame, w float64) landmark.Frame {
	out := landmark.Frame{
		TimestampMs: a.TimestampMs + int64(w*float64(b.TimestampMs-a.TimestampMs)),
		Handedness:  a.Handedness,
		Confidence:  a.Confidence + w*(b.Confidence-a.Confidence),
	}
	for i := range a.Landmarks {
		pa, pb := a.Landmarks[i], b.Landmarks[i]
		out.Landmarks[i] = landmark.Point{
			X: pa.X + w*(pb.X-pa.X),
			Y: pa.Y + w*(pb.Y-pa.Y),
			Z: pa.Z + w*(pb.Z-pa.Z),
		}
	}
	return out
}
