package inference

import (
	"math"

	"neuropathx/internal/model"
)

// toProbabilities converts a raw output vector into a probability
// distribution. Vectors whose entries all lie in [0, 1] are trusted as
// already normalized; anything else goes through a stable softmax with the
// maximum subtracted before exponentiation.
func toProbabilities(raw []float32) []float64 {
	out := make([]float64, len(raw))

	bounded := true
	for _, v := range raw {
		if v < 0 || v > 1 {
			bounded = false
			break
		}
	}
	if bounded {
		for i, v := range raw {
			out[i] = float64(v)
		}
		return out
	}

	maxVal := float64(raw[0])
	for _, v := range raw[1:] {
		if float64(v) > maxVal {
			maxVal = float64(v)
		}
	}
	var sum float64
	for i, v := range raw {
		out[i] = math.Exp(float64(v) - maxVal)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// TopIndex returns the index of the maximum confidence; ties break to the
// lowest index.
func TopIndex(scores []model.ClassScore) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i].Confidence > scores[best].Confidence {
			best = i
		}
	}
	return best
}
