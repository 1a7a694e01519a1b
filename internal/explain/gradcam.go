package explain

// FeatureMap is a dense HxWxC activation or gradient block captured from the
// classifier's designated convolutional layer.
type FeatureMap struct {
	Data    []float32
	H, W, C int
}

// At returns the value at spatial cell (y, x), channel c.
func (f *FeatureMap) At(y, x, c int) float32 {
	return f.Data[(y*f.W+x)*f.C+c]
}

// SaliencyMap is a single-channel spatial importance map with values in
// [0, 1]. An all-zero map is valid and means the explanation is degenerate.
type SaliencyMap struct {
	Data []float32
	H, W int
}

func (s *SaliencyMap) At(y, x int) float32 {
	return s.Data[y*s.W+x]
}

// CAM computes a Grad-CAM map from the activation of the target layer and the
// gradient of the selected class score with respect to it: gradients are
// average-pooled over the spatial axes into one weight per channel, the
// channels are summed under those weights, and the result is rectified and
// scaled so its maximum is 1. A zero maximum yields an all-zero map instead
// of a division by zero.
func CAM(activation, gradient *FeatureMap) *SaliencyMap {
	h, w, c := activation.H, activation.W, activation.C

	weights := make([]float32, c)
	cells := float32(h * w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for ch := 0; ch < c; ch++ {
				weights[ch] += gradient.At(y, x, ch)
			}
		}
	}
	for ch := 0; ch < c; ch++ {
		weights[ch] /= cells
	}

	out := make([]float32, h*w)
	var maxVal float32
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float32
			for ch := 0; ch < c; ch++ {
				sum += weights[ch] * activation.At(y, x, ch)
			}
			if sum < 0 {
				sum = 0
			}
			out[y*w+x] = sum
			if sum > maxVal {
				maxVal = sum
			}
		}
	}

	if maxVal > 0 {
		for i := range out {
			out[i] /= maxVal
		}
	}
	return &SaliencyMap{Data: out, H: h, W: w}
}
