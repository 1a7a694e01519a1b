package explain

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// Blend weights for compositing the colorized map over the original scan.
const (
	heatWeight     = 0.4
	originalWeight = 0.6
)

// Overlay resizes the saliency map to the original image's pixel dimensions,
// colorizes it through a jet ramp, and alpha-blends it over the original.
// The result is encoded as a JPEG of identical dimensions to the input.
func Overlay(original image.Image, saliency *SaliencyMap) ([]byte, error) {
	bounds := original.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	heat := image.NewRGBA(image.Rect(0, 0, saliency.W, saliency.H))
	for y := 0; y < saliency.H; y++ {
		for x := 0; x < saliency.W; x++ {
			heat.SetRGBA(x, y, jet(saliency.At(y, x)))
		}
	}

	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), heat, heat.Bounds(), draw.Src, nil)

	base := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(base, base.Bounds(), original, bounds.Min, draw.Src)

	for i := 0; i < len(base.Pix); i += 4 {
		base.Pix[i] = mix(base.Pix[i], scaled.Pix[i])
		base.Pix[i+1] = mix(base.Pix[i+1], scaled.Pix[i+1])
		base.Pix[i+2] = mix(base.Pix[i+2], scaled.Pix[i+2])
		base.Pix[i+3] = 0xff
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, base, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode overlay failed: %w", err)
	}
	return buf.Bytes(), nil
}

func mix(orig, heat uint8) uint8 {
	return uint8(originalWeight*float64(orig) + heatWeight*float64(heat))
}

// jet maps a [0, 1] scalar onto the blue-cyan-yellow-red perceptual ramp.
func jet(v float32) color.RGBA {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	r := clamp01(1.5 - abs(4*float64(v)-3))
	g := clamp01(1.5 - abs(4*float64(v)-2))
	b := clamp01(1.5 - abs(4*float64(v)-1))
	return color.RGBA{
		R: uint8(r * 255),
		G: uint8(g * 255),
		B: uint8(b * 255),
		A: 0xff,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
