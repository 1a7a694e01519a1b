package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"

	"neuropathx/internal/config"
)

// ErrDecode reports that uploaded bytes could not be interpreted as an image.
var ErrDecode = errors.New("image decode failed")

// Tensor is a normalized model input of shape [1, Size, Size, 3] in HWC
// pixel order, pre-scaled into the range the served checkpoint expects.
type Tensor struct {
	Data []float32
	Size int
}

// Shape returns the NHWC dimensions of the tensor.
func (t *Tensor) Shape() []int64 {
	return []int64{1, int64(t.Size), int64(t.Size), 3}
}

// Normalizer converts raw uploaded bytes into model input. The resolution and
// preprocessing variant are fixed at construction and must match the served
// checkpoint; there is no way to detect a mismatch at runtime.
type Normalizer struct {
	size    int
	variant string
}

func NewNormalizer(size int, variant string) *Normalizer {
	return &Normalizer{size: size, variant: variant}
}

// Decode interprets raw bytes as an image via the registered stdlib codecs.
func Decode(raw []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// Normalize decodes raw bytes and produces the model input tensor.
func (n *Normalizer) Normalize(raw []byte) (*Tensor, error) {
	img, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return n.Tensor(img), nil
}

// Tensor resizes a decoded image to the fixed square resolution, forces three
// channels, and applies the configured preprocessing transform.
func (n *Normalizer) Tensor(img image.Image) *Tensor {
	dst := n.resizeRGB(img)

	out := make([]float32, n.size*n.size*3)
	i := 0
	for y := 0; y < n.size; y++ {
		for x := 0; x < n.size; x++ {
			c := dst.RGBAAt(x, y)
			out[i] = n.scale(c.R)
			out[i+1] = n.scale(c.G)
			out[i+2] = n.scale(c.B)
			i += 3
		}
	}
	return &Tensor{Data: out, Size: n.size}
}

// Preview re-encodes the resized RGB view of the image as a JPEG, for
// embedding in responses and reports alongside the numeric tensor.
func (n *Normalizer) Preview(img image.Image) ([]byte, error) {
	dst := n.resizeRGB(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode preview failed: %w", err)
	}
	return buf.Bytes(), nil
}

// resizeRGB draws the source into a SizexSize RGBA buffer with bilinear
// scaling. Drawing into RGBA also collapses grayscale, palette, and alpha
// inputs onto three usable channels.
func (n *Normalizer) resizeRGB(img image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, n.size, n.size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func (n *Normalizer) scale(v uint8) float32 {
	if n.variant == config.PreprocessCentered {
		return float32(v)/127.5 - 1
	}
	return float32(v) / 255.0
}
