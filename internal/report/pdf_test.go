package report

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuropathx/internal/model"
)

func sampleJPEGB64(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 6), G: 30, B: 90, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func sampleResult(t *testing.T) *model.PredictionResult {
	return &model.PredictionResult{
		Class:      "meningioma",
		Confidence: 0.87,
		Note:       "Prediction successful with training-aligned preprocessing.",
		AllClasses: []model.ClassScore{
			{Label: "glioma", Confidence: 0.05},
			{Label: "meningioma", Confidence: 0.87},
			{Label: "notumor", Confidence: 0.06},
			{Label: "pituitary", Confidence: 0.02},
		},
		GradCAMB64:      sampleJPEGB64(t),
		PreprocessedB64: sampleJPEGB64(t),
		Timestamp:       time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC).Format(time.RFC3339),
		SessionID:       "case-42",
	}
}

func TestGenerate_ProducesPDF(t *testing.T) {
	data, err := Generate(sampleResult(t))
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), "output should be a PDF document")
	assert.Greater(t, len(data), 1000)
}

func TestGenerate_WithoutImages(t *testing.T) {
	result := sampleResult(t)
	result.GradCAMB64 = ""
	result.PreprocessedB64 = ""

	data, err := Generate(result)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestClinical_UnknownClass(t *testing.T) {
	entry := Clinical("astrocytoma")
	assert.Equal(t, "Unknown Result", entry.Title)
}

func TestClinical_CatalogCovered(t *testing.T) {
	for _, class := range []string{"glioma", "meningioma", "notumor", "pituitary"} {
		entry := Clinical(class)
		assert.NotEmpty(t, entry.Title, class)
		assert.NotEmpty(t, entry.Recommendation, class)
	}
}
