package report

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/go-pdf/fpdf"

	"neuropathx/internal/model"
)

const (
	marginMM     = 15.0
	pageWidthMM  = 210.0
	headerHeight = 25.0
	imageWidthMM = 80.0
)

// Generate renders the diagnostic PDF for a stored prediction result.
func Generate(result *model.PredictionResult) ([]byte, error) {
	entry := Clinical(result.Class)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, marginMM)
	pdf.AddPage()

	// Header band.
	pdf.SetFillColor(32, 150, 243)
	pdf.Rect(0, 0, pageWidthMM, headerHeight, "F")
	pdf.SetFont("Arial", "B", 18)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(0, 10, "NeuroPathX AI Diagnostic Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(200, 200, 200)
	pdf.CellFormat(0, 5, "Automated MRI brain tumor screening", "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetLeftMargin(marginMM)
	pdf.SetRightMargin(marginMM)

	// 1. Primary diagnosis.
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, fmt.Sprintf("1. PRIMARY DIAGNOSIS: %s", entry.Title), "B", 1, "", false, 0, "")
	pdf.Ln(2)
	pdf.SetFont("Arial", "", 12)
	pdf.SetTextColor(32, 150, 243)
	pdf.CellFormat(50, 6, "CONFIDENCE LEVEL:", "", 0, "", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 6, fmt.Sprintf("%.2f%%", result.Confidence*100), "", 1, "", false, 0, "")

	// 2. Quantitative analysis: one bar per class, predicted class in its
	// clinical accent color.
	pdf.Ln(5)
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, "2. QUANTITATIVE ANALYSIS", "B", 1, "", false, 0, "")
	pdf.Ln(3)
	drawProbabilityBars(pdf, result, entry)

	// 3. Visual evidence.
	pdf.Ln(5)
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, "3. VISUAL EVIDENCE", "B", 1, "", false, 0, "")
	pdf.Ln(3)
	embedEvidence(pdf, result)

	// 4. Clinical summary.
	pdf.Ln(5)
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, "4. CLINICAL SUMMARY", "B", 1, "", false, 0, "")
	pdf.Ln(2)
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 5, entry.Description, "", "", false)
	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 5, "Recommendation:", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 5, entry.Recommendation, "", "", false)
	if result.Note != "" {
		pdf.Ln(2)
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(0, 4, "Note: "+result.Note, "", "", false)
	}

	// Footer.
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 5,
		fmt.Sprintf("Report generated by NeuroPathX AI on %s. Case ID: %s", result.Timestamp, result.SessionID),
		"T", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf failed: %w", err)
	}
	return buf.Bytes(), nil
}

func drawProbabilityBars(pdf *fpdf.Fpdf, result *model.PredictionResult, entry ClinicalEntry) {
	barMaxWidth := pageWidthMM - 2*marginMM - 60
	for _, score := range result.AllClasses {
		pdf.SetFont("Arial", "", 9)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(30, 6, score.Label, "", 0, "", false, 0, "")

		if score.Label == result.Class {
			pdf.SetFillColor(entry.Color[0], entry.Color[1], entry.Color[2])
		} else {
			pdf.SetFillColor(221, 221, 221)
		}
		width := barMaxWidth * score.Confidence
		if width < 0.5 {
			width = 0.5
		}
		pdf.Rect(pdf.GetX(), pdf.GetY()+1, width, 4, "F")
		pdf.SetX(pdf.GetX() + barMaxWidth + 2)
		pdf.CellFormat(0, 6, fmt.Sprintf("%.2f%%", score.Confidence*100), "", 1, "", false, 0, "")
	}
}

func embedEvidence(pdf *fpdf.Fpdf, result *model.PredictionResult) {
	y := pdf.GetY()
	placed := false

	if img := decodeB64(result.PreprocessedB64); img != nil {
		registerAndPlace(pdf, "preprocessed", img, marginMM, y)
		captionAt(pdf, "Preprocessed MRI", marginMM, y+imageWidthMM+1)
		placed = true
	}
	if img := decodeB64(result.GradCAMB64); img != nil {
		x := marginMM + imageWidthMM + 10
		registerAndPlace(pdf, "gradcam", img, x, y)
		captionAt(pdf, "Grad-CAM attention overlay", x, y+imageWidthMM+1)
		placed = true
	}

	if placed {
		pdf.SetY(y + imageWidthMM + 7)
	} else {
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, 5, "No visual evidence available for this scan.", "", 1, "", false, 0, "")
	}
}

func registerAndPlace(pdf *fpdf.Fpdf, name string, data []byte, x, y float64) {
	opts := fpdf.ImageOptions{ImageType: "JPG", ReadDpi: false}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	pdf.ImageOptions(name, x, y, imageWidthMM, 0, false, opts, 0, "")
}

func captionAt(pdf *fpdf.Fpdf, caption string, x, y float64) {
	pdf.SetXY(x, y)
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(imageWidthMM, 4, caption, "", 0, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func decodeB64(encoded string) []byte {
	if encoded == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}
	return data
}
