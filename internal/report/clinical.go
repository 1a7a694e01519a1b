package report

// ClinicalEntry is the static presentation text attached to each class.
type ClinicalEntry struct {
	Title          string
	Description    string
	Recommendation string
	Color          [3]int
}

var clinicalData = map[string]ClinicalEntry{
	"glioma": {
		Title:          "Glioma Detected",
		Description:    "The scan shows features consistent with a glioma, a tumor arising from glial cells of the brain or spine.",
		Recommendation: "Urgent referral to neuro-oncology for contrast-enhanced MRI and biopsy planning.",
		Color:          [3]int{211, 47, 47},
	},
	"meningioma": {
		Title:          "Meningioma Detected",
		Description:    "The scan shows features consistent with a meningioma, a typically slow-growing tumor of the meninges.",
		Recommendation: "Neurosurgical consultation; many meningiomas are monitored with serial imaging.",
		Color:          [3]int{245, 124, 0},
	},
	"notumor": {
		Title:          "No Tumor Detected",
		Description:    "The model found no radiological evidence of a tumor in this scan.",
		Recommendation: "Routine follow-up as clinically indicated.",
		Color:          [3]int{56, 142, 60},
	},
	"pituitary": {
		Title:          "Pituitary Tumor Detected",
		Description:    "The scan shows features consistent with a pituitary region tumor.",
		Recommendation: "Endocrine workup and referral to a pituitary specialist center.",
		Color:          [3]int{123, 31, 162},
	},
}

var unknownEntry = ClinicalEntry{
	Title:          "Unknown Result",
	Description:    "Cannot retrieve clinical details for this prediction.",
	Recommendation: "Further manual analysis required.",
	Color:          [3]int{170, 170, 170},
}

// Clinical looks up the presentation entry for a predicted class.
func Clinical(class string) ClinicalEntry {
	if entry, ok := clinicalData[class]; ok {
		return entry
	}
	return unknownEntry
}
