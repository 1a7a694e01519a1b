package model

// ClassScore is one labeled entry of the full probability vector.
type ClassScore struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// PredictionResult is the unit handed to callers and to the report renderer.
// Field names are part of the wire contract and must not change.
type PredictionResult struct {
	Class           string       `json:"class"`
	Confidence      float64      `json:"confidence"`
	Note            string       `json:"note"`
	AllClasses      []ClassScore `json:"all_classes"`
	GradCAMB64      string       `json:"gradcam_b64"`
	PreprocessedB64 string       `json:"preprocessed_b64"`
	Timestamp       string       `json:"timestamp"`
	SessionID       string       `json:"session_id"`
}
