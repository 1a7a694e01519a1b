package model

import "time"

// ScanRecord is the audit row persisted for each completed classification.
type ScanRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"size:64;not null;index" json:"session_id"`
	Class      string    `gorm:"size:64;not null" json:"class"`
	Confidence float64   `gorm:"not null" json:"confidence"`
	Note       string    `gorm:"size:512" json:"note"`
	HasHeatmap bool      `json:"has_heatmap"`
	CreatedAt  time.Time `json:"created_at"`
}
