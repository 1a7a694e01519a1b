package repository

import (
	"fmt"

	"gorm.io/gorm"

	"neuropathx/internal/model"
)

type ScanRepository struct {
	db *gorm.DB
}

func NewScanRepository(db *gorm.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

func (r *ScanRepository) Create(record *model.ScanRecord) error {
	if err := r.db.Create(record).Error; err != nil {
		return fmt.Errorf("create scan record failed: %w", err)
	}
	return nil
}

func (r *ScanRepository) ListBySessionID(sessionID string, limit int) ([]model.ScanRecord, error) {
	var records []model.ScanRecord
	query := r.db.Where("session_id = ?", sessionID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list scan records failed: %w", err)
	}
	return records, nil
}
