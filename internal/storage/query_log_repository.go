package storage

import (
	"calendar-agent/internal/models"

	"gorm.io/gorm"
)

// QueryLogRepository handles database operations for QueryRecord
type QueryLogRepository struct {
	db *gorm.DB
}

// NewQueryLogRepository creates a new QueryLogRepository
func NewQueryLogRepository(db *gorm.DB) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

// MigrateTable ensures the QueryRecord table exists
func (r *QueryLogRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.QueryRecord{})
}

// Create inserts a new QueryRecord
func (r *QueryLogRepository) Create(record *models.QueryRecord) error {
	return r.db.Create(record).Error
}

// GetRecent returns the newest records, most recent first
func (r *QueryLogRepository) GetRecent(limit int) ([]*models.QueryRecord, error) {
	var records []*models.QueryRecord
	result := r.db.Order("created_at DESC").Limit(limit).Find(&records)
	return records, result.Error
}
