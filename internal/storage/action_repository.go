package storage

import (
	"calendar-agent/internal/models"

	"gorm.io/gorm"
)

// ActionRepository handles database operations for ActionRecord
type ActionRepository struct {
	db *gorm.DB
}

// NewActionRepository creates a new ActionRepository
func NewActionRepository(db *gorm.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// MigrateTable ensures the ActionRecord table exists
func (r *ActionRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.ActionRecord{})
}

// Create inserts a new ActionRecord
func (r *ActionRepository) Create(record *models.ActionRecord) error {
	return r.db.Create(record).Error
}

// GetByEventID returns all records touching a backend event, newest first
func (r *ActionRepository) GetByEventID(eventID string) ([]*models.ActionRecord, error) {
	var records []*models.ActionRecord
	result := r.db.Where("event_id = ?", eventID).Order("created_at DESC").Find(&records)
	return records, result.Error
}

// MarkOutcome updates the outcome of a recorded action
func (r *ActionRepository) MarkOutcome(actionID string, outcome string) error {
	return r.db.Model(&models.ActionRecord{}).
		Where("action_id = ?", actionID).
		Update("outcome", outcome).Error
}
