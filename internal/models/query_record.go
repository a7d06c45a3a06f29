package models

import "time"

// QueryRecord stores a processed natural language query and the response that
// was returned, for auditing when database support is enabled.
type QueryRecord struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Method       string `gorm:"size:8"`
	Path         string `gorm:"size:64"`
	Query        string `gorm:"type:text"`
	Intent       string `gorm:"size:16;index"`
	ResponseType string `gorm:"size:32"`
	StatusCode   int
	UsedFallback bool `gorm:"default:false"`
	CreatedAt    time.Time
}

// ActionRecord stores an executed calendar mutation.
// It records the action kind, the backend event it touched, and the outcome.
type ActionRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ActionID  string `gorm:"size:16;index"`
	EventID   string `gorm:"size:128;index"`
	Kind      string `gorm:"size:8"`
	Title     string `gorm:"size:255"`
	Outcome   string `gorm:"size:32"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
