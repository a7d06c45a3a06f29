package service

import (
	"calendar-agent/internal/logger"
	"calendar-agent/internal/models"
)

// RecordQuery stores a processed query when database support is enabled.
// Without a database this is a no-op.
func RecordQuery(record *models.QueryRecord) {
	if queryLogRepository != nil {
		if err := queryLogRepository.Create(record); err != nil {
			logger.Warningf("Error creating query record: %v", err)
		}
	}
}

// RecordAction stores an executed calendar mutation for auditing.
func RecordAction(actionID, eventID string, kind models.ActionKind, title, outcome string) {
	if actionRepository != nil {
		record := &models.ActionRecord{
			ActionID: actionID,
			EventID:  eventID,
			Kind:     string(kind),
			Title:    title,
			Outcome:  outcome,
		}
		if err := actionRepository.Create(record); err != nil {
			logger.Warningf("Error creating action record: %v", err)
		}
	}
}

// MarkActionOutcome updates the stored outcome of an executed action.
func MarkActionOutcome(actionID, outcome string) {
	if actionRepository != nil {
		if err := actionRepository.MarkOutcome(actionID, outcome); err != nil {
			logger.Warningf("Error updating action record outcome: %v", err)
		}
	}
}

// GetRecentQueries returns the newest persisted query records.
func GetRecentQueries(limit int) ([]*models.QueryRecord, error) {
	if queryLogRepository != nil {
		return queryLogRepository.GetRecent(limit)
	}
	return nil, nil
}
