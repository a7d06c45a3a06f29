// Package history remembers recently executed calendar actions so a short
// follow-up utterance ("confirm", "undo that") can reference the most recent
// one. The log is a fixed-capacity in-memory ring; a restart clears it.
package history

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"calendar-agent/internal/logger"
	"calendar-agent/internal/models"
)

// Log is a bounded, ordered record of executed actions. Insertion order is
// recency order; the oldest entry is evicted when capacity is reached.
// All methods are safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	entries  []models.HistoricalAction
	capacity int
	loc      *time.Location
	now      func() time.Time
}

// NewLog creates a history log holding at most capacity entries.
func NewLog(capacity int, loc *time.Location) *Log {
	l := &Log{
		capacity: capacity,
		loc:      loc,
	}
	l.now = func() time.Time { return time.Now().In(loc) }
	return l
}

// Record appends an executed action and returns its id.
func (l *Log) Record(eventID string, kind models.ActionKind, data models.EventData) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	actionID := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	l.entries = append(l.entries, models.HistoricalAction{
		ActionID:  actionID,
		EventID:   eventID,
		Kind:      kind,
		Timestamp: l.now(),
		EventData: data,
	})
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}

	logger.Infof("Recorded action %s: %s - %s", actionID, kind, eventID)
	return actionID
}

// MostRecentWithin returns the newest entry if its age is within maxAge.
// Only the newest entry is considered: a stale newest entry masks everything
// behind it, even older entries that would still fit the window.
func (l *Log) MostRecentWithin(maxAge time.Duration) (models.HistoricalAction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == 0 {
		return models.HistoricalAction{}, false
	}
	last := l.entries[len(l.entries)-1]
	if last.Timestamp.Before(l.now().Add(-maxAge)) {
		return models.HistoricalAction{}, false
	}
	return last, true
}

// AllWithin returns every entry younger than maxAge, newest first.
func (l *Log) AllWithin(maxAge time.Duration) []models.HistoricalAction {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxAge)
	var recent []models.HistoricalAction
	for i := len(l.entries) - 1; i >= 0; i-- {
		if !l.entries[i].Timestamp.Before(cutoff) {
			recent = append(recent, l.entries[i])
		}
	}
	return recent
}

// ByID looks up an action by id, scanning most-recent-first.
func (l *Log) ByID(actionID string) (models.HistoricalAction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].ActionID == actionID {
			return l.entries[i], true
		}
	}
	return models.HistoricalAction{}, false
}

// MarkCompensated flags the action as already undone, so a repeated
// "cancel last" does not revert it twice. Reports whether the id was found.
func (l *Log) MarkCompensated(actionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].ActionID == actionID {
			l.entries[i].Compensated = true
			return true
		}
	}
	return false
}

// PruneOlderThan drops entries older than maxAge. Advisory cleanup only:
// age-window queries apply their own filter regardless of prune timing.
func (l *Log) PruneOlderThan(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxAge)
	kept := l.entries[:0]
	for _, e := range l.entries {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	l.entries = kept

	logger.Infof("Pruned old actions. Remaining: %d", len(l.entries))
}

// Len returns the current number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
