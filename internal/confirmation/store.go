// Package confirmation holds staged calendar mutations until the user
// explicitly confirms or cancels them. State is in-memory only and resets
// on restart; entries expire after a configured timeout.
package confirmation

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"calendar-agent/internal/logger"
	"calendar-agent/internal/models"
)

// Store tracks pending actions keyed by a short opaque id.
// All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	actions map[string]*models.PendingAction
	timeout time.Duration
	loc     *time.Location
	now     func() time.Time
}

// NewStore creates a pending action store. Entries live for timeout before
// lazy expiry removes them.
func NewStore(timeout time.Duration, loc *time.Location) *Store {
	s := &Store{
		actions: make(map[string]*models.PendingAction),
		timeout: timeout,
		loc:     loc,
	}
	s.now = func() time.Time { return time.Now().In(loc) }
	return s
}

// newActionID returns a short unique token. Not cryptographically hardened;
// the id space is large enough that collisions are negligible at personal scale.
func newActionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Stage records a new pending action and returns its id.
// Expired entries are swept as a side effect.
func (s *Store) Stage(kind models.ActionKind, data models.EventData, targetEventID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	id := newActionID()
	s.actions[id] = &models.PendingAction{
		ID:            id,
		Kind:          kind,
		Status:        models.StatusPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.timeout),
		EventData:     data,
		TargetEventID: targetEventID,
	}

	logger.Infof("Staged pending action %s: %s", id, kind)
	return id
}

// Get returns the pending action with the given id. An entry past its expiry
// is removed and reported absent, regardless of sweep cadence.
func (s *Store) Get(id string) (models.PendingAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id string) (models.PendingAction, bool) {
	now := s.now()
	s.sweepLocked(now)

	action, ok := s.actions[id]
	if !ok {
		return models.PendingAction{}, false
	}
	if now.After(action.ExpiresAt) {
		delete(s.actions, id)
		return models.PendingAction{}, false
	}
	return *action, true
}

// Confirm marks the action CONFIRMED and returns a copy. The entry stays in
// the store; callers that go on to execute should prefer TakeForExecution.
func (s *Store) Confirm(id string) (models.PendingAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.getLocked(id); !ok {
		return models.PendingAction{}, false
	}
	s.actions[id].Status = models.StatusConfirmed
	return *s.actions[id], true
}

// TakeForExecution atomically claims the action: it is marked CONFIRMED and
// removed in one step, so two concurrent confirms cannot both execute it.
// If execution fails afterwards, the caller may Restore the returned action.
func (s *Store) TakeForExecution(id string) (models.PendingAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.getLocked(id)
	if !ok {
		return models.PendingAction{}, false
	}
	delete(s.actions, id)
	action.Status = models.StatusConfirmed
	return action, true
}

// Restore re-inserts a previously claimed action with its original expiry,
// re-arming it for another confirm attempt after a failed execution.
func (s *Store) Restore(action models.PendingAction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	action.Status = models.StatusPending
	s.actions[action.ID] = &action
	logger.Infof("Restored pending action %s after failed execution", action.ID)
}

// Cancel removes the action if present and reports whether it existed.
// An expired entry counts as absent.
func (s *Store) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(s.now())
	if _, ok := s.actions[id]; ok {
		delete(s.actions, id)
		return true
	}
	return false
}

// SweepExpired removes all entries whose expiry has passed. Idempotent.
func (s *Store) SweepExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(s.now())
}

func (s *Store) sweepLocked(now time.Time) {
	for id, action := range s.actions {
		if now.After(action.ExpiresAt) {
			delete(s.actions, id)
		}
	}
}

// Count returns the number of live pending actions, sweeping first.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(s.now())
	return len(s.actions)
}
