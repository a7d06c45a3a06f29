package models

import "time"

// ActionKind identifies the type of calendar mutation an action performs.
type ActionKind string

const (
	ActionCreate ActionKind = "CREATE"
	ActionUpdate ActionKind = "UPDATE"
	ActionDelete ActionKind = "DELETE"
)

// ActionStatus is the lifecycle state of a pending action. CONFIRMED is
// transient: a confirmed action is executed and removed right after.
type ActionStatus string

const (
	StatusPending   ActionStatus = "PENDING"
	StatusConfirmed ActionStatus = "CONFIRMED"
)

// EventData carries the parsed event fields of an intended change. Times are
// kept as the strings the parser produced; they are normalized only at
// execution time.
type EventData struct {
	Title       string   `json:"title,omitempty"`
	StartTime   string   `json:"start_time,omitempty"`
	EndTime     string   `json:"end_time,omitempty"`
	Location    string   `json:"location,omitempty"`
	Attendees   []string `json:"attendees,omitempty"`
	Description string   `json:"description,omitempty"`
}

// PendingAction is a staged mutation awaiting explicit confirmation.
// It lives in memory only and expires at ExpiresAt.
type PendingAction struct {
	ID            string
	Kind          ActionKind
	Status        ActionStatus
	CreatedAt     time.Time
	ExpiresAt     time.Time
	EventData     EventData
	TargetEventID string // set for UPDATE/DELETE, empty for CREATE
}

// HistoricalAction records an already executed mutation so a short follow-up
// utterance can reference it without restating the event.
type HistoricalAction struct {
	ActionID    string
	EventID     string
	Kind        ActionKind
	Timestamp   time.Time
	EventData   EventData
	Compensated bool // set once an undo has reverted this action
}
