package confirmation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"calendar-agent/internal/models"
)

func fixedParser(t time.Time) DatetimeParser {
	return func(string) (time.Time, bool) { return t, true }
}

func failingParser(string) (time.Time, bool) {
	return time.Time{}, false
}

func TestFormatPromptCreate(t *testing.T) {
	at := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC) // a Tuesday

	t.Run("basic", func(t *testing.T) {
		got := FormatPrompt(models.ActionCreate, models.EventData{
			Title:     "Dentist",
			StartTime: "2026-09-01T15:00:00",
		}, fixedParser(at))
		assert.Equal(t, "I'll create 'Dentist' on Tuesday, September 1 at 3:00 PM. Should I proceed?", got)
	})

	t.Run("with location and attendees", func(t *testing.T) {
		got := FormatPrompt(models.ActionCreate, models.EventData{
			Title:     "Planning",
			StartTime: "2026-09-01T15:00:00",
			Location:  "Room 4",
			Attendees: []string{"alice@example.com", "bob@example.com"},
		}, fixedParser(at))
		assert.Equal(t, "I'll create 'Planning' on Tuesday, September 1 at 3:00 PM at Room 4 with alice@example.com, bob@example.com. Should I proceed?", got)
	})

	t.Run("missing title falls back to Event", func(t *testing.T) {
		got := FormatPrompt(models.ActionCreate, models.EventData{StartTime: "x"}, fixedParser(at))
		assert.Contains(t, got, "'Event'")
	})

	t.Run("unparseable time", func(t *testing.T) {
		got := FormatPrompt(models.ActionCreate, models.EventData{
			Title:     "Dentist",
			StartTime: "whenever",
		}, failingParser)
		assert.Equal(t, "I'll create 'Dentist' on unknown time. Should I proceed?", got)
	})

	t.Run("no start time", func(t *testing.T) {
		got := FormatPrompt(models.ActionCreate, models.EventData{Title: "Dentist"}, fixedParser(at))
		assert.Contains(t, got, "on unknown time")
	})
}

func TestFormatPromptUpdate(t *testing.T) {
	at := time.Date(2026, 9, 2, 9, 30, 0, 0, time.UTC)
	got := FormatPrompt(models.ActionUpdate, models.EventData{
		Title:     "Standup",
		StartTime: "2026-09-02T09:30:00",
	}, fixedParser(at))
	assert.Equal(t, "I'll update 'Standup' to Wednesday, September 2 at 9:30 AM. Should I proceed?", got)
}

func TestFormatPromptDelete(t *testing.T) {
	at := time.Date(2026, 9, 3, 18, 0, 0, 0, time.UTC)
	got := FormatPrompt(models.ActionDelete, models.EventData{
		Title:     "Gym",
		StartTime: "2026-09-03T18:00:00",
	}, fixedParser(at))
	assert.Equal(t, "I'll cancel 'Gym' scheduled for Thursday, September 3 at 6:00 PM. Should I proceed?", got)
}

func TestFormatSummary(t *testing.T) {
	at := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)

	got := FormatSummary(models.EventData{
		Title:       "Planning",
		StartTime:   "2026-09-01T15:00:00",
		Location:    "Room 4",
		Attendees:   []string{"alice@example.com"},
		Description: "Quarterly planning",
	}, fixedParser(at))

	assert.Equal(t,
		"Event: Planning\nTime: Tuesday, September 1, 2026 at 3:00 PM\nLocation: Room 4\nAttendees: alice@example.com\nDescription: Quarterly planning",
		got)

	assert.Equal(t, "Event: X", FormatSummary(models.EventData{Title: "X", StartTime: "bad"}, failingParser))
}
