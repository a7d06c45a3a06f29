package nlp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	calendar "google.golang.org/api/calendar/v3"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	return &Parser{loc: ny, now: time.Now}
}

func timedEvent(summary, start string) *calendar.Event {
	return &calendar.Event{
		Summary: summary,
		Start:   &calendar.EventDateTime{DateTime: start},
	}
}

func TestFindEventByQuery(t *testing.T) {
	p := newTestParser(t)

	events := []*calendar.Event{
		timedEvent("Team Standup", "2026-09-01T09:00:00-04:00"),
		timedEvent("Dentist Appointment", "2026-09-01T15:00:00-04:00"),
		timedEvent("Dinner", "2026-09-01T19:30:00-04:00"),
	}

	t.Run("match by hour", func(t *testing.T) {
		got := p.FindEventByQuery("3pm meeting today", events)
		assert.NotNil(t, got)
		assert.Equal(t, "Dentist Appointment", got.Summary)
	})

	t.Run("match by hour and minutes", func(t *testing.T) {
		got := p.FindEventByQuery("the 7:30pm thing", events)
		assert.NotNil(t, got)
		assert.Equal(t, "Dinner", got.Summary)
	})

	t.Run("match by title", func(t *testing.T) {
		got := p.FindEventByQuery("cancel the team standup", events)
		assert.NotNil(t, got)
		assert.Equal(t, "Team Standup", got.Summary)
	})

	t.Run("no match", func(t *testing.T) {
		got := p.FindEventByQuery("the 11am review", events)
		assert.Nil(t, got)
	})

	t.Run("all-day event matches by title only", func(t *testing.T) {
		allDay := &calendar.Event{
			Summary: "Conference",
			Start:   &calendar.EventDateTime{Date: "2026-09-01"},
		}
		got := p.FindEventByQuery("delete the conference", []*calendar.Event{allDay})
		assert.NotNil(t, got)
	})
}
