package handler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"calendar-agent/internal/calendar"
	"calendar-agent/internal/confirmation"
	"calendar-agent/internal/history"
	"calendar-agent/internal/models"
	"calendar-agent/internal/nlp"
)

// fakeCalendar implements CalendarAPI in memory.
type fakeCalendar struct {
	events     []*calendarapi.Event
	nextID     int
	listErr    error
	createErr  error
	updateErr  error
	deleteErr  error
	deletedIDs []string
	created    []calendar.EventFields
	updated    map[string]calendar.UpdateFields
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{updated: make(map[string]calendar.UpdateFields)}
}

func (f *fakeCalendar) ListEvents(ctx context.Context, start, end time.Time, maxResults int64) ([]*calendarapi.Event, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.events, nil
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, fields calendar.EventFields) (*calendarapi.Event, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	f.created = append(f.created, fields)
	event := &calendarapi.Event{
		Id:      fmt.Sprintf("evt-%d", f.nextID),
		Summary: fields.Title,
		Start:   &calendarapi.EventDateTime{DateTime: fields.Start.Format(time.RFC3339)},
		End:     &calendarapi.EventDateTime{DateTime: fields.End.Format(time.RFC3339)},
	}
	f.events = append(f.events, event)
	return event, nil
}

func (f *fakeCalendar) UpdateEvent(ctx context.Context, eventID string, fields calendar.UpdateFields) (*calendarapi.Event, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updated[eventID] = fields
	return &calendarapi.Event{Id: eventID, Summary: fields.Title}, nil
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, eventID)
	return nil
}

func (f *fakeCalendar) FormatEventForDisplay(event *calendarapi.Event) string {
	return "Event: " + event.Summary
}

// fakeParser returns a canned classification and delegates matching to the
// real keyword matcher semantics where practical.
type fakeParser struct {
	result nlp.Parsed
	loc    *time.Location
}

func (f *fakeParser) Parse(ctx context.Context, query string) nlp.Parsed {
	return f.result
}

func (f *fakeParser) ParseDatetime(s string) (time.Time, bool) {
	return nlp.ParseDatetimeIn(s, f.loc)
}

func (f *fakeParser) FindEventByQuery(query string, events []*calendarapi.Event) *calendarapi.Event {
	for _, e := range events {
		if e.Summary == query {
			return e
		}
	}
	return nil
}

type fixture struct {
	h       *Handler
	cal     *fakeCalendar
	parser  *fakeParser
	pending *confirmation.Store
	hist    *history.Log
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc := time.UTC
	cal := newFakeCalendar()
	parser := &fakeParser{loc: loc}
	pending := confirmation.NewStore(5*time.Minute, loc)
	hist := history.NewLog(50, loc)
	return &fixture{
		h:       New(cal, parser, pending, hist, loc, 2*time.Minute),
		cal:     cal,
		parser:  parser,
		pending: pending,
		hist:    hist,
	}
}

func TestHandleQueryList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("no events", func(t *testing.T) {
		f.parser.result = nlp.Parsed{Intent: nlp.IntentList}
		resp := f.h.HandleQuery(ctx, "what's on today", false)
		assert.Equal(t, 200, resp.Status)
		assert.Equal(t, "You have no events scheduled today.", resp.Message)
		require.NotNil(t, resp.RequiresConfirmation)
		assert.False(t, *resp.RequiresConfirmation)
	})

	t.Run("with events", func(t *testing.T) {
		f.cal.events = []*calendarapi.Event{
			{Id: "1", Summary: "Standup"},
			{Id: "2", Summary: "Lunch"},
		}
		resp := f.h.HandleQuery(ctx, "what's on today", false)
		assert.Contains(t, resp.Message, "You have 2 events today:")
		assert.Contains(t, resp.Message, "Event: Standup")
		assert.Contains(t, resp.Message, "Event: Lunch")
	})

	t.Run("single event uses singular", func(t *testing.T) {
		f.cal.events = f.cal.events[:1]
		resp := f.h.HandleQuery(ctx, "what's on today", false)
		assert.Contains(t, resp.Message, "You have 1 event today:")
	})

	t.Run("backend failure", func(t *testing.T) {
		f.cal.listErr = errors.New("boom")
		resp := f.h.HandleQuery(ctx, "what's on today", false)
		assert.Equal(t, 500, resp.Status)
		assert.Equal(t, "error", resp.Type)
	})
}

func TestCreateConfirmationFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.parser.result = nlp.Parsed{
		Intent: nlp.IntentCreate,
		Entities: nlp.Entities{
			Title:     "Dentist",
			StartTime: "2026-09-01T15:00:00Z",
		},
	}

	resp := f.h.HandleQuery(ctx, "book dentist at 3pm", false)
	require.Equal(t, "confirmation", resp.Type)
	require.NotNil(t, resp.RequiresConfirmation)
	assert.True(t, *resp.RequiresConfirmation)
	require.NotEmpty(t, resp.ActionID)
	assert.Contains(t, resp.Message, "I'll create 'Dentist' on Tuesday, September 1 at 3:00 PM")
	assert.Contains(t, resp.Message, "Should I proceed?")

	// Nothing touched the backend yet.
	assert.Empty(t, f.cal.created)

	confirmed := f.h.ConfirmPending(ctx, resp.ActionID)
	require.True(t, confirmed.Success)
	assert.Equal(t, "action_completed", confirmed.Type)
	assert.Equal(t, resp.ActionID, confirmed.ActionID)
	assert.Contains(t, confirmed.Message, "Event created successfully!")

	// No end time given: execution defaults it to start plus one hour.
	require.Len(t, f.cal.created, 1)
	got := f.cal.created[0]
	assert.Equal(t, time.Hour, got.End.Sub(got.Start))

	// The pending entry is consumed: a second confirm fails.
	again := f.h.ConfirmPending(ctx, resp.ActionID)
	assert.False(t, again.Success)
	assert.Equal(t, 404, again.Status)
}

func TestCreateMissingStartTime(t *testing.T) {
	f := newFixture(t)
	f.parser.result = nlp.Parsed{
		Intent:   nlp.IntentCreate,
		Entities: nlp.Entities{Title: "Dentist"},
	}

	resp := f.h.HandleQuery(context.Background(), "book dentist", false)
	assert.Equal(t, 400, resp.Status)
	assert.Contains(t, resp.Message, "specify a time")
	assert.Equal(t, 0, f.pending.Count())
}

func TestConfirmPendingRestoresOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.parser.result = nlp.Parsed{
		Intent: nlp.IntentCreate,
		Entities: nlp.Entities{
			Title:     "Dentist",
			StartTime: "2026-09-01T15:00:00Z",
		},
	}

	resp := f.h.HandleQuery(ctx, "book dentist", false)
	require.NotEmpty(t, resp.ActionID)

	f.cal.createErr = errors.New("backend down")
	failed := f.h.ConfirmPending(ctx, resp.ActionID)
	assert.Equal(t, 500, failed.Status)

	// The action was re-armed: once the backend recovers, confirming works.
	f.cal.createErr = nil
	retried := f.h.ConfirmPending(ctx, resp.ActionID)
	assert.True(t, retried.Success)
}

func TestCancelPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.parser.result = nlp.Parsed{
		Intent: nlp.IntentCreate,
		Entities: nlp.Entities{
			Title:     "Dentist",
			StartTime: "2026-09-01T15:00:00Z",
		},
	}
	resp := f.h.HandleQuery(ctx, "book dentist", false)

	cancelled := f.h.CancelPending(resp.ActionID)
	assert.True(t, cancelled.Success)
	assert.Equal(t, "Action cancelled. No changes were made to your calendar.", cancelled.Message)
	assert.Empty(t, f.cal.created)

	missing := f.h.CancelPending(resp.ActionID)
	assert.False(t, missing.Success)
	assert.Equal(t, 404, missing.Status)
}

func TestUpdateFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.cal.events = []*calendarapi.Event{
		{Id: "evt-7", Summary: "Standup"},
	}

	t.Run("missing query", func(t *testing.T) {
		f.parser.result = nlp.Parsed{Intent: nlp.IntentUpdate}
		resp := f.h.HandleQuery(ctx, "change it", false)
		assert.Equal(t, 400, resp.Status)
	})

	t.Run("event not found", func(t *testing.T) {
		f.parser.result = nlp.Parsed{
			Intent:   nlp.IntentUpdate,
			Entities: nlp.Entities{Query: "Retro"},
		}
		resp := f.h.HandleQuery(ctx, "move the retro", false)
		assert.Equal(t, 404, resp.Status)
		assert.Contains(t, resp.Message, "I couldn't find an event matching 'Retro'")
	})

	t.Run("staged and confirmed", func(t *testing.T) {
		f.parser.result = nlp.Parsed{
			Intent: nlp.IntentUpdate,
			Entities: nlp.Entities{
				Query:   "Standup",
				Changes: &models.EventData{StartTime: "2026-09-01T10:00:00Z"},
			},
		}
		resp := f.h.HandleQuery(ctx, "move standup to 10", false)
		require.Equal(t, "confirmation", resp.Type)
		assert.Contains(t, resp.Message, "I'll update 'Standup'")

		confirmed := f.h.ConfirmPending(ctx, resp.ActionID)
		require.True(t, confirmed.Success)
		fields, ok := f.cal.updated["evt-7"]
		require.True(t, ok)
		require.NotNil(t, fields.Start)
		assert.Nil(t, fields.Location, "unset fields stay untouched")
	})
}

func TestDeleteFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.cal.events = []*calendarapi.Event{
		{
			Id:      "evt-9",
			Summary: "Gym",
			Start:   &calendarapi.EventDateTime{DateTime: "2026-09-03T18:00:00Z"},
		},
	}
	f.parser.result = nlp.Parsed{
		Intent:   nlp.IntentDelete,
		Entities: nlp.Entities{Query: "Gym"},
	}

	resp := f.h.HandleQuery(ctx, "cancel gym", false)
	require.Equal(t, "confirmation", resp.Type)
	assert.Contains(t, resp.Message, "I'll cancel 'Gym' scheduled for")

	confirmed := f.h.ConfirmPending(ctx, resp.ActionID)
	require.True(t, confirmed.Success)
	assert.Equal(t, "Event cancelled successfully!\n\nDeleted: Gym", confirmed.Message)
	assert.Equal(t, []string{"evt-9"}, f.cal.deletedIDs)
}

func TestAutoConfirmRecordsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.parser.result = nlp.Parsed{
		Intent: nlp.IntentCreate,
		Entities: nlp.Entities{
			Title:     "Lunch",
			StartTime: "2026-09-01T12:00:00Z",
		},
	}

	resp := f.h.HandleQuery(ctx, "add lunch at noon", true)
	require.True(t, resp.Success)
	require.NotNil(t, resp.RequiresConfirmation)
	assert.True(t, *resp.RequiresConfirmation)
	assert.Equal(t, 1, f.hist.Len())
	assert.Equal(t, 0, f.pending.Count(), "auto-confirm bypasses staging")
}

func TestConfirmLast(t *testing.T) {
	f := newFixture(t)

	t.Run("nothing recent", func(t *testing.T) {
		resp := f.h.HandleConfirmLast()
		assert.Equal(t, "I don't have any recent actions to confirm. Everything is already done!", resp.Message)
	})

	t.Run("acknowledges create", func(t *testing.T) {
		f.hist.Record("evt-1", models.ActionCreate, models.EventData{Title: "Lunch"})
		resp := f.h.HandleConfirmLast()
		assert.Equal(t, "Confirmed! I've already created 'Lunch' in your calendar.", resp.Message)
		assert.Empty(t, f.cal.deletedIDs, "confirm is a no-op acknowledgment")
	})
}

func TestCancelLast(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing recent", func(t *testing.T) {
		f := newFixture(t)
		resp := f.h.HandleCancelLast(ctx)
		assert.Equal(t, "I don't have any recent actions to cancel.", resp.Message)
	})

	t.Run("compensates create by deleting", func(t *testing.T) {
		f := newFixture(t)
		f.hist.Record("evt-1", models.ActionCreate, models.EventData{Title: "Lunch"})

		resp := f.h.HandleCancelLast(ctx)
		assert.Equal(t, "Cancelled! I've removed 'Lunch' from your calendar.", resp.Message)
		assert.Equal(t, []string{"evt-1"}, f.cal.deletedIDs)

		// A second undo does not delete again.
		resp = f.h.HandleCancelLast(ctx)
		assert.Equal(t, "'Lunch' has already been removed from your calendar.", resp.Message)
		assert.Len(t, f.cal.deletedIDs, 1)
	})

	t.Run("tolerates event already gone upstream", func(t *testing.T) {
		f := newFixture(t)
		f.hist.Record("evt-2", models.ActionCreate, models.EventData{Title: "Lunch"})
		f.cal.deleteErr = &googleapi.Error{Code: 404}

		resp := f.h.HandleCancelLast(ctx)
		assert.Equal(t, 200, resp.Status)
		assert.Contains(t, resp.Message, "Cancelled!")
	})

	t.Run("delete is not restorable", func(t *testing.T) {
		f := newFixture(t)
		f.hist.Record("evt-3", models.ActionDelete, models.EventData{Title: "Gym"})
		resp := f.h.HandleCancelLast(ctx)
		assert.Equal(t, "I can't restore 'Gym' as it has already been deleted.", resp.Message)
	})

	t.Run("update is not revertible", func(t *testing.T) {
		f := newFixture(t)
		f.hist.Record("evt-4", models.ActionUpdate, models.EventData{Title: "Standup"})
		resp := f.h.HandleCancelLast(ctx)
		assert.Equal(t, "I can't automatically revert the changes to 'Standup'.", resp.Message)
	})

	t.Run("backend failure surfaces", func(t *testing.T) {
		f := newFixture(t)
		f.hist.Record("evt-5", models.ActionCreate, models.EventData{Title: "Lunch"})
		f.cal.deleteErr = errors.New("boom")

		resp := f.h.HandleCancelLast(ctx)
		assert.Equal(t, 500, resp.Status)
	})
}

type auditCall struct {
	actionID string
	eventID  string
	kind     models.ActionKind
	outcome  string
}

func captureAudit(t *testing.T) *[]auditCall {
	t.Helper()
	var calls []auditCall
	orig := recordAction
	recordAction = func(actionID, eventID string, kind models.ActionKind, title, outcome string) {
		calls = append(calls, auditCall{actionID, eventID, kind, outcome})
	}
	t.Cleanup(func() { recordAction = orig })
	return &calls
}

func TestAuditRecordOnStagedConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	calls := captureAudit(t)

	f.parser.result = nlp.Parsed{
		Intent: nlp.IntentCreate,
		Entities: nlp.Entities{
			Title:     "Dentist",
			StartTime: "2026-09-01T15:00:00Z",
		},
	}

	resp := f.h.HandleQuery(ctx, "book dentist", false)
	require.NotEmpty(t, resp.ActionID)
	assert.Empty(t, *calls, "staging writes no audit row")

	confirmed := f.h.ConfirmPending(ctx, resp.ActionID)
	require.True(t, confirmed.Success)

	require.Len(t, *calls, 1)
	got := (*calls)[0]
	assert.Equal(t, resp.ActionID, got.actionID)
	assert.Equal(t, confirmed.EventID, got.eventID)
	assert.Equal(t, models.ActionCreate, got.kind)
	assert.Equal(t, "executed", got.outcome)
}

func TestAuditRecordOnAutoConfirm(t *testing.T) {
	f := newFixture(t)
	calls := captureAudit(t)

	f.parser.result = nlp.Parsed{
		Intent: nlp.IntentCreate,
		Entities: nlp.Entities{
			Title:     "Lunch",
			StartTime: "2026-09-01T12:00:00Z",
		},
	}

	resp := f.h.HandleQuery(context.Background(), "add lunch at noon", true)
	require.True(t, resp.Success)

	require.Len(t, *calls, 1)
	assert.Equal(t, resp.EventID, (*calls)[0].eventID)
	assert.Equal(t, "executed", (*calls)[0].outcome)
}

func TestAutoConfirmValidationError(t *testing.T) {
	f := newFixture(t)
	calls := captureAudit(t)

	f.parser.result = nlp.Parsed{
		Intent: nlp.IntentCreate,
		Entities: nlp.Entities{
			Title:     "Dentist",
			StartTime: "whenever",
		},
	}

	resp := f.h.HandleQuery(context.Background(), "book dentist whenever", true)
	assert.Equal(t, 400, resp.Status)
	assert.False(t, resp.Success)
	assert.Nil(t, resp.RequiresConfirmation, "error responses carry no confirmation flag")
	assert.Equal(t, 0, f.hist.Len())
	assert.Empty(t, *calls)
}

func TestConfirmIntentOutsideAutoConfirm(t *testing.T) {
	f := newFixture(t)
	f.hist.Record("evt-1", models.ActionCreate, models.EventData{Title: "Lunch"})
	f.parser.result = nlp.Parsed{Intent: nlp.IntentConfirm}

	// Without auto-confirm the bare acknowledgment has nothing to bind to.
	resp := f.h.HandleQuery(context.Background(), "yes", false)
	assert.Equal(t, 400, resp.Status)

	resp = f.h.HandleQuery(context.Background(), "yes", true)
	assert.Equal(t, 200, resp.Status)
	assert.Contains(t, resp.Message, "Confirmed!")
}
