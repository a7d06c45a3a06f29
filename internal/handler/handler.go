// Package handler routes parsed calendar intents to the pending action store,
// the history log and the calendar backend, and shapes user-facing responses.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	calendarapi "google.golang.org/api/calendar/v3"

	"calendar-agent/internal/calendar"
	"calendar-agent/internal/confirmation"
	"calendar-agent/internal/history"
	"calendar-agent/internal/logger"
	"calendar-agent/internal/models"
	"calendar-agent/internal/nlp"
	"calendar-agent/internal/service"
)

// CalendarAPI is the calendar backend surface the handler depends on.
type CalendarAPI interface {
	ListEvents(ctx context.Context, start, end time.Time, maxResults int64) ([]*calendarapi.Event, error)
	CreateEvent(ctx context.Context, fields calendar.EventFields) (*calendarapi.Event, error)
	UpdateEvent(ctx context.Context, eventID string, fields calendar.UpdateFields) (*calendarapi.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
	FormatEventForDisplay(event *calendarapi.Event) string
}

// QueryParser is the intent/entity extraction surface the handler depends on.
type QueryParser interface {
	Parse(ctx context.Context, query string) nlp.Parsed
	ParseDatetime(s string) (time.Time, bool)
	FindEventByQuery(query string, events []*calendarapi.Event) *calendarapi.Event
}

// Response is the user-facing result of processing one request.
type Response struct {
	Type                 string `json:"type,omitempty"`
	Success              bool   `json:"success,omitempty"`
	RequiresConfirmation *bool  `json:"requires_confirmation,omitempty"`
	ActionID             string `json:"action_id,omitempty"`
	EventID              string `json:"event_id,omitempty"`
	Message              string `json:"message"`

	// Transport and audit metadata, not serialized to the client.
	Status   int    `json:"-"`
	Intent   string `json:"-"`
	Fallback bool   `json:"-"`
}

func boolPtr(b bool) *bool { return &b }

func errorResponse(status int, message string) Response {
	return Response{Type: "error", Message: message, Status: status}
}

// Handler dispatches parsed intents against the stores and the backend.
type Handler struct {
	cal              CalendarAPI
	parser           QueryParser
	pending          *confirmation.Store
	hist             *history.Log
	loc              *time.Location
	lastActionWindow time.Duration
	now              func() time.Time
}

// New creates a handler wired to its collaborators.
func New(cal CalendarAPI, parser QueryParser, pending *confirmation.Store, hist *history.Log, loc *time.Location, lastActionWindow time.Duration) *Handler {
	h := &Handler{
		cal:              cal,
		parser:           parser,
		pending:          pending,
		hist:             hist,
		loc:              loc,
		lastActionWindow: lastActionWindow,
	}
	h.now = func() time.Time { return time.Now().In(loc) }
	return h
}

// HandleQuery classifies an utterance and dispatches it. With autoConfirm set,
// mutations execute immediately and land in the history log; otherwise they
// are staged for explicit confirmation.
func (h *Handler) HandleQuery(ctx context.Context, query string, autoConfirm bool) Response {
	parsed := h.parser.Parse(ctx, query)
	logger.Infof("Query intent: %s (fallback=%t)", parsed.Intent, parsed.Fallback)

	var resp Response
	switch parsed.Intent {
	case nlp.IntentList:
		resp = h.handleList(ctx, parsed.Entities)
	case nlp.IntentCreate:
		resp = h.handleCreate(ctx, parsed.Entities, autoConfirm)
	case nlp.IntentUpdate:
		resp = h.handleUpdate(ctx, parsed.Entities, autoConfirm)
	case nlp.IntentDelete:
		resp = h.handleDelete(ctx, parsed.Entities, autoConfirm)
	case nlp.IntentConfirm:
		if autoConfirm {
			resp = h.HandleConfirmLast()
		} else {
			resp = errorResponse(http.StatusBadRequest,
				"I couldn't understand that request. Please try rephrasing.")
		}
	case nlp.IntentCancel:
		if autoConfirm {
			resp = h.HandleCancelLast(ctx)
		} else {
			resp = errorResponse(http.StatusBadRequest,
				"I couldn't understand that request. Please try rephrasing.")
		}
	default:
		resp = errorResponse(http.StatusBadRequest,
			"I couldn't understand that request. Please try rephrasing.")
	}

	resp.Intent = parsed.Intent
	resp.Fallback = parsed.Fallback
	return resp
}

// handleList answers a read query. Defaults to the rest of today when the
// parser supplied no range.
func (h *Handler) handleList(ctx context.Context, ent nlp.Entities) Response {
	now := h.now()

	start, ok := h.parser.ParseDatetime(ent.StartTime)
	if !ok {
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
	}
	end, ok := h.parser.ParseDatetime(ent.EndTime)
	if !ok {
		end = time.Date(start.Year(), start.Month(), start.Day(), 23, 59, 59, 0, h.loc)
	}

	events, err := h.cal.ListEvents(ctx, start, end, 20)
	if err != nil {
		logger.Errorf("Error listing events: %v", err)
		return errorResponse(http.StatusInternalServerError,
			"I couldn't reach your calendar. Please try again.")
	}

	period := "today"
	if start.Format("2006-01-02") != now.Format("2006-01-02") {
		period = fmt.Sprintf("on %s", start.Format("Monday, January 2"))
	}

	var message string
	if len(events) == 0 {
		message = fmt.Sprintf("You have no events scheduled %s.", period)
	} else {
		if len(events) == 1 {
			message = fmt.Sprintf("You have 1 event %s:\n\n", period)
		} else {
			message = fmt.Sprintf("You have %d events %s:\n\n", len(events), period)
		}
		var formatted []string
		for _, event := range events {
			formatted = append(formatted, h.cal.FormatEventForDisplay(event))
		}
		message += strings.Join(formatted, "\n\n")
	}

	return Response{
		Type:                 "result",
		RequiresConfirmation: boolPtr(false),
		Message:              message,
		Status:               http.StatusOK,
	}
}

// handleCreate stages or executes a CREATE. A missing start time is rejected
// before anything is staged.
func (h *Handler) handleCreate(ctx context.Context, ent nlp.Entities, autoConfirm bool) Response {
	title := ent.Title
	if title == "" {
		title = "New Event"
	}
	if ent.StartTime == "" {
		return errorResponse(http.StatusBadRequest,
			"I couldn't determine when you want to schedule this event. Please specify a time.")
	}

	data := models.EventData{
		Title:       title,
		StartTime:   ent.StartTime,
		EndTime:     ent.EndTime,
		Location:    ent.Location,
		Attendees:   ent.Attendees,
		Description: ent.Description,
	}

	if autoConfirm {
		return h.executeAndRecord(ctx, models.ActionCreate, "", data)
	}

	actionID := h.pending.Stage(models.ActionCreate, data, "")
	prompt := confirmation.FormatPrompt(models.ActionCreate, data, h.parser.ParseDatetime)
	return Response{
		Type:                 "confirmation",
		RequiresConfirmation: boolPtr(true),
		ActionID:             actionID,
		Message:              prompt,
		Status:               http.StatusOK,
	}
}

// handleUpdate locates the target event among today's events, then stages or
// executes the UPDATE.
func (h *Handler) handleUpdate(ctx context.Context, ent nlp.Entities, autoConfirm bool) Response {
	if ent.Query == "" {
		return errorResponse(http.StatusBadRequest,
			"I need more information about which event to update.")
	}

	now := h.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
	events, err := h.cal.ListEvents(ctx, dayStart, dayStart.AddDate(0, 0, 1), 50)
	if err != nil {
		logger.Errorf("Error listing events: %v", err)
		return errorResponse(http.StatusInternalServerError,
			"I couldn't reach your calendar. Please try again.")
	}

	event := h.parser.FindEventByQuery(ent.Query, events)
	if event == nil {
		return errorResponse(http.StatusNotFound,
			fmt.Sprintf("I couldn't find an event matching '%s'. Can you be more specific?", ent.Query))
	}

	data := models.EventData{Title: event.Summary}
	if ent.Changes != nil {
		if ent.Changes.Title != "" {
			data.Title = ent.Changes.Title
		}
		data.StartTime = ent.Changes.StartTime
		data.EndTime = ent.Changes.EndTime
		data.Location = ent.Changes.Location
		data.Attendees = ent.Changes.Attendees
		data.Description = ent.Changes.Description
	}

	if autoConfirm {
		return h.executeAndRecord(ctx, models.ActionUpdate, event.Id, data)
	}

	actionID := h.pending.Stage(models.ActionUpdate, data, event.Id)
	prompt := confirmation.FormatPrompt(models.ActionUpdate, data, h.parser.ParseDatetime)
	return Response{
		Type:                 "confirmation",
		RequiresConfirmation: boolPtr(true),
		ActionID:             actionID,
		Message:              prompt,
		Status:               http.StatusOK,
	}
}

// handleDelete locates the target event within the coming week, then stages
// or executes the DELETE.
func (h *Handler) handleDelete(ctx context.Context, ent nlp.Entities, autoConfirm bool) Response {
	if ent.Query == "" {
		return errorResponse(http.StatusBadRequest,
			"I need more information about which event to cancel.")
	}

	now := h.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
	events, err := h.cal.ListEvents(ctx, dayStart, dayStart.AddDate(0, 0, 7), 50)
	if err != nil {
		logger.Errorf("Error listing events: %v", err)
		return errorResponse(http.StatusInternalServerError,
			"I couldn't reach your calendar. Please try again.")
	}

	event := h.parser.FindEventByQuery(ent.Query, events)
	if event == nil {
		return errorResponse(http.StatusNotFound,
			fmt.Sprintf("I couldn't find an event matching '%s'. Can you be more specific?", ent.Query))
	}

	data := models.EventData{Title: event.Summary}
	if data.Title == "" {
		data.Title = "Event"
	}
	if event.Start != nil {
		data.StartTime = event.Start.DateTime
		if data.StartTime == "" {
			data.StartTime = event.Start.Date
		}
	}

	if autoConfirm {
		return h.executeAndRecord(ctx, models.ActionDelete, event.Id, data)
	}

	actionID := h.pending.Stage(models.ActionDelete, data, event.Id)
	prompt := confirmation.FormatPrompt(models.ActionDelete, data, h.parser.ParseDatetime)
	return Response{
		Type:                 "confirmation",
		RequiresConfirmation: boolPtr(true),
		ActionID:             actionID,
		Message:              prompt,
		Status:               http.StatusOK,
	}
}

// HandleConfirmLast acknowledges the most recent auto-confirmed action.
// The action already ran; this is a no-op acknowledgment.
func (h *Handler) HandleConfirmLast() Response {
	last, ok := h.hist.MostRecentWithin(h.lastActionWindow)
	if !ok {
		return Response{
			Type:    "result",
			Message: "I don't have any recent actions to confirm. Everything is already done!",
			Status:  http.StatusOK,
		}
	}

	title := last.EventData.Title
	if title == "" {
		title = "Event"
	}

	var message string
	switch last.Kind {
	case models.ActionCreate:
		message = fmt.Sprintf("Confirmed! I've already created '%s' in your calendar.", title)
	case models.ActionUpdate:
		message = fmt.Sprintf("Confirmed! I've already updated '%s' in your calendar.", title)
	case models.ActionDelete:
		message = fmt.Sprintf("Confirmed! I've already deleted '%s' from your calendar.", title)
	default:
		message = "Confirmed! The action has been completed."
	}

	return Response{Type: "result", Message: message, Status: http.StatusOK}
}

// HandleCancelLast compensates the most recent auto-confirmed action. Only
// CREATE is compensable: the created event is deleted again. UPDATE keeps no
// pre-image and DELETE cannot restore the resource, so both only explain.
func (h *Handler) HandleCancelLast(ctx context.Context) Response {
	last, ok := h.hist.MostRecentWithin(h.lastActionWindow)
	if !ok {
		return Response{
			Type:    "result",
			Message: "I don't have any recent actions to cancel.",
			Status:  http.StatusOK,
		}
	}

	title := last.EventData.Title
	if title == "" {
		title = "Event"
	}

	switch last.Kind {
	case models.ActionCreate:
		if last.Compensated {
			return Response{
				Type:    "result",
				Message: fmt.Sprintf("'%s' has already been removed from your calendar.", title),
				Status:  http.StatusOK,
			}
		}
		if err := h.cal.DeleteEvent(ctx, last.EventID); err != nil && !calendar.IsNotFound(err) {
			logger.Errorf("Error cancelling action %s: %v", last.ActionID, err)
			return errorResponse(http.StatusInternalServerError,
				fmt.Sprintf("I couldn't cancel that action: %v", err))
		}
		h.hist.MarkCompensated(last.ActionID)
		service.MarkActionOutcome(last.ActionID, "compensated")
		return Response{
			Type:    "result",
			Message: fmt.Sprintf("Cancelled! I've removed '%s' from your calendar.", title),
			Status:  http.StatusOK,
		}
	case models.ActionDelete:
		return Response{
			Type:    "result",
			Message: fmt.Sprintf("I can't restore '%s' as it has already been deleted.", title),
			Status:  http.StatusOK,
		}
	case models.ActionUpdate:
		return Response{
			Type:    "result",
			Message: fmt.Sprintf("I can't automatically revert the changes to '%s'.", title),
			Status:  http.StatusOK,
		}
	default:
		return Response{Type: "result", Message: "I couldn't cancel that action.", Status: http.StatusOK}
	}
}

// ConfirmPending claims a staged action and executes it. The claim removes
// the entry atomically; if execution then fails, the action is restored so
// the user can confirm again.
func (h *Handler) ConfirmPending(ctx context.Context, actionID string) Response {
	action, ok := h.pending.TakeForExecution(actionID)
	if !ok {
		return Response{
			Success: false,
			Message: "Action not found or has expired. Please make a new request.",
			Status:  http.StatusNotFound,
		}
	}

	resp := h.execute(ctx, action.Kind, action.TargetEventID, action.EventData)
	if resp.Status >= http.StatusInternalServerError {
		h.pending.Restore(action)
		return resp
	}
	if resp.Success && resp.EventID != "" {
		recordAction(actionID, resp.EventID, action.Kind, action.EventData.Title, "executed")
	}

	resp.ActionID = actionID
	return resp
}

// CancelPending discards a staged action without touching the backend.
func (h *Handler) CancelPending(actionID string) Response {
	if h.pending.Cancel(actionID) {
		return Response{
			Success: true,
			Message: "Action cancelled. No changes were made to your calendar.",
			Status:  http.StatusOK,
		}
	}
	return Response{
		Success: false,
		Message: "Action not found or already expired.",
		Status:  http.StatusNotFound,
	}
}
