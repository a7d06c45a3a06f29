package handler

import (
	"context"
	"net/http"
	"time"

	"calendar-agent/internal/calendar"
	"calendar-agent/internal/logger"
	"calendar-agent/internal/models"
	"calendar-agent/internal/service"
)

// recordAction is a seam over the audit service so tests can observe the
// audit writes without a database.
var recordAction = service.RecordAction

// execute performs a confirmed mutation against the calendar backend.
func (h *Handler) execute(ctx context.Context, kind models.ActionKind, targetEventID string, data models.EventData) Response {
	switch kind {
	case models.ActionCreate:
		return h.executeCreate(ctx, data)
	case models.ActionUpdate:
		return h.executeUpdate(ctx, targetEventID, data)
	case models.ActionDelete:
		return h.executeDelete(ctx, targetEventID, data)
	default:
		return Response{Success: false, Message: "Unknown action type", Status: http.StatusBadRequest}
	}
}

// executeAndRecord is the auto-confirm path: run the mutation immediately and
// record it in the history log so a follow-up "undo that" can reference it.
// Successful results carry the requires_confirmation flag for the voice
// client; error responses do not.
func (h *Handler) executeAndRecord(ctx context.Context, kind models.ActionKind, targetEventID string, data models.EventData) Response {
	resp := h.execute(ctx, kind, targetEventID, data)
	if resp.Success {
		if resp.EventID != "" {
			actionID := h.hist.Record(resp.EventID, kind, data)
			recordAction(actionID, resp.EventID, kind, data.Title, "executed")
		}
		resp.RequiresConfirmation = boolPtr(true)
	}
	return resp
}

// executeCreate normalizes the payload times and inserts the event.
// A missing or unparseable end time defaults to start plus one hour.
func (h *Handler) executeCreate(ctx context.Context, data models.EventData) Response {
	start, ok := h.parser.ParseDatetime(data.StartTime)
	if !ok {
		return errorResponse(http.StatusBadRequest,
			"I couldn't understand the event's start time. Please try again.")
	}
	end, ok := h.parser.ParseDatetime(data.EndTime)
	if !ok {
		end = start.Add(time.Hour)
	}

	created, err := h.cal.CreateEvent(ctx, calendar.EventFields{
		Title:       data.Title,
		Start:       start,
		End:         end,
		Location:    data.Location,
		Description: data.Description,
		Attendees:   data.Attendees,
	})
	if err != nil {
		logger.Errorf("Error creating event: %v", err)
		return errorResponse(http.StatusInternalServerError,
			"I couldn't create the event. Please try again.")
	}

	return Response{
		Success: true,
		EventID: created.Id,
		Type:    "action_completed",
		Message: "Event created successfully!\n\n" + h.cal.FormatEventForDisplay(created),
		Status:  http.StatusOK,
	}
}

func (h *Handler) executeUpdate(ctx context.Context, eventID string, data models.EventData) Response {
	fields := calendar.UpdateFields{Title: data.Title}
	if start, ok := h.parser.ParseDatetime(data.StartTime); ok {
		fields.Start = &start
	}
	if end, ok := h.parser.ParseDatetime(data.EndTime); ok {
		fields.End = &end
	}
	if data.Location != "" {
		fields.Location = &data.Location
	}
	if data.Description != "" {
		fields.Description = &data.Description
	}
	if len(data.Attendees) > 0 {
		fields.Attendees = data.Attendees
	}

	updated, err := h.cal.UpdateEvent(ctx, eventID, fields)
	if err != nil {
		logger.Errorf("Error updating event %s: %v", eventID, err)
		return errorResponse(http.StatusInternalServerError,
			"I couldn't update the event. Please try again.")
	}

	return Response{
		Success: true,
		EventID: eventID,
		Type:    "action_completed",
		Message: "Event updated successfully!\n\n" + h.cal.FormatEventForDisplay(updated),
		Status:  http.StatusOK,
	}
}

func (h *Handler) executeDelete(ctx context.Context, eventID string, data models.EventData) Response {
	if err := h.cal.DeleteEvent(ctx, eventID); err != nil {
		logger.Errorf("Error deleting event %s: %v", eventID, err)
		return errorResponse(http.StatusInternalServerError,
			"I couldn't delete the event. Please try again.")
	}

	title := data.Title
	if title == "" {
		title = "Event"
	}
	return Response{
		Success: true,
		EventID: eventID,
		Type:    "action_completed",
		Message: "Event cancelled successfully!\n\nDeleted: " + title,
		Status:  http.StatusOK,
	}
}
