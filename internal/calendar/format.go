package calendar

import (
	"fmt"
	"strings"
	"time"

	calendarapi "google.golang.org/api/calendar/v3"

	"calendar-agent/internal/nlp"
)

const (
	displayDateTimeLayout = "Monday, January 2, 2006, 3:04 PM"
	displayEndLayout      = "3:04 PM"
	displayDateLayout     = "Monday, January 2, 2006"
)

// FormatEvent renders an event for display in loc, handling both timed and
// all-day events.
func FormatEvent(event *calendarapi.Event, loc *time.Location) string {
	title := event.Summary
	if title == "" {
		title = "No Title"
	}

	timeStr := "Unknown time"
	if event.Start != nil {
		switch {
		case event.Start.DateTime != "":
			if start, ok := nlp.ParseDatetimeIn(event.Start.DateTime, loc); ok {
				timeStr = start.Format(displayDateTimeLayout)
				if event.End != nil && event.End.DateTime != "" {
					if end, ok := nlp.ParseDatetimeIn(event.End.DateTime, loc); ok {
						timeStr = fmt.Sprintf("%s - %s", timeStr, end.Format(displayEndLayout))
					}
				}
			}
		case event.Start.Date != "":
			if start, ok := nlp.ParseDatetimeIn(event.Start.Date, loc); ok {
				timeStr = fmt.Sprintf("%s (All day)", start.Format(displayDateLayout))
			}
		}
	}

	organizer := "Unknown"
	if event.Organizer != nil {
		organizer = event.Organizer.Email
		if event.Organizer.DisplayName != "" {
			organizer = event.Organizer.DisplayName
		}
	}

	var details []string
	if event.Location != "" {
		details = append(details, fmt.Sprintf("Location: %s", event.Location))
	}
	if event.Description != "" {
		details = append(details, fmt.Sprintf("Description: %s", event.Description))
	}
	var attendeeEmails []string
	for _, a := range event.Attendees {
		if a.Email != "" {
			attendeeEmails = append(attendeeEmails, a.Email)
		}
	}
	if len(attendeeEmails) > 0 {
		details = append(details, fmt.Sprintf("Attendees: %s", strings.Join(attendeeEmails, ", ")))
	}

	detailsStr := "No additional details"
	if len(details) > 0 {
		detailsStr = strings.Join(details, ", ")
	}

	return fmt.Sprintf("Event: %s\nTime: %s\nOrganizer: %s\nDetails: %s", title, timeStr, organizer, detailsStr)
}
