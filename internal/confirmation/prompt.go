package confirmation

import (
	"fmt"
	"strings"
	"time"

	"calendar-agent/internal/models"
)

// DatetimeParser renders a payload time string into an instant.
// The second return reports whether parsing succeeded.
type DatetimeParser func(string) (time.Time, bool)

const promptTimeLayout = "Monday, January 2 at 3:04 PM"
const summaryTimeLayout = "Monday, January 2, 2006 at 3:04 PM"

// FormatPrompt renders a pending action into a natural language confirmation
// question. A time that fails to parse renders as "unknown time" instead of
// failing the whole prompt.
func FormatPrompt(kind models.ActionKind, data models.EventData, parse DatetimeParser) string {
	title := data.Title
	if title == "" {
		title = "Event"
	}

	timeStr := "unknown time"
	if data.StartTime != "" {
		if start, ok := parse(data.StartTime); ok {
			timeStr = start.Format(promptTimeLayout)
		}
	}

	switch kind {
	case models.ActionCreate:
		prompt := fmt.Sprintf("I'll create '%s' on %s", title, timeStr)
		if data.Location != "" {
			prompt += fmt.Sprintf(" at %s", data.Location)
		}
		if len(data.Attendees) > 0 {
			prompt += fmt.Sprintf(" with %s", strings.Join(data.Attendees, ", "))
		}
		return prompt + ". Should I proceed?"

	case models.ActionUpdate:
		prompt := fmt.Sprintf("I'll update '%s' to %s", title, timeStr)
		if data.Location != "" {
			prompt += fmt.Sprintf(" at %s", data.Location)
		}
		return prompt + ". Should I proceed?"

	case models.ActionDelete:
		return fmt.Sprintf("I'll cancel '%s' scheduled for %s. Should I proceed?", title, timeStr)

	default:
		return "Should I proceed with this action?"
	}
}

// FormatSummary renders event data as a multi-line summary for display and logs.
func FormatSummary(data models.EventData, parse DatetimeParser) string {
	var lines []string

	if data.Title != "" {
		lines = append(lines, fmt.Sprintf("Event: %s", data.Title))
	}
	if data.StartTime != "" {
		if start, ok := parse(data.StartTime); ok {
			lines = append(lines, fmt.Sprintf("Time: %s", start.Format(summaryTimeLayout)))
		}
	}
	if data.Location != "" {
		lines = append(lines, fmt.Sprintf("Location: %s", data.Location))
	}
	if len(data.Attendees) > 0 {
		lines = append(lines, fmt.Sprintf("Attendees: %s", strings.Join(data.Attendees, ", ")))
	}
	if data.Description != "" {
		lines = append(lines, fmt.Sprintf("Description: %s", data.Description))
	}

	return strings.Join(lines, "\n")
}
