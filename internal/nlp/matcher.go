package nlp

import (
	"strings"
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// FindEventByQuery picks the event a natural language description refers to,
// matching on the event's start time first, then its title.
func (p *Parser) FindEventByQuery(query string, events []*calendar.Event) *calendar.Event {
	lower := strings.ToLower(query)

	for _, event := range events {
		if event.Start != nil && event.Start.DateTime != "" {
			if start, ok := p.ParseDatetime(event.Start.DateTime); ok {
				if strings.Contains(lower, hourToken(start)) ||
					strings.Contains(lower, hourMinuteToken(start)) {
					return event
				}
			}
		}

		title := strings.ToLower(event.Summary)
		if title != "" && strings.Contains(lower, title) {
			return event
		}
	}
	return nil
}

// hourToken renders a time as a spoken hour, e.g. "3pm".
func hourToken(t time.Time) string {
	return strings.ToLower(t.Format("3PM"))
}

// hourMinuteToken renders a time with minutes, e.g. "3:30pm".
func hourMinuteToken(t time.Time) string {
	return strings.ToLower(t.Format("3:04PM"))
}
