// Package calendar wraps the Google Calendar v3 API for the single calendar
// this agent manages. Authentication prefers a service account and falls back
// to OAuth client credentials with a stored token.
package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"calendar-agent/internal/config"
	"calendar-agent/internal/logger"
)

// Client performs event operations against one configured calendar.
type Client struct {
	svc        *calendarapi.Service
	calendarID string
	timezone   string
	loc        *time.Location
}

// EventFields are the writable fields of an event used on create.
type EventFields struct {
	Title       string
	Start       time.Time
	End         time.Time
	Location    string
	Description string
	Attendees   []string
}

// UpdateFields are partial changes applied on update. Nil pointers and zero
// values leave the existing field untouched.
type UpdateFields struct {
	Title       string
	Start       *time.Time
	End         *time.Time
	Location    *string
	Description *string
	Attendees   []string
}

// NewClient authenticates and returns a calendar client.
func NewClient(ctx context.Context, cfg *config.Config, loc *time.Location) (*Client, error) {
	svc, err := newService(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		svc:        svc,
		calendarID: cfg.Calendar.CalendarID,
		timezone:   cfg.Calendar.Timezone,
		loc:        loc,
	}, nil
}

func newService(ctx context.Context, cfg *config.Config) (*calendarapi.Service, error) {
	// Service account first: no token refresh dance, preferred for servers.
	if _, err := os.Stat(cfg.Calendar.ServiceAccountFile); err == nil {
		logger.Infof("Using service account authentication from %s", cfg.Calendar.ServiceAccountFile)
		svc, err := calendarapi.NewService(ctx,
			option.WithCredentialsFile(cfg.Calendar.ServiceAccountFile),
			option.WithScopes(calendarapi.CalendarScope),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create calendar service from service account: %w", err)
		}
		return svc, nil
	}

	logger.Info("No service account found, using OAuth authentication")

	credBytes, err := os.ReadFile(cfg.Calendar.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%s not found, download it from Google Cloud Console: %w",
			cfg.Calendar.CredentialsFile, err)
	}
	oauthCfg, err := google.ConfigFromJSON(credBytes, calendarapi.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OAuth credentials: %w", err)
	}

	token, err := tokenFromFile(cfg.Calendar.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("no stored OAuth token at %s, run an interactive auth flow first: %w",
			cfg.Calendar.TokenFile, err)
	}

	httpClient := oauthCfg.Client(ctx, token)
	svc, err := calendarapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return svc, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("failed to decode token file: %w", err)
	}
	return token, nil
}

// ListEvents returns events between start and end, ordered by start time.
func (c *Client) ListEvents(ctx context.Context, start, end time.Time, maxResults int64) ([]*calendarapi.Event, error) {
	result, err := c.svc.Events.List(c.calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		MaxResults(maxResults).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return result.Items, nil
}

// CreateEvent inserts a new event and returns the created resource.
func (c *Client) CreateEvent(ctx context.Context, fields EventFields) (*calendarapi.Event, error) {
	event := &calendarapi.Event{
		Summary: fields.Title,
		Start: &calendarapi.EventDateTime{
			DateTime: fields.Start.Format(time.RFC3339),
			TimeZone: c.timezone,
		},
		End: &calendarapi.EventDateTime{
			DateTime: fields.End.Format(time.RFC3339),
			TimeZone: c.timezone,
		},
		Location:    fields.Location,
		Description: fields.Description,
	}
	for _, email := range fields.Attendees {
		event.Attendees = append(event.Attendees, &calendarapi.EventAttendee{Email: email})
	}

	created, err := c.svc.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return created, nil
}

// UpdateEvent fetches the event, applies the given changes and writes it back.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, fields UpdateFields) (*calendarapi.Event, error) {
	event, err := c.svc.Events.Get(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", eventID, err)
	}

	if fields.Title != "" {
		event.Summary = fields.Title
	}
	if fields.Start != nil {
		event.Start = &calendarapi.EventDateTime{
			DateTime: fields.Start.Format(time.RFC3339),
			TimeZone: c.timezone,
		}
	}
	if fields.End != nil {
		event.End = &calendarapi.EventDateTime{
			DateTime: fields.End.Format(time.RFC3339),
			TimeZone: c.timezone,
		}
	}
	if fields.Location != nil {
		event.Location = *fields.Location
	}
	if fields.Description != nil {
		event.Description = *fields.Description
	}
	if fields.Attendees != nil {
		event.Attendees = nil
		for _, email := range fields.Attendees {
			event.Attendees = append(event.Attendees, &calendarapi.EventAttendee{Email: email})
		}
	}

	updated, err := c.svc.Events.Update(c.calendarID, eventID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update event %s: %w", eventID, err)
	}
	return updated, nil
}

// DeleteEvent removes an event from the calendar.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.svc.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, err)
	}
	return nil
}

// FormatEventForDisplay renders an event for user-facing messages.
func (c *Client) FormatEventForDisplay(event *calendarapi.Event) string {
	return FormatEvent(event, c.loc)
}

// IsNotFound reports whether err is the backend saying the resource is gone.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
