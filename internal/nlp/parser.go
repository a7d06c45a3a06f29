// Package nlp turns natural language utterances into structured calendar
// intents. The primary path is an OpenAI chat completion in JSON mode; when
// the API is unavailable a deterministic keyword classifier takes over.
package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"calendar-agent/internal/config"
	"calendar-agent/internal/logger"
	"calendar-agent/internal/models"
)

// Intent values produced by the parser.
const (
	IntentList    = "list"
	IntentCreate  = "create"
	IntentUpdate  = "update"
	IntentDelete  = "delete"
	IntentConfirm = "confirm"
	IntentCancel  = "cancel"
)

// Entities holds the structured fields extracted from an utterance. Which
// fields are populated depends on the intent.
type Entities struct {
	Title       string            `json:"title,omitempty"`
	StartTime   string            `json:"start_time,omitempty"`
	EndTime     string            `json:"end_time,omitempty"`
	Location    string            `json:"location,omitempty"`
	Attendees   []string          `json:"attendees,omitempty"`
	Description string            `json:"description,omitempty"`
	Query       string            `json:"query,omitempty"`
	Changes     *models.EventData `json:"changes,omitempty"`
}

// Parsed is the result of intent classification.
type Parsed struct {
	Intent   string   `json:"intent"`
	Entities Entities `json:"entities"`
	Fallback bool     `json:"fallback,omitempty"`
}

// Parser classifies utterances using the OpenAI API with a keyword fallback.
type Parser struct {
	client *openai.Client
	model  string
	loc    *time.Location
	now    func() time.Time
}

// NewParser creates a parser from configuration.
func NewParser(cfg *config.Config, loc *time.Location) *Parser {
	clientCfg := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAI.BaseURL
	}
	p := &Parser{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.OpenAI.Model,
		loc:    loc,
	}
	p.now = func() time.Time { return time.Now().In(loc) }
	return p
}

const systemPromptTemplate = `You are a calendar assistant that parses natural language queries into structured data.

Current date and time: %s
User's timezone: %s

Parse the user's query and respond with JSON containing:
1. "intent": one of "list", "create", "update", "delete", "confirm", "cancel"
2. "entities": object with relevant fields:
   - For "list": start_time, end_time (ISO format with timezone)
   - For "create": title, start_time, end_time, location (optional), attendees (optional, list of emails), description (optional)
   - For "update": query to find event, changes to make
   - For "delete": query to find event

Time parsing rules:
- "tonight" = 6pm to 11:59pm today
- "today" = rest of today
- "tomorrow" = tomorrow all day
- "9pm" without date = 9pm today (if future) or tomorrow (if past)
- Default event duration = 1 hour if not specified

Examples:
Query: "what's on my agenda tonight"
Response: {"intent": "list", "entities": {"start_time": "2025-10-12T18:00:00-04:00", "end_time": "2025-10-12T23:59:59-04:00"}}

Query: "book meeting with john@email.com at 9pm at my home"
Response: {"intent": "create", "entities": {"title": "Meeting with John", "start_time": "2025-10-12T21:00:00-04:00", "end_time": "2025-10-12T22:00:00-04:00", "location": "my home", "attendees": ["john@email.com"]}}

Query: "cancel my 3pm meeting"
Response: {"intent": "delete", "entities": {"query": "3pm meeting today"}}

Query: "reschedule my 3pm meeting to 5pm"
Response: {"intent": "update", "entities": {"query": "3pm meeting today", "changes": {"start_time": "2025-10-12T17:00:00-04:00", "end_time": "2025-10-12T18:00:00-04:00"}}}

Query: "yes" or "confirm" or "ok" or "correct" or "that's right"
Response: {"intent": "confirm", "entities": {}}

Query: "no" or "cancel" or "don't do that" or "undo" or "delete that"
Response: {"intent": "cancel", "entities": {}}

Only respond with valid JSON, no explanations.`

// Parse classifies an utterance. API failures degrade to the keyword
// fallback instead of failing the request.
func (p *Parser) Parse(ctx context.Context, query string) Parsed {
	now := p.now()
	systemPrompt := fmt.Sprintf(systemPromptTemplate,
		now.Format("Monday, January 2, 2006, 3:04 PM MST"), p.loc.String())

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: 0.3,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
	})
	if err != nil {
		logger.Warningf("Error parsing query with OpenAI: %v", err)
		return FallbackParse(query)
	}
	if len(resp.Choices) == 0 {
		logger.Warning("OpenAI returned no choices")
		return FallbackParse(query)
	}

	var parsed Parsed
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		logger.Warningf("Error decoding parser response: %v", err)
		return FallbackParse(query)
	}
	return parsed
}

// fallback trigger words per intent, checked in order. Confirm/cancel come
// first so short acknowledgments are not mistaken for calendar queries.
var fallbackTriggers = []struct {
	intent string
	words  []string
}{
	{IntentConfirm, []string{"yes", "confirm", "ok", "correct", "proceed", "do it", "go ahead"}},
	{IntentCancel, []string{"no", "cancel", "undo", "dont", "stop", "nevermind"}},
	{IntentList, []string{"list", "show", "what", "agenda", "schedule", "calendar"}},
	{IntentCreate, []string{"create", "book", "schedule", "add", "make"}},
	{IntentUpdate, []string{"update", "change", "reschedule", "move"}},
	{IntentDelete, []string{"delete", "remove"}},
}

// FallbackParse is the deterministic keyword classifier used when the API is
// unavailable. Unmatched queries default to "list".
func FallbackParse(query string) Parsed {
	lower := strings.ToLower(query)
	for _, t := range fallbackTriggers {
		for _, w := range t.words {
			if strings.Contains(lower, w) {
				return Parsed{Intent: t.intent, Fallback: true}
			}
		}
	}
	return Parsed{Intent: IntentList, Fallback: true}
}

// ParseDatetime parses an ISO-like datetime string into the parser's
// configured location. Reports false when the string is not parseable.
func (p *Parser) ParseDatetime(s string) (time.Time, bool) {
	return ParseDatetimeIn(s, p.loc)
}

// ParseDatetimeIn parses an ISO-like datetime string and renders it in loc.
func ParseDatetimeIn(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	s = strings.Replace(s, "Z", "+00:00", 1)
	for _, layout := range []string{
		"2006-01-02T15:04:05-07:00",
		"2006-01-02T15:04:05.999999-07:00",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), true
		}
	}
	// No offset: interpret in the configured timezone
	for _, layout := range []string{
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
