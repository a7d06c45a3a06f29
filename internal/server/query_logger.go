package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"calendar-agent/internal/config"
	"calendar-agent/internal/handler"
	"calendar-agent/internal/logger"
	"calendar-agent/internal/models"
	"calendar-agent/internal/service"
)

// queryLogger writes one JSON line per processed query to a dedicated
// rotating log file, and mirrors the entry to the database when enabled.
type queryLogger struct {
	out io.Writer
	loc *time.Location
}

func newQueryLogger(cfg *config.Config, loc *time.Location) *queryLogger {
	return &queryLogger{
		out: logger.GetRotatingLogWriter(cfg, "queries"),
		loc: loc,
	}
}

type queryLogEntry struct {
	Timestamp  string           `json:"timestamp"`
	Method     string           `json:"method"`
	Path       string           `json:"path"`
	Query      string           `json:"query"`
	Response   handler.Response `json:"response"`
	StatusCode int              `json:"status_code"`
}

// record logs a processed query and its response. Logging failures never
// affect the request.
func (q *queryLogger) record(r *http.Request, queryText string, resp handler.Response) {
	entry := queryLogEntry{
		Timestamp:  time.Now().In(q.loc).Format(time.RFC3339),
		Method:     r.Method,
		Path:       r.URL.Path,
		Query:      queryText,
		Response:   resp,
		StatusCode: resp.Status,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		logger.Warningf("Logging error: %v", err)
		return
	}
	if _, err := q.out.Write(append(line, '\n')); err != nil {
		logger.Warningf("Logging error: %v", err)
	}

	service.RecordQuery(&models.QueryRecord{
		Method:       r.Method,
		Path:         r.URL.Path,
		Query:        queryText,
		Intent:       resp.Intent,
		ResponseType: resp.Type,
		StatusCode:   resp.Status,
		UsedFallback: resp.Fallback,
	})
}
