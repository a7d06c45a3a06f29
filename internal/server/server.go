// Package server exposes the agent over HTTP: natural language queries,
// pending action confirmation/cancellation, and a health/debug surface.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"calendar-agent/internal/config"
	"calendar-agent/internal/confirmation"
	"calendar-agent/internal/handler"
	"calendar-agent/internal/history"
	"calendar-agent/internal/logger"
	"calendar-agent/internal/service"
)

// Server is the HTTP front of the agent.
type Server struct {
	server   *http.Server
	handler  *handler.Handler
	pending  *confirmation.Store
	hist     *history.Log
	cfg      *config.Config
	loc      *time.Location
	queryLog *queryLogger
	certFile string
	keyFile  string
}

// New builds the router and returns a server ready to Start.
func New(cfg *config.Config, h *handler.Handler, pending *confirmation.Store, hist *history.Log, loc *time.Location) *Server {
	s := &Server{
		handler:  h,
		pending:  pending,
		hist:     hist,
		cfg:      cfg,
		loc:      loc,
		queryLog: newQueryLogger(cfg, loc),
		certFile: cfg.Server.CertFile,
		keyFile:  cfg.Server.KeyFile,
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.Server.AllowedOrigin},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Webhook-Token"},
		MaxAge:         300,
	}))
	r.Use(s.webhookAuth)

	r.Get("/", s.handleRoot)
	r.Post("/", s.handleRoot)
	r.Get("/query", s.handleQuery)
	r.Post("/query", s.handleQuery)
	r.Post("/confirm", s.handleConfirm)
	r.Post("/cancel", s.handleCancel)
	if cfg.Server.DebugPath != "" {
		r.Get(cfg.Server.DebugPath, s.handleDebug)
	}

	s.server = &http.Server{
		Addr:    "0.0.0.0:" + cfg.Server.ListenPort,
		Handler: r,
	}
	return s
}

// Start starts the HTTP server, with TLS when cert and key are configured.
func (s *Server) Start() error {
	logger.Infof("Starting HTTP server on %s", s.server.Addr)

	if s.certFile != "" && s.keyFile != "" {
		logger.Infof("Using TLS with cert: %s, key: %s", s.certFile, s.keyFile)
		return s.server.ListenAndServeTLS(s.certFile, s.keyFile)
	}

	logger.Info("WARNING: Running without TLS. Make sure you have a HTTPS proxy in front of this server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// webhookAuth rejects requests missing the configured webhook token.
// A blank secret disables the check.
func (s *Server) webhookAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Server.WebhookSecret != "" {
			if r.Header.Get("X-Webhook-Token") != s.cfg.Server.WebhookSecret {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid webhook token"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// handleRoot is the health check; when the voice client appends ?query= it is
// processed as an auto-confirmed utterance.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	queryText := r.URL.Query().Get("query")
	if queryText != "" {
		logger.Infof("Received query (from root): %s", queryText)
		resp := s.handler.HandleQuery(r.Context(), queryText, true)
		s.queryLog.record(r, queryText, resp)
		writeJSON(w, resp.Status, resp)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   "Calendar Agent",
		"timestamp": time.Now().In(s.loc).Format(time.RFC3339),
	})
}

// handleQuery processes a natural language query with staged confirmation.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var queryText string
	if r.Method == http.MethodPost {
		var body struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Query == "" {
			writeJSON(w, http.StatusBadRequest, handler.Response{
				Type: "error", Message: "Missing 'query' field in request"})
			return
		}
		queryText = body.Query
	} else {
		queryText = r.URL.Query().Get("query")
		if queryText == "" {
			writeJSON(w, http.StatusBadRequest, handler.Response{
				Type: "error", Message: "Missing 'query' parameter in URL"})
			return
		}
	}

	logger.Infof("Received query: %s", queryText)
	resp := s.handler.HandleQuery(r.Context(), queryText, false)
	s.queryLog.record(r, queryText, resp)
	writeJSON(w, resp.Status, resp)
}

// handleConfirm claims and executes a pending action.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	actionID := r.URL.Query().Get("action_id")
	if actionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing action_id parameter"})
		return
	}

	logger.Infof("Confirming action: %s", actionID)
	resp := s.handler.ConfirmPending(r.Context(), actionID)
	writeJSON(w, resp.Status, resp)
}

// handleCancel discards a pending action.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	actionID := r.URL.Query().Get("action_id")
	if actionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing action_id parameter"})
		return
	}

	logger.Infof("Cancelling action: %s", actionID)
	resp := s.handler.CancelPending(actionID)
	writeJSON(w, resp.Status, resp)
}

// handleDebug reports credential and store status for troubleshooting.
func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"service_account_exists": fileExists(s.cfg.Calendar.ServiceAccountFile),
		"credentials_exists":     fileExists(s.cfg.Calendar.CredentialsFile),
		"token_exists":           fileExists(s.cfg.Calendar.TokenFile),
		"openai_key_set":         s.cfg.OpenAI.APIKey != "",
		"calendar_id":            s.cfg.Calendar.CalendarID,
		"timezone":               s.cfg.Calendar.Timezone,
		"pending_actions":        s.pending.Count(),
		"history_entries":        s.hist.Len(),
		"database_enabled":       s.cfg.Database.Enabled,
	}
	if s.cfg.Database.Enabled {
		if recent, err := service.GetRecentQueries(10); err == nil {
			info["recent_query_count"] = len(recent)
		}
	}
	writeJSON(w, http.StatusOK, info)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warningf("Error encoding response: %v", err)
	}
}
