// Package server exposes the chat endpoint and the read-only ledger
// views over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"spendwise/internal/logging"
	"spendwise/internal/orchestrator"
	"spendwise/internal/store"
)

// ChatHandler runs one orchestrator turn.
type ChatHandler interface {
	Handle(ctx context.Context, utterance string) orchestrator.Response
}

// Server routes HTTP requests to the orchestrator and the store.
type Server struct {
	chat   ChatHandler
	store  *store.Store
	logger *logging.Logger
	mux    *http.ServeMux
}

// New creates the HTTP server.
func New(chat ChatHandler, st *store.Store, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.New()
	}
	s := &Server{
		chat:   chat,
		store:  st,
		logger: logger.WithComponent("http"),
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/transactions", s.handleTransactions)
	s.mux.HandleFunc("GET /api/transactions/summary", s.handleSummary)
	s.mux.HandleFunc("GET /api/categories", s.handleCategories)
	s.mux.HandleFunc("GET /api/budgets", s.handleBudgets)
	s.mux.HandleFunc("GET /api/budgets/status", s.handleBudgetOverview)
	return s
}

// ServeHTTP logs every request and dispatches it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.Info("request", map[string]interface{}{
		"method":   r.Method,
		"path":     r.URL.Path,
		"duration": time.Since(start).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	// Handle owns its own turn timeout and never errors.
	resp := s.chat.Handle(r.Context(), req.Message)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be 1-500")
			return
		}
		limit = n
	}
	offset := 0
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be >= 0")
			return
		}
		offset = n
	}

	rows, err := s.store.ListTransactions(store.ListFilter{
		Category: q.Get("category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []store.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": rows})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "month"
	}
	now := time.Now().UTC()
	var since time.Time
	switch period {
	case "week":
		since = now.AddDate(0, 0, -7)
	case "month":
		since = now.AddDate(0, -1, 0)
	case "year":
		since = now.AddDate(-1, 0, 0)
	default:
		writeError(w, http.StatusBadRequest, "period must be week, month, or year")
		return
	}

	sums, err := s.store.SummarizeByCategory(since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sums == nil {
		sums = []store.CategorySummary{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"period":     period,
		"categories": sums,
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.store.ListCategories()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": cats})
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.store.BudgetStatuses(time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if statuses == nil {
		statuses = []store.BudgetStatus{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"budgets": statuses})
}

func (s *Server) handleBudgetOverview(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.store.BudgetStatuses(time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	counts := map[string]int{"ok": 0, "warning": 0, "over": 0}
	for _, st := range statuses {
		counts[st.Status]++
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   len(statuses),
		"ok":      counts["ok"],
		"warning": counts["warning"],
		"over":    counts["over"],
	})
}
